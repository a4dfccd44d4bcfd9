package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/hazemadel/carmarket-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FavoriteService manages per-user saved listings.
type FavoriteService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewFavoriteService returns FavoriteService.
func NewFavoriteService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *FavoriteService {
	return &FavoriteService{repo: r, log: logger}
}

// Add saves a listing to the user's favorites. Duplicates conflict.
func (s *FavoriteService) Add(ctx context.Context, username string, listingID uint64) (*model.Favorite, error) {
	var created *model.Favorite
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := s.repo.GetUserByUsername(ctx, tx, username)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user", username)
			}
			return err
		}
		if _, err := s.repo.GetListingByID(ctx, tx, listingID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("listing", strconv.FormatUint(listingID, 10))
			}
			return err
		}
		exists, err := s.repo.FavoriteExists(ctx, tx, u.ID, listingID)
		if err != nil {
			return err
		}
		if exists {
			return conflict("listing is already in favorites")
		}
		f := &model.Favorite{UserID: u.ID, ListingID: listingID}
		if err := s.repo.CreateFavorite(ctx, tx, f); err != nil {
			return err
		}
		created = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Remove drops a listing from the user's favorites.
func (s *FavoriteService) Remove(ctx context.Context, username string, listingID uint64) error {
	return s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := s.repo.GetUserByUsername(ctx, tx, username)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user", username)
			}
			return err
		}
		n, err := s.repo.DeleteFavorite(ctx, tx, u.ID, listingID)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("favorite", strconv.FormatUint(listingID, 10))
		}
		return nil
	})
}

// List returns all of the user's favorites with listings preloaded.
func (s *FavoriteService) List(ctx context.Context, username string) ([]model.Favorite, error) {
	u, err := s.repo.GetUserByUsername(ctx, s.repo.DB(ctx), username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", username)
		}
		return nil, err
	}
	return s.repo.ListFavoritesByUser(ctx, u.ID)
}
