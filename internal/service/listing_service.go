package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/hazemadel/carmarket-service/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListingService covers listing CRUD and search. Status transitions live in
// ListingStatusService.
type ListingService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewListingService returns ListingService.
func NewListingService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *ListingService {
	return &ListingService{repo: r, log: logger}
}

// CreateListingInput carries the seller-provided fields of a new listing.
type CreateListingInput struct {
	Username      string
	GovernorateID uint64
	Make          string
	Model         string
	Year          int
	Mileage       int
	Price         decimal.Decimal
	Description   string
}

// UpdateListingInput carries the descriptive fields a seller may edit.
// Status flags are not editable here.
type UpdateListingInput struct {
	GovernorateID uint64
	Make          string
	Model         string
	Year          int
	Mileage       int
	Price         decimal.Decimal
	Description   string
}

// Create inserts a new listing. New listings start unapproved, unsold,
// unarchived and active.
func (s *ListingService) Create(ctx context.Context, in CreateListingInput) (*model.Listing, error) {
	if err := validateListingFields(in.Make, in.Model, in.Year, in.Price); err != nil {
		return nil, err
	}
	var created *model.Listing
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		seller, err := s.repo.GetUserByUsername(ctx, tx, in.Username)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user", in.Username)
			}
			return err
		}
		if _, err := s.repo.GetGovernorateByID(ctx, tx, in.GovernorateID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("governorate", strconv.FormatUint(in.GovernorateID, 10))
			}
			return err
		}
		l := &model.Listing{
			SellerID:      seller.ID,
			GovernorateID: in.GovernorateID,
			Make:          in.Make,
			Model:         in.Model,
			Year:          in.Year,
			Mileage:       in.Mileage,
			Price:         in.Price,
			Description:   in.Description,
			UserActive:    true,
		}
		if err := s.repo.CreateListing(ctx, tx, l); err != nil {
			return err
		}
		created = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("listing %d created by %s", created.ID, in.Username)
	return created, nil
}

// Get returns one listing, read-through cached in Redis.
func (s *ListingService) Get(ctx context.Context, id uint64) (*model.Listing, error) {
	if l, err := s.repo.GetCachedListing(ctx, id); err == nil {
		return l, nil
	}
	l, err := s.repo.GetListingByID(ctx, s.repo.DB(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("listing", strconv.FormatUint(id, 10))
		}
		return nil, err
	}
	if err := s.repo.CacheListing(ctx, l); err != nil {
		s.log.Warn(err)
	}
	return l, nil
}

// Update edits the descriptive fields of a listing. Owner only; status
// flags are untouched.
func (s *ListingService) Update(ctx context.Context, id uint64, actor Actor, in UpdateListingInput) (*model.Listing, error) {
	if err := validateListingFields(in.Make, in.Model, in.Year, in.Price); err != nil {
		return nil, err
	}
	var updated *model.Listing
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := resolveListing(ctx, tx, s.repo, id, actor)
		if err != nil {
			return err
		}
		if in.GovernorateID != 0 && in.GovernorateID != l.GovernorateID {
			if _, err := s.repo.GetGovernorateByID(ctx, tx, in.GovernorateID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFound("governorate", strconv.FormatUint(in.GovernorateID, 10))
				}
				return err
			}
			l.GovernorateID = in.GovernorateID
		}
		l.Make = in.Make
		l.Model = in.Model
		l.Year = in.Year
		l.Mileage = in.Mileage
		l.Price = in.Price
		l.Description = in.Description
		if err := s.repo.SaveListing(ctx, tx, l); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.InvalidateListing(ctx, id); err != nil {
		s.log.Warn(err)
	}
	return updated, nil
}

// Delete removes a listing; owner or admin.
func (s *ListingService) Delete(ctx context.Context, id uint64, actor Actor) error {
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := resolveListing(ctx, tx, s.repo, id, actor)
		if err != nil {
			return err
		}
		return s.repo.DeleteListing(ctx, tx, l.ID)
	})
	if err != nil {
		return err
	}
	if err := s.repo.InvalidateListing(ctx, id); err != nil {
		s.log.Warn(err)
	}
	s.log.Infof("listing %d deleted", id)
	return nil
}

// Search returns a filtered, paginated slice of listings and total count.
func (s *ListingService) Search(ctx context.Context, f repo.ListingFilter) ([]model.Listing, int64, error) {
	return s.repo.SearchListings(ctx, f)
}

func validateListingFields(carMake, carModel string, year int, price decimal.Decimal) error {
	if carMake == "" || carModel == "" {
		return ErrInvalidListing
	}
	if year < 1950 || year > time.Now().Year()+1 {
		return ErrInvalidListing
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidListing
	}
	return nil
}
