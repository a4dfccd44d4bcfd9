package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/hazemadel/carmarket-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GovernorateService manages the administrative regions listings are
// attached to. Mutations are admin-only (enforced at the transport layer).
type GovernorateService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewGovernorateService returns GovernorateService.
func NewGovernorateService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *GovernorateService {
	return &GovernorateService{repo: r, log: logger}
}

// Create adds a governorate. Duplicate names conflict.
func (s *GovernorateService) Create(ctx context.Context, name string) (*model.Governorate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, conflict("governorate name must not be empty")
	}
	var created *model.Governorate
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.GetGovernorateByName(ctx, tx, name); err == nil {
			return conflict("governorate already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		g := &model.Governorate{Name: name, Slug: slugify(name)}
		if err := s.repo.CreateGovernorate(ctx, tx, g); err != nil {
			return err
		}
		created = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.InvalidateGovernorates(ctx); err != nil {
		s.log.Warn(err)
	}
	s.log.Infof("governorate %q created", name)
	return created, nil
}

// Get returns one governorate by id.
func (s *GovernorateService) Get(ctx context.Context, id uint64) (*model.Governorate, error) {
	g, err := s.repo.GetGovernorateByID(ctx, s.repo.DB(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("governorate", strconv.FormatUint(id, 10))
		}
		return nil, err
	}
	return g, nil
}

// Update renames a governorate.
func (s *GovernorateService) Update(ctx context.Context, id uint64, name string) (*model.Governorate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, conflict("governorate name must not be empty")
	}
	var updated *model.Governorate
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := s.repo.GetGovernorateByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("governorate", strconv.FormatUint(id, 10))
			}
			return err
		}
		if other, err := s.repo.GetGovernorateByName(ctx, tx, name); err == nil && other.ID != id {
			return conflict("governorate already exists")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		g.Name = name
		g.Slug = slugify(name)
		if err := s.repo.SaveGovernorate(ctx, tx, g); err != nil {
			return err
		}
		updated = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.InvalidateGovernorates(ctx); err != nil {
		s.log.Warn(err)
	}
	return updated, nil
}

// Delete removes a governorate that no listing references.
func (s *GovernorateService) Delete(ctx context.Context, id uint64) error {
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.GetGovernorateByID(ctx, tx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("governorate", strconv.FormatUint(id, 10))
			}
			return err
		}
		n, err := s.repo.CountListingsByGovernorate(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return conflict("governorate still has listings")
		}
		return s.repo.DeleteGovernorate(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	if err := s.repo.InvalidateGovernorates(ctx); err != nil {
		s.log.Warn(err)
	}
	s.log.Infof("governorate %d deleted", id)
	return nil
}

// List returns all governorates, Redis-cached.
func (s *GovernorateService) List(ctx context.Context) ([]model.Governorate, error) {
	if gs, err := s.repo.GetCachedGovernorates(ctx); err == nil {
		return gs, nil
	}
	gs, err := s.repo.ListGovernorates(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CacheGovernorates(ctx, gs); err != nil {
		s.log.Warn(err)
	}
	return gs, nil
}

func slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
