package service

import (
	"context"
	"errors"

	"github.com/hazemadel/carmarket-service/internal/event"
	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/hazemadel/carmarket-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListingStatusService enforces and executes every legal status transition
// for a listing. Each operation mutates exactly one flag, persists it under
// an optimistic version check, and writes at most one domain event to the
// outbox inside the same transaction.
type ListingStatusService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewListingStatusService returns ListingStatusService.
func NewListingStatusService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *ListingStatusService {
	return &ListingStatusService{repo: r, log: logger}
}

// Approve marks a listing as having passed moderation. Admin-only; a
// listing can be approved exactly once.
func (s *ListingStatusService) Approve(ctx context.Context, id uint64) (*model.Listing, error) {
	var updated *model.Listing
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := resolveListing(ctx, tx, s.repo, id, Admin())
		if err != nil {
			return err
		}
		if l.Approved {
			return conflict("Listing is already approved.")
		}
		if err := s.applyStatus(ctx, tx, l, map[string]interface{}{"approved": true}); err != nil {
			return err
		}
		l.Approved = true
		if err := s.repo.CreateOutboxEvent(ctx, tx, event.ListingApproved(l)); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.log.Infof("listing %d approved", id)
	return updated, nil
}

// Pause hides an approved, active listing at the seller's request. No
// event is published for pause/resume.
func (s *ListingStatusService) Pause(ctx context.Context, id uint64, actor Actor) (*model.Listing, error) {
	var updated *model.Listing
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := resolveListing(ctx, tx, s.repo, id, actor)
		if err != nil {
			return err
		}
		if !l.Approved {
			return conflict("Cannot pause a listing that has not been approved.")
		}
		if l.Sold {
			return conflict("Cannot pause a listing that has been sold.")
		}
		if l.Archived {
			return conflict("Cannot pause a listing that has been archived.")
		}
		if !l.UserActive {
			return conflict("Listing is already paused.")
		}
		if err := s.applyStatus(ctx, tx, l, map[string]interface{}{"user_active": false}); err != nil {
			return err
		}
		l.UserActive = false
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.log.Infof("listing %d paused", id)
	return updated, nil
}

// Resume re-activates a paused listing.
func (s *ListingStatusService) Resume(ctx context.Context, id uint64, actor Actor) (*model.Listing, error) {
	var updated *model.Listing
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := resolveListing(ctx, tx, s.repo, id, actor)
		if err != nil {
			return err
		}
		if l.Sold {
			return conflict("Cannot resume a listing that has been sold.")
		}
		if l.Archived {
			return conflict("Cannot resume a listing that has been archived.")
		}
		if l.UserActive {
			return conflict("Listing is not paused.")
		}
		if err := s.applyStatus(ctx, tx, l, map[string]interface{}{"user_active": true}); err != nil {
			return err
		}
		l.UserActive = true
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.log.Infof("listing %d resumed", id)
	return updated, nil
}

// MarkSold marks a listing as sold, by the seller or an admin actor.
func (s *ListingStatusService) MarkSold(ctx context.Context, id uint64, actor Actor) (*model.Listing, error) {
	var updated *model.Listing
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := resolveListing(ctx, tx, s.repo, id, actor)
		if err != nil {
			return err
		}
		if l.Archived {
			return conflict("Cannot mark an archived listing as sold.")
		}
		if l.Sold {
			return conflict("Listing is already marked as sold.")
		}
		if err := s.applyStatus(ctx, tx, l, map[string]interface{}{"sold": true}); err != nil {
			return err
		}
		l.Sold = true
		if err := s.repo.CreateOutboxEvent(ctx, tx, event.ListingMarkedSold(l, actor.IsAdmin)); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.log.Infof("listing %d marked sold (admin=%t)", id, actor.IsAdmin)
	return updated, nil
}

// Archive removes a listing from circulation. An archived listing blocks
// every other transition until unarchived.
func (s *ListingStatusService) Archive(ctx context.Context, id uint64, actor Actor) (*model.Listing, error) {
	var updated *model.Listing
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := resolveListing(ctx, tx, s.repo, id, actor)
		if err != nil {
			return err
		}
		if l.Archived {
			return conflict("Listing is already archived.")
		}
		if err := s.applyStatus(ctx, tx, l, map[string]interface{}{"archived": true}); err != nil {
			return err
		}
		l.Archived = true
		if err := s.repo.CreateOutboxEvent(ctx, tx, event.ListingArchived(l, actor.IsAdmin)); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.log.Infof("listing %d archived (admin=%t)", id, actor.IsAdmin)
	return updated, nil
}

// Unarchive restores an archived listing; sold and user_active keep
// whatever values they had before archiving. Publishes no event.
func (s *ListingStatusService) Unarchive(ctx context.Context, id uint64, actor Actor) (*model.Listing, error) {
	var updated *model.Listing
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := resolveListing(ctx, tx, s.repo, id, actor)
		if err != nil {
			return err
		}
		if !l.Archived {
			return conflict("Listing is not archived.")
		}
		if err := s.applyStatus(ctx, tx, l, map[string]interface{}{"archived": false}); err != nil {
			return err
		}
		l.Archived = false
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.log.Infof("listing %d unarchived (admin=%t)", id, actor.IsAdmin)
	return updated, nil
}

// applyStatus persists a single-flag mutation under the optimistic version
// check and keeps the in-memory version in step.
func (s *ListingStatusService) applyStatus(ctx context.Context, tx *gorm.DB, l *model.Listing, updates map[string]interface{}) error {
	if err := s.repo.UpdateListingStatus(ctx, tx, l.ID, updates, l.Version); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			return conflict("listing was modified concurrently, re-fetch and retry")
		}
		return err
	}
	l.Version++
	return nil
}

func (s *ListingStatusService) invalidate(ctx context.Context, id uint64) {
	if err := s.repo.InvalidateListing(ctx, id); err != nil {
		s.log.Warn(err)
	}
}
