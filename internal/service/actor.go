package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/hazemadel/carmarket-service/internal/repo"
	"gorm.io/gorm"
)

// Actor identifies who is performing a listing operation: either the seller
// acting under their username, or an admin. Admin actors bypass the
// ownership guard entirely and need no user record.
type Actor struct {
	Username string
	IsAdmin  bool
}

// Owner returns an actor bound to a seller username.
func Owner(username string) Actor { return Actor{Username: username} }

// Admin returns the privileged actor.
func Admin() Actor { return Actor{IsAdmin: true} }

// resolveListing performs the common lookup-and-guard sequence: resolve the
// acting user by username (admin skips this), load the listing row locked
// for update, and reject actors that do not own it.
func resolveListing(ctx context.Context, tx *gorm.DB, r repo.RepositoryInterface, id uint64, actor Actor) (*model.Listing, error) {
	var owner *model.User
	if !actor.IsAdmin {
		u, err := r.GetUserByUsername(ctx, tx, actor.Username)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, notFound("user", actor.Username)
			}
			return nil, err
		}
		owner = u
	}
	l, err := r.GetListingForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("listing", strconv.FormatUint(id, 10))
		}
		return nil, err
	}
	if owner != nil && l.SellerID != owner.ID {
		return nil, unauthorized("only the seller may modify this listing")
	}
	return l, nil
}
