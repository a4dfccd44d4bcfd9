package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/hazemadel/carmarket-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ObjectStore uploads photo bytes and returns the stored object key.
type ObjectStore interface {
	Upload(ctx context.Context, originalName string, data []byte, contentType string) (string, error)
	URL(key string) string
}

// MediaService attaches uploaded photos to listings.
type MediaService struct {
	repo  repo.RepositoryInterface
	store ObjectStore
	log   *zap.SugaredLogger
}

// NewMediaService returns MediaService.
func NewMediaService(r repo.RepositoryInterface, store ObjectStore, logger *zap.SugaredLogger) *MediaService {
	return &MediaService{repo: r, store: store, log: logger}
}

const maxListingPhotos = 12

// AttachPhoto uploads one photo and appends its key to the listing. Owner
// only. The upload happens before the row update; an orphaned object from a
// failed update is garbage, not corruption.
func (s *MediaService) AttachPhoto(ctx context.Context, listingID uint64, actor Actor, fileName string, data []byte, contentType string) (*model.Listing, error) {
	if !allowedPhotoExt(fileName) {
		return nil, ErrUnsupportedMedia
	}
	key, err := s.store.Upload(ctx, fileName, data, contentType)
	if err != nil {
		return nil, err
	}
	var updated *model.Listing
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := resolveListing(ctx, tx, s.repo, listingID, actor)
		if err != nil {
			return err
		}
		photos := decodePhotos(l.Photos)
		if len(photos) >= maxListingPhotos {
			return conflict("listing already has the maximum number of photos")
		}
		photos = append(photos, key)
		encoded, err := json.Marshal(photos)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateListingStatus(ctx, tx, l.ID, map[string]interface{}{
			"photos": datatypes.JSON(encoded),
		}, l.Version); err != nil {
			if errors.Is(err, repo.ErrVersionConflict) {
				return conflict("listing was modified concurrently, re-fetch and retry")
			}
			return err
		}
		l.Photos = datatypes.JSON(encoded)
		l.Version++
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.InvalidateListing(ctx, listingID); err != nil {
		s.log.Warn(err)
	}
	s.log.Infof("photo %s attached to listing %d", key, listingID)
	return updated, nil
}

// PhotoURLs maps a listing's stored object keys to public URLs.
func (s *MediaService) PhotoURLs(l *model.Listing) []string {
	keys := decodePhotos(l.Photos)
	urls := make([]string, 0, len(keys))
	for _, k := range keys {
		urls = append(urls, s.store.URL(k))
	}
	return urls
}

func decodePhotos(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var photos []string
	if err := json.Unmarshal(raw, &photos); err != nil {
		return nil
	}
	return photos
}

func allowedPhotoExt(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}
