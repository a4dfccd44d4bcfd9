package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict is returned when a conditional status update matched no
// row, meaning another writer advanced the listing's version first.
var ErrVersionConflict = errors.New("optimistic lock conflict")

const (
	listingCacheTTL     = 5 * time.Minute
	governorateCacheTTL = 30 * time.Minute
	governorateCacheKey = "governorates"
)

// ListingFilter narrows a listing search. Zero values mean "no constraint".
type ListingFilter struct {
	Make          string
	Model         string
	GovernorateID uint64
	SellerID      uint64
	YearMin       int
	YearMax       int
	PriceMin      decimal.Decimal
	PriceMax      decimal.Decimal
	// VisibleOnly keeps only publicly browsable listings: approved, active,
	// not archived and not sold (unless IncludeSold is set).
	VisibleOnly bool
	IncludeSold bool
	Page        int
	Limit       int
}

// RepositoryInterface restricts Repo methods (unit-test mock seam).
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	GetUserByUsername(ctx context.Context, tx *gorm.DB, username string) (*model.User, error)

	GetListingByID(ctx context.Context, tx *gorm.DB, id uint64) (*model.Listing, error)
	GetListingForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Listing, error)
	CreateListing(ctx context.Context, tx *gorm.DB, l *model.Listing) error
	SaveListing(ctx context.Context, tx *gorm.DB, l *model.Listing) error
	UpdateListingStatus(ctx context.Context, tx *gorm.DB, id uint64, updates map[string]interface{}, oldVersion uint64) error
	DeleteListing(ctx context.Context, tx *gorm.DB, id uint64) error
	SearchListings(ctx context.Context, f ListingFilter) ([]model.Listing, int64, error)

	GetGovernorateByID(ctx context.Context, tx *gorm.DB, id uint64) (*model.Governorate, error)
	GetGovernorateByName(ctx context.Context, tx *gorm.DB, name string) (*model.Governorate, error)
	CreateGovernorate(ctx context.Context, tx *gorm.DB, g *model.Governorate) error
	SaveGovernorate(ctx context.Context, tx *gorm.DB, g *model.Governorate) error
	DeleteGovernorate(ctx context.Context, tx *gorm.DB, id uint64) error
	ListGovernorates(ctx context.Context) ([]model.Governorate, error)
	CountListingsByGovernorate(ctx context.Context, tx *gorm.DB, governorateID uint64) (int64, error)

	CreateFavorite(ctx context.Context, tx *gorm.DB, f *model.Favorite) error
	DeleteFavorite(ctx context.Context, tx *gorm.DB, userID, listingID uint64) (int64, error)
	FavoriteExists(ctx context.Context, tx *gorm.DB, userID, listingID uint64) (bool, error)
	ListFavoritesByUser(ctx context.Context, userID uint64) ([]model.Favorite, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheListing(ctx context.Context, l *model.Listing) error
	GetCachedListing(ctx context.Context, id uint64) (*model.Listing, error)
	InvalidateListing(ctx context.Context, id uint64) error
	CacheGovernorates(ctx context.Context, gs []model.Governorate) error
	GetCachedGovernorates(ctx context.Context) ([]model.Governorate, error)
	InvalidateGovernorates(ctx context.Context) error
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// GetUserByUsername resolves a user by unique username.
func (r *Repository) GetUserByUsername(ctx context.Context, tx *gorm.DB, username string) (*model.User, error) {
	var u model.User
	if err := tx.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetListingByID loads a listing with its seller and governorate.
func (r *Repository) GetListingByID(ctx context.Context, tx *gorm.DB, id uint64) (*model.Listing, error) {
	var l model.Listing
	if err := tx.WithContext(ctx).
		Preload("Seller").Preload("Governorate").
		First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// GetListingForUpdate locks the listing row for the duration of the
// surrounding transaction. sqlite (used in tests) has no FOR UPDATE, so the
// locking clause is applied on postgres only; the version check in
// UpdateListingStatus covers both.
func (r *Repository) GetListingForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.Listing, error) {
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var l model.Listing
	if err := q.Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateListing inserts a new listing.
func (r *Repository) CreateListing(ctx context.Context, tx *gorm.DB, l *model.Listing) error {
	return tx.WithContext(ctx).Create(l).Error
}

// SaveListing persists descriptive-field changes.
func (r *Repository) SaveListing(ctx context.Context, tx *gorm.DB, l *model.Listing) error {
	return tx.WithContext(ctx).Save(l).Error
}

// UpdateListingStatus applies a status-flag mutation with an optimistic
// version check. Matching no row means a concurrent writer won.
func (r *Repository) UpdateListingStatus(ctx context.Context, tx *gorm.DB, id uint64, updates map[string]interface{}, oldVersion uint64) error {
	merged := map[string]interface{}{
		"version":    oldVersion + 1,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		merged[k] = v
	}
	res := tx.WithContext(ctx).
		Model(&model.Listing{}).
		Where("id = ? AND version = ?", id, oldVersion).
		Updates(merged)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// DeleteListing removes a listing and its favorites.
func (r *Repository) DeleteListing(ctx context.Context, tx *gorm.DB, id uint64) error {
	if err := tx.WithContext(ctx).Where("listing_id = ?", id).Delete(&model.Favorite{}).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Delete(&model.Listing{}, id).Error
}

// SearchListings applies the filter and returns a page plus the total count.
func (r *Repository) SearchListings(ctx context.Context, f ListingFilter) ([]model.Listing, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Listing{})
	if f.Make != "" {
		q = q.Where("make = ?", f.Make)
	}
	if f.Model != "" {
		q = q.Where("model = ?", f.Model)
	}
	if f.GovernorateID != 0 {
		q = q.Where("governorate_id = ?", f.GovernorateID)
	}
	if f.SellerID != 0 {
		q = q.Where("seller_id = ?", f.SellerID)
	}
	if f.YearMin != 0 {
		q = q.Where("year >= ?", f.YearMin)
	}
	if f.YearMax != 0 {
		q = q.Where("year <= ?", f.YearMax)
	}
	if !f.PriceMin.IsZero() {
		q = q.Where("price >= ?", f.PriceMin)
	}
	if !f.PriceMax.IsZero() {
		q = q.Where("price <= ?", f.PriceMax)
	}
	if f.VisibleOnly {
		q = q.Where("approved = ? AND archived = ? AND user_active = ?", true, false, true)
		if !f.IncludeSold {
			q = q.Where("sold = ?", false)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	var listings []model.Listing
	err := q.Preload("Seller").Preload("Governorate").
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&listings).Error
	return listings, total, err
}

// GetGovernorateByID loads one governorate.
func (r *Repository) GetGovernorateByID(ctx context.Context, tx *gorm.DB, id uint64) (*model.Governorate, error) {
	var g model.Governorate
	if err := tx.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// GetGovernorateByName loads a governorate by unique name.
func (r *Repository) GetGovernorateByName(ctx context.Context, tx *gorm.DB, name string) (*model.Governorate, error) {
	var g model.Governorate
	if err := tx.WithContext(ctx).Where("name = ?", name).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGovernorate inserts a governorate.
func (r *Repository) CreateGovernorate(ctx context.Context, tx *gorm.DB, g *model.Governorate) error {
	return tx.WithContext(ctx).Create(g).Error
}

// SaveGovernorate persists governorate changes.
func (r *Repository) SaveGovernorate(ctx context.Context, tx *gorm.DB, g *model.Governorate) error {
	return tx.WithContext(ctx).Save(g).Error
}

// DeleteGovernorate removes a governorate row.
func (r *Repository) DeleteGovernorate(ctx context.Context, tx *gorm.DB, id uint64) error {
	return tx.WithContext(ctx).Delete(&model.Governorate{}, id).Error
}

// ListGovernorates returns all governorates ordered by name.
func (r *Repository) ListGovernorates(ctx context.Context) ([]model.Governorate, error) {
	var gs []model.Governorate
	err := r.db.WithContext(ctx).Order("name").Find(&gs).Error
	return gs, err
}

// CountListingsByGovernorate counts listings referencing a governorate.
func (r *Repository) CountListingsByGovernorate(ctx context.Context, tx *gorm.DB, governorateID uint64) (int64, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.Listing{}).
		Where("governorate_id = ?", governorateID).Count(&n).Error
	return n, err
}

// CreateFavorite inserts a favorite row.
func (r *Repository) CreateFavorite(ctx context.Context, tx *gorm.DB, f *model.Favorite) error {
	return tx.WithContext(ctx).Create(f).Error
}

// DeleteFavorite removes a favorite; returns affected row count.
func (r *Repository) DeleteFavorite(ctx context.Context, tx *gorm.DB, userID, listingID uint64) (int64, error) {
	res := tx.WithContext(ctx).
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		Delete(&model.Favorite{})
	return res.RowsAffected, res.Error
}

// FavoriteExists checks for a duplicate favorite pair.
func (r *Repository) FavoriteExists(ctx context.Context, tx *gorm.DB, userID, listingID uint64) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.Favorite{}).
		Where("user_id = ? AND listing_id = ?", userID, listingID).Count(&n).Error
	return n > 0, err
}

// ListFavoritesByUser returns the user's favorites with listings preloaded.
func (r *Repository) ListFavoritesByUser(ctx context.Context, userID uint64) ([]model.Favorite, error) {
	var fs []model.Favorite
	err := r.db.WithContext(ctx).
		Preload("Listing").Preload("Listing.Seller").Preload("Listing.Governorate").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&fs).Error
	return fs, err
}

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed=false").Order("created_at").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id=?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka, keyed by aggregate so every event for one
// listing lands on the same partition in order.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%s-%d", evt.Aggregate, evt.AggregateID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// CacheListing writes the listing snapshot to Redis.
func (r *Repository) CacheListing(ctx context.Context, l *model.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, listingKey(l.ID), data, listingCacheTTL).Err()
}

// GetCachedListing reads a listing snapshot from Redis.
func (r *Repository) GetCachedListing(ctx context.Context, id uint64) (*model.Listing, error) {
	data, err := r.rdb.Get(ctx, listingKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var l model.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// InvalidateListing drops a listing from the cache.
func (r *Repository) InvalidateListing(ctx context.Context, id uint64) error {
	return r.rdb.Del(ctx, listingKey(id)).Err()
}

// CacheGovernorates stores the full governorate list.
func (r *Repository) CacheGovernorates(ctx context.Context, gs []model.Governorate) error {
	data, err := json.Marshal(gs)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, governorateCacheKey, data, governorateCacheTTL).Err()
}

// GetCachedGovernorates reads the cached governorate list.
func (r *Repository) GetCachedGovernorates(ctx context.Context) ([]model.Governorate, error) {
	data, err := r.rdb.Get(ctx, governorateCacheKey).Bytes()
	if err != nil {
		return nil, err
	}
	var gs []model.Governorate
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, err
	}
	return gs, nil
}

// InvalidateGovernorates drops the governorate list cache.
func (r *Repository) InvalidateGovernorates(ctx context.Context) error {
	return r.rdb.Del(ctx, governorateCacheKey).Err()
}

func listingKey(id uint64) string { return fmt.Sprintf("listing:%d", id) }
