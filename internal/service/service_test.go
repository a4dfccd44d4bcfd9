package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/hazemadel/carmarket-service/internal/logger"
	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/hazemadel/carmarket-service/internal/repo"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fixture wires the service layer onto an in-memory sqlite database and a
// mocked Redis client. Cache calls fail against the unprimed mock and are
// warn-logged, which exercises the cache-miss paths.
type fixture struct {
	db           *gorm.DB
	repo         *repo.Repository
	redisMock    redismock.ClientMock
	status       *ListingStatusService
	listings     *ListingService
	governorates *GovernorateService
	favorites    *FavoriteService
	gov          *model.Governorate
	ctx          context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Governorate{}, &model.Listing{},
		&model.Favorite{}, &model.OutboxEvent{},
	))

	rdb, mock := redismock.NewClientMock()
	log, err := logger.NewLogger()
	require.NoError(t, err)

	r := repo.NewRepository(db, rdb, &kafka.Writer{}, log)
	f := &fixture{
		db:           db,
		repo:         r,
		redisMock:    mock,
		status:       NewListingStatusService(r, log),
		listings:     NewListingService(r, log),
		governorates: NewGovernorateService(r, log),
		favorites:    NewFavoriteService(r, log),
		ctx:          context.Background(),
	}
	f.gov = f.seedGovernorate(t, "Cairo")
	return f
}

func (f *fixture) seedUser(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com"}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) seedGovernorate(t *testing.T, name string) *model.Governorate {
	t.Helper()
	g := &model.Governorate{Name: name, Slug: slugify(name)}
	require.NoError(t, f.db.Create(g).Error)
	return g
}

func (f *fixture) seedListing(t *testing.T, owner *model.User, mutate func(*model.Listing)) *model.Listing {
	t.Helper()
	l := &model.Listing{
		SellerID:      owner.ID,
		GovernorateID: f.gov.ID,
		Make:          "Toyota",
		Model:         "Corolla",
		Year:          2020,
		Mileage:       45000,
		Price:         decimal.NewFromInt(550000),
		UserActive:    true,
	}
	if mutate != nil {
		mutate(l)
	}
	require.NoError(t, f.db.Create(l).Error)
	return l
}

func (f *fixture) reload(t *testing.T, id uint64) model.Listing {
	t.Helper()
	var l model.Listing
	require.NoError(t, f.db.First(&l, id).Error)
	return l
}

func (f *fixture) outboxEvents(t *testing.T) []model.OutboxEvent {
	t.Helper()
	var evts []model.OutboxEvent
	require.NoError(t, f.db.Order("id").Find(&evts).Error)
	return evts
}
