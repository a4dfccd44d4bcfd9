package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hazemadel/carmarket-service/internal/config"
	"github.com/hazemadel/carmarket-service/internal/logger"
	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/hazemadel/carmarket-service/internal/repo"
	"github.com/hazemadel/carmarket-service/internal/service"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type nopStore struct{}

func (nopStore) Upload(_ context.Context, name string, _ []byte, _ string) (string, error) {
	return "photos/" + name, nil
}
func (nopStore) URL(key string) string { return "http://bucket/" + key }

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Governorate{}, &model.Listing{},
		&model.Favorite{}, &model.OutboxEvent{},
	))

	rdb, _ := redismock.NewClientMock()
	log, err := logger.NewLogger()
	require.NoError(t, err)

	r := repo.NewRepository(db, rdb, &kafka.Writer{}, log)
	svcs := Services{
		Listings:     service.NewListingService(r, log),
		Status:       service.NewListingStatusService(r, log),
		Governorates: service.NewGovernorateService(r, log),
		Favorites:    service.NewFavoriteService(r, log),
		Media:        service.NewMediaService(r, nopStore{}, log),
	}
	router := NewRouter(svcs, config.RateLimitConfig{RPS: 1000, Burst: 1000}, testSecret, log)
	return router, db
}

func signToken(t *testing.T, username string, admin bool) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"admin":    admin,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, db *gorm.DB) (owner *model.User, l *model.Listing) {
	t.Helper()
	owner = &model.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, db.Create(owner).Error)
	require.NoError(t, db.Create(&model.User{Username: "mallory"}).Error)
	g := &model.Governorate{Name: "Cairo", Slug: "cairo"}
	require.NoError(t, db.Create(g).Error)
	l = &model.Listing{
		SellerID: owner.ID, GovernorateID: g.ID,
		Make: "Toyota", Model: "Corolla", Year: 2020,
		Price: decimal.NewFromInt(550000), Approved: true, UserActive: true,
	}
	require.NoError(t, db.Create(l).Error)
	return owner, l
}

func TestRoutes_AuthRequired(t *testing.T) {
	router, db := newTestRouter(t)
	_, l := seed(t, db)

	rec := doRequest(router, http.MethodPost, fmt.Sprintf("/v1/listings/%d/pause", l.ID), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodPost, fmt.Sprintf("/v1/admin/listings/%d/approve", l.ID),
		signToken(t, "alice", false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	router, db := newTestRouter(t)
	_, l := seed(t, db)

	// unknown listing -> 404
	rec := doRequest(router, http.MethodGet, "/v1/listings/9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// non-owner transition -> 403
	rec = doRequest(router, http.MethodPost, fmt.Sprintf("/v1/listings/%d/sold", l.ID),
		signToken(t, "mallory", false))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// owner pause succeeds, second pause conflicts -> 409
	token := signToken(t, "alice", false)
	rec = doRequest(router, http.MethodPost, fmt.Sprintf("/v1/listings/%d/pause", l.ID), token)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(router, http.MethodPost, fmt.Sprintf("/v1/listings/%d/pause", l.ID), token)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminResponseShape(t *testing.T) {
	router, db := newTestRouter(t)
	_, l := seed(t, db)
	require.NoError(t, db.Model(l).Update("approved", false).Error)

	rec := doRequest(router, http.MethodPost, fmt.Sprintf("/v1/admin/listings/%d/approve", l.ID),
		signToken(t, "moderator", true))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AdminListingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Approved)
	assert.Equal(t, uint64(1), resp.Version)
	assert.Equal(t, "active", resp.Status)
}

func TestStatusLabel(t *testing.T) {
	cases := []struct {
		name string
		l    model.Listing
		want string
	}{
		{"pending", model.Listing{UserActive: true}, "pending"},
		{"active", model.Listing{Approved: true, UserActive: true}, "active"},
		{"paused", model.Listing{Approved: true}, "paused"},
		{"sold", model.Listing{Approved: true, Sold: true, UserActive: true}, "sold"},
		{"archived beats sold", model.Listing{Approved: true, Sold: true, Archived: true}, "archived"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusLabel(&tc.l))
		})
	}
}
