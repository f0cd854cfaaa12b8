package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ternarybob/ordermirror/internal/app"
	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/models"
	"github.com/ternarybob/ordermirror/internal/services/images"
	"github.com/ternarybob/ordermirror/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))

	org := models.Organization{Name: "Riverside Prints"}
	require.NoError(t, db.Create(&org).Error)
	customer := models.Customer{OrganizationID: org.ID, Name: "Riverside PTA"}
	require.NoError(t, db.Create(&customer).Error)
	tag := models.Tag{OrganizationID: org.ID, Code: "DTF", Name: "Direct to Film"}
	require.NoError(t, db.Create(&tag).Error)

	ship := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.Order{
		OrganizationID: org.ID,
		CustomerID:     customer.ID,
		OrderNumber:    "ORD-1",
		JobNumber:      "j-1",
		Title:          "Spirit Shirts",
		Status:         "In Production",
		ShipDate:       &ship,
		Tags:           []models.OrderTag{{TagID: tag.ID, Quantity: 12}},
	}).Error)

	logger := arbor.NewLogger()
	config := common.DefaultConfig()
	config.Organization = "Riverside Prints"

	application := &app.App{
		Config: config,
		Logger: logger,
		DB:     db,
		Images: images.NewService(db, images.NewMockSigner(), 30*time.Minute, 7*24*time.Hour, logger),
	}
	return New(application), db
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Riverside Prints", body["organization"])
}

func TestHandleListOrders(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name  string
		query string
		count int
	}{
		{"all orders", "", 1},
		{"matching tag", "?tag=dtf", 1},
		{"non-matching tag", "?tag=EMB", 0},
		{"matching status", "?status=In+Production", 1},
		{"matching search", "?q=spirit", 1},
		{"ship date window", "?ship_from=2025-03-01&ship_to=2025-03-31", 1},
		{"ship date window misses", "?ship_from=2025-04-01", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, http.MethodGet, "/api/orders"+tt.query)
			require.Equal(t, http.StatusOK, w.Code)

			var body struct {
				Orders []models.Order `json:"orders"`
				Count  int            `json:"count"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.count, body.Count)
			assert.Len(t, body.Orders, tt.count)
		})
	}
}

func TestHandleListOrdersBadDate(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/orders?ship_from=03/14/2025")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetOrder(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/orders/ORD-1")
	require.Equal(t, http.StatusOK, w.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, "Spirit Shirts", order.Title)
	assert.Equal(t, "Riverside PTA", order.Customer.Name)

	w = doRequest(s, http.MethodGet, "/api/orders/ORD-404")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRefreshImages(t *testing.T) {
	s, db := newTestServer(t)

	// Give the seeded order an expired signed URL.
	stale, err := images.NewMockSigner().Sign("https://x.net/a/t.png", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Order{}).
		Where("order_number = ?", "ORD-1").
		Update("images", models.ImageAssets{{
			AssetTag:          "front",
			ThumbnailURL:      stale,
			ThumbnailBasePath: "https://x.net/a/t.png",
		}}).Error)

	w := doRequest(s, http.MethodPost, "/api/orders/ORD-1/images/refresh")
	require.Equal(t, http.StatusOK, w.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	require.Len(t, order.Images, 1)
	assert.NotEqual(t, stale, order.Images[0].ThumbnailURL)
	assert.Equal(t, "https://x.net/a/t.png", order.Images[0].ThumbnailBasePath)

	w = doRequest(s, http.MethodPost, "/api/orders/ORD-404/images/refresh")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRefreshImagesUnconfigured(t *testing.T) {
	s, _ := newTestServer(t)
	s.app.Images = nil

	w := doRequest(s, http.MethodPost, "/api/orders/ORD-1/images/refresh")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
