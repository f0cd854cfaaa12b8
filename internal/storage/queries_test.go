package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// seedOrders provisions one organization with three orders across two
// customers and two tag codes.
func seedOrders(t *testing.T, db *gorm.DB) {
	t.Helper()

	org := models.Organization{Name: "Riverside Prints"}
	require.NoError(t, db.Create(&org).Error)

	pta := models.Customer{OrganizationID: org.ID, Name: "Riverside PTA"}
	acme := models.Customer{OrganizationID: org.ID, Name: "Acme Widgets"}
	require.NoError(t, db.Create(&pta).Error)
	require.NoError(t, db.Create(&acme).Error)

	dtf := models.Tag{OrganizationID: org.ID, Code: "DTF", Name: "Direct to Film"}
	emb := models.Tag{OrganizationID: org.ID, Code: "EMB", Name: "Embroidery"}
	require.NoError(t, db.Create(&dtf).Error)
	require.NoError(t, db.Create(&emb).Error)

	orders := []models.Order{
		{
			OrganizationID: org.ID, CustomerID: pta.ID,
			OrderNumber: "ORD-1", JobNumber: "j-1", Title: "Spirit Shirts",
			Status: "In Production", ShipDate: day(2025, 3, 14),
			Tags: []models.OrderTag{{TagID: dtf.ID, Quantity: 12}},
		},
		{
			OrganizationID: org.ID, CustomerID: acme.ID,
			OrderNumber: "ORD-2", JobNumber: "j-2", Title: "Trade Show Polos",
			Status: "Queued", ShipDate: day(2025, 4, 1),
			Tags: []models.OrderTag{{TagID: emb.ID, Quantity: 40}},
		},
		{
			OrganizationID: org.ID, CustomerID: pta.ID,
			OrderNumber: "ORD-3", JobNumber: "j-3", Title: "Fall Banners",
			Status: "Queued", // no ship date yet
		},
	}
	for i := range orders {
		require.NoError(t, db.Create(&orders[i]).Error)
	}
}

func TestFilterOrders(t *testing.T) {
	db := openTestDB(t)
	seedOrders(t, db)
	ctx := context.Background()

	t.Run("no filter returns all ordered by ship date", func(t *testing.T) {
		orders, err := FilterOrders(ctx, db, OrderFilter{})
		require.NoError(t, err)
		require.Len(t, orders, 3)
		// Dated orders first in ascending order, undated last.
		assert.Equal(t, "ORD-1", orders[0].OrderNumber)
		assert.Equal(t, "ORD-2", orders[1].OrderNumber)
		assert.Equal(t, "ORD-3", orders[2].OrderNumber)
	})

	t.Run("by organization", func(t *testing.T) {
		orders, err := FilterOrders(ctx, db, OrderFilter{Organization: "Riverside Prints"})
		require.NoError(t, err)
		assert.Len(t, orders, 3)

		orders, err = FilterOrders(ctx, db, OrderFilter{Organization: "Ghost Org"})
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("by tag code", func(t *testing.T) {
		orders, err := FilterOrders(ctx, db, OrderFilter{TagCode: "emb"})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "ORD-2", orders[0].OrderNumber)
	})

	t.Run("by status", func(t *testing.T) {
		orders, err := FilterOrders(ctx, db, OrderFilter{Status: "Queued"})
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})

	t.Run("by ship date range", func(t *testing.T) {
		orders, err := FilterOrders(ctx, db, OrderFilter{
			ShipFrom: day(2025, 3, 20),
			ShipTo:   day(2025, 4, 15),
		})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "ORD-2", orders[0].OrderNumber)
	})

	t.Run("search matches customer name", func(t *testing.T) {
		orders, err := FilterOrders(ctx, db, OrderFilter{Search: "acme"})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "ORD-2", orders[0].OrderNumber)
	})

	t.Run("search matches title", func(t *testing.T) {
		orders, err := FilterOrders(ctx, db, OrderFilter{Search: "banner"})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "ORD-3", orders[0].OrderNumber)
	})

	t.Run("limit and offset", func(t *testing.T) {
		orders, err := FilterOrders(ctx, db, OrderFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, orders, 2)

		orders, err = FilterOrders(ctx, db, OrderFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "ORD-3", orders[0].OrderNumber)
	})

	t.Run("preloads customer and tags", func(t *testing.T) {
		orders, err := FilterOrders(ctx, db, OrderFilter{TagCode: "DTF"})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "Riverside PTA", orders[0].Customer.Name)
		require.Len(t, orders[0].Tags, 1)
		assert.Equal(t, "DTF", orders[0].Tags[0].Tag.Code)
		assert.Equal(t, 12, orders[0].Tags[0].Quantity)
	})
}

func TestGetOrder(t *testing.T) {
	db := openTestDB(t)
	seedOrders(t, db)

	order, err := GetOrder(context.Background(), db, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "Spirit Shirts", order.Title)
	assert.Equal(t, "Riverside PTA", order.Customer.Name)

	_, err = GetOrder(context.Background(), db, "ORD-404")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestBootstrap(t *testing.T) {
	db := openTestDB(t)
	logger := arbor.NewLogger()

	config := common.DefaultConfig()
	config.Organization = "Riverside Prints"
	config.Bootstrap.Tags = []common.BootstrapTag{
		{Code: "DTF", Name: "Direct to Film", Color: "#3355ff"},
		{Code: "EMB", Name: "Embroidery"},
	}

	require.NoError(t, Bootstrap(db, config, logger))

	var org models.Organization
	require.NoError(t, db.Where("name = ?", "Riverside Prints").First(&org).Error)

	var tags []models.Tag
	require.NoError(t, db.Where("organization_id = ?", org.ID).Find(&tags).Error)
	assert.Len(t, tags, 2)

	// Re-running must not duplicate anything.
	require.NoError(t, Bootstrap(db, config, logger))

	var orgCount, tagCount int64
	require.NoError(t, db.Model(&models.Organization{}).Count(&orgCount).Error)
	require.NoError(t, db.Model(&models.Tag{}).Count(&tagCount).Error)
	assert.EqualValues(t, 1, orgCount)
	assert.EqualValues(t, 2, tagCount)
}
