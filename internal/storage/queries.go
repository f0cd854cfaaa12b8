// -----------------------------------------------------------------------
// Last Modified: Monday, 3rd August 2026 3:36:09 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ternarybob/ordermirror/internal/models"
)

// OrderFilter selects orders for the downstream read API. All fields are
// optional and combine with AND.
type OrderFilter struct {
	Organization string
	TagCode      string
	Status       string
	ShipFrom     *time.Time
	ShipTo       *time.Time
	Search       string // matches order number, job number, title, customer name
	Limit        int
	Offset       int
}

// FilterOrders returns denormalized order rows joined with tag and customer
// data. Consumers rely on every row carrying a consistent, fully-replaced
// tag set and valid (possibly null) dates — which the upsert engine
// guarantees.
func FilterOrders(ctx context.Context, db *gorm.DB, filter OrderFilter) ([]models.Order, error) {
	q := db.WithContext(ctx).Model(&models.Order{}).
		Preload("Customer").
		Preload("Tags").
		Preload("Tags.Tag")

	if filter.Organization != "" {
		q = q.Joins("JOIN organizations ON organizations.id = orders.organization_id").
			Where("organizations.name = ?", filter.Organization)
	}
	if filter.Status != "" {
		q = q.Where("orders.status = ?", filter.Status)
	}
	if filter.ShipFrom != nil {
		q = q.Where("orders.ship_date >= ?", *filter.ShipFrom)
	}
	if filter.ShipTo != nil {
		q = q.Where("orders.ship_date <= ?", *filter.ShipTo)
	}
	if filter.TagCode != "" {
		q = q.Where(
			"orders.id IN (?)",
			db.Model(&models.OrderTag{}).
				Select("order_tags.order_id").
				Joins("JOIN tags ON tags.id = order_tags.tag_id").
				Where("tags.code = ?", strings.ToUpper(filter.TagCode)),
		)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Joins("JOIN customers ON customers.id = orders.customer_id").
			Where(
				"LOWER(orders.order_number) LIKE ? OR LOWER(orders.job_number) LIKE ? OR LOWER(orders.title) LIKE ? OR LOWER(customers.name) LIKE ?",
				pattern, pattern, pattern, pattern,
			)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q = q.Limit(limit).Offset(filter.Offset).Order("orders.ship_date IS NULL, orders.ship_date ASC, orders.id ASC")

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("order query failed: %w", err)
	}
	return orders, nil
}

// GetOrder loads one order with its customer and tags by order number
func GetOrder(ctx context.Context, db *gorm.DB, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := db.WithContext(ctx).
		Preload("Customer").
		Preload("Tags").
		Preload("Tags.Tag").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
