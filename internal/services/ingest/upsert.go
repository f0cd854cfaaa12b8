package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/models"
	"github.com/ternarybob/ordermirror/internal/services/sanitize"
)

// UpsertEngine is the persistence boundary. A record's writes (customer,
// order, tags) commit independently of sibling records — forward progress
// over batch atomicity.
type UpsertEngine struct {
	db     *gorm.DB
	logger arbor.ILogger

	mu       sync.Mutex
	catalogs map[uint]map[string]uint // orgID -> tag code -> tag ID
}

// NewUpsertEngine creates an upsert engine over the given store
func NewUpsertEngine(db *gorm.DB, logger arbor.ILogger) *UpsertEngine {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &UpsertEngine{
		db:       db,
		logger:   logger,
		catalogs: make(map[uint]map[string]uint),
	}
}

// SaveRecord persists one clean record: resolve organization, resolve-or-
// create customer, create-or-update the order by its order number, and
// fully replace its tag associations.
func (e *UpsertEngine) SaveRecord(ctx context.Context, orgName string, record *models.CleanRecord) (*models.Order, error) {
	if err := sanitize.Validate(record); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	org, err := e.resolveOrganization(ctx, orgName)
	if err != nil {
		return nil, err
	}

	customer, err := e.resolveCustomer(ctx, org.ID, record)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer %q: %w", record.CustomerName, err)
	}

	catalog, err := e.tagCatalog(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tag catalog: %w", err)
	}

	order, err := e.upsertOrder(ctx, org.ID, customer.ID, record)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert order %q: %w", record.OrderNumber, err)
	}

	if err := e.replaceTags(ctx, order.ID, record.Tags, catalog); err != nil {
		return nil, fmt.Errorf("failed to replace tags for order %q: %w", record.OrderNumber, err)
	}

	return order, nil
}

func (e *UpsertEngine) resolveOrganization(ctx context.Context, name string) (*models.Organization, error) {
	var org models.Organization
	err := e.db.WithContext(ctx).Where("name = ?", name).First(&org).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("%w: %q", ErrOrgNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("organization lookup failed: %w", err)
	}
	return &org, nil
}

// resolveCustomer uses insert-with-conflict-ignore followed by a read-back,
// which avoids the check-then-insert race without a transaction-level lock.
// A recurring name with new contact data is updated in place.
func (e *UpsertEngine) resolveCustomer(ctx context.Context, orgID uint, record *models.CleanRecord) (*models.Customer, error) {
	candidate := models.Customer{
		OrganizationID: orgID,
		Name:           record.CustomerName,
	}
	if len(record.Emails) > 0 {
		candidate.Email = record.Emails[0]
	}
	if len(record.Phones) > 0 {
		candidate.Phone = record.Phones[0]
	}

	err := e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "name"}},
		DoNothing: true,
	}).Create(&candidate).Error
	if err != nil {
		return nil, err
	}

	var customer models.Customer
	if err := e.db.WithContext(ctx).
		Where("organization_id = ? AND name = ?", orgID, record.CustomerName).
		First(&customer).Error; err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if candidate.Email != "" && candidate.Email != customer.Email {
		updates["email"] = candidate.Email
	}
	if candidate.Phone != "" && candidate.Phone != customer.Phone {
		updates["phone"] = candidate.Phone
	}
	if len(updates) > 0 {
		if err := e.db.WithContext(ctx).Model(&customer).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return &customer, nil
}

// tagCatalog loads the organization's tag catalog once and caches the
// code-to-ID lookup for the run
func (e *UpsertEngine) tagCatalog(ctx context.Context, orgID uint) (map[string]uint, error) {
	e.mu.Lock()
	if catalog, ok := e.catalogs[orgID]; ok {
		e.mu.Unlock()
		return catalog, nil
	}
	e.mu.Unlock()

	var tags []models.Tag
	if err := e.db.WithContext(ctx).Where("organization_id = ?", orgID).Find(&tags).Error; err != nil {
		return nil, err
	}

	catalog := make(map[string]uint, len(tags))
	for _, t := range tags {
		catalog[t.Code] = t.ID
	}

	e.mu.Lock()
	e.catalogs[orgID] = catalog
	e.mu.Unlock()

	return catalog, nil
}

// upsertOrder creates the order on first sighting of its order number and
// fully overwrites the mutable fields on every subsequent sighting. The
// source system is the system of record; this row is a mirror.
func (e *UpsertEngine) upsertOrder(ctx context.Context, orgID, customerID uint, record *models.CleanRecord) (*models.Order, error) {
	var existing models.Order
	err := e.db.WithContext(ctx).Where("order_number = ?", record.OrderNumber).First(&existing).Error

	if err == gorm.ErrRecordNotFound {
		order := models.Order{
			OrganizationID:  orgID,
			CustomerID:      customerID,
			OrderNumber:     record.OrderNumber,
			JobNumber:       record.ExternalID,
			Title:           record.Title,
			Status:          record.Status,
			DateIn:          record.DateIn,
			ShipDate:        record.ShipDate,
			DueDate:         record.DueDate,
			Images:          record.Images,
			JobDescriptions: record.Timeline,
			ContactEmails:   record.Emails,
			ContactPhones:   record.Phones,
			Enhancement:     record.Enhancement,
		}
		// An unparseable created-timestamp is omitted so the column default
		// applies instead of garbage.
		if record.CreatedAt != nil {
			order.CreatedAt = *record.CreatedAt
		}
		if err := e.db.WithContext(ctx).Create(&order).Error; err != nil {
			return nil, err
		}
		return &order, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"customer_id":      customerID,
		"job_number":       record.ExternalID,
		"title":            record.Title,
		"status":           record.Status,
		"date_in":          record.DateIn,
		"ship_date":        record.ShipDate,
		"due_date":         record.DueDate,
		"images":           models.ImageAssets(record.Images),
		"job_descriptions": record.Timeline,
		"contact_emails":   models.StringList(record.Emails),
		"contact_phones":   models.StringList(record.Phones),
		"enhancement":      record.Enhancement,
	}
	if err := e.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return nil, err
	}

	var order models.Order
	if err := e.db.WithContext(ctx).Where("order_number = ?", record.OrderNumber).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// replaceTags deletes then re-inserts the order's tag associations. The
// authoritative tag set is always the set discovered on this crawl, so
// incremental diffing is avoidable complexity. Codes absent from the
// catalog are dropped with a warning — an unrecognized process code never
// aborts an otherwise-good record.
func (e *UpsertEngine) replaceTags(ctx context.Context, orderID uint, tags []models.TagCount, catalog map[string]uint) error {
	if err := e.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.OrderTag{}).Error; err != nil {
		return err
	}

	for _, tc := range tags {
		tagID, ok := catalog[tc.Code]
		if !ok {
			e.logger.Warn().
				Str("code", tc.Code).
				Int("order_id", int(orderID)).
				Msg("Tag code not in catalog, dropped")
			continue
		}
		quantity := tc.Quantity
		if quantity < 1 {
			quantity = 1
		}
		ot := models.OrderTag{OrderID: orderID, TagID: tagID, Quantity: quantity}
		if err := e.db.WithContext(ctx).Create(&ot).Error; err != nil {
			return err
		}
	}

	return nil
}
