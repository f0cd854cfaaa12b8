// -----------------------------------------------------------------------
// Last Modified: Tuesday, 21st July 2026 9:48:21 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Organization is the tenant boundary. Provisioned once at bootstrap,
// read by every crawl run.
type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Customer belongs to exactly one organization, unique per (organization, name).
// Created on first sighting, updated in place thereafter.
type Customer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;uniqueIndex:ux_customers_org_name" json:"organization_id"`
	Name           string    `gorm:"not null;uniqueIndex:ux_customers_org_name" json:"name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Tag is a catalog entry for a production process (e.g. embroidery),
// fixed per organization in steady state.
type Tag struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;uniqueIndex:ux_tags_org_code" json:"organization_id"`
	Code           string    `gorm:"not null;uniqueIndex:ux_tags_org_code" json:"code"`
	Name           string    `gorm:"not null" json:"name"`
	Color          string    `json:"color,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Order is the central record, keyed by the source system's order number.
// The local row is a mirror of the remote record: every successful crawl of
// the same order fully overwrites fields, tag set, and images.
type Order struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	OrganizationID  uint           `gorm:"not null;index" json:"organization_id"`
	CustomerID      uint           `gorm:"not null;index" json:"customer_id"`
	Customer        Customer       `json:"customer,omitempty"`
	OrderNumber     string         `gorm:"uniqueIndex;not null" json:"order_number"`
	JobNumber       string         `gorm:"index" json:"job_number"`
	Title           string         `gorm:"not null" json:"title"`
	Status          string         `gorm:"index" json:"status"`
	DateIn          *time.Time     `json:"date_in,omitempty"`
	ShipDate        *time.Time     `gorm:"index" json:"ship_date,omitempty"`
	DueDate         *time.Time     `json:"due_date,omitempty"`
	Images          ImageAssets    `gorm:"type:text" json:"images,omitempty"`
	JobDescriptions TimelineEntries `gorm:"type:text" json:"job_descriptions,omitempty"`
	ContactEmails   StringList     `gorm:"type:text" json:"contact_emails,omitempty"`
	ContactPhones   StringList     `gorm:"type:text" json:"contact_phones,omitempty"`
	Enhancement     string         `json:"enhancement,omitempty"` // "basic", "partial", or "full"
	Tags            []OrderTag     `json:"tags,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// OrderTag joins an order to a tag with the unit quantity for that process.
// The association set for an order is fully derived: it is always exactly
// the tags discovered on the most recent successful crawl.
type OrderTag struct {
	OrderID  uint `gorm:"primaryKey" json:"order_id"`
	TagID    uint `gorm:"primaryKey" json:"tag_id"`
	Tag      Tag  `json:"tag,omitempty"`
	Quantity int  `gorm:"not null;default:1" json:"quantity"`
}

// ImageAsset holds one asset's signed URLs plus the durable base paths the
// signed URLs can be regenerated from. Base paths never expire; signed URLs
// do, and never carry identity.
type ImageAsset struct {
	AssetTag          string `json:"asset_tag"`
	ThumbnailURL      string `json:"thumbnail_url"`
	HighResURL        string `json:"high_res_url"`
	ThumbnailBasePath string `json:"thumbnail_base_path"`
	HighResBasePath   string `json:"high_res_base_path"`
}

// ImageAssets is stored as a JSON column on the order row
type ImageAssets []ImageAsset

func (a ImageAssets) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image assets: %w", err)
	}
	return string(data), nil
}

func (a *ImageAssets) Scan(value interface{}) error {
	return scanJSON(value, a)
}

// TimelineEntry is one job-description/timeline line from the detail view
type TimelineEntry struct {
	Text      string     `json:"text"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// TimelineEntries is stored as a JSON column on the order row
type TimelineEntries []TimelineEntry

func (t TimelineEntries) Value() (driver.Value, error) {
	if len(t) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timeline entries: %w", err)
	}
	return string(data), nil
}

func (t *TimelineEntries) Scan(value interface{}) error {
	return scanJSON(value, t)
}

// StringList is stored as a JSON column
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(data), nil
}

func (s *StringList) Scan(value interface{}) error {
	return scanJSON(value, s)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}
