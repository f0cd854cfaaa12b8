package models

import "time"

// TagCount is one tag badge read from a list row: a process code and the
// number of units that process applies to.
type TagCount struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

// RawRecord is the unsanitized output of list-view extraction for one row.
// Fields are captured independently; empty values mean the field was absent
// or unreadable, which only disqualifies the record when it cannot be keyed.
type RawRecord struct {
	ExternalID   string     `json:"external_id"`
	OrderNumber  string     `json:"order_number"`
	CustomerName string     `json:"customer_name"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	DateInAttr   string     `json:"date_in_attr"`   // machine-readable attribute value, preferred
	DateInText   string     `json:"date_in_text"`   // raw cell text fallback
	ShipDateAttr string     `json:"ship_date_attr"`
	ShipDateText string     `json:"ship_date_text"`
	Tags         []TagCount `json:"tags"`
	DetailURL    string     `json:"detail_url"`
	PageNumber   int        `json:"page_number"`
	RowIndex     int        `json:"row_index"`
}

// CleanRecord is a RawRecord after sanitization plus detail-view data,
// ready for the upsert engine.
type CleanRecord struct {
	ExternalID   string          `json:"external_id"`
	OrderNumber  string          `json:"order_number"`
	CustomerName string          `json:"customer_name"`
	Title        string          `json:"title"`
	Status       string          `json:"status"`
	DateIn       *time.Time      `json:"date_in,omitempty"`
	ShipDate     *time.Time      `json:"ship_date,omitempty"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	CreatedAt    *time.Time      `json:"created_at,omitempty"` // nil = omit from write so defaults survive
	Tags         []TagCount      `json:"tags"`
	Images       []ImageAsset    `json:"images,omitempty"`
	Timeline     TimelineEntries `json:"timeline,omitempty"`
	Emails       []string        `json:"emails,omitempty"`
	Phones       []string        `json:"phones,omitempty"`
	Enhancement  string          `json:"enhancement,omitempty"`
}

// EnhancementLevel classifies how much of the best-effort detail extraction
// succeeded for a record.
const (
	EnhancementBasic   = "basic"
	EnhancementPartial = "partial"
	EnhancementFull    = "full"
)

// DetailExtraction is the output of detail-view extraction
type DetailExtraction struct {
	Images      []ImageAsset  `json:"images"`
	Enhancement *Enhancement  `json:"enhancement,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"` // data-quality notes, never gate persistence
}

// Enhancement holds the optional best-effort detail data plus which
// sub-extractions produced it, so callers can assess completeness.
type Enhancement struct {
	Emails      []string        `json:"emails,omitempty"`
	Phones      []string        `json:"phones,omitempty"`
	LineItems   []LineItem      `json:"line_items,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	Timeline    TimelineEntries `json:"timeline,omitempty"`
	Succeeded   []string        `json:"succeeded"` // sub-extraction names that completed
	Level       string          `json:"level"`     // basic, partial, or full
}

// LineItem is one heuristic table row from the detail view
type LineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

// Attachment is one file link discovered on the detail view
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
