package extractor

// Selectors pin the extraction to the remote UI's markup. The remote DOM is
// a partially-unstable external data source, so every hook lives here rather
// than being scattered through the extraction code.
type Selectors struct {
	// List view
	Row          string `toml:"row"`           // one job row
	ExternalID   string `toml:"external_id"`   // element carrying the job id attribute
	ExternalAttr string `toml:"external_attr"` // attribute holding the id
	CustomerCell string `toml:"customer_cell"` // cell whose text nodes hold the customer name
	TagContainer string `toml:"tag_container"` // badge subtree excluded from the customer text walk
	Badge        string `toml:"badge"`         // one tag badge
	BadgeCode    string `toml:"badge_code"`    // code element within a badge
	BadgeQty     string `toml:"badge_qty"`     // quantity element within a badge
	TitleCell    string `toml:"title_cell"`
	StatusCell   string `toml:"status_cell"`
	OrderCell    string `toml:"order_cell"`
	DateInCell   string `toml:"date_in_cell"`
	ShipDateCell string `toml:"ship_date_cell"`
	DateAttr     string `toml:"date_attr"` // machine-readable date attribute, preferred over cell text
	DetailLink   string `toml:"detail_link"`
	Pagination   string `toml:"pagination"`  // one control per result page
	NextPage     string `toml:"next_page"`   // pagination advance control
	RowContainer string `toml:"row_container"`

	// Detail view
	ImageContainer string `toml:"image_container"` // one asset slot (may legitimately be empty)
	LoginForm      string `toml:"login_form"`
	LoginUser      string `toml:"login_user"`
	LoginPass      string `toml:"login_pass"`
	LoginSubmit    string `toml:"login_submit"`
	LineItemRow    string `toml:"line_item_row"`
	AttachmentLink string `toml:"attachment_link"`
	TimelineEntry  string `toml:"timeline_entry"`
}

// DefaultSelectors returns the selector set for the current remote UI build
func DefaultSelectors() Selectors {
	return Selectors{
		Row:          "tr.job-row",
		ExternalID:   "[data-job-id]",
		ExternalAttr: "data-job-id",
		CustomerCell: "td.customer",
		TagContainer: ".tag-badges",
		Badge:        ".tag-badge",
		BadgeCode:    ".badge-code",
		BadgeQty:     ".badge-qty",
		TitleCell:    "td.description",
		StatusCell:   "td.status",
		OrderCell:    "td.order-number",
		DateInCell:   "td.date-in",
		ShipDateCell: "td.ship-date",
		DateAttr:     "data-date",
		DetailLink:   "a.job-detail-link",
		Pagination:   "ul.pagination li.page-item a.page-link[data-page]",
		NextPage:     "ul.pagination a.page-next",
		RowContainer: "table.job-list tbody",

		ImageContainer: ".asset-image-container",
		LoginForm:      "form#login",
		LoginUser:      "input[name=username]",
		LoginPass:      "input[name=password]",
		LoginSubmit:    "button[type=submit]",
		LineItemRow:    "table.line-items tbody tr",
		AttachmentLink: "a.attachment",
		TimelineEntry:  ".job-timeline .entry",
	}
}
