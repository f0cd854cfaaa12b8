package extractor

import (
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	"github.com/ternarybob/ordermirror/internal/models"
)

// ErrNotKeyable marks a row missing both identifiers a record needs to be
// upserted. Such rows are discarded; every other missing field passes
// through as empty.
var ErrNotKeyable = errors.New("record has no order number or external identifier")

// ListExtractor pulls per-record summary fields from list-row markup.
// It operates on captured HTML — no navigation happens here.
type ListExtractor struct {
	selectors Selectors
	logger    arbor.ILogger
}

// NewListExtractor creates a list-view extractor
func NewListExtractor(selectors Selectors, logger arbor.ILogger) *ListExtractor {
	return &ListExtractor{
		selectors: selectors,
		logger:    logger,
	}
}

// ExtractRows parses a captured list page and extracts every row on it.
// Rows that cannot be keyed are logged and dropped; a field failure in one
// row never blocks its siblings.
func (e *ListExtractor) ExtractRows(pageHTML string, pageNumber int) ([]*models.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}

	var records []*models.RawRecord
	doc.Find(e.selectors.Row).Each(func(i int, row *goquery.Selection) {
		record, err := e.ExtractRow(row)
		if err != nil {
			e.logger.Warn().
				Int("page", pageNumber).
				Int("row", i).
				Err(err).
				Msg("Row discarded")
			return
		}
		record.PageNumber = pageNumber
		record.RowIndex = i
		records = append(records, record)
	})

	e.logger.Debug().
		Int("page", pageNumber).
		Int("records", len(records)).
		Msg("List page extracted")

	return records, nil
}

// ExtractRow extracts one row. Fields are read independently so a failure
// in one never blocks the others.
func (e *ListExtractor) ExtractRow(row *goquery.Selection) (*models.RawRecord, error) {
	record := &models.RawRecord{}

	if idNode := row.Find(e.selectors.ExternalID).First(); idNode.Length() > 0 {
		record.ExternalID = strings.TrimSpace(idNode.AttrOr(e.selectors.ExternalAttr, ""))
	}
	if record.ExternalID == "" {
		// Some builds put the attribute on the row itself
		record.ExternalID = strings.TrimSpace(row.AttrOr(e.selectors.ExternalAttr, ""))
	}

	// Tag badges render inline with the customer name, so the name is read
	// with a text-node walk that skips the badge subtree entirely.
	if cell := row.Find(e.selectors.CustomerCell).First(); cell.Length() > 0 {
		record.CustomerName = textExcluding(cell, e.selectors.TagContainer)
	}

	record.Title = strings.TrimSpace(row.Find(e.selectors.TitleCell).First().Text())
	record.Status = strings.TrimSpace(row.Find(e.selectors.StatusCell).First().Text())
	record.OrderNumber = strings.TrimSpace(row.Find(e.selectors.OrderCell).First().Text())

	record.DateInAttr, record.DateInText = e.dateField(row, e.selectors.DateInCell)
	record.ShipDateAttr, record.ShipDateText = e.dateField(row, e.selectors.ShipDateCell)

	record.Tags = e.ExtractTags(row)

	if link := row.Find(e.selectors.DetailLink).First(); link.Length() > 0 {
		record.DetailURL = link.AttrOr("href", "")
	}

	if record.OrderNumber == "" || record.ExternalID == "" {
		return nil, ErrNotKeyable
	}

	return record, nil
}

// ExtractTags reads {code, quantity} pairs from the badge collection scoped
// to the row. No badges is a valid state, not an error.
func (e *ListExtractor) ExtractTags(row *goquery.Selection) []models.TagCount {
	var tags []models.TagCount
	row.Find(e.selectors.TagContainer).Find(e.selectors.Badge).Each(func(_ int, badge *goquery.Selection) {
		code := strings.TrimSpace(badge.Find(e.selectors.BadgeCode).First().Text())
		if code == "" {
			// Badge markup without a dedicated code element carries the
			// code as its own text.
			code = strings.TrimSpace(textExcluding(badge, e.selectors.BadgeQty))
		}
		if code == "" {
			return
		}
		quantity := 1
		if qtyText := strings.TrimSpace(badge.Find(e.selectors.BadgeQty).First().Text()); qtyText != "" {
			if q, err := strconv.Atoi(strings.TrimPrefix(qtyText, "x")); err == nil && q > 0 {
				quantity = q
			}
		}
		tags = append(tags, models.TagCount{Code: strings.ToUpper(code), Quantity: quantity})
	})
	return tags
}

// dateField reads a date cell's machine-readable attribute first with the
// raw text as fallback
func (e *ListExtractor) dateField(row *goquery.Selection, cellSelector string) (attr, raw string) {
	cell := row.Find(cellSelector).First()
	if cell.Length() == 0 {
		return "", ""
	}
	return strings.TrimSpace(cell.AttrOr(e.selectors.DateAttr, "")), strings.TrimSpace(cell.Text())
}

// textExcluding collects the text nodes under sel, skipping any subtree
// that matches the exclusion selector. This is the generic "structured text
// with scoped exclusion" walk.
func textExcluding(sel *goquery.Selection, exclude string) string {
	var b strings.Builder
	for _, node := range sel.Nodes {
		walkText(node, sel, exclude, &b)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(b.String()), " "))
}

func walkText(n *html.Node, root *goquery.Selection, exclude string, b *strings.Builder) {
	if n.Type == html.ElementNode && exclude != "" {
		wrapped := wrapNode(root, n)
		if wrapped.Is(exclude) {
			return
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteString(" ")
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, root, exclude, b)
	}
}

func wrapNode(root *goquery.Selection, n *html.Node) *goquery.Selection {
	s := root.Slice(0, 0) // empty selection sharing the document
	return s.AddNodes(n)
}
