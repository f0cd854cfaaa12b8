package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/ordermirror/internal/models"
)

const listPageHTML = `
<html><body>
<table class="job-list"><tbody>
  <tr class="job-row" data-job-id="j-100">
    <td class="order-number">ORD-100</td>
    <td class="customer">
      Riverside PTA
      <span class="tag-badges">
        <span class="tag-badge"><span class="badge-code">DTF</span><span class="badge-qty">x12</span></span>
        <span class="tag-badge"><span class="badge-code">EMB</span><span class="badge-qty">x2</span></span>
      </span>
    </td>
    <td class="description">Spirit Shirts</td>
    <td class="status">In Production</td>
    <td class="date-in" data-date="2025-03-01">03/01/2025</td>
    <td class="ship-date">Ship: 03/14/2025</td>
    <td><a class="job-detail-link" href="/jobs/j-100">View</a></td>
  </tr>
  <tr class="job-row" data-job-id="j-101">
    <td class="order-number">ORD-101</td>
    <td class="customer">Acme Widgets</td>
    <td class="description">Banners</td>
    <td class="status">Queued</td>
    <td class="date-in"></td>
    <td class="ship-date"></td>
  </tr>
  <tr class="job-row">
    <td class="order-number">ORD-102</td>
    <td class="customer">No Identifier Inc</td>
  </tr>
</tbody></table>
</body></html>`

func newListExtractor() *ListExtractor {
	return NewListExtractor(DefaultSelectors(), arbor.NewLogger())
}

func TestExtractRows(t *testing.T) {
	records, err := newListExtractor().ExtractRows(listPageHTML, 3)
	require.NoError(t, err)

	// The third row has no job id attribute and is discarded.
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "j-100", first.ExternalID)
	assert.Equal(t, "ORD-100", first.OrderNumber)
	assert.Equal(t, "Spirit Shirts", first.Title)
	assert.Equal(t, "In Production", first.Status)
	assert.Equal(t, "2025-03-01", first.DateInAttr)
	assert.Equal(t, "Ship: 03/14/2025", first.ShipDateText)
	assert.Equal(t, "", first.ShipDateAttr)
	assert.Equal(t, "/jobs/j-100", first.DetailURL)
	assert.Equal(t, 3, first.PageNumber)
	assert.Equal(t, 0, first.RowIndex)

	second := records[1]
	assert.Equal(t, "j-101", second.ExternalID)
	assert.Empty(t, second.Tags)
	assert.Equal(t, 1, second.RowIndex)
}

func TestExtractRowCustomerExcludesBadges(t *testing.T) {
	records, err := newListExtractor().ExtractRows(listPageHTML, 1)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	// The badge subtree sits inside the customer cell; its text must not
	// bleed into the name.
	assert.Equal(t, "Riverside PTA", records[0].CustomerName)
}

func TestExtractTags(t *testing.T) {
	records, err := newListExtractor().ExtractRows(listPageHTML, 1)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	assert.Equal(t, []models.TagCount{
		{Code: "DTF", Quantity: 12},
		{Code: "EMB", Quantity: 2},
	}, records[0].Tags)
}

func TestExtractTagsBadgeVariants(t *testing.T) {
	tests := []struct {
		name  string
		badge string
		want  []models.TagCount
	}{
		{
			name:  "code as badge text without code element",
			badge: `<span class="tag-badge">scr<span class="badge-qty">x4</span></span>`,
			want:  []models.TagCount{{Code: "SCR", Quantity: 4}},
		},
		{
			name:  "missing quantity defaults to one",
			badge: `<span class="tag-badge"><span class="badge-code">UV</span></span>`,
			want:  []models.TagCount{{Code: "UV", Quantity: 1}},
		},
		{
			name:  "unparseable quantity defaults to one",
			badge: `<span class="tag-badge"><span class="badge-code">DTF</span><span class="badge-qty">many</span></span>`,
			want:  []models.TagCount{{Code: "DTF", Quantity: 1}},
		},
		{
			name:  "empty badge skipped",
			badge: `<span class="tag-badge"></span>`,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rowHTML := `<table><tbody><tr class="job-row" data-job-id="j-1">
				<td class="order-number">ORD-1</td>
				<td class="customer">X<span class="tag-badges">` + tt.badge + `</span></td>
			</tr></tbody></table>`
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(rowHTML))
			require.NoError(t, err)
			row := doc.Find("tr.job-row").First()

			got := newListExtractor().ExtractTags(row)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractRowNotKeyable(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{
			name: "missing external id",
			row:  `<tr class="job-row"><td class="order-number">ORD-1</td></tr>`,
		},
		{
			name: "missing order number",
			row:  `<tr class="job-row" data-job-id="j-1"><td class="customer">Acme</td></tr>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(
				`<table><tbody>` + tt.row + `</tbody></table>`))
			require.NoError(t, err)
			row := doc.Find("tr.job-row").First()

			_, err = newListExtractor().ExtractRow(row)
			assert.ErrorIs(t, err, ErrNotKeyable)
		})
	}
}

func TestExtractRowMissingFieldsPassThroughEmpty(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<table><tbody><tr class="job-row" data-job-id="j-9">
			<td class="order-number">ORD-9</td>
		</tr></tbody></table>`))
	require.NoError(t, err)

	record, err := newListExtractor().ExtractRow(doc.Find("tr.job-row").First())
	require.NoError(t, err)
	assert.Empty(t, record.CustomerName)
	assert.Empty(t, record.Title)
	assert.Empty(t, record.Status)
	assert.Empty(t, record.Tags)
}
