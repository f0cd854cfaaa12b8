package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/ordermirror/internal/models"
)

// Sub-extraction names reported in Enhancement.Succeeded
const (
	subImages      = "images"
	subContacts    = "contacts"
	subLineItems   = "line_items"
	subAttachments = "attachments"
	subTimeline    = "timeline"
)

var (
	// Thumbnail-shaped URLs carry a size suffix or a thumbs path segment
	thumbnailRe = regexp.MustCompile(`(?i)(_thumb|_sm|_small|thumbnail|/thumbs?/|[-_]\d{2,3}x\d{2,3})`)
	emailRe     = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe     = regexp.MustCompile(`\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}`)
	qtyRe       = regexp.MustCompile(`\b(\d{1,4})\b`)
)

// DetailExtractor reads image asset references and optional enhanced fields
// from a record's detail page. Both URLs of an asset pair are already
// present in the markup, so extraction never clicks or opens a modal.
type DetailExtractor struct {
	selectors Selectors
	logger    arbor.ILogger
}

// NewDetailExtractor creates a detail-view extractor
func NewDetailExtractor(selectors Selectors, logger arbor.ILogger) *DetailExtractor {
	return &DetailExtractor{
		selectors: selectors,
		logger:    logger,
	}
}

// Extract parses a captured detail page. Image extraction is the required
// part; enhanced extraction is best-effort and degrades the record to basic
// data rather than failing it.
func (e *DetailExtractor) Extract(pageHTML string, enhanced bool) (*models.DetailExtraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	result := &models.DetailExtraction{}
	result.Images = e.extractImages(doc, result)

	if enhanced {
		result.Enhancement = e.extractEnhancement(doc)
	}

	return result, nil
}

// extractImages scans asset image containers. A container with no image and
// no hyperlink is a legitimately empty slot and is skipped.
func (e *DetailExtractor) extractImages(doc *goquery.Document, result *models.DetailExtraction) []models.ImageAsset {
	var assets []models.ImageAsset

	doc.Find(e.selectors.ImageContainer).Each(func(i int, container *goquery.Selection) {
		img := container.Find("img").First()
		link := container.Find("a").First()
		if img.Length() == 0 && link.Length() == 0 {
			return // empty slot
		}

		asset := models.ImageAsset{
			AssetTag: strings.TrimSpace(container.AttrOr("data-asset-tag", "")),
		}
		if asset.AssetTag == "" {
			asset.AssetTag = fmt.Sprintf("asset-%d", i+1)
		}

		asset.ThumbnailURL = strings.TrimSpace(img.AttrOr("src", ""))
		asset.HighResURL = strings.TrimSpace(link.AttrOr("href", ""))

		// Validation informs data quality; it does not gate persistence.
		if asset.ThumbnailURL != "" && !IsThumbnailShaped(asset.ThumbnailURL) {
			warning := fmt.Sprintf("asset %s: thumbnail URL does not look thumbnail-shaped", asset.AssetTag)
			result.Warnings = append(result.Warnings, warning)
			e.logger.Warn().Str("url", asset.ThumbnailURL).Msg(warning)
		}
		if asset.HighResURL != "" && !IsHighResShaped(asset.HighResURL) {
			warning := fmt.Sprintf("asset %s: high-res URL looks thumbnail-shaped", asset.AssetTag)
			result.Warnings = append(result.Warnings, warning)
			e.logger.Warn().Str("url", asset.HighResURL).Msg(warning)
		}

		asset.ThumbnailBasePath = BasePath(asset.ThumbnailURL)
		asset.HighResBasePath = BasePath(asset.HighResURL)

		assets = append(assets, asset)
	})

	return assets
}

// extractEnhancement runs each optional heuristic independently and records
// which ones produced data. Any panic or failure here degrades the record,
// never aborts it.
func (e *DetailExtractor) extractEnhancement(doc *goquery.Document) *models.Enhancement {
	enh := &models.Enhancement{}

	e.try(subContacts, func() bool {
		text := doc.Text()
		enh.Emails = dedupe(emailRe.FindAllString(text, -1))
		enh.Phones = dedupe(phoneRe.FindAllString(text, -1))
		return len(enh.Emails) > 0 || len(enh.Phones) > 0
	}, enh)

	e.try(subLineItems, func() bool {
		doc.Find(e.selectors.LineItemRow).Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() == 0 {
				return
			}
			item := models.LineItem{
				Description: strings.TrimSpace(cells.First().Text()),
				Quantity:    1,
			}
			if item.Description == "" {
				return
			}
			if cells.Length() > 1 {
				if m := qtyRe.FindString(cells.Eq(1).Text()); m != "" {
					if q, err := strconv.Atoi(m); err == nil {
						item.Quantity = q
					}
				}
			}
			enh.LineItems = append(enh.LineItems, item)
		})
		return len(enh.LineItems) > 0
	}, enh)

	e.try(subAttachments, func() bool {
		doc.Find(e.selectors.AttachmentLink).Each(func(_ int, a *goquery.Selection) {
			href := strings.TrimSpace(a.AttrOr("href", ""))
			if href == "" {
				return
			}
			name := strings.TrimSpace(a.Text())
			if name == "" {
				name = href[strings.LastIndex(href, "/")+1:]
			}
			enh.Attachments = append(enh.Attachments, models.Attachment{Name: name, URL: href})
		})
		return len(enh.Attachments) > 0
	}, enh)

	e.try(subTimeline, func() bool {
		doc.Find(e.selectors.TimelineEntry).Each(func(_ int, entry *goquery.Selection) {
			text := strings.TrimSpace(entry.Text())
			if text == "" {
				return
			}
			enh.Timeline = append(enh.Timeline, models.TimelineEntry{Text: text})
		})
		return len(enh.Timeline) > 0
	}, enh)

	enh.Level = enhancementLevel(len(enh.Succeeded))
	return enh
}

// try runs one sub-extraction, recovering from any panic so a heuristic
// failure degrades the record instead of aborting it
func (e *DetailExtractor) try(name string, fn func() bool, enh *models.Enhancement) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().
				Str("sub_extraction", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Enhanced extraction failed, degrading to basic data")
		}
	}()
	if fn() {
		enh.Succeeded = append(enh.Succeeded, name)
	}
}

func enhancementLevel(succeeded int) string {
	switch {
	case succeeded >= 3:
		return models.EnhancementFull
	case succeeded >= 1:
		return models.EnhancementPartial
	default:
		return models.EnhancementBasic
	}
}

// IsThumbnailShaped reports whether a URL's path/name matches the thumbnail
// pattern
func IsThumbnailShaped(rawURL string) bool {
	return thumbnailRe.MatchString(pathOf(rawURL))
}

// IsHighResShaped reports whether a URL looks full-resolution, i.e. does
// NOT match the thumbnail pattern
func IsHighResShaped(rawURL string) bool {
	return !thumbnailRe.MatchString(pathOf(rawURL))
}

// BasePath strips query and signature from a signed URL, leaving the
// durable scheme://host/path portion used to regenerate access later
func BasePath(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		key := strings.ToLower(v)
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}
