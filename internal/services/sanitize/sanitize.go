package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/ordermirror/internal/models"
)

// Pure field sanitization. No I/O here — callers decide what to log from
// the returned flags.

const (
	// MaxNameLength bounds customer names and titles. Longer values are
	// truncated, never rejected.
	MaxNameLength = 100

	// UnknownCustomer replaces names that reduce to fewer than two
	// characters after cleanup.
	UnknownCustomer = "Unknown Customer"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	allowlistRe  = regexp.MustCompile(`[^\w &.,'\-]`)
	// Process codes and bare small quantities bleed from badges into free
	// text; strip them before case folding.
	tagCodeRe  = regexp.MustCompile(`\b[A-Z]{2,5}(?:-\d+)?\b`)
	bareIntRe  = regexp.MustCompile(`\b\d{1,3}\b`)
	usDateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
)

// Acronyms preserved upper-case through title folding regardless of input case
var acronyms = map[string]bool{
	"LLC":  true,
	"INC":  true,
	"LTD":  true,
	"USA":  true,
	"US":   true,
	"UK":   true,
	"DTF":  true,
	"DTG":  true,
	"UV":   true,
	"HTV":  true,
	"VIP":  true,
	"PTA":  true,
	"PTO":  true,
	"FC":   true,
	"HS":   true,
	"JV":   true,
	"II":   true,
	"III":  true,
	"IV":   true,
}

// CleanText normalizes whitespace, strips characters outside the allow-list
// (word characters, &, ., comma, apostrophe, hyphen), and truncates to
// maxLen. The second return reports whether truncation happened.
func CleanText(s string, maxLen int) (string, bool) {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = allowlistRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if maxLen > 0 && len(s) > maxLen {
		return strings.TrimSpace(s[:maxLen]), true
	}
	return s, false
}

// CleanCustomerName applies CleanText and substitutes the placeholder when
// the result is too short to be a plausible name.
func CleanCustomerName(s string) (string, bool) {
	cleaned, truncated := CleanText(s, MaxNameLength)
	if len(cleaned) < 2 {
		return UnknownCustomer, truncated
	}
	return TitleCase(cleaned), truncated
}

// CleanTitle strips embedded tag codes and bare quantities from a raw title,
// then cleans and title-cases it.
func CleanTitle(s string) (string, bool) {
	s = tagCodeRe.ReplaceAllString(s, " ")
	s = bareIntRe.ReplaceAllString(s, " ")
	cleaned, truncated := CleanText(s, MaxNameLength)
	return TitleCase(cleaned), truncated
}

// TitleCase lower-cases the input then title-cases each word, preserving
// the acronym allow-list upper-case regardless of input case.
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if acronyms[strings.ToUpper(w)] {
			words[i] = strings.ToUpper(w)
			continue
		}
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// ParseDate resolves a date from a machine-readable attribute first, falling
// back to extracting a MM/DD/YYYY-shaped substring from noisy raw text.
// Returns nil when neither source parses — an absent date is valid.
func ParseDate(attr, raw string) *time.Time {
	if attr != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(attr)); err == nil {
				return &t
			}
		}
	}
	if m := usDateRe.FindStringSubmatch(raw); m != nil {
		if t, err := time.Parse("1/2/2006", fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])); err == nil {
			return &t
		}
	}
	return nil
}

// SanitizeRecord converts a raw list-row capture into a clean record.
// Warnings carry non-fatal data-quality notes (truncations, placeholder
// substitutions) for the caller to log.
func SanitizeRecord(raw *models.RawRecord) (*models.CleanRecord, []string) {
	var warnings []string

	customer, custTruncated := CleanCustomerName(raw.CustomerName)
	if custTruncated {
		warnings = append(warnings, fmt.Sprintf("customer name truncated to %d characters", MaxNameLength))
	}
	if customer == UnknownCustomer && strings.TrimSpace(raw.CustomerName) != "" {
		warnings = append(warnings, "customer name reduced to placeholder after cleanup")
	}

	title, titleTruncated := CleanTitle(raw.Title)
	if titleTruncated {
		warnings = append(warnings, fmt.Sprintf("title truncated to %d characters", MaxNameLength))
	}

	status, _ := CleanText(raw.Status, 50)

	clean := &models.CleanRecord{
		ExternalID:   strings.TrimSpace(raw.ExternalID),
		OrderNumber:  strings.TrimSpace(raw.OrderNumber),
		CustomerName: customer,
		Title:        title,
		Status:       status,
		DateIn:       ParseDate(raw.DateInAttr, raw.DateInText),
		ShipDate:     ParseDate(raw.ShipDateAttr, raw.ShipDateText),
		Tags:         raw.Tags,
	}

	// An unparseable date-in is simply omitted from the write so an
	// existing or default value survives instead of being clobbered.
	if clean.DateIn != nil {
		clean.CreatedAt = clean.DateIn
	}

	return clean, warnings
}

// Validate enforces the required-field check before any write. A failing
// record is routed to the error list, never persisted.
func Validate(record *models.CleanRecord) error {
	var missing []string
	if record.ExternalID == "" {
		missing = append(missing, "external_id")
	}
	if record.CustomerName == "" {
		missing = append(missing, "customer_name")
	}
	if record.OrderNumber == "" {
		missing = append(missing, "order_number")
	}
	if record.Title == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required fields missing after sanitization: %s", strings.Join(missing, ", "))
	}
	return nil
}
