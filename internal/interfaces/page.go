// -----------------------------------------------------------------------
// Last Modified: Thursday, 25th June 2026 4:05:12 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/ordermirror/internal/models"
)

// Page is the browser surface the crawl pipeline drives. The production
// implementation wraps a single chromedp browser context; tests substitute
// fakes. Every operation is bounded by its context — the page is the run's
// exclusively-owned resource and all calls are serialized.
type Page interface {
	// Navigate loads the given URL and waits for the load event
	Navigate(ctx context.Context, url string) error

	// Click dispatches a click on the first node matching the selector
	Click(ctx context.Context, selector string) error

	// SendKeys types text into the first node matching the selector
	SendKeys(ctx context.Context, selector, value string) error

	// WaitVisible blocks until the selector is visible or the timeout elapses
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// WaitNetworkIdle blocks until in-flight requests settle or the timeout elapses
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error

	// Exists reports whether at least one node matches the selector
	Exists(ctx context.Context, selector string) (bool, error)

	// Count returns the number of nodes matching the selector
	Count(ctx context.Context, selector string) (int, error)

	// ElementHeights returns the rendered height of every node matching the
	// selector, in document order
	ElementHeights(ctx context.Context, selector string) ([]float64, error)

	// HTML returns the outer HTML of the first node matching the selector
	HTML(ctx context.Context, selector string) (string, error)

	// CurrentURL returns the page's current location
	CurrentURL(ctx context.Context) (string, error)
}

// SessionPage extends Page with cookie export/import for session persistence
type SessionPage interface {
	Page

	// ExportCookies captures the browser's current cookies
	ExportCookies(ctx context.Context) ([]models.SessionCookie, error)

	// ImportCookies installs previously exported cookies into the browser
	ImportCookies(ctx context.Context, cookies []models.SessionCookie) error
}
