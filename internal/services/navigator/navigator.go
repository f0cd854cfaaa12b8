// -----------------------------------------------------------------------
// Last Modified: Wednesday, 26th August 2026 10:14:30 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package navigator

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/interfaces"
	"github.com/ternarybob/ordermirror/internal/services/extractor"
)

// State is one phase of the list-page walk
type State string

const (
	StateOnListPage    State = "on_list_page"
	StateNavigating    State = "navigating"
	StateSynchronizing State = "synchronizing"
	StateRecovering    State = "recovering"
	StateDone          State = "done"
)

// Navigator walks the remote system's paginated job list. Pagination has no
// stable per-page URL, so recovery always replays clicks from page 1 — an
// explicit inefficiency traded for correctness.
type Navigator struct {
	page      interfaces.Page
	selectors extractor.Selectors
	config    common.CrawlerConfig
	listURL   string
	logger    arbor.ILogger
	limiter   *rate.Limiter

	state   State
	current int // 1-based page number
	total   int
}

// New creates a navigator for one crawl run
func New(page interfaces.Page, selectors extractor.Selectors, config common.CrawlerConfig, listURL string, logger arbor.ILogger) *Navigator {
	delay := config.NavigationDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &Navigator{
		page:      page,
		selectors: selectors,
		config:    config,
		listURL:   listURL,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Start navigates to the canonical list URL, synchronizes, and probes the
// total page count from the pagination controls. No controls means the
// result set is a single page.
func (n *Navigator) Start(ctx context.Context) error {
	n.state = StateNavigating
	if err := n.navigate(ctx, n.listURL); err != nil {
		return fmt.Errorf("failed to reach list page: %w", err)
	}
	n.synchronize(ctx)

	count, err := n.page.Count(ctx, n.selectors.Pagination)
	if err != nil {
		n.logger.Warn().Err(err).Msg("Page-count probe failed, assuming single page")
		count = 0
	}
	if count < 1 {
		count = 1
	}
	if n.config.MaxPages > 0 && count > n.config.MaxPages {
		n.logger.Info().
			Int("probed", count).
			Int("cap", n.config.MaxPages).
			Msg("Page count capped by configuration")
		count = n.config.MaxPages
	}

	n.total = count
	n.current = 1
	n.state = StateOnListPage

	n.logger.Info().
		Int("pages", n.total).
		Str("url", n.listURL).
		Msg("List walk started")

	return nil
}

// Advance moves to the next page. Returns false when the walk is complete.
func (n *Navigator) Advance(ctx context.Context) (bool, error) {
	if n.current >= n.total {
		n.state = StateDone
		return false, nil
	}

	n.state = StateNavigating
	if err := n.limiter.Wait(ctx); err != nil {
		return false, err
	}
	if err := n.page.Click(ctx, n.selectors.NextPage); err != nil {
		return false, fmt.Errorf("pagination click to page %d failed: %w", n.current+1, err)
	}

	n.synchronize(ctx)
	n.current++
	n.state = StateOnListPage

	n.logger.Debug().Int("page", n.current).Msg("Advanced to list page")
	return true, nil
}

// Recover re-derives a known navigation state after a failure anywhere
// downstream: renavigate the canonical list URL, replay pagination clicks
// from page 1 up to the target page, then synchronize. The same mechanism
// returns from a detail page on success, since list position is not
// separately addressable.
func (n *Navigator) Recover(ctx context.Context, targetPage int) error {
	n.state = StateRecovering
	n.logger.Debug().Int("target_page", targetPage).Msg("Recovering list position")

	if err := n.navigate(ctx, n.listURL); err != nil {
		return fmt.Errorf("recovery navigation to list failed: %w", err)
	}
	n.synchronize(ctx)

	for p := 1; p < targetPage; p++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := n.page.Click(ctx, n.selectors.NextPage); err != nil {
			return fmt.Errorf("recovery replay click to page %d failed: %w", p+1, err)
		}
		n.synchronize(ctx)
	}

	n.current = targetPage
	n.state = StateOnListPage

	n.logger.Debug().Int("page", n.current).Msg("List position recovered")
	return nil
}

// Current returns the 1-based page number the navigator believes it is on
func (n *Navigator) Current() int {
	return n.current
}

// Total returns the probed page count
func (n *Navigator) Total() int {
	return n.total
}

// State returns the navigator's current state
func (n *Navigator) State() State {
	return n.state
}

// Done reports whether the walk has covered every probed page
func (n *Navigator) Done() bool {
	return n.state == StateDone
}

func (n *Navigator) navigate(ctx context.Context, url string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(ctx, n.config.NavigationTimeout)
	defer cancel()
	return n.page.Navigate(navCtx, url)
}

// synchronize waits until the freshly navigated list is safe to read:
// network idle, row collection attached, and every row with non-zero
// rendered height. The wait is bounded; a timeout is logged and the walk
// proceeds with best-effort state.
func (n *Navigator) synchronize(ctx context.Context) {
	n.state = StateSynchronizing

	deadline := time.Now().Add(n.config.SynchronizeTimeout)
	syncCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if err := n.page.WaitNetworkIdle(syncCtx, n.config.SynchronizeTimeout); err != nil {
		n.logger.Debug().Err(err).Msg("Network idle wait ended early")
	}

	// The container renders even when the result set is empty, so it is the
	// signal that the row collection is attached at all.
	if err := n.page.WaitVisible(syncCtx, n.selectors.RowContainer, time.Until(deadline)); err != nil {
		n.logger.Warn().
			Int("page", n.current).
			Err(err).
			Msg("Row container not attached before timeout, proceeding best-effort")
		return
	}

	if err := n.page.WaitVisible(syncCtx, n.selectors.Row, time.Until(deadline)); err != nil {
		n.logger.Warn().
			Int("page", n.current).
			Err(err).
			Msg("Row collection not visible before timeout, proceeding best-effort")
		return
	}

	// Rows can exist in the DOM before layout; poll until every row has a
	// rendered height or the window closes.
	for {
		heights, err := n.page.ElementHeights(syncCtx, n.selectors.Row)
		if err == nil && len(heights) > 0 && allPositive(heights) {
			return
		}
		if time.Now().After(deadline) {
			n.logger.Warn().
				Int("page", n.current).
				Msg("Rows not fully laid out before timeout, proceeding best-effort")
			return
		}
		select {
		case <-syncCtx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func allPositive(heights []float64) bool {
	for _, h := range heights {
		if h <= 0 {
			return false
		}
	}
	return true
}
