// -----------------------------------------------------------------------
// Last Modified: Wednesday, 26th August 2026 2:41:55 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/interfaces"
	"github.com/ternarybob/ordermirror/internal/models"
	"github.com/ternarybob/ordermirror/internal/services/extractor"
	"github.com/ternarybob/ordermirror/internal/services/ingest"
	"github.com/ternarybob/ordermirror/internal/services/navigator"
	"github.com/ternarybob/ordermirror/internal/services/sanitize"
	"github.com/ternarybob/ordermirror/internal/services/session"
)

// RunReport summarizes one crawl run
type RunReport struct {
	Organization string                       `json:"organization"`
	Username     string                       `json:"username"`
	FromArtifact bool                         `json:"from_artifact"`
	Pages        int                          `json:"pages"`
	PagesSkipped []int                        `json:"pages_skipped,omitempty"`
	Extracted    int                          `json:"extracted"`
	Persisted    int                          `json:"persisted"`
	Failed       int                          `json:"failed"`
	Categories   map[models.ErrorCategory]int `json:"categories,omitempty"`
	StartedAt    time.Time                    `json:"started_at"`
	CompletedAt  time.Time                    `json:"completed_at"`
}

// Runner orchestrates one crawl run end to end: authenticate, walk the
// paginated list, extract each record's list and detail views, sanitize,
// and ingest. The whole run is one logical thread of control around one
// browser page.
type Runner struct {
	config    *common.Config
	selectors extractor.Selectors
	page      interfaces.SessionPage
	session   *session.Service
	nav       *navigator.Navigator
	list      *extractor.ListExtractor
	detail    *extractor.DetailExtractor
	batch     *ingest.BatchCoordinator
	logger    arbor.ILogger
}

// NewRunner wires a crawl run
func NewRunner(
	config *common.Config,
	selectors extractor.Selectors,
	page interfaces.SessionPage,
	sessionSvc *session.Service,
	nav *navigator.Navigator,
	list *extractor.ListExtractor,
	detail *extractor.DetailExtractor,
	batch *ingest.BatchCoordinator,
	logger arbor.ILogger,
) *Runner {
	return &Runner{
		config:    config,
		selectors: selectors,
		page:      page,
		session:   sessionSvc,
		nav:       nav,
		list:      list,
		detail:    detail,
		batch:     batch,
		logger:    logger,
	}
}

// Run executes the crawl. Only fatal conditions (rejected credentials,
// missing organization) return an error; everything below that is absorbed
// into the report.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		Organization: r.config.Organization,
		Categories:   make(map[models.ErrorCategory]int),
		StartedAt:    time.Now(),
	}

	sessionCtx, err := r.session.Authenticate(ctx, r.page, r.config.Organization, r.config.Source.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	report.Username = sessionCtx.Username
	report.FromArtifact = sessionCtx.FromArtifact

	if err := r.nav.Start(ctx); err != nil {
		return nil, fmt.Errorf("list walk could not start: %w", err)
	}
	report.Pages = r.nav.Total()

	for {
		pageNum := r.nav.Current()
		if err := r.processPage(ctx, pageNum, report); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break
			}
			// A missing organization can never heal on a later page.
			if errors.Is(err, ingest.ErrOrgNotFound) {
				return nil, fmt.Errorf("run aborted: %w", err)
			}
			// The retry budget for this page is exhausted: log the gap and
			// move on rather than aborting the run.
			r.logger.Error().
				Int("page", pageNum).
				Err(err).
				Msg("Page skipped after exhausted retry budget")
			report.PagesSkipped = append(report.PagesSkipped, pageNum)
		}

		advanced, err := r.nav.Advance(ctx)
		if err != nil {
			if recErr := r.recoverWithBudget(ctx, pageNum+1); recErr != nil {
				r.logger.Error().
					Int("page", pageNum+1).
					Err(recErr).
					Msg("Could not reach next page, ending walk")
				break
			}
			continue
		}
		if !advanced {
			break
		}
	}

	report.CompletedAt = time.Now()
	r.logger.Info().
		Int("pages", report.Pages).
		Int("extracted", report.Extracted).
		Int("persisted", report.Persisted).
		Int("failed", report.Failed).
		Int("pages_skipped", len(report.PagesSkipped)).
		Str("duration", report.CompletedAt.Sub(report.StartedAt).String()).
		Msg("Crawl run complete")

	return report, nil
}

// processPage extracts, enriches, sanitizes, and ingests every record on
// the current list page
func (r *Runner) processPage(ctx context.Context, pageNum int, report *RunReport) error {
	r.waitForBadges(ctx)

	pageHTML, err := r.capturePage(ctx, pageNum)
	if err != nil {
		return err
	}

	records, err := r.list.ExtractRows(pageHTML, pageNum)
	if err != nil {
		return fmt.Errorf("list extraction failed on page %d: %w", pageNum, err)
	}
	report.Extracted += len(records)

	cleaned := make([]*models.CleanRecord, 0, len(records))
	for _, raw := range records {
		detail := r.extractDetail(ctx, raw, pageNum)

		clean, warnings := sanitize.SanitizeRecord(raw)
		for _, w := range warnings {
			r.logger.Warn().
				Str("order_number", raw.OrderNumber).
				Msg(w)
		}
		mergeDetail(clean, detail)
		cleaned = append(cleaned, clean)
	}

	result, err := r.batch.ProcessBatch(ctx, r.config.Organization, cleaned)
	if result != nil {
		report.Persisted += len(result.Succeeded)
		report.Failed += len(result.Errors)
		for _, re := range result.Errors {
			report.Categories[re.Category]++
		}
	}
	if err != nil {
		// Fatal: organization missing or context cancelled.
		return err
	}

	return nil
}

// capturePage reads the current list page's HTML, recovering the list
// position once if the capture fails
func (r *Runner) capturePage(ctx context.Context, pageNum int) (string, error) {
	pageHTML, err := r.page.HTML(ctx, "html")
	if err == nil {
		return pageHTML, nil
	}
	r.logger.Warn().Int("page", pageNum).Err(err).Msg("Page capture failed, recovering")
	if recErr := r.recoverWithBudget(ctx, pageNum); recErr != nil {
		return "", recErr
	}
	return r.page.HTML(ctx, "html")
}

// waitForBadges applies the bounded wait for tag badges to render. Timing
// out is accepted as "this page's rows have no badges yet" — a record with
// no tags is valid. Extra rounds are a configurable policy.
func (r *Runner) waitForBadges(ctx context.Context) {
	rounds := r.config.Crawler.BadgeWaitRetries + 1
	for i := 0; i < rounds; i++ {
		err := r.page.WaitVisible(ctx, r.selectors.Badge, r.config.Crawler.BadgeWait)
		if err == nil {
			return
		}
		if i == rounds-1 {
			r.logger.Debug().Err(err).Msg("Tag badges did not render in time, proceeding without")
		}
	}
}

// extractDetail navigates to the record's detail page, extracts it, and
// returns to the exact list page the record came from. Any failure degrades
// the record to list-only data; the same recovery replay used for failures
// is also the success-path return, since list position is not addressable.
func (r *Runner) extractDetail(ctx context.Context, raw *models.RawRecord, pageNum int) *models.DetailExtraction {
	if raw.DetailURL == "" {
		return nil
	}

	detailURL := r.absoluteURL(raw.DetailURL)

	var result *models.DetailExtraction
	if err := r.page.Navigate(ctx, detailURL); err != nil {
		r.logger.Warn().
			Str("order_number", raw.OrderNumber).
			Str("url", detailURL).
			Err(err).
			Msg("Detail navigation failed, record degrades to list data")
	} else {
		if err := r.page.WaitNetworkIdle(ctx, r.config.Crawler.SynchronizeTimeout); err != nil {
			r.logger.Debug().Err(err).Msg("Detail page settle ended early")
		}
		detailHTML, err := r.page.HTML(ctx, "html")
		if err != nil {
			r.logger.Warn().
				Str("order_number", raw.OrderNumber).
				Err(err).
				Msg("Detail capture failed, record degrades to list data")
		} else {
			result, err = r.detail.Extract(detailHTML, r.config.Crawler.EnhancedExtraction)
			if err != nil {
				r.logger.Warn().
					Str("order_number", raw.OrderNumber).
					Err(err).
					Msg("Detail extraction failed, record degrades to list data")
				result = nil
			}
		}
	}

	// Always return to the list page before the next record.
	if err := r.recoverWithBudget(ctx, pageNum); err != nil {
		r.logger.Error().
			Int("page", pageNum).
			Err(err).
			Msg("Could not return to list page after detail view")
	}

	return result
}

// recoverWithBudget replays navigation to the target page, retrying up to
// the configured budget
func (r *Runner) recoverWithBudget(ctx context.Context, targetPage int) error {
	budget := r.config.Crawler.PageRetryBudget
	if budget < 1 {
		budget = 1
	}
	var lastErr error
	for attempt := 1; attempt <= budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = r.nav.Recover(ctx, targetPage); lastErr == nil {
			return nil
		}
		r.logger.Warn().
			Int("attempt", attempt).
			Int("target_page", targetPage).
			Err(lastErr).
			Msg("Recovery attempt failed")
	}
	return fmt.Errorf("recovery to page %d failed after %d attempts: %w", targetPage, budget, lastErr)
}

func (r *Runner) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(r.config.Source.BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// mergeDetail folds detail-view data into the sanitized record
func mergeDetail(clean *models.CleanRecord, detail *models.DetailExtraction) {
	if detail == nil {
		clean.Enhancement = models.EnhancementBasic
		return
	}
	clean.Images = detail.Images
	clean.Enhancement = models.EnhancementBasic
	if detail.Enhancement != nil {
		clean.Emails = detail.Enhancement.Emails
		clean.Phones = detail.Enhancement.Phones
		clean.Timeline = detail.Enhancement.Timeline
		clean.Enhancement = detail.Enhancement.Level
	}
}
