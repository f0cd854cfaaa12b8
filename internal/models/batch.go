package models

import "time"

// ErrorCategory classifies a per-record failure so run summaries can
// separate systemic outages from per-record data problems.
type ErrorCategory string

const (
	ErrorCategoryValidation ErrorCategory = "validation"
	ErrorCategoryConstraint ErrorCategory = "constraint"
	ErrorCategoryConnection ErrorCategory = "connection" // the only category worth retrying at run level
	ErrorCategoryUnknown    ErrorCategory = "unknown"
)

// RecordError captures one failed record with enough detail for manual triage
type RecordError struct {
	OrderNumber string        `json:"order_number"`
	ExternalID  string        `json:"external_id"`
	PageNumber  int           `json:"page_number"`
	Error       string        `json:"error"`
	Category    ErrorCategory `json:"category"`
	Record      *CleanRecord  `json:"record,omitempty"`
}

// BatchResult accumulates the outcome of one ingest batch
type BatchResult struct {
	RunID       string        `json:"run_id"`
	Succeeded   []*Order      `json:"succeeded"`
	Errors      []RecordError `json:"errors"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// BatchSummary is the run-completion report
type BatchSummary struct {
	RunID       string                `json:"run_id"`
	Total       int                   `json:"total"`
	Succeeded   int                   `json:"succeeded"`
	Failed      int                   `json:"failed"`
	SuccessRate float64               `json:"success_rate"`
	Categories  map[ErrorCategory]int `json:"categories"`
	Duration    string                `json:"duration"`
}

// Summary derives the run-completion report from the accumulated result
func (r *BatchResult) Summary() BatchSummary {
	total := len(r.Succeeded) + len(r.Errors)
	summary := BatchSummary{
		RunID:      r.RunID,
		Total:      total,
		Succeeded:  len(r.Succeeded),
		Failed:     len(r.Errors),
		Categories: make(map[ErrorCategory]int),
	}
	if total > 0 {
		summary.SuccessRate = float64(len(r.Succeeded)) / float64(total)
	}
	for _, re := range r.Errors {
		summary.Categories[re.Category]++
	}
	if !r.CompletedAt.IsZero() {
		summary.Duration = r.CompletedAt.Sub(r.StartedAt).String()
	}
	return summary
}

// HasConnectionErrors reports whether any failure was connection-category,
// which suggests a run-level retry may succeed where per-record retries won't.
func (r *BatchResult) HasConnectionErrors() bool {
	for _, re := range r.Errors {
		if re.Category == ErrorCategoryConnection {
			return true
		}
	}
	return false
}
