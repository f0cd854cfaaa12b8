package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/ordermirror/internal/models"
)

// BatchCoordinator iterates records sequentially, accumulating successes
// and categorized failures. A single record's failure never aborts its
// siblings; only a fatal error (org not found) unwinds.
type BatchCoordinator struct {
	engine      *UpsertEngine
	artifactDir string
	logger      arbor.ILogger
}

// NewBatchCoordinator creates a batch coordinator over the upsert engine
func NewBatchCoordinator(engine *UpsertEngine, artifactDir string, logger arbor.ILogger) *BatchCoordinator {
	return &BatchCoordinator{
		engine:      engine,
		artifactDir: artifactDir,
		logger:      logger,
	}
}

// ProcessBatch saves each record in order. Returns the accumulated result;
// the error return is non-nil only for fatal conditions.
func (c *BatchCoordinator) ProcessBatch(ctx context.Context, orgName string, records []*models.CleanRecord) (*models.BatchResult, error) {
	result := &models.BatchResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			result.CompletedAt = time.Now()
			return result, err
		}

		order, err := c.engine.SaveRecord(ctx, orgName, record)
		if err != nil {
			if errors.Is(err, ErrOrgNotFound) {
				result.CompletedAt = time.Now()
				return result, err
			}
			category := Categorize(err)
			c.logger.Warn().
				Int("index", i).
				Str("order_number", record.OrderNumber).
				Str("category", string(category)).
				Err(err).
				Msg("Record failed")
			result.Errors = append(result.Errors, models.RecordError{
				OrderNumber: record.OrderNumber,
				ExternalID:  record.ExternalID,
				Error:       err.Error(),
				Category:    category,
				Record:      record,
			})
			continue
		}

		result.Succeeded = append(result.Succeeded, order)
	}

	result.CompletedAt = time.Now()

	summary := result.Summary()
	c.logger.Info().
		Str("run_id", summary.RunID).
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Str("success_rate", fmt.Sprintf("%.1f%%", summary.SuccessRate*100)).
		Msg("Batch complete")
	for category, count := range summary.Categories {
		c.logger.Info().
			Str("category", string(category)).
			Int("count", count).
			Msg("Failure category")
	}

	if len(result.Errors) > 0 {
		if err := c.writeErrorArtifact(result); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to write error artifact")
		}
	}

	return result, nil
}

// writeErrorArtifact lists every failed record with its captured detail for
// manual triage — no failed record silently disappears.
func (c *BatchCoordinator) writeErrorArtifact(result *models.BatchResult) error {
	if c.artifactDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.artifactDir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(c.artifactDir, fmt.Sprintf("errors_%s.json", result.RunID))
	data, err := json.MarshalIndent(result.Errors, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize error artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write error artifact: %w", err)
	}

	c.logger.Info().
		Str("path", path).
		Int("errors", len(result.Errors)).
		Msg("Error artifact written")
	return nil
}
