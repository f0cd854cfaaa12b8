package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/ordermirror/internal/models"
)

func TestProcessBatchPartialFailure(t *testing.T) {
	engine, db := newTestEngine(t)
	coordinator := NewBatchCoordinator(engine, "", arbor.NewLogger())

	invalid := testRecord("ORD-2")
	invalid.Title = ""
	records := []*models.CleanRecord{
		testRecord("ORD-1"),
		invalid,
		testRecord("ORD-3"),
	}

	result, err := coordinator.ProcessBatch(context.Background(), testOrg, records)
	require.NoError(t, err)

	// The failing record must not block its siblings.
	require.Len(t, result.Succeeded, 2)
	assert.Equal(t, "ORD-1", result.Succeeded[0].OrderNumber)
	assert.Equal(t, "ORD-3", result.Succeeded[1].OrderNumber)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "ORD-2", result.Errors[0].OrderNumber)
	assert.Equal(t, models.ErrorCategoryValidation, result.Errors[0].Category)
	require.NotNil(t, result.Errors[0].Record)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestProcessBatchSummary(t *testing.T) {
	engine, _ := newTestEngine(t)
	coordinator := NewBatchCoordinator(engine, "", arbor.NewLogger())

	invalid := testRecord("ORD-2")
	invalid.CustomerName = ""
	result, err := coordinator.ProcessBatch(context.Background(), testOrg, []*models.CleanRecord{
		testRecord("ORD-1"),
		invalid,
	})
	require.NoError(t, err)

	summary := result.Summary()
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.InDelta(t, 0.5, summary.SuccessRate, 0.001)
	assert.Equal(t, 1, summary.Categories[models.ErrorCategoryValidation])
	assert.NotEmpty(t, summary.RunID)
	assert.NotEmpty(t, summary.Duration)
	assert.False(t, result.HasConnectionErrors())
}

func TestProcessBatchOrgNotFoundIsFatal(t *testing.T) {
	engine, _ := newTestEngine(t)
	coordinator := NewBatchCoordinator(engine, "", arbor.NewLogger())

	_, err := coordinator.ProcessBatch(context.Background(), "Ghost Org", []*models.CleanRecord{
		testRecord("ORD-1"),
	})
	assert.ErrorIs(t, err, ErrOrgNotFound)
}

func TestProcessBatchContextCancel(t *testing.T) {
	engine, _ := newTestEngine(t)
	coordinator := NewBatchCoordinator(engine, "", arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := coordinator.ProcessBatch(ctx, testOrg, []*models.CleanRecord{testRecord("ORD-1")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Succeeded)
}

func TestProcessBatchWritesErrorArtifact(t *testing.T) {
	engine, _ := newTestEngine(t)
	dir := t.TempDir()
	coordinator := NewBatchCoordinator(engine, dir, arbor.NewLogger())

	invalid := testRecord("ORD-1")
	invalid.ExternalID = ""
	result, err := coordinator.ProcessBatch(context.Background(), testOrg, []*models.CleanRecord{invalid})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)

	path := filepath.Join(dir, "errors_"+result.RunID+".json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var recorded []models.RecordError
	require.NoError(t, json.Unmarshal(data, &recorded))
	require.Len(t, recorded, 1)
	assert.Equal(t, "ORD-1", recorded[0].OrderNumber)
	assert.Equal(t, models.ErrorCategoryValidation, recorded[0].Category)
	require.NotNil(t, recorded[0].Record, "artifact keeps the full record for triage")
}

func TestProcessBatchNoArtifactOnSuccess(t *testing.T) {
	engine, _ := newTestEngine(t)
	dir := t.TempDir()
	coordinator := NewBatchCoordinator(engine, dir, arbor.NewLogger())

	_, err := coordinator.ProcessBatch(context.Background(), testOrg, []*models.CleanRecord{testRecord("ORD-1")})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
