package joblog

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readRecords parses every JSON line in the log file.
func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestOpen_CreatesLogFile(t *testing.T) {
	dir := t.TempDir()

	ctx, err := Open(dir, Options{MediaID: 7, CampaignID: 3})
	require.NoError(t, err)

	ctx.Logger.Info("job_reprocessing_started", slog.Int("media_count", 2))
	require.NoError(t, ctx.Close())

	assert.NotEmpty(t, ctx.RunID)
	assert.Equal(t, filepath.Join(dir, ctx.RunID+".log"), ctx.Path)

	records := readRecords(t, ctx.Path)
	require.Len(t, records, 2)
	assert.Equal(t, "job_started", records[0]["msg"])
	assert.Equal(t, ctx.RunID, records[0]["run_id"])
	assert.Equal(t, float64(7), records[0]["media_id"])
	assert.Equal(t, float64(3), records[0]["campaign_id"])
	assert.Equal(t, "job_reprocessing_started", records[1]["msg"])
	assert.Equal(t, float64(2), records[1]["media_count"])
}

func TestOpen_UsesExplicitIdentifier(t *testing.T) {
	dir := t.TempDir()

	ctx, err := Open(dir, Options{Identifier: "job-42"})
	require.NoError(t, err)
	require.NoError(t, ctx.Close())

	assert.Equal(t, "job-42", ctx.RunID)
	assert.Equal(t, filepath.Join(dir, "job-42.log"), ctx.Path)
}

func TestClose_Idempotent(t *testing.T) {
	ctx, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())
}

func TestStage_CompletedAndFailed(t *testing.T) {
	ctx, err := Open(t.TempDir(), Options{Identifier: "stages"})
	require.NoError(t, err)

	done := Stage(ctx.Logger, "validate_media", slog.Int("media_index", 1))
	done(nil)

	done = Stage(ctx.Logger, "upload_video")
	done(errors.New("bucket unavailable"))

	require.NoError(t, ctx.Close())

	records := readRecords(t, ctx.Path)
	require.Len(t, records, 5)

	assert.Equal(t, "stage_started", records[1]["msg"])
	assert.Equal(t, "validate_media", records[1]["stage"])
	assert.Equal(t, float64(1), records[1]["media_index"])
	assert.Equal(t, "stage_completed", records[2]["msg"])

	assert.Equal(t, "stage_started", records[3]["msg"])
	assert.Equal(t, "upload_video", records[3]["stage"])
	assert.Equal(t, "stage_failed", records[4]["msg"])
	assert.Equal(t, "bucket unavailable", records[4]["error"])
}
