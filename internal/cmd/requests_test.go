package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabledog/tdog-cli-sub000/internal/core/store"
	"github.com/tabledog/tdog-cli-sub000/internal/output"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("", now)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	got, err = parseSince("90m", now)
	require.NoError(t, err)
	require.Equal(t, now.Add(-90*time.Minute), got)

	got, err = parseSince("2026-02-28T10:00:00+02:00", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC), got)

	_, err = parseSince("-5m", now)
	require.Error(t, err)

	_, err = parseSince("yesterday", now)
	require.Error(t, err)
}

func TestRequestFilterQuery(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := (&requestFilter{}).query(now)
	require.Error(t, err, "a selection flag is required")

	q, err := (&requestFilter{runID: " run-1 ", outcome: "429", limit: 10}).query(now)
	require.NoError(t, err)
	require.Equal(t, store.RequestLogQuery{RunID: "run-1", Outcome: store.OutcomeRateLimited, Limit: 10}, q)

	q, err = (&requestFilter{since: "1h"}).query(now)
	require.NoError(t, err)
	require.Equal(t, now.Add(-time.Hour), q.Since)

	_, err = (&requestFilter{all: true, outcome: "teapot"}).query(now)
	require.Error(t, err)
}

func TestWriteResetResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResetResult(output.FormatTable, &buf, 7, 0, true))
	require.Equal(t, "Would delete 7 request log record(s)\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResetResult(output.FormatTable, &buf, 7, 7, false))
	require.Equal(t, "Deleted 7/7 request log record(s)\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResetResult(output.FormatJSON, &buf, 3, 2, false))
	var payload map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	require.Equal(t, float64(3), payload["matched"])
	require.Equal(t, float64(2), payload["deleted"])
	require.Equal(t, false, payload["dry_run"])
}

func TestOutputFlagsOpen(t *testing.T) {
	t.Run("OutDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "reports")
		flags := outputFlags{format: "json", outDir: dir}

		format, sink, err := flags.open(nil, "Requests List")
		require.NoError(t, err)
		require.Equal(t, output.FormatJSON, format)
		require.Equal(t, filepath.Join(dir, "requests-list.json"), sink.path)

		require.NoError(t, writeReports(sink, format, output.Report{Value: map[string]int{"attempts": 3}}))
		require.NoError(t, sink.close())

		data, err := os.ReadFile(sink.path)
		require.NoError(t, err)
		require.JSONEq(t, `{"attempts":3}`, string(data))
	})

	t.Run("MutuallyExclusive", func(t *testing.T) {
		flags := outputFlags{out: "a.txt", outDir: "b"}
		_, _, err := flags.open(nil, "x")
		require.Error(t, err)
	})

	t.Run("DisallowedFormat", func(t *testing.T) {
		flags := outputFlags{format: "markdown"}
		_, _, err := flags.open(nil, "x", output.FormatTable, output.FormatJSON)
		require.Error(t, err)
	})

	t.Run("Stdout", func(t *testing.T) {
		var buf bytes.Buffer
		flags := outputFlags{format: "json"}
		format, sink, err := flags.open(&buf, "x")
		require.NoError(t, err)
		require.Equal(t, output.FormatJSON, format)
		require.Equal(t, "-", sink.path)

		require.NoError(t, writeReports(sink, format, output.Report{Value: []int{1}}))
		require.JSONEq(t, `[1]`, buf.String())
	})
}
