package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabledog/tdog-cli-sub000/internal/core"
	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleSummary() *core.RunSummary {
	return &core.RunSummary{
		Run: core.DownloadRun{
			ID:       "run-1",
			Status:   core.RunStatusPartial,
			Objects:  12,
			Requests: 5,
			Total429: 2,
		},
		Results: []core.ObjectTypeResult{
			{Type: "customers", Pages: 2, Objects: 12, Elapsed: 1500 * time.Millisecond},
			{Type: "disputes", Skipped: true, Error: "stripe: http_status retries exhausted after 3 attempts"},
		},
	}
}

func TestRenderRunSummary(t *testing.T) {
	summary := sampleSummary()

	table, err := Render(FormatTable, RunSummaryReport(summary))
	require.NoError(t, err)
	require.Contains(t, table, "customers")
	require.Contains(t, table, "skipped")
	require.Contains(t, strings.ToLower(table), "5 requests, 2 x 429")

	markdown, err := Render(FormatMarkdown, RunSummaryReport(summary))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(markdown, "## Run run-1 (partial)"))
	require.Contains(t, markdown, "| customers |")

	json, err := Render(FormatJSON, RunSummaryReport(summary))
	require.NoError(t, err)
	require.Contains(t, json, "\"status\": \"partial\"")
	require.Contains(t, json, "\"skipped\": true")
}

func TestRenderRequests(t *testing.T) {
	status := 429
	records := []core.RequestRecord{
		{ID: 1, RunID: "run-1", Start: time.Unix(0, 0).UTC(), DurationMS: 30, Status: &status},
		{ID: 2, RunID: "run-1", Start: time.Unix(1, 0).UTC(), NetworkError: true},
	}

	rendered, err := Render(FormatTable, RequestsReport(records))
	require.NoError(t, err)
	require.Contains(t, rendered, "429")
	require.Contains(t, rendered, "network error")
}

func TestRenderSkipsEmptyReports(t *testing.T) {
	rendered, err := Render(FormatTable, Report{}, StatsReport(stripe.Stats{Total429Responses: 3}))
	require.NoError(t, err)
	require.Contains(t, rendered, "total_429_responses")
	require.False(t, strings.HasPrefix(rendered, "\n"))

	rendered, err = Render(FormatJSON, AccountReport(nil))
	require.NoError(t, err)
	require.Empty(t, rendered)
}

func TestObjectCountsFooter(t *testing.T) {
	rendered, err := Render(FormatTable, ObjectCountsReport([]core.ObjectCount{
		{ObjectType: "charges", Count: 3},
		{ObjectType: "customers", Count: 4},
	}))
	require.NoError(t, err)
	require.Contains(t, rendered, "7")
}
