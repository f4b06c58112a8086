package output

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tabledog/tdog-cli-sub000/internal/core"
	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

// AccountReport describes the Stripe account bound to the secret key.
func AccountReport(account *stripe.Account) Report {
	if account == nil {
		return Report{}
	}
	created := ""
	if account.Created > 0 {
		created = time.Unix(account.Created, 0).UTC().Format(time.RFC3339)
	}
	return Report{
		Title:  "Account",
		Header: table.Row{"Field", "Value"},
		Rows: []table.Row{
			{"ID", account.ID},
			{"Business", account.BusinessName},
			{"Email", account.Email},
			{"Country", account.Country},
			{"Currency", account.DefaultCurrency},
			{"Charges enabled", yesNo(account.ChargesEnabled)},
			{"Payouts enabled", yesNo(account.PayoutsEnabled)},
			{"Created", created},
		},
		Value: account,
	}
}

// RunSummaryReport lists per-type results of one download run.
func RunSummaryReport(summary *core.RunSummary) Report {
	if summary == nil {
		return Report{}
	}

	rows := make([]table.Row, 0, len(summary.Results))
	for _, r := range summary.Results {
		status := "ok"
		switch {
		case r.Skipped:
			status = "skipped"
		case r.Error != "":
			status = "failed"
		}
		rows = append(rows, table.Row{r.Type, r.Pages, r.Objects, r.Elapsed.Round(time.Millisecond).String(), status, r.Error})
	}

	return Report{
		Title:  fmt.Sprintf("Run %s (%s)", summary.Run.ID, summary.Run.Status),
		Header: table.Row{"Object type", "Pages", "Objects", "Elapsed", "Status", "Error"},
		Rows:   rows,
		Footer: table.Row{"", "", summary.Run.Objects, "", fmt.Sprintf("%d requests, %d x 429", summary.Run.Requests, summary.Run.Total429), ""},
		Value:  summary,
	}
}

// RunsReport lists stored download runs, newest first.
func RunsReport(runs []core.DownloadRun) Report {
	rows := make([]table.Row, 0, len(runs))
	for _, run := range runs {
		finished := ""
		if run.FinishedAt != nil {
			finished = run.FinishedAt.Format(time.RFC3339)
		}
		rows = append(rows, table.Row{
			run.ID,
			run.AccountID,
			string(run.Status),
			run.StartedAt.Format(time.RFC3339),
			finished,
			run.Objects,
			run.Requests,
			run.Total429,
		})
	}
	return Report{
		Header: table.Row{"Run", "Account", "Status", "Started", "Finished", "Objects", "Requests", "429s"},
		Rows:   rows,
		Value:  runs,
	}
}

// RequestsReport lists persisted physical attempts.
func RequestsReport(records []core.RequestRecord) Report {
	rows := make([]table.Row, 0, len(records))
	for _, rec := range records {
		status := "-"
		if rec.Status != nil {
			status = strconv.Itoa(*rec.Status)
		}
		if rec.NetworkError {
			status = "network error"
		}
		rows = append(rows, table.Row{
			rec.ID,
			rec.RunID,
			rec.Start.Format(time.RFC3339Nano),
			rec.DurationMS,
			rec.Bytes,
			status,
		})
	}
	return Report{
		Header: table.Row{"ID", "Run", "Start", "ms", "Bytes", "Status"},
		Rows:   rows,
		Value:  records,
	}
}

// RequestSummaryReport aggregates persisted attempts.
func RequestSummaryReport(summary *core.RequestSummary) Report {
	if summary == nil {
		return Report{}
	}
	rows := []table.Row{
		{"Attempts", summary.Attempts},
		{"200 OK", summary.OK},
		{"429 rate limited", summary.RateLimited},
		{"Other HTTP errors", summary.HTTPErrors},
		{"Network errors", summary.NetworkErrors},
		{"Bytes", summary.Bytes},
		{"Avg duration (ms)", fmt.Sprintf("%.1f", summary.AvgDurationMS)},
		{"Max duration (ms)", summary.MaxDurationMS},
	}
	if !summary.FirstStart.IsZero() {
		rows = append(rows,
			table.Row{"First start", summary.FirstStart.Format(time.RFC3339)},
			table.Row{"Last end", summary.LastEnd.Format(time.RFC3339)},
		)
	}
	return Report{
		Title:  "Request log",
		Header: table.Row{"Metric", "Value"},
		Rows:   rows,
		Value:  summary,
	}
}

// StatsReport shows a ledger snapshot.
func StatsReport(stats stripe.Stats) Report {
	return Report{
		Title:  "Client ledger",
		Header: table.Row{"Counter", "Value"},
		Rows: []table.Row{
			{"total_429_responses", stats.Total429Responses},
			{"cur_429_reqs_retrying", stats.Cur429ReqsRetrying},
			{"running", stats.Running},
			{"pending_log", stats.PendingLog},
		},
		Value: stats,
	}
}

// ObjectCountsReport lists stored objects per type.
func ObjectCountsReport(counts []core.ObjectCount) Report {
	rows := make([]table.Row, 0, len(counts))
	var total int64
	for _, c := range counts {
		rows = append(rows, table.Row{c.ObjectType, c.Count})
		total += c.Count
	}
	return Report{
		Header: table.Row{"Object type", "Stored"},
		Rows:   rows,
		Footer: table.Row{"Total", total},
		Value:  counts,
	}
}

// Check is one diagnostic result of `tdog doctor`.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ChecksReport lists diagnostic results in the order they ran.
func ChecksReport(checks []Check) Report {
	rows := make([]table.Row, 0, len(checks))
	for i, c := range checks {
		rows = append(rows, table.Row{fmt.Sprintf("%d/%d", i+1, len(checks)), c.Name, c.Status, c.Detail})
	}
	return Report{
		Title:  "Diagnostics",
		Header: table.Row{"#", "Check", "Status", "Detail"},
		Rows:   rows,
		Value:  checks,
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
