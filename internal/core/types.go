package core

import "time"

// RunStatus is the lifecycle state of a download run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// DownloadRun records one execution of `tdog download`.
type DownloadRun struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"account_id,omitempty"`
	Status      RunStatus  `json:"status"`
	ObjectTypes []string   `json:"object_types"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Objects     int64      `json:"objects"`
	Requests    int64      `json:"requests"`
	Total429    int64      `json:"total_429"`
	Error       string     `json:"error,omitempty"`
}

// ObjectTypeResult reports the outcome of downloading one object type.
type ObjectTypeResult struct {
	Type    string        `json:"type"`
	Pages   int           `json:"pages"`
	Objects int64         `json:"objects"`
	Elapsed time.Duration `json:"elapsed"`
	Skipped bool          `json:"skipped,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// RunSummary is the final report of a download run.
type RunSummary struct {
	Run     DownloadRun        `json:"run"`
	Results []ObjectTypeResult `json:"results"`
}

// ObjectCount is the number of stored objects of one type.
type ObjectCount struct {
	ObjectType string `json:"object_type"`
	Count      int64  `json:"count"`
}
