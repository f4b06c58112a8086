package core

import "time"

// RequestRecord is a persisted physical HTTP attempt.
type RequestRecord struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	DurationMS   int64     `json:"duration_ms"`
	Bytes        int64     `json:"bytes"`
	Status       *int      `json:"status,omitempty"`
	NetworkError bool      `json:"network_error"`
}

// RequestSummary aggregates persisted attempts.
type RequestSummary struct {
	Attempts      int64     `json:"attempts"`
	OK            int64     `json:"ok"`
	RateLimited   int64     `json:"rate_limited"`
	HTTPErrors    int64     `json:"http_errors"`
	NetworkErrors int64     `json:"network_errors"`
	Bytes         int64     `json:"bytes"`
	AvgDurationMS float64   `json:"avg_duration_ms"`
	MaxDurationMS int64     `json:"max_duration_ms"`
	FirstStart    time.Time `json:"first_start,omitempty"`
	LastEnd       time.Time `json:"last_end,omitempty"`
}
