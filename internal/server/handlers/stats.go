package handlers

import (
	"net/http"
	"time"

	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

// StatsSource yields ledger snapshots. *stripe.Ledger satisfies it.
type StatsSource interface {
	Snapshot() stripe.Stats
}

// RunProgress describes the download the status server is attached to.
type RunProgress struct {
	RunID       string    `json:"run_id"`
	AccountID   string    `json:"account_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	ObjectTypes []string  `json:"object_types"`
	Objects     int64     `json:"objects"`
	LogDrained  int64     `json:"log_drained"`
}

// StatsResponse is the /stats body.
type StatsResponse struct {
	Ledger    stripe.Stats `json:"ledger"`
	Run       *RunProgress `json:"run,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// StatsHandler serves the ledger counters plus, when progress is set, the
// current run's progress.
func StatsHandler(source StatsSource, progress func() *RunProgress) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if source == nil {
			apperrors.RespondWithEnvelope(w, r, apperrors.NewServiceUnavailableError("no client ledger attached"))
			return
		}

		resp := StatsResponse{
			Ledger:    source.Snapshot(),
			Timestamp: time.Now().UTC(),
		}
		if progress != nil {
			resp.Run = progress()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
