package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

// DefaultDrainInterval is used when LogDrainer.Interval is unset.
const DefaultDrainInterval = 2 * time.Second

// RequestLogStore persists drained attempt records.
type RequestLogStore interface {
	AppendRequestLog(ctx context.Context, runID string, records []stripe.ReqLog) error
}

// LogDrainer periodically moves the ledger's request log into the store and,
// optionally, an NDJSON file. The ledger never trims its log on its own.
type LogDrainer struct {
	Ledger   *stripe.Ledger
	Store    RequestLogStore
	RunID    string
	Writer   io.Writer
	Interval time.Duration
	Logger   *logging.Logger

	mu      sync.Mutex
	drained atomic.Int64
}

// NewRequestLogFile opens a size-rotated NDJSON sink for attempt records.
func NewRequestLogFile(path string, maxSizeMB, maxBackups int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
}

// Drained reports how many records have been flushed.
func (d *LogDrainer) Drained() int64 {
	return d.drained.Load()
}

// Run flushes every Interval until ctx is done, then flushes once more so
// nothing recorded before shutdown is lost.
func (d *LogDrainer) Run(ctx context.Context) error {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultDrainInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_, err := d.Flush(context.WithoutCancel(ctx))
			return err
		case <-ticker.C:
			if _, err := d.Flush(ctx); err != nil && d.Logger != nil {
				d.Logger.Warn("Failed to drain request log", zap.Error(err))
			}
		}
	}
}

// Flush drains the ledger once and returns the number of records moved.
func (d *LogDrainer) Flush(ctx context.Context) (int, error) {
	if d == nil || d.Ledger == nil {
		return 0, errors.New("log drainer is not configured")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	records := d.Ledger.DrainLog()
	if len(records) == 0 {
		return 0, nil
	}

	var errs []error
	if d.Store != nil {
		if err := d.Store.AppendRequestLog(ctx, d.RunID, records); err != nil {
			errs = append(errs, err)
		}
	}
	if d.Writer != nil {
		if err := d.writeNDJSON(records); err != nil {
			errs = append(errs, err)
		}
	}

	d.drained.Add(int64(len(records)))
	if d.Logger != nil {
		d.Logger.Debug("Drained request log", zap.Int("records", len(records)), zap.String("run_id", d.RunID))
	}
	return len(records), errors.Join(errs...)
}

type ndjsonRecord struct {
	RunID string `json:"run_id"`
	stripe.ReqLog
}

func (d *LogDrainer) writeNDJSON(records []stripe.ReqLog) error {
	w := bufio.NewWriter(d.Writer)
	enc := json.NewEncoder(w)
	for _, record := range records {
		if err := enc.Encode(ndjsonRecord{RunID: d.RunID, ReqLog: record}); err != nil {
			return fmt.Errorf("write request log file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write request log file: %w", err)
	}
	return nil
}
