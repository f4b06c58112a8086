package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tabledog/tdog-cli-sub000/internal/core"
	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

// Exhaustion policies.
const (
	OnExhaustedAbort = "abort"
	OnExhaustedSkip  = "skip"
)

// Lister streams list pages. *stripe.Client satisfies it.
type Lister interface {
	List(ctx context.Context, t stripe.ObjectType, params stripe.ListParams, fn func(*stripe.Page) error) error
}

// ObjectStore persists downloaded objects.
type ObjectStore interface {
	UpsertObjects(ctx context.Context, runID, accountID, objectType string, objects []stripe.Object) (int64, error)
}

// Downloader pulls every page of a set of object types concurrently.
type Downloader struct {
	Client      Lister
	Store       ObjectStore
	Throttle    *Throttle
	Concurrency int
	PageSize    int

	// OnExhausted decides whether an exhausted retry budget aborts the run
	// or only skips the object type that hit it.
	OnExhausted string

	// RedactFields are JSON paths removed from every object before it is
	// stored.
	RedactFields []string

	Logger *logging.Logger
	Clock  func() time.Time

	objects atomic.Int64
}

// Objects reports how many objects have been stored so far.
func (d *Downloader) Objects() int64 {
	return d.objects.Load()
}

// Run downloads the given object types for one run. Results are returned in
// the order of types even when err is non-nil.
func (d *Downloader) Run(ctx context.Context, runID, accountID string, types []stripe.ObjectType) ([]core.ObjectTypeResult, error) {
	if d == nil || d.Client == nil || d.Store == nil {
		return nil, errors.New("downloader is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	concurrency := d.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]core.ObjectTypeResult, len(types))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, objectType := range types {
		g.Go(func() error {
			result, err := d.download(gctx, runID, accountID, objectType)

			if err != nil {
				result.Error = err.Error()
				if _, exhausted := stripe.AsExhausted(err); exhausted && d.OnExhausted == OnExhaustedSkip {
					result.Skipped = true
					d.warn("Skipping object type after exhausted retries", objectType, err)
					err = nil
				}
			}

			mu.Lock()
			results[i] = result
			mu.Unlock()

			if err != nil {
				return fmt.Errorf("download %s: %w", objectType.Name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

func (d *Downloader) download(ctx context.Context, runID, accountID string, objectType stripe.ObjectType) (core.ObjectTypeResult, error) {
	start := d.now()
	result := core.ObjectTypeResult{Type: objectType.Name}

	params := stripe.ListParams{
		Limit: d.PageSize,
		BeforePage: func(ctx context.Context, page int) error {
			held, err := d.Throttle.Wait(ctx)
			if held > 0 && d.Logger != nil {
				d.Logger.Debug("Held page submission while rate limited",
					zap.String("object_type", objectType.Name),
					zap.Int("page", page),
					zap.Duration("held", held))
			}
			return err
		},
	}

	err := d.Client.List(ctx, objectType, params, func(page *stripe.Page) error {
		objects, err := d.redact(page.Objects)
		if err != nil {
			return err
		}

		written, err := d.Store.UpsertObjects(ctx, runID, accountID, objectType.Name, objects)
		if err != nil {
			return err
		}

		result.Pages = page.Number
		result.Objects += written
		d.objects.Add(written)

		if d.Logger != nil {
			d.Logger.Debug("Stored page",
				zap.String("object_type", objectType.Name),
				zap.Int("page", page.Number),
				zap.Int64("objects", written),
				zap.Bool("has_more", page.HasMore))
		}
		return nil
	})

	result.Elapsed = d.now().Sub(start)
	if err == nil && d.Logger != nil {
		d.Logger.Info("Downloaded object type",
			zap.String("object_type", objectType.Name),
			zap.Int("pages", result.Pages),
			zap.Int64("objects", result.Objects),
			zap.Duration("elapsed", result.Elapsed))
	}
	return result, err
}

func (d *Downloader) redact(objects []stripe.Object) ([]stripe.Object, error) {
	if len(d.RedactFields) == 0 {
		return objects, nil
	}

	out := make([]stripe.Object, len(objects))
	for i, obj := range objects {
		data := []byte(obj.Data)
		for _, path := range d.RedactFields {
			var err error
			data, err = sjson.DeleteBytes(data, path)
			if err != nil {
				return nil, fmt.Errorf("redact %s from %s: %w", path, obj.ID, err)
			}
		}
		obj.Data = data
		out[i] = obj
	}
	return out, nil
}

func (d *Downloader) warn(msg string, objectType stripe.ObjectType, err error) {
	if d.Logger == nil {
		return
	}
	d.Logger.Warn(msg, zap.String("object_type", objectType.Name), zap.Error(err))
}

func (d *Downloader) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now().UTC()
}
