package enrich

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/clioworks/figura/internal/kanban"
	"github.com/clioworks/figura/internal/schema"
)

// Summary is what a worker run prints when the loop stops.
type Summary struct {
	Processed int
	Done      int
	Failed    int
}

// Worker drains the kanban queue one work at a time. It never writes to the
// graph: its only outputs are done and failed entries, each written
// atomically, so a crash at any point leaves every other work untouched.
type Worker struct {
	Store    *kanban.Store
	Enricher Enricher
	Log      *zap.Logger

	// Backoff before the single retry of a retryable failure.
	Backoff time.Duration
}

func NewWorker(store *kanban.Store, enricher Enricher, log *zap.Logger) *Worker {
	return &Worker{
		Store:    store,
		Enricher: enricher,
		Log:      log,
		Backoff:  5 * time.Second,
	}
}

// Run processes pending works until the queue drains, the limit is reached,
// or the context is cancelled. limit <= 0 means no limit. Per-work failures
// are routed to the failed queue and do not stop the loop.
func (w *Worker) Run(ctx context.Context, limit int) (Summary, error) {
	var summary Summary

	for {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if limit > 0 && summary.Processed >= limit {
			return summary, nil
		}

		record, err := w.Store.NextPending()
		if err != nil {
			return summary, err
		}
		if record == nil {
			return summary, nil
		}

		summary.Processed++
		enriched, err := w.enrichWithRetry(ctx, *record)
		if err != nil {
			summary.Failed++
			kind, candidates := failureDetail(err)
			w.Log.Warn("work failed",
				zap.String("wikidata_id", record.WikidataID),
				zap.String("kind", kind),
				zap.Error(err))
			if markErr := w.Store.MarkFailed(*record, err, kind, candidates); markErr != nil {
				return summary, markErr
			}
			continue
		}

		summary.Done++
		if err := w.Store.MarkDone(*record, enriched); err != nil {
			return summary, err
		}
	}
}

// enrichWithRetry applies the failure taxonomy: timeouts and transport
// errors get exactly one retry after a backoff, everything else fails
// immediately.
func (w *Worker) enrichWithRetry(ctx context.Context, record schema.WorkRecord) (*schema.EnrichedWork, error) {
	enriched, err := w.Enricher.Enrich(ctx, record)
	if err == nil {
		return enriched, nil
	}

	var workErr *WorkError
	if !errors.As(err, &workErr) || !workErr.Retryable() {
		return nil, err
	}

	w.Log.Info("retrying after backoff",
		zap.String("wikidata_id", record.WikidataID),
		zap.Duration("backoff", w.Backoff))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(w.Backoff):
	}

	return w.Enricher.Enrich(ctx, record)
}

func failureDetail(err error) (kind string, candidates []string) {
	var workErr *WorkError
	if errors.As(err, &workErr) {
		return workErr.Kind, workErr.Candidates
	}
	return KindEnrichment, nil
}
