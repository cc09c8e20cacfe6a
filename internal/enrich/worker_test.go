package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clioworks/figura/internal/jsonfile"
	"github.com/clioworks/figura/internal/kanban"
	"github.com/clioworks/figura/internal/schema"
)

// scriptedEnricher maps wikidata_id to a fixed outcome, counting calls.
type scriptedEnricher struct {
	results map[string]*schema.EnrichedWork
	errs    map[string]error
	calls   map[string]int
}

func (s *scriptedEnricher) Enrich(ctx context.Context, record schema.WorkRecord) (*schema.EnrichedWork, error) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[record.WikidataID]++
	if err, ok := s.errs[record.WikidataID]; ok {
		return nil, err
	}
	return s.results[record.WikidataID], nil
}

func seededStore(t *testing.T, ids ...string) *kanban.Store {
	t.Helper()
	store := kanban.NewStore(t.TempDir(), zap.NewNop())
	records := make([]schema.WorkRecord, len(ids))
	for i, id := range ids {
		records[i] = schema.WorkRecord{WikidataID: id, Title: "Work " + id}
	}
	path := store.Dir + "/seed_harvest.json"
	require.NoError(t, jsonfile.Write(path, records))
	_, err := store.Seed([]string{path})
	require.NoError(t, err)
	return store
}

func TestWorker_Run(t *testing.T) {
	store := seededStore(t, "Q1", "Q2", "Q3")
	enricher := &scriptedEnricher{
		results: map[string]*schema.EnrichedWork{
			"Q1": {Work: schema.MediaWork{WikidataID: "Q1"}},
			"Q3": {Work: schema.MediaWork{WikidataID: "Q3"}},
		},
		errs: map[string]error{
			"Q2": schemaViolation("canonical_id", "X", "not a Q-ID"),
		},
	}

	w := NewWorker(store, enricher, zap.NewNop())
	summary, err := w.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, Summary{Processed: 3, Done: 2, Failed: 1}, summary)

	status, err := store.Status()
	require.NoError(t, err)
	assert.Equal(t, kanban.Status{Todo: 3, Done: 2, Failed: 1, Remaining: 0}, status)

	failed, err := store.Failed()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "Q2", failed[0].WikidataID)
	assert.Equal(t, KindSchemaViolation, failed[0].ErrorKind)
}

func TestWorker_RetriesTimeoutsOnce(t *testing.T) {
	store := seededStore(t, "Q1")
	enricher := &scriptedEnricher{
		errs: map[string]error{
			"Q1": &WorkError{Kind: KindTimeout, Msg: "timed out"},
		},
	}

	w := NewWorker(store, enricher, zap.NewNop())
	w.Backoff = time.Millisecond

	summary, err := w.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Done: 0, Failed: 1}, summary)
	assert.Equal(t, 2, enricher.calls["Q1"], "one attempt plus exactly one retry")
}

func TestWorker_NoRetryOnSchemaViolation(t *testing.T) {
	store := seededStore(t, "Q1")
	enricher := &scriptedEnricher{
		errs: map[string]error{
			"Q1": schemaViolation("name", "", "figure has no name"),
		},
	}

	w := NewWorker(store, enricher, zap.NewNop())
	_, err := w.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, enricher.calls["Q1"])
}

func TestWorker_AmbiguityRecordsCandidates(t *testing.T) {
	store := seededStore(t, "Q1")
	enricher := &scriptedEnricher{
		errs: map[string]error{
			"Q1": &WorkError{Kind: KindAmbiguousEntity, Msg: "two matches", Candidates: []string{"Q10", "Q11"}},
		},
	}

	w := NewWorker(store, enricher, zap.NewNop())
	_, err := w.Run(context.Background(), 0)
	require.NoError(t, err)

	failed, err := store.Failed()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, []string{"Q10", "Q11"}, failed[0].Candidates)
}

func TestWorker_Limit(t *testing.T) {
	store := seededStore(t, "Q1", "Q2", "Q3")
	enricher := &scriptedEnricher{
		results: map[string]*schema.EnrichedWork{
			"Q1": {}, "Q2": {}, "Q3": {},
		},
	}

	w := NewWorker(store, enricher, zap.NewNop())
	summary, err := w.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)

	status, err := store.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.Remaining)
}

func TestWorker_FailureLeavesOtherWorksUntouched(t *testing.T) {
	store := seededStore(t, "Q1", "Q2")
	enricher := &scriptedEnricher{
		results: map[string]*schema.EnrichedWork{"Q2": {}},
		errs:    map[string]error{"Q1": schemaViolation("x", "y", "bad")},
	}

	w := NewWorker(store, enricher, zap.NewNop())
	_, err := w.Run(context.Background(), 0)
	require.NoError(t, err)

	// Q2 made it to done with its own payload; Q1's failure did not bleed
	// into it.
	done, err := store.Done()
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "Q2", done[0].WikidataID)
}
