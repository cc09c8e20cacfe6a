// Package kanban is the file-backed work queue between harvest and
// ingestion: three JSON arrays on disk, of which only done and failed ever
// change after seeding. The todo file is an immutable seed list; progress is
// the set difference, which makes every run resumable by construction.
package kanban

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/clioworks/figura/internal/jsonfile"
	"github.com/clioworks/figura/internal/schema"
)

const (
	todoFile   = "1_todo_harvest.json"
	doneFile   = "2_done_enriched.json"
	failedFile = "3_failed_qa.json"
)

// DoneEntry is a seed record plus the enrichment it earned.
type DoneEntry struct {
	schema.WorkRecord
	Enriched *schema.EnrichedWork `json:"enriched,omitempty"`
}

// FailedEntry is a seed record plus why it failed, kept for human triage.
type FailedEntry struct {
	schema.WorkRecord
	Error      string   `json:"error"`
	ErrorKind  string   `json:"error_kind,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	FailedAt   int64    `json:"failed_at"`
}

type Status struct {
	Todo      int `json:"todo"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

type Store struct {
	Dir string
	Log *zap.Logger

	now func() time.Time
}

func NewStore(dir string, log *zap.Logger) *Store {
	return &Store{Dir: dir, Log: log, now: time.Now}
}

func (s *Store) TodoPath() string   { return filepath.Join(s.Dir, todoFile) }
func (s *Store) DonePath() string   { return filepath.Join(s.Dir, doneFile) }
func (s *Store) FailedPath() string { return filepath.Join(s.Dir, failedFile) }

// Seed unions the given harvest files into the todo queue, deduplicating by
// wikidata_id in first-occurrence order. The done and failed files are
// created empty when absent and never touched when they already hold
// progress.
func (s *Store) Seed(harvestPaths []string) (int, error) {
	seen := make(map[string]bool)
	var todo []schema.WorkRecord

	for _, path := range harvestPaths {
		var records []schema.WorkRecord
		ok, err := jsonfile.Read(path, &records)
		if err != nil {
			return 0, fmt.Errorf("seed: %w", err)
		}
		if !ok {
			return 0, fmt.Errorf("seed: harvest file %s does not exist", path)
		}
		for _, r := range records {
			if r.WikidataID == "" || seen[r.WikidataID] {
				continue
			}
			seen[r.WikidataID] = true
			todo = append(todo, r)
		}
	}

	if todo == nil {
		todo = []schema.WorkRecord{}
	}
	if err := jsonfile.Write(s.TodoPath(), todo); err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}

	if err := s.ensureEmpty(s.DonePath()); err != nil {
		return 0, err
	}
	if err := s.ensureEmpty(s.FailedPath()); err != nil {
		return 0, err
	}

	s.Log.Info("seeded todo queue",
		zap.Int("records", len(todo)),
		zap.Int("harvest_files", len(harvestPaths)))
	return len(todo), nil
}

func (s *Store) ensureEmpty(path string) error {
	var existing []map[string]interface{}
	ok, err := jsonfile.Read(path, &existing)
	if err != nil {
		return err
	}
	if ok {
		// Non-empty progress files survive re-seeding.
		return nil
	}
	return jsonfile.Write(path, []struct{}{})
}

// NextPending returns the first todo record not yet settled into done or
// failed, or nil when the queue is drained. The todo file is never modified.
func (s *Store) NextPending() (*schema.WorkRecord, error) {
	todo, err := s.Todo()
	if err != nil {
		return nil, err
	}
	settled, err := s.settledIDs()
	if err != nil {
		return nil, err
	}

	for i := range todo {
		if !settled[todo[i].WikidataID] {
			r := todo[i]
			return &r, nil
		}
	}
	return nil, nil
}

// MarkDone appends the record and its enrichment to the done queue.
func (s *Store) MarkDone(record schema.WorkRecord, enriched *schema.EnrichedWork) error {
	done, err := s.Done()
	if err != nil {
		return err
	}
	done = append(done, DoneEntry{WorkRecord: record, Enriched: enriched})
	if err := jsonfile.Write(s.DonePath(), done); err != nil {
		return fmt.Errorf("mark done %s: %w", record.WikidataID, err)
	}
	return nil
}

// MarkFailed appends the record with its error to the failed queue.
func (s *Store) MarkFailed(record schema.WorkRecord, failure error, kind string, candidates []string) error {
	failed, err := s.Failed()
	if err != nil {
		return err
	}
	failed = append(failed, FailedEntry{
		WorkRecord: record,
		Error:      failure.Error(),
		ErrorKind:  kind,
		Candidates: candidates,
		FailedAt:   s.now().UnixMilli(),
	})
	if err := jsonfile.Write(s.FailedPath(), failed); err != nil {
		return fmt.Errorf("mark failed %s: %w", record.WikidataID, err)
	}
	return nil
}

// Status reports queue counts. Remaining is todo minus everything settled.
func (s *Store) Status() (Status, error) {
	todo, err := s.Todo()
	if err != nil {
		return Status{}, err
	}
	done, err := s.Done()
	if err != nil {
		return Status{}, err
	}
	failed, err := s.Failed()
	if err != nil {
		return Status{}, err
	}
	settled, err := s.settledIDs()
	if err != nil {
		return Status{}, err
	}

	remaining := 0
	for _, r := range todo {
		if !settled[r.WikidataID] {
			remaining++
		}
	}

	return Status{
		Todo:      len(todo),
		Done:      len(done),
		Failed:    len(failed),
		Remaining: remaining,
	}, nil
}

func (s *Store) Todo() ([]schema.WorkRecord, error) {
	var todo []schema.WorkRecord
	if _, err := jsonfile.Read(s.TodoPath(), &todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *Store) Done() ([]DoneEntry, error) {
	var done []DoneEntry
	if _, err := jsonfile.Read(s.DonePath(), &done); err != nil {
		return nil, err
	}
	return done, nil
}

func (s *Store) Failed() ([]FailedEntry, error) {
	var failed []FailedEntry
	if _, err := jsonfile.Read(s.FailedPath(), &failed); err != nil {
		return nil, err
	}
	return failed, nil
}

func (s *Store) settledIDs() (map[string]bool, error) {
	done, err := s.Done()
	if err != nil {
		return nil, err
	}
	failed, err := s.Failed()
	if err != nil {
		return nil, err
	}

	settled := make(map[string]bool, len(done)+len(failed))
	for _, d := range done {
		settled[d.WikidataID] = true
	}
	for _, f := range failed {
		settled[f.WikidataID] = true
	}
	return settled, nil
}
