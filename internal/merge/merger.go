// Package merge is the idempotent upsert protocol between the pipeline and
// the graph. Every operation is a single Cypher statement merge-keyed on the
// shapes declared in the schema package, so running any ingestion twice
// leaves the graph as running it once, modulo updated_* stamps.
package merge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/clioworks/figura/internal/driver"
	"github.com/clioworks/figura/internal/kanban"
	"github.com/clioworks/figura/internal/schema"
)

// ErrMissingUser distinguishes the missing-prerequisite case: appearance
// provenance requires a User node, and users are seeded by the front-end,
// never by the pipeline.
var ErrMissingUser = errors.New("user does not exist in the graph")

// ErrNotFound is returned when an endpoint of an edge upsert cannot be
// resolved.
var ErrNotFound = errors.New("entity not found in the graph")

type Merger struct {
	Driver driver.GraphDriver
	Log    *zap.Logger

	// RetryDelay before the single retry of a transient graph failure.
	RetryDelay time.Duration

	now func() time.Time
}

func NewMerger(d driver.GraphDriver, log *zap.Logger) *Merger {
	return &Merger{Driver: d, Log: log, RetryDelay: 2 * time.Second, now: time.Now}
}

// transient reports whether a graph query failure is a network or
// connectivity fault rather than a Cypher or data problem.
func transient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return neo4j.IsConnectivityError(err)
}

// run executes one query, retrying exactly once when the failure is
// transient. One dropped connection must not settle a record as failed.
func (m *Merger) run(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := m.Driver.ExecuteQuery(ctx, query, params)
	if err == nil || !transient(err) || ctx.Err() != nil {
		return result, err
	}

	m.Log.Warn("transient graph error, retrying once", zap.Error(err))
	select {
	case <-ctx.Done():
		return neo4j.EagerResult{}, ctx.Err()
	case <-time.After(m.RetryDelay):
	}
	return m.Driver.ExecuteQuery(ctx, query, params)
}

// EnsureConstraints applies the uniqueness constraints. Safe to re-run.
func (m *Merger) EnsureConstraints(ctx context.Context) error {
	for _, stmt := range schema.Constraints() {
		if _, err := m.run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to apply constraint: %w", err)
		}
	}
	return nil
}

// UpsertMediaWork match-or-creates a work, preferring the local media_id as
// merge key and falling back to the external wikidata_id. Legacy year/type
// properties are folded into release_year/media_type by the query itself.
// Returns the work's media_id, allocating the next MW_<n> when the node is
// keyed by wikidata_id and has none yet.
func (m *Merger) UpsertMediaWork(ctx context.Context, work schema.MediaWork) (string, error) {
	params := map[string]interface{}{
		"title":        nullable(work.Title),
		"wikidata_id":  nullable(work.WikidataID),
		"release_year": nullableInt(work.ReleaseYear),
		"media_type":   nullableType(work.MediaType),
		"creator":      nullable(work.Creator),
		"source":       nullable(work.Source),
	}

	query := driver.UpsertMediaWorkByMediaIDQuery
	if work.MediaID != "" {
		params["media_id"] = work.MediaID
	} else {
		if work.WikidataID == "" {
			return "", fmt.Errorf("media work %q has neither media_id nor wikidata_id", work.Title)
		}
		next, err := m.nextMediaID(ctx)
		if err != nil {
			return "", err
		}
		params["new_media_id"] = next
		query = driver.UpsertMediaWorkByWikidataIDQuery
	}

	result, err := m.run(ctx, query, params)
	if err != nil {
		return "", fmt.Errorf("failed to upsert media work: %w", err)
	}
	if len(result.Records) == 0 {
		return work.MediaID, nil
	}

	mediaID, _ := result.Records[0].Get("media_id")
	id, _ := mediaID.(string)
	m.Log.Debug("upserted media work",
		zap.String("media_id", id),
		zap.String("wikidata_id", work.WikidataID),
		zap.String("title", work.Title))
	return id, nil
}

// nextMediaID allocates the next local MW_<n> identifier. Single-writer by
// design: the pipeline is the only allocator of the MW_ namespace.
func (m *Merger) nextMediaID(ctx context.Context) (string, error) {
	result, err := m.run(ctx, driver.NextMediaIDQuery, nil)
	if err != nil {
		return "", fmt.Errorf("failed to allocate media_id: %w", err)
	}

	var max int64
	if len(result.Records) > 0 {
		if n, ok := result.Records[0].Get("n"); ok && n != nil {
			if v, ok := n.(int64); ok {
				max = v
			}
		}
	}
	return fmt.Sprintf("MW_%d", max+1), nil
}

// UpsertHistoricalFigure merges on canonical_id and refreshes name and era.
func (m *Merger) UpsertHistoricalFigure(ctx context.Context, figure schema.HistoricalFigure) error {
	if figure.CanonicalID == "" {
		return fmt.Errorf("historical figure %q has no canonical_id", figure.Name)
	}

	params := map[string]interface{}{
		"canonical_id": figure.CanonicalID,
		"name":         nullable(figure.Name),
		"era":          nullable(figure.Era),
	}
	if _, err := m.run(ctx, driver.UpsertHistoricalFigureQuery, params); err != nil {
		return fmt.Errorf("failed to upsert figure %s: %w", figure.CanonicalID, err)
	}
	return nil
}

// AppearancePayload is everything the curator asserts about one portrayal.
type AppearancePayload struct {
	SentimentTags   []schema.Sentiment
	RoleDescription string
	IsProtagonist   bool
	ActorName       string
}

// AppearanceResult reports the edge's provenance stamps after the upsert.
type AppearanceResult struct {
	FigureID  string
	MediaID   string
	CreatedAt int64
	UpdatedAt *int64
}

// UpsertAppearance creates or updates the single APPEARS_IN edge for a
// (figure, work) pair. The work reference is bi-modal: a local MW_
// identifier or an external Q-ID, both resolving to the same node and hence
// the same edge. The user must already exist; its absence is the
// distinguished ErrMissingUser, and no edge is written.
func (m *Merger) UpsertAppearance(ctx context.Context, figureID, workRef, userEmail string, payload AppearancePayload) (*AppearanceResult, error) {
	userResult, err := m.run(ctx, driver.UserByEmailQuery, map[string]interface{}{
		"email": userEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", userEmail, err)
	}
	if len(userResult.Records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingUser, userEmail)
	}

	meta := schema.SplitTags(payload.SentimentTags)
	tagMetadata, err := schema.EncodeTagMetadata(meta)
	if err != nil {
		return nil, err
	}

	tags := make([]string, len(payload.SentimentTags))
	for i, t := range payload.SentimentTags {
		tags[i] = t.String()
	}
	legacySentiment := ""
	if len(tags) > 0 {
		legacySentiment = tags[0]
	}

	query := driver.UpsertAppearanceByWikidataIDQuery
	if strings.HasPrefix(workRef, "MW_") {
		query = driver.UpsertAppearanceByMediaIDQuery
	}

	params := map[string]interface{}{
		"figure_id":        figureID,
		"work_ref":         workRef,
		"user_email":       userEmail,
		"now":              m.now().UnixMilli(),
		"sentiment_tags":   tags,
		"tag_metadata":     tagMetadata,
		"sentiment":        legacySentiment,
		"role_description": payload.RoleDescription,
		"is_protagonist":   payload.IsProtagonist,
		"actor_name":       nullable(payload.ActorName),
	}

	result, err := m.run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert appearance %s -> %s: %w", figureID, workRef, err)
	}
	if len(result.Records) == 0 {
		return nil, fmt.Errorf("%w: figure %s or work %s", ErrNotFound, figureID, workRef)
	}

	rec := result.Records[0]
	res := &AppearanceResult{FigureID: figureID}
	if v, _ := rec.Get("media_id"); v != nil {
		res.MediaID, _ = v.(string)
	}
	if v, _ := rec.Get("created_at"); v != nil {
		res.CreatedAt, _ = v.(int64)
	}
	if v, _ := rec.Get("updated_at"); v != nil {
		if ts, ok := v.(int64); ok {
			res.UpdatedAt = &ts
		}
	}
	return res, nil
}

// UpsertInteraction merges the undirected figure-figure edge for a work.
// Endpoints are ordered lexicographically by canonical_id before the query
// so the same pair can never produce two directed edges.
func (m *Merger) UpsertInteraction(ctx context.Context, figureA, figureB, mediaID string) error {
	if figureA == figureB {
		return fmt.Errorf("interaction endpoints are the same figure: %s", figureA)
	}
	if figureB < figureA {
		figureA, figureB = figureB, figureA
	}

	params := map[string]interface{}{
		"figure_a": figureA,
		"figure_b": figureB,
		"media_id": nullable(mediaID),
		"now":      m.now().UnixMilli(),
	}
	result, err := m.run(ctx, driver.UpsertInteractionQuery, params)
	if err != nil {
		return fmt.Errorf("failed to upsert interaction %s -- %s: %w", figureA, figureB, err)
	}
	if len(result.Records) == 0 {
		return fmt.Errorf("%w: interaction %s -- %s", ErrNotFound, figureA, figureB)
	}
	return nil
}

// MigrateSummary counts what one migration run wrote.
type MigrateSummary struct {
	Works        int
	Figures      int
	Appearances  int
	Interactions int
	Failures     int
}

// MigrateDone replays every enriched record from the done queue into the
// graph, in queue order. Per-record failures are logged and counted but do
// not stop the run; a missing curator user aborts, because it would fail
// every record the same way.
func (m *Merger) MigrateDone(ctx context.Context, store *kanban.Store, curatorEmail string) (MigrateSummary, error) {
	var summary MigrateSummary

	done, err := store.Done()
	if err != nil {
		return summary, err
	}

	for _, entry := range done {
		if entry.Enriched == nil {
			continue
		}
		if err := m.migrateEntry(ctx, entry, curatorEmail, &summary); err != nil {
			if errors.Is(err, ErrMissingUser) {
				return summary, err
			}
			summary.Failures++
			m.Log.Warn("failed to migrate record",
				zap.String("wikidata_id", entry.WikidataID),
				zap.Error(err))
		}
	}
	return summary, nil
}

func (m *Merger) migrateEntry(ctx context.Context, entry kanban.DoneEntry, curatorEmail string, summary *MigrateSummary) error {
	mediaID, err := m.UpsertMediaWork(ctx, entry.Enriched.Work)
	if err != nil {
		return err
	}
	summary.Works++

	workRef := mediaID
	if workRef == "" {
		workRef = entry.Enriched.Work.WikidataID
	}

	for _, p := range entry.Enriched.Portrayals {
		figure := schema.HistoricalFigure{
			CanonicalID: p.FigureID,
			Name:        p.FigureName,
			Era:         p.Era,
		}
		if err := m.UpsertHistoricalFigure(ctx, figure); err != nil {
			return err
		}
		summary.Figures++

		_, err := m.UpsertAppearance(ctx, p.FigureID, workRef, curatorEmail, AppearancePayload{
			SentimentTags:   p.SentimentTags,
			RoleDescription: p.RoleDescription,
			IsProtagonist:   p.IsProtagonist,
			ActorName:       p.ActorName,
		})
		if err != nil {
			return err
		}
		summary.Appearances++
	}

	for _, in := range entry.Enriched.Interactions {
		if err := m.UpsertInteraction(ctx, in.FigureA, in.FigureB, mediaID); err != nil {
			return err
		}
		summary.Interactions++
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n *int) interface{} {
	if n == nil {
		return nil
	}
	return *n
}

func nullableType(t schema.MediaType) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.String()
}
