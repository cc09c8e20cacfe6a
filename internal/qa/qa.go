// Package qa holds the operational probes: read-only queries against the
// live store followed by human-readable verdicts. These are not unit tests;
// they exist to be run by a curator against production data.
package qa

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/clioworks/figura/internal/driver"
	"github.com/clioworks/figura/internal/merge"
	"github.com/clioworks/figura/internal/schema"
)

type Prober struct {
	Driver driver.GraphDriver
	Log    *zap.Logger
}

func NewProber(d driver.GraphDriver, log *zap.Logger) *Prober {
	return &Prober{Driver: d, Log: log}
}

// SchemaReport counts legacy vs current property usage across MediaWork
// nodes. A nonzero legacy count means the migration has nodes left to
// reconcile.
type SchemaReport struct {
	Total             int64 `json:"total"`
	LegacyYear        int64 `json:"legacy_year"`
	LegacyType        int64 `json:"legacy_type"`
	ReleaseYear       int64 `json:"release_year"`
	MediaType         int64 `json:"media_type"`
	MissingMediaID    int64 `json:"missing_media_id"`
	MissingWikidataID int64 `json:"missing_wikidata_id"`
}

func (p *Prober) SchemaConsistency(ctx context.Context) (*SchemaReport, error) {
	result, err := p.Driver.ExecuteQuery(ctx, driver.SchemaReportQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("schema report: %w", err)
	}
	if len(result.Records) == 0 {
		return &SchemaReport{}, nil
	}

	rec := result.Records[0]
	report := &SchemaReport{
		Total:             intField(rec, "total"),
		LegacyYear:        intField(rec, "legacy_year"),
		LegacyType:        intField(rec, "legacy_type"),
		ReleaseYear:       intField(rec, "release_year"),
		MediaType:         intField(rec, "media_type"),
		MissingMediaID:    intField(rec, "missing_media_id"),
		MissingWikidataID: intField(rec, "missing_wikidata_id"),
	}
	return report, nil
}

func (r *SchemaReport) WriteTable(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "media works\t%d\n", r.Total)
	fmt.Fprintf(tw, "legacy 'year'\t%d\n", r.LegacyYear)
	fmt.Fprintf(tw, "legacy 'type'\t%d\n", r.LegacyType)
	fmt.Fprintf(tw, "current 'release_year'\t%d\n", r.ReleaseYear)
	fmt.Fprintf(tw, "current 'media_type'\t%d\n", r.MediaType)
	fmt.Fprintf(tw, "missing media_id\t%d\n", r.MissingMediaID)
	fmt.Fprintf(tw, "missing wikidata_id\t%d\n", r.MissingWikidataID)
	_ = tw.Flush()

	if r.LegacyYear == 0 && r.LegacyType == 0 && r.MissingMediaID == 0 {
		fmt.Fprintln(w, "✅ schema is consistent")
	} else {
		fmt.Fprintln(w, "❌ legacy or incomplete nodes remain")
	}
}

// Existence reports which of the given external IDs resolve to a node.
type Existence struct {
	Present []string `json:"present"`
	Missing []string `json:"missing"`
}

func (p *Prober) Exists(ctx context.Context, ids []string) (*Existence, error) {
	if len(ids) == 0 {
		return &Existence{}, nil
	}

	result, err := p.Driver.ExecuteQuery(ctx, driver.ExistenceProbeQuery, map[string]interface{}{
		"ids": ids,
	})
	if err != nil {
		return nil, fmt.Errorf("existence probe: %w", err)
	}

	var ex Existence
	for _, rec := range result.Records {
		id, _ := rec.Get("id")
		idStr, _ := id.(string)
		figure, _ := rec.Get("figure")
		work, _ := rec.Get("work")
		if truthy(figure) || truthy(work) {
			ex.Present = append(ex.Present, idStr)
		} else {
			ex.Missing = append(ex.Missing, idStr)
		}
	}
	return &ex, nil
}

func (e *Existence) WriteTable(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, id := range e.Present {
		fmt.Fprintf(tw, "%s\tpresent\n", id)
	}
	for _, id := range e.Missing {
		fmt.Fprintf(tw, "%s\tMISSING\n", id)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d present, %d missing\n", len(e.Present), len(e.Missing))
}

// Orphans are nodes no appearance edge touches.
type Orphans struct {
	Figures []schema.HistoricalFigure `json:"figures"`
	Works   []schema.MediaWork        `json:"works"`
}

func (p *Prober) OrphanScan(ctx context.Context) (*Orphans, error) {
	var orphans Orphans

	figures, err := p.Driver.ExecuteQuery(ctx, driver.OrphanFiguresQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("orphan scan: %w", err)
	}
	for _, rec := range figures.Records {
		orphans.Figures = append(orphans.Figures, schema.HistoricalFigure{
			CanonicalID: stringField(rec, "canonical_id"),
			Name:        stringField(rec, "name"),
		})
	}

	works, err := p.Driver.ExecuteQuery(ctx, driver.OrphanWorksQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("orphan scan: %w", err)
	}
	for _, rec := range works.Records {
		orphans.Works = append(orphans.Works, schema.MediaWork{
			MediaID:    stringField(rec, "media_id"),
			WikidataID: stringField(rec, "wikidata_id"),
			Title:      stringField(rec, "title"),
		})
	}
	return &orphans, nil
}

func (o *Orphans) WriteTable(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range o.Figures {
		fmt.Fprintf(tw, "figure\t%s\t%s\n", f.CanonicalID, f.Name)
	}
	for _, work := range o.Works {
		fmt.Fprintf(tw, "work\t%s\t%s\n", work.MediaID, work.Title)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d orphaned figures, %d orphaned works\n", len(o.Figures), len(o.Works))
}

// UserProbe reports which curator emails have User nodes. Users come from
// the front-end; this is how a missing_user failure gets diagnosed.
func (p *Prober) Users(ctx context.Context, emails []string) (*Existence, error) {
	var ex Existence
	for _, email := range emails {
		result, err := p.Driver.ExecuteQuery(ctx, driver.UserByEmailQuery, map[string]interface{}{
			"email": email,
		})
		if err != nil {
			return nil, fmt.Errorf("user probe: %w", err)
		}
		if len(result.Records) > 0 {
			ex.Present = append(ex.Present, email)
		} else {
			ex.Missing = append(ex.Missing, email)
		}
	}
	return &ex, nil
}

// AppearanceProbe runs the canonical appearance upsert end to end with
// literal parameters and verifies exactly one relationship record comes
// back. It writes to the live store on purpose; the parameters are the
// fixed QA figures, which the pipeline owns.
func (p *Prober) AppearanceProbe(ctx context.Context, m *merge.Merger, figureID, workRef, userEmail string) error {
	result, err := m.UpsertAppearance(ctx, figureID, workRef, userEmail, merge.AppearancePayload{
		SentimentTags:   []schema.Sentiment{schema.SentimentComplex},
		RoleDescription: "qa probe",
	})
	if err != nil {
		return fmt.Errorf("appearance probe: %w", err)
	}
	if result.CreatedAt == 0 {
		return fmt.Errorf("appearance probe: edge has no created_at stamp")
	}
	p.Log.Info("appearance probe ok",
		zap.String("figure", figureID),
		zap.String("work", result.MediaID))
	return nil
}

func intField(rec recordGetter, key string) int64 {
	v, _ := rec.Get(key)
	n, _ := v.(int64)
	return n
}

func stringField(rec recordGetter, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func truthy(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

type recordGetter interface {
	Get(key string) (interface{}, bool)
}
