// Package harvest runs named SPARQL queries against the knowledge base and
// projects the bindings into flat work records on disk.
package harvest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/clioworks/figura/internal/config"
	"github.com/clioworks/figura/internal/jsonfile"
	"github.com/clioworks/figura/internal/schema"
)

type Harvester struct {
	Client  *SPARQLClient
	DataDir string
	Log     *zap.Logger
}

func NewHarvester(client *SPARQLClient, dataDir string, log *zap.Logger) *Harvester {
	return &Harvester{Client: client, DataDir: dataDir, Log: log}
}

// FilePath returns the conventional output path for a named harvest.
func FilePath(dir, name string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_harvest.json", name))
}

// Run executes one named query and writes its records to
// data/<name>_harvest.json. The file appears only on full success.
func (h *Harvester) Run(ctx context.Context, q config.SPARQLQuery) ([]schema.WorkRecord, error) {
	bindings, err := h.Client.Select(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("harvest %q: %w", q.Name, err)
	}

	records := Project(bindings, q.Name)
	h.Log.Info("harvest complete",
		zap.String("query", q.Name),
		zap.Int("bindings", len(bindings)),
		zap.Int("records", len(records)))

	path := FilePath(h.DataDir, q.Name)
	if err := jsonfile.Write(path, records); err != nil {
		return nil, fmt.Errorf("harvest %q: %w", q.Name, err)
	}
	return records, nil
}

// Project flattens SPARQL bindings into work records, deduplicating by
// wikidata_id. A work bound to several type statements keeps the first type
// seen; rows without a resolvable entity IRI are dropped.
func Project(bindings []Binding, source string) []schema.WorkRecord {
	seen := make(map[string]bool, len(bindings))
	records := make([]schema.WorkRecord, 0, len(bindings))

	for _, b := range bindings {
		id := entityID(b["work"].Value)
		if id == "" {
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		records = append(records, schema.WorkRecord{
			WikidataID:  id,
			Title:       b["workLabel"].Value,
			ReleaseYear: yearOf(b["date"].Value),
			TypeLabel:   b["typeLabel"].Value,
			Creator:     b["creatorLabel"].Value,
			Source:      source,
		})
	}
	return records
}

// entityID extracts the Q-ID from an entity IRI
// (http://www.wikidata.org/entity/Q202517 -> Q202517). A bare Q-ID passes
// through unchanged.
func entityID(iri string) string {
	if iri == "" {
		return ""
	}
	if i := strings.LastIndex(iri, "/"); i >= 0 {
		iri = iri[i+1:]
	}
	if !strings.HasPrefix(iri, "Q") {
		return ""
	}
	return iri
}

// yearOf takes the leading year of an ISO date string, best effort.
func yearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	year := date[:4]
	for _, c := range year {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return year
}
