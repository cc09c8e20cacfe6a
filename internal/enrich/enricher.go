// Package enrich turns seed work records into full enriched payloads:
// work metadata plus the portrayals the merger will write as edges.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clioworks/figura/internal/llm"
	"github.com/clioworks/figura/internal/schema"
)

type Enricher interface {
	Enrich(ctx context.Context, record schema.WorkRecord) (*schema.EnrichedWork, error)
}

var qidPattern = regexp.MustCompile(`^Q\d+$`)

// enrichmentPrompt asks for structured JSON only. The canonical_id
// requirement keeps the output joinable against the knowledge base; the
// model is told to omit figures it cannot identify rather than guess.
const enrichmentPrompt = `You are annotating a knowledge graph of historical figures in fiction.

Work: %q (%s, %s)

List the real historical figures portrayed in this work. For each figure give:
- canonical_id: the Wikidata Q-ID of the real person (omit the figure entirely if you do not know it)
- name: display name
- era: short period descriptor, e.g. "Tudor" or "1st century AD"
- role_description: one sentence on how the work portrays them
- sentiment_tags: tags describing the portrayal, preferring this vocabulary: %s
- is_protagonist: true or false
- actor_name: the portraying actor, only for film or television

Also list interactions: pairs of canonical_ids for figures who interact within the work.

Respond with only a JSON object:
{"figures": [{"canonical_id": "...", "name": "...", "era": "...", "role_description": "...", "sentiment_tags": ["..."], "is_protagonist": false, "actor_name": ""}], "interactions": [["Q1","Q2"]]}`

type enrichmentResponse struct {
	Figures []struct {
		CanonicalID     string   `json:"canonical_id"`
		Name            string   `json:"name"`
		Era             string   `json:"era"`
		RoleDescription string   `json:"role_description"`
		SentimentTags   []string `json:"sentiment_tags"`
		IsProtagonist   bool     `json:"is_protagonist"`
		ActorName       string   `json:"actor_name"`
	} `json:"figures"`
	Interactions [][]string `json:"interactions"`
}

// LLMEnricher sources portrayal metadata from a language model.
type LLMEnricher struct {
	Client  llm.Client
	Timeout time.Duration
	Log     *zap.Logger
	RunID   string

	now func() time.Time
}

func NewLLMEnricher(client llm.Client, timeout time.Duration, runID string, log *zap.Logger) *LLMEnricher {
	return &LLMEnricher{
		Client:  client,
		Timeout: timeout,
		Log:     log,
		RunID:   runID,
		now:     time.Now,
	}
}

func (e *LLMEnricher) Enrich(ctx context.Context, record schema.WorkRecord) (*schema.EnrichedWork, error) {
	if record.WikidataID == "" {
		return nil, schemaViolation("wikidata_id", "", "seed record has no merge key")
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(enrichmentPrompt,
		record.Title, orUnknown(record.TypeLabel), orUnknown(record.ReleaseYear), commonVocabulary())

	response, err := e.Client.Generate(ctx, prompt)
	if err != nil {
		return nil, classifySourceError(err)
	}

	parsed, err := llm.ParseJSON[enrichmentResponse](response)
	if err != nil {
		return nil, schemaViolation("response", truncate(response, 120), "enrichment source returned malformed JSON")
	}

	portrayals, err := e.validate(record, parsed)
	if err != nil {
		return nil, err
	}

	enriched := &schema.EnrichedWork{
		Work:       workOf(record),
		Portrayals: portrayals,
		RunID:      e.RunID,
		EnrichedAt: e.now().UTC(),
	}

	for _, pair := range parsed.Interactions {
		if len(pair) != 2 || !qidPattern.MatchString(pair[0]) || !qidPattern.MatchString(pair[1]) {
			continue
		}
		if pair[0] == pair[1] {
			continue
		}
		enriched.Interactions = append(enriched.Interactions, schema.Interaction{
			FigureA: pair[0], FigureB: pair[1],
		})
	}

	e.Log.Info("enriched work",
		zap.String("wikidata_id", record.WikidataID),
		zap.String("title", record.Title),
		zap.Int("portrayals", len(enriched.Portrayals)),
		zap.Int("interactions", len(enriched.Interactions)))
	return enriched, nil
}

// validate checks the external data against the schema. A name claimed with
// two different canonical ids is ambiguous and goes to human triage with
// the full candidate set.
func (e *LLMEnricher) validate(record schema.WorkRecord, parsed enrichmentResponse) ([]schema.Portrayal, error) {
	byName := make(map[string][]string)
	portrayals := make([]schema.Portrayal, 0, len(parsed.Figures))
	mediaType := schema.NormalizeTypeLabel(record.TypeLabel)

	for _, f := range parsed.Figures {
		if !qidPattern.MatchString(f.CanonicalID) {
			return nil, schemaViolation("canonical_id", f.CanonicalID, "not a Q-ID")
		}
		if strings.TrimSpace(f.Name) == "" {
			return nil, schemaViolation("name", "", "figure has no name")
		}

		key := strings.ToLower(strings.TrimSpace(f.Name))
		byName[key] = appendUnique(byName[key], f.CanonicalID)

		tags := make([]schema.Sentiment, 0, len(f.SentimentTags))
		for _, raw := range f.SentimentTags {
			if t := schema.OtherSentiment(raw); !t.IsZero() {
				tags = append(tags, t)
			}
		}

		actor := f.ActorName
		if !mediaType.IsScreen() {
			actor = ""
		}

		portrayals = append(portrayals, schema.Portrayal{
			FigureID:        f.CanonicalID,
			FigureName:      strings.TrimSpace(f.Name),
			Era:             f.Era,
			RoleDescription: f.RoleDescription,
			SentimentTags:   tags,
			IsProtagonist:   f.IsProtagonist,
			ActorName:       actor,
		})
	}

	for name, ids := range byName {
		if len(ids) > 1 {
			return nil, &WorkError{
				Kind:       KindAmbiguousEntity,
				Msg:        fmt.Sprintf("figure %q resolved to multiple entities", name),
				Candidates: ids,
			}
		}
	}
	return portrayals, nil
}

// classifySourceError buckets a failure from the enrichment source into the
// worker taxonomy. Timeouts and network faults are retryable; anything else
// is a plain enrichment failure.
func classifySourceError(err error) *WorkError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &WorkError{Kind: KindTimeout, Msg: "enrichment source timed out"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &WorkError{Kind: KindTimeout, Msg: err.Error()}
		}
		return &WorkError{Kind: KindTransport, Msg: err.Error()}
	}
	return &WorkError{Kind: KindEnrichment, Msg: err.Error()}
}

// workOf lifts a seed record into canonical work metadata.
func workOf(record schema.WorkRecord) schema.MediaWork {
	work := schema.MediaWork{
		WikidataID: record.WikidataID,
		Title:      record.Title,
		MediaType:  schema.NormalizeTypeLabel(record.TypeLabel),
		Creator:    record.Creator,
		Source:     record.Source,
	}
	if year, err := strconv.Atoi(record.ReleaseYear); err == nil {
		work.ReleaseYear = &year
	}
	return work
}

func commonVocabulary() string {
	tags := []schema.Sentiment{
		schema.SentimentComplex, schema.SentimentSympathetic, schema.SentimentVillainous,
		schema.SentimentHeroic, schema.SentimentTragic, schema.SentimentComic,
		schema.SentimentAmbiguous,
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
