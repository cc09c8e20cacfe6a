package schema

import "time"

// HistoricalFigure is a real person, merge-keyed on the external canonical
// identifier (a Wikidata Q-ID for every figure seen so far).
type HistoricalFigure struct {
	CanonicalID string `json:"canonical_id"`
	Name        string `json:"name"`
	Era         string `json:"era,omitempty"`
}

// MediaWork is a book, film, or series. MediaID is the locally allocated
// merge key (MW_<n>); WikidataID is the external alternate key. Legacy nodes
// may carry only one of the two, so lookups accept either.
type MediaWork struct {
	MediaID     string    `json:"media_id,omitempty"`
	WikidataID  string    `json:"wikidata_id,omitempty"`
	Title       string    `json:"title"`
	ReleaseYear *int      `json:"release_year,omitempty"`
	MediaType   MediaType `json:"media_type,omitempty"`
	Creator     string    `json:"creator,omitempty"`
	Source      string    `json:"source,omitempty"`
}

// User is a human curator. Created by the front-end's auth flow, never by
// the pipeline; ingestion only reads it to stamp edge provenance.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// WorkRecord is one harvested row: the flat projection of a SPARQL binding.
// ReleaseYear and TypeLabel stay as raw strings until merge time because the
// harvest must degrade gracefully on missing or malformed source data.
type WorkRecord struct {
	WikidataID  string `json:"wikidata_id"`
	Title       string `json:"title"`
	ReleaseYear string `json:"release_year"`
	TypeLabel   string `json:"type"`
	Creator     string `json:"creator,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Portrayal describes one figure's appearance in one work: the payload of an
// APPEARS_IN edge before it reaches the graph.
type Portrayal struct {
	FigureID        string      `json:"canonical_id"`
	FigureName      string      `json:"name"`
	Era             string      `json:"era,omitempty"`
	RoleDescription string      `json:"role_description,omitempty"`
	SentimentTags   []Sentiment `json:"sentiment_tags"`
	IsProtagonist   bool        `json:"is_protagonist"`
	ActorName       string      `json:"actor_name,omitempty"`
}

// Interaction is an undirected figure-figure association within one work.
type Interaction struct {
	FigureA string `json:"figure_a"`
	FigureB string `json:"figure_b"`
}

// EnrichedWork is the worker's output for one seed record: canonical work
// metadata plus the portrayal list the merger will turn into edges.
type EnrichedWork struct {
	Work         MediaWork     `json:"work"`
	Portrayals   []Portrayal   `json:"portrayals"`
	Interactions []Interaction `json:"interactions,omitempty"`
	RunID        string        `json:"run_id,omitempty"`
	EnrichedAt   time.Time     `json:"enriched_at"`
}

// Constraints returns the uniqueness constraints applied at bootstrap.
// Every statement is idempotent (IF NOT EXISTS) so re-running is safe.
func Constraints() []string {
	return []string{
		"CREATE CONSTRAINT historical_figure_canonical_id IF NOT EXISTS FOR (f:HistoricalFigure) REQUIRE f.canonical_id IS UNIQUE",
		"CREATE CONSTRAINT media_work_media_id IF NOT EXISTS FOR (w:MediaWork) REQUIRE w.media_id IS UNIQUE",
		"CREATE CONSTRAINT media_work_wikidata_id IF NOT EXISTS FOR (w:MediaWork) REQUIRE w.wikidata_id IS UNIQUE",
		"CREATE CONSTRAINT user_email IF NOT EXISTS FOR (u:User) REQUIRE u.email IS UNIQUE",
	}
}
