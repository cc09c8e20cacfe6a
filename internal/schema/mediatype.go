package schema

import "strings"

// MediaType is the current classification of a MediaWork. The harvest side of
// the pipeline sees raw Wikidata type labels ("novel", "literary work"); the
// graph stores the capitalized canonical form. Unknown labels round-trip
// unchanged through OtherMediaType so nothing is lost between harvest and
// merge.
type MediaType struct {
	value string
}

var (
	MediaTypeBook        = MediaType{"Book"}
	MediaTypeFilm        = MediaType{"Film"}
	MediaTypeTVSeries    = MediaType{"TVSeries"}
	MediaTypePlay        = MediaType{"Play"}
	MediaTypeDocumentary = MediaType{"Documentary"}
	MediaTypeOpera       = MediaType{"Opera"}
	MediaTypeVideoGame   = MediaType{"VideoGame"}
)

// OtherMediaType wraps a value outside the known set.
func OtherMediaType(raw string) MediaType {
	return MediaType{raw}
}

func (t MediaType) String() string { return t.value }

func (t MediaType) IsZero() bool { return t.value == "" }

// IsScreen reports whether portrayals of this type carry an actor.
func (t MediaType) IsScreen() bool {
	switch t {
	case MediaTypeFilm, MediaTypeTVSeries, MediaTypeDocumentary:
		return true
	}
	return false
}

func (t MediaType) MarshalText() ([]byte, error) {
	return []byte(t.value), nil
}

func (t *MediaType) UnmarshalText(data []byte) error {
	t.value = string(data)
	return nil
}

// typeLabelMap maps the SPARQL typeLabel vocabulary onto canonical media
// types. Labels come from Wikidata's instance-of hierarchy and are messier
// than the canonical set; anything unmapped is kept raw.
var typeLabelMap = map[string]MediaType{
	"book":               MediaTypeBook,
	"novel":              MediaTypeBook,
	"historical novel":   MediaTypeBook,
	"literary work":      MediaTypeBook,
	"written work":       MediaTypeBook,
	"biography":          MediaTypeBook,
	"film":               MediaTypeFilm,
	"feature film":       MediaTypeFilm,
	"television film":    MediaTypeFilm,
	"television series":  MediaTypeTVSeries,
	"television program": MediaTypeTVSeries,
	"miniseries":         MediaTypeTVSeries,
	"play":               MediaTypePlay,
	"theatrical work":    MediaTypePlay,
	"documentary film":   MediaTypeDocumentary,
	"opera":              MediaTypeOpera,
	"video game":         MediaTypeVideoGame,
}

// NormalizeTypeLabel converts a harvested type label to a MediaType. Already
// canonical values ("Book") pass through; unknown labels surface as
// OtherMediaType of the raw string.
func NormalizeTypeLabel(raw string) MediaType {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MediaType{}
	}
	if t, ok := typeLabelMap[strings.ToLower(raw)]; ok {
		return t
	}
	for _, known := range []MediaType{
		MediaTypeBook, MediaTypeFilm, MediaTypeTVSeries, MediaTypePlay,
		MediaTypeDocumentary, MediaTypeOpera, MediaTypeVideoGame,
	} {
		if raw == known.value {
			return known
		}
	}
	return OtherMediaType(raw)
}
