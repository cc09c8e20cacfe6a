package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Sentiment is one tag from the controlled portrayal vocabulary. The set is
// open: curators can attach custom tags, which round-trip through
// OtherSentiment and land in the "custom" half of tag_metadata.
type Sentiment struct {
	value string
}

var (
	SentimentComplex     = Sentiment{"complex"}
	SentimentSympathetic = Sentiment{"sympathetic"}
	SentimentVillainous  = Sentiment{"villainous"}
	SentimentHeroic      = Sentiment{"heroic"}
	SentimentTragic      = Sentiment{"tragic"}
	SentimentComic       = Sentiment{"comic"}
	SentimentAmbiguous   = Sentiment{"ambiguous"}
)

var commonSentiments = []Sentiment{
	SentimentComplex, SentimentSympathetic, SentimentVillainous,
	SentimentHeroic, SentimentTragic, SentimentComic, SentimentAmbiguous,
}

// OtherSentiment wraps a tag outside the common vocabulary.
func OtherSentiment(raw string) Sentiment {
	return Sentiment{strings.ToLower(strings.TrimSpace(raw))}
}

func (s Sentiment) String() string { return s.value }

func (s Sentiment) IsZero() bool { return s.value == "" }

// IsCommon reports whether the tag belongs to the controlled vocabulary.
func (s Sentiment) IsCommon() bool {
	for _, c := range commonSentiments {
		if s == c {
			return true
		}
	}
	return false
}

func (s Sentiment) MarshalText() ([]byte, error) {
	return []byte(s.value), nil
}

func (s *Sentiment) UnmarshalText(data []byte) error {
	*s = OtherSentiment(string(data))
	return nil
}

// TagMetadata is the common/custom split of an appearance's sentiment tags.
// The graph store rejects nested maps on relationship properties, so this
// structure always travels as a JSON string on the edge.
type TagMetadata struct {
	Common []string `json:"common"`
	Custom []string `json:"custom"`
}

// SplitTags buckets tags into the common vocabulary and custom remainders,
// preserving order within each bucket.
func SplitTags(tags []Sentiment) TagMetadata {
	meta := TagMetadata{Common: []string{}, Custom: []string{}}
	for _, t := range tags {
		if t.IsZero() {
			continue
		}
		if t.IsCommon() {
			meta.Common = append(meta.Common, t.String())
		} else {
			meta.Custom = append(meta.Custom, t.String())
		}
	}
	return meta
}

// EncodeTagMetadata serializes tag metadata for storage as an edge property.
func EncodeTagMetadata(meta TagMetadata) (string, error) {
	if meta.Common == nil {
		meta.Common = []string{}
	}
	if meta.Custom == nil {
		meta.Custom = []string{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode tag metadata: %w", err)
	}
	return string(data), nil
}

// DecodeTagMetadata parses the serialized edge property back into a struct.
func DecodeTagMetadata(raw string) (TagMetadata, error) {
	var meta TagMetadata
	if raw == "" {
		return TagMetadata{Common: []string{}, Custom: []string{}}, nil
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return TagMetadata{}, fmt.Errorf("failed to decode tag metadata %q: %w", raw, err)
	}
	return meta, nil
}
