// Package matcher decides whether, and how strongly, a tokenised query
// appears in a single text field.
package matcher

import (
	"strings"

	"github.com/nepal-guide-hub/discovery/internal/searcher/tokenizer"
)

// FieldMatch is the match signal for one field.
type FieldMatch struct {
	// PhraseHit is set when the whole normalised phrase is a substring of
	// the field.
	PhraseHit bool `json:"phrase_hit"`
	// TokenHits counts query tokens found in the field. Each token counts
	// once no matter how often it occurs.
	TokenHits int `json:"token_hits"`
}

// Any reports whether the field matched at all.
func (m FieldMatch) Any() bool {
	return m.PhraseHit || m.TokenHits > 0
}

// Match compares value against q case-insensitively. Blank values and empty
// queries never match.
func Match(value string, q tokenizer.Query) FieldMatch {
	if q.Empty() || strings.TrimSpace(value) == "" {
		return FieldMatch{}
	}
	haystack := strings.ToLower(value)
	m := FieldMatch{PhraseHit: strings.Contains(haystack, q.Phrase)}
	for _, tok := range q.Tokens {
		if strings.Contains(haystack, tok) {
			m.TokenHits++
		}
	}
	return m
}
