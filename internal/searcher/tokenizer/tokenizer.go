// Package tokenizer normalises free-text search queries. It lower-cases the
// input and splits it on whitespace. There is no stemming and no stop-word
// removal: matching downstream is plain substring containment, so what the
// user typed is exactly what gets matched.
package tokenizer

import "strings"

// Query is a normalised search query.
type Query struct {
	// Phrase is the lower-cased query with whitespace runs collapsed to a
	// single space.
	Phrase string
	// Tokens holds the whitespace-delimited words of Phrase in input order.
	// Duplicates are kept.
	Tokens []string
}

// Parse normalises raw into a Query. Empty or whitespace-only input yields
// the zero Query.
func Parse(raw string) Query {
	words := strings.Fields(strings.ToLower(raw))
	if len(words) == 0 {
		return Query{}
	}
	return Query{
		Phrase: strings.Join(words, " "),
		Tokens: words,
	}
}

// Empty reports whether the query carries no tokens.
func (q Query) Empty() bool {
	return len(q.Tokens) == 0
}
