// Package storage defines the contract between the discovery engine and the
// entity store. Adapters live in the memory and postgres subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
	"github.com/nepal-guide-hub/discovery/internal/searcher/filter"
	"github.com/nepal-guide-hub/discovery/internal/searcher/sorter"
	"github.com/nepal-guide-hub/discovery/internal/searcher/tokenizer"
)

// ErrUnknownKind is returned for a Fetch naming a kind the adapter does not
// serve.
var ErrUnknownKind = errors.New("unknown entity kind")

// Fetch describes one candidate fetch.
type Fetch struct {
	Kind catalog.Kind
	// Predicates may be pushed down. Adapters that cannot express a
	// predicate may skip it; the caller re-applies all of them.
	Predicates []filter.Predicate
	// Text restricts candidates to items where at least one query token is
	// a case-insensitive substring of one of TextFields. An empty query
	// restricts nothing. Unlike predicates, adapters must apply it before
	// Limit so the cap never drops a matching item in favour of one that
	// cannot match.
	Text       tokenizer.Query
	TextFields []string
	// Order is the preferred candidate order, used to choose which rows
	// survive Limit.
	Order []sorter.Key
	// Limit caps the number of candidates. Zero means no cap.
	Limit int
}

// Repository returns eligibility-filtered candidate snapshots. Implementations
// must only return items whose Eligible method reports true and must fill
// derived metadata such as an agency's active package count.
type Repository interface {
	Candidates(ctx context.Context, f Fetch) ([]catalog.Item, error)
}
