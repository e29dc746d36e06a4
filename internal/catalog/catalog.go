// Package catalog defines the read-only entity snapshots the discovery engine
// searches over: travel packages, guides and agencies. Each entity exposes its
// searchable fields through the Item interface so that filtering, scoring and
// sorting can work on any kind without type switches.
package catalog

import (
	"strings"
	"time"
)

// Kind identifies one searchable entity kind.
type Kind string

const (
	KindPackages Kind = "packages"
	KindGuides   Kind = "guides"
	KindAgencies Kind = "agencies"
)

// Kinds lists every entity kind in the order results are produced for an
// "all" search.
var Kinds = []Kind{KindPackages, KindGuides, KindAgencies}

// Selector is the kind selector carried by a search request.
type Selector string

const SelectAll Selector = "all"

// ParseSelector maps a raw request value to a Selector. Unknown or empty
// values select every kind.
func ParseSelector(raw string) Selector {
	switch s := Selector(strings.ToLower(strings.TrimSpace(raw))); s {
	case Selector(KindPackages), Selector(KindGuides), Selector(KindAgencies):
		return s
	default:
		return SelectAll
	}
}

// Kinds returns the entity kinds covered by the selector.
func (s Selector) Kinds() []Kind {
	if s == SelectAll {
		return Kinds
	}
	return []Kind{Kind(s)}
}

// Field names shared by the filter, scorer, sorter and storage adapters.
const (
	FieldTitle         = "title"
	FieldName          = "name"
	FieldDescription   = "description"
	FieldBestSeason    = "best_season"
	FieldAgencyName    = "agency_name"
	FieldBio           = "bio"
	FieldPlacesCovered = "places_covered"

	FieldPackageType  = "package_type"
	FieldDifficulty   = "difficulty"
	FieldAddress      = "address"
	FieldPrice        = "price"
	FieldDuration     = "duration"
	FieldRate         = "rate"
	FieldExperience   = "experience"
	FieldEstablished  = "established_year"
	FieldRating       = "rating"
	FieldTotalRatings = "total_ratings"
	FieldViews        = "views"
	FieldPackageCount = "package_count"
	FieldSpecialties  = "specialties"
	FieldLanguages    = "languages"
	FieldCreatedAt    = "created_at"
	FieldID           = "id"
)

// Item is a searchable entity snapshot.
type Item interface {
	Kind() Kind
	ItemID() int64
	Label() string
	CreatedAt() time.Time
	// Text returns a free-text field used for query matching.
	Text(field string) string
	// Number returns a numeric field. ok is false when the value is null or
	// the field does not exist for the kind.
	Number(field string) (value float64, ok bool)
	// String returns a categorical or substring-matchable field.
	String(field string) (value string, ok bool)
	// Set returns a set-valued field.
	Set(field string) []string
	// Eligible reports whether the item passes the kind's fixed visibility
	// predicate.
	Eligible() bool
}

// AgencyRef is the owning agency as seen from a package or a guide.
type AgencyRef struct {
	ID           int64   `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	Verified     bool    `json:"verified" yaml:"verified"`
	Rating       float64 `json:"rating" yaml:"rating"`
	TotalRatings int     `json:"total_ratings" yaml:"total_ratings"`
}
