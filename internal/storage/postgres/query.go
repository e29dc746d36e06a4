package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
	"github.com/nepal-guide-hub/discovery/internal/searcher/filter"
	"github.com/nepal-guide-hub/discovery/internal/storage"
)

// table describes how one kind maps onto the marketplace schema.
type table struct {
	selectFrom  string
	eligibility string
	// columns maps catalog fields to scalar SQL expressions.
	columns map[string]string
	// sets maps set-valued catalog fields to jsonb array columns.
	sets map[string]string
	// texts maps searchable text fields to their columns.
	texts map[string]string
}

var tables = map[catalog.Kind]table{
	catalog.KindPackages: {
		selectFrom: `SELECT p.id, p.slug, p.title, p.description, p.package_type, p.difficulty_level,
       p.duration_days, p.price_per_person, p.best_season, p.featured, p.views_count,
       p.is_active, p.created_at, a.id, a.name, a.is_verified, a.rating, a.total_ratings
FROM packages_package p
JOIN accounts_agency a ON a.id = p.agency_id`,
		eligibility: "p.is_active AND a.is_verified",
		columns: map[string]string{
			catalog.FieldID:           "p.id",
			catalog.FieldTitle:        "p.title",
			catalog.FieldName:         "p.title",
			catalog.FieldPackageType:  "p.package_type",
			catalog.FieldDifficulty:   "p.difficulty_level",
			catalog.FieldPrice:        "p.price_per_person",
			catalog.FieldDuration:     "p.duration_days",
			catalog.FieldViews:        "p.views_count",
			catalog.FieldRating:       "a.rating",
			catalog.FieldTotalRatings: "a.total_ratings",
			catalog.FieldCreatedAt:    "p.created_at",
		},
		texts: map[string]string{
			catalog.FieldTitle:       "p.title",
			catalog.FieldDescription: "p.description",
			catalog.FieldBestSeason:  "p.best_season",
			catalog.FieldAgencyName:  "a.name",
		},
	},
	catalog.KindGuides: {
		selectFrom: `SELECT g.id, g.name, g.bio, g.places_covered, g.experience_years, g.daily_rate,
       g.languages, g.specialties, g.is_available, g.rating, g.total_ratings, g.created_at,
       a.id, a.name, a.is_verified, a.rating, a.total_ratings
FROM guides_guide g
JOIN accounts_agency a ON a.id = g.agency_id`,
		eligibility: "g.is_available AND a.is_verified",
		columns: map[string]string{
			catalog.FieldID:           "g.id",
			catalog.FieldName:         "g.name",
			catalog.FieldRate:         "g.daily_rate",
			catalog.FieldExperience:   "g.experience_years",
			catalog.FieldRating:       "g.rating",
			catalog.FieldTotalRatings: "g.total_ratings",
			catalog.FieldCreatedAt:    "g.created_at",
		},
		sets: map[string]string{
			catalog.FieldLanguages:   "g.languages",
			catalog.FieldSpecialties: "g.specialties",
		},
		texts: map[string]string{
			catalog.FieldName:          "g.name",
			catalog.FieldBio:           "g.bio",
			catalog.FieldPlacesCovered: "g.places_covered",
			catalog.FieldAgencyName:    "a.name",
		},
	},
	catalog.KindAgencies: {
		selectFrom: `SELECT a.id, a.name, a.description, a.address, a.established_year, a.rating,
       a.total_ratings, a.is_verified, a.created_at,
       (SELECT COUNT(*) FROM packages_package p WHERE p.agency_id = a.id AND p.is_active)
FROM accounts_agency a`,
		eligibility: "a.is_verified",
		columns: map[string]string{
			catalog.FieldID:           "a.id",
			catalog.FieldName:         "a.name",
			catalog.FieldAddress:      "a.address",
			catalog.FieldEstablished:  "a.established_year",
			catalog.FieldRating:       "a.rating",
			catalog.FieldTotalRatings: "a.total_ratings",
			catalog.FieldCreatedAt:    "a.created_at",
		},
		texts: map[string]string{
			catalog.FieldName:        "a.name",
			catalog.FieldDescription: "a.description",
		},
	},
}

// Build renders the candidate query for f. Predicates and order keys that
// have no column mapping are left out; the caller re-applies predicates in
// memory. The text match is always rendered when the query is non-empty,
// since LIMIT must not cut matching rows.
func Build(f storage.Fetch) (string, []any, error) {
	t, ok := tables[f.Kind]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", storage.ErrUnknownKind, f.Kind)
	}
	var (
		sb    strings.Builder
		args  []any
		conds = []string{t.eligibility}
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	for _, p := range f.Predicates {
		if cond, ok := t.condition(p, arg); ok {
			conds = append(conds, cond)
		}
	}
	if cond, ok := t.textCondition(f, arg); ok {
		conds = append(conds, cond)
	}

	sb.WriteString(t.selectFrom)
	sb.WriteString("\nWHERE ")
	sb.WriteString(strings.Join(conds, " AND "))

	var order []string
	for _, k := range f.Order {
		col, ok := t.columns[k.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		if k.Field == catalog.FieldName {
			order = append(order, fmt.Sprintf("LOWER(%s) %s", col, dir))
		}
		order = append(order, fmt.Sprintf("%s %s NULLS LAST", col, dir))
	}
	if len(order) > 0 {
		sb.WriteString("\nORDER BY ")
		sb.WriteString(strings.Join(order, ", "))
	}
	if f.Limit > 0 {
		sb.WriteString("\nLIMIT ")
		sb.WriteString(arg(f.Limit))
	}
	return sb.String(), args, nil
}

func (t table) condition(p filter.Predicate, arg func(any) string) (string, bool) {
	if p.Op == filter.OpHas {
		col, ok := t.sets[p.Field]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s ? %s", col, arg(p.Text)), true
	}
	col, ok := t.columns[p.Field]
	if !ok {
		return "", false
	}
	switch p.Op {
	case filter.OpGTE:
		return fmt.Sprintf("%s >= %s", col, arg(p.Num)), true
	case filter.OpLTE:
		return fmt.Sprintf("%s <= %s", col, arg(p.Num)), true
	case filter.OpEq:
		return fmt.Sprintf("%s = %s", col, arg(p.Text)), true
	case filter.OpContains:
		return fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, col, arg("%"+escapeLike(p.Text)+"%")), true
	}
	return "", false
}

// textCondition matches rows where any query token occurs in any mapped
// text column: (col ILIKE ANY($n) OR ...). Backslash is the default LIKE
// escape in PostgreSQL.
func (t table) textCondition(f storage.Fetch, arg func(any) string) (string, bool) {
	if f.Text.Empty() {
		return "", false
	}
	var cols []string
	for _, field := range f.TextFields {
		if col, ok := t.texts[field]; ok {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return "", false
	}
	seen := make(map[string]bool, len(f.Text.Tokens))
	patterns := make([]string, 0, len(f.Text.Tokens))
	for _, tok := range f.Text.Tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		patterns = append(patterns, "%"+escapeLike(tok)+"%")
	}
	param := arg(pq.Array(patterns))
	ors := make([]string, len(cols))
	for i, col := range cols {
		ors[i] = fmt.Sprintf("%s ILIKE ANY(%s)", col, param)
	}
	return "(" + strings.Join(ors, " OR ") + ")", true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
