// Package postgres is the storage.Repository backed by the marketplace
// PostgreSQL schema.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
	"github.com/nepal-guide-hub/discovery/internal/storage"
	"github.com/nepal-guide-hub/discovery/pkg/postgres"
)

type Repository struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Repository {
	return &Repository{
		db:     db,
		logger: slog.Default().With("component", "postgres-repository"),
	}
}

// Candidates implements storage.Repository. The query runs in a read-only
// transaction.
func (r *Repository) Candidates(ctx context.Context, f storage.Fetch) ([]catalog.Item, error) {
	query, args, err := Build(f)
	if err != nil {
		return nil, err
	}
	var items []catalog.Item
	err = r.db.InReadTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying %s: %w", f.Kind, err)
		}
		defer rows.Close()
		for rows.Next() {
			item, err := scan(f.Kind, rows)
			if err != nil {
				return fmt.Errorf("scanning %s: %w", f.Kind, err)
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("candidates fetched", "kind", f.Kind, "rows", len(items), "predicates", len(f.Predicates))
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scan(kind catalog.Kind, row rowScanner) (catalog.Item, error) {
	switch kind {
	case catalog.KindPackages:
		return scanPackage(row)
	case catalog.KindGuides:
		return scanGuide(row)
	case catalog.KindAgencies:
		return scanAgency(row)
	}
	return nil, fmt.Errorf("%w: %q", storage.ErrUnknownKind, kind)
}

func scanPackage(row rowScanner) (*catalog.Package, error) {
	var p catalog.Package
	var bestSeason sql.NullString
	err := row.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Description, &p.PackageType, &p.Difficulty,
		&p.DurationDays, &p.PricePerPerson, &bestSeason, &p.Featured, &p.ViewsCount,
		&p.IsActive, &p.Created,
		&p.Agency.ID, &p.Agency.Name, &p.Agency.Verified, &p.Agency.Rating, &p.Agency.TotalRatings,
	)
	if err != nil {
		return nil, err
	}
	p.BestSeason = bestSeason.String
	return &p, nil
}

func scanGuide(row rowScanner) (*catalog.Guide, error) {
	var g catalog.Guide
	var languages, specialties []byte
	err := row.Scan(
		&g.ID, &g.Name, &g.Bio, &g.PlacesCovered, &g.ExperienceYears, &g.DailyRate,
		&languages, &specialties, &g.IsAvailable, &g.Rating, &g.TotalRatings, &g.Created,
		&g.Agency.ID, &g.Agency.Name, &g.Agency.Verified, &g.Agency.Rating, &g.Agency.TotalRatings,
	)
	if err != nil {
		return nil, err
	}
	if g.Languages, err = decodeSet(languages); err != nil {
		return nil, fmt.Errorf("guide %d languages: %w", g.ID, err)
	}
	if g.Specialties, err = decodeSet(specialties); err != nil {
		return nil, fmt.Errorf("guide %d specialties: %w", g.ID, err)
	}
	return &g, nil
}

func scanAgency(row rowScanner) (*catalog.Agency, error) {
	var a catalog.Agency
	var established sql.NullInt64
	err := row.Scan(
		&a.ID, &a.Name, &a.Description, &a.Address, &established, &a.Rating,
		&a.TotalRatings, &a.IsVerified, &a.Created, &a.PackageCount,
	)
	if err != nil {
		return nil, err
	}
	if established.Valid {
		year := int(established.Int64)
		a.EstablishedYear = &year
	}
	return &a, nil
}

// decodeSet parses a jsonb array of strings. NULL decodes to an empty set.
func decodeSet(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
