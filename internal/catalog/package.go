package catalog

import "time"

// Package is a travel package offered by an agency.
type Package struct {
	ID             int64     `json:"id" yaml:"id"`
	Slug           string    `json:"slug" yaml:"slug"`
	Title          string    `json:"title" yaml:"title"`
	Description    string    `json:"description" yaml:"description"`
	PackageType    string    `json:"package_type" yaml:"package_type"`
	Difficulty     string    `json:"difficulty" yaml:"difficulty"`
	DurationDays   int       `json:"duration_days" yaml:"duration_days"`
	PricePerPerson float64   `json:"price_per_person" yaml:"price_per_person"`
	BestSeason     string    `json:"best_season" yaml:"best_season"`
	Featured       bool      `json:"featured" yaml:"featured"`
	ViewsCount     int       `json:"views_count" yaml:"views_count"`
	IsActive       bool      `json:"is_active" yaml:"is_active"`
	Agency         AgencyRef `json:"agency" yaml:"agency"`
	Created        time.Time `json:"created_at" yaml:"created_at"`
}

func (p *Package) Kind() Kind           { return KindPackages }
func (p *Package) ItemID() int64        { return p.ID }
func (p *Package) Label() string        { return p.Title }
func (p *Package) CreatedAt() time.Time { return p.Created }

// Eligible requires an active package owned by a verified agency.
func (p *Package) Eligible() bool {
	return p.IsActive && p.Agency.Verified
}

func (p *Package) Text(field string) string {
	switch field {
	case FieldTitle:
		return p.Title
	case FieldDescription:
		return p.Description
	case FieldBestSeason:
		return p.BestSeason
	case FieldAgencyName:
		return p.Agency.Name
	}
	return ""
}

func (p *Package) Number(field string) (float64, bool) {
	switch field {
	case FieldPrice:
		return p.PricePerPerson, true
	case FieldDuration:
		return float64(p.DurationDays), true
	case FieldRating:
		return p.Agency.Rating, true
	case FieldTotalRatings:
		return float64(p.Agency.TotalRatings), true
	case FieldViews:
		return float64(p.ViewsCount), true
	}
	return 0, false
}

func (p *Package) String(field string) (string, bool) {
	switch field {
	case FieldPackageType:
		return p.PackageType, true
	case FieldDifficulty:
		return p.Difficulty, true
	case FieldTitle, FieldName:
		return p.Title, true
	}
	return "", false
}

func (p *Package) Set(string) []string { return nil }
