package catalog

import "time"

// Guide is a tour guide employed by an agency.
type Guide struct {
	ID              int64     `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Bio             string    `json:"bio" yaml:"bio"`
	PlacesCovered   string    `json:"places_covered" yaml:"places_covered"`
	ExperienceYears int       `json:"experience_years" yaml:"experience_years"`
	DailyRate       float64   `json:"daily_rate" yaml:"daily_rate"`
	Languages       []string  `json:"languages" yaml:"languages"`
	Specialties     []string  `json:"specialties" yaml:"specialties"`
	IsAvailable     bool      `json:"is_available" yaml:"is_available"`
	Rating          float64   `json:"rating" yaml:"rating"`
	TotalRatings    int       `json:"total_ratings" yaml:"total_ratings"`
	Agency          AgencyRef `json:"agency" yaml:"agency"`
	Created         time.Time `json:"created_at" yaml:"created_at"`
}

func (g *Guide) Kind() Kind           { return KindGuides }
func (g *Guide) ItemID() int64        { return g.ID }
func (g *Guide) Label() string        { return g.Name }
func (g *Guide) CreatedAt() time.Time { return g.Created }

// Eligible requires an available guide whose agency is verified.
func (g *Guide) Eligible() bool {
	return g.IsAvailable && g.Agency.Verified
}

func (g *Guide) Text(field string) string {
	switch field {
	case FieldName:
		return g.Name
	case FieldBio:
		return g.Bio
	case FieldPlacesCovered:
		return g.PlacesCovered
	case FieldAgencyName:
		return g.Agency.Name
	}
	return ""
}

func (g *Guide) Number(field string) (float64, bool) {
	switch field {
	case FieldRate:
		return g.DailyRate, true
	case FieldExperience:
		return float64(g.ExperienceYears), true
	case FieldRating:
		return g.Rating, true
	case FieldTotalRatings:
		return float64(g.TotalRatings), true
	}
	return 0, false
}

func (g *Guide) String(field string) (string, bool) {
	if field == FieldName {
		return g.Name, true
	}
	return "", false
}

func (g *Guide) Set(field string) []string {
	switch field {
	case FieldLanguages:
		return g.Languages
	case FieldSpecialties:
		return g.Specialties
	}
	return nil
}
