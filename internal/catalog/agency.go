package catalog

import "time"

// Agency is a travel agency listed on the marketplace.
type Agency struct {
	ID              int64     `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description" yaml:"description"`
	Address         string    `json:"address" yaml:"address"`
	EstablishedYear *int      `json:"established_year,omitempty" yaml:"established_year"`
	Rating          float64   `json:"rating" yaml:"rating"`
	TotalRatings    int       `json:"total_ratings" yaml:"total_ratings"`
	IsVerified      bool      `json:"is_verified" yaml:"is_verified"`
	PackageCount    int       `json:"package_count" yaml:"package_count"`
	Created         time.Time `json:"created_at" yaml:"created_at"`
}

func (a *Agency) Kind() Kind           { return KindAgencies }
func (a *Agency) ItemID() int64        { return a.ID }
func (a *Agency) Label() string        { return a.Name }
func (a *Agency) CreatedAt() time.Time { return a.Created }
func (a *Agency) Eligible() bool       { return a.IsVerified }

func (a *Agency) Text(field string) string {
	switch field {
	case FieldName:
		return a.Name
	case FieldDescription:
		return a.Description
	}
	return ""
}

func (a *Agency) Number(field string) (float64, bool) {
	switch field {
	case FieldRating:
		return a.Rating, true
	case FieldTotalRatings:
		return float64(a.TotalRatings), true
	case FieldPackageCount:
		return float64(a.PackageCount), true
	case FieldEstablished:
		if a.EstablishedYear == nil {
			return 0, false
		}
		return float64(*a.EstablishedYear), true
	}
	return 0, false
}

func (a *Agency) String(field string) (string, bool) {
	switch field {
	case FieldName:
		return a.Name, true
	case FieldAddress:
		return a.Address, true
	}
	return "", false
}

func (a *Agency) Set(string) []string { return nil }
