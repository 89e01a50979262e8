// Package scrapers is the registry of supported companies.
package scrapers

import (
	"errors"
	"fmt"
	"sort"

	"finscrape/internal/components/chrono"
	"finscrape/internal/components/telemetry"
	"finscrape/internal/scraper"
	"finscrape/internal/scrapers/visacal"
)

type CompanyType string

const (
	VisaCal CompanyType = "visaCal"
)

var ErrUnsupportedCompany = errors.New("unsupported company")

type Definition struct {
	Name        string
	LoginFields []string
	LoginURL    string
}

var definitions = map[CompanyType]Definition{
	VisaCal: {
		Name:        "Visa Cal",
		LoginFields: []string{"username", "password"},
		LoginURL:    visacal.LoginURL,
	},
}

// Deps are what a connector may need from its host.
type Deps struct {
	Clock   chrono.TimeAPI
	Tel     telemetry.API
	VisaCal visacal.Options
}

// Companies lists the supported companies sorted by type.
func Companies() []CompanyType {
	out := make([]CompanyType, 0, len(definitions))
	for company := range definitions {
		out = append(out, company)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i] < out[j]
	})
	return out
}

func Lookup(company CompanyType) (Definition, error) {
	def, ok := definitions[company]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnsupportedCompany, company)
	}
	return def, nil
}

// New creates the connector for company.
func New(company CompanyType, deps Deps) (scraper.Scraper, error) {
	switch company {
	case VisaCal:
		return visacal.NewScraper(deps.VisaCal, deps.Clock, deps.Tel), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompany, company)
	}
}

// MissingFields returns the login fields of company that creds does not fill.
func MissingFields(company CompanyType, creds scraper.Credentials) ([]string, error) {
	def, err := Lookup(company)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, field := range def.LoginFields {
		if creds[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing, nil
}
