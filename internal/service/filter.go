package service

import (
	"strings"

	"github.com/jjenkins/countries/internal/model"
)

// Filter returns the countries whose name or capital contains query,
// ignoring case. An empty query keeps every country. The result keeps the
// order of countries and the input slice is left untouched.
func Filter(countries []model.Country, query string) []model.Country {
	if query == "" {
		out := make([]model.Country, len(countries))
		copy(out, countries)
		return out
	}

	q := strings.ToLower(query)
	out := make([]model.Country, 0, len(countries))
	for _, c := range countries {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Capital), q) {
			out = append(out, c)
		}
	}
	return out
}
