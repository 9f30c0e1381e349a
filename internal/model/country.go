package model

// Country represents a single country record from the countries feed
type Country struct {
	Capital  string   `json:"capital"`
	Code     string   `json:"code"`
	Currency Currency `json:"currency"`
	Flag     string   `json:"flag"`
	Language Language `json:"language"`
	Name     string   `json:"name"`
	Region   string   `json:"region"`
}

// Currency is the primary currency of a country. Symbol is nil when the
// feed omits it or sends null.
type Currency struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Symbol *string `json:"symbol"`
}

// Language is the primary language of a country. Code is nil when the
// feed omits it or sends null.
type Language struct {
	Code *string `json:"code"`
	Name string  `json:"name"`
}
