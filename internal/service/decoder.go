package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jjenkins/countries/internal/model"
)

// countryJSON mirrors one element of the countries feed. Required fields are
// pointers so a missing key or a null value can be told apart from "".
// Keys must match exactly; "Name" or "NAME" does not fill Name.
type countryJSON struct {
	Capital  *string
	Code     *string
	Currency *currencyJSON
	Flag     *string
	Language *languageJSON
	Name     *string
	Region   *string
}

func (c *countryJSON) UnmarshalJSON(data []byte) error {
	return decodeFields(data, []fieldTarget{
		{"capital", &c.Capital},
		{"code", &c.Code},
		{"currency", &c.Currency},
		{"flag", &c.Flag},
		{"language", &c.Language},
		{"name", &c.Name},
		{"region", &c.Region},
	})
}

type currencyJSON struct {
	Code   *string
	Name   *string
	Symbol *string
}

func (c *currencyJSON) UnmarshalJSON(data []byte) error {
	return decodeFields(data, []fieldTarget{
		{"code", &c.Code},
		{"name", &c.Name},
		{"symbol", &c.Symbol},
	})
}

type languageJSON struct {
	Code *string
	Name *string
}

func (l *languageJSON) UnmarshalJSON(data []byte) error {
	return decodeFields(data, []fieldTarget{
		{"code", &l.Code},
		{"name", &l.Name},
	})
}

type fieldTarget struct {
	key string
	dst any
}

// decodeFields reads a JSON object and fills each target from the value
// under exactly its key. Absent keys leave the target untouched and
// unknown keys are ignored. A JSON null decodes to an empty object, which
// then fails the required-field checks.
func decodeFields(data []byte, targets []fieldTarget) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	for _, t := range targets {
		raw, ok := fields[t.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, t.dst); err != nil {
			return fmt.Errorf("field %q: %w", t.key, err)
		}
	}
	return nil
}

// Decoder turns a countries feed body into country records
type Decoder struct{}

// NewDecoder creates a new Decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses body as a JSON array of countries.
// Either the whole body decodes or the call fails with a decoding failure;
// there is no partial result. Source order is preserved.
func (d *Decoder) Decode(body []byte) ([]model.Country, error) {
	var items []countryJSON
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, decodingFailure(err)
	}
	if items == nil {
		return nil, decodingFailure(errors.New("expected a JSON array, got null"))
	}

	countries := make([]model.Country, len(items))
	for i, item := range items {
		c, err := convertCountryJSON(item)
		if err != nil {
			return nil, decodingFailure(fmt.Errorf("country %d: %w", i, err))
		}
		countries[i] = c
	}

	return countries, nil
}

// convertCountryJSON checks required fields and maps the wire shape to the model
func convertCountryJSON(c countryJSON) (model.Country, error) {
	if c.Currency == nil {
		return model.Country{}, missingField("currency")
	}
	if c.Language == nil {
		return model.Country{}, missingField("language")
	}

	required := []struct {
		name  string
		value *string
	}{
		{"capital", c.Capital},
		{"code", c.Code},
		{"currency.code", c.Currency.Code},
		{"currency.name", c.Currency.Name},
		{"flag", c.Flag},
		{"language.name", c.Language.Name},
		{"name", c.Name},
		{"region", c.Region},
	}
	for _, f := range required {
		if f.value == nil {
			return model.Country{}, missingField(f.name)
		}
	}

	return model.Country{
		Capital: *c.Capital,
		Code:    *c.Code,
		Currency: model.Currency{
			Code:   *c.Currency.Code,
			Name:   *c.Currency.Name,
			Symbol: c.Currency.Symbol,
		},
		Flag: *c.Flag,
		Language: model.Language{
			Code: c.Language.Code,
			Name: *c.Language.Name,
		},
		Name:   *c.Name,
		Region: *c.Region,
	}, nil
}

func missingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}
