package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/countries/internal/model"
	"github.com/jjenkins/countries/internal/service"
	"github.com/jjenkins/countries/internal/state"
)

type errorJSON struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type countriesResponse struct {
	Countries []model.Country `json:"countries"`
	Count     int             `json:"count"`
	Query     string          `json:"query,omitempty"`
	Version   uint64          `json:"version"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
	Error     *errorJSON      `json:"error"`
}

type statusResponse struct {
	Version      uint64     `json:"version"`
	CountryCount int        `json:"country_count"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	Error        *errorJSON `json:"error"`
}

func newErrorJSON(err error) *errorJSON {
	if err == nil {
		return nil
	}
	return &errorJSON{Kind: service.ErrorKindName(err), Message: err.Error()}
}

func updatedAt(snap state.Snapshot) *time.Time {
	if snap.Version == 0 {
		return nil
	}
	t := snap.UpdatedAt
	return &t
}

// CountriesHandler serves the current snapshot, filtered by the q parameter
func CountriesHandler(holder *state.Holder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := holder.Current()
		query := c.Query("q")

		countries := service.Filter(snap.Countries, query)

		return c.JSON(countriesResponse{
			Countries: countries,
			Count:     len(countries),
			Query:     query,
			Version:   snap.Version,
			UpdatedAt: updatedAt(snap),
			Error:     newErrorJSON(snap.Err),
		})
	}
}

// RefreshHandler starts a background refresh and returns immediately
func RefreshHandler(refresher *state.Refresher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		refresher.RefreshAsync(context.Background())

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":  "refreshing",
			"version": refresher.Holder().Current().Version,
		})
	}
}

// StatusHandler reports the snapshot version, size and last error
func StatusHandler(holder *state.Holder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := holder.Current()

		return c.JSON(statusResponse{
			Version:      snap.Version,
			CountryCount: len(snap.Countries),
			UpdatedAt:    updatedAt(snap),
			Error:        newErrorJSON(snap.Err),
		})
	}
}

// ValidateHandler checks the url parameter against the endpoint rules
func ValidateHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Query("url")

		if _, err := service.ValidateURL(raw); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"url":   raw,
				"valid": false,
				"error": newErrorJSON(err),
			})
		}

		return c.JSON(fiber.Map{
			"url":   raw,
			"valid": true,
		})
	}
}
