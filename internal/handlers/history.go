package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/countries/internal/model"
)

// RunLister reads recorded fetch runs
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]model.FetchRun, error)
	CountByKind(ctx context.Context) ([]model.KindCount, error)
}

type runJSON struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Outcome      string    `json:"outcome"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CountryCount int       `json:"country_count"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
}

type kindCountJSON struct {
	Outcome   string `json:"outcome"`
	ErrorKind string `json:"error_kind,omitempty"`
	Count     int    `json:"count"`
}

// HistoryHandler lists recent fetch runs. Without a database it answers 404.
func HistoryHandler(runs RunLister) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if runs == nil {
			return c.Status(fiber.StatusNotFound).SendString("Fetch history is not enabled")
		}

		ctx := context.Background()

		limit := c.QueryInt("limit", 20)
		if limit < 1 || limit > 500 {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid limit")
		}

		recent, err := runs.Recent(ctx, limit)
		if err != nil {
			log.Printf("Error loading fetch runs: %v", err)
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading fetch runs")
		}

		counts, err := runs.CountByKind(ctx)
		if err != nil {
			log.Printf("Error counting fetch runs: %v", err)
			return c.Status(fiber.StatusInternalServerError).SendString("Error counting fetch runs")
		}

		out := make([]runJSON, len(recent))
		for i, r := range recent {
			out[i] = runJSON{
				ID:           r.ID.String(),
				URL:          r.URL,
				Outcome:      r.Outcome,
				ErrorKind:    r.ErrorKind.String,
				ErrorMessage: r.ErrorMessage.String,
				CountryCount: r.CountryCount,
				StartedAt:    r.StartedAt,
				DurationMS:   r.Duration().Milliseconds(),
			}
		}

		totals := make([]kindCountJSON, len(counts))
		for i, kc := range counts {
			totals[i] = kindCountJSON{Outcome: kc.Outcome, ErrorKind: kc.ErrorKind, Count: kc.Count}
		}

		return c.JSON(fiber.Map{
			"runs":   out,
			"totals": totals,
		})
	}
}
