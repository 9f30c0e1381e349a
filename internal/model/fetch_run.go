package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Fetch run outcomes as stored in fetch_runs.outcome
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// FetchRun is the historical record of one fetch against the countries endpoint
type FetchRun struct {
	ID           uuid.UUID
	URL          string
	Outcome      string
	ErrorKind    sql.NullString
	ErrorMessage sql.NullString
	CountryCount int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns how long the fetch took
func (r FetchRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// KindCount is the number of recorded runs for one outcome/error kind pair
type KindCount struct {
	Outcome   string
	ErrorKind string
	Count     int
}
