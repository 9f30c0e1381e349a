package service

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/countries/internal/model"
)

// RunSink persists fetch runs
type RunSink interface {
	Insert(ctx context.Context, run *model.FetchRun) error
}

// Recorder turns fetch outcomes into FetchRun rows. Failing to record a run
// is logged and otherwise ignored; it never changes the fetch result.
type Recorder struct {
	sink      RunSink
	errLogger *log.Logger
}

// NewRecorder creates a Recorder writing to sink
func NewRecorder(sink RunSink) *Recorder {
	return &Recorder{
		sink:      sink,
		errLogger: log.New(os.Stderr, "ERROR: ", log.LstdFlags),
	}
}

// SetErrorLogger replaces the logger used for insert failures
func (r *Recorder) SetErrorLogger(logger *log.Logger) {
	r.errLogger = logger
}

// Record stores one fetch of url that started at started
func (r *Recorder) Record(ctx context.Context, url string, started time.Time, outcome FetchOutcome) {
	run := NewFetchRun(url, started, time.Now(), outcome)
	if err := r.sink.Insert(ctx, run); err != nil {
		r.errLogger.Printf("Failed to record fetch run %s: %v", run.ID, err)
	}
}

// NewFetchRun builds the history row for an outcome
func NewFetchRun(url string, started, finished time.Time, outcome FetchOutcome) *model.FetchRun {
	run := &model.FetchRun{
		ID:           uuid.New(),
		URL:          url,
		Outcome:      model.OutcomeSuccess,
		CountryCount: len(outcome.Countries),
		StartedAt:    started,
		FinishedAt:   finished,
	}

	if outcome.Err != nil {
		run.Outcome = model.OutcomeFailure
		run.CountryCount = 0
		run.ErrorMessage = sql.NullString{String: outcome.Err.Error(), Valid: true}
		if kind := ErrorKindName(outcome.Err); kind != "" {
			run.ErrorKind = sql.NullString{String: kind, Valid: true}
		}
	}

	return run
}
