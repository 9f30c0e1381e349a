package state

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jjenkins/countries/internal/model"
	"github.com/jjenkins/countries/internal/service"
)

// Fetcher is the part of service.CountriesClient the refresher needs
type Fetcher interface {
	Endpoint() string
	FetchURL(ctx context.Context, rawURL string) ([]model.Country, error)
}

// RunRecorder is notified of every finished fetch
type RunRecorder interface {
	Record(ctx context.Context, url string, started time.Time, outcome service.FetchOutcome)
}

// Refresher fetches countries and writes each outcome into a Holder.
//
// A success replaces the countries and clears the error, so Snapshot.Err
// only ever describes the most recent refresh and never a stale failure.
// A failure keeps the previous countries and sets the error. Nothing serializes refreshes:
// overlapping calls each write their own snapshot and the last one wins.
type Refresher struct {
	fetcher   Fetcher
	holder    *Holder
	recorder  RunRecorder
	logger    *log.Logger
	errLogger *log.Logger
}

// NewRefresher creates a Refresher writing into holder
func NewRefresher(fetcher Fetcher, holder *Holder) *Refresher {
	return &Refresher{
		fetcher:   fetcher,
		holder:    holder,
		logger:    log.New(os.Stdout, "", log.LstdFlags),
		errLogger: log.New(os.Stderr, "ERROR: ", log.LstdFlags),
	}
}

// SetRecorder attaches a run recorder; nil disables recording
func (r *Refresher) SetRecorder(recorder RunRecorder) {
	r.recorder = recorder
}

// SetLoggers replaces the info and error loggers
func (r *Refresher) SetLoggers(logger, errLogger *log.Logger) {
	r.logger = logger
	r.errLogger = errLogger
}

// Holder returns the holder the refresher writes to
func (r *Refresher) Holder() *Holder {
	return r.holder
}

// Refresh runs one fetch and publishes its outcome
func (r *Refresher) Refresh(ctx context.Context) service.FetchOutcome {
	endpoint := r.fetcher.Endpoint()
	started := time.Now()

	countries, err := r.fetcher.FetchURL(ctx, endpoint)
	outcome := service.FetchOutcome{Countries: countries, Err: err}

	snap := r.holder.Update(func(prev Snapshot) Snapshot {
		if err != nil {
			return Snapshot{Countries: prev.Countries, Err: err}
		}
		return Snapshot{Countries: countries}
	})

	if err != nil {
		r.errLogger.Printf("Refresh failed (snapshot v%d keeps %d countries): %v", snap.Version, len(snap.Countries), err)
	} else {
		r.logger.Printf("Refreshed snapshot v%d with %d countries", snap.Version, len(snap.Countries))
	}

	if r.recorder != nil {
		r.recorder.Record(context.WithoutCancel(ctx), endpoint, started, outcome)
	}

	return outcome
}

// RefreshAsync starts a refresh in the background and returns a channel that
// receives its outcome. The refresh is detached from ctx cancellation: a
// caller that stops waiting does not abort the request, the outcome is still
// written to the holder.
func (r *Refresher) RefreshAsync(ctx context.Context) <-chan service.FetchOutcome {
	done := make(chan service.FetchOutcome, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		done <- r.Refresh(detached)
	}()
	return done
}

// Run refreshes once immediately and then every interval until ctx is done.
// A zero interval refreshes only once.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	r.Refresh(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}
