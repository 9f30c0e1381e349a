package service

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/jjenkins/countries/internal/model"
)

// DefaultEndpoint serves the full list of countries as a JSON array
const DefaultEndpoint = "https://gist.githubusercontent.com/peymano-wmt/32dcb892b06648910ddd40406e37fdab/raw/db25946fd77c5873b0303b858e861ce724e0dcd0/countries.json"

// FetchOutcome is the result of one fetch: either Countries or Err is set
type FetchOutcome struct {
	Countries []model.Country
	Err       error
}

// Succeeded reports whether the fetch produced records
func (o FetchOutcome) Succeeded() bool {
	return o.Err == nil
}

// CountriesClient fetches and decodes the countries feed.
//
// Each call is one independent GET. The client never retries, and it does
// not inspect HTTP status codes: a 5xx whose body happens to decode as a
// country list is returned as a success.
type CountriesClient struct {
	transport Transport
	decoder   *Decoder
	logger    *log.Logger
	errLogger *log.Logger

	mu       sync.RWMutex
	endpoint string
}

// Option configures a CountriesClient
type Option func(*CountriesClient)

// WithTransport replaces the HTTP transport, e.g. with a stub in tests
func WithTransport(t Transport) Option {
	return func(c *CountriesClient) {
		c.transport = t
	}
}

// WithEndpoint sets the initial endpoint
func WithEndpoint(endpoint string) Option {
	return func(c *CountriesClient) {
		c.endpoint = endpoint
	}
}

// WithLogger sets the info and error loggers
func WithLogger(logger, errLogger *log.Logger) Option {
	return func(c *CountriesClient) {
		c.logger = logger
		c.errLogger = errLogger
	}
}

// WithQuietLogging discards all client log output
func WithQuietLogging() Option {
	return WithLogger(log.New(io.Discard, "", 0), log.New(io.Discard, "", 0))
}

// NewCountriesClient creates a client for DefaultEndpoint over HTTP
func NewCountriesClient(opts ...Option) *CountriesClient {
	c := &CountriesClient{
		transport: NewHTTPTransport(),
		decoder:   NewDecoder(),
		logger:    log.New(os.Stdout, "", log.LstdFlags),
		errLogger: log.New(os.Stderr, "ERROR: ", log.LstdFlags),
		endpoint:  DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL Fetch will request
func (c *CountriesClient) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// SetEndpoint changes the URL Fetch will request. The value is validated
// when fetched, not here.
func (c *CountriesClient) SetEndpoint(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoint = endpoint
}

// Fetch retrieves the countries from the configured endpoint
func (c *CountriesClient) Fetch(ctx context.Context) ([]model.Country, error) {
	return c.FetchURL(ctx, c.Endpoint())
}

// FetchURL retrieves the countries from rawURL.
//
// An invalid URL fails with InvalidURL before the transport is used.
// Everything else follows classify.
func (c *CountriesClient) FetchURL(ctx context.Context, rawURL string) ([]model.Country, error) {
	if _, err := ValidateURL(rawURL); err != nil {
		c.errLogger.Printf("Refusing to fetch: %v", err)
		return nil, err
	}

	c.logger.Printf("Fetching countries from %s...", rawURL)
	body, err := c.send(ctx, rawURL)

	countries, err := classify(body, err, c.decoder)
	if err != nil {
		c.errLogger.Printf("Failed to fetch countries: %v", err)
		return nil, err
	}

	c.logger.Printf("Fetched %d countries", len(countries))
	return countries, nil
}

// Outcome runs Fetch and packs the result into a FetchOutcome
func (c *CountriesClient) Outcome(ctx context.Context) FetchOutcome {
	countries, err := c.Fetch(ctx)
	return FetchOutcome{Countries: countries, Err: err}
}

type sendResult struct {
	body []byte
	err  error
}

// send issues one GET and waits for the transport's callback.
//
// The request gets a context detached from ctx's cancellation: a caller
// that stops waiting returns early, but the request runs to completion and
// its result is dropped. The channel is buffered so that late callback
// never blocks the transport.
func (c *CountriesClient) send(ctx context.Context, rawURL string) ([]byte, error) {
	results := make(chan sendResult, 1)
	var once sync.Once

	c.transport.Send(context.WithoutCancel(ctx), http.MethodGet, rawURL, func(body []byte, err error) {
		once.Do(func() {
			results <- sendResult{body: body, err: err}
		})
	})

	select {
	case r := <-results:
		return r.body, r.err
	case <-ctx.Done():
		select {
		case r := <-results:
			return r.body, r.err
		default:
			return nil, ctx.Err()
		}
	}
}

// classify maps a transport result to records or a ServiceError:
//
//	transport error            -> NetworkFailure(err)
//	empty body                 -> InvalidData
//	body that does not decode  -> NetworkFailure(DecodingFailure)
//	body that decodes          -> records
func classify(body []byte, transportErr error, decoder *Decoder) ([]model.Country, error) {
	if transportErr != nil {
		return nil, NetworkFailure(transportErr)
	}
	if len(body) == 0 {
		return nil, ErrInvalidData
	}

	countries, err := decoder.Decode(body)
	if err != nil {
		return nil, NetworkFailure(err)
	}
	return countries, nil
}
