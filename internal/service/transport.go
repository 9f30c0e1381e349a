package service

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"
)

const defaultTimeout = 30 * time.Second

// Fixed transport error messages, so callers can compare errors exactly
const (
	msgCancelled       = "the request was cancelled"
	msgTimedOut        = "the request timed out"
	msgCannotFindHost  = "a server with the specified hostname could not be found"
	msgCannotConnect   = "could not connect to the server"
	msgBadRequestSetup = "the request could not be created"
)

// Transport performs a single request and reports the result through done.
// Implementations must call done exactly once, from any goroutine.
type Transport interface {
	Send(ctx context.Context, method, url string, done func(body []byte, err error))
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(ctx context.Context, method, url string, done func(body []byte, err error))

// Send calls f
func (f TransportFunc) Send(ctx context.Context, method, url string, done func(body []byte, err error)) {
	f(ctx, method, url, done)
}

// HTTPTransport implements Transport using net/http.
//
// It does not treat non-2xx responses as errors: the body is handed back as
// is and only a warning is logged.
type HTTPTransport struct {
	client *http.Client
	logger *log.Logger
}

// NewHTTPTransport creates a transport with the default timeout
func NewHTTPTransport() *HTTPTransport {
	return NewHTTPTransportWithClient(&http.Client{Timeout: defaultTimeout})
}

// NewHTTPTransportWithClient creates a transport around a custom client
func NewHTTPTransportWithClient(client *http.Client) *HTTPTransport {
	return &HTTPTransport{
		client: client,
		logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// SetLogger replaces the logger used for status warnings
func (t *HTTPTransport) SetLogger(logger *log.Logger) {
	t.logger = logger
}

// Send runs the request on its own goroutine and calls done with the result
func (t *HTTPTransport) Send(ctx context.Context, method, url string, done func(body []byte, err error)) {
	go func() {
		done(t.do(ctx, method, url))
	}()
}

func (t *HTTPTransport) do(ctx context.Context, method, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &TransportError{
			Domain:  DomainNet,
			Code:    CodeUnknown,
			Message: msgBadRequestSetup,
			URL:     url,
			Err:     err,
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, newTransportError(url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.logger.Printf("Warning: %s returned HTTP %d, passing %d byte body through", url, resp.StatusCode, len(body))
	}

	return body, nil
}

// newTransportError maps a net/http failure to its structured identity
func newTransportError(url string, err error) *TransportError {
	te := &TransportError{
		Domain:  DomainNet,
		Code:    CodeUnknown,
		Message: err.Error(),
		URL:     url,
		Err:     err,
	}

	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		te.Code, te.Message = CodeCancelled, msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		te.Code, te.Message = CodeTimedOut, msgTimedOut
	case errors.As(err, &dnsErr):
		te.Code, te.Message = CodeCannotFindHost, msgCannotFindHost
	case errors.Is(err, syscall.ECONNREFUSED):
		te.Code, te.Message = CodeCannotConnectToHost, msgCannotConnect
	case errors.As(err, &netErr) && netErr.Timeout():
		te.Code, te.Message = CodeTimedOut, msgTimedOut
	}

	return te
}

// StaticTransport always answers with the same body and error. It never
// touches the network.
type StaticTransport struct {
	Body []byte
	Err  error
}

// Send calls done synchronously with the fixed result
func (s StaticTransport) Send(ctx context.Context, method, url string, done func(body []byte, err error)) {
	done(s.Body, s.Err)
}
