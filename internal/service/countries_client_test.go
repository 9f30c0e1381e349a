package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/jjenkins/countries/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTransport answers every request with a fixed result from a separate
// goroutine, the way a real network callback would arrive
type stubTransport struct {
	body  []byte
	err   error
	calls atomic.Int32
	urls  chan string
}

func newStubTransport(body []byte, err error) *stubTransport {
	return &stubTransport{body: body, err: err, urls: make(chan string, 10)}
}

func (s *stubTransport) Send(ctx context.Context, method, url string, done func([]byte, error)) {
	s.calls.Add(1)
	s.urls <- url
	go done(s.body, s.err)
}

var errConnRefused = syscall.ECONNREFUSED

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestClient(t Transport) *CountriesClient {
	return NewCountriesClient(WithTransport(t), WithQuietLogging())
}

func TestFetch_InvalidURLSkipsTransport(t *testing.T) {
	stub := newStubTransport([]byte(twoCountries), nil)
	client := newTestClient(stub)

	for _, raw := range []string{"", "http://example.com", "https://example.com/.."} {
		client.SetEndpoint(raw)
		countries, err := client.Fetch(context.Background())

		assert.Nil(t, countries)
		assert.ErrorIs(t, err, InvalidURL(raw))
	}
	assert.Equal(t, int32(0), stub.calls.Load())
}

func TestFetch_EmptyBodyIsInvalidData(t *testing.T) {
	client := newTestClient(newStubTransport(nil, nil))

	countries, err := client.Fetch(context.Background())

	assert.Nil(t, countries)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidData)
	assert.Equal(t, KindInvalidData, KindOf(err))
}

func TestFetch_UndecodableBodyIsNetworkFailureWrappingDecodingFailure(t *testing.T) {
	bodies := []string{
		"Some invalid data string that should throw decoding failure",
		`{"not":"an array"}`,
		`[{"name":"missing everything else"}]`,
	}

	for _, body := range bodies {
		client := newTestClient(newStubTransport([]byte(body), nil))

		countries, err := client.Fetch(context.Background())

		assert.Nil(t, countries)
		require.Error(t, err)
		assert.Equal(t, KindNetworkFailure, KindOf(err))
		assert.ErrorIs(t, err, NetworkFailure(ErrDecodingFailure))
		assert.ErrorIs(t, err, ErrDecodingFailure)
		assert.Equal(t, "network_failure/decoding_failure", ErrorKindName(err))
	}
}

func TestFetch_Success(t *testing.T) {
	stub := newStubTransport([]byte(twoCountries), nil)
	client := newTestClient(stub)

	countries, err := client.Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []model.Country{usa, testland}, countries)
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Equal(t, DefaultEndpoint, <-stub.urls)
}

func TestFetch_TransportErrorKeepsIdentity(t *testing.T) {
	url := "https://validurlbutnotvalid.com/"
	stubErr := &TransportError{
		Domain:  DomainNet,
		Code:    CodeCannotFindHost,
		Message: "a server with the specified hostname could not be found",
		URL:     url,
	}
	client := newTestClient(newStubTransport(nil, stubErr))
	client.SetEndpoint(url)

	_, err := client.Fetch(context.Background())

	require.Error(t, err)
	expected := NetworkFailure(&TransportError{
		Domain:  DomainNet,
		Code:    CodeCannotFindHost,
		Message: "a server with the specified hostname could not be found",
		URL:     url,
	})
	assert.ErrorIs(t, err, expected)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, DomainNet, te.Domain)
	assert.Equal(t, CodeCannotFindHost, te.Code)
	assert.Equal(t, stubErr.Message, te.Message)

	other := NetworkFailure(&TransportError{Domain: DomainNet, Code: CodeTimedOut, Message: msgTimedOut, URL: url})
	assert.NotErrorIs(t, err, other)
}

func TestFetch_PlainTransportErrorIsWrapped(t *testing.T) {
	boom := errors.New("connection reset by peer")
	client := newTestClient(StaticTransport{Err: boom})

	_, err := client.Fetch(context.Background())

	assert.ErrorIs(t, err, NetworkFailure(boom))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrNetworkFailure)
}

func TestFetch_TransportErrorWinsOverBody(t *testing.T) {
	boom := errors.New("boom")
	client := newTestClient(StaticTransport{Body: []byte(twoCountries), Err: boom})

	countries, err := client.Fetch(context.Background())

	assert.Nil(t, countries)
	assert.ErrorIs(t, err, NetworkFailure(boom))
}

func TestFetch_ContextCancelledBeforeCallback(t *testing.T) {
	release := make(chan struct{})
	slow := TransportFunc(func(ctx context.Context, method, url string, done func([]byte, error)) {
		go func() {
			<-release
			done([]byte(twoCountries), nil)
		}()
	})
	client := newTestClient(slow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx)
	close(release)

	assert.ErrorIs(t, err, NetworkFailure(context.Canceled))
}

func TestFetch_TransportContextOutlivesCaller(t *testing.T) {
	sent := make(chan context.Context, 1)
	release := make(chan struct{})
	delivered := make(chan struct{})
	slow := TransportFunc(func(ctx context.Context, method, url string, done func([]byte, error)) {
		sent <- ctx
		go func() {
			<-release
			done([]byte(twoCountries), nil)
			close(delivered)
		}()
	})
	client := newTestClient(slow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Fetch(ctx)
	require.ErrorIs(t, err, NetworkFailure(context.Canceled))

	transportCtx := <-sent
	assert.NoError(t, transportCtx.Err())

	close(release)
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("late callback blocked")
	}
}

func TestFetch_CallbackInvokedTwiceOnlyCountsOnce(t *testing.T) {
	twice := TransportFunc(func(ctx context.Context, method, url string, done func([]byte, error)) {
		done([]byte(twoCountries), nil)
		done(nil, errors.New("late duplicate"))
	})
	client := newTestClient(twice)

	countries, err := client.Fetch(context.Background())

	require.NoError(t, err)
	assert.Len(t, countries, 2)
}

func TestFetchURL_OverridesEndpointPerCall(t *testing.T) {
	stub := newStubTransport([]byte(twoCountries), nil)
	client := newTestClient(stub)

	_, err := client.FetchURL(context.Background(), "https://mirror.example.com/countries.json")

	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.com/countries.json", <-stub.urls)
	assert.Equal(t, DefaultEndpoint, client.Endpoint())
}

func TestEndpoint_GetSet(t *testing.T) {
	client := NewCountriesClient(WithEndpoint("https://one.example.com/"), WithQuietLogging())
	assert.Equal(t, "https://one.example.com/", client.Endpoint())

	client.SetEndpoint("not a url")
	assert.Equal(t, "not a url", client.Endpoint())
}

func TestOutcome(t *testing.T) {
	ok := newTestClient(StaticTransport{Body: []byte(twoCountries)}).Outcome(context.Background())
	assert.True(t, ok.Succeeded())
	assert.Len(t, ok.Countries, 2)

	failed := newTestClient(StaticTransport{}).Outcome(context.Background())
	assert.False(t, failed.Succeeded())
	assert.ErrorIs(t, failed.Err, ErrInvalidData)
}

// newHTTPSTransport points an HTTPTransport at srv while keeping example.com
// as the URL host, which the test certificate is valid for
func newHTTPSTransport(t *testing.T, srv *httptest.Server, timeout time.Duration) *HTTPTransport {
	t.Helper()

	tr := srv.Client().Transport.(*http.Transport).Clone()
	tr.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, srv.Listener.Addr().String())
	}

	transport := NewHTTPTransportWithClient(&http.Client{Transport: tr, Timeout: timeout})
	transport.SetLogger(quietLogger())
	return transport
}

func newHTTPSClient(t *testing.T, srv *httptest.Server) *CountriesClient {
	t.Helper()

	return NewCountriesClient(
		WithTransport(newHTTPSTransport(t, srv, 5*time.Second)),
		WithEndpoint("https://example.com/countries.json"),
		WithQuietLogging(),
	)
}

func TestHTTPTransport_Success(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/countries.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, twoCountries)
	}))
	defer srv.Close()

	countries, err := newHTTPSClient(t, srv).Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []model.Country{usa, testland}, countries)
}

func TestHTTPTransport_ServerErrorBodyFailsDecoding(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newHTTPSClient(t, srv).Fetch(context.Background())

	assert.ErrorIs(t, err, NetworkFailure(ErrDecodingFailure))
}

// A 5xx whose body decodes is reported as success; status codes are not
// inspected.
func TestHTTPTransport_ServerErrorWithValidBodyIsSuccess(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, twoCountries)
	}))
	defer srv.Close()

	countries, err := newHTTPSClient(t, srv).Fetch(context.Background())

	require.NoError(t, err)
	assert.Len(t, countries, 2)
}

func TestHTTPTransport_NoContentIsInvalidData(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	_, err := newHTTPSClient(t, srv).Fetch(context.Background())

	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestHTTPTransport_HostNotFound(t *testing.T) {
	url := "https://validurlbutnotvalid.com/"
	tr := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, &net.DNSError{Err: "no such host", Name: "validurlbutnotvalid.com", IsNotFound: true}
		},
	}
	transport := NewHTTPTransportWithClient(&http.Client{Transport: tr})
	client := NewCountriesClient(WithTransport(transport), WithEndpoint(url), WithQuietLogging())

	_, err := client.Fetch(context.Background())

	expected := NetworkFailure(&TransportError{
		Domain:  DomainNet,
		Code:    CodeCannotFindHost,
		Message: "a server with the specified hostname could not be found",
		URL:     url,
	})
	assert.ErrorIs(t, err, expected)

	var dnsErr *net.DNSError
	assert.ErrorAs(t, err, &dnsErr)
}

func TestFetch_CallerCancelDoesNotAbortRequest(t *testing.T) {
	aborted := make(chan bool, 1)
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			aborted <- true
		case <-time.After(300 * time.Millisecond):
			fmt.Fprint(w, twoCountries)
			aborted <- false
		}
	}))
	defer srv.Close()

	client := newHTTPSClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	countries, err := client.Fetch(ctx)

	assert.Nil(t, countries)
	assert.ErrorIs(t, err, NetworkFailure(context.DeadlineExceeded))

	select {
	case wasAborted := <-aborted:
		assert.False(t, wasAborted, "server request was cancelled with the caller")
	case <-time.After(2 * time.Second):
		t.Fatal("server handler did not finish")
	}
}

func TestHTTPTransport_ClientTimeout(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewCountriesClient(
		WithTransport(newHTTPSTransport(t, srv, 50*time.Millisecond)),
		WithEndpoint("https://example.com/countries.json"),
		WithQuietLogging(),
	)

	_, err := client.Fetch(context.Background())

	assert.ErrorIs(t, err, ErrNetworkFailure)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeTimedOut, te.Code)
	assert.Equal(t, msgTimedOut, te.Message)
}

func TestNewTransportError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"cancelled", fmt.Errorf("wrapped: %w", context.Canceled), CodeCancelled, msgCancelled},
		{"deadline", context.DeadlineExceeded, CodeTimedOut, msgTimedOut},
		{"dns", &net.DNSError{Err: "no such host", Name: "x.com"}, CodeCannotFindHost, msgCannotFindHost},
		{"refused", &net.OpError{Op: "dial", Err: fmt.Errorf("connect: %w", errConnRefused)}, CodeCannotConnectToHost, msgCannotConnect},
		{"other", errors.New("tls: bad certificate"), CodeUnknown, "tls: bad certificate"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			te := newTransportError("https://x.com/", tc.err)
			assert.Equal(t, DomainNet, te.Domain)
			assert.Equal(t, tc.code, te.Code)
			assert.Equal(t, tc.msg, te.Message)
			assert.Equal(t, "https://x.com/", te.URL)
			assert.ErrorIs(t, te, tc.err)
		})
	}
}
