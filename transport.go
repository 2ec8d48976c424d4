package tremotesf

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"golang.org/x/net/proxy"
)

// requestType distinguishes the periodic update-cycle fetches (DataUpdate)
// from caller-initiated one-off calls (Independent). The orchestrator uses
// HasPendingDataUpdateRequests to decide when an update cycle has converged.
type requestType int

const (
	// DataUpdate marks a request issued as part of the periodic update cycle.
	DataUpdate requestType = iota
	// Independent marks a request issued outside the update cycle (a write
	// operation, a free-space query, ...).
	Independent
)

const sessionIDHeader = "X-Transmission-Session-Id"

// Response is delivered to a Post callback. Success mirrors the daemon's
// "result" field: true iff it equals "success". Transport-level failures
// (timeouts, connection errors, auth failures, parse failures) never reach
// Response; they go through the onFailure callback instead (spec.md §4.1).
type Response struct {
	Arguments json.RawMessage
	Success   bool
	Result    string
}

type wireEnvelope struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
	Tag       uint64 `json:"tag,omitempty"`
}

type wireReply struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
	Tag       uint64          `json:"tag,omitempty"`
}

// Transport is the Request Router from spec.md §4.1: it owns the HTTP client,
// TLS configuration, proxy, basic-auth header and current session id, and
// turns a (method, arguments, requestType) triple into a POSTed RPC call.
type Transport struct {
	mu         sync.Mutex
	httpClient *http.Client
	cfg        ServerConfig
	authHeader string
	sessionID  string
	logger     *slog.Logger

	onFailure func(method string, err *RequestError)

	nextID      uint64
	inflight    map[uint64]context.CancelFunc
	dataUpdates int32
}

// NewTransport builds an unconfigured transport; Configure must be called
// before Post.
func NewTransport(logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		logger:   logger,
		inflight: make(map[uint64]context.CancelFunc),
	}
}

// OnFailure registers the callback invoked for transport-level failures
// (spec.md's request_failed signal). Must be called before Configure/Post.
func (t *Transport) OnFailure(f func(method string, err *RequestError)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFailure = f
}

// Configure applies a new server configuration atomically, replacing any
// prior transport state and clearing the session id and in-flight requests
// (spec.md §4.1: "Setting a new configuration clears the current session id
// and aborts in-flight requests").
func (t *Transport) Configure(cfg ServerConfig) error {
	transport := cleanhttp.DefaultPooledTransport()
	transport.Proxy = nil

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return fmt.Errorf("building TLS config: %w", err)
	}
	transport.TLSClientConfig = tlsConfig

	switch cfg.Proxy.Kind {
	case ProxyHTTP:
		proxyURL := &url.URL{
			Scheme: "http",
			Host:   fmt.Sprintf("%s:%d", cfg.Proxy.Host, cfg.Proxy.Port),
		}
		if cfg.Proxy.User != "" {
			proxyURL.User = url.UserPassword(cfg.Proxy.User, cfg.Proxy.Password)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	case ProxySOCKS5:
		var auth *proxy.Auth
		if cfg.Proxy.User != "" {
			auth = &proxy.Auth{User: cfg.Proxy.User, Password: cfg.Proxy.Password}
		}
		addr := fmt.Sprintf("%s:%d", cfg.Proxy.Host, cfg.Proxy.Port)
		dialer, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("building SOCKS5 dialer: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	default:
		transport.Proxy = http.ProxyFromEnvironment
	}

	var authHeader string
	if cfg.Authentication {
		creds := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		authHeader = "Basic " + creds
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelAllLocked()
	t.sessionID = ""
	t.cfg = cfg
	t.authHeader = authHeader
	t.httpClient = &http.Client{
		Transport: transport,
		Timeout:   cfg.timeout(),
	}
	return nil
}

// SessionID returns the currently known X-Transmission-Session-Id value.
func (t *Transport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// HasPendingDataUpdateRequests reports whether any DataUpdate-typed request
// is currently in flight; the orchestrator uses this to gate cycle
// completion (spec.md §4.1, §4.4).
func (t *Transport) HasPendingDataUpdateRequests() bool {
	return atomic.LoadInt32(&t.dataUpdates) > 0
}

// CancelPendingAndClearSessionID aborts all in-flight requests (their
// contexts are cancelled, so no callback they were carrying will fire) and
// clears the stored session id, per spec.md §4.1/§5.
func (t *Transport) CancelPendingAndClearSessionID() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelAllLocked()
	t.sessionID = ""
}

func (t *Transport) cancelAllLocked() {
	for id, cancel := range t.inflight {
		cancel()
		delete(t.inflight, id)
	}
}

// Post issues an RPC call. onResponse is invoked at most once, on the
// orchestrator's goroutine of choice (the caller is responsible for hopping
// back if it runs a single-threaded engine loop), and only for replies the
// daemon actually returned; transport failures go through OnFailure instead.
func (t *Transport) Post(ctx context.Context, method string, arguments any, kind requestType, onResponse func(Response)) {
	t.mu.Lock()
	client := t.httpClient
	cfg := t.cfg
	t.mu.Unlock()
	if client == nil {
		t.fail(method, &RequestError{Kind: ConnectionError, Short: "transport not configured"})
		return
	}

	reqCtx, cancel := context.WithCancel(ctx)
	id := atomic.AddUint64(&t.nextID, 1)
	t.mu.Lock()
	t.inflight[id] = cancel
	t.mu.Unlock()
	if kind == DataUpdate {
		atomic.AddInt32(&t.dataUpdates, 1)
	}
	done := func() {
		t.mu.Lock()
		delete(t.inflight, id)
		t.mu.Unlock()
		if kind == DataUpdate {
			atomic.AddInt32(&t.dataUpdates, -1)
		}
	}

	go t.execute(reqCtx, done, client, cfg, method, arguments, onResponse)
}

func (t *Transport) execute(ctx context.Context, done func(), client *http.Client, cfg ServerConfig, method string, arguments any, onResponse func(Response)) {
	var finish sync.Once
	defer finish.Do(done)

	body, err := json.Marshal(wireEnvelope{Method: method, Arguments: arguments})
	if err != nil {
		t.fail(method, &RequestError{Kind: ParseError, Short: "encoding request failed", Err: err})
		return
	}

	attempts := 0
	maxAttempts := cfg.retryAttempts() + 1
	for {
		reply, retryable, httpErr := t.attempt(ctx, client, cfg, method, body)
		if httpErr == nil {
			// Leave the pending set before delivering, so a convergence check
			// triggered by this reply no longer counts it as in flight.
			finish.Do(done)
			t.deliver(method, reply, onResponse)
			return
		}
		if ctx.Err() != nil {
			// Cancelled by CancelPendingAndClearSessionID/disconnect: no
			// callback of any kind fires (spec.md §5).
			return
		}
		if httpErr.Kind == authChallenge {
			// Session-id challenge: re-issue immediately, does not count
			// against retryAttempts (spec.md §4.1, law 4 in §8).
			continue
		}
		if !retryable {
			t.fail(method, httpErr.asRequestError())
			return
		}
		attempts++
		if attempts >= maxAttempts {
			t.fail(method, httpErr.asRequestError())
			return
		}
	}
}

// authChallenge is a private sentinel ErrorKind used only inside attempt() to
// signal "retry immediately, for free" without reusing the public taxonomy.
const authChallenge ErrorKind = -1

type httpFailure struct {
	Kind     ErrorKind
	Short    string
	Detailed string
	Err      error
}

func (f *httpFailure) asRequestError() *RequestError {
	return &RequestError{Kind: f.Kind, Short: f.Short, Detailed: f.Detailed, Err: f.Err}
}

func (t *Transport) attempt(ctx context.Context, client *http.Client, cfg ServerConfig, method string, body []byte) (wireReply, bool, *httpFailure) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.url(), bytes.NewReader(body))
	if err != nil {
		return wireReply{}, false, &httpFailure{Kind: ConnectionError, Short: "building request failed", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if sid := t.SessionID(); sid != "" {
		req.Header.Set(sessionIDHeader, sid)
	}
	t.mu.Lock()
	authHeader := t.authHeader
	t.mu.Unlock()
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return wireReply{}, false, &httpFailure{Kind: ConnectionError, Short: "cancelled", Err: err}
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return wireReply{}, true, &httpFailure{Kind: TimedOut, Short: "request timed out", Detailed: detailedNetworkError(cfg, err), Err: err}
		}
		return wireReply{}, true, &httpFailure{Kind: ConnectionError, Short: "connection failed", Detailed: detailedNetworkError(cfg, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		if newID := resp.Header.Get(sessionIDHeader); newID != "" {
			t.mu.Lock()
			t.sessionID = newID
			t.mu.Unlock()
			return wireReply{}, false, &httpFailure{Kind: authChallenge, Short: "session id challenge"}
		}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return wireReply{}, false, &httpFailure{Kind: AuthenticationError, Short: "authentication rejected", Detailed: detailedHTTPError(cfg, resp)}
	}
	if resp.StatusCode >= 500 {
		// §9 open question: 5xx is treated as a generic, retryable
		// ConnectionError rather than a distinct taxonomy entry.
		return wireReply{}, true, &httpFailure{Kind: ConnectionError, Short: fmt.Sprintf("server error %d", resp.StatusCode), Detailed: detailedHTTPError(cfg, resp)}
	}
	if resp.StatusCode != http.StatusOK {
		return wireReply{}, true, &httpFailure{Kind: ConnectionError, Short: fmt.Sprintf("unexpected status %d", resp.StatusCode), Detailed: detailedHTTPError(cfg, resp)}
	}

	var reply wireReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return wireReply{}, false, &httpFailure{Kind: ParseError, Short: "decoding reply failed", Err: err}
	}
	return reply, false, nil
}

func (t *Transport) deliver(method string, reply wireReply, onResponse func(Response)) {
	if onResponse == nil {
		return
	}
	onResponse(Response{
		Arguments: reply.Arguments,
		Success:   reply.Result == "success",
		Result:    reply.Result,
	})
}

func (t *Transport) fail(method string, err *RequestError) {
	err.Method = method
	t.mu.Lock()
	cb := t.onFailure
	t.mu.Unlock()
	if cb != nil {
		cb(method, err)
	} else {
		t.logger.Warn("request failed with no handler registered", "method", method, "kind", err.Kind, "error", err.Short)
	}
}

func buildTLSConfig(cfg ServerConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	var pool *x509.CertPool
	if len(cfg.SelfSignedCertificate) > 0 {
		pool = x509.NewCertPool()
		if !pool.AppendCertsFromPEM(cfg.SelfSignedCertificate) {
			return nil, fmt.Errorf("no valid certificate found in configured PEM chain")
		}
		// Pre-authorize hostname mismatch / self-signed / self-signed-in-chain
		// for this specific pinned chain only (spec.md §4.1); any other TLS
		// error remains fatal because VerifyPeerCertificate below still runs
		// full chain verification, just against the caller-supplied pool
		// instead of the system roots.
		tlsConfig.InsecureSkipVerify = true
		tlsConfig.VerifyPeerCertificate = pinnedChainVerifier(pool)
	}

	if cfg.ClientCertificate != nil {
		cert, err := tls.X509KeyPair(cfg.ClientCertificate.Certificate, cfg.ClientCertificate.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// pinnedChainVerifier builds a VerifyPeerCertificate callback that accepts a
// presented chain verifying against pool (a pinned self-signed leaf, or a
// chain rooted at a pinned self-signed certificate) without checking the
// hostname, while rejecting every other verification failure, including
// x509.UnknownAuthorityError for a chain that does not lead to pool.
func pinnedChainVerifier(pool *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("no certificate presented")
		}
		leaf, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("parsing presented certificate: %w", err)
		}
		intermediates := x509.NewCertPool()
		for _, raw := range rawCerts[1:] {
			if cert, err := x509.ParseCertificate(raw); err == nil {
				intermediates.AddCert(cert)
			}
		}
		_, err = leaf.Verify(x509.VerifyOptions{
			Roots:         pool,
			Intermediates: intermediates,
		})
		if err == nil {
			return nil
		}
		switch err.(type) {
		case x509.HostnameError:
			return nil
		default:
			return fmt.Errorf("TLS verification failed against pinned chain: %w", err)
		}
	}
}

func detailedNetworkError(cfg ServerConfig, err error) string {
	return fmt.Sprintf("url=%s encrypted=%t error=%v", cfg.url(), cfg.HTTPS, err)
}

func detailedHTTPError(cfg ServerConfig, resp *http.Response) string {
	return fmt.Sprintf("url=%s encrypted=%t status=%d (%s) headers=%v", cfg.url(), cfg.HTTPS, resp.StatusCode, resp.Status, resp.Header)
}
