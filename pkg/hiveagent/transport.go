package hiveagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Transport is the reusable HTTP (and WebSocket) connection used by every
// operation. It holds no per-call state and is safe for concurrent use.
type Transport struct {
	logger     Logger
	httpClient *http.Client
	dialer     *websocket.Dialer
	ownsClient bool
}

// NewTransport wraps httpClient. When httpClient is nil a new client with the
// given timeout is created and owned by the transport.
func NewTransport(httpClient *http.Client, timeout time.Duration, logger Logger) *Transport {
	if logger == nil {
		logger = NewLogger(LogLevelFromEnv(LogLevelError))
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	owns := false
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
		owns = true
	}

	// Copy the default dialer, never mutate the package level one
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = min(timeout, WsHandshakeTimeout)
	if httpClient.Jar != nil {
		dialer.Jar = httpClient.Jar
	}
	// The stream must trust the same CAs and use the same proxy as HTTP calls
	if ht, ok := httpClient.Transport.(*http.Transport); ok {
		dialer.TLSClientConfig = ht.TLSClientConfig.Clone()
		if ht.Proxy != nil {
			dialer.Proxy = ht.Proxy
		}
	}

	return &Transport{
		logger:     logger,
		httpClient: httpClient,
		dialer:     &dialer,
		ownsClient: owns,
	}
}

// Close releases pooled connections of a transport-owned HTTP client.
// Caller supplied clients are left untouched.
func (t *Transport) Close() {
	if t.ownsClient {
		t.httpClient.CloseIdleConnections()
	}
}

// apiRequest is one HTTP call issued by an operation
type apiRequest struct {
	method      string
	url         string
	query       url.Values
	body        io.Reader
	contentType string
}

// do sends req and returns the response body. Failures are already mapped to
// TransportError, RemoteError or UnexpectedError.
func (t *Transport) do(ctx context.Context, req apiRequest) ([]byte, error) {
	target := req.url
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, req.body)
	if err != nil {
		return nil, &UnexpectedError{Err: fmt.Errorf("error creating request: %w", err)}
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	httpReq.Header.Set(RequestIDHeader, requestID)

	t.logger.Debug("Sending %s %s (request %s)", req.method, target, requestID)

	requestStart := time.Now()
	res, err := t.httpClient.Do(httpReq)
	if err != nil {
		t.logger.Error("Request error on %s %s (request %s): %v", req.method, target, requestID, err)
		return nil, classifyRequestError(err)
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			t.logger.Warn("Failed to close response body from %s: %v", target, closeErr)
		}
	}()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, classifyRequestError(fmt.Errorf("error reading response body: %w", err))
	}

	t.logger.Trace("Response %d from %s %s in %s: %s", res.StatusCode, req.method, target,
		time.Since(requestStart), string(body))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		t.logger.Error("HTTP error occurred on %s %s: %d - %s", req.method, target, res.StatusCode, string(body))
		return nil, &RemoteError{StatusCode: res.StatusCode, Body: string(body)}
	}

	return body, nil
}

// doJSON marshals payload (when non-nil) as the request body and decodes the
// response into out (when non-nil).
func (t *Transport) doJSON(ctx context.Context, method, target string, query url.Values, payload, out any) error {
	req := apiRequest{method: method, url: target, query: query}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &UnexpectedError{Err: fmt.Errorf("error marshaling body: %w", err)}
		}
		req.body = bytes.NewReader(data)
		req.contentType = "application/json"
	}

	body, err := t.do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeBody(body, out)
}

// decodeBody decodes a response body. Numbers are kept as json.Number so
// payloads re-encode exactly as the server sent them.
func decodeBody(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	err := dec.Decode(out)
	if err == nil && dec.More() {
		err = fmt.Errorf("unexpected data after top-level value")
	}
	if err != nil {
		return &UnexpectedError{Err: fmt.Errorf("error unmarshaling response body: %w (preview: %s)",
			err, truncateString(string(body), 200))}
	}
	return nil
}

// joinURL appends endpoint and escaped path segments to baseURL
func joinURL(baseURL, endpoint string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	b.WriteString(endpoint)
	for _, s := range segments {
		if !strings.HasSuffix(b.String(), "/") {
			b.WriteByte('/')
		}
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// truncateString truncates a string if it's longer than maxLen runes and adds "..."
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
