package hiveagent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

// ErrClientClosed is returned by every facade method called after Close.
var ErrClientClosed = errors.New("hive agent client is closed")

// ValidationError reports a precondition checked before any network I/O.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// RemoteError is a non-2xx answer from the server.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("HTTP error %d - %s", e.StatusCode, e.Body)
}

// TransportError means the request never got a response: DNS, refused
// connection, timeout or cancellation.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnexpectedError wraps anything outside the other categories, e.g. a response
// body that is not the expected JSON.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error: %v", e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// ConnectionError means the entry stream WebSocket could not be established.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to establish WebSocket connection to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StreamError is a protocol fault on an established entry stream.
type StreamError struct {
	Namespace string
	Err       error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("WebSocket communication error in namespace %s: %v", e.Namespace, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// OperationError is the outermost error returned by HiveAgentClient methods.
// Args holds the salient call arguments for diagnostics.
type OperationError struct {
	Op   string
	Args map[string]any
	Err  error
}

func (e *OperationError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	keys := make([]string, 0, len(e.Args))
	for k := range e.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Args[k]))
	}
	return fmt.Sprintf("failed to %s (%s): %v", e.Op, strings.Join(parts, ", "), e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// wrapOpError is the module-level wrapper every operation funnels its
// failures through. op is a human readable description such as
// "create entry in notes".
func wrapOpError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// classifyRequestError maps an http.Client.Do failure into the taxonomy.
func classifyRequestError(err error) error {
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Err: err}
	case errors.As(err, &netErr), errors.As(err, &urlErr):
		return &TransportError{Err: err}
	}
	return &UnexpectedError{Err: err}
}

// IsValidationError reports whether err (or any error it wraps) is a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsRemoteError reports whether err wraps a RemoteError and returns it.
func IsRemoteError(err error) (*RemoteError, bool) {
	var target *RemoteError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsTransportError reports whether err (or any error it wraps) is a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
