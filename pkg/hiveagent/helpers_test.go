package hiveagent

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"
)

// mockLogger is a simple mock implementation of the Logger interface for testing
type mockLogger struct {
	level    LogLevel
	messages []string
	mu       sync.Mutex
}

func newMockLogger() *mockLogger {
	return &mockLogger{
		level:    LogLevelTrace,
		messages: make([]string, 0),
	}
}

func (l *mockLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *mockLogger) log(prefix, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(prefix+format, v...))
}

func (l *mockLogger) Error(format string, v ...interface{}) {
	l.log("[ERROR] ", format, v...)
}

func (l *mockLogger) Warn(format string, v ...interface{}) {
	l.log("[WARN]  ", format, v...)
}

func (l *mockLogger) Info(format string, v ...interface{}) {
	l.log("[INFO]  ", format, v...)
}

func (l *mockLogger) Debug(format string, v ...interface{}) {
	l.log("[DEBUG] ", format, v...)
}

func (l *mockLogger) Trace(format string, v ...interface{}) {
	l.log("[TRACE] ", format, v...)
}

func (l *mockLogger) getMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Return a copy to avoid race conditions
	result := make([]string, len(l.messages))
	copy(result, l.messages)
	return result
}

// newTestClient starts a mock service and a client pointed at it
func newTestClient(t *testing.T) (*HiveAgentClient, *MockHiveAgentService) {
	t.Helper()
	logger := newMockLogger()
	service := NewMockHiveAgentService(t, logger)
	client := NewHiveAgentClient(Config{
		BaseURL: service.URL + "/",
		Version: DefaultAPIVersion,
		Timeout: 5 * time.Second,
		Logger:  logger,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client, service
}

// trackingCloser records whether Close was called
type trackingCloser struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (c *trackingCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *trackingCloser) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// trackLocalFiles replaces openLocalFile for the duration of the test and
// returns the handles it hands out, keyed by path.
func trackLocalFiles(t *testing.T) map[string]*trackingCloser {
	t.Helper()
	var mu sync.Mutex
	handles := make(map[string]*trackingCloser)
	original := openLocalFile
	openLocalFile = func(name string) (io.ReadCloser, error) {
		rc, err := original(name)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		tc := &trackingCloser{Reader: bytes.NewReader(data)}
		mu.Lock()
		handles[name] = tc
		mu.Unlock()
		return tc, nil
	}
	t.Cleanup(func() { openLocalFile = original })
	return handles
}
