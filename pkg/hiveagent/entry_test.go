package hiveagent

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryCRUD(t *testing.T) {
	transport, service, base := newTestTransport(t)
	ctx := context.Background()

	created, err := CreateEntry(ctx, transport, base, "notes", map[string]any{"title": "first", "done": false})
	require.NoError(t, err)
	id, ok := created["id"].(string)
	require.True(t, ok, "server should assign an id")
	assert.Equal(t, "first", created["title"])

	entries, err := ListEntries(ctx, transport, base, "notes")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0]["id"])

	entry, err := GetEntryByID(ctx, transport, base, "notes", id)
	require.NoError(t, err)
	assert.Equal(t, created, entry)

	updated, err := UpdateEntry(ctx, transport, base, "notes", id, map[string]any{"title": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated["title"])

	result, err := DeleteEntry(ctx, transport, base, "notes", id)
	require.NoError(t, err)
	assert.Contains(t, result["message"], id)

	entries, err = ListEntries(ctx, transport, base, "notes")
	require.NoError(t, err)
	assert.Empty(t, entries)

	methods := make([]string, 0)
	for _, r := range service.Requests() {
		methods = append(methods, r.Method+" "+r.Path)
	}
	assert.Equal(t, []string{
		"POST /api/entry/notes",
		"GET /api/entry/notes",
		"GET /api/entry/notes/" + id,
		"PUT /api/entry/notes/" + id,
		"DELETE /api/entry/notes/" + id,
		"GET /api/entry/notes",
	}, methods)
}

func TestEntryNotFound(t *testing.T) {
	transport, _, base := newTestTransport(t)

	_, err := GetEntryByID(context.Background(), transport, base, "notes", "missing")
	require.Error(t, err)
	remoteErr, ok := IsRemoteError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, remoteErr.StatusCode)
	assert.Contains(t, err.Error(), "failed to get entry missing from notes")
}

func TestCreateEntryRemoteError(t *testing.T) {
	transport, service, base := newTestTransport(t)
	service.FailWith(http.MethodPost, "/api/entry/test", http.StatusBadRequest, "Bad request")

	_, err := CreateEntry(context.Background(), transport, base, "test", map[string]any{"key": "value"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "Bad request")
}

func TestStreamEntries(t *testing.T) {
	transport, service, base := newTestTransport(t)

	inputs := []any{
		map[string]any{"n": 1},
		map[string]any{"n": 2},
		map[string]any{"n": 3},
	}

	var responses []Entry
	for response, err := range StreamEntries(context.Background(), transport, base, "stream", slices.Values(inputs)) {
		require.NoError(t, err)
		var entry Entry
		require.NoError(t, json.Unmarshal(response, &entry))
		responses = append(responses, entry)
	}

	require.Len(t, responses, len(inputs))
	for i, entry := range responses {
		assert.EqualValues(t, i+1, entry["n"], "responses must keep input order")
		assert.NotEmpty(t, entry["id"])
	}
	assert.Equal(t, 1, service.StreamConnections())
}

func TestStreamEntriesIsLazy(t *testing.T) {
	transport, service, base := newTestTransport(t)

	seq := StreamEntries(context.Background(), transport, base, "lazy", slices.Values([]any{1}))
	assert.Equal(t, 0, service.StreamConnections(), "no connection before iteration")

	count := 0
	for _, err := range seq {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, service.StreamConnections())
}

func TestStreamEntriesPullsOneInputPerResponse(t *testing.T) {
	transport, _, base := newTestTransport(t)

	pulled := 0
	inputs := func(yield func(any) bool) {
		for i := 0; i < 10; i++ {
			pulled++
			if !yield(map[string]any{"i": i}) {
				return
			}
		}
	}

	received := 0
	for _, err := range StreamEntries(context.Background(), transport, base, "early", iter.Seq[any](inputs)) {
		require.NoError(t, err)
		received++
		assert.Equal(t, received, pulled, "next input must not be pulled before the response is consumed")
		if received == 2 {
			break
		}
	}
	assert.Equal(t, 2, received)
	assert.Equal(t, 2, pulled)
}

func TestStreamEntriesClosesSocket(t *testing.T) {
	closed := make(chan struct{})
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var v any
			if err := conn.ReadJSON(&v); err != nil {
				close(closed)
				return
			}
			_ = conn.WriteJSON(map[string]any{"echo": v})
		}
	}))
	defer server.Close()

	transport := NewTransport(nil, time.Second, newMockLogger())
	for _, err := range StreamEntries(context.Background(), transport, server.URL, "ns", slices.Values([]any{"a", "b"})) {
		require.NoError(t, err)
		break
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("socket was not closed after the consumer stopped")
	}
}

func TestStreamEntriesConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	transport := NewTransport(nil, time.Second, newMockLogger())
	var gotErr error
	count := 0
	for _, err := range StreamEntries(context.Background(), transport, server.URL, "ns", slices.Values([]any{1})) {
		count++
		gotErr = err
	}

	assert.Equal(t, 1, count, "the error is the only element")
	var connErr *ConnectionError
	require.True(t, errors.As(gotErr, &connErr), "expected ConnectionError, got %v", gotErr)
	assert.True(t, strings.HasPrefix(connErr.URL, "ws://"))
	remoteErr, ok := IsRemoteError(gotErr)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, remoteErr.StatusCode)
}

func TestStreamEntriesProtocolError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var v any
		_ = conn.ReadJSON(&v)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	}))
	defer server.Close()

	transport := NewTransport(nil, time.Second, newMockLogger())
	var gotErr error
	for _, err := range StreamEntries(context.Background(), transport, server.URL, "ns", slices.Values([]any{1, 2})) {
		gotErr = err
	}

	var streamErr *StreamError
	require.True(t, errors.As(gotErr, &streamErr), "expected StreamError, got %v", gotErr)
	assert.Equal(t, "ns", streamErr.Namespace)
}

func TestStreamEntriesContextCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Never answer
		var v any
		_ = conn.ReadJSON(&v)
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	transport := NewTransport(nil, time.Second, newMockLogger())
	var gotErr error
	for _, err := range StreamEntries(ctx, transport, server.URL, "ns", slices.Values([]any{1})) {
		gotErr = err
	}

	require.Error(t, gotErr)
	assert.True(t, IsTransportError(gotErr), "expected TransportError, got %v", gotErr)
	assert.True(t, errors.Is(gotErr, context.DeadlineExceeded))
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://localhost:8000/v1/api/entry/ns/stream", "ws://localhost:8000/v1/api/entry/ns/stream", false},
		{"https://agent.example.com/v1/x", "wss://agent.example.com/v1/x", false},
		{"ws://already/ws", "ws://already/ws", false},
		{"ftp://nope/x", "", true},
	}

	for _, tt := range tests {
		got, err := websocketURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
