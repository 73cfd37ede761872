package hiveagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// StreamEntries opens one WebSocket to {baseURL}/api/entry/{namespace}/stream
// and, for every item pulled from inputs, sends it as a JSON frame and yields
// the single JSON frame the server answers with.
//
// Nothing happens until the returned sequence is ranged over. The next input
// is only pulled after the previous response was yielded. The socket is
// closed when inputs is exhausted, the consumer stops, ctx is done, or an
// error is yielded; an error is always the last element of the sequence.
func StreamEntries(ctx context.Context, t *Transport, baseURL, namespace string, inputs iter.Seq[any]) iter.Seq2[json.RawMessage, error] {
	op := fmt.Sprintf("stream entry data to %s", namespace)

	return func(yield func(json.RawMessage, error) bool) {
		target := joinURL(baseURL, EntryEndpoint, namespace, "stream")

		stream, err := dialEntryStream(ctx, t, target, namespace)
		if err != nil {
			yield(nil, wrapOpError(op, err))
			return
		}
		defer stream.close()

		// Unblock a pending read or write when ctx is cancelled mid-stream
		stop := context.AfterFunc(ctx, func() { _ = stream.conn.Close() })
		defer stop()

		for item := range inputs {
			response, err := stream.roundTrip(item)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = &TransportError{Err: ctxErr}
				}
				yield(nil, wrapOpError(op, err))
				return
			}
			if !yield(response, nil) {
				t.logger.Debug("Entry stream consumer for %s stopped after %d response(s)", namespace, stream.count)
				return
			}
		}
		t.logger.Debug("Entry stream input for %s exhausted after %d response(s)", namespace, stream.count)
	}
}

// entryStream owns one WebSocket for the lifetime of a StreamEntries call
type entryStream struct {
	logger    Logger
	namespace string
	conn      *websocket.Conn
	count     int
}

func dialEntryStream(ctx context.Context, t *Transport, target, namespace string) (*entryStream, error) {
	wsURL, err := websocketURL(target)
	if err != nil {
		return nil, &ConnectionError{URL: target, Err: err}
	}

	header := http.Header{}
	header.Set(RequestIDHeader, uuid.NewString())

	t.logger.Debug("Connecting to %s", wsURL)
	conn, resp, err := t.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			// The server refused the upgrade with a regular HTTP answer
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			err = &RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		t.logger.Error("Request error while establishing WebSocket connection to %s: %v", wsURL, err)
		return nil, &ConnectionError{URL: wsURL, Err: err}
	}

	t.logger.Debug("Entry stream connected to %s", wsURL)
	return &entryStream{logger: t.logger, namespace: namespace, conn: conn}, nil
}

// roundTrip sends one item and waits for exactly one response frame
func (s *entryStream) roundTrip(item any) (json.RawMessage, error) {
	if err := s.conn.WriteJSON(item); err != nil {
		s.logger.Error("WebSocket write error in namespace %s: %v", s.namespace, err)
		return nil, &StreamError{Namespace: s.namespace, Err: err}
	}

	_, message, err := s.conn.ReadMessage()
	if err != nil {
		s.logger.Error("WebSocket read error in namespace %s: %v", s.namespace, err)
		return nil, &StreamError{Namespace: s.namespace, Err: err}
	}
	if !json.Valid(message) {
		return nil, &StreamError{Namespace: s.namespace, Err: errors.New("response frame is not valid JSON")}
	}

	s.count++
	s.logger.Trace("Entry stream %s response #%d: %s", s.namespace, s.count, string(message))
	return json.RawMessage(message), nil
}

// close sends a normal closure frame and closes the socket
func (s *entryStream) close() {
	_ = s.conn.SetWriteDeadline(time.Now().Add(WsCloseGracePeriod))
	// Ignore error if connection is already broken
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteMessage(websocket.CloseMessage, closeMsg)
	if err := s.conn.Close(); err != nil {
		s.logger.Trace("Closing entry stream for %s: %v", s.namespace, err)
	}
}

// websocketURL maps an http(s) URL to the matching ws(s) URL
func websocketURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return u.String(), nil
}
