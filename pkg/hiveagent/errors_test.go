package hiveagent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"remote", &RemoteError{StatusCode: 400, Body: "Bad request"}, "HTTP error 400 - Bad request"},
		{"validation", &ValidationError{Field: "content", Reason: "must not be empty"}, "invalid content: must not be empty"},
		{"validation with cause", &ValidationError{Field: "files", Reason: "cannot open attachment", Err: errors.New("no such file")},
			"invalid files: cannot open attachment: no such file"},
		{"transport", &TransportError{Err: errors.New("connection refused")}, "request error: connection refused"},
		{"unexpected", &UnexpectedError{Err: errors.New("bad json")}, "unexpected error: bad json"},
		{"stream", &StreamError{Namespace: "ns", Err: errors.New("eof")}, "WebSocket communication error in namespace ns: eof"},
		{"operation without args", &OperationError{Op: "list files", Err: errors.New("x")}, "failed to list files: x"},
		{"operation with args", &OperationError{Op: "get entry by ID", Args: map[string]any{"namespace": "n", "entry_id": "1"}, Err: errors.New("x")},
			"failed to get entry by ID (entry_id=1, namespace=n): x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrapOpError(t *testing.T) {
	assert.NoError(t, wrapOpError("anything", nil))

	cause := &RemoteError{StatusCode: 404, Body: "Not found"}
	err := wrapOpError("get entry 1 from notes", cause)
	assert.Equal(t, "failed to get entry 1 from notes: HTTP error 404 - Not found", err.Error())

	remoteErr, ok := IsRemoteError(err)
	require.True(t, ok)
	assert.Same(t, cause, remoteErr)
}

func TestErrorsAsThroughLayers(t *testing.T) {
	inner := &TransportError{Err: errors.New("timeout")}
	err := &OperationError{Op: "create entry", Err: wrapOpError("create entry in notes", inner)}

	assert.True(t, IsTransportError(err))
	assert.False(t, IsValidationError(err))
	_, isRemote := IsRemoteError(err)
	assert.False(t, isRemote)

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "create entry", opErr.Op)

	conn := &ConnectionError{URL: "ws://x", Err: &RemoteError{StatusCode: 403, Body: "forbidden"}}
	remoteErr, ok := IsRemoteError(wrapOpError("stream", conn))
	require.True(t, ok)
	assert.Equal(t, 403, remoteErr.StatusCode)
}
