package hiveagent

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseLifecycle(t *testing.T) {
	transport, _, base := newTestTransport(t)
	ctx := context.Background()

	result, err := CreateTable(ctx, transport, base, "users", Columns{"name": "TEXT", "age": "INTEGER"})
	require.NoError(t, err)
	assert.Contains(t, result["message"], "users")

	inserted, err := InsertData(ctx, transport, base, "users", Row{"name": "Alice", "age": 30})
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), inserted["id"])

	_, err = InsertData(ctx, transport, base, "users", Row{"name": "Bob", "age": 25})
	require.NoError(t, err)

	rows, err := ReadData(ctx, transport, base, "users", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[0]["name"])
	assert.Equal(t, "Bob", rows[1]["name"])

	rows, err = ReadData(ctx, transport, base, "users", Filters{"name": {"Bob"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("25"), rows[0]["age"])

	_, err = UpdateData(ctx, transport, base, "users", 1, Row{"name": "Alice", "age": 31})
	require.NoError(t, err)
	rows, err = ReadData(ctx, transport, base, "users", Filters{"age": {31}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0]["name"])

	_, err = DeleteData(ctx, transport, base, "users", 2)
	require.NoError(t, err)
	rows, err = ReadData(ctx, transport, base, "users", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDatabaseRequestShapes(t *testing.T) {
	transport, service, base := newTestTransport(t)
	ctx := context.Background()

	_, err := CreateTable(ctx, transport, base, "t", Columns{"c": "TEXT"})
	require.NoError(t, err)
	_, err = InsertData(ctx, transport, base, "t", Row{"c": "x"})
	require.NoError(t, err)
	_, err = ReadData(ctx, transport, base, "t", nil)
	require.NoError(t, err)
	_, err = UpdateData(ctx, transport, base, "t", 1, Row{"c": "y"})
	require.NoError(t, err)
	_, err = DeleteData(ctx, transport, base, "t", 1)
	require.NoError(t, err)

	requests := service.Requests()
	require.Len(t, requests, 5)

	expected := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/database/create-table", `{"table_name":"t","columns":{"c":"TEXT"}}`},
		{http.MethodPost, "/database/insert-data", `{"table_name":"t","data":{"c":"x"}}`},
		{http.MethodPost, "/database/read-data", `{"table_name":"t","filters":null}`},
		{http.MethodPut, "/database/update-data", `{"table_name":"t","id":1,"data":{"c":"y"}}`},
		{http.MethodDelete, "/database/delete-data", `{"table_name":"t","id":1}`},
	}
	for i, want := range expected {
		assert.Equal(t, want.method, requests[i].Method)
		assert.Equal(t, want.path, requests[i].Path)
		assert.Equal(t, "application/json", requests[i].ContentType)
		assert.JSONEq(t, want.body, string(requests[i].Body))
	}
}

func TestReadDataFiltersEncoding(t *testing.T) {
	transport, service, base := newTestTransport(t)
	ctx := context.Background()

	_, err := CreateTable(ctx, transport, base, "t", Columns{"c": "TEXT"})
	require.NoError(t, err)
	_, err = ReadData(ctx, transport, base, "t", Filters{"c": {"a", "b"}})
	require.NoError(t, err)

	requests := service.Requests()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(requests[len(requests)-1].Body, &body))
	assert.JSONEq(t, `{"c":["a","b"]}`, string(body["filters"]))
}

func TestDatabaseRemoteErrors(t *testing.T) {
	transport, _, base := newTestTransport(t)
	ctx := context.Background()

	_, err := InsertData(ctx, transport, base, "missing", Row{"a": 1})
	remoteErr, ok := IsRemoteError(err)
	require.True(t, ok, "expected RemoteError, got %v", err)
	assert.Equal(t, http.StatusNotFound, remoteErr.StatusCode)
	assert.Contains(t, err.Error(), "failed to insert data into missing")

	_, err = CreateTable(ctx, transport, base, "dup", Columns{"a": "TEXT"})
	require.NoError(t, err)
	_, err = CreateTable(ctx, transport, base, "dup", Columns{"a": "TEXT"})
	remoteErr, ok = IsRemoteError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, remoteErr.StatusCode)
	assert.Contains(t, remoteErr.Body, "already exists")

	_, err = DeleteData(ctx, transport, base, "dup", 42)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "failed to delete data from dup with id 42")
}
