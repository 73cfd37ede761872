package hiveagent

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToolDescriptors(t *testing.T) {
	tests := []struct {
		name    string
		tools   []ToolDescriptor
		wantErr bool
	}{
		{"empty list", []ToolDescriptor{}, false},
		{"valid", []ToolDescriptor{{URL: "https://github.com/org/pack", Functions: []string{"pack.fn.search"}}}, false},
		{"missing url", []ToolDescriptor{{Functions: []string{"a.b"}}}, true},
		{"nil functions", []ToolDescriptor{{URL: "https://x"}}, true},
		{"no functions", []ToolDescriptor{{URL: "https://x", Functions: []string{}}}, true},
		{"blank function", []ToolDescriptor{{URL: "https://x", Functions: []string{""}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToolDescriptors(tt.tools)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestInstallTools(t *testing.T) {
	transport, service, base := newTestTransport(t)
	tools := []ToolDescriptor{
		{URL: "https://github.com/org/weather", Functions: []string{"weather.get_forecast", "weather.get_alerts"}},
	}

	result, err := InstallTools(context.Background(), transport, base, tools)
	require.NoError(t, err)
	assert.Equal(t, "Tools installed successfully.", result["message"])
	assert.Equal(t, tools, service.InstalledTools())

	requests := service.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodPost, requests[0].Method)
	assert.Equal(t, "/install_tools", requests[0].Path)
	assert.JSONEq(t,
		`[{"url":"https://github.com/org/weather","functions":["weather.get_forecast","weather.get_alerts"]}]`,
		string(requests[0].Body))
}

func TestInstallToolsSendsExtraKeys(t *testing.T) {
	transport, service, base := newTestTransport(t)
	tools := []ToolDescriptor{{
		URL:       "https://github.com/org/weather",
		Functions: []string{"weather.get_forecast"},
		Extra:     map[string]any{"version": "1.2.0", "enabled": true, "config": map[string]any{"region": "eu"}},
	}}

	_, err := InstallTools(context.Background(), transport, base, tools)
	require.NoError(t, err)
	assert.Equal(t, tools, service.InstalledTools())

	requests := service.Requests()
	require.Len(t, requests, 1)
	assert.JSONEq(t,
		`[{"url":"https://github.com/org/weather","functions":["weather.get_forecast"],"version":"1.2.0","enabled":true,"config":{"region":"eu"}}]`,
		string(requests[0].Body))
}

func TestToolDescriptorJSON(t *testing.T) {
	raw := `{"config":{"retries":9007199254740993},"functions":["a.b"],"url":"https://x"}`

	var d ToolDescriptor
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	assert.Equal(t, "https://x", d.URL)
	assert.Equal(t, []string{"a.b"}, d.Functions)
	assert.Equal(t, map[string]any{"config": map[string]any{"retries": json.Number("9007199254740993")}}, d.Extra)

	encoded, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, raw, string(encoded))

	var plain ToolDescriptor
	require.NoError(t, json.Unmarshal([]byte(`{"url":"https://x","functions":["a.b"]}`), &plain))
	assert.Nil(t, plain.Extra)

	assert.Error(t, json.Unmarshal([]byte(`{"url":1}`), &d))
}

func TestInstallToolsEmptyList(t *testing.T) {
	transport, service, base := newTestTransport(t)

	_, err := InstallTools(context.Background(), transport, base, nil)
	require.NoError(t, err)

	requests := service.Requests()
	require.Len(t, requests, 1)
	assert.JSONEq(t, `[]`, string(requests[0].Body))
}

func TestInstallToolsInvalidSkipsRequest(t *testing.T) {
	transport, service, base := newTestTransport(t)

	_, err := InstallTools(context.Background(), transport, base, []ToolDescriptor{{URL: ""}})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "failed to install tools to the API")
	assert.Empty(t, service.Requests())
}
