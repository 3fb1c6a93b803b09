package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskradar/internal/apperr"
)

func TestAnthropicCallToolForcesTool(t *testing.T) {
	var got apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, messagesPath, r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Looks like an edit."},
				{"type": "tool_use", "id": "tu_1", "name": "record_task_decision",
				 "input": {"action": "edit", "target_task_id": "t-1", "title": "Buy eggs"}},
				{"type": "tool_use", "id": "tu_2", "name": "something_else", "input": {}}
			]
		}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient("key-1", srv.URL, "", 0)
	inputs, err := client.callTool(context.Background(), "sys", "user", decisionTool)
	require.NoError(t, err)

	require.Len(t, inputs, 1)
	assert.JSONEq(t, `{"action": "edit", "target_task_id": "t-1", "title": "Buy eggs"}`, string(inputs[0]))

	assert.Equal(t, defaultModel, got.Model)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	assert.Equal(t, "sys", got.System)
	require.NotNil(t, got.ToolChoice)
	assert.Equal(t, "tool", got.ToolChoice.Type)
	assert.Equal(t, DecisionToolName, got.ToolChoice.Name)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, DecisionToolName, got.Tools[0].Name)
}

func TestAnthropicErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   apperr.Kind
	}{
		{name: "overloaded", status: 529, want: apperr.KindTransientIO},
		{name: "rate limited", status: http.StatusTooManyRequests, want: apperr.KindTransientIO},
		{name: "bad key", status: http.StatusUnauthorized, want: apperr.KindConfigurationMissing},
		{name: "bad request", status: http.StatusBadRequest, want: apperr.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"x","message":"nope"}}`))
			}))
			defer srv.Close()

			_, err := NewAnthropicClient("k", srv.URL, "", 0).
				callTool(context.Background(), "s", "u", searchTool)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}
