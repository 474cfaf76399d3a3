package aisvc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/chat"
)

func TestOpenAICompleter_Complete(t *testing.T) {
	turns := []chat.Turn{
		{Role: chat.RoleSystem, Content: "be nice"},
		{Role: chat.RoleUser, Content: "hi"},
	}

	var status int
	var reply string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		assert.Equal(t, 128, body.MaxTokens)
		assert.Equal(t, turns, body.Messages)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	defer srv.Close()

	conf := core.NewTestConfig()
	conf.AI.BaseURL = srv.URL
	conf.AI.APIKey = "sk-test"
	conf.AI.Model = "gpt-test"
	conf.AI.MaxTokens = 128
	completer := NewOpenAICompleter(conf)

	tests := []struct {
		name    string
		status  int
		reply   string
		want    chat.Completion
		wantErr string
	}{
		{
			name:   "completed",
			status: http.StatusOK,
			reply:  `{"model": "gpt-test-0613", "choices": [{"message": {"role": "assistant", "content": "hello!"}}]}`,
			want:   chat.Completion{Content: "hello!", Model: "gpt-test-0613"},
		},
		{
			name:   "model defaults to the configured one",
			status: http.StatusOK,
			reply:  `{"choices": [{"message": {"role": "assistant", "content": "hello!"}}]}`,
			want:   chat.Completion{Content: "hello!", Model: "gpt-test"},
		},
		{
			name:    "provider error",
			status:  http.StatusUnauthorized,
			reply:   `{"error": {"message": "invalid api key"}}`,
			wantErr: "completion failed (status 401): invalid api key",
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			reply:   `{"choices": []}`,
			wantErr: "completion has no content",
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			reply:   `{}`,
			wantErr: "completion failed (status 500)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, reply = tt.status, tt.reply
			got, err := completer.Complete(context.Background(), turns)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCannedCompleter_Complete(t *testing.T) {
	c := NewCannedCompleter()

	got, err := c.Complete(context.Background(), []chat.Turn{
		{Role: chat.RoleSystem, Content: "be nice"},
		{Role: chat.RoleUser, Content: "How do I ENROLL?"},
	})
	require.NoError(t, err)
	assert.Equal(t, cannedModel, got.Model)
	assert.Contains(t, got.Content, "Courses page")

	got, err = c.Complete(context.Background(), []chat.Turn{{Role: chat.RoleUser, Content: "what's up"}})
	require.NoError(t, err)
	assert.Equal(t, cannedFallback, got.Content)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Complete(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
