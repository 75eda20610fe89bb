package insights

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockAnthropic(t *testing.T, status int, body string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func TestNewAnthropicClient_RequiresKey(t *testing.T) {
	_, err := NewAnthropicClient(" ", "")
	assert.Error(t, err)
}

func TestAnthropicClient_Complete(t *testing.T) {
	server, captured := newMockAnthropic(t, http.StatusOK, `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-haiku-latest",
		"content": [{"type": "text", "text": "{\"facts\": [\"Most visits are checkups.\"]}"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 8}
	}`)

	client, err := NewAnthropicClient("sk-test", "",
		anthropicoption.WithBaseURL(server.URL),
		anthropicoption.WithMaxRetries(0),
	)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), LLMRequest{
		Prompt:         "summarize",
		Temperature:    -1,
		ResponseSchema: FactsSchema,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"facts": ["Most visits are checkups."]}`, resp.Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int32(20), resp.Usage.TotalTokens)

	require.NotNil(t, *captured)
	assert.Equal(t, DefaultAnthropicModel, (*captured)["model"])
	assert.EqualValues(t, defaultAnthropicMaxTokens, (*captured)["max_tokens"])
	_, hasTemperature := (*captured)["temperature"]
	assert.False(t, hasTemperature)
	system, ok := (*captured)["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
}

func TestAnthropicClient_Errors(t *testing.T) {
	server, _ := newMockAnthropic(t, http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	client, err := NewAnthropicClient("sk-test", "claude-test",
		anthropicoption.WithBaseURL(server.URL),
		anthropicoption.WithMaxRetries(0),
	)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), LLMRequest{Prompt: "p"})
	assert.Error(t, err)

	_, err = client.Complete(context.Background(), LLMRequest{Prompt: "  "})
	assert.Error(t, err)
}
