package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		details   types.AdvisorDetails
		expected  interface{}
		expectErr bool
	}{
		{"mock", types.AdvisorDetails{LLMProvider: "mock"}, MockProvider{}, false},
		{"default is mock", types.AdvisorDetails{}, MockProvider{}, false},
		{"openai", types.AdvisorDetails{LLMProvider: "OpenAI", OpenAIAPIKey: "sk-test"}, &OpenAIProvider{}, false},
		{"openai without key", types.AdvisorDetails{LLMProvider: "openai"}, nil, true},
		{"unknown", types.AdvisorDetails{LLMProvider: "gemini"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(&tt.details)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.expected, provider)
		})
	}
}

func TestMockProvider(t *testing.T) {
	text, err := MockProvider{}.GenerateText(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(text)))

	text, err = MockProvider{Response: "canned"}.GenerateText(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "canned", text)
}

func TestOpenAIProvider(t *testing.T) {
	var request openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "  insights  "}},
			},
		})
	}))
	defer server.Close()

	config := openai.DefaultConfig("sk-test")
	config.BaseURL = server.URL + "/v1"

	text, err := NewOpenAIProvider(config, "").GenerateText(context.Background(), "analyze this run")
	require.NoError(t, err)
	assert.Equal(t, "insights", text)
	assert.Equal(t, "gpt-4o-mini", request.Model)
	require.Len(t, request.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, request.Messages[0].Role)
	assert.Equal(t, "analyze this run", request.Messages[1].Content)
}

func TestOpenAIProvider_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	config := openai.DefaultConfig("sk-bad")
	config.BaseURL = server.URL + "/v1"

	_, err := NewOpenAIProvider(config, "gpt-4o").GenerateText(context.Background(), "analyze")
	assert.Error(t, err)
}
