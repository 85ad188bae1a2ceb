package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-updater/pkg/anthropic"
)

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func TestNew_SelectsProvider(t *testing.T) {
	g, err := New(ProviderOpenAI, Options{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, g.Name())

	g, err = New(ProviderAnthropic, Options{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, g.Name())

	_, err = New("cohere", Options{APIKey: "k"})
	assert.Error(t, err)

	_, err = New(ProviderOpenAI, Options{})
	assert.Error(t, err)
}

func TestAnthropic_Generate(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == DefaultAnthropicModel &&
			req.MaxTokens == 5000 &&
			len(req.System) == 1 &&
			req.System[0].Text == "sys" &&
			req.Messages[0].Content == "prompt" &&
			req.Temperature != nil && *req.Temperature == 0
	})).Return(&anthropic.MessageResponse{
		Model:   DefaultAnthropicModel,
		Content: []anthropic.ContentBlock{{Type: "text", Text: "{}"}},
		Usage:   anthropic.TokenUsage{InputTokens: 10, OutputTokens: 2},
	}, nil)

	g := NewAnthropicWithClient(client, "")
	resp, err := g.Generate(context.Background(), Request{System: "sys", Prompt: "prompt", MaxTokens: 5000})
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Text)
	assert.Equal(t, int64(12), resp.Usage.Total())
	client.AssertExpectations(t)
}

func TestAnthropic_GenerateWrapsServiceError(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset by peer"))

	_, err := NewAnthropicWithClient(client, "m").Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)

	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ProviderAnthropic, se.Provider)
	assert.True(t, IsRetryable(err))
}

func TestOpenAI_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "local-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Model: "local-model",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant", Content: `{"doi":"10.1/x"}`},
			}},
			Usage: openai.Usage{PromptTokens: 30, CompletionTokens: 5},
		})
	}))
	defer server.Close()

	g := NewOpenAI(Options{APIKey: "test-key", BaseURL: server.URL, Model: "local-model", Timeout: 5 * time.Second})
	resp, err := g.Generate(context.Background(), Request{System: "sys", Prompt: "p", MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, `{"doi":"10.1/x"}`, resp.Text)
	assert.Equal(t, int64(30), resp.Usage.InputTokens)
}

func TestOpenAI_GenerateStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"unauthorized", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			}))
			defer server.Close()

			g := NewOpenAI(Options{APIKey: "k", BaseURL: server.URL})
			_, err := g.Generate(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)

			var se *ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestOpenAI_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{})
	}))
	defer server.Close()

	_, err := NewOpenAI(Options{APIKey: "k", BaseURL: server.URL}).Generate(context.Background(), Request{Prompt: "p"})
	assert.Error(t, err)
}

func TestIsRetryable_PlainError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("no JSON object")))
	assert.False(t, IsRetryable(nil))
}
