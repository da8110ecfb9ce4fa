package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/config"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

// ChatClient implements ports.TextGenerator backed by OpenAI-compatible
// chat completion APIs.
type ChatClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.TextGenerator = (*ChatClient)(nil)

// NewChatClient builds a client from configuration. Endpoint is the full
// chat completions URL.
func NewChatClient(cfg config.ModelConfig) *ChatClient {
	return &ChatClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: newHTTPClient(cfg.Timeout),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the system and user prompt as one chat completion.
func (c *ChatClient) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chat client is nil")
	}
	if c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("chat client misconfigured")
	}

	messages := make([]chatMessage, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	var resp chatResponse
	err := postJSON(ctx, c.httpClient, c.endpoint, c.apiKey, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Options.Temperature,
		TopP:        req.Options.TopP,
		MaxTokens:   req.Options.MaxTokens,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
