package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/config"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

// OllamaClient calls a local model through the /api/generate endpoint.
type OllamaClient struct {
	endpoint string
	model    string
	http     *http.Client
}

var _ ports.TextGenerator = (*OllamaClient)(nil)

// NewOllamaClient creates a reusable non-streaming client.
func NewOllamaClient(cfg config.ModelConfig) *OllamaClient {
	return &OllamaClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		http:     newHTTPClient(cfg.Timeout),
	}
}

type ollamaOptions struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate blocks until the model returns the whole completion.
func (c *OllamaClient) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if c.endpoint == "" || c.model == "" {
		return "", errors.New("ollama client misconfigured")
	}

	payload := ollamaRequest{
		Model:  c.model,
		System: req.System,
		Prompt: req.Prompt,
		Options: ollamaOptions{
			Temperature:   req.Options.Temperature,
			TopP:          req.Options.TopP,
			RepeatPenalty: req.Options.RepeatPenalty,
			NumPredict:    req.Options.MaxTokens,
		},
	}

	var resp ollamaResponse
	if err := postJSON(ctx, c.http, c.endpoint+"/api/generate", "", payload, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", errors.New("ollama: " + resp.Error)
	}
	return resp.Response, nil
}
