package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/harwoodlabs/kingfisher/config"
)

// Provider is the generation backend contract. The pipeline treats it as an
// opaque request/response capability: a prompt goes in, text comes out. Any
// error from Generate means the backend itself is unreachable or rejected the
// request; malformed content is not an error at this layer.
type Provider interface {
	// Generate produces a completion for the given system and user prompts.
	// Recognised options: "temperature" (float64), "max_tokens" (int),
	// "json_schema" (string, a JSON Schema enforcing the response shape).
	Generate(ctx context.Context, system, prompt string, options map[string]any) (string, error)

	// Ping verifies the backend answers at all, for readiness probes.
	Ping(ctx context.Context) error

	// Model reports the configured completion model name.
	Model() string
}

// OpenAIProvider implements Provider against the OpenAI chat completions API.
type OpenAIProvider struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewOpenAIProvider creates a provider from config, falling back to the
// OPENAI_API_KEY environment variable when no key is configured.
func NewOpenAIProvider(cfg config.LLMConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured (llm.api_key or OPENAI_API_KEY)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (p *OpenAIProvider) Model() string { return p.cfg.Model }

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model          string          `json:"model"`
	Messages       []chatMsg       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

func (p *OpenAIProvider) Generate(ctx context.Context, system, prompt string, options map[string]any) (string, error) {
	temperature := p.cfg.Temperature
	if t, ok := options["temperature"].(float64); ok {
		temperature = t
	}
	maxTokens := p.cfg.MaxTokens
	if mt, ok := options["max_tokens"].(int); ok {
		maxTokens = mt
	}

	msgs := make([]chatMsg, 0, 2)
	if system != "" {
		msgs = append(msgs, chatMsg{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMsg{Role: "user", Content: prompt})

	reqBody := chatReq{
		Model:       p.cfg.Model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if schema, ok := options["json_schema"].(string); ok && schema != "" {
		rf, err := json.Marshal(map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "plan_response",
				"strict": true,
				"schema": json.RawMessage(schema),
			},
		})
		if err != nil {
			return "", fmt.Errorf("marshal response_format: %w", err)
		}
		reqBody.ResponseFormat = rf
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", p.cfg.BaseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("OpenAI status %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Ping lists models with a tight budget, mirroring what the readiness probe
// needs to know: can we reach and authenticate against the backend.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", p.cfg.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
