package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abdhe/textwise/pkg/resilience"
)

// OpenAI adapts an OpenAI-style Chat Completions API to the Backend
// interface. This is the cloud-primary tier. API keys come from a KeyPool so
// a 429 on one key rotates to the next instead of stalling the whole batch.
type OpenAI struct {
	client       *http.Client
	baseURL      string
	model        string
	keys         *resilience.KeyPool
	capacityHint int
}

// OpenAIConfig configures the cloud-primary adapter.
type OpenAIConfig struct {
	BaseURL      string // Default: https://api.openai.com/v1
	Model        string // Default: gpt-4o-mini
	Keys         []string
	CapacityHint int // Advertised input budget in tokens; default 128000
}

// NewOpenAI creates the cloud-primary backend adapter.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.CapacityHint == 0 {
		cfg.CapacityHint = 128000
	}
	return &OpenAI{
		client:       &http.Client{},
		baseURL:      cfg.BaseURL,
		model:        cfg.Model,
		keys:         resilience.NewKeyPool(cfg.Keys),
		capacityHint: cfg.CapacityHint,
	}
}

func (o *OpenAI) Name() string      { return "openai" }
func (o *OpenAI) CapacityHint() int { return o.capacityHint }

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float32         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int32 `json:"prompt_tokens"`
		CompletionTokens int32 `json:"completion_tokens"`
	} `json:"usage"`
}

// Run performs one chat completion call.
func (o *OpenAI) Run(ctx context.Context, req Request) (Response, error) {
	apiKey, err := o.keys.Next()
	if err != nil {
		return Response{}, fmt.Errorf("openai: %w", err)
	}

	body := openAIRequest{
		Model:    o.model,
		Messages: []openAIMessage{{Role: "user", Content: BuildPrompt(req)}},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return Response{}, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("openai: do request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		apiErr := fmt.Errorf("openai: API error %d: %s", httpResp.StatusCode, string(respBody))
		if resilience.IsRateLimited(apiErr) {
			o.keys.MarkRateLimited(apiKey, time.Now().Add(60*time.Second))
		}
		return Response{}, apiErr
	}

	var oaiResp openAIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&oaiResp); err != nil {
		return Response{}, fmt.Errorf("openai: decode response: %w", err)
	}

	var text string
	if len(oaiResp.Choices) > 0 {
		text = oaiResp.Choices[0].Message.Content
	}

	return Response{
		Text:         text,
		PromptTokens: oaiResp.Usage.PromptTokens,
		OutputTokens: oaiResp.Usage.CompletionTokens,
	}, nil
}
