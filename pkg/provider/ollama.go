package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Ollama adapts a self-hosted Ollama-compatible HTTP endpoint to the Backend
// interface. This is the cloud-local tier: the user supplies the base URL and
// model name, so context limits vary and no capacity hint is advertised.
type Ollama struct {
	client  *http.Client
	baseURL string
	model   string
}

// NewOllama creates the cloud-local backend adapter for the given endpoint.
func NewOllama(baseURL, model string) *Ollama {
	if model == "" {
		model = "llama3"
	}
	return &Ollama{
		client:  &http.Client{},
		baseURL: baseURL,
		model:   model,
	}
}

func (l *Ollama) Name() string      { return "ollama" }
func (l *Ollama) CapacityHint() int { return 0 }

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int32  `json:"prompt_eval_count"`
	EvalCount       int32  `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// Run performs one non-streaming generate call against the local endpoint.
func (l *Ollama) Run(ctx context.Context, req Request) (Response, error) {
	body := ollamaRequest{
		Model:  l.model,
		Prompt: BuildPrompt(req),
		Stream: false,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return Response{}, fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := l.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("ollama: do request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return Response{}, fmt.Errorf("ollama: API error %d: %s", httpResp.StatusCode, string(respBody))
	}

	var olResp ollamaResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&olResp); err != nil {
		return Response{}, fmt.Errorf("ollama: decode response: %w", err)
	}
	if olResp.Error != "" {
		return Response{}, fmt.Errorf("ollama: %s", olResp.Error)
	}

	return Response{
		Text:         olResp.Response,
		PromptTokens: olResp.PromptEvalCount,
		OutputTokens: olResp.EvalCount,
	}, nil
}
