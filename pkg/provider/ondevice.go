package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OnDevice adapts a local device-capability runtime to the Backend interface.
// This is the built-in tier: a small daemon exposing per-capability models
// and a status endpoint, which also backs the availability probe.
type OnDevice struct {
	client       *http.Client
	baseURL      string
	capacityHint int
}

// NewOnDevice creates the built-in backend adapter. On-device models carry
// small context windows; the default hint is deliberately conservative.
func NewOnDevice(baseURL string) *OnDevice {
	return &OnDevice{
		client:       &http.Client{},
		baseURL:      baseURL,
		capacityHint: 4096,
	}
}

func (d *OnDevice) Name() string      { return "ondevice" }
func (d *OnDevice) CapacityHint() int { return d.capacityHint }

type onDeviceRequest struct {
	Capability string            `json:"capability"`
	Prompt     string            `json:"prompt"`
	Params     map[string]string `json:"params,omitempty"`
}

type onDeviceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Run performs one call against the capability that serves req.Operation.
func (d *OnDevice) Run(ctx context.Context, req Request) (Response, error) {
	body := onDeviceRequest{
		Capability: string(CapabilityFor(req.Operation)),
		Prompt:     BuildPrompt(req),
		Params:     req.Params,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("ondevice: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/run", bytes.NewReader(jsonBody))
	if err != nil {
		return Response{}, fmt.Errorf("ondevice: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("ondevice: do request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return Response{}, fmt.Errorf("ondevice: runtime error %d: %s", httpResp.StatusCode, string(respBody))
	}

	var devResp onDeviceResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&devResp); err != nil {
		return Response{}, fmt.Errorf("ondevice: decode response: %w", err)
	}
	if devResp.Error != "" {
		return Response{}, fmt.Errorf("ondevice: %s", devResp.Error)
	}

	return Response{Text: devResp.Text}, nil
}

// Probe asks the runtime for the readiness of every capability. The snapshot
// may go stale immediately; callers treat it as advisory.
func (d *OnDevice) Probe(ctx context.Context) (map[Capability]CapabilityStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/capabilities", nil)
	if err != nil {
		return nil, fmt.Errorf("ondevice: create probe request: %w", err)
	}

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ondevice: probe: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ondevice: probe error %d", httpResp.StatusCode)
	}

	var raw map[string]string
	if err := json.NewDecoder(httpResp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("ondevice: decode probe: %w", err)
	}

	statuses := make(map[Capability]CapabilityStatus, len(raw))
	for name, status := range raw {
		statuses[Capability(name)] = CapabilityStatus(status)
	}
	return statuses, nil
}
