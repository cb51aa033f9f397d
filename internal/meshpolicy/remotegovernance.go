package meshpolicy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPGovernanceConfig configures an HTTP-backed GovernanceClient.
type HTTPGovernanceConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// HTTPGovernanceClient evaluates policy requests against a remote HTTP
// governance service, POSTing the action and receiving back a decision.
type HTTPGovernanceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPGovernanceClient constructs a GovernanceClient that calls out to an
// HTTP governance service. A zero HTTPClient gets a 10s-timeout default.
func NewHTTPGovernanceClient(config HTTPGovernanceConfig) *HTTPGovernanceClient {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPGovernanceClient{baseURL: config.BaseURL, httpClient: httpClient}
}

type evaluateRequestWire struct {
	AgentID string `json:"agent_id"`
	Action  string `json:"action"`
	Kind    int    `json:"action_kind"`
}

type evaluateResponseWire struct {
	Decision  string   `json:"decision"`
	Reason    string   `json:"reason,omitempty"`
	Approvers []string `json:"approvers,omitempty"`
}

// Evaluate implements GovernanceClient.
func (c *HTTPGovernanceClient) Evaluate(ctx context.Context, request PolicyRequest) (PolicyDecision, error) {
	body, err := json.Marshal(evaluateRequestWire{
		AgentID: request.AgentID().String(),
		Action:  request.Action().Label(),
		Kind:    int(request.Action().Kind),
	})
	if err != nil {
		return PolicyDecision{}, fmt.Errorf("encode governance request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/evaluate", bytes.NewReader(body))
	if err != nil {
		return PolicyDecision{}, fmt.Errorf("build governance request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return PolicyDecision{}, fmt.Errorf("call governance service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return PolicyDecision{}, fmt.Errorf("governance service returned status %d", resp.StatusCode)
	}

	var wire evaluateResponseWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return PolicyDecision{}, fmt.Errorf("decode governance response: %w", err)
	}

	switch wire.Decision {
	case "allow", "":
		return Allow(), nil
	case "deny":
		return Deny(wire.Reason), nil
	case "escalate":
		return Escalate(wire.Reason, wire.Approvers), nil
	default:
		return PolicyDecision{}, fmt.Errorf("governance service returned unknown decision %q", wire.Decision)
	}
}
