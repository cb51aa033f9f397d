package meshpolicy

import "context"

// GovernanceClient is implemented by remote governance backends.
type GovernanceClient interface {
	// Evaluate evaluates the supplied request and returns a decision from
	// the backend.
	Evaluate(ctx context.Context, request PolicyRequest) (PolicyDecision, error)
}

// RemotePolicyEngine is a PolicyEngine adapter that delegates to a remote
// governance client.
type RemotePolicyEngine struct {
	client GovernanceClient
}

// NewRemotePolicyEngine creates a remote policy engine using the provided
// client.
func NewRemotePolicyEngine(client GovernanceClient) *RemotePolicyEngine {
	return &RemotePolicyEngine{client: client}
}

// Evaluate implements PolicyEngine by delegating to the configured client.
func (e *RemotePolicyEngine) Evaluate(ctx context.Context, request PolicyRequest) (PolicyDecision, error) {
	return e.client.Evaluate(ctx, request)
}
