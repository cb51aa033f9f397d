package meshpolicy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
)

func requestForTool(name string) PolicyRequest {
	return NewPolicyRequest(meshprimitives.RandomAgentID(), InvokeToolAction(name))
}

func TestPolicyContextManagesTags(t *testing.T) {
	ctx := NewPolicyContext()
	ctx.AddTag("alpha")
	ctx.AddTag("alpha")
	ctx.ExtendTags([]string{"beta", " ", "gamma"})

	tags := ctx.Tags()
	assert.Len(t, tags, 3)
	assert.True(t, ctx.HasTag("alpha"))
	assert.True(t, ctx.HasTag("beta"))
	assert.True(t, ctx.HasTag("gamma"))
}

func TestPolicyRequestBuilderAddsMetadata(t *testing.T) {
	request := NewPolicyRequest(meshprimitives.RandomAgentID(), InvokeToolAction("echo")).
		WithMetadata("foo", 1).
		WithTag("cap:read")

	assert.Len(t, request.Context().Metadata(), 1)
	assert.True(t, request.Context().HasTag("cap:read"))
}

func TestRuleMatchingPrefersFirstMatch(t *testing.T) {
	engine := NewRuleBasedEngine(Allow(), nil)

	denyRule, err := NewPolicyRule("deny-echo", ForTool("echo"), Deny("tool disabled"))
	require.NoError(t, err)
	engine.AddRule(denyRule)

	escalateRule, err := NewPolicyRule("escalate-all-tools", ForAnyTool(), Escalate("needs approval", []string{"secops"}))
	require.NoError(t, err)
	engine.AddRule(escalateRule)

	ctx := context.Background()

	decision, err := engine.Evaluate(ctx, requestForTool("echo"))
	require.NoError(t, err)
	assert.True(t, decision.IsDeny())
	reason, ok := decision.Reason()
	assert.True(t, ok)
	assert.Equal(t, "tool disabled", reason)

	decision, err = engine.Evaluate(ctx, requestForTool("other"))
	require.NoError(t, err)
	assert.True(t, decision.IsEscalate())
}

func TestDefaultDecisionAppliesWhenNoRulesMatch(t *testing.T) {
	engine := NewRuleBasedEngine(Deny("no rules"), nil)
	decision, err := engine.Evaluate(context.Background(), requestForTool("unknown"))
	require.NoError(t, err)
	assert.True(t, decision.IsDeny())
}

func TestTagMatchingRequiresSubset(t *testing.T) {
	engine := NewRuleBasedEngine(Deny("no matching rule"), nil)
	matcher := ForAnyTool().WithRequiredTags([]string{"cap:write"})
	rule, err := NewPolicyRule("cap-required", matcher, Allow())
	require.NoError(t, err)
	engine.AddRule(rule)

	request := requestForTool("writer").WithTags([]string{"cap:write", "tenant:a"})
	decision, err := engine.Evaluate(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, decision.IsAllow())
}

type staticClient struct{}

func (staticClient) Evaluate(ctx context.Context, request PolicyRequest) (PolicyDecision, error) {
	return Allow(), nil
}

func TestRemoteEngineDelegatesToClient(t *testing.T) {
	engine := NewRemotePolicyEngine(staticClient{})
	request := NewPolicyRequest(meshprimitives.RandomAgentID(), InvokeToolAction("echo"))

	decision, err := engine.Evaluate(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, decision.IsAllow())
}
