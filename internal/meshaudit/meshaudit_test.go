package meshaudit

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yafatek/mxp-agents-runtime/internal/meshdispatch"
	"github.com/yafatek/mxp-agents-runtime/internal/meshpolicy"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
)

type recordingEmitter struct {
	mu       sync.Mutex
	decisions []meshpolicy.PolicyDecision
}

func (e *recordingEmitter) Emit(ctx context.Context, agentID meshprimitives.AgentID, request meshpolicy.PolicyRequest, decision meshpolicy.PolicyDecision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decisions = append(e.decisions, decision)
}

func TestCompositeObserverFansOutToAllEmitters(t *testing.T) {
	first := &recordingEmitter{}
	second := &recordingEmitter{}
	observer := NewCompositeObserver()
	observer.Register(first)
	observer.Register(second)

	request := meshpolicy.NewPolicyRequest(meshprimitives.RandomAgentID(), meshpolicy.InvokeToolAction("search"))
	observer.Observe(context.Background(), meshprimitives.RandomAgentID(), request, meshpolicy.Deny("blocked"))

	assert.Len(t, first.decisions, 1)
	assert.Len(t, second.decisions, 1)
}

type capturingSender struct {
	mu       sync.Mutex
	messages []meshdispatch.Message
}

func (s *capturingSender) Send(agentID meshprimitives.AgentID, message meshdispatch.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func TestMeshEventEmitterSkipsAllowDecisions(t *testing.T) {
	sender := &capturingSender{}
	emitter := NewMeshEventEmitter(sender)
	request := meshpolicy.NewPolicyRequest(meshprimitives.RandomAgentID(), meshpolicy.InvokeToolAction("search"))

	emitter.Emit(context.Background(), meshprimitives.RandomAgentID(), request, meshpolicy.Allow())
	assert.Empty(t, sender.messages)

	emitter.Emit(context.Background(), meshprimitives.RandomAgentID(), request, meshpolicy.Deny("blocked"))
	require.Len(t, sender.messages, 1)
	assert.Equal(t, meshdispatch.MessageEvent, sender.messages[0].Type)
}

func TestMeshEventEmitterPayloadMatchesSchema(t *testing.T) {
	sender := &capturingSender{}
	emitter := NewMeshEventEmitter(sender)
	agentID := meshprimitives.RandomAgentID()
	request := meshpolicy.NewPolicyRequest(agentID, meshpolicy.InvokeToolAction("search")).
		WithMetadata("input", "query").WithTag("cap:search")

	emitter.Emit(context.Background(), agentID, request, meshpolicy.Escalate("needs approval", []string{"ops-lead"}))
	require.Len(t, sender.messages, 1)

	var payload auditEventPayload
	require.NoError(t, json.Unmarshal(sender.messages[0].Payload, &payload))
	assert.Equal(t, agentID.String(), payload.AgentID)
	assert.Equal(t, request.Action().Label(), payload.Subject)
	assert.Equal(t, "escalate", payload.Decision)
	assert.Equal(t, "needs approval", payload.Reason)
	assert.Equal(t, []string{"ops-lead"}, payload.Approvers)
	assert.Equal(t, "query", payload.Metadata["input"])
}
