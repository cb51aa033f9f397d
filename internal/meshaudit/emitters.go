package meshaudit

import (
	"context"
	"encoding/json"

	"github.com/yafatek/mxp-agents-runtime/internal/meshdispatch"
	"github.com/yafatek/mxp-agents-runtime/internal/meshpolicy"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
	"github.com/yafatek/mxp-agents-runtime/internal/obs"
)

// TracingEmitter logs Deny and Escalate decisions at warn level; Allow
// decisions are logged at debug level since they're the overwhelming
// common case and don't warrant attention.
type TracingEmitter struct {
	logger *obs.Logger
}

// NewTracingEmitter constructs a tracing-only audit emitter.
func NewTracingEmitter(logger *obs.Logger) *TracingEmitter {
	return &TracingEmitter{logger: logger}
}

// Emit implements Emitter.
func (e *TracingEmitter) Emit(ctx context.Context, agentID meshprimitives.AgentID, request meshpolicy.PolicyRequest, decision meshpolicy.PolicyDecision) {
	if e.logger == nil {
		return
	}
	reason, _ := decision.Reason()
	fields := []any{"agent_id", agentID.String(), "action", request.Action().Label(), "decision", decision.Kind().String(), "reason", reason}

	switch {
	case decision.IsDeny():
		e.logger.Warn(ctx, "policy denied action", fields...)
	case decision.IsEscalate():
		e.logger.Warn(ctx, "policy escalated action", append(fields, "approvers", decision.RequiredApprovals())...)
	default:
		e.logger.Debug(ctx, "policy allowed action", fields...)
	}
}

// MessageSender is implemented by any transport capable of sending a mesh
// message for an agent (e.g. grpcmesh.Client).
type MessageSender interface {
	Send(agentID meshprimitives.AgentID, message meshdispatch.Message) error
}

// MeshEventEmitter publishes Deny/Escalate decisions onto the mesh as
// Event messages, letting other agents or an external audit subscriber
// observe policy enforcement without polling logs.
type MeshEventEmitter struct {
	sender MessageSender
}

// NewMeshEventEmitter constructs an emitter that publishes over sender.
func NewMeshEventEmitter(sender MessageSender) *MeshEventEmitter {
	return &MeshEventEmitter{sender: sender}
}

type auditEventPayload struct {
	AgentID   string         `json:"agent_id"`
	Subject   string         `json:"subject"`
	Decision  string         `json:"decision"`
	Reason    string         `json:"reason,omitempty"`
	Approvers []string       `json:"approvers"`
	Metadata  map[string]any `json:"metadata"`
}

// Emit implements Emitter. Allow decisions are not published; only
// decisions that changed the outcome of a call are interesting to an
// audit subscriber.
func (e *MeshEventEmitter) Emit(ctx context.Context, agentID meshprimitives.AgentID, request meshpolicy.PolicyRequest, decision meshpolicy.PolicyDecision) {
	if decision.IsAllow() {
		return
	}
	reason, _ := decision.Reason()
	payload, err := json.Marshal(auditEventPayload{
		AgentID:   agentID.String(),
		Subject:   request.Action().Label(),
		Decision:  decision.Kind().String(),
		Reason:    reason,
		Approvers: decision.RequiredApprovals(),
		Metadata:  request.Context().Metadata(),
	})
	if err != nil {
		return
	}
	_ = e.sender.Send(agentID, meshdispatch.NewMessage(meshdispatch.MessageEvent, payload))
}
