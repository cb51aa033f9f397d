package meshexec

import (
	"errors"
	"time"

	"github.com/yafatek/mxp-agents-runtime/internal/meshpolicy"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
)

func (e *CallExecutor) observePipeline(agentID meshprimitives.AgentID, elapsed time.Duration, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.CallPipelineDuration.WithLabelValues(agentID.String(), pipelineOutcome(err)).Observe(elapsed.Seconds())
}

func (e *CallExecutor) observeStage(stage string, elapsed time.Duration, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.CallPipelineStageDuration.WithLabelValues(stage, pipelineOutcome(err)).Observe(elapsed.Seconds())
}

func (e *CallExecutor) observePolicyDecision(decision meshpolicy.PolicyDecision, action meshpolicy.PolicyAction) {
	if e.metrics == nil {
		return
	}
	e.metrics.PolicyDecisionsTotal.WithLabelValues(decisionKindLabel(decision), actionKindLabel(action)).Inc()
}

func pipelineOutcome(err error) string {
	if err == nil {
		return "success"
	}
	var denied *PolicyDeniedError
	var escalated *PolicyEscalatedError
	switch {
	case errors.As(err, &denied):
		return "denied"
	case errors.As(err, &escalated):
		return "escalated"
	default:
		return "error"
	}
}

func decisionKindLabel(decision meshpolicy.PolicyDecision) string {
	switch {
	case decision.IsAllow():
		return "allow"
	case decision.IsDeny():
		return "deny"
	case decision.IsEscalate():
		return "escalate"
	default:
		return "unknown"
	}
}

func actionKindLabel(action meshpolicy.PolicyAction) string {
	switch action.Kind {
	case meshpolicy.ActionInvokeTool:
		return "tool"
	case meshpolicy.ActionModelInference:
		return "model"
	case meshpolicy.ActionEmitEvent:
		return "event"
	default:
		return "unknown"
	}
}
