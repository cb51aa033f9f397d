package meshexec

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/yafatek/mxp-agents-runtime/internal/meshadapter"
	"github.com/yafatek/mxp-agents-runtime/internal/meshmemory"
	"github.com/yafatek/mxp-agents-runtime/internal/meshpolicy"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
	"github.com/yafatek/mxp-agents-runtime/internal/meshtools"
	"github.com/yafatek/mxp-agents-runtime/internal/obs"
	"github.com/yafatek/mxp-agents-runtime/pkg/meshproto"
)

// PolicyObserver receives every policy decision the call pipeline makes,
// regardless of outcome. meshaudit.CompositeObserver satisfies this.
type PolicyObserver interface {
	Observe(ctx context.Context, agentID meshprimitives.AgentID, request meshpolicy.PolicyRequest, decision meshpolicy.PolicyDecision)
}

// CallExecutor runs the Call message pipeline: policy checks, tool
// invocations, model inference, and memory-bus recording.
type CallExecutor struct {
	adapter  meshadapter.ModelAdapter
	tools    *meshtools.ToolRegistry
	policy   meshpolicy.PolicyEngine
	observer PolicyObserver
	memory   *meshmemory.MemoryBus
	metrics  *obs.Metrics
	tracer   *obs.Tracer
	logger   *obs.Logger
}

// NewCallExecutor constructs a call executor. policy, observer, memory,
// metrics, tracer, and logger may all be nil; a nil policy engine allows
// every action, a nil observer skips audit notification, a nil memory bus
// skips recording, and nil observability collaborators simply disable the
// corresponding instrumentation.
func NewCallExecutor(adapter meshadapter.ModelAdapter, tools *meshtools.ToolRegistry, policy meshpolicy.PolicyEngine, observer PolicyObserver, memory *meshmemory.MemoryBus, metrics *obs.Metrics, tracer *obs.Tracer, logger *obs.Logger) *CallExecutor {
	return &CallExecutor{adapter: adapter, tools: tools, policy: policy, observer: observer, memory: memory, metrics: metrics, tracer: tracer, logger: logger}
}

// Execute runs the pipeline for a single decoded call payload. rawPayload is
// the undecoded JSON the call message carried; it becomes the payload of the
// inbound memory record so the record reflects exactly what was received.
func (e *CallExecutor) Execute(ctx context.Context, agentID meshprimitives.AgentID, rawPayload []byte, payload meshproto.CallPayload) (outcome meshproto.CallOutcome, err error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "meshexec.Execute")
		defer func() { obs.EndWithError(span, err) }()
	}

	start := time.Now()
	outcome, err = e.execute(ctx, agentID, rawPayload, payload)
	e.observePipeline(agentID, time.Since(start), err)
	return outcome, err
}

func (e *CallExecutor) execute(ctx context.Context, agentID meshprimitives.AgentID, rawPayload []byte, payload meshproto.CallPayload) (meshproto.CallOutcome, error) {
	messages, err := decodeMessages(payload.Messages)
	if err != nil {
		return meshproto.CallOutcome{}, err
	}

	if err := e.recordMemory(ctx, agentID, meshmemory.ChannelInput, rawPayload,
		[]string{"mxp.call"},
		map[string]any{"direction": "inbound", "message_type": "call", "agent_id": agentID.String()},
	); err != nil {
		return meshproto.CallOutcome{}, err
	}

	var toolResults []meshproto.ToolInvocationResult
	toolNames := make([]string, 0, len(payload.Tools))

	for _, invocation := range payload.Tools {
		output, err := e.invokeTool(ctx, agentID, invocation)
		if err != nil {
			return meshproto.CallOutcome{}, err
		}
		messages = append(messages, meshadapter.NewPromptMessage(meshadapter.RoleTool, string(output)))
		toolNames = append(toolNames, invocation.Name)
		toolResults = append(toolResults, meshproto.ToolInvocationResult{Name: invocation.Name, Output: output})
	}

	inferenceRequest := meshpolicy.NewPolicyRequest(agentID, meshpolicy.ModelInferenceAction(e.adapter.Metadata().Provider(), e.adapter.Metadata().Model())).
		WithMetadata("message_count", len(messages))
	for _, name := range toolNames {
		inferenceRequest = inferenceRequest.WithTag("tool:" + name)
	}
	if err := e.checkPolicy(ctx, inferenceRequest); err != nil {
		return meshproto.CallOutcome{}, err
	}

	response, err := e.infer(ctx, messages, payload, toolNames)
	if err != nil {
		return meshproto.CallOutcome{}, err
	}

	for _, result := range toolResults {
		if err := e.recordMemory(ctx, agentID, meshmemory.ChannelTool, result.Output,
			[]string{"mxp.call", "tool"},
			map[string]any{"direction": "tool", "tool_name": result.Name},
		); err != nil {
			return meshproto.CallOutcome{}, err
		}
	}

	if err := e.recordMemory(ctx, agentID, meshmemory.ChannelOutput, []byte(response),
		[]string{"mxp.call"},
		map[string]any{"direction": "outbound", "message_type": "call"},
	); err != nil {
		return meshproto.CallOutcome{}, err
	}

	return meshproto.CallOutcome{Response: response, ToolResults: toolResults}, nil
}

func decodeMessages(wire []meshproto.PromptMessageWire) ([]meshadapter.PromptMessage, error) {
	messages := make([]meshadapter.PromptMessage, 0, len(wire))
	for _, m := range wire {
		role, err := parseRole(m.Role)
		if err != nil {
			return nil, err
		}
		messages = append(messages, meshadapter.NewPromptMessage(role, m.Content))
	}
	return messages, nil
}

func parseRole(role string) (meshadapter.MessageRole, error) {
	switch role {
	case "system":
		return meshadapter.RoleSystem, nil
	case "user":
		return meshadapter.RoleUser, nil
	case "assistant":
		return meshadapter.RoleAssistant, nil
	case "tool":
		return meshadapter.RoleTool, nil
	default:
		return 0, &DecodeError{Reason: "unknown message role `" + role + "`"}
	}
}

func (e *CallExecutor) invokeTool(ctx context.Context, agentID meshprimitives.AgentID, invocation meshproto.ToolInvocationWire) (json.RawMessage, error) {
	stageStart := time.Now()

	request := meshpolicy.NewPolicyRequest(agentID, meshpolicy.InvokeToolAction(invocation.Name)).
		WithMetadata("input", invocation.Input)
	if handle, ok := e.tools.Get(invocation.Name); ok {
		metadata := handle.Metadata()
		request = request.WithMetadata("tool_version", metadata.Version())
		if description, has := metadata.Description(); has {
			request = request.WithMetadata("tool_description", description)
		}
		if capabilities := metadata.Capabilities(); len(capabilities) > 0 {
			ids := make([]string, len(capabilities))
			for i, capability := range capabilities {
				ids[i] = capability.String()
			}
			request = request.WithMetadata("capabilities", ids)
			for _, id := range ids {
				request = request.WithTag("cap:" + id)
			}
		}
	}

	if err := e.checkPolicy(ctx, request); err != nil {
		e.observeStage("tool", time.Since(stageStart), err)
		return nil, err
	}

	output, err := e.tools.Invoke(ctx, invocation.Name, invocation.Input)
	e.observeStage("tool", time.Since(stageStart), err)
	if err != nil {
		return nil, &ToolInvocationError{Tool: invocation.Name, Reason: err.Error()}
	}

	return output, nil
}

// checkPolicy evaluates request and enforces the resulting decision, notifying
// the configured observer regardless of outcome. A nil policy engine allows
// everything.
func (e *CallExecutor) checkPolicy(ctx context.Context, request meshpolicy.PolicyRequest) error {
	if e.policy == nil {
		return nil
	}

	decision, err := e.policy.Evaluate(ctx, request)
	if err != nil {
		return err
	}

	e.observePolicyDecision(decision, request.Action())
	if e.observer != nil {
		e.observer.Observe(ctx, request.AgentID(), request, decision)
	}

	if decision.IsDeny() {
		reason, _ := decision.Reason()
		return &PolicyDeniedError{Action: request.Action().Label(), Reason: reason}
	}
	if decision.IsEscalate() {
		reason, _ := decision.Reason()
		return &PolicyEscalatedError{Action: request.Action().Label(), Reason: reason, Approvers: decision.RequiredApprovals()}
	}
	return nil
}

func (e *CallExecutor) infer(ctx context.Context, messages []meshadapter.PromptMessage, payload meshproto.CallPayload, toolNames []string) (string, error) {
	stageStart := time.Now()

	request, err := meshadapter.NewInferenceRequest(messages)
	if err != nil {
		e.observeStage("inference", time.Since(stageStart), err)
		return "", &DecodeError{Reason: err.Error()}
	}
	if payload.MaxOutputTokens != nil {
		request = request.WithMaxOutputTokens(*payload.MaxOutputTokens)
	}
	if payload.Temperature != nil {
		request = request.WithTemperature(*payload.Temperature)
	}
	if len(toolNames) > 0 {
		request = request.WithTools(toolNames)
	}

	chunks, errs := e.adapter.Infer(ctx, request)

	var response []byte
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				break
			}
			response = append(response, chunk.Delta...)
			if chunk.Done {
				chunks = nil
			}
		case err, ok := <-errs:
			if ok && err != nil {
				e.observeStage("inference", time.Since(stageStart), err)
				return "", &AdapterInvocationError{Provider: e.adapter.Metadata().Provider(), Model: e.adapter.Metadata().Model(), Reason: err.Error()}
			}
			errs = nil
		}
		if chunks == nil && errs == nil {
			break
		}
	}

	e.observeStage("inference", time.Since(stageStart), nil)
	return string(response), nil
}

// recordMemory builds a memory record from channel/payload/tags/metadata,
// runs it through the memory-policy check, and writes it if allowed. Deny
// and Escalate decisions propagate as errors and the record is not written.
// A nil memory bus is a no-op. Memory-bus write failures (including journal
// append errors) are logged and returned, halting the pipeline.
func (e *CallExecutor) recordMemory(ctx context.Context, agentID meshprimitives.AgentID, channel meshmemory.MemoryChannel, payload []byte, tags []string, metadata map[string]any) error {
	if e.memory == nil {
		return nil
	}

	builder, err := meshmemory.NewMemoryRecordBuilder(channel, payload).Tags(tags)
	if err != nil {
		return err
	}
	record, err := builder.MergeMetadata(metadata).Build()
	if err != nil {
		return err
	}

	if err := e.checkPolicy(ctx, meshpolicy.PolicyRequestFromMemoryRecord(agentID, record)); err != nil {
		return err
	}

	if err := e.memory.Record(ctx, record); err != nil {
		if e.logger != nil {
			e.logger.Warn(ctx, "failed to record call memory", "agent_id", agentID.String(), "channel", channel.String(), "error", err)
		}
		return err
	}
	return nil
}
