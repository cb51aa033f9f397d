package meshexec

import (
	"context"
	"encoding/json"

	"github.com/yafatek/mxp-agents-runtime/internal/meshdispatch"
	"github.com/yafatek/mxp-agents-runtime/pkg/meshproto"
)

// KernelMessageHandler wires CallExecutor into meshdispatch.AgentMessageHandler,
// handling Call messages and leaving every other message type to the
// embedded UnimplementedHandler defaults.
type KernelMessageHandler struct {
	meshdispatch.UnimplementedHandler
	executor *CallExecutor
	sink     OutcomeSink
}

// NewKernelMessageHandler constructs a handler bound to the given executor
// and outcome sink. A nil sink disables outcome recording.
func NewKernelMessageHandler(executor *CallExecutor, sink OutcomeSink) *KernelMessageHandler {
	return &KernelMessageHandler{executor: executor, sink: sink}
}

// HandleCall decodes the message payload, runs the call pipeline, and
// records the outcome.
func (h *KernelMessageHandler) HandleCall(ctx context.Context, hc meshdispatch.HandlerContext) error {
	if len(hc.Message.Payload) == 0 {
		return &DecodeError{Reason: "call payload missing"}
	}

	var payload meshproto.CallPayload
	if err := json.Unmarshal(hc.Message.Payload, &payload); err != nil {
		return &DecodeError{Reason: err.Error()}
	}

	outcome, err := h.executor.Execute(ctx, hc.AgentID, hc.Message.Payload, payload)
	if err != nil {
		return err
	}

	if h.sink != nil {
		h.sink.Record(ctx, hc.AgentID, outcome)
	}
	return nil
}
