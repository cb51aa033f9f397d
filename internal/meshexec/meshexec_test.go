package meshexec

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yafatek/mxp-agents-runtime/internal/meshadapter"
	"github.com/yafatek/mxp-agents-runtime/internal/meshdispatch"
	"github.com/yafatek/mxp-agents-runtime/internal/meshmemory"
	"github.com/yafatek/mxp-agents-runtime/internal/meshpolicy"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
	"github.com/yafatek/mxp-agents-runtime/internal/meshtools"
	"github.com/yafatek/mxp-agents-runtime/pkg/meshproto"
)

func handlerContextFor(t *testing.T, payload []byte) meshdispatch.HandlerContext {
	t.Helper()
	message := meshdispatch.NewMessage(meshdispatch.MessageCall, payload)
	return meshdispatch.NewHandlerContext(meshprimitives.RandomAgentID(), message)
}

type fakeAdapter struct {
	metadata meshadapter.AdapterMetadata
	response string
}

func (a *fakeAdapter) Metadata() meshadapter.AdapterMetadata { return a.metadata }

func (a *fakeAdapter) Infer(ctx context.Context, request meshadapter.InferenceRequest) (<-chan meshadapter.InferenceChunk, <-chan error) {
	chunks := make(chan meshadapter.InferenceChunk, 2)
	errs := make(chan error, 1)
	chunks <- meshadapter.InferenceChunk{Delta: a.response}
	chunks <- meshadapter.InferenceChunk{Done: true}
	close(chunks)
	close(errs)
	return chunks, errs
}

func newTestBus(t *testing.T) *meshmemory.MemoryBus {
	t.Helper()
	journal, err := meshmemory.OpenFileJournal(filepath.Join(t.TempDir(), "journal.jsonl"))
	require.NoError(t, err)
	bus, err := meshmemory.NewMemoryBusBuilder(meshmemory.DefaultVolatileConfig()).WithJournal(journal).Build()
	require.NoError(t, err)
	return bus
}

func echoToolRegistry(t *testing.T) *meshtools.ToolRegistry {
	t.Helper()
	registry := meshtools.NewToolRegistry()
	metadata, err := meshtools.NewToolMetadata("echo", "1.0.0", nil)
	require.NoError(t, err)
	require.NoError(t, registry.RegisterTool(metadata, meshtools.ToolFunc(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return input, nil
	})))
	return registry
}

func TestExecuteRunsToolThenInference(t *testing.T) {
	adapter := &fakeAdapter{metadata: meshadapter.NewAdapterMetadata("fake", "fake-model"), response: "hello"}
	executor := NewCallExecutor(adapter, echoToolRegistry(t), nil, nil, newTestBus(t), nil, nil, nil)

	payload := meshproto.CallPayload{
		Messages: []meshproto.PromptMessageWire{{Role: "user", Content: "hi"}},
		Tools:    []meshproto.ToolInvocationWire{{Name: "echo", Input: json.RawMessage(`{"x":1}`)}},
	}
	rawPayload, err := json.Marshal(payload)
	require.NoError(t, err)

	outcome, err := executor.Execute(context.Background(), meshprimitives.RandomAgentID(), rawPayload, payload)
	require.NoError(t, err)
	assert.Equal(t, "hello", outcome.Response)
	require.Len(t, outcome.ToolResults, 1)
	assert.Equal(t, "echo", outcome.ToolResults[0].Name)
}

func TestExecuteWritesInputToolOutputMemoryRecords(t *testing.T) {
	adapter := &fakeAdapter{metadata: meshadapter.NewAdapterMetadata("fake", "fake-model"), response: "hello"}
	bus := newTestBus(t)
	executor := NewCallExecutor(adapter, echoToolRegistry(t), nil, nil, bus, nil, nil, nil)

	payload := meshproto.CallPayload{
		Messages: []meshproto.PromptMessageWire{{Role: "user", Content: "hi"}},
		Tools:    []meshproto.ToolInvocationWire{{Name: "echo", Input: json.RawMessage(`{"x":1}`)}},
	}
	rawPayload, err := json.Marshal(payload)
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), meshprimitives.RandomAgentID(), rawPayload, payload)
	require.NoError(t, err)

	recent := bus.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, meshmemory.ChannelInput, recent[0].Channel())
	assert.Equal(t, meshmemory.ChannelTool, recent[1].Channel())
	assert.Equal(t, meshmemory.ChannelOutput, recent[2].Channel())
}

func TestExecuteMemoryPolicyDenySkipsWrite(t *testing.T) {
	adapter := &fakeAdapter{metadata: meshadapter.NewAdapterMetadata("fake", "fake-model"), response: "hello"}
	bus := newTestBus(t)
	engine := meshpolicy.NewRuleBasedEngine(meshpolicy.Deny("memory writes disabled"), nil)
	executor := NewCallExecutor(adapter, echoToolRegistry(t), engine, nil, bus, nil, nil, nil)

	payload := meshproto.CallPayload{Messages: []meshproto.PromptMessageWire{{Role: "user", Content: "hi"}}}
	rawPayload, err := json.Marshal(payload)
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), meshprimitives.RandomAgentID(), rawPayload, payload)
	require.Error(t, err)
	var denied *PolicyDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Empty(t, bus.Recent(10))
}

func TestExecuteDeniedByPolicy(t *testing.T) {
	adapter := &fakeAdapter{metadata: meshadapter.NewAdapterMetadata("fake", "fake-model"), response: "hello"}
	engine := meshpolicy.NewRuleBasedEngine(meshpolicy.Deny("no inference allowed"), nil)
	executor := NewCallExecutor(adapter, echoToolRegistry(t), engine, nil, newTestBus(t), nil, nil, nil)

	payload := meshproto.CallPayload{Messages: []meshproto.PromptMessageWire{{Role: "user", Content: "hi"}}}
	rawPayload, err := json.Marshal(payload)
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), meshprimitives.RandomAgentID(), rawPayload, payload)
	require.Error(t, err)
	var denied *PolicyDeniedError
	assert.ErrorAs(t, err, &denied)
}

func TestExecuteSurfacesToolFailure(t *testing.T) {
	adapter := &fakeAdapter{metadata: meshadapter.NewAdapterMetadata("fake", "fake-model")}
	registry := meshtools.NewToolRegistry()
	executor := NewCallExecutor(adapter, registry, nil, nil, newTestBus(t), nil, nil, nil)

	payload := meshproto.CallPayload{
		Messages: []meshproto.PromptMessageWire{{Role: "user", Content: "hi"}},
		Tools:    []meshproto.ToolInvocationWire{{Name: "missing"}},
	}
	rawPayload, err := json.Marshal(payload)
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), meshprimitives.RandomAgentID(), rawPayload, payload)
	require.Error(t, err)
	var toolErr *ToolInvocationError
	assert.ErrorAs(t, err, &toolErr)
}

func TestHandlerDecodesAndRecordsOutcome(t *testing.T) {
	adapter := &fakeAdapter{metadata: meshadapter.NewAdapterMetadata("fake", "fake-model"), response: "ok"}
	executor := NewCallExecutor(adapter, echoToolRegistry(t), nil, nil, newTestBus(t), nil, nil, nil)
	sink := NewCollectingSink()
	handler := NewKernelMessageHandler(executor, sink)

	payloadJSON, err := json.Marshal(meshproto.CallPayload{Messages: []meshproto.PromptMessageWire{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)

	hc := handlerContextFor(t, payloadJSON)
	require.NoError(t, handler.HandleCall(context.Background(), hc))

	outcomes := sink.Drain()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "ok", outcomes[0].Response)
}
