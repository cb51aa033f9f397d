package meshtools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
)

const (
	maxToolNameLen    = 96
	maxToolVersionLen = 32
)

// ToolMetadata describes a registered tool: its name, version, optional
// description, the capabilities it exercises, and an optional JSON schema
// constraining the shape of its input.
type ToolMetadata struct {
	name         string
	version      string
	description  string
	hasDesc      bool
	capabilities []meshprimitives.CapabilityID
	schema       *jsonschema.Schema
}

// NewToolMetadata validates and constructs tool metadata. Name and version
// must be non-blank.
func NewToolMetadata(name, version string, capabilities []meshprimitives.CapabilityID) (ToolMetadata, error) {
	if strings.TrimSpace(name) == "" {
		return ToolMetadata{}, &InvalidMetadataError{Reason: "name cannot be empty"}
	}
	if len(name) > maxToolNameLen {
		return ToolMetadata{}, &InvalidMetadataError{Reason: "name length must be <= 96"}
	}
	if strings.TrimSpace(version) == "" {
		return ToolMetadata{}, &InvalidMetadataError{Reason: "version cannot be empty"}
	}
	if len(version) > maxToolVersionLen {
		return ToolMetadata{}, &InvalidMetadataError{Reason: "version length must be <= 32"}
	}
	caps := make([]meshprimitives.CapabilityID, len(capabilities))
	copy(caps, capabilities)
	return ToolMetadata{name: name, version: version, capabilities: caps}, nil
}

// WithDescription returns a copy of the metadata carrying the given
// description.
func (m ToolMetadata) WithDescription(description string) ToolMetadata {
	m.description, m.hasDesc = description, true
	return m
}

// WithInputSchema returns a copy of the metadata that validates invocation
// input against the supplied JSON schema document before Invoke is called.
func (m ToolMetadata) WithInputSchema(schemaJSON []byte) (ToolMetadata, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(m.name+".schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return ToolMetadata{}, &InvalidMetadataError{Reason: fmt.Sprintf("invalid input schema: %v", err)}
	}
	schema, err := compiler.Compile(m.name + ".schema.json")
	if err != nil {
		return ToolMetadata{}, &InvalidMetadataError{Reason: fmt.Sprintf("invalid input schema: %v", err)}
	}
	m.schema = schema
	return m, nil
}

// Name returns the tool name.
func (m ToolMetadata) Name() string { return m.name }

// Version returns the tool version.
func (m ToolMetadata) Version() string { return m.version }

// Description returns the optional description and whether one was set.
func (m ToolMetadata) Description() (string, bool) { return m.description, m.hasDesc }

// Capabilities returns the capabilities this tool exercises.
func (m ToolMetadata) Capabilities() []meshprimitives.CapabilityID {
	out := make([]meshprimitives.CapabilityID, len(m.capabilities))
	copy(out, m.capabilities)
	return out
}

// ValidateInput validates raw JSON input against the tool's declared schema,
// if one was configured. A tool with no schema accepts any input.
func (m ToolMetadata) ValidateInput(input json.RawMessage) error {
	if m.schema == nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(input, &decoded); err != nil {
		return &SchemaValidationError{ToolName: m.name, Reason: err.Error()}
	}
	if err := m.schema.Validate(decoded); err != nil {
		return &SchemaValidationError{ToolName: m.name, Reason: err.Error()}
	}
	return nil
}

// Tool is implemented by anything invokable through a ToolRegistry.
type Tool interface {
	// Invoke executes the tool against the supplied JSON input and returns
	// raw JSON output.
	Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// ToolFunc adapts a plain function to the Tool interface.
type ToolFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// Invoke implements Tool.
func (f ToolFunc) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return f(ctx, input)
}

// ToolHandle pairs metadata with the executor backing it.
type ToolHandle struct {
	metadata ToolMetadata
	executor Tool
}

// Metadata returns the handle's metadata.
func (h ToolHandle) Metadata() ToolMetadata { return h.metadata }

// ToolBinding is a declarative registration unit: metadata plus the executor
// function, letting callers register a tool in one value instead of two
// separate arguments.
type ToolBinding struct {
	Metadata ToolMetadata
	Executor ToolFunc
}

// ToolRegistry holds the tools an agent may invoke, keyed by name.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolHandle
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]ToolHandle)}
}

// RegisterTool registers a tool under its metadata's name, failing if the
// name is already taken.
func (r *ToolRegistry) RegisterTool(metadata ToolMetadata, executor Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[metadata.name]; exists {
		return &DuplicateToolError{Name: metadata.name}
	}
	r.tools[metadata.name] = ToolHandle{metadata: metadata, executor: executor}
	return nil
}

// RegisterBinding registers a tool from a declarative binding.
func (r *ToolRegistry) RegisterBinding(binding ToolBinding) error {
	return r.RegisterTool(binding.Metadata, binding.Executor)
}

// Get returns the handle registered under name, if any.
func (r *ToolRegistry) Get(name string) (ToolHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.tools[name]
	return handle, ok
}

// Invoke looks up the named tool, validates input against its schema (if
// any), and invokes it.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	handle, ok := r.Get(name)
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	if err := handle.metadata.ValidateInput(input); err != nil {
		return nil, err
	}
	output, err := handle.executor.Invoke(ctx, input)
	if err != nil {
		return nil, &ExecutionError{Reason: err.Error()}
	}
	return output, nil
}

// List returns the metadata of every registered tool, in no particular
// order.
func (r *ToolRegistry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolMetadata, 0, len(r.tools))
	for _, handle := range r.tools {
		out = append(out, handle.metadata)
	}
	return out
}
