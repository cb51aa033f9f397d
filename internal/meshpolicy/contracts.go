package meshpolicy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yafatek/mxp-agents-runtime/internal/meshmemory"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
)

// ActionKind discriminates the shape of a PolicyAction.
type ActionKind int

const (
	// ActionInvokeTool requests invocation of a registered tool.
	ActionInvokeTool ActionKind = iota
	// ActionModelInference requests an LLM inference via a model adapter.
	ActionModelInference
	// ActionEmitEvent requests emission of a mesh event.
	ActionEmitEvent
)

// PolicyAction describes the action being evaluated by the policy engine.
type PolicyAction struct {
	Kind      ActionKind
	ToolName  string
	Provider  string
	Model     string
	EventType string
}

// InvokeToolAction builds a PolicyAction for a tool invocation.
func InvokeToolAction(name string) PolicyAction {
	return PolicyAction{Kind: ActionInvokeTool, ToolName: name}
}

// ModelInferenceAction builds a PolicyAction for a model inference call.
func ModelInferenceAction(provider, model string) PolicyAction {
	return PolicyAction{Kind: ActionModelInference, Provider: provider, Model: model}
}

// EmitEventAction builds a PolicyAction for an event emission.
func EmitEventAction(eventType string) PolicyAction {
	return PolicyAction{Kind: ActionEmitEvent, EventType: eventType}
}

// Label returns a concise, human-readable description of the action.
func (a PolicyAction) Label() string {
	switch a.Kind {
	case ActionInvokeTool:
		return fmt.Sprintf("tool `%s`", a.ToolName)
	case ActionModelInference:
		return fmt.Sprintf("model `%s/%s`", a.Provider, a.Model)
	case ActionEmitEvent:
		return fmt.Sprintf("event `%s`", a.EventType)
	default:
		return "unknown action"
	}
}

// PolicyContext carries metadata and tags attached to a policy evaluation.
type PolicyContext struct {
	metadata map[string]any
	tags     map[string]struct{}
}

// NewPolicyContext returns an empty context.
func NewPolicyContext() PolicyContext {
	return PolicyContext{metadata: make(map[string]any), tags: make(map[string]struct{})}
}

// InsertMetadata sets a metadata key, mutating the context in place.
func (c *PolicyContext) InsertMetadata(key string, value any) {
	if c.metadata == nil {
		c.metadata = make(map[string]any)
	}
	c.metadata[key] = value
}

// WithMetadata returns a copy of the context with key set.
func (c PolicyContext) WithMetadata(key string, value any) PolicyContext {
	c = c.clone()
	c.InsertMetadata(key, value)
	return c
}

// AddTag adds a tag, silently ignoring empty or whitespace-only values. This
// mirrors the context mutator's lenient validation: builders/constructors
// elsewhere in this package reject blank input outright, but tag mutation
// here is forgiving.
func (c *PolicyContext) AddTag(tag string) {
	if strings.TrimSpace(tag) == "" {
		return
	}
	if c.tags == nil {
		c.tags = make(map[string]struct{})
	}
	c.tags[tag] = struct{}{}
}

// ExtendTags adds multiple tags via AddTag.
func (c *PolicyContext) ExtendTags(tags []string) {
	for _, tag := range tags {
		c.AddTag(tag)
	}
}

// Metadata returns a copy of the context's metadata map.
func (c PolicyContext) Metadata() map[string]any {
	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// Tags returns the context's tags, sorted for deterministic iteration.
func (c PolicyContext) Tags() []string {
	out := make([]string, 0, len(c.tags))
	for t := range c.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HasTag reports whether the context carries the given tag.
func (c PolicyContext) HasTag(tag string) bool {
	_, ok := c.tags[tag]
	return ok
}

func (c PolicyContext) clone() PolicyContext {
	out := NewPolicyContext()
	for k, v := range c.metadata {
		out.metadata[k] = v
	}
	for t := range c.tags {
		out.tags[t] = struct{}{}
	}
	return out
}

// PolicyRequest is the full request sent to a policy engine for evaluation.
type PolicyRequest struct {
	agentID meshprimitives.AgentID
	action  PolicyAction
	context PolicyContext
}

// NewPolicyRequest creates a policy request for the specified agent/action.
func NewPolicyRequest(agentID meshprimitives.AgentID, action PolicyAction) PolicyRequest {
	return PolicyRequest{agentID: agentID, action: action, context: NewPolicyContext()}
}

// AgentID returns the agent identifier associated with the request.
func (r PolicyRequest) AgentID() meshprimitives.AgentID { return r.agentID }

// Action returns the targeted policy action.
func (r PolicyRequest) Action() PolicyAction { return r.action }

// Context returns the context attached to the request.
func (r PolicyRequest) Context() PolicyContext { return r.context }

// ContextPtr returns a pointer to the request's context for in-place
// mutation (InsertMetadata/AddTag/ExtendTags).
func (r *PolicyRequest) ContextPtr() *PolicyContext { return &r.context }

// WithMetadata returns a copy of the request with metadata added to its
// context.
func (r PolicyRequest) WithMetadata(key string, value any) PolicyRequest {
	r.context = r.context.WithMetadata(key, value)
	return r
}

// WithTag returns a copy of the request with tag added to its context.
func (r PolicyRequest) WithTag(tag string) PolicyRequest {
	r.context = r.context.clone()
	r.context.AddTag(tag)
	return r
}

// WithTags returns a copy of the request with tags added to its context.
func (r PolicyRequest) WithTags(tags []string) PolicyRequest {
	r.context = r.context.clone()
	r.context.ExtendTags(tags)
	return r
}

// PolicyRequestFromMemoryRecord constructs a policy request describing a
// memory record emission. The record's tags transplant into the policy
// context verbatim, coupling memory tagging to policy evaluation by design:
// a tag added for retrieval purposes also becomes a tag a policy rule can
// match on.
func PolicyRequestFromMemoryRecord(agentID meshprimitives.AgentID, record meshmemory.MemoryRecord) PolicyRequest {
	request := NewPolicyRequest(agentID, EmitEventAction("memory_record"))
	request.context.InsertMetadata("channel", record.Channel().String())
	request.context.InsertMetadata("tags", record.Tags())
	request.context.InsertMetadata("id", record.ID().String())
	request.context.ExtendTags(record.Tags())
	return request
}
