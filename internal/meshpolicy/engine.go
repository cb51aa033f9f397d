package meshpolicy

import (
	"context"
	"strings"
	"sync"

	"github.com/yafatek/mxp-agents-runtime/internal/obs"
)

// PolicyEngine is implemented by policy evaluation backends.
type PolicyEngine interface {
	// Evaluate evaluates the supplied policy request.
	Evaluate(ctx context.Context, request PolicyRequest) (PolicyDecision, error)
}

// ActionMatcherKind discriminates the shape an ActionMatcher targets.
type ActionMatcherKind int

const (
	// MatchAny matches every action.
	MatchAny ActionMatcherKind = iota
	// MatchTool matches tool invocations, optionally narrowed by name.
	MatchTool
	// MatchModel matches model inference actions.
	MatchModel
	// MatchEvent matches event emissions.
	MatchEvent
)

// ActionMatcher matches requests based on the action shape.
type ActionMatcher struct {
	kind         ActionMatcherKind
	toolName     string
	hasToolName  bool
	provider     string
	hasProvider  bool
	model        string
	hasModel     bool
	eventType    string
	hasEventType bool
}

func (m ActionMatcher) matches(action PolicyAction) bool {
	switch m.kind {
	case MatchAny:
		return true
	case MatchTool:
		return action.Kind == ActionInvokeTool && (!m.hasToolName || m.toolName == action.ToolName)
	case MatchModel:
		if action.Kind != ActionModelInference {
			return false
		}
		return (!m.hasProvider || m.provider == action.Provider) && (!m.hasModel || m.model == action.Model)
	case MatchEvent:
		return action.Kind == ActionEmitEvent && (!m.hasEventType || m.eventType == action.EventType)
	default:
		return false
	}
}

// RuleMatcher matches a policy request based on action type and required
// tags.
type RuleMatcher struct {
	action       ActionMatcher
	requiredTags map[string]struct{}
}

// AnyMatcher creates a matcher that accepts all actions.
func AnyMatcher() RuleMatcher {
	return RuleMatcher{action: ActionMatcher{kind: MatchAny}, requiredTags: make(map[string]struct{})}
}

// ForTool creates a matcher targeting a specific tool name.
func ForTool(name string) RuleMatcher {
	return RuleMatcher{
		action:       ActionMatcher{kind: MatchTool, toolName: name, hasToolName: true},
		requiredTags: make(map[string]struct{}),
	}
}

// ForAnyTool creates a matcher targeting any tool invocation.
func ForAnyTool() RuleMatcher {
	return RuleMatcher{action: ActionMatcher{kind: MatchTool}, requiredTags: make(map[string]struct{})}
}

// ForModel creates a matcher for model inference of a particular
// provider/model pair.
func ForModel(provider, model string) RuleMatcher {
	return RuleMatcher{
		action: ActionMatcher{
			kind: MatchModel, provider: provider, hasProvider: true, model: model, hasModel: true,
		},
		requiredTags: make(map[string]struct{}),
	}
}

// ForAnyModel creates a matcher for all model inference requests.
func ForAnyModel() RuleMatcher {
	return RuleMatcher{action: ActionMatcher{kind: MatchModel}, requiredTags: make(map[string]struct{})}
}

// ForEvent creates a matcher for a specific event type.
func ForEvent(eventType string) RuleMatcher {
	return RuleMatcher{
		action:       ActionMatcher{kind: MatchEvent, eventType: eventType, hasEventType: true},
		requiredTags: make(map[string]struct{}),
	}
}

// WithRequiredTags returns a copy of the matcher requiring the given tags.
func (m RuleMatcher) WithRequiredTags(tags []string) RuleMatcher {
	next := make(map[string]struct{}, len(m.requiredTags)+len(tags))
	for tag := range m.requiredTags {
		next[tag] = struct{}{}
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		next[tag] = struct{}{}
	}
	m.requiredTags = next
	return m
}

func (m RuleMatcher) matches(request PolicyRequest) bool {
	if !m.action.matches(request.Action()) {
		return false
	}
	for tag := range m.requiredTags {
		if !request.Context().HasTag(tag) {
			return false
		}
	}
	return true
}

// PolicyRule pairs a matcher with the decision it produces when matched.
type PolicyRule struct {
	name     string
	matcher  RuleMatcher
	decision PolicyDecision
}

// NewPolicyRule creates a rule, rejecting an empty or whitespace-only name.
func NewPolicyRule(name string, matcher RuleMatcher, decision PolicyDecision) (PolicyRule, error) {
	if strings.TrimSpace(name) == "" {
		return PolicyRule{}, &InvalidRuleError{Reason: "rule name cannot be empty"}
	}
	return PolicyRule{name: name, matcher: matcher, decision: decision}, nil
}

// Name returns the rule name.
func (r PolicyRule) Name() string { return r.name }

// Decision returns the decision attached to the rule.
func (r PolicyRule) Decision() PolicyDecision { return r.decision }

// RuleBasedEngine is an in-memory PolicyEngine evaluating rules in insertion
// order and falling back to a configured default decision.
type RuleBasedEngine struct {
	mu              sync.RWMutex
	rules           []PolicyRule
	defaultDecision PolicyDecision
	logger          *obs.Logger
}

// NewRuleBasedEngine constructs an engine with the provided default
// decision. logger may be nil.
func NewRuleBasedEngine(defaultDecision PolicyDecision, logger *obs.Logger) *RuleBasedEngine {
	return &RuleBasedEngine{defaultDecision: defaultDecision, logger: logger}
}

// AddRule appends a rule to the engine's evaluation order.
func (e *RuleBasedEngine) AddRule(rule PolicyRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
}

// Evaluate implements PolicyEngine, returning the decision of the first
// matching rule, or the engine's default decision when none match.
func (e *RuleBasedEngine) Evaluate(ctx context.Context, request PolicyRequest) (PolicyDecision, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, rule := range e.rules {
		if rule.matcher.matches(request) {
			if e.logger != nil {
				e.logger.Debug(ctx, "policy rule matched", "rule", rule.Name(), "action", request.Action().Label())
			}
			return rule.decision, nil
		}
	}
	return e.defaultDecision, nil
}
