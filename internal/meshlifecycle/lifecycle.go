// Package meshlifecycle implements the agent lifecycle state machine: the
// states an agent occupies from construction through termination, the
// events that drive transitions between them, and the controller that
// enforces the transition table.
package meshlifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
	"github.com/yafatek/mxp-agents-runtime/internal/obs"
)

// AgentState is a discrete state an agent can occupy during its lifetime.
type AgentState int

const (
	// StateInit is the state right after construction, before
	// initialization.
	StateInit AgentState = iota
	// StateReady means dependencies are initialized and the agent is
	// ready for activation.
	StateReady
	// StateActive means the agent is actively handling workloads.
	StateActive
	// StateSuspended means the agent is temporarily paused but can
	// resume.
	StateSuspended
	// StateRetiring means the agent is draining in-flight work prior to
	// shutdown.
	StateRetiring
	// StateTerminated means the agent is fully terminated; no further
	// work should be scheduled.
	StateTerminated
)

// String returns the state's lowercase textual form.
func (s AgentState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StateSuspended:
		return "suspended"
	case StateRetiring:
		return "retiring"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// IsActive reports whether the state represents a running agent.
func (s AgentState) IsActive() bool { return s == StateActive }

// IsTerminal reports whether the agent has terminated.
func (s AgentState) IsTerminal() bool { return s == StateTerminated }

// LifecycleEvent is an event that triggers a lifecycle transition.
type LifecycleEvent int

const (
	// EventBoot finishes bootstrapping resources.
	EventBoot LifecycleEvent = iota
	// EventActivate begins processing workloads.
	EventActivate
	// EventSuspend pauses execution while retaining state.
	EventSuspend
	// EventResume resumes execution after a suspension.
	EventResume
	// EventRetire initiates a graceful shutdown.
	EventRetire
	// EventTerminate finalizes shutdown after draining work.
	EventTerminate
	// EventAbort immediately aborts the agent, forcing termination.
	EventAbort
)

// String returns the event's lowercase textual form.
func (e LifecycleEvent) String() string {
	switch e {
	case EventBoot:
		return "boot"
	case EventActivate:
		return "activate"
	case EventSuspend:
		return "suspend"
	case EventResume:
		return "resume"
	case EventRetire:
		return "retire"
	case EventTerminate:
		return "terminate"
	case EventAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// InvalidTransitionError reports an event that is not allowed from the
// current state.
type InvalidTransitionError struct {
	AgentID meshprimitives.AgentID
	From    AgentState
	Event   LifecycleEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle transition from %s via %s for agent %s", e.From, e.Event, e.AgentID)
}

type transitionKey struct {
	from  AgentState
	event LifecycleEvent
}

var transitionTable = map[transitionKey]AgentState{
	{StateInit, EventBoot}:            StateReady,
	{StateReady, EventActivate}:       StateActive,
	{StateSuspended, EventResume}:     StateActive,
	{StateReady, EventRetire}:         StateRetiring,
	{StateActive, EventRetire}:        StateRetiring,
	{StateSuspended, EventRetire}:     StateRetiring,
	{StateActive, EventSuspend}:       StateSuspended,
	{StateRetiring, EventTerminate}:   StateTerminated,
	{StateTerminated, EventTerminate}: StateTerminated,
}

func nextState(from AgentState, event LifecycleEvent) (AgentState, bool) {
	if event == EventAbort {
		return StateTerminated, true
	}
	next, ok := transitionTable[transitionKey{from: from, event: event}]
	return next, ok
}

// Lifecycle is the per-agent lifecycle state controller.
type Lifecycle struct {
	agentID meshprimitives.AgentID
	mu      sync.Mutex
	state   AgentState
	logger  *obs.Logger
}

// New constructs a lifecycle controller for the given agent, starting in
// StateInit. logger may be nil.
func New(agentID meshprimitives.AgentID, logger *obs.Logger) *Lifecycle {
	return &Lifecycle{agentID: agentID, state: StateInit, logger: logger}
}

// AgentID returns the owning agent identifier.
func (l *Lifecycle) AgentID() meshprimitives.AgentID { return l.agentID }

// State returns the current state.
func (l *Lifecycle) State() AgentState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Transition applies a lifecycle event, returning the resulting state.
func (l *Lifecycle) Transition(ctx context.Context, event LifecycleEvent) (AgentState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, ok := nextState(l.state, event)
	if !ok {
		return l.state, &InvalidTransitionError{AgentID: l.agentID, From: l.state, Event: event}
	}

	if next != l.state {
		if l.logger != nil {
			l.logger.Debug(ctx, "agent lifecycle transition",
				"agent_id", l.agentID.String(), "from", l.state.String(), "to", next.String(), "event", event.String())
		}
		l.state = next
	}
	return l.state, nil
}
