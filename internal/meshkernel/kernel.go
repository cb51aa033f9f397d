// Package meshkernel wires an agent's lifecycle state machine, message
// handler, scheduler, and (optionally) its registration controller into a
// single runtime facade.
package meshkernel

import (
	"context"

	"github.com/yafatek/mxp-agents-runtime/internal/meshdispatch"
	"github.com/yafatek/mxp-agents-runtime/internal/meshlifecycle"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
	"github.com/yafatek/mxp-agents-runtime/internal/meshregistration"
	"github.com/yafatek/mxp-agents-runtime/internal/meshscheduler"
	"github.com/yafatek/mxp-agents-runtime/internal/obs"
)

// Kernel is the core runtime wiring lifecycle, scheduler, and message
// handling for a single agent.
type Kernel struct {
	agentID      meshprimitives.AgentID
	lifecycle    *meshlifecycle.Lifecycle
	handler      meshdispatch.AgentMessageHandler
	scheduler    *meshscheduler.Scheduler
	registration *meshregistration.Controller
	logger       *obs.Logger
}

// New constructs a kernel for the given agent. registration may be nil for
// agents that don't participate in mesh-wide directory registration.
func New(agentID meshprimitives.AgentID, handler meshdispatch.AgentMessageHandler, scheduler *meshscheduler.Scheduler, registration *meshregistration.Controller, logger *obs.Logger) *Kernel {
	return &Kernel{
		agentID:      agentID,
		lifecycle:    meshlifecycle.New(agentID, logger),
		handler:      handler,
		scheduler:    scheduler,
		registration: registration,
		logger:       logger,
	}
}

// AgentID returns the kernel's agent identifier.
func (k *Kernel) AgentID() meshprimitives.AgentID { return k.agentID }

// State returns the kernel's current lifecycle state.
func (k *Kernel) State() meshlifecycle.AgentState { return k.lifecycle.State() }

// Transition applies a lifecycle event and, when a registration controller
// is configured, notifies it of the resulting state so it can start or
// stop its registration worker.
func (k *Kernel) Transition(ctx context.Context, event meshlifecycle.LifecycleEvent) (meshlifecycle.AgentState, error) {
	state, err := k.lifecycle.Transition(ctx, event)
	if err != nil {
		return state, err
	}
	if k.registration != nil {
		if err := k.registration.OnStateChange(ctx, k.scheduler, state); err != nil {
			return state, err
		}
	}
	return state, nil
}

// HandleMessage dispatches a mesh message synchronously on the caller's
// goroutine.
func (k *Kernel) HandleMessage(ctx context.Context, message meshdispatch.Message) error {
	hc := meshdispatch.NewHandlerContext(k.agentID, message)
	return meshdispatch.Dispatch(ctx, k.handler, hc)
}

// ScheduleMessage enqueues a mesh message for asynchronous dispatch via the
// kernel's scheduler, returning a handle the caller can wait on. The
// handle's Wait error is the dispatch error (if any); the scheduler only
// fails the spawn itself when it has already been closed.
func (k *Kernel) ScheduleMessage(message meshdispatch.Message) (*meshscheduler.Handle[struct{}], error) {
	agentID := k.agentID
	handler := k.handler
	return meshscheduler.Spawn(k.scheduler, func(ctx context.Context) (struct{}, error) {
		hc := meshdispatch.NewHandlerContext(agentID, message)
		return struct{}{}, meshdispatch.Dispatch(ctx, handler, hc)
	})
}
