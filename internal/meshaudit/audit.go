// Package meshaudit observes policy decisions and fans each one out to a
// registered set of audit emitters, e.g. structured logging or a mesh
// event sent to downstream subscribers.
package meshaudit

import (
	"context"
	"sync"

	"github.com/yafatek/mxp-agents-runtime/internal/meshpolicy"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
)

// Emitter receives a notification for every policy decision observed on a
// call pipeline.
type Emitter interface {
	Emit(ctx context.Context, agentID meshprimitives.AgentID, request meshpolicy.PolicyRequest, decision meshpolicy.PolicyDecision)
}

// CompositeObserver fans every observation out to a registered list of
// emitters, in registration order. Emitters are registered once at
// startup and read under a lock that's released before any Emit call, so
// a slow or blocking emitter doesn't hold up registration.
type CompositeObserver struct {
	mu       sync.RWMutex
	emitters []Emitter
}

// NewCompositeObserver returns an observer with no emitters registered.
func NewCompositeObserver() *CompositeObserver {
	return &CompositeObserver{}
}

// Register adds an emitter to the fan-out list.
func (o *CompositeObserver) Register(emitter Emitter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emitters = append(o.emitters, emitter)
}

// Observe notifies every registered emitter of a policy decision.
func (o *CompositeObserver) Observe(ctx context.Context, agentID meshprimitives.AgentID, request meshpolicy.PolicyRequest, decision meshpolicy.PolicyDecision) {
	o.mu.RLock()
	emitters := make([]Emitter, len(o.emitters))
	copy(emitters, o.emitters)
	o.mu.RUnlock()

	for _, emitter := range emitters {
		emitter.Emit(ctx, agentID, request, decision)
	}
}
