package meshexec

import (
	"context"
	"sync"

	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
	"github.com/yafatek/mxp-agents-runtime/internal/obs"
	"github.com/yafatek/mxp-agents-runtime/pkg/meshproto"
)

// OutcomeSink observes completed call outcomes, e.g. for logging or test
// assertions.
type OutcomeSink interface {
	Record(ctx context.Context, agentID meshprimitives.AgentID, outcome meshproto.CallOutcome)
}

// LoggingSink records outcomes to a structured logger.
type LoggingSink struct {
	logger *obs.Logger
}

// NewLoggingSink constructs a sink that logs every outcome at info level.
func NewLoggingSink(logger *obs.Logger) *LoggingSink {
	return &LoggingSink{logger: logger}
}

// Record implements OutcomeSink.
func (s *LoggingSink) Record(ctx context.Context, agentID meshprimitives.AgentID, outcome meshproto.CallOutcome) {
	if s.logger == nil {
		return
	}
	toolNames := make([]string, 0, len(outcome.ToolResults))
	for _, result := range outcome.ToolResults {
		toolNames = append(toolNames, result.Name)
	}
	s.logger.Info(ctx, "call execution completed", "agent_id", agentID.String(), "tools", toolNames)
}

// CollectingSink accumulates outcomes in memory, for use in tests.
type CollectingSink struct {
	mu       sync.Mutex
	outcomes []meshproto.CallOutcome
}

// NewCollectingSink constructs an empty collecting sink.
func NewCollectingSink() *CollectingSink {
	return &CollectingSink{}
}

// Record implements OutcomeSink.
func (s *CollectingSink) Record(ctx context.Context, agentID meshprimitives.AgentID, outcome meshproto.CallOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
}

// Drain returns and clears every outcome recorded so far.
func (s *CollectingSink) Drain() []meshproto.CallOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.outcomes
	s.outcomes = nil
	return out
}
