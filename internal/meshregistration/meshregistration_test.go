package meshregistration

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yafatek/mxp-agents-runtime/internal/meshlifecycle"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
	"github.com/yafatek/mxp-agents-runtime/internal/meshscheduler"
)

type mockRegistry struct {
	registers       atomic.Int64
	heartbeats      atomic.Int64
	deregistrations atomic.Int64
}

func (m *mockRegistry) Register(ctx context.Context, manifest meshprimitives.AgentManifest) error {
	m.registers.Add(1)
	return nil
}

func (m *mockRegistry) Heartbeat(ctx context.Context, manifest meshprimitives.AgentManifest) error {
	m.heartbeats.Add(1)
	return nil
}

func (m *mockRegistry) Deregister(ctx context.Context, manifest meshprimitives.AgentManifest) error {
	m.deregistrations.Add(1)
	return nil
}

func testManifest(t *testing.T) meshprimitives.AgentManifest {
	t.Helper()
	builder := meshprimitives.NewAgentManifestBuilder(meshprimitives.RandomAgentID())
	builder, err := builder.Name("mock-agent")
	require.NoError(t, err)
	builder, err = builder.Version("0.1.0")
	require.NoError(t, err)
	manifest, err := builder.Build()
	require.NoError(t, err)
	return manifest
}

func TestLifecycleStartsAndStopsHeartbeat(t *testing.T) {
	registry := &mockRegistry{}
	manifest := testManifest(t)
	config := Config{
		HeartbeatInterval:      10 * time.Millisecond,
		InitialRetryDelay:      5 * time.Millisecond,
		MaxRetryDelay:          20 * time.Millisecond,
		MaxConsecutiveFailures: 3,
	}

	controller := New(registry, manifest, config, nil)
	scheduler := meshscheduler.New(meshscheduler.DefaultConfig())

	require.NoError(t, controller.OnStateChange(context.Background(), scheduler, meshlifecycle.StateReady))
	time.Sleep(60 * time.Millisecond)

	assert.GreaterOrEqual(t, registry.registers.Load(), int64(1))
	assert.GreaterOrEqual(t, registry.heartbeats.Load(), int64(1))

	require.NoError(t, controller.OnStateChange(context.Background(), scheduler, meshlifecycle.StateRetiring))
	time.Sleep(30 * time.Millisecond)

	assert.GreaterOrEqual(t, registry.deregistrations.Load(), int64(1))
}

func TestRetryDelayDoublesAndClamps(t *testing.T) {
	config := Config{InitialRetryDelay: 100 * time.Millisecond, MaxRetryDelay: 500 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, config.retryDelay(1))
	assert.Equal(t, 200*time.Millisecond, config.retryDelay(2))
	assert.Equal(t, 400*time.Millisecond, config.retryDelay(3))
	assert.Equal(t, 500*time.Millisecond, config.retryDelay(4))
	assert.Equal(t, 500*time.Millisecond, config.retryDelay(10))
}

func TestConfigValidateRejectsZeroDurations(t *testing.T) {
	config := Config{}
	err := config.Validate()
	require.Error(t, err)
	var invalid *InvalidConfigError
	assert.ErrorAs(t, err, &invalid)
}

type failingRegistry struct{}

func (failingRegistry) Register(ctx context.Context, manifest meshprimitives.AgentManifest) error {
	return errors.New("unreachable")
}
func (failingRegistry) Heartbeat(ctx context.Context, manifest meshprimitives.AgentManifest) error {
	return nil
}
func (failingRegistry) Deregister(ctx context.Context, manifest meshprimitives.AgentManifest) error {
	return nil
}

func TestRegistrationRetriesOnFailure(t *testing.T) {
	manifest := testManifest(t)
	config := Config{
		HeartbeatInterval:      10 * time.Millisecond,
		InitialRetryDelay:      5 * time.Millisecond,
		MaxRetryDelay:          10 * time.Millisecond,
		MaxConsecutiveFailures: 3,
	}
	controller := New(failingRegistry{}, manifest, config, nil)
	scheduler := meshscheduler.New(meshscheduler.DefaultConfig())

	require.NoError(t, controller.OnStateChange(context.Background(), scheduler, meshlifecycle.StateReady))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, controller.OnStateChange(context.Background(), scheduler, meshlifecycle.StateTerminated))
}
