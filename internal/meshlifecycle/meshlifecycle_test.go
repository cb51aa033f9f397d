package meshlifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
)

func TestBootToActiveFlow(t *testing.T) {
	lifecycle := New(meshprimitives.RandomAgentID(), nil)
	ctx := context.Background()

	assert.Equal(t, StateInit, lifecycle.State())

	state, err := lifecycle.Transition(ctx, EventBoot)
	require.NoError(t, err)
	assert.Equal(t, StateReady, state)

	state, err = lifecycle.Transition(ctx, EventActivate)
	require.NoError(t, err)
	assert.True(t, state.IsActive())
}

func TestSuspendAndResume(t *testing.T) {
	lifecycle := New(meshprimitives.RandomAgentID(), nil)
	ctx := context.Background()

	_, err := lifecycle.Transition(ctx, EventBoot)
	require.NoError(t, err)
	_, err = lifecycle.Transition(ctx, EventActivate)
	require.NoError(t, err)

	state, err := lifecycle.Transition(ctx, EventSuspend)
	require.NoError(t, err)
	assert.Equal(t, StateSuspended, state)

	state, err = lifecycle.Transition(ctx, EventResume)
	require.NoError(t, err)
	assert.Equal(t, StateActive, state)
}

func TestAbortIsGlobal(t *testing.T) {
	lifecycle := New(meshprimitives.RandomAgentID(), nil)
	ctx := context.Background()

	state, err := lifecycle.Transition(ctx, EventAbort)
	require.NoError(t, err)
	assert.True(t, state.IsTerminal())

	state, err = lifecycle.Transition(ctx, EventAbort)
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, state)
}

func TestInvalidTransitionErrors(t *testing.T) {
	lifecycle := New(meshprimitives.RandomAgentID(), nil)
	_, err := lifecycle.Transition(context.Background(), EventActivate)
	require.Error(t, err)
	var invalid *InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}
