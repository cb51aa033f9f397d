package meshprimitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentIDRoundTrip(t *testing.T) {
	id := RandomAgentID()
	parsed, err := ParseAgentID(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))
}

func TestParseAgentIDInvalid(t *testing.T) {
	_, err := ParseAgentID("not-a-uuid")
	require.Error(t, err)
	var target *InvalidAgentIDError
	assert.ErrorAs(t, err, &target)
}

func buildTestCapability(t *testing.T) Capability {
	t.Helper()
	id, err := NewCapabilityID("plan.execute")
	require.NoError(t, err)

	b := NewCapabilityBuilder(id)
	bb, err := b.Name("Planner")
	require.NoError(t, err)
	bb, err = bb.Version("1.0.0")
	require.NoError(t, err)
	bb, err = bb.AddScope("read:tasks")
	require.NoError(t, err)
	bb, err = bb.AddScope("write:plans")
	require.NoError(t, err)
	bb.Description("Plan execution")

	cap, err := bb.Build()
	require.NoError(t, err)
	return cap
}

func TestCapabilityBuildSuccess(t *testing.T) {
	cap := buildTestCapability(t)
	assert.Equal(t, "Planner", cap.Name())
	assert.Len(t, cap.Scopes(), 2)
	desc, ok := cap.Description()
	assert.True(t, ok)
	assert.Equal(t, "Plan execution", desc)
}

func TestCapabilityRequiresScope(t *testing.T) {
	id, err := NewCapabilityID("empty.scope")
	require.NoError(t, err)

	b := NewCapabilityBuilder(id)
	bb, err := b.Name("Empty")
	require.NoError(t, err)
	bb, err = bb.Version("1.0")
	require.NoError(t, err)

	_, err = bb.Build()
	require.Error(t, err)
	var target *InvalidCapabilityError
	assert.ErrorAs(t, err, &target)
}

func TestCapabilityIDValidation(t *testing.T) {
	_, err := NewCapabilityID("")
	require.Error(t, err)

	_, err = NewCapabilityID("Has-Upper")
	require.Error(t, err)

	_, err = NewCapabilityID("valid.id-ok_1")
	require.NoError(t, err)
}

func TestAgentManifestBuild(t *testing.T) {
	cap := buildTestCapability(t)
	b := NewAgentManifestBuilder(RandomAgentID())
	bb, err := b.Name("demo")
	require.NoError(t, err)
	bb, err = bb.Version("1.2.3")
	require.NoError(t, err)
	bb = bb.Description("demo agent").Capabilities([]Capability{cap})
	bb, err = bb.AddTag("alpha")
	require.NoError(t, err)

	manifest, err := bb.Build()
	require.NoError(t, err)
	assert.Equal(t, "demo", manifest.Name())
	assert.Equal(t, "1.2.3", manifest.Version())
	desc, ok := manifest.Description()
	assert.True(t, ok)
	assert.Equal(t, "demo agent", desc)
	assert.Len(t, manifest.Capabilities(), 1)
	assert.Equal(t, []string{"alpha"}, manifest.Tags())
}

func TestAgentManifestNameRequired(t *testing.T) {
	_, err := NewAgentManifestBuilder(RandomAgentID()).Build()
	require.Error(t, err)
}
