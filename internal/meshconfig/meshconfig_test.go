package meshconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meshagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
agent:
  name: demo-agent
adapter:
  provider: openai
  model: gpt-4o-mini
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", cfg.Agent.Version)
	assert.Equal(t, 32, cfg.Scheduler.MaxConcurrency)
	assert.Equal(t, "allow_all", cfg.Policy.Mode)
	assert.Equal(t, "file", cfg.Memory.JournalDriver)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
agent:
  name: demo-agent
adapter:
  provider: made-up
  model: x
`)

	_, err := Load(path)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "adapter.provider", verr.Field)
}

func TestLoadRejectsRemotePolicyWithoutURL(t *testing.T) {
	path := writeConfig(t, `
agent:
  name: demo-agent
adapter:
  provider: anthropic
  model: claude-3-5-sonnet
policy:
  mode: remote
`)

	_, err := Load(path)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "policy.remote_url", verr.Field)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("MESHAGENT_TEST_API_KEY", "secret-value")
	path := writeConfig(t, `
agent:
  name: demo-agent
adapter:
  provider: openai
  model: gpt-4o-mini
  api_key: ${MESHAGENT_TEST_API_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-value", cfg.Adapter.APIKey)
}
