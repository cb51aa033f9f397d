package meshadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferenceRequestValidatesMessages(t *testing.T) {
	_, err := NewInferenceRequest(nil)
	require.Error(t, err)
	var invalid *InvalidRequestError
	assert.ErrorAs(t, err, &invalid)
}

func TestInferenceRequestBuilder(t *testing.T) {
	request, err := NewInferenceRequest([]PromptMessage{NewPromptMessage(RoleUser, "ping")})
	require.NoError(t, err)

	request = request.WithMaxOutputTokens(256).WithTemperature(0.7).WithTools([]string{"echo"})

	assert.Len(t, request.Messages(), 1)
	tokens, ok := request.MaxOutputTokens()
	assert.True(t, ok)
	assert.Equal(t, 256, tokens)
	temp, ok := request.Temperature()
	assert.True(t, ok)
	assert.InDelta(t, 0.7, temp, 0.0001)
	assert.Equal(t, []string{"echo"}, request.Tools())
}

func TestOpenAIAdapterRequiresAPIKey(t *testing.T) {
	adapter := NewOpenAIAdapter("", "gpt-4o")
	request, err := NewInferenceRequest([]PromptMessage{NewPromptMessage(RoleUser, "ping")})
	require.NoError(t, err)

	chunks, errs := adapter.Infer(context.Background(), request)
	_, chunkOpen := <-chunks
	assert.False(t, chunkOpen)

	err = <-errs
	require.Error(t, err)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestAdapterMetadata(t *testing.T) {
	metadata := NewAdapterMetadata("openai", "gpt-4o").WithVersion("v1")
	assert.Equal(t, "openai", metadata.Provider())
	assert.Equal(t, "gpt-4o", metadata.Model())
	version, ok := metadata.Version()
	assert.True(t, ok)
	assert.Equal(t, "v1", version)
}
