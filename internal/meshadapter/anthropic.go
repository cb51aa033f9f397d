package meshadapter

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAdapter implements ModelAdapter against Anthropic's Messages API.
type AnthropicAdapter struct {
	client   anthropic.Client
	metadata AdapterMetadata
	retry    retrier
}

// NewAnthropicAdapter creates an adapter bound to the given model using the
// supplied API key.
func NewAnthropicAdapter(apiKey, model string) *AnthropicAdapter {
	var options []option.RequestOption
	if apiKey != "" {
		options = append(options, option.WithAPIKey(apiKey))
	}
	return &AnthropicAdapter{
		client:   anthropic.NewClient(options...),
		metadata: NewAdapterMetadata("anthropic", model),
		retry:    newRetrier(3, time.Second),
	}
}

// Metadata implements ModelAdapter.
func (a *AnthropicAdapter) Metadata() AdapterMetadata { return a.metadata }

// Infer implements ModelAdapter.
func (a *AnthropicAdapter) Infer(ctx context.Context, request InferenceRequest) (<-chan InferenceChunk, <-chan error) {
	chunks := make(chan InferenceChunk)
	errs := make(chan error, 1)

	messages := make([]anthropic.MessageParam, 0, len(request.messages))
	for _, m := range request.Messages() {
		switch m.Role() {
		case RoleUser, RoleTool:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content())))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content())))
		}
	}

	maxTokens := int64(1024)
	if tokens, ok := request.MaxOutputTokens(); ok {
		maxTokens = int64(tokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.metadata.Model()),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if system, ok := request.SystemPrompt(); ok {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}

	go func() {
		defer close(chunks)
		defer close(errs)

		stream := a.client.Messages.NewStreaming(ctx, params)
		for stream.Next() {
			event := stream.Current()
			if event.Type != "content_block_delta" {
				continue
			}
			delta := event.AsContentBlockDelta().Delta
			if text := delta.AsTextDelta().Text; text != "" {
				chunks <- InferenceChunk{Delta: text}
			}
		}
		if err := stream.Err(); err != nil {
			if isRetryableMessage(err.Error()) {
				errs <- &RateLimitedError{}
				return
			}
			errs <- &TransportError{Reason: err.Error()}
			return
		}
		chunks <- InferenceChunk{Done: true}
	}()

	return chunks, errs
}
