package meshadapter

import (
	"context"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements ModelAdapter against OpenAI's chat completion API.
type OpenAIAdapter struct {
	client   *openai.Client
	metadata AdapterMetadata
	retry    retrier
}

// NewOpenAIAdapter creates an adapter bound to the given model, failing
// Infer calls until a non-empty API key is supplied.
func NewOpenAIAdapter(apiKey, model string) *OpenAIAdapter {
	adapter := &OpenAIAdapter{
		metadata: NewAdapterMetadata("openai", model),
		retry:    newRetrier(3, time.Second),
	}
	if apiKey != "" {
		adapter.client = openai.NewClient(apiKey)
	}
	return adapter
}

// Metadata implements ModelAdapter.
func (a *OpenAIAdapter) Metadata() AdapterMetadata { return a.metadata }

// Infer implements ModelAdapter.
func (a *OpenAIAdapter) Infer(ctx context.Context, request InferenceRequest) (<-chan InferenceChunk, <-chan error) {
	chunks := make(chan InferenceChunk)
	errs := make(chan error, 1)

	if a.client == nil {
		close(chunks)
		errs <- &ConfigurationError{Reason: "OpenAI API key not configured"}
		close(errs)
		return chunks, errs
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(request.messages)+1)
	if system, ok := request.SystemPrompt(); ok {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range request.Messages() {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role().String(),
			Content: m.Content(),
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    a.metadata.Model(),
		Messages: messages,
		Stream:   true,
	}
	if tokens, ok := request.MaxOutputTokens(); ok {
		chatReq.MaxTokens = tokens
	}
	if temperature, ok := request.Temperature(); ok {
		chatReq.Temperature = temperature
	}

	var stream *openai.ChatCompletionStream
	err := a.retry.do(ctx, func(err error) bool { return isRetryableMessage(err.Error()) }, func() error {
		s, err := a.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		close(chunks)
		errs <- &TransportError{Reason: err.Error()}
		close(errs)
		return chunks, errs
	}

	go func() {
		defer close(chunks)
		defer close(errs)
		defer stream.Close()

		for {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			default:
			}

			response, err := stream.Recv()
			if err != nil {
				if err == io.EOF {
					chunks <- InferenceChunk{Done: true}
					return
				}
				errs <- &ResponseError{Reason: err.Error()}
				return
			}
			if len(response.Choices) == 0 {
				continue
			}
			delta := response.Choices[0].Delta
			if delta.Content != "" {
				chunks <- InferenceChunk{Delta: delta.Content}
			}
		}
	}()

	return chunks, errs
}
