package meshadapter

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockAdapter implements ModelAdapter against AWS Bedrock's Converse
// streaming API.
type BedrockAdapter struct {
	client   *bedrockruntime.Client
	metadata AdapterMetadata
	retry    retrier
}

// NewBedrockAdapter creates an adapter bound to the given model id, loading
// AWS credentials from the default provider chain for the supplied region.
func NewBedrockAdapter(ctx context.Context, region, model string) (*BedrockAdapter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}
	return &BedrockAdapter{
		client:   bedrockruntime.NewFromConfig(awsCfg),
		metadata: NewAdapterMetadata("bedrock", model),
		retry:    newRetrier(3, time.Second),
	}, nil
}

// Metadata implements ModelAdapter.
func (a *BedrockAdapter) Metadata() AdapterMetadata { return a.metadata }

// Infer implements ModelAdapter.
func (a *BedrockAdapter) Infer(ctx context.Context, request InferenceRequest) (<-chan InferenceChunk, <-chan error) {
	chunks := make(chan InferenceChunk)
	errs := make(chan error, 1)

	messages := make([]types.Message, 0, len(request.messages))
	for _, m := range request.Messages() {
		role := types.ConversationRoleUser
		if m.Role() == RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		messages = append(messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content()}},
		})
	}

	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(a.metadata.Model()),
		Messages: messages,
	}
	if system, ok := request.SystemPrompt(); ok {
		converseReq.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}
	if tokens, ok := request.MaxOutputTokens(); ok {
		converseReq.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(tokens))}
	}

	var stream *bedrockruntime.ConverseStreamOutput
	err := a.retry.do(ctx, func(err error) bool { return isRetryableMessage(err.Error()) }, func() error {
		s, err := a.client.ConverseStream(ctx, converseReq)
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

		eventStream := stream.GetStream()
		defer eventStream.Close()

		for event := range eventStream.Events() {
			switch e := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				if text, ok := e.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
					chunks <- InferenceChunk{Delta: text.Value}
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				chunks <- InferenceChunk{Done: true}
			}
		}
		if err := eventStream.Err(); err != nil {
			errs <- &ResponseError{Reason: err.Error()}
		}
	}()

	return chunks, errs
}
