// Package openaichat implements the ProviderStrategy for OpenAI-compatible
// Chat Completions endpoints via the official SDK. With a custom base URL
// it also covers the many providers that speak the same wire contract.
package openaichat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nlbridge/nlbridge/internal/adapter/outbound/openapi"
	"github.com/nlbridge/nlbridge/internal/domain"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ProviderID is the configuration value selecting this strategy.
const ProviderID = "openai"

// Config carries the endpoint credentials and model name. BaseURL is
// optional and switches the SDK to a compatible third-party endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Strategy declares tools in the loosely-typed dialect through the SDK's
// typed wrappers.
type Strategy struct {
	converter *openapi.Converter
	client    openai.Client
	model     string
	logger    *slog.Logger
	tools     []openai.ChatCompletionToolParam
}

// followUp is the provider context carried between Ask and Respond: the
// assistant turn to echo back and the tool call it answers.
type followUp struct {
	assistant  openai.ChatCompletionMessageParamUnion
	toolCallID string
}

// New creates the OpenAI-compatible strategy.
func New(converter *openapi.Converter, cfg Config, logger *slog.Logger) *Strategy {
	clientOpts := []openaiopt.RequestOption{openaiopt.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(cfg.BaseURL))
	}
	return &Strategy{
		converter: converter,
		client:    openai.NewClient(clientOpts...),
		model:     cfg.Model,
		logger:    logger.With("component", "openai_strategy"),
	}
}

// ProviderID implements usecase.ProviderStrategy.
func (s *Strategy) ProviderID() string { return ProviderID }

// Init loads the OpenAPI document and wraps each operation in the SDK's
// function-tool parameter type.
func (s *Strategy) Init(ctx context.Context, specURL string) error {
	ops, err := s.converter.Load(ctx, specURL)
	if err != nil {
		return err
	}
	s.tools = make([]openai.ChatCompletionToolParam, 0, len(ops))
	for _, op := range ops {
		s.tools = append(s.tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        op.OperationID,
				Description: openai.String(op.Description),
				Parameters:  shared.FunctionParameters(openapi.LooseParameters(op)),
			},
		})
	}
	s.logger.Info("Declared tools for OpenAI.", slog.Int("count", len(s.tools)))
	return nil
}

// Ask sends the user message with the tool list and returns the first tool
// call, or nil when the model answered directly.
func (s *Strategy) Ask(ctx context.Context, userMessage string) (*domain.FunctionCall, error) {
	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{userMessageParam(userMessage)},
		Tools:    s.tools,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, nil
	}

	message := completion.Choices[0].Message
	if len(message.ToolCalls) == 0 {
		return nil, nil
	}

	toolCall := message.ToolCalls[0]
	var args map[string]any
	if toolCall.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to decode tool call arguments: %w", err)
		}
	}

	assistant := openai.ChatCompletionMessageParamUnion{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			ToolCalls: []openai.ChatCompletionMessageToolCallParam{{
				ID: toolCall.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      toolCall.Function.Name,
					Arguments: toolCall.Function.Arguments,
				},
			}},
		},
	}

	return &domain.FunctionCall{
		OperationID: toolCall.Function.Name,
		Arguments:   args,
		ProviderContext: followUp{
			assistant:  assistant,
			toolCallID: toolCall.ID,
		},
	}, nil
}

// Respond echoes the assistant turn plus a tool message carrying the API
// result and returns the follow-up text.
func (s *Strategy) Respond(ctx context.Context, userMessage string, call *domain.FunctionCall, apiResult string) (string, error) {
	fu, ok := call.ProviderContext.(followUp)
	if !ok {
		return "", fmt.Errorf("unexpected provider context %T for openai strategy", call.ProviderContext)
	}

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			userMessageParam(userMessage),
			fu.assistant,
			{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(apiResult),
					},
					ToolCallID: fu.toolCallID,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

func userMessageParam(text string) openai.ChatCompletionMessageParamUnion {
	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(text),
			},
		},
	}
}
