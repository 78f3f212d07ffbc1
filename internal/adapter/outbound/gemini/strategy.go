// Package gemini implements the ProviderStrategy for Google Gemini over
// the official SDK, covering both the Gemini API (API key) and Vertex AI
// (project/location) backends.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nlbridge/nlbridge/internal/adapter/outbound/openapi"
	"github.com/nlbridge/nlbridge/internal/domain"

	"google.golang.org/genai"
)

// ProviderID is the configuration value selecting this strategy.
const ProviderID = "gemini"

// Config carries the provider credentials and model name. Either APIKey or
// the VertexProject/VertexLocation pair must be set.
type Config struct {
	APIKey         string
	VertexProject  string
	VertexLocation string
	Model          string
}

// Strategy declares tools in the typed-schema dialect and extracts the
// function-call part from SDK responses.
type Strategy struct {
	converter *openapi.Converter
	client    *genai.Client
	model     string
	logger    *slog.Logger
	tools     []*genai.Tool
}

// New creates the Gemini strategy. The SDK client is constructed eagerly;
// tool loading happens in Init.
func New(ctx context.Context, converter *openapi.Converter, cfg Config, logger *slog.Logger) (*Strategy, error) {
	clientConfig := &genai.ClientConfig{}
	if cfg.VertexProject != "" {
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = cfg.VertexProject
		clientConfig.Location = cfg.VertexLocation
	} else {
		clientConfig.Backend = genai.BackendGeminiAPI
		clientConfig.APIKey = cfg.APIKey
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Strategy{
		converter: converter,
		client:    client,
		model:     cfg.Model,
		logger:    logger.With("component", "gemini_strategy"),
	}, nil
}

// ProviderID implements usecase.ProviderStrategy.
func (s *Strategy) ProviderID() string { return ProviderID }

// Init loads the OpenAPI document and renders the typed tool declarations.
func (s *Strategy) Init(ctx context.Context, specURL string) error {
	ops, err := s.converter.Load(ctx, specURL)
	if err != nil {
		return err
	}
	s.tools = []*genai.Tool{{FunctionDeclarations: openapi.GeminiDeclarations(ops)}}
	s.logger.Info("Declared tools for Gemini.", slog.Int("count", len(ops)))
	return nil
}

// Ask sends one call carrying the full tool list and inspects the response
// for a function-call part. The raw model turn is carried as the call's
// provider context so Respond can echo it back.
func (s *Strategy) Ask(ctx context.Context, userMessage string) (*domain.FunctionCall, error) {
	contents := []*genai.Content{genai.NewContentFromText(userMessage, genai.RoleUser)}
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{Tools: s.tools})
	if err != nil {
		return nil, fmt.Errorf("gemini generateContent failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}

	content := resp.Candidates[0].Content
	for _, part := range content.Parts {
		if part.FunctionCall == nil {
			continue
		}
		return &domain.FunctionCall{
			OperationID:     part.FunctionCall.Name,
			Arguments:       part.FunctionCall.Args,
			ProviderContext: content,
		}, nil
	}
	// No function-call part: the model answered directly.
	return nil, nil
}

// Respond replays the original turn plus a synthesized function-result
// turn, producing the final answer in a single follow-up round trip.
func (s *Strategy) Respond(ctx context.Context, userMessage string, call *domain.FunctionCall, apiResult string) (string, error) {
	modelTurn, ok := call.ProviderContext.(*genai.Content)
	if !ok {
		return "", fmt.Errorf("unexpected provider context %T for gemini strategy", call.ProviderContext)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(userMessage, genai.RoleUser),
		modelTurn,
		genai.NewContentFromParts([]*genai.Part{{
			FunctionResponse: &genai.FunctionResponse{
				Name:     call.OperationID,
				Response: map[string]any{"result": apiResult},
			},
		}}, genai.RoleUser),
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{Tools: s.tools})
	if err != nil {
		return "", fmt.Errorf("gemini generateContent failed: %w", err)
	}
	return extractText(resp), nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
