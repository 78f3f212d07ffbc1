// Package ollama implements the ProviderStrategy for locally-run models
// behind the Ollama chat API. Local models follow instructions less
// reliably than the hosted ones, so Respond avoids the structured
// tool-result turn entirely and asks the model to answer from a single
// self-contained prompt instead.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nlbridge/nlbridge/internal/adapter/outbound/openapi"
	"github.com/nlbridge/nlbridge/internal/domain"
)

// ProviderID is the configuration value selecting this strategy.
const ProviderID = "ollama"

// DefaultBaseURL is the local Ollama endpoint.
const DefaultBaseURL = "http://localhost:11434"

// Config carries the Ollama endpoint and model name.
type Config struct {
	BaseURL string
	Model   string
}

// Strategy declares tools in the loosely-typed dialect over /api/chat.
type Strategy struct {
	converter  *openapi.Converter
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
	tools      []map[string]any
}

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []chatMessage    `json:"messages"`
	Tools    []map[string]any `json:"tools,omitempty"`
	Stream   bool             `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// New creates the Ollama strategy.
func New(converter *openapi.Converter, client *http.Client, cfg Config, logger *slog.Logger) *Strategy {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Strategy{
		converter:  converter,
		httpClient: client,
		cfg:        cfg,
		logger:     logger.With("component", "ollama_strategy"),
	}
}

// ProviderID implements usecase.ProviderStrategy.
func (s *Strategy) ProviderID() string { return ProviderID }

// Init loads the OpenAPI document in the OpenAI-compatible tool format.
func (s *Strategy) Init(ctx context.Context, specURL string) error {
	ops, err := s.converter.Load(ctx, specURL)
	if err != nil {
		return err
	}
	s.tools = openapi.JSONTools(ops)
	s.logger.Info("Declared tools for Ollama.", slog.Int("count", len(s.tools)))
	return nil
}

// Ask sends the user message with the tool list and returns the first tool
// call, or nil when the model answered directly.
func (s *Strategy) Ask(ctx context.Context, userMessage string) (*domain.FunctionCall, error) {
	resp, err := s.chat(ctx, chatRequest{
		Model:    s.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: userMessage}},
		Tools:    s.tools,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Message.ToolCalls) == 0 {
		return nil, nil
	}

	fn := resp.Message.ToolCalls[0].Function
	return &domain.FunctionCall{
		OperationID: fn.Name,
		Arguments:   fn.Arguments,
	}, nil
}

// Respond embeds the question, the operation name, and the raw result in
// one prompt and asks the model to answer from that text alone. A blank
// answer falls back to the raw API result rather than an empty reply.
func (s *Strategy) Respond(ctx context.Context, userMessage string, call *domain.FunctionCall, apiResult string) (string, error) {
	prompt := fmt.Sprintf(
		"The user asked: %q\n\nYou called the API function %q and got this result:\n%s\n\nPlease answer the user's question in plain English using only the data above.",
		userMessage, call.OperationID, apiResult,
	)

	resp, err := s.chat(ctx, chatRequest{
		Model:    s.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(resp.Message.Content) == "" {
		s.logger.Warn("Model returned empty content, falling back to raw API result.")
		return apiResult, nil
	}
	return resp.Message.Content, nil
}

func (s *Strategy) chat(ctx context.Context, reqBody chatRequest) (*chatResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return &parsed, nil
}
