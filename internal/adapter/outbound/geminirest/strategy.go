// Package geminirest implements the ProviderStrategy for the Gemini API
// spoken over bare HTTP request/response cycles, without the SDK. The
// remote service is stateless per call, so the conversation turns needed
// between Ask and Respond travel inside the decision's provider context.
package geminirest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nlbridge/nlbridge/internal/adapter/outbound/openapi"
	"github.com/nlbridge/nlbridge/internal/domain"
)

// ProviderID is the configuration value selecting this strategy.
const ProviderID = "gemini-rest"

// DefaultBaseURL is the public Gemini REST endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Config carries the REST credentials and model name. BaseURL is
// overridable for tests.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Strategy declares tools in the loosely-typed dialect and drives the
// generateContent endpoint directly.
type Strategy struct {
	converter    *openapi.Converter
	httpClient   *http.Client
	cfg          Config
	logger       *slog.Logger
	declarations []map[string]any
}

// Wire types for the generateContent endpoint. Parts marshal back exactly
// as received, which lets a model turn be replayed in the follow-up call.
type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type generateRequest struct {
	Contents []content        `json:"contents"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// New creates the stateless-REST Gemini strategy.
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
		logger:     logger.With("component", "gemini_rest_strategy"),
	}
}

// ProviderID implements usecase.ProviderStrategy.
func (s *Strategy) ProviderID() string { return ProviderID }

// Init loads the OpenAPI document and keeps the bare function declarations
// (the REST API nests them under function_declarations itself).
func (s *Strategy) Init(ctx context.Context, specURL string) error {
	ops, err := s.converter.Load(ctx, specURL)
	if err != nil {
		return err
	}
	s.declarations = make([]map[string]any, 0, len(ops))
	for _, tool := range openapi.JSONTools(ops) {
		if fn, ok := tool["function"].(map[string]any); ok {
			s.declarations = append(s.declarations, fn)
		}
	}
	s.logger.Info("Declared tools for Gemini REST.", slog.Int("count", len(s.declarations)))
	return nil
}

// Ask sends the user turn plus the tool declarations and scans the
// candidate parts for a function call. On success the conversation so far,
// including the model's own turn, is stored in the decision's provider
// context for Respond.
func (s *Strategy) Ask(ctx context.Context, userMessage string) (*domain.FunctionCall, error) {
	messages := []content{{Role: "user", Parts: []part{{Text: userMessage}}}}

	resp, err := s.call(ctx, generateRequest{
		Contents: messages,
		Tools:    []map[string]any{{"function_declarations": s.declarations}},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, nil
	}

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.FunctionCall == nil {
			continue
		}
		history := append(messages, content{Role: "model", Parts: []part{p}})
		return &domain.FunctionCall{
			OperationID:     p.FunctionCall.Name,
			Arguments:       p.FunctionCall.Args,
			ProviderContext: history,
		}, nil
	}
	return nil, nil
}

// Respond replays the stored turns and appends the function result, then
// extracts the text of the follow-up answer.
func (s *Strategy) Respond(ctx context.Context, userMessage string, call *domain.FunctionCall, apiResult string) (string, error) {
	history, ok := call.ProviderContext.([]content)
	if !ok {
		return "", fmt.Errorf("unexpected provider context %T for gemini-rest strategy", call.ProviderContext)
	}

	messages := append(history, content{Role: "user", Parts: []part{{
		FunctionResponse: &functionResponse{
			Name:     call.OperationID,
			Response: map[string]any{"result": apiResult},
		},
	}}})

	resp, err := s.call(ctx, generateRequest{Contents: messages})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (s *Strategy) call(ctx context.Context, reqBody generateRequest) (*generateResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", s.cfg.BaseURL, s.cfg.Model, s.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	return &parsed, nil
}
