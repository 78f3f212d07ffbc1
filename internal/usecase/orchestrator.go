package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/nlbridge/nlbridge/internal/domain"
)

// ClarificationReply is returned when the model declines to pick an
// operation. No REST call is made in that case.
const ClarificationReply = "The model could not determine which API to call. Please rephrase your request."

// Fixed acknowledgements for verbs whose upstream response carries no
// useful body.
const (
	updatedReply = `{"result":"updated"}`
	deletedReply = `{"result":"deleted"}`
)

// Orchestrator owns the provider-agnostic half of a request: the ready
// gate, registry lookup, URL construction, and the actual REST call. The
// provider-specific half lives behind ProviderStrategy.
type Orchestrator struct {
	strategy   ProviderStrategy
	registry   OperationRegistry
	httpClient *http.Client
	apiBaseURL string
	logger     *slog.Logger
	ready      atomic.Bool
}

// NewOrchestrator wires an orchestrator. Process fails with
// domain.ErrNotReady until Init has completed.
func NewOrchestrator(
	strategy ProviderStrategy,
	registry OperationRegistry,
	client *http.Client,
	apiBaseURL string,
	logger *slog.Logger,
) *Orchestrator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Orchestrator{
		strategy:   strategy,
		registry:   registry,
		httpClient: client,
		apiBaseURL: strings.TrimSuffix(apiBaseURL, "/"),
		logger:     logger.With("component", "orchestrator"),
	}
}

// Init runs the active strategy's initialization and opens the ready gate.
// The strategy fetches the OpenAPI document over the same interface this
// service exposes, so Init must only be called once the listener is up;
// calling it earlier deadlocks on our own socket.
func (o *Orchestrator) Init(ctx context.Context, specURL string) error {
	o.logger.Info("Initializing provider strategy.",
		slog.String("provider", o.strategy.ProviderID()),
		slog.String("spec_url", specURL))
	if err := o.strategy.Init(ctx, specURL); err != nil {
		return fmt.Errorf("strategy %s init failed: %w", o.strategy.ProviderID(), err)
	}
	o.ready.Store(true)
	o.logger.Info("Orchestrator ready.")
	return nil
}

// Ready reports whether initialization has completed.
func (o *Orchestrator) Ready() bool {
	return o.ready.Load()
}

// Process turns one natural-language message into one REST call and a
// natural-language reply.
func (o *Orchestrator) Process(ctx context.Context, userMessage string) (string, error) {
	if !o.ready.Load() {
		return "", domain.ErrNotReady
	}

	call, err := o.strategy.Ask(ctx, userMessage)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	if call == nil {
		// The model answered directly without choosing a function.
		return ClarificationReply, nil
	}

	log := o.logger.With(slog.String("operation_id", call.OperationID))
	log.Info("Model decided to call operation.", slog.Any("arguments", call.Arguments))

	op, err := o.registry.Lookup(call.OperationID)
	if err != nil {
		return "", err
	}

	apiResult, err := o.executeRESTCall(ctx, op, call.Arguments)
	if err != nil {
		return "", err
	}
	log.Debug("REST call completed.", slog.Int("result_bytes", len(apiResult)))

	reply, err := o.strategy.Respond(ctx, userMessage, call, apiResult)
	if err != nil {
		return "", fmt.Errorf("model response failed: %w", err)
	}
	return reply, nil
}

// executeRESTCall builds the target URL from the descriptor's path template
// and the argument map, then dispatches by verb. Arguments consumed by path
// substitution are removed; what remains becomes the query string for
// GET/DELETE and the JSON body for POST/PUT/PATCH.
func (o *Orchestrator) executeRESTCall(ctx context.Context, op domain.OperationDescriptor, args map[string]any) (string, error) {
	target, remaining := substitutePath(o.apiBaseURL+op.PathTemplate, args)

	switch op.HTTPMethod {
	case http.MethodGet:
		return o.doRequest(ctx, http.MethodGet, withQuery(target, remaining), nil, "")
	case http.MethodDelete:
		if _, err := o.doRequest(ctx, http.MethodDelete, withQuery(target, remaining), nil, ""); err != nil {
			return "", err
		}
		return deletedReply, nil
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		body, err := json.Marshal(remaining)
		if err != nil {
			return "", fmt.Errorf("failed to encode request body: %w", err)
		}
		result, err := o.doRequest(ctx, op.HTTPMethod, target, bytes.NewReader(body), "application/json")
		if err != nil {
			return "", err
		}
		if op.HTTPMethod == http.MethodPut {
			return updatedReply, nil
		}
		return result, nil
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedMethod, op.HTTPMethod)
	}
}

func (o *Orchestrator) doRequest(ctx context.Context, method, target string, body io.Reader, contentType string) (string, error) {
	o.logger.Info("Executing REST call.", slog.String("method", method), slog.String("url", target))

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d: %s", domain.ErrUpstreamFailure, resp.StatusCode, string(respBody))
	}
	return string(respBody), nil
}

// substitutePath replaces {name} placeholders with stringified argument
// values and returns the arguments left over.
func substitutePath(target string, args map[string]any) (string, map[string]any) {
	remaining := make(map[string]any, len(args))
	for k, v := range args {
		placeholder := "{" + k + "}"
		if strings.Contains(target, placeholder) {
			target = strings.ReplaceAll(target, placeholder, stringify(v))
		} else {
			remaining[k] = v
		}
	}
	return target, remaining
}

func withQuery(target string, args map[string]any) string {
	if len(args) == 0 {
		return target
	}
	query := url.Values{}
	for k, v := range args {
		query.Add(k, stringify(v))
	}
	return target + "?" + query.Encode()
}

// stringify renders an argument value for a path segment or query
// parameter. JSON numbers arrive as float64; whole values print without an
// exponent or decimal point so numeric IDs survive the round trip.
func stringify(v any) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}
