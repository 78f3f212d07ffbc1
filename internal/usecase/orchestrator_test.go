package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlbridge/nlbridge/internal/domain"
	"github.com/nlbridge/nlbridge/internal/usecase"
)

// stubStrategy is a scripted ProviderStrategy: Ask returns a fixed decision
// and Respond echoes the API result with a marker prefix.
type stubStrategy struct {
	initErr    error
	askCall    *domain.FunctionCall
	askErr     error
	respondErr error

	askCount     int
	respondCount int
	lastResult   string
}

func (s *stubStrategy) ProviderID() string { return "stub" }

func (s *stubStrategy) Init(_ context.Context, _ string) error { return s.initErr }

func (s *stubStrategy) Ask(_ context.Context, _ string) (*domain.FunctionCall, error) {
	s.askCount++
	return s.askCall, s.askErr
}

func (s *stubStrategy) Respond(_ context.Context, _ string, _ *domain.FunctionCall, apiResult string) (string, error) {
	s.respondCount++
	s.lastResult = apiResult
	if s.respondErr != nil {
		return "", s.respondErr
	}
	return "reply: " + apiResult, nil
}

// stubRegistry resolves identifiers from a fixed map.
type stubRegistry map[string]domain.OperationDescriptor

func (r stubRegistry) Lookup(operationID string) (domain.OperationDescriptor, error) {
	desc, ok := r[operationID]
	if !ok {
		return domain.OperationDescriptor{}, fmt.Errorf("%w: %s", domain.ErrUnknownOperation, operationID)
	}
	return desc, nil
}

// recordedRequest captures what the backend saw for one call.
type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]any
}

// testBackend records every request and replies with a canned JSON body.
type testBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	response string
}

func (b *testBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  map[string]string{},
	}
	for k := range r.URL.Query() {
		rec.Query[k] = r.URL.Query().Get(k)
	}
	if body, _ := io.ReadAll(r.Body); len(body) > 0 {
		json.Unmarshal(body, &rec.Body)
	}

	b.mu.Lock()
	b.requests = append(b.requests, rec)
	b.mu.Unlock()

	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, b.response)
}

func (b *testBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *testBackend) last(t *testing.T) recordedRequest {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.requests)
	return b.requests[len(b.requests)-1]
}

var testRegistry = stubRegistry{
	"getAllProducts":  {OperationID: "getAllProducts", HTTPMethod: http.MethodGet, PathTemplate: "/api/products"},
	"getOrderById":    {OperationID: "getOrderById", HTTPMethod: http.MethodGet, PathTemplate: "/api/orders/{id}"},
	"createOrder":     {OperationID: "createOrder", HTTPMethod: http.MethodPost, PathTemplate: "/api/orders"},
	"updateProduct":   {OperationID: "updateProduct", HTTPMethod: http.MethodPut, PathTemplate: "/api/products/{id}"},
	"deleteOrder":     {OperationID: "deleteOrder", HTTPMethod: http.MethodDelete, PathTemplate: "/api/orders/{id}"},
	"traceSomething":  {OperationID: "traceSomething", HTTPMethod: "TRACE", PathTemplate: "/api/trace"},
	"getOrderStatus":  {OperationID: "getOrderStatus", HTTPMethod: http.MethodGet, PathTemplate: "/api/orders/{id}/status"},
	"searchProducts":  {OperationID: "searchProducts", HTTPMethod: http.MethodGet, PathTemplate: "/api/products/search"},
}

func newTestOrchestrator(t *testing.T, strategy *stubStrategy, backend *testBackend) *usecase.Orchestrator {
	t.Helper()
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	o := usecase.NewOrchestrator(strategy, testRegistry, server.Client(), server.URL, logger)
	require.NoError(t, o.Init(context.Background(), "unused"))
	return o
}

func TestOrchestrator_NotReady(t *testing.T) {
	strategy := &stubStrategy{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	o := usecase.NewOrchestrator(strategy, testRegistry, nil, "http://localhost:0", logger)

	assert.False(t, o.Ready())
	_, err := o.Process(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.Zero(t, strategy.askCount, "strategy must not be consulted before init")
}

func TestOrchestrator_InitFailureKeepsGateClosed(t *testing.T) {
	strategy := &stubStrategy{initErr: fmt.Errorf("boom")}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	o := usecase.NewOrchestrator(strategy, testRegistry, nil, "http://localhost:0", logger)

	err := o.Init(context.Background(), "unused")
	require.Error(t, err)
	assert.False(t, o.Ready())

	_, err = o.Process(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestOrchestrator_ClarificationWithoutRESTCall(t *testing.T) {
	strategy := &stubStrategy{askCall: nil}
	backend := &testBackend{response: `{}`}
	o := newTestOrchestrator(t, strategy, backend)

	reply, err := o.Process(context.Background(), "mumble")
	require.NoError(t, err)
	assert.Equal(t, usecase.ClarificationReply, reply)
	assert.Zero(t, backend.count(), "no REST call may be made for a clarification")
	assert.Zero(t, strategy.respondCount)
}

func TestOrchestrator_UnknownOperation(t *testing.T) {
	strategy := &stubStrategy{askCall: &domain.FunctionCall{OperationID: "hallucinatedOp"}}
	backend := &testBackend{response: `{}`}
	o := newTestOrchestrator(t, strategy, backend)

	_, err := o.Process(context.Background(), "do the thing")
	assert.ErrorIs(t, err, domain.ErrUnknownOperation)
	assert.Zero(t, backend.count(), "unknown operations must fail before any REST call")
}

func TestOrchestrator_UnsupportedMethod(t *testing.T) {
	strategy := &stubStrategy{askCall: &domain.FunctionCall{OperationID: "traceSomething"}}
	backend := &testBackend{response: `{}`}
	o := newTestOrchestrator(t, strategy, backend)

	_, err := o.Process(context.Background(), "trace it")
	assert.ErrorIs(t, err, domain.ErrUnsupportedMethod)
	assert.Zero(t, backend.count())
}

func TestOrchestrator_GetPathAndQuery(t *testing.T) {
	strategy := &stubStrategy{askCall: &domain.FunctionCall{
		OperationID: "getOrderById",
		Arguments:   map[string]any{"id": float64(101), "status": "pending"},
	}}
	backend := &testBackend{response: `{"id":101}`}
	o := newTestOrchestrator(t, strategy, backend)

	reply, err := o.Process(context.Background(), "show order 101")
	require.NoError(t, err)
	assert.Equal(t, "reply: "+`{"id":101}`, reply)

	req := backend.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/orders/101", req.Path, "whole numeric IDs must not gain a decimal point")
	assert.Equal(t, map[string]string{"status": "pending"}, req.Query)
}

func TestOrchestrator_GetQueryOnly(t *testing.T) {
	strategy := &stubStrategy{askCall: &domain.FunctionCall{
		OperationID: "searchProducts",
		Arguments:   map[string]any{"name": "laptop"},
	}}
	backend := &testBackend{response: `[]`}
	o := newTestOrchestrator(t, strategy, backend)

	_, err := o.Process(context.Background(), "find laptops")
	require.NoError(t, err)

	req := backend.last(t)
	assert.Equal(t, "/api/products/search", req.Path)
	assert.Equal(t, map[string]string{"name": "laptop"}, req.Query)
}

func TestOrchestrator_GetNoArguments(t *testing.T) {
	strategy := &stubStrategy{askCall: &domain.FunctionCall{OperationID: "getAllProducts"}}
	backend := &testBackend{response: `[]`}
	o := newTestOrchestrator(t, strategy, backend)

	_, err := o.Process(context.Background(), "list products")
	require.NoError(t, err)

	req := backend.last(t)
	assert.Equal(t, "/api/products", req.Path)
	assert.Empty(t, req.Query)
}

func TestOrchestrator_PostBody(t *testing.T) {
	strategy := &stubStrategy{askCall: &domain.FunctionCall{
		OperationID: "createOrder",
		Arguments:   map[string]any{"customerId": float64(42), "productId": float64(1), "quantity": float64(2)},
	}}
	backend := &testBackend{response: `{"id":106}`}
	o := newTestOrchestrator(t, strategy, backend)

	reply, err := o.Process(context.Background(), "order 2 laptops for customer 42")
	require.NoError(t, err)
	assert.Equal(t, "reply: "+`{"id":106}`, reply)

	req := backend.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Empty(t, req.Query)
	assert.Equal(t, map[string]any{
		"customerId": float64(42),
		"productId":  float64(1),
		"quantity":   float64(2),
	}, req.Body)
}

func TestOrchestrator_PutFixedAcknowledgement(t *testing.T) {
	strategy := &stubStrategy{askCall: &domain.FunctionCall{
		OperationID: "updateProduct",
		Arguments:   map[string]any{"id": float64(3), "name": "Keyboard Pro", "price": 149.99},
	}}
	backend := &testBackend{response: `{"id":3,"name":"Keyboard Pro"}`}
	o := newTestOrchestrator(t, strategy, backend)

	_, err := o.Process(context.Background(), "rename product 3")
	require.NoError(t, err)

	req := backend.last(t)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/products/3", req.Path)
	assert.Equal(t, map[string]any{"name": "Keyboard Pro", "price": 149.99}, req.Body)

	// The strategy sees the fixed acknowledgement, not the upstream body.
	assert.Equal(t, `{"result":"updated"}`, strategy.lastResult)
}

func TestOrchestrator_DeleteFixedAcknowledgement(t *testing.T) {
	strategy := &stubStrategy{askCall: &domain.FunctionCall{
		OperationID: "deleteOrder",
		Arguments:   map[string]any{"id": float64(105)},
	}}
	backend := &testBackend{status: http.StatusNoContent}
	o := newTestOrchestrator(t, strategy, backend)

	_, err := o.Process(context.Background(), "cancel order 105")
	require.NoError(t, err)

	req := backend.last(t)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/api/orders/105", req.Path)
	assert.Equal(t, `{"result":"deleted"}`, strategy.lastResult)
}

func TestOrchestrator_UpstreamError(t *testing.T) {
	strategy := &stubStrategy{askCall: &domain.FunctionCall{OperationID: "getAllProducts"}}
	backend := &testBackend{status: http.StatusNotFound, response: `{"error":"not found"}`}
	o := newTestOrchestrator(t, strategy, backend)

	_, err := o.Process(context.Background(), "list products")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Zero(t, strategy.respondCount, "a failed REST call must not reach the respond phase")
}

func TestOrchestrator_AskError(t *testing.T) {
	strategy := &stubStrategy{askErr: fmt.Errorf("model unavailable")}
	backend := &testBackend{response: `{}`}
	o := newTestOrchestrator(t, strategy, backend)

	_, err := o.Process(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model request failed")
	assert.Zero(t, backend.count())
}

func TestOrchestrator_RespondError(t *testing.T) {
	strategy := &stubStrategy{
		askCall:    &domain.FunctionCall{OperationID: "getAllProducts"},
		respondErr: fmt.Errorf("model unavailable"),
	}
	backend := &testBackend{response: `[]`}
	o := newTestOrchestrator(t, strategy, backend)

	_, err := o.Process(context.Background(), "list products")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model response failed")
	assert.Equal(t, 1, backend.count())
}
