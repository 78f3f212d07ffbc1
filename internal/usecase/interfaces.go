package usecase

import (
	"context"

	"github.com/nlbridge/nlbridge/internal/domain"
)

// ProviderStrategy is the contract every model provider implements. Each
// implementation encapsulates how its provider expects tools to be
// declared, how a tool-call decision is extracted from a response, and how
// the post-call summary is obtained.
//
// Conversation state needed between Ask and Respond travels inside the
// returned FunctionCall's ProviderContext; implementations must not keep it
// in package-level or per-goroutine state.
type ProviderStrategy interface {
	// ProviderID matches the configured provider value.
	ProviderID() string

	// Init loads and registers tools from the OpenAPI document in this
	// provider's dialect. Called once, after the service is listening.
	Init(ctx context.Context, specURL string) error

	// Ask sends the user message plus the tool list to the model and
	// returns its decision. A nil call (with nil error) means the model
	// answered directly without choosing a function.
	Ask(ctx context.Context, userMessage string) (*domain.FunctionCall, error)

	// Respond sends the REST result back to the model and returns the
	// natural-language reply.
	Respond(ctx context.Context, userMessage string, call *domain.FunctionCall, apiResult string) (string, error)
}

// OperationRegistry resolves operation identifiers issued by the model.
type OperationRegistry interface {
	Lookup(operationID string) (domain.OperationDescriptor, error)
}
