// Package nlhttp exposes the single natural-language entry point.
package nlhttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nlbridge/nlbridge/internal/domain"

	"github.com/gorilla/mux"
)

// Processor is the slice of the orchestrator the handler needs.
type Processor interface {
	Process(ctx context.Context, userMessage string) (string, error)
	Ready() bool
}

// Handlers holds dependencies for the natural-language endpoint.
type Handlers struct {
	processor Processor
	logger    *slog.Logger
}

// NewHandlers creates the natural-language handler set.
func NewHandlers(processor Processor, logger *slog.Logger) *Handlers {
	return &Handlers{
		processor: processor,
		logger:    logger.With("component", "nlhttp_handler"),
	}
}

// Register mounts the command and health routes on the given router.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/api/nl/command", h.handleCommand).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
}

type commandRequest struct {
	Message string `json:"message"`
}

type commandResponse struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

func (h *Handlers) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, commandResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, commandResponse{Error: "message field is required"})
		return
	}

	reply, err := h.processor.Process(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrNotReady) {
			writeJSON(w, http.StatusServiceUnavailable, commandResponse{Error: "still initializing, please retry"})
			return
		}
		if errors.Is(err, domain.ErrUpstreamFailure) {
			h.logger.Error("Upstream call failed.", slog.Any("error", err))
			writeJSON(w, http.StatusBadGateway, commandResponse{Error: err.Error()})
			return
		}
		h.logger.Error("Command processing failed.", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, commandResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Reply: reply})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !h.processor.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
