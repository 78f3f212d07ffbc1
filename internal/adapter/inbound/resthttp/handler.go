// Package resthttp serves the demo product/order API together with its
// OpenAPI description. This is the API the natural-language layer drives;
// the strategies load /v3/api-docs from this very server.
package resthttp

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nlbridge/nlbridge/internal/adapter/outbound/memrepo"
	"github.com/nlbridge/nlbridge/internal/domain"

	"github.com/gorilla/mux"
)

//go:embed openapi.json
var openAPIDoc []byte

// Handlers holds the store dependencies for the REST routes.
type Handlers struct {
	products *memrepo.ProductStore
	orders   *memrepo.OrderStore
	logger   *slog.Logger
}

// NewHandlers creates the REST handler set.
func NewHandlers(products *memrepo.ProductStore, orders *memrepo.OrderStore, logger *slog.Logger) *Handlers {
	return &Handlers{
		products: products,
		orders:   orders,
		logger:   logger.With("component", "resthttp_handler"),
	}
}

// Register mounts every route on the given router.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/v3/api-docs", h.handleAPIDocs).Methods(http.MethodGet)

	r.HandleFunc("/api/products", h.handleListProducts).Methods(http.MethodGet)
	r.HandleFunc("/api/products", h.handleCreateProduct).Methods(http.MethodPost)
	r.HandleFunc("/api/products/search", h.handleSearchProducts).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{id}", h.handleGetProduct).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{id}", h.handleUpdateProduct).Methods(http.MethodPut)
	r.HandleFunc("/api/products/{id}", h.handleDeleteProduct).Methods(http.MethodDelete)

	r.HandleFunc("/api/orders", h.handleListOrders).Methods(http.MethodGet)
	r.HandleFunc("/api/orders", h.handleCreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/api/orders/{id}", h.handleGetOrder).Methods(http.MethodGet)
	r.HandleFunc("/api/orders/{id}/status", h.handleUpdateOrderStatus).Methods(http.MethodPatch)
	r.HandleFunc("/api/orders/{id}", h.handleDeleteOrder).Methods(http.MethodDelete)
}

func (h *Handlers) handleAPIDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(openAPIDoc)
}

func (h *Handlers) handleListProducts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.products.List())
}

func (h *Handlers) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, found := h.products.Find(id)
	if !found {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, h.products.Search(name))
}

func (h *Handlers) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, h.products.Create(p))
}

func (h *Handlers) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	updated, found := h.products.Update(id, p)
	if !found {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !h.products.Delete(id) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleListOrders(w http.ResponseWriter, r *http.Request) {
	var customerID int64
	if raw := r.URL.Query().Get("customerId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "customerId must be an integer")
			return
		}
		customerID = parsed
	}
	status := r.URL.Query().Get("status")
	writeJSON(w, http.StatusOK, h.orders.List(customerID, status))
}

func (h *Handlers) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, found := h.orders.Find(id)
	if !found {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var o domain.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if o.Status == "" {
		o.Status = "pending"
	}
	writeJSON(w, http.StatusCreated, h.orders.Create(o))
}

func (h *Handlers) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		writeError(w, http.StatusBadRequest, "status query parameter is required")
		return
	}
	o, found := h.orders.UpdateStatus(id, status)
	if !found {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !h.orders.Delete(id) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
