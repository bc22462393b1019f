package operator

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

// Handler exposes operator configuration over HTTP for the admin surface.
type Handler struct {
	store  Store
	logger *logging.Logger
}

// NewHandler creates a config handler backed by store.
func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes returns the operator admin routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateOperator)
	r.Get("/{operatorID}/config", h.GetConfig)
	r.Put("/{operatorID}/config", h.UpdateConfig)
	return r
}

// CreateOperator registers a new operator with a generated id.
// POST /admin/operators
func (h *Handler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var cfg Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := NewID()
	if err := h.store.Put(r.Context(), id, &cfg); err != nil {
		h.writeStoreError(w, id, err)
		return
	}
	h.logger.Info("operator created", "operator_id", id, "business_name", cfg.BusinessName)
	writeJSON(w, http.StatusCreated, &cfg)
}

// GetConfig returns the stored configuration.
// GET /admin/operators/{operatorID}/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "operatorID")
	cfg, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfig replaces the configuration for an existing operator.
// PUT /admin/operators/{operatorID}/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "operatorID")
	if _, err := h.store.Get(r.Context(), id); err != nil {
		h.writeStoreError(w, id, err)
		return
	}
	var cfg Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.store.Put(r.Context(), id, &cfg); err != nil {
		h.writeStoreError(w, id, err)
		return
	}
	h.logger.Info("operator config updated", "operator_id", id)
	writeJSON(w, http.StatusOK, &cfg)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "operator not found")
	case errors.Is(err, ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("operator store failure", "operator_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
