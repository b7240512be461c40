// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/datasieve/datasieve/internal/api/types"
	"github.com/datasieve/datasieve/internal/broker"
	"github.com/datasieve/datasieve/internal/metrics"
	"github.com/datasieve/datasieve/internal/registry"
	"github.com/datasieve/datasieve/internal/storage"
)

// maxSchemaBody bounds the accepted schema document size.
const maxSchemaBody = 1 << 20

// Handler provides HTTP handlers for the control plane.
type Handler struct {
	registry *registry.Registry
	metrics  *metrics.Metrics
}

// New creates a new Handler.
func New(reg *registry.Registry, m *metrics.Metrics) *Handler {
	return &Handler{registry: reg, metrics: m}
}

// HealthCheck handles GET /
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// Hello handles GET /hello
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: "endpoint working"})
}

// Echo handles POST /echo, returning the JSON body unchanged.
func (h *Handler) Echo(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidRequest, "body must be a JSON object")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// CreateSchema handles PUT /schema. The body is the schema document itself;
// the namespace comes from the document's namespace attribute.
func (h *Handler) CreateSchema(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSchemaBody))
	if err != nil {
		writeError(w, http.StatusInternalServerError, types.ErrorCodeInternalServerError, "failed to read request body")
		return
	}

	var envelope struct {
		Namespace string `json:"namespace"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidSchema, "body must be a JSON schema document")
		return
	}
	if envelope.Namespace == "" {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidSchema, "schema document must declare a namespace")
		return
	}

	id, err := h.registry.CreateSchema(r.Context(), envelope.Namespace, body)
	if err != nil {
		h.metrics.RecordSchemaRegistration(false)
		switch {
		case errors.Is(err, registry.ErrInvalidSchema):
			writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidSchema, err.Error())
		case errors.Is(err, storage.ErrConnection):
			writeError(w, http.StatusInternalServerError, types.ErrorCodeStorageError, "storage connection error")
		default:
			writeError(w, http.StatusInternalServerError, types.ErrorCodeInternalServerError, "failed to store schema")
		}
		return
	}

	h.metrics.RecordSchemaRegistration(true)
	writeJSON(w, http.StatusCreated, types.CreateSchemaResponse{
		Message: "schema created",
		ID:      id,
	})
}

// ListSchemas handles GET /schema/all
func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.registry.ListAll(r.Context())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas)
}

// GetSchemasByNamespace handles GET /schema/namespace/{namespace}
func (h *Handler) GetSchemasByNamespace(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	schemas, err := h.registry.GetByNamespace(r.Context(), namespace)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas)
}

// DeleteAllSchemas handles DELETE /schema/all. Responds 201 by convention
// of this API.
func (h *Handler) DeleteAllSchemas(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteAll(r.Context()); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.MessageResponse{Message: "all schemas deleted"})
}

// DeleteSchemasByNamespace handles DELETE /schema/{namespace}. Responds 201
// by convention of this API.
func (h *Handler) DeleteSchemasByNamespace(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	if err := h.registry.DeleteByNamespace(r.Context(), namespace); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.MessageResponse{
		Message: fmt.Sprintf("schemas for namespace %s deleted", namespace),
	})
}

// ScheduleValidation handles POST /job/validate/namespace/{namespace}
func (h *Handler) ScheduleValidation(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	if err := h.registry.ScheduleValidation(r.Context(), namespace); err != nil {
		switch {
		case errors.Is(err, broker.ErrBrokerConnection):
			writeError(w, http.StatusInternalServerError, types.ErrorCodeBrokerError, "broker connection error")
		case errors.Is(err, broker.ErrBrokerSend):
			writeError(w, http.StatusNotFound, types.ErrorCodeBrokerError, "failed to publish job message")
		default:
			writeError(w, http.StatusInternalServerError, types.ErrorCodeInternalServerError, "failed to schedule validation")
		}
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{
		Message: fmt.Sprintf("validation scheduled for namespace %s", namespace),
	})
}

// GetMetrics handles GET /metrics, returning the per-destination move
// totals from storage.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	totals, err := h.registry.Metrics(r.Context())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// writeStorageError maps storage errors to HTTP status codes.
func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrSchemaNotFound):
		writeError(w, http.StatusNotFound, types.ErrorCodeStorageNotFound, "not found")
	case errors.Is(err, storage.ErrConnection):
		writeError(w, http.StatusInternalServerError, types.ErrorCodeStorageError, "storage connection error")
	default:
		writeError(w, http.StatusInternalServerError, types.ErrorCodeInternalServerError, "internal error")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		ErrorCode: code,
		Message:   message,
	})
}
