package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sashu2310/streamgate/internal/manifest"
	"github.com/sashu2310/streamgate/internal/publish"
	"github.com/sashu2310/streamgate/internal/store"
)

const (
	serviceName  = "streamgate-control-plane"
	readyTimeout = 2 * time.Second
)

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	state     *store.State
	publisher *publish.Service
	backend   Pinger
	mux       *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(state *store.State, publisher *publish.Service, backend Pinger) http.Handler {
	h := &Handler{state: state, publisher: publisher, backend: backend, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /{$}", h.health)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)

	h.mux.HandleFunc("GET /rules", h.listRules)
	h.mux.HandleFunc("POST /rules", h.addRule)
	h.mux.HandleFunc("DELETE /rules/{id}", h.deleteRule)
	h.mux.HandleFunc("GET /rule-types", h.listRuleTypes)

	h.mux.HandleFunc("GET /outputs", h.listOutputs)
	h.mux.HandleFunc("POST /outputs", h.addOutput)
	h.mux.HandleFunc("DELETE /outputs", h.clearOutputs)

	h.mux.HandleFunc("GET /settings/batch-size", h.getBatchSize)
	h.mux.HandleFunc("PUT /settings/batch-size", h.setBatchSize)

	h.mux.HandleFunc("POST /publish", h.publish)
	h.mux.HandleFunc("GET /manifest", h.currentManifest)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// GET / — service identity.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the backend does not answer.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := h.backend.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, fmt.Sprintf("backend unreachable: %s", err), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// GET /rules — rules in insertion order.
func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Rules())
}

// POST /rules — add a rule; duplicate ids are rejected.
func (h *Handler) addRule(w http.ResponseWriter, r *http.Request) {
	var rule manifest.ProcessorRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, fmt.Sprintf("invalid JSON: %s", err), nil)
		return
	}
	stored, err := h.state.AddRule(rule)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp := map[string]interface{}{"status": "added", "rule": stored}
	if missing := manifest.MissingParams(stored); len(missing) > 0 {
		resp["missing_params"] = missing
	}
	writeJSON(w, http.StatusCreated, resp)
}

// DELETE /rules/{id}
func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.state.RemoveRule(id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// GET /rule-types — expected params per rule type.
func (h *Handler) listRuleTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, manifest.RuleTypes())
}

func (h *Handler) listOutputs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Outputs())
}

// POST /outputs — add an output; http urls must be unique.
func (h *Handler) addOutput(w http.ResponseWriter, r *http.Request) {
	var out manifest.OutputTarget
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, fmt.Sprintf("invalid JSON: %s", err), nil)
		return
	}
	stored, err := h.state.AddOutput(out)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"status": "added", "output": stored})
}

func (h *Handler) clearOutputs(w http.ResponseWriter, r *http.Request) {
	h.state.ClearOutputs()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type batchSizeBody struct {
	BatchSize *int `json:"batch_size"`
}

func (h *Handler) getBatchSize(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"batch_size": h.state.BatchSize()})
}

// PUT /settings/batch-size — {"batch_size": n}, 1 ≤ n ≤ 10000.
func (h *Handler) setBatchSize(w http.ResponseWriter, r *http.Request) {
	var body batchSizeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, fmt.Sprintf("invalid JSON: %s", err), nil)
		return
	}
	if body.BatchSize == nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "batch_size is required", map[string]string{"field": "batch_size"})
		return
	}
	if err := h.state.SetBatchSize(*body.BatchSize); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "updated", "batch_size": *body.BatchSize})
}

// POST /publish — compile, persist, notify.
// 200 published; 502 degraded (stored, signal failed; body is still the
// result); 503 nothing stored.
func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	res, err := h.publisher.Publish(r.Context())
	var pe *publish.PersistenceError
	var ne *publish.NotificationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.As(err, &ne):
		writeJSON(w, http.StatusBadGateway, struct {
			*publish.Result
			Code string `json:"code"`
		}{res, CodeNotificationFailure})
	case errors.As(err, &pe):
		writeError(w, http.StatusServiceUnavailable, CodePersistenceFailure, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
	}
}

// GET /manifest — the manifest agents currently read from storage.
func (h *Handler) currentManifest(w http.ResponseWriter, r *http.Request) {
	m, err := h.publisher.Current(r.Context())
	var pe *publish.PersistenceError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, m)
	case errors.Is(err, publish.ErrNotPublished):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.As(err, &pe):
		writeError(w, http.StatusServiceUnavailable, CodePersistenceFailure, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
	}
}
