// Package httpapi exposes the registry over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/glimte/protoreg/contracts"
	"github.com/glimte/protoreg/health"
	"github.com/glimte/protoreg/schema"
)

// maxBodyBytes bounds request documents
const maxBodyBytes = 1 << 20

// Registry is the subset of the registry the API serves
type Registry interface {
	List() iter.Seq[string]
	Describe(protocol string) (contracts.ProtocolDefinition, error)
	ExportJSONSchema(protocol string) (json.RawMessage, error)
	ValidateJSONFor(protocol string, data []byte) (*schema.ValidationResult, error)
	NormalizeFor(protocol string, document any) (map[string]any, *schema.ValidationResult, error)
}

type errorBody struct {
	Error string `json:"error"`
}

type normalizeBody struct {
	Document map[string]any          `json:"document"`
	Result   *schema.ValidationResult `json:"result"`
}

type handlers struct {
	registry Registry
	logger   *slog.Logger
}

// NewRouter builds the API routes. A nil health handler leaves /healthz
// unmounted.
func NewRouter(registry Registry, healthHandler *health.Handler, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{registry: registry, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/protocols", func(r chi.Router) {
		r.Get("/", h.listProtocols)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.describeProtocol)
			r.Get("/schema", h.exportSchema)
			r.Post("/validate", h.validateDocument)
			r.Post("/normalize", h.normalizeDocument)
		})
	})
	if healthHandler != nil {
		r.Method(http.MethodGet, "/healthz", healthHandler)
	}
	return r
}

func (h *handlers) listProtocols(w http.ResponseWriter, r *http.Request) {
	protocols := slices.Collect(h.registry.List())
	if protocols == nil {
		protocols = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"protocols": protocols})
}

func (h *handlers) describeProtocol(w http.ResponseWriter, r *http.Request) {
	def, err := h.registry.Describe(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *handlers) exportSchema(w http.ResponseWriter, r *http.Request) {
	doc, err := h.registry.ExportJSONSchema(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (h *handlers) validateDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := h.registry.Describe(name); err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	result, err := h.registry.ValidateJSONFor(name, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Debug("validated document",
		"protocol", name,
		"valid", result.Valid,
		"errors", len(result.Errors),
		"request_id", middleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) normalizeDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := h.registry.Describe(name); err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	doc, err := schema.DecodeJSON(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	normalized, result, err := h.registry.NormalizeFor(name, doc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, normalizeBody{Document: normalized, Result: result})
}

// writeError maps registry errors to status codes. Anything that is not an
// unknown protocol is treated as a malformed request document.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, contracts.ErrUnknownProtocol) {
		status = http.StatusNotFound
	}
	h.logger.Debug("request failed",
		"path", r.URL.Path,
		"status", status,
		"error", err,
		"request_id", middleware.GetReqID(r.Context()))
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
