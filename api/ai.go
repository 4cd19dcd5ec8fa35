package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/leadscout/internal/ai"
	"github.com/garnizeh/leadscout/internal/apperr"
	"github.com/garnizeh/leadscout/internal/validation"
	"github.com/garnizeh/leadscout/pkg/repository"
)

// AIHandler serves prompt forwarding and the schema/template admin endpoints.
type AIHandler struct {
	svc          *ai.Service
	schemaRepo   repository.SchemaRepo
	templateRepo repository.TemplateRepo
}

func NewAIHandler(svc *ai.Service, schemaRepo repository.SchemaRepo, templateRepo repository.TemplateRepo) *AIHandler {
	return &AIHandler{svc: svc, schemaRepo: schemaRepo, templateRepo: templateRepo}
}

// Prompt forwards a prompt to a provider and returns the first completion.
func (h *AIHandler) Prompt(w http.ResponseWriter, r *http.Request) {
	var req ai.PromptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.svc.Prompt(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{
		"provider": resp.Provider,
		"model":    resp.Model,
		"text":     resp.Text,
	}, http.StatusOK)
}

func (h *AIHandler) ReloadSchemas(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Schemas().Reload(r.Context()); err != nil {
		writeError(w, r, apperr.Wrap(apperr.ErrInternal, "Failed to reload schemas.", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AIHandler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	rows, err := h.schemaRepo.ListSchemas(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, rows, http.StatusOK)
}

type schemaPayload struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Version     string          `json:"version" validate:"required,max=20"`
	Description string          `json:"description,omitempty" validate:"max=500"`
	SchemaJSON  json.RawMessage `json:"schema_json" validate:"required"`
}

// CreateSchema compiles and stores a schema, then refreshes the cache so
// validations pick it up at once.
// Seeded rows the services load at fixed versions. Admins add new versions
// instead of editing these.
var (
	builtinSchemas   = map[string]bool{"scrape_input/v1": true, "ai_questions/v1": true}
	builtinTemplates = map[string]bool{"ai_questions/v1": true, "report/v1": true, "job_summary/v1": true, "lead_message/v1": true}

	errBuiltinSchema   = apperr.New(apperr.ErrForbidden, "Built-in schemas cannot be modified.")
	errBuiltinTemplate = apperr.New(apperr.ErrForbidden, "Built-in templates cannot be modified.")
)

func (h *AIHandler) CreateSchema(w http.ResponseWriter, r *http.Request) {
	var p schemaPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(p); err != nil {
		writeError(w, r, err)
		return
	}
	if builtinSchemas[p.Name+"/"+p.Version] {
		writeError(w, r, errBuiltinSchema)
		return
	}
	if _, err := ai.Compile(string(p.SchemaJSON)); err != nil {
		writeError(w, r, apperr.Validation("Invalid schema.", map[string]string{"schema_json": err.Error()}))
		return
	}

	ctx := r.Context()
	if _, err := h.schemaRepo.CreateSchema(ctx, p.Name, p.Version, p.Description, string(p.SchemaJSON)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Schemas().Reload(ctx); err != nil {
		logger.Warn("schema stored but reload failed", slog.String("name", p.Name), slog.Any("err", err))
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AIHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s, err := h.schemaRepo.GetSchema(r.Context(), vars["name"], vars["version"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s == nil {
		writeDetail(w, http.StatusNotFound, "Schema not found.")
		return
	}

	writeJSON(w, s, http.StatusOK)
}

func (h *AIHandler) DeleteSchema(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if builtinSchemas[vars["name"]+"/"+vars["version"]] {
		writeError(w, r, errBuiltinSchema)
		return
	}
	ctx := r.Context()
	if err := h.schemaRepo.DeleteSchema(ctx, vars["name"], vars["version"]); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Schemas().Reload(ctx); err != nil {
		logger.Warn("schema deleted but reload failed", slog.String("name", vars["name"]), slog.Any("err", err))
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AIHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	rows, err := h.templateRepo.ListTemplates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, rows, http.StatusOK)
}

type templatePayload struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Version     string  `json:"version" validate:"required,max=20"`
	TemplateTxt string  `json:"template_text" validate:"required,max=65536"`
	SchemaName  *string `json:"schema_name,omitempty"`
}

// CreateTemplate stores a template after checking it parses.
func (h *AIHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var p templatePayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(p); err != nil {
		writeError(w, r, err)
		return
	}
	if builtinTemplates[p.Name+"/"+p.Version] {
		writeError(w, r, errBuiltinTemplate)
		return
	}
	if err := ai.CheckTemplate(p.TemplateTxt); err != nil {
		writeError(w, r, apperr.Validation("Invalid template.", map[string]string{"template_text": err.Error()}))
		return
	}

	if _, err := h.templateRepo.CreateTemplate(r.Context(), p.Name, p.Version, p.TemplateTxt, p.SchemaName, nil); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AIHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := h.templateRepo.GetTemplate(r.Context(), vars["name"], vars["version"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if t == nil {
		writeDetail(w, http.StatusNotFound, "Template not found.")
		return
	}

	writeJSON(w, t, http.StatusOK)
}

func (h *AIHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if builtinTemplates[vars["name"]+"/"+vars["version"]] {
		writeError(w, r, errBuiltinTemplate)
		return
	}
	if err := h.templateRepo.DeleteTemplate(r.Context(), vars["name"], vars["version"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
