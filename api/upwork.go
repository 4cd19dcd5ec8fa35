package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/internal/scrape"
)

const redacted = "********"

type UpworkHandler struct {
	svc *scrape.Service
}

func NewUpworkHandler(svc *scrape.Service) *UpworkHandler {
	return &UpworkHandler{svc: svc}
}

type credentialRequest struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// redactCredential hides the stored password.
func redactCredential(c models.Credential) models.Credential {
	if c.Key == "password" {
		c.Value = redacted
	}
	return c
}

// redactJob hides the password embedded in the job input.
func redactJob(j models.ScrapeJob) models.ScrapeJob {
	j.Input = scrape.Redact(j.Input)
	return j
}

func (h *UpworkHandler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.svc.ListCredentials(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range creds {
		creds[i] = redactCredential(creds[i])
	}
	writeJSON(w, creds, http.StatusOK)
}

// UpsertCredential answers 201 for a new key and 200 for an update.
func (h *UpworkHandler) UpsertCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, created, err := h.svc.UpsertCredential(r.Context(), req.Key, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, redactCredential(*c), status)
}

// DeleteCredential takes the key from the body or the ?key= query parameter.
func (h *UpworkHandler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		var req credentialRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		key = req.Key
	}
	if err := h.svc.DeleteCredential(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}
	writeDetail(w, http.StatusOK, "Credential deleted.")
}

type submitRequest struct {
	JSONInput map[string]any `json:"jsonInput"`
}

func (h *UpworkHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.svc.Submit(r.Context(), req.JSONInput)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, redactJob(*job), http.StatusCreated)
}

// ListJobs serves both /upwork/jobs/ and /upwork/jobs/{status}/.
func (h *UpworkHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.ListJobs(r.Context(), mux.Vars(r)["status"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range jobs {
		jobs[i] = redactJob(jobs[i])
	}
	writeJSON(w, jobs, http.StatusOK)
}

func (h *UpworkHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.svc.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, redactJob(*job), http.StatusOK)
}

func (h *UpworkHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "job_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.svc.Results(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *UpworkHandler) Logs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "job_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.svc.Logs(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusOK)
}
