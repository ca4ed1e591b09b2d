package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/sports-intake/internal/intake"
	"github.com/sells-group/sports-intake/internal/model"
)

// CreateSubmission accepts a multipart upload and starts extraction.
// POST /v1/submissions
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	extract := true
	if v := r.FormValue("extract"); v != "" {
		if extract, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "extract must be a boolean")
			return
		}
	}

	sub, err := h.svc.Create(r.Context(), actorFrom(r.Context()), intake.CreateRequest{
		Kind:      model.Kind(strings.TrimSpace(r.FormValue("kind"))),
		Filename:  header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Artifact:  data,
		Hints: model.Hints{
			Sport:  strings.TrimSpace(r.FormValue("sport")),
			Gender: strings.TrimSpace(r.FormValue("gender")),
			Season: strings.TrimSpace(r.FormValue("season")),
			School: strings.TrimSpace(r.FormValue("school")),
			City:   strings.TrimSpace(r.FormValue("city")),
		},
		Extract: extract,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

// ListSubmissions lists submissions visible to the caller.
// GET /v1/submissions?status=completed&kind=roster&limit=50&offset=0
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.SubmissionFilter{
		OwnerID: q.Get("owner"),
		Status:  model.Status(q.Get("status")),
		Kind:    model.Kind(q.Get("kind")),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	subs, err := h.svc.List(r.Context(), actorFrom(r.Context()), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetSubmission returns status, draft and findings.
// GET /v1/submissions/{id}
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Get(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// PatchSubmission corrects the draft. The body is a JSON merge patch unless
// replace=true.
// PATCH /v1/submissions/{id}
func (h *Handler) PatchSubmission(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))
	sub, err := h.svc.Patch(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), body, replace)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// RequestExtraction re-runs extraction for a draft or failed submission.
// POST /v1/submissions/{id}/extract
func (h *Handler) RequestExtraction(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.RequestExtraction(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

type overrideRequest struct {
	Reason string `json:"reason"`
}

// OverrideFinding accepts a flagged issue with a reason.
// POST /v1/submissions/{id}/findings/{findingID}/override
func (h *Handler) OverrideFinding(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f, err := h.svc.OverrideFinding(r.Context(), actorFrom(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "findingID"), req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Confirm commits a schedule or roster.
// POST /v1/submissions/{id}/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	sum, err := h.svc.Confirm(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Approve commits a score sheet as a final game.
// POST /v1/submissions/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Approve(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Reject discards a submission.
// POST /v1/submissions/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reject(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSubmission removes a submission in any state.
// DELETE /v1/submissions/{id}
func (h *Handler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const maxJSONBody = 4 << 20

// readBody returns the raw JSON body, which may be empty.
func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	if len(strings.TrimSpace(string(data))) > 0 && !json.Valid(data) {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return nil, false
	}
	return data, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid")
	}
	return n, nil
}
