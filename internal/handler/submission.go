package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/judgehub/internal/apperror"
	"github.com/sakif/judgehub/internal/auth"
	"github.com/sakif/judgehub/internal/judge"
	"github.com/sakif/judgehub/internal/model"
	"github.com/sakif/judgehub/internal/service"
)

type SubmissionService interface {
	Submit(ctx context.Context, userID, problemID string, in service.SubmitInput) (*model.Submission, error)
	Run(ctx context.Context, problemID string, in service.SubmitInput) (*judge.Verdict, error)
	Get(ctx context.Context, id, viewerID string) (*model.Submission, error)
	List(ctx context.Context, f service.SubmissionFilter) ([]model.Submission, error)
}

// RunResponse is the verdict of a sample run.
type RunResponse struct {
	Status       judge.VerdictStatus `json:"status"`
	Passed       int                 `json:"passed"`
	Total        int                 `json:"total"`
	RuntimeMS    int64               `json:"runtimeMs"`
	MemoryKB     int64               `json:"memoryKb"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
}

type SubmissionHandler struct {
	svc    SubmissionService
	logger *slog.Logger
}

func NewSubmissionHandler(svc SubmissionService, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, logger: logger}
}

// HandleSubmit judges against every test case and stores the result.
//
// HTTP: POST /api/problems/{id}/submissions
// Response: 201 with the stored submission, 503 if the judge is down.
func (h *SubmissionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var in service.SubmitInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.svc.Submit(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		logFailure(h.logger, "submission failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// HandleRun judges against the sample cases without storing anything.
//
// HTTP: POST /api/problems/{id}/run
func (h *SubmissionHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var in service.SubmitInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	v, err := h.svc.Run(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		logFailure(h.logger, "sample run failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{
		Status:       v.Status,
		Passed:       v.Passed,
		Total:        v.Total,
		RuntimeMS:    v.RuntimeMS(),
		MemoryKB:     v.MemoryKB,
		ErrorMessage: v.ErrorMessage,
	})
}

// HandleGet: GET /api/submissions/{id}. Source is included for the
// submitter only.
func (h *SubmissionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	sub, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), viewerID)
	if err != nil {
		logFailure(h.logger, "getting submission failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// HandleList: GET /api/submissions?problemId=&mine=true&limit=&offset=
func (h *SubmissionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pageParams(r)
	f := service.SubmissionFilter{ProblemID: q.Get("problemId"), Limit: limit, Offset: offset}

	if raw := q.Get("mine"); raw != "" {
		mine, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, apperror.ValidationFailed("mine", "mine must be true or false"))
			return
		}
		if mine {
			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				writeError(w, apperror.Unauthorized("sign in to list your own submissions"))
				return
			}
			f.UserID = userID
		}
	}

	subs, err := h.svc.List(r.Context(), f)
	if err != nil {
		logFailure(h.logger, "listing submissions failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, subs)
}
