package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/judgehub/internal/auth"
	"github.com/sakif/judgehub/internal/model"
	"github.com/sakif/judgehub/internal/service"
)

type ProblemService interface {
	Create(ctx context.Context, authorID string, in service.ProblemInput) (*model.Problem, error)
	Get(ctx context.Context, id, viewerID string) (*model.Problem, error)
	List(ctx context.Context, limit, offset int) ([]model.Problem, error)
	Update(ctx context.Context, id, userID string, in service.ProblemInput) (*model.Problem, error)
	Delete(ctx context.Context, id, userID string) error
}

// ProblemHandler serves /api/problems. Reads are public; writes need
// RequireAuth in front of them.
type ProblemHandler struct {
	svc    ProblemService
	logger *slog.Logger
}

func NewProblemHandler(svc ProblemService, logger *slog.Logger) *ProblemHandler {
	return &ProblemHandler{svc: svc, logger: logger}
}

// HandleList: GET /api/problems?limit=&offset=
func (h *ProblemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	problems, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		logFailure(h.logger, "listing problems failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, problems)
}

// HandleGet: GET /api/problems/{id}. Hidden test cases are returned only
// to the problem's author.
func (h *ProblemHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), viewerID)
	if err != nil {
		logFailure(h.logger, "getting problem failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// HandleCreate: POST /api/problems
func (h *ProblemHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var in service.ProblemInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		logFailure(h.logger, "creating problem failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// HandleUpdate: PUT /api/problems/{id}
func (h *ProblemHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var in service.ProblemInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), userID, in)
	if err != nil {
		logFailure(h.logger, "updating problem failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// HandleDelete: DELETE /api/problems/{id}
func (h *ProblemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		logFailure(h.logger, "deleting problem failed", err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
