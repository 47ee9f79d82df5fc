package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/orchestrator"
)

type TaskHandler struct {
	svc    *orchestrator.Orchestrator
	logger *slog.Logger
}

func NewTaskHandler(svc *orchestrator.Orchestrator, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.Tasks(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(tasks))
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.TaskInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	task, err := h.svc.CreateTask(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req orchestrator.TaskInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	task, err := h.svc.UpdateTask(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete archives the task and its live assignments.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.ArchiveTask(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req orchestrator.AssignInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.TaskID = id

	created, err := h.svc.AssignTaskToChildren(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type AssignmentHandler struct {
	svc    *orchestrator.Orchestrator
	logger *slog.Logger
}

func NewAssignmentHandler(svc *orchestrator.Orchestrator, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{svc: svc, logger: logger}
}

func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.Assignment(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListForChild serves GET /api/members/{id}/assignments. An optional
// comma-separated status query narrows the list.
func (h *AssignmentHandler) ListForChild(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var statuses []model.AssignmentStatus
	if v := r.URL.Query().Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			statuses = append(statuses, model.AssignmentStatus(strings.TrimSpace(s)))
		}
	}

	views, err := h.svc.AssignmentsForChild(r.Context(), id, statuses...)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(views))
}

func (h *AssignmentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req orchestrator.SubmitInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.AssignmentID = id

	a, err := h.svc.SubmitAssignment(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AssignmentHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req orchestrator.ReviewAssignmentInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.AssignmentID = id

	a, err := h.svc.ReviewAssignment(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AssignmentHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	a, err := h.svc.ArchiveAssignment(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
