package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/choreledger/internal/orchestrator"
)

type MemberHandler struct {
	svc    *orchestrator.Orchestrator
	logger *slog.Logger
}

func NewMemberHandler(svc *orchestrator.Orchestrator, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{svc: svc, logger: logger}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Members(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(members))
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.MemberInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	member, err := h.svc.AddFamilyMember(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// Delete deactivates the member; history stays.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.RemoveFamilyMember(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
