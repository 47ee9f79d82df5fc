package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/choreledger/internal/orchestrator"
)

type RewardHandler struct {
	svc    *orchestrator.Orchestrator
	logger *slog.Logger
}

func NewRewardHandler(svc *orchestrator.Orchestrator, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{svc: svc, logger: logger}
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.svc.Rewards(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(rewards))
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.RewardInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	reward, err := h.svc.CreateReward(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req orchestrator.RewardInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	reward, err := h.svc.UpdateReward(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inv, err := h.svc.Inventory(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *RewardHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req struct {
		QuantityAvailable int `json:"quantity_available"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	inv, err := h.svc.SetRewardStock(r.Context(), id, req.QuantityAvailable)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// Redeem serves POST /api/rewards/{id}/redemptions with {"child_id"}.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req orchestrator.RequestRedemptionInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.RewardID = id

	red, err := h.svc.RequestRedemption(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, red)
}

type RedemptionHandler struct {
	svc    *orchestrator.Orchestrator
	logger *slog.Logger
}

func NewRedemptionHandler(svc *orchestrator.Orchestrator, logger *slog.Logger) *RedemptionHandler {
	return &RedemptionHandler{svc: svc, logger: logger}
}

func (h *RedemptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	red, err := h.svc.Redemption(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, red)
}

func (h *RedemptionHandler) Pending(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.PendingRedemptions(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *RedemptionHandler) ListForChild(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.svc.RedemptionsForChild(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *RedemptionHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req orchestrator.ReviewRedemptionInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.RedemptionID = id

	red, err := h.svc.ReviewRedemption(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, red)
}

func (h *RedemptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req struct {
		ChildID int64 `json:"child_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	red, err := h.svc.CancelRedemption(r.Context(), id, req.ChildID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, red)
}

func (h *RedemptionHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	red, err := h.svc.RefundRedemption(r.Context(), id, req.Note)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, red)
}
