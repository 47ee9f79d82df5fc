package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/orchestrator"
)

type PointsHandler struct {
	svc    *orchestrator.Orchestrator
	logger *slog.Logger
}

func NewPointsHandler(svc *orchestrator.Orchestrator, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{svc: svc, logger: logger}
}

func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	balance, err := h.svc.Balance(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"member_id": id, "balance": balance})
}

// History serves the child's ledger. Query parameters: order (newest or
// oldest), reason (comma-separated), since and until (RFC 3339), before and
// after (seq cursors) and limit.
func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	f, err := parseLedgerFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entries, err := h.svc.History(r.Context(), id, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(entries))
}

func (h *PointsHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req orchestrator.AdjustInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.ChildID = id

	entry, err := h.svc.AdjustPoints(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *PointsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	balances, err := h.svc.Leaderboard(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(balances))
}

// Reconcile reports whether the cached balance agrees with the history. A
// mismatch is still a 200; the body carries consistent=false.
func (h *PointsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	rec, err := h.svc.Reconcile(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"consistent": true, "reconciliation": rec})
	case apperr.KindOf(err) == apperr.ErrCorruptLedger && rec != nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"consistent":     false,
			"reconciliation": rec,
			"error":          apperr.Message(err),
		})
	default:
		writeError(w, r, h.logger, err)
	}
}

func parseLedgerFilter(q url.Values) (model.LedgerFilter, error) {
	var f model.LedgerFilter

	switch q.Get("order") {
	case "", "newest":
	case "oldest":
		f.Order = model.OldestFirst
	default:
		return f, apperr.Validation("order must be newest or oldest")
	}

	if v := q.Get("reason"); v != "" {
		for _, s := range strings.Split(v, ",") {
			reason := model.LedgerReason(strings.TrimSpace(s))
			if !reason.Valid() {
				return f, apperr.Validation("unknown reason %q", reason)
			}
			f.Reasons = append(f.Reasons, reason)
		}
	}

	var err error
	if f.Since, err = parseTimeParam(q, "since"); err != nil {
		return f, err
	}
	if f.Until, err = parseTimeParam(q, "until"); err != nil {
		return f, err
	}
	if f.BeforeSeq, err = parseIntParam(q, "before"); err != nil {
		return f, err
	}
	if f.AfterSeq, err = parseIntParam(q, "after"); err != nil {
		return f, err
	}
	limit, err := parseIntParam(q, "limit")
	if err != nil {
		return f, err
	}
	f.Limit = int(limit)
	return f, nil
}

func parseTimeParam(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperr.Validation("%s must be an RFC 3339 timestamp", name)
	}
	return &t, nil
}

func parseIntParam(q url.Values, name string) (int64, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	return n, nil
}
