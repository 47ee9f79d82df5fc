// Package ledger keeps each child's append-only history of signed point
// deltas. A child's balance is the balance_after of their newest entry.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

// Store is the persistence the ledger needs. *store.LedgerStore satisfies it.
type Store interface {
	Latest(ctx context.Context, childID int64) (*model.LedgerEntry, error)
	Insert(ctx context.Context, e model.LedgerEntry) (*model.LedgerEntry, error)
	List(ctx context.Context, childID int64, f model.LedgerFilter) ([]model.LedgerEntry, error)
	Balances(ctx context.Context) ([]model.PointBalance, error)
}

type Ledger struct {
	store Store
	now   func() time.Time
}

// New returns a Ledger over s. When s is bound to a transaction, every Append
// commits or rolls back with it.
func New(s Store, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: s, now: now}
}

// Append records delta for childID and returns the stored entry.
func (l *Ledger) Append(ctx context.Context, childID int64, delta int, reason model.LedgerReason, referenceID *int64, note string) (*model.LedgerEntry, error) {
	if err := checkDelta(delta, reason); err != nil {
		return nil, err
	}

	latest, err := l.store.Latest(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	var balance int
	var seq int64 = 1
	if latest != nil {
		balance = latest.BalanceAfter
		seq = latest.Seq + 1
	}

	if balance+delta < 0 {
		return nil, apperr.New(apperr.ErrInsufficientBalance,
			"not enough points: balance is %d, %d needed", balance, -delta)
	}

	entry, err := l.store.Insert(ctx, model.LedgerEntry{
		ChildID:      childID,
		Seq:          seq,
		Delta:        delta,
		Reason:       reason,
		ReferenceID:  referenceID,
		Note:         note,
		CreatedAt:    l.now().UTC(),
		BalanceAfter: balance + delta,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.New(apperr.ErrConflict, "points changed while saving, try again")
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func checkDelta(delta int, reason model.LedgerReason) error {
	if !reason.Valid() {
		return apperr.Validation("unknown ledger reason %q", reason)
	}
	if delta == 0 {
		return apperr.Validation("point change must not be zero")
	}
	switch reason {
	case model.ReasonTaskAward, model.ReasonRedemptionRefund:
		if delta < 0 {
			return apperr.Validation("%s must add points", reason)
		}
	case model.ReasonRedemptionSpend:
		if delta > 0 {
			return apperr.Validation("%s must remove points", reason)
		}
	}
	return nil
}

// BalanceOf returns the child's current balance, 0 for an empty history.
func (l *Ledger) BalanceOf(ctx context.Context, childID int64) (int, error) {
	latest, err := l.store.Latest(ctx, childID)
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	if latest == nil {
		return 0, nil
	}
	return latest.BalanceAfter, nil
}

func (l *Ledger) HistoryOf(ctx context.Context, childID int64, f model.LedgerFilter) ([]model.LedgerEntry, error) {
	if f.Limit < 0 {
		return nil, apperr.Validation("limit must not be negative")
	}
	if f.Since != nil && f.Until != nil && f.Until.Before(*f.Since) {
		return nil, apperr.Validation("until is before since")
	}
	return l.store.List(ctx, childID, f)
}

// Balances returns every active child's balance, highest first.
func (l *Ledger) Balances(ctx context.Context) ([]model.PointBalance, error) {
	return l.store.Balances(ctx)
}

// Reconciliation compares the cached balance with one derived from deltas.
type Reconciliation struct {
	ChildID int64 `json:"child_id"`
	Cached  int   `json:"cached"`
	Derived int   `json:"derived"`
	Entries int   `json:"entries"`
}

// Reconcile walks the child's history oldest first, summing deltas and
// checking every entry's seq and balance_after against the running total.
// A broken chain returns ErrCorruptLedger.
func (l *Ledger) Reconcile(ctx context.Context, childID int64) (*Reconciliation, error) {
	entries, err := l.store.List(ctx, childID, model.LedgerFilter{Order: model.OldestFirst})
	if err != nil {
		return nil, err
	}

	r := &Reconciliation{ChildID: childID, Entries: len(entries)}
	for i, e := range entries {
		r.Derived += e.Delta
		if e.Seq != int64(i+1) {
			return r, apperr.New(apperr.ErrCorruptLedger, "entry %d has seq %d, want %d", e.ID, e.Seq, i+1)
		}
		if e.BalanceAfter != r.Derived {
			return r, apperr.New(apperr.ErrCorruptLedger, "entry %d has balance_after %d, derived %d", e.ID, e.BalanceAfter, r.Derived)
		}
		r.Cached = e.BalanceAfter
	}
	return r, nil
}
