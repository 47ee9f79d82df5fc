package orchestrator

import (
	"context"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/assignment"
	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/model"
)

// Reads run outside any transaction and never block writers.

func (o *Orchestrator) Members(ctx context.Context) ([]model.FamilyMember, error) {
	return o.db.Stores().Members.List(ctx)
}

func (o *Orchestrator) Tasks(ctx context.Context) ([]model.Task, error) {
	return o.db.Stores().Tasks.List(ctx)
}

func (o *Orchestrator) Rewards(ctx context.Context) ([]model.Reward, error) {
	return o.db.Stores().Rewards.List(ctx)
}

func (o *Orchestrator) Balance(ctx context.Context, childID int64) (int, error) {
	u := o.read()
	if _, err := childOf(ctx, u.stores, childID); err != nil {
		return 0, err
	}
	return u.ledger.BalanceOf(ctx, childID)
}

func (o *Orchestrator) History(ctx context.Context, childID int64, f model.LedgerFilter) ([]model.LedgerEntry, error) {
	u := o.read()
	if _, err := childOf(ctx, u.stores, childID); err != nil {
		return nil, err
	}
	return u.ledger.HistoryOf(ctx, childID, f)
}

func (o *Orchestrator) Leaderboard(ctx context.Context) ([]model.PointBalance, error) {
	return o.read().ledger.Balances(ctx)
}

// Reconcile checks the child's cached balance against its history. A
// mismatch is logged at error level since it means the table was edited
// outside the application.
func (o *Orchestrator) Reconcile(ctx context.Context, childID int64) (*ledger.Reconciliation, error) {
	u := o.read()
	if _, err := childOf(ctx, u.stores, childID); err != nil {
		return nil, err
	}
	r, err := u.ledger.Reconcile(ctx, childID)
	if err != nil && apperr.KindOf(err) == apperr.ErrCorruptLedger {
		o.logger.Error("ledger mismatch", "child_id", childID, "cached", r.Cached, "derived", r.Derived, "error", err)
	}
	return r, err
}

func (o *Orchestrator) Assignment(ctx context.Context, id int64) (*assignment.View, error) {
	a, err := o.read().assignments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := assignment.Project(*a, o.now())
	return &v, nil
}

func (o *Orchestrator) AssignmentsForChild(ctx context.Context, childID int64, statuses ...model.AssignmentStatus) ([]assignment.View, error) {
	for _, s := range statuses {
		if !s.Valid() {
			return nil, apperr.Validation("unknown assignment status %q", s)
		}
	}
	u := o.read()
	if _, err := childOf(ctx, u.stores, childID); err != nil {
		return nil, err
	}
	list, err := u.stores.Assignments.ListByChild(ctx, childID, statuses...)
	if err != nil {
		return nil, err
	}
	return assignment.ProjectAll(list, o.now()), nil
}

func (o *Orchestrator) Redemption(ctx context.Context, id int64) (*model.Redemption, error) {
	return o.read().redemptions.Get(ctx, id)
}

func (o *Orchestrator) RedemptionsForChild(ctx context.Context, childID int64) ([]model.Redemption, error) {
	u := o.read()
	if _, err := childOf(ctx, u.stores, childID); err != nil {
		return nil, err
	}
	return u.stores.Redemptions.ListByChild(ctx, childID)
}

// PendingRedemptions is the parents' review queue, oldest request first.
func (o *Orchestrator) PendingRedemptions(ctx context.Context) ([]model.Redemption, error) {
	return o.db.Stores().Redemptions.ListByStatus(ctx, model.RedemptionPending)
}

func (o *Orchestrator) Inventory(ctx context.Context, rewardID int64) (*model.RewardInventory, error) {
	return o.read().inventory.Get(ctx, rewardID)
}
