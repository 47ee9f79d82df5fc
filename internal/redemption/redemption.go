// Package redemption runs the reward redemption lifecycle:
//
//	pending -> approved | denied | cancelled
//
// Points are checked when a child asks and deducted only when a parent
// approves. The approve path writes the ledger, the inventory and the
// redemption row, so it must run inside one transaction.
package redemption

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
)

// Store is satisfied by *store.RedemptionStore.
type Store interface {
	Create(ctx context.Context, rewardID, childID int64, pointsSnapshot int, requestedAt time.Time) (*model.Redemption, error)
	GetByID(ctx context.Context, id int64) (*model.Redemption, error)
	Resolve(ctx context.Context, id int64, to model.RedemptionStatus, notes string, at time.Time) (bool, error)
	MarkRefunded(ctx context.Context, id int64, at time.Time) (bool, error)
}

type RewardGetter interface {
	GetByID(ctx context.Context, id int64) (*model.Reward, error)
}

type MemberGetter interface {
	GetByID(ctx context.Context, id int64) (*model.FamilyMember, error)
}

// Points is satisfied by *ledger.Ledger.
type Points interface {
	BalanceOf(ctx context.Context, childID int64) (int, error)
	Append(ctx context.Context, childID int64, delta int, reason model.LedgerReason, referenceID *int64, note string) (*model.LedgerEntry, error)
}

// Stock is satisfied by *inventory.Inventory.
type Stock interface {
	Remaining(ctx context.Context, rewardID int64) (int, error)
	IncrementRedeemed(ctx context.Context, rewardID int64) error
}

type Machine struct {
	redemptions Store
	rewards     RewardGetter
	members     MemberGetter
	points      Points
	stock       Stock
	now         func() time.Time
}

func New(redemptions Store, rewards RewardGetter, members MemberGetter, points Points, stock Stock, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{
		redemptions: redemptions,
		rewards:     rewards,
		members:     members,
		points:      points,
		stock:       stock,
		now:         now,
	}
}

func (m *Machine) Get(ctx context.Context, id int64) (*model.Redemption, error) {
	r, err := m.redemptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("redemption %d not found", id)
	}
	return r, nil
}

// Request opens a pending redemption at the reward's current price. Nothing
// is written when any precondition fails.
func (m *Machine) Request(ctx context.Context, childID, rewardID int64) (*model.Redemption, error) {
	child, err := m.members.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if !child.IsChild() {
		return nil, apperr.NotFound("child %d not found", childID)
	}

	reward, err := m.rewards.GetByID(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return nil, apperr.NotFound("reward %d not found", rewardID)
	}
	if reward.Status != model.RewardAvailable {
		return nil, apperr.New(apperr.ErrRewardUnavailable, "%q is not offered right now", reward.Title)
	}

	remaining, err := m.stock.Remaining(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		return nil, apperr.New(apperr.ErrOutOfStock, "%q is out of stock", reward.Title)
	}

	balance, err := m.points.BalanceOf(ctx, childID)
	if err != nil {
		return nil, err
	}
	if balance < reward.PointsRequired {
		return nil, apperr.New(apperr.ErrInsufficientPoints,
			"not enough points: %q costs %d, balance is %d", reward.Title, reward.PointsRequired, balance)
	}

	return m.redemptions.Create(ctx, rewardID, childID, reward.PointsRequired, m.now().UTC())
}

// Approve charges the snapshot price and takes one unit of stock. Balance and
// stock are re-checked here since either may have changed since the request.
func (m *Machine) Approve(ctx context.Context, id int64) (*model.Redemption, error) {
	r, err := m.pending(ctx, id)
	if err != nil {
		return nil, err
	}

	remaining, err := m.stock.Remaining(ctx, r.RewardID)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		return nil, apperr.New(apperr.ErrOutOfStock, "reward is out of stock")
	}

	if r.PointsRequiredSnapshot > 0 {
		ref := r.ID
		if _, err := m.points.Append(ctx, r.ChildID, -r.PointsRequiredSnapshot, model.ReasonRedemptionSpend, &ref, ""); err != nil {
			return nil, fmt.Errorf("charge points: %w", err)
		}
	}
	if err := m.stock.IncrementRedeemed(ctx, r.RewardID); err != nil {
		return nil, err
	}

	return m.resolve(ctx, id, model.RedemptionApproved, "")
}

func (m *Machine) Deny(ctx context.Context, id int64, reason string) (*model.Redemption, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("a reason is required when denying")
	}
	if _, err := m.pending(ctx, id); err != nil {
		return nil, err
	}
	return m.resolve(ctx, id, model.RedemptionDenied, reason)
}

// Cancel withdraws a pending request. Only the requesting child may cancel.
func (m *Machine) Cancel(ctx context.Context, id, childID int64) (*model.Redemption, error) {
	r, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.ChildID != childID {
		return nil, apperr.Validation("only the requesting child can cancel")
	}
	if r.Status != model.RedemptionPending {
		return nil, apperr.InvalidState("redemption is already %s", r.Status)
	}
	return m.resolve(ctx, id, model.RedemptionCancelled, "")
}

// Refund returns the charged points of an approved redemption. A redemption
// can be refunded once; its status stays approved.
func (m *Machine) Refund(ctx context.Context, id int64, note string) (*model.Redemption, error) {
	r, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.RedemptionApproved {
		return nil, apperr.InvalidState("only approved redemptions can be refunded, this one is %s", r.Status)
	}
	if r.RefundedAt != nil {
		return nil, apperr.InvalidState("redemption was already refunded")
	}

	ok, err := m.redemptions.MarkRefunded(ctx, id, m.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, alreadyChanged()
	}

	if r.PointsRequiredSnapshot > 0 {
		ref := r.ID
		if _, err := m.points.Append(ctx, r.ChildID, r.PointsRequiredSnapshot, model.ReasonRedemptionRefund, &ref, strings.TrimSpace(note)); err != nil {
			return nil, fmt.Errorf("refund points: %w", err)
		}
	}
	return m.Get(ctx, id)
}

func (m *Machine) pending(ctx context.Context, id int64) (*model.Redemption, error) {
	r, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.RedemptionPending {
		return nil, apperr.InvalidState("redemption is already %s", r.Status)
	}
	return r, nil
}

func (m *Machine) resolve(ctx context.Context, id int64, to model.RedemptionStatus, notes string) (*model.Redemption, error) {
	ok, err := m.redemptions.Resolve(ctx, id, to, notes, m.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, alreadyChanged()
	}
	return m.Get(ctx, id)
}

func alreadyChanged() error {
	return apperr.InvalidState("redemption was changed by someone else, reload and try again")
}
