package redemption

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/database"
	"github.com/dukerupert/choreledger/internal/inventory"
	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

var fixedNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db    *store.DB
	child int64
}

func clock() time.Time { return fixedNow }

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	d := store.NewDB(db)
	child, err := d.Stores().Members.Create(context.Background(), "Alice", model.RoleChild)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return &fixture{db: d, child: child.ID}
}

func machine(s *store.Stores) *Machine {
	return New(s.Redemptions, s.Rewards, s.Members, ledger.New(s.Ledger, clock), inventory.New(s.Rewards), clock)
}

// do runs fn against a machine bound to one transaction.
func (f *fixture) do(fn func(m *Machine) (*model.Redemption, error)) (*model.Redemption, error) {
	var out *model.Redemption
	err := f.db.InTx(context.Background(), func(s *store.Stores) error {
		r, err := fn(machine(s))
		out = r
		return err
	})
	return out, err
}

func (f *fixture) reward(t *testing.T, points, stock int, status model.RewardStatus) *model.Reward {
	t.Helper()
	ctx := context.Background()
	s := f.db.Stores()
	r, err := s.Rewards.Create(ctx, "Movie Night", "", points, status)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if _, err := s.Rewards.CreateInventory(ctx, r.ID, stock); err != nil {
		t.Fatalf("create inventory: %v", err)
	}
	return r
}

func (f *fixture) credit(t *testing.T, childID int64, delta int) {
	t.Helper()
	_, err := ledger.New(f.db.Stores().Ledger, clock).Append(context.Background(), childID, delta, model.ReasonManualAdjustment, nil, "test")
	if err != nil {
		t.Fatalf("credit %d: %v", delta, err)
	}
}

func (f *fixture) balance(t *testing.T) int {
	t.Helper()
	bal, err := ledger.New(f.db.Stores().Ledger, nil).BalanceOf(context.Background(), f.child)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func (f *fixture) remaining(t *testing.T, rewardID int64) int {
	t.Helper()
	n, err := inventory.New(f.db.Stores().Rewards).Remaining(context.Background(), rewardID)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	return n
}

func (f *fixture) request(t *testing.T, rewardID int64) *model.Redemption {
	t.Helper()
	r, err := f.do(func(m *Machine) (*model.Redemption, error) {
		return m.Request(context.Background(), f.child, rewardID)
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return r
}

func TestRequest(t *testing.T) {
	f := setup(t)
	f.credit(t, f.child, 100)
	reward := f.reward(t, 80, 1, model.RewardAvailable)

	r := f.request(t, reward.ID)
	if r.Status != model.RedemptionPending {
		t.Errorf("status = %q, want %q", r.Status, model.RedemptionPending)
	}
	if r.PointsRequiredSnapshot != 80 {
		t.Errorf("snapshot = %d, want 80", r.PointsRequiredSnapshot)
	}
	if !r.RequestedAt.Equal(fixedNow) {
		t.Errorf("requested_at = %v, want %v", r.RequestedAt, fixedNow)
	}

	// Requesting only verifies; nothing is deducted yet.
	if bal := f.balance(t); bal != 100 {
		t.Errorf("balance = %d, want 100", bal)
	}
}

func TestRequestPreconditions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.credit(t, f.child, 50)
	parent, _ := f.db.Stores().Members.Create(ctx, "Dad", model.RoleParent)

	affordable := f.reward(t, 20, 1, model.RewardAvailable)
	pricey := f.reward(t, 60, 1, model.RewardAvailable)
	hidden := f.reward(t, 10, 1, model.RewardUnavailable)
	empty := f.reward(t, 10, 0, model.RewardAvailable)
	// Unavailable wins over out of stock and unaffordable.
	everything := f.reward(t, 500, 0, model.RewardUnavailable)

	tests := []struct {
		name     string
		childID  int64
		rewardID int64
		want     error
	}{
		{"unknown child", 999, affordable.ID, apperr.ErrNotFound},
		{"parent", parent.ID, affordable.ID, apperr.ErrNotFound},
		{"unknown reward", f.child, 999, apperr.ErrNotFound},
		{"unavailable", f.child, hidden.ID, apperr.ErrRewardUnavailable},
		{"out of stock", f.child, empty.ID, apperr.ErrOutOfStock},
		{"too expensive", f.child, pricey.ID, apperr.ErrInsufficientPoints},
		{"check order", f.child, everything.ID, apperr.ErrRewardUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.do(func(m *Machine) (*model.Redemption, error) {
				return m.Request(ctx, tt.childID, tt.rewardID)
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	list, _ := f.db.Stores().Redemptions.ListByChild(ctx, f.child)
	if len(list) != 0 {
		t.Errorf("failed requests created %d redemptions", len(list))
	}
}

func TestApprove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.credit(t, f.child, 100)
	reward := f.reward(t, 80, 2, model.RewardAvailable)
	r := f.request(t, reward.ID)

	got, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Approve(ctx, r.ID) })
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != model.RedemptionApproved || got.ReviewedAt == nil {
		t.Errorf("redemption = %+v", got)
	}
	if bal := f.balance(t); bal != 20 {
		t.Errorf("balance = %d, want 20", bal)
	}
	if n := f.remaining(t, reward.ID); n != 1 {
		t.Errorf("remaining = %d, want 1", n)
	}

	history, _ := ledger.New(f.db.Stores().Ledger, nil).HistoryOf(ctx, f.child, model.LedgerFilter{Reasons: []model.LedgerReason{model.ReasonRedemptionSpend}})
	if len(history) != 1 || history[0].ReferenceID == nil || *history[0].ReferenceID != r.ID {
		t.Errorf("spend entries = %+v", history)
	}

	_, err = f.do(func(m *Machine) (*model.Redemption, error) { return m.Approve(ctx, r.ID) })
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("second approve err = %v, want ErrInvalidState", err)
	}
}

func TestApproveAfterBalanceDrop(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.credit(t, f.child, 100)
	reward := f.reward(t, 80, 1, model.RewardAvailable)
	r := f.request(t, reward.ID)

	f.credit(t, f.child, -50)

	_, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Approve(ctx, r.ID) })
	if !errors.Is(err, apperr.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	got, _ := machine(f.db.Stores()).Get(ctx, r.ID)
	if got.Status != model.RedemptionPending {
		t.Errorf("status = %q, want %q", got.Status, model.RedemptionPending)
	}
	if n := f.remaining(t, reward.ID); n != 1 {
		t.Errorf("remaining = %d, want 1", n)
	}
	if bal := f.balance(t); bal != 50 {
		t.Errorf("balance = %d, want 50", bal)
	}
}

func TestApproveOutOfStockRollsBackCharge(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.credit(t, f.child, 100)
	reward := f.reward(t, 30, 1, model.RewardAvailable)
	first := f.request(t, reward.ID)
	second := f.request(t, reward.ID)

	if _, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Approve(ctx, first.ID) }); err != nil {
		t.Fatalf("approve first: %v", err)
	}
	_, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Approve(ctx, second.ID) })
	if !errors.Is(err, apperr.ErrOutOfStock) {
		t.Fatalf("err = %v, want ErrOutOfStock", err)
	}

	if bal := f.balance(t); bal != 70 {
		t.Errorf("balance = %d, want 70", bal)
	}
	got, _ := machine(f.db.Stores()).Get(ctx, second.ID)
	if got.Status != model.RedemptionPending {
		t.Errorf("status = %q, want %q", got.Status, model.RedemptionPending)
	}
}

func TestApproveFreeReward(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.reward(t, 0, 1, model.RewardAvailable)
	r := f.request(t, reward.ID)

	if _, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Approve(ctx, r.ID) }); err != nil {
		t.Fatalf("approve: %v", err)
	}
	history, _ := ledger.New(f.db.Stores().Ledger, nil).HistoryOf(ctx, f.child, model.LedgerFilter{})
	if len(history) != 0 {
		t.Errorf("expected no ledger entries, got %d", len(history))
	}
}

func TestSnapshotSurvivesPriceChange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.credit(t, f.child, 100)
	reward := f.reward(t, 40, 1, model.RewardAvailable)
	r := f.request(t, reward.ID)

	f.db.Stores().Rewards.Update(ctx, reward.ID, reward.Title, "", 90, model.RewardAvailable)

	got, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Approve(ctx, r.ID) })
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.PointsRequiredSnapshot != 40 {
		t.Errorf("snapshot = %d, want 40", got.PointsRequiredSnapshot)
	}
	if bal := f.balance(t); bal != 60 {
		t.Errorf("balance = %d, want 60", bal)
	}
}

func TestDeny(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.credit(t, f.child, 100)
	reward := f.reward(t, 40, 1, model.RewardAvailable)
	r := f.request(t, reward.ID)

	_, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Deny(ctx, r.ID, "  ") })
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	got, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Deny(ctx, r.ID, "Not on a school night") })
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if got.Status != model.RedemptionDenied || got.ReviewNotes != "Not on a school night" {
		t.Errorf("redemption = %+v", got)
	}
	if bal := f.balance(t); bal != 100 {
		t.Errorf("balance = %d, want 100", bal)
	}

	_, err = f.do(func(m *Machine) (*model.Redemption, error) { return m.Approve(ctx, r.ID) })
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("approve denied err = %v, want ErrInvalidState", err)
	}
}

func TestCancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.credit(t, f.child, 100)
	bob, _ := f.db.Stores().Members.Create(ctx, "Bob", model.RoleChild)
	reward := f.reward(t, 40, 1, model.RewardAvailable)
	r := f.request(t, reward.ID)

	_, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Cancel(ctx, r.ID, bob.ID) })
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("cancel by other child err = %v, want ErrValidation", err)
	}

	got, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Cancel(ctx, r.ID, f.child) })
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != model.RedemptionCancelled {
		t.Errorf("status = %q, want %q", got.Status, model.RedemptionCancelled)
	}

	_, err = f.do(func(m *Machine) (*model.Redemption, error) { return m.Cancel(ctx, r.ID, f.child) })
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("second cancel err = %v, want ErrInvalidState", err)
	}
}

func TestRefund(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.credit(t, f.child, 100)
	reward := f.reward(t, 40, 1, model.RewardAvailable)
	r := f.request(t, reward.ID)

	_, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Refund(ctx, r.ID, "") })
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("refund pending err = %v, want ErrInvalidState", err)
	}

	f.do(func(m *Machine) (*model.Redemption, error) { return m.Approve(ctx, r.ID) })

	got, err := f.do(func(m *Machine) (*model.Redemption, error) { return m.Refund(ctx, r.ID, "theater was closed") })
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got.Status != model.RedemptionApproved || got.RefundedAt == nil {
		t.Errorf("redemption = %+v", got)
	}
	if bal := f.balance(t); bal != 100 {
		t.Errorf("balance = %d, want 100", bal)
	}

	_, err = f.do(func(m *Machine) (*model.Redemption, error) { return m.Refund(ctx, r.ID, "") })
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("second refund err = %v, want ErrInvalidState", err)
	}
	if bal := f.balance(t); bal != 100 {
		t.Errorf("balance after second refund = %d, want 100", bal)
	}
}
