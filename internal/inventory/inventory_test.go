package inventory

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/database"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

func setupTestInventory(t *testing.T, quantity int) (*store.DB, *Inventory, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	ctx := context.Background()
	reward, err := s.Rewards.Create(ctx, "Movie Night", "", 40, model.RewardAvailable)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if _, err := s.Rewards.CreateInventory(ctx, reward.ID, quantity); err != nil {
		t.Fatalf("create inventory: %v", err)
	}
	return store.NewDB(db), New(s.Rewards), reward.ID
}

func TestIncrementRedeemed(t *testing.T) {
	_, inv, rewardID := setupTestInventory(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := inv.IncrementRedeemed(ctx, rewardID); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	err := inv.IncrementRedeemed(ctx, rewardID)
	if !errors.Is(err, apperr.ErrOutOfStock) {
		t.Fatalf("err = %v, want ErrOutOfStock", err)
	}

	remaining, err := inv.Remaining(ctx, rewardID)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
}

func TestUnknownReward(t *testing.T) {
	_, inv, _ := setupTestInventory(t, 1)
	ctx := context.Background()

	if _, err := inv.Remaining(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("remaining err = %v, want ErrNotFound", err)
	}
	if err := inv.IncrementRedeemed(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("increment err = %v, want ErrNotFound", err)
	}
}

func TestSetQuantityAvailable(t *testing.T) {
	_, inv, rewardID := setupTestInventory(t, 3)
	ctx := context.Background()

	inv.IncrementRedeemed(ctx, rewardID)
	inv.IncrementRedeemed(ctx, rewardID)

	if _, err := inv.SetQuantityAvailable(ctx, rewardID, -1); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("negative err = %v, want ErrValidation", err)
	}

	_, err := inv.SetQuantityAvailable(ctx, rewardID, 1)
	if !errors.Is(err, apperr.ErrBelowRedeemed) {
		t.Fatalf("err = %v, want ErrBelowRedeemed", err)
	}

	got, err := inv.SetQuantityAvailable(ctx, rewardID, 2)
	if err != nil {
		t.Fatalf("set to redeemed count: %v", err)
	}
	if got.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", got.Remaining())
	}

	got, _ = inv.SetQuantityAvailable(ctx, rewardID, 10)
	if got.QuantityAvailable != 10 || got.QuantityRedeemed != 2 {
		t.Errorf("inventory = %+v", got)
	}
}

func TestConcurrentIncrementsStopAtAvailable(t *testing.T) {
	d, _, rewardID := setupTestInventory(t, 3)
	ctx := context.Background()

	var g errgroup.Group
	errs := make([]error, 8)
	for i := range errs {
		g.Go(func() error {
			errs[i] = d.InTx(ctx, func(s *store.Stores) error {
				return New(s.Rewards).IncrementRedeemed(ctx, rewardID)
			})
			return nil
		})
	}
	g.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, apperr.ErrOutOfStock) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 3 {
		t.Errorf("successful increments = %d, want 3", ok)
	}

	got, _ := New(d.Stores().Rewards).Get(ctx, rewardID)
	if got.QuantityRedeemed != 3 {
		t.Errorf("quantity_redeemed = %d, want 3", got.QuantityRedeemed)
	}
}
