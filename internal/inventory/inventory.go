// Package inventory guards reward stock. Remaining stock is
// quantity_available - quantity_redeemed and is never negative.
package inventory

import (
	"context"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
)

// Store is satisfied by *store.RewardStore.
type Store interface {
	GetInventory(ctx context.Context, rewardID int64) (*model.RewardInventory, error)
	IncrementRedeemed(ctx context.Context, rewardID int64) (bool, error)
	SetQuantityAvailable(ctx context.Context, rewardID int64, n int) (bool, error)
}

type Inventory struct {
	store Store
}

func New(s Store) *Inventory {
	return &Inventory{store: s}
}

func (i *Inventory) Get(ctx context.Context, rewardID int64) (*model.RewardInventory, error) {
	inv, err := i.store.GetInventory(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.NotFound("reward %d has no inventory", rewardID)
	}
	return inv, nil
}

func (i *Inventory) Remaining(ctx context.Context, rewardID int64) (int, error) {
	inv, err := i.Get(ctx, rewardID)
	if err != nil {
		return 0, err
	}
	return inv.Remaining(), nil
}

// IncrementRedeemed takes one unit of stock, failing with ErrOutOfStock when
// none remains. The check and the write are one conditional UPDATE.
func (i *Inventory) IncrementRedeemed(ctx context.Context, rewardID int64) error {
	ok, err := i.store.IncrementRedeemed(ctx, rewardID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := i.Get(ctx, rewardID); err != nil {
		return err
	}
	return apperr.New(apperr.ErrOutOfStock, "reward is out of stock")
}

func (i *Inventory) SetQuantityAvailable(ctx context.Context, rewardID int64, n int) (*model.RewardInventory, error) {
	if n < 0 {
		return nil, apperr.Validation("quantity must not be negative")
	}
	ok, err := i.store.SetQuantityAvailable(ctx, rewardID, n)
	if err != nil {
		return nil, err
	}
	inv, err := i.Get(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.ErrBelowRedeemed,
			"%d already redeemed, quantity cannot be set to %d", inv.QuantityRedeemed, n)
	}
	return inv, nil
}
