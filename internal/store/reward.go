package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/choreledger/internal/model"
)

type RewardStore struct {
	db DBTX
}

func NewRewardStore(db DBTX) *RewardStore {
	return &RewardStore{db: db}
}

// --- Reward methods ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var status string

	err := scanner.Scan(&r.ID, &r.Title, &r.Description, &r.PointsRequired, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Status = model.RewardStatus(status)
	return &r, nil
}

const rewardCols = `id, title, description, points_required, status, created_at, updated_at`

func (s *RewardStore) Create(ctx context.Context, title, description string, pointsRequired int, status model.RewardStatus) (*model.Reward, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (title, description, points_required, status) VALUES (?, ?, ?, ?)`,
		title, description, pointsRequired, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) GetByID(ctx context.Context, id int64) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// List returns all rewards, available first, then by title.
func (s *RewardStore) List(ctx context.Context) ([]model.Reward, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rewardCols+` FROM rewards ORDER BY status = 'available' DESC, title ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// Update edits the reward definition. Existing redemptions keep their
// price snapshot.
func (s *RewardStore) Update(ctx context.Context, id int64, title, description string, pointsRequired int, status model.RewardStatus) (*model.Reward, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET title = ?, description = ?, points_required = ?, status = ? WHERE id = ?`,
		title, description, pointsRequired, string(status), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(ctx, id)
}

// --- Inventory methods ---

func (s *RewardStore) CreateInventory(ctx context.Context, rewardID int64, quantityAvailable int) (*model.RewardInventory, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reward_inventory (reward_id, quantity_available) VALUES (?, ?)`,
		rewardID, quantityAvailable,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert inventory: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert inventory: %w", err)
	}
	return s.GetInventory(ctx, rewardID)
}

func (s *RewardStore) GetInventory(ctx context.Context, rewardID int64) (*model.RewardInventory, error) {
	var inv model.RewardInventory
	err := s.db.QueryRowContext(ctx,
		`SELECT reward_id, quantity_available, quantity_redeemed FROM reward_inventory WHERE reward_id = ?`,
		rewardID,
	).Scan(&inv.RewardID, &inv.QuantityAvailable, &inv.QuantityRedeemed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	return &inv, nil
}

// IncrementRedeemed takes one unit of stock. It reports false, writing
// nothing, when no stock remains.
func (s *RewardStore) IncrementRedeemed(ctx context.Context, rewardID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reward_inventory SET quantity_redeemed = quantity_redeemed + 1
		 WHERE reward_id = ? AND quantity_redeemed < quantity_available`,
		rewardID,
	)
	if err != nil {
		return false, fmt.Errorf("increment redeemed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// SetQuantityAvailable reports false, writing nothing, when n is below the
// redeemed count.
func (s *RewardStore) SetQuantityAvailable(ctx context.Context, rewardID int64, n int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reward_inventory SET quantity_available = ? WHERE reward_id = ? AND quantity_redeemed <= ?`,
		n, rewardID, n,
	)
	if err != nil {
		return false, fmt.Errorf("set quantity available: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}
