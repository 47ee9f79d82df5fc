package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreledger/internal/model"
)

type RedemptionStore struct {
	db DBTX
}

func NewRedemptionStore(db DBTX) *RedemptionStore {
	return &RedemptionStore{db: db}
}

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.Redemption, error) {
	var r model.Redemption
	var status string
	var reviewedAt, refundedAt sql.NullTime

	err := scanner.Scan(
		&r.ID, &r.RewardID, &r.ChildID, &status, &r.PointsRequiredSnapshot,
		&r.RequestedAt, &reviewedAt, &r.ReviewNotes, &refundedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Status = model.RedemptionStatus(status)
	r.RequestedAt = r.RequestedAt.UTC()
	r.ReviewedAt = timePtr(reviewedAt)
	r.RefundedAt = timePtr(refundedAt)
	return &r, nil
}

const redemptionCols = `id, reward_id, child_id, status, points_required_snapshot, requested_at, reviewed_at, review_notes, refunded_at`

func (s *RedemptionStore) Create(ctx context.Context, rewardID, childID int64, pointsSnapshot int, requestedAt time.Time) (*model.Redemption, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO redemptions (reward_id, child_id, status, points_required_snapshot, requested_at) VALUES (?, ?, ?, ?, ?)`,
		rewardID, childID, string(model.RedemptionPending), pointsSnapshot, requestedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RedemptionStore) GetByID(ctx context.Context, id int64) (*model.Redemption, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+redemptionCols+` FROM redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

func (s *RedemptionStore) list(ctx context.Context, where, order string, args ...any) ([]model.Redemption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+redemptionCols+` FROM redemptions WHERE `+where+` ORDER BY `+order,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []model.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}

// ListByChild returns the child's redemptions, newest first.
func (s *RedemptionStore) ListByChild(ctx context.Context, childID int64) ([]model.Redemption, error) {
	return s.list(ctx, `child_id = ?`, `requested_at DESC, id DESC`, childID)
}

// ListByStatus returns redemptions in status, oldest first so reviewers work
// through the queue in request order.
func (s *RedemptionStore) ListByStatus(ctx context.Context, status model.RedemptionStatus) ([]model.Redemption, error) {
	return s.list(ctx, `status = ?`, `requested_at ASC, id ASC`, string(status))
}

// Resolve moves a pending redemption to a terminal status. It reports false
// if the redemption was not pending.
func (s *RedemptionStore) Resolve(ctx context.Context, id int64, to model.RedemptionStatus, notes string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE redemptions SET status = ?, review_notes = ?, reviewed_at = ? WHERE id = ? AND status = 'pending'`,
		string(to), notes, at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("update redemption status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkRefunded stamps an approved, not yet refunded redemption.
func (s *RedemptionStore) MarkRefunded(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE redemptions SET refunded_at = ? WHERE id = ? AND status = 'approved' AND refunded_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark redemption refunded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
