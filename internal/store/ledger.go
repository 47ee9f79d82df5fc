package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/choreledger/internal/model"
)

// LedgerStore persists point_ledger rows. It only ever inserts; the table
// rejects UPDATE and DELETE with triggers.
type LedgerStore struct {
	db DBTX
}

func NewLedgerStore(db DBTX) *LedgerStore {
	return &LedgerStore{db: db}
}

func scanEntry(scanner interface{ Scan(...any) error }) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var reason string
	var refID sql.NullInt64

	err := scanner.Scan(
		&e.ID, &e.ChildID, &e.Seq, &e.Delta, &reason,
		&refID, &e.Note, &e.CreatedAt, &e.BalanceAfter,
	)
	if err != nil {
		return nil, err
	}
	e.Reason = model.LedgerReason(reason)
	if refID.Valid {
		e.ReferenceID = &refID.Int64
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

const entryCols = `id, child_id, seq, delta, reason, reference_id, note, created_at, balance_after`

// Latest returns the child's most recent entry, or nil if there is none.
func (s *LedgerStore) Latest(ctx context.Context, childID int64) (*model.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryCols+` FROM point_ledger WHERE child_id = ? ORDER BY seq DESC LIMIT 1`,
		childID,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest ledger entry: %w", err)
	}
	return e, nil
}

// Insert appends e. The write is a compare-and-set on e.Seq: it succeeds only
// if the child has no entry at or beyond that position, otherwise it returns
// ErrDuplicate and writes nothing.
func (s *LedgerStore) Insert(ctx context.Context, e model.LedgerEntry) (*model.LedgerEntry, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO point_ledger (child_id, seq, delta, reason, reference_id, note, created_at, balance_after)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (SELECT 1 FROM point_ledger WHERE child_id = ? AND seq >= ?)`,
		e.ChildID, e.Seq, e.Delta, string(e.Reason), nullInt64(e.ReferenceID), e.Note, e.CreatedAt.UTC(), e.BalanceAfter,
		e.ChildID, e.Seq,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert ledger entry: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("insert ledger entry: child %d seq %d: %w", e.ChildID, e.Seq, ErrDuplicate)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+entryCols+` FROM point_ledger WHERE id = ?`, id)
	return scanEntry(row)
}

// List returns the child's entries matching f.
func (s *LedgerStore) List(ctx context.Context, childID int64, f model.LedgerFilter) ([]model.LedgerEntry, error) {
	query := `SELECT ` + entryCols + ` FROM point_ledger WHERE child_id = ?`
	args := []any{childID}

	if len(f.Reasons) > 0 {
		query += ` AND reason IN (` + placeholders(len(f.Reasons)) + `)`
		for _, r := range f.Reasons {
			args = append(args, string(r))
		}
	}
	if f.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, f.Since.UTC())
	}
	if f.Until != nil {
		query += ` AND created_at < ?`
		args = append(args, f.Until.UTC())
	}
	if f.BeforeSeq > 0 {
		query += ` AND seq < ?`
		args = append(args, f.BeforeSeq)
	}
	if f.AfterSeq > 0 {
		query += ` AND seq > ?`
		args = append(args, f.AfterSeq)
	}

	if f.Order == model.OldestFirst {
		query += ` ORDER BY seq ASC`
	} else {
		query += ` ORDER BY seq DESC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// HasReference reports whether an entry with the given reason and reference exists.
func (s *LedgerStore) HasReference(ctx context.Context, reason model.LedgerReason, referenceID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM point_ledger WHERE reason = ? AND reference_id = ?`,
		string(reason), referenceID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check ledger reference: %w", err)
	}
	return count > 0, nil
}

// Balances returns the point balance of every active child, highest first.
func (s *LedgerStore) Balances(ctx context.Context) ([]model.PointBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.name,
		       COALESCE((SELECT SUM(delta) FROM point_ledger WHERE child_id = m.id AND delta > 0), 0),
		       COALESCE((SELECT -SUM(delta) FROM point_ledger WHERE child_id = m.id AND delta < 0), 0),
		       COALESCE((SELECT balance_after FROM point_ledger WHERE child_id = m.id ORDER BY seq DESC LIMIT 1), 0) AS balance
		FROM family_members m
		WHERE m.role = 'child' AND m.active = 1
		ORDER BY balance DESC, m.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var balances []model.PointBalance
	for rows.Next() {
		var b model.PointBalance
		if err := rows.Scan(&b.MemberID, &b.MemberName, &b.TotalEarned, &b.TotalSpent, &b.Balance); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
