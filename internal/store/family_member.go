package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/choreledger/internal/model"
)

type FamilyMemberStore struct {
	db DBTX
}

func NewFamilyMemberStore(db DBTX) *FamilyMemberStore {
	return &FamilyMemberStore{db: db}
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.FamilyMember, error) {
	var m model.FamilyMember
	var role string
	var active int

	if err := scanner.Scan(&m.ID, &m.Name, &role, &active, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = model.Role(role)
	m.Active = active != 0
	return &m, nil
}

const memberCols = `id, name, role, active, created_at`

func (s *FamilyMemberStore) Create(ctx context.Context, name string, role model.Role) (*model.FamilyMember, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO family_members (name, role) VALUES (?, ?)`,
		name, string(role),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert family member: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert family member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyMemberStore) GetByID(ctx context.Context, id int64) (*model.FamilyMember, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM family_members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family member: %w", err)
	}
	return m, nil
}

// List returns active members, parents first, then by name.
func (s *FamilyMemberStore) List(ctx context.Context) ([]model.FamilyMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberCols+` FROM family_members WHERE active = 1 ORDER BY role DESC, name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// NameExists reports whether an active member other than excludeID uses name.
func (s *FamilyMemberStore) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM family_members WHERE name = ? AND id != ? AND active = 1`,
		name, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check name exists: %w", err)
	}
	return count > 0, nil
}

// Deactivate marks a member removed. Rows are kept so ledger and assignment
// history keep their references.
func (s *FamilyMemberStore) Deactivate(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE family_members SET active = 0 WHERE id = ? AND active = 1`, id)
	if err != nil {
		return false, fmt.Errorf("deactivate family member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
