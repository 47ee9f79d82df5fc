package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/choreledger/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicate is returned when an insert collides with a unique key or a
// compare-and-set guard.
var ErrDuplicate = errors.New("duplicate key")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Stores bundles every entity store bound to the same connection or transaction.
type Stores struct {
	Members     *FamilyMemberStore
	Tasks       *TaskStore
	Assignments *AssignmentStore
	Ledger      *LedgerStore
	Rewards     *RewardStore
	Redemptions *RedemptionStore
}

func New(db DBTX) *Stores {
	return &Stores{
		Members:     NewFamilyMemberStore(db),
		Tasks:       NewTaskStore(db),
		Assignments: NewAssignmentStore(db),
		Ledger:      NewLedgerStore(db),
		Rewards:     NewRewardStore(db),
		Redemptions: NewRedemptionStore(db),
	}
}

// DB owns the database handle and runs units of work.
type DB struct {
	db *sql.DB
}

func NewDB(db *sql.DB) *DB {
	return &DB{db: db}
}

// Stores returns stores that run outside any transaction, for reads.
func (d *DB) Stores() *Stores {
	return New(d.db)
}

// InTx runs fn inside a single transaction. The transaction commits only if
// fn returns nil; any error rolls back every write fn made.
func (d *DB) InTx(ctx context.Context, fn func(s *Stores) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(New(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func assignmentStatusArgs(statuses []model.AssignmentStatus) []any {
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}
