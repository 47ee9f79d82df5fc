package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreledger/internal/model"
)

type AssignmentStore struct {
	db DBTX
}

func NewAssignmentStore(db DBTX) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func scanAssignment(scanner interface{ Scan(...any) error }) (*model.Assignment, error) {
	var a model.Assignment
	var status string
	var dueDate, submittedAt, reviewedAt sql.NullTime
	var photoRef sql.NullString

	err := scanner.Scan(
		&a.ID, &a.TaskID, &a.ChildID, &status, &dueDate, &submittedAt,
		&a.SubmissionNote, &photoRef, &reviewedAt, &a.Feedback,
		&a.PointsAwarded, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = model.AssignmentStatus(status)
	a.DueDate = timePtr(dueDate)
	a.SubmittedAt = timePtr(submittedAt)
	a.ReviewedAt = timePtr(reviewedAt)
	if photoRef.Valid {
		a.SubmissionPhotoRef = &photoRef.String
	}
	return &a, nil
}

const assignmentCols = `id, task_id, child_id, status, due_date, submitted_at, submission_note, submission_photo_ref, reviewed_at, feedback, points_awarded, created_at`

// Create inserts a pending assignment. It returns ErrDuplicate if the child
// already has a live assignment for the task.
func (s *AssignmentStore) Create(ctx context.Context, taskID, childID int64, dueDate *time.Time, createdAt time.Time) (*model.Assignment, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (task_id, child_id, status, due_date, created_at) VALUES (?, ?, ?, ?, ?)`,
		taskID, childID, string(model.AssignmentPending), nullTime(dueDate), createdAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert assignment: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AssignmentStore) GetByID(ctx context.Context, id int64) (*model.Assignment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// HasLive reports whether the child has a non-archived assignment for the task.
func (s *AssignmentStore) HasLive(ctx context.Context, taskID, childID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assignments WHERE task_id = ? AND child_id = ? AND status != 'archived'`,
		taskID, childID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check live assignment: %w", err)
	}
	return count > 0, nil
}

func (s *AssignmentStore) list(ctx context.Context, where string, args ...any) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentCols+` FROM assignments WHERE `+where+` ORDER BY created_at DESC, id DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// ListByChild returns the child's assignments, newest first. With no statuses
// given every assignment is returned.
func (s *AssignmentStore) ListByChild(ctx context.Context, childID int64, statuses ...model.AssignmentStatus) ([]model.Assignment, error) {
	if len(statuses) == 0 {
		return s.list(ctx, `child_id = ?`, childID)
	}
	args := append([]any{childID}, assignmentStatusArgs(statuses)...)
	return s.list(ctx, `child_id = ? AND status IN (`+placeholders(len(statuses))+`)`, args...)
}

func (s *AssignmentStore) ListByTask(ctx context.Context, taskID int64, statuses ...model.AssignmentStatus) ([]model.Assignment, error) {
	if len(statuses) == 0 {
		return s.list(ctx, `task_id = ?`, taskID)
	}
	args := append([]any{taskID}, assignmentStatusArgs(statuses)...)
	return s.list(ctx, `task_id = ? AND status IN (`+placeholders(len(statuses))+`)`, args...)
}

// transition moves assignment id to status `to` only if its current status is
// one of from. It reports whether a row changed.
func (s *AssignmentStore) transition(ctx context.Context, id int64, to model.AssignmentStatus, from []model.AssignmentStatus, set string, setArgs ...any) (bool, error) {
	query := `UPDATE assignments SET status = ?`
	if set != "" {
		query += `, ` + set
	}
	query += ` WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`

	args := append([]any{string(to)}, setArgs...)
	args = append(args, id)
	args = append(args, assignmentStatusArgs(from)...)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update assignment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *AssignmentStore) MarkSubmitted(ctx context.Context, id int64, note string, photoRef *string, at time.Time, from []model.AssignmentStatus) (bool, error) {
	return s.transition(ctx, id, model.AssignmentSubmitted, from,
		`submission_note = ?, submission_photo_ref = ?, submitted_at = ?`,
		note, nullString(photoRef), at.UTC(),
	)
}

func (s *AssignmentStore) MarkApproved(ctx context.Context, id int64, pointsAwarded int, at time.Time, from []model.AssignmentStatus) (bool, error) {
	return s.transition(ctx, id, model.AssignmentApproved, from,
		`points_awarded = ?, reviewed_at = ?`,
		pointsAwarded, at.UTC(),
	)
}

func (s *AssignmentStore) MarkRejected(ctx context.Context, id int64, feedback string, at time.Time, from []model.AssignmentStatus) (bool, error) {
	return s.transition(ctx, id, model.AssignmentRejected, from,
		`feedback = ?, reviewed_at = ?`,
		feedback, at.UTC(),
	)
}

func (s *AssignmentStore) MarkArchived(ctx context.Context, id int64, from []model.AssignmentStatus) (bool, error) {
	return s.transition(ctx, id, model.AssignmentArchived, from, "")
}
