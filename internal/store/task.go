package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/choreledger/internal/model"
)

type TaskStore struct {
	db DBTX
}

func NewTaskStore(db DBTX) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var requiresPhoto int
	var status string

	err := scanner.Scan(
		&t.ID, &t.Title, &t.Description, &t.PointsReward,
		&requiresPhoto, &status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.RequiresPhoto = requiresPhoto != 0
	t.Status = model.TaskStatus(status)
	return &t, nil
}

const taskCols = `id, title, description, points_reward, requires_photo, status, created_at, updated_at`

func (s *TaskStore) Create(ctx context.Context, title, description string, pointsReward int, requiresPhoto bool) (*model.Task, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (title, description, points_reward, requires_photo) VALUES (?, ?, ?, ?)`,
		title, description, pointsReward, boolInt(requiresPhoto),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// List returns active tasks ordered by title.
func (s *TaskStore) List(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE status = 'active' ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Update(ctx context.Context, id int64, title, description string, pointsReward int, requiresPhoto bool) (*model.Task, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, points_reward = ?, requires_photo = ? WHERE id = ?`,
		title, description, pointsReward, boolInt(requiresPhoto), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Archive marks an active task archived. It reports false if the task was
// missing or already archived.
func (s *TaskStore) Archive(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = 'archived' WHERE id = ? AND status = 'active'`, id)
	if err != nil {
		return false, fmt.Errorf("archive task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
