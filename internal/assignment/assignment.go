// Package assignment runs the task assignment lifecycle:
//
//	pending -> submitted -> approved | rejected
//	rejected -> submitted
//	pending | submitted | rejected -> archived
//
// approved and archived are terminal. Approve writes the task's points to the
// ledger, so it must run inside the same transaction as the ledger.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

var (
	submittable = []model.AssignmentStatus{model.AssignmentPending, model.AssignmentRejected}
	reviewable  = []model.AssignmentStatus{model.AssignmentSubmitted}
	live        = []model.AssignmentStatus{model.AssignmentPending, model.AssignmentSubmitted, model.AssignmentRejected}
)

// Store is satisfied by *store.AssignmentStore.
type Store interface {
	Create(ctx context.Context, taskID, childID int64, dueDate *time.Time, createdAt time.Time) (*model.Assignment, error)
	GetByID(ctx context.Context, id int64) (*model.Assignment, error)
	HasLive(ctx context.Context, taskID, childID int64) (bool, error)
	ListByChild(ctx context.Context, childID int64, statuses ...model.AssignmentStatus) ([]model.Assignment, error)
	ListByTask(ctx context.Context, taskID int64, statuses ...model.AssignmentStatus) ([]model.Assignment, error)
	MarkSubmitted(ctx context.Context, id int64, note string, photoRef *string, at time.Time, from []model.AssignmentStatus) (bool, error)
	MarkApproved(ctx context.Context, id int64, pointsAwarded int, at time.Time, from []model.AssignmentStatus) (bool, error)
	MarkRejected(ctx context.Context, id int64, feedback string, at time.Time, from []model.AssignmentStatus) (bool, error)
	MarkArchived(ctx context.Context, id int64, from []model.AssignmentStatus) (bool, error)
}

type TaskGetter interface {
	GetByID(ctx context.Context, id int64) (*model.Task, error)
}

type MemberGetter interface {
	GetByID(ctx context.Context, id int64) (*model.FamilyMember, error)
}

// Awarder appends ledger entries. *ledger.Ledger satisfies it.
type Awarder interface {
	Append(ctx context.Context, childID int64, delta int, reason model.LedgerReason, referenceID *int64, note string) (*model.LedgerEntry, error)
}

type Machine struct {
	assignments Store
	tasks       TaskGetter
	members     MemberGetter
	ledger      Awarder
	now         func() time.Time
}

func New(assignments Store, tasks TaskGetter, members MemberGetter, ledger Awarder, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{
		assignments: assignments,
		tasks:       tasks,
		members:     members,
		ledger:      ledger,
		now:         now,
	}
}

// Assign creates one pending assignment per child. Either every child gets
// an assignment or, on error, the caller's transaction should be discarded.
func (m *Machine) Assign(ctx context.Context, taskID int64, childIDs []int64, dueDate *time.Time) ([]model.Assignment, error) {
	if len(childIDs) == 0 {
		return nil, apperr.Validation("at least one child is required")
	}
	seen := make(map[int64]bool, len(childIDs))
	for _, id := range childIDs {
		if seen[id] {
			return nil, apperr.Validation("child %d listed more than once", id)
		}
		seen[id] = true
	}

	task, err := m.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperr.NotFound("task %d not found", taskID)
	}
	if task.Status != model.TaskActive {
		return nil, apperr.InvalidState("task %q is archived", task.Title)
	}

	for _, childID := range childIDs {
		if _, err := m.child(ctx, childID); err != nil {
			return nil, err
		}
		exists, err := m.assignments.HasLive(ctx, taskID, childID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, duplicate(task, childID)
		}
	}

	now := m.now().UTC()
	created := make([]model.Assignment, 0, len(childIDs))
	for _, childID := range childIDs {
		a, err := m.assignments.Create(ctx, taskID, childID, dueDate, now)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, duplicate(task, childID)
		}
		if err != nil {
			return nil, err
		}
		created = append(created, *a)
	}
	return created, nil
}

func duplicate(task *model.Task, childID int64) error {
	return apperr.New(apperr.ErrDuplicateAssignment, "child %d already has %q assigned", childID, task.Title)
}

func (m *Machine) child(ctx context.Context, id int64) (*model.FamilyMember, error) {
	member, err := m.members.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !member.IsChild() {
		return nil, apperr.NotFound("child %d not found", id)
	}
	return member, nil
}

// Get returns the assignment or ErrNotFound.
func (m *Machine) Get(ctx context.Context, id int64) (*model.Assignment, error) {
	a, err := m.assignments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.NotFound("assignment %d not found", id)
	}
	return a, nil
}

func (m *Machine) Submit(ctx context.Context, id int64, note string, photoRef *string) (*model.Assignment, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(submittable, a.Status) {
		return nil, apperr.InvalidState("assignment is %s and cannot be submitted", a.Status)
	}

	task, err := m.tasks.GetByID(ctx, a.TaskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperr.NotFound("task %d not found", a.TaskID)
	}

	if photoRef != nil {
		ref := strings.TrimSpace(*photoRef)
		photoRef = &ref
		if ref == "" {
			photoRef = nil
		}
	}
	if task.RequiresPhoto && photoRef == nil {
		return nil, apperr.New(apperr.ErrPhotoRequired, "%q needs a photo", task.Title)
	}

	ok, err := m.assignments.MarkSubmitted(ctx, id, strings.TrimSpace(note), photoRef, m.now().UTC(), submittable)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, alreadyChanged()
	}
	return m.Get(ctx, id)
}

// Approve awards the task's points. The status change is written first with
// a conditional update, so a second approve of the same assignment fails
// before touching the ledger.
func (m *Machine) Approve(ctx context.Context, id int64) (*model.Assignment, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(reviewable, a.Status) {
		return nil, apperr.InvalidState("assignment is %s, already reviewed or not yet submitted", a.Status)
	}

	task, err := m.tasks.GetByID(ctx, a.TaskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperr.NotFound("task %d not found", a.TaskID)
	}

	ok, err := m.assignments.MarkApproved(ctx, id, task.PointsReward, m.now().UTC(), reviewable)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, alreadyChanged()
	}

	if task.PointsReward > 0 {
		ref := a.ID
		if _, err := m.ledger.Append(ctx, a.ChildID, task.PointsReward, model.ReasonTaskAward, &ref, ""); err != nil {
			return nil, fmt.Errorf("award points: %w", err)
		}
	}
	return m.Get(ctx, id)
}

func (m *Machine) Reject(ctx context.Context, id int64, feedback string) (*model.Assignment, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, apperr.Validation("feedback is required when rejecting")
	}

	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(reviewable, a.Status) {
		return nil, apperr.InvalidState("assignment is %s, already reviewed or not yet submitted", a.Status)
	}

	ok, err := m.assignments.MarkRejected(ctx, id, feedback, m.now().UTC(), reviewable)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, alreadyChanged()
	}
	return m.Get(ctx, id)
}

func (m *Machine) Archive(ctx context.Context, id int64) (*model.Assignment, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(live, a.Status) {
		return nil, apperr.InvalidState("assignment is %s and cannot be archived", a.Status)
	}

	ok, err := m.assignments.MarkArchived(ctx, id, live)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, alreadyChanged()
	}
	return m.Get(ctx, id)
}

// ArchiveForTask archives every live assignment of the task and returns how
// many changed.
func (m *Machine) ArchiveForTask(ctx context.Context, taskID int64) (int, error) {
	list, err := m.assignments.ListByTask(ctx, taskID, live...)
	if err != nil {
		return 0, err
	}
	return m.archiveAll(ctx, list)
}

func (m *Machine) ArchiveForChild(ctx context.Context, childID int64) (int, error) {
	list, err := m.assignments.ListByChild(ctx, childID, live...)
	if err != nil {
		return 0, err
	}
	return m.archiveAll(ctx, list)
}

func (m *Machine) archiveAll(ctx context.Context, list []model.Assignment) (int, error) {
	n := 0
	for _, a := range list {
		ok, err := m.assignments.MarkArchived(ctx, a.ID, live)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func alreadyChanged() error {
	return apperr.InvalidState("assignment was changed by someone else, reload and try again")
}
