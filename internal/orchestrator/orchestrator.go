// Package orchestrator exposes the use cases controllers call. Each mutating
// method runs as one transaction: the state change, any ledger write and any
// inventory write commit together or not at all. Events are published only
// after commit.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/assignment"
	"github.com/dukerupert/choreledger/internal/inventory"
	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/redemption"
	"github.com/dukerupert/choreledger/internal/store"
)

// Notifier receives committed domain events. Delivery is best effort and
// never affects the outcome of the use case.
type Notifier interface {
	Notify(ctx context.Context, e model.Event)
}

type Orchestrator struct {
	db       *store.DB
	notifier Notifier
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func New(db *store.DB, notifier Notifier, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		db:       db,
		notifier: notifier,
		validate: newValidator(),
		logger:   logger.With("component", "orchestrator"),
		now:      time.Now,
	}
}

// unit holds the domain components bound to one transaction.
type unit struct {
	stores      *store.Stores
	ledger      *ledger.Ledger
	inventory   *inventory.Inventory
	assignments *assignment.Machine
	redemptions *redemption.Machine
}

func (o *Orchestrator) bind(s *store.Stores) *unit {
	l := ledger.New(s.Ledger, o.now)
	inv := inventory.New(s.Rewards)
	return &unit{
		stores:      s,
		ledger:      l,
		inventory:   inv,
		assignments: assignment.New(s.Assignments, s.Tasks, s.Members, l, o.now),
		redemptions: redemption.New(s.Redemptions, s.Rewards, s.Members, l, inv, o.now),
	}
}

func (o *Orchestrator) inTx(ctx context.Context, fn func(u *unit) error) error {
	return o.db.InTx(ctx, func(s *store.Stores) error {
		return fn(o.bind(s))
	})
}

// read returns components bound to the plain connection.
func (o *Orchestrator) read() *unit {
	return o.bind(o.db.Stores())
}

// fail logs err and wraps it with op. Rule violations are expected and
// logged at debug; anything without a kind is a storage failure.
func (o *Orchestrator) fail(op string, err error, attrs ...any) error {
	attrs = append(attrs, "error", err)
	if apperr.KindOf(err) == nil {
		o.logger.Error(op+" failed", attrs...)
	} else {
		o.logger.Debug(op+" rejected", attrs...)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (o *Orchestrator) publish(ctx context.Context, entity, action string, entityID, childID int64, extra map[string]any) {
	if o.notifier == nil {
		return
	}
	o.notifier.Notify(ctx, model.Event{
		ID:         uuid.NewString(),
		Type:       entity + "_" + action,
		Entity:     entity,
		Action:     action,
		EntityID:   entityID,
		ChildID:    childID,
		OccurredAt: o.now().UTC(),
		Extra:      extra,
	})
}

func (o *Orchestrator) AssignTaskToChildren(ctx context.Context, in AssignInput) ([]model.Assignment, error) {
	if err := o.check(in); err != nil {
		return nil, o.fail("assign task", err, "task_id", in.TaskID)
	}

	var created []model.Assignment
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		created, err = u.assignments.Assign(ctx, in.TaskID, in.ChildIDs, in.DueDate)
		return err
	})
	if err != nil {
		return nil, o.fail("assign task", err, "task_id", in.TaskID)
	}

	o.logger.Info("task assigned", "task_id", in.TaskID, "children", len(created))
	for _, a := range created {
		o.publish(ctx, "assignment", "created", a.ID, a.ChildID, map[string]any{"task_id": a.TaskID})
	}
	return created, nil
}

func (o *Orchestrator) SubmitAssignment(ctx context.Context, in SubmitInput) (*model.Assignment, error) {
	if err := o.check(in); err != nil {
		return nil, o.fail("submit assignment", err, "assignment_id", in.AssignmentID)
	}

	var a *model.Assignment
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		a, err = u.assignments.Submit(ctx, in.AssignmentID, in.Note, in.PhotoRef)
		return err
	})
	if err != nil {
		return nil, o.fail("submit assignment", err, "assignment_id", in.AssignmentID)
	}

	o.logger.Info("assignment submitted", "assignment_id", a.ID, "child_id", a.ChildID)
	o.publish(ctx, "assignment", "submitted", a.ID, a.ChildID, map[string]any{"task_id": a.TaskID})
	return a, nil
}

// ReviewAssignment approves or rejects a submitted assignment. Approval
// awards the task's points in the same transaction.
func (o *Orchestrator) ReviewAssignment(ctx context.Context, in ReviewAssignmentInput) (*model.Assignment, error) {
	if err := o.check(in); err != nil {
		return nil, o.fail("review assignment", err, "assignment_id", in.AssignmentID)
	}

	var a *model.Assignment
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		if in.Decision == Approve {
			a, err = u.assignments.Approve(ctx, in.AssignmentID)
		} else {
			a, err = u.assignments.Reject(ctx, in.AssignmentID, in.Feedback)
		}
		return err
	})
	if err != nil {
		return nil, o.fail("review assignment", err, "assignment_id", in.AssignmentID, "decision", in.Decision)
	}

	if a.Status == model.AssignmentApproved {
		o.logger.Info("assignment approved", "assignment_id", a.ID, "child_id", a.ChildID, "points", a.PointsAwarded)
		o.publish(ctx, "assignment", "approved", a.ID, a.ChildID, map[string]any{"points_awarded": a.PointsAwarded})
	} else {
		o.logger.Info("assignment rejected", "assignment_id", a.ID, "child_id", a.ChildID)
		o.publish(ctx, "assignment", "rejected", a.ID, a.ChildID, map[string]any{"feedback": a.Feedback})
	}
	return a, nil
}

func (o *Orchestrator) ArchiveAssignment(ctx context.Context, id int64) (*model.Assignment, error) {
	var a *model.Assignment
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		a, err = u.assignments.Archive(ctx, id)
		return err
	})
	if err != nil {
		return nil, o.fail("archive assignment", err, "assignment_id", id)
	}

	o.logger.Info("assignment archived", "assignment_id", a.ID)
	o.publish(ctx, "assignment", "archived", a.ID, a.ChildID, nil)
	return a, nil
}

func (o *Orchestrator) RequestRedemption(ctx context.Context, in RequestRedemptionInput) (*model.Redemption, error) {
	if err := o.check(in); err != nil {
		return nil, o.fail("request redemption", err, "child_id", in.ChildID, "reward_id", in.RewardID)
	}

	var r *model.Redemption
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		r, err = u.redemptions.Request(ctx, in.ChildID, in.RewardID)
		return err
	})
	if err != nil {
		return nil, o.fail("request redemption", err, "child_id", in.ChildID, "reward_id", in.RewardID)
	}

	o.logger.Info("redemption requested", "redemption_id", r.ID, "child_id", r.ChildID, "points", r.PointsRequiredSnapshot)
	o.publish(ctx, "redemption", "requested", r.ID, r.ChildID, map[string]any{"reward_id": r.RewardID})
	return r, nil
}

// ReviewRedemption approves or denies a pending redemption. Approval charges
// the snapshot price and takes stock in the same transaction; if either
// fails the redemption stays pending.
func (o *Orchestrator) ReviewRedemption(ctx context.Context, in ReviewRedemptionInput) (*model.Redemption, error) {
	if err := o.check(in); err != nil {
		return nil, o.fail("review redemption", err, "redemption_id", in.RedemptionID)
	}

	var r *model.Redemption
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		if in.Decision == Approve {
			r, err = u.redemptions.Approve(ctx, in.RedemptionID)
		} else {
			r, err = u.redemptions.Deny(ctx, in.RedemptionID, in.Reason)
		}
		return err
	})
	if err != nil {
		return nil, o.fail("review redemption", err, "redemption_id", in.RedemptionID, "decision", in.Decision)
	}

	if r.Status == model.RedemptionApproved {
		o.logger.Info("redemption approved", "redemption_id", r.ID, "child_id", r.ChildID, "points", r.PointsRequiredSnapshot)
		o.publish(ctx, "redemption", "approved", r.ID, r.ChildID, map[string]any{"points_spent": r.PointsRequiredSnapshot})
	} else {
		o.logger.Info("redemption denied", "redemption_id", r.ID, "child_id", r.ChildID)
		o.publish(ctx, "redemption", "denied", r.ID, r.ChildID, map[string]any{"reason": r.ReviewNotes})
	}
	return r, nil
}

func (o *Orchestrator) CancelRedemption(ctx context.Context, id, childID int64) (*model.Redemption, error) {
	var r *model.Redemption
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		r, err = u.redemptions.Cancel(ctx, id, childID)
		return err
	})
	if err != nil {
		return nil, o.fail("cancel redemption", err, "redemption_id", id, "child_id", childID)
	}

	o.logger.Info("redemption cancelled", "redemption_id", r.ID, "child_id", r.ChildID)
	o.publish(ctx, "redemption", "cancelled", r.ID, r.ChildID, nil)
	return r, nil
}

func (o *Orchestrator) RefundRedemption(ctx context.Context, id int64, note string) (*model.Redemption, error) {
	var r *model.Redemption
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		r, err = u.redemptions.Refund(ctx, id, note)
		return err
	})
	if err != nil {
		return nil, o.fail("refund redemption", err, "redemption_id", id)
	}

	o.logger.Info("redemption refunded", "redemption_id", r.ID, "child_id", r.ChildID, "points", r.PointsRequiredSnapshot)
	o.publish(ctx, "redemption", "refunded", r.ID, r.ChildID, map[string]any{"points_refunded": r.PointsRequiredSnapshot})
	return r, nil
}
