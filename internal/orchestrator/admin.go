package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

func (o *Orchestrator) AddFamilyMember(ctx context.Context, in MemberInput) (*model.FamilyMember, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := o.check(in); err != nil {
		return nil, o.fail("add family member", err)
	}

	var m *model.FamilyMember
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		m, err = u.stores.Members.Create(ctx, in.Name, in.Role)
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.Validation("a family member named %q already exists", in.Name)
		}
		return err
	})
	if err != nil {
		return nil, o.fail("add family member", err, "name", in.Name)
	}

	o.logger.Info("family member added", "member_id", m.ID, "role", m.Role)
	o.publish(ctx, "member", "created", m.ID, 0, nil)
	return m, nil
}

// RemoveFamilyMember deactivates the member and archives a child's live
// assignments. Ledger history and redemptions are kept.
func (o *Orchestrator) RemoveFamilyMember(ctx context.Context, id int64) error {
	var archived int
	err := o.inTx(ctx, func(u *unit) error {
		m, err := u.stores.Members.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m == nil || !m.Active {
			return apperr.NotFound("family member %d not found", id)
		}
		if _, err := u.stores.Members.Deactivate(ctx, id); err != nil {
			return err
		}
		if m.Role == model.RoleChild {
			archived, err = u.assignments.ArchiveForChild(ctx, id)
		}
		return err
	})
	if err != nil {
		return o.fail("remove family member", err, "member_id", id)
	}

	o.logger.Info("family member removed", "member_id", id, "assignments_archived", archived)
	o.publish(ctx, "member", "deleted", id, 0, map[string]any{"assignments_archived": archived})
	return nil
}

func (o *Orchestrator) CreateTask(ctx context.Context, in TaskInput) (*model.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := o.check(in); err != nil {
		return nil, o.fail("create task", err)
	}

	var t *model.Task
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		t, err = u.stores.Tasks.Create(ctx, in.Title, strings.TrimSpace(in.Description), in.PointsReward, in.RequiresPhoto)
		return err
	})
	if err != nil {
		return nil, o.fail("create task", err)
	}

	o.logger.Info("task created", "task_id", t.ID, "points", t.PointsReward)
	o.publish(ctx, "task", "created", t.ID, 0, nil)
	return t, nil
}

// UpdateTask edits an active task. A new points value applies to approvals
// made after the edit.
func (o *Orchestrator) UpdateTask(ctx context.Context, id int64, in TaskInput) (*model.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := o.check(in); err != nil {
		return nil, o.fail("update task", err, "task_id", id)
	}

	var t *model.Task
	err := o.inTx(ctx, func(u *unit) error {
		existing, err := u.stores.Tasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperr.NotFound("task %d not found", id)
		}
		if existing.Status != model.TaskActive {
			return apperr.InvalidState("task %q is archived", existing.Title)
		}
		t, err = u.stores.Tasks.Update(ctx, id, in.Title, strings.TrimSpace(in.Description), in.PointsReward, in.RequiresPhoto)
		return err
	})
	if err != nil {
		return nil, o.fail("update task", err, "task_id", id)
	}

	o.logger.Info("task updated", "task_id", t.ID)
	o.publish(ctx, "task", "updated", t.ID, 0, nil)
	return t, nil
}

// ArchiveTask retires the task and archives its live assignments.
func (o *Orchestrator) ArchiveTask(ctx context.Context, id int64) error {
	var archived int
	err := o.inTx(ctx, func(u *unit) error {
		t, err := u.stores.Tasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return apperr.NotFound("task %d not found", id)
		}
		if t.Status != model.TaskActive {
			return apperr.InvalidState("task %q is already archived", t.Title)
		}
		if _, err := u.stores.Tasks.Archive(ctx, id); err != nil {
			return err
		}
		archived, err = u.assignments.ArchiveForTask(ctx, id)
		return err
	})
	if err != nil {
		return o.fail("archive task", err, "task_id", id)
	}

	o.logger.Info("task archived", "task_id", id, "assignments_archived", archived)
	o.publish(ctx, "task", "deleted", id, 0, map[string]any{"assignments_archived": archived})
	return nil
}

// CreateReward adds a reward together with its inventory row.
func (o *Orchestrator) CreateReward(ctx context.Context, in RewardInput) (*model.Reward, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Status == "" {
		in.Status = model.RewardAvailable
	}
	if err := o.check(in); err != nil {
		return nil, o.fail("create reward", err)
	}

	var r *model.Reward
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		r, err = u.stores.Rewards.Create(ctx, in.Title, strings.TrimSpace(in.Description), in.PointsRequired, in.Status)
		if err != nil {
			return err
		}
		_, err = u.stores.Rewards.CreateInventory(ctx, r.ID, in.Quantity)
		return err
	})
	if err != nil {
		return nil, o.fail("create reward", err)
	}

	o.logger.Info("reward created", "reward_id", r.ID, "points", r.PointsRequired, "quantity", in.Quantity)
	o.publish(ctx, "reward", "created", r.ID, 0, nil)
	return r, nil
}

// UpdateReward edits the reward definition. Pending redemptions keep the
// price they were requested at.
func (o *Orchestrator) UpdateReward(ctx context.Context, id int64, in RewardInput) (*model.Reward, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := o.check(in); err != nil {
		return nil, o.fail("update reward", err, "reward_id", id)
	}

	var r *model.Reward
	err := o.inTx(ctx, func(u *unit) error {
		existing, err := u.stores.Rewards.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperr.NotFound("reward %d not found", id)
		}
		status := in.Status
		if status == "" {
			status = existing.Status
		}
		r, err = u.stores.Rewards.Update(ctx, id, in.Title, strings.TrimSpace(in.Description), in.PointsRequired, status)
		return err
	})
	if err != nil {
		return nil, o.fail("update reward", err, "reward_id", id)
	}

	o.logger.Info("reward updated", "reward_id", r.ID, "points", r.PointsRequired, "status", r.Status)
	o.publish(ctx, "reward", "updated", r.ID, 0, nil)
	return r, nil
}

func (o *Orchestrator) SetRewardStock(ctx context.Context, rewardID int64, quantity int) (*model.RewardInventory, error) {
	var inv *model.RewardInventory
	err := o.inTx(ctx, func(u *unit) error {
		var err error
		inv, err = u.inventory.SetQuantityAvailable(ctx, rewardID, quantity)
		return err
	})
	if err != nil {
		return nil, o.fail("set reward stock", err, "reward_id", rewardID, "quantity", quantity)
	}

	o.logger.Info("reward stock set", "reward_id", rewardID, "available", inv.QuantityAvailable, "redeemed", inv.QuantityRedeemed)
	o.publish(ctx, "reward", "updated", rewardID, 0, map[string]any{"remaining": inv.Remaining()})
	return inv, nil
}

// AdjustPoints records a manual correction. Corrections are new entries;
// earlier entries are never edited.
func (o *Orchestrator) AdjustPoints(ctx context.Context, in AdjustInput) (*model.LedgerEntry, error) {
	in.Note = strings.TrimSpace(in.Note)
	if err := o.check(in); err != nil {
		return nil, o.fail("adjust points", err, "child_id", in.ChildID)
	}

	var e *model.LedgerEntry
	err := o.inTx(ctx, func(u *unit) error {
		if _, err := childOf(ctx, u.stores, in.ChildID); err != nil {
			return err
		}
		var err error
		e, err = u.ledger.Append(ctx, in.ChildID, in.Delta, model.ReasonManualAdjustment, nil, in.Note)
		return err
	})
	if err != nil {
		return nil, o.fail("adjust points", err, "child_id", in.ChildID, "delta", in.Delta)
	}

	o.logger.Info("points adjusted", "child_id", e.ChildID, "delta", e.Delta, "balance", e.BalanceAfter)
	o.publish(ctx, "points", "adjusted", e.ID, e.ChildID, map[string]any{"delta": e.Delta, "balance": e.BalanceAfter})
	return e, nil
}

func childOf(ctx context.Context, s *store.Stores, id int64) (*model.FamilyMember, error) {
	m, err := s.Members.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.IsChild() {
		return nil, apperr.NotFound("child %d not found", id)
	}
	return m, nil
}
