package orchestrator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
)

type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
	Deny    Decision = "deny"
)

type AssignInput struct {
	TaskID   int64      `json:"task_id" validate:"gt=0"`
	ChildIDs []int64    `json:"child_ids" validate:"required,min=1,dive,gt=0"`
	DueDate  *time.Time `json:"due_date"`
}

type SubmitInput struct {
	AssignmentID int64   `json:"assignment_id" validate:"gt=0"`
	Note         string  `json:"note" validate:"max=1000"`
	PhotoRef     *string `json:"photo_ref" validate:"omitempty,max=500"`
}

type ReviewAssignmentInput struct {
	AssignmentID int64    `json:"assignment_id" validate:"gt=0"`
	Decision     Decision `json:"decision" validate:"required,oneof=approve reject"`
	Feedback     string   `json:"feedback" validate:"max=1000"`
}

type RequestRedemptionInput struct {
	ChildID  int64 `json:"child_id" validate:"gt=0"`
	RewardID int64 `json:"reward_id" validate:"gt=0"`
}

type ReviewRedemptionInput struct {
	RedemptionID int64    `json:"redemption_id" validate:"gt=0"`
	Decision     Decision `json:"decision" validate:"required,oneof=approve deny"`
	Reason       string   `json:"reason" validate:"max=1000"`
}

type MemberInput struct {
	Name string     `json:"name" validate:"required,max=100"`
	Role model.Role `json:"role" validate:"required,oneof=parent child"`
}

type TaskInput struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"max=2000"`
	PointsReward  int    `json:"points_reward" validate:"gte=0"`
	RequiresPhoto bool   `json:"requires_photo"`
}

// RewardInput describes a reward. Quantity is the initial stock and is only
// read by CreateReward; an empty Status means available on create and
// unchanged on update.
type RewardInput struct {
	Title          string             `json:"title" validate:"required,max=200"`
	Description    string             `json:"description" validate:"max=2000"`
	PointsRequired int                `json:"points_required" validate:"gte=0"`
	Status         model.RewardStatus `json:"status" validate:"omitempty,oneof=available unavailable"`
	Quantity       int                `json:"quantity" validate:"gte=0"`
}

type AdjustInput struct {
	ChildID int64  `json:"child_id" validate:"gt=0"`
	Delta   int    `json:"delta" validate:"required"`
	Note    string `json:"note" validate:"required,max=500"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates in and reports the first violation as a ValidationError.
func (o *Orchestrator) check(in any) error {
	err := o.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperr.Validation("%s", describe(verrs[0]))
	}
	return apperr.Validation("invalid input")
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be negative", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
