package assignment

import (
	"time"

	"github.com/dukerupert/choreledger/internal/model"
)

// View is an assignment with its derived, never-stored fields.
type View struct {
	model.Assignment
	Overdue bool `json:"overdue"`
}

// IsOverdue reports whether a pending assignment is past its due date.
// Any other status, or no due date, is never overdue.
func IsOverdue(a model.Assignment, now time.Time) bool {
	return a.Status == model.AssignmentPending && a.DueDate != nil && a.DueDate.Before(now)
}

func Project(a model.Assignment, now time.Time) View {
	return View{Assignment: a, Overdue: IsOverdue(a, now)}
}

func ProjectAll(list []model.Assignment, now time.Time) []View {
	views := make([]View, len(list))
	for i, a := range list {
		views[i] = Project(a, now)
	}
	return views
}
