package model

import "time"

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentSubmitted AssignmentStatus = "submitted"
	AssignmentApproved  AssignmentStatus = "approved"
	AssignmentRejected  AssignmentStatus = "rejected"
	AssignmentArchived  AssignmentStatus = "archived"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentSubmitted, AssignmentApproved, AssignmentRejected, AssignmentArchived:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentApproved || s == AssignmentArchived
}

// Assignment is one child's instance of one task.
type Assignment struct {
	ID                 int64            `json:"id"`
	TaskID             int64            `json:"task_id"`
	ChildID            int64            `json:"child_id"`
	Status             AssignmentStatus `json:"status"`
	DueDate            *time.Time       `json:"due_date"`
	SubmittedAt        *time.Time       `json:"submitted_at"`
	SubmissionNote     string           `json:"submission_note"`
	SubmissionPhotoRef *string          `json:"submission_photo_ref"`
	ReviewedAt         *time.Time       `json:"reviewed_at"`
	Feedback           string           `json:"feedback"`
	PointsAwarded      int              `json:"points_awarded"`
	CreatedAt          time.Time        `json:"created_at"`
}
