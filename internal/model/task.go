package model

import "time"

type TaskStatus string

const (
	TaskActive   TaskStatus = "active"
	TaskArchived TaskStatus = "archived"
)

type Task struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	PointsReward  int        `json:"points_reward"`
	RequiresPhoto bool       `json:"requires_photo"`
	Status        TaskStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
