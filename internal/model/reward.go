package model

import "time"

type RewardStatus string

const (
	RewardAvailable   RewardStatus = "available"
	RewardUnavailable RewardStatus = "unavailable"
)

func (s RewardStatus) Valid() bool {
	return s == RewardAvailable || s == RewardUnavailable
}

type Reward struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	PointsRequired int          `json:"points_required"`
	Status         RewardStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type RewardInventory struct {
	RewardID          int64 `json:"reward_id"`
	QuantityAvailable int   `json:"quantity_available"`
	QuantityRedeemed  int   `json:"quantity_redeemed"`
}

// Remaining is the stock still redeemable.
func (i RewardInventory) Remaining() int {
	return i.QuantityAvailable - i.QuantityRedeemed
}

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionApproved  RedemptionStatus = "approved"
	RedemptionDenied    RedemptionStatus = "denied"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

func (s RedemptionStatus) Valid() bool {
	switch s {
	case RedemptionPending, RedemptionApproved, RedemptionDenied, RedemptionCancelled:
		return true
	}
	return false
}

func (s RedemptionStatus) Terminal() bool {
	return s != RedemptionPending
}

// Redemption is one child's request to spend points on a reward.
// PointsRequiredSnapshot is the reward price at request time.
type Redemption struct {
	ID                     int64            `json:"id"`
	RewardID               int64            `json:"reward_id"`
	ChildID                int64            `json:"child_id"`
	Status                 RedemptionStatus `json:"status"`
	PointsRequiredSnapshot int              `json:"points_required_snapshot"`
	RequestedAt            time.Time        `json:"requested_at"`
	ReviewedAt             *time.Time       `json:"reviewed_at"`
	ReviewNotes            string           `json:"review_notes"`
	RefundedAt             *time.Time       `json:"refunded_at"`
}
