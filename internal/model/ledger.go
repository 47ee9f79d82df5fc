package model

import "time"

type LedgerReason string

const (
	ReasonTaskAward        LedgerReason = "task_award"
	ReasonRedemptionSpend  LedgerReason = "redemption_spend"
	ReasonRedemptionRefund LedgerReason = "redemption_refund"
	ReasonManualAdjustment LedgerReason = "manual_adjustment"
)

func (r LedgerReason) Valid() bool {
	switch r {
	case ReasonTaskAward, ReasonRedemptionSpend, ReasonRedemptionRefund, ReasonManualAdjustment:
		return true
	}
	return false
}

// LedgerEntry is one immutable signed point delta. Seq is the entry's 1-based
// position in the child's history; BalanceAfter caches the running total.
type LedgerEntry struct {
	ID           int64        `json:"id"`
	ChildID      int64        `json:"child_id"`
	Seq          int64        `json:"seq"`
	Delta        int          `json:"delta"`
	Reason       LedgerReason `json:"reason"`
	ReferenceID  *int64       `json:"reference_id"`
	Note         string       `json:"note"`
	CreatedAt    time.Time    `json:"created_at"`
	BalanceAfter int          `json:"balance_after"`
}

type PointBalance struct {
	MemberID    int64  `json:"member_id"`
	MemberName  string `json:"member_name"`
	TotalEarned int    `json:"total_earned"`
	TotalSpent  int    `json:"total_spent"`
	Balance     int    `json:"balance"`
}

type HistoryOrder int

const (
	NewestFirst HistoryOrder = iota
	OldestFirst
)

// LedgerFilter narrows a history read. Zero values mean "no constraint";
// BeforeSeq and AfterSeq are exclusive cursors.
type LedgerFilter struct {
	Order     HistoryOrder
	Reasons   []LedgerReason
	Since     *time.Time
	Until     *time.Time
	BeforeSeq int64
	AfterSeq  int64
	Limit     int
}
