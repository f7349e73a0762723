package models

import (
	"time"

	"github.com/google/uuid"
)

// Milestone statuses
const (
	MilestoneStatusPending  = "pending"
	MilestoneStatusFunded   = "funded"
	MilestoneStatusApproved = "approved"
	MilestoneStatusReleased = "released"
)

// Valid milestone transitions: from -> []to. One step forward only.
var ValidMilestoneTransitions = map[string][]string{
	MilestoneStatusPending:  {MilestoneStatusFunded},
	MilestoneStatusFunded:   {MilestoneStatusApproved},
	MilestoneStatusApproved: {MilestoneStatusReleased},
	MilestoneStatusReleased: {},
}

func IsValidMilestoneTransition(from, to string) bool {
	allowed, ok := ValidMilestoneTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsUpdatableMilestoneStatus reports whether a client may request status.
func IsUpdatableMilestoneStatus(status string) bool {
	switch status {
	case MilestoneStatusFunded, MilestoneStatusApproved, MilestoneStatusReleased:
		return true
	}
	return false
}

type Milestone struct {
	ID          uuid.UUID  `json:"id"`
	InvoiceID   uuid.UUID  `json:"invoice_id"`
	AmountMinor int64      `json:"-"`
	Description string     `json:"description"`
	OrderIndex  int        `json:"order_index"`
	Status      string     `json:"status"`
	ProofURL    *string    `json:"proof_url,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
