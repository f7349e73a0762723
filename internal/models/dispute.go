package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute statuses
const (
	DisputeStatusOpen     = "open"
	DisputeStatusResolved = "resolved"
)

type Dispute struct {
	ID                   uuid.UUID  `json:"id"`
	InvoiceID            uuid.UUID  `json:"invoice_id"`
	OpenedBy             string     `json:"opened_by"`
	DeliverableIndex     *int       `json:"deliverable_index,omitempty"`
	Reason               string     `json:"reason"`
	ViolatedCriteria     *string    `json:"violated_criteria,omitempty"`
	MetaEvidence         []byte     `json:"-"`
	Status               string     `json:"status"`
	ArbitrationDisputeID *string    `json:"arbitration_dispute_id,omitempty"`
	Ruling               *int       `json:"ruling,omitempty"`
	PayerAmountMinor     *int64     `json:"-"`
	CreatorAmountMinor   *int64     `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`
}
