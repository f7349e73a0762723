package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actor types
const (
	ActorWallet = "wallet"
	ActorSystem = "system"
)

const AuditEntityInvoice = "invoice"

type AuditLog struct {
	ID          uuid.UUID  `json:"id"`
	ActorWallet *string    `json:"actor_wallet,omitempty"`
	ActorType   string     `json:"actor_type"` // wallet/system
	Action      string     `json:"action"`
	EntityType  string     `json:"entity_type"`
	EntityID    *uuid.UUID `json:"entity_id,omitempty"`
	Meta        any        `json:"meta,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
