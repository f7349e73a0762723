package models

import (
	"time"

	"github.com/google/uuid"
)

// Signature roles
const (
	SignerRoleCreator = "creator"
	SignerRolePayer   = "payer"
)

// ImplicitSignature marks the creator's signature recorded at invoice
// creation. The creator authored the terms, so no wallet signature exists.
const ImplicitSignature = "implicit"

// InvoiceTerms is the stored terms row. Deliverables are kept as JSONB in the
// order the creator supplied them.
type InvoiceTerms struct {
	ID              uuid.UUID `json:"id"`
	InvoiceID       uuid.UUID `json:"invoice_id"`
	TemplateType    string    `json:"template_type"`
	Deliverables    []byte    `json:"-"`
	PaymentSchedule string    `json:"payment_schedule"`
	RevisionLimit   int       `json:"revision_limit"`
	AutoReleaseDays int       `json:"auto_release_days"`
	TermsHash       string    `json:"terms_hash"`
	CreatedAt       time.Time `json:"created_at"`
}

type TermSignature struct {
	ID           uuid.UUID `json:"id"`
	InvoiceID    uuid.UUID `json:"invoice_id"`
	SignerWallet string    `json:"signer_wallet"`
	SignerRole   string    `json:"signer_role"`
	Signature    string    `json:"signature"`
	TermsHash    string    `json:"terms_hash"`
	SignedAt     time.Time `json:"signed_at"`
}

type DeliverableProof struct {
	ID               uuid.UUID `json:"id"`
	InvoiceID        uuid.UUID `json:"invoice_id"`
	DeliverableIndex int       `json:"deliverable_index"`
	ProofURL         string    `json:"proof_url"`
	SubmittedBy      string    `json:"submitted_by"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// IsSigner reports whether wallet appears among sigs.
func IsSigner(sigs []TermSignature, wallet string) bool {
	for _, s := range sigs {
		if SameWallet(s.SignerWallet, wallet) {
			return true
		}
	}
	return false
}
