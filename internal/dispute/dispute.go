// Package dispute builds arbitration payloads for invoice disputes and
// applies arbitration rulings to escrowed amounts.
package dispute

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/models"
)

const MinTextLength = 10

type Ruling int

const (
	RulingRefuse  Ruling = 0
	RulingPayer   Ruling = 1
	RulingCreator Ruling = 2
	RulingSplit   Ruling = 3
)

func (r Ruling) String() string {
	switch r {
	case RulingRefuse:
		return "refused"
	case RulingPayer:
		return "payer"
	case RulingCreator:
		return "creator"
	case RulingSplit:
		return "split"
	}
	return "unknown"
}

func RulingString(ruling int) string { return Ruling(ruling).String() }

type Settlement struct {
	PayerAmount   int64 `json:"payer_amount"`
	CreatorAmount int64 `json:"creator_amount"`
}

// Settle divides total by ruling. A refusal or an unknown ruling splits
// like RulingSplit: the payer gets the floor half, the creator the rest.
func Settle(ruling int, total int64) Settlement {
	switch Ruling(ruling) {
	case RulingPayer:
		return Settlement{PayerAmount: total}
	case RulingCreator:
		return Settlement{CreatorAmount: total}
	}
	half := total / 2
	return Settlement{PayerAmount: half, CreatorAmount: total - half}
}

type RulingOptions struct {
	Type         string   `json:"type"`
	Titles       []string `json:"titles"`
	Descriptions []string `json:"descriptions"`
}

// MetaEvidence is the arbitration case file.
type MetaEvidence struct {
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Question      string        `json:"question"`
	RulingOptions RulingOptions `json:"rulingOptions"`
}

// DeliverableContext narrows a dispute to one deliverable of a terms-based
// invoice.
type DeliverableContext struct {
	Name             string
	Criteria         string
	ViolatedCriteria string
}

type Subject struct {
	InvoiceCode string
	AmountMinor int64
	Reason      string
	Deliverable *DeliverableContext
}

func NewMetaEvidence(s Subject) MetaEvidence {
	description := fmt.Sprintf("Dispute regarding invoice %s for %.2f USDC.",
		s.InvoiceCode, models.FromMinorUnits(s.AmountMinor))
	title := "Arc Invoice Dispute - " + s.InvoiceCode
	question := "How should the escrowed funds be distributed?"
	refund := "Full refund to the payer"
	release := "Full release to the invoice creator"

	if d := s.Deliverable; d != nil {
		claim := d.ViolatedCriteria
		if claim == "" {
			claim = s.Reason
		}
		description += fmt.Sprintf("\n\nDisputed Deliverable: %s\nAgreed Criteria: %s\nClaim: %s", d.Name, d.Criteria, claim)
		title += " (" + d.Name + ")"
		question = fmt.Sprintf(`Did the deliverable "%s" meet the agreed criteria: "%s"?`, d.Name, d.Criteria)
		refund = "Deliverable did NOT meet criteria - refund payer"
		release = "Deliverable DID meet criteria - release to creator"
	} else {
		description += "\n\nReason: " + s.Reason
	}

	return MetaEvidence{
		Title:       title,
		Description: description,
		Question:    question,
		RulingOptions: RulingOptions{
			Type:   "single-select",
			Titles: []string{"Refuse to Arbitrate", "Refund to Payer", "Release to Creator", "Split 50/50"},
			Descriptions: []string{
				"Jurors cannot reach a decision",
				refund,
				release,
				"Partial completion - split funds equally",
			},
		},
	}
}

type OpenRequest struct {
	Reason           string `json:"reason"`
	DeliverableIndex *int   `json:"deliverable_index"`
	ViolatedCriteria string `json:"violated_criteria"`
}

// ValidateOpen checks a dispute request. deliverableCount is the number of
// deliverables in the invoice terms; zero means the invoice has no terms and
// the deliverable fields are ignored.
func ValidateOpen(req OpenRequest, deliverableCount int) error {
	var fields []errs.FieldError
	if textLen(req.Reason) < MinTextLength {
		fields = append(fields, errs.FieldError{Field: "reason", Message: fmt.Sprintf("must be at least %d characters", MinTextLength)})
	}
	if deliverableCount > 0 {
		switch {
		case req.DeliverableIndex == nil:
			fields = append(fields, errs.FieldError{Field: "deliverable_index", Message: "is required"})
		case *req.DeliverableIndex < 0 || *req.DeliverableIndex >= deliverableCount:
			fields = append(fields, errs.FieldError{Field: "deliverable_index", Message: fmt.Sprintf("must be between 0 and %d", deliverableCount-1)})
		}
		if textLen(req.ViolatedCriteria) < MinTextLength {
			fields = append(fields, errs.FieldError{Field: "violated_criteria", Message: fmt.Sprintf("must be at least %d characters", MinTextLength)})
		}
	}
	if len(fields) > 0 {
		return errs.Validation(fields...)
	}
	return nil
}

func textLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
