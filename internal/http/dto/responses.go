package dto

import (
	"encoding/json"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/services"
)

type AuthResponse struct {
	Token  string `json:"token"`
	Wallet string `json:"wallet"`
}

type ErrorResponse struct {
	Error     string            `json:"error"`
	Fields    []errs.FieldError `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// InvoiceResponse is an invoice with its amount in major units.
type InvoiceResponse struct {
	*models.Invoice
	Amount float64 `json:"amount"`
}

func NewInvoiceResponse(inv *models.Invoice) *InvoiceResponse {
	if inv == nil {
		return nil
	}
	return &InvoiceResponse{Invoice: inv, Amount: models.FromMinorUnits(inv.AmountMinor)}
}

func NewInvoiceList(invs []models.Invoice) []*InvoiceResponse {
	out := make([]*InvoiceResponse, 0, len(invs))
	for i := range invs {
		out = append(out, NewInvoiceResponse(&invs[i]))
	}
	return out
}

type MilestoneResponse struct {
	models.Milestone
	Amount float64 `json:"amount"`
}

func NewMilestoneResponse(m *models.Milestone) *MilestoneResponse {
	return &MilestoneResponse{Milestone: *m, Amount: models.FromMinorUnits(m.AmountMinor)}
}

func NewMilestoneList(ms []models.Milestone) []*MilestoneResponse {
	out := make([]*MilestoneResponse, 0, len(ms))
	for i := range ms {
		out = append(out, NewMilestoneResponse(&ms[i]))
	}
	return out
}

type DisputeResponse struct {
	models.Dispute
	PayerAmount   *float64        `json:"payer_amount,omitempty"`
	CreatorAmount *float64        `json:"creator_amount,omitempty"`
	MetaEvidence  json.RawMessage `json:"meta_evidence,omitempty"`
}

func NewDisputeResponse(d *models.Dispute) *DisputeResponse {
	out := &DisputeResponse{Dispute: *d}
	if len(d.MetaEvidence) > 0 {
		out.MetaEvidence = json.RawMessage(d.MetaEvidence)
	}
	if d.PayerAmountMinor != nil {
		v := models.FromMinorUnits(*d.PayerAmountMinor)
		out.PayerAmount = &v
	}
	if d.CreatorAmountMinor != nil {
		v := models.FromMinorUnits(*d.CreatorAmountMinor)
		out.CreatorAmount = &v
	}
	return out
}

func NewDisputeList(ds []models.Dispute) []*DisputeResponse {
	out := make([]*DisputeResponse, 0, len(ds))
	for i := range ds {
		out = append(out, NewDisputeResponse(&ds[i]))
	}
	return out
}

type InvoiceDetailsResponse struct {
	Invoice    *InvoiceResponse          `json:"invoice"`
	Terms      *services.TermsView       `json:"terms,omitempty"`
	Signatures []models.TermSignature    `json:"signatures"`
	Milestones []*MilestoneResponse      `json:"milestones"`
	Proofs     []models.DeliverableProof `json:"proofs"`
}

func NewInvoiceDetailsResponse(d *services.InvoiceDetails) *InvoiceDetailsResponse {
	return &InvoiceDetailsResponse{
		Invoice:    NewInvoiceResponse(d.Invoice),
		Terms:      d.Terms,
		Signatures: d.Signatures,
		Milestones: NewMilestoneList(d.Milestones),
		Proofs:     d.Proofs,
	}
}
