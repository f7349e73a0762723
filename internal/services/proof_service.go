package services

import (
	"context"
	"strings"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/metrics"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/rbac"
	"github.com/arc-invoice/backend/internal/validate"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProofInput struct {
	DeliverableIndex int    `json:"deliverable_index" validate:"gte=0,lte=9"`
	ProofURL         string `json:"proof_url" validate:"required,max=2000,http_url"`
}

type ProofService struct {
	invoices InvoiceStore
	terms    TermsStore
	notifier
}

func NewProofService(invoices InvoiceStore, termsStore TermsStore, audit AuditStore, publisher events.Publisher, log *zap.Logger) *ProofService {
	return &ProofService{
		invoices: invoices,
		terms:    termsStore,
		notifier: notifier{audit: audit, publisher: publisher, log: log},
	}
}

// Submit stores or replaces the proof for one deliverable. Checks run in the
// order: invoice exists, terms-based escrow, caller is the creator, input shape.
func (s *ProofService) Submit(ctx context.Context, invoiceID uuid.UUID, wallet string, in ProofInput) (*models.DeliverableProof, error) {
	m := metrics.Get()
	if wallet == "" {
		return nil, errs.New(errs.KindUnauthorized, "Unauthorized")
	}

	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.IsTermsBased() {
		m.Proofs.WithLabelValues("rejected").Inc()
		return nil, errs.New(errs.KindWrongContractVersion, "Proofs can only be submitted for terms-based escrows (contract version 4)")
	}
	if !rbac.HasPermission(rbac.RoleFor(inv, nil, wallet), rbac.PermSubmitProof) {
		m.Proofs.WithLabelValues("rejected").Inc()
		return nil, errs.New(errs.KindForbidden, "Only the invoice creator can submit proofs")
	}

	in.ProofURL = strings.TrimSpace(in.ProofURL)
	if fields := validate.Struct(in); fields != nil {
		m.Proofs.WithLabelValues("rejected").Inc()
		return nil, errs.Validation(fields...)
	}

	p := &models.DeliverableProof{
		InvoiceID:        invoiceID,
		DeliverableIndex: in.DeliverableIndex,
		ProofURL:         in.ProofURL,
		SubmittedBy:      wallet,
	}
	if err := s.terms.UpsertProof(ctx, p); err != nil {
		return nil, err
	}
	m.Proofs.WithLabelValues("recorded").Inc()

	sigs, err := s.terms.ListSignatures(ctx, invoiceID)
	if err != nil {
		s.log.Warn("list signatures for proof event", zap.Error(err))
	}
	s.record(ctx, wallet, "proof_submitted", invoiceID, map[string]any{
		"deliverable_index": in.DeliverableIndex,
		"proof_url":         in.ProofURL,
	})
	s.publish(ctx, events.ForInvoice(events.EventProofSubmitted, invoiceID.String(), parties(inv, sigs), map[string]any{
		"deliverable_index": in.DeliverableIndex,
	}))
	return p, nil
}

// List returns the proofs of an invoice ordered by deliverable index.
func (s *ProofService) List(ctx context.Context, invoiceID uuid.UUID) ([]models.DeliverableProof, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.terms.ListProofs(ctx, invoiceID)
}
