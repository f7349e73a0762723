package services

import (
	"context"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/metrics"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/repositories"
	"github.com/arc-invoice/backend/internal/signing"
	"github.com/arc-invoice/backend/internal/validate"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SignInput struct {
	Wallet    string `json:"signer_wallet" validate:"required,eth_addr"`
	TermsHash string `json:"terms_hash" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type SignatureResult struct {
	Signature     *models.TermSignature `json:"signature,omitempty"`
	AlreadySigned bool                  `json:"already_signed"`
}

type SignatureService struct {
	invoices InvoiceStore
	terms    TermsStore
	notifier
}

func NewSignatureService(invoices InvoiceStore, termsStore TermsStore, audit AuditStore, publisher events.Publisher, log *zap.Logger) *SignatureService {
	return &SignatureService{
		invoices: invoices,
		terms:    termsStore,
		notifier: notifier{audit: audit, publisher: publisher, log: log},
	}
}

// RecordPayerSignature verifies a payer's signature over the terms message
// and stores it against the terms hash persisted for the invoice. A repeat
// submission by the same wallet succeeds without writing a second row.
func (s *SignatureService) RecordPayerSignature(ctx context.Context, invoiceID uuid.UUID, in SignInput) (*SignatureResult, error) {
	m := metrics.Get()
	if fields := validate.Struct(in); fields != nil {
		m.Signatures.WithLabelValues("rejected").Inc()
		return nil, errs.Validation(fields...)
	}

	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.IsTermsBased() {
		return nil, errs.New(errs.KindWrongContractVersion, "Invoice %s does not use a terms-based escrow", inv.ShortCode)
	}

	if err := signing.Verify(signing.TermsMessage(in.TermsHash, in.Wallet), in.Signature, in.Wallet); err != nil {
		m.Signatures.WithLabelValues("rejected").Inc()
		return nil, err
	}

	stored, err := s.terms.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	submitted, ok := canonicalHash(in.TermsHash)
	if !ok {
		m.Signatures.WithLabelValues("rejected").Inc()
		return nil, errs.Validation(errs.FieldError{Field: "terms_hash", Message: "must be a 32-byte hex hash"})
	}
	if current, _ := canonicalHash(stored.TermsHash); current != submitted {
		m.Signatures.WithLabelValues("rejected").Inc()
		return nil, errs.New(errs.KindTermsHashMismatch, "Signed terms hash does not match the current terms. Reload the invoice and sign again.")
	}

	sig := &models.TermSignature{
		InvoiceID:    invoiceID,
		SignerWallet: models.NormalizeWallet(in.Wallet),
		SignerRole:   models.SignerRolePayer,
		Signature:    in.Signature,
		TermsHash:    stored.TermsHash,
	}
	if err := s.terms.CreateSignature(ctx, sig); err != nil {
		if repositories.IsConflict(err) {
			m.Signatures.WithLabelValues("duplicate").Inc()
			s.log.Info("signature already recorded",
				zap.String("invoice_id", invoiceID.String()),
				zap.String("wallet", sig.SignerWallet),
				zap.Bool("already_signed", true),
			)
			return &SignatureResult{AlreadySigned: true}, nil
		}
		return nil, err
	}
	m.Signatures.WithLabelValues("recorded").Inc()

	s.record(ctx, in.Wallet, "terms_signed", invoiceID, map[string]any{"terms_hash": sig.TermsHash})
	s.publish(ctx, events.ForInvoice(events.EventTermsSigned, invoiceID.String(),
		[]string{inv.CreatorWallet, sig.SignerWallet}, map[string]any{"signer_wallet": sig.SignerWallet}))

	return &SignatureResult{Signature: sig}, nil
}

func (s *SignatureService) ListSignatures(ctx context.Context, invoiceID uuid.UUID) ([]models.TermSignature, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.terms.ListSignatures(ctx, invoiceID)
}

// canonicalHash returns h as lowercase 0x-prefixed hex, or false when h is
// not a 32-byte hex hash.
func canonicalHash(h string) (string, bool) {
	b, err := hexutil.Decode(h)
	if err != nil || len(b) != 32 {
		return "", false
	}
	return hexutil.Encode(b), true
}
