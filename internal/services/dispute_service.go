package services

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/dispute"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/metrics"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/rbac"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxArbitrationIDLength = 128

// OpenDisputeResult is what the caller needs to file the dispute on chain
// and with the arbitrator. Call is nil until an escrow supporting on-chain
// disputes is bound to the invoice.
type OpenDisputeResult struct {
	Dispute      *models.Dispute      `json:"dispute"`
	MetaEvidence dispute.MetaEvidence `json:"meta_evidence"`
	Call         *chain.PreparedCall  `json:"call,omitempty"`
}

type DisputeService struct {
	invoices    InvoiceStore
	terms       TermsStore
	disputes    DisputeStore
	arbitration ArbitrationClient
	notifier
}

func NewDisputeService(invoices InvoiceStore, termsStore TermsStore, disputes DisputeStore, arbitration ArbitrationClient, audit AuditStore, publisher events.Publisher, log *zap.Logger) *DisputeService {
	return &DisputeService{
		invoices:    invoices,
		terms:       termsStore,
		disputes:    disputes,
		arbitration: arbitration,
		notifier:    notifier{audit: audit, publisher: publisher, log: log},
	}
}

// authorize loads the invoice and checks that wallet holds perm on it.
func (s *DisputeService) authorize(ctx context.Context, invoiceID uuid.UUID, wallet, perm string) (*models.Invoice, []models.TermSignature, error) {
	if wallet == "" {
		return nil, nil, errs.New(errs.KindUnauthorized, "Unauthorized")
	}
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	sigs, err := s.terms.ListSignatures(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if !rbac.HasPermission(rbac.RoleFor(inv, sigs, wallet), perm) {
		return nil, nil, errs.New(errs.KindForbidden, "Only the invoice creator or payer can do this")
	}
	return inv, sigs, nil
}

// Open records a dispute and builds its meta-evidence. For terms-based
// escrows the dispute targets one deliverable and the returned call files
// disputeDeliverable(index, reason) against the escrow.
func (s *DisputeService) Open(ctx context.Context, invoiceID uuid.UUID, wallet string, req dispute.OpenRequest) (*OpenDisputeResult, error) {
	inv, sigs, err := s.authorize(ctx, invoiceID, wallet, rbac.PermOpenDispute)
	if err != nil {
		return nil, err
	}

	var tv *TermsView
	if inv.IsTermsBased() {
		t, err := s.terms.GetByInvoiceID(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		if tv, err = newTermsView(t); err != nil {
			return nil, err
		}
	}
	deliverableCount := 0
	if tv != nil {
		deliverableCount = len(tv.Deliverables)
	}
	if err := dispute.ValidateOpen(req, deliverableCount); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(req.Reason)
	subject := dispute.Subject{InvoiceCode: inv.ShortCode, AmountMinor: inv.AmountMinor, Reason: reason}
	d := &models.Dispute{
		InvoiceID: invoiceID,
		OpenedBy:  wallet,
		Reason:    reason,
		Status:    models.DisputeStatusOpen,
	}
	if tv != nil {
		idx := *req.DeliverableIndex
		violated := strings.TrimSpace(req.ViolatedCriteria)
		del := tv.Deliverables[idx]
		subject.Deliverable = &dispute.DeliverableContext{Name: del.Name, Criteria: del.Criteria, ViolatedCriteria: violated}
		d.DeliverableIndex = &idx
		d.ViolatedCriteria = &violated
	}

	meta := dispute.NewMetaEvidence(subject)
	if d.MetaEvidence, err = json.Marshal(meta); err != nil {
		return nil, err
	}
	if err := s.disputes.Create(ctx, d); err != nil {
		return nil, err
	}
	if err := s.invoices.UpdateStatus(ctx, invoiceID, models.InvoiceStatusDisputed); err != nil {
		s.log.Warn("mark invoice disputed", zap.String("invoice_id", invoiceID.String()), zap.Error(err))
	}
	metrics.Get().Disputes.WithLabelValues(strconv.Itoa(inv.ContractVersion)).Inc()

	res := &OpenDisputeResult{Dispute: d, MetaEvidence: meta}
	if tv != nil && inv.EscrowAddress != nil {
		data, err := chain.DisputeDeliverableCall(*d.DeliverableIndex, reason)
		if err != nil {
			return nil, err
		}
		res.Call = &chain.PreparedCall{To: common.HexToAddress(*inv.EscrowAddress), Data: data}
	}

	s.record(ctx, wallet, "dispute_opened", invoiceID, map[string]any{
		"dispute_id":        d.ID.String(),
		"deliverable_index": d.DeliverableIndex,
	})
	s.publish(ctx, events.ForInvoice(events.EventDisputeOpened, invoiceID.String(), parties(inv, sigs), map[string]any{
		"dispute_id": d.ID.String(),
	}))
	s.log.Info("dispute opened",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("dispute_id", d.ID.String()),
		zap.String("opened_by", models.NormalizeWallet(wallet)),
	)
	return res, nil
}

func (s *DisputeService) List(ctx context.Context, invoiceID uuid.UUID, wallet string) ([]models.Dispute, error) {
	if _, _, err := s.authorize(ctx, invoiceID, wallet, rbac.PermOpenDispute); err != nil {
		return nil, err
	}
	return s.disputes.ListByInvoice(ctx, invoiceID)
}

// LinkArbitration stores the arbitrator's dispute id once the party has
// filed the case, so the ruling can be polled.
func (s *DisputeService) LinkArbitration(ctx context.Context, invoiceID, disputeID uuid.UUID, wallet, arbitrationID string) (*models.Dispute, error) {
	arbitrationID = strings.TrimSpace(arbitrationID)
	if arbitrationID == "" || len(arbitrationID) > maxArbitrationIDLength {
		return nil, errs.Validation(errs.FieldError{Field: "arbitration_dispute_id", Message: "is required and must be at most 128 characters"})
	}
	if _, _, err := s.authorize(ctx, invoiceID, wallet, rbac.PermLinkArbitration); err != nil {
		return nil, err
	}
	d, err := s.disputes.GetByID(ctx, invoiceID, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DisputeStatusOpen {
		return nil, errs.New(errs.KindValidation, "Dispute is already resolved")
	}
	if err := s.disputes.SetArbitrationID(ctx, d.ID, arbitrationID); err != nil {
		return nil, err
	}
	d.ArbitrationDisputeID = &arbitrationID
	s.record(ctx, wallet, "dispute_arbitration_linked", invoiceID, map[string]any{
		"dispute_id":             d.ID.String(),
		"arbitration_dispute_id": arbitrationID,
	})
	return d, nil
}

// SyncRulings polls the arbitrator for every open dispute it knows about and
// records the settlement of each final ruling. It returns how many disputes
// were resolved.
func (s *DisputeService) SyncRulings(ctx context.Context) (int, error) {
	open, err := s.disputes.ListAwaitingRuling(ctx, 100)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, d := range open {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		ad, err := s.arbitration.GetDispute(ctx, *d.ArbitrationDisputeID)
		if err != nil {
			s.log.Warn("arbitration poll failed", zap.String("dispute_id", d.ID.String()), zap.Error(err))
			continue
		}
		if ad == nil || !ad.Resolved() {
			continue
		}

		inv, err := s.invoices.GetByID(ctx, d.InvoiceID)
		if err != nil {
			s.log.Error("invoice for dispute", zap.String("dispute_id", d.ID.String()), zap.Error(err))
			continue
		}
		ruling := *ad.Ruling
		settlement := dispute.Settle(ruling, inv.AmountMinor)
		applied, err := s.disputes.Resolve(ctx, d.ID, ruling, settlement.PayerAmount, settlement.CreatorAmount)
		if err != nil {
			s.log.Error("record ruling", zap.String("dispute_id", d.ID.String()), zap.Error(err))
			continue
		}
		if !applied {
			continue
		}
		resolved++
		metrics.Get().Rulings.WithLabelValues(dispute.RulingString(ruling)).Inc()

		s.record(ctx, "", "dispute_resolved", d.InvoiceID, map[string]any{
			"dispute_id":     d.ID.String(),
			"ruling":         dispute.RulingString(ruling),
			"payer_amount":   settlement.PayerAmount,
			"creator_amount": settlement.CreatorAmount,
		})
		s.publish(ctx, events.ForInvoice(events.EventDisputeResolved, d.InvoiceID.String(),
			[]string{inv.CreatorWallet, d.OpenedBy}, map[string]any{
				"dispute_id":     d.ID.String(),
				"ruling":         dispute.RulingString(ruling),
				"payer_amount":   models.FromMinorUnits(settlement.PayerAmount),
				"creator_amount": models.FromMinorUnits(settlement.CreatorAmount),
			}))
		s.log.Info("dispute resolved",
			zap.String("dispute_id", d.ID.String()),
			zap.String("ruling", dispute.RulingString(ruling)),
			zap.Int64("payer_amount", settlement.PayerAmount),
			zap.Int64("creator_amount", settlement.CreatorAmount),
		)
	}
	return resolved, nil
}
