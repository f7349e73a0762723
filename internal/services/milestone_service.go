package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/rbac"
	"github.com/arc-invoice/backend/internal/validate"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MilestoneUpdate carries the requested changes. ProofURLSet distinguishes an
// explicit null (clear the proof) from an absent field.
type MilestoneUpdate struct {
	Status      *string
	ProofURL    *string
	ProofURLSet bool
}

type milestoneProof struct {
	ProofURL string `json:"proof_url" validate:"max=2000,http_url"`
}

type MilestoneService struct {
	invoices   InvoiceStore
	milestones MilestoneStore
	notifier
	now func() time.Time
}

func NewMilestoneService(invoices InvoiceStore, milestones MilestoneStore, audit AuditStore, publisher events.Publisher, log *zap.Logger) *MilestoneService {
	return &MilestoneService{
		invoices:   invoices,
		milestones: milestones,
		notifier:   notifier{audit: audit, publisher: publisher, log: log},
		now:        time.Now,
	}
}

// Update applies a status transition and/or a proof URL change. Marking a
// milestone funded needs no identity; every other change needs the creator.
// Requesting the current status again changes nothing.
func (s *MilestoneService) Update(ctx context.Context, invoiceID, milestoneID uuid.UUID, wallet string, upd MilestoneUpdate) (*models.Milestone, error) {
	if upd.Status == nil && !upd.ProofURLSet {
		return nil, errs.Validation(errs.FieldError{Field: "status", Message: "status or proof_url is required"})
	}

	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.IsMilestoneBased() {
		return nil, errs.New(errs.KindWrongContractVersion, "Invoice %s does not use a milestone escrow", inv.ShortCode)
	}
	ms, err := s.milestones.GetByID(ctx, invoiceID, milestoneID)
	if err != nil {
		return nil, err
	}

	needsCreator := upd.ProofURLSet || (upd.Status != nil && *upd.Status != models.MilestoneStatusFunded)
	if needsCreator {
		if wallet == "" {
			return nil, errs.New(errs.KindUnauthorized, "Unauthorized")
		}
		if !rbac.HasPermission(rbac.RoleFor(inv, nil, wallet), rbac.PermAdvanceMilestone) {
			return nil, errs.New(errs.KindForbidden, "Only the invoice creator can update this milestone")
		}
	}

	oldStatus := ms.Status
	changed := false

	if upd.Status != nil && *upd.Status != ms.Status {
		next := *upd.Status
		if !models.IsUpdatableMilestoneStatus(next) {
			return nil, errs.Validation(errs.FieldError{Field: "status", Message: "must be one of: funded, approved, released"})
		}
		if !models.IsValidMilestoneTransition(ms.Status, next) {
			return nil, errs.Validation(errs.FieldError{
				Field:   "status",
				Message: fmt.Sprintf("cannot move milestone from %s to %s", ms.Status, next),
			})
		}
		ms.Status = next
		if next == models.MilestoneStatusReleased {
			at := s.now()
			ms.ReleasedAt = &at
		}
		changed = true
	}

	if upd.ProofURLSet {
		if upd.ProofURL == nil || strings.TrimSpace(*upd.ProofURL) == "" {
			ms.ProofURL = nil
		} else {
			u := strings.TrimSpace(*upd.ProofURL)
			if fields := validate.Struct(milestoneProof{ProofURL: u}); fields != nil {
				return nil, errs.Validation(fields...)
			}
			ms.ProofURL = &u
		}
		changed = true
	}

	if !changed {
		return ms, nil
	}
	if err := s.milestones.Update(ctx, ms); err != nil {
		return nil, err
	}

	s.record(ctx, wallet, "milestone_updated", invoiceID, map[string]any{
		"milestone_id": ms.ID.String(),
		"old_status":   oldStatus,
		"new_status":   ms.Status,
	})
	s.publish(ctx, events.ForInvoice(events.EventMilestoneUpdated, invoiceID.String(), []string{inv.CreatorWallet}, map[string]any{
		"milestone_id": ms.ID.String(),
		"status":       ms.Status,
	}))
	return ms, nil
}

func (s *MilestoneService) List(ctx context.Context, invoiceID uuid.UUID) ([]models.Milestone, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.milestones.ListByInvoice(ctx, invoiceID)
}
