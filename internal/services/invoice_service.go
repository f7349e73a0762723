package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/terms"
	"github.com/arc-invoice/backend/internal/validate"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	shortCodeAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"
	shortCodeLength   = 8
	amountTolerance   = 0.01
)

type MilestoneInput struct {
	Amount      float64 `json:"amount" validate:"gt=0,lte=1000000000"`
	Description string  `json:"description" validate:"required,max=200"`
}

// CreateInvoiceInput is the invoice creation request. Amounts are major units.
type CreateInvoiceInput struct {
	Amount             float64          `json:"amount" validate:"gte=0.01,lte=1000000000"`
	Description        string           `json:"description" validate:"required,max=500"`
	PaymentType        string           `json:"payment_type" validate:"oneof=direct escrow"`
	ClientName         *string          `json:"client_name,omitempty" validate:"omitempty,max=255"`
	ClientEmail        *string          `json:"client_email,omitempty" validate:"omitempty,email"`
	AutoReleaseDays    *int             `json:"auto_release_days,omitempty" validate:"omitempty,gte=1,lte=90"`
	YieldEscrowEnabled bool             `json:"yield_escrow_enabled"`
	Milestones         []MilestoneInput `json:"milestones,omitempty" validate:"max=10,dive"`
	Terms              *terms.Document  `json:"terms,omitempty" validate:"-"`
}

func (in CreateInvoiceInput) trimmed() CreateInvoiceInput {
	out := in
	out.Description = strings.TrimSpace(in.Description)
	out.ClientName = trimOptional(in.ClientName)
	out.ClientEmail = trimOptional(in.ClientEmail)
	out.Milestones = make([]MilestoneInput, len(in.Milestones))
	for i, m := range in.Milestones {
		m.Description = strings.TrimSpace(m.Description)
		out.Milestones[i] = m
	}
	return out
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// hasTerms reports whether the request creates a terms-based escrow.
func (in CreateInvoiceInput) hasTerms() bool {
	return in.Terms != nil && in.PaymentType == models.PaymentTypeEscrow
}

// ValidateCreate reports every violation of in, including its terms.
func ValidateCreate(in CreateInvoiceInput) error {
	in = in.trimmed()
	fields := validate.Struct(in)

	if len(in.Milestones) > 0 {
		var sum float64
		for _, m := range in.Milestones {
			sum += m.Amount
		}
		if math.Abs(sum-in.Amount) >= amountTolerance {
			fields = append(fields, errs.FieldError{
				Field:   "milestones",
				Message: fmt.Sprintf("milestone amounts must equal invoice total (got %g, want %g)", sum, in.Amount),
			})
		}
	}
	if in.Terms != nil {
		for _, f := range terms.Violations(*in.Terms) {
			f.Field = "terms." + f.Field
			fields = append(fields, f)
		}
	}
	if len(fields) > 0 {
		return errs.Validation(fields...)
	}
	return nil
}

// ResolveContractVersion picks the escrow family for a new invoice: yield
// first, then terms, then milestones, then the simple escrow.
func ResolveContractVersion(paymentType string, yieldEnabled, hasTerms bool, milestoneCount int) int {
	escrowPayment := paymentType == models.PaymentTypeEscrow
	switch {
	case yieldEnabled && escrowPayment:
		return models.ContractVersionYield
	case hasTerms && escrowPayment:
		return models.ContractVersionTerms
	case milestoneCount > 0:
		return models.ContractVersionMilestone
	default:
		return models.ContractVersionSimple
	}
}

// TermsView is a stored terms row with its deliverables decoded.
type TermsView struct {
	models.InvoiceTerms
	Deliverables []terms.Deliverable `json:"deliverables"`
}

// Document rebuilds the hashed terms document.
func (v *TermsView) Document() terms.Document {
	revisions, autoRelease := v.RevisionLimit, v.AutoReleaseDays
	return terms.Document{
		TemplateType:    v.TemplateType,
		Deliverables:    v.Deliverables,
		PaymentSchedule: v.PaymentSchedule,
		RevisionLimit:   &revisions,
		AutoReleaseDays: &autoRelease,
	}
}

func newTermsView(t *models.InvoiceTerms) (*TermsView, error) {
	v := &TermsView{InvoiceTerms: *t}
	if err := json.Unmarshal(t.Deliverables, &v.Deliverables); err != nil {
		return nil, fmt.Errorf("decode deliverables: %w", err)
	}
	return v, nil
}

// InvoiceDetails is an invoice with everything attached to it.
type InvoiceDetails struct {
	Invoice    *models.Invoice           `json:"invoice"`
	Terms      *TermsView                `json:"terms,omitempty"`
	Signatures []models.TermSignature    `json:"signatures"`
	Milestones []models.Milestone        `json:"milestones"`
	Proofs     []models.DeliverableProof `json:"proofs"`
}

type InvoiceService struct {
	invoices   InvoiceStore
	terms      TermsStore
	milestones MilestoneStore
	notifier
}

func NewInvoiceService(invoices InvoiceStore, termsStore TermsStore, milestones MilestoneStore, audit AuditStore, publisher events.Publisher, log *zap.Logger) *InvoiceService {
	return &InvoiceService{
		invoices:   invoices,
		terms:      termsStore,
		milestones: milestones,
		notifier:   notifier{audit: audit, publisher: publisher, log: log},
	}
}

// Create validates the request, resolves the contract version and persists
// the invoice with its terms or milestones. Terms take precedence; a
// co-supplied milestone list is then ignored.
func (s *InvoiceService) Create(ctx context.Context, creator string, in CreateInvoiceInput) (*models.Invoice, error) {
	if creator == "" {
		return nil, errs.New(errs.KindUnauthorized, "Unauthorized")
	}
	if err := ValidateCreate(in); err != nil {
		return nil, err
	}
	in = in.trimmed()

	hasTerms := in.hasTerms()
	milestoneCount := len(in.Milestones)
	if hasTerms {
		milestoneCount = 0
	}
	version := ResolveContractVersion(in.PaymentType, in.YieldEscrowEnabled, hasTerms, milestoneCount)

	amountMinor, err := models.ToMinorUnits(in.Amount)
	if err != nil {
		return nil, err
	}
	autoRelease := models.DefaultAutoReleaseDays
	if in.AutoReleaseDays != nil {
		autoRelease = *in.AutoReleaseDays
	}
	id := uuid.New()
	inv := &models.Invoice{
		ID:                 id,
		ShortCode:          newShortCode(),
		CreatorWallet:      models.NormalizeWallet(creator),
		AmountMinor:        amountMinor,
		Description:        in.Description,
		PaymentType:        in.PaymentType,
		ClientName:         in.ClientName,
		ClientEmail:        in.ClientEmail,
		ContractVersion:    version,
		Status:             models.InvoiceStatusPending,
		AutoReleaseDays:    autoRelease,
		YieldEscrowEnabled: in.YieldEscrowEnabled,
		IDHash:             chain.InvoiceIDHash(id.String()).Hex(),
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}

	switch {
	case hasTerms:
		if err := s.createTerms(ctx, inv, *in.Terms); err != nil {
			s.rollback(ctx, inv.ID, "terms", err)
			return nil, err
		}
	case milestoneCount > 0:
		if err := s.createMilestones(ctx, inv.ID, in.Milestones); err != nil {
			s.rollback(ctx, inv.ID, "milestones", err)
			return nil, err
		}
	}

	s.record(ctx, creator, "invoice_created", inv.ID, map[string]any{
		"contract_version": version,
		"amount_minor":     inv.AmountMinor,
	})
	s.publish(ctx, events.ForInvoice(events.EventInvoiceCreated, inv.ID.String(), []string{inv.CreatorWallet}, map[string]any{
		"short_code":       inv.ShortCode,
		"contract_version": version,
	}))

	s.log.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int("contract_version", version),
		zap.Int64("amount_minor", inv.AmountMinor),
	)
	return inv, nil
}

func (s *InvoiceService) createTerms(ctx context.Context, inv *models.Invoice, doc terms.Document) error {
	doc = doc.Trimmed()
	hash := terms.Hash(doc)
	deliverables, err := json.Marshal(doc.Deliverables)
	if err != nil {
		return err
	}
	t := &models.InvoiceTerms{
		InvoiceID:       inv.ID,
		TemplateType:    doc.TemplateType,
		Deliverables:    deliverables,
		PaymentSchedule: doc.PaymentSchedule,
		RevisionLimit:   doc.RevisionLimitOrDefault(),
		AutoReleaseDays: doc.AutoReleaseDaysOrDefault(),
		TermsHash:       hash,
	}
	if err := s.terms.Create(ctx, t); err != nil {
		return err
	}

	// The creator authored the terms; the implicit signature is best effort.
	sig := &models.TermSignature{
		InvoiceID:    inv.ID,
		SignerWallet: inv.CreatorWallet,
		SignerRole:   models.SignerRoleCreator,
		Signature:    models.ImplicitSignature,
		TermsHash:    hash,
	}
	if err := s.terms.CreateSignature(ctx, sig); err != nil {
		s.log.Warn("failed to record creator signature",
			zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}
	return nil
}

func (s *InvoiceService) createMilestones(ctx context.Context, invoiceID uuid.UUID, in []MilestoneInput) error {
	ms := make([]models.Milestone, len(in))
	for i, m := range in {
		amountMinor, err := models.ToMinorUnits(m.Amount)
		if err != nil {
			return err
		}
		ms[i] = models.Milestone{
			InvoiceID:   invoiceID,
			AmountMinor: amountMinor,
			Description: m.Description,
			OrderIndex:  i,
			Status:      models.MilestoneStatusPending,
		}
	}
	return s.milestones.CreateBatch(ctx, ms)
}

// rollback deletes an invoice whose children failed to persist.
func (s *InvoiceService) rollback(ctx context.Context, id uuid.UUID, stage string, cause error) {
	s.log.Error("invoice child insert failed, deleting invoice",
		zap.String("invoice_id", id.String()), zap.String("stage", stage), zap.Error(cause))
	if err := s.invoices.Delete(ctx, id); err != nil {
		s.log.Error("compensating delete failed", zap.String("invoice_id", id.String()), zap.Error(err))
	}
}

// List returns the creator's own invoices, newest first.
func (s *InvoiceService) List(ctx context.Context, creator string, limit, offset int) ([]models.Invoice, error) {
	if creator == "" {
		return nil, errs.New(errs.KindUnauthorized, "Unauthorized")
	}
	return s.invoices.ListByCreator(ctx, creator, limit, offset)
}

// AuditTrail returns the recorded actions on an invoice. Only its creator
// may read it.
func (s *InvoiceService) AuditTrail(ctx context.Context, wallet string, id uuid.UUID) ([]models.AuditLog, error) {
	if wallet == "" {
		return nil, errs.New(errs.KindUnauthorized, "Unauthorized")
	}
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.IsCreator(wallet) {
		return nil, errs.New(errs.KindForbidden, "Only the invoice creator can read its audit trail")
	}
	return s.audit.ListByEntity(ctx, models.AuditEntityInvoice, id, 0)
}

func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*InvoiceDetails, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &InvoiceDetails{Invoice: inv}

	switch inv.ContractVersion {
	case models.ContractVersionTerms:
		if d.Terms, err = s.Terms(ctx, id); err != nil && errs.KindOf(err) != errs.KindNotFound {
			return nil, err
		}
		if d.Signatures, err = s.terms.ListSignatures(ctx, id); err != nil {
			return nil, err
		}
		if d.Proofs, err = s.terms.ListProofs(ctx, id); err != nil {
			return nil, err
		}
	case models.ContractVersionMilestone, models.ContractVersionLegacyMilestone:
		if d.Milestones, err = s.milestones.ListByInvoice(ctx, id); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Terms returns the persisted terms of an invoice.
func (s *InvoiceService) Terms(ctx context.Context, invoiceID uuid.UUID) (*TermsView, error) {
	t, err := s.terms.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return newTermsView(t)
}

func newShortCode() string {
	buf := make([]byte, shortCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:shortCodeLength]
	}
	for i, b := range buf {
		buf[i] = shortCodeAlphabet[int(b)%len(shortCodeAlphabet)]
	}
	return string(buf)
}
