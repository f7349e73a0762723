package services

import (
	"context"

	"github.com/arc-invoice/backend/internal/arbitration"
	"github.com/arc-invoice/backend/internal/escrow"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

// The interfaces below are satisfied by the pgx repositories. Services depend
// on them so tests can run against in-memory stores.

type InvoiceStore interface {
	Create(ctx context.Context, i *models.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetByIDHash(ctx context.Context, idHash string) (*models.Invoice, error)
	ListByCreator(ctx context.Context, wallet string, limit, offset int) ([]models.Invoice, error)
	ListWithEscrow(ctx context.Context, status string, limit int) ([]models.Invoice, error)
	SetEscrowAddress(ctx context.Context, id uuid.UUID, addr string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type TermsStore interface {
	Create(ctx context.Context, t *models.InvoiceTerms) error
	GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*models.InvoiceTerms, error)
	CreateSignature(ctx context.Context, s *models.TermSignature) error
	ListSignatures(ctx context.Context, invoiceID uuid.UUID) ([]models.TermSignature, error)
	UpsertProof(ctx context.Context, p *models.DeliverableProof) error
	ListProofs(ctx context.Context, invoiceID uuid.UUID) ([]models.DeliverableProof, error)
}

type MilestoneStore interface {
	CreateBatch(ctx context.Context, ms []models.Milestone) error
	GetByID(ctx context.Context, invoiceID, id uuid.UUID) (*models.Milestone, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Milestone, error)
	Update(ctx context.Context, m *models.Milestone) error
}

type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, invoiceID, id uuid.UUID) (*models.Dispute, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Dispute, error)
	ListAwaitingRuling(ctx context.Context, limit int) ([]models.Dispute, error)
	SetArbitrationID(ctx context.Context, id uuid.UUID, arbitrationID string) error
	Resolve(ctx context.Context, id uuid.UUID, ruling int, payerMinor, creatorMinor int64) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.AuditLog, error)
}

// DriverFactory selects the escrow driver for a contract version.
type DriverFactory func(version int) (escrow.Driver, error)

type ArbitrationClient interface {
	GetDispute(ctx context.Context, id string) (*arbitration.Dispute, error)
}

// ReceiptSource is satisfied by ethclient.Client.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}
