package repositories

import (
	"context"

	"github.com/arc-invoice/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DisputeRepo struct {
	pool *pgxpool.Pool
}

func NewDisputeRepo(pool *pgxpool.Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

const disputeColumns = `
	id, invoice_id, opened_by, deliverable_index, reason, violated_criteria, meta_evidence,
	status, arbitration_dispute_id, ruling, payer_amount_minor, creator_amount_minor,
	created_at, resolved_at`

func scanDispute(row pgx.Row) (*models.Dispute, error) {
	var d models.Dispute
	if err := row.Scan(&d.ID, &d.InvoiceID, &d.OpenedBy, &d.DeliverableIndex, &d.Reason, &d.ViolatedCriteria, &d.MetaEvidence,
		&d.Status, &d.ArbitrationDisputeID, &d.Ruling, &d.PayerAmountMinor, &d.CreatorAmountMinor,
		&d.CreatedAt, &d.ResolvedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO disputes (invoice_id, opened_by, deliverable_index, reason, violated_criteria, meta_evidence, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, d.InvoiceID, models.NormalizeWallet(d.OpenedBy), d.DeliverableIndex, d.Reason, d.ViolatedCriteria, d.MetaEvidence, d.Status,
	).Scan(&d.ID, &d.CreatedAt)
	return mapErr(err, "dispute")
}

func (r *DisputeRepo) GetByID(ctx context.Context, invoiceID, id uuid.UUID) (*models.Dispute, error) {
	d, err := scanDispute(r.pool.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE id = $1 AND invoice_id = $2
	`, id, invoiceID))
	return d, mapErr(err, "dispute")
}

func (r *DisputeRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Dispute, error) {
	return r.list(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE invoice_id = $1 ORDER BY created_at DESC`, invoiceID)
}

// ListAwaitingRuling returns open disputes already filed with the arbitrator.
func (r *DisputeRepo) ListAwaitingRuling(ctx context.Context, limit int) ([]models.Dispute, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE status = $1 AND arbitration_dispute_id IS NOT NULL
		ORDER BY created_at ASC LIMIT $2
	`, models.DisputeStatusOpen, limit)
}

func (r *DisputeRepo) list(ctx context.Context, query string, args ...any) ([]models.Dispute, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *DisputeRepo) SetArbitrationID(ctx context.Context, id uuid.UUID, arbitrationID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE disputes SET arbitration_dispute_id = $1 WHERE id = $2`, arbitrationID, id)
	return err
}

// Resolve records a ruling once; an already resolved dispute is left as is.
func (r *DisputeRepo) Resolve(ctx context.Context, id uuid.UUID, ruling int, payerMinor, creatorMinor int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE disputes
		SET status = $1, ruling = $2, payer_amount_minor = $3, creator_amount_minor = $4, resolved_at = now()
		WHERE id = $5 AND status = $6
	`, models.DisputeStatusResolved, ruling, payerMinor, creatorMinor, id, models.DisputeStatusOpen)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
