package repositories

import (
	"context"

	"github.com/arc-invoice/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MilestoneRepo struct {
	pool *pgxpool.Pool
}

func NewMilestoneRepo(pool *pgxpool.Pool) *MilestoneRepo {
	return &MilestoneRepo{pool: pool}
}

// CreateBatch inserts all milestones of an invoice in one transaction.
func (r *MilestoneRepo) CreateBatch(ctx context.Context, ms []models.Milestone) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i := range ms {
		m := &ms[i]
		batch.Queue(`
			INSERT INTO milestones (invoice_id, amount_minor, description, order_index, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`, m.InvoiceID, m.AmountMinor, m.Description, m.OrderIndex, m.Status).QueryRow(func(row pgx.Row) error {
			return row.Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
		})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapErr(err, "milestone")
	}
	return tx.Commit(ctx)
}

const milestoneColumns = `id, invoice_id, amount_minor, description, order_index, status, proof_url, released_at, created_at, updated_at`

func scanMilestone(row pgx.Row) (*models.Milestone, error) {
	var m models.Milestone
	if err := row.Scan(&m.ID, &m.InvoiceID, &m.AmountMinor, &m.Description, &m.OrderIndex, &m.Status,
		&m.ProofURL, &m.ReleasedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MilestoneRepo) GetByID(ctx context.Context, invoiceID, id uuid.UUID) (*models.Milestone, error) {
	m, err := scanMilestone(r.pool.QueryRow(ctx, `
		SELECT `+milestoneColumns+` FROM milestones WHERE id = $1 AND invoice_id = $2
	`, id, invoiceID))
	return m, mapErr(err, "milestone")
}

func (r *MilestoneRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Milestone, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+milestoneColumns+` FROM milestones WHERE invoice_id = $1 ORDER BY order_index ASC
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Update writes status, proof_url and released_at of m.
func (r *MilestoneRepo) Update(ctx context.Context, m *models.Milestone) error {
	return r.pool.QueryRow(ctx, `
		UPDATE milestones SET status = $1, proof_url = $2, released_at = $3, updated_at = now()
		WHERE id = $4
		RETURNING updated_at
	`, m.Status, m.ProofURL, m.ReleasedAt, m.ID).Scan(&m.UpdatedAt)
}
