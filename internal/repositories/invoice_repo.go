package repositories

import (
	"context"

	"github.com/arc-invoice/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InvoiceRepo struct {
	pool *pgxpool.Pool
}

func NewInvoiceRepo(pool *pgxpool.Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

const invoiceColumns = `
	id, short_code, creator_wallet, amount_minor, description, payment_type,
	client_name, client_email, contract_version, status, auto_release_days,
	yield_escrow_enabled, escrow_address, id_hash, created_at, updated_at`

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	var i models.Invoice
	err := row.Scan(&i.ID, &i.ShortCode, &i.CreatorWallet, &i.AmountMinor, &i.Description, &i.PaymentType,
		&i.ClientName, &i.ClientEmail, &i.ContractVersion, &i.Status, &i.AutoReleaseDays,
		&i.YieldEscrowEnabled, &i.EscrowAddress, &i.IDHash, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *InvoiceRepo) Create(ctx context.Context, i *models.Invoice) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (id, short_code, creator_wallet, amount_minor, description, payment_type,
		                      client_name, client_email, contract_version, status, auto_release_days,
		                      yield_escrow_enabled, id_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, i.ID, i.ShortCode, i.CreatorWallet, i.AmountMinor, i.Description, i.PaymentType,
		i.ClientName, i.ClientEmail, i.ContractVersion, i.Status, i.AutoReleaseDays,
		i.YieldEscrowEnabled, i.IDHash,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
	return mapErr(err, "invoice")
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	i, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	return i, mapErr(err, "invoice")
}

// GetByIDHash finds the invoice a factory event refers to.
func (r *InvoiceRepo) GetByIDHash(ctx context.Context, idHash string) (*models.Invoice, error) {
	i, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id_hash = $1`, idHash))
	return i, mapErr(err, "invoice")
}

// ListByCreator returns the creator's invoices, newest first.
func (r *InvoiceRepo) ListByCreator(ctx context.Context, wallet string, limit, offset int) ([]models.Invoice, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE creator_wallet = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, models.NormalizeWallet(wallet), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// ListWithEscrow returns invoices in status that have an escrow bound.
func (r *InvoiceRepo) ListWithEscrow(ctx context.Context, status string, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE escrow_address IS NOT NULL AND status = $1
		ORDER BY updated_at ASC LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (r *InvoiceRepo) SetEscrowAddress(ctx context.Context, id uuid.UUID, addr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE invoices SET escrow_address = $1, updated_at = now() WHERE id = $2
	`, models.NormalizeWallet(addr), id)
	return err
}

func (r *InvoiceRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE invoices SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

// Delete removes an invoice and, through cascades, its children.
func (r *InvoiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	return err
}
