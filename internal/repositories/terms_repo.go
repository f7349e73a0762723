package repositories

import (
	"context"

	"github.com/arc-invoice/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TermsRepo stores invoice terms and the signatures and proofs tied to them.
type TermsRepo struct {
	pool *pgxpool.Pool
}

func NewTermsRepo(pool *pgxpool.Pool) *TermsRepo {
	return &TermsRepo{pool: pool}
}

func (r *TermsRepo) Create(ctx context.Context, t *models.InvoiceTerms) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoice_terms (invoice_id, template_type, deliverables, payment_schedule,
		                           revision_limit, auto_release_days, terms_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, t.InvoiceID, t.TemplateType, t.Deliverables, t.PaymentSchedule,
		t.RevisionLimit, t.AutoReleaseDays, t.TermsHash,
	).Scan(&t.ID, &t.CreatedAt)
	return mapErr(err, "terms")
}

func (r *TermsRepo) GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*models.InvoiceTerms, error) {
	var t models.InvoiceTerms
	err := r.pool.QueryRow(ctx, `
		SELECT id, invoice_id, template_type, deliverables, payment_schedule,
		       revision_limit, auto_release_days, terms_hash, created_at
		FROM invoice_terms WHERE invoice_id = $1
	`, invoiceID).Scan(&t.ID, &t.InvoiceID, &t.TemplateType, &t.Deliverables, &t.PaymentSchedule,
		&t.RevisionLimit, &t.AutoReleaseDays, &t.TermsHash, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "terms")
	}
	return &t, nil
}

// CreateSignature inserts a signature. A second signature by the same wallet
// fails with a StorageConflict error.
func (r *TermsRepo) CreateSignature(ctx context.Context, s *models.TermSignature) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO term_signatures (invoice_id, signer_wallet, signer_role, signature, terms_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, signed_at
	`, s.InvoiceID, models.NormalizeWallet(s.SignerWallet), s.SignerRole, s.Signature, s.TermsHash,
	).Scan(&s.ID, &s.SignedAt)
	return mapErr(err, "signature")
}

func (r *TermsRepo) ListSignatures(ctx context.Context, invoiceID uuid.UUID) ([]models.TermSignature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, signer_wallet, signer_role, signature, terms_hash, signed_at
		FROM term_signatures WHERE invoice_id = $1
		ORDER BY signed_at ASC
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TermSignature
	for rows.Next() {
		var s models.TermSignature
		if err := rows.Scan(&s.ID, &s.InvoiceID, &s.SignerWallet, &s.SignerRole, &s.Signature, &s.TermsHash, &s.SignedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertProof replaces the proof for (invoice, deliverable index).
func (r *TermsRepo) UpsertProof(ctx context.Context, p *models.DeliverableProof) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO deliverable_proofs (invoice_id, deliverable_index, proof_url, submitted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (invoice_id, deliverable_index)
		DO UPDATE SET proof_url = EXCLUDED.proof_url,
		              submitted_by = EXCLUDED.submitted_by,
		              submitted_at = now()
		RETURNING id, submitted_at
	`, p.InvoiceID, p.DeliverableIndex, p.ProofURL, models.NormalizeWallet(p.SubmittedBy),
	).Scan(&p.ID, &p.SubmittedAt)
	return mapErr(err, "proof")
}

func (r *TermsRepo) ListProofs(ctx context.Context, invoiceID uuid.UUID) ([]models.DeliverableProof, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, deliverable_index, proof_url, submitted_by, submitted_at
		FROM deliverable_proofs WHERE invoice_id = $1
		ORDER BY deliverable_index ASC
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DeliverableProof
	for rows.Next() {
		var p models.DeliverableProof
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.DeliverableIndex, &p.ProofURL, &p.SubmittedBy, &p.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
