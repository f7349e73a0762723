package repositories

import (
	"context"

	"github.com/arc-invoice/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepo is the append-only action trail. Callers open it on the admin
// pool.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Log(ctx context.Context, entry models.AuditLog) error {
	var actor *string
	if entry.ActorWallet != nil {
		w := models.NormalizeWallet(*entry.ActorWallet)
		actor = &w
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (actor_wallet, actor_type, action, entity_type, entity_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, actor, entry.ActorType, entry.Action, entry.EntityType, entry.EntityID, entry.Meta)
	return mapErr(err, "audit entry")
}

// ListByEntity returns the trail of one entity in the order it happened.
func (r *AuditRepo) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_wallet, actor_type, action, entity_type, entity_id, meta, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at ASC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AuditLog{}
	for rows.Next() {
		var e models.AuditLog
		if err := rows.Scan(&e.ID, &e.ActorWallet, &e.ActorType, &e.Action, &e.EntityType, &e.EntityID, &e.Meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
