package services

import (
	"context"

	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// notifier writes the audit trail and publishes invoice events. Neither
// failure aborts the operation that triggered it.
type notifier struct {
	audit     AuditStore
	publisher events.Publisher
	log       *zap.Logger
}

func (n notifier) record(ctx context.Context, actor, action string, invoiceID uuid.UUID, meta map[string]any) {
	entry := models.AuditLog{
		ActorType:  models.ActorSystem,
		Action:     action,
		EntityType: models.AuditEntityInvoice,
		EntityID:   &invoiceID,
		Meta:       meta,
	}
	if actor != "" {
		w := models.NormalizeWallet(actor)
		entry.ActorWallet = &w
		entry.ActorType = models.ActorWallet
	}
	if err := n.audit.Log(ctx, entry); err != nil {
		n.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (n notifier) publish(ctx context.Context, ev events.Event) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.Publish(ctx, events.StreamInvoice, ev); err != nil {
		n.log.Warn("publish event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

// parties lists the wallets an invoice event is delivered to: the creator and
// every recorded signer.
func parties(inv *models.Invoice, sigs []models.TermSignature) []string {
	out := []string{models.NormalizeWallet(inv.CreatorWallet)}
	for _, s := range sigs {
		w := models.NormalizeWallet(s.SignerWallet)
		if w != out[0] {
			out = append(out, w)
		}
	}
	return out
}
