package events

import "context"

// StreamInvoice is the pub/sub channel all invoice events go through.
const StreamInvoice = "events:invoice"

// Event types
const (
	EventInvoiceCreated       = "invoice_created"
	EventTermsSigned          = "terms_signed"
	EventProofSubmitted       = "proof_submitted"
	EventMilestoneUpdated     = "milestone_updated"
	EventDisputeOpened        = "dispute_opened"
	EventDisputeResolved      = "dispute_resolved"
	EventEscrowBound          = "escrow_bound"
	EventEscrowStatusChanged  = "escrow_status_changed"
	EventAutoReleaseAvailable = "auto_release_available"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// ForInvoice builds an event addressed to the given wallets. The websocket
// hub delivers it to every connection of those wallets.
func ForInvoice(eventType, invoiceID string, wallets []string, extra map[string]any) Event {
	payload := map[string]any{"invoice_id": invoiceID, "wallets": wallets}
	for k, v := range extra {
		payload[k] = v
	}
	return Event{Type: eventType, Payload: payload}
}

// Wallets extracts the recipients of an event built by ForInvoice. It also
// accepts the []any shape produced by JSON decoding.
func (e Event) Wallets() []string {
	switch v := e.Payload["wallets"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, w := range v {
			if s, ok := w.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// InvoiceID is the invoice an event refers to, or "".
func (e Event) InvoiceID() string {
	id, _ := e.Payload["invoice_id"].(string)
	return id
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
