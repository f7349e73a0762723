package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arc-invoice/backend/internal/arbitration"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/escrow"
	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

type memInvoices struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*models.Invoice
	deleted []uuid.UUID
}

func newMemInvoices(invs ...*models.Invoice) *memInvoices {
	m := &memInvoices{rows: map[uuid.UUID]*models.Invoice{}}
	for _, inv := range invs {
		m.rows[inv.ID] = inv
	}
	return m
}

func (m *memInvoices) Create(_ context.Context, i *models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i.CreatedAt = time.Now()
	i.UpdatedAt = i.CreatedAt
	cp := *i
	m.rows[i.ID] = &cp
	return nil
}

func (m *memInvoices) GetByID(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.rows[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "invoice not found")
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvoices) GetByIDHash(_ context.Context, idHash string) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.rows {
		if inv.IDHash == idHash {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, errs.New(errs.KindNotFound, "invoice not found")
}

func (m *memInvoices) ListByCreator(_ context.Context, wallet string, _, _ int) ([]models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Invoice
	for _, inv := range m.rows {
		if inv.IsCreator(wallet) {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memInvoices) ListWithEscrow(_ context.Context, status string, _ int) ([]models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Invoice
	for _, inv := range m.rows {
		if inv.EscrowAddress != nil && inv.Status == status {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *memInvoices) SetEscrowAddress(_ context.Context, id uuid.UUID, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := models.NormalizeWallet(addr)
	m.rows[id].EscrowAddress = &a
	return nil
}

func (m *memInvoices) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].Status = status
	return nil
}

func (m *memInvoices) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type memTerms struct {
	mu        sync.Mutex
	terms     map[uuid.UUID]*models.InvoiceTerms
	sigs      []models.TermSignature
	proofs    map[string]*models.DeliverableProof
	createErr error
	sigErr    error
}

func newMemTerms() *memTerms {
	return &memTerms{terms: map[uuid.UUID]*models.InvoiceTerms{}, proofs: map[string]*models.DeliverableProof{}}
}

func (m *memTerms) Create(_ context.Context, t *models.InvoiceTerms) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.New()
	cp := *t
	m.terms[t.InvoiceID] = &cp
	return nil
}

func (m *memTerms) GetByInvoiceID(_ context.Context, invoiceID uuid.UUID) (*models.InvoiceTerms, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terms[invoiceID]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "terms not found")
	}
	cp := *t
	return &cp, nil
}

func (m *memTerms) CreateSignature(_ context.Context, s *models.TermSignature) error {
	if m.sigErr != nil {
		return m.sigErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sigs {
		if existing.InvoiceID == s.InvoiceID && existing.SignerWallet == models.NormalizeWallet(s.SignerWallet) {
			return errs.New(errs.KindStorageConflict, "signature already exists")
		}
	}
	s.ID = uuid.New()
	s.SignedAt = time.Now()
	cp := *s
	cp.SignerWallet = models.NormalizeWallet(s.SignerWallet)
	m.sigs = append(m.sigs, cp)
	return nil
}

func (m *memTerms) ListSignatures(_ context.Context, invoiceID uuid.UUID) ([]models.TermSignature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TermSignature
	for _, s := range m.sigs {
		if s.InvoiceID == invoiceID {
			out = append(out, s)
		}
	}
	return out, nil
}

func proofKey(invoiceID uuid.UUID, index int) string {
	return fmt.Sprintf("%s/%d", invoiceID, index)
}

func (m *memTerms) UpsertProof(_ context.Context, p *models.DeliverableProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := proofKey(p.InvoiceID, p.DeliverableIndex)
	if existing, ok := m.proofs[key]; ok {
		p.ID = existing.ID
	} else {
		p.ID = uuid.New()
	}
	p.SubmittedAt = time.Now()
	cp := *p
	m.proofs[key] = &cp
	return nil
}

func (m *memTerms) ListProofs(_ context.Context, invoiceID uuid.UUID) ([]models.DeliverableProof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DeliverableProof
	for _, p := range m.proofs {
		if p.InvoiceID == invoiceID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliverableIndex < out[j].DeliverableIndex })
	return out, nil
}

type memMilestones struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*models.Milestone
	createErr error
	updates   int
}

func newMemMilestones(ms ...*models.Milestone) *memMilestones {
	m := &memMilestones{rows: map[uuid.UUID]*models.Milestone{}}
	for _, ms := range ms {
		m.rows[ms.ID] = ms
	}
	return m
}

func (m *memMilestones) CreateBatch(_ context.Context, ms []models.Milestone) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range ms {
		ms[i].ID = uuid.New()
		cp := ms[i]
		m.rows[cp.ID] = &cp
	}
	return nil
}

func (m *memMilestones) GetByID(_ context.Context, invoiceID, id uuid.UUID) (*models.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.rows[id]
	if !ok || ms.InvoiceID != invoiceID {
		return nil, errs.New(errs.KindNotFound, "milestone not found")
	}
	cp := *ms
	return &cp, nil
}

func (m *memMilestones) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]models.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Milestone
	for _, ms := range m.rows {
		if ms.InvoiceID == invoiceID {
			out = append(out, *ms)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memMilestones) Update(_ context.Context, ms *models.Milestone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	cp := *ms
	m.rows[ms.ID] = &cp
	return nil
}

type memDisputes struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Dispute
}

func newMemDisputes() *memDisputes {
	return &memDisputes{rows: map[uuid.UUID]*models.Dispute{}}
}

func (m *memDisputes) Create(_ context.Context, d *models.Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	cp := *d
	m.rows[d.ID] = &cp
	return nil
}

func (m *memDisputes) GetByID(_ context.Context, invoiceID, id uuid.UUID) (*models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok || d.InvoiceID != invoiceID {
		return nil, errs.New(errs.KindNotFound, "dispute not found")
	}
	cp := *d
	return &cp, nil
}

func (m *memDisputes) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Dispute
	for _, d := range m.rows {
		if d.InvoiceID == invoiceID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDisputes) ListAwaitingRuling(_ context.Context, _ int) ([]models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Dispute
	for _, d := range m.rows {
		if d.Status == models.DisputeStatusOpen && d.ArbitrationDisputeID != nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDisputes) SetArbitrationID(_ context.Context, id uuid.UUID, arbitrationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].ArbitrationDisputeID = &arbitrationID
	return nil
}

func (m *memDisputes) Resolve(_ context.Context, id uuid.UUID, ruling int, payerMinor, creatorMinor int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.rows[id]
	if d.Status != models.DisputeStatusOpen {
		return false, nil
	}
	d.Status = models.DisputeStatusResolved
	d.Ruling = &ruling
	d.PayerAmountMinor = &payerMinor
	d.CreatorAmountMinor = &creatorMinor
	return true, nil
}

type nopAudit struct{}

func (nopAudit) Log(context.Context, models.AuditLog) error { return nil }

func (nopAudit) ListByEntity(context.Context, string, uuid.UUID, int) ([]models.AuditLog, error) {
	return nil, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *memAudit) Log(_ context.Context, e models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) ListByEntity(_ context.Context, entityType string, id uuid.UUID, _ int) ([]models.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.AuditLog
	for _, e := range a.entries {
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

type recPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recPublisher) Publish(_ context.Context, _ string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

func (c *memCache) GetDel(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	delete(c.data, key)
	return v, nil
}

type fakeArbitration struct {
	disputes map[string]*arbitration.Dispute
	calls    int
}

func (f *fakeArbitration) GetDispute(_ context.Context, id string) (*arbitration.Dispute, error) {
	f.calls++
	return f.disputes[id], nil
}

// fakeDriver serves a fixed status and counts reads.
type fakeDriver struct {
	escrow.Driver
	status *escrow.Status
	reads  int
}

func (d *fakeDriver) Status(context.Context, common.Address) (*escrow.Status, error) {
	d.reads++
	cp := *d.status
	return &cp, nil
}

type fakeReceipts struct {
	receipts map[common.Hash]*types.Receipt
}

func (f *fakeReceipts) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	r, ok := f.receipts[hash]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "receipt not found")
	}
	return r, nil
}
