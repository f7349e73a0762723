package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/escrow"
	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/metrics"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/rbac"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const autoReleaseNoticeTTL = 24 * time.Hour

type EscrowService struct {
	invoices InvoiceStore
	drivers  DriverFactory
	receipts ReceiptSource
	cache    Cache
	book     *chain.AddressBook
	network  uint64
	ttl      time.Duration
	notifier
}

// NewEscrowService wires escrow reads and binding. ttl bounds how long a
// status snapshot is served from cache; it matches the poll interval.
func NewEscrowService(
	invoices InvoiceStore,
	drivers DriverFactory,
	receipts ReceiptSource,
	cache Cache,
	book *chain.AddressBook,
	network uint64,
	ttl time.Duration,
	audit AuditStore,
	publisher events.Publisher,
	log *zap.Logger,
) *EscrowService {
	if ttl <= 0 {
		ttl = chain.DefaultPollInterval
	}
	return &EscrowService{
		invoices: invoices,
		drivers:  drivers,
		receipts: receipts,
		cache:    cache,
		book:     book,
		network:  network,
		ttl:      ttl,
		notifier: notifier{audit: audit, publisher: publisher, log: log},
	}
}

func statusCacheKey(addr string) string { return "escrow:status:" + addr }

// Snapshot returns the escrow state of an invoice, cached for one poll
// interval, and brings the invoice status in line with it.
func (s *EscrowService) Snapshot(ctx context.Context, invoiceID uuid.UUID) (*escrow.Status, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.EscrowAddress == nil {
		return nil, errs.New(errs.KindNotFound, "Escrow not deployed for invoice %s", inv.ShortCode)
	}
	key := statusCacheKey(*inv.EscrowAddress)

	if raw, err := s.cache.Get(ctx, key); err == nil {
		var st escrow.Status
		if err := json.Unmarshal([]byte(raw), &st); err == nil {
			return &st, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		s.log.Warn("escrow cache read failed", zap.Error(err))
	}

	st, err := s.fetch(ctx, inv)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(st); err == nil {
		if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
			s.log.Warn("escrow cache write failed", zap.Error(err))
		}
	}
	s.syncStatus(ctx, inv, st)
	return st, nil
}

func (s *EscrowService) fetch(ctx context.Context, inv *models.Invoice) (*escrow.Status, error) {
	driver, err := s.drivers(inv.ContractVersion)
	if err != nil {
		return nil, err
	}
	return driver.Status(ctx, common.HexToAddress(*inv.EscrowAddress))
}

// invoiceStatusFor maps an escrow state to the invoice status it implies.
// An empty result leaves the invoice unchanged.
func invoiceStatusFor(state string) string {
	switch state {
	case escrow.StateFunded, escrow.StateActive:
		return models.InvoiceStatusFunded
	case escrow.StateReleased, escrow.StateCompleted:
		return models.InvoiceStatusReleased
	case escrow.StateRefunded:
		return models.InvoiceStatusRefunded
	}
	return ""
}

func (s *EscrowService) syncStatus(ctx context.Context, inv *models.Invoice, st *escrow.Status) {
	next := invoiceStatusFor(st.State)
	if next == "" || next == inv.Status {
		return
	}
	// An open dispute keeps the invoice disputed until funds settle.
	if inv.Status == models.InvoiceStatusDisputed && !st.Settled() {
		return
	}
	if err := s.invoices.UpdateStatus(ctx, inv.ID, next); err != nil {
		s.log.Warn("sync invoice status", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		return
	}
	old := inv.Status
	inv.Status = next
	s.record(ctx, "", "invoice_status_synced", inv.ID, map[string]any{"old_status": old, "new_status": next, "escrow_state": st.State})
	s.publish(ctx, events.ForInvoice(events.EventEscrowStatusChanged, inv.ID.String(), []string{inv.CreatorWallet, models.NormalizeWallet(st.Payer.Hex())}, map[string]any{
		"escrow_state": st.State,
		"status":       next,
	}))
}

// AttachFromReceipt binds the escrow deployed by txHash to the invoice. Only
// the creator may attach, and the creation event must name this invoice.
func (s *EscrowService) AttachFromReceipt(ctx context.Context, invoiceID uuid.UUID, wallet, txHash string) (*models.Invoice, error) {
	if wallet == "" {
		return nil, errs.New(errs.KindUnauthorized, "Unauthorized")
	}
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasPermission(rbac.RoleFor(inv, nil, wallet), rbac.PermAttachEscrow) {
		return nil, errs.New(errs.KindForbidden, "Only the invoice creator can attach an escrow")
	}
	if len(common.FromHex(txHash)) != common.HashLength {
		return nil, errs.Validation(errs.FieldError{Field: "tx_hash", Message: "must be a 32-byte hex transaction hash"})
	}

	receipt, err := s.receipts.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, errs.Wrap(errs.KindOnChainCallFailure, err, "fetch transaction receipt")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, errs.Validation(errs.FieldError{Field: "tx_hash", Message: "transaction reverted"})
	}
	factory, topic, err := escrow.Factory(s.book, s.network, inv.ContractVersion)
	if err != nil {
		return nil, err
	}
	ev, ok := chain.ParseEscrowCreated(receipt, factory, topic)
	if !ok {
		return nil, errs.Validation(errs.FieldError{Field: "tx_hash", Message: "transaction did not create an escrow"})
	}
	if ev.InvoiceIDHash.Hex() != inv.IDHash {
		return nil, errs.Validation(errs.FieldError{Field: "tx_hash", Message: "escrow was created for a different invoice"})
	}
	if err := s.bind(ctx, inv, ev, wallet); err != nil {
		return nil, err
	}
	return inv, nil
}

// BindFromLog binds an escrow seen in a factory log. Logs for unknown
// invoices or from a factory of the wrong version are skipped.
func (s *EscrowService) BindFromLog(ctx context.Context, ev chain.EscrowCreated) (bool, error) {
	inv, err := s.invoices.GetByIDHash(ctx, ev.InvoiceIDHash.Hex())
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if inv.EscrowAddress != nil && models.SameWallet(*inv.EscrowAddress, ev.Escrow.Hex()) {
		return false, nil
	}
	factory, _, err := escrow.Factory(s.book, s.network, inv.ContractVersion)
	if err != nil || factory != ev.Factory {
		s.log.Warn("escrow log from unexpected factory",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("factory", ev.Factory.Hex()),
			zap.Int("contract_version", inv.ContractVersion),
		)
		return false, nil
	}
	if err := s.bind(ctx, inv, ev, ""); err != nil {
		return false, err
	}
	metrics.Get().IndexedEscrows.Inc()
	return true, nil
}

func (s *EscrowService) bind(ctx context.Context, inv *models.Invoice, ev chain.EscrowCreated, actor string) error {
	addr := models.NormalizeWallet(ev.Escrow.Hex())
	if inv.EscrowAddress != nil {
		if *inv.EscrowAddress == addr {
			return nil
		}
		return errs.New(errs.KindStorageConflict, "Invoice %s is already bound to escrow %s", inv.ShortCode, *inv.EscrowAddress)
	}
	if err := s.invoices.SetEscrowAddress(ctx, inv.ID, addr); err != nil {
		return err
	}
	inv.EscrowAddress = &addr

	s.record(ctx, actor, "escrow_bound", inv.ID, map[string]any{"escrow": addr, "tx_hash": ev.TxHash.Hex()})
	s.publish(ctx, events.ForInvoice(events.EventEscrowBound, inv.ID.String(), []string{inv.CreatorWallet}, map[string]any{
		"escrow":  addr,
		"tx_hash": ev.TxHash.Hex(),
	}))
	s.log.Info("escrow bound",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("escrow", addr),
		zap.Uint64("block", ev.BlockNumber),
	)
	return nil
}

// ScanAutoRelease notifies creators whose funded escrows passed the review
// period. Each invoice is announced at most once per day.
func (s *EscrowService) ScanAutoRelease(ctx context.Context) (int, error) {
	funded, err := s.invoices.ListWithEscrow(ctx, models.InvoiceStatusFunded, 200)
	if err != nil {
		return 0, err
	}
	notified := 0
	for i := range funded {
		inv := &funded[i]
		if ctx.Err() != nil {
			return notified, ctx.Err()
		}
		st, err := s.fetch(ctx, inv)
		if err != nil {
			s.log.Warn("auto-release status read failed", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
			continue
		}
		s.syncStatus(ctx, inv, st)
		if !st.CanAutoRelease {
			continue
		}
		first, err := s.cache.SetNX(ctx, "escrow:autorelease:"+inv.ID.String(), "1", autoReleaseNoticeTTL)
		if err != nil || !first {
			continue
		}
		notified++
		s.publish(ctx, events.ForInvoice(events.EventAutoReleaseAvailable, inv.ID.String(), []string{inv.CreatorWallet}, map[string]any{
			"escrow": *inv.EscrowAddress,
		}))
	}
	return notified, nil
}
