package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"time"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/dispute"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/escrow"
	"github.com/arc-invoice/backend/internal/funding"
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/terms"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type txOutput struct {
	TxHash common.Hash `json:"tx_hash"`
	Index  int         `json:"index"`
}

func runCreate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("create", stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	s, err := open(ctx, cf, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer s.Close()

	inv := s.invoice.Invoice
	if inv.EscrowAddress != nil {
		return fail(stderr, errs.New(errs.KindStorageConflict, "Invoice %s already has escrow %s", inv.ShortCode, *inv.EscrowAddress))
	}
	if !inv.IsCreator(s.tx.From().Hex()) {
		return fail(stderr, errs.New(errs.KindForbidden, "Only the invoice creator can deploy its escrow"))
	}
	params, err := createParams(s.invoice)
	if err != nil {
		return fail(stderr, err)
	}
	d, err := s.driver()
	if err != nil {
		return fail(stderr, err)
	}
	res, err := d.Create(ctx, params)
	if err != nil {
		return fail(stderr, err)
	}
	if err := s.api.AttachEscrow(ctx, s.invoiceID, res.TxHash); err != nil {
		printJSON(stdout, res)
		return fail(stderr, fmt.Errorf("escrow deployed but not attached: %w", err))
	}
	printJSON(stdout, res)
	return 0
}

// createParams derives the factory arguments from the invoice as the API
// stores it.
func createParams(d *dto.InvoiceDetailsResponse) (escrow.CreateParams, error) {
	inv := d.Invoice
	total, err := models.ToMinorUnits(inv.Amount)
	if err != nil {
		return escrow.CreateParams{}, err
	}
	p := escrow.CreateParams{
		InvoiceID:       inv.ID.String(),
		Amount:          big.NewInt(total),
		AutoReleaseDays: inv.AutoReleaseDays,
	}

	switch inv.ContractVersion {
	case models.ContractVersionLegacyMilestone, models.ContractVersionMilestone:
		if len(d.Milestones) == 0 {
			return p, errs.New(errs.KindValidation, "Invoice %s has no milestones", inv.ShortCode)
		}
		for _, m := range d.Milestones {
			amount, err := models.ToMinorUnits(m.Amount)
			if err != nil {
				return p, err
			}
			p.ItemAmounts = append(p.ItemAmounts, big.NewInt(amount))
		}
	case models.ContractVersionTerms:
		t := d.Terms
		if t == nil || len(t.Deliverables) == 0 {
			return p, errs.New(errs.KindValidation, "Invoice %s has no terms", inv.ShortCode)
		}
		for i, amount := range terms.DeliverableAmounts(total, t.Deliverables) {
			p.ItemAmounts = append(p.ItemAmounts, big.NewInt(amount))
			p.CriteriaHashes = append(p.CriteriaHashes, terms.CriteriaHash(t.Deliverables[i].Criteria))
			p.DeadlineDays = append(p.DeadlineDays, t.Deliverables[i].DeadlineDays)
		}
		p.TermsHash = common.HexToHash(t.TermsHash)
		p.AutoReleaseDays = t.AutoReleaseDays
	}
	return p, nil
}

func runFund(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("fund", stderr)
	index := fs.Int("index", -1, "deliverable or milestone to fund (default: the current one)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	s, err := open(ctx, cf, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer s.Close()

	addr, err := s.escrowAddress()
	if err != nil {
		return fail(stderr, err)
	}
	version := s.invoice.Invoice.ContractVersion
	if version == models.ContractVersionTerms {
		if err := s.enableFunding(); err != nil {
			return fail(stderr, err)
		}
	}
	d, err := s.driver()
	if err != nil {
		return fail(stderr, err)
	}

	idx := *index
	if idx < 0 {
		if idx, err = s.currentIndex(ctx, addr); err != nil {
			return fail(stderr, err)
		}
	}
	amount, err := fundAmount(s.invoice, idx)
	if err != nil {
		return fail(stderr, err)
	}
	p := escrow.FundParams{Escrow: addr, Index: idx, Amount: amount}
	if s.invoice.Terms != nil {
		p.TermsHash = s.invoice.Terms.TermsHash
	}

	hash, err := d.Fund(ctx, p)
	if err != nil {
		return fail(stderr, err)
	}
	if s.invoice.Invoice.IsMilestoneBased() {
		m := s.invoice.Milestones[idx]
		if err := s.api.MarkMilestoneFunded(ctx, s.invoiceID, m.ID); err != nil {
			s.log.Warn("milestone funded on chain but not marked", zap.String("milestone_id", m.ID.String()), zap.Error(err))
		}
	}
	printJSON(stdout, txOutput{TxHash: hash, Index: idx})
	return 0
}

// currentIndex reads the funding cursor of item-based escrows.
func (s *session) currentIndex(ctx context.Context, addr common.Address) (int, error) {
	switch s.invoice.Invoice.ContractVersion {
	case models.ContractVersionTerms:
		reader, ok := s.deps.Reader.(funding.StatusReader)
		if !ok {
			return 0, errors.New("state reader cannot read the funding cursor")
		}
		return reader.CurrentDeliverable(ctx, addr)
	case models.ContractVersionLegacyMilestone, models.ContractVersionMilestone:
		snap, err := s.deps.Reader.MilestoneStatus(ctx, addr)
		if err != nil {
			return 0, err
		}
		return snap.CurrentItem, nil
	}
	return 0, nil
}

// fundAmount is the face amount due for index.
func fundAmount(d *dto.InvoiceDetailsResponse, index int) (*big.Int, error) {
	inv := d.Invoice
	total, err := models.ToMinorUnits(inv.Amount)
	if err != nil {
		return nil, err
	}

	switch inv.ContractVersion {
	case models.ContractVersionTerms:
		if d.Terms == nil {
			return nil, errs.New(errs.KindValidation, "Invoice %s has no terms", inv.ShortCode)
		}
		amounts := terms.DeliverableAmounts(total, d.Terms.Deliverables)
		if index >= len(amounts) {
			return nil, errs.New(errs.KindValidation, "Deliverable index %d out of range", index)
		}
		return big.NewInt(amounts[index]), nil
	case models.ContractVersionLegacyMilestone, models.ContractVersionMilestone:
		if index >= len(d.Milestones) {
			return nil, errs.New(errs.KindValidation, "Milestone index %d out of range", index)
		}
		amount, err := models.ToMinorUnits(d.Milestones[index].Amount)
		if err != nil {
			return nil, err
		}
		return big.NewInt(amount), nil
	}
	return big.NewInt(total), nil
}

func runApprove(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("approve", stderr)
	index := fs.Int("index", 0, "deliverable or milestone to approve")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return withEscrow(ctx, cf, stdout, stderr, func(d escrow.Driver, addr common.Address) (common.Hash, error) {
		return d.Release(ctx, addr, *index)
	})
}

func runAutoRelease(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("auto-release", stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return withEscrow(ctx, cf, stdout, stderr, func(d escrow.Driver, addr common.Address) (common.Hash, error) {
		ar, ok := d.(escrow.AutoReleaser)
		if !ok {
			return common.Hash{}, errs.New(errs.KindWrongContractVersion, "Contract version %d has no auto-release", d.Version())
		}
		return ar.AutoRelease(ctx, addr)
	})
}

func runRefund(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("refund", stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return withEscrow(ctx, cf, stdout, stderr, func(d escrow.Driver, addr common.Address) (common.Hash, error) {
		r, ok := d.(escrow.Refunder)
		if !ok {
			return common.Hash{}, errs.New(errs.KindWrongContractVersion, "Contract version %d cannot be refunded", d.Version())
		}
		return r.Refund(ctx, addr)
	})
}

// withEscrow opens a session and runs one transaction against its escrow.
func withEscrow(ctx context.Context, cf *commonFlags, stdout, stderr io.Writer, fn func(escrow.Driver, common.Address) (common.Hash, error)) int {
	s, err := open(ctx, cf, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer s.Close()

	addr, err := s.escrowAddress()
	if err != nil {
		return fail(stderr, err)
	}
	d, err := s.driver()
	if err != nil {
		return fail(stderr, err)
	}
	hash, err := fn(d, addr)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, map[string]common.Hash{"tx_hash": hash})
	return 0
}

func runDispute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("dispute", stderr)
	reason := fs.String("reason", "", "why the dispute is opened")
	index := fs.Int("index", -1, "disputed deliverable (terms invoices)")
	criteria := fs.String("criteria", "", "criteria the deliverable violates")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	s, err := open(ctx, cf, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer s.Close()

	req := dispute.OpenRequest{Reason: *reason, ViolatedCriteria: *criteria}
	if *index >= 0 {
		req.DeliverableIndex = index
	}
	opened, err := s.api.OpenDispute(ctx, s.invoiceID, req)
	if err != nil {
		return fail(stderr, err)
	}
	out := struct {
		Dispute *dto.DisputeResponse `json:"dispute"`
		TxHash  *common.Hash         `json:"tx_hash,omitempty"`
	}{Dispute: opened.Dispute}

	if opened.Call != nil {
		hash, err := s.tx.Send(ctx, opened.Call.To, opened.Call.Data)
		if err != nil {
			return fail(stderr, err)
		}
		if _, err := s.tx.Wait(ctx, hash); err != nil {
			return fail(stderr, err)
		}
		out.TxHash = &hash
	}
	printJSON(stdout, out)
	return 0
}

type statusFlags struct {
	escrow  string
	version int
}

func statusFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *commonFlags, *statusFlags) {
	fs, cf := newFlagSet(name, stderr)
	sf := &statusFlags{}
	fs.StringVar(&sf.escrow, "escrow", "", "escrow address; with --version, no login is needed")
	fs.IntVar(&sf.version, "version", 0, "contract version of --escrow")
	return fs, cf, sf
}

// statusSource resolves a status fetcher either directly from --escrow and
// --version or through a signed-in session.
func statusSource(ctx context.Context, cf *commonFlags, sf *statusFlags, stderr io.Writer) (func(context.Context) (*escrow.Status, error), func(), error) {
	if sf.escrow != "" && sf.version != 0 {
		if !common.IsHexAddress(sf.escrow) {
			return nil, nil, errs.New(errs.KindValidation, "--escrow must be an address")
		}
		rpc, deps, _, err := dial(ctx)
		if err != nil {
			return nil, nil, err
		}
		d, err := escrow.ForVersion(sf.version, deps)
		if err != nil {
			rpc.Close()
			return nil, nil, err
		}
		addr := common.HexToAddress(sf.escrow)
		return func(ctx context.Context) (*escrow.Status, error) { return d.Status(ctx, addr) }, rpc.Close, nil
	}

	s, err := open(ctx, cf, stderr)
	if err != nil {
		return nil, nil, err
	}
	addr, err := s.escrowAddress()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	d, err := s.driver()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return func(ctx context.Context) (*escrow.Status, error) { return d.Status(ctx, addr) }, s.Close, nil
}

func runStatus(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, cf, sf := statusFlagSet("status", stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	fetch, closeFn, err := statusSource(ctx, cf, sf, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer closeFn()

	st, err := fetch(ctx)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, st)
	return 0
}

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, cf, sf := statusFlagSet("watch", stderr)
	interval := fs.Duration("interval", 5*time.Second, "poll interval")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	fetch, closeFn, err := statusSource(ctx, cf, sf, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer closeFn()

	var last *escrow.Status
	chain.NewPoller(*interval, fetch, zap.NewNop()).Run(ctx, func(st *escrow.Status) {
		if changed(last, st) {
			printJSON(stdout, st)
		}
		last = st
	})
	return 0
}

// changed reports whether the escrow moved between two snapshots.
func changed(prev, next *escrow.Status) bool {
	if prev == nil || next == nil {
		return prev != next
	}
	return !reflect.DeepEqual(prev, next)
}
