package escrow

import (
	"context"
	"math/big"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/funding"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// Simple drives v1 single-payment escrows.
type Simple struct{ deps Deps }

func (d *Simple) Version() int { return models.ContractVersionSimple }

func (d *Simple) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	factory, topic, err := Factory(d.deps.Book, d.deps.Network, d.Version())
	if err != nil {
		return nil, err
	}
	data, err := chain.CreateSimpleEscrowCall(p.InvoiceID, p.Amount, p.AutoReleaseDays)
	return d.deps.create(ctx, factory, topic, data, err)
}

func (d *Simple) Fund(ctx context.Context, p FundParams) (common.Hash, error) {
	data, err := chain.SimpleDepositCall()
	return d.deps.approveThen(ctx, p.Escrow, p.Amount, data, err)
}

func (d *Simple) Status(ctx context.Context, addr common.Address) (*Status, error) {
	snap, err := d.deps.Reader.SimpleStatus(ctx, addr)
	if err != nil {
		return nil, err
	}
	return basicStatus(d.Version(), snap, simpleStates[:]), nil
}

func (d *Simple) Release(ctx context.Context, addr common.Address, _ int) (common.Hash, error) {
	data, err := chain.SimpleEscrowABI.Pack("release")
	return d.deps.transact(ctx, addr, data, err)
}

func (d *Simple) Refund(ctx context.Context, addr common.Address) (common.Hash, error) {
	data, err := chain.SimpleEscrowABI.Pack("refund")
	return d.deps.transact(ctx, addr, data, err)
}

// Milestone drives v3 escrows funded one milestone at a time. Version 2
// selects the legacy factory.
type Milestone struct {
	deps    Deps
	version int
}

func (d *Milestone) Version() int { return d.version }

func (d *Milestone) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	if len(p.ItemAmounts) == 0 {
		return nil, errs.New(errs.KindValidation, "milestone escrow needs at least one milestone")
	}
	factory, topic, err := Factory(d.deps.Book, d.deps.Network, d.version)
	if err != nil {
		return nil, err
	}
	data, err := chain.CreateMilestoneEscrowCall(p.InvoiceID, p.ItemAmounts, p.AutoReleaseDays)
	return d.deps.create(ctx, factory, topic, data, err)
}

func (d *Milestone) Fund(ctx context.Context, p FundParams) (common.Hash, error) {
	snap, err := d.deps.Reader.MilestoneStatus(ctx, p.Escrow)
	if err != nil {
		return common.Hash{}, err
	}
	if snap.CurrentItem != p.Index {
		return common.Hash{}, &errs.StaleDeliverable{Requested: p.Index, Required: snap.CurrentItem}
	}
	data, err := chain.FundMilestoneCall(p.Index)
	return d.deps.approveThen(ctx, p.Escrow, p.Amount, data, err)
}

func (d *Milestone) Status(ctx context.Context, addr common.Address) (*Status, error) {
	snap, err := d.deps.Reader.MilestoneStatus(ctx, addr)
	if err != nil {
		return nil, err
	}
	return basicStatus(d.version, snap, milestoneStates[:]), nil
}

func (d *Milestone) Release(ctx context.Context, addr common.Address, index int) (common.Hash, error) {
	data, err := chain.MilestoneEscrowABI.Pack("approveMilestone", big.NewInt(int64(index)))
	return d.deps.transact(ctx, addr, data, err)
}

// Terms drives v4 escrows bound to a signed terms document. Funding runs
// through the funding orchestrator.
type Terms struct{ deps Deps }

func (d *Terms) Version() int { return models.ContractVersionTerms }

func (d *Terms) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	n := len(p.ItemAmounts)
	if n == 0 || len(p.CriteriaHashes) != n || len(p.DeadlineDays) != n {
		return nil, errs.New(errs.KindValidation, "amounts, criteria and deadlines must have one entry per deliverable")
	}
	factory, topic, err := Factory(d.deps.Book, d.deps.Network, d.Version())
	if err != nil {
		return nil, err
	}
	data, err := chain.CreateTermsEscrowCall(chain.TermsEscrowCreateParams{
		InvoiceID:       p.InvoiceID,
		TermsHash:       p.TermsHash,
		Amounts:         p.ItemAmounts,
		CriteriaHashes:  p.CriteriaHashes,
		DeadlineDays:    bigInts(p.DeadlineDays),
		AutoReleaseDays: p.AutoReleaseDays,
	})
	return d.deps.create(ctx, factory, topic, data, err)
}

func (d *Terms) Fund(ctx context.Context, p FundParams) (common.Hash, error) {
	if d.deps.Funder == nil {
		return common.Hash{}, errNoSender
	}
	res, err := d.deps.Funder.Fund(ctx, funding.Request{
		Escrow:     p.Escrow,
		TermsHash:  p.TermsHash,
		Index:      p.Index,
		FaceAmount: p.Amount,
	})
	if err != nil {
		return common.Hash{}, err
	}
	return res.TxHash, nil
}

func (d *Terms) Status(ctx context.Context, addr common.Address) (*Status, error) {
	snap, err := d.deps.Reader.TermsStatus(ctx, addr)
	if err != nil {
		return nil, err
	}
	return termsStatus(snap), nil
}

// Release approves deliverable index, releasing its funds to the creator.
func (d *Terms) Release(ctx context.Context, addr common.Address, index int) (common.Hash, error) {
	data, err := chain.ApproveDeliverableCall(index)
	return d.deps.transact(ctx, addr, data, err)
}

func (d *Terms) AutoRelease(ctx context.Context, addr common.Address) (common.Hash, error) {
	data, err := chain.AutoReleaseCall()
	return d.deps.transact(ctx, addr, data, err)
}

// Yield drives v5 escrows whose deposit is parked in a yield-bearing token.
type Yield struct{ deps Deps }

func (d *Yield) Version() int { return models.ContractVersionYield }

func (d *Yield) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	factory, topic, err := Factory(d.deps.Book, d.deps.Network, d.Version())
	if err != nil {
		return nil, err
	}
	data, err := chain.CreateYieldEscrowCall(p.InvoiceID, p.Amount, p.AutoReleaseDays)
	return d.deps.create(ctx, factory, topic, data, err)
}

func (d *Yield) Fund(ctx context.Context, p FundParams) (common.Hash, error) {
	// The deposit is the face amount; only the approval carries the payer fee.
	data, err := chain.YieldDepositCall(p.Amount)
	return d.deps.approveThen(ctx, p.Escrow, p.Amount, data, err)
}

func (d *Yield) Status(ctx context.Context, addr common.Address) (*Status, error) {
	snap, err := d.deps.Reader.YieldStatus(ctx, addr)
	if err != nil {
		return nil, err
	}
	return yieldStatus(snap), nil
}

func (d *Yield) Release(ctx context.Context, addr common.Address, _ int) (common.Hash, error) {
	data, err := chain.YieldReleaseCall()
	return d.deps.transact(ctx, addr, data, err)
}

func (d *Yield) Refund(ctx context.Context, addr common.Address) (common.Hash, error) {
	data, err := chain.YieldRefundCall()
	return d.deps.transact(ctx, addr, data, err)
}
