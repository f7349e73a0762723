// Package escrow selects and drives the on-chain escrow contract family of an
// invoice. Each contract version is one Driver; callers pick it once with
// ForVersion and never branch on the version again.
package escrow

import (
	"context"
	"errors"
	"math/big"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/fees"
	"github.com/arc-invoice/backend/internal/funding"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var errNoSender = errors.New("escrow: no transaction sender configured")

type Driver interface {
	Version() int
	Create(ctx context.Context, p CreateParams) (*CreateResult, error)
	Fund(ctx context.Context, p FundParams) (common.Hash, error)
	Status(ctx context.Context, addr common.Address) (*Status, error)
	// Release pays out to the creator: the whole escrow, or item index for
	// per-item contracts.
	Release(ctx context.Context, addr common.Address, index int) (common.Hash, error)
}

// AutoReleaser is implemented by drivers whose contracts release after the
// review period without a payer action.
type AutoReleaser interface {
	AutoRelease(ctx context.Context, addr common.Address) (common.Hash, error)
}

// Refunder is implemented by drivers whose contracts support a refund call.
type Refunder interface {
	Refund(ctx context.Context, addr common.Address) (common.Hash, error)
}

type CreateParams struct {
	InvoiceID       string
	Amount          *big.Int
	AutoReleaseDays int
	// Per-item amounts for milestone and terms escrows.
	ItemAmounts []*big.Int
	// Terms escrows only.
	TermsHash      common.Hash
	CriteriaHashes []common.Hash
	DeadlineDays   []int
}

type CreateResult struct {
	Escrow common.Address `json:"escrow"`
	TxHash common.Hash    `json:"tx_hash"`
}

type FundParams struct {
	Escrow common.Address
	Index  int
	// Amount is the face amount; the payer fee is added on approval.
	Amount    *big.Int
	TermsHash string
}

// StateReader is the subset of chain.Reader the drivers use.
type StateReader interface {
	TermsStatus(ctx context.Context, addr common.Address) (*chain.TermsSnapshot, error)
	YieldStatus(ctx context.Context, addr common.Address) (*chain.YieldSnapshot, error)
	SimpleStatus(ctx context.Context, addr common.Address) (*chain.BasicSnapshot, error)
	MilestoneStatus(ctx context.Context, addr common.Address) (*chain.BasicSnapshot, error)
}

type Funder interface {
	Fund(ctx context.Context, req funding.Request) (*funding.Result, error)
}

// Deps are shared by every driver. Sender and Funder may be nil for
// read-only use.
type Deps struct {
	Book    *chain.AddressBook
	Network uint64
	Reader  StateReader
	Sender  chain.Sender
	Fees    fees.Schedule
	Funder  Funder
	Log     *zap.Logger
}

// ForVersion returns the driver for an invoice contract version.
func ForVersion(version int, deps Deps) (Driver, error) {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	switch version {
	case models.ContractVersionSimple:
		return &Simple{deps: deps}, nil
	case models.ContractVersionLegacyMilestone, models.ContractVersionMilestone:
		return &Milestone{deps: deps, version: version}, nil
	case models.ContractVersionTerms:
		return &Terms{deps: deps}, nil
	case models.ContractVersionYield:
		return &Yield{deps: deps}, nil
	}
	return nil, errs.New(errs.KindWrongContractVersion, "unknown contract version %d", version)
}

// Factory returns the factory that deploys escrows of version and the topic
// of the creation event it emits.
func Factory(book *chain.AddressBook, network uint64, version int) (common.Address, common.Hash, error) {
	var (
		addr common.Address
		err  error
	)
	switch version {
	case models.ContractVersionSimple:
		addr, err = book.Lookup(network, chain.ContractFactory)
	case models.ContractVersionLegacyMilestone, models.ContractVersionMilestone:
		addr, err = book.MilestoneFactory(network, version)
	case models.ContractVersionTerms:
		addr, err = book.Lookup(network, chain.ContractTermsFactory)
	case models.ContractVersionYield:
		addr, err = book.Lookup(network, chain.ContractYieldFactory)
	default:
		return common.Address{}, common.Hash{}, errs.New(errs.KindWrongContractVersion, "unknown contract version %d", version)
	}
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	return addr, chain.CreatedTopicForVersion(version), nil
}

func (d Deps) token() (common.Address, error) {
	return d.Book.Lookup(d.Network, chain.ContractUSDC)
}

// transact sends one call and waits for a successful receipt.
func (d Deps) transact(ctx context.Context, to common.Address, data []byte, err error) (common.Hash, error) {
	if err != nil {
		return common.Hash{}, err
	}
	if d.Sender == nil {
		return common.Hash{}, errNoSender
	}
	hash, err := d.Sender.Send(ctx, to, data)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := d.Sender.Wait(ctx, hash); err != nil {
		return hash, err
	}
	return hash, nil
}

// approveThen approves the payer amount of face to escrow, then sends call.
func (d Deps) approveThen(ctx context.Context, escrow common.Address, face *big.Int, data []byte, err error) (common.Hash, error) {
	if err != nil {
		return common.Hash{}, err
	}
	if face == nil || face.Sign() <= 0 {
		return common.Hash{}, errs.New(errs.KindValidation, "amount must be positive")
	}
	token, err := d.token()
	if err != nil {
		return common.Hash{}, err
	}
	approve, err := chain.ApproveCall(escrow, d.Fees.PayerAmountBig(face))
	if _, err := d.transact(ctx, token, approve, err); err != nil {
		return common.Hash{}, err
	}
	return d.transact(ctx, escrow, data, nil)
}

// create submits a factory call and extracts the escrow address from the
// creation event in the receipt.
func (d Deps) create(ctx context.Context, factory common.Address, topic common.Hash, data []byte, err error) (*CreateResult, error) {
	if err != nil {
		return nil, err
	}
	if d.Sender == nil {
		return nil, errNoSender
	}
	hash, err := d.Sender.Send(ctx, factory, data)
	if err != nil {
		return nil, err
	}
	receipt, err := d.Sender.Wait(ctx, hash)
	if err != nil {
		return nil, err
	}
	ev, ok := chain.ParseEscrowCreated(receipt, factory, topic)
	if !ok {
		return nil, errs.New(errs.KindOnChainCallFailure, "no EscrowCreated event in transaction %s", hash.Hex())
	}
	d.Log.Info("escrow created",
		zap.String("escrow", ev.Escrow.Hex()),
		zap.String("factory", factory.Hex()),
		zap.String("tx_hash", hash.Hex()),
	)
	return &CreateResult{Escrow: ev.Escrow, TxHash: hash}, nil
}

func bigInts(vs []int) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = big.NewInt(int64(v))
	}
	return out
}
