package funding

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/metrics"
	"github.com/arc-invoice/backend/internal/signing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

type StatusReader interface {
	TermsStatus(ctx context.Context, addr common.Address) (*chain.TermsSnapshot, error)
	CurrentDeliverable(ctx context.Context, addr common.Address) (int, error)
}

// Wallet is the payer's account: it signs messages and submits transactions.
type Wallet interface {
	From() common.Address
	SignMessage(ctx context.Context, message string) ([]byte, error)
	Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
	Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// SignatureSink receives the off-chain terms signature. Failures are logged
// and do not stop funding.
type SignatureSink interface {
	RecordSignature(ctx context.Context, termsHash string, wallet common.Address, signature []byte) error
}

// PayerAmountFunc converts a face amount into the amount the payer approves.
type PayerAmountFunc func(face *big.Int) *big.Int

type Request struct {
	Escrow     common.Address
	TermsHash  string
	Index      int
	FaceAmount *big.Int
}

type Result struct {
	TxHash   common.Hash
	Snapshot *chain.TermsSnapshot
}

type Orchestrator struct {
	reader      StatusReader
	wallet      Wallet
	token       common.Address
	payerAmount PayerAmountFunc
	sink        SignatureSink
	log         *zap.Logger

	mu       sync.Mutex
	inflight map[string]bool
	steps    map[string]Step
}

func NewOrchestrator(reader StatusReader, wallet Wallet, token common.Address, payerAmount PayerAmountFunc, sink SignatureSink, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		reader:      reader,
		wallet:      wallet,
		token:       token,
		payerAmount: payerAmount,
		sink:        sink,
		log:         log,
		inflight:    make(map[string]bool),
		steps:       make(map[string]Step),
	}
}

func attemptKey(escrow common.Address, index int) string {
	return fmt.Sprintf("%s:%d", escrow.Hex(), index)
}

// Step reports the current step of the attempt for (escrow, index).
func (o *Orchestrator) Step(escrow common.Address, index int) Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.steps[attemptKey(escrow, index)]; ok {
		return s
	}
	return StepIdle
}

func (o *Orchestrator) acquire(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[key] {
		return false
	}
	o.inflight[key] = true
	return true
}

// release ends an attempt. A finished attempt is either complete or back to
// idle, so its step entry is dropped and Step reports idle again.
func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, key)
	delete(o.steps, key)
}

func (o *Orchestrator) setStep(key string, s Step) {
	o.mu.Lock()
	o.steps[key] = s
	o.mu.Unlock()
	metrics.Get().FundingSteps.WithLabelValues(string(s)).Inc()
}

// Fund funds deliverable req.Index, signing the terms first when the escrow
// is not yet signed. Only one attempt per (escrow, index) runs at a time; a
// concurrent call returns a Busy error without side effects.
func (o *Orchestrator) Fund(ctx context.Context, req Request) (*Result, error) {
	key := attemptKey(req.Escrow, req.Index)
	if !o.acquire(key) {
		return nil, errs.New(errs.KindBusy, "funding of deliverable %d is already in progress", req.Index+1)
	}
	defer o.release(key)

	result, err := o.run(ctx, key, req)
	if err != nil {
		o.setStep(key, StepIdle)
		metrics.Get().FundingOutcomes.WithLabelValues("failed").Inc()
		o.log.Warn("funding attempt failed",
			zap.String("escrow", req.Escrow.Hex()),
			zap.Int("deliverable", req.Index),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.Get().FundingOutcomes.WithLabelValues("funded").Inc()
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, key string, req Request) (*Result, error) {
	// The on-chain cursor is authoritative; a stale view must not fund out of order.
	current, err := o.reader.CurrentDeliverable(ctx, req.Escrow)
	if err != nil {
		return nil, err
	}
	if current != req.Index {
		return nil, &errs.StaleDeliverable{Requested: req.Index, Required: current}
	}

	snap, err := o.reader.TermsStatus(ctx, req.Escrow)
	if err != nil {
		return nil, err
	}
	req.FaceAmount = deliverableAmount(snap, req)
	if req.FaceAmount == nil || req.FaceAmount.Sign() <= 0 {
		return nil, errs.New(errs.KindValidation, "deliverable amount must be positive")
	}

	state, effect := Reduce(State{}, Started{AlreadySigned: snap.IsSigned() || snap.IsActive()})
	o.setStep(key, state.Step)

	for {
		switch effect.Kind {
		case EffectComplete:
			out := &Result{TxHash: effect.TxHash}
			refreshed, err := o.reader.TermsStatus(ctx, req.Escrow)
			if err != nil {
				o.log.Warn("snapshot refresh after funding failed", zap.Error(err))
				out.Snapshot = snap
			} else {
				out.Snapshot = refreshed
			}
			return out, nil
		case EffectAbort:
			return nil, effect.Err
		case EffectNone:
			return nil, fmt.Errorf("funding stalled at step %s", state.Step)
		}

		ev := o.perform(ctx, req, effect)
		state, effect = Reduce(state, ev)
		o.setStep(key, state.Step)
	}
}

// deliverableAmount prefers the amount the escrow stores for the deliverable
// over the caller's copy, which may be stale.
func deliverableAmount(snap *chain.TermsSnapshot, req Request) *big.Int {
	if req.Index >= 0 && req.Index < len(snap.Deliverables) {
		if onChain := snap.Deliverables[req.Index].Amount; onChain != nil && onChain.Sign() > 0 {
			return onChain
		}
	}
	return req.FaceAmount
}

func (o *Orchestrator) perform(ctx context.Context, req Request, effect Effect) Event {
	switch effect.Kind {
	case EffectSignMessage:
		msg := signing.TermsMessage(req.TermsHash, o.wallet.From().Hex())
		sig, err := o.wallet.SignMessage(ctx, msg)
		if err != nil {
			return Failed{Err: fmt.Errorf("sign terms: %w", err)}
		}
		if o.sink != nil {
			if err := o.sink.RecordSignature(ctx, req.TermsHash, o.wallet.From(), sig); err != nil {
				o.log.Warn("recording off-chain signature failed", zap.Error(err))
			}
		}
		return MessageSigned{Signature: sig}

	case EffectSubmitSignTerms:
		data, err := chain.SignTermsCall(effect.Signature)
		if err != nil {
			return Failed{Err: err}
		}
		return o.submit(ctx, req.Escrow, data)

	case EffectSubmitApprove:
		amount := req.FaceAmount
		if o.payerAmount != nil {
			amount = o.payerAmount(req.FaceAmount)
		}
		data, err := chain.ApproveCall(req.Escrow, amount)
		if err != nil {
			return Failed{Err: err}
		}
		return o.submit(ctx, o.token, data)

	case EffectSubmitFund:
		data, err := chain.FundDeliverableCall(req.Index)
		if err != nil {
			return Failed{Err: err}
		}
		return o.submit(ctx, req.Escrow, data)
	}
	return Failed{Err: fmt.Errorf("unexpected effect %s", effect.Kind)}
}

func (o *Orchestrator) submit(ctx context.Context, to common.Address, data []byte) Event {
	hash, err := o.wallet.Send(ctx, to, data)
	if err != nil {
		return Failed{Err: err}
	}
	if _, err := o.wallet.Wait(ctx, hash); err != nil {
		return Failed{Err: err}
	}
	return TxConfirmed{Hash: hash}
}
