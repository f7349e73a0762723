package chain

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/metrics"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// maxDeliverableReads bounds the per-deliverable batch for a misreported count.
const maxDeliverableReads = 64

// Reader assembles escrow snapshots from batched contract reads.
type Reader struct {
	caller BatchCaller
	log    *zap.Logger
}

func NewReader(caller BatchCaller, log *zap.Logger) *Reader {
	return &Reader{caller: caller, log: log}
}

type call struct {
	abi    abi.ABI
	method string
	args   []any
}

func (r *Reader) batch(ctx context.Context, to common.Address, calls []call) ([]CallResult, error) {
	reqs := make([]CallRequest, len(calls))
	for i, c := range calls {
		data, err := c.abi.Pack(c.method, c.args...)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", c.method, err)
		}
		reqs[i] = CallRequest{To: to, Data: data}
	}
	res, err := r.caller.BatchCall(ctx, reqs)
	if err != nil {
		for _, c := range calls {
			metrics.Get().ObserveChainCall(c.method, err)
		}
		return nil, errs.Wrap(errs.KindOnChainCallFailure, err, "contract read failed")
	}
	if len(res) != len(calls) {
		return nil, errs.New(errs.KindOnChainCallFailure, "batch returned %d results for %d calls", len(res), len(calls))
	}
	for i, c := range calls {
		metrics.Get().ObserveChainCall(c.method, res[i].Err)
	}
	return res, nil
}

func (r *Reader) unpack(a abi.ABI, method string, res CallResult) ([]any, error) {
	if res.Err != nil {
		return nil, res.Err
	}
	return a.Unpack(method, res.Data)
}

// TermsStatus reads the top-level fields, then every deliverable in one batch.
func (r *Reader) TermsStatus(ctx context.Context, addr common.Address) (*TermsSnapshot, error) {
	res, err := r.batch(ctx, addr, []call{
		{abi: TermsEscrowABI, method: "getDetails"},
		{abi: TermsEscrowABI, method: "canAutoRelease"},
	})
	if err != nil {
		return nil, err
	}
	out, err := r.unpack(TermsEscrowABI, "getDetails", res[0])
	if err != nil {
		return nil, errs.Wrap(errs.KindOnChainCallFailure, err, "getDetails failed")
	}
	snap := decodeTermsDetails(addr, out)
	if v, err := r.unpack(TermsEscrowABI, "canAutoRelease", res[1]); err == nil {
		snap.CanAutoRelease = asBool(v, 0)
	} else {
		r.log.Debug("canAutoRelease read failed", zap.String("escrow", addr.Hex()), zap.Error(err))
	}

	snap.Deliverables, err = r.Deliverables(ctx, addr, snap.DeliverableCount)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// CurrentDeliverable re-reads only the live funding cursor.
func (r *Reader) CurrentDeliverable(ctx context.Context, addr common.Address) (int, error) {
	res, err := r.batch(ctx, addr, []call{{abi: TermsEscrowABI, method: "getDetails"}})
	if err != nil {
		return 0, err
	}
	out, err := r.unpack(TermsEscrowABI, "getDetails", res[0])
	if err != nil {
		return 0, errs.Wrap(errs.KindOnChainCallFailure, err, "getDetails failed")
	}
	return decodeTermsDetails(addr, out).CurrentDeliverable, nil
}

// Deliverables reads n deliverables in a single round trip. A failed element
// yields a zero-valued status rather than failing the whole read.
func (r *Reader) Deliverables(ctx context.Context, addr common.Address, n int) ([]DeliverableStatus, error) {
	if n <= 0 {
		return []DeliverableStatus{}, nil
	}
	if n > maxDeliverableReads {
		n = maxDeliverableReads
	}
	calls := make([]call, n)
	for i := range calls {
		calls[i] = call{abi: TermsEscrowABI, method: "getDeliverable", args: []any{big.NewInt(int64(i))}}
	}
	res, err := r.batch(ctx, addr, calls)
	if err != nil {
		return nil, err
	}
	out := make([]DeliverableStatus, n)
	for i := range res {
		v, err := r.unpack(TermsEscrowABI, "getDeliverable", res[i])
		if err != nil || len(v) < 6 {
			out[i] = zeroDeliverable()
			continue
		}
		out[i] = DeliverableStatus{
			Amount:       asBig(v, 0),
			CriteriaHash: asHash(v, 1),
			DeadlineDays: asUint64(v, 2),
			Funded:       asBool(v, 3),
			Approved:     asBool(v, 4),
			Disputed:     asBool(v, 5),
		}
	}
	return out, nil
}

// YieldStatus reads every yield escrow field in one batch. Only the state
// read is required; other failed reads leave zero values.
func (r *Reader) YieldStatus(ctx context.Context, addr common.Address) (*YieldSnapshot, error) {
	methods := []string{
		"state", "getCurrentValue", "getAccruedYield", "originalUsdcAmount", "depositedUsycShares",
		"payer", "creator", "fundedAt", "canAutoRelease", "getDetails",
	}
	calls := make([]call, len(methods))
	for i, m := range methods {
		calls[i] = call{abi: YieldEscrowABI, method: m}
	}
	res, err := r.batch(ctx, addr, calls)
	if err != nil {
		return nil, err
	}

	vals := make(map[string][]any, len(methods))
	for i, m := range methods {
		if v, err := r.unpack(YieldEscrowABI, m, res[i]); err == nil {
			vals[m] = v
		}
	}
	state, ok := vals["state"]
	if !ok {
		return nil, errs.New(errs.KindOnChainCallFailure, "state read failed for %s", addr.Hex())
	}

	snap := &YieldSnapshot{
		Address:         addr,
		Creator:         asAddress(vals["creator"], 0),
		OriginalAmount:  asBig(vals["originalUsdcAmount"], 0),
		DepositedShares: asBig(vals["depositedUsycShares"], 0),
		CurrentValue:    asBig(vals["getCurrentValue"], 0),
		AccruedYield:    asBig(vals["getAccruedYield"], 0),
		State:           YieldState(asUint8(state, 0)),
		FundedAt:        asUint64(vals["fundedAt"], 0),
		AutoReleaseDays: asUint64(vals["getDetails"], 6),
		CanAutoRelease:  asBool(vals["canAutoRelease"], 0),
	}
	if payer := asAddress(vals["payer"], 0); payer != (common.Address{}) {
		snap.Payer = &payer
	}
	return snap, nil
}

// SimpleStatus reads a v1 escrow.
func (r *Reader) SimpleStatus(ctx context.Context, addr common.Address) (*BasicSnapshot, error) {
	res, err := r.batch(ctx, addr, []call{
		{abi: SimpleEscrowABI, method: "getDetails"},
		{abi: SimpleEscrowABI, method: "canAutoRelease"},
	})
	if err != nil {
		return nil, err
	}
	v, err := r.unpack(SimpleEscrowABI, "getDetails", res[0])
	if err != nil {
		return nil, errs.Wrap(errs.KindOnChainCallFailure, err, "getDetails failed")
	}
	snap := &BasicSnapshot{
		Address:         addr,
		Creator:         asAddress(v, 0),
		Payer:           asAddress(v, 1),
		TotalAmount:     asBig(v, 2),
		FundedAmount:    new(big.Int),
		ReleasedAmount:  new(big.Int),
		State:           asUint8(v, 3),
		FundedAt:        asUint64(v, 4),
		AutoReleaseDays: asUint64(v, 5),
		ItemCount:       1,
	}
	if c, err := r.unpack(SimpleEscrowABI, "canAutoRelease", res[1]); err == nil {
		snap.CanAutoRelease = asBool(c, 0)
	}
	return snap, nil
}

// MilestoneStatus reads a v3 escrow.
func (r *Reader) MilestoneStatus(ctx context.Context, addr common.Address) (*BasicSnapshot, error) {
	res, err := r.batch(ctx, addr, []call{{abi: MilestoneEscrowABI, method: "getDetails"}})
	if err != nil {
		return nil, err
	}
	v, err := r.unpack(MilestoneEscrowABI, "getDetails", res[0])
	if err != nil {
		return nil, errs.Wrap(errs.KindOnChainCallFailure, err, "getDetails failed")
	}
	return &BasicSnapshot{
		Address:        addr,
		Creator:        asAddress(v, 0),
		Payer:          asAddress(v, 1),
		TotalAmount:    asBig(v, 2),
		FundedAmount:   asBig(v, 3),
		ReleasedAmount: asBig(v, 4),
		State:          asUint8(v, 5),
		ItemCount:      asInt(v, 6),
		CurrentItem:    asInt(v, 7),
	}, nil
}

func decodeTermsDetails(addr common.Address, v []any) *TermsSnapshot {
	return &TermsSnapshot{
		Address:            addr,
		Creator:            asAddress(v, 0),
		Payer:              asAddress(v, 1),
		TermsHash:          asHash(v, 2),
		TotalAmount:        asBig(v, 3),
		FundedAmount:       asBig(v, 4),
		ReleasedAmount:     asBig(v, 5),
		State:              TermsState(asUint8(v, 6)),
		FundedAt:           asUint64(v, 7),
		AutoReleaseDays:    asUint64(v, 8),
		DeliverableCount:   asInt(v, 9),
		CurrentDeliverable: asInt(v, 10),
	}
}

func at(v []any, i int) any {
	if i < len(v) {
		return v[i]
	}
	return nil
}

func asAddress(v []any, i int) common.Address {
	a, _ := at(v, i).(common.Address)
	return a
}

func asHash(v []any, i int) common.Hash {
	b, _ := at(v, i).([32]byte)
	return common.Hash(b)
}

func asBig(v []any, i int) *big.Int {
	if b, ok := at(v, i).(*big.Int); ok && b != nil {
		return b
	}
	return new(big.Int)
}

func asUint64(v []any, i int) uint64 {
	b := asBig(v, i)
	if !b.IsUint64() {
		return math.MaxUint64
	}
	return b.Uint64()
}

func asInt(v []any, i int) int {
	b := asBig(v, i)
	if !b.IsInt64() || b.Int64() > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(b.Int64())
}

func asUint8(v []any, i int) uint8 {
	u, _ := at(v, i).(uint8)
	return u
}

func asBool(v []any, i int) bool {
	b, _ := at(v, i).(bool)
	return b
}
