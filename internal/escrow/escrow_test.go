package escrow

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/fees"
	"github.com/arc-invoice/backend/internal/funding"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

var (
	escrowAddr = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	payerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type call struct {
	to   common.Address
	data []byte
}

type fakeSender struct {
	calls   []call
	created common.Hash
}

func (s *fakeSender) From() common.Address { return payerAddr }

func (s *fakeSender) Send(_ context.Context, to common.Address, data []byte) (common.Hash, error) {
	s.calls = append(s.calls, call{to: to, data: data})
	return common.BigToHash(big.NewInt(int64(len(s.calls)))), nil
}

func (s *fakeSender) Wait(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	r := &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}
	if s.created != (common.Hash{}) {
		to := s.calls[len(s.calls)-1].to
		r.Logs = []*types.Log{{
			Address: to,
			Topics: []common.Hash{
				s.created,
				chain.InvoiceIDHash("inv-1"),
				common.BytesToHash(escrowAddr.Bytes()),
			},
			TxHash: hash,
		}}
	}
	return r, nil
}

func (s *fakeSender) method(t *testing.T, i int) string {
	t.Helper()
	data := s.calls[i].data
	for _, def := range []abi.ABI{
		chain.ERC20ABI, chain.TermsFactoryABI, chain.SimpleEscrowABI,
		chain.MilestoneEscrowABI, chain.YieldEscrowABI,
	} {
		if m, err := def.MethodById(data[:4]); err == nil {
			return m.Name
		}
	}
	t.Fatalf("call %d has unknown selector %x", i, data[:4])
	return ""
}

type fakeReader struct {
	terms     *chain.TermsSnapshot
	yield     *chain.YieldSnapshot
	basic     *chain.BasicSnapshot
	err       error
	lastQuery common.Address
}

func (r *fakeReader) TermsStatus(_ context.Context, addr common.Address) (*chain.TermsSnapshot, error) {
	r.lastQuery = addr
	return r.terms, r.err
}

func (r *fakeReader) YieldStatus(_ context.Context, addr common.Address) (*chain.YieldSnapshot, error) {
	r.lastQuery = addr
	return r.yield, r.err
}

func (r *fakeReader) SimpleStatus(_ context.Context, addr common.Address) (*chain.BasicSnapshot, error) {
	r.lastQuery = addr
	return r.basic, r.err
}

func (r *fakeReader) MilestoneStatus(_ context.Context, addr common.Address) (*chain.BasicSnapshot, error) {
	r.lastQuery = addr
	return r.basic, r.err
}

type fakeFunder struct {
	req funding.Request
}

func (f *fakeFunder) Fund(_ context.Context, req funding.Request) (*funding.Result, error) {
	f.req = req
	return &funding.Result{TxHash: common.Hash{0xf0}}, nil
}

func testDeps(reader StateReader, sender chain.Sender) Deps {
	return Deps{
		Book:    chain.DefaultAddressBook(),
		Network: chain.NetworkArcTestnet,
		Reader:  reader,
		Sender:  sender,
		Fees:    fees.NewSchedule(100),
	}
}

func TestForVersion(t *testing.T) {
	tests := []struct {
		version int
		want    int
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 4},
		{5, 5},
	}
	for _, tt := range tests {
		d, err := ForVersion(tt.version, testDeps(&fakeReader{}, nil))
		require.NoError(t, err)
		require.Equal(t, tt.want, d.Version())
	}

	_, err := ForVersion(9, testDeps(&fakeReader{}, nil))
	require.True(t, errors.Is(err, errs.ErrWrongContractVersion))
}

func TestTermsCreateParsesEscrowAddress(t *testing.T) {
	sender := &fakeSender{created: chain.TermsEscrowCreatedTopic}
	d, err := ForVersion(4, testDeps(&fakeReader{}, sender))
	require.NoError(t, err)

	res, err := d.Create(context.Background(), CreateParams{
		InvoiceID:       "inv-1",
		AutoReleaseDays: 14,
		ItemAmounts:     []*big.Int{big.NewInt(600_000), big.NewInt(400_000)},
		CriteriaHashes:  []common.Hash{{1}, {2}},
		DeadlineDays:    []int{7, 14},
	})
	require.NoError(t, err)
	require.Equal(t, escrowAddr, res.Escrow)

	factory, _ := chain.DefaultAddressBook().Lookup(chain.NetworkArcTestnet, chain.ContractTermsFactory)
	require.Equal(t, factory, sender.calls[0].to)
	require.Equal(t, "createEscrow", sender.method(t, 0))
}

func TestCreateWithoutEventFails(t *testing.T) {
	sender := &fakeSender{}
	d, _ := ForVersion(5, testDeps(&fakeReader{}, sender))
	_, err := d.Create(context.Background(), CreateParams{InvoiceID: "inv-1", Amount: big.NewInt(1), AutoReleaseDays: 14})
	require.True(t, errors.Is(err, errs.ErrOnChainCallFailure))
}

func TestTermsCreateRequiresAlignedItems(t *testing.T) {
	d, _ := ForVersion(4, testDeps(&fakeReader{}, &fakeSender{}))
	_, err := d.Create(context.Background(), CreateParams{
		InvoiceID:   "inv-1",
		ItemAmounts: []*big.Int{big.NewInt(1)},
	})
	require.True(t, errors.Is(err, errs.ErrValidation))
}

func TestSimpleFundApprovesPayerAmount(t *testing.T) {
	sender := &fakeSender{}
	d, _ := ForVersion(1, testDeps(&fakeReader{}, sender))

	_, err := d.Fund(context.Background(), FundParams{Escrow: escrowAddr, Amount: big.NewInt(2_000_000)})
	require.NoError(t, err)
	require.Len(t, sender.calls, 2)

	usdc, _ := chain.DefaultAddressBook().Lookup(chain.NetworkArcTestnet, chain.ContractUSDC)
	require.Equal(t, usdc, sender.calls[0].to)
	args, err := chain.ERC20ABI.Methods["approve"].Inputs.Unpack(sender.calls[0].data[4:])
	require.NoError(t, err)
	require.Equal(t, escrowAddr, args[0].(common.Address))
	require.Equal(t, int64(2_020_000), args[1].(*big.Int).Int64())

	require.Equal(t, escrowAddr, sender.calls[1].to)
	require.Equal(t, "deposit", sender.method(t, 1))
}

func TestYieldFundDepositsFaceAmount(t *testing.T) {
	sender := &fakeSender{}
	d, _ := ForVersion(5, testDeps(&fakeReader{}, sender))

	_, err := d.Fund(context.Background(), FundParams{Escrow: escrowAddr, Amount: big.NewInt(1_000_000)})
	require.NoError(t, err)
	require.Len(t, sender.calls, 2)

	approve, err := chain.ERC20ABI.Methods["approve"].Inputs.Unpack(sender.calls[0].data[4:])
	require.NoError(t, err)
	require.Equal(t, int64(1_010_000), approve[1].(*big.Int).Int64())

	require.Equal(t, "deposit", sender.method(t, 1))
	deposit, err := chain.YieldEscrowABI.Methods["deposit"].Inputs.Unpack(sender.calls[1].data[4:])
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), deposit[0].(*big.Int).Int64())
}

func TestMilestoneFundGuardsCurrentItem(t *testing.T) {
	sender := &fakeSender{}
	reader := &fakeReader{basic: &chain.BasicSnapshot{CurrentItem: 1, ItemCount: 3}}
	d, _ := ForVersion(3, testDeps(reader, sender))

	_, err := d.Fund(context.Background(), FundParams{Escrow: escrowAddr, Index: 2, Amount: big.NewInt(1)})
	require.True(t, errors.Is(err, errs.ErrStaleDeliverableState))
	require.Empty(t, sender.calls)

	_, err = d.Fund(context.Background(), FundParams{Escrow: escrowAddr, Index: 1, Amount: big.NewInt(1)})
	require.NoError(t, err)
	require.Equal(t, "fundMilestone", sender.method(t, 1))
}

func TestTermsFundDelegatesToFunder(t *testing.T) {
	funder := &fakeFunder{}
	deps := testDeps(&fakeReader{}, nil)
	deps.Funder = funder
	d, _ := ForVersion(4, deps)

	hash, err := d.Fund(context.Background(), FundParams{
		Escrow: escrowAddr, Index: 1, Amount: big.NewInt(5), TermsHash: "0xabc",
	})
	require.NoError(t, err)
	require.Equal(t, common.Hash{0xf0}, hash)
	require.Equal(t, funding.Request{Escrow: escrowAddr, TermsHash: "0xabc", Index: 1, FaceAmount: big.NewInt(5)}, funder.req)
}

func TestWritesNeedSender(t *testing.T) {
	d, _ := ForVersion(5, testDeps(&fakeReader{}, nil))
	_, err := d.Release(context.Background(), escrowAddr, 0)
	require.ErrorIs(t, err, errNoSender)

	d, _ = ForVersion(4, testDeps(&fakeReader{}, nil))
	_, err = d.Fund(context.Background(), FundParams{Escrow: escrowAddr, Amount: big.NewInt(1)})
	require.ErrorIs(t, err, errNoSender)
}

func TestOptionalCapabilities(t *testing.T) {
	deps := testDeps(&fakeReader{}, nil)
	for v, want := range map[int][2]bool{1: {false, true}, 3: {false, false}, 4: {true, false}, 5: {false, true}} {
		d, _ := ForVersion(v, deps)
		_, auto := d.(AutoReleaser)
		_, refund := d.(Refunder)
		require.Equal(t, want, [2]bool{auto, refund}, "version %d", v)
	}
}

func TestStatusNormalization(t *testing.T) {
	ctx := context.Background()

	terms := &fakeReader{terms: &chain.TermsSnapshot{Address: escrowAddr, State: chain.TermsStateActive, TotalAmount: big.NewInt(10)}}
	d, _ := ForVersion(4, testDeps(terms, nil))
	st, err := d.Status(ctx, escrowAddr)
	require.NoError(t, err)
	require.Equal(t, StateActive, st.State)
	require.NotNil(t, st.Terms)
	require.False(t, st.Settled())
	require.Equal(t, escrowAddr, terms.lastQuery)

	yield := &fakeReader{yield: &chain.YieldSnapshot{State: chain.YieldStateReleased, OriginalAmount: big.NewInt(100), CurrentValue: big.NewInt(103), Payer: &payerAddr}}
	d, _ = ForVersion(5, testDeps(yield, nil))
	st, err = d.Status(ctx, escrowAddr)
	require.NoError(t, err)
	require.Equal(t, StateReleased, st.State)
	require.Equal(t, payerAddr, st.Payer)
	require.Equal(t, int64(103), st.ReleasedAmount.Int64())
	require.True(t, st.Settled())

	basic := &fakeReader{basic: &chain.BasicSnapshot{State: 1}}
	d, _ = ForVersion(1, testDeps(basic, nil))
	st, _ = d.Status(ctx, escrowAddr)
	require.Equal(t, StateFunded, st.State)

	d, _ = ForVersion(3, testDeps(basic, nil))
	st, _ = d.Status(ctx, escrowAddr)
	require.Equal(t, StateActive, st.State)

	basic.basic.State = 42
	st, _ = d.Status(ctx, escrowAddr)
	require.Equal(t, StateUnknown, st.State)
}

func TestStatusPropagatesReadErrors(t *testing.T) {
	boom := errs.New(errs.KindOnChainCallFailure, "rpc down")
	d, _ := ForVersion(4, testDeps(&fakeReader{err: boom}, nil))
	_, err := d.Status(context.Background(), escrowAddr)
	require.True(t, errors.Is(err, errs.ErrOnChainCallFailure))
}
