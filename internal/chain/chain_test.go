package chain

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestAddressBookLookup(t *testing.T) {
	book := DefaultAddressBook()

	addr, err := book.Lookup(NetworkArcTestnet, ContractTermsFactory)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x6E10Eed6f1f1FBB206c8570Fc3Cd394589863C36"), addr)

	_, err = book.Lookup(1, ContractUSDC)
	require.True(t, errors.Is(err, errs.ErrUnsupportedNetwork))
	require.Equal(t, "Unsupported chain: 1", errs.Message(err))

	_, err = book.Lookup(NetworkArcMainnet, ContractTermsFactory)
	require.True(t, errors.Is(err, errs.ErrContractNotDeployed))
	require.Equal(t, "Contract TERMS_FACTORY not deployed on chain 5042001", errs.Message(err))

	usdc, err := book.Lookup(NetworkArcMainnet, ContractUSDC)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x3600000000000000000000000000000000000000"), usdc)
}

func TestMilestoneFactoryVersion(t *testing.T) {
	book := DefaultAddressBook()
	legacy, err := book.MilestoneFactory(NetworkArcTestnet, 2)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x9F9c0955083459978Af2EaCc6C223315085Fb777"), legacy)

	current, err := book.MilestoneFactory(NetworkArcTestnet, 3)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x254B00aeCF760Fff8d06364F22c035C077923ac4"), current)
}

func TestLoadAddressBook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contracts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
networks:
  31337:
    USDC: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    TERMS_FACTORY: ""
`), 0o600))

	book, err := LoadAddressBook(path)
	require.NoError(t, err)
	require.True(t, book.Supports(31337))
	_, err = book.Lookup(31337, ContractUSDC)
	require.NoError(t, err)
	_, err = book.Lookup(31337, ContractTermsFactory)
	require.True(t, errors.Is(err, errs.ErrContractNotDeployed))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("networks:\n  1:\n    USDC: nope\n"), 0o600))
	_, err = LoadAddressBook(bad)
	require.Error(t, err)

	def, err := LoadAddressBook("")
	require.NoError(t, err)
	require.True(t, def.Supports(NetworkArcTestnet))
}

func TestParseEscrowCreated(t *testing.T) {
	factory := common.HexToAddress("0x6E10Eed6f1f1FBB206c8570Fc3Cd394589863C36")
	invoiceHash := InvoiceIDHash("7f1c1f5e-0000-4000-8000-000000000001")
	escrow := common.HexToAddress("0x4000000000000000000000000000000000000004")

	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			{Address: common.HexToAddress("0x3600000000000000000000000000000000000000"), Topics: []common.Hash{{0x01}}},
			{
				Address: factory,
				Topics: []common.Hash{
					TermsEscrowCreatedTopic,
					invoiceHash,
					common.BytesToHash(escrow.Bytes()),
					common.BytesToHash(creatorAddr.Bytes()),
				},
			},
		},
	}

	ev, ok := ParseEscrowCreated(receipt, factory, TermsEscrowCreatedTopic)
	require.True(t, ok)
	require.Equal(t, escrow, ev.Escrow)
	require.Equal(t, invoiceHash, ev.InvoiceIDHash)
	require.Equal(t, creatorAddr, ev.Creator)

	_, ok = ParseEscrowCreated(receipt, factory, YieldEscrowCreatedTopic)
	require.False(t, ok, "wrong event signature")

	_, ok = ParseEscrowCreated(receipt, common.HexToAddress("0x01"), TermsEscrowCreatedTopic)
	require.False(t, ok, "log from another contract")
}

func TestCreatedTopics(t *testing.T) {
	require.NotEqual(t, TermsEscrowCreatedTopic, YieldEscrowCreatedTopic)
	require.Equal(t, TermsEscrowCreatedTopic, CreatedTopicForVersion(4))
	require.Equal(t, YieldEscrowCreatedTopic, CreatedTopicForVersion(5))
	require.Equal(t, TermsFactoryABI.Events["EscrowCreated"].ID, TermsEscrowCreatedTopic)
	require.Equal(t, YieldFactoryABI.Events["EscrowCreated"].ID, YieldEscrowCreatedTopic)
}

func TestDisputeDeliverableCall(t *testing.T) {
	data, err := DisputeDeliverableCall(2, "Mockups missing the checkout screen")
	require.NoError(t, err)

	method, err := TermsEscrowABI.MethodById(data[:4])
	require.NoError(t, err)
	require.Equal(t, "disputeDeliverable", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Equal(t, int64(2), args[0].(*big.Int).Int64())
	require.Equal(t, "Mockups missing the checkout screen", args[1].(string))
}

func TestCreateTermsEscrowCall(t *testing.T) {
	data, err := CreateTermsEscrowCall(TermsEscrowCreateParams{
		InvoiceID:       "inv-1",
		TermsHash:       common.HexToHash("0x63e0574f68da15dae7dcbd66ceab12cd92ebdac5782c0a33a87febef20b56f1f"),
		Amounts:         []*big.Int{big.NewInt(400_000), big.NewInt(600_000)},
		CriteriaHashes:  []common.Hash{{0x01}, {0x02}},
		DeadlineDays:    []*big.Int{big.NewInt(5), big.NewInt(7)},
		AutoReleaseDays: 7,
	})
	require.NoError(t, err)

	method, err := TermsFactoryABI.MethodById(data[:4])
	require.NoError(t, err)
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Equal(t, [32]byte(InvoiceIDHash("inv-1")), args[0].([32]byte))
	require.Len(t, args[2].([]*big.Int), 2)
	require.Equal(t, int64(7), args[5].(*big.Int).Int64())
}
