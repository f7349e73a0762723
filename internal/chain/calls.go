package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// PreparedCall is an encoded contract call for a wallet to submit.
type PreparedCall struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// InvoiceIDHash is the bytes32 key factories index escrows by.
func InvoiceIDHash(invoiceID string) common.Hash {
	return crypto.Keccak256Hash([]byte(invoiceID))
}

func ApproveCall(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("approve", spender, amount)
}

func SignTermsCall(signature []byte) ([]byte, error) {
	return TermsEscrowABI.Pack("signTerms", signature)
}

func FundDeliverableCall(index int) ([]byte, error) {
	return TermsEscrowABI.Pack("fundDeliverable", big.NewInt(int64(index)))
}

func ApproveDeliverableCall(index int) ([]byte, error) {
	return TermsEscrowABI.Pack("approveDeliverable", big.NewInt(int64(index)))
}

func DisputeDeliverableCall(index int, reason string) ([]byte, error) {
	return TermsEscrowABI.Pack("disputeDeliverable", big.NewInt(int64(index)), reason)
}

func AutoReleaseCall() ([]byte, error) {
	return TermsEscrowABI.Pack("autoRelease")
}

func YieldDepositCall(amount *big.Int) ([]byte, error) {
	return YieldEscrowABI.Pack("deposit", amount)
}

func YieldReleaseCall() ([]byte, error) {
	return YieldEscrowABI.Pack("release")
}

func YieldRefundCall() ([]byte, error) {
	return YieldEscrowABI.Pack("refund")
}

// TermsEscrowCreateParams are the factory arguments for a terms escrow.
type TermsEscrowCreateParams struct {
	InvoiceID       string
	TermsHash       common.Hash
	Amounts         []*big.Int
	CriteriaHashes  []common.Hash
	DeadlineDays    []*big.Int
	AutoReleaseDays int
}

func CreateTermsEscrowCall(p TermsEscrowCreateParams) ([]byte, error) {
	criteria := make([][32]byte, len(p.CriteriaHashes))
	for i, h := range p.CriteriaHashes {
		criteria[i] = h
	}
	return TermsFactoryABI.Pack("createEscrow",
		InvoiceIDHash(p.InvoiceID),
		[32]byte(p.TermsHash),
		p.Amounts,
		criteria,
		p.DeadlineDays,
		big.NewInt(int64(p.AutoReleaseDays)),
	)
}

func CreateYieldEscrowCall(invoiceID string, amount *big.Int, autoReleaseDays int) ([]byte, error) {
	return YieldFactoryABI.Pack("createEscrow", InvoiceIDHash(invoiceID), amount, big.NewInt(int64(autoReleaseDays)))
}

func CreateSimpleEscrowCall(invoiceID string, amount *big.Int, autoReleaseDays int) ([]byte, error) {
	return SimpleFactoryABI.Pack("createEscrow", InvoiceIDHash(invoiceID), amount, big.NewInt(int64(autoReleaseDays)))
}

func CreateMilestoneEscrowCall(invoiceID string, amounts []*big.Int, autoReleaseDays int) ([]byte, error) {
	return MilestoneFactoryABI.Pack("createEscrow", InvoiceIDHash(invoiceID), amounts, big.NewInt(int64(autoReleaseDays)))
}

func SimpleDepositCall() ([]byte, error) {
	return SimpleEscrowABI.Pack("deposit")
}

func FundMilestoneCall(index int) ([]byte, error) {
	return MilestoneEscrowABI.Pack("fundMilestone", big.NewInt(int64(index)))
}
