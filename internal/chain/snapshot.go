package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TermsState is the on-chain state enum of a terms escrow.
type TermsState uint8

const (
	TermsStateCreated TermsState = iota
	TermsStateSigned
	TermsStateActive
	TermsStateCompleted
	TermsStateRefunded
)

var termsStateNames = [...]string{"CREATED", "SIGNED", "ACTIVE", "COMPLETED", "REFUNDED"}

func (s TermsState) String() string {
	if int(s) < len(termsStateNames) {
		return termsStateNames[s]
	}
	return "UNKNOWN"
}

func (s TermsState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *TermsState) UnmarshalText(b []byte) error {
	for i, name := range termsStateNames {
		if name == string(b) {
			*s = TermsState(i)
			return nil
		}
	}
	*s = TermsState(255)
	return nil
}

type DeliverableStatus struct {
	Amount       *big.Int    `json:"amount"`
	CriteriaHash common.Hash `json:"criteria_hash"`
	DeadlineDays uint64      `json:"deadline_days"`
	Funded       bool        `json:"funded"`
	Approved     bool        `json:"approved"`
	Disputed     bool        `json:"disputed"`
}

func zeroDeliverable() DeliverableStatus {
	return DeliverableStatus{Amount: new(big.Int)}
}

// TermsSnapshot is a read-only view of a terms escrow at one point in time.
type TermsSnapshot struct {
	Address            common.Address      `json:"address"`
	Creator            common.Address      `json:"creator"`
	Payer              common.Address      `json:"payer"`
	TermsHash          common.Hash         `json:"terms_hash"`
	TotalAmount        *big.Int            `json:"total_amount"`
	FundedAmount       *big.Int            `json:"funded_amount"`
	ReleasedAmount     *big.Int            `json:"released_amount"`
	State              TermsState          `json:"state"`
	FundedAt           uint64              `json:"funded_at"`
	AutoReleaseDays    uint64              `json:"auto_release_days"`
	DeliverableCount   int                 `json:"deliverable_count"`
	CurrentDeliverable int                 `json:"current_deliverable"`
	CanAutoRelease     bool                `json:"can_auto_release"`
	Deliverables       []DeliverableStatus `json:"deliverables"`
}

func (s *TermsSnapshot) IsCreated() bool   { return s.State == TermsStateCreated }
func (s *TermsSnapshot) IsSigned() bool    { return s.State == TermsStateSigned }
func (s *TermsSnapshot) IsActive() bool    { return s.State == TermsStateActive }
func (s *TermsSnapshot) IsCompleted() bool { return s.State == TermsStateCompleted }
func (s *TermsSnapshot) IsRefunded() bool  { return s.State == TermsStateRefunded }

// YieldState is the on-chain state enum of a yield escrow.
type YieldState uint8

const (
	YieldStateCreated YieldState = iota
	YieldStateFunded
	YieldStateReleased
	YieldStateRefunded
)

var yieldStateNames = [...]string{"CREATED", "FUNDED", "RELEASED", "REFUNDED"}

func (s YieldState) String() string {
	if int(s) < len(yieldStateNames) {
		return yieldStateNames[s]
	}
	return "UNKNOWN"
}

func (s YieldState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *YieldState) UnmarshalText(b []byte) error {
	for i, name := range yieldStateNames {
		if name == string(b) {
			*s = YieldState(i)
			return nil
		}
	}
	*s = YieldState(255)
	return nil
}

type YieldSnapshot struct {
	Address         common.Address  `json:"address"`
	Creator         common.Address  `json:"creator"`
	Payer           *common.Address `json:"payer,omitempty"`
	OriginalAmount  *big.Int        `json:"original_amount"`
	DepositedShares *big.Int        `json:"deposited_shares"`
	CurrentValue    *big.Int        `json:"current_value"`
	AccruedYield    *big.Int        `json:"accrued_yield"`
	State           YieldState      `json:"state"`
	FundedAt        uint64          `json:"funded_at"`
	AutoReleaseDays uint64          `json:"auto_release_days"`
	CanAutoRelease  bool            `json:"can_auto_release"`
}

func (s *YieldSnapshot) IsCreated() bool  { return s.State == YieldStateCreated }
func (s *YieldSnapshot) IsFunded() bool   { return s.State == YieldStateFunded }
func (s *YieldSnapshot) IsReleased() bool { return s.State == YieldStateReleased }
func (s *YieldSnapshot) IsRefunded() bool { return s.State == YieldStateRefunded }

// BasicSnapshot covers the simple (v1) and milestone (v3) escrows. State is
// the raw enum; drivers interpret it.
type BasicSnapshot struct {
	Address         common.Address `json:"address"`
	Creator         common.Address `json:"creator"`
	Payer           common.Address `json:"payer"`
	TotalAmount     *big.Int       `json:"total_amount"`
	FundedAmount    *big.Int       `json:"funded_amount"`
	ReleasedAmount  *big.Int       `json:"released_amount"`
	State           uint8          `json:"state"`
	FundedAt        uint64         `json:"funded_at"`
	AutoReleaseDays uint64         `json:"auto_release_days"`
	ItemCount       int            `json:"item_count"`
	CurrentItem     int            `json:"current_item"`
	CanAutoRelease  bool           `json:"can_auto_release"`
}
