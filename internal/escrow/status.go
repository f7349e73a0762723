package escrow

import (
	"math/big"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/ethereum/go-ethereum/common"
)

// Normalized escrow states shared by every contract family.
const (
	StateCreated   = "created"
	StateSigned    = "signed"
	StateActive    = "active"
	StateFunded    = "funded"
	StateReleased  = "released"
	StateRefunded  = "refunded"
	StateCompleted = "completed"
	StateUnknown   = "unknown"
)

// Status is the version-independent view of an escrow. Exactly one of
// Terms, Yield or Basic carries the raw snapshot.
type Status struct {
	Version        int            `json:"contract_version"`
	Address        common.Address `json:"address"`
	State          string         `json:"state"`
	Creator        common.Address `json:"creator"`
	Payer          common.Address `json:"payer"`
	TotalAmount    *big.Int       `json:"total_amount"`
	FundedAmount   *big.Int       `json:"funded_amount"`
	ReleasedAmount *big.Int       `json:"released_amount"`
	CanAutoRelease bool           `json:"can_auto_release"`

	Terms *chain.TermsSnapshot `json:"terms,omitempty"`
	Yield *chain.YieldSnapshot `json:"yield,omitempty"`
	Basic *chain.BasicSnapshot `json:"basic,omitempty"`
}

// Settled reports whether the escrow can no longer move funds.
func (s *Status) Settled() bool {
	return s.State == StateReleased || s.State == StateRefunded || s.State == StateCompleted
}

func termsStatus(snap *chain.TermsSnapshot) *Status {
	st := &Status{
		Version:        4,
		Address:        snap.Address,
		Creator:        snap.Creator,
		Payer:          snap.Payer,
		TotalAmount:    snap.TotalAmount,
		FundedAmount:   snap.FundedAmount,
		ReleasedAmount: snap.ReleasedAmount,
		CanAutoRelease: snap.CanAutoRelease,
		Terms:          snap,
	}
	switch {
	case snap.IsCreated():
		st.State = StateCreated
	case snap.IsSigned():
		st.State = StateSigned
	case snap.IsActive():
		st.State = StateActive
	case snap.IsCompleted():
		st.State = StateCompleted
	case snap.IsRefunded():
		st.State = StateRefunded
	default:
		st.State = StateUnknown
	}
	return st
}

func yieldStatus(snap *chain.YieldSnapshot) *Status {
	st := &Status{
		Version:        5,
		Address:        snap.Address,
		Creator:        snap.Creator,
		TotalAmount:    snap.OriginalAmount,
		FundedAmount:   new(big.Int),
		ReleasedAmount: new(big.Int),
		CanAutoRelease: snap.CanAutoRelease,
		Yield:          snap,
	}
	if snap.Payer != nil {
		st.Payer = *snap.Payer
	}
	switch {
	case snap.IsCreated():
		st.State = StateCreated
	case snap.IsFunded():
		st.State = StateFunded
		st.FundedAmount = snap.OriginalAmount
	case snap.IsReleased():
		st.State = StateReleased
		st.FundedAmount = snap.OriginalAmount
		st.ReleasedAmount = snap.CurrentValue
	case snap.IsRefunded():
		st.State = StateRefunded
		st.FundedAmount = snap.OriginalAmount
	default:
		st.State = StateUnknown
	}
	return st
}

// Raw states of the simple and milestone contracts.
var (
	simpleStates    = [...]string{StateCreated, StateFunded, StateReleased, StateRefunded}
	milestoneStates = [...]string{StateCreated, StateActive, StateCompleted, StateRefunded}
)

func basicStatus(version int, snap *chain.BasicSnapshot, names []string) *Status {
	st := &Status{
		Version:        version,
		Address:        snap.Address,
		Creator:        snap.Creator,
		Payer:          snap.Payer,
		TotalAmount:    snap.TotalAmount,
		FundedAmount:   snap.FundedAmount,
		ReleasedAmount: snap.ReleasedAmount,
		CanAutoRelease: snap.CanAutoRelease,
		State:          StateUnknown,
		Basic:          snap,
	}
	if int(snap.State) < len(names) {
		st.State = names[snap.State]
	}
	return st
}
