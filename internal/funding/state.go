// Package funding drives the payer through signing, token approval and
// deliverable funding for a terms-based escrow.
package funding

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

type Step string

const (
	StepIdle      Step = "idle"
	StepSigning   Step = "signing"
	StepApproving Step = "approving"
	StepFunding   Step = "funding"
	StepComplete  Step = "complete"
)

// State is the reducer state. The last seen signature and tx hash make
// repeated notifications of the same value no-ops.
type State struct {
	Step          Step
	Signed        bool
	lastSignature []byte
	lastTxHash    common.Hash
}

// Idle reports whether no attempt is in flight. The zero State is idle.
func (s State) Idle() bool {
	return s.Step == "" || s.Step == StepIdle
}

type Event interface{ isEvent() }

// Started begins an attempt. AlreadySigned is true when the escrow is
// already SIGNED or ACTIVE on chain.
type Started struct{ AlreadySigned bool }

type MessageSigned struct{ Signature []byte }

type TxConfirmed struct{ Hash common.Hash }

type Failed struct{ Err error }

func (Started) isEvent()       {}
func (MessageSigned) isEvent() {}
func (TxConfirmed) isEvent()   {}
func (Failed) isEvent()        {}

type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectSignMessage
	EffectSubmitSignTerms
	EffectSubmitApprove
	EffectSubmitFund
	EffectComplete
	EffectAbort
)

func (k EffectKind) String() string {
	switch k {
	case EffectSignMessage:
		return "sign_message"
	case EffectSubmitSignTerms:
		return "submit_sign_terms"
	case EffectSubmitApprove:
		return "submit_approve"
	case EffectSubmitFund:
		return "submit_fund"
	case EffectComplete:
		return "complete"
	case EffectAbort:
		return "abort"
	}
	return "none"
}

type Effect struct {
	Kind      EffectKind
	Signature []byte
	TxHash    common.Hash
	Err       error
}

// Reduce is the pure transition function of the funding flow.
func Reduce(s State, ev Event) (State, Effect) {
	switch e := ev.(type) {
	case Started:
		if e.AlreadySigned {
			return State{Step: StepApproving, Signed: true}, Effect{Kind: EffectSubmitApprove}
		}
		return State{Step: StepSigning}, Effect{Kind: EffectSignMessage}

	case MessageSigned:
		if s.Step != StepSigning || len(e.Signature) == 0 || bytes.Equal(e.Signature, s.lastSignature) {
			return s, Effect{}
		}
		s.lastSignature = append([]byte(nil), e.Signature...)
		return s, Effect{Kind: EffectSubmitSignTerms, Signature: s.lastSignature}

	case TxConfirmed:
		if e.Hash == (common.Hash{}) || e.Hash == s.lastTxHash {
			return s, Effect{}
		}
		switch s.Step {
		case StepSigning:
			if s.lastSignature == nil {
				return s, Effect{}
			}
			s.lastTxHash = e.Hash
			s.Signed = true
			s.Step = StepApproving
			return s, Effect{Kind: EffectSubmitApprove}
		case StepApproving:
			s.lastTxHash = e.Hash
			s.Step = StepFunding
			return s, Effect{Kind: EffectSubmitFund}
		case StepFunding:
			s.lastTxHash = e.Hash
			s.Step = StepComplete
			return s, Effect{Kind: EffectComplete, TxHash: e.Hash}
		}
		return s, Effect{}

	case Failed:
		if s.Idle() || s.Step == StepComplete {
			return s, Effect{}
		}
		return State{Step: StepIdle}, Effect{Kind: EffectAbort, Err: e.Err}
	}
	return s, Effect{}
}
