// Package fees converts a deliverable's face amount into what the payer
// must approve, including the payer-side platform fee.
package fees

import "math/big"

const bpsDenominator = 10_000

type Schedule struct {
	PayerFeeBPS int64
}

func NewSchedule(payerFeeBPS int) Schedule {
	if payerFeeBPS < 0 {
		payerFeeBPS = 0
	}
	return Schedule{PayerFeeBPS: int64(payerFeeBPS)}
}

// PayerFee is the fee on faceMinor, rounded up so the escrow is never short.
func (s Schedule) PayerFee(faceMinor int64) int64 {
	if s.PayerFeeBPS == 0 || faceMinor <= 0 {
		return 0
	}
	return (faceMinor*s.PayerFeeBPS + bpsDenominator - 1) / bpsDenominator
}

func (s Schedule) PayerAmount(faceMinor int64) int64 {
	return faceMinor + s.PayerFee(faceMinor)
}

// PayerAmountBig is PayerAmount for on-chain uint256 values.
func (s Schedule) PayerAmountBig(face *big.Int) *big.Int {
	if face == nil {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(face, big.NewInt(s.PayerFeeBPS))
	fee.Add(fee, big.NewInt(bpsDenominator-1))
	fee.Quo(fee, big.NewInt(bpsDenominator))
	if face.Sign() <= 0 {
		fee.SetInt64(0)
	}
	return fee.Add(fee, face)
}
