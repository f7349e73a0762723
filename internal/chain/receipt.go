package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EscrowCreated is a decoded factory creation log.
type EscrowCreated struct {
	InvoiceIDHash common.Hash
	Escrow        common.Address
	Creator       common.Address
	Factory       common.Address
	BlockNumber   uint64
	TxHash        common.Hash
}

// ParseEscrowCreatedLog decodes a creation log whose first topic is topic.
// The escrow address is the second indexed argument (topics[2]).
func ParseEscrowCreatedLog(l *types.Log, topic common.Hash) (EscrowCreated, bool) {
	if l == nil || len(l.Topics) < 3 || l.Topics[0] != topic {
		return EscrowCreated{}, false
	}
	ev := EscrowCreated{
		InvoiceIDHash: l.Topics[1],
		Escrow:        common.BytesToAddress(l.Topics[2].Bytes()),
		Factory:       l.Address,
		BlockNumber:   l.BlockNumber,
		TxHash:        l.TxHash,
	}
	if len(l.Topics) > 3 {
		ev.Creator = common.BytesToAddress(l.Topics[3].Bytes())
	}
	return ev, true
}

// ParseEscrowCreated finds the creation event in a receipt. When factory is
// non-zero, only logs emitted by that factory are considered.
func ParseEscrowCreated(receipt *types.Receipt, factory common.Address, topic common.Hash) (EscrowCreated, bool) {
	if receipt == nil {
		return EscrowCreated{}, false
	}
	for _, l := range receipt.Logs {
		if factory != (common.Address{}) && l.Address != factory {
			continue
		}
		if ev, ok := ParseEscrowCreatedLog(l, topic); ok {
			return ev, true
		}
	}
	return EscrowCreated{}, false
}

// CreatedTopicForVersion returns the creation event topic a factory of the
// given contract version emits.
func CreatedTopicForVersion(version int) common.Hash {
	if version == 4 {
		return TermsEscrowCreatedTopic
	}
	return YieldEscrowCreatedTopic
}
