package funding

import (
	"context"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/signing"
)

// KeyWallet is a Wallet backed by a local private key.
type KeyWallet struct {
	*chain.Transactor
}

func NewKeyWallet(t *chain.Transactor) *KeyWallet {
	return &KeyWallet{Transactor: t}
}

func (w *KeyWallet) SignMessage(_ context.Context, message string) ([]byte, error) {
	return signing.Sign(message, w.Key())
}
