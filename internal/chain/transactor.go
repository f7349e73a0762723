package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/metrics"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

const receiptPollInterval = time.Second

// Sender submits transactions from one account and waits for their receipts.
type Sender interface {
	From() common.Address
	Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
	Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Backend is the subset of ethclient.Client the transactor needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type Transactor struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer
	log     *zap.Logger

	mu sync.Mutex
}

func NewTransactor(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, log *zap.Logger) *Transactor {
	return &Transactor{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
		log:     log,
	}
}

func (t *Transactor) From() common.Address { return t.from }

// Key exposes the signing key for personal-message signatures.
func (t *Transactor) Key() *ecdsa.PrivateKey { return t.key }

func (t *Transactor) Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hash, err := t.send(ctx, to, data)
	metrics.Get().ObserveChainCall("send", err)
	if err != nil {
		return common.Hash{}, errs.Wrap(errs.KindOnChainCallFailure, err, "transaction submission failed")
	}
	return hash, nil
}

func (t *Transactor) send(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{From: t.from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx, err := types.SignNewTx(t.key, t.signer, &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Data:     data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := t.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}
	t.log.Info("transaction sent",
		zap.String("hash", tx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
	)
	return tx.Hash(), nil
}

// Wait polls for the receipt until it is mined or ctx ends. A reverted
// transaction is an OnChainCallFailure.
func (t *Transactor) Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return WaitReceipt(ctx, t.backend, hash)
}

// ReceiptFetcher is satisfied by ethclient.Client.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

func WaitReceipt(ctx context.Context, backend ReceiptFetcher, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, errs.New(errs.KindOnChainCallFailure, "transaction %s reverted", hash.Hex())
			}
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, errs.Wrap(errs.KindOnChainCallFailure, err, "fetch receipt")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
