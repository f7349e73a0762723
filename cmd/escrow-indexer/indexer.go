package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/escrow"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

const (
	cursorKey     = "escrow-indexer:cursor"
	maxBlockRange = 2000
)

// factoryVersions are the contract versions whose factories are watched.
var factoryVersions = []int{
	models.ContractVersionSimple,
	2,
	models.ContractVersionMilestone,
	models.ContractVersionTerms,
	models.ContractVersionYield,
}

type logSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type binder interface {
	BindFromLog(ctx context.Context, ev chain.EscrowCreated) (bool, error)
}

// indexer binds escrows to invoices from factory creation logs. The next
// block to scan is kept in the cache so restarts resume where they stopped.
type indexer struct {
	logs    logSource
	binder  binder
	cursor  services.Cache
	watch   map[common.Address]common.Hash
	startAt uint64
	log     *zap.Logger
}

func newIndexer(logs logSource, b binder, cursor services.Cache, book *chain.AddressBook, network, startAt uint64, log *zap.Logger) (*indexer, error) {
	watch := make(map[common.Address]common.Hash)
	for _, v := range factoryVersions {
		addr, topic, err := escrow.Factory(book, network, v)
		if err != nil {
			log.Info("factory not watched", zap.Int("contract_version", v), zap.Error(err))
			continue
		}
		watch[addr] = topic
	}
	if len(watch) == 0 {
		return nil, fmt.Errorf("no escrow factories deployed on network %d", network)
	}
	return &indexer{logs: logs, binder: b, cursor: cursor, watch: watch, startAt: startAt, log: log}, nil
}

// next returns the first block not yet scanned. Without a saved cursor the
// configured start block is used, or the current head when that is zero.
func (ix *indexer) next(ctx context.Context, head uint64) (uint64, error) {
	val, err := ix.cursor.Get(ctx, cursorKey)
	if errors.Is(err, services.ErrCacheMiss) {
		if ix.startAt > 0 {
			return ix.startAt, nil
		}
		ix.log.Info("no saved cursor, starting at head", zap.Uint64("block", head))
		return head, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(val, 10, 64)
}

// poll scans from the cursor up to the current head in bounded ranges and
// returns the number of escrows bound. The cursor only advances past a range
// once every log in it was handled.
func (ix *indexer) poll(ctx context.Context) (int, error) {
	head, err := ix.logs.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	from, err := ix.next(ctx, head)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}

	bound := 0
	for from <= head {
		to := from + maxBlockRange - 1
		if to > head {
			to = head
		}
		n, err := ix.scan(ctx, from, to)
		bound += n
		if err != nil {
			return bound, err
		}
		if err := ix.cursor.Set(ctx, cursorKey, strconv.FormatUint(to+1, 10), 0); err != nil {
			return bound, fmt.Errorf("save cursor: %w", err)
		}
		from = to + 1
	}
	return bound, nil
}

func (ix *indexer) scan(ctx context.Context, from, to uint64) (int, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: make([]common.Address, 0, len(ix.watch)),
	}
	topics := make(map[common.Hash]bool)
	for addr, topic := range ix.watch {
		q.Addresses = append(q.Addresses, addr)
		topics[topic] = true
	}
	first := make([]common.Hash, 0, len(topics))
	for t := range topics {
		first = append(first, t)
	}
	q.Topics = [][]common.Hash{first}

	logs, err := ix.logs.FilterLogs(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("filter logs %d-%d: %w", from, to, err)
	}

	bound := 0
	for i := range logs {
		l := &logs[i]
		if l.Removed {
			continue
		}
		topic, ok := ix.watch[l.Address]
		if !ok {
			continue
		}
		ev, ok := chain.ParseEscrowCreatedLog(l, topic)
		if !ok {
			continue
		}
		ok, err := ix.binder.BindFromLog(ctx, ev)
		if err != nil {
			return bound, fmt.Errorf("bind escrow %s: %w", ev.Escrow.Hex(), err)
		}
		if ok {
			bound++
		}
	}
	if len(logs) > 0 {
		ix.log.Debug("range scanned",
			zap.Uint64("from", from),
			zap.Uint64("to", to),
			zap.Int("logs", len(logs)),
			zap.Int("bound", bound),
		)
	}
	return bound, nil
}
