package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapCache map[string]string

func (m mapCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", services.ErrCacheMiss
	}
	return v, nil
}

func (m mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m[key] = value
	return nil
}

func (m mapCache) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	if _, ok := m[key]; ok {
		return false, nil
	}
	m[key] = value
	return true, nil
}

func (m mapCache) GetDel(ctx context.Context, key string) (string, error) {
	v, err := m.Get(ctx, key)
	delete(m, key)
	return v, err
}

type fakeLogs struct {
	head    uint64
	logs    []types.Log
	queries []ethereum.FilterQuery
}

func (f *fakeLogs) BlockNumber(context.Context) (uint64, error) { return f.head, nil }

func (f *fakeLogs) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.queries = append(f.queries, q)
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= q.FromBlock.Uint64() && l.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, l)
		}
	}
	return out, nil
}

type recBinder struct {
	seen []chain.EscrowCreated
	err  error
}

func (b *recBinder) BindFromLog(_ context.Context, ev chain.EscrowCreated) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	b.seen = append(b.seen, ev)
	return true, nil
}

func termsFactoryLog(t *testing.T, block uint64) types.Log {
	t.Helper()
	factory, err := chain.DefaultAddressBook().Lookup(chain.NetworkArcTestnet, chain.ContractTermsFactory)
	require.NoError(t, err)
	return types.Log{
		Address: factory,
		Topics: []common.Hash{
			chain.TermsEscrowCreatedTopic,
			chain.InvoiceIDHash("3f1c2e8a-1b7e-4f0a-9a51-2b8a3f9c0d11"),
			common.BytesToHash(common.HexToAddress("0x00000000000000000000000000000000000e5c01").Bytes()),
		},
		BlockNumber: block,
	}
}

func newTestIndexer(t *testing.T, logs *fakeLogs, b *recBinder, cache mapCache, startAt uint64) *indexer {
	t.Helper()
	ix, err := newIndexer(logs, b, cache, chain.DefaultAddressBook(), chain.NetworkArcTestnet, startAt, zap.NewNop())
	require.NoError(t, err)
	return ix
}

func TestIndexerBindsAndAdvancesCursor(t *testing.T) {
	logs := &fakeLogs{head: 120, logs: []types.Log{termsFactoryLog(t, 110)}}
	b := &recBinder{}
	cache := mapCache{}
	ix := newTestIndexer(t, logs, b, cache, 100)

	n, err := ix.poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, b.seen, 1)
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000e5c01"), b.seen[0].Escrow)
	require.Equal(t, "121", cache[cursorKey])

	// Nothing new: the next poll starts past the head and scans nothing.
	n, err = ix.poll(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, logs.queries, 1)
}

func TestIndexerSplitsLargeRanges(t *testing.T) {
	logs := &fakeLogs{head: 1 + 2*maxBlockRange}
	ix := newTestIndexer(t, logs, &recBinder{}, mapCache{}, 1)

	_, err := ix.poll(context.Background())
	require.NoError(t, err)
	require.Len(t, logs.queries, 3)
	require.Equal(t, uint64(maxBlockRange), logs.queries[0].ToBlock.Uint64())
	require.Equal(t, logs.head, logs.queries[2].ToBlock.Uint64())
}

func TestIndexerKeepsCursorOnBindFailure(t *testing.T) {
	logs := &fakeLogs{head: 50, logs: []types.Log{termsFactoryLog(t, 40)}}
	cache := mapCache{cursorKey: "30"}
	ix := newTestIndexer(t, logs, &recBinder{err: errors.New("db down")}, cache, 0)

	_, err := ix.poll(context.Background())
	require.Error(t, err)
	require.Equal(t, "30", cache[cursorKey])
}

func TestIndexerStartsAtHeadWithoutCursor(t *testing.T) {
	logs := &fakeLogs{head: 900, logs: []types.Log{termsFactoryLog(t, 10)}}
	b := &recBinder{}
	ix := newTestIndexer(t, logs, b, mapCache{}, 0)

	_, err := ix.poll(context.Background())
	require.NoError(t, err)
	require.Empty(t, b.seen)
	require.Equal(t, uint64(900), logs.queries[0].FromBlock.Uint64())
}

func TestIndexerIgnoresRemovedAndForeignLogs(t *testing.T) {
	removed := termsFactoryLog(t, 5)
	removed.Removed = true
	foreign := termsFactoryLog(t, 6)
	foreign.Address = common.HexToAddress("0x000000000000000000000000000000000000dead")

	b := &recBinder{}
	ix := newTestIndexer(t, &fakeLogs{head: 10, logs: []types.Log{removed, foreign}}, b, mapCache{}, 1)

	n, err := ix.poll(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, b.seen)
}
