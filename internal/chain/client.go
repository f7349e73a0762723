// Package chain talks to the EVM network: contract address lookup, ABI
// codecs, batched reads, transaction submission and receipt parsing.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/arc-invoice/backend/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

type CallRequest struct {
	To   common.Address
	Data []byte
}

// CallResult holds one element of a batch. Err is set when only that element failed.
type CallResult struct {
	Data []byte
	Err  error
}

// BatchCaller executes several eth_calls in one round trip.
type BatchCaller interface {
	BatchCall(ctx context.Context, reqs []CallRequest) ([]CallResult, error)
}

type Client struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	chainID *big.Int
	log     *zap.Logger
}

func Dial(ctx context.Context, url string, log *zap.Logger) (*Client, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	eth := ethclient.NewClient(rc)
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	log.Info("rpc connected", zap.String("chain_id", chainID.String()))
	return &Client{rpc: rc, eth: eth, chainID: chainID, log: log}, nil
}

func (c *Client) Eth() *ethclient.Client { return c.eth }

func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

func (c *Client) Close() { c.rpc.Close() }

type callArg struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

func (c *Client) BatchCall(ctx context.Context, reqs []CallRequest) ([]CallResult, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	started := time.Now()
	defer metrics.Get().ObserveBatch("eth_call", started)

	results := make([]hexutil.Bytes, len(reqs))
	elems := make([]rpc.BatchElem, len(reqs))
	for i, r := range reqs {
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args:   []any{callArg{To: r.To, Data: r.Data}, "latest"},
			Result: &results[i],
		}
	}
	if err := c.rpc.BatchCallContext(ctx, elems); err != nil {
		return nil, err
	}

	out := make([]CallResult, len(reqs))
	for i, e := range elems {
		if e.Error != nil {
			out[i] = CallResult{Err: e.Error}
			continue
		}
		out[i] = CallResult{Data: results[i]}
	}
	return out, nil
}
