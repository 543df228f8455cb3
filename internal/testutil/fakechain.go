// Package testutil holds an in-memory chain used by package tests.
package testutil

import (
	"context"
	"math/big"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	pkgrpc "github.com/goran-ethernal/ChainHound/pkg/rpc"
)

var _ pkgrpc.EthClient = (*FakeChain)(nil)

// LogQuery is a recorded eth_getLogs call.
type LogQuery struct {
	From, To uint64
}

// FakeChain is an in-memory EthClient. Its head, logs and errors can be changed while in use.
type FakeChain struct {
	mu sync.Mutex

	network string
	head    uint64
	logs    []types.Log

	headErr error
	logsErr error

	headCalls int
	queries   []LogQuery
}

// NewFakeChain creates a chain whose latest, safe and finalized head is head.
func NewFakeChain(network string, head uint64) *FakeChain {
	return &FakeChain{network: network, head: head}
}

// SetHead moves the chain head.
func (c *FakeChain) SetHead(head uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = head
}

// AddLogs appends logs to the chain.
func (c *FakeChain) AddLogs(logs ...types.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, logs...)
}

// FailHead makes head queries return err; nil restores them.
func (c *FakeChain) FailHead(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headErr = err
}

// FailLogs makes log queries return err; nil restores them.
func (c *FakeChain) FailLogs(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logsErr = err
}

// HeadCalls returns the number of head queries served.
func (c *FakeChain) HeadCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.headCalls
}

// Queries returns the recorded log queries.
func (c *FakeChain) Queries() []LogQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogQuery(nil), c.queries...)
}

func (c *FakeChain) Close() {}

func (c *FakeChain) Network() string {
	return c.network
}

// GetLogs returns the stored logs within the inclusive query range that match its filter.
func (c *FakeChain) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.logsErr != nil {
		return nil, c.logsErr
	}

	from, to := query.FromBlock.Uint64(), query.ToBlock.Uint64()
	c.queries = append(c.queries, LogQuery{From: from, To: to})

	var out []types.Log
	for _, lg := range c.logs {
		if lg.BlockNumber < from || lg.BlockNumber > to {
			continue
		}
		if len(query.Addresses) > 0 && !slices.Contains(query.Addresses, lg.Address) {
			continue
		}
		if len(query.Topics) > 0 && len(query.Topics[0]) > 0 &&
			(len(lg.Topics) == 0 || !slices.Contains(query.Topics[0], lg.Topics[0])) {
			continue
		}
		out = append(out, lg)
	}

	return out, nil
}

func (c *FakeChain) GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &types.Header{Number: new(big.Int).SetUint64(blockNum), Time: 1_700_000_000 + blockNum*12}, nil
}

func (c *FakeChain) GetLatestBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headHeader(ctx)
}

func (c *FakeChain) GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headHeader(ctx)
}

func (c *FakeChain) GetSafeBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headHeader(ctx)
}

func (c *FakeChain) headHeader(ctx context.Context) (*types.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.headCalls++
	if c.headErr != nil {
		return nil, c.headErr
	}

	return &types.Header{Number: new(big.Int).SetUint64(c.head)}, nil
}

// EventLog builds a log of address with the given first topic at block.
func EventLog(address common.Address, topic common.Hash, block uint64, index uint) types.Log {
	return types.Log{
		Address:     address,
		Topics:      []common.Hash{topic},
		BlockNumber: block,
		Index:       index,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(index))),
	}
}
