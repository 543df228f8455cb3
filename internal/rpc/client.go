package rpc

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/ChainHound/pkg/config"
	pkgrpc "github.com/goran-ethernal/ChainHound/pkg/rpc"
)

// Compile-time check to ensure Client implements pkgrpc.EthClient interface.
var _ pkgrpc.EthClient = (*Client)(nil)

// Client wraps the Ethereum RPC client of one network.
// Every request, including every retry attempt, first waits on the network limiter.
type Client struct {
	eth     *ethclient.Client
	rpc     *rpc.Client
	network string
	limiter *Limiter
	retry   *config.RetryConfig
}

// NewClient dials the endpoint of the given network and guards it with a limiter built from cfg.
func NewClient(ctx context.Context, network string, cfg config.NetworkConfig) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}

	return newClient(rpcClient, network, NewLimiter(network, cfg.RequestsPerSecond, cfg.Burst), cfg.Retry), nil
}

func newClient(rpcClient *rpc.Client, network string, limiter *Limiter, retry *config.RetryConfig) *Client {
	return &Client{
		eth:     ethclient.NewClient(rpcClient),
		rpc:     rpcClient,
		network: network,
		limiter: limiter,
		retry:   retry,
	}
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Network returns the network name the client is bound to.
func (c *Client) Network() string {
	return c.network
}

// Limiter returns the rate limiter shared by every request of this client.
func (c *Client) Limiter() *Limiter {
	return c.limiter
}

// GetLogs retrieves logs matching the given filter query.
func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.call(ctx, "eth_getLogs", func() error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, query)
		return err
	})

	return logs, err
}

// GetBlockHeader retrieves the header for a specific block number.
func (c *Client) GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error) {
	return c.headerByNumber(ctx, new(big.Int).SetUint64(blockNum))
}

// GetLatestBlockHeader retrieves the latest block header.
func (c *Client) GetLatestBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headerByNumber(ctx, nil)
}

// GetFinalizedBlockHeader retrieves the finalized block header.
func (c *Client) GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headerByNumber(ctx, big.NewInt(int64(rpc.FinalizedBlockNumber)))
}

// GetSafeBlockHeader retrieves the safe block header.
func (c *Client) GetSafeBlockHeader(ctx context.Context) (*types.Header, error) {
	return c.headerByNumber(ctx, big.NewInt(int64(rpc.SafeBlockNumber)))
}

func (c *Client) headerByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := c.call(ctx, "eth_getBlockByNumber", func() error {
		var err error
		header, err = c.eth.HeaderByNumber(ctx, number)
		return err
	})

	return header, err
}

// call runs one logical request: each attempt waits on the limiter, is timed and counted.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	return withRetry(ctx, c.retry, c.network, method, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		RPCMethodInc(c.network, method)
		start := time.Now()
		err := fn()
		RPCMethodDuration(c.network, method, time.Since(start))

		if err != nil {
			RPCMethodError(c.network, method, ClassifyError(err))
		}

		return err
	})
}
