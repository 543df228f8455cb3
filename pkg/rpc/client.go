// Package rpc declares the provider handle processors and handlers use to read a chain.
package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogReader queries contract logs.
type LogReader interface {
	GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

// HeaderReader returns block headers by number or by chain tag.
type HeaderReader interface {
	GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error)
	GetLatestBlockHeader(ctx context.Context) (*types.Header, error)
	GetSafeBlockHeader(ctx context.Context) (*types.Header, error)
	GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error)
}

// EthClient is the provider of one network. Every processor and handler of that network
// shares the same instance and therefore the same rate limit.
type EthClient interface {
	LogReader
	HeaderReader

	// Network returns the name of the network the client is bound to.
	Network() string

	// Close releases the underlying connection.
	Close()
}
