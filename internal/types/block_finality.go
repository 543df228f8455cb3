package types

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/ChainHound/internal/common"
)

// BlockFinality selects which chain head a network is paced against.
type BlockFinality string

const (
	// FinalityFinalized follows the finalized block tag
	FinalityFinalized BlockFinality = "finalized"

	// FinalitySafe follows the safe block tag
	FinalitySafe BlockFinality = "safe"

	// FinalityLatest follows the latest block, no finality guarantees
	FinalityLatest BlockFinality = "latest"
)

// HeaderReader is the part of an RPC client able to return the head for every finality.
type HeaderReader interface {
	GetLatestBlockHeader(ctx context.Context) (*types.Header, error)
	GetSafeBlockHeader(ctx context.Context) (*types.Header, error)
	GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error)
}

// String returns the string representation of BlockFinality.
func (f BlockFinality) String() string {
	return string(f)
}

// IsValid checks if the BlockFinality value is valid.
func (f BlockFinality) IsValid() bool {
	switch f {
	case FinalityFinalized, FinalitySafe, FinalityLatest:
		return true
	default:
		return false
	}
}

// Head returns the number of the head block matching this finality.
func (f BlockFinality) Head(ctx context.Context, reader HeaderReader) (uint64, error) {
	var (
		header *types.Header
		err    error
	)

	switch f {
	case FinalityLatest:
		header, err = reader.GetLatestBlockHeader(ctx)
	case FinalitySafe:
		header, err = reader.GetSafeBlockHeader(ctx)
	case FinalityFinalized:
		header, err = reader.GetFinalizedBlockHeader(ctx)
	default:
		return 0, fmt.Errorf("invalid block finality: %s", f)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to get %s block header: %w", f, err)
	}
	if header == nil || header.Number == nil {
		return 0, fmt.Errorf("empty %s block header", f)
	}

	return header.Number.Uint64(), nil
}

// ParseBlockFinality parses a string into a BlockFinality type.
// An empty string selects FinalityLatest.
func ParseBlockFinality(s string) (BlockFinality, error) {
	s = common.ToLowerWithTrim(s)
	if s == "" {
		return FinalityLatest, nil
	}

	f := BlockFinality(s)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid block finality: %s (must be one of: finalized, safe, latest)", s)
	}
	return f, nil
}
