package rpc

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

// ethService serves the subset of the eth namespace used by Client.
type ethService struct {
	head     uint64
	requests atomic.Int64
	logs     []types.Log

	// failHeads is the number of header requests answered with a server error.
	failHeads atomic.Int64
}

func (s *ethService) GetBlockByNumber(_ context.Context, number rpc.BlockNumber, _ bool) (*types.Header, error) {
	s.requests.Add(1)

	if s.failHeads.Add(-1) >= 0 {
		return nil, errors.New("503 service unavailable")
	}

	n := s.head
	switch number {
	case rpc.SafeBlockNumber:
		n = s.head - 10
	case rpc.FinalizedBlockNumber:
		n = s.head - 20
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber:
	default:
		n = uint64(number.Int64())
	}

	return &types.Header{Number: new(big.Int).SetUint64(n), Difficulty: big.NewInt(0)}, nil
}

func (s *ethService) GetLogs(_ context.Context, _ map[string]any) ([]types.Log, error) {
	s.requests.Add(1)

	if s.logs == nil {
		return []types.Log{}, nil
	}

	return s.logs, nil
}

// newTestEndpoint starts a JSON-RPC endpoint over HTTP and returns its URL.
func newTestEndpoint(t *testing.T, svc *ethService) string {
	t.Helper()

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", svc))

	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		httpServer.Close()
		server.Stop()
	})

	return httpServer.URL
}

func testLog(address common.Address, block uint64) types.Log {
	return types.Log{
		Address:     address,
		Topics:      []common.Hash{common.HexToHash("0x01")},
		Data:        []byte{},
		BlockNumber: block,
		TxHash:      common.HexToHash("0x02"),
		BlockHash:   common.HexToHash("0x03"),
	}
}
