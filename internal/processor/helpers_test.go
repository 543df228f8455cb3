package processor

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainHound/internal/abi"
	"github.com/goran-ethernal/ChainHound/internal/types"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
)

const transferSig = "Transfer(address indexed from, address indexed to, uint256 value)"

var (
	tokenAddress  = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	otherAddress  = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	transferTopic = mustTopic(transferSig)
)

func mustTopic(sig string) common.Hash {
	topic, err := abi.Topic(sig)
	if err != nil {
		panic(err)
	}
	return topic
}

func testConfig() Config {
	return Config{
		PollInterval: 10 * time.Millisecond,
		HeadTTL:      0,
		Finality:     types.FinalityLatest,
	}
}

func eventSource(mode handler.ExecutionMode, start, step uint64) Source {
	return Source{
		Name:       "usdc",
		Kind:       KindEvent,
		Address:    tokenAddress,
		StartBlock: start,
		Step:       step,
		Network:    "mainnet",
		Mode:       mode,
	}
}

// recordingEventHandler records the block of every log it handles.
type recordingEventHandler struct {
	handler.Base
	signature string
	fn        func(ctx context.Context, evt *handler.EventContext) error

	mu     sync.Mutex
	blocks []uint64
}

func newRecordingEventHandler(mode handler.ExecutionMode) *recordingEventHandler {
	return &recordingEventHandler{
		Base:      handler.NewBase(handler.Settings{Name: "usdc", Network: "mainnet", ExecutionMode: mode}),
		signature: transferSig,
	}
}

func (h *recordingEventHandler) EventSignature() string { return h.signature }

func (h *recordingEventHandler) Handle(ctx context.Context, evt *handler.EventContext) error {
	if h.fn != nil {
		if err := h.fn(ctx, evt); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocks = append(h.blocks, evt.Log.BlockNumber)

	return nil
}

func (h *recordingEventHandler) handled() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]uint64(nil), h.blocks...)
}

// recordingBlockHandler records every block it handles.
type recordingBlockHandler struct {
	handler.Base
	fn func(ctx context.Context, blk *handler.BlockContext) error

	mu     sync.Mutex
	blocks []uint64
}

func newRecordingBlockHandler(mode handler.ExecutionMode) *recordingBlockHandler {
	return &recordingBlockHandler{
		Base: handler.NewBase(handler.Settings{Name: "ticks", Network: "mainnet", ExecutionMode: mode}),
	}
}

func (h *recordingBlockHandler) Handle(ctx context.Context, blk *handler.BlockContext) error {
	if h.fn != nil {
		if err := h.fn(ctx, blk); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocks = append(h.blocks, blk.BlockNumber)

	return nil
}

func (h *recordingBlockHandler) handled() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]uint64(nil), h.blocks...)
}

// runAsync starts run and returns a channel receiving its result.
func runAsync(ctx context.Context, run func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- run(ctx)
	}()
	return done
}
