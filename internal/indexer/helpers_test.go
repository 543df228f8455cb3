package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainHound/internal/abi"
	"github.com/goran-ethernal/ChainHound/internal/common"
	"github.com/goran-ethernal/ChainHound/internal/testutil"
	"github.com/goran-ethernal/ChainHound/pkg/config"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
	pkgrpc "github.com/goran-ethernal/ChainHound/pkg/rpc"
)

const (
	pairCreatedSig = "PairCreated(address indexed token0, address indexed token1, address pair, uint256)"
	swapSig        = "Swap(address indexed sender, uint256 amount0In, uint256 amount1In, uint256 amount0Out, uint256 amount1Out, address indexed to)" //nolint:lll
	transferSig    = "Transfer(address indexed from, address indexed to, uint256 value)"
)

var (
	factoryAddress = ethcommon.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	tokenAddress   = ethcommon.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	pairAddress    = ethcommon.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")

	pairCreatedTopic = mustTopic(pairCreatedSig)
	swapTopic        = mustTopic(swapSig)
	transferTopic    = mustTopic(transferSig)
)

func mustTopic(sig string) ethcommon.Hash {
	topic, err := abi.Topic(sig)
	if err != nil {
		panic(err)
	}
	return topic
}

// testConfig returns a validated configuration with one fast polling network.
func testConfig() *config.Config {
	return &config.Config{
		Indexer: config.IndexerConfig{
			Step:           10,
			PollInterval:   common.NewDuration(5 * time.Millisecond),
			HeadTTL:        common.NewDuration(time.Millisecond),
			TemplateBuffer: 1,
		},
		Networks: map[string]config.NetworkConfig{
			"mainnet": {RPCURL: "http://localhost:8545", RequestsPerSecond: 100, Burst: 1, Finality: "latest"},
		},
		DataSources: map[string]config.DataSourceConfig{
			"usdc": {
				Handler:       "transfers",
				Address:       tokenAddress.Hex(),
				StartBlock:    0,
				Network:       "mainnet",
				ExecutionMode: config.ModeSerial,
			},
		},
		Templates:     map[string]config.TemplateConfig{},
		BlockHandlers: map[string]config.BlockHandlerConfig{},
	}
}

// fakeProviders serves one FakeChain per network.
type fakeProviders struct {
	mu      sync.Mutex
	chains  map[string]*testutil.FakeChain
	warmErr error
	warmed  []string
}

func newFakeProviders(chains map[string]*testutil.FakeChain) *fakeProviders {
	return &fakeProviders{chains: chains}
}

func (p *fakeProviders) Provider(_ context.Context, network string) (pkgrpc.EthClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	chain, ok := p.chains[network]
	if !ok {
		return nil, fmt.Errorf("no chain for network %s", network)
	}
	return chain, nil
}

func (p *fakeProviders) Warm(_ context.Context, networks ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.warmed = append(p.warmed, networks...)
	return p.warmErr
}

func (p *fakeProviders) warmedNetworks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.warmed...)
}

// eventHandler records every log it handles; fn runs first when set.
type eventHandler struct {
	handler.Base
	signature string
	fn        func(ctx context.Context, evt *handler.EventContext) error

	mu   sync.Mutex
	seen []ethcommon.Address
}

func newEventHandler(settings handler.Settings, signature string) *eventHandler {
	return &eventHandler{Base: handler.NewBase(settings), signature: signature}
}

func (h *eventHandler) EventSignature() string { return h.signature }

func (h *eventHandler) Handle(ctx context.Context, evt *handler.EventContext) error {
	if h.fn != nil {
		if err := h.fn(ctx, evt); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, evt.ContractAddress)

	return nil
}

func (h *eventHandler) handled() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

// blockHandler counts the blocks it handles.
type blockHandler struct {
	handler.Base

	mu     sync.Mutex
	blocks []uint64
}

func (h *blockHandler) Handle(_ context.Context, blk *handler.BlockContext) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocks = append(h.blocks, blk.BlockNumber)
	return nil
}

func (h *blockHandler) handled() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.blocks)
}

func runAsync(ctx context.Context, run func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- run(ctx)
	}()
	return done
}
