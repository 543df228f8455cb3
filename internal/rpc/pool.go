package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/goran-ethernal/ChainHound/pkg/config"
	pkgrpc "github.com/goran-ethernal/ChainHound/pkg/rpc"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownNetwork is returned when a network is not present in the configuration.
var ErrUnknownNetwork = errors.New("unknown network")

// dialFunc opens a client for a configured network.
type dialFunc func(ctx context.Context, network string, cfg config.NetworkConfig) (*Client, error)

// Pool hands out one rate limited client per network.
// The first request for a network dials it; later requests share the same client and limiter.
// Pool is safe for concurrent use.
type Pool struct {
	mu       sync.Mutex
	networks map[string]config.NetworkConfig
	clients  map[string]*Client
	dial     dialFunc
	log      *logger.Logger
}

// NewPool creates a pool over the configured networks. No connection is opened until requested.
func NewPool(networks map[string]config.NetworkConfig, log *logger.Logger) *Pool {
	return &Pool{
		networks: networks,
		clients:  make(map[string]*Client, len(networks)),
		dial:     NewClient,
		log:      log,
	}
}

// Get returns the client of the given network, dialing it on first use.
// Dialing happens outside the lock; when two callers race, the first stored client wins
// and the other connection is closed.
func (p *Pool) Get(ctx context.Context, network string) (*Client, error) {
	p.mu.Lock()
	client, ok := p.clients[network]
	cfg, known := p.networks[network]
	p.mu.Unlock()

	if ok {
		return client, nil
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}

	dialed, err := p.dial(ctx, network, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network %s: %w", network, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.clients[network]; ok {
		dialed.Close()
		return existing, nil
	}

	p.clients[network] = dialed
	ProvidersOpen.Inc()

	p.log.Infow("connected to network",
		"network", network,
		"requests_per_second", cfg.RequestsPerSecond,
		"burst", dialed.Limiter().Burst(),
	)

	return dialed, nil
}

// Warm dials every listed network concurrently and fails on the first error.
func (p *Pool) Warm(ctx context.Context, networks ...string) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, network := range networks {
		g.Go(func() error {
			_, err := p.Get(gctx, network)
			return err
		})
	}

	return g.Wait()
}

// Close closes every open client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for network, client := range p.clients {
		client.Close()
		delete(p.clients, network)
		ProvidersOpen.Dec()
	}
}

// Provider returns the client of the given network behind the EthClient interface.
func (p *Pool) Provider(ctx context.Context, network string) (pkgrpc.EthClient, error) {
	client, err := p.Get(ctx, network)
	if err != nil {
		return nil, err
	}

	return client, nil
}
