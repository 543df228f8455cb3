// Package indexer owns the sources of a run: it loads handlers, spawns one processing loop per
// source and spawns template sources registered by handlers while running.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainHound/internal/abi"
	"github.com/goran-ethernal/ChainHound/internal/common"
	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/goran-ethernal/ChainHound/internal/metrics"
	"github.com/goran-ethernal/ChainHound/internal/processor"
	"github.com/goran-ethernal/ChainHound/internal/rpc"
	"github.com/goran-ethernal/ChainHound/pkg/config"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
	pkgrpc "github.com/goran-ethernal/ChainHound/pkg/rpc"
)

var (
	// ErrAlreadyRunning is returned when handlers are loaded, or Run is called, after Run started.
	ErrAlreadyRunning = errors.New("indexer is already running")

	// ErrUnknownSource is returned when a handler names a source missing from the configuration.
	ErrUnknownSource = errors.New("unknown source")
)

// Providers hands out one shared client per network.
type Providers interface {
	Provider(ctx context.Context, network string) (pkgrpc.EthClient, error)
	Warm(ctx context.Context, networks ...string) error
}

var _ Providers = (*rpc.Pool)(nil)

// runner is a processing loop of one source.
type runner interface {
	Run(ctx context.Context) error
	Cursor() uint64
}

// task is a loaded source with the handler that serves it.
type task struct {
	source       processor.Source
	eventHandler handler.EventHandler
	blockHandler handler.BlockHandler
}

// Indexer runs every loaded source until its context is cancelled.
type Indexer struct {
	cfg       *config.Config
	providers Providers
	templates *TemplateManager
	log       *logger.Logger
	procLog   *logger.Logger

	mu      sync.Mutex
	running bool
	tasks   []task
	wg      sync.WaitGroup
}

// New creates an Indexer over a validated configuration.
func New(cfg *config.Config, providers Providers, log *logger.Logger) *Indexer {
	procLog := log.WithComponent(common.ComponentProcessor)
	if cfg.Logging != nil {
		procLog = logger.NewComponentLoggerFromConfig(common.ComponentProcessor, cfg.Logging)
	}

	return &Indexer{
		cfg:       cfg,
		providers: providers,
		templates: NewTemplateManager(cfg.Indexer.TemplateBuffer, cfg.Indexer.Step),
		log:       log,
		procLog:   procLog,
	}
}

// Templates returns the registrar handed to handlers.
func (i *Indexer) Templates() *TemplateManager {
	return i.templates
}

// LoadEventHandler adds the static source served by h.
// Template handlers are skipped; they only run for contracts registered at runtime.
func (i *Indexer) LoadEventHandler(h handler.EventHandler) error {
	if h.IsTemplate() {
		i.log.Debugw("skipping template handler", "source", h.Source())
		return nil
	}

	ds, ok := i.cfg.DataSources[h.Source()]
	if !ok {
		return fmt.Errorf("%w: %s is not a configured data source", ErrUnknownSource, h.Source())
	}

	if _, err := abi.Topic(h.EventSignature()); err != nil {
		return fmt.Errorf("source %s: invalid event signature: %w", h.Source(), err)
	}

	source := processor.Source{
		Name:       h.Source(),
		Kind:       processor.KindEvent,
		Address:    ethcommon.HexToAddress(ds.Address),
		StartBlock: ds.StartBlock,
		Step:       stepOr(ds.Step, i.cfg.Indexer.Step),
		Network:    networkOr(h.Network(), ds.Network),
		Mode:       h.ExecutionMode(),
	}

	return i.load(task{source: source, eventHandler: h})
}

// LoadBlockHandler adds the per-block source served by h.
func (i *Indexer) LoadBlockHandler(h handler.BlockHandler) error {
	bh, ok := i.cfg.BlockHandlers[h.Source()]
	if !ok {
		return fmt.Errorf("%w: %s is not a configured block handler", ErrUnknownSource, h.Source())
	}

	source := processor.Source{
		Name:       h.Source(),
		Kind:       processor.KindBlock,
		StartBlock: bh.StartBlock,
		Step:       stepOr(bh.Step, i.cfg.Indexer.Step),
		Network:    networkOr(h.Network(), bh.Network),
		Mode:       h.ExecutionMode(),
	}

	return i.load(task{source: source, blockHandler: h})
}

func (i *Indexer) load(t task) error {
	if err := t.source.Validate(); err != nil {
		return err
	}
	if _, ok := i.cfg.Networks[t.source.Network]; !ok {
		return fmt.Errorf("source %s: %w: %s", t.source.Name, rpc.ErrUnknownNetwork, t.source.Network)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running {
		return ErrAlreadyRunning
	}

	for _, loaded := range i.tasks {
		if loaded.source.Name == t.source.Name {
			return fmt.Errorf("source %s is already loaded", t.source.Name)
		}
	}

	i.tasks = append(i.tasks, t)

	i.log.Infow("loaded source",
		"source", t.source.Name,
		"kind", t.source.Kind.String(),
		"network", t.source.Network,
		"start_block", t.source.StartBlock,
		"mode", t.source.Mode,
	)

	return nil
}

// Sources returns the loaded static sources.
func (i *Indexer) Sources() []processor.Source {
	i.mu.Lock()
	defer i.mu.Unlock()

	sources := make([]processor.Source, 0, len(i.tasks))
	for _, t := range i.tasks {
		sources = append(sources, t.source)
	}

	return sources
}

// Run connects to every network in use, spawns the loaded sources and then spawns template
// sources as they are registered. It returns once ctx is cancelled and every loop has drained,
// or once the template manager is closed and every loop has ended.
func (i *Indexer) Run(ctx context.Context) error {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return ErrAlreadyRunning
	}
	i.running = true
	tasks := slices.Clone(i.tasks)
	i.mu.Unlock()

	networks := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if !slices.Contains(networks, t.source.Network) {
			networks = append(networks, t.source.Network)
		}
	}

	if err := i.providers.Warm(ctx, networks...); err != nil {
		i.templates.Close()
		return fmt.Errorf("failed to connect to providers: %w", err)
	}

	i.log.Infow("starting indexer", "sources", len(tasks), "networks", networks)

	for _, t := range tasks {
		i.spawn(ctx, t)
	}

	for {
		select {
		case <-ctx.Done():
			i.templates.Close()
			i.wg.Wait()
			i.log.Info("indexer stopped")
			return nil

		case reg := <-i.templates.Registrations():
			i.spawnTemplate(ctx, reg)

		case <-i.templates.Done():
			i.drainRegistrations(ctx)
			i.wg.Wait()
			i.log.Info("template manager closed and all sources ended")
			return nil
		}
	}
}

func (i *Indexer) drainRegistrations(ctx context.Context) {
	for {
		select {
		case reg := <-i.templates.Registrations():
			i.spawnTemplate(ctx, reg)
		default:
			return
		}
	}
}

func (i *Indexer) spawnTemplate(ctx context.Context, reg Registration) {
	if _, ok := i.cfg.Networks[reg.Source.Network]; !ok {
		i.log.Errorw("skipping template registration for unknown network", reg.Source.LogFields()...)
		return
	}

	i.log.Infow("spawning template source", append(reg.Source.LogFields(), "start_block", reg.Source.StartBlock)...)

	i.spawn(ctx, task{source: reg.Source, eventHandler: reg.Handler})
}

// spawn runs t in its own goroutine. A failing source is logged and counted; it never
// affects other sources.
func (i *Indexer) spawn(ctx context.Context, t task) {
	kind := t.source.Kind.String()

	i.wg.Add(1)
	metrics.ActiveSourcesInc(kind)

	go func() {
		defer i.wg.Done()
		defer metrics.ActiveSourcesDec(kind)

		r, err := i.newRunner(ctx, t)
		if err != nil {
			i.fail(t.source, 0, err)
			return
		}

		err = r.Run(ctx)
		if err == nil || (errors.Is(err, context.Canceled) && ctx.Err() != nil) {
			i.log.Infow("source stopped", append(t.source.LogFields(), "block", r.Cursor())...)
			return
		}

		i.fail(t.source, r.Cursor(), err)
	}()
}

func (i *Indexer) fail(source processor.Source, cursor uint64, err error) {
	metrics.SourceFailureInc(source.ID(), source.Network)

	i.log.Errorw("source failed", failureFields(source, cursor, err)...)
}

// failureFields describes a failed source. The block range is reported only when the
// processor says which range it stopped in; otherwise the cursor is.
func failureFields(source processor.Source, cursor uint64, err error) []any {
	fields := source.LogFields()

	var rangeErr *processor.RangeError
	if errors.As(err, &rangeErr) {
		fields = append(fields, "from_block", rangeErr.From, "to_block", rangeErr.End-1)
	} else {
		fields = append(fields, "block", cursor)
	}

	return append(fields, "error", err)
}

func (i *Indexer) newRunner(ctx context.Context, t task) (runner, error) {
	cfg, err := processor.ConfigFrom(i.cfg.Indexer, i.cfg.Networks[t.source.Network])
	if err != nil {
		return nil, err
	}

	client, err := i.providers.Provider(ctx, t.source.Network)
	if err != nil {
		return nil, err
	}

	if t.source.Kind == processor.KindBlock {
		return processor.NewBlockProcessor(t.source, t.blockHandler, client, i.templates, cfg, i.procLog), nil
	}

	return processor.NewLogProcessor(t.source, t.eventHandler, client, i.templates, cfg, i.procLog), nil
}

// Close closes every loaded handler that holds resources. It must not be called while Run is active.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var errs []error
	for _, t := range i.tasks {
		var h any = t.eventHandler
		if t.blockHandler != nil {
			h = t.blockHandler
		}

		if closer, ok := h.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("source %s: %w", t.source.Name, err))
			}
		}
	}

	return errors.Join(errs...)
}

func stepOr(step, def uint64) uint64 {
	if step == 0 {
		return def
	}
	return step
}

func networkOr(network, def string) string {
	if network == "" {
		return def
	}
	return network
}
