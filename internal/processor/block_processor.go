package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/goran-ethernal/ChainHound/internal/metrics"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
	pkgrpc "github.com/goran-ethernal/ChainHound/pkg/rpc"
)

// BlockProcessor invokes a BlockHandler once per block, paced like LogProcessor.
type BlockProcessor struct {
	source     Source
	handler    handler.BlockHandler
	client     pkgrpc.EthClient
	templates  handler.TemplateRegistrar
	scanner    *scanner
	dispatcher *dispatcher
	log        *logger.Logger
}

// NewBlockProcessor creates the block loop of source.
func NewBlockProcessor(
	source Source,
	h handler.BlockHandler,
	client pkgrpc.EthClient,
	templates handler.TemplateRegistrar,
	cfg Config,
	log *logger.Logger,
) *BlockProcessor {
	log = log.WithSource(source.ID(), source.Network)

	return &BlockProcessor{
		source:     source,
		handler:    h,
		client:     client,
		templates:  templates,
		scanner:    newScanner(source, client, cfg, log),
		dispatcher: newDispatcher(source.ID(), source.Mode, log),
		log:        log,
	}
}

// Source returns the source the processor runs.
func (p *BlockProcessor) Source() Source {
	return p.source
}

// Cursor returns the first block that has not been dispatched yet.
func (p *BlockProcessor) Cursor() uint64 {
	return p.scanner.current.Load()
}

// Run handles blocks until ctx is done or an error stops the source.
// Before returning it waits for handlers still running in parallel mode.
func (p *BlockProcessor) Run(ctx context.Context) error {
	defer p.dispatcher.wait()

	p.log.Infow("starting block source",
		"start_block", p.source.StartBlock,
		"step", p.source.Step,
		"mode", p.source.Mode,
	)

	for {
		from, end, err := p.scanner.nextRange(ctx)
		if err != nil {
			return err
		}

		start := time.Now()

		for block := from; block < end; block++ {
			blk := &handler.BlockContext{
				BlockNumber: block,
				Client:      p.client,
				Templates:   p.templates,
			}

			err := p.dispatcher.submit(ctx, func(ctx context.Context) error {
				return p.handler.Handle(ctx, blk)
			}, "block", block)
			if err != nil {
				return &RangeError{From: from, End: end, Err: fmt.Errorf("handler failed for block %d: %w", block, err)}
			}
		}

		metrics.RangeProcessingTimeLog(p.source.ID(), time.Since(start))

		p.log.Debugw("processed block range",
			"from_block", from,
			"to_block", end-1,
		)

		p.scanner.advance(from, end)
	}
}
