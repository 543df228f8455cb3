package processor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/ChainHound/internal/abi"
	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/goran-ethernal/ChainHound/internal/metrics"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
	pkgrpc "github.com/goran-ethernal/ChainHound/pkg/rpc"
)

// LogProcessor scans the logs of one contract event and hands them to an EventHandler.
type LogProcessor struct {
	source     Source
	handler    handler.EventHandler
	client     pkgrpc.EthClient
	templates  handler.TemplateRegistrar
	scanner    *scanner
	dispatcher *dispatcher
	log        *logger.Logger
}

// NewLogProcessor creates the event loop of source.
func NewLogProcessor(
	source Source,
	h handler.EventHandler,
	client pkgrpc.EthClient,
	templates handler.TemplateRegistrar,
	cfg Config,
	log *logger.Logger,
) *LogProcessor {
	log = log.WithSource(source.ID(), source.Network, "address", source.Address.Hex())

	return &LogProcessor{
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
func (p *LogProcessor) Source() Source {
	return p.source
}

// Cursor returns the first block that has not been dispatched yet.
func (p *LogProcessor) Cursor() uint64 {
	return p.scanner.current.Load()
}

// Run scans until ctx is done or an error stops the source.
// Before returning it waits for handlers still running in parallel mode.
func (p *LogProcessor) Run(ctx context.Context) error {
	topic, err := abi.Topic(p.handler.EventSignature())
	if err != nil {
		return fmt.Errorf("source %s: invalid event signature: %w", p.source.Name, err)
	}

	defer p.dispatcher.wait()

	p.log.Infow("starting event source",
		"topic", topic.Hex(),
		"start_block", p.source.StartBlock,
		"step", p.source.Step,
		"mode", p.source.Mode,
	)

	for {
		from, end, err := p.scanner.nextRange(ctx)
		if err != nil {
			return err
		}

		if err := p.processRange(ctx, from, end, topic); err != nil {
			return &RangeError{From: from, End: end, Err: err}
		}

		p.scanner.advance(from, end)
	}
}

func (p *LogProcessor) processRange(ctx context.Context, from, end uint64, topic common.Hash) error {
	start := time.Now()

	logs, err := p.client.GetLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(end - 1),
		Addresses: []common.Address{p.source.Address},
		Topics:    [][]common.Hash{{topic}},
	})
	if err != nil {
		return fmt.Errorf("failed to get logs for blocks [%d, %d): %w", from, end, err)
	}

	dispatched := 0
	for _, lg := range logs {
		if !p.matches(lg, topic) {
			continue
		}

		evt := &handler.EventContext{
			Log:             lg,
			Client:          p.client,
			ContractAddress: p.source.Address,
			Templates:       p.templates,
		}

		err := p.dispatcher.submit(ctx, func(ctx context.Context) error {
			return p.handler.Handle(ctx, evt)
		}, "block", lg.BlockNumber, "tx_hash", lg.TxHash.Hex(), "log_index", lg.Index)
		if err != nil {
			return fmt.Errorf("handler failed for log at block %d: %w", lg.BlockNumber, err)
		}

		dispatched++
	}

	metrics.LogsDispatchedInc(p.source.ID(), p.source.Network, dispatched)
	metrics.RangeProcessingTimeLog(p.source.ID(), time.Since(start))

	p.log.Debugw("processed block range",
		"from_block", from,
		"to_block", end-1,
		"logs", dispatched,
	)

	return nil
}

// matches guards against providers that ignore part of the filter.
func (p *LogProcessor) matches(lg types.Log, topic common.Hash) bool {
	return !lg.Removed &&
		lg.Address == p.source.Address &&
		len(lg.Topics) > 0 &&
		lg.Topics[0] == topic
}
