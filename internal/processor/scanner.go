package processor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goran-ethernal/ChainHound/internal/chainhead"
	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/goran-ethernal/ChainHound/internal/metrics"
	"github.com/goran-ethernal/ChainHound/internal/types"
)

// headSource returns the block number the cursor is clamped to.
type headSource interface {
	Get(ctx context.Context) (uint64, error)
}

// scanner owns the cursor of a source. It hands out half-open ranges [current, end)
// that never reach past the chain head, and waits when the source has caught up.
type scanner struct {
	source  Source
	head    headSource
	poll    time.Duration
	log     *logger.Logger
	current atomic.Uint64
}

func newScanner(source Source, reader types.HeaderReader, cfg Config, log *logger.Logger) *scanner {
	s := &scanner{
		source: source,
		head:   chainhead.New(reader, cfg.Finality, cfg.HeadTTL),
		poll:   cfg.PollInterval,
		log:    log,
	}
	s.current.Store(source.StartBlock)

	return s
}

// nextRange blocks until at least one block past the cursor is below the head.
func (s *scanner) nextRange(ctx context.Context) (uint64, uint64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		current := s.current.Load()
		end := current + s.source.Step

		head, err := s.head.Get(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to get chain head: %w", err)
		}
		metrics.ChainHeadSet(s.source.Network, head)

		end = min(end, head)
		if current < end {
			return current, end, nil
		}

		s.log.Debugw("caught up with chain head, waiting",
			"current_block", current,
			"head", head,
			"poll_interval", s.poll,
		)

		if err := sleepCtx(ctx, s.poll); err != nil {
			return 0, 0, err
		}
	}
}

// advance moves the cursor to end once [from, end) has been dispatched.
func (s *scanner) advance(from, end uint64) {
	s.current.Store(end)
	metrics.LastProcessedBlockSet(s.source.ID(), s.source.Network, end)
	metrics.BlocksScannedInc(s.source.ID(), s.source.Network, end-from)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
