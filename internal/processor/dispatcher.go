package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/goran-ethernal/ChainHound/internal/metrics"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
)

// unit is one handler invocation: a single log or a single block.
type unit func(ctx context.Context) error

// dispatcher runs units according to the execution mode of a source.
type dispatcher struct {
	source string
	mode   handler.ExecutionMode
	log    *logger.Logger
	wg     sync.WaitGroup
}

func newDispatcher(source string, mode handler.ExecutionMode, log *logger.Logger) *dispatcher {
	return &dispatcher{source: source, mode: mode, log: log}
}

// submit runs u. In parallel mode it returns immediately and failures are only logged.
// In serial mode it waits for u and returns its error.
func (d *dispatcher) submit(ctx context.Context, u unit, fields ...any) error {
	if d.mode == handler.ModeSerial {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := d.invoke(ctx, u); err != nil {
			d.log.Errorw("handler failed, stopping source", append(fields, "error", err)...)
			return err
		}

		return nil
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		if err := d.invoke(ctx, u); err != nil {
			d.log.Errorw("handler failed", append(fields, "error", err)...)
		}
	}()

	return nil
}

// wait blocks until every parallel unit has returned.
func (d *dispatcher) wait() {
	d.wg.Wait()
}

func (d *dispatcher) invoke(ctx context.Context, u unit) (err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}

		metrics.HandlerDurationLog(d.source, time.Since(start))
		if err != nil {
			metrics.HandlerErrorInc(d.source, d.mode.String())
		}
	}()

	return u(ctx)
}
