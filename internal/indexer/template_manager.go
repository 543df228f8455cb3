package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goran-ethernal/ChainHound/internal/metrics"
	"github.com/goran-ethernal/ChainHound/internal/processor"
	"github.com/goran-ethernal/ChainHound/pkg/config"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
)

// ErrTemplateManagerClosed is returned by Register once the manager no longer accepts registrations.
var ErrTemplateManagerClosed = errors.New("template manager is closed")

// Registration is a template source waiting to be spawned by the Indexer.
type Registration struct {
	Source  processor.Source
	Handler handler.EventHandler
}

// TemplateManager carries runtime registrations from handlers to the Indexer.
// Any number of goroutines may register; the Indexer is the only receiver.
type TemplateManager struct {
	registrations chan Registration
	done          chan struct{}
	closeOnce     sync.Once
	step          uint64
}

var _ handler.TemplateRegistrar = (*TemplateManager)(nil)

// NewTemplateManager creates a manager whose queue holds capacity registrations.
// Template sources scan step blocks per query.
func NewTemplateManager(capacity int, step uint64) *TemplateManager {
	if capacity < 0 {
		capacity = config.DefaultTemplateBuffer
	}
	if step == 0 {
		step = config.DefaultStep
	}

	return &TemplateManager{
		registrations: make(chan Registration, capacity),
		done:          make(chan struct{}),
		step:          step,
	}
}

// Register queues a source for the contract described by tmpl.
// The source takes its name, network and execution mode from the template handler and is
// identified by that name and tmpl.Address.
// It blocks while the queue is full.
func (tm *TemplateManager) Register(ctx context.Context, tmpl handler.Template) error {
	if tmpl.Handler == nil {
		return fmt.Errorf("template for %s has no handler", tmpl.Address.Hex())
	}

	source := processor.Source{
		Name:       tmpl.Handler.Source(),
		Kind:       processor.KindEvent,
		Address:    tmpl.Address,
		StartBlock: tmpl.StartBlock,
		Step:       tm.step,
		Network:    tmpl.Handler.Network(),
		Mode:       tmpl.Handler.ExecutionMode(),
		Template:   true,
	}

	return tm.RegisterSource(ctx, source, tmpl.Handler)
}

// RegisterSource queues an explicitly described source.
func (tm *TemplateManager) RegisterSource(ctx context.Context, source processor.Source, h handler.EventHandler) error {
	if err := source.Validate(); err != nil {
		return err
	}

	select {
	case <-tm.done:
		return ErrTemplateManagerClosed
	default:
	}

	select {
	case <-tm.done:
		return ErrTemplateManagerClosed
	case <-ctx.Done():
		return ctx.Err()
	case tm.registrations <- Registration{Source: source, Handler: h}:
		metrics.TemplateRegistrationInc(source.Name, source.Network)
		return nil
	}
}

// Close stops accepting registrations. Registrations already queued are still delivered.
func (tm *TemplateManager) Close() {
	tm.closeOnce.Do(func() {
		close(tm.done)
	})
}

// Registrations returns the queue the Indexer consumes.
func (tm *TemplateManager) Registrations() <-chan Registration {
	return tm.registrations
}

// Done is closed once Close has been called.
func (tm *TemplateManager) Done() <-chan struct{} {
	return tm.done
}
