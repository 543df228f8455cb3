// Package processor scans block ranges of one source and dispatches them to its handler.
package processor

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainHound/internal/types"
	"github.com/goran-ethernal/ChainHound/pkg/config"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
)

// Kind selects the loop a source runs in.
type Kind int

const (
	// KindEvent sources scan logs of one contract event.
	KindEvent Kind = iota
	// KindBlock sources invoke their handler once per block.
	KindBlock
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindBlock:
		return "block"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source is the immutable description of one indexing task.
type Source struct {
	Name       string
	Kind       Kind
	Address    common.Address
	StartBlock uint64
	Step       uint64
	Network    string
	Mode       handler.ExecutionMode
	// Template is set on sources registered at runtime. Many of them share one Name.
	Template   bool
}

// ID identifies the source in logs and metrics. Template sources are told apart by address.
func (s Source) ID() string {
	if s.Template {
		return fmt.Sprintf("%s@%s", s.Name, s.Address.Hex())
	}
	return s.Name
}

// LogFields returns the key-value pairs that tag log entries of the source.
func (s Source) LogFields() []any {
	fields := []any{"source", s.ID(), "network", s.Network}
	if s.Kind == KindEvent {
		fields = append(fields, "address", s.Address.Hex())
	}
	return fields
}

// RangeError is returned by a processor that stopped while handling the blocks [From, End).
type RangeError struct {
	From uint64
	End  uint64
	Err  error
}

func (e *RangeError) Error() string {
	return e.Err.Error()
}

func (e *RangeError) Unwrap() error {
	return e.Err
}

// Validate checks the fields every loop relies on.
func (s Source) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if s.Network == "" {
		return fmt.Errorf("source %s: network is required", s.Name)
	}
	if s.Step == 0 {
		return fmt.Errorf("source %s: step must be greater than zero", s.Name)
	}
	if s.Mode != handler.ModeParallel && s.Mode != handler.ModeSerial {
		return fmt.Errorf("source %s: invalid execution mode %q", s.Name, s.Mode)
	}

	return nil
}

// Config holds the loop settings shared by every source of a network.
type Config struct {
	PollInterval time.Duration
	HeadTTL      time.Duration
	Finality     types.BlockFinality
}

// ConfigFrom builds the loop settings from the engine and network configuration.
func ConfigFrom(indexer config.IndexerConfig, network config.NetworkConfig) (Config, error) {
	finality, err := types.ParseBlockFinality(network.Finality)
	if err != nil {
		return Config{}, err
	}

	return Config{
		PollInterval: indexer.PollInterval.Duration,
		HeadTTL:      indexer.HeadTTL.Duration,
		Finality:     finality,
	}, nil
}
