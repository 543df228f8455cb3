// Package handler defines the contract between the indexing engine and user code.
package handler

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/ChainHound/pkg/rpc"
)

// ExecutionMode controls how the units of one scanned range are dispatched.
type ExecutionMode string

const (
	// ModeParallel runs every log or block in its own goroutine without waiting.
	ModeParallel ExecutionMode = "parallel"

	// ModeSerial runs units one after another; an error stops the source.
	ModeSerial ExecutionMode = "serial"
)

func (m ExecutionMode) String() string {
	return string(m)
}

// Handler is the capability shared by every handler.
type Handler interface {
	// Source is the data source, template or block handler name in the configuration.
	Source() string

	// Network is the network the handler's source runs on.
	Network() string

	// ExecutionMode tells how units of a scanned range are dispatched.
	ExecutionMode() ExecutionMode
}

// EventHandler receives decoded-ready logs of one event of one contract.
type EventHandler interface {
	Handler

	// IsTemplate reports whether the handler serves runtime discovered contracts.
	// Template handlers are never loaded as static sources.
	IsTemplate() bool

	// EventSignature is the event the handler subscribes to,
	// e.g. "Transfer(address indexed from, address indexed to, uint256 value)".
	EventSignature() string

	Handle(ctx context.Context, evt *EventContext) error
}

// BlockHandler is invoked once per block.
type BlockHandler interface {
	Handler

	Handle(ctx context.Context, blk *BlockContext) error
}

// Template describes a contract discovered at runtime.
type Template struct {
	StartBlock uint64
	Address    ethcommon.Address
	Handler    EventHandler
}

// TemplateRegistrar starts indexing runtime discovered contracts.
type TemplateRegistrar interface {
	// Register blocks until the registration is accepted, ctx is done, or the registrar closes.
	Register(ctx context.Context, tmpl Template) error
}

// EventContext is handed to an EventHandler for every matching log.
type EventContext struct {
	Log             types.Log
	Client          rpc.EthClient
	ContractAddress ethcommon.Address
	Templates       TemplateRegistrar
}

// BlockContext is handed to a BlockHandler for every block.
type BlockContext struct {
	BlockNumber uint64
	Client      rpc.EthClient
	Templates   TemplateRegistrar
}
