package abi

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrUnknownEvent is returned when a log's first topic matches no known event.
var ErrUnknownEvent = errors.New("unknown event")

// LoadABI reads a contract ABI JSON file.
func LoadABI(path string) (*gethabi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read abi %s: %w", path, err)
	}

	parsed, err := gethabi.JSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse abi %s: %w", path, err)
	}

	return &parsed, nil
}

// Decoder decodes logs of a known set of events, keyed by their first topic.
type Decoder struct {
	events map[common.Hash]gethabi.Event
}

// NewDecoder creates a decoder for the given events.
func NewDecoder(events ...gethabi.Event) *Decoder {
	d := &Decoder{events: make(map[common.Hash]gethabi.Event, len(events))}
	for _, ev := range events {
		d.events[ev.ID] = ev
	}

	return d
}

// NewDecoderFromABI creates a decoder for every non anonymous event of a contract ABI.
func NewDecoderFromABI(contract *gethabi.ABI) *Decoder {
	events := make([]gethabi.Event, 0, len(contract.Events))
	for _, ev := range contract.Events {
		if !ev.Anonymous {
			events = append(events, ev)
		}
	}

	return NewDecoder(events...)
}

// NewDecoderFromSignature creates a decoder for a single event signature.
func NewDecoderFromSignature(sig string) (*Decoder, error) {
	parsed, err := ParseEventSignature(sig)
	if err != nil {
		return nil, err
	}

	ev, err := parsed.ABIEvent()
	if err != nil {
		return nil, err
	}

	return NewDecoder(ev), nil
}

// Event returns the event a log was emitted for.
func (d *Decoder) Event(log types.Log) (gethabi.Event, error) {
	if len(log.Topics) == 0 {
		return gethabi.Event{}, fmt.Errorf("%w: log has no topics", ErrUnknownEvent)
	}

	ev, ok := d.events[log.Topics[0]]
	if !ok {
		return gethabi.Event{}, fmt.Errorf("%w: topic %s", ErrUnknownEvent, log.Topics[0].Hex())
	}

	return ev, nil
}

// Decode fills out, a pointer to a struct whose fields are the camel cased argument names.
func (d *Decoder) Decode(log types.Log, out any) error {
	ev, err := d.Event(log)
	if err != nil {
		return err
	}

	indexed, nonIndexed := splitIndexed(ev.Inputs)
	if len(log.Topics)-1 != len(indexed) {
		return fmt.Errorf("%s: expected %d indexed topics, got %d", ev.Name, len(indexed), len(log.Topics)-1)
	}

	if len(nonIndexed) > 0 {
		values, err := ev.Inputs.Unpack(log.Data)
		if err != nil {
			return fmt.Errorf("unpack %s data: %w", ev.Name, err)
		}
		if err := ev.Inputs.Copy(out, values); err != nil {
			return fmt.Errorf("copy %s data: %w", ev.Name, err)
		}
	}

	if err := gethabi.ParseTopics(out, indexed, log.Topics[1:]); err != nil {
		return fmt.Errorf("parse %s topics: %w", ev.Name, err)
	}

	return nil
}

// DecodeMap returns the event name and its arguments keyed by name.
func (d *Decoder) DecodeMap(log types.Log) (string, map[string]any, error) {
	ev, err := d.Event(log)
	if err != nil {
		return "", nil, err
	}

	indexed, nonIndexed := splitIndexed(ev.Inputs)
	if len(log.Topics)-1 != len(indexed) {
		return "", nil, fmt.Errorf("%s: expected %d indexed topics, got %d", ev.Name, len(indexed), len(log.Topics)-1)
	}

	args := make(map[string]any, len(ev.Inputs))

	if err := gethabi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
		return "", nil, fmt.Errorf("parse %s topics: %w", ev.Name, err)
	}
	if err := nonIndexed.UnpackIntoMap(args, log.Data); err != nil {
		return "", nil, fmt.Errorf("unpack %s data: %w", ev.Name, err)
	}

	return ev.Name, args, nil
}

func splitIndexed(args gethabi.Arguments) (indexed gethabi.Arguments, nonIndexed gethabi.Arguments) {
	for _, a := range args {
		if a.Indexed {
			indexed = append(indexed, a)
		} else {
			nonIndexed = append(nonIndexed, a)
		}
	}
	return indexed, nonIndexed
}
