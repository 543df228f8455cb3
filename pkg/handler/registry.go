package handler

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/samber/lo"
)

// Factory creates a handler from its settings.
// It returns an EventHandler or a BlockHandler.
type Factory func(settings Settings, log *logger.Logger) (Handler, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register registers a handler factory with the given type name.
// This is typically called in init() functions of handler packages.
// The type name is case-insensitive and will be stored in lowercase.
func Register(handlerType string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	name := strings.ToLower(handlerType)
	if _, exists := registry[name]; exists {
		logger.GetDefaultLogger().Infof("handler with name %s already in handler registry. "+
			"It will be overwritten.", name)
	}

	registry[name] = factory
}

// GetFactory returns the factory for the given handler type.
// Returns nil if the type is not registered.
// The lookup is case-insensitive.
func GetFactory(handlerType string) Factory {
	mu.RLock()
	defer mu.RUnlock()
	return registry[strings.ToLower(handlerType)]
}

// ListRegistered returns all registered handler types in lexical order.
func ListRegistered() []string {
	mu.RLock()
	defer mu.RUnlock()

	types := lo.Keys(registry)
	slices.Sort(types)
	return types
}

// Create creates a handler using the factory registered for settings.Type.
// Returns an error if the type is not registered or if creation fails.
func Create(settings Settings, log *logger.Logger) (Handler, error) {
	factory := GetFactory(settings.Type)
	if factory == nil {
		return nil, fmt.Errorf("unknown handler type: %s (registered types: %v)", settings.Type, ListRegistered())
	}

	h, err := factory(settings, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create handler %s (%s): %w", settings.Name, settings.Type, err)
	}

	return h, nil
}

// CreateEventHandler creates a handler and checks it handles events.
func CreateEventHandler(settings Settings, log *logger.Logger) (EventHandler, error) {
	h, err := Create(settings, log)
	if err != nil {
		return nil, err
	}

	eh, ok := h.(EventHandler)
	if !ok {
		return nil, fmt.Errorf("handler type %s does not handle events", settings.Type)
	}

	return eh, nil
}

// CreateBlockHandler creates a handler and checks it handles blocks.
func CreateBlockHandler(settings Settings, log *logger.Logger) (BlockHandler, error) {
	h, err := Create(settings, log)
	if err != nil {
		return nil, err
	}

	bh, ok := h.(BlockHandler)
	if !ok {
		return nil, fmt.Errorf("handler type %s does not handle blocks", settings.Type)
	}

	return bh, nil
}
