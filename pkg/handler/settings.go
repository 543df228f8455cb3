package handler

import (
	"github.com/goran-ethernal/ChainHound/pkg/config"
)

// Settings is what a Factory knows about the handler it builds.
type Settings struct {
	// Name is the data source, template or block handler name
	Name string

	// Type is the registered handler type
	Type string

	Network       string
	ExecutionMode ExecutionMode

	// ABI is the optional ABI file path
	ABI string

	// Event overrides the handler's default event signature when set
	Event string

	// Template is true when the handler serves runtime discovered contracts
	Template bool

	// Database is the optional handler storage configuration
	Database *config.DatabaseConfig

	// Templates holds the settings of every configured template, keyed by name,
	// so that factory handlers can build the handlers they register.
	Templates map[string]Settings
}

// EventOr returns the configured event signature, or def when none is configured.
func (s Settings) EventOr(def string) string {
	if s.Event != "" {
		return s.Event
	}
	return def
}

// Base implements Handler from Settings. Handlers embed it.
type Base struct {
	Settings Settings
}

// NewBase creates a Base for the given settings.
func NewBase(settings Settings) Base {
	return Base{Settings: settings}
}

func (b Base) Source() string {
	return b.Settings.Name
}

func (b Base) Network() string {
	return b.Settings.Network
}

func (b Base) ExecutionMode() ExecutionMode {
	if b.Settings.ExecutionMode == "" {
		return ModeParallel
	}
	return b.Settings.ExecutionMode
}

// IsTemplate reports whether the settings describe a template.
func (b Base) IsTemplate() bool {
	return b.Settings.Template
}
