package config

import (
	"fmt"
	"slices"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainHound/internal/common"
	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/goran-ethernal/ChainHound/internal/types"
	"github.com/samber/lo"
)

const (
	// DefaultStep is the number of blocks scanned per iteration.
	DefaultStep uint64 = 10_000

	// DefaultPollInterval is the back-off used when a source has caught up with the chain head.
	DefaultPollInterval = 5 * time.Second

	// DefaultHeadTTL is how long a fetched chain head is reused.
	DefaultHeadTTL = 10 * time.Second

	// DefaultTemplateBuffer is the capacity of the template registration channel.
	DefaultTemplateBuffer = 1

	// DefaultBurst is the token bucket burst of a network rate limiter.
	DefaultBurst = 1

	// ModeParallel and ModeSerial are the accepted execution_mode values.
	ModeParallel = "parallel"
	ModeSerial   = "serial"
)

var validExecutionModes = []string{ModeParallel, ModeSerial}

// Config represents the complete configuration for ChainHound.
type Config struct {
	// Indexer contains engine wide settings (step, polling, head cache, template buffer)
	Indexer IndexerConfig `yaml:"indexer" json:"indexer" toml:"indexer"`

	// Networks maps a network name to its RPC endpoint and rate limit
	Networks map[string]NetworkConfig `yaml:"networks" json:"networks" toml:"networks"`

	// DataSources maps a source name to a static contract to index
	DataSources map[string]DataSourceConfig `yaml:"data_sources,omitempty" json:"data_sources,omitempty" toml:"data_sources,omitempty"` //nolint:lll

	// Templates maps a template name to the network and ABI of contracts discovered at runtime
	Templates map[string]TemplateConfig `yaml:"templates,omitempty" json:"templates,omitempty" toml:"templates,omitempty"`

	// BlockHandlers maps a source name to a per-block handler
	BlockHandlers map[string]BlockHandlerConfig `yaml:"block_handlers,omitempty" json:"block_handlers,omitempty" toml:"block_handlers,omitempty"` //nolint:lll

	// Database is optional storage handed to handlers
	Database *DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty" toml:"database,omitempty"`

	// Logging contains logging configuration
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`
}

// IndexerConfig holds settings shared by every source.
type IndexerConfig struct {
	// Step is the default number of blocks scanned per iteration
	Step uint64 `yaml:"step" json:"step" toml:"step"`

	// PollInterval is how long a caught up source waits before re-checking the head
	PollInterval common.Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`

	// HeadTTL is how long a fetched chain head is reused before querying again
	HeadTTL common.Duration `yaml:"head_ttl" json:"head_ttl" toml:"head_ttl"`

	// TemplateBuffer is the capacity of the template registration channel
	TemplateBuffer int `yaml:"template_buffer" json:"template_buffer" toml:"template_buffer"`
}

// ApplyDefaults sets default values for optional indexer configuration fields.
func (i *IndexerConfig) ApplyDefaults() {
	if i.Step == 0 {
		i.Step = DefaultStep
	}
	if i.PollInterval.Duration == 0 {
		i.PollInterval = common.NewDuration(DefaultPollInterval)
	}
	if i.HeadTTL.Duration == 0 {
		i.HeadTTL = common.NewDuration(DefaultHeadTTL)
	}
	if i.TemplateBuffer == 0 {
		i.TemplateBuffer = DefaultTemplateBuffer
	}
}

// Validate checks if the indexer configuration is valid.
func (i *IndexerConfig) Validate() error {
	if i.PollInterval.Duration < 0 {
		return fmt.Errorf("poll_interval must not be negative")
	}
	if i.HeadTTL.Duration < 0 {
		return fmt.Errorf("head_ttl must not be negative")
	}
	if i.TemplateBuffer < 0 {
		return fmt.Errorf("template_buffer must not be negative")
	}

	return nil
}

// NetworkConfig describes one chain endpoint.
type NetworkConfig struct {
	// RPCURL is the Ethereum RPC endpoint URL, or $NAME / ${NAME} to read it from the environment
	RPCURL string `yaml:"rpc_url" json:"rpc_url" toml:"rpc_url"`

	// RequestsPerSecond is the ceiling of outgoing requests for this network
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" toml:"requests_per_second"`

	// Burst is the number of requests allowed at once before the limiter kicks in
	Burst int `yaml:"burst" json:"burst" toml:"burst"`

	// Finality selects which head is used for pacing: "latest", "safe" or "finalized"
	Finality string `yaml:"finality" json:"finality" toml:"finality"`

	// Retry contains optional RPC retry configuration with exponential backoff
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`
}

// ApplyDefaults sets default values for optional network configuration fields.
func (n *NetworkConfig) ApplyDefaults() {
	if n.Burst == 0 {
		n.Burst = DefaultBurst
	}
	if n.Finality == "" {
		n.Finality = types.FinalityLatest.String()
	}
	if n.Retry != nil {
		n.Retry.ApplyDefaults()
	}
}

// Validate checks if the network configuration is valid.
func (n *NetworkConfig) Validate() error {
	if n.RPCURL == "" {
		return fmt.Errorf("rpc_url is required")
	}
	if n.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be greater than zero")
	}
	if n.Burst < 0 {
		return fmt.Errorf("burst must not be negative")
	}
	if _, err := types.ParseBlockFinality(n.Finality); err != nil {
		return err
	}

	return nil
}

// RetryConfig represents RPC retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial request)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	// InitialBackoff is the initial backoff duration before first retry
	InitialBackoff common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration
	MaxBackoff common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults sets default values for retry configuration.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(1 * time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// DataSourceConfig describes a statically known contract.
type DataSourceConfig struct {
	// Handler is the registered handler type; defaults to the data source name
	Handler string `yaml:"handler" json:"handler" toml:"handler"`

	// ABI is an optional path to the contract ABI JSON used for decoding
	ABI string `yaml:"abi,omitempty" json:"abi,omitempty" toml:"abi,omitempty"`

	// Event overrides the event signature the handler subscribes to
	// Format: "EventName(type1 indexed name1, type2 name2, ...)"
	Event string `yaml:"event,omitempty" json:"event,omitempty" toml:"event,omitempty"`

	// Address is the contract address to monitor
	Address string `yaml:"address" json:"address" toml:"address"`

	// StartBlock is the first block scanned
	StartBlock uint64 `yaml:"start_block" json:"start_block" toml:"start_block"`

	// Network is the key into networks
	Network string `yaml:"network" json:"network" toml:"network"`

	// ExecutionMode is "parallel" (default) or "serial"
	ExecutionMode string `yaml:"execution_mode" json:"execution_mode" toml:"execution_mode"`

	// Step overrides indexer.step for this source
	Step uint64 `yaml:"step,omitempty" json:"step,omitempty" toml:"step,omitempty"`
}

// Validate checks if the data source configuration is valid.
func (d *DataSourceConfig) Validate() error {
	if !ethcommon.IsHexAddress(d.Address) {
		return fmt.Errorf("address %q is not a valid hex address", d.Address)
	}
	if d.Network == "" {
		return fmt.Errorf("network is required")
	}

	return validateExecutionMode(d.ExecutionMode)
}

// TemplateConfig describes contracts whose addresses are discovered at runtime.
type TemplateConfig struct {
	// Handler is the registered handler type; defaults to the template name
	Handler string `yaml:"handler" json:"handler" toml:"handler"`

	// ABI is an optional path to the contract ABI JSON used for decoding
	ABI string `yaml:"abi,omitempty" json:"abi,omitempty" toml:"abi,omitempty"`

	// Event overrides the event signature the handler subscribes to
	Event string `yaml:"event,omitempty" json:"event,omitempty" toml:"event,omitempty"`

	// Network is the key into networks
	Network string `yaml:"network" json:"network" toml:"network"`

	// ExecutionMode is "parallel" (default) or "serial"
	ExecutionMode string `yaml:"execution_mode" json:"execution_mode" toml:"execution_mode"`
}

// Validate checks if the template configuration is valid.
func (t *TemplateConfig) Validate() error {
	if t.Network == "" {
		return fmt.Errorf("network is required")
	}

	return validateExecutionMode(t.ExecutionMode)
}

// BlockHandlerConfig describes a handler invoked once per block.
type BlockHandlerConfig struct {
	// Handler is the registered handler type; defaults to the block handler name
	Handler string `yaml:"handler" json:"handler" toml:"handler"`

	// StartBlock is the first block handled
	StartBlock uint64 `yaml:"start_block" json:"start_block" toml:"start_block"`

	// Step overrides indexer.step for this source
	Step uint64 `yaml:"step,omitempty" json:"step,omitempty" toml:"step,omitempty"`

	// Network is the key into networks
	Network string `yaml:"network" json:"network" toml:"network"`

	// ExecutionMode is "parallel" (default) or "serial"
	ExecutionMode string `yaml:"execution_mode" json:"execution_mode" toml:"execution_mode"`
}

// Validate checks if the block handler configuration is valid.
func (b *BlockHandlerConfig) Validate() error {
	if b.Network == "" {
		return fmt.Errorf("network is required")
	}

	return validateExecutionMode(b.ExecutionMode)
}

func validateExecutionMode(mode string) error {
	if !slices.Contains(validExecutionModes, mode) {
		return fmt.Errorf("execution_mode: must be one of: parallel, serial")
	}

	return nil
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	// Path is the file path to the SQLite database, or $NAME / ${NAME} to read it from the environment
	Path string `yaml:"path" json:"path" toml:"path"`

	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE")
	// WAL mode is recommended for better concurrency
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`

	// Synchronous sets the synchronization level ("FULL", "NORMAL", "OFF")
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	// MaxOpenConnections is the maximum number of open database connections
	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
}

// Validate checks if the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("path is required")
	}
	if !slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
		return fmt.Errorf("journal_mode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}
	if !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
		return fmt.Errorf("synchronous must be one of: FULL, NORMAL, OFF")
	}

	return nil
}

// LoggingConfig configures logging behavior with per-component log levels.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components
	// Options: "debug", "info", "warn", "error"
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels sets log levels for specific components
	// Available components:
	//   - indexer: Source orchestration
	//   - processor: Block range scanning and dispatch
	//   - template-manager: Runtime source registration
	//   - rpc: Provider pool and RPC clients
	//   - chain-head: Chain head cache
	//   - metrics: Metrics server
	//   - handler: User handlers
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(l.DefaultLevel)]; !valid {
			return fmt.Errorf("logging.default_level: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := common.AllComponents[common.ToLowerWithTrim(component)]; !validComponent {
			return fmt.Errorf("logging.component_levels: unknown component '%s'", component)
		}

		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(level)]; !valid {
			return fmt.Errorf("logging.component_levels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if level, ok := l.ComponentLevels[component]; ok {
		return common.ToLowerWithTrim(level)
	}
	return common.ToLowerWithTrim(l.DefaultLevel)
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	return common.ToLowerWithTrim(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l.Development
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP endpoint are active
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to
	// Format: "host:port" or ":port"
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path where metrics are exposed
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.ListenAddress == "" {
			return fmt.Errorf("listen_address is required when metrics are enabled")
		}
		if m.Path == "" {
			return fmt.Errorf("path is required when metrics are enabled")
		}
		if m.Path[0] != '/' {
			return fmt.Errorf("path must start with '/'")
		}
		if m.Path == "/health" {
			return fmt.Errorf("path must not shadow the /health endpoint")
		}
	}
	return nil
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	c.Indexer.ApplyDefaults()

	for name, network := range c.Networks {
		network.ApplyDefaults()
		c.Networks[name] = network
	}

	for name, ds := range c.DataSources {
		if ds.Handler == "" {
			ds.Handler = name
		}
		if ds.ExecutionMode == "" {
			ds.ExecutionMode = ModeParallel
		}
		if ds.Step == 0 {
			ds.Step = c.Indexer.Step
		}
		c.DataSources[name] = ds
	}

	for name, tmpl := range c.Templates {
		if tmpl.Handler == "" {
			tmpl.Handler = name
		}
		if tmpl.ExecutionMode == "" {
			tmpl.ExecutionMode = ModeParallel
		}
		c.Templates[name] = tmpl
	}

	for name, bh := range c.BlockHandlers {
		if bh.Handler == "" {
			bh.Handler = name
		}
		if bh.ExecutionMode == "" {
			bh.ExecutionMode = ModeParallel
		}
		if bh.Step == 0 {
			bh.Step = c.Indexer.Step
		}
		c.BlockHandlers[name] = bh
	}

	if c.Database != nil {
		c.Database.ApplyDefaults()
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	c.Logging.ApplyDefaults()

	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Indexer.Validate(); err != nil {
		return fmt.Errorf("indexer: %w", err)
	}

	if len(c.Networks) == 0 {
		return fmt.Errorf("at least one network must be configured")
	}

	for _, name := range SortedKeys(c.Networks) {
		network := c.Networks[name]
		if err := network.Validate(); err != nil {
			return fmt.Errorf("networks[%s]: %w", name, err)
		}
	}

	if len(c.DataSources) == 0 && len(c.BlockHandlers) == 0 {
		return fmt.Errorf("at least one data source or block handler must be configured")
	}

	for _, name := range SortedKeys(c.DataSources) {
		ds := c.DataSources[name]
		if err := ds.Validate(); err != nil {
			return fmt.Errorf("data_sources[%s]: %w", name, err)
		}
		if _, ok := c.Networks[ds.Network]; !ok {
			return fmt.Errorf("data_sources[%s]: unknown network '%s'", name, ds.Network)
		}
	}

	for _, name := range SortedKeys(c.Templates) {
		tmpl := c.Templates[name]
		if err := tmpl.Validate(); err != nil {
			return fmt.Errorf("templates[%s]: %w", name, err)
		}
		if _, ok := c.Networks[tmpl.Network]; !ok {
			return fmt.Errorf("templates[%s]: unknown network '%s'", name, tmpl.Network)
		}
	}

	for _, name := range SortedKeys(c.BlockHandlers) {
		bh := c.BlockHandlers[name]
		if err := bh.Validate(); err != nil {
			return fmt.Errorf("block_handlers[%s]: %w", name, err)
		}
		if _, ok := c.Networks[bh.Network]; !ok {
			return fmt.Errorf("block_handlers[%s]: unknown network '%s'", name, bh.Network)
		}
	}

	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	return nil
}

// SortedKeys returns the keys of a config map in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)

	return keys
}
