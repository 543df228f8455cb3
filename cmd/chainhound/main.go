package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// Import built-in handlers to register them
	_ "github.com/goran-ethernal/ChainHound/examples/handlers/blocks"
	_ "github.com/goran-ethernal/ChainHound/examples/handlers/erc20"
	_ "github.com/goran-ethernal/ChainHound/examples/handlers/uniswap"
	"github.com/goran-ethernal/ChainHound/internal/common"
	"github.com/goran-ethernal/ChainHound/internal/config"
	"github.com/goran-ethernal/ChainHound/internal/indexer"
	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/goran-ethernal/ChainHound/internal/metrics"
	"github.com/goran-ethernal/ChainHound/internal/rpc"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║         ChainHound v%s                 ║
║   Multi-chain Event Indexing Engine       ║
╚═══════════════════════════════════════════╝
`
)

var (
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chainhound",
	Short: "ChainHound - Multi-chain event indexing engine",
	Long: `ChainHound scans configured contracts and blocks on one or more EVM networks and
dispatches every matching log or block to a registered handler. Handlers may register
new contracts at runtime through templates.`,
	Version: version,
	RunE:    runIndexer,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available handler types",
	Long:  `List all registered handler types that can be used in the configuration file.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Available handler types:")
		types := handler.ListRegistered()
		if len(types) == 0 {
			fmt.Println("  (no handlers registered)")
			return
		}
		for _, t := range types {
			fmt.Printf("  - %s\n", t)
		}
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the configuration JSON schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := config.Schema()
		if err != nil {
			return err
		}

		_, err = cmd.OutOrStdout().Write(append(schema, '\n'))
		return err
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d network(s), %d data source(s), %d template(s), %d block handler(s)\n",
			configPath, len(cfg.Networks), len(cfg.DataSources), len(cfg.Templates), len(cfg.BlockHandlers))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chainhound %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(listCmd, schemaCmd, validateCmd, versionCmd)
}

func runIndexer(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	// Load configuration
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log := logger.NewComponentLoggerFromConfig(common.ComponentIndexer, cfg.Logging)
	defer log.Close() //nolint:errcheck

	if _, err := maxprocs.Set(maxprocs.Logger(log.Infof)); err != nil {
		log.Warnf("Failed to set GOMAXPROCS: %v", err)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	// Initialize metrics server if enabled
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics,
			logger.NewComponentLoggerFromConfig(common.ComponentMetrics, cfg.Logging))
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(context.Background()); err != nil {
				log.Warnf("Failed to stop metrics server: %v", err)
			}
		}()
		log.Infof("Metrics server started on %s%s", cfg.Metrics.ListenAddress, cfg.Metrics.Path)
	}

	// Initialize provider pool
	pool := rpc.NewPool(cfg.Networks, logger.NewComponentLoggerFromConfig(common.ComponentRPC, cfg.Logging))
	defer pool.Close()

	idx := indexer.New(cfg, pool, log)

	// Create handlers from configuration
	log.Infof("Creating handlers for %d data source(s) and %d block handler(s)...",
		len(cfg.DataSources), len(cfg.BlockHandlers))
	if err := idx.LoadFromConfig(logger.NewComponentLoggerFromConfig(common.ComponentHandler, cfg.Logging)); err != nil {
		return fmt.Errorf("failed to load handlers: %w", err)
	}
	defer func() {
		if err := idx.Close(); err != nil {
			log.Warnf("Failed to close handlers: %v", err)
		}
	}()

	if len(idx.Sources()) == 0 {
		log.Warn("No sources configured. Exiting.")
		return nil
	}

	// Start indexing
	log.Info("Starting ChainHound...")

	if err := idx.Run(ctx); err != nil {
		return fmt.Errorf("indexer failed: %w", err)
	}

	log.Info("ChainHound stopped successfully")
	return nil
}
