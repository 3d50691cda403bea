package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/julget/julget/internal/config"
	"github.com/julget/julget/internal/download"
	"github.com/julget/julget/internal/fetch"
	"github.com/julget/julget/internal/mirror"
	"github.com/julget/julget/internal/registry"
	"github.com/julget/julget/internal/version"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgPath     string
	sourcesPath string
	logLevel    string
	logFormat   string

	globalCfg *config.Config
	logger    *slog.Logger

	// Global components
	globalRegistry *registry.Registry
	globalSelector *mirror.Selector
	globalResolver *version.Resolver
	globalFetcher  *fetch.Orchestrator
)

// initializeComponents loads the registry and wires the resolver, selector,
// and orchestrator. The store is opened lazily by the commands that use it.
func initializeComponents() error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	override := globalCfg.Sources
	if sourcesPath != "" {
		override = sourcesPath
	}

	reg, err := registry.Load(override)
	if err != nil {
		return fmt.Errorf("loading upstream registry: %w", err)
	}
	globalRegistry = reg

	listing := version.NewListing(logger)
	globalResolver = version.NewResolver(listing, logger)
	globalSelector = mirror.NewSelector(logger)
	globalFetcher = fetch.NewOrchestrator(download.NewClient(logger), logger)

	logger.Debug("components initialized", "upstreams", reg.Len())
	return nil
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "julget",
		Short: "Download Julia releases from the fastest mirror, or run your own",
		Long: `julget resolves a version specifier like "1", "1.6", "1.7.0-rc1" or
"nightly" to a concrete Julia release, ranks the registered upstream mirrors
by measured latency, and downloads the release artifact with fallback across
mirrors. In mirror mode it replicates the full release catalog into a local
directory that can serve as a new public or private mirror.`,
		Example: `  julget download 1.6
  julget download nightly --system linux --arch x86_64
  julget versions
  julget upstreams
  julget mirror --outdir /srv/julia --period 24h`,
		Version: "0.1.0",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()

			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			if cfgPath == "" {
				if found, err := config.FindConfigFile(); err == nil {
					cfgPath = found
				}
			}
			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				logger.Debug("config loaded", "path", cfgPath)
			} else {
				globalCfg = config.DefaultConfig()
			}

			return initializeComponents()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&sourcesPath, "sources", "", "path to a user upstream override file (JSON)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")

	cmd.AddCommand(
		newDownloadCmd(),
		newMirrorCmd(),
		newVersionsCmd(),
		newUpstreamsCmd(),
		newStatusCmd(),
	)

	return cmd
}

// setupLogging initializes the slog logger based on flags.
func setupLogging() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}
