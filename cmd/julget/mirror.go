package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/julget/julget/internal/placeholder"
	"github.com/julget/julget/internal/store"
	syncpkg "github.com/julget/julget/internal/sync"
	"github.com/julget/julget/internal/version"
	"github.com/spf13/cobra"
)

var (
	mirrorOutDir  string
	mirrorPeriod  time.Duration
	mirrorWorkers int
	mirrorOnce    bool
)

func newMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Replicate the full release catalog into a local directory",
		Long: `Mirror fetches every known release for the configured systems and
architectures into a local directory laid out like the upstream /bin tree,
so it can serve as a new public or private mirror.

Artifacts already present are skipped; a second run against an unchanged
catalog downloads nothing. With --period the pass repeats on that interval
until interrupted. Individual release failures are logged and retried on
the next pass, never aborting the loop.

The systems, architectures, and version series to include come from the
mirror section of the config file; without one, everything is synced.`,
		Example: `  julget mirror --outdir /srv/julia --once
  julget mirror --outdir /srv/julia --period 24h --workers 8`,
		RunE: mirrorRun,
	}

	cmd.Flags().StringVar(&mirrorOutDir, "outdir", "", "output directory (default from config)")
	cmd.Flags().DurationVar(&mirrorPeriod, "period", 0, "interval between passes (default from config; 0 means single pass)")
	cmd.Flags().IntVar(&mirrorWorkers, "workers", 0, "concurrent downloads (default from config)")
	cmd.Flags().BoolVar(&mirrorOnce, "once", false, "run a single pass regardless of the configured period")

	return cmd
}

func mirrorRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := mirrorOptions()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	dbPath := globalCfg.DBPath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(opts.OutDir, dbPath)
	}
	st, err := store.New(dbPath, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	mirrorer := syncpkg.NewMirrorer(globalRegistry, globalSelector, globalResolver, globalFetcher, st, logger)

	logger.Info("starting mirror replication",
		"outdir", opts.OutDir,
		"period", opts.Period,
		"workers", opts.Workers,
		"nightly", opts.IncludeNightly,
	)
	return mirrorer.Run(ctx, opts)
}

// mirrorOptions merges config-file settings with command-line overrides.
func mirrorOptions() (syncpkg.Options, error) {
	mc := globalCfg.Mirror

	opts := syncpkg.Options{
		OutDir:         mc.OutDir,
		Workers:        mc.Workers,
		IncludeNightly: mc.Nightly(),
	}

	period, err := mc.SyncPeriod()
	if err != nil {
		return syncpkg.Options{}, err
	}
	opts.Period = period

	if mirrorOutDir != "" {
		opts.OutDir = mirrorOutDir
	}
	if mirrorWorkers > 0 {
		opts.Workers = mirrorWorkers
	}
	if mirrorPeriod > 0 {
		opts.Period = mirrorPeriod
	}
	if mirrorOnce {
		opts.Period = 0
	}

	for _, s := range mc.Systems {
		sys, err := placeholder.ParseSystem(s)
		if err != nil {
			return syncpkg.Options{}, fmt.Errorf("config mirror.systems: %w", err)
		}
		opts.Systems = append(opts.Systems, sys)
	}
	for _, a := range mc.Architectures {
		arch, err := placeholder.ParseArch(a)
		if err != nil {
			return syncpkg.Options{}, fmt.Errorf("config mirror.architectures: %w", err)
		}
		opts.Arches = append(opts.Arches, arch)
	}
	for _, v := range mc.VersionSeries {
		spec, err := version.ParseSpecifier(v)
		if err != nil {
			return syncpkg.Options{}, fmt.Errorf("config mirror.version_series: %w", err)
		}
		opts.Series = append(opts.Series, spec)
	}

	return opts, nil
}
