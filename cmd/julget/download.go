package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/julget/julget/internal/fetch"
	"github.com/julget/julget/internal/placeholder"
	"github.com/julget/julget/internal/registry"
	"github.com/julget/julget/internal/version"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	downloadSystem   string
	downloadArch     string
	downloadUpstream string
	downloadDir      string
	downloadForce    bool
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [version]",
		Short: "Download a Julia release artifact",
		Long: `Download resolves the version specifier against upstream release
listings, ranks the registered mirrors by latency, and fetches the artifact
from the best mirror, falling back to slower ones on failure.

Without a version argument the newest stable release is downloaded.`,
		Example: `  julget download
  julget download 1.6
  julget download 1.7.0-rc1 --system windows --arch x86_64
  julget download nightly --upstream Official --dir /tmp`,
		Args: cobra.MaximumNArgs(1),
		RunE: downloadRun,
	}

	cmd.Flags().StringVar(&downloadSystem, "system", hostSystem(), "target operating system (windows, macos, linux, freebsd)")
	cmd.Flags().StringVar(&downloadArch, "arch", hostArch(), "target architecture (i686, x86_64, ARMv7, ARMv8)")
	cmd.Flags().StringVar(&downloadUpstream, "upstream", "", "pin a single upstream by name instead of ranking")
	cmd.Flags().StringVar(&downloadDir, "dir", ".", "directory to place the artifact in")
	cmd.Flags().BoolVar(&downloadForce, "force", false, "re-download even if the artifact already exists")

	return cmd
}

func downloadRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	specArg := ""
	if len(args) == 1 {
		specArg = args[0]
	}
	spec, err := version.ParseSpecifier(specArg)
	if err != nil {
		return err
	}

	system, err := placeholder.ParseSystem(downloadSystem)
	if err != nil {
		return err
	}
	arch, err := placeholder.ParseArch(downloadArch)
	if err != nil {
		return err
	}

	upstreams, err := orderedUpstreams(ctx, downloadUpstream)
	if err != nil {
		return err
	}

	release, err := globalResolver.Resolve(ctx, spec, system, arch, upstreams)
	if err != nil {
		return err
	}
	logger.Info("resolved release", "specifier", spec.String(), "release", release.String())

	filename, err := fetch.ArtifactFilename(release)
	if err != nil {
		return err
	}
	destPath := filepath.Join(downloadDir, filename)

	if !downloadForce && !release.IsNightly() {
		if _, err := os.Stat(destPath); err == nil {
			fmt.Printf("%s already exists, nothing to do\n", destPath)
			return nil
		}
	}

	var bar *progressbar.ProgressBar
	onProgress := func(current, total int64) {
		if bar == nil {
			if total <= 0 {
				total = -1
			}
			bar = progressbar.DefaultBytes(total, filename)
		}
		_ = bar.Set64(current)
	}

	result, err := globalFetcher.Fetch(ctx, release, upstreams, destPath, onProgress)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return err
	}

	fmt.Printf("downloaded %s (%d bytes, sha256 %s) from %s\n",
		destPath, result.Download.Size, result.Download.SHA256, result.Upstream)
	return nil
}

// orderedUpstreams returns either the single pinned upstream or the full
// registry ranked by probe latency.
func orderedUpstreams(ctx context.Context, pinned string) ([]registry.UpstreamSource, error) {
	if pinned != "" {
		u, ok := globalRegistry.Get(pinned)
		if !ok {
			return nil, fmt.Errorf("unknown upstream %q", pinned)
		}
		return []registry.UpstreamSource{u}, nil
	}
	return globalSelector.Rank(ctx, globalRegistry.Upstreams()).Upstreams(), nil
}

// hostSystem maps the running platform onto a release system name.
func hostSystem() string {
	switch runtime.GOOS {
	case "darwin":
		return "macos"
	case "windows", "linux", "freebsd":
		return runtime.GOOS
	}
	return "linux"
}

// hostArch maps the running platform onto a release architecture name.
func hostArch() string {
	switch runtime.GOARCH {
	case "386":
		return "i686"
	case "arm":
		return "ARMv7"
	case "arm64":
		return "ARMv8"
	}
	return "x86_64"
}
