package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/julget/julget/internal/placeholder"
	"github.com/julget/julget/internal/version"
	"github.com/spf13/cobra"
)

var (
	versionsSystem string
	versionsArch   string
	versionsAll    bool
)

func newVersionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List published Julia versions",
		Long: `Versions queries the upstream release listing (mirrors ranked by
latency, first answer wins) and prints the published versions available for
a system/architecture pair, oldest first.`,
		Example: `  julget versions
  julget versions --system windows --arch i686
  julget versions --all`,
		RunE: versionsRun,
	}

	cmd.Flags().StringVar(&versionsSystem, "system", hostSystem(), "target operating system")
	cmd.Flags().StringVar(&versionsArch, "arch", hostArch(), "target architecture")
	cmd.Flags().BoolVar(&versionsAll, "all", false, "include versions not published for the system/arch pair")

	return cmd
}

func versionsRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	system, err := placeholder.ParseSystem(versionsSystem)
	if err != nil {
		return err
	}
	arch, err := placeholder.ParseArch(versionsArch)
	if err != nil {
		return err
	}

	upstreams := globalSelector.Rank(ctx, globalRegistry.Upstreams()).Upstreams()
	published, err := globalResolver.Published(ctx, upstreams)
	if err != nil {
		return err
	}

	count := 0
	for _, raw := range published {
		v, ok := version.Normalize(raw)
		if !ok {
			continue
		}
		if !versionsAll && !placeholder.ValidRelease(v, system, arch) {
			continue
		}
		fmt.Println(v)
		count++
	}
	if placeholder.ValidRelease(placeholder.LatestVersion, system, arch) {
		fmt.Println("nightly")
		count++
	}

	logger.Debug("listed versions", "count", count, "system", system, "arch", arch)
	return nil
}
