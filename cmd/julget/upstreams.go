package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newUpstreamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upstreams",
		Short: "List registered upstream mirrors with live probe latencies",
		Long: `Upstreams probes every registered mirror concurrently and prints
them in ranked order, fastest first. Unreachable mirrors sort last but stay
in the list; the downloader still falls back to them when everything faster
has failed.`,
		Example: `  julget upstreams
  julget upstreams --sources my-sources.json`,
		RunE: upstreamsRun,
	}
}

func upstreamsRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ranking := globalSelector.Rank(ctx, globalRegistry.Upstreams())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tLATENCY\tSTATUS\tURL TEMPLATE")
	for i, c := range ranking {
		status := "ok"
		latency := fmt.Sprintf("%dms", c.LatencyMs)
		if !c.Reachable() {
			status = "unreachable"
			latency = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, c.Upstream.Name, latency, status, c.Upstream.URLTemplate)
	}
	return w.Flush()
}
