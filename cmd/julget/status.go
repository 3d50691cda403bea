package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/julget/julget/internal/store"
	"github.com/spf13/cobra"
)

var statusRuns int

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show mirror replication status",
		Long: `Status reads the bookkeeping database written by the mirror command
and prints how many artifacts the local mirror holds and how recent passes
went. It performs no network activity.`,
		Example: `  julget status
  julget status --runs 10`,
		RunE: statusRun,
	}

	cmd.Flags().IntVar(&statusRuns, "runs", 5, "number of recent sync passes to show")

	return cmd
}

func statusRun(cmd *cobra.Command, args []string) error {
	dbPath := globalCfg.DBPath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(globalCfg.Mirror.OutDir, dbPath)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no mirror database at %s (run julget mirror first)", dbPath)
	}

	st, err := store.New(dbPath, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	count, size, err := st.CountArtifacts()
	if err != nil {
		return err
	}
	fmt.Printf("mirror: %s\nartifacts: %d (%d bytes)\n\n", globalCfg.Mirror.OutDir, count, size)

	runs, err := st.ListSyncRuns(statusRuns)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no sync passes recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tDOWNLOADED\tSKIPPED\tFAILED\tBYTES")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
			r.StartTime.Format("2006-01-02 15:04:05"), r.Status,
			r.Downloaded, r.Skipped, r.Failed, r.BytesTransferred)
	}
	return w.Flush()
}
