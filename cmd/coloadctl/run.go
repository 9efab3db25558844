package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"coload/internal/modules/matching"
)

var localLock bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one matching pass and print its summary",
	Args:  cobra.NoArgs,
	RunE:  runMatching,
}

func init() {
	runCmd.Flags().BoolVar(&localLock, "local-lock", false, "Skip the Redis run lock (single replica only)")
}

func runMatching(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := openEnv(ctx, !localLock)
	if err != nil {
		return err
	}
	defer e.Close()

	lock := matching.NewLocalLock()
	if !localLock {
		lock = matching.NewRedisLock(e.redis, e.cfg.Matching.LockTTL)
	}
	job, err := e.job(lock)
	if err != nil {
		return err
	}
	sum, err := job.RunOnce(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd, sum)
	return nil
}

func printSummary(cmd *cobra.Command, sum matching.RunSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s finished in %s\n", sum.RunID, sum.Duration)
	fmt.Fprintf(out, "  shipments=%d malformed=%d buckets=%d skipped=%d failed=%d\n",
		sum.Shipments, sum.Malformed, sum.Buckets, sum.Skipped, sum.Failed)
	fmt.Fprintf(out, "  proposed=%d persisted=%d\n", sum.Proposed, sum.Persisted)
}
