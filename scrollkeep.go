package main

import (
	"context"
	"os"

	"github.com/scrollkeep/scrollkeep/config"
	"github.com/scrollkeep/scrollkeep/internal/signal"
	"github.com/scrollkeep/scrollkeep/server"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scrollkeep",
	Short: "scrollkeep recovers and verifies files stored in on-chain transaction metadata and datums.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&config.Backend, "backend", "b", "koios", "ledger query backend (blockfrost/koios)")
	rootCmd.PersistentFlags().StringVarP(&config.ProjectID, "project_id", "p", "", "blockfrost project id")
	rootCmd.PersistentFlags().BoolVarP(&config.PromptKey, "prompt-key", "", false, "prompt for the blockfrost project id instead of passing it on the command line")
	rootCmd.PersistentFlags().StringSliceVarP(&config.Mirrors, "mirror", "m", nil, "backend mirror base URLs, tried in order")
	rootCmd.PersistentFlags().StringVarP(&config.MinInterval, "min_interval", "", "", "minimum spacing between backend requests, e.g. 100ms")
	rootCmd.PersistentFlags().IntVarP(&config.RetryCap, "retry_cap", "", 0, "throttle retry bound per request")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(server.Cmd)
}

// interruptContext returns a context cancelled on the first interrupt
// signal, so an in-flight reconstruction aborts between fetch steps.
func interruptContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	signal.AddInterruptHandler(cancel)
	return ctx
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
