package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/scrollkeep/scrollkeep/config"
	"github.com/scrollkeep/scrollkeep/constants"
	"github.com/scrollkeep/scrollkeep/scroll"
	"github.com/scrollkeep/scrollkeep/scroll/registry"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "look a name up in the on-chain registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResolve(args[0])
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&config.RegistryHead, "head", "r", "", "registry head pointer (trust anchor, required)")
	resolveCmd.Flags().StringSliceVarP(&config.RegistryOverrides, "override", "", nil, "private registry head pointers overlaid on the public one")
	resolveCmd.Flags().BoolVarP(&config.FetchResolved, "fetch", "f", false, "fetch the resolved scroll instead of printing the entry")
	resolveCmd.Flags().StringVarP(&config.Output, "out", "o", "", "output file path when fetching, stdout when empty")
	resolveCmd.Flags().BoolVarP(&config.AllowGaps, "allow_gaps", "", false, "tolerate missing page indices when fetching")
	resolveCmd.Flags().IntVarP(&config.PageWorkers, "workers", "w", 4, "parallel page fetch fan-out when fetching")
	_ = resolveCmd.MarkFlagRequired("head")
}

func runResolve(name string) error {
	if !registry.ValidName(name) {
		return fmt.Errorf("invalid registry name %q", name)
	}
	trust, err := registry.ParseTrust(config.RegistryHead, config.RegistryOverrides...)
	if err != nil {
		return err
	}
	r, err := newReconstructor()
	if err != nil {
		return err
	}
	resolver, err := registry.NewResolver(registry.WithFetcher(r))
	if err != nil {
		return err
	}

	ctx := interruptContext()
	dir, err := resolver.Resolve(ctx, trust)
	if err != nil {
		return err
	}
	entry, found := dir.Lookup(name)
	if !found {
		return fmt.Errorf("name %q is not registered (%d entries resolved)", name, dir.Len())
	}

	if !config.FetchResolved {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	}

	ptr, err := entry.Target()
	if err != nil {
		return err
	}
	var fetchOpts []scroll.FetchOption
	if entry.ContentType != "" {
		fetchOpts = append(fetchOpts, scroll.WithContentType(constants.ContentType(entry.ContentType)))
	}
	if entry.SHA256 != "" {
		fetchOpts = append(fetchOpts, scroll.WithExpectedSHA256(entry.SHA256))
	}
	res, err := r.Reconstruct(ctx, ptr, fetchOpts...)
	if err != nil {
		return err
	}
	return writeResult(res)
}
