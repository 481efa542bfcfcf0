package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/scrollkeep/scrollkeep/chainquery"
	"github.com/scrollkeep/scrollkeep/config"
	"github.com/scrollkeep/scrollkeep/constants"
	"github.com/scrollkeep/scrollkeep/scroll"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <pointer>",
	Short: "reconstruct the scroll a pointer locates and write its bytes out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(args[0])
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&config.Output, "out", "o", "", "output file path, stdout when empty")
	fetchCmd.Flags().StringVarP(&config.ContentType, "content_type", "", "", "declared content type override")
	fetchCmd.Flags().StringVarP(&config.Codec, "codec", "", "", "declared compression codec (gzip/br/auto)")
	fetchCmd.Flags().StringVarP(&config.ExpectedSHA256, "sha256", "", "", "expected sha256 of the final bytes")
	fetchCmd.Flags().BoolVarP(&config.AllowGaps, "allow_gaps", "", false, "tolerate missing page indices")
	fetchCmd.Flags().IntVarP(&config.PageWorkers, "workers", "w", 4, "parallel page fetch fan-out")
}

// newQueryClient builds the ledger query client from the shared flags.
func newQueryClient() (*chainquery.Client, error) {
	if config.PromptKey && config.ProjectID == "" {
		fmt.Fprint(os.Stderr, "project id: ")
		key, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, err
		}
		config.ProjectID = string(key)
	}
	opts := []chainquery.Option{
		chainquery.WithBackend(config.Backend),
		chainquery.WithProjectID(config.ProjectID),
		chainquery.WithMirrors(config.Mirrors...),
	}
	if config.MinInterval != "" {
		interval, err := time.ParseDuration(config.MinInterval)
		if err != nil {
			return nil, fmt.Errorf("min_interval: %w", err)
		}
		opts = append(opts, chainquery.WithMinInterval(interval))
	}
	if config.RetryCap > 0 {
		opts = append(opts, chainquery.WithRetryCap(config.RetryCap))
	}
	return chainquery.New(opts...)
}

// newReconstructor builds the engine with progress milestones echoed to
// stderr, keeping stdout clean for the scroll bytes.
func newReconstructor() (*scroll.Reconstructor, error) {
	cli, err := newQueryClient()
	if err != nil {
		return nil, err
	}
	return scroll.NewReconstructor(
		scroll.WithQuerier(cli),
		scroll.WithPageWorkers(config.PageWorkers),
		scroll.WithAllowGaps(config.AllowGaps),
		scroll.WithProgress(func(message string, percent int) {
			if percent < 0 {
				fmt.Fprintf(os.Stderr, "... %s\n", message)
				return
			}
			fmt.Fprintf(os.Stderr, "... %s (%d%%)\n", message, percent)
		}),
	)
}

func runFetch(rawPointer string) error {
	ptr, err := scroll.ParsePointer(rawPointer)
	if err != nil {
		return err
	}
	r, err := newReconstructor()
	if err != nil {
		return err
	}

	var fetchOpts []scroll.FetchOption
	if config.ContentType != "" {
		fetchOpts = append(fetchOpts, scroll.WithContentType(constants.ContentType(config.ContentType)))
	}
	if config.Codec != "" {
		codec := constants.Codec(config.Codec)
		if !codec.Known() {
			return fmt.Errorf("unknown codec %q", config.Codec)
		}
		fetchOpts = append(fetchOpts, scroll.WithCodec(codec))
	}
	if config.ExpectedSHA256 != "" {
		fetchOpts = append(fetchOpts, scroll.WithExpectedSHA256(config.ExpectedSHA256))
	}

	res, err := r.Reconstruct(interruptContext(), ptr, fetchOpts...)
	if err != nil {
		return err
	}
	return writeResult(res)
}

// writeResult writes the recovered bytes and prints the reconstruction
// summary to stderr.
func writeResult(res *scroll.Result) error {
	if config.Output == "" {
		if _, err := os.Stdout.Write(res.Bytes); err != nil {
			return err
		}
	} else if err := os.WriteFile(config.Output, res.Bytes, 0644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s, %s, sha256 %s, verification %s, %d fragment(s)\n",
		res.ContentType, humanize.Bytes(uint64(res.SizeBytes)), res.SHA256, res.Verification, res.FragmentCount)
	if res.Verification == scroll.VerificationFailed {
		fmt.Fprintln(os.Stderr, "warning: recovered bytes do not match the expected hash")
	}
	return nil
}
