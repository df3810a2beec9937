// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/propextract/internal/observability"
	"github.com/pdiddy/propextract/internal/pipeline"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire [identifiers...]",
	Short: "Download papers without extracting",
	Long: `Acquire looks up metadata for each DOI and downloads the paper PDF into
<papers_dir>/raw through the browser session, falling back to a direct HTTP
download when enabled. Direct URLs skip the metadata lookup. Papers already
on disk are reused.`,
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().String("papers-dir", "", "base directory for papers (default papers)")

	rootCmd.AddCommand(acquireCmd)
}

func runAcquire(cmd *cobra.Command, args []string) error {
	ids := identifiersFromArgs(args)
	if len(ids) == 0 {
		return fmt.Errorf("provide one or more paper identifiers (DOIs or URLs)")
	}

	cfg, logger, err := loadConfig(false)
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("papers-dir"); dir != "" {
		cfg.Acquisition.PapersDir = dir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := observability.NewMetrics()
	fetcher := pipeline.NewFetcher(cfg, logger, m)
	downloader := pipeline.NewDownloader(cfg, logger, m)
	defer downloader.Close()

	failed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		meta, err := pipeline.ResolveMetadata(ctx, fetcher, id)
		if err != nil {
			fmt.Fprintf(os.Stdout, "FAILED %s: %v\n", id, err)
			failed++
			continue
		}
		h, err := downloader.Download(ctx, meta)
		if err != nil {
			fmt.Fprintf(os.Stdout, "FAILED %s: %v\n", id, err)
			failed++
			continue
		}
		fmt.Fprintf(os.Stdout, "%s -> %s (%s)\n", id, h.Path, h.Source)
	}

	fmt.Fprintf(os.Stdout, "\nacquired: %d, failed: %d\n", len(ids)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d paper(s) failed acquisition", failed)
	}
	return nil
}
