// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/propextract/internal/observability"
	"github.com/pdiddy/propextract/internal/pipeline"
	"github.com/pdiddy/propextract/pkg/types"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata <doi>",
	Short: "Look up bibliographic metadata for a DOI",
	Long: `Metadata resolves a DOI (bare, doi: prefixed, or a doi.org URL) against
CrossRef and prints the record as YAML. Set metadata.mailto or
.secrets/mailto to use the CrossRef polite pool.`,
	Args: cobra.ExactArgs(1),
	RunE: runMetadata,
}

func init() {
	rootCmd.AddCommand(metadataCmd)
}

func runMetadata(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(false)
	if err != nil {
		return err
	}

	fetcher := pipeline.NewFetcher(cfg, logger, observability.NewMetrics())
	meta, err := fetcher.Fetch(context.Background(), types.PaperIdentifier(args[0]))
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return enc.Close()
}
