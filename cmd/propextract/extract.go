// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/propextract/internal/observability"
	"github.com/pdiddy/propextract/internal/pipeline"
	"github.com/pdiddy/propextract/internal/validate"
	"github.com/pdiddy/propextract/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf>",
	Short: "Extract and validate properties from a local PDF",
	Long: `Extract runs text preparation, LLM extraction and validation on a PDF
already on disk, without metadata lookup or a browser. Accepted records and
rejections are printed as YAML. --id sets the source identifier recorded
on each record; it defaults to the file name.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("id", "", "source identifier for the records (e.g. the paper DOI)")
	extractCmd.Flags().String("title", "", "paper title to include in the prompt")

	rootCmd.AddCommand(extractCmd)
}

type extractOutput struct {
	Identifier types.PaperIdentifier            `yaml:"identifier"`
	Truncated  bool                             `yaml:"truncated"`
	Records    []types.MechanicalPropertyRecord `yaml:"records"`
	Rejections []types.Rejection                `yaml:"rejections"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	pdfPath := args[0]
	if _, err := os.Stat(pdfPath); err != nil {
		return err
	}
	id, _ := cmd.Flags().GetString("id")
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	}
	title, _ := cmd.Flags().GetString("title")

	cfg, logger, err := loadConfig(true)
	if err != nil {
		return err
	}

	ctx := context.Background()
	preparer, extractor, closeBackend, err := pipeline.NewTextStages(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer closeBackend()

	h := types.ArtifactHandle{
		Identifier: types.PaperIdentifier(id),
		Path:       pdfPath,
		Status:     types.DownloadSucceeded,
		Source:     "local",
	}
	pt, err := preparer.Prepare(ctx, h)
	if err != nil {
		return err
	}
	cands, err := extractor.Extract(ctx, pt, title)
	if err != nil {
		return err
	}
	recs, rejs := validate.New(cfg.Validation).ValidateAll(cands)

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	out := extractOutput{Identifier: h.Identifier, Truncated: pt.Truncated, Records: recs, Rejections: rejs}
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return enc.Close()
}
