// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/propextract/internal/pipeline"
	"github.com/pdiddy/propextract/internal/store"
	"github.com/pdiddy/propextract/internal/unify"
	"github.com/pdiddy/propextract/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [identifiers...]",
	Short: "Run the full extraction pipeline over a batch of papers",
	Long: `Run processes each identifier in order: metadata lookup, PDF download,
text preparation, LLM extraction and validation. Accepted records are merged
into one dataset (last write wins per paper, property type and material)
and written to --output as JSON, or YAML for a .yaml/.yml path.

A paper that fails at any stage is recorded in the output and skipped. The
command exits non-zero on a configuration error or when every paper failed.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("input", "", "file with one identifier per line (# starts a comment)")
	runCmd.Flags().String("output", "", "dataset output path (default output/results.json)")
	runCmd.Flags().Duration("delay", 0, "pause between consecutive papers (default 1s)")
	runCmd.Flags().Bool("no-keep", false, "delete each PDF once its text is extracted")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ids := identifiersFromArgs(args)
	if input, _ := cmd.Flags().GetString("input"); input != "" {
		fromFile, err := readIdentifierFile(input)
		if err != nil {
			return err
		}
		ids = append(ids, fromFile...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("provide one or more paper identifiers (DOIs or URLs) or --input")
	}

	cfg, logger, err := loadConfig(true)
	if err != nil {
		return err
	}
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		cfg.Output = out
	}
	if cmd.Flags().Changed("delay") {
		cfg.PaperDelay, _ = cmd.Flags().GetDuration("delay")
	}
	if noKeep, _ := cmd.Flags().GetBool("no-keep"); noKeep {
		cfg.Acquisition.KeepArtifacts = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, closeBackend, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	res, runErr := p.Run(ctx, ids)

	doc := res.Document()
	if err := unify.WriteFile(cfg.Output, doc); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote %d records from %d papers to %s\n",
		doc.TotalPropertiesExtracted, doc.PapersProcessed, cfg.Output)

	if cfg.Store.Enabled {
		if err := ingest(ctx, cfg, doc, os.Stdout); err != nil {
			logger.Error().Err(err).Msg("indexing dataset")
		}
	}
	if cfg.MetricsTextfile != "" {
		if err := p.Metrics().WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn().Err(err).Str("path", cfg.MetricsTextfile).Msg("writing metrics")
		}
	}

	printFailures(os.Stdout, res.Failures)

	if runErr != nil {
		return runErr
	}
	if res.AllFailed() {
		return fmt.Errorf("all %d paper(s) failed", len(res.Papers))
	}
	return nil
}

func ingest(ctx context.Context, cfg types.PipelineConfig, doc types.DatasetDocument, w io.Writer) error {
	s, err := store.NewStore(cfg.Store, cfg.Acquisition.PapersDir)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := s.Ingest(ctx, doc, w)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed indexing", summary.Failed)
	}
	return nil
}

func printFailures(w io.Writer, failures []types.PaperFailure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d paper(s) failed:\n", len(failures))
	for _, f := range failures {
		fmt.Fprintf(w, "  %s [%s]: %s\n", f.Identifier, f.Stage, f.Reason)
	}
}

func identifiersFromArgs(args []string) []types.PaperIdentifier {
	ids := make([]types.PaperIdentifier, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			ids = append(ids, types.PaperIdentifier(a))
		}
	}
	return ids
}

func readIdentifierFile(path string) ([]types.PaperIdentifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()
	ids, err := readIdentifiers(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ids, nil
}

func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t') {
			line = line[:i]
			break
		}
	}
	return strings.TrimSpace(line)
}

// readIdentifiers returns one identifier per non-blank line. A '#' at the
// start of a line or after whitespace begins a comment; a '#' inside an
// identifier, such as a URL fragment, is kept.
func readIdentifiers(r io.Reader) ([]types.PaperIdentifier, error) {
	var ids []types.PaperIdentifier
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := stripComment(sc.Text()); line != "" {
			ids = append(ids, types.PaperIdentifier(line))
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return ids, nil
}

func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t') {
			line = line[:i]
			break
		}
	}
	return strings.TrimSpace(line)
}
