// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/propextract/internal/store"
	"github.com/pdiddy/propextract/internal/validate"
	"github.com/pdiddy/propextract/pkg/types"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Index datasets and query the local SQLite index",
	Long: `Store manages a SQLite index of extraction runs under store.dir. Use
--ingest to index a dataset file written by run, filters (--type,
--material, --paper) to query records, and --export to write the index
(or a filtered subset) to export.yaml or export.json. With no flags it
prints record counts per property type.`,
	RunE: runStore,
}

func init() {
	storeCmd.Flags().String("dir", "", "index directory (default index)")
	storeCmd.Flags().String("ingest", "", "dataset file to index")
	storeCmd.Flags().String("type", "", "filter by property type: yield_strength, tensile_strength, hardness, elongation, other")
	storeCmd.Flags().String("material", "", "filter by material name substring")
	storeCmd.Flags().String("paper", "", "filter by paper identifier")
	storeCmd.Flags().Int("limit", 0, "maximum results (0 = use store.max_results)")
	storeCmd.Flags().Bool("json", false, "output results as JSON")
	storeCmd.Flags().String("export", "", "export format: yaml or json")

	rootCmd.AddCommand(storeCmd)
}

func runStore(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(false)
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Store.Dir = dir
	}

	s, err := store.NewStore(cfg.Store, cfg.Acquisition.PapersDir)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()

	if path, _ := cmd.Flags().GetString("ingest"); path != "" {
		summary, err := s.IngestFile(ctx, path, os.Stdout)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d paper(s) failed indexing", summary.Failed)
		}
		return nil
	}

	opts, err := queryOptsFromFlags(cmd)
	if err != nil {
		return err
	}

	if format, _ := cmd.Flags().GetString("export"); format != "" {
		var path string
		switch format {
		case "yaml":
			path, err = s.ExportYAML(ctx, opts)
		case "json":
			path, err = s.ExportJSON(ctx, opts)
		default:
			return fmt.Errorf("unsupported format %q: use yaml or json", format)
		}
		if err != nil {
			return err
		}
		fmt.Println("Exported to", path)
		return nil
	}

	if opts.IsEmpty() {
		counts, err := s.Counts(ctx)
		if err != nil {
			return err
		}
		printCounts(os.Stdout, counts)
		return nil
	}

	results, err := s.Retrieve(ctx, opts)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatResults(os.Stdout, results, jsonOutput)
}

func queryOptsFromFlags(cmd *cobra.Command) (store.QueryOptions, error) {
	propType, _ := cmd.Flags().GetString("type")
	material, _ := cmd.Flags().GetString("material")
	paperID, _ := cmd.Flags().GetString("paper")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := store.QueryOptions{Material: material, PaperID: paperID, MaxResults: limit}
	if propType != "" {
		pt := types.PropertyType(propType)
		if !pt.Valid() {
			// Accept the names papers use, e.g. "UTS" or "Vickers hardness".
			var ok bool
			if pt, ok = validate.NormalizePropertyType(propType); !ok || pt == types.PropertyOther {
				return opts, fmt.Errorf("unknown property type %q", propType)
			}
		}
		opts.Type = pt
	}
	return opts, nil
}

func printCounts(w io.Writer, counts map[types.PropertyType]int) {
	total := 0
	for _, pt := range types.PropertyTypes {
		fmt.Fprintf(w, "%-18s %d\n", pt, counts[pt])
		total += counts[pt]
	}
	fmt.Fprintf(w, "%-18s %d\n", "total", total)
}

func formatResults(w io.Writer, results []store.QueryResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "%-24s  %-16s  %-24s  %10s  %-6s  %8s\n",
		"Paper", "Property", "Material", "Value", "Unit", "Temp °C")
	fmt.Fprintln(w, strings.Repeat("-", 98))

	for _, r := range results {
		fmt.Fprintf(w, "%-24s  %-16s  %-24s  %10g  %-6s  %8g\n",
			clip(string(r.SourceIdentifier), 24), r.PropertyType, clip(r.Material, 24),
			r.Value, r.Unit, r.Temperature)
	}

	fmt.Fprintf(w, "\n%d results\n", len(results))
	return nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
