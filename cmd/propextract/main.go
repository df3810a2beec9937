// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the propextract CLI.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/propextract/internal/config"
	"github.com/pdiddy/propextract/internal/observability"
	"github.com/pdiddy/propextract/internal/secrets"
	"github.com/pdiddy/propextract/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds credentials loaded from .secrets/ at startup.
	loadedSecrets secrets.Secrets

	// v is the viper instance built in PersistentPreRunE.
	v *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "propextract",
	Short: "Extract mechanical property data from materials science papers",
	Long: `propextract turns a list of paper identifiers (DOIs or URLs) into a
unified dataset of mechanical property records. For each paper it looks up
bibliographic metadata, downloads the PDF through a browser session, cuts a
bounded text excerpt, asks an LLM for candidate measurements, and validates
them into canonical records (property type, value, unit, temperature,
material).

The run command drives the full pipeline; metadata, acquire and extract run
single stages, and store queries the local dataset index.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, skipped, err := secrets.Load(secretsDir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		for _, name := range skipped {
			fmt.Fprintf(os.Stderr, "Skipped unreadable secret: %s\n", name)
		}
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Keys())
		}

		v, err = config.New()
		if err != nil {
			return err
		}
		for key, flag := range map[string]string{
			"logging.level":  "log-level",
			"logging.format": "log-format",
		} {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return err
			}
		}
		cfgFile, _ := cmd.Flags().GetString("config")
		used, err := config.ReadFile(v, cfgFile)
		if err != nil {
			return err
		}
		if used != "" {
			fmt.Fprintln(os.Stderr, "Using config file:", used)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./propextract.yaml or ~/.config/propextract/propextract.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", secrets.DefaultDir, "directory of secret files (llm-api-key, mailto, ...)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: console or json")
}

// loadConfig builds the pipeline configuration. When needLLM is set the
// extraction credentials are checked before anything runs.
func loadConfig(needLLM bool) (types.PipelineConfig, zerolog.Logger, error) {
	cfg := config.Load(v, loadedSecrets)
	logger := observability.NewLogger(cfg.Logging)
	if needLLM {
		if err := config.Validate(cfg); err != nil {
			return cfg, logger, err
		}
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
