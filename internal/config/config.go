// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config builds a PipelineConfig from a viper instance: defaults,
// an optional propextract.yaml, environment variables and the secrets
// directory, in increasing order of precedence for everything except
// secrets, which only fill values left empty.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/propextract/internal/retry"
	"github.com/pdiddy/propextract/internal/secrets"
	"github.com/pdiddy/propextract/pkg/types"
)

const (
	// FileName is the config file name searched for without extension.
	FileName = "propextract"

	// EnvPrefix prefixes every key's environment variable, e.g.
	// PROPEXTRACT_LLM_PROVIDER for llm.provider.
	EnvPrefix = "PROPEXTRACT"

	defaultUserAgent = "propextract/0.1"
)

var (
	// ErrMissingCredential means the configured extraction service has no
	// credentials. It is the only configuration error that stops a batch
	// before any paper runs.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalid reports an out-of-range or unknown setting.
	ErrInvalid = errors.New("invalid configuration")
)

// envAliases are the bare environment names accepted alongside the
// prefixed ones.
var envAliases = map[string]string{
	"llm.api_key":              "LLM_API_KEY",
	"extraction.char_budget":   "CHAR_BUDGET",
	"retry.max_attempts":       "MAX_RETRY_ATTEMPTS",
	"retry.base_delay_seconds": "BASE_RETRY_DELAY_SECONDS",
	"browser.timeout_seconds":  "BROWSER_TIMEOUT_SECONDS",
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", string(types.ProviderAnthropic))
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.vertex_project", "")
	v.SetDefault("llm.vertex_location", "")
	v.SetDefault("llm.vertex_credentials_file", "")

	v.SetDefault("extraction.char_budget", 8000)
	v.SetDefault("extraction.text_backend", "native")
	v.SetDefault("extraction.markitdown_image", "markitdown:latest")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_seconds", 1)
	v.SetDefault("retry.max_delay_seconds", 30)
	v.SetDefault("retry.jitter", true)

	v.SetDefault("http.timeout_seconds", 60)
	v.SetDefault("http.user_agent", defaultUserAgent)

	v.SetDefault("metadata.base_url", "https://api.crossref.org/works/")
	v.SetDefault("metadata.mailto", "")
	v.SetDefault("metadata.requests_per_second", 2)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.download_dir", "")
	v.SetDefault("browser.timeout_seconds", 30)
	v.SetDefault("browser.locator_timeout_seconds", 10)
	v.SetDefault("browser.download_timeout_seconds", 30)

	v.SetDefault("acquire.http_fallback", true)
	v.SetDefault("acquire.strict_pdf", false)

	v.SetDefault("papers_dir", "papers")
	v.SetDefault("output", filepath.Join("output", "results.json"))
	v.SetDefault("keep_artifacts", true)
	v.SetDefault("paper_delay_seconds", 1)

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.dir", "index")
	v.SetDefault("store.max_results", 50)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("validation.default_temperature", 25)
	v.SetDefault("validation.default_material", "unspecified")
}

// BindEnv enables PROPEXTRACT_* lookups for every key and binds the bare
// aliases (LLM_API_KEY, CHAR_BUDGET, ...). A prefixed variable wins over
// its alias.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, alias := range envAliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

// ReadFile reads cfgFile, or when it is empty searches for
// propextract.yaml in the working directory and ~/.config/propextract. It
// returns the file used, or "" when none was found.
func ReadFile(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// New returns a viper instance with defaults and environment bindings.
func New() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, err
	}
	return v, nil
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetFloat64(key) * float64(time.Second))
}

// Load builds the pipeline configuration from v. Values in sec fill the
// API key, contact address and Vertex credentials when v leaves them empty.
func Load(v *viper.Viper, sec secrets.Secrets) types.PipelineConfig {
	httpCfg := types.HTTPConfig{
		Timeout:   seconds(v, "http.timeout_seconds"),
		UserAgent: v.GetString("http.user_agent"),
	}
	mailto := sec.Get(secrets.Mailto, v.GetString("metadata.mailto"))

	return types.PipelineConfig{
		Retry: types.RetryConfig{
			MaxAttempts: v.GetInt("retry.max_attempts"),
			BaseDelay:   seconds(v, "retry.base_delay_seconds"),
			MaxDelay:    seconds(v, "retry.max_delay_seconds"),
			Jitter:      v.GetBool("retry.jitter"),
		},
		Metadata: types.MetadataConfig{
			HTTPConfig:        httpCfg,
			BaseURL:           v.GetString("metadata.base_url"),
			Mailto:            mailto,
			RequestsPerSecond: v.GetFloat64("metadata.requests_per_second"),
		},
		Acquisition: types.AcquisitionConfig{
			HTTPConfig: httpCfg,
			Browser: types.BrowserConfig{
				Headless:        v.GetBool("browser.headless"),
				ExecPath:        v.GetString("browser.exec_path"),
				DownloadDir:     v.GetString("browser.download_dir"),
				PageTimeout:     seconds(v, "browser.timeout_seconds"),
				LocatorTimeout:  seconds(v, "browser.locator_timeout_seconds"),
				DownloadTimeout: seconds(v, "browser.download_timeout_seconds"),
			},
			PapersDir:     v.GetString("papers_dir"),
			HTTPFallback:  v.GetBool("acquire.http_fallback"),
			StrictPDF:     v.GetBool("acquire.strict_pdf"),
			KeepArtifacts: v.GetBool("keep_artifacts"),
		},
		Extraction: types.ExtractionConfig{
			AIConfig: types.AIConfig{
				Provider:              types.LLMProvider(strings.ToLower(v.GetString("llm.provider"))),
				Model:                 v.GetString("llm.model"),
				APIKey:                sec.Get(secrets.LLMAPIKey, v.GetString("llm.api_key")),
				BaseURL:               v.GetString("llm.base_url"),
				MaxTokens:             v.GetInt("llm.max_tokens"),
				Temperature:           v.GetFloat64("llm.temperature"),
				Timeout:               seconds(v, "llm.timeout_seconds"),
				VertexProject:         v.GetString("llm.vertex_project"),
				VertexLocation:        v.GetString("llm.vertex_location"),
				VertexCredentialsFile: sec.Get(secrets.VertexCredentials, v.GetString("llm.vertex_credentials_file")),
			},
			CharBudget:      v.GetInt("extraction.char_budget"),
			TextBackend:     v.GetString("extraction.text_backend"),
			MarkitdownImage: v.GetString("extraction.markitdown_image"),
		},
		Validation: types.ValidationConfig{
			DefaultTemperature: v.GetFloat64("validation.default_temperature"),
			DefaultMaterial:    v.GetString("validation.default_material"),
		},
		Store: types.StoreConfig{
			Enabled:    v.GetBool("store.enabled"),
			Dir:        v.GetString("store.dir"),
			MaxResults: v.GetInt("store.max_results"),
		},
		Logging: types.LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
			Output: v.GetString("logging.output"),
		},
		Output:          v.GetString("output"),
		MetricsTextfile: v.GetString("metrics.textfile"),
		PaperDelay:      seconds(v, "paper_delay_seconds"),
	}
}

// Validate checks cfg before a batch starts.
func Validate(cfg types.PipelineConfig) error {
	ai := cfg.Extraction.AIConfig
	switch ai.Provider {
	case types.ProviderAnthropic, types.ProviderOpenAI:
		if ai.APIKey == "" {
			return fmt.Errorf("%w: set LLM_API_KEY or %s/%s for provider %s",
				ErrMissingCredential, secrets.DefaultDir, secrets.LLMAPIKey, ai.Provider)
		}
	case types.ProviderVertex:
		if ai.VertexProject == "" || ai.VertexLocation == "" {
			return fmt.Errorf("%w: llm.vertex_project and llm.vertex_location are required for provider vertex",
				ErrMissingCredential)
		}
	default:
		return fmt.Errorf("%w: unknown llm.provider %q", ErrInvalid, ai.Provider)
	}

	var problems []error
	if cfg.Extraction.CharBudget <= 0 {
		problems = append(problems, fmt.Errorf("%w: extraction.char_budget must be positive", ErrInvalid))
	}
	if cfg.Retry.MaxAttempts < 1 {
		problems = append(problems, fmt.Errorf("%w: retry.max_attempts must be at least 1", ErrInvalid))
	}
	if cfg.Retry.BaseDelay < 0 {
		problems = append(problems, fmt.Errorf("%w: retry.base_delay_seconds must not be negative", ErrInvalid))
	}
	if cfg.Acquisition.Browser.PageTimeout <= 0 {
		problems = append(problems, fmt.Errorf("%w: browser.timeout_seconds must be positive", ErrInvalid))
	}
	switch strings.ToLower(cfg.Extraction.TextBackend) {
	case "", "native", "markitdown":
	default:
		problems = append(problems, fmt.Errorf("%w: unknown extraction.text_backend %q", ErrInvalid, cfg.Extraction.TextBackend))
	}
	return errors.Join(problems...)
}

// Policy converts the retry settings into a retry.Policy.
func Policy(rc types.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: rc.MaxAttempts,
		BaseDelay:   rc.BaseDelay,
		MaxDelay:    rc.MaxDelay,
		Jitter:      rc.Jitter,
	}
}
