package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "propextract/0.1 (mailto:lab@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// RetryConfig holds the backoff settings shared by every external call.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// BaseDelay is the first backoff delay; attempt n waits BaseDelay*2^(n-1) (default 1s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay"`

	// MaxDelay caps a single backoff delay (default 30s).
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`

	// Jitter randomises each delay by up to half its length.
	Jitter bool `json:"jitter" yaml:"jitter" mapstructure:"jitter"`
}

// MetadataConfig holds settings for the bibliographic metadata lookup.
type MetadataConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the works endpoint (default "https://api.crossref.org/works/").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Mailto is the contact address sent for the CrossRef polite pool.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty" mapstructure:"mailto"`

	// RequestsPerSecond caps the request rate (default 2).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// BrowserConfig holds settings for the browser automation session.
type BrowserConfig struct {
	// Headless runs the browser without a window (default true).
	Headless bool `json:"headless" yaml:"headless" mapstructure:"headless"`

	// ExecPath overrides the browser binary. Empty uses chromedp's lookup.
	ExecPath string `json:"exec_path,omitempty" yaml:"exec_path,omitempty" mapstructure:"exec_path"`

	// DownloadDir is where the browser saves files. Empty uses a temp dir.
	DownloadDir string `json:"download_dir,omitempty" yaml:"download_dir,omitempty" mapstructure:"download_dir"`

	// PageTimeout bounds page navigation (default 30s).
	PageTimeout time.Duration `json:"page_timeout" yaml:"page_timeout" mapstructure:"page_timeout"`

	// LocatorTimeout bounds the wait for each locator strategy (default 10s).
	LocatorTimeout time.Duration `json:"locator_timeout" yaml:"locator_timeout" mapstructure:"locator_timeout"`

	// DownloadTimeout bounds the wait for a triggered download (default 30s).
	DownloadTimeout time.Duration `json:"download_timeout" yaml:"download_timeout" mapstructure:"download_timeout"`
}

// AcquisitionConfig holds settings for the acquisition stage.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	Browser BrowserConfig `json:"browser" yaml:"browser" mapstructure:"browser"`

	// PapersDir is the base directory for papers (contains raw/, metadata/).
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir"`

	// HTTPFallback enables direct HTTP download when the browser route fails.
	HTTPFallback bool `json:"http_fallback" yaml:"http_fallback" mapstructure:"http_fallback"`

	// StrictPDF runs full structural validation on downloaded files.
	StrictPDF bool `json:"strict_pdf" yaml:"strict_pdf" mapstructure:"strict_pdf"`

	// KeepArtifacts retains PDFs after extraction completes (default true).
	KeepArtifacts bool `json:"keep_artifacts" yaml:"keep_artifacts" mapstructure:"keep_artifacts"`
}

// LLMProvider selects the extraction service backend.
type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderVertex    LLMProvider = "vertex"
)

// AIConfig holds settings for the LLM extraction service.
type AIConfig struct {
	// Provider selects the backend: anthropic, openai, or vertex.
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the API. Required.
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxTokens is the output-token budget per request (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Temperature is the sampling temperature (default 0.1).
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// Timeout bounds a single request (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// VertexProject and VertexLocation address the Vertex AI endpoint.
	VertexProject  string `json:"vertex_project,omitempty" yaml:"vertex_project,omitempty" mapstructure:"vertex_project"`
	VertexLocation string `json:"vertex_location,omitempty" yaml:"vertex_location,omitempty" mapstructure:"vertex_location"`

	// VertexCredentialsFile is an optional service-account key file.
	VertexCredentialsFile string `json:"vertex_credentials_file,omitempty" yaml:"vertex_credentials_file,omitempty" mapstructure:"vertex_credentials_file"`
}

// ExtractionConfig holds settings for text preparation and extraction.
type ExtractionConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// CharBudget is the maximum excerpt length in characters (default 8000).
	CharBudget int `json:"char_budget" yaml:"char_budget" mapstructure:"char_budget"`

	// TextBackend selects the PDF text extractor: "native" (default) or
	// "markitdown", which runs MarkitdownImage in docker or podman.
	TextBackend     string `json:"text_backend" yaml:"text_backend" mapstructure:"text_backend"`
	MarkitdownImage string `json:"markitdown_image,omitempty" yaml:"markitdown_image,omitempty" mapstructure:"markitdown_image"`
}

// ValidationConfig holds defaults applied by the record validator.
type ValidationConfig struct {
	// DefaultTemperature is used when a candidate gives no temperature (default 25).
	DefaultTemperature float64 `json:"default_temperature" yaml:"default_temperature" mapstructure:"default_temperature"`

	// DefaultMaterial is used when a candidate names no material.
	DefaultMaterial string `json:"default_material" yaml:"default_material" mapstructure:"default_material"`
}

// StoreConfig holds settings for the SQLite dataset index.
type StoreConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Dir     string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default maximum number of query results (default 50).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
	Output string `json:"output" yaml:"output" mapstructure:"output"`
}

// PipelineConfig groups all stage configurations for one run.
type PipelineConfig struct {
	Retry       RetryConfig       `json:"retry" yaml:"retry" mapstructure:"retry"`
	Metadata    MetadataConfig    `json:"metadata" yaml:"metadata" mapstructure:"metadata"`
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition" mapstructure:"acquisition"`
	Extraction  ExtractionConfig  `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Validation  ValidationConfig  `json:"validation" yaml:"validation" mapstructure:"validation"`
	Store       StoreConfig       `json:"store" yaml:"store" mapstructure:"store"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging" mapstructure:"logging"`

	// Output is the path of the unified dataset document.
	Output string `json:"output" yaml:"output" mapstructure:"output"`

	// MetricsTextfile is where run metrics are written; empty disables.
	MetricsTextfile string `json:"metrics_textfile,omitempty" yaml:"metrics_textfile,omitempty" mapstructure:"metrics_textfile"`

	// PaperDelay is the pause between consecutive papers.
	PaperDelay time.Duration `json:"paper_delay" yaml:"paper_delay" mapstructure:"paper_delay"`
}
