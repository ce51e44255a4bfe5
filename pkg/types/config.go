// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "arxiv-agent/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// CatalogConfig holds settings for the arXiv catalog client.
type CatalogConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL overrides the arXiv export API endpoint.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// PageSize is the number of entries requested per page (default 100).
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size"`

	// Delay is the minimum interval between page requests (default 3s).
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`
}

// IngestConfig holds settings for the ingest pipeline and the startup run.
type IngestConfig struct {
	// DefaultDaysBack is the window used when a request names neither a
	// start date nor a days-back count (default 30).
	DefaultDaysBack int `json:"default_days_back" yaml:"default_days_back" mapstructure:"default_days_back"`

	// StartupCategories are ingested when the server starts.
	StartupCategories []string `json:"startup_categories" yaml:"startup_categories" mapstructure:"startup_categories"`

	// StartupDaysBack is the window for the startup ingest (default 3).
	StartupDaysBack int `json:"startup_days_back" yaml:"startup_days_back" mapstructure:"startup_days_back"`

	// IngestOnStart enables the startup ingest.
	IngestOnStart bool `json:"ingest_on_start" yaml:"ingest_on_start" mapstructure:"ingest_on_start"`
}

// StoreConfig locates the paper database.
type StoreConfig struct {
	// Path is the SQLite database file (default "data/papers.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Provider names a language-model backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderClaude Provider = "claude"
)

// AIConfig holds shared settings for components that call a generative
// AI API.
type AIConfig struct {
	// Provider selects the backend: gemini or claude.
	Provider Provider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "gemini-2.5-flash-lite").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Temperature is the sampling temperature for chat turns.
	Temperature float32 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens caps the output of one model call (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnalysisConfig holds settings for the deep-read analysis cache.
type AnalysisConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Temperature is the sampling temperature for the summarizer (default 0.2).
	Temperature float32 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// RunTimeout bounds one fetch-and-summarize run (default 5m).
	RunTimeout time.Duration `json:"run_timeout" yaml:"run_timeout" mapstructure:"run_timeout"`

	// MaxInputChars clips the document text sent to the model.
	MaxInputChars int `json:"max_input_chars" yaml:"max_input_chars" mapstructure:"max_input_chars"`

	// MaxPDFBytes caps a single PDF download (default 50 MiB).
	MaxPDFBytes int64 `json:"max_pdf_bytes" yaml:"max_pdf_bytes" mapstructure:"max_pdf_bytes"`

	// CacheDir keeps downloaded PDFs between runs when set.
	CacheDir string `json:"cache_dir" yaml:"cache_dir" mapstructure:"cache_dir"`
}

// ChatConfig holds settings for the chat orchestrator.
type ChatConfig struct {
	// MaxIterations caps model invocations per turn (default 10).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations" mapstructure:"max_iterations"`

	// Buffer is the capacity of a turn's event channel (default 16).
	Buffer int `json:"buffer" yaml:"buffer" mapstructure:"buffer"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// ShutdownTimeout bounds graceful shutdown (default 10s).
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LogConfig selects the logger configuration.
type LogConfig struct {
	// Level is a zap level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Development switches to the human-readable console encoder.
	Development bool `json:"development" yaml:"development" mapstructure:"development"`
}

// Config groups all component configurations.
type Config struct {
	Catalog  CatalogConfig  `json:"catalog" yaml:"catalog" mapstructure:"catalog"`
	Ingest   IngestConfig   `json:"ingest" yaml:"ingest" mapstructure:"ingest"`
	Store    StoreConfig    `json:"store" yaml:"store" mapstructure:"store"`
	AI       AIConfig       `json:"ai" yaml:"ai" mapstructure:"ai"`
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis" mapstructure:"analysis"`
	Chat     ChatConfig     `json:"chat" yaml:"chat" mapstructure:"chat"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
}
