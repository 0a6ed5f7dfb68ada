package types

import "time"

// HTTPConfig holds shared HTTP settings used by commands that call a running server.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "dcrm-diagnostics/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries bounds retries on 429 and 503 responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ArtifactsConfig locates the three artifact directories.
type ArtifactsConfig struct {
	// DCRMModelDir holds the classifier pair used by the feature-dict path
	// (default "dcrm_models"; env DCRM_MODEL_DIR).
	DCRMModelDir string `json:"dcrm_model_dir" yaml:"dcrm_model_dir"`

	// AdvancedModelDir holds scaler, label encoder, classifiers, autoencoder
	// and threshold (default "new models"; env ADVANCED_MODEL_DIR).
	AdvancedModelDir string `json:"advanced_model_dir" yaml:"advanced_model_dir"`

	// AttributionModelDir holds the windowed attribution models
	// (default "dcrm_models/shap_models"; env ATTRIBUTION_MODEL_DIR).
	AttributionModelDir string `json:"attribution_model_dir" yaml:"attribution_model_dir"`
}

// DiagnosticsConfig holds inference settings.
type DiagnosticsConfig struct {
	Artifacts ArtifactsConfig `json:"artifacts" yaml:"artifacts"`

	// SentinelValue replaces missing or unparseable features on the
	// feature-dict path. Nil means DefaultSentinel; zero is a valid override.
	SentinelValue *float64 `json:"sentinel_value,omitempty" yaml:"sentinel_value,omitempty"`

	// WindowSizeMs is the default attribution window width (default 10).
	WindowSizeMs int `json:"window_size_ms" yaml:"window_size_ms"`

	// SampleIntervalMs is the spacing used to synthesise a time axis when a
	// waveform has no time column (default 0.1, i.e. 10 kHz).
	SampleIntervalMs float64 `json:"sample_interval_ms" yaml:"sample_interval_ms"`
}

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `json:"addr" yaml:"addr"`

	// Production selects JSON logging and gin release mode.
	Production bool `json:"production" yaml:"production"`

	// UploadRowLimit caps how many CSV rows an upload diagnoses (default 50;
	// env UPLOAD_DIAGNOSTIC_ROW_LIMIT).
	UploadRowLimit int `json:"upload_row_limit" yaml:"upload_row_limit"`

	// MaxUploadBytes caps the multipart body size (default 32 MiB).
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`

	// CORSOrigins lists allowed origins; empty allows all.
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`

	// ResultsDB is the SQLite path for persisted upload runs. Empty disables
	// persistence.
	ResultsDB string `json:"results_db" yaml:"results_db"`
}

// ServiceConfig groups all configuration for the service.
type ServiceConfig struct {
	Diagnostics DiagnosticsConfig `json:"diagnostics" yaml:"diagnostics"`
	Server      ServerConfig      `json:"server" yaml:"server"`
}

// Defaults for zero-valued settings.
const (
	DefaultWindowSizeMs     = 10
	DefaultSampleIntervalMs = 0.1
	DefaultUploadRowLimit   = 50
	DefaultMaxUploadBytes   = 32 << 20
	DefaultAddr             = ":8000"
)

// Sentinel returns the configured sentinel or DefaultSentinel.
func (c DiagnosticsConfig) Sentinel() float64 {
	if c.SentinelValue == nil {
		return DefaultSentinel
	}
	return *c.SentinelValue
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c DiagnosticsConfig) WithDefaults() DiagnosticsConfig {
	if c.Artifacts.DCRMModelDir == "" {
		c.Artifacts.DCRMModelDir = "dcrm_models"
	}
	if c.Artifacts.AdvancedModelDir == "" {
		c.Artifacts.AdvancedModelDir = "new models"
	}
	if c.Artifacts.AttributionModelDir == "" {
		c.Artifacts.AttributionModelDir = "dcrm_models/shap_models"
	}
	if c.WindowSizeMs <= 0 {
		c.WindowSizeMs = DefaultWindowSizeMs
	}
	if c.SampleIntervalMs <= 0 {
		c.SampleIntervalMs = DefaultSampleIntervalMs
	}
	return c
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c ServerConfig) WithDefaults() ServerConfig {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.UploadRowLimit <= 0 {
		c.UploadRowLimit = DefaultUploadRowLimit
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return c
}
