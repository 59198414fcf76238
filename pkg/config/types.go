// Package config loads and validates the flat, environment-overridable
// configuration the core engines are wired from (spec §6.4), following the
// teacher's YAML + mergo-defaults + ordered-validator shape.
package config

import "time"

// DedupConfig configures the Deduplication Engine.
type DedupConfig struct {
	WindowSecs int `yaml:"window_secs"`
}

// CorrelationConfig configures the Correlation Engine and its strategies.
type CorrelationConfig struct {
	MinCorrelationScore       float64 `yaml:"min_correlation_score"`
	TemporalWindowSecs        int     `yaml:"temporal_window_secs"`
	PatternSimilarityThresh   float64 `yaml:"pattern_similarity_threshold"`
	EnableTemporal            bool    `yaml:"enable_temporal"`
	EnablePattern             bool    `yaml:"enable_pattern"`
	EnableSource              bool    `yaml:"enable_source"`
	EnableFingerprint         bool    `yaml:"enable_fingerprint"`
	EnableTopology            bool    `yaml:"enable_topology"`
	AutoMergeGroups           bool    `yaml:"auto_merge_groups"`
}

// EscalationConfig configures the Escalation Engine's tick loop.
type EscalationConfig struct {
	CheckIntervalSecs int `yaml:"check_interval_secs"`
}

// EnrichmentConfig configures the Enrichment Pipeline.
type EnrichmentConfig struct {
	TimeoutSecs     int  `yaml:"timeout_secs"`
	CacheTTLSecs    int  `yaml:"cache_ttl_secs"`
	AsyncEnrichment bool `yaml:"async_enrichment"`
	MaxConcurrent   int  `yaml:"max_concurrent"`

	EnableHistorical bool `yaml:"enable_historical"`
	EnableService    bool `yaml:"enable_service"`
	EnableTeam       bool `yaml:"enable_team"`
	EnableMetrics    bool `yaml:"enable_metrics"`
	EnableLogs       bool `yaml:"enable_logs"`
}

// NotificationsConfig configures the Notification Sink.
type NotificationsConfig struct {
	QueueSize        int `yaml:"queue_size"`
	WorkerThreads    int `yaml:"worker_threads"`
	MaxRetries       int `yaml:"max_retries"`
	RetryBackoffSecs int `yaml:"retry_backoff_secs"`
}

// ServerConfig configures cmd/incidentd's HTTP intake.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the umbrella configuration object every engine is constructed
// from, mirroring the teacher's Config (pkg/config/config.go) as the single
// object Initialize returns.
type Config struct {
	configDir string

	Server        ServerConfig         `yaml:"server"`
	Dedup         DedupConfig          `yaml:"dedup"`
	Correlation   CorrelationConfig    `yaml:"correlation"`
	Escalation    EscalationConfig     `yaml:"escalation"`
	Enrichment    EnrichmentConfig     `yaml:"enrichment"`
	Notifications NotificationsConfig  `yaml:"notifications"`
}

// ConfigDir returns the directory this configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// Defaults returns a Config populated with every spec §6.4 default value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Dedup:  DedupConfig{WindowSecs: 900},
		Correlation: CorrelationConfig{
			MinCorrelationScore:     0.6,
			TemporalWindowSecs:      300,
			PatternSimilarityThresh: 0.7,
			EnableTemporal:          true,
			EnablePattern:           true,
			EnableSource:            true,
			EnableFingerprint:       true,
			EnableTopology:          true,
			AutoMergeGroups:         true,
		},
		Escalation: EscalationConfig{CheckIntervalSecs: 30},
		Enrichment: EnrichmentConfig{
			TimeoutSecs:      5,
			CacheTTLSecs:     300,
			AsyncEnrichment:  true,
			MaxConcurrent:    4,
			EnableHistorical: true,
			EnableService:    true,
			EnableTeam:       true,
			EnableMetrics:    true,
			EnableLogs:       true,
		},
		Notifications: NotificationsConfig{
			QueueSize:        1000,
			WorkerThreads:    2,
			MaxRetries:       3,
			RetryBackoffSecs: 5,
		},
	}
}

// RetryBackoff returns Notifications.RetryBackoffSecs as a time.Duration.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Notifications.RetryBackoffSecs) * time.Second
}
