package config

import "fmt"

// Validator validates configuration comprehensively with clear error
// messages, stopping at the first failure.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator { return &Validator{cfg: cfg} }

// ValidateAll performs comprehensive validation (fail-fast - stops at the
// first error). Order matters: dedup/correlation/escalation/enrichment/
// notifications/server, matching the order spec §6.4 lists them in.
func (v *Validator) ValidateAll() error {
	if err := v.validateDedup(); err != nil {
		return fmt.Errorf("dedup validation failed: %w", err)
	}
	if err := v.validateCorrelation(); err != nil {
		return fmt.Errorf("correlation validation failed: %w", err)
	}
	if err := v.validateEscalation(); err != nil {
		return fmt.Errorf("escalation validation failed: %w", err)
	}
	if err := v.validateEnrichment(); err != nil {
		return fmt.Errorf("enrichment validation failed: %w", err)
	}
	if err := v.validateNotifications(); err != nil {
		return fmt.Errorf("notifications validation failed: %w", err)
	}
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateDedup() error {
	d := v.cfg.Dedup
	if d.WindowSecs < 1 {
		return NewValidationError("dedup", "window_secs", fmt.Errorf("must be positive, got %d", d.WindowSecs))
	}
	return nil
}

func (v *Validator) validateCorrelation() error {
	c := v.cfg.Correlation
	if c.MinCorrelationScore < 0 || c.MinCorrelationScore > 1 {
		return NewValidationError("correlation", "min_correlation_score", fmt.Errorf("must be in [0,1], got %v", c.MinCorrelationScore))
	}
	if c.PatternSimilarityThresh < 0 || c.PatternSimilarityThresh > 1 {
		return NewValidationError("correlation", "pattern_similarity_threshold", fmt.Errorf("must be in [0,1], got %v", c.PatternSimilarityThresh))
	}
	if c.TemporalWindowSecs < 1 {
		return NewValidationError("correlation", "temporal_window_secs", fmt.Errorf("must be positive, got %d", c.TemporalWindowSecs))
	}
	if !c.EnableTemporal && !c.EnablePattern && !c.EnableSource && !c.EnableFingerprint && !c.EnableTopology {
		return NewValidationError("correlation", "enable_*", fmt.Errorf("at least one strategy must be enabled"))
	}
	return nil
}

func (v *Validator) validateEscalation() error {
	e := v.cfg.Escalation
	if e.CheckIntervalSecs < 1 {
		return NewValidationError("escalation", "check_interval_secs", fmt.Errorf("must be positive, got %d", e.CheckIntervalSecs))
	}
	return nil
}

func (v *Validator) validateEnrichment() error {
	e := v.cfg.Enrichment
	if e.TimeoutSecs < 1 {
		return NewValidationError("enrichment", "timeout_secs", fmt.Errorf("must be positive, got %d", e.TimeoutSecs))
	}
	if e.CacheTTLSecs < 0 {
		return NewValidationError("enrichment", "cache_ttl_secs", fmt.Errorf("must be non-negative, got %d", e.CacheTTLSecs))
	}
	if e.AsyncEnrichment && e.MaxConcurrent < 1 {
		return NewValidationError("enrichment", "max_concurrent", fmt.Errorf("must be positive when async_enrichment is true, got %d", e.MaxConcurrent))
	}
	return nil
}

func (v *Validator) validateNotifications() error {
	n := v.cfg.Notifications
	if n.QueueSize < 1 {
		return NewValidationError("notifications", "queue_size", fmt.Errorf("must be positive, got %d", n.QueueSize))
	}
	if n.WorkerThreads < 1 {
		return NewValidationError("notifications", "worker_threads", fmt.Errorf("must be positive, got %d", n.WorkerThreads))
	}
	if n.MaxRetries < 0 {
		return NewValidationError("notifications", "max_retries", fmt.Errorf("must be non-negative, got %d", n.MaxRetries))
	}
	if n.RetryBackoffSecs < 1 {
		return NewValidationError("notifications", "retry_backoff_secs", fmt.Errorf("must be positive, got %d", n.RetryBackoffSecs))
	}
	return nil
}

func (v *Validator) validateServer() error {
	if v.cfg.Server.Addr == "" {
		return NewValidationError("server", "addr", fmt.Errorf("must not be empty"))
	}
	return nil
}
