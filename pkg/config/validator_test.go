package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAllAcceptsDefaults(t *testing.T) {
	require.NoError(t, NewValidator(Defaults()).ValidateAll())
}

func TestValidateCorrelationRejectsNoStrategiesEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Correlation.EnableTemporal = false
	cfg.Correlation.EnablePattern = false
	cfg.Correlation.EnableSource = false
	cfg.Correlation.EnableFingerprint = false
	cfg.Correlation.EnableTopology = false

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one strategy")
}

func TestValidateEnrichmentRequiresMaxConcurrentWhenAsync(t *testing.T) {
	cfg := Defaults()
	cfg.Enrichment.AsyncEnrichment = true
	cfg.Enrichment.MaxConcurrent = 0

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent")
}

func TestValidateNotificationsRejectsZeroWorkers(t *testing.T) {
	cfg := Defaults()
	cfg.Notifications.WorkerThreads = 0

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker_threads")
}
