package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeMissingDirUsesDefaults(t *testing.T) {
	cfg, err := Initialize(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, 900, cfg.Dedup.WindowSecs)
	assert.Equal(t, 0.6, cfg.Correlation.MinCorrelationScore)
	assert.Equal(t, 2, cfg.Notifications.WorkerThreads)
}

func TestInitializeMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := []byte("dedup:\n  window_secs: 120\nnotifications:\n  worker_threads: 8\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "incidentcore.yaml"), yamlContent, 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Dedup.WindowSecs)
	assert.Equal(t, 8, cfg.Notifications.WorkerThreads)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.6, cfg.Correlation.MinCorrelationScore)
	assert.Equal(t, 3, cfg.Notifications.MaxRetries)
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "incidentcore.yaml"), []byte("not: [valid"), 0o644))

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestInitializeRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	yamlContent := []byte("correlation:\n  min_correlation_score: 2.5\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "incidentcore.yaml"), yamlContent, 0o644))

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("INCIDENTCORE_ADDR", ":9090")
	out := ExpandEnv([]byte("addr: ${INCIDENTCORE_ADDR}"))
	assert.Equal(t, "addr: :9090", string(out))
}
