package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, merges, validates and returns ready-to-use
// configuration. This is the primary entry point cmd/incidentd calls.
//
// Steps performed:
//  1. Load incidentcore.yaml from configDir (missing file is not an error —
//     Defaults() alone is a valid configuration).
//  2. Expand environment variables.
//  3. Merge the loaded YAML over Defaults() (YAML overrides defaults,
//     zero-valued YAML fields keep the default).
//  4. Validate the result.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg := Defaults()
	cfg.configDir = configDir

	loaded, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if loaded != nil {
		if err := mergo.Merge(cfg, loaded, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge configuration: %w", err)
		}
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized successfully",
		"dedup_window_secs", cfg.Dedup.WindowSecs,
		"notification_workers", cfg.Notifications.WorkerThreads)

	return cfg, nil
}

// load reads incidentcore.yaml from configDir. A missing file returns
// (nil, nil) so the caller falls back to Defaults() untouched.
func load(configDir string) (*Config, error) {
	path := filepath.Join(configDir, "incidentcore.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return &loaded, nil
}
