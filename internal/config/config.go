// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

// Package config loads process-wide client defaults with koanf.
//
// Precedence: environment variables > config file > built-in defaults. The
// loaded Config is the weakest layer of the options algebra; anything set at
// client construction or narrower scope overrides it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/datalith/internal/logging"
	"github.com/tomtom215/datalith/options"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"datalith.yaml",
	"datalith.yml",
	"/etc/datalith/config.yaml",
	"/etc/datalith/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "DATALITH_CONFIG"

// envPrefix namespaces the environment layer: DATALITH_TOKEN,
// DATALITH_TIMEOUTS_REQUEST, DATALITH_LOGGING_LEVEL and so on.
const envPrefix = "DATALITH_"

// Config is the process-wide defaults record.
type Config struct {
	// Token is the default credential, e.g. an AstraCS token.
	Token string `koanf:"token"`

	// Environment selects the deployment flavor: astra, astra-dev,
	// astra-test, dse, hcd, other.
	Environment string `koanf:"environment"`

	// Keyspace is the default working keyspace.
	Keyspace string `koanf:"keyspace"`

	// RequestsPerSecond throttles outgoing requests; 0 disables throttling.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	Timeouts TimeoutsConfig `koanf:"timeouts"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TimeoutsConfig mirrors the timeout option fields; zero means "library
// default".
type TimeoutsConfig struct {
	Request         time.Duration `koanf:"request"`
	GeneralMethod   time.Duration `koanf:"general_method"`
	CollectionAdmin time.Duration `koanf:"collection_admin"`
	TableAdmin      time.Duration `koanf:"table_admin"`
	KeyspaceAdmin   time.Duration `koanf:"keyspace_admin"`
	DatabaseAdmin   time.Duration `koanf:"database_admin"`
}

// LoggingConfig feeds the zerolog setup.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Environment: "astra",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the Config from defaults, an optional YAML file, and the
// DATALITH_* environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first readable config path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps DATALITH_TIMEOUTS_GENERAL_METHOD to
// timeouts.general_method. Only the first underscore after a known section
// name becomes a separator; the rest stay as-is.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	for _, section := range []string{"timeouts", "logging"} {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// ClientOptions converts the process defaults into the weakest options layer.
func (c *Config) ClientOptions() options.ClientOptions {
	out := options.ClientOptions{}
	if c.Environment != "" {
		env := options.Environment(c.Environment)
		out.Environment = &env
	}
	if c.Token != "" {
		out.Token = options.StaticTokenProvider(c.Token)
	}
	if c.RequestsPerSecond > 0 {
		rps := c.RequestsPerSecond
		out.RequestsPerSecond = &rps
	}
	out.Timeouts = options.TimeoutOptions{
		RequestTimeout:         durPtr(c.Timeouts.Request),
		GeneralMethodTimeout:   durPtr(c.Timeouts.GeneralMethod),
		CollectionAdminTimeout: durPtr(c.Timeouts.CollectionAdmin),
		TableAdminTimeout:      durPtr(c.Timeouts.TableAdmin),
		KeyspaceAdminTimeout:   durPtr(c.Timeouts.KeyspaceAdmin),
		DatabaseAdminTimeout:   durPtr(c.Timeouts.DatabaseAdmin),
	}
	return out
}

// LoggingOptions converts the logging section into a logging.Init argument.
// Empty fields keep the package defaults.
func (c *Config) LoggingOptions() logging.Config {
	out := logging.DefaultConfig()
	if c.Logging.Level != "" {
		out.Level = c.Logging.Level
	}
	if c.Logging.Format != "" {
		out.Format = c.Logging.Format
	}
	out.Caller = c.Logging.Caller
	return out
}

func durPtr(d time.Duration) *time.Duration {
	if d == 0 {
		return nil
	}
	return &d
}
