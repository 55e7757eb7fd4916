// Package config provides configuration management for the inference
// engine.
//
// Configuration can be loaded from multiple sources (in order of
// precedence):
//  1. Environment variables (highest priority)
//  2. Configuration file (JSON or YAML)
//  3. Default values (lowest priority)
//
// Feature flags allow enabling/disabling specific capabilities at runtime.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration is the sentinel for every validation failure Validate
// returns; callers use errors.Is to classify a failure without string
// matching, mirroring the taxonomy in internal/logic.
var ErrConfiguration = errors.New("configuration error")

// Config represents the complete engine configuration.
type Config struct {
	// Engine settings
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Storage settings
	Store StoreConfig `json:"store" yaml:"store"`

	// Feature flags
	Features FeatureFlags `json:"features" yaml:"features"`

	// Training settings
	Training TrainingConfig `json:"training" yaml:"training"`

	// Logging settings
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// EngineConfig contains run-level configuration.
type EngineConfig struct {
	// ScenarioName names the registered target to ground and run inference
	// against (--scenario_name).
	ScenarioName string `json:"scenario_name" yaml:"scenario_name"`

	// EntitiesPerDomain caps how many entities a scenario generator seeds
	// per domain (--entities_per_domain).
	EntitiesPerDomain int `json:"entities_per_domain" yaml:"entities_per_domain"`

	// MaxRounds is the full-round budget a run executes before reporting
	// marginals; the engine never detects convergence itself, callers pick
	// a fixed budget.
	MaxRounds int `json:"max_rounds" yaml:"max_rounds"`

	// MarginalOutputFile, if set, receives the NDJSON marginal log
	// (--marginal_output_file); empty means stdout.
	MarginalOutputFile string `json:"marginal_output_file" yaml:"marginal_output_file"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite", "neo4j".
	Backend string `json:"backend" yaml:"backend"`

	// SQLitePath is the database file path when Backend is "sqlite".
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path"`

	// Neo4jURI and Neo4jUser configure the driver when Backend is "neo4j".
	// There is no password field here and no password is read from the
	// environment or a config file; the driver uses the password that
	// store.DefaultConfig supplies.
	Neo4jURI  string `json:"neo4j_uri" yaml:"neo4j_uri"`
	Neo4jUser string `json:"neo4j_user" yaml:"neo4j_user"`

	// RuleCacheSize bounds the GraphStore's rule-lookup LRU (0 = library
	// default).
	RuleCacheSize int `json:"rule_cache_size" yaml:"rule_cache_size"`
}

// FeatureFlags controls which optional behaviors are enabled.
type FeatureFlags struct {
	// FanOutUpdates enables the incremental fan-out scheduler
	// (bp.Engine.DoFanOutFrom) for re-running inference after a single
	// observation changes, instead of always re-running a full round.
	FanOutUpdates bool `json:"fan_out_updates" yaml:"fan_out_updates"`

	// PersistWeights writes trained factor-model weights back through the
	// store's KV primitives so a later run can resume training instead of
	// reinitializing every rule's weights from the seed.
	PersistWeights bool `json:"persist_weights" yaml:"persist_weights"`

	// PrintTrainingLoss mirrors --print_training_loss: log each SGD
	// update's gold/expected/loss instead of running silently.
	PrintTrainingLoss bool `json:"print_training_loss" yaml:"print_training_loss"`
}

// TrainingConfig tunes the log-linear factor model.
type TrainingConfig struct {
	// Seed makes weight initialization reproducible across runs.
	Seed int64 `json:"seed" yaml:"seed"`

	// LearningRate is the SGD step size; the factor model itself hardcodes
	// 0.05, so this field is carried for documentation/CLI plumbing and is
	// not threaded into the model; Validate only checks that it is positive.
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level sets the logging level (debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// Format sets the log format (text, json).
	Format string `json:"format" yaml:"format"`

	// EnableTimestamps adds timestamps to log entries.
	EnableTimestamps bool `json:"enable_timestamps" yaml:"enable_timestamps"`
}

// Default returns the default configuration (the CLI flag defaults).
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			EntitiesPerDomain: 1024,
			MaxRounds:         50,
		},
		Store: StoreConfig{
			Backend:       "memory",
			RuleCacheSize: 10000,
		},
		Features: FeatureFlags{
			FanOutUpdates:     false,
			PersistWeights:    false,
			PrintTrainingLoss: false,
		},
		Training: TrainingConfig{
			Seed:         1,
			LearningRate: 0.05,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Format:           "text",
			EnableTimestamps: true,
		},
	}
}

// Load loads configuration from environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := Default()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a JSON or YAML file, selected by
// extension (.yaml/.yml for YAML, anything else parsed as JSON), with
// environment variables applied on top.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration from environment variables.
// Environment variables follow the pattern: INFER_<SECTION>_<KEY>
// Example: INFER_ENGINE_SCENARIO_NAME, INFER_STORE_BACKEND
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("INFER_ENGINE_SCENARIO_NAME"); v != "" {
		c.Engine.ScenarioName = v
	}
	if v := os.Getenv("INFER_ENGINE_ENTITIES_PER_DOMAIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.EntitiesPerDomain = n
		}
	}
	if v := os.Getenv("INFER_ENGINE_MAX_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.MaxRounds = n
		}
	}
	if v := os.Getenv("INFER_ENGINE_MARGINAL_OUTPUT_FILE"); v != "" {
		c.Engine.MarginalOutputFile = v
	}

	if v := os.Getenv("INFER_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("INFER_STORE_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("INFER_STORE_NEO4J_URI"); v != "" {
		c.Store.Neo4jURI = v
	}
	if v := os.Getenv("INFER_STORE_NEO4J_USER"); v != "" {
		c.Store.Neo4jUser = v
	}
	if v := os.Getenv("INFER_STORE_RULE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Store.RuleCacheSize = n
		}
	}

	if v := os.Getenv("INFER_FEATURES_FAN_OUT_UPDATES"); v != "" {
		c.Features.FanOutUpdates = parseBool(v)
	}
	if v := os.Getenv("INFER_FEATURES_PERSIST_WEIGHTS"); v != "" {
		c.Features.PersistWeights = parseBool(v)
	}
	if v := os.Getenv("INFER_FEATURES_PRINT_TRAINING_LOSS"); v != "" {
		c.Features.PrintTrainingLoss = parseBool(v)
	}

	if v := os.Getenv("INFER_TRAINING_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Training.Seed = n
		}
	}
	if v := os.Getenv("INFER_TRAINING_LEARNING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Training.LearningRate = f
		}
	}

	if v := os.Getenv("INFER_LOGGING_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("INFER_LOGGING_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("INFER_LOGGING_ENABLE_TIMESTAMPS"); v != "" {
		c.Logging.EnableTimestamps = parseBool(v)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.EntitiesPerDomain < 1 {
		return fmt.Errorf("%w: engine.entities_per_domain must be >= 1", ErrConfiguration)
	}
	if c.Engine.MaxRounds < 1 {
		return fmt.Errorf("%w: engine.max_rounds must be >= 1", ErrConfiguration)
	}

	validBackends := map[string]bool{"memory": true, "sqlite": true, "neo4j": true}
	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("%w: store.backend must be one of: memory, sqlite, neo4j", ErrConfiguration)
	}
	if c.Store.Backend == "sqlite" && c.Store.SQLitePath == "" {
		return fmt.Errorf("%w: store.sqlite_path is required when store.backend is sqlite", ErrConfiguration)
	}
	if c.Store.Backend == "neo4j" && c.Store.Neo4jURI == "" {
		return fmt.Errorf("%w: store.neo4j_uri is required when store.backend is neo4j", ErrConfiguration)
	}
	if c.Store.RuleCacheSize < 0 {
		return fmt.Errorf("%w: store.rule_cache_size cannot be negative", ErrConfiguration)
	}

	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("%w: training.learning_rate must be > 0", ErrConfiguration)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("%w: logging.level must be one of: debug, info, warn, error", ErrConfiguration)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("%w: logging.format must be 'text' or 'json'", ErrConfiguration)
	}

	return nil
}

// IsFeatureEnabled checks if a specific feature is enabled.
func (c *Config) IsFeatureEnabled(feature string) bool {
	switch strings.ToLower(feature) {
	case "fan_out", "fan_out_updates":
		return c.Features.FanOutUpdates
	case "persist_weights":
		return c.Features.PersistWeights
	case "training_loss", "print_training_loss":
		return c.Features.PrintTrainingLoss
	default:
		return false
	}
}

// parseBool parses a boolean from string (handles various formats).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on" || s == "enabled"
}

// ToJSON serializes the configuration to JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// SaveToFile saves the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
