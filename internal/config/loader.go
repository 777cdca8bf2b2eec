package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrNoSecret means no usable signing secret is configured.
var ErrNoSecret = errors.New("signing.secret is not configured")

// Load reads, defaults, verifies, and validates the configuration file.
// If a directory is given, config.yaml inside it is used.
func Load(configPath string) (*Config, error) {
	absPath, err := resolveConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	if err := verifyChecksum(absPath); err != nil {
		return nil, err
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}
	cfg.SourcePath = absPath
	cfg = applyConfigDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $ROLLBOT_CONFIG, ~/.config/rollbot/config.yaml, /etc/rollbot/config.yaml, ./config.yaml
func DiscoverConfigPath() (string, error) {
	if p := os.Getenv("ROLLBOT_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(homeDir, ".config", "rollbot", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	for _, p := range []string{"/etc/rollbot/config.yaml", "./config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config found (checked: $ROLLBOT_CONFIG, ~/.config/rollbot/config.yaml, /etc/rollbot/config.yaml, ./config.yaml)")
}

func resolveConfigFile(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}
	if cfg.Server.CommandsPath == "" {
		cfg.Server.CommandsPath = defaults.Server.CommandsPath
	}
	if cfg.Server.MaxBodySize == "" {
		cfg.Server.MaxBodySize = defaults.Server.MaxBodySize
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaults.Server.WriteTimeout
	}

	if cfg.Signing.ReplayWindow == 0 {
		cfg.Signing.ReplayWindow = defaults.Signing.ReplayWindow
	}

	if cfg.Rollback.Mode == "" {
		cfg.Rollback.Mode = defaults.Rollback.Mode
	}

	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
// A missing signing secret is not an error here; see CheckSecret.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if !strings.HasPrefix(cfg.Server.CommandsPath, "/") {
		return fmt.Errorf("server.commands_path must start with / (got %q)", cfg.Server.CommandsPath)
	}
	if _, err := ParseSize(cfg.Server.MaxBodySize); err != nil {
		return fmt.Errorf("server.max_body_size %q: %w", cfg.Server.MaxBodySize, err)
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	if cfg.Signing.ReplayWindow < time.Second || cfg.Signing.ReplayWindow > MaxReplayWindow {
		return fmt.Errorf("signing.replay_window must be between 1s and %s (got %s)", MaxReplayWindow, cfg.Signing.ReplayWindow)
	}

	switch cfg.Rollback.Mode {
	case RollbackModeRecord:
		if cfg.State.Path == "" {
			return fmt.Errorf("state.path is required when rollback.mode is %q", RollbackModeRecord)
		}
	case RollbackModeNoop:
	default:
		return fmt.Errorf("rollback.mode must be one of: %s, %s (got %q)", RollbackModeRecord, RollbackModeNoop, cfg.Rollback.Mode)
	}

	return nil
}

// CheckSecret reports whether a usable signing secret is configured.
func (c *Config) CheckSecret() error {
	if matches := envVarPattern.FindStringSubmatch(c.Signing.Secret); len(matches) > 1 {
		return fmt.Errorf("%w: environment variable ${%s} is not set", ErrNoSecret, matches[1])
	}
	if strings.TrimSpace(c.Signing.Secret) == "" {
		return ErrNoSecret
	}
	return nil
}

// SigningSecret returns the configured secret, or "" when it is unusable,
// so an unresolved placeholder can never act as a key.
func (c *Config) SigningSecret() string {
	if c.CheckSecret() != nil {
		return ""
	}
	return c.Signing.Secret
}

// MaxBodyBytes returns server.max_body_size in bytes.
func (c *Config) MaxBodyBytes() int64 {
	n, err := ParseSize(c.Server.MaxBodySize)
	if err != nil {
		return 0
	}
	return n
}

// ParseSize parses size strings like "64KB", "1MB", "65536" to bytes.
func ParseSize(size string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
