package config

import "time"

// Config represents the complete rollbot configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Server   ServerConfig   `yaml:"server"`
	Signing  SigningConfig  `yaml:"signing"`
	Rollback RollbackConfig `yaml:"rollback"`
	State    StateConfig    `yaml:"state"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// ServerConfig defines the command HTTP server.
type ServerConfig struct {
	Listen       string        `yaml:"listen"`
	CommandsPath string        `yaml:"commands_path"`
	MaxBodySize  string        `yaml:"max_body_size"` // e.g. "64KB", "1MB", "65536"
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// SigningConfig defines request signature verification.
type SigningConfig struct {
	// Secret is the shared signing secret, usually "${ROLLBOT_SIGNING_SECRET}".
	Secret string `yaml:"secret"`
	// ReplayWindow may narrow the accepted timestamp skew, never widen it
	// past MaxReplayWindow.
	ReplayWindow time.Duration `yaml:"replay_window"`
}

// MaxReplayWindow is the widest replay window a config may set.
const MaxReplayWindow = 5 * time.Minute

// RollbackConfig selects what happens to accepted rollback commands.
type RollbackConfig struct {
	// Mode is "record" (store in the state database) or "noop".
	Mode string `yaml:"mode"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

const (
	RollbackModeRecord = "record"
	RollbackModeNoop   = "noop"
)

// Defaults returns a Config with default values.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "rollbot",
			LogLevel: "info",
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:8080",
			CommandsPath: "/commands/rollback",
			MaxBodySize:  "64KB",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Signing: SigningConfig{
			ReplayWindow: 5 * time.Minute,
		},
		Rollback: RollbackConfig{
			Mode: RollbackModeRecord,
		},
		State: StateConfig{
			Path: "./data/rollbot.db",
		},
	}
}

// ChecksumManifest is the .checksums file written by 'rollbot config lock'.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}
