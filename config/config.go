// Package config loads the bmad-dash server configuration from dash.yml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bmad-tools/dash/pkg/paths"
	"gopkg.in/yaml.v3"
)

// Config holds the full daemon configuration.
type Config struct {
	Server Server `yaml:"server"`
	Watch  Watch  `yaml:"watch"`
	Probe  Probe  `yaml:"probe"`
	Recent Recent `yaml:"recent"`
}

// Server configures the HTTP listener and the event stream.
type Server struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// RetryTimeout is the SSE retry hint sent to clients on connect.
	RetryTimeout time.Duration `yaml:"retry_timeout"`
}

// Watch configures the reconciliation loop.
type Watch struct {
	// FileInterval is the periodic reconcile cadence for manifest files.
	FileInterval time.Duration `yaml:"file_interval"`
	// ProbeInterval is the periodic cadence for assistant process checks.
	ProbeInterval time.Duration `yaml:"probe_interval"`
	// Debounce collapses filesystem notification bursts into one reconcile.
	Debounce time.Duration `yaml:"debounce"`
}

// Probe configures process detection.
type Probe struct {
	// Precedence is the ordered list of detection signals. Signals earlier in
	// the list win when signals disagree. Valid names: cmdline, shell, window.
	Precedence []string `yaml:"precedence"`
	// SignalTimeout bounds each individual detection signal.
	SignalTimeout time.Duration `yaml:"signal_timeout"`
}

// Recent configures the persisted recent-projects list.
type Recent struct {
	File string `yaml:"file"`
	Max  int    `yaml:"max"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Host:              "localhost",
			Port:              8765,
			HeartbeatInterval: 30 * time.Second,
			RetryTimeout:      3 * time.Second,
		},
		Watch: Watch{
			FileInterval:  5 * time.Second,
			ProbeInterval: 2 * time.Second,
			Debounce:      150 * time.Millisecond,
		},
		Probe: Probe{
			Precedence:    []string{"cmdline", "shell", "window"},
			SignalTimeout: 3 * time.Second,
		},
		Recent: Recent{
			File: paths.RecentProjectsFile(),
			Max:  10,
		},
	}
}

// Load reads configuration from the given file, falling back to the standard
// locations (./dash.yml, then the user config dir) when path is empty.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	candidates := []string{path}
	if path == "" {
		candidates = []string{
			"dash.yml",
			filepath.Join(paths.ConfigDir(), "dash.yml"),
		}
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		data, err := os.ReadFile(candidate)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config %s: %w", candidate, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", candidate, err)
		}
		break
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// LoadFromBytes parses configuration from raw YAML. Used in tests.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("DASH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("DASH_HOST"); host != "" {
		c.Server.Host = host
	}
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.HeartbeatInterval <= 0 {
		c.Server.HeartbeatInterval = def.Server.HeartbeatInterval
	}
	if c.Server.RetryTimeout <= 0 {
		c.Server.RetryTimeout = def.Server.RetryTimeout
	}
	if c.Watch.FileInterval <= 0 {
		c.Watch.FileInterval = def.Watch.FileInterval
	}
	if c.Watch.ProbeInterval <= 0 {
		c.Watch.ProbeInterval = def.Watch.ProbeInterval
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = def.Watch.Debounce
	}
	if len(c.Probe.Precedence) == 0 {
		c.Probe.Precedence = def.Probe.Precedence
	}
	if c.Probe.SignalTimeout <= 0 {
		c.Probe.SignalTimeout = def.Probe.SignalTimeout
	}
	if c.Recent.File == "" {
		c.Recent.File = def.Recent.File
	}
	if c.Recent.Max <= 0 {
		c.Recent.Max = def.Recent.Max
	}
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
