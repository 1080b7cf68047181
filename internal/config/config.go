// Package config provides configuration management for dlxt.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rescale/dlxt/internal/constants"
	"github.com/rescale/dlxt/internal/extract"
	"github.com/rescale/dlxt/internal/util/paths"
)

// Proxy modes understood by the HTTP layer.
const (
	ProxyModeNone   = "no-proxy"
	ProxyModeSystem = "system"
	ProxyModeBasic  = "basic"
	ProxyModeNTLM   = "ntlm"
)

// Config holds the settings shared by the download, extract and fetch commands.
type Config struct {
	// Transfer settings
	Parallel     int    `yaml:"parallel"`
	OnDuplicated string `yaml:"on_duplicated"` // "skip", "rename", "replace"
	UserAgent    string `yaml:"user_agent"`

	// Extraction settings
	OnUnsupported string `yaml:"on_unsupported"` // "skip", "copy"
	KeepArchives  bool   `yaml:"keep_archives"`
	CheckContent  bool   `yaml:"check_content"`

	// Proxy settings
	ProxyMode      string `yaml:"proxy_mode"` // "no-proxy", "system", "basic", "ntlm"
	ProxyHost      string `yaml:"proxy_host,omitempty"`
	ProxyPort      int    `yaml:"proxy_port,omitempty"`
	ProxyUser      string `yaml:"proxy_user,omitempty"`
	ProxyPassword  string `yaml:"proxy_password,omitempty"`
	NoProxy        string `yaml:"no_proxy,omitempty"` // Comma-separated list of hosts to bypass proxy
	ProxyWarmup    bool   `yaml:"proxy_warmup,omitempty"`
	ProxyWarmupURL string `yaml:"proxy_warmup_url,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Parallel:      constants.DefaultParallel,
		OnDuplicated:  paths.Skip.String(),
		OnUnsupported: extract.SkipUnsupported.String(),
		UserAgent:     constants.DefaultUserAgent,
		ProxyMode:     ProxyModeNone,
	}
}

// Load builds the effective configuration: defaults, then the file at path
// (if it exists), then DLXT_* environment variables. Flags are applied by the
// caller afterwards. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.mergeFile(path); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return c.mergeCSV(path)
	case ".yaml", ".yml", "":
		return c.mergeYAML(path)
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}
}

// ApplyEnv overrides fields from DLXT_* variables. lookup is os.LookupEnv in
// production and a map lookup in tests. The proxy password is accepted here
// and never from files.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, s := range settings {
		name := s.envName(constants.EnvPrefix)
		v, ok := lookup(name)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if err := s.set(c, v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	return nil
}

// Validate rejects settings the commands cannot act on.
func (c *Config) Validate() error {
	if c.Parallel <= 0 {
		return fmt.Errorf("parallel must be positive, got %d", c.Parallel)
	}
	if c.Parallel > constants.MaxParallel {
		return fmt.Errorf("parallel must be at most %d, got %d", constants.MaxParallel, c.Parallel)
	}
	if _, err := c.CollisionPolicy(); err != nil {
		return err
	}
	if _, err := c.UnsupportedPolicy(); err != nil {
		return err
	}

	switch strings.ToLower(c.ProxyMode) {
	case "", ProxyModeNone, ProxyModeSystem:
	case ProxyModeBasic, ProxyModeNTLM:
		if c.ProxyHost == "" {
			return fmt.Errorf("proxy mode %s requires a proxy host", c.ProxyMode)
		}
	default:
		return fmt.Errorf("unsupported proxy mode: %s", c.ProxyMode)
	}
	if c.ProxyPort < 0 || c.ProxyPort > 65535 {
		return fmt.Errorf("invalid proxy port: %d", c.ProxyPort)
	}
	return nil
}

// CollisionPolicy parses OnDuplicated.
func (c *Config) CollisionPolicy() (paths.CollisionPolicy, error) {
	return paths.ParseCollisionPolicy(c.OnDuplicated)
}

// UnsupportedPolicy parses OnUnsupported.
func (c *Config) UnsupportedPolicy() (extract.UnsupportedPolicy, error) {
	return extract.ParseUnsupportedPolicy(c.OnUnsupported)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.ProxyPassword != "" {
		out.ProxyPassword = "********"
	}
	return &out
}
