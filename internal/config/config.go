// Package config holds the project file a githerd working set is driven by.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// FileName is the project file githerd looks for in the working directory.
const FileName = ".githerd.toml"

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	defaultTokenEnv  = "GITHERD_TOKEN"
	defaultStateDir  = ".githerd"
)

var supportedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var supportedLogFormats = map[string]struct{}{
	"text": {},
	"json": {},
}

// Auth configures the credential source for remote operations.
type Auth struct {
	// TokenEnv names the environment variable holding the hosting token.
	TokenEnv string `toml:"token_env,omitempty"`

	// BaseURL points at a GitHub Enterprise instance. Empty means github.com.
	BaseURL string `toml:"base_url,omitempty"`
}

// Config captures the working set and runtime options, sourced from the
// project file with environment-variable overrides on top.
type Config struct {
	// Roots lists the repository working copies operations run over.
	Roots []string `toml:"roots"`

	// GitPath is the git binary to invoke. Empty means "git" from PATH.
	GitPath string `toml:"git_path,omitempty"`

	LogLevel  string `toml:"log_level,omitempty"`
	LogFormat string `toml:"log_format,omitempty"`

	// StateDir is where rebase state and the subsystem lock live.
	StateDir string `toml:"state_dir,omitempty"`

	Auth Auth `toml:"auth,omitempty"`
}

// Default returns a config with every optional field at its default.
func Default() *Config {
	return &Config{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
		StateDir:  defaultStateDir,
		Auth:      Auth{TokenEnv: defaultTokenEnv},
	}
}

// Load reads the project file at path, applies environment overrides and
// defaults, resolves relative paths against the file's directory and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config not found: %w (run 'githerd init' first)", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.applyEnv()
	cfg.normalize(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validation error messages for required config fields.
const (
	ErrMsgNoRoots = "roots must list at least one repository"
)

// Validate checks that required fields are present and enum fields hold
// supported values.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Roots) == 0 {
		errs = append(errs, errors.New(ErrMsgNoRoots))
	}
	seen := make(map[string]struct{}, len(c.Roots))
	for _, root := range c.Roots {
		if _, dup := seen[root]; dup {
			errs = append(errs, fmt.Errorf("root %s listed twice", root))
		}
		seen[root] = struct{}{}
	}
	if _, ok := supportedLogLevels[c.LogLevel]; !ok {
		errs = append(errs, fmt.Errorf("unsupported log level %q", c.LogLevel))
	}
	if _, ok := supportedLogFormats[c.LogFormat]; !ok {
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Token reads the hosting token from the configured environment variable.
func (c *Config) Token() string {
	if c.Auth.TokenEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.Auth.TokenEnv))
}

// applyEnv lets the process environment override file values.
func (c *Config) applyEnv() {
	c.GitPath = envOrDefault("GITHERD_GIT_PATH", c.GitPath)
	c.LogLevel = envOrDefault("GITHERD_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOrDefault("GITHERD_LOG_FORMAT", c.LogFormat)
	c.StateDir = envOrDefault("GITHERD_STATE_DIR", c.StateDir)
	c.Auth.BaseURL = envOrDefault("GITHERD_BASE_URL", c.Auth.BaseURL)
}

// normalize fills defaults for empty fields and resolves relative paths
// against base, so commands behave the same from any working directory.
func (c *Config) normalize(base string) {
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	if c.StateDir == "" {
		c.StateDir = defaultStateDir
	}
	if c.Auth.TokenEnv == "" {
		c.Auth.TokenEnv = defaultTokenEnv
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.StateDir = resolve(base, c.StateDir)
	for i, root := range c.Roots {
		c.Roots[i] = resolve(base, strings.TrimSpace(root))
	}
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// scanDepth caps how deep DiscoverRoots descends below the starting
// directory.
const scanDepth = 3

// skippedDirs are directory names never worth descending into.
var skippedDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"__pycache__":  {},
}

// DiscoverRoots walks dir looking for git working copies and returns their
// roots in walk order. Hidden directories and common dependency or build
// directories are skipped.
func DiscoverRoots(dir string) ([]string, error) {
	var roots []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr == nil && strings.Count(rel, string(filepath.Separator)) > scanDepth {
			return filepath.SkipDir
		}
		name := d.Name()
		if name == ".git" {
			roots = append(roots, filepath.Dir(path))
			return filepath.SkipDir
		}
		if path != dir && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if _, skip := skippedDirs[name]; skip {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roots, nil
}
