package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yakshave/yak/internal/history"
)

// Config represents the complete yak configuration
type Config struct {
	Paths  PathsConfig  `yaml:"paths"`
	Sync   SyncConfig   `yaml:"sync"`
	Author AuthorConfig `yaml:"author"`
	Serve  ServeConfig  `yaml:"serve"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	// RepoDir is the git repository whose object store holds the sync
	// history. Empty means: discover the repository from the working
	// directory.
	RepoDir string `yaml:"repo_dir"`
	// YaksDir is the directory holding the item directories. Empty means
	// ".yaks" under the repository root.
	YaksDir string `yaml:"yaks_dir"`
}

// SyncConfig configures replication behavior
type SyncConfig struct {
	// Remote is the git remote to fetch from and push to. Unset defaults
	// to "origin"; an explicit empty string disables remote replication
	// entirely (local-only operation).
	Remote *string `yaml:"remote"`
}

// AuthorConfig configures commit authorship. Empty fields fall back to the
// repository's user.name / user.email, then to built-in defaults.
type AuthorConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// ServeConfig configures the webhook server
type ServeConfig struct {
	ListenAddr        string `yaml:"listen_addr"`
	WebhookSecretFile string `yaml:"webhook_secret_file"`
	// AllowedRefs filters which pushed refs trigger a sync. Unset means
	// the sync ref only; an explicit empty list allows every ref.
	AllowedRefs []string `yaml:"allowed_refs"`
}

// Load reads and parses the configuration file. A missing file is not an
// error: the returned config carries defaults only.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Paths.RepoDir = os.ExpandEnv(c.Paths.RepoDir)
	c.Paths.YaksDir = os.ExpandEnv(c.Paths.YaksDir)
	if c.Sync.Remote != nil {
		*c.Sync.Remote = os.ExpandEnv(*c.Sync.Remote)
	}
	c.Serve.ListenAddr = os.ExpandEnv(c.Serve.ListenAddr)
	c.Serve.WebhookSecretFile = os.ExpandEnv(c.Serve.WebhookSecretFile)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Serve.ListenAddr == "" {
		c.Serve.ListenAddr = ":9876"
	}
	if c.Serve.AllowedRefs == nil {
		c.Serve.AllowedRefs = []string{history.SyncRef}
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Paths.RepoDir != "" && !filepath.IsAbs(c.Paths.RepoDir) {
		return fmt.Errorf("paths.repo_dir must be an absolute path: %s", c.Paths.RepoDir)
	}
	if c.Paths.YaksDir != "" && !filepath.IsAbs(c.Paths.YaksDir) {
		return fmt.Errorf("paths.yaks_dir must be an absolute path: %s", c.Paths.YaksDir)
	}
	return nil
}

// RemoteName returns the remote to replicate with. Unset resolves to
// "origin"; an explicitly empty value stays empty and disables fetch/push.
func (c *Config) RemoteName() string {
	if c.Sync.Remote == nil {
		return "origin"
	}
	return *c.Sync.Remote
}

// YaksDirIn returns the configured yaks directory, defaulting to ".yaks"
// under the given repository root.
func (c *Config) YaksDirIn(repoRoot string) string {
	if c.Paths.YaksDir != "" {
		return c.Paths.YaksDir
	}
	return filepath.Join(repoRoot, ".yaks")
}
