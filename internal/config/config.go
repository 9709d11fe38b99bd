package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/zhubert/claudway/internal/errors"
	"github.com/zhubert/claudway/internal/paths"
)

// DefaultCommand is launched in a session when nothing else is configured.
const DefaultCommand = "claude"

// DefaultCommandEnv overrides the configured default command when set.
const DefaultCommandEnv = "CW_DEFAULT_COMMAND"

// DefaultExcludePatterns keeps large or regenerable files out of the
// untracked-file copy. Gitignore syntax.
var DefaultExcludePatterns = []string{
	"node_modules/",
	".venv/",
	"venv/",
	"__pycache__/",
	".next/",
	".turbo/",
	".nuxt/",
	".cache/",
	"dist/",
	"build/",
	"coverage/",
	"*.sqlite3",
	"*.db",
	"*.pyc",
	".DS_Store",
	".coverage",
}

// DefaultLinkTargets are dependency directories symlinked from the main
// checkout instead of copied.
var DefaultLinkTargets = []string{
	"node_modules",
	"web/node_modules",
	"mamba/venv",
}

// Config holds the user-wide settings stored in config.json.
type Config struct {
	DefaultCommand       string   `json:"default_command,omitempty"`
	RepoLocation         string   `json:"repo_location,omitempty"`
	ExcludePatterns      []string `json:"exclude_patterns,omitempty"`
	LinkTargets          []string `json:"link_targets,omitempty"`
	NotificationsEnabled bool     `json:"notifications_enabled,omitempty"`

	mu       sync.RWMutex
	filePath string
}

// Load reads config.json, returning an empty config if the file does not exist.
func Load() (*Config, error) {
	path, err := paths.ConfigFilePath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Save writes back to the same path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{filePath: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.ConfigLoadFailed(path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.ConfigLoadFailed(path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the config is internally consistent.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.RepoLocation != "" && !filepath.IsAbs(c.RepoLocation) {
		return errors.E(errors.Op("config.Validate"), errors.KindInvalid,
			fmt.Sprintf("repo_location must be absolute, got %q", c.RepoLocation))
	}
	for _, target := range c.LinkTargets {
		if err := ValidateLinkTarget(target); err != nil {
			return err
		}
	}
	for _, pattern := range c.ExcludePatterns {
		if strings.TrimSpace(pattern) == "" {
			return errors.E(errors.Op("config.Validate"), errors.KindInvalid, "empty exclude pattern")
		}
	}
	return nil
}

// ValidateLinkTarget rejects link targets that would escape the worktree.
func ValidateLinkTarget(target string) error {
	switch {
	case target == "":
		return errors.E(errors.Op("config.Validate"), errors.KindInvalid, "empty link target")
	case filepath.IsAbs(target):
		return errors.E(errors.Op("config.Validate"), errors.KindInvalid,
			fmt.Sprintf("link target %q must be relative", target))
	case slices.Contains(strings.Split(filepath.ToSlash(target), "/"), ".."):
		return errors.E(errors.Op("config.Validate"), errors.KindInvalid,
			fmt.Sprintf("link target %q must stay inside the repository", target))
	}
	return nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filePath == "" {
		path, err := paths.ConfigFilePath()
		if err != nil {
			return err
		}
		c.filePath = path
	}

	if err := os.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		return errors.ConfigSaveFailed(c.filePath, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.ConfigSaveFailed(c.filePath, err)
	}
	if err := os.WriteFile(c.filePath, data, 0644); err != nil {
		return errors.ConfigSaveFailed(c.filePath, err)
	}
	return nil
}

// FilePath returns where Save writes.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filePath
}

// GetDefaultCommand returns the stored default command, or "" if unset.
func (c *Config) GetDefaultCommand() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DefaultCommand
}

// SetDefaultCommand stores the command launched when -c is not given.
func (c *Config) SetDefaultCommand(command string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DefaultCommand = strings.TrimSpace(command)
}

// GetRepoLocation returns the fallback repository used outside a checkout.
func (c *Config) GetRepoLocation() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RepoLocation
}

// SetRepoLocation stores the fallback repository.
func (c *Config) SetRepoLocation(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RepoLocation = path
}

// GetExcludePatterns returns the configured exclude patterns, or the defaults.
func (c *Config) GetExcludePatterns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.ExcludePatterns) == 0 {
		return slices.Clone(DefaultExcludePatterns)
	}
	return slices.Clone(c.ExcludePatterns)
}

// GetLinkTargets returns the configured link targets, or the defaults.
func (c *Config) GetLinkTargets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.LinkTargets) == 0 {
		return slices.Clone(DefaultLinkTargets)
	}
	return slices.Clone(c.LinkTargets)
}

// GetNotificationsEnabled reports whether a desktop notification is sent when
// the session command exits.
func (c *Config) GetNotificationsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.NotificationsEnabled
}

// SetNotificationsEnabled toggles desktop notifications.
func (c *Config) SetNotificationsEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NotificationsEnabled = enabled
}
