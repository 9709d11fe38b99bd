package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/zhubert/claudway/internal/errors"
)

// RepoConfigFile is the per-repository override file at the repository root.
const RepoConfigFile = ".claudway.yaml"

// RepoConfig is the optional per-repository configuration. Lists extend the
// global settings rather than replacing them.
type RepoConfig struct {
	DefaultCommand string   `yaml:"default_command,omitempty"`
	Exclude        []string `yaml:"exclude,omitempty"`
	Link           []string `yaml:"link,omitempty"`
	PostSync       []string `yaml:"post_sync,omitempty"`
}

// LoadRepo reads .claudway.yaml from repoRoot.
// Returns nil, nil if the file does not exist.
func LoadRepo(repoRoot string) (*RepoConfig, error) {
	path := filepath.Join(repoRoot, RepoConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.ConfigLoadFailed(path, err)
	}

	var rc RepoConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, errors.ConfigLoadFailed(path, err)
	}
	for _, target := range rc.Link {
		if err := ValidateLinkTarget(target); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return &rc, nil
}

// Settings is the resolved, read-only view the session lifecycle runs with.
type Settings struct {
	DefaultCommand       string
	Exclude              []string
	Links                []string
	PostSync             []string
	NotificationsEnabled bool
}

// Resolve merges global config, optional repo config and the environment.
// Precedence for the default command: CW_DEFAULT_COMMAND, repo, global, built-in.
func Resolve(cfg *Config, rc *RepoConfig) Settings {
	s := Settings{
		DefaultCommand:       DefaultCommand,
		Exclude:              cfg.GetExcludePatterns(),
		Links:                cfg.GetLinkTargets(),
		NotificationsEnabled: cfg.GetNotificationsEnabled(),
	}
	if cmd := cfg.GetDefaultCommand(); cmd != "" {
		s.DefaultCommand = cmd
	}
	if rc != nil {
		if rc.DefaultCommand != "" {
			s.DefaultCommand = rc.DefaultCommand
		}
		s.Exclude = appendUnique(s.Exclude, rc.Exclude)
		s.Links = appendUnique(s.Links, rc.Link)
		s.PostSync = slices.Clone(rc.PostSync)
	}
	if env := os.Getenv(DefaultCommandEnv); env != "" {
		s.DefaultCommand = env
	}
	return s
}

func appendUnique(base, extra []string) []string {
	out := slices.Clone(base)
	for _, v := range extra {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
