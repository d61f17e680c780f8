// Package config loads the toolchain's project configuration: a KDL file
// (.tinymist.kdl) describing the workspace, optionally layered with a TOML
// overrides file for per-environment inputs and font roots.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
	"github.com/Myriad-Dreamin/tinymist-core/pkg/pathutil"
)

// Project names the workspace and its main file.
type Project struct {
	Root  string
	Name  string
	Entry string
}

// Compile configures the compile worlds: sys inputs and font directories.
type Compile struct {
	Inputs    map[string]string
	FontPaths []string
}

// Watch configures the filesystem watcher.
type Watch struct {
	Enabled    bool
	DebounceMs int
	Include    []string
	Exclude    []string
}

// Config is the merged project configuration.
type Config struct {
	Version int
	Project Project
	Compile Compile
	Watch   Watch
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	root, _ := os.Getwd()
	if root == "" {
		root = "."
	}
	return &Config{
		Version: 1,
		Project: Project{Root: root, Entry: "main.typ"},
		Compile: Compile{Inputs: map[string]string{}},
		Watch: Watch{
			Enabled:    true,
			DebounceMs: 100,
			Include:    []string{"**/*.typ"},
			Exclude:    []string{"**/target/**", "**/.git/**"},
		},
	}
}

// Load reads the KDL config at path (or defaults if it does not exist),
// resolves the project root to an absolute path, applies the TOML overrides
// file tinymist-overrides.toml from that project root when present, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if content, err := os.ReadFile(path); err == nil {
		parsed, err := parseKDL(string(content))
		if err != nil {
			return nil, err
		}
		cfg = parsed
		resolveRoot(cfg, filepath.Dir(path))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	overridesPath := filepath.Join(cfg.Project.Root, "tinymist-overrides.toml")
	if err := applyOverrides(cfg, overridesPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveRoot makes Project.Root absolute, resolving relative roots against
// the directory containing the config file.
func resolveRoot(cfg *Config, configDir string) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = configDir
	}
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(configDir, cfg.Project.Root)
	}
	cfg.Project.Root = filepath.Clean(cfg.Project.Root)
}

// Validate rejects configurations the rest of the toolchain cannot act on.
func (c *Config) Validate() error {
	if c.Project.Entry == "" {
		return fmt.Errorf("project entry must not be empty")
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch debounce_ms must not be negative, got %d", c.Watch.DebounceMs)
	}
	for _, pattern := range append(append([]string(nil), c.Watch.Include...), c.Watch.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}
	return nil
}

// EntryPath returns the absolute path of the configured entry file.
func (c *Config) EntryPath() string {
	return pathutil.ToAbsolute(c.Project.Entry, c.Project.Root)
}

// EntryId returns the workspace-relative identity of the entry file.
func (c *Config) EntryId() (fileid.FileId, bool) {
	return pathutil.FileIdForPath(c.EntryPath(), c.Project.Root)
}
