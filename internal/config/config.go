// Package config holds the run configuration for classboot: where submissions
// live, where they are staged, where boot logs go, and which package manager
// drives install and launch.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"classboot/internal/pkgmgr"
)

// DefaultFile is looked up in the working directory when no --config is given.
const DefaultFile = "classboot.yaml"

// LogNaming selects how a sub-project's log file name is derived.
type LogNaming string

const (
	// LogNamingDirname names logs after the sub-project's leaf directory.
	// Two sub-projects with the same leaf name share one log file.
	LogNamingDirname LogNaming = "dirname"
	// LogNamingRelpath qualifies the name with the path relative to the staging root.
	LogNamingRelpath LogNaming = "relpath"
)

// Config is passed to every component at construction time.
type Config struct {
	AssignmentsRoot string    `yaml:"assignments_root"`
	StagingDir      string    `yaml:"staging_dir"`
	LogDir          string    `yaml:"log_dir"`
	ManifestName    string    `yaml:"manifest_name"`
	SkipDirs        []string  `yaml:"skip_dirs"`
	PackageManager  string    `yaml:"package_manager"`
	InstallArgs     []string  `yaml:"install_args,omitempty"`
	LogNaming       LogNaming `yaml:"log_naming"`
	StrictExit      bool      `yaml:"strict_exit"`
	MetricsAddr     string    `yaml:"metrics_addr,omitempty"`
	LogLevel        string    `yaml:"log_level"`
	LogFormat       string    `yaml:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		AssignmentsRoot: "assignments",
		StagingDir:      filepath.Join(".classboot", "staging"),
		LogDir:          filepath.Join(".classboot", "logs"),
		ManifestName:    "package.json",
		SkipDirs:        []string{"node_modules", ".git", ".hg", ".svn"},
		PackageManager:  "npm",
		LogNaming:       LogNamingDirname,
		LogLevel:        "info",
		LogFormat:       "pretty",
	}
}

// LoadFromPath reads a YAML config file on top of Default.
func LoadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Load(data)
}

// Load parses YAML on top of Default. Keys absent from data keep their defaults.
func Load(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, nil
}

// LoadOptional loads path if it is set, falls back to DefaultFile if that
// exists, and otherwise returns Default.
func LoadOptional(path string) (Config, error) {
	if path != "" {
		return LoadFromPath(path)
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return LoadFromPath(DefaultFile)
	}
	return Default(), nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.AssignmentsRoot) == "":
		return errors.New("assignments_root must not be empty")
	case strings.TrimSpace(c.StagingDir) == "":
		return errors.New("staging_dir must not be empty")
	case strings.TrimSpace(c.LogDir) == "":
		return errors.New("log_dir must not be empty")
	case strings.TrimSpace(c.ManifestName) == "":
		return errors.New("manifest_name must not be empty")
	}
	if filepath.Clean(c.StagingDir) == filepath.Clean(c.LogDir) {
		return fmt.Errorf("staging_dir and log_dir must differ (both %q)", c.StagingDir)
	}
	if _, err := pkgmgr.Lookup(c.PackageManager, nil); err != nil {
		return fmt.Errorf("package_manager: %w", err)
	}
	switch c.LogNaming {
	case LogNamingDirname, LogNamingRelpath:
	default:
		return fmt.Errorf("unknown log_naming %q (want %q or %q)", c.LogNaming, LogNamingDirname, LogNamingRelpath)
	}
	switch c.LogFormat {
	case "pretty", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	return nil
}

// InputPath resolves a user-supplied argument against the assignments root.
func (c Config) InputPath(arg string) string {
	return filepath.Join(c.AssignmentsRoot, arg)
}
