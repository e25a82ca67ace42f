package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Fudheryk/monitoring-client/internal/config/validate"
	"gopkg.in/yaml.v3"
)

// Config holds every knob of the release pipeline. A single YAML file
// (release.yaml) parameterizes what the historical script variants duplicated.
type Config struct {
	App     AppConfig     `yaml:"app" json:"app"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Version VersionConfig `yaml:"version" json:"version"`
	Build   BuildConfig   `yaml:"build" json:"build"`
	Deb     DebConfig     `yaml:"deb" json:"deb"`
	Rpm     RpmConfig     `yaml:"rpm" json:"rpm"`
	Tarball TarballConfig `yaml:"tarball" json:"tarball"`
	Publish PublishConfig `yaml:"publish" json:"publish"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// AppConfig identifies the packaged application.
type AppConfig struct {
	Name        string `yaml:"name" json:"name"`               // package name (monitoring-client)
	Binary      string `yaml:"binary" json:"binary"`           // frozen binary name
	Summary     string `yaml:"summary" json:"summary"`         // one-line description
	Description string `yaml:"description" json:"description"` // long description
	Maintainer  string `yaml:"maintainer" json:"maintainer"`
	Homepage    string `yaml:"homepage" json:"homepage"`
}

// PathsConfig separates pipeline-side paths (source, dist, staging) from
// target-side install paths baked into the packages.
type PathsConfig struct {
	SourceDir    string `yaml:"source_dir" json:"source_dir"`       // python source tree
	DistDir      string `yaml:"dist_dir" json:"dist_dir"`           // final artifacts
	BuildDir     string `yaml:"build_dir" json:"build_dir"`         // freezer scratch
	StagingDir   string `yaml:"staging_dir" json:"staging_dir"`     // package staging trees
	PackagingDir string `yaml:"packaging_dir" json:"packaging_dir"` // shipped assets (example config, schema)

	BinDir    string `yaml:"bin_dir" json:"bin_dir"`       // /usr/local/bin
	OptDir    string `yaml:"opt_dir" json:"opt_dir"`       // /opt/<app>
	ConfigDir string `yaml:"config_dir" json:"config_dir"` // defaults to <opt_dir>/config; deployment choice
	LogDir    string `yaml:"log_dir" json:"log_dir"`       // /var/log/<app>
	CacheDir  string `yaml:"cache_dir" json:"cache_dir"`   // /var/cache/<app>, deleted on any removal
	UnitDir   string `yaml:"unit_dir" json:"unit_dir"`     // systemd unit directory
}

// VersionTargetKind selects how a propagation target stores the version.
type VersionTargetKind string

const (
	TargetRaw            VersionTargetKind = "raw"             // whole-file version string
	TargetPythonConstant VersionTargetKind = "python-constant" // __version__ = "X.Y.Z"
	TargetYAMLField      VersionTargetKind = "yaml-field"      // <key>: X.Y.Z
)

// VersionTarget is one file the authority propagates the version into.
type VersionTarget struct {
	Path string            `yaml:"path" json:"path"`
	Kind VersionTargetKind `yaml:"kind" json:"kind"`
	Key  string            `yaml:"key,omitempty" json:"key,omitempty"` // yaml-field only
}

// VersionConfig enumerates the canonical file and every propagation target.
type VersionConfig struct {
	File    string          `yaml:"file" json:"file"` // canonical version file
	Targets []VersionTarget `yaml:"targets" json:"targets"`
}

// BuildConfig controls the binary freeze step.
type BuildConfig struct {
	SpecFile           string   `yaml:"spec_file" json:"spec_file"`                       // PyInstaller spec
	PythonPackage      string   `yaml:"python_package" json:"python_package"`             // pip name uninstalled pre-build
	StrictVersionCheck bool     `yaml:"strict_version_check" json:"strict_version_check"` // mismatch fatal vs warn
	CleanPaths         []string `yaml:"clean_paths" json:"clean_paths"`                   // soft-fail cleanup targets
}

type DebConfig struct {
	Arch       string `yaml:"arch" json:"arch"`
	Section    string `yaml:"section" json:"section"`
	Priority   string `yaml:"priority" json:"priority"`
	MinSystemd string `yaml:"min_systemd" json:"min_systemd"` // Depends: systemd (>= X)
}

type RpmConfig struct {
	Arch        string `yaml:"arch" json:"arch"`
	Release     string `yaml:"release" json:"release"`
	License     string `yaml:"license" json:"license"`
	UseDocker   bool   `yaml:"use_docker" json:"use_docker"`
	DockerImage string `yaml:"docker_image" json:"docker_image"`
}

type TarballConfig struct {
	Formats []string `yaml:"formats" json:"formats"` // "gz", "xz"
}

type PublishConfig struct {
	Repo       string `yaml:"repo" json:"repo"` // owner/name for gh
	Remote     string `yaml:"remote" json:"remote"`
	Branch     string `yaml:"branch" json:"branch"`
	SigningKey string `yaml:"signing_key" json:"signing_key"` // armored key file, empty = no signing
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file,omitempty" json:"file,omitempty"`
}

// Global singleton variables
var (
	globalInstance *Config
	globalMutex    sync.RWMutex
	once           sync.Once
)

// SetGlobal sets the global config instance (call once at startup in main.go).
func SetGlobal(config *Config) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalInstance = config
}

// Global returns the global config instance.
func Global() *Config {
	once.Do(func() {
		globalMutex.Lock()
		defer globalMutex.Unlock()
		if globalInstance == nil {
			globalInstance = Default()
		}
	})

	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalInstance
}

// Default returns a Config with the standard monitoring-client layout.
func Default() *Config {
	appName := "monitoring-client"

	return &Config{
		App: AppConfig{
			Name:    appName,
			Binary:  appName,
			Summary: "Lightweight monitoring agent",
			Description: "Collects system, service and custom vendor metrics on a periodic\n" +
				"systemd timer and ships them to the monitoring backend.",
			Maintainer: "Monitoring Client Maintainers <maintainers@example.com>",
		},
		Paths: PathsConfig{
			SourceDir:    ".",
			DistDir:      "dist",
			BuildDir:     "build",
			StagingDir:   "staging",
			PackagingDir: "packaging",

			BinDir:    "/usr/local/bin",
			OptDir:    "/opt/" + appName,
			ConfigDir: "/opt/" + appName + "/config",
			LogDir:    "/var/log/" + appName,
			CacheDir:  "/var/cache/" + appName,
			UnitDir:   "/etc/systemd/system",
		},
		Version: VersionConfig{
			File: "VERSION",
			Targets: []VersionTarget{
				{Path: "src/monitoring_client/__init__.py", Kind: TargetPythonConstant},
				{Path: "packaging/manifest.yaml", Kind: TargetYAMLField, Key: "client_version"},
			},
		},
		Build: BuildConfig{
			SpecFile:           "packaging/monitoring-client.spec",
			PythonPackage:      "monitoring-client",
			StrictVersionCheck: true,
			CleanPaths:         []string{"build", "__pycache__"},
		},
		Deb: DebConfig{
			Arch:       "amd64",
			Section:    "admin",
			Priority:   "optional",
			MinSystemd: "219",
		},
		Rpm: RpmConfig{
			Arch:        "x86_64",
			Release:     "1",
			License:     "Proprietary",
			UseDocker:   false,
			DockerImage: "rockylinux:9",
		},
		Tarball: TarballConfig{
			Formats: []string{"gz"},
		},
		Publish: PublishConfig{
			Remote: "origin",
			Branch: "main",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "mc-release.log",
		},
	}
}

// FindConfigFile looks for release.yaml in the working directory.
func FindConfigFile() string {
	for _, candidate := range []string{"release.yaml", "release.yml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Load reads configuration from the specified path, merges it over defaults
// and validates the result against the embedded JSON schema.
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return config, nil // defaults when no file exists
		}
		return nil, fmt.Errorf("accessing config file %s: %w", configPath, err)
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml)", ext)
	}

	// Convert to JSON for schema validation
	jsonData, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("converting config to JSON for validation: %w", err)
	}
	if err := validate.ValidateConfigJSON(jsonData); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks constraints the JSON schema cannot express.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name must not be empty")
	}
	if c.App.Binary == "" {
		return fmt.Errorf("app.binary must not be empty")
	}
	if c.Version.File == "" {
		return fmt.Errorf("version.file must not be empty")
	}
	for i, t := range c.Version.Targets {
		switch t.Kind {
		case TargetRaw, TargetPythonConstant:
		case TargetYAMLField:
			if t.Key == "" {
				return fmt.Errorf("version.targets[%d]: yaml-field target requires a key", i)
			}
		default:
			return fmt.Errorf("version.targets[%d]: unknown kind %q", i, t.Kind)
		}
	}
	for _, f := range c.Tarball.Formats {
		if f != "gz" && f != "xz" {
			return fmt.Errorf("tarball.formats: unsupported format %q", f)
		}
	}
	return nil
}

// BinaryPath returns where the freezer writes the final binary.
func (c *Config) BinaryPath() string {
	return filepath.Join(c.Paths.DistDir, c.App.Binary)
}

// InstalledBinaryPath returns the target-side binary path.
func (c *Config) InstalledBinaryPath() string {
	return filepath.Join(c.Paths.BinDir, c.App.Binary)
}
