// Package config handles configuration loading and management for kdb.
// It supports XDG config paths, project-level overrides, and KDB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for kdb.
type Config struct {
	CacheDir string         `mapstructure:"cache_dir"`
	Threads  int            `mapstructure:"threads"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Download DownloadConfig `mapstructure:"download"`
	Build    BuildConfig    `mapstructure:"build"`
	History  HistoryConfig  `mapstructure:"history"`
}

// ToolsConfig names the collaborator executables.
type ToolsConfig struct {
	Download string `mapstructure:"download"`
	Build    string `mapstructure:"build"`
}

// DownloadConfig holds ncbi-genome-download settings.
type DownloadConfig struct {
	// Section is the NCBI section (refseq or genbank).
	Section string `mapstructure:"section"`
	// Format is the file format requested from NCBI.
	Format string `mapstructure:"format"`
	// AssemblyLevel restricts assemblies (complete, chromosome, scaffold, contig, all).
	AssemblyLevel string `mapstructure:"assembly_level"`
	// Retries is passed through as --retries.
	Retries int `mapstructure:"retries"`
}

// BuildConfig holds kraken2-build defaults.
type BuildConfig struct {
	SkipMaps     bool `mapstructure:"skip_maps"`
	CleanStaging bool `mapstructure:"clean_staging"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (KDB_THREADS, KDB_CACHE_DIR, KDB_TOOLS_BUILD, ...)
// 2. Project config (.kdb.yaml in current directory or parent)
// 3. User config (~/.config/kdb/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file, still honoring
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

// LoadUserFile loads only the file at path over the built-in defaults.
// Environment variables and project overrides are ignored, so the result can
// be written back with Save without capturing them.
func LoadUserFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(GetUserConfigPath())

	v.Set("cache_dir", cfg.CacheDir)
	v.Set("threads", cfg.Threads)
	v.Set("tools.download", cfg.Tools.Download)
	v.Set("tools.build", cfg.Tools.Build)
	v.Set("download.section", cfg.Download.Section)
	v.Set("download.format", cfg.Download.Format)
	v.Set("download.assembly_level", cfg.Download.AssemblyLevel)
	v.Set("download.retries", cfg.Download.Retries)
	v.Set("build.skip_maps", cfg.Build.SkipMaps)
	v.Set("build.clean_staging", cfg.Build.CleanStaging)
	v.Set("history.enabled", cfg.History.Enabled)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetUserPresetsPath returns the path to the optional user preset catalog.
func GetUserPresetsPath() string {
	return filepath.Join(getUserConfigDir(), "presets.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// StagingDir returns the default staging area for a database label.
func (c *Config) StagingDir(dbName string) string {
	return filepath.Join(c.CacheDir, "staging", dbName)
}

// TaxonomyDir returns the shared taxonomy directory inside the cache.
func (c *Config) TaxonomyDir() string {
	return filepath.Join(c.CacheDir, "taxonomy")
}

// LogPath returns the path of the kdb log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.CacheDir, "logs", "kdb.log")
}

// HistoryPath returns the path of the run history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.CacheDir, "history.db")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("KDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.CacheDir = expandPath(cfg.CacheDir)
	if cfg.CacheDir != "" {
		abs, err := filepath.Abs(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("resolving cache_dir: %w", err)
		}
		cfg.CacheDir = abs
	}
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("threads", d.Threads)

	v.SetDefault("tools.download", d.Tools.Download)
	v.SetDefault("tools.build", d.Tools.Build)

	v.SetDefault("download.section", d.Download.Section)
	v.SetDefault("download.format", d.Download.Format)
	v.SetDefault("download.assembly_level", d.Download.AssemblyLevel)
	v.SetDefault("download.retries", d.Download.Retries)

	v.SetDefault("build.skip_maps", d.Build.SkipMaps)
	v.SetDefault("build.clean_staging", d.Build.CleanStaging)

	v.SetDefault("history.enabled", d.History.Enabled)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		CacheDir: defaultCacheDir(),
		Threads:  runtime.NumCPU(),
		Tools: ToolsConfig{
			Download: "ncbi-genome-download",
			Build:    "kraken2-build",
		},
		Download: DownloadConfig{
			Section:       "refseq",
			Format:        "fasta",
			AssemblyLevel: "complete",
			Retries:       3,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// getUserConfigDir returns the XDG config directory for kdb.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "kdb")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "kdb")
	}
	return filepath.Join(home, ".config", "kdb")
}

// defaultCacheDir returns $XDG_CACHE_HOME/kdb, ~/Library/Caches/kdb on macOS,
// or ~/.cache/kdb.
func defaultCacheDir() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, "kdb")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".cache", "kdb")
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Caches", "kdb")
	}
	return filepath.Join(home, ".cache", "kdb")
}

// findProjectConfig searches for .kdb.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".kdb.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandPath expands ${VAR} references and a leading ~.
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
