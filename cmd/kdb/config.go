package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kdb-tools/kdb/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify kdb configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/kdb/config.yaml
Project-specific overrides can be placed in .kdb.yaml
Environment variables override both: KDB_THREADS, KDB_CACHE_DIR, KDB_TOOLS_BUILD, ...`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch len(args) {
		case 0:
			displayAllConfig(os.Stdout, cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return invalidArgs(err)
			}
			fmt.Println(value)
			return nil
		default:
			return setConfigKey(args[0], args[1])
		}
	},
}

// configKeys lists every key in display order.
var configKeys = []string{
	"cache_dir",
	"threads",
	"tools.download",
	"tools.build",
	"download.section",
	"download.format",
	"download.assembly_level",
	"download.retries",
	"build.skip_maps",
	"build.clean_staging",
	"history.enabled",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
}

// setConfigKey sets a value in the user config file. It starts from the
// user file alone so project overrides and environment variables are not
// written back.
func setConfigKey(key, value string) error {
	userCfg := config.Default()
	if _, err := os.Stat(config.GetUserConfigPath()); err == nil {
		loaded, err := config.LoadUserFile(config.GetUserConfigPath())
		if err != nil {
			return fmt.Errorf("load user config: %w", err)
		}
		userCfg = loaded
	}

	if err := setConfigValue(userCfg, key, value); err != nil {
		return invalidArgs(err)
	}
	if err := config.Save(userCfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "cache_dir":
		return cfg.CacheDir, nil
	case "threads":
		return strconv.Itoa(cfg.Threads), nil
	case "tools.download":
		return cfg.Tools.Download, nil
	case "tools.build":
		return cfg.Tools.Build, nil
	case "download.section":
		return cfg.Download.Section, nil
	case "download.format":
		return cfg.Download.Format, nil
	case "download.assembly_level":
		return cfg.Download.AssemblyLevel, nil
	case "download.retries":
		return strconv.Itoa(cfg.Download.Retries), nil
	case "build.skip_maps":
		return strconv.FormatBool(cfg.Build.SkipMaps), nil
	case "build.clean_staging":
		return strconv.FormatBool(cfg.Build.CleanStaging), nil
	case "history.enabled":
		return strconv.FormatBool(cfg.History.Enabled), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "cache_dir":
		cfg.CacheDir = value
	case "threads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for threads: %w", err)
		}
		if n < 1 {
			return fmt.Errorf("threads must be at least 1, got %d", n)
		}
		cfg.Threads = n
	case "tools.download":
		cfg.Tools.Download = value
	case "tools.build":
		cfg.Tools.Build = value
	case "download.section":
		switch value {
		case "refseq", "genbank":
			cfg.Download.Section = value
		default:
			return fmt.Errorf("invalid download.section %q (want refseq or genbank)", value)
		}
	case "download.format":
		cfg.Download.Format = value
	case "download.assembly_level":
		cfg.Download.AssemblyLevel = value
	case "download.retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for download.retries: %w", err)
		}
		cfg.Download.Retries = n
	case "build.skip_maps":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for build.skip_maps: %w", err)
		}
		cfg.Build.SkipMaps = b
	case "build.clean_staging":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for build.clean_staging: %w", err)
		}
		cfg.Build.CleanStaging = b
	case "history.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for history.enabled: %w", err)
		}
		cfg.History.Enabled = b
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
