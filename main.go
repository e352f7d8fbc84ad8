// Package main provides the entry point for the Eclo CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eclo-audio/eclo/internal/history"
	"github.com/eclo-audio/eclo/internal/settings"
	"github.com/eclo-audio/eclo/pkg/tts"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool

	keyword = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#ECFD65"}).Render

	rootCmd = &cobra.Command{
		Use:   "eclo",
		Short: "Local text-to-speech and voice cloning",
		Long: paragraph(
			fmt.Sprintf("\nGenerate speech from text with %s, right on your machine.", keyword("cloned voices")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if debug || viper.GetBool("debug") {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
)

func paragraph(s string) string {
	return lipgloss.NewStyle().Margin(0, 2).Render(wordwrap.String(s, 76))
}

// appScope resolves per-user config and data locations.
var appScope = gap.NewScope(gap.User, "eclo")

// engineConfig builds the generation pipeline settings from the config
// file, with environment variables taking precedence.
func engineConfig() (tts.Config, error) {
	cfg := tts.DefaultConfig()
	if v := viper.GetString("engine.command"); v != "" {
		cfg.Command = v
	}
	if v := viper.GetStringSlice("engine.args"); len(v) > 0 {
		cfg.Args = v
	}
	if v := viper.GetString("engine.output_dir"); v != "" {
		cfg.OutputDir = v
	}
	if v := viper.GetString("engine.output_format"); v != "" {
		cfg.OutputFormat = v
	}
	if v := viper.GetDuration("engine.timeout"); v > 0 {
		cfg.Timeout = v
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse engine environment: %w", err)
	}
	return cfg, nil
}

// openSettings opens the user settings store next to the config file.
func openSettings() (*settings.Store, error) {
	path := viper.GetString("settings_file")
	if path == "" {
		p, err := appScope.ConfigPath("settings.yml")
		if err != nil {
			return nil, fmt.Errorf("unable to resolve settings path: %w", err)
		}
		path = p
	}
	return settings.Open(path)
}

// openHistory opens the generation ledger in the user data directory.
func openHistory() (*history.Store, error) {
	path := viper.GetString("history_file")
	if path == "" {
		p, err := appScope.DataPath("history.db")
		if err != nil {
			return nil, fmt.Errorf("unable to resolve history path: %w", err)
		}
		path = p
	}
	return history.Open(path, viper.GetInt("history_limit"), log.Default())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	viper.SetDefault("history_limit", history.DefaultLimit)

	rootCmd.AddCommand(generateCmd, enginesCmd, historyCmd, configCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	dirs, err := appScope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "eclo")}, dirs...)
	}

	if c := os.Getenv("ECLO_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("eclo")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("eclo")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], "eclo.yml")
}
