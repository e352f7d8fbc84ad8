package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eclo-audio/eclo/internal/settings"
)

const defaultConfig = `# enable debug logging
debug: false

# cap on stored generations; the oldest entry is evicted beyond this
history_limit: 100

# override where user settings and history live
# settings_file: "/path/to/settings.yml"
# history_file: "/path/to/history.db"

# synthesis engine process
engine:
  # engine service executable
  command: "eclo-engine"
  # fixed arguments placed before per-request arguments
  # args: ["service.py"]
  # directory generated audio is written to (defaults to the current dir)
  # output_dir: "~/Music/eclo"
  output_format: "wav"
  # per-generation bound; "0s" lets the engine run to exit
  timeout: "0s"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the eclo config file",
	Long:    paragraph(fmt.Sprintf("\n%s the eclo config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("eclo config\neclo config --config path/to/eclo.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Eclo", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:     "set KEY VALUE",
	Short:   "Update a user setting",
	Long:    paragraph(fmt.Sprintf("\nUpdate a user setting. Known keys: %s.", keyword(strings.Join(settings.Keys(), ", ")))),
	Example: "  eclo config set output_format flac\n  eclo config set watermark true",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sett, err := openSettings()
		if err != nil {
			return err
		}
		if err := sett.SetString(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [KEY]",
	Short: "Show user settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sett, err := openSettings()
		if err != nil {
			return err
		}
		keys := settings.Keys()
		if len(args) == 1 {
			keys = args[:1]
		}
		for _, key := range keys {
			val, err := sett.GetString(key)
			if err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", key, val)
		}
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}
