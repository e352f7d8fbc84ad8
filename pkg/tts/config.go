package tts

import (
	"fmt"
	"time"
)

// Config holds the engine process settings for the generation pipeline.
// Values are populated from the config file and may be overridden through
// the environment.
type Config struct {
	// Command is the engine service executable.
	Command string `yaml:"command" env:"ECLO_ENGINE_COMMAND"`
	// Args are fixed arguments placed before the per-request arguments,
	// e.g. the service script path when Command is a Python interpreter.
	Args []string `yaml:"args" env:"ECLO_ENGINE_ARGS" envSeparator:" "`
	// OutputDir is where generated audio lands when a request does not
	// name a directory.
	OutputDir string `yaml:"output_dir" env:"ECLO_OUTPUT_DIR"`
	// OutputFormat is the default audio container extension.
	OutputFormat string `yaml:"output_format" env:"ECLO_OUTPUT_FORMAT"`
	// Timeout bounds a single generation. Zero disables the bound and lets
	// the engine run to exit.
	Timeout time.Duration `yaml:"timeout" env:"ECLO_ENGINE_TIMEOUT"`
}

// DefaultConfig returns the engine settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Command:      "eclo-engine",
		OutputFormat: "wav",
	}
}

// Validate checks the configuration for values that can never work.
func (c Config) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("engine command must not be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("engine timeout must not be negative")
	}
	return nil
}
