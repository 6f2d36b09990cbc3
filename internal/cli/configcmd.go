package cli

import (
	"fmt"
	"os"

	"github.com/semmy-space/gitvault/internal/config"
	"github.com/semmy-space/gitvault/internal/output"
)

// ConfigCmd groups the configuration subcommands.
type ConfigCmd struct {
	Get   ConfigGetCmd        `cmd:"" help:"Get a config value"`
	Set   ConfigSetCmd        `cmd:"" help:"Set a config value"`
	Unset ConfigUnsetCmd      `cmd:"" help:"Remove a config value"`
	List  ConfigListConfigCmd `cmd:"" help:"List all config values"`
	Path  ConfigPathCmd       `cmd:"" help:"Show the config file path"`
}

// ConfigGetCmd implements config get command
type ConfigGetCmd struct {
	Key string `arg:"" help:"Config key to get (e.g., vault_address, auth_method)"`
}

// Run executes the get command
func (cmd *ConfigGetCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	value, err := cfg.Get(cmd.Key)
	if err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Unknown config key: %s", cmd.Key),
			ExitCode: output.ExitNotFound,
		}
	}

	// Print value to stdout
	fmt.Println(value)
	return nil
}

// ConfigSetCmd implements config set command
type ConfigSetCmd struct {
	Key   string `arg:"" help:"Config key to set"`
	Value string `arg:"" help:"Value to set"`
}

// Run executes the set command
func (cmd *ConfigSetCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	// Validate key exists
	if _, err := cfg.Get(cmd.Key); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Unknown config key: %s", cmd.Key),
			ExitCode: output.ExitUsage,
		}
	}

	if err := cfg.Set(cmd.Key, cmd.Value); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to set config: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}

	// Reject values the rest of the tool would refuse to load.
	if err := cfg.Validate(); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Invalid value for %s: %v", cmd.Key, err),
			ExitCode: output.ExitUsage,
		}
	}

	if err := cfg.Save(); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to save config: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}

	fmt.Fprintf(os.Stderr, "Set %s = %s\n", cmd.Key, cmd.Value)
	return nil
}

// ConfigUnsetCmd implements config unset command
type ConfigUnsetCmd struct {
	Key string `arg:"" help:"Config key to remove"`
}

// Run executes the unset command
func (cmd *ConfigUnsetCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	// Validate key exists
	if _, err := cfg.Get(cmd.Key); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Unknown config key: %s", cmd.Key),
			ExitCode: output.ExitUsage,
		}
	}

	if err := cfg.Unset(cmd.Key); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to unset config: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}

	if err := cfg.Save(); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to save config: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}

	fmt.Fprintf(os.Stderr, "Unset %s\n", cmd.Key)
	return nil
}

// ConfigListConfigCmd implements config list command
type ConfigListConfigCmd struct{}

// Run executes the list command
func (cmd *ConfigListConfigCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	type ConfigItem struct {
		Key   string
		Value string
	}

	keys := cfg.Keys()
	items := make([]ConfigItem, 0, len(keys))
	for _, key := range keys {
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		items = append(items, ConfigItem{Key: key, Value: value})
	}

	cols := []output.Column{
		{Name: "Key", Key: "Key"},
		{Name: "Value", Key: "Value"},
	}

	fp.Formatter.PrintList(items, cols)
	return nil
}

// ConfigPathCmd implements config path command
type ConfigPathCmd struct{}

// Run executes the path command
func (cmd *ConfigPathCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	path := config.ConfigPath()

	// Print path to stdout
	fmt.Println(path)

	// Print existence hint to stderr
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "(file does not exist yet - will be created on first write)\n")
	} else {
		fmt.Fprintf(os.Stderr, "(file exists)\n")
	}

	return nil
}
