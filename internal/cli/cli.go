package cli

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/gitvault/internal/config"
	"github.com/semmy-space/gitvault/internal/output"
)

// FormatterProvider wraps the formatter interface for Kong binding
type FormatterProvider struct {
	Formatter output.Formatter
}

// CLI is the root command structure.
//
// get/store/erase are the Git credential-helper protocol operations; Git
// invokes them as `git-credential-vault <op>` with the request on stdin.
// The rest are human-facing convenience commands.
type CLI struct {
	Globals

	Get   GetCmd   `cmd:"" help:"Resolve a credential (credential-helper protocol on stdin/stdout)"`
	Store StoreCmd `cmd:"" help:"Accept a credential Git wants remembered (no-op by default)"`
	Erase EraseCmd `cmd:"" help:"Drop a cached credential and revoke its lease best-effort"`

	Status StatusCmd `cmd:"" help:"Show store connectivity, session and cache state"`
	Config ConfigCmd `cmd:"" help:"Configuration commands"`
	Serve  ServeCmd  `cmd:"" help:"Run as a resident daemon on a unix socket"`

	SetupIndex SetupIndexCmd `cmd:"" name:"setup-index" help:"Print package-index environment exports for a host"`

	InstallCompletions kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`
	Version            VersionCmd                   `cmd:"" help:"Show version information"`
}

// BeforeApply hook runs before any command execution.
// It loads config, creates the formatter, and binds dependencies.
func (c *CLI) BeforeApply(ctx *kong.Context) error {
	var cfg *config.Config
	var err error
	if c.ConfigFile != "" {
		cfg, err = config.LoadFrom(c.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return &output.CLIError{
			Message:  err.Error(),
			ExitCode: output.ExitConfigError,
		}
	}

	if c.NoInput {
		// Deeper layers check the env var so the flag reaches them
		// without threading it through every constructor.
		os.Setenv("GITVAULT_NO_INPUT", "1")
	}

	formatter := &FormatterProvider{
		Formatter: output.New(c.ResolvedOutput()),
	}

	ctx.Bind(cfg)
	ctx.Bind(formatter)
	ctx.Bind(&c.Globals)
	ctx.BindTo(NewServiceProvider(cfg), (*Services)(nil))

	return nil
}

// VersionCmd shows version information
type VersionCmd struct{}

func (cmd *VersionCmd) Run(ctx *kong.Context) error {
	version := ctx.Model.Vars()["version"]
	fmt.Println("git-credential-vault version " + version)
	return nil
}
