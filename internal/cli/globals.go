package cli

import (
	"os"

	"golang.org/x/term"
)

// Globals holds global flags available to all commands
type Globals struct {
	Output     string `help:"Output format for auxiliary commands" default:"auto" enum:"json,plain,rich,auto" short:"o" env:"GITVAULT_OUTPUT"`
	Verbose    bool   `help:"Verbose output" short:"v" env:"GITVAULT_VERBOSE"`
	NoInput    bool   `help:"Disable interactive prompts (fail instead)" env:"GITVAULT_NO_INPUT"`
	ConfigFile string `help:"Config file path override" name:"config" type:"path" env:"GITVAULT_CONFIG"`
}

// ResolvedOutput returns the effective output mode.
// "auto" detects TTY: if stdout is a TTY -> rich, else -> plain. Protocol
// operations bypass the formatter entirely, so this only shapes the
// auxiliary commands.
func (g *Globals) ResolvedOutput() string {
	if g.Output != "auto" {
		return g.Output
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "rich"
	}

	return "plain"
}
