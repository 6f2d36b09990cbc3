package output

import "fmt"

// Exit codes following sysexits.h convention. Git only distinguishes zero
// from non-zero, but scripts wrapping the helper get a stable taxonomy.
const (
	ExitOK          = 0  // Success (including intentional empty fall-through)
	ExitGeneral     = 1  // General error
	ExitUsage       = 2  // Invalid usage / malformed request
	ExitAuth        = 3  // Secret store rejected authentication
	ExitNotFound    = 4  // Resource not found (config keys etc, never a `get` miss)
	ExitConfigError = 10 // Configuration error
	ExitUnavailable = 11 // Secret store unreachable after retries
)

// CLIError represents a structured error with exit code and optional hint
type CLIError struct {
	ExitCode int
	Message  string
	Hint     string
}

// Error implements the error interface
func (e *CLIError) Error() string {
	return e.Message
}

// NewCLIError creates a new CLIError
func NewCLIError(code int, msg string) *CLIError {
	return &CLIError{
		ExitCode: code,
		Message:  msg,
	}
}

// WithHint adds a user-facing hint to the error
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// ExitWithError prints the error via the formatter. The actual os.Exit call
// belongs in main.go so tests can exercise error paths.
func ExitWithError(formatter Formatter, err error) {
	if cliErr, ok := err.(*CLIError); ok {
		formatter.PrintError(err)
		if cliErr.Hint != "" {
			formatter.PrintHint(cliErr.Hint)
		}
		return
	}

	formatter.PrintError(fmt.Errorf("error: %v", err))
}
