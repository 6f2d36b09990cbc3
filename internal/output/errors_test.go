package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCLIError(t *testing.T) {
	err := NewCLIError(ExitAuth, "authentication failed")
	assert.Equal(t, ExitAuth, err.ExitCode)
	assert.Equal(t, "authentication failed", err.Message)
	assert.Empty(t, err.Hint)
}

func TestCLIErrorError(t *testing.T) {
	err := &CLIError{Message: "something broke"}
	assert.Equal(t, "something broke", err.Error())
}

func TestCLIErrorWithHint(t *testing.T) {
	err := NewCLIError(ExitAuth, "auth failed")
	result := err.WithHint("Check VAULT_TOKEN or run: git-credential-vault status")

	// Fluent builder returns same pointer
	assert.Same(t, err, result)
	assert.Equal(t, "Check VAULT_TOKEN or run: git-credential-vault status", err.Hint)
}

func TestCLIErrorImplementsError(t *testing.T) {
	var err error = NewCLIError(ExitGeneral, "test")
	assert.Equal(t, "test", err.Error())
}

func TestExitCodesAreDistinct(t *testing.T) {
	codes := []int{ExitOK, ExitGeneral, ExitUsage, ExitAuth, ExitNotFound, ExitConfigError, ExitUnavailable}
	seen := make(map[int]bool)
	for _, c := range codes {
		assert.False(t, seen[c], "exit code %d reused", c)
		seen[c] = true
	}
}
