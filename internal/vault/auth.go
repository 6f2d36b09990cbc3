package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/semmy-space/gitvault/internal/config"
)

// Method is one way of obtaining a store session. The set is closed and
// selected by configuration at startup; there is no runtime probing.
type Method interface {
	Name() string
	Login(ctx context.Context, c *Client) (*Session, error)
}

// MethodFor returns the configured authentication method.
func MethodFor(cfg *config.Config) (Method, error) {
	switch cfg.AuthMethod {
	case "token":
		return &tokenMethod{file: cfg.TokenFile}, nil
	case "userpass":
		return &userpassMethod{username: cfg.UserpassUsername}, nil
	case "approle":
		return &approleMethod{roleID: cfg.ApproleRoleID}, nil
	default:
		return nil, fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// tokenMethod uses an ambient token: VAULT_TOKEN, then the token file
// (~/.vault-token by default, where `vault login` leaves it).
type tokenMethod struct {
	file string
}

func (m *tokenMethod) Name() string { return "token" }

func (m *tokenMethod) Login(ctx context.Context, c *Client) (*Session, error) {
	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		return &Session{Token: token}, nil
	}

	file := m.file
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: no VAULT_TOKEN and no home directory: %v", ErrAuthFailed, err)
		}
		file = filepath.Join(home, ".vault-token")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: no VAULT_TOKEN set and no token file at %s", ErrAuthFailed, file)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil, fmt.Errorf("%w: token file %s is empty", ErrAuthFailed, file)
	}
	return &Session{Token: token}, nil
}

// userpassMethod authenticates interactively against the userpass backend.
// The password comes from GITVAULT_USERPASS_PASSWORD when set (agent or CI
// supplying it), otherwise from a terminal prompt. The protocol stream owns
// stdin, so the prompt goes through the controlling terminal.
type userpassMethod struct {
	username string
}

func (m *userpassMethod) Name() string { return "userpass" }

func (m *userpassMethod) Login(ctx context.Context, c *Client) (*Session, error) {
	if m.username == "" {
		return nil, fmt.Errorf("%w: userpass auth requires userpass_username in config", ErrAuthFailed)
	}

	password := os.Getenv("GITVAULT_USERPASS_PASSWORD")
	if password == "" {
		var err error
		password, err = promptPassword(fmt.Sprintf("Vault password for %s: ", m.username))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	}

	return c.login(ctx, "auth/userpass/login/"+m.username, map[string]any{
		"password": password,
	})
}

// approleMethod authenticates with a role_id/secret_id pair, the usual
// non-interactive choice for CI runners.
type approleMethod struct {
	roleID string
}

func (m *approleMethod) Name() string { return "approle" }

func (m *approleMethod) Login(ctx context.Context, c *Client) (*Session, error) {
	roleID := m.roleID
	if roleID == "" {
		roleID = os.Getenv("VAULT_ROLE_ID")
	}
	secretID := os.Getenv("VAULT_SECRET_ID")

	if roleID == "" || secretID == "" {
		return nil, fmt.Errorf("%w: approle auth requires approle_role_id (or VAULT_ROLE_ID) and VAULT_SECRET_ID", ErrAuthFailed)
	}

	return c.login(ctx, "auth/approle/login", map[string]any{
		"role_id":   roleID,
		"secret_id": secretID,
	})
}

// promptPassword reads a password from the controlling terminal without echo.
// Stdin carries the credential protocol, so it cannot be used for the prompt.
func promptPassword(prompt string) (string, error) {
	if os.Getenv("GITVAULT_NO_INPUT") != "" {
		return "", fmt.Errorf("interactive prompts disabled (set GITVAULT_USERPASS_PASSWORD for non-interactive use)")
	}

	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return "", fmt.Errorf("no terminal available for password prompt (set GITVAULT_USERPASS_PASSWORD for non-interactive use)")
	}
	defer tty.Close()

	fmt.Fprint(tty, prompt)
	password, err := term.ReadPassword(int(tty.Fd()))
	fmt.Fprintln(tty)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// sessionExpiry converts a lease duration in seconds to an absolute expiry.
func sessionExpiry(now time.Time, leaseSeconds int) time.Time {
	if leaseSeconds <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(leaseSeconds) * time.Second)
}
