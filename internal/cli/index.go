package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/semmy-space/gitvault/internal/config"
	"github.com/semmy-space/gitvault/internal/output"
	"github.com/semmy-space/gitvault/internal/protocol"
)

// SetupIndexCmd resolves a credential for a package-index host and prints
// shell export lines for it. Intended for `eval "$(git-credential-vault
// setup-index pypi.example.com)"` in CI jobs that pip-install from a
// private index.
type SetupIndexCmd struct {
	Host     string `arg:"" help:"Index host, e.g. pypi.example.com"`
	Path     string `help:"Repository path on the host" default:"simple"`
	Username string `help:"Username hint forwarded to the secret lookup"`
}

func (cmd *SetupIndexCmd) Run(cfg *config.Config, services Services) error {
	d, err := services.Dispatcher()
	if err != nil {
		return err
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout*4)
	defer cancel()

	req := &protocol.Request{
		Protocol: "https",
		Host:     cmd.Host,
		Username: cmd.Username,
	}

	var in, out bytes.Buffer
	if err := protocol.Encode(&in, req, req.Username, ""); err != nil {
		return err
	}
	if err := d.Get(ctx, &in, &out); err != nil {
		return err
	}

	resp, err := protocol.Decode(&out)
	if err != nil || resp.Password == "" {
		return &output.CLIError{
			Message:  fmt.Sprintf("No credential found for %s", cmd.Host),
			ExitCode: output.ExitNotFound,
		}
	}

	indexURL := buildIndexURL(cmd.Host, cmd.Path, resp.Username, resp.Password)

	// Exports go to stdout for eval; everything else to stderr.
	fmt.Printf("export PIP_INDEX_URL=%q\n", indexURL)
	fmt.Printf("export UV_INDEX_URL=%q\n", indexURL)
	fmt.Fprintf(os.Stderr, "gitvault: index credential resolved for %s\n", cmd.Host)

	return nil
}

// buildIndexURL embeds the credential in the index URL. url.UserPassword
// escapes whatever characters the secret contains.
func buildIndexURL(host, repoPath, username, password string) string {
	u := url.URL{
		Scheme: "https",
		User:   url.UserPassword(username, password),
		Host:   host,
		Path:   "/" + strings.Trim(repoPath, "/") + "/",
	}
	return u.String()
}
