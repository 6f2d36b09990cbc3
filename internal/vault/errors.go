package vault

import "errors"

// Error kinds crossing the package boundary. Everything the client returns
// wraps exactly one of these; the dispatcher matches with errors.Is and is
// the only place that turns a kind into an exit code.
var (
	// ErrNotFound means no secret is provisioned at the derived path.
	// Not a failure from Git's point of view — it becomes the empty
	// fall-through response.
	ErrNotFound = errors.New("secret not found")

	// ErrAuthFailed means the store rejected our authentication. Never
	// retried beyond the single transparent re-authentication attempt.
	ErrAuthFailed = errors.New("secret store authentication failed")

	// ErrUnavailable is a transient network or service failure, retried
	// with bounded backoff before becoming fatal.
	ErrUnavailable = errors.New("secret store unavailable")
)
