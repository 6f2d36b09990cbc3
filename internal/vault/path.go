package vault

import (
	"strings"

	"github.com/semmy-space/gitvault/internal/protocol"
)

// DerivePath maps a credential request onto a secret path under prefix.
//
// The mapping must be injective: two different requests may never land on
// the same secret. Host and path values are escaped rather than rejected so
// a hostile `path=../other` can't traverse into an unrelated secret, and a
// host can't alias another host's path-qualified secret.
//
// https hosts map to `<prefix>/<host>` so the common case reads cleanly in
// Vault; other protocols get a `<protocol>:` qualifier on the host segment.
func DerivePath(prefix string, req *protocol.Request) string {
	host := escapeSegment(req.Host)
	if req.Protocol != "https" {
		host = escapeSegment(req.Protocol) + ":" + host
	}

	p := strings.TrimSuffix(prefix, "/") + "/" + host
	if req.Path != "" {
		p += "/" + escapeSegment(strings.TrimSuffix(req.Path, "/"))
	}
	return p
}

// escapeSegment percent-encodes the characters that would change path
// structure. Encoding '%' as well keeps the escaping injective: no two
// distinct inputs produce the same segment.
func escapeSegment(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "/", "%2F")
	return s
}
