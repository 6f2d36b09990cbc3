package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/semmy-space/gitvault/internal/protocol"
)

func TestDerivePath(t *testing.T) {
	prefix := "secret/data/git"

	t.Run("https host", func(t *testing.T) {
		req := &protocol.Request{Protocol: "https", Host: "git.example.com"}
		assert.Equal(t, "secret/data/git/git.example.com", DerivePath(prefix, req))
	})

	t.Run("host and path", func(t *testing.T) {
		req := &protocol.Request{Protocol: "https", Host: "git.example.com", Path: "team/repo.git"}
		assert.Equal(t, "secret/data/git/git.example.com/team%2Frepo.git", DerivePath(prefix, req))
	})

	t.Run("non-https protocol qualified", func(t *testing.T) {
		req := &protocol.Request{Protocol: "http", Host: "git.example.com"}
		assert.Equal(t, "secret/data/git/http:git.example.com", DerivePath(prefix, req))
	})

	t.Run("stable across calls", func(t *testing.T) {
		req := &protocol.Request{Protocol: "https", Host: "a.example.com"}
		assert.Equal(t, DerivePath(prefix, req), DerivePath(prefix, req))
	})

	t.Run("distinct hosts never collide", func(t *testing.T) {
		a := DerivePath(prefix, &protocol.Request{Protocol: "https", Host: "a.example.com"})
		b := DerivePath(prefix, &protocol.Request{Protocol: "https", Host: "b.example.com"})
		assert.NotEqual(t, a, b)
	})

	t.Run("traversal characters escaped", func(t *testing.T) {
		req := &protocol.Request{Protocol: "https", Host: "git.example.com", Path: "../../sys/policy"}
		derived := DerivePath(prefix, req)
		assert.NotContains(t, derived, "../")
		assert.Contains(t, derived, "%2F")
	})

	t.Run("escaping is injective", func(t *testing.T) {
		// A host containing an encoded slash must not equal a host containing
		// a literal one after escaping.
		a := DerivePath(prefix, &protocol.Request{Protocol: "https", Host: "a%2Fb"})
		b := DerivePath(prefix, &protocol.Request{Protocol: "https", Host: "a/b"})
		assert.NotEqual(t, a, b)
	})

	t.Run("host with slash cannot impersonate host plus path", func(t *testing.T) {
		a := DerivePath(prefix, &protocol.Request{Protocol: "https", Host: "h/p"})
		b := DerivePath(prefix, &protocol.Request{Protocol: "https", Host: "h", Path: "p"})
		assert.NotEqual(t, a, b)
	})
}
