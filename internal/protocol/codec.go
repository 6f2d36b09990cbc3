// Package protocol implements the line-oriented key/value format Git uses
// to talk to credential helpers: `key=value` lines terminated by a blank line.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ErrMalformed is returned when a request violates the protocol framing
// or is missing a required field.
var ErrMalformed = errors.New("malformed credential request")

// Request is a credential request parsed from the helper's input.
// Protocol and Host are mandatory; Path, Username and Password are optional.
type Request struct {
	Protocol string
	Host     string
	Path     string
	Username string
	Password string
}

// Key returns the canonical cache key for this request.
// Identity is (protocol, host, path); username does not participate because
// the secret store decides which username a host maps to.
func (r *Request) Key() string {
	key := r.Protocol + "://" + url.PathEscape(r.Host)
	if r.Path != "" {
		key += "/" + url.PathEscape(r.Path)
	}
	return key
}

// Decode parses a credential request from r.
// Unknown keys are ignored for forward compatibility. The terminating blank
// line is required; its absence, a line without '=', or a missing
// protocol/host field all yield ErrMalformed.
func Decode(r io.Reader) (*Request, error) {
	scanner := bufio.NewScanner(r)
	req := &Request{}
	terminated := false
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			terminated = true
			break
		}

		// Do not echo the offending line: it may carry secret material.
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: line %d has no '='", ErrMalformed, lineNo)
		}

		switch key {
		case "protocol":
			req.Protocol = value
		case "host":
			req.Host = value
		case "path":
			req.Path = value
		case "username":
			req.Username = value
		case "password":
			req.Password = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}

	if !terminated {
		return nil, fmt.Errorf("%w: missing terminating blank line", ErrMalformed)
	}
	if req.Protocol == "" {
		return nil, fmt.Errorf("%w: protocol is required", ErrMalformed)
	}
	if req.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrMalformed)
	}

	return req, nil
}

// Encode writes a credential response for req to w. Echoes protocol/host/path
// so Git can match the answer to its question, then username and password.
// Keys with empty values are never emitted. Git is strict about the trailing
// blank line.
func Encode(w io.Writer, req *Request, username, password string) error {
	var b strings.Builder
	writePair(&b, "protocol", req.Protocol)
	writePair(&b, "host", req.Host)
	writePair(&b, "path", req.Path)
	writePair(&b, "username", username)
	writePair(&b, "password", password)
	b.WriteString("\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// EncodeEmpty writes the "no credential available" response: no bytes at all.
// Git treats empty helper output as a fall-through to its other credential
// sources, not as a failure. store/erase use the same no-body response on
// success.
func EncodeEmpty(w io.Writer) error {
	return nil
}

func writePair(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	b.WriteString(key)
	b.WriteString("=")
	b.WriteString(value)
	b.WriteString("\n")
}
