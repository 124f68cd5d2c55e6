// Package transport defines the connection contract the session layer runs
// on, and implements it over SSH. The session and scheduler layers only ever
// see the Transport and Conn interfaces, so tests substitute fakes.
package transport

import (
	"context"
	"time"
)

// Options describes one connection to open.
type Options struct {
	Host           string
	Port           int
	User           string
	Password       string
	SecondPassword string        // answer for in-command password prompts
	KeyFile        string        // optional private key path
	ConnectTimeout time.Duration
	PromptPatterns []string // extra password-prompt patterns to answer
}

// Transport opens connections to hosts, directly or through an existing
// connection (single-hop jump routing).
type Transport interface {
	// Open dials opts.Host directly.
	Open(ctx context.Context, opts Options) (Conn, error)

	// OpenVia dials opts.Host tunnelled through via. The returned Conn is
	// independent of via; closing one does not close the other.
	OpenVia(ctx context.Context, via Conn, opts Options) (Conn, error)
}

// Conn is one established connection.
type Conn interface {
	// SendCommand runs command and returns its combined output. A command
	// that produces no response within timeout returns ErrNoResponse-class
	// error (kind command-timeout); a dropped connection returns a
	// connection-lost class error.
	SendCommand(ctx context.Context, command string, timeout time.Duration) (string, error)

	// Close releases the connection. final requests full teardown including
	// trailing logout cleanup; closing an already-closed Conn returns an
	// already-closed class error.
	Close(final bool) error
}
