// Package session owns one target's connection lifecycle: lazy connect,
// optional jump-host hop, a single bounded reconnect after a dropped
// connection, and idempotent teardown.
package session

import (
	"context"
	"fmt"
	"time"

	ferrors "fleetrun/internal/errors"
	"fleetrun/internal/logging"
	"fleetrun/internal/render"
	"fleetrun/internal/transport"
)

// State is the session lifecycle state.
type State int

const (
	NotConnected State = iota
	Connected
	Closed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case NotConnected:
		return "not-connected"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// JumpConfig describes the optional intermediary hop. Every session opens its
// own hop; the jump connection is never shared across sessions.
type JumpConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// Config describes one target session.
type Config struct {
	Target         string
	Port           int
	User           string
	Password       string
	SecondPassword string
	KeyFile        string
	ConnectTimeout time.Duration
	CmdTimeout     time.Duration
	PromptPatterns []string
	Jump           *JumpConfig
}

// Session drives commands over one target connection. It is used by a single
// worker goroutine and is not safe for concurrent use.
type Session struct {
	cfg     Config
	tr      transport.Transport
	logger  *logging.Logger
	secrets []string

	state      State
	target     transport.Conn
	jump       transport.Conn
	connectErr error
}

// New creates a session in the NotConnected state.
func New(cfg Config, tr transport.Transport, logger *logging.Logger) *Session {
	secrets := []string{cfg.Password, cfg.SecondPassword}
	if cfg.Jump != nil {
		secrets = append(secrets, cfg.Jump.Password)
	}

	return &Session{
		cfg:     cfg,
		tr:      tr,
		logger:  logger,
		secrets: secrets,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// ConnectErr returns the retained connection failure, if any.
func (s *Session) ConnectErr() error {
	return s.connectErr
}

// Connect opens the jump hop first when one is configured; an unreachable
// jump host means the target is unreachable, so the session fails fast
// without dialing the target. On success the session is Connected.
func (s *Session) Connect(ctx context.Context) error {
	start := time.Now()

	if s.cfg.Jump != nil {
		jump, err := s.tr.Open(ctx, transport.Options{
			Host:           s.cfg.Jump.Host,
			Port:           s.cfg.Jump.Port,
			User:           s.cfg.Jump.User,
			Password:       s.cfg.Jump.Password,
			ConnectTimeout: s.cfg.ConnectTimeout,
		})
		if err != nil {
			s.fail(err)
			if s.logger != nil {
				s.logger.LogConnectError(s.cfg.Jump.Host, s.cfg.Jump.Port, err)
			}
			return err
		}
		s.jump = jump
	}

	opts := transport.Options{
		Host:           s.cfg.Target,
		Port:           s.cfg.Port,
		User:           s.cfg.User,
		Password:       s.cfg.Password,
		SecondPassword: s.cfg.SecondPassword,
		KeyFile:        s.cfg.KeyFile,
		ConnectTimeout: s.cfg.ConnectTimeout,
		PromptPatterns: s.cfg.PromptPatterns,
	}

	var target transport.Conn
	var err error
	if s.jump != nil {
		target, err = s.tr.OpenVia(ctx, s.jump, opts)
	} else {
		target, err = s.tr.Open(ctx, opts)
	}
	if err != nil {
		s.closeJump()
		s.fail(err)
		if s.logger != nil {
			s.logger.LogConnectError(s.cfg.Target, s.cfg.Port, err)
		}
		return err
	}

	s.target = target
	s.state = Connected
	if s.logger != nil {
		s.logger.LogConnect(s.cfg.Target, s.cfg.Port, s.cfg.Jump != nil, time.Since(start))
	}
	return nil
}

// Run executes one command and returns its cleaned result text. Expected
// per-command failures (timeout, dropped connection, closed session) become
// marker text in the result; only unclassified transport failures return an
// error.
func (s *Session) Run(ctx context.Context, command string) (string, error) {
	switch s.state {
	case Closed:
		return fmt.Sprintf("connection to %s is closed", s.cfg.Target), nil
	case NotConnected:
		if err := s.Connect(ctx); err != nil {
			return ferrors.KindOf(err).Message(), nil
		}
	}

	text, retry, err := s.runOnce(ctx, command)
	if err != nil {
		return "", err
	}
	if !retry {
		return text, nil
	}

	// one reconnect, then the same command once more
	if err := s.reconnect(ctx); err != nil {
		return fmt.Sprintf("connection to %s was lost", s.cfg.Target), nil
	}

	text, retry, err = s.runOnce(ctx, command)
	if err != nil {
		return "", err
	}
	if retry {
		// dropped again immediately after a fresh connect; give up
		s.markLost()
		return fmt.Sprintf("connection to %s was lost", s.cfg.Target), nil
	}
	return text, nil
}

// runOnce sends the command a single time. retry is set when the connection
// dropped and a reconnect attempt is allowed.
func (s *Session) runOnce(ctx context.Context, command string) (text string, retry bool, err error) {
	out, err := s.target.SendCommand(ctx, command, s.cfg.CmdTimeout)
	if err != nil {
		switch ferrors.KindOf(err) {
		case ferrors.KindCommandTimeout:
			// session stays Connected; only this command is marked
			return fmt.Sprintf("did not return after issuing: %s", command), false, nil
		case ferrors.KindConnectionLost:
			return "", true, nil
		case ferrors.KindAlreadyClosed:
			return fmt.Sprintf("connection to %s is closed", s.cfg.Target), false, nil
		default:
			return "", false, err
		}
	}

	formatted := render.FormatOutput(out, command, s.secrets)
	if formatted == "" {
		formatted = fmt.Sprintf("no output from: %s", command)
	}
	return formatted, false, nil
}

// reconnect tears down both handles and reopens the session once.
func (s *Session) reconnect(ctx context.Context) error {
	_ = s.End()
	s.state = NotConnected

	err := s.Connect(ctx)
	if s.logger != nil {
		s.logger.LogReconnect(s.cfg.Target, err == nil)
	}
	return err
}

// End closes the target handle and, when one was opened, the jump handle. It
// is idempotent: already-closed errors from the transport are swallowed,
// anything else propagates.
func (s *Session) End() error {
	var firstErr error

	if s.target != nil {
		// with a jump configured the target teardown is non-final: the hop
		// owns the trailing cleanup
		if err := s.target.Close(s.jump == nil); err != nil && ferrors.KindOf(err) != ferrors.KindAlreadyClosed {
			firstErr = err
		}
		s.target = nil
	}

	if s.jump != nil {
		if err := s.jump.Close(true); err != nil && ferrors.KindOf(err) != ferrors.KindAlreadyClosed {
			if firstErr == nil {
				firstErr = err
			}
		}
		s.jump = nil
	}

	s.state = Closed
	return firstErr
}

// fail records a connect failure and closes the session.
func (s *Session) fail(err error) {
	s.connectErr = err
	s.state = Closed
}

// markLost closes out a session whose reconnect was exhausted.
func (s *Session) markLost() {
	_ = s.End()
}

// closeJump releases the hop after a failed target dial.
func (s *Session) closeJump() {
	if s.jump != nil {
		_ = s.jump.Close(true)
		s.jump = nil
	}
}
