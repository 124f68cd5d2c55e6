package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	ferrors "fleetrun/internal/errors"
	"fleetrun/internal/logging"
	"fleetrun/internal/networking"
)

// defaultPromptPattern matches the common tail of password prompts.
const defaultPromptPattern = "assword:"

// SSHTransport implements Transport over golang.org/x/crypto/ssh.
type SSHTransport struct {
	logger *logging.Logger
}

// NewSSHTransport creates the production transport.
func NewSSHTransport(logger *logging.Logger) *SSHTransport {
	return &SSHTransport{logger: logger}
}

// sshConn implements Conn on an established SSH client.
type sshConn struct {
	client *ssh.Client
	opts   Options
	logger *logging.Logger

	mu     sync.Mutex
	closed bool
}

// Open dials the host directly.
func (t *SSHTransport) Open(ctx context.Context, opts Options) (Conn, error) {
	if !networking.CanResolve(opts.Host) {
		return nil, ferrors.New(ferrors.KindCannotResolve, fmt.Errorf("cannot resolve %s", opts.Host))
	}

	address := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}

	netConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, classifyDial(opts, err)
	}

	return t.handshake(netConn, address, opts)
}

// OpenVia dials the host through an existing connection. Each caller owns its
// own hop; the tunnel is not shared or pooled.
func (t *SSHTransport) OpenVia(ctx context.Context, via Conn, opts Options) (Conn, error) {
	hop, ok := via.(*sshConn)
	if !ok {
		return nil, fmt.Errorf("cannot tunnel through %T", via)
	}

	address := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	netConn, err := hop.client.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, classifyDial(opts, err)
	}

	return t.handshake(netConn, address, opts)
}

// handshake performs the SSH handshake and auth on an open socket.
func (t *SSHTransport) handshake(netConn net.Conn, address string, opts Options) (Conn, error) {
	config, err := t.buildClientConfig(opts)
	if err != nil {
		netConn.Close()
		return nil, err
	}

	sshc, chans, reqs, err := ssh.NewClientConn(netConn, address, config)
	if err != nil {
		netConn.Close()
		return nil, classifyDial(opts, err)
	}

	return &sshConn{
		client: ssh.NewClient(sshc, chans, reqs),
		opts:   opts,
		logger: t.logger,
	}, nil
}

// buildClientConfig assembles auth methods in preference order: agent,
// key file, password.
func (t *SSHTransport) buildClientConfig(opts Options) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if agentConn, err := net.Dial("unix", os.Getenv("SSH_AUTH_SOCK")); err == nil {
		authMethods = append(authMethods, ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers))
	}

	if opts.KeyFile != "" {
		keyBytes, err := os.ReadFile(opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if opts.Password != "" {
		authMethods = append(authMethods, ssh.Password(opts.Password))
	}

	if len(authMethods) == 0 {
		return nil, ferrors.New(ferrors.KindLoginFailed, fmt.Errorf("no authentication methods available"))
	}

	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            authMethods,
		HostKeyCallback: t.hostKeyCallback(),
		Timeout:         opts.ConnectTimeout,
	}, nil
}

// hostKeyCallback tries known_hosts files first and falls back to accepting
// unknown keys with a logged warning, which fleet tools touching many
// previously-unseen hosts need.
func (t *SSHTransport) hostKeyCallback() ssh.HostKeyCallback {
	if homeDir, err := os.UserHomeDir(); err == nil {
		knownHostsFile := homeDir + "/.ssh/known_hosts"
		if _, err := os.Stat(knownHostsFile); err == nil {
			if callback, err := knownhosts.New(knownHostsFile); err == nil {
				return callback
			}
		}
	}

	if callback, err := knownhosts.New("/etc/ssh/ssh_known_hosts"); err == nil {
		return callback
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if t.logger != nil {
			t.logger.Debug("host key verification disabled", "host", hostname)
		}
		return nil
	}
}

// SendCommand runs one command over a fresh pty session on the shared
// connection. The pty combines stdout/stderr and lets in-command password
// prompts (sudo, su) reach the prompt responder.
func (c *sshConn) SendCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ferrors.New(ferrors.KindAlreadyClosed, nil)
	}
	c.mu.Unlock()

	session, err := c.client.NewSession()
	if err != nil {
		return "", classifyRun(err)
	}
	defer session.Close()

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm", 40, 80, modes); err != nil {
		return "", classifyRun(err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		return "", classifyRun(err)
	}

	output := newPromptResponder(stdin, c.opts.SecondPassword, c.opts.PromptPatterns)
	session.Stdout = output
	session.Stderr = output

	if err := session.Start(command); err != nil {
		return "", classifyRun(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case err := <-done:
		if err != nil {
			if _, ok := err.(*ssh.ExitError); ok {
				// remote command failed but the output is the result
				return output.String(), nil
			}
			return output.String(), classifyRun(err)
		}
		return output.String(), nil

	case <-timer:
		// no response in time; the session dies with this Close but the
		// connection stays usable for the next command
		session.Close()
		return "", ferrors.New(ferrors.KindCommandTimeout, fmt.Errorf("no response within %s", timeout))

	case <-ctx.Done():
		session.Close()
		return "", ctx.Err()
	}
}

// Close releases the connection. The final flag requests complete teardown;
// a non-final close skips the trailing logout exchange so a hop being torn
// down mid-chain does not block on its own shell.
func (c *sshConn) Close(final bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ferrors.New(ferrors.KindAlreadyClosed, nil)
	}
	c.closed = true
	c.mu.Unlock()

	if final {
		// best-effort logout so remote auditd sees a clean exit
		if session, err := c.client.NewSession(); err == nil {
			_ = session.Run("exit")
			session.Close()
		}
	}

	if c.logger != nil {
		c.logger.LogClose(c.opts.Host)
	}
	return c.client.Close()
}

// promptResponder buffers command output and answers the first password
// prompt it sees with the configured second password.
type promptResponder struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	stdin    io.Writer
	password string
	patterns []*regexp.Regexp
	answered bool
}

func newPromptResponder(stdin io.Writer, password string, extraPatterns []string) *promptResponder {
	patterns := []*regexp.Regexp{regexp.MustCompile(regexp.QuoteMeta(defaultPromptPattern) + `\s*$`)}
	for _, extra := range extraPatterns {
		if compiled, err := regexp.Compile(extra); err == nil {
			patterns = append(patterns, compiled)
		}
	}

	return &promptResponder{
		stdin:    stdin,
		password: password,
		patterns: patterns,
	}
}

func (p *promptResponder) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)

	if p.password != "" && !p.answered {
		tail := p.buf.Bytes()
		if len(tail) > 256 {
			tail = tail[len(tail)-256:]
		}
		for _, pattern := range p.patterns {
			if pattern.Match(tail) {
				p.answered = true
				_, _ = p.stdin.Write([]byte(p.password + "\n"))
				break
			}
		}
	}

	return len(data), nil
}

func (p *promptResponder) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.String()
}

// classifyDial maps a failed dial or handshake onto a connect error kind.
func classifyDial(opts Options, err error) error {
	switch ferrors.KindOf(err) {
	case ferrors.KindCannotResolve:
		return ferrors.New(ferrors.KindCannotResolve, err)
	case ferrors.KindPermissionDenied:
		if opts.Password != "" {
			return ferrors.New(ferrors.KindPasswordDenied, err)
		}
		return ferrors.New(ferrors.KindPermissionDenied, err)
	case ferrors.KindCommandTimeout, ferrors.KindUnreachable, ferrors.KindConnectionLost:
		return ferrors.New(ferrors.KindUnreachable, err)
	default:
		return ferrors.New(ferrors.KindLoginFailed, err)
	}
}

// classifyRun maps a mid-command transport failure: dropped connections keep
// their kind so the session can reconnect, everything else is fatal.
func classifyRun(err error) error {
	if ferrors.IsDropped(err) {
		return ferrors.New(ferrors.KindConnectionLost, err)
	}
	return err
}
