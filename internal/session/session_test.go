package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "fleetrun/internal/errors"
	"fleetrun/internal/transport"
)

type sendResult struct {
	out string
	err error
}

type fakeConn struct {
	sends  []sendResult
	finals []bool
	closed bool
}

func (c *fakeConn) SendCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if c.closed {
		return "", ferrors.New(ferrors.KindAlreadyClosed, nil)
	}
	if len(c.sends) == 0 {
		return "", nil
	}
	next := c.sends[0]
	c.sends = c.sends[1:]
	return next.out, next.err
}

func (c *fakeConn) Close(final bool) error {
	if c.closed {
		return ferrors.New(ferrors.KindAlreadyClosed, nil)
	}
	c.closed = true
	c.finals = append(c.finals, final)
	return nil
}

type openResult struct {
	conn *fakeConn
	err  error
}

type fakeTransport struct {
	opens    []openResult
	viaOpens []openResult

	openCount int
	viaCount  int
}

func (t *fakeTransport) Open(ctx context.Context, opts transport.Options) (transport.Conn, error) {
	t.openCount++
	next := t.opens[0]
	t.opens = t.opens[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.conn, nil
}

func (t *fakeTransport) OpenVia(ctx context.Context, via transport.Conn, opts transport.Options) (transport.Conn, error) {
	t.viaCount++
	next := t.viaOpens[0]
	t.viaOpens = t.viaOpens[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.conn, nil
}

func testConfig() Config {
	return Config{
		Target:         "host1",
		Port:           22,
		User:           "admin",
		ConnectTimeout: time.Second,
		CmdTimeout:     time.Second,
	}
}

func TestRunLazyConnect(t *testing.T) {
	conn := &fakeConn{sends: []sendResult{{out: "  ok\r\n"}}}
	tr := &fakeTransport{opens: []openResult{{conn: conn}}}
	s := New(testConfig(), tr, nil)

	out, err := s.Run(context.Background(), "uptime")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, 1, tr.openCount)
}

func TestRunNoOutputMarker(t *testing.T) {
	conn := &fakeConn{sends: []sendResult{{out: "\r\n"}}}
	tr := &fakeTransport{opens: []openResult{{conn: conn}}}
	s := New(testConfig(), tr, nil)

	out, err := s.Run(context.Background(), "touch /tmp/x")
	require.NoError(t, err)
	assert.Equal(t, "no output from: touch /tmp/x", out)
}

func TestRunRedactsSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.Password = "hunter2"

	conn := &fakeConn{sends: []sendResult{{out: "password is hunter2\n"}}}
	tr := &fakeTransport{opens: []openResult{{conn: conn}}}
	s := New(cfg, tr, nil)

	out, err := s.Run(context.Background(), "env")
	require.NoError(t, err)
	assert.Equal(t, "password is *******", out)
}

func TestRunTimeoutKeepsSessionAlive(t *testing.T) {
	conn := &fakeConn{sends: []sendResult{
		{err: ferrors.New(ferrors.KindCommandTimeout, nil)},
		{out: "recovered"},
	}}
	tr := &fakeTransport{opens: []openResult{{conn: conn}}}
	s := New(testConfig(), tr, nil)

	out, err := s.Run(context.Background(), "sleep 999")
	require.NoError(t, err)
	assert.Equal(t, "did not return after issuing: sleep 999", out)
	assert.Equal(t, Connected, s.State())

	out, err = s.Run(context.Background(), "echo ok")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
}

func TestRunReconnectsOnceAfterDrop(t *testing.T) {
	first := &fakeConn{sends: []sendResult{{err: ferrors.New(ferrors.KindConnectionLost, nil)}}}
	second := &fakeConn{sends: []sendResult{{out: "back"}}}
	tr := &fakeTransport{opens: []openResult{{conn: first}, {conn: second}}}
	s := New(testConfig(), tr, nil)

	out, err := s.Run(context.Background(), "uptime")
	require.NoError(t, err)
	assert.Equal(t, "back", out)
	assert.Equal(t, 2, tr.openCount)
	assert.True(t, first.closed)
	assert.Equal(t, Connected, s.State())
}

func TestRunReconnectFailureMarksLost(t *testing.T) {
	first := &fakeConn{sends: []sendResult{{err: ferrors.New(ferrors.KindConnectionLost, nil)}}}
	tr := &fakeTransport{opens: []openResult{
		{conn: first},
		{err: ferrors.New(ferrors.KindUnreachable, nil)},
	}}
	s := New(testConfig(), tr, nil)

	out, err := s.Run(context.Background(), "uptime")
	require.NoError(t, err)
	assert.Equal(t, "connection to host1 was lost", out)
	assert.Equal(t, Closed, s.State())

	// the closed session short-circuits every later command
	out, err = s.Run(context.Background(), "id")
	require.NoError(t, err)
	assert.Equal(t, "connection to host1 is closed", out)
	assert.Equal(t, 2, tr.openCount)
}

func TestRunSecondDropGivesUp(t *testing.T) {
	first := &fakeConn{sends: []sendResult{{err: ferrors.New(ferrors.KindConnectionLost, nil)}}}
	second := &fakeConn{sends: []sendResult{{err: ferrors.New(ferrors.KindConnectionLost, nil)}}}
	tr := &fakeTransport{opens: []openResult{{conn: first}, {conn: second}}}
	s := New(testConfig(), tr, nil)

	out, err := s.Run(context.Background(), "uptime")
	require.NoError(t, err)
	assert.Equal(t, "connection to host1 was lost", out)
	assert.Equal(t, Closed, s.State())
	assert.Equal(t, 2, tr.openCount)
}

func TestConnectFailureRetained(t *testing.T) {
	tr := &fakeTransport{opens: []openResult{{err: ferrors.New(ferrors.KindUnreachable, nil)}}}
	s := New(testConfig(), tr, nil)

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, Closed, s.State())
	assert.Equal(t, ferrors.KindUnreachable, ferrors.KindOf(s.ConnectErr()))
}

func TestConnectJumpFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.Jump = &JumpConfig{Host: "bastion", Port: 22, User: "admin"}

	tr := &fakeTransport{opens: []openResult{{err: ferrors.New(ferrors.KindUnreachable, nil)}}}
	s := New(cfg, tr, nil)

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, tr.openCount)
	assert.Equal(t, 0, tr.viaCount)
	assert.Equal(t, Closed, s.State())
}

func TestConnectThroughJump(t *testing.T) {
	cfg := testConfig()
	cfg.Jump = &JumpConfig{Host: "bastion", Port: 22, User: "admin"}

	jumpConn := &fakeConn{}
	targetConn := &fakeConn{sends: []sendResult{{out: "via jump"}}}
	tr := &fakeTransport{
		opens:    []openResult{{conn: jumpConn}},
		viaOpens: []openResult{{conn: targetConn}},
	}
	s := New(cfg, tr, nil)

	require.NoError(t, s.Connect(context.Background()))
	out, err := s.Run(context.Background(), "hostname")
	require.NoError(t, err)
	assert.Equal(t, "via jump", out)

	require.NoError(t, s.End())
	// target closes non-final behind a jump; the hop closes final
	assert.Equal(t, []bool{false}, targetConn.finals)
	assert.Equal(t, []bool{true}, jumpConn.finals)
}

func TestEndIdempotent(t *testing.T) {
	conn := &fakeConn{}
	tr := &fakeTransport{opens: []openResult{{conn: conn}}}
	s := New(testConfig(), tr, nil)

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.End())
	require.NoError(t, s.End())
	assert.Equal(t, Closed, s.State())
	assert.Equal(t, []bool{true}, conn.finals)
}
