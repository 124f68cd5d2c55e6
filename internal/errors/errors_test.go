package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfClassifiedError(t *testing.T) {
	err := New(KindUnreachable, stderrors.New("dial tcp: connect: connection refused"))
	assert.Equal(t, KindUnreachable, KindOf(err))

	// classification survives wrapping
	wrapped := fmt.Errorf("connecting: %w", err)
	assert.Equal(t, KindUnreachable, KindOf(wrapped))
}

func TestKindOfKeywordFallback(t *testing.T) {
	tests := []struct {
		text string
		want Kind
	}{
		{"write: broken pipe", KindConnectionLost},
		{"unexpected EOF", KindConnectionLost},
		{"read: connection reset by peer", KindConnectionLost},
		{"ssh: unable to authenticate, attempted methods [password]", KindPermissionDenied},
		{"i/o timeout", KindCommandTimeout},
		{"context deadline exceeded", KindCommandTimeout},
		{"dial tcp: connect: connection refused", KindUnreachable},
		{"connect: no route to host", KindUnreachable},
		{"ssh: handshake failed: read: EOF", KindConnectionLost},
		{"lookup nope: no such host", KindCannotResolve},
		{"something novel", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(stderrors.New(tt.text)))
		})
	}
}

func TestKindOfContextCanceled(t *testing.T) {
	assert.Equal(t, KindCanceled, KindOf(context.Canceled))
	assert.Equal(t, KindCanceled, KindOf(fmt.Errorf("running: %w", context.Canceled)))
	assert.Equal(t, "run canceled", KindCanceled.Message())

	// a deadline is a timeout, not a cancellation
	assert.Equal(t, KindCommandTimeout, KindOf(context.DeadlineExceeded))
}

func TestKindOfNil(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "Permission denied", New(KindPermissionDenied, nil).Error())
	assert.Equal(t, "host x has no commands", Newf(KindMalformedPlan, "host %s has no commands", "x").Error())
}

func TestUnwrap(t *testing.T) {
	inner := stderrors.New("inner")
	err := New(KindLoginFailed, inner)
	assert.True(t, stderrors.Is(err, inner))
}

func TestIsDropped(t *testing.T) {
	assert.True(t, IsDropped(New(KindConnectionLost, nil)))
	assert.True(t, IsDropped(stderrors.New("broken pipe")))
	assert.False(t, IsDropped(New(KindCommandTimeout, nil)))
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, IsAuthFailure(New(KindPasswordDenied, nil)))
	assert.True(t, IsAuthFailure(New(KindPermissionDenied, nil)))
	assert.True(t, IsAuthFailure(New(KindUnexpectedPasswordPrompt, nil)))
	assert.False(t, IsAuthFailure(New(KindUnreachable, nil)))
}

func TestKindStringsAndMessages(t *testing.T) {
	assert.Equal(t, "connection-lost", KindConnectionLost.String())
	assert.Equal(t, "Could not connect to remote server", KindUnreachable.Message())
	assert.Equal(t, "Did not login correctly", KindLoginFailed.Message())
	assert.Equal(t, "unknown", KindUnknown.String())
}
