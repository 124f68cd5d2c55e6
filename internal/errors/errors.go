// Package errors provides error classification and handling for fleetrun.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies the failures the pipeline can produce.
type Kind int

const (
	// KindLoginFailed represents a login sequence that never reached a shell
	KindLoginFailed Kind = iota

	// KindUnexpectedPasswordPrompt represents a password prompt with no password configured
	KindUnexpectedPasswordPrompt

	// KindCannotResolve represents a target hostname that does not resolve
	KindCannotResolve

	// KindPermissionDenied represents a rejected login (authorization)
	KindPermissionDenied

	// KindPasswordDenied represents a rejected password (authentication)
	KindPasswordDenied

	// KindPromptGuessFailure represents an unrecognizable shell prompt
	KindPromptGuessFailure

	// KindUnreachable represents a host that could not be connected to at all
	KindUnreachable

	// KindConnectionLost represents a connection dropped mid-run
	KindConnectionLost

	// KindCommandTimeout represents a command that produced no response in time
	KindCommandTimeout

	// KindAlreadyClosed represents an operation on a closed handle
	KindAlreadyClosed

	// KindEncodingFailed represents render output that no supported encoding accepts
	KindEncodingFailed

	// KindMalformedPlan represents an unusable run-plan or host entry
	KindMalformedPlan

	// KindCanceled represents work interrupted by run cancellation
	KindCanceled

	// KindUnknown represents unclassified errors
	KindUnknown
)

// String returns a short identifier for the kind.
func (k Kind) String() string {
	switch k {
	case KindLoginFailed:
		return "login-failed"
	case KindUnexpectedPasswordPrompt:
		return "unexpected-password-prompt"
	case KindCannotResolve:
		return "cannot-resolve"
	case KindPermissionDenied:
		return "permission-denied"
	case KindPasswordDenied:
		return "password-denied"
	case KindPromptGuessFailure:
		return "prompt-guess-failure"
	case KindUnreachable:
		return "unreachable"
	case KindConnectionLost:
		return "connection-lost"
	case KindCommandTimeout:
		return "command-timeout"
	case KindAlreadyClosed:
		return "already-closed"
	case KindEncodingFailed:
		return "encoding-failed"
	case KindMalformedPlan:
		return "malformed-plan"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Message returns the operator-facing description for the kind. These are the
// strings recorded into a HostResult when a connection cannot be established.
func (k Kind) Message() string {
	switch k {
	case KindLoginFailed:
		return "Did not login correctly"
	case KindUnexpectedPasswordPrompt:
		return "Received unexpected password prompt"
	case KindCannotResolve:
		return "Could not resolve host"
	case KindPermissionDenied:
		return "Permission denied"
	case KindPasswordDenied:
		return "Password denied"
	case KindPromptGuessFailure:
		return "Shell prompt guessing failure"
	case KindUnreachable:
		return "Could not connect to remote server"
	case KindConnectionLost:
		return "Connection lost"
	case KindCommandTimeout:
		return "Command did not return"
	case KindAlreadyClosed:
		return "Connection already closed"
	case KindEncodingFailed:
		return "Could not encode output"
	case KindMalformedPlan:
		return "Malformed run plan"
	case KindCanceled:
		return "run canceled"
	default:
		return "Unknown error"
	}
}

// Error wraps an underlying error with its classification. The Message is the
// text recorded into results; Original carries transport detail for logs.
type Error struct {
	Kind     Kind
	Original error
	Message  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Original != nil {
		return fmt.Sprintf("%s: %s", e.Kind.Message(), e.Original.Error())
	}
	return e.Kind.Message()
}

// Unwrap returns the original error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Original
}

// New creates a classified error with the kind's canonical message.
func New(kind Kind, original error) *Error {
	return &Error{Kind: kind, Original: original, Message: kind.Message()}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the classification of err, inspecting wrapped classified
// errors first and falling back to keyword matching on the error text.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	for e := err; e != nil; {
		if ce, ok := e.(*Error); ok {
			return ce.Kind
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}

	if stderrors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return classify(strings.ToLower(err.Error()))
}

// IsDropped reports whether err looks like a mid-run connection drop, the
// only failure class the session retries.
func IsDropped(err error) bool {
	return KindOf(err) == KindConnectionLost
}

// IsAuthFailure reports whether err represents a rejected login or password.
func IsAuthFailure(err error) bool {
	switch KindOf(err) {
	case KindPermissionDenied, KindPasswordDenied, KindUnexpectedPasswordPrompt:
		return true
	}
	return false
}

// classify maps raw transport error text onto a kind.
func classify(errStr string) Kind {
	droppedKeywords := []string{
		"broken pipe",
		"connection reset",
		"connection lost",
		"unexpected eof",
		"use of closed network connection",
		"connection aborted",
		"eof",
	}
	for _, keyword := range droppedKeywords {
		if strings.Contains(errStr, keyword) {
			return KindConnectionLost
		}
	}

	authKeywords := []string{
		"unable to authenticate",
		"no supported methods remain",
		"permission denied",
		"auth fail",
		"authentication failed",
	}
	for _, keyword := range authKeywords {
		if strings.Contains(errStr, keyword) {
			return KindPermissionDenied
		}
	}

	timeoutKeywords := []string{
		"timeout",
		"timed out",
		"deadline exceeded",
	}
	for _, keyword := range timeoutKeywords {
		if strings.Contains(errStr, keyword) {
			return KindCommandTimeout
		}
	}

	unreachableKeywords := []string{
		"connection refused",
		"network is unreachable",
		"no route to host",
		"host unreachable",
		"handshake failed",
	}
	for _, keyword := range unreachableKeywords {
		if strings.Contains(errStr, keyword) {
			return KindUnreachable
		}
	}

	if strings.Contains(errStr, "no such host") {
		return KindCannotResolve
	}

	return KindUnknown
}
