package compressor

import (
	"errors"
	"fmt"
)

// Kind classifies a per-file failure.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindProtocol
	KindQuotaExceeded
	KindAuth
	KindRemoteRejected
	KindNoResponse
	KindLocalRead
	KindLocalWrite
	KindOptimize
	KindCancelled
)

var kindNames = map[Kind]string{
	KindTransport:      "transport",
	KindProtocol:       "protocol",
	KindQuotaExceeded:  "quota_exceeded",
	KindAuth:           "auth",
	KindRemoteRejected: "remote_rejected",
	KindNoResponse:     "no_response",
	KindLocalRead:      "local_read",
	KindLocalWrite:     "local_write",
	KindOptimize:       "optimize",
	KindCancelled:      "cancelled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Sentinel errors, one per Kind, for use with errors.Is.
var (
	ErrTransport      = errors.New("request failed")
	ErrProtocol       = errors.New("unexpected response")
	ErrQuotaExceeded  = errors.New("quota exceeded: this API key has used up its monthly compressions, wait for next month or use another key")
	ErrAuth           = errors.New("invalid credentials")
	ErrRemoteRejected = errors.New("rejected by server")
	ErrNoResponse     = errors.New("server unresponsive")
	ErrLocalRead      = errors.New("read failed")
	ErrLocalWrite     = errors.New("write failed")
	ErrOptimize       = errors.New("optimization failed")
	ErrCancelled      = errors.New("cancelled")
)

var kindErrors = map[Kind]error{
	KindTransport:      ErrTransport,
	KindProtocol:       ErrProtocol,
	KindQuotaExceeded:  ErrQuotaExceeded,
	KindAuth:           ErrAuth,
	KindRemoteRejected: ErrRemoteRejected,
	KindNoResponse:     ErrNoResponse,
	KindLocalRead:      ErrLocalRead,
	KindLocalWrite:     ErrLocalWrite,
	KindOptimize:       ErrOptimize,
	KindCancelled:      ErrCancelled,
}

// Error is a per-file failure.
type Error struct {
	Kind Kind
	Path string
	// Message overrides the kind's default text, e.g. the server's message.
	Message string
	Err     error
}

// NewError returns an *Error of the given kind.
func NewError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Reason()
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Reason returns the user facing text without the underlying cause.
func (e *Error) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	if sentinel, ok := kindErrors[e.Kind]; ok {
		return sentinel.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for e.Kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindErrors[e.Kind]
	return ok && target == sentinel
}

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
