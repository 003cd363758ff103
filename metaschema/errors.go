// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ErrorKind classifies an engine failure. Kinds are comparable with
// errors.Is against any *Error.
type ErrorKind struct {
	name  string
	fatal bool
}

func (k *ErrorKind) Error() string { return k.name }

// Fatal reports whether the kind signals a schema or programming error.
func (k *ErrorKind) Fatal() bool { return k.fatal }

// Fatal kinds: sender and receiver disagree on the contract.
var (
	ErrUnknownType     = &ErrorKind{name: "unknown type", fatal: true}
	ErrMalformedHeader = &ErrorKind{name: "malformed type header", fatal: true}
	ErrUnsupported     = &ErrorKind{name: "unsupported type", fatal: true}
	ErrArgCount        = &ErrorKind{name: "argument count mismatch", fatal: true}
	ErrArgType         = &ErrorKind{name: "argument type mismatch", fatal: true}
	ErrKindMismatch    = &ErrorKind{name: "JSON kind mismatch", fatal: true}
)

// Recoverable kinds: a single message or buffer is bad.
var (
	ErrMalformedJSON  = &ErrorKind{name: "malformed JSON"}
	ErrBufferTooSmall = &ErrorKind{name: "destination buffer too small"}
	ErrAllocation     = &ErrorKind{name: "buffer allocation failed"}
	ErrArgsUnused     = &ErrorKind{name: "arguments not consumed"}
	ErrWrite          = &ErrorKind{name: "JSON write failed"}
)

// Error is returned by every failing engine operation. Message holds the
// formatted diagnostic.
type Error struct {
	Op      string
	Kind    *ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("metaschema: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("metaschema: %s: %s", e.Op, e.Message)
}

// Is matches the error's kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(*ErrorKind)
	return ok && k == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the error is a schema/programming error.
func (e *Error) Fatal() bool { return e.Kind != nil && e.Kind.fatal }

// IsFatal reports whether any error in err's chain is a fatal engine error.
func IsFatal(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Fatal()
}

var logger atomic.Pointer[slog.Logger]

// SetLogger installs the diagnostic sink. A nil logger restores
// slog.Default().
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func diag() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

func newError(op string, kind *ErrorKind, cause error, format string, args ...any) *Error {
	e := &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
	if kind.fatal {
		diag().Error(e.Message, "op", op, "kind", kind.name)
	} else {
		diag().Warn(e.Message, "op", op, "kind", kind.name)
	}
	return e
}

func errorf(op string, kind *ErrorKind, format string, args ...any) error {
	return newError(op, kind, nil, format, args...)
}

func wrapf(op string, kind *ErrorKind, cause error, format string, args ...any) error {
	return newError(op, kind, cause, format, args...)
}
