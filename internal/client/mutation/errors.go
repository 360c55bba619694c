package mutation

import (
	"errors"
	"fmt"

	"github.com/iudanet/bookclub/internal/remote"
)

// Kind classifies a rejected or failed mutation.
type Kind int

const (
	KindUnauthenticated Kind = iota + 1
	KindForbidden
	KindNotFound
	KindDuplicateConflict
	KindValidation
	KindTransport
)

// Sentinel errors matched with errors.Is against *Error.
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateConflict = errors.New("duplicate conflict")
	ErrValidation        = errors.New("validation error")
	ErrTransport         = errors.New("transport error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindForbidden:
		return ErrForbidden
	case KindNotFound:
		return ErrNotFound
	case KindDuplicateConflict:
		return ErrDuplicateConflict
	case KindValidation:
		return ErrValidation
	case KindTransport:
		return ErrTransport
	}
	return nil
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the typed failure carried by Result.Err.
type Error struct {
	Err  error
	Op   string
	Msg  string
	Kind Kind
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Errorf builds an *Error without a cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validation wraps a domain validation failure.
func Validation(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// FromRemote classifies an error returned by the remote store.
func FromRemote(op string, err error) *Error {
	var me *Error
	if errors.As(err, &me) {
		return me
	}

	kind := KindTransport
	switch {
	case errors.Is(err, remote.ErrUnauthorized):
		kind = KindUnauthenticated
	case errors.Is(err, remote.ErrForbidden):
		kind = KindForbidden
	case errors.Is(err, remote.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, remote.ErrInvalid):
		kind = KindValidation
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
