package kernel

import (
	"errors"
	"fmt"
)

// ErrorNumber is a recoverable syscall error code. These numbers are part of
// the guest-facing ABI: the guest receives them as the return value of a
// failed syscall and decides how to react.
type ErrorNumber uint32

const (
	IllegalArgument ErrorNumber = iota + 1
	IllegalOperation
	LimitExceeded
	AssertionFailed
	InsufficientFunds
	NotFound
	InvalidHandle
	IllegalCid
	IllegalCodec
	Serialization
	Forbidden
	BufferTooSmall
)

func (n ErrorNumber) String() string {
	switch n {
	case IllegalArgument:
		return "illegal argument"
	case IllegalOperation:
		return "illegal operation"
	case LimitExceeded:
		return "limit exceeded"
	case AssertionFailed:
		return "assertion failed"
	case InsufficientFunds:
		return "insufficient funds"
	case NotFound:
		return "not found"
	case InvalidHandle:
		return "invalid handle"
	case IllegalCid:
		return "illegal cid"
	case IllegalCodec:
		return "illegal codec"
	case Serialization:
		return "serialization error"
	case Forbidden:
		return "forbidden"
	case BufferTooSmall:
		return "buffer too small"
	default:
		return fmt.Sprintf("errno %d", uint32(n))
	}
}

// SyscallError is a recoverable failure: it is reported back to the guest as
// its numeric code and execution continues.
type SyscallError struct {
	Message string
	Code    ErrorNumber
}

func (e *SyscallError) Error() string {
	return fmt.Sprintf("syscall error: %s (%s)", e.Message, e.Code)
}

// Syscall constructs a recoverable error with the given code.
func Syscall(code ErrorNumber, format string, args ...interface{}) *SyscallError {
	return &SyscallError{Message: fmt.Sprintf(format, args...), Code: code}
}

// FatalError is an unrecoverable failure: the whole invocation unwinds and
// no code is returned to the guest.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps an error as unrecoverable.
func Fatal(err error) *FatalError {
	return &FatalError{Err: err}
}

// Fatalf constructs an unrecoverable error from a format string.
func Fatalf(format string, args ...interface{}) *FatalError {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

// ErrOutOfGas is returned by ChargeGas when a charge would exceed the
// remaining budget. It always terminates the invocation.
var ErrOutOfGas = errors.New("out of gas")

// AsSyscallError extracts a recoverable error, if err is one.
func AsSyscallError(err error) (*SyscallError, bool) {
	var se *SyscallError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsOutOfGas reports whether err is a gas-exhaustion failure.
func IsOutOfGas(err error) bool {
	return errors.Is(err, ErrOutOfGas)
}
