package syscalls

import (
	"encoding/binary"
	"fmt"

	"github.com/filecoin-project/go-fvm/kernel"
)

// Unit is the zero-sized success value. Syscalls returning Unit take no
// out-pointer and the guest receives only the status code.
type Unit struct{}

// Never is the success value of syscalls that have no success path. A
// ControlFlow[Never] can only carry an Error or an Abort.
type Never struct{}

// Value constrains syscall success values to the fixed-size scalars the
// return convention can encode, plus Unit and Never.
type Value interface {
	int32 | uint32 | int64 | uint64 | Unit | Never
}

// Arg constrains syscall arguments to the scalar wasm value types.
type Arg interface {
	int32 | uint32 | int64 | uint64
}

// Abort terminates the whole invocation. Exactly one of Fatal and OutOfGas
// is meaningful.
type Abort struct {
	Fatal    error
	OutOfGas bool
}

func (a Abort) String() string {
	if a.OutOfGas {
		return "out of gas"
	}
	return fmt.Sprintf("fatal: %v", a.Fatal)
}

// abortFromError classifies an error that must terminate the invocation:
// gas exhaustion keeps its identity, everything else (recoverable errors
// included) becomes fatal.
func abortFromError(err error) Abort {
	if kernel.IsOutOfGas(err) {
		return Abort{OutOfGas: true}
	}
	return Abort{Fatal: err}
}

// ControlFlow is the three-way outcome of a syscall: a success value for the
// guest, a recoverable error reported as a numeric code, or an abort that
// unwinds the invocation.
type ControlFlow[T Value] struct {
	value T
	err   *kernel.SyscallError
	abort *Abort
}

// Return yields a successful outcome carrying v.
func Return[T Value](v T) ControlFlow[T] {
	return ControlFlow[T]{value: v}
}

// Error yields a recoverable failure.
func Error[T Value](err *kernel.SyscallError) ControlFlow[T] {
	return ControlFlow[T]{err: err}
}

// AbortWith yields an unrecoverable failure.
func AbortWith[T Value](a Abort) ControlFlow[T] {
	return ControlFlow[T]{abort: &a}
}

// AbortAlways is AbortWith for syscalls with no success path.
func AbortAlways(a Abort) ControlFlow[Never] {
	return AbortWith[Never](a)
}

// FromError classifies a kernel error: recoverable errors become Error,
// gas exhaustion becomes Abort(OutOfGas), anything else Abort(Fatal).
func FromError[T Value](err error) ControlFlow[T] {
	if se, ok := kernel.AsSyscallError(err); ok {
		return Error[T](se)
	}
	return AbortWith[T](abortFromError(err))
}

// FromResult converts a kernel (value, error) pair into an outcome.
func FromResult[T Value](v T, err error) ControlFlow[T] {
	if err != nil {
		return FromError[T](err)
	}
	return Return(v)
}

// control is the type-erased form the binder dispatches on. bits holds the
// success value's little-endian representation.
type control struct {
	bits  uint64
	err   *kernel.SyscallError
	abort *Abort
}

func (cf ControlFlow[T]) erase() control {
	if cf.abort != nil {
		return control{abort: cf.abort}
	}
	if cf.err != nil {
		return control{err: cf.err}
	}
	return control{bits: valueBits(cf.value)}
}

// valueSize reports the encoded size of T in bytes: 0 for Unit and Never.
func valueSize[T Value]() int {
	var zero T
	switch any(zero).(type) {
	case Unit, Never:
		return 0
	case int32, uint32:
		return 4
	default:
		return 8
	}
}

func valueBits[T Value](v T) uint64 {
	switch x := any(v).(type) {
	case int32:
		return uint64(uint32(x))
	case uint32:
		return uint64(x)
	case int64:
		return uint64(x)
	case uint64:
		return x
	default: // Unit, Never
		return 0
	}
}

// putValueBits stores a success value at a guest-chosen offset. The store is
// byte-wise: guest pointers carry no alignment guarantee.
func putValueBits(dst []byte, size int, bits uint64) {
	switch size {
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(bits))
	case 8:
		binary.LittleEndian.PutUint64(dst, bits)
	}
}
