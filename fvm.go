// Package fvm executes untrusted wasm actors under a metered kernel,
// exposing host operations to the guest through the syscalls package.
package fvm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/filecoin-project/go-fvm/backtrace"
	"github.com/filecoin-project/go-fvm/kernel"
	"github.com/filecoin-project/go-fvm/syscalls"
)

// Machine owns a wazero runtime with the syscall modules instantiated into
// it, ready to execute guest invocations against kernels of type K.
type Machine[K kernel.Kernel] struct {
	runtime wazero.Runtime
	linker  *syscalls.Linker[K]
	log     logrus.Ext1FieldLogger
}

// New builds a Machine and binds the actor syscalls.
func New[K kernel.Kernel](ctx context.Context) (*Machine[K], error) {
	r := wazero.NewRuntime(ctx)
	l := syscalls.NewLinker[K](r)
	syscalls.BindActorSyscalls(l)
	if err := l.Instantiate(ctx); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}
	return &Machine[K]{runtime: r, linker: l, log: logrus.StandardLogger()}, nil
}

// SetLogger replaces the machine's logger and the linker's trace logger.
func (m *Machine[K]) SetLogger(log logrus.Ext1FieldLogger) {
	m.log = log
	m.linker.SetLogger(log)
}

// Close releases the underlying runtime.
func (m *Machine[K]) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}

// InvocationError is the hard failure handed to an invocation's caller when
// guest execution aborts. Cause carries the last recoverable syscall
// diagnostic recorded before the abort, when there is one.
type InvocationError struct {
	Err   error
	Cause *backtrace.Cause
}

func (e *InvocationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invocation failed: %v (last syscall error: %s)", e.Err, e.Cause)
	}
	return fmt.Sprintf("invocation failed: %v", e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Invoke compiles wasm, instantiates it, and runs the named entrypoint with
// k as the invocation's kernel. The guest must export its linear memory and
// a mutable global named syscalls.GasGlobalName holding its remaining gas.
//
// One invocation runs on one goroutine; concurrent invocations need their
// own kernels but may share the Machine.
func (m *Machine[K]) Invoke(ctx context.Context, wasm []byte, entrypoint string, k K, args ...uint64) ([]uint64, error) {
	compiled, err := m.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compiling guest module: %w", err)
	}
	defer compiled.Close(ctx)

	mod, err := m.runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return nil, fmt.Errorf("instantiating guest module: %w", err)
	}
	defer mod.Close(ctx)

	g, ok := mod.ExportedGlobal(syscalls.GasGlobalName).(api.MutableGlobal)
	if !ok {
		return nil, fmt.Errorf("guest module exports no mutable %q global", syscalls.GasGlobalName)
	}
	fn := mod.ExportedFunction(entrypoint)
	if fn == nil {
		return nil, fmt.Errorf("guest module exports no %q function", entrypoint)
	}

	data := syscalls.NewInvocationData(k)
	data.SyncGasGlobal(g)

	results, err := call(syscalls.WithInvocationData(ctx, data), fn, args)
	if err != nil {
		m.log.WithError(err).Debug("guest invocation aborted")
		return nil, &InvocationError{Err: err, Cause: data.LastError}
	}
	return results, nil
}

// call surfaces a syscall abort as an error whether it unwinds as a panic or
// comes back wrapped by the runtime.
func call(ctx context.Context, fn api.Function, args []uint64) (results []uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			trap, ok := r.(*syscalls.Trap)
			if !ok {
				panic(r)
			}
			err = trap
		}
	}()
	results, err = fn.Call(ctx, args...)
	if err != nil {
		var trap *syscalls.Trap
		if errors.As(err, &trap) {
			err = trap
		}
	}
	return results, err
}
