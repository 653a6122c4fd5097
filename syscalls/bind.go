package syscalls

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/filecoin-project/go-fvm/backtrace"
	"github.com/filecoin-project/go-fvm/kernel"
)

// bodyFn is a syscall with its arguments still on the wasm stack. The BindN
// adapters produce one from a typed host function.
type bodyFn[K kernel.Kernel] func(c *Context[K], args []uint64) control

// bindSyscall registers a type-erased syscall under (module, name),
// implementing the full calling convention:
//
//  1. charge gas for the execution slice leading up to the call, then the
//     flat per-syscall overhead; both abort on exhaustion before the body
//     can run;
//  2. when the success value is non-zero-sized, the guest passes a leading
//     out-pointer which is validated against memory bounds before the body
//     runs; the value is stored there byte-wise on success;
//  3. the guest receives 0 on success or the recoverable error's code,
//     which is also recorded as the invocation's last error (success clears
//     the record); an abort unwinds the call chain instead;
//  4. the guest-visible gas counter is resynchronized from the kernel on
//     every path that returns to the guest.
func (l *Linker[K]) bindSyscall(module, name string, size int, params []api.ValueType, body bodyFn[K]) {
	if size > 0 {
		params = append([]api.ValueType{api.ValueTypeI32}, params...)
	}
	l.builder(module).NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			data := invocationDataFrom[K](ctx, module, name)
			g := mustGasGlobal(mod, module, name)
			mem := mustMemoryView(mod, module, name)
			stack[0] = uint64(l.step(data, g, mem, module, name, size, body, stack))
		}), params, []api.ValueType{api.ValueTypeI32}).
		Export(name)
}

// step runs one syscall against already-captured invocation state. It
// returns the status code for the guest, or panics with a *Trap when the
// outcome is an abort.
func (l *Linker[K]) step(data *InvocationData[K], g gasGlobal, mem *Memory, module, name string, size int, body bodyFn[K], stack []uint64) uint32 {
	l.chargeEntry(data, g, module, name)

	args := stack
	var retPtr uint32
	if size > 0 {
		retPtr = uint32(stack[0])
		args = stack[1:]
		if uint64(retPtr)+uint64(size) > mem.Len() {
			err := kernel.Syscall(kernel.IllegalArgument, "no space for return value")
			return l.fail(data, g, module, name, err)
		}
	}

	out := body(&Context[K]{Kernel: data.Kernel, Memory: mem}, args)
	switch {
	case out.abort != nil:
		// The invocation is over; the gas global is deliberately left stale.
		panic(&Trap{Module: module, Name: name, Abort: *out.abort})
	case out.err != nil:
		return l.fail(data, g, module, name, out.err)
	default:
		if size > 0 {
			dst, err := mem.Slice(retPtr, uint32(size))
			if err != nil {
				panic(&Trap{Module: module, Name: name, Abort: Abort{Fatal: err}})
			}
			putValueBits(dst, size, out.bits)
		}
		l.log.Tracef("syscall %s::%s: ok", module, name)
		data.LastError = nil
		data.updateGasAvailable(g)
		return 0
	}
}

// chargeEntry performs the two pre-body charges. Exhaustion at this point
// aborts: a call that cannot pay for itself never executes.
func (l *Linker[K]) chargeEntry(data *InvocationData[K], g gasGlobal, module, name string) {
	if err := data.chargeForExec(g); err != nil {
		panic(&Trap{Module: module, Name: name, Abort: abortFromError(err)})
	}
	charge := data.Kernel.PriceList().OnSyscall()
	if err := data.Kernel.ChargeGas(charge.Name, charge.Compute); err != nil {
		panic(&Trap{Module: module, Name: name, Abort: abortFromError(err)})
	}
}

// fail records a recoverable error as the invocation's last error and hands
// its code back to the guest.
func (l *Linker[K]) fail(data *InvocationData[K], g gasGlobal, module, name string, err *kernel.SyscallError) uint32 {
	l.log.Tracef("syscall %s::%s: fail (%d)", module, name, uint32(err.Code))
	data.LastError = backtrace.FromSyscall(module, name, err)
	data.updateGasAvailable(g)
	return uint32(err.Code)
}

func wasmType[A Arg]() api.ValueType {
	var zero A
	switch any(zero).(type) {
	case int32, uint32:
		return api.ValueTypeI32
	default:
		return api.ValueTypeI64
	}
}

// The BindN family adapts typed host functions of each supported arity onto
// bindSyscall. Behavior is identical across arities; only the argument count
// differs.

func Bind0[K kernel.Kernel, R Value](l *Linker[K], module, name string, fn func(*Context[K]) ControlFlow[R]) {
	l.bindSyscall(module, name, valueSize[R](), nil,
		func(c *Context[K], _ []uint64) control {
			return fn(c).erase()
		})
}

func Bind1[K kernel.Kernel, A1 Arg, R Value](l *Linker[K], module, name string, fn func(*Context[K], A1) ControlFlow[R]) {
	l.bindSyscall(module, name, valueSize[R](), []api.ValueType{wasmType[A1]()},
		func(c *Context[K], args []uint64) control {
			return fn(c, A1(args[0])).erase()
		})
}

func Bind2[K kernel.Kernel, A1, A2 Arg, R Value](l *Linker[K], module, name string, fn func(*Context[K], A1, A2) ControlFlow[R]) {
	l.bindSyscall(module, name, valueSize[R](), []api.ValueType{wasmType[A1](), wasmType[A2]()},
		func(c *Context[K], args []uint64) control {
			return fn(c, A1(args[0]), A2(args[1])).erase()
		})
}

func Bind3[K kernel.Kernel, A1, A2, A3 Arg, R Value](l *Linker[K], module, name string, fn func(*Context[K], A1, A2, A3) ControlFlow[R]) {
	l.bindSyscall(module, name, valueSize[R](), []api.ValueType{wasmType[A1](), wasmType[A2](), wasmType[A3]()},
		func(c *Context[K], args []uint64) control {
			return fn(c, A1(args[0]), A2(args[1]), A3(args[2])).erase()
		})
}

func Bind4[K kernel.Kernel, A1, A2, A3, A4 Arg, R Value](l *Linker[K], module, name string, fn func(*Context[K], A1, A2, A3, A4) ControlFlow[R]) {
	l.bindSyscall(module, name, valueSize[R](), []api.ValueType{wasmType[A1](), wasmType[A2](), wasmType[A3](), wasmType[A4]()},
		func(c *Context[K], args []uint64) control {
			return fn(c, A1(args[0]), A2(args[1]), A3(args[2]), A4(args[3])).erase()
		})
}

func Bind5[K kernel.Kernel, A1, A2, A3, A4, A5 Arg, R Value](l *Linker[K], module, name string, fn func(*Context[K], A1, A2, A3, A4, A5) ControlFlow[R]) {
	l.bindSyscall(module, name, valueSize[R](), []api.ValueType{wasmType[A1](), wasmType[A2](), wasmType[A3](), wasmType[A4](), wasmType[A5]()},
		func(c *Context[K], args []uint64) control {
			return fn(c, A1(args[0]), A2(args[1]), A3(args[2]), A4(args[3]), A5(args[4])).erase()
		})
}

func Bind6[K kernel.Kernel, A1, A2, A3, A4, A5, A6 Arg, R Value](l *Linker[K], module, name string, fn func(*Context[K], A1, A2, A3, A4, A5, A6) ControlFlow[R]) {
	l.bindSyscall(module, name, valueSize[R](), []api.ValueType{wasmType[A1](), wasmType[A2](), wasmType[A3](), wasmType[A4](), wasmType[A5](), wasmType[A6]()},
		func(c *Context[K], args []uint64) control {
			return fn(c, A1(args[0]), A2(args[1]), A3(args[2]), A4(args[3]), A5(args[4]), A6(args[5])).erase()
		})
}

func Bind7[K kernel.Kernel, A1, A2, A3, A4, A5, A6, A7 Arg, R Value](l *Linker[K], module, name string, fn func(*Context[K], A1, A2, A3, A4, A5, A6, A7) ControlFlow[R]) {
	l.bindSyscall(module, name, valueSize[R](), []api.ValueType{wasmType[A1](), wasmType[A2](), wasmType[A3](), wasmType[A4](), wasmType[A5](), wasmType[A6](), wasmType[A7]()},
		func(c *Context[K], args []uint64) control {
			return fn(c, A1(args[0]), A2(args[1]), A3(args[2]), A4(args[3]), A5(args[4]), A6(args[5]), A7(args[6])).erase()
		})
}

func Bind8[K kernel.Kernel, A1, A2, A3, A4, A5, A6, A7, A8 Arg, R Value](l *Linker[K], module, name string, fn func(*Context[K], A1, A2, A3, A4, A5, A6, A7, A8) ControlFlow[R]) {
	l.bindSyscall(module, name, valueSize[R](), []api.ValueType{wasmType[A1](), wasmType[A2](), wasmType[A3](), wasmType[A4](), wasmType[A5](), wasmType[A6](), wasmType[A7](), wasmType[A8]()},
		func(c *Context[K], args []uint64) control {
			return fn(c, A1(args[0]), A2(args[1]), A3(args[2]), A4(args[3]), A5(args[4]), A6(args[5]), A7(args[6]), A8(args[7])).erase()
		})
}
