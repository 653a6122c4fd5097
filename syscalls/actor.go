package syscalls

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/filecoin-project/go-fvm/kernel"
)

// ActorModule is the import module name the actor syscalls are exported
// under.
const ActorModule = "actor"

// minActorAddressLen is the encoded length of a protocol-generated (class 2)
// actor address: one protocol byte plus a 20-byte hash. Larger address
// classes will raise this floor.
const minActorAddressLen = 21

// BindActorSyscalls registers the actor operation set on the linker.
func BindActorSyscalls[K kernel.Kernel](l *Linker[K]) {
	bindResolveAddress(l, ActorModule, "resolve_address")
	Bind4(l, ActorModule, "get_actor_code_cid", getActorCodeCid[K])
	Bind2(l, ActorModule, "new_actor_address", newActorAddress[K])
	Bind3(l, ActorModule, "create_actor", createActor[K])
}

// getActorCodeCid writes the code CID of the actor at the given address into
// the output buffer and returns 0, or returns -1 without writing when there
// is no such actor.
func getActorCodeCid[K kernel.Kernel](c *Context[K], addrOff, addrLen, obufOff, obufLen uint32) ControlFlow[int32] {
	addr, err := c.Memory.ReadAddress(addrOff, addrLen)
	if err != nil {
		return FromError[int32](err)
	}
	code, found, err := c.Kernel.GetActorCodeCid(addr)
	if err != nil {
		return FromError[int32](err)
	}
	if !found {
		return Return[int32](-1)
	}
	obuf, err := c.Memory.Slice(obufOff, obufLen)
	if err != nil {
		return FromError[int32](err)
	}
	raw := code.Bytes()
	if len(raw) > len(obuf) {
		// A buffer that passed the bounds check but cannot hold the encoded
		// CID is a codec-level failure, not a guest-recoverable one.
		return AbortWith[int32](Abort{Fatal: kernel.Fatalf(
			"encoded code cid of %d bytes exceeds output buffer of %d bytes", len(raw), len(obuf))})
	}
	copy(obuf, raw)
	return Return[int32](0)
}

// newActorAddress asks the kernel for a fresh actor address and writes its
// encoding into the output buffer, returning the number of bytes written.
func newActorAddress[K kernel.Kernel](c *Context[K], obufOff, obufLen uint32) ControlFlow[uint32] {
	// Checked before any kernel interaction.
	if obufLen < minActorAddressLen {
		return Error[uint32](kernel.Syscall(kernel.BufferTooSmall,
			"output buffer must have a minimum capacity of %d bytes", minActorAddressLen))
	}

	addr, err := c.Kernel.NewActorAddress()
	if err != nil {
		return FromError[uint32](err)
	}

	// Valid addresses can exceed the fixed floor, so the actual encoded
	// length gets its own check.
	raw := addr.Bytes()
	if uint64(len(raw)) > uint64(obufLen) {
		return Error[uint32](kernel.Syscall(kernel.BufferTooSmall,
			"insufficient output buffer capacity; %d (new address) > %d (buffer capacity)", len(raw), obufLen))
	}

	if err := c.Memory.Write(obufOff, raw); err != nil {
		return FromError[uint32](err)
	}
	return Return(uint32(len(raw)))
}

// createActor instantiates an actor of the given code type at the given
// address. It has no recoverable-error path: any failure, including ones the
// kernel reports as recoverable, terminates the invocation.
func createActor[K kernel.Kernel](c *Context[K], addrOff, addrLen, typOff uint32) ControlFlow[Unit] {
	addr, err := c.Memory.ReadAddress(addrOff, addrLen)
	if err != nil {
		return AbortWith[Unit](abortFromError(err))
	}
	code, err := c.Memory.ReadCid(typOff)
	if err != nil {
		return AbortWith[Unit](abortFromError(err))
	}
	if err := c.Kernel.CreateActor(code, addr); err != nil {
		return AbortWith[Unit](abortFromError(err))
	}
	return Return(Unit{})
}

// bindResolveAddress registers resolve_address by hand: it returns two
// values, (status, id), so it bypasses the generic out-pointer convention
// and uses a wasm multi-value result instead. The rest of the protocol is
// identical to the bound path.
func bindResolveAddress[K kernel.Kernel](l *Linker[K], module, name string) {
	l.builder(module).NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			data := invocationDataFrom[K](ctx, module, name)
			g := mustGasGlobal(mod, module, name)
			mem := mustMemoryView(mod, module, name)
			id, found := l.resolveAddress(data, g, mem, module, name, uint32(stack[0]), uint32(stack[1]))
			if found {
				stack[0] = 0
				stack[1] = uint64(id)
			} else {
				stack[0] = api.EncodeI32(-1)
				stack[1] = 0
			}
		}),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI64}).
		Export(name)
}

// resolveAddress never produces a recoverable error: "not found" is a normal
// outcome and every failure aborts.
func (l *Linker[K]) resolveAddress(data *InvocationData[K], g gasGlobal, mem *Memory, module, name string, addrOff, addrLen uint32) (kernel.ActorID, bool) {
	l.chargeEntry(data, g, module, name)

	addr, err := mem.ReadAddress(addrOff, addrLen)
	if err != nil {
		panic(&Trap{Module: module, Name: name, Abort: abortFromError(err)})
	}
	id, found, err := data.Kernel.ResolveAddress(addr)
	if err != nil {
		panic(&Trap{Module: module, Name: name, Abort: abortFromError(err)})
	}

	l.log.Tracef("syscall %s::%s: ok", module, name)
	data.LastError = nil
	data.updateGasAvailable(g)
	return id, found
}
