package syscalls

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/filecoin-project/go-fvm/backtrace"
	"github.com/filecoin-project/go-fvm/kernel"
)

// GasGlobalName is the mutable i64 global a guest must export. Instrumented
// guest code decrements it as it executes; the binder settles the consumed
// amount against the kernel at every syscall boundary and mirrors the
// authoritative remainder back so the guest can introspect its budget.
const GasGlobalName = "available_gas"

// InvocationData is the per-invocation state the binder works against. It is
// created by the execution harness before the first guest call and lives for
// the whole invocation. Not safe for concurrent use; an invocation runs on
// exactly one goroutine.
type InvocationData[K kernel.Kernel] struct {
	// Kernel handles the invocation's host operations and owns its gas
	// counters.
	Kernel K

	// LastError holds the diagnostic of the most recent recoverable syscall
	// failure. Successful syscalls clear it.
	LastError *backtrace.Cause

	// lastGasAvailable is the value most recently mirrored into the guest's
	// gas global.
	lastGasAvailable uint64
}

// NewInvocationData bundles a kernel for one invocation.
func NewInvocationData[K kernel.Kernel](k K) *InvocationData[K] {
	return &InvocationData[K]{Kernel: k}
}

// Context pairs the kernel with a memory view for the span of one syscall.
// Syscall implementations receive it by pointer and must not store it.
type Context[K kernel.Kernel] struct {
	Kernel K
	Memory *Memory
}

// Trap carries an Abort out of a host call, unwinding the guest via panic.
// The execution harness recovers it and fails the invocation.
type Trap struct {
	Module string
	Name   string
	Abort  Abort
}

func (t *Trap) Error() string {
	return fmt.Sprintf("syscall %s::%s aborted: %s", t.Module, t.Name, t.Abort)
}

type contextKey string

const invocationKey contextKey = "fvm-invocation"

// WithInvocationData attaches data to the context passed into a guest call,
// making it reachable from host functions.
func WithInvocationData[K kernel.Kernel](ctx context.Context, data *InvocationData[K]) context.Context {
	return context.WithValue(ctx, invocationKey, data)
}

func invocationDataFrom[K kernel.Kernel](ctx context.Context, module, name string) *InvocationData[K] {
	data, ok := ctx.Value(invocationKey).(*InvocationData[K])
	if !ok {
		panic(&Trap{Module: module, Name: name, Abort: Abort{
			Fatal: kernel.Fatalf("no invocation data on context"),
		}})
	}
	return data
}

// gasGlobal is the slice of api.MutableGlobal the binder needs; tests
// substitute a plain counter.
type gasGlobal interface {
	Get() uint64
	Set(uint64)
}

// chargeForExec settles the guest execution slice since the last syscall
// boundary: the guest decremented the gas global while running, and the
// difference is charged to the kernel here.
func (d *InvocationData[K]) chargeForExec(g gasGlobal) error {
	avail := g.Get()
	if avail > d.lastGasAvailable {
		return kernel.Fatalf("gas global increased from %d to %d between syscalls", d.lastGasAvailable, avail)
	}
	used := d.lastGasAvailable - avail
	d.lastGasAvailable = avail
	charge := d.Kernel.PriceList().OnExec(used)
	return d.Kernel.ChargeGas(charge.Name, charge.Compute)
}

// updateGasAvailable mirrors the kernel's remaining budget into the guest's
// gas global. Called after every syscall that returns to the guest; aborted
// syscalls skip it because the invocation is over.
func (d *InvocationData[K]) updateGasAvailable(g gasGlobal) {
	avail := d.Kernel.GasAvailable()
	g.Set(avail)
	d.lastGasAvailable = avail
}

// SyncGasGlobal seeds the guest's gas global before execution starts.
func (d *InvocationData[K]) SyncGasGlobal(g api.MutableGlobal) {
	d.updateGasAvailable(g)
}
