package kernel

import (
	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
)

// ActorID is the numeric identifier an address resolves to.
type ActorID uint64

// Kernel is the set of operations the syscall layer consumes from the host.
// Implementations are single-threaded: one kernel serves one invocation and
// is never shared across goroutines.
type Kernel interface {
	// ResolveAddress resolves an address to an actor ID. The second return
	// is false when the address does not map to any actor; that is not an
	// error.
	ResolveAddress(addr address.Address) (ActorID, bool, error)

	// GetActorCodeCid looks up the code CID of the actor at addr. The second
	// return is false when there is no such actor.
	GetActorCodeCid(addr address.Address) (cid.Cid, bool, error)

	// NewActorAddress generates an address unique within this invocation for
	// a new actor.
	NewActorAddress() (address.Address, error)

	// CreateActor instantiates an actor of the given code type at addr.
	CreateActor(code cid.Cid, addr address.Address) error

	// ChargeGas deducts amount from the remaining budget, returning
	// ErrOutOfGas if the charge does not fit.
	ChargeGas(name string, amount uint64) error

	// GasAvailable returns the remaining budget.
	GasAvailable() uint64

	// PriceList returns the gas cost table for this invocation.
	PriceList() PriceList
}

// GasCharge names a single gas deduction.
type GasCharge struct {
	Name    string
	Compute uint64
}

// PriceList is the cost table consulted by the syscall layer and the kernel.
type PriceList struct {
	// SyscallGas is the flat overhead charged on entry to every syscall.
	SyscallGas uint64
	// CreateActorGas is charged when an actor is instantiated.
	CreateActorGas uint64
	// ExecGasPerUnit converts guest execution units into gas.
	ExecGasPerUnit uint64
}

// DefaultPriceList returns the cost table used when none is configured.
func DefaultPriceList() PriceList {
	return PriceList{
		SyscallGas:     14000,
		CreateActorGas: 750000,
		ExecGasPerUnit: 1,
	}
}

// OnSyscall returns the charge applied before any syscall body runs.
func (p PriceList) OnSyscall() GasCharge {
	return GasCharge{Name: "OnSyscall", Compute: p.SyscallGas}
}

// OnCreateActor returns the charge for instantiating an actor.
func (p PriceList) OnCreateActor() GasCharge {
	return GasCharge{Name: "OnCreateActor", Compute: p.CreateActorGas}
}

// OnExec returns the charge for units of guest execution since the last
// syscall boundary.
func (p PriceList) OnExec(units uint64) GasCharge {
	return GasCharge{Name: "OnExec", Compute: units * p.ExecGasPerUnit}
}
