package syscalls

import (
	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-fvm/kernel"
)

// stubKernel scripts every kernel operation and records what was charged.
type stubKernel struct {
	resolveID    kernel.ActorID
	resolveFound bool
	resolveErr   error

	code      cid.Cid
	codeFound bool
	codeErr   error

	newAddr      address.Address
	newAddrErr   error
	newAddrCalls int

	createErr   error
	createCalls int

	gasLimit uint64
	gasUsed  uint64
	charges  []kernel.GasCharge

	priceList kernel.PriceList
}

var _ kernel.Kernel = (*stubKernel)(nil)

func newStubKernel(gasLimit uint64) *stubKernel {
	return &stubKernel{
		gasLimit:  gasLimit,
		priceList: kernel.PriceList{SyscallGas: 10, CreateActorGas: 100, ExecGasPerUnit: 1},
	}
}

func (k *stubKernel) ResolveAddress(address.Address) (kernel.ActorID, bool, error) {
	return k.resolveID, k.resolveFound, k.resolveErr
}

func (k *stubKernel) GetActorCodeCid(address.Address) (cid.Cid, bool, error) {
	return k.code, k.codeFound, k.codeErr
}

func (k *stubKernel) NewActorAddress() (address.Address, error) {
	k.newAddrCalls++
	return k.newAddr, k.newAddrErr
}

func (k *stubKernel) CreateActor(cid.Cid, address.Address) error {
	k.createCalls++
	return k.createErr
}

func (k *stubKernel) ChargeGas(name string, amount uint64) error {
	k.charges = append(k.charges, kernel.GasCharge{Name: name, Compute: amount})
	if amount > k.gasLimit-k.gasUsed {
		k.gasUsed = k.gasLimit
		return kernel.ErrOutOfGas
	}
	k.gasUsed += amount
	return nil
}

func (k *stubKernel) GasAvailable() uint64 {
	return k.gasLimit - k.gasUsed
}

func (k *stubKernel) PriceList() kernel.PriceList {
	return k.priceList
}

// fakeGas is an in-process stand-in for the guest's exported gas global.
type fakeGas struct {
	v uint64
}

func (g *fakeGas) Get() uint64  { return g.v }
func (g *fakeGas) Set(v uint64) { g.v = v }

// invocation builds the state one syscall dispatch needs: data synced to the
// fake gas global and a memory of the given size.
func invocation(gasLimit uint64, memSize int) (*InvocationData[*stubKernel], *fakeGas, *Memory) {
	data := NewInvocationData(newStubKernel(gasLimit))
	g := &fakeGas{}
	data.updateGasAvailable(g)
	return data, g, NewMemory(make([]byte, memSize))
}

// catchTrap runs fn and returns the *Trap it panics with, or nil.
func catchTrap(fn func()) (trap *Trap) {
	defer func() {
		if r := recover(); r != nil {
			t, ok := r.(*Trap)
			if !ok {
				panic(r)
			}
			trap = t
		}
	}()
	fn()
	return nil
}
