package kernel

import (
	"encoding/binary"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
)

// DefaultKernel is a reference Kernel over an ActorStore, scoped to one
// invocation. It meters gas against a fixed budget and derives new actor
// addresses from the invocation's origin and nonce.
type DefaultKernel struct {
	store *ActorStore

	origin address.Address
	nonce  uint64

	priceList PriceList
	gasLimit  uint64
	gasUsed   uint64

	// addressCount makes repeated NewActorAddress calls within one
	// invocation yield distinct addresses.
	addressCount uint64
}

var _ Kernel = (*DefaultKernel)(nil)

// NewDefaultKernel builds a kernel for a single invocation. origin and nonce
// identify the triggering message; gasLimit is the invocation's budget.
func NewDefaultKernel(store *ActorStore, origin address.Address, nonce uint64, gasLimit uint64, pl PriceList) *DefaultKernel {
	return &DefaultKernel{
		store:     store,
		origin:    origin,
		nonce:     nonce,
		priceList: pl,
		gasLimit:  gasLimit,
	}
}

func (k *DefaultKernel) ResolveAddress(addr address.Address) (ActorID, bool, error) {
	// ID addresses carry their actor ID directly.
	if addr.Protocol() == address.ID {
		id, err := address.IDFromAddress(addr)
		if err != nil {
			return 0, false, Syscall(IllegalArgument, "invalid id address %s: %v", addr, err)
		}
		return ActorID(id), true, nil
	}
	act, found, err := k.store.Lookup(addr)
	if err != nil {
		return 0, false, Fatal(err)
	}
	if !found {
		return 0, false, nil
	}
	return act.ID, true, nil
}

func (k *DefaultKernel) GetActorCodeCid(addr address.Address) (cid.Cid, bool, error) {
	act, found, err := k.store.Lookup(addr)
	if err != nil {
		return cid.Undef, false, Fatal(err)
	}
	if !found {
		return cid.Undef, false, nil
	}
	code, err := act.CodeCid()
	if err != nil {
		return cid.Undef, false, Fatal(err)
	}
	return code, true, nil
}

func (k *DefaultKernel) NewActorAddress() (address.Address, error) {
	var seed [16]byte
	binary.BigEndian.PutUint64(seed[0:], k.nonce)
	binary.BigEndian.PutUint64(seed[8:], k.addressCount)
	k.addressCount++

	addr, err := address.NewActorAddress(append(k.origin.Bytes(), seed[:]...))
	if err != nil {
		return address.Undef, Fatal(err)
	}
	return addr, nil
}

func (k *DefaultKernel) CreateActor(code cid.Cid, addr address.Address) error {
	charge := k.priceList.OnCreateActor()
	if err := k.ChargeGas(charge.Name, charge.Compute); err != nil {
		return err
	}
	_, found, err := k.store.Lookup(addr)
	if err != nil {
		return Fatal(err)
	}
	if found {
		return Syscall(Forbidden, "address %s already claimed", addr)
	}
	id, err := k.store.NextID()
	if err != nil {
		return Fatal(err)
	}
	if err := k.store.Put(addr, &Actor{ID: id, Code: code.Bytes()}); err != nil {
		return Fatal(err)
	}
	return nil
}

func (k *DefaultKernel) ChargeGas(name string, amount uint64) error {
	if amount > k.gasLimit-k.gasUsed {
		k.gasUsed = k.gasLimit
		return ErrOutOfGas
	}
	k.gasUsed += amount
	return nil
}

func (k *DefaultKernel) GasAvailable() uint64 {
	return k.gasLimit - k.gasUsed
}

// GasUsed returns the gas consumed so far.
func (k *DefaultKernel) GasUsed() uint64 {
	return k.gasUsed
}

func (k *DefaultKernel) PriceList() PriceList {
	return k.priceList
}
