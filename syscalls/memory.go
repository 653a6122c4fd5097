package syscalls

import (
	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-fvm/kernel"
)

// Memory is a bounds-checked view over a guest's linear memory for the span
// of one host call. Offsets and lengths come straight from the guest and are
// validated with 64-bit arithmetic so offset+length cannot wrap.
//
// Slices returned from a Memory alias the guest's memory and must not be
// retained beyond the call that obtained them: the backing buffer moves when
// the guest grows its memory.
type Memory struct {
	data []byte
}

// NewMemory wraps a linear memory buffer.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

// Len returns the memory's size in bytes.
func (m *Memory) Len() uint64 {
	return uint64(len(m.data))
}

func (m *Memory) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return kernel.Syscall(kernel.IllegalArgument,
			"buffer of length %d at offset %d exceeds memory of size %d", length, offset, len(m.data))
	}
	return nil
}

// Slice returns the guest byte range [offset, offset+length). The returned
// slice is writable and aliases guest memory.
func (m *Memory) Slice(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : uint64(offset)+uint64(length)], nil
}

// Write copies b into guest memory at offset. Nothing is written when the
// range does not fit.
func (m *Memory) Write(offset uint32, b []byte) error {
	dst, err := m.Slice(offset, uint32(len(b)))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// ReadAddress decodes an address from the given guest range.
func (m *Memory) ReadAddress(offset, length uint32) (address.Address, error) {
	raw, err := m.Slice(offset, length)
	if err != nil {
		return address.Undef, err
	}
	addr, err := address.NewFromBytes(raw)
	if err != nil {
		return address.Undef, kernel.Syscall(kernel.IllegalArgument, "invalid address: %v", err)
	}
	return addr, nil
}

// ReadCid decodes a CID starting at offset. CIDs are self-delimiting, so the
// guest passes no length; the parse consumes a prefix of the remaining
// memory.
func (m *Memory) ReadCid(offset uint32) (cid.Cid, error) {
	if uint64(offset) > uint64(len(m.data)) {
		return cid.Undef, kernel.Syscall(kernel.IllegalArgument,
			"cid offset %d exceeds memory of size %d", offset, len(m.data))
	}
	_, c, err := cid.CidFromBytes(m.data[offset:])
	if err != nil {
		return cid.Undef, kernel.Syscall(kernel.IllegalArgument, "invalid cid: %v", err)
	}
	return c, nil
}
