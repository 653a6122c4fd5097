package kernel

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKernel(t *testing.T, gasLimit uint64) *DefaultKernel {
	t.Helper()
	origin, err := address.NewIDAddress(100)
	require.NoError(t, err)
	pl := PriceList{SyscallGas: 10, CreateActorGas: 100, ExecGasPerUnit: 1}
	return NewDefaultKernel(NewActorStore(dbm.NewMemDB()), origin, 42, gasLimit, pl)
}

func TestDefaultKernelResolveAddress(t *testing.T) {
	k := testKernel(t, 1_000_000)

	t.Run("id addresses resolve directly", func(t *testing.T) {
		idAddr, err := address.NewIDAddress(7)
		require.NoError(t, err)
		id, found, err := k.ResolveAddress(idAddr)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, ActorID(7), id)
	})

	t.Run("unknown address does not resolve", func(t *testing.T) {
		_, found, err := k.ResolveAddress(testActorAddr(t, "nobody"))
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("created actor resolves via the store", func(t *testing.T) {
		addr := testActorAddr(t, "carol")
		require.NoError(t, k.CreateActor(testCid(t, "code"), addr))

		id, found, err := k.ResolveAddress(addr)
		require.NoError(t, err)
		require.True(t, found)
		assert.GreaterOrEqual(t, uint64(id), uint64(100))
	})
}

func TestDefaultKernelGetActorCodeCid(t *testing.T) {
	k := testKernel(t, 1_000_000)
	addr := testActorAddr(t, "dave")
	code := testCid(t, "multisig actor")

	_, found, err := k.GetActorCodeCid(addr)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, k.CreateActor(code, addr))

	got, found, err := k.GetActorCodeCid(addr)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, code, got)
}

func TestDefaultKernelCreateActor(t *testing.T) {
	t.Run("charges creation gas", func(t *testing.T) {
		k := testKernel(t, 1_000_000)
		require.NoError(t, k.CreateActor(testCid(t, "code"), testActorAddr(t, "erin")))
		assert.Equal(t, uint64(100), k.GasUsed())
	})

	t.Run("claimed address is forbidden", func(t *testing.T) {
		k := testKernel(t, 1_000_000)
		addr := testActorAddr(t, "frank")
		require.NoError(t, k.CreateActor(testCid(t, "code"), addr))

		err := k.CreateActor(testCid(t, "other code"), addr)
		se, ok := AsSyscallError(err)
		require.True(t, ok)
		assert.Equal(t, Forbidden, se.Code)
	})

	t.Run("insufficient budget", func(t *testing.T) {
		k := testKernel(t, 50)
		err := k.CreateActor(testCid(t, "code"), testActorAddr(t, "grace"))
		require.True(t, IsOutOfGas(err))
	})
}

func TestDefaultKernelNewActorAddress(t *testing.T) {
	k := testKernel(t, 1_000_000)

	seen := make(map[address.Address]struct{})
	for i := 0; i < 10; i++ {
		addr, err := k.NewActorAddress()
		require.NoError(t, err)
		assert.Equal(t, address.Actor, addr.Protocol())
		assert.Len(t, addr.Bytes(), 21)

		_, dup := seen[addr]
		require.False(t, dup, "addresses within an invocation must be unique")
		seen[addr] = struct{}{}
	}
}

func TestDefaultKernelGas(t *testing.T) {
	k := testKernel(t, 100)

	require.NoError(t, k.ChargeGas("OnExec", 60))
	assert.Equal(t, uint64(40), k.GasAvailable())

	err := k.ChargeGas("OnSyscall", 41)
	require.True(t, IsOutOfGas(err))
	assert.Equal(t, uint64(0), k.GasAvailable(), "a failed charge exhausts the budget")

	// Once exhausted, everything fails.
	require.True(t, IsOutOfGas(k.ChargeGas("OnExec", 1)))
}
