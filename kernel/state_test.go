package kernel

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCid(t *testing.T, data string) cid.Cid {
	t.Helper()
	mh, err := multihash.Sum([]byte(data), multihash.IDENTITY, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, mh)
}

func testActorAddr(t *testing.T, seed string) address.Address {
	t.Helper()
	addr, err := address.NewActorAddress([]byte(seed))
	require.NoError(t, err)
	return addr
}

func TestActorStoreRoundTrip(t *testing.T) {
	store := NewActorStore(dbm.NewMemDB())
	addr := testActorAddr(t, "alice")
	code := testCid(t, "account actor")

	_, found, err := store.Lookup(addr)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Put(addr, &Actor{ID: 101, Code: code.Bytes()}))

	act, found, err := store.Lookup(addr)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ActorID(101), act.ID)

	got, err := act.CodeCid()
	require.NoError(t, err)
	assert.Equal(t, code, got)
}

func TestActorStoreLookupMissesOtherAddresses(t *testing.T) {
	store := NewActorStore(dbm.NewMemDB())
	code := testCid(t, "code")
	require.NoError(t, store.Put(testActorAddr(t, "alice"), &Actor{ID: 100, Code: code.Bytes()}))

	_, found, err := store.Lookup(testActorAddr(t, "bob"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestActorStoreNextID(t *testing.T) {
	store := NewActorStore(dbm.NewMemDB())

	first, err := store.NextID()
	require.NoError(t, err)
	assert.Equal(t, ActorID(100), first)

	prev := first
	for i := 0; i < 5; i++ {
		id, err := store.NextID()
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestActorCodeCidRejectsGarbage(t *testing.T) {
	act := &Actor{ID: 1, Code: []byte{0x00, 0x01}}
	_, err := act.CodeCid()
	require.Error(t, err)
}
