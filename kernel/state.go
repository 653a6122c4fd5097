package kernel

import (
	"encoding/binary"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/filecoin-project/go-address"
	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

var (
	actorKeyPrefix = []byte("actor/")
	nextIDKey      = []byte("meta/next-id")
)

// Actor is the persisted record for one actor.
type Actor struct {
	ID   ActorID `cbor:"1,keyasint"`
	Code []byte  `cbor:"2,keyasint"`
}

// CodeCid decodes the record's code CID.
func (a *Actor) CodeCid() (cid.Cid, error) {
	c, err := cid.Cast(a.Code)
	if err != nil {
		return cid.Undef, fmt.Errorf("decoding actor code cid: %w", err)
	}
	return c, nil
}

// ActorStore maps addresses to actor records and allocates actor IDs. It is
// the minimal slice of state the syscall layer's kernel needs; the full
// state tree lives elsewhere.
type ActorStore struct {
	db dbm.DB
}

// NewActorStore wraps a database. Use dbm.NewMemDB() for tests and
// short-lived invocations.
func NewActorStore(db dbm.DB) *ActorStore {
	return &ActorStore{db: db}
}

func actorKey(addr address.Address) []byte {
	return append(actorKeyPrefix, addr.Bytes()...)
}

// Lookup fetches the record for addr. The second return is false when no
// actor is stored at that address.
func (s *ActorStore) Lookup(addr address.Address) (*Actor, bool, error) {
	raw, err := s.db.Get(actorKey(addr))
	if err != nil {
		return nil, false, fmt.Errorf("actor store get: %w", err)
	}
	if raw == nil {
		return nil, false, nil
	}
	var act Actor
	if err := cbor.Unmarshal(raw, &act); err != nil {
		return nil, false, fmt.Errorf("decoding actor record: %w", err)
	}
	return &act, true, nil
}

// Put stores the record for addr, overwriting any existing one.
func (s *ActorStore) Put(addr address.Address, act *Actor) error {
	raw, err := cbor.Marshal(act)
	if err != nil {
		return fmt.Errorf("encoding actor record: %w", err)
	}
	if err := s.db.Set(actorKey(addr), raw); err != nil {
		return fmt.Errorf("actor store set: %w", err)
	}
	return nil
}

// NextID allocates the next actor ID. IDs are strictly increasing and start
// at 100; lower numbers are reserved for singleton system actors.
func (s *ActorStore) NextID() (ActorID, error) {
	raw, err := s.db.Get(nextIDKey)
	if err != nil {
		return 0, fmt.Errorf("actor store get next id: %w", err)
	}
	next := uint64(100)
	if raw != nil {
		next = binary.BigEndian.Uint64(raw)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next+1)
	if err := s.db.Set(nextIDKey, buf[:]); err != nil {
		return 0, fmt.Errorf("actor store set next id: %w", err)
	}
	return ActorID(next), nil
}
