package store

import (
	"encoding/hex"
	"time"

	"github.com/MixinNetwork/allowance/ledger"
	"github.com/MixinNetwork/mixin/common"
	"github.com/dgraph-io/badger/v4"
	"github.com/holiman/uint256"
)

const (
	prefixGrantPayload = "GRANT:PAYLOAD:"
	prefixGrantQueue   = "GRANT:QUEUE:"
)

type grantRecord struct {
	Owner     string
	Spender   string
	TokenId   []byte
	Claimed   bool
	CreatedAt time.Time
}

// WriteGrant inserts a grant or flips its claimed flag, no other change is
// accepted on an existing grant.
func (bs *BadgerStore) WriteGrant(g *ledger.Grant) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		id := grantId(g)
		old, err := bs.readGrant(txn, id)
		if err != nil {
			return err
		}
		if old != nil && (old.Claimed && !g.Claimed || !old.CreatedAt.Equal(g.CreatedAt)) {
			panic(id)
		}

		tid := g.TokenId.Bytes32()
		r := &grantRecord{
			Owner:     g.Owner,
			Spender:   g.Spender,
			TokenId:   tid[:],
			Claimed:   g.Claimed,
			CreatedAt: g.CreatedAt,
		}
		key := []byte(prefixGrantPayload + id)
		err = txn.Set(key, common.MsgpackMarshalPanic(r))
		if err != nil || old != nil {
			return err
		}
		key = timedKey(prefixGrantQueue, g.CreatedAt, id)
		return txn.Set(key, []byte{1})
	})
}

// ListGrants returns the grants in creation order, which is the order
// first-match lookups rely on.
func (bs *BadgerStore) ListGrants() ([]*ledger.Grant, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	var gs []*ledger.Grant
	err := bs.listQueue(txn, prefixGrantQueue, 0, false, func(id string) error {
		g, err := bs.readGrant(txn, id)
		if err != nil {
			return err
		}
		gs = append(gs, g)
		return nil
	})
	return gs, err
}

func (bs *BadgerStore) readGrant(txn *badger.Txn, id string) (*ledger.Grant, error) {
	var r grantRecord
	found, err := readRecord(txn, []byte(prefixGrantPayload+id), &r)
	if err != nil || !found {
		return nil, err
	}
	return &ledger.Grant{
		Owner:     r.Owner,
		Spender:   r.Spender,
		TokenId:   new(uint256.Int).SetBytes(r.TokenId),
		Claimed:   r.Claimed,
		CreatedAt: r.CreatedAt,
	}, nil
}

func grantId(g *ledger.Grant) string {
	tid := g.TokenId.Bytes32()
	return pairKey(g.Owner, g.Spender) + ":" + hex.EncodeToString(tid[:])
}
