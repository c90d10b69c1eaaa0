package store

import (
	"errors"

	"github.com/MixinNetwork/allowance/ledger"
	"github.com/MixinNetwork/mixin/common"
	"github.com/dgraph-io/badger/v4"
)

const (
	prefixEventPayload = "EVENT:PAYLOAD:"
	prefixEventQueue   = "EVENT:QUEUE:"
)

func (bs *BadgerStore) WriteEvent(ev *ledger.Event) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixEventPayload + ev.Id)
		_, err := txn.Get(key)
		if err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		err = txn.Set(key, common.MsgpackMarshalPanic(ev))
		if err != nil {
			return err
		}
		key = timedKey(prefixEventQueue, ev.CreatedAt, ev.Id)
		return txn.Set(key, []byte{1})
	})
}

var errListFull = errors.New("list full")

// ListEvents returns up to limit events accepted by match, latest first.
// A nil match accepts every event.
func (bs *BadgerStore) ListEvents(limit int, match func(*ledger.Event) bool) ([]*ledger.Event, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	var evs []*ledger.Event
	err := bs.listQueue(txn, prefixEventQueue, 0, true, func(id string) error {
		var ev ledger.Event
		found, err := readRecord(txn, []byte(prefixEventPayload+id), &ev)
		if err != nil || !found {
			return err
		}
		if match != nil && !match(&ev) {
			return nil
		}
		evs = append(evs, &ev)
		if len(evs) == limit {
			return errListFull
		}
		return nil
	})
	if err == errListFull {
		err = nil
	}
	return evs, err
}
