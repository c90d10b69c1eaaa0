package store

import (
	"context"
	"time"

	"github.com/MixinNetwork/mixin/common"
	"github.com/MixinNetwork/mixin/logger"
	"github.com/dgraph-io/badger/v4"
)

type BadgerStore struct {
	db     *badger.DB
	closed chan struct{}
}

func OpenBadger(ctx context.Context, path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	bs := &BadgerStore{
		db:     db,
		closed: make(chan struct{}),
	}
	go bs.collectGarbage(ctx)
	return bs, nil
}

func (bs *BadgerStore) collectGarbage(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-bs.closed:
			return
		case <-time.After(5 * time.Minute):
		}
		lsm, vlog := bs.db.Size()
		logger.Printf("Badger LSM %d VLOG %d\n", lsm, vlog)
		if lsm > 1024*1024*8 || vlog > 1024*1024*32 {
			err := bs.db.RunValueLogGC(0.5)
			logger.Printf("Badger RunValueLogGC %v\n", err)
		}
	}
}

func (bs *BadgerStore) Close() error {
	close(bs.closed)
	return bs.db.Close()
}

func (bs *BadgerStore) Badger() *badger.DB {
	return bs.db
}

func (bs *BadgerStore) WriteProperty(key, val []byte) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func (bs *BadgerStore) ReadProperty(key []byte) ([]byte, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	return readValue(txn, key)
}

func readValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func readRecord(txn *badger.Txn, key []byte, v interface{}) (bool, error) {
	val, err := readValue(txn, key)
	if err != nil || val == nil {
		return false, err
	}
	return true, common.MsgpackUnmarshal(val, v)
}

// listQueue walks a timed index, keys are prefix + 8 bytes timestamp + id,
// and hands every id to fn in timestamp order.
func (bs *BadgerStore) listQueue(txn *badger.Txn, prefix string, limit int, reverse bool, fn func(id string) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	opts.Reverse = reverse
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := opts.Prefix
	if reverse {
		seek = append([]byte(prefix), 0xff)
	}
	var count int
	for it.Seek(seek); it.Valid(); it.Next() {
		key := it.Item().Key()
		id := string(key[len(opts.Prefix)+8:])
		err := fn(id)
		if err != nil {
			return err
		}
		count += 1
		if count == limit {
			break
		}
	}
	return nil
}
