package store

import (
	"time"

	"github.com/MixinNetwork/allowance/ledger"
	"github.com/MixinNetwork/mixin/common"
	"github.com/dgraph-io/badger/v4"
)

const (
	prefixAllowancePayload = "ALLOWANCE:PAYLOAD:"
	prefixAllowanceQueue   = "ALLOWANCE:QUEUE:"
)

type allowanceRecord struct {
	Owner     string
	Spender   string
	Native    string
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (bs *BadgerStore) WriteAllowance(a *ledger.Allowance) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return bs.writeAllowance(txn, a)
	})
}

// WriteClaim commits a decremented allowance and the transfer paying it out
// in one transaction, tx may be nil for token only claims.
func (bs *BadgerStore) WriteClaim(a *ledger.Allowance, tx *ledger.Transfer) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		err := bs.writeAllowance(txn, a)
		if err != nil || tx == nil {
			return err
		}
		old, err := bs.readTransfer(txn, tx.TraceId)
		if err != nil {
			return err
		} else if old != nil {
			panic(tx.TraceId)
		}
		return bs.writeTransfer(txn, tx)
	})
}

func (bs *BadgerStore) ListAllowances() ([]*ledger.Allowance, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	var as []*ledger.Allowance
	err := bs.listQueue(txn, prefixAllowanceQueue, 0, false, func(id string) error {
		a, err := bs.readAllowance(txn, id)
		if err != nil {
			return err
		}
		as = append(as, a)
		return nil
	})
	return as, err
}

func (bs *BadgerStore) writeAllowance(txn *badger.Txn, a *ledger.Allowance) error {
	id := allowanceId(a.Owner, a.Spender)
	old, err := bs.readAllowance(txn, id)
	if err != nil {
		return err
	}
	if old != nil && (old.Native.Lt(a.Native) || old.Token.Lt(a.Token)) {
		panic(id)
	}

	r := &allowanceRecord{
		Owner:     a.Owner,
		Spender:   a.Spender,
		Native:    encodeAmount(a.Native),
		Token:     encodeAmount(a.Token),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	key := []byte(prefixAllowancePayload + id)
	err = txn.Set(key, common.MsgpackMarshalPanic(r))
	if err != nil || old != nil {
		return err
	}
	key = timedKey(prefixAllowanceQueue, a.CreatedAt, id)
	return txn.Set(key, []byte{1})
}

func (bs *BadgerStore) readAllowance(txn *badger.Txn, id string) (*ledger.Allowance, error) {
	var r allowanceRecord
	found, err := readRecord(txn, []byte(prefixAllowancePayload+id), &r)
	if err != nil || !found {
		return nil, err
	}
	native, err := decodeAmount(r.Native)
	if err != nil {
		return nil, err
	}
	token, err := decodeAmount(r.Token)
	if err != nil {
		return nil, err
	}
	return &ledger.Allowance{
		Owner:     r.Owner,
		Spender:   r.Spender,
		Native:    native,
		Token:     token,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func allowanceId(owner, spender string) string {
	return pairKey(owner, spender)
}
