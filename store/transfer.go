package store

import (
	"time"

	"github.com/MixinNetwork/allowance/ledger"
	"github.com/MixinNetwork/mixin/common"
	"github.com/dgraph-io/badger/v4"
)

const (
	prefixTransferPayload = "TRANSFER:PAYLOAD:"
	prefixTransferState   = "TRANSFER:STATE:"
)

type transferRecord struct {
	TraceId   string
	State     int
	AssetId   string
	Owner     string
	Receiver  string
	Amount    string
	Memo      string
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (bs *BadgerStore) WriteTransfer(tx *ledger.Transfer) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return bs.writeTransfer(txn, tx)
	})
}

func (bs *BadgerStore) ReadTransfer(traceId string) (*ledger.Transfer, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	return bs.readTransfer(txn, traceId)
}

func (bs *BadgerStore) ListTransfers(state int, limit int) ([]*ledger.Transfer, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	var txs []*ledger.Transfer
	err := bs.listQueue(txn, transferStatePrefix(state), limit, false, func(id string) error {
		tx, err := bs.readTransfer(txn, id)
		if err != nil {
			return err
		}
		txs = append(txs, tx)
		return nil
	})
	return txs, err
}

func (bs *BadgerStore) writeTransfer(txn *badger.Txn, tx *ledger.Transfer) error {
	err := bs.resetOldTransfer(txn, tx)
	if err != nil {
		return err
	}
	r := &transferRecord{
		TraceId:   tx.TraceId,
		State:     tx.State,
		AssetId:   tx.AssetId,
		Owner:     tx.Owner,
		Receiver:  tx.Receiver,
		Amount:    encodeAmount(tx.Amount),
		Memo:      tx.Memo,
		Attempts:  tx.Attempts,
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
	}
	key := []byte(prefixTransferPayload + tx.TraceId)
	err = txn.Set(key, common.MsgpackMarshalPanic(r))
	if err != nil {
		return err
	}
	key = buildTransferTimedKey(tx)
	return txn.Set(key, []byte{1})
}

func (bs *BadgerStore) resetOldTransfer(txn *badger.Txn, tx *ledger.Transfer) error {
	old, err := bs.readTransfer(txn, tx.TraceId)
	if err != nil || old == nil {
		return err
	}
	if old.State > tx.State {
		panic(tx.TraceId)
	}
	key := buildTransferTimedKey(old)
	return txn.Delete(key)
}

func (bs *BadgerStore) readTransfer(txn *badger.Txn, traceId string) (*ledger.Transfer, error) {
	var r transferRecord
	found, err := readRecord(txn, []byte(prefixTransferPayload+traceId), &r)
	if err != nil || !found {
		return nil, err
	}
	amount, err := decodeAmount(r.Amount)
	if err != nil {
		return nil, err
	}
	return &ledger.Transfer{
		TraceId:   r.TraceId,
		State:     r.State,
		AssetId:   r.AssetId,
		Owner:     r.Owner,
		Receiver:  r.Receiver,
		Amount:    amount,
		Memo:      r.Memo,
		Attempts:  r.Attempts,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func buildTransferTimedKey(tx *ledger.Transfer) []byte {
	return timedKey(transferStatePrefix(tx.State), tx.UpdatedAt, tx.TraceId)
}

func transferStatePrefix(state int) string {
	prefix := prefixTransferState
	switch state {
	case ledger.TransferStateInitial:
		return prefix + "initiall"
	case ledger.TransferStateDone:
		return prefix + "doneeeee"
	}
	panic(state)
}
