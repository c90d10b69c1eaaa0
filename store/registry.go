package store

import (
	"github.com/MixinNetwork/allowance/ledger"
	"github.com/MixinNetwork/mixin/common"
	"github.com/dgraph-io/badger/v4"
)

const (
	propertyRegistry = "LEDGER:REGISTRY"
	propertyRoles    = "LEDGER:ROLES"
)

func (bs *BadgerStore) ReadRegistry() (*ledger.Registry, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	var r ledger.Registry
	found, err := readRecord(txn, []byte(propertyRegistry), &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

func (bs *BadgerStore) WriteRegistry(r *ledger.Registry) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(propertyRegistry), common.MsgpackMarshalPanic(r))
	})
}

func (bs *BadgerStore) ReadRoles() (*ledger.Roles, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	var r ledger.Roles
	found, err := readRecord(txn, []byte(propertyRoles), &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// WriteRoles refuses to drop any member, both role sets only grow.
func (bs *BadgerStore) WriteRoles(r *ledger.Roles) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		var old ledger.Roles
		found, err := readRecord(txn, []byte(propertyRoles), &old)
		if err != nil {
			return err
		}
		if found {
			for _, id := range old.Administrators {
				if !r.IsAdministrator(id) {
					panic(id)
				}
			}
			for _, id := range old.Minters {
				if !r.IsMinter(id) {
					panic(id)
				}
			}
		}
		return txn.Set([]byte(propertyRoles), common.MsgpackMarshalPanic(r))
	})
}
