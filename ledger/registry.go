package ledger

import (
	"context"
	"slices"

	"github.com/MixinNetwork/mixin/logger"
	"github.com/pkg/errors"
)

type AssetClass int

const (
	AssetFungible AssetClass = iota
	AssetNonFungible
)

// Registry lists the external asset services per class, index 0 is the
// primary service of the class.
type Registry struct {
	Fungible    []string
	NonFungible []string
}

func (r *Registry) entries(class AssetClass) []string {
	switch class {
	case AssetFungible:
		return r.Fungible
	case AssetNonFungible:
		return r.NonFungible
	}
	panic(class)
}

// Resolve returns the service at index, or the primary one when index is
// out of range. The boolean reports whether index was in range.
func (r *Registry) Resolve(class AssetClass, index uint32) (string, bool) {
	list := r.entries(class)
	if uint64(index) < uint64(len(list)) {
		return list[index], true
	}
	return list[0], false
}

func (r *Registry) Contains(class AssetClass, address string) bool {
	return slices.Contains(r.entries(class), address)
}

func (r *Registry) Copy() *Registry {
	return &Registry{
		Fungible:    slices.Clone(r.Fungible),
		NonFungible: slices.Clone(r.NonFungible),
	}
}

func (l *Ledger) AddContractAddress(ctx context.Context, call *Call, fungible, nonFungible string) error {
	const op = "add_contract_address"
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.roles.IsAdministrator(call.Caller) {
		return l.fail(ctx, op, call, pair{}, NoAuthorityAddContractAddress, "")
	}
	if l.registry.Contains(AssetFungible, fungible) {
		return l.fail(ctx, op, call, pair{}, AlreadyExistTokenAddress, fungible)
	}
	if l.registry.Contains(AssetNonFungible, nonFungible) {
		return l.fail(ctx, op, call, pair{}, AlreadyExistNFTAddress, nonFungible)
	}

	next := l.registry.Copy()
	next.Fungible = append(next.Fungible, fungible)
	next.NonFungible = append(next.NonFungible, nonFungible)
	err := l.store.WriteRegistry(next)
	if err != nil {
		return l.fail(ctx, op, call, pair{}, TransactionFailed, errors.Wrap(err, "write registry").Error())
	}
	l.registry = next
	logger.Verbosef("ledger.AddContractAddress(%s, %s, %s)\n", call.Caller, fungible, nonFungible)
	return nil
}
