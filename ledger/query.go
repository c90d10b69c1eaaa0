package ledger

import (
	"context"

	"github.com/holiman/uint256"
)

func (l *Ledger) Registry() *Registry {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.registry.Copy()
}

func (l *Ledger) FungibleAssets() []string {
	return l.Registry().Fungible
}

func (l *Ledger) NonFungibleAssets() []string {
	return l.Registry().NonFungible
}

func (l *Ledger) Roles() *Roles {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.roles.Copy()
}

func (l *Ledger) Administrators() []string {
	return l.Roles().Administrators
}

func (l *Ledger) AuthorizedMinters() []string {
	return l.Roles().Minters
}

// GrantsForOwner lists every grant the owner made, in creation order.
func (l *Ledger) GrantsForOwner(owner string) []*Grant {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	gs := make([]*Grant, 0, len(l.owners[owner]))
	for _, g := range l.owners[owner] {
		gs = append(gs, g.Copy())
	}
	return gs
}

// AllowancesForSpender lists what every owner approved for spender.
func (l *Ledger) AllowancesForSpender(spender string) []*Allowance {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	as := make([]*Allowance, 0, len(l.spenders[spender]))
	for _, a := range l.spenders[spender] {
		as = append(as, a.Copy())
	}
	return as
}

func (l *Ledger) SpenderNativeAllowance(spender, owner string) (*uint256.Int, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	a := l.allowances[pair{owner, spender}]
	if a == nil {
		return nil, false
	}
	return a.Native.Clone(), true
}

func (l *Ledger) SpenderNftAllowance(spender, owner string) (*uint256.Int, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	g := l.firstGrant(pair{owner, spender})
	if g == nil {
		return nil, false
	}
	return g.TokenId.Clone(), true
}

// SpenderTokenAllowance asks the fungible asset what spender may still
// pull from owner. Spenders without any allowance get nothing and no
// gateway call is made.
func (l *Ledger) SpenderTokenAllowance(ctx context.Context, spender, owner string, assetIndex uint32) (*uint256.Int, bool, error) {
	l.mutex.Lock()
	known := len(l.spenders[spender]) > 0
	asset, _ := l.registry.Resolve(AssetFungible, assetIndex)
	l.mutex.Unlock()

	if !known {
		return nil, false, nil
	}
	amount, err := l.gateway.QueryAllowance(ctx, asset, owner, spender)
	if err != nil {
		return nil, false, err
	}
	return amount, true, nil
}

// Events lists the latest failures actor took part in, as caller, owner
// or spender. Administrators see every event.
func (l *Ledger) Events(actor string, limit int) ([]*Event, error) {
	l.mutex.Lock()
	admin := l.roles.IsAdministrator(actor)
	l.mutex.Unlock()

	if admin {
		return l.store.ListEvents(limit, nil)
	}
	return l.store.ListEvents(limit, func(ev *Event) bool {
		return ev.Caller == actor || ev.Owner == actor || ev.Spender == actor
	})
}

func (l *Ledger) PendingPairs() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.pending)
}
