package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

const tokenIdPropertyKey = "LEDGER:NFT:TOKEN:ID"

// Call carries what the boundary knows about an invocation, the verified
// caller identity and the native value attached to it.
type Call struct {
	Caller string
	Value  *uint256.Int
}

// Ledger is the only writer of the registry, the roles, the allowances,
// the grants and the token id counter. All of them are guarded by mutex,
// which is released only while an operation waits on the gateway.
type Ledger struct {
	store     Store
	gateway   Gateway
	sender    Sender
	clock     *Clock
	notifiers []Notifier

	nativeAssetId string

	mutex      sync.Mutex
	registry   *Registry
	roles      *Roles
	tokenId    *uint256.Int
	allowances map[pair]*Allowance
	spenders   map[string][]*Allowance
	grants     map[pair][]*Grant
	owners     map[string][]*Grant
	pending    map[pair]string
}

func Build(ctx context.Context, store Store, gateway Gateway, sender Sender, conf *Configuration) (*Ledger, error) {
	err := conf.validate()
	if err != nil {
		return nil, err
	}
	clock, err := NewClock(store)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		store:         store,
		gateway:       gateway,
		sender:        sender,
		clock:         clock,
		nativeAssetId: conf.Native.AssetId,
		allowances:    make(map[pair]*Allowance),
		spenders:      make(map[string][]*Allowance),
		grants:        make(map[pair][]*Grant),
		owners:        make(map[string][]*Grant),
		pending:       make(map[pair]string),
	}
	l.AddNotifier(NewJournalNotifier(store))

	err = l.loadGenesis(conf)
	if err != nil {
		return nil, err
	}
	err = l.loadRecords()
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) AddNotifier(n Notifier) {
	l.notifiers = append(l.notifiers, n)
}

func (l *Ledger) loadGenesis(conf *Configuration) error {
	registry, err := l.store.ReadRegistry()
	if err != nil {
		return err
	}
	if registry == nil {
		registry = &Registry{
			Fungible:    []string{conf.Genesis.Fungible},
			NonFungible: []string{conf.Genesis.NonFungible},
		}
		err = l.store.WriteRegistry(registry)
		if err != nil {
			return err
		}
	}
	if len(registry.Fungible) == 0 || len(registry.NonFungible) == 0 {
		return fmt.Errorf("invalid registry %d %d", len(registry.Fungible), len(registry.NonFungible))
	}
	l.registry = registry

	roles, err := l.store.ReadRoles()
	if err != nil {
		return err
	}
	if roles == nil {
		roles = &Roles{
			Administrators: []string{conf.Genesis.Deployer},
			Minters:        []string{conf.Genesis.Deployer},
		}
		err = l.store.WriteRoles(roles)
		if err != nil {
			return err
		}
	}
	l.roles = roles

	val, err := l.store.ReadProperty([]byte(tokenIdPropertyKey))
	if err != nil {
		return err
	}
	l.tokenId = uint256.NewInt(TokenIdSeed)
	if len(val) > 0 {
		l.tokenId.SetBytes(val)
	}
	return nil
}

func (l *Ledger) loadRecords() error {
	allowances, err := l.store.ListAllowances()
	if err != nil {
		return errors.Wrap(err, "list allowances")
	}
	for _, a := range allowances {
		p := pair{a.Owner, a.Spender}
		if l.allowances[p] != nil {
			panic(p.String())
		}
		l.allowances[p] = a
		l.spenders[a.Spender] = append(l.spenders[a.Spender], a)
	}

	grants, err := l.store.ListGrants()
	if err != nil {
		return errors.Wrap(err, "list grants")
	}
	for _, g := range grants {
		p := pair{g.Owner, g.Spender}
		l.grants[p] = append(l.grants[p], g)
		l.owners[g.Owner] = append(l.owners[g.Owner], g)
	}
	return nil
}

func validActor(id string) bool {
	uid, err := uuid.FromString(id)
	return err == nil && uid.String() != uuid.Nil.String()
}
