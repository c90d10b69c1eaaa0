package ledger

import (
	"context"
	"slices"

	"github.com/MixinNetwork/mixin/logger"
	"github.com/pkg/errors"
)

// Roles holds the two role sets. Both are seeded with the deployer and only
// grow. Administrators are fixed at deployment, minters are extended by
// existing minters through AddAuthorizedMinter. Nothing removes a member.
type Roles struct {
	Administrators []string
	Minters        []string
}

func (r *Roles) IsAdministrator(id string) bool {
	return slices.Contains(r.Administrators, id)
}

func (r *Roles) IsMinter(id string) bool {
	return slices.Contains(r.Minters, id)
}

func (r *Roles) Copy() *Roles {
	return &Roles{
		Administrators: slices.Clone(r.Administrators),
		Minters:        slices.Clone(r.Minters),
	}
}

func (l *Ledger) AddAuthorizedMinter(ctx context.Context, call *Call, address string) error {
	const op = "add_auth_token_owner"
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.roles.IsMinter(call.Caller) {
		return l.fail(ctx, op, call, pair{}, NoAuthorityAddAuthTokenOwner, "")
	}
	if l.roles.IsMinter(address) {
		return l.fail(ctx, op, call, pair{}, AlreadyExistAuthAddress, address)
	}

	next := l.roles.Copy()
	next.Minters = append(next.Minters, address)
	err := l.store.WriteRoles(next)
	if err != nil {
		return l.fail(ctx, op, call, pair{}, TransactionFailed, errors.Wrap(err, "write roles").Error())
	}
	l.roles = next
	logger.Verbosef("ledger.AddAuthorizedMinter(%s, %s)\n", call.Caller, address)
	return nil
}
