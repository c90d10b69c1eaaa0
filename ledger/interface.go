package ledger

import (
	"context"

	"github.com/holiman/uint256"
)

type Store interface {
	WriteProperty(key, val []byte) error
	ReadProperty(key []byte) ([]byte, error)

	ReadRegistry() (*Registry, error)
	WriteRegistry(r *Registry) error
	ReadRoles() (*Roles, error)
	WriteRoles(r *Roles) error

	WriteAllowance(a *Allowance) error
	ListAllowances() ([]*Allowance, error)
	WriteClaim(a *Allowance, tx *Transfer) error

	WriteGrant(g *Grant) error
	ListGrants() ([]*Grant, error)

	WriteTransfer(tx *Transfer) error
	ReadTransfer(traceId string) (*Transfer, error)
	ListTransfers(state int, limit int) ([]*Transfer, error)

	WriteEvent(ev *Event) error
	ListEvents(limit int, match func(*Event) bool) ([]*Event, error)
}

// Gateway talks to the external asset services. Every method is one
// request/reply round trip and blocks until the reply arrives; it never
// retries and imposes no timeout of its own.
type Gateway interface {
	QueryBalance(ctx context.Context, asset, owner string) (*uint256.Int, error)
	QueryAllowance(ctx context.Context, asset, owner, spender string) (*uint256.Int, error)
	Approve(ctx context.Context, asset, spender string, amount *uint256.Int) error
	Mint(ctx context.Context, asset string, tokenId *uint256.Int) error
}

// Sender delivers outbound native currency transfers. Send must be
// idempotent on Transfer.TraceId, the dispatcher may repeat a delivery
// after a crash.
type Sender interface {
	Send(ctx context.Context, tx *Transfer) error
}

// Notifier receives a best-effort notification before an operation
// aborts. Implementations must not call back into the ledger.
type Notifier interface {
	Notify(ctx context.Context, ev *Event)
}
