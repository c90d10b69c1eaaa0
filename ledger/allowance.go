package ledger

import (
	"context"
	"time"

	"github.com/MixinNetwork/mixin/logger"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Allowance is what Spender may still claim from Owner, the escrowed
// native amount and the token amount approved on the fungible asset.
type Allowance struct {
	Owner     string
	Spender   string
	Native    *uint256.Int
	Token     *uint256.Int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Allowance) Copy() *Allowance {
	c := *a
	c.Native = a.Native.Clone()
	c.Token = a.Token.Clone()
	return &c
}

// ApproveBalances creates the allowance of spender on the caller. The
// recorded native amount is the value attached to the call whenever native
// is requested. A token allowance first checks the caller deposit on the
// fungible asset and approves spender there, both through the gateway.
func (l *Ledger) ApproveBalances(ctx context.Context, call *Call, spender string, assetIndex uint32, native, token *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	const op = "approve_balances"
	p := pair{owner: call.Caller, spender: spender}
	native, token = amountOrZero(native), amountOrZero(token)

	escrow := zero()
	if !native.IsZero() {
		escrow = amountOrZero(call.Value)
	}

	asset, err := l.prepareApprove(ctx, op, call, p, assetIndex, escrow, token)
	if err != nil {
		return nil, nil, err
	}
	defer l.releasePending(p)

	if !token.IsZero() {
		err = l.approveToken(ctx, op, call, p, asset, token)
		if err != nil {
			return nil, nil, err
		}
	}

	err = l.commitApprove(ctx, op, call, p, escrow, token)
	if err != nil {
		return nil, nil, err
	}
	return escrow, token, nil
}

func (l *Ledger) prepareApprove(ctx context.Context, op string, call *Call, p pair, assetIndex uint32, escrow, token *uint256.Int) (string, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if escrow.BitLen() > NativeBits {
		return "", l.fail(ctx, op, call, p, AmountOverflow, escrow.Dec())
	}
	err := l.checkPending(ctx, op, call, p)
	if err != nil {
		return "", err
	}
	if l.allowances[p] != nil {
		return "", l.fail(ctx, op, call, p, AlreadyApproved, "")
	}

	var asset string
	if !token.IsZero() {
		address, ok := l.registry.Resolve(AssetFungible, assetIndex)
		if !ok && !l.roles.IsMinter(call.Caller) {
			return "", l.fail(ctx, op, call, p, NoAuthToApproveL2EToken, "")
		}
		asset = address
	}
	l.markPending(p, op)
	return asset, nil
}

func (l *Ledger) approveToken(ctx context.Context, op string, call *Call, p pair, asset string, token *uint256.Int) error {
	balance, err := l.gateway.QueryBalance(ctx, asset, p.owner)
	if err != nil {
		return l.fail(ctx, op, call, p, GatewayCallFailed, err.Error())
	}
	deposit := new(uint256.Int).Div(balance, uint256.NewInt(DepositScale))
	if token.Gt(deposit) {
		return l.fail(ctx, op, call, p, InsufficientOwnerDepositTokens, balance.Dec())
	}
	err = l.gateway.Approve(ctx, asset, p.spender, token)
	if err != nil {
		return l.fail(ctx, op, call, p, GatewayCallFailed, err.Error())
	}
	return nil
}

func (l *Ledger) commitApprove(ctx context.Context, op string, call *Call, p pair, escrow, token *uint256.Int) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.allowances[p] != nil {
		return l.fail(ctx, op, call, p, AlreadyApproved, "")
	}
	now := l.clock.Now()
	a := &Allowance{
		Owner:     p.owner,
		Spender:   p.spender,
		Native:    escrow.Clone(),
		Token:     token.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := l.store.WriteAllowance(a)
	if err != nil {
		return l.fail(ctx, op, call, p, TransactionFailed, errors.Wrap(err, "write allowance").Error())
	}
	l.allowances[p] = a
	l.spenders[p.spender] = append(l.spenders[p.spender], a)
	delete(l.pending, p)
	logger.Verbosef("ledger.ApproveBalances(%s, %s, %s, %s)\n", p.owner, p.spender, escrow.Dec(), token.Dec())
	return nil
}

// TransferBalancesFrom lets the caller claim from the allowance owner gave
// it. The first NFT grant of the pair must be claimed already. The native
// part leaves as an outbound transfer, the token part is withdrawn by the
// caller on the fungible asset directly, the ledger only accounts for it.
func (l *Ledger) TransferBalancesFrom(ctx context.Context, call *Call, owner string, native, token *uint256.Int, assetIndex uint32) error {
	const op = "transfer_balances_from"
	p := pair{owner: owner, spender: call.Caller}
	native, token = amountOrZero(native), amountOrZero(token)

	l.mutex.Lock()
	defer l.mutex.Unlock()

	err := l.checkPending(ctx, op, call, p)
	if err != nil {
		return err
	}
	g := l.firstGrant(p)
	if g == nil {
		return l.fail(ctx, op, call, p, NoExistNFTApprove, "")
	}
	if !g.Claimed {
		return l.fail(ctx, op, call, p, NoClaimedNFT, g.TokenId.Dec())
	}

	a := l.allowances[p]
	if a == nil {
		if native.IsZero() && !token.IsZero() {
			return l.fail(ctx, op, call, p, NoExistTokenApprove, "")
		}
		return l.fail(ctx, op, call, p, NoExistVaraApprove, "")
	}
	if native.Gt(a.Native) {
		return l.fail(ctx, op, call, p, InsufficientApproveVaras, a.Native.Dec())
	}
	if token.Gt(a.Token) {
		return l.fail(ctx, op, call, p, InsufficientApproveTokens, a.Token.Dec())
	}
	nativeLeft, underflow := new(uint256.Int).SubOverflow(a.Native, native)
	if underflow {
		return l.fail(ctx, op, call, p, AmountOverflow, native.Dec())
	}
	tokenLeft, underflow := new(uint256.Int).SubOverflow(a.Token, token)
	if underflow {
		return l.fail(ctx, op, call, p, AmountOverflow, token.Dec())
	}

	now := l.clock.Now()
	var tx *Transfer
	if !native.IsZero() {
		tx, err = l.buildTransfer(p, native, now)
		if err != nil {
			return l.fail(ctx, op, call, p, TransactionFailed, err.Error())
		}
	}

	next := a.Copy()
	next.Native = nativeLeft
	next.Token = tokenLeft
	next.UpdatedAt = now
	err = l.store.WriteClaim(next, tx)
	if err != nil {
		return l.fail(ctx, op, call, p, TransactionFailed, err.Error())
	}
	a.Native, a.Token, a.UpdatedAt = nativeLeft, tokenLeft, now

	asset, _ := l.registry.Resolve(AssetFungible, assetIndex)
	logger.Verbosef("ledger.TransferBalancesFrom(%s, %s, %s, %s, %s)\n", p.owner, p.spender, native.Dec(), token.Dec(), asset)
	return nil
}
