package ledger

import (
	"context"
	"time"

	"github.com/MixinNetwork/mixin/logger"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Grant records an NFT minted by Owner and approved for Spender. Claimed
// only ever goes from false to true.
type Grant struct {
	Owner     string
	Spender   string
	TokenId   *uint256.Int
	Claimed   bool
	CreatedAt time.Time
}

func (g *Grant) Copy() *Grant {
	c := *g
	c.TokenId = g.TokenId.Clone()
	return &c
}

// firstGrant is the grant every lookup of the pair resolves to, the oldest
// one. The mutex must be held.
func (l *Ledger) firstGrant(p pair) *Grant {
	gs := l.grants[p]
	if len(gs) == 0 {
		return nil
	}
	return gs[0]
}

// MintApproveNft mints a fresh token on the non fungible asset, approves it
// for spender and records an unclaimed grant of the caller. Registered
// assets are open to any caller, an out of range index falls back to the
// primary asset and is reserved to authorized minters.
func (l *Ledger) MintApproveNft(ctx context.Context, call *Call, assetIndex uint32, spender string) (*uint256.Int, error) {
	const op = "mint_approve_nft"
	p := pair{owner: call.Caller, spender: spender}

	asset, tokenId, err := l.prepareMint(ctx, op, call, p, assetIndex)
	if err != nil {
		return nil, err
	}
	defer l.releasePending(p)

	err = l.gateway.Mint(ctx, asset, tokenId)
	if err != nil {
		return nil, l.fail(ctx, op, call, p, GatewayCallFailed, err.Error())
	}
	err = l.gateway.Approve(ctx, asset, spender, tokenId)
	if err != nil {
		return nil, l.fail(ctx, op, call, p, GatewayCallFailed, err.Error())
	}

	err = l.commitGrant(ctx, op, call, p, tokenId)
	if err != nil {
		return nil, err
	}
	logger.Verbosef("ledger.MintApproveNft(%s, %s, %s, %s)\n", p.owner, p.spender, asset, tokenId.Dec())
	return tokenId, nil
}

func (l *Ledger) prepareMint(ctx context.Context, op string, call *Call, p pair, assetIndex uint32) (string, *uint256.Int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	err := l.checkPending(ctx, op, call, p)
	if err != nil {
		return "", nil, err
	}
	asset, ok := l.registry.Resolve(AssetNonFungible, assetIndex)
	if !ok && !l.roles.IsMinter(call.Caller) {
		return "", nil, l.fail(ctx, op, call, p, NoAuthToMintL2ENFT, "")
	}
	tokenId, err := l.nextTokenId()
	if errors.Is(err, errTokenIdOverflow) {
		return "", nil, l.fail(ctx, op, call, p, AmountOverflow, err.Error())
	} else if err != nil {
		return "", nil, l.fail(ctx, op, call, p, TransactionFailed, err.Error())
	}
	l.markPending(p, op)
	return asset, tokenId, nil
}

var errTokenIdOverflow = errors.New("token id counter overflow")

// nextTokenId allocates and persists the next id before any gateway call,
// so an id is burnt rather than reused when the mint aborts later.
func (l *Ledger) nextTokenId() (*uint256.Int, error) {
	next, overflow := new(uint256.Int).AddOverflow(l.tokenId, uint256.NewInt(1))
	if overflow {
		return nil, errTokenIdOverflow
	}
	val := next.Bytes32()
	err := l.store.WriteProperty([]byte(tokenIdPropertyKey), val[:])
	if err != nil {
		return nil, errors.Wrap(err, "write token id")
	}
	l.tokenId = next
	return next.Clone(), nil
}

func (l *Ledger) commitGrant(ctx context.Context, op string, call *Call, p pair, tokenId *uint256.Int) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	g := &Grant{
		Owner:     p.owner,
		Spender:   p.spender,
		TokenId:   tokenId.Clone(),
		CreatedAt: l.clock.Now(),
	}
	err := l.store.WriteGrant(g)
	if err != nil {
		return l.fail(ctx, op, call, p, TransactionFailed, errors.Wrap(err, "write grant").Error())
	}
	l.grants[p] = append(l.grants[p], g)
	l.owners[p.owner] = append(l.owners[p.owner], g)
	delete(l.pending, p)
	return nil
}

// TransferNftFrom is the caller redeeming the NFT owner granted it. It
// marks the grant claimed, which unlocks TransferBalancesFrom for the pair.
func (l *Ledger) TransferNftFrom(ctx context.Context, call *Call, owner string, assetIndex uint32) error {
	const op = "transfer_nft_from"
	p := pair{owner: owner, spender: call.Caller}

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
	if g.TokenId.IsZero() {
		return l.fail(ctx, op, call, p, InsufficientApproveTokens, "zero token id")
	}
	asset, _ := l.registry.Resolve(AssetNonFungible, assetIndex)
	if g.Claimed {
		logger.Verbosef("ledger.TransferNftFrom(%s, %s, %s) already claimed\n", p.owner, p.spender, g.TokenId.Dec())
		return nil
	}

	next := g.Copy()
	next.Claimed = true
	err = l.store.WriteGrant(next)
	if err != nil {
		return l.fail(ctx, op, call, p, TransactionFailed, errors.Wrap(err, "write grant").Error())
	}
	g.Claimed = true
	logger.Verbosef("ledger.TransferNftFrom(%s, %s, %s, %s)\n", p.owner, p.spender, asset, g.TokenId.Dec())
	return nil
}
