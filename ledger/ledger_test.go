package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MixinNetwork/allowance/ledger"
	"github.com/MixinNetwork/allowance/store"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

const (
	fungibleAsset    = "fungible-primary"
	nonFungibleAsset = "non-fungible-primary"
)

type fakeGateway struct {
	sync.Mutex
	balances   map[string]*uint256.Int
	approvals  map[string]*uint256.Int
	mints      []string
	failMint   bool
	failQuery  bool
	queryGate  chan struct{}
	queryEnter chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		balances:  make(map[string]*uint256.Int),
		approvals: make(map[string]*uint256.Int),
	}
}

func (g *fakeGateway) setBalance(asset, owner string, v uint64) {
	g.Lock()
	defer g.Unlock()
	g.balances[asset+":"+owner] = uint256.NewInt(v)
}

func (g *fakeGateway) QueryBalance(ctx context.Context, asset, owner string) (*uint256.Int, error) {
	if g.queryEnter != nil {
		g.queryEnter <- struct{}{}
	}
	if g.queryGate != nil {
		select {
		case <-g.queryGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.Lock()
	defer g.Unlock()
	if g.failQuery {
		return nil, errors.New("asset service unreachable")
	}
	if v := g.balances[asset+":"+owner]; v != nil {
		return v.Clone(), nil
	}
	return new(uint256.Int), nil
}

func (g *fakeGateway) QueryAllowance(ctx context.Context, asset, owner, spender string) (*uint256.Int, error) {
	g.Lock()
	defer g.Unlock()
	if v := g.approvals[asset+":"+spender]; v != nil {
		return v.Clone(), nil
	}
	return new(uint256.Int), nil
}

func (g *fakeGateway) Approve(ctx context.Context, asset, spender string, amount *uint256.Int) error {
	g.Lock()
	defer g.Unlock()
	g.approvals[asset+":"+spender] = amount.Clone()
	return nil
}

func (g *fakeGateway) Mint(ctx context.Context, asset string, tokenId *uint256.Int) error {
	g.Lock()
	defer g.Unlock()
	if g.failMint {
		return errors.New("mint rejected")
	}
	g.mints = append(g.mints, asset+":"+tokenId.Dec())
	return nil
}

type fakeSender struct {
	sync.Mutex
	sent   []*ledger.Transfer
	reject map[string]bool
}

func (s *fakeSender) Send(ctx context.Context, tx *ledger.Transfer) error {
	s.Lock()
	defer s.Unlock()
	if s.reject[tx.Receiver] {
		return errors.New("receiver not found")
	}
	s.sent = append(s.sent, tx)
	return nil
}

func (s *fakeSender) receivers() []string {
	s.Lock()
	defer s.Unlock()
	var rs []string
	for _, tx := range s.sent {
		rs = append(rs, tx.Receiver)
	}
	return rs
}

func (s *fakeSender) count() int {
	s.Lock()
	defer s.Unlock()
	return len(s.sent)
}

type recorder struct {
	sync.Mutex
	events []*ledger.Event
}

func (r *recorder) Notify(ctx context.Context, ev *ledger.Event) {
	r.Lock()
	defer r.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) reasons() []ledger.Reason {
	r.Lock()
	defer r.Unlock()
	var rs []ledger.Reason
	for _, ev := range r.events {
		rs = append(rs, ev.Reason)
	}
	return rs
}

type testEnv struct {
	ctx      context.Context
	store    *store.BadgerStore
	gateway  *fakeGateway
	sender   *fakeSender
	notes    *recorder
	conf     *ledger.Configuration
	ledger   *ledger.Ledger
	deployer string
	owner    string
	spender  string
}

func newActor() string {
	return uuid.Must(uuid.NewV4()).String()
}

func setup(t *testing.T) *testEnv {
	ctx, cancel := context.WithCancel(context.Background())
	bs, err := store.OpenBadger(ctx, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		bs.Close()
	})

	env := &testEnv{
		ctx:      ctx,
		store:    bs,
		gateway:  newFakeGateway(),
		sender:   &fakeSender{},
		notes:    &recorder{},
		deployer: newActor(),
		owner:    newActor(),
		spender:  newActor(),
	}
	conf := &ledger.Configuration{}
	conf.Genesis.Deployer = env.deployer
	conf.Genesis.Fungible = fungibleAsset
	conf.Genesis.NonFungible = nonFungibleAsset
	conf.Native.AssetId = "c94ac88f-4671-3976-b60a-09064f1811e8"
	conf.Native.Precision = 8
	env.conf = conf
	env.ledger = env.build(t)
	return env
}

func (env *testEnv) build(t *testing.T) *ledger.Ledger {
	l, err := ledger.Build(env.ctx, env.store, env.gateway, env.sender, env.conf)
	require.NoError(t, err)
	l.AddNotifier(env.notes)
	return l
}

func call(caller string, value uint64) *ledger.Call {
	return &ledger.Call{Caller: caller, Value: uint256.NewInt(value)}
}

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// grantAndClaim takes the pair through the NFT gate so balances can be
// claimed.
func (env *testEnv) grantAndClaim(t *testing.T, owner, spender string) *uint256.Int {
	id, err := env.ledger.MintApproveNft(env.ctx, call(owner, 0), 0, spender)
	require.NoError(t, err)
	err = env.ledger.TransferNftFrom(env.ctx, call(spender, 0), owner, 0)
	require.NoError(t, err)
	return id
}

func TestApproveAndClaimBalances(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger
	env.gateway.setBalance(fungibleAsset, env.owner, 50*1000)

	native, token, err := l.ApproveBalances(env.ctx, call(env.owner, 100), env.spender, 0, u(100), u(50))
	require.NoError(err)
	require.Equal("100", native.Dec())
	require.Equal("50", token.Dec())

	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(40), u(20), 0)
	require.ErrorIs(err, ledger.ErrNoExistNFTApprove)

	id, err := l.MintApproveNft(env.ctx, call(env.owner, 0), 0, env.spender)
	require.NoError(err)
	require.Equal("10001", id.Dec())

	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(40), u(20), 0)
	require.ErrorIs(err, ledger.ErrNoClaimedNFT)

	err = l.TransferNftFrom(env.ctx, call(env.spender, 0), env.owner, 0)
	require.NoError(err)

	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(40), u(20), 0)
	require.NoError(err)
	as := l.AllowancesForSpender(env.spender)
	require.Len(as, 1)
	require.Equal("60", as[0].Native.Dec())
	require.Equal("30", as[0].Token.Dec())

	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(70), u(0), 0)
	require.ErrorIs(err, ledger.ErrInsufficientApproveVaras)
	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(0), u(31), 0)
	require.ErrorIs(err, ledger.ErrInsufficientApproveTokens)
	native, ok := l.SpenderNativeAllowance(env.spender, env.owner)
	require.True(ok)
	require.Equal("60", native.Dec())

	txs, err := env.store.ListTransfers(ledger.TransferStateInitial, 10)
	require.NoError(err)
	require.Len(txs, 1)
	require.Equal(env.spender, txs[0].Receiver)
	require.Equal("40", txs[0].Amount.Dec())
	require.Equal(env.conf.Native.AssetId, txs[0].AssetId)

	require.Equal([]ledger.Reason{
		ledger.NoExistNFTApprove,
		ledger.NoClaimedNFT,
		ledger.InsufficientApproveVaras,
		ledger.InsufficientApproveTokens,
	}, env.notes.reasons())
}

func TestApproveBalances(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger

	native, token, err := l.ApproveBalances(env.ctx, call(env.owner, 25), env.spender, 0, u(0), u(0))
	require.NoError(err)
	require.True(native.IsZero())
	require.True(token.IsZero())

	_, _, err = l.ApproveBalances(env.ctx, call(env.owner, 25), env.spender, 0, u(25), u(0))
	require.ErrorIs(err, ledger.ErrAlreadyApproved)

	other := newActor()
	native, _, err = l.ApproveBalances(env.ctx, call(env.owner, 25), other, 0, u(7), u(0))
	require.NoError(err)
	require.Equal("25", native.Dec())

	env.gateway.setBalance(fungibleAsset, env.owner, 9999)
	_, _, err = l.ApproveBalances(env.ctx, call(env.owner, 0), newActor(), 0, u(0), u(10))
	require.ErrorIs(err, ledger.ErrInsufficientOwnerDepositTokens)

	env.gateway.setBalance(fungibleAsset, env.owner, 10000)
	spender := newActor()
	_, token, err = l.ApproveBalances(env.ctx, call(env.owner, 0), spender, 0, u(0), u(10))
	require.NoError(err)
	require.Equal("10", token.Dec())
	amount, ok, err := l.SpenderTokenAllowance(env.ctx, spender, env.owner, 0)
	require.NoError(err)
	require.True(ok)
	require.Equal("10", amount.Dec())

	_, ok, err = l.SpenderTokenAllowance(env.ctx, newActor(), env.owner, 0)
	require.NoError(err)
	require.False(ok)
}

func TestApproveBalancesAssetAuthority(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger
	env.gateway.setBalance(fungibleAsset, env.owner, 1000000)
	env.gateway.setBalance(fungibleAsset, env.deployer, 1000000)

	_, _, err := l.ApproveBalances(env.ctx, call(env.owner, 0), env.spender, 5, u(0), u(1))
	require.ErrorIs(err, ledger.ErrNoAuthToApproveL2EToken)

	_, _, err = l.ApproveBalances(env.ctx, call(env.deployer, 0), env.spender, 5, u(0), u(1))
	require.NoError(err)
	amount, err := env.gateway.QueryAllowance(env.ctx, fungibleAsset, env.deployer, env.spender)
	require.NoError(err)
	require.Equal("1", amount.Dec())
}

func TestApproveBalancesGatewayFailure(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger
	env.gateway.failQuery = true

	_, _, err := l.ApproveBalances(env.ctx, call(env.owner, 0), env.spender, 0, u(0), u(1))
	require.ErrorIs(err, ledger.ErrGatewayCallFailed)
	var le *ledger.Error
	require.True(errors.As(err, &le))
	require.Equal(ledger.ClassTransactionDispatch, le.Class())

	_, ok := l.SpenderNativeAllowance(env.spender, env.owner)
	require.False(ok)
	require.Equal(0, l.PendingPairs())
}

func TestClaimWithoutAllowance(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger
	env.grantAndClaim(t, env.owner, env.spender)

	err := l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(1), u(0), 0)
	require.ErrorIs(err, ledger.ErrNoExistVaraApprove)
	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(0), u(1), 0)
	require.ErrorIs(err, ledger.ErrNoExistTokenApprove)
	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(0), u(0), 0)
	require.ErrorIs(err, ledger.ErrNoExistVaraApprove)
}

func TestClaimTokenOnly(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger
	env.gateway.setBalance(fungibleAsset, env.owner, 5000)

	_, _, err := l.ApproveBalances(env.ctx, call(env.owner, 0), env.spender, 0, u(0), u(5))
	require.NoError(err)
	env.grantAndClaim(t, env.owner, env.spender)

	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(0), u(5), 0)
	require.NoError(err)
	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(0), u(1), 0)
	require.ErrorIs(err, ledger.ErrInsufficientApproveTokens)

	txs, err := env.store.ListTransfers(ledger.TransferStateInitial, 10)
	require.NoError(err)
	require.Len(txs, 0)
}

func TestClaimNativeToInvalidReceiver(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger
	spender := "not-a-mixin-user"

	_, _, err := l.ApproveBalances(env.ctx, call(env.owner, 10), spender, 0, u(10), u(0))
	require.NoError(err)
	env.grantAndClaim(t, env.owner, spender)

	err = l.TransferBalancesFrom(env.ctx, call(spender, 0), env.owner, u(10), u(0), 0)
	require.ErrorIs(err, ledger.ErrTransactionFailed)
	native, ok := l.SpenderNativeAllowance(spender, env.owner)
	require.True(ok)
	require.Equal("10", native.Dec())
}

func TestMintApproveNft(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger

	_, err := l.MintApproveNft(env.ctx, call(env.owner, 0), 3, env.spender)
	require.ErrorIs(err, ledger.ErrNoAuthToMintL2ENFT)

	var last *uint256.Int
	for i := 0; i < 3; i++ {
		id, err := l.MintApproveNft(env.ctx, call(env.deployer, 0), 3, newActor())
		require.NoError(err)
		require.Equal(fmt.Sprint(10001+i), id.Dec())
		if last != nil {
			require.True(id.Gt(last))
		}
		last = id
	}

	env.gateway.failMint = true
	_, err = l.MintApproveNft(env.ctx, call(env.owner, 0), 0, env.spender)
	require.ErrorIs(err, ledger.ErrGatewayCallFailed)
	_, ok := l.SpenderNftAllowance(env.spender, env.owner)
	require.False(ok)

	env.gateway.failMint = false
	id, err := l.MintApproveNft(env.ctx, call(env.owner, 0), 0, env.spender)
	require.NoError(err)
	require.Equal("10005", id.Dec())
	require.Contains(env.gateway.mints, nonFungibleAsset+":10005")

	second, err := l.MintApproveNft(env.ctx, call(env.owner, 0), 0, env.spender)
	require.NoError(err)
	require.Equal("10006", second.Dec())
	first, ok := l.SpenderNftAllowance(env.spender, env.owner)
	require.True(ok)
	require.Equal("10005", first.Dec())

	gs := l.GrantsForOwner(env.owner)
	require.Len(gs, 2)
	require.False(gs[0].Claimed)
}

func TestTransferNftFrom(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger

	err := l.TransferNftFrom(env.ctx, call(env.spender, 0), env.owner, 0)
	require.ErrorIs(err, ledger.ErrNoExistNFTApprove)

	_, err = l.MintApproveNft(env.ctx, call(env.owner, 0), 0, env.spender)
	require.NoError(err)
	err = l.TransferNftFrom(env.ctx, call(env.owner, 0), env.spender, 0)
	require.ErrorIs(err, ledger.ErrNoExistNFTApprove)

	err = l.TransferNftFrom(env.ctx, call(env.spender, 0), env.owner, 0)
	require.NoError(err)
	err = l.TransferNftFrom(env.ctx, call(env.spender, 0), env.owner, 0)
	require.NoError(err)

	gs := l.GrantsForOwner(env.owner)
	require.Len(gs, 1)
	require.True(gs[0].Claimed)
}

func TestRegistryAndRoles(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger

	require.Equal([]string{fungibleAsset}, l.FungibleAssets())
	require.Equal([]string{nonFungibleAsset}, l.NonFungibleAssets())
	require.Equal([]string{env.deployer}, l.Administrators())
	require.Equal([]string{env.deployer}, l.AuthorizedMinters())

	err := l.AddContractAddress(env.ctx, call(env.owner, 0), "f1", "n1")
	require.ErrorIs(err, ledger.ErrNoAuthorityAddContractAddress)
	err = l.AddContractAddress(env.ctx, call(env.deployer, 0), fungibleAsset, "n1")
	require.ErrorIs(err, ledger.ErrAlreadyExistTokenAddress)
	err = l.AddContractAddress(env.ctx, call(env.deployer, 0), "f1", nonFungibleAsset)
	require.ErrorIs(err, ledger.ErrAlreadyExistNFTAddress)
	require.Len(l.FungibleAssets(), 1)
	require.Len(l.NonFungibleAssets(), 1)

	err = l.AddContractAddress(env.ctx, call(env.deployer, 0), "f1", "n1")
	require.NoError(err)
	require.Equal([]string{fungibleAsset, "f1"}, l.FungibleAssets())

	r := l.Registry()
	addr, ok := r.Resolve(ledger.AssetFungible, 1)
	require.True(ok)
	require.Equal("f1", addr)
	addr, ok = r.Resolve(ledger.AssetNonFungible, 2)
	require.False(ok)
	require.Equal(nonFungibleAsset, addr)

	err = l.AddAuthorizedMinter(env.ctx, call(env.owner, 0), env.spender)
	require.ErrorIs(err, ledger.ErrNoAuthorityAddAuthTokenOwner)
	err = l.AddAuthorizedMinter(env.ctx, call(env.deployer, 0), env.owner)
	require.NoError(err)
	err = l.AddAuthorizedMinter(env.ctx, call(env.owner, 0), env.deployer)
	require.ErrorIs(err, ledger.ErrAlreadyExistAuthAddress)
	err = l.AddAuthorizedMinter(env.ctx, call(env.owner, 0), env.spender)
	require.NoError(err)
	require.Equal([]string{env.deployer, env.owner, env.spender}, l.AuthorizedMinters())
	require.Equal([]string{env.deployer}, l.Administrators())

	_, err = l.MintApproveNft(env.ctx, call(env.spender, 0), 9, env.owner)
	require.NoError(err)
}

func TestPendingPair(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger
	env.gateway.setBalance(fungibleAsset, env.owner, 1000000)
	env.gateway.queryGate = make(chan struct{})
	env.gateway.queryEnter = make(chan struct{}, 1)

	done := make(chan error)
	go func() {
		_, _, err := l.ApproveBalances(env.ctx, call(env.owner, 0), env.spender, 0, u(0), u(100))
		done <- err
	}()
	<-env.gateway.queryEnter
	require.Equal(1, l.PendingPairs())

	_, _, err := l.ApproveBalances(env.ctx, call(env.owner, 3), env.spender, 0, u(3), u(0))
	require.ErrorIs(err, ledger.ErrOperationPending)
	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(0), u(1), 0)
	require.ErrorIs(err, ledger.ErrOperationPending)
	_, err = l.MintApproveNft(env.ctx, call(env.owner, 0), 0, env.spender)
	require.ErrorIs(err, ledger.ErrOperationPending)

	other := newActor()
	_, _, err = l.ApproveBalances(env.ctx, call(env.owner, 3), other, 0, u(3), u(0))
	require.NoError(err)

	close(env.gateway.queryGate)
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("approve did not resume")
	}
	require.NoError(err)
	require.Equal(0, l.PendingPairs())

	as := l.AllowancesForSpender(env.spender)
	require.Len(as, 1)
	require.Equal("100", as[0].Token.Dec())
}

func TestPendingPairCancelled(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger
	env.gateway.queryGate = make(chan struct{})
	env.gateway.queryEnter = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(env.ctx)
	done := make(chan error)
	go func() {
		_, _, err := l.ApproveBalances(ctx, call(env.owner, 0), env.spender, 0, u(0), u(1))
		done <- err
	}()
	<-env.gateway.queryEnter
	cancel()
	err := <-done
	require.ErrorIs(err, ledger.ErrGatewayCallFailed)
	require.Equal(0, l.PendingPairs())
}

func TestEventsJournal(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger

	err := l.AddContractAddress(env.ctx, call(env.owner, 0), "f1", "n1")
	require.Error(err)
	err = l.TransferNftFrom(env.ctx, call(env.spender, 0), env.owner, 0)
	require.Error(err)

	evs, err := l.Events(env.deployer, 10)
	require.NoError(err)
	require.Len(evs, 2)
	require.Equal(ledger.NoExistNFTApprove, evs[0].Reason)
	require.Equal("transfer_nft_from", evs[0].Operation)
	require.Equal(env.owner, evs[0].Owner)
	require.Equal(env.spender, evs[0].Spender)
	require.Equal(ledger.NoAuthorityAddContractAddress, evs[1].Reason)

	evs, err = l.Events(env.spender, 10)
	require.NoError(err)
	require.Len(evs, 1)
	require.Equal(ledger.NoExistNFTApprove, evs[0].Reason)

	evs, err = l.Events(env.owner, 10)
	require.NoError(err)
	require.Len(evs, 2)

	evs, err = l.Events(newActor(), 10)
	require.NoError(err)
	require.Len(evs, 0)

	evs, err = l.Events(env.deployer, 1)
	require.NoError(err)
	require.Len(evs, 1)
}

func TestReload(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger

	_, _, err := l.ApproveBalances(env.ctx, call(env.owner, 80), env.spender, 0, u(80), u(0))
	require.NoError(err)
	env.grantAndClaim(t, env.owner, env.spender)
	_, err = l.MintApproveNft(env.ctx, call(env.owner, 0), 0, env.spender)
	require.NoError(err)
	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(30), u(0), 0)
	require.NoError(err)
	err = l.AddContractAddress(env.ctx, call(env.deployer, 0), "f1", "n1")
	require.NoError(err)
	err = l.AddAuthorizedMinter(env.ctx, call(env.deployer, 0), env.owner)
	require.NoError(err)

	reloaded := env.build(t)
	native, ok := reloaded.SpenderNativeAllowance(env.spender, env.owner)
	require.True(ok)
	require.Equal("50", native.Dec())
	id, ok := reloaded.SpenderNftAllowance(env.spender, env.owner)
	require.True(ok)
	require.Equal("10001", id.Dec())
	gs := reloaded.GrantsForOwner(env.owner)
	require.Len(gs, 2)
	require.True(gs[0].Claimed)
	require.False(gs[1].Claimed)
	require.Equal([]string{fungibleAsset, "f1"}, reloaded.FungibleAssets())
	require.Equal([]string{env.deployer, env.owner}, reloaded.AuthorizedMinters())

	next, err := reloaded.MintApproveNft(env.ctx, call(env.owner, 0), 0, newActor())
	require.NoError(err)
	require.Equal("10003", next.Dec())
}

func TestRunDeliversTransfers(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger

	_, _, err := l.ApproveBalances(env.ctx, call(env.owner, 9), env.spender, 0, u(9), u(0))
	require.NoError(err)
	env.grantAndClaim(t, env.owner, env.spender)
	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(4), u(0), 0)
	require.NoError(err)
	err = l.TransferBalancesFrom(env.ctx, call(env.spender, 0), env.owner, u(5), u(0), 0)
	require.NoError(err)

	ctx, cancel := context.WithCancel(env.ctx)
	defer cancel()
	go l.Run(ctx)

	require.Eventually(func() bool {
		txs, err := env.store.ListTransfers(ledger.TransferStateDone, 10)
		return err == nil && len(txs) == 2
	}, 5*time.Second, 50*time.Millisecond)
	require.Equal(2, env.sender.count())

	txs, err := env.store.ListTransfers(ledger.TransferStateInitial, 10)
	require.NoError(err)
	require.Len(txs, 0)
}

func TestRunSkipsRejectedTransfer(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger
	rejected, paid := env.spender, newActor()
	env.sender.reject = map[string]bool{rejected: true}

	for _, spender := range []string{rejected, paid} {
		_, _, err := l.ApproveBalances(env.ctx, call(env.owner, 6), spender, 0, u(6), u(0))
		require.NoError(err)
		env.grantAndClaim(t, env.owner, spender)
		err = l.TransferBalancesFrom(env.ctx, call(spender, 0), env.owner, u(6), u(0), 0)
		require.NoError(err)
	}

	ctx, cancel := context.WithCancel(env.ctx)
	defer cancel()
	go l.Run(ctx)

	require.Eventually(func() bool {
		txs, err := env.store.ListTransfers(ledger.TransferStateDone, 10)
		return err == nil && len(txs) == 1
	}, 5*time.Second, 50*time.Millisecond)
	require.Equal([]string{paid}, env.sender.receivers())

	txs, err := env.store.ListTransfers(ledger.TransferStateInitial, 10)
	require.NoError(err)
	require.Len(txs, 1)
	require.Equal(rejected, txs[0].Receiver)
	require.GreaterOrEqual(txs[0].Attempts, 1)
}

func TestPairsWithSeparators(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l := env.ledger

	_, _, err := l.ApproveBalances(env.ctx, call("a", 5), "b:c", 0, u(5), u(0))
	require.NoError(err)
	_, _, err = l.ApproveBalances(env.ctx, call("a:b", 3), "c", 0, u(3), u(0))
	require.NoError(err)
	_, err = l.MintApproveNft(env.ctx, call("a", 0), 0, "b:c")
	require.NoError(err)
	_, err = l.MintApproveNft(env.ctx, call("a:b", 0), 0, "c")
	require.NoError(err)

	reloaded := env.build(t)
	native, ok := reloaded.SpenderNativeAllowance("b:c", "a")
	require.True(ok)
	require.Equal("5", native.Dec())
	native, ok = reloaded.SpenderNativeAllowance("c", "a:b")
	require.True(ok)
	require.Equal("3", native.Dec())
	id, ok := reloaded.SpenderNftAllowance("b:c", "a")
	require.True(ok)
	require.Equal("10001", id.Dec())
	id, ok = reloaded.SpenderNftAllowance("c", "a:b")
	require.True(ok)
	require.Equal("10002", id.Dec())
}

// failingStore rejects the record writes of the ledger operations while
// keeping properties and the journal working.
type failingStore struct {
	*store.BadgerStore
}

var errDiskFull = errors.New("disk full")

func (fs *failingStore) WriteRegistry(r *ledger.Registry) error {
	return errDiskFull
}

func (fs *failingStore) WriteRoles(r *ledger.Roles) error {
	return errDiskFull
}

func (fs *failingStore) WriteAllowance(a *ledger.Allowance) error {
	return errDiskFull
}

func (fs *failingStore) WriteGrant(g *ledger.Grant) error {
	return errDiskFull
}

func TestStoreFailureNotifies(t *testing.T) {
	require := require.New(t)
	env := setup(t)
	l, err := ledger.Build(env.ctx, &failingStore{env.store}, env.gateway, env.sender, env.conf)
	require.NoError(err)
	l.AddNotifier(env.notes)

	err = l.AddContractAddress(env.ctx, call(env.deployer, 0), "f1", "n1")
	require.ErrorIs(err, ledger.ErrTransactionFailed)
	err = l.AddAuthorizedMinter(env.ctx, call(env.deployer, 0), env.owner)
	require.ErrorIs(err, ledger.ErrTransactionFailed)
	_, _, err = l.ApproveBalances(env.ctx, call(env.owner, 1), env.spender, 0, u(1), u(0))
	require.ErrorIs(err, ledger.ErrTransactionFailed)
	_, err = l.MintApproveNft(env.ctx, call(env.owner, 0), 0, env.spender)
	require.ErrorIs(err, ledger.ErrTransactionFailed)

	require.Equal([]ledger.Reason{
		ledger.TransactionFailed,
		ledger.TransactionFailed,
		ledger.TransactionFailed,
		ledger.TransactionFailed,
	}, env.notes.reasons())
	require.Len(l.FungibleAssets(), 1)
	require.Equal([]string{env.deployer}, l.AuthorizedMinters())
	_, ok := l.SpenderNativeAllowance(env.spender, env.owner)
	require.False(ok)
	_, ok = l.SpenderNftAllowance(env.spender, env.owner)
	require.False(ok)
	require.Equal(0, l.PendingPairs())

	evs, err := l.Events(env.deployer, 10)
	require.NoError(err)
	require.Len(evs, 4)
}

func TestClockAcrossRestart(t *testing.T) {
	require := require.New(t)
	env := setup(t)

	c, err := ledger.NewClock(env.store)
	require.NoError(err)
	var last time.Time
	for i := 0; i < 100; i++ {
		now := c.Now()
		require.True(now.After(last))
		last = now
	}

	restarted, err := ledger.NewClock(env.store)
	require.NoError(err)
	require.True(restarted.Now().After(last))
}
