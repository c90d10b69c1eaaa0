package gateway

import (
	"context"
	"fmt"

	"github.com/MixinNetwork/mixin/common"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

const (
	MethodBalanceOf = "balance_of"
	MethodAllowance = "allowance"
	MethodApprove   = "approve"
	MethodMint      = "mint"
)

// Request names the asset service operation and its arguments, every
// argument is a string. The encoding is msgpack.
type Request struct {
	Id     string
	Method string
	Args   []string
}

type Reply struct {
	Id    string
	Value string `msgpack:",omitempty"`
	Error string `msgpack:",omitempty"`
}

type Transport interface {
	RoundTrip(ctx context.Context, address string, payload []byte) ([]byte, error)
}

// Client performs each asset service call as a message handed to its own
// goroutine, the caller waits for the reply on a channel. There are no
// retries and no timeout, only ctx ends the wait.
type Client struct {
	transport Transport
}

type result struct {
	value string
	err   error
}

func NewClient(transport Transport) *Client {
	return &Client{transport: transport}
}

func (c *Client) QueryBalance(ctx context.Context, asset, owner string) (*uint256.Int, error) {
	val, err := c.invoke(ctx, asset, MethodBalanceOf, owner)
	if err != nil {
		return nil, err
	}
	return decodeAmount(MethodBalanceOf, val)
}

func (c *Client) QueryAllowance(ctx context.Context, asset, owner, spender string) (*uint256.Int, error) {
	val, err := c.invoke(ctx, asset, MethodAllowance, owner, spender)
	if err != nil {
		return nil, err
	}
	return decodeAmount(MethodAllowance, val)
}

func (c *Client) Approve(ctx context.Context, asset, spender string, amount *uint256.Int) error {
	_, err := c.invoke(ctx, asset, MethodApprove, spender, amount.Dec())
	return err
}

func (c *Client) Mint(ctx context.Context, asset string, tokenId *uint256.Int) error {
	_, err := c.invoke(ctx, asset, MethodMint, tokenId.Dec())
	return err
}

func (c *Client) invoke(ctx context.Context, address, method string, args ...string) (string, error) {
	req := &Request{
		Id:     uuid.Must(uuid.NewV4()).String(),
		Method: method,
		Args:   args,
	}
	reply := make(chan *result, 1)
	go c.roundTrip(ctx, address, req, reply)

	select {
	case r := <-reply:
		return r.value, r.err
	case <-ctx.Done():
		return "", errors.Wrapf(ctx.Err(), "%s %s abandoned", address, method)
	}
}

func (c *Client) roundTrip(ctx context.Context, address string, req *Request, reply chan<- *result) {
	payload := common.MsgpackMarshalPanic(req)
	raw, err := c.transport.RoundTrip(ctx, address, payload)
	if err != nil {
		reply <- &result{err: errors.Wrapf(err, "dispatch %s to %s", req.Method, address)}
		return
	}
	var rep Reply
	err = common.MsgpackUnmarshal(raw, &rep)
	if err != nil {
		reply <- &result{err: errors.Wrapf(err, "decode %s reply from %s", req.Method, address)}
		return
	}
	if rep.Id != req.Id {
		reply <- &result{err: fmt.Errorf("%s reply from %s for %s, expected %s", req.Method, address, rep.Id, req.Id)}
		return
	}
	if rep.Error != "" {
		reply <- &result{err: fmt.Errorf("%s rejected by %s: %s", req.Method, address, rep.Error)}
		return
	}
	reply <- &result{value: rep.Value}
}

func decodeAmount(method, val string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(val)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s amount %s", method, val)
	}
	return amount, nil
}
