package ledgergrpc

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/tolelom/tolgame/box"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/crypto"
)

// Compile-time interface checks.
var (
	_ core.Chain       = (*Client)(nil)
	_ core.GameLocator = (*Client)(nil)
)

// DefaultCacheSize is the number of boxes the client keeps between blocks.
const DefaultCacheSize = 1024

// Client implements core.Chain and core.GameLocator against a remote ledger.
//
// Boxes fetched at one height are cached until a CurrentHeight call
// observes a different tip; box contents never change and the unspent set
// only changes when a block is produced.
type Client struct {
	cc    *grpc.ClientConn
	cache *lru.Cache

	mu     sync.Mutex
	height int64
}

// Dial connects to a remote ledger. token, when non-empty, is sent as a
// bearer token with every call.
func Dial(ctx context.Context, addr, token string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	if token != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(bearer(token)))
	}
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("ledger client: dial %s: %w", addr, err)
	}
	cache, err := lru.New(DefaultCacheSize)
	if err != nil {
		cc.Close()
		return nil, err
	}
	return &Client{cc: cc, cache: cache, height: -1}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) CurrentHeight(ctx context.Context) (int64, error) {
	resp := new(HeightResponse)
	if err := c.cc.Invoke(ctx, fullMethod("CurrentHeight"), &HeightRequest{}, resp); err != nil {
		return 0, fromStatus(err)
	}
	c.mu.Lock()
	if resp.Height != c.height {
		c.cache.Purge()
		c.height = resp.Height
	}
	c.mu.Unlock()
	return resp.Height, nil
}

func (c *Client) UnspentOutputsFor(ctx context.Context, addr crypto.Address) ([]*box.Raw, error) {
	resp := new(BoxesResponse)
	if err := c.cc.Invoke(ctx, fullMethod("UnspentOutputsFor"), &AddressRequest{Address: string(addr)}, resp); err != nil {
		return nil, fromStatus(err)
	}
	raws := resp.unwrap()
	c.remember(raws...)
	return raws, nil
}

func (c *Client) BoxByID(ctx context.Context, id string) (*box.Raw, error) {
	if v, ok := c.cache.Get(id); ok {
		return boxCopy(v.(*box.Raw)), nil
	}
	resp := new(BoxResponse)
	if err := c.cc.Invoke(ctx, fullMethod("BoxByID"), &BoxRequest{ID: id}, resp); err != nil {
		return nil, fromStatus(err)
	}
	c.remember(&resp.Box)
	return &resp.Box, nil
}

// Submit sends tx. Unavailable and deadline failures are reported as
// transient; every other rejection is permanent.
func (c *Client) Submit(ctx context.Context, tx *core.SignedTx) (string, error) {
	resp := new(SubmitResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Submit"), tx, resp); err != nil {
		switch status.Code(err) {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Canceled:
			return "", core.Transient(err)
		default:
			return "", core.Permanent(err)
		}
	}
	return resp.TxID, nil
}

func (c *Client) GameBoxByNFT(ctx context.Context, nftID string) (*box.Raw, error) {
	resp := new(BoxResponse)
	if err := c.cc.Invoke(ctx, fullMethod("GameBoxByNFT"), &GameRequest{NFTID: nftID}, resp); err != nil {
		return nil, fromStatus(err)
	}
	c.remember(&resp.Box)
	return &resp.Box, nil
}

func (c *Client) ParticipationsByNFT(ctx context.Context, nftID string) ([]*box.Raw, error) {
	resp := new(BoxesResponse)
	if err := c.cc.Invoke(ctx, fullMethod("ParticipationsByNFT"), &GameRequest{NFTID: nftID}, resp); err != nil {
		return nil, fromStatus(err)
	}
	raws := resp.unwrap()
	c.remember(raws...)
	return raws, nil
}

func (c *Client) remember(raws ...*box.Raw) {
	for _, r := range raws {
		c.cache.Add(r.ID, boxCopy(r))
	}
}

// fromStatus restores core.ErrNotFound from a NotFound status.
func fromStatus(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", status.Convert(err).Message(), core.ErrNotFound)
	}
	return err
}

func bearer(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
