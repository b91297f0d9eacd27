// Package chainclient wraps go-ethereum's ethclient.Client with the
// per-call timeout and concurrency-cap semantics the relay engine depends
// on: every call is independent, every call is bounded, and no call is
// retried at this layer.
package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/sync/semaphore"

	"github.com/parity-relay/bridge/bridgeerr"
	"github.com/parity-relay/bridge/metrics"
)

// Config describes how to reach one chain's RPC endpoint.
type Config struct {
	HTTP                string
	JWTSecret           []byte // optional; nil disables auth
	RequestTimeout      time.Duration
	MaxParallelRequests int64 // spec default 10

	// Metrics and ChainName are optional; when Metrics is non-nil every RPC
	// call's latency is recorded against ChainName ("main"/"side").
	Metrics   *metrics.Metrics
	ChainName string
}

// Client is a typed, timeout-bounded wrapper around one chain's JSON-RPC
// endpoint. A Client is safe to Clone(); clones share the underlying
// transport and concurrency limiter but can be held independently by each
// RelayJob, matching the "RelayJob carries clones of the chain clients"
// ownership rule.
type Client struct {
	eth       *ethclient.Client
	timeout   time.Duration
	limit     *semaphore.Weighted
	metrics   *metrics.Metrics
	chainName string
}

// jwtRoundTripper stamps every outgoing HTTP request with a freshly signed
// HS256 bearer token, the same scheme go-ethereum's engine API uses to
// authenticate consensus-client <-> execution-client RPC traffic.
type jwtRoundTripper struct {
	secret []byte
	next   http.RoundTripper
}

func (rt *jwtRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	claims := jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(rt.secret)
	if err != nil {
		return nil, fmt.Errorf("chainclient: signing jwt: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	return rt.next.RoundTrip(req)
}

// Dial connects to the chain described by cfg. The returned Client's calls
// are bounded by cfg.RequestTimeout and at most cfg.MaxParallelRequests may
// be outstanding at once.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	maxParallel := cfg.MaxParallelRequests
	if maxParallel <= 0 {
		maxParallel = 10
	}

	var rpcClient *rpc.Client
	var err error
	if len(cfg.JWTSecret) > 0 {
		httpClient := &http.Client{
			Transport: &jwtRoundTripper{secret: cfg.JWTSecret, next: http.DefaultTransport},
		}
		rpcClient, err = rpc.DialOptions(ctx, cfg.HTTP, rpc.WithHTTPClient(httpClient))
	} else {
		rpcClient, err = rpc.DialContext(ctx, cfg.HTTP)
	}
	if err != nil {
		return nil, fmt.Errorf("chainclient: dial %s: %w", cfg.HTTP, err)
	}

	return &Client{
		eth:       ethclient.NewClient(rpcClient),
		timeout:   cfg.RequestTimeout,
		limit:     semaphore.NewWeighted(maxParallel),
		metrics:   cfg.Metrics,
		chainName: cfg.ChainName,
	}, nil
}

// Clone returns a Client sharing this Client's transport and concurrency
// limiter. Safe for concurrent use by independent RelayJobs.
func (c *Client) Clone() *Client {
	return &Client{eth: c.eth, timeout: c.timeout, limit: c.limit, metrics: c.metrics, chainName: c.chainName}
}

// Close releases the underlying transport. Only the last owner of a shared
// transport should call this; in practice that's main() at shutdown.
func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) acquire(ctx context.Context) error {
	if err := c.limit.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("chainclient: acquiring request slot: %w", err)
	}
	return nil
}

func (c *Client) release() {
	c.limit.Release(1)
}

// observe records one RPC call's latency, started at start, against
// method -- a no-op if this Client wasn't given a Metrics (e.g. in tests).
func (c *Client) observe(method string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveCallLatency(c.chainName, method, time.Since(start))
}

// BlockNumber returns the current tip of the chain.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.acquire(ctx); err != nil {
		return 0, err
	}
	defer c.release()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	n, err := c.eth.BlockNumber(ctx)
	c.observe("eth_blockNumber", start)
	if err != nil {
		return 0, fmt.Errorf("chainclient: eth_blockNumber: %w", classify(err))
	}
	return n, nil
}

// FilterLogs issues an eth_getLogs query for logs matching q. Callers must
// leave Topics slots they don't care about as nil (not empty slices) so
// they serialize to JSON null rather than being omitted.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	logs, err := c.eth.FilterLogs(ctx, q)
	c.observe("eth_getLogs", start)
	if err != nil {
		return nil, fmt.Errorf("chainclient: eth_getLogs: %w", classify(err))
	}
	return logs, nil
}

// CallContract issues an eth_call against to with calldata.
func (c *Client) CallContract(ctx context.Context, to common.Address, calldata []byte) ([]byte, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: calldata}, nil)
	c.observe("eth_call", start)
	if err != nil {
		return nil, fmt.Errorf("chainclient: eth_call: %w", classify(err))
	}
	return out, nil
}

// SendTransaction issues an eth_sendTransaction carrying calldata from
// `from` to `to`, returning the resulting transaction hash. Private key
// custody is delegated entirely to the node behind this RPC endpoint; this
// client never holds or signs with a private key itself.
func (c *Client) SendTransaction(ctx context.Context, from, to common.Address, calldata []byte, gas uint64, gasPrice *big.Int) (common.Hash, error) {
	if err := c.acquire(ctx); err != nil {
		return common.Hash{}, err
	}
	defer c.release()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var txHash common.Hash
	arg := map[string]interface{}{
		"from":     from,
		"to":       to,
		"data":     hexBytes(calldata),
		"gas":      hexUint64(gas),
		"gasPrice": hexBigInt(gasPrice),
	}
	start := time.Now()
	err := c.eth.Client().CallContext(ctx, &txHash, "eth_sendTransaction", arg)
	c.observe("eth_sendTransaction", start)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chainclient: eth_sendTransaction: %w", classify(err))
	}
	return txHash, nil
}

// DeployContract issues a contract-creation transaction: data is the
// contract's init code (bytecode followed by ABI-encoded constructor
// arguments), sent with no `to` field. Returns the transaction hash; the
// deployed address is only known once the transaction is mined, via the
// receipt's ContractAddress field.
func (c *Client) DeployContract(ctx context.Context, from common.Address, data []byte, gas uint64, gasPrice *big.Int) (common.Hash, error) {
	if err := c.acquire(ctx); err != nil {
		return common.Hash{}, err
	}
	defer c.release()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var txHash common.Hash
	arg := map[string]interface{}{
		"from":     from,
		"data":     hexBytes(data),
		"gas":      hexUint64(gas),
		"gasPrice": hexBigInt(gasPrice),
	}
	start := time.Now()
	err := c.eth.Client().CallContext(ctx, &txHash, "eth_sendTransaction", arg)
	c.observe("eth_sendTransaction", start)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chainclient: eth_sendTransaction (deploy): %w", classify(err))
	}
	return txHash, nil
}

// TransactionReceipt polls for the receipt of txHash, returning
// (nil, nil) if it isn't mined yet (not an error: the caller, e.g.
// SideToMainSignatures S5, is expected to keep polling across ticks).
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	c.observe("eth_getTransactionReceipt", start)
	if err != nil {
		if err == ethereum.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("chainclient: eth_getTransactionReceipt: %w", classify(err))
	}
	return receipt, nil
}

// classify tags a raw RPC failure with its bridgeerr.Category (Timeout or
// RPC), recoverable with bridgeerr.CategoryOf, rather than leaving an
// opaque wrapped error.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return bridgeerr.New(bridgeerr.Timeout, "request timed out", err)
	}
	return bridgeerr.New(bridgeerr.RPC, "rpc request failed", err)
}
