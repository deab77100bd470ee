// Package client is the entry point applications use to run in3 calls.
//
// A Client holds the configuration and the capability set (transport, signer,
// storage). Execute snapshots the capabilities under a read lock, so replacing
// one never affects a call already in flight.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"xdao.co/in3/config"
	"xdao.co/in3/driver"
	"xdao.co/in3/engine/nodeproxy"
	"xdao.co/in3/rpcerr"
	"xdao.co/in3/signer"
	"xdao.co/in3/storage"
	"xdao.co/in3/transport"
	"xdao.co/in3/transport/httptransport"
)

// Options configures a Client. The zero value gives an HTTP transport, no
// signer, no storage and the default chain configuration.
type Options struct {
	// Settings replaces config.Default() when non-nil.
	Settings *config.Settings

	Transport transport.Transport
	Signer    signer.Signer
	Storage   storage.Storage

	// HTTP is used to build the default transport when Transport is nil.
	// Its Timeout is overridden by the configured timeout.
	HTTP httptransport.Options

	Logger *zap.Logger

	// Registerer receives the driver metrics when non-nil.
	Registerer prometheus.Registerer
}

type Client struct {
	mu sync.RWMutex

	settings config.Settings
	engine   *nodeproxy.Engine

	transport   transport.Transport
	ownsHTTP    bool
	httpOptions httptransport.Options
	signer      signer.Signer
	rawKey      *signer.PrivateKey
	store       storage.Storage

	log     *zap.Logger
	metrics *driver.Metrics
}

func New(opts Options) (*Client, error) {
	c := &Client{
		settings:    config.Default(),
		transport:   opts.Transport,
		httpOptions: opts.HTTP,
		signer:      opts.Signer,
		store:       opts.Storage,
		log:         opts.Logger,
	}
	if opts.Settings != nil {
		c.settings = opts.Settings.Clone()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if opts.Registerer != nil {
		m, err := driver.NewMetrics(opts.Registerer)
		if err != nil {
			return nil, fmt.Errorf("client: metrics: %w", err)
		}
		c.metrics = m
	}
	c.engine = nodeproxy.New(c.settings)
	if c.transport == nil {
		c.ownsHTTP = true
		c.transport = c.newHTTPTransport()
	}
	return c, nil
}

func (c *Client) newHTTPTransport() transport.Transport {
	o := c.httpOptions
	o.Timeout = c.settings.Timeout
	if o.Logger == nil {
		o.Logger = c.log.Named("http")
	}
	return httptransport.New(o)
}

// Configure patches the configuration with a JSON document. Errors are of kind
// Configuration and leave the client unchanged.
func (c *Client) Configure(doc string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.settings.Clone()
	if err := next.Apply([]byte(doc)); err != nil {
		return err
	}
	c.settings = next
	c.engine.SetSettings(next)
	if c.ownsHTTP {
		c.transport = c.newHTTPTransport()
	}
	c.log.Debug("configuration updated", zap.String("chain", config.ChainKey(next.ChainID)))
	return nil
}

// Settings returns a copy of the current configuration.
func (c *Client) Settings() config.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Clone()
}

// Nodes returns the node urls currently known for chainID.
func (c *Client) Nodes(chainID uint64) []string {
	return c.engine.Nodes(chainID)
}

// SetTransport replaces the transport. A nil t restores the HTTP default.
func (c *Client) SetTransport(t transport.Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t == nil {
		c.ownsHTTP = true
		c.transport = c.newHTTPTransport()
		return
	}
	c.ownsHTTP = false
	c.transport = t
}

// SetSigner replaces the signer. A nil s removes it.
func (c *Client) SetSigner(s signer.Signer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signer = s
}

// SetStorage replaces the storage. A nil s disables persistence. Node lists
// persisted in s are picked up by the next call.
func (c *Client) SetStorage(s storage.Storage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = s
	c.engine.StorageChanged()
}

// SetRawKeySigner installs a private key given as hex. It is used for sign
// requests whenever no Signer is set.
func (c *Client) SetRawKeySigner(hexKey string) error {
	key, err := signer.ParsePrivateKeyHex(hexKey)
	if err != nil {
		return rpcerr.Wrap(rpcerr.KindConfiguration, "", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rawKey = key
	return nil
}

func (c *Client) snapshot() (driver.Capabilities, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return driver.Capabilities{
		Transport: c.transport,
		Signer:    c.signer,
		RawKey:    c.rawKey,
		Storage:   c.store,
	}, c.settings.MaxAttempts
}

// Execute runs a JSON call {"method":..,"params":[..]} and returns the raw JSON
// result. Errors are *rpcerr.Error values.
func (c *Client) Execute(ctx context.Context, call string) (string, error) {
	caps, maxAttempts := c.snapshot()
	d := driver.New(c.engine,
		driver.WithMaxAttempts(maxAttempts),
		driver.WithLogger(c.log),
		driver.WithMetrics(c.metrics),
	)
	return d.Execute(ctx, []byte(call), caps)
}

// Send marshals method and params into a call and executes it.
func (c *Client) Send(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	call, err := json.Marshal(struct {
		Method string `json:"method"`
		Params []any  `json:"params"`
	}{method, params})
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindInternal, "client: encode params: "+err.Error(), err)
	}
	out, err := c.Execute(ctx, string(call))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}
