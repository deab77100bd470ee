// Package httptransport implements transport.Transport over HTTP POST.
package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"xdao.co/in3/internal/ratelimit"
	"xdao.co/in3/transport"
)

const (
	DefaultTimeout          = 10 * time.Second
	DefaultMaxResponseBytes = 8 << 20

	errBodyPrefix = 256
)

// Options configures a Transport. The zero value is usable.
type Options struct {
	// Client is the HTTP client used for every request. Defaults to a client
	// without its own timeout; Timeout below applies per request.
	Client *http.Client

	// Timeout applies per target when non-zero.
	Timeout time.Duration

	// MaxResponseBytes caps each response body. Larger bodies fail the target.
	MaxResponseBytes int64

	// MaxConcurrency limits in-flight requests per Fetch when > 0.
	MaxConcurrency int

	// RatePerEndpoint and Burst enable a token bucket per target URL.
	RatePerEndpoint float64
	Burst           int

	Logger *zap.Logger
}

// Transport posts JSON payloads to every target concurrently.
type Transport struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	maxConc  int
	limiter  *ratelimit.Keyed
	log      *zap.Logger
}

var _ transport.Transport = (*Transport)(nil)

func New(opts Options) *Transport {
	t := &Transport{
		client:   opts.Client,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxResponseBytes,
		maxConc:  opts.MaxConcurrency,
		log:      opts.Logger,
	}
	if t.client == nil {
		t.client = &http.Client{}
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTimeout
	}
	if t.maxBytes <= 0 {
		t.maxBytes = DefaultMaxResponseBytes
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	if opts.RatePerEndpoint > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = ratelimit.New(opts.RatePerEndpoint, burst, 0)
	}
	return t
}

// Fetch implements transport.Transport.
func (t *Transport) Fetch(ctx context.Context, payload []byte, targets []string) []transport.Response {
	out := make([]transport.Response, len(targets))

	// Per-target failures land in out; the group only joins goroutines.
	var g errgroup.Group
	if t.maxConc > 0 {
		g.SetLimit(t.maxConc)
	}
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			out[i] = t.post(ctx, payload, target)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (t *Transport) post(ctx context.Context, payload []byte, target string) transport.Response {
	start := time.Now()
	log := t.log.With(zap.String("target", target))

	if err := t.limiter.Wait(ctx, target); err != nil {
		log.Debug("rate limit wait aborted", zap.Error(err))
		return transport.Fail(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return transport.Fail(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		log.Debug("request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return transport.Fail(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return transport.Fail(err.Error())
	}
	if int64(len(body)) > t.maxBytes {
		return transport.Fail(fmt.Sprintf("http: response from %s exceeds %d bytes", target, t.maxBytes))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > errBodyPrefix {
			msg = msg[:errBodyPrefix]
		}
		log.Debug("non-2xx response", zap.Int("status", resp.StatusCode))
		return transport.Fail(fmt.Sprintf("http %d: %s", resp.StatusCode, msg))
	}

	log.Debug("response", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(body)), zap.Duration("elapsed", time.Since(start)))
	return transport.OK(string(body))
}
