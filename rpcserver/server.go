// Package rpcserver serves in3 calls over HTTP JSON-RPC.
package rpcserver

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"xdao.co/in3/internal/ratelimit"
	"xdao.co/in3/model"
)

const (
	DefaultAddr         = "127.0.0.1:8545"
	DefaultMaxBodyBytes = 1 << 20

	shutdownTimeout = 5 * time.Second
)

type Options struct {
	Addr string
	Exec model.Executor

	// Gatherer enables /metrics when non-nil.
	Gatherer prometheus.Gatherer

	// RatePerClient and Burst limit requests per client IP when > 0.
	RatePerClient float64
	Burst         int

	MaxBodyBytes int64
	Logger       *zap.Logger
}

type Server struct {
	httpServer *http.Server
	exec       model.Executor
	limiter    *ratelimit.Keyed
	maxBody    int64
	log        *zap.Logger
}

func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	burst := opts.Burst
	if opts.RatePerClient > 0 && burst <= 0 {
		burst = 1
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		exec:    opts.Exec,
		limiter: ratelimit.New(opts.RatePerClient, burst, 0),
		maxBody: opts.MaxBodyBytes,
		log:     opts.Logger,
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	if opts.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/", s.handleRPC)
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("rpc server listening", zap.String("addr", ln.Addr().String()))
	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	key := clientKey(r)
	if !s.limiter.Allow(key, time.Now()) {
		s.log.Debug("rate limited", zap.String("client", key))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write(model.ErrorBody(model.ErrRateLimited, "rate limit exceeded"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody+1))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(model.ErrorBody(model.ErrParse, "read body: "+err.Error()))
		return
	}
	if int64(len(body)) > s.maxBody {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write(model.ErrorBody(model.ErrInvalidRequest, "request body too large"))
		return
	}

	_, _ = w.Write(model.HandleBody(r.Context(), s.exec, body))
}

func clientKey(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "ip:unknown"
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return "ip:" + remote
	}
	return "ip:" + host
}
