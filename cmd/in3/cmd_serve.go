package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"xdao.co/in3/rpcserver"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		listen  string
		rate    float64
		burst   int
		maxBody int64
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve verified JSON-RPC over HTTP",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			c, err := a.newClient(reg)
			if err != nil {
				return err
			}
			srv := rpcserver.New(rpcserver.Options{
				Addr:          listen,
				Exec:          c,
				Gatherer:      reg,
				RatePerClient: rate,
				Burst:         burst,
				MaxBodyBytes:  maxBody,
				Logger:        a.log.Named("rpcserver"),
			})
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return srv.Run(ctx)
		},
	}
	f := cmd.Flags()
	f.StringVar(&listen, "listen", rpcserver.DefaultAddr, "Listen address")
	f.Float64Var(&rate, "rate", 0, "Requests per second per client IP; 0 disables limiting")
	f.IntVar(&burst, "burst", 10, "Burst size for --rate")
	f.Int64Var(&maxBody, "max-body-bytes", rpcserver.DefaultMaxBodyBytes, "Maximum request body size")
	return cmd
}
