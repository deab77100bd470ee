package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"xdao.co/in3/client"
	"xdao.co/in3/config"
	"xdao.co/in3/signer"
	"xdao.co/in3/storage"
	"xdao.co/in3/storage/registry"

	_ "xdao.co/in3/storage/grpcstore"
	_ "xdao.co/in3/storage/leveldb"
	_ "xdao.co/in3/storage/localfs"
	_ "xdao.co/in3/storage/memory"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// usageError marks errors that exit with status 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	a := &app{out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.Execute()
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.closeStore != nil {
		if cerr := a.closeStore(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err == nil {
		return 0
	}
	fmt.Fprintln(errOut, err)
	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		return 2
	}
	return 1
}

// app carries global flag values and the objects built from them.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	chain       string
	rpc         string
	pk          string
	pkFile      string
	storage     []string
	logLevel    string
	maxAttempts int

	log        *zap.Logger
	store      storage.Storage
	closeStore func() error
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "in3",
		Short:         "Verifying Ethereum light client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(a.logLevel, a.errOut)
			if err != nil {
				return usageError{err}
			}
			a.log = log
			return nil
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Configuration file (.json, .yaml)")
	pf.StringVarP(&a.chain, "chain", "c", "", "Chain name or id (mainnet, goerli, kovan, ipfs, local, 0x1, ...)")
	pf.StringVar(&a.rpc, "rpc", "", "Talk to a single RPC endpoint without verification")
	pf.StringVar(&a.pk, "pk", "", "Private key (hex) used for signing")
	pf.StringVar(&a.pkFile, "pk-file", "", "File holding the private key (hex, mode 0600)")
	pf.StringSliceVar(&a.storage, "storage", nil, "Storage backends, read in order ("+strings.Join(registry.Names(registry.UsageClient), ", ")+")")
	pf.StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.IntVar(&a.maxAttempts, "max-attempts", -1, "Retry ceiling for stale data; 0 is unbounded (default from config)")
	registry.RegisterFlags(pf, registry.UsageClient)

	root.AddCommand(
		a.callCmd(),
		a.blockNumberCmd(),
		a.balanceCmd(),
		a.serveCmd(),
		a.storageCmd(),
		a.backendsCmd(),
	)
	return root
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

// openStorage opens --storage once per invocation.
func (a *app) openStorage() (storage.Storage, error) {
	if a.store != nil || len(a.storage) == 0 {
		return a.store, nil
	}
	s, closeFn, err := registry.OpenTiered(a.storage, registry.UsageClient)
	if err != nil {
		return nil, err
	}
	a.store, a.closeStore = s, closeFn
	return s, nil
}

// newClient builds a client from the global flags.
func (a *app) newClient(reg prometheus.Registerer) (*client.Client, error) {
	opts := client.Options{Logger: a.log, Registerer: reg}
	if a.configPath != "" {
		s, err := config.LoadFile(a.configPath)
		if err != nil {
			return nil, err
		}
		opts.Settings = &s
	}
	store, err := a.openStorage()
	if err != nil {
		return nil, err
	}
	opts.Storage = store

	c, err := client.New(opts)
	if err != nil {
		return nil, err
	}

	patch := map[string]any{}
	if a.chain != "" {
		patch["chainId"] = a.chain
	}
	if a.maxAttempts >= 0 {
		patch["maxAttempts"] = a.maxAttempts
	}
	if a.rpc != "" {
		patch["rpc"] = a.rpc
	}
	if len(patch) > 0 {
		doc, _ := json.Marshal(patch)
		if err := c.Configure(string(doc)); err != nil {
			return nil, err
		}
	}

	switch {
	case a.pk != "" && a.pkFile != "":
		return nil, usagef("--pk and --pk-file are mutually exclusive")
	case a.pk != "":
		if err := c.SetRawKeySigner(a.pk); err != nil {
			return nil, err
		}
	case a.pkFile != "":
		key, err := signer.LoadKeyFile(a.pkFile)
		if err != nil {
			return nil, err
		}
		c.SetSigner(key)
	}
	return c, nil
}

func (a *app) backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List storage backends compiled into this binary",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, b := range registry.List(registry.UsageClient) {
				if b.Description == "" {
					fmt.Fprintln(a.out, b.Name)
					continue
				}
				fmt.Fprintf(a.out, "%s\t%s\n", b.Name, b.Description)
			}
			return nil
		},
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return usagef("usage: %s", cmd.UseLine())
	}
	return nil
}

func argRange(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < min || (max >= 0 && len(args) > max) {
			return usagef("usage: %s", cmd.UseLine())
		}
		return nil
	}
}
