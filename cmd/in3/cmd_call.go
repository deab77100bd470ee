package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"xdao.co/in3/eth"
)

func (a *app) callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [param ...]",
		Short: "Execute a JSON-RPC method and print the raw result",
		Long: `Execute a JSON-RPC method and print the raw JSON result.

Each param is parsed as JSON; anything that is not valid JSON is sent as a
string, so addresses and block tags need no quoting.`,
		Args: argRange(1, -1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient(nil)
			if err != nil {
				return err
			}
			params := make([]any, 0, len(args)-1)
			for _, p := range args[1:] {
				params = append(params, param(p))
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			out, err := c.Send(ctx, args[0], params...)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, string(out))
			return nil
		},
	}
}

func param(s string) any {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}

func (a *app) blockNumberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block-number",
		Short: "Print the latest block number",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient(nil)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			n, err := eth.New(c).BlockNumber(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, n)
			return nil
		},
	}
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address> [block]",
		Short: "Print the balance of an account in wei",
		Args:  argRange(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return usagef("invalid address %q", args[0])
			}
			block := ""
			if len(args) == 2 {
				block = args[1]
			}
			c, err := a.newClient(nil)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			v, err := eth.New(c).GetBalance(ctx, common.HexToAddress(args[0]), block)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, v.String())
			return nil
		},
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
