package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"xdao.co/in3/storage"
)

func (a *app) storageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect the storage the client persists to (see --storage)",
	}
	cmd.AddCommand(a.storageGetCmd(), a.storageSetCmd(), a.storageClearCmd())
	return cmd
}

func (a *app) requireStorage() (storage.Storage, error) {
	if len(a.storage) == 0 {
		return nil, usagef("missing --storage")
	}
	return a.openStorage()
}

func (a *app) storageGetCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under key",
		Args:  argRange(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.requireStorage()
			if err != nil {
				return err
			}
			b, err := s.Get(args[0])
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err = a.out.Write(b)
				return err
			}
			if err := os.WriteFile(outPath, b, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (default stdout)")
	return cmd
}

func (a *app) storageSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store value under key; without value it is read from stdin",
		Args:  argRange(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.requireStorage()
			if err != nil {
				return err
			}
			var value []byte
			if len(args) == 2 {
				value = []byte(args[1])
			} else {
				value, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}
			return s.Set(args[0], value)
		},
	}
}

func (a *app) storageClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored entry",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.requireStorage()
			if err != nil {
				return err
			}
			return s.Clear()
		},
	}
}
