// Package eth exposes typed helpers for common eth_ calls on top of a client.
package eth

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"xdao.co/in3/rpcerr"
)

// Block tags accepted by GetBalance besides a hex block number.
const (
	BlockLatest   = "latest"
	BlockEarliest = "earliest"
	BlockPending  = "pending"
)

// Sender runs a single call. *client.Client implements it.
type Sender interface {
	Send(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

type API struct {
	s Sender
}

func New(s Sender) *API { return &API{s: s} }

// BlockNumber returns the number of the most recent block.
func (a *API) BlockNumber(ctx context.Context) (uint64, error) {
	out, err := a.s.Send(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	q, err := quantity("eth_blockNumber", out)
	if err != nil {
		return 0, err
	}
	n, err := hexutil.DecodeUint64(q)
	if err != nil {
		return 0, badResult("eth_blockNumber", err)
	}
	return n, nil
}

// ChainID returns the chain id reported by the node.
func (a *API) ChainID(ctx context.Context) (uint64, error) {
	out, err := a.s.Send(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	q, err := quantity("eth_chainId", out)
	if err != nil {
		return 0, err
	}
	n, err := hexutil.DecodeUint64(q)
	if err != nil {
		return 0, badResult("eth_chainId", err)
	}
	return n, nil
}

// GetBalance returns the balance of addr in wei at block. An empty block means
// latest.
func (a *API) GetBalance(ctx context.Context, addr common.Address, block string) (*big.Int, error) {
	tag, err := blockTag(block)
	if err != nil {
		return nil, err
	}
	out, err := a.s.Send(ctx, "eth_getBalance", addr.Hex(), tag)
	if err != nil {
		return nil, err
	}
	q, err := quantity("eth_getBalance", out)
	if err != nil {
		return nil, err
	}
	v, err := hexutil.DecodeBig(q)
	if err != nil {
		return nil, badResult("eth_getBalance", err)
	}
	return v, nil
}

func blockTag(block string) (string, error) {
	switch block {
	case "":
		return BlockLatest, nil
	case BlockLatest, BlockEarliest, BlockPending:
		return block, nil
	}
	if _, err := hexutil.DecodeUint64(block); err != nil {
		return "", rpcerr.Newf(rpcerr.KindConfiguration, "eth: invalid block %q", block)
	}
	return block, nil
}

func quantity(method string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", badResult(method, err)
	}
	return s, nil
}

func badResult(method string, err error) error {
	return rpcerr.Wrap(rpcerr.KindVerification, fmt.Sprintf("eth: %s returned an invalid quantity: %v", method, err), err)
}
