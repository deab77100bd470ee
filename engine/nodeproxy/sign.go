package nodeproxy

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"xdao.co/in3/ctxtree"
	"xdao.co/in3/engine"
)

// signMessage returns the bytes a sign call asks to be signed.
//
// eth_sign takes [address, data] and signs the EIP-191 text hash of data.
// in3_sign takes [data] and signs data as given.
func signMessage(call Call) ([]byte, error) {
	idx := 0
	if call.Method == "eth_sign" {
		if len(call.Params) != 2 {
			return nil, fmt.Errorf("eth_sign expects [address, data]")
		}
		idx = 1
	} else if len(call.Params) < 1 {
		return nil, fmt.Errorf("in3_sign expects [data]")
	}
	var s string
	if err := json.Unmarshal(call.Params[idx], &s); err != nil {
		return nil, fmt.Errorf("%s: data must be a hex string", call.Method)
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", call.Method, err)
	}
	if call.Method == "eth_sign" {
		return accounts.TextHash(data), nil
	}
	return data, nil
}

func (e *Engine) advanceSign(tree *ctxtree.Tree, call Call) engine.Outcome {
	root := tree.Node(tree.Root())
	child := tree.Node(root.Required)
	if child == nil {
		msg, err := signMessage(call)
		if err != nil {
			return e.fail(tree, err.Error())
		}
		param, _ := json.Marshal(hexutil.Encode(msg))
		payload, _ := json.Marshal(map[string]any{"params": []json.RawMessage{param}})
		id, err := tree.Require(root.ID, ctxtree.KindSign, call.Method, payload, nil)
		if err != nil {
			return e.fail(tree, err.Error())
		}
		if err := tree.Await(id, payload, nil); err != nil {
			return e.fail(tree, err.Error())
		}
		return engine.Waiting()
	}
	if !child.Recorded {
		return engine.Waiting()
	}
	sig := child.Results[0]
	if sig.Failed {
		_ = tree.Fail(child.ID, sig.Err)
		return e.fail(tree, sig.Err)
	}
	_ = tree.Resolve(child.ID, sig.Value)
	out, _ := json.Marshal(sig.Value)
	_ = tree.Resolve(root.ID, string(out))
	return engine.Resolved()
}
