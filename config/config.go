// Package config holds the client settings and the strict JSON/YAML
// configuration parser.
//
// Configuration is applied as a patch: keys absent from a document keep their
// prior values. Unknown keys are rejected. A document that fails validation
// leaves the settings untouched.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"gopkg.in/yaml.v3"

	"xdao.co/in3/rpcerr"
)

type Proof string

const (
	ProofNone     Proof = "none"
	ProofStandard Proof = "standard"
	ProofFull     Proof = "full"
)

const (
	DefaultMaxAttempts  = 3
	DefaultRequestCount = 1
	DefaultTimeout      = 10 * time.Second
)

// Node is one entry of a chain's node list.
type Node struct {
	URL     string `json:"url"`
	Address string `json:"address,omitempty"`
	Props   uint64 `json:"props"`
}

// Chain is the registry entry for one chain.
type Chain struct {
	ID          uint64
	Contract    string
	RegistryID  string
	NeedsUpdate bool
	Nodes       []Node
}

func (c *Chain) clone() *Chain {
	out := *c
	out.Nodes = append([]Node(nil), c.Nodes...)
	return &out
}

// Settings is the complete client configuration.
type Settings struct {
	AutoUpdateList bool
	ChainID        uint64
	MaxAttempts    int
	RequestCount   int
	Proof          Proof
	Timeout        time.Duration

	SignatureCount     int
	Finality           int
	IncludeCode        bool
	KeepIn3            bool
	MaxBlockCache      int
	MaxCodeCache       int
	MinDeposit         uint64
	NodeLimit          int
	ReplaceLatestBlock int

	Chains map[uint64]*Chain
}

// Default returns the settings a new client starts with.
func Default() Settings {
	return Settings{
		AutoUpdateList: true,
		ChainID:        ChainMainnet,
		MaxAttempts:    DefaultMaxAttempts,
		RequestCount:   DefaultRequestCount,
		Proof:          ProofStandard,
		Timeout:        DefaultTimeout,
		Chains:         defaultChains(),
	}
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	out := s
	out.Chains = make(map[uint64]*Chain, len(s.Chains))
	for id, c := range s.Chains {
		out.Chains[id] = c.clone()
	}
	return out
}

// Chain returns the entry for the active chain.
func (s Settings) Chain() (*Chain, bool) {
	c, ok := s.Chains[s.ChainID]
	return c, ok
}

// document is the wire shape of a configuration patch.
type document struct {
	AutoUpdateList *bool                     `json:"autoUpdateList"`
	ChainID        json.RawMessage           `json:"chainId"`
	MaxAttempts    *int                      `json:"maxAttempts"`
	RequestCount   *int                      `json:"requestCount"`
	Proof          *string                   `json:"proof"`
	RPC            *string                   `json:"rpc"`
	Timeout        *int64                    `json:"timeout"`
	Nodes          map[string]*chainDocument `json:"nodes"`
	Servers        map[string]*chainDocument `json:"servers"`

	SignatureCount     *int    `json:"signatureCount"`
	Finality           *int    `json:"finality"`
	IncludeCode        *bool   `json:"includeCode"`
	KeepIn3            *bool   `json:"keepIn3"`
	MaxBlockCache      *int    `json:"maxBlockCache"`
	MaxCodeCache       *int    `json:"maxCodeCache"`
	MinDeposit         *uint64 `json:"minDeposit"`
	NodeLimit          *int    `json:"nodeLimit"`
	ReplaceLatestBlock *int    `json:"replaceLatestBlock"`
}

type chainDocument struct {
	NeedsUpdate *bool          `json:"needsUpdate"`
	Contract    *string        `json:"contract"`
	RegistryID  *string        `json:"registryId"`
	NodeList    []nodeDocument `json:"nodeList"`
}

type nodeDocument struct {
	URL     string               `json:"url"`
	Address string               `json:"address"`
	Props   *math.HexOrDecimal64 `json:"props"`
}

func configErr(format string, args ...any) error {
	return rpcerr.Newf(rpcerr.KindConfiguration, "config: "+format, args...)
}

// Apply parses a JSON document and patches s with it. On error s is left
// unchanged and the error is of kind Configuration.
func (s *Settings) Apply(data []byte) error {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return rpcerr.Wrap(rpcerr.KindConfiguration, "config: "+err.Error(), err)
	}
	if dec.More() {
		return configErr("trailing data after configuration object")
	}

	next := s.Clone()
	if next.Chains == nil {
		next.Chains = defaultChains()
	}
	if err := next.apply(&doc); err != nil {
		return err
	}
	*s = next
	return nil
}

func (s *Settings) apply(doc *document) error {
	if doc.AutoUpdateList != nil {
		s.AutoUpdateList = *doc.AutoUpdateList
	}
	if len(doc.ChainID) > 0 {
		id, err := parseChainID(doc.ChainID)
		if err != nil {
			return err
		}
		s.ChainID = id
	}
	if doc.MaxAttempts != nil {
		if *doc.MaxAttempts < 0 {
			return configErr("maxAttempts must not be negative")
		}
		s.MaxAttempts = *doc.MaxAttempts
	}
	if doc.RequestCount != nil {
		if *doc.RequestCount < 1 {
			return configErr("requestCount must be at least 1")
		}
		s.RequestCount = *doc.RequestCount
	}
	if doc.Proof != nil {
		switch p := Proof(*doc.Proof); p {
		case ProofNone, ProofStandard, ProofFull:
			s.Proof = p
		default:
			return configErr("unknown proof %q", *doc.Proof)
		}
	}
	if doc.Timeout != nil {
		if *doc.Timeout <= 0 {
			return configErr("timeout must be positive")
		}
		s.Timeout = time.Duration(*doc.Timeout) * time.Millisecond
	}
	applyInt(&s.SignatureCount, doc.SignatureCount)
	applyInt(&s.Finality, doc.Finality)
	applyInt(&s.MaxBlockCache, doc.MaxBlockCache)
	applyInt(&s.MaxCodeCache, doc.MaxCodeCache)
	applyInt(&s.NodeLimit, doc.NodeLimit)
	applyInt(&s.ReplaceLatestBlock, doc.ReplaceLatestBlock)
	if doc.IncludeCode != nil {
		s.IncludeCode = *doc.IncludeCode
	}
	if doc.KeepIn3 != nil {
		s.KeepIn3 = *doc.KeepIn3
	}
	if doc.MinDeposit != nil {
		s.MinDeposit = *doc.MinDeposit
	}

	for _, nodes := range []map[string]*chainDocument{doc.Servers, doc.Nodes} {
		if err := s.applyChains(nodes); err != nil {
			return err
		}
	}

	if doc.RPC != nil {
		if err := s.applyRPC(*doc.RPC); err != nil {
			return err
		}
	}
	return nil
}

func applyInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// applyRPC switches to a single explicit endpoint without verification.
func (s *Settings) applyRPC(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return configErr("rpc must not be empty")
	}
	s.Proof = ProofNone
	s.ChainID = ChainLocal
	s.RequestCount = 1
	local, ok := s.Chains[ChainLocal]
	if !ok {
		local = &Chain{ID: ChainLocal}
		s.Chains[ChainLocal] = local
	}
	local.NeedsUpdate = false
	if len(local.Nodes) == 0 {
		local.Nodes = []Node{{URL: url}}
		return nil
	}
	local.Nodes[0].URL = url
	return nil
}

func (s *Settings) applyChains(nodes map[string]*chainDocument) error {
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		doc := nodes[k]
		if doc == nil {
			return configErr("chain %s: expected an object", k)
		}
		id, err := parseUint(k)
		if err != nil {
			return configErr("invalid chain id %q", k)
		}
		chain, ok := s.Chains[id]
		if !ok {
			if doc.Contract == nil || doc.RegistryID == nil {
				return configErr("chain %s: contract and registryId are required for a new chain", k)
			}
			chain = &Chain{ID: id, NeedsUpdate: true}
			s.Chains[id] = chain
		}
		if doc.Contract != nil {
			if !common.IsHexAddress(*doc.Contract) {
				return configErr("chain %s: invalid contract %q", k, *doc.Contract)
			}
			chain.Contract = strings.ToLower(*doc.Contract)
		}
		if doc.RegistryID != nil {
			b, err := hexutil.Decode(*doc.RegistryID)
			if err != nil || len(b) != 32 {
				return configErr("chain %s: registryId must be 32 bytes of hex", k)
			}
			chain.RegistryID = strings.ToLower(*doc.RegistryID)
		}
		if doc.NeedsUpdate != nil {
			chain.NeedsUpdate = *doc.NeedsUpdate
		}
		if doc.NodeList != nil {
			list := make([]Node, 0, len(doc.NodeList))
			for i, n := range doc.NodeList {
				node, err := n.node()
				if err != nil {
					return configErr("chain %s: nodeList[%d]: %v", k, i, err)
				}
				list = append(list, node)
			}
			chain.Nodes = list
		}
	}
	return nil
}

func (n nodeDocument) node() (Node, error) {
	if strings.TrimSpace(n.URL) == "" {
		return Node{}, errors.New("url is required")
	}
	if n.Address != "" && !common.IsHexAddress(n.Address) {
		return Node{}, fmt.Errorf("invalid address %q", n.Address)
	}
	props := DefaultNodeProps
	if n.Props != nil {
		props = uint64(*n.Props)
	}
	return Node{URL: strings.TrimSpace(n.URL), Address: strings.ToLower(n.Address), Props: props}, nil
}

func parseChainID(raw json.RawMessage) (uint64, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, configErr("invalid chainId: %v", err)
	}
	switch id := v.(type) {
	case string:
		if n, ok := ChainByName(id); ok {
			return n, nil
		}
		n, err := parseUint(id)
		if err != nil {
			return 0, configErr("unknown chainId %q", id)
		}
		return n, nil
	case float64:
		if id <= 0 || id != float64(uint64(id)) {
			return 0, configErr("invalid chainId %v", id)
		}
		return uint64(id), nil
	default:
		return 0, configErr("chainId must be a string or number")
	}
}

// parseUint accepts 0x-prefixed hex or decimal.
func parseUint(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty number")
	}
	n, ok := math.ParseUint64(s)
	if !ok {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

// ChainKey renders id the way chain entries are keyed in documents and
// storage ("0x1").
func ChainKey(id uint64) string { return hexutil.EncodeUint64(id) }

// Parse returns Default settings patched with data.
func Parse(data []byte) (Settings, error) {
	s := Default()
	if err := s.Apply(data); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadFile reads a .json, .yaml or .yml configuration file on top of Default.
func LoadFile(path string) (Settings, error) {
	if path == "" {
		return Settings{}, configErr("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, rpcerr.Wrap(rpcerr.KindConfiguration, "", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err = yamlToJSON(b)
		if err != nil {
			return Settings{}, err
		}
	case ".json", "":
	default:
		return Settings{}, configErr("unsupported config extension %q", filepath.Ext(path))
	}
	return Parse(b)
}

// yamlToJSON decodes a YAML document and re-encodes it as JSON so YAML files
// go through the same strict parser. Mapping keys keep their source text, so
// an unquoted chain key such as 0x1 stays "0x1".
func yamlToJSON(b []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindConfiguration, "config: "+err.Error(), err)
	}
	v, err := yamlValue(&doc)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindConfiguration, "config: "+err.Error(), err)
	}
	if v == nil {
		v = map[string]any{}
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindConfiguration, "config: "+err.Error(), err)
	}
	return out, nil
}

func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			v, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[k.Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
