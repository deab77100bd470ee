package nodeproxy

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common/math"

	"xdao.co/in3/config"
	"xdao.co/in3/engine"
)

// StorageKey returns the key a chain's node list is persisted under.
func StorageKey(chainID uint64) string { return "nodelist_" + config.ChainKey(chainID) }

// chainState is the runtime node list of one chain, shared across calls.
type chainState struct {
	id          uint64
	nodes       []config.Node
	lastBlock   uint64
	needsUpdate bool
	blacklist   map[string]time.Time
	restored    bool
}

// persisted is the blob stored through the host.
type persisted struct {
	LastBlock   uint64        `json:"lastBlock"`
	NeedsUpdate bool          `json:"needsUpdate"`
	Nodes       []config.Node `json:"nodes"`
}

func newChainState(c *config.Chain) *chainState {
	return &chainState{
		id:          c.ID,
		nodes:       append([]config.Node(nil), c.Nodes...),
		needsUpdate: c.NeedsUpdate,
		blacklist:   map[string]time.Time{},
	}
}

// restore loads a previously persisted list once per state, and again after
// Engine.StorageChanged.
func (s *chainState) restore(host *engine.Host) {
	if s.restored {
		return
	}
	s.restored = true
	b, ok := host.CacheGet(StorageKey(s.id))
	if !ok {
		return
	}
	var p persisted
	if err := json.Unmarshal(b, &p); err != nil || len(p.Nodes) == 0 {
		host.Logger().Debug("ignoring unreadable stored node list")
		return
	}
	if p.LastBlock < s.lastBlock {
		return
	}
	s.nodes = p.Nodes
	s.lastBlock = p.LastBlock
	s.needsUpdate = p.NeedsUpdate
}

func (s *chainState) persist(host *engine.Host) {
	b, err := json.Marshal(persisted{LastBlock: s.lastBlock, NeedsUpdate: s.needsUpdate, Nodes: s.nodes})
	if err != nil {
		return
	}
	host.CacheSet(StorageKey(s.id), b)
}

func (s *chainState) blacklisted(url string, now time.Time) bool {
	until, ok := s.blacklist[url]
	if !ok {
		return false
	}
	if now.After(until) {
		delete(s.blacklist, url)
		return false
	}
	return true
}

func (s *chainState) block(url string, until time.Time) { s.blacklist[url] = until }

// pick returns up to n node urls in list order, skipping blacklisted ones.
func (s *chainState) pick(n int, now time.Time) []string {
	if n < 1 {
		n = 1
	}
	out := make([]string, 0, n)
	for _, node := range s.nodes {
		if len(out) == n {
			break
		}
		if s.blacklisted(node.URL, now) {
			continue
		}
		out = append(out, node.URL)
	}
	return out
}

// nodeListResult is the result of an in3_nodeList response.
type nodeListResult struct {
	Nodes           []nodeEntry `json:"nodes"`
	LastBlockNumber uint64      `json:"lastBlockNumber"`
}

type nodeEntry struct {
	URL     string               `json:"url"`
	Address string               `json:"address"`
	Props   *math.HexOrDecimal64 `json:"props"`
}

func (e nodeEntry) node() config.Node {
	n := config.Node{URL: e.URL, Address: e.Address, Props: config.DefaultNodeProps}
	if e.Props != nil {
		n.Props = uint64(*e.Props)
	}
	return n
}
