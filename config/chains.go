package config

import "strings"

const (
	ChainMainnet uint64 = 0x1
	ChainGoerli  uint64 = 0x5
	ChainKovan   uint64 = 0x2a
	ChainIPFS    uint64 = 0x7d0
	ChainLocal   uint64 = 0xffff
)

// DefaultNodeProps is used for nodes configured without props.
const DefaultNodeProps uint64 = 0xffff

var chainNames = map[string]uint64{
	"mainnet": ChainMainnet,
	"goerli":  ChainGoerli,
	"kovan":   ChainKovan,
	"ipfs":    ChainIPFS,
	"local":   ChainLocal,
}

// ChainByName returns the id of a well-known chain.
func ChainByName(name string) (uint64, bool) {
	id, ok := chainNames[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

func defaultChains() map[uint64]*Chain {
	chains := []*Chain{
		{
			ID:          ChainMainnet,
			Contract:    "0xac1b824795e1eb1f6e609fe0da9b9af8beaab60f",
			RegistryID:  "0x23d5345c5c13180a8080bd5ddbe7cde64683755dcce6e734d95b7b573845facb",
			NeedsUpdate: true,
			Nodes: []Node{
				{URL: "https://in3-v2.slock.it/mainnet/nd-1", Address: "0x45d45e6ff99e6c34a235d263965910298985fcfe", Props: 0xff},
				{URL: "https://in3-v2.slock.it/mainnet/nd-2", Address: "0x1fe2e9bf29aa1938859af64c413361227d04059a", Props: 0xff},
			},
		},
		{
			ID:          ChainKovan,
			Contract:    "0x4c396dcf50ac396e5fdea18163251699b5fcca25",
			RegistryID:  "0x92eb6ad5ed9068a24c1c85276cd7eb11eda1e8c50b17fbaffaf3e8396df4becf",
			NeedsUpdate: true,
			Nodes: []Node{
				{URL: "https://in3-v2.slock.it/kovan/nd-1", Address: "0x45d45e6ff99e6c34a235d263965910298985fcfe", Props: 0xff},
				{URL: "https://in3-v2.slock.it/kovan/nd-2", Address: "0x1fe2e9bf29aa1938859af64c413361227d04059a", Props: 0xff},
			},
		},
		{
			ID:          ChainIPFS,
			Contract:    "0xf0fb87f4757c77ea3416afe87f36acaa0496c7e9",
			NeedsUpdate: true,
			Nodes: []Node{
				{URL: "https://in3.slock.it/ipfs/nd-1", Address: "0x784bfa9eb182c3a02dbeb5285e3dba92d717e07a", Props: 0xff},
				{URL: "https://in3.slock.it/ipfs/nd-5", Address: "0x243d5bb48a47bed0f6a89b61e4660540e856a33d", Props: 0xff},
			},
		},
		{
			ID:       ChainLocal,
			Contract: "0xf0fb87f4757c77ea3416afe87f36acaa0496c7e9",
			Nodes: []Node{
				{URL: "http://localhost:8545", Address: "0x784bfa9eb182c3a02dbeb5285e3dba92d717e07a", Props: 0x0},
			},
		},
		{
			ID:          ChainGoerli,
			Contract:    "0x5f51e413581dd76759e9eed51e63d14c8d1379c8",
			RegistryID:  "0x67c02e5e272f9d6b4a33716614061dd298283f86351079ef903bf0d4410a44ea",
			NeedsUpdate: true,
			Nodes: []Node{
				{URL: "https://in3-v2.slock.it/goerli/nd-1", Address: "0x45d45e6ff99e6c34a235d263965910298985fcfe", Props: 0xff},
				{URL: "https://in3-v2.slock.it/goerli/nd-2", Address: "0x1fe2e9bf29aa1938859af64c413361227d04059a", Props: 0xff},
			},
		},
	}
	out := make(map[uint64]*Chain, len(chains))
	for _, c := range chains {
		out[c.ID] = c
	}
	return out
}
