package storage

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// KeyID returns a CIDv1 (raw codec, sha2-256) derived from key.
//
// Backends that cannot store arbitrary key strings (file names, object names)
// address values by this id instead.
func KeyID(key string) (cid.Cid, error) {
	if err := CheckKey(key); err != nil {
		return cid.Undef, err
	}
	sum, err := multihash.Sum([]byte(key), multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}
