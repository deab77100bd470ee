package memory

import (
	"github.com/spf13/pflag"

	"xdao.co/in3/storage"
	"xdao.co/in3/storage/registry"
)

var flagSize int

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "memory",
		Description: "In-process LRU cache (lost on exit)",
		Usage:       registry.UsageClient | registry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.IntVar(&flagSize, "memory-size", DefaultSize, "Maximum number of keys (for --storage=memory)")
		},
		Open: func() (storage.Storage, func() error, error) {
			s, err := New(flagSize)
			return s, nil, err
		},
	})
}
