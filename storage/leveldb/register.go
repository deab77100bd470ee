package leveldb

import (
	"fmt"

	"github.com/spf13/pflag"

	"xdao.co/in3/storage"
	"xdao.co/in3/storage/registry"
)

var flagDir string

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "leveldb",
		Description: "LevelDB database directory",
		Usage:       registry.UsageClient | registry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagDir, "leveldb-dir", "", "LevelDB directory (for --storage=leveldb)")
		},
		Open: func() (storage.Storage, func() error, error) {
			if flagDir == "" {
				return nil, nil, fmt.Errorf("missing --leveldb-dir")
			}
			s, err := Open(flagDir)
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		},
	})
}
