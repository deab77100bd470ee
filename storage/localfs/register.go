package localfs

import (
	"fmt"

	"github.com/spf13/pflag"

	"xdao.co/in3/storage"
	"xdao.co/in3/storage/registry"
)

var flagLocalDir string

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "localfs",
		Description: "One file per key under a directory",
		Usage:       registry.UsageClient | registry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagLocalDir, "localfs-dir", "", "Storage directory (for --storage=localfs)")
		},
		Open: func() (storage.Storage, func() error, error) {
			if flagLocalDir == "" {
				return nil, nil, fmt.Errorf("missing --localfs-dir")
			}
			s, err := New(flagLocalDir)
			return s, nil, err
		},
	})
}
