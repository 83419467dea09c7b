package memory

import (
	"flag"

	"xdao.co/dsv/storage"
	"xdao.co/dsv/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:          "memory",
		Description:   "In-process CAS (contents are lost on exit)",
		Usage:         casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(*flag.FlagSet) {},
		Open: func() (storage.CAS, func() error, error) {
			return New(), nil, nil
		},
		OpenConfig: func(map[string]string) (storage.CAS, func() error, error) {
			return New(), nil, nil
		},
	})
}
