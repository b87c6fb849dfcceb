package signature

import (
	"embed"
	"path"
	"sync"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

const builtinBase = "builtin/base.yaml"

// Builtin returns the registry for the bundled signature table and deltas.
var Builtin = sync.OnceValues(func() (*Registry, error) {
	base, deltas, err := builtinTables()
	if err != nil {
		return nil, err
	}
	return New(base, deltas...)
})

func builtinTables() (Base, []Delta, error) {
	data, err := builtinFS.ReadFile(builtinBase)
	if err != nil {
		return Base{}, nil, err
	}
	base, err := ParseBase(builtinBase, data)
	if err != nil {
		return Base{}, nil, err
	}
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return Base{}, nil, err
	}
	var deltas []Delta
	for _, e := range entries {
		p := path.Join("builtin", e.Name())
		if p == builtinBase {
			continue
		}
		data, err := builtinFS.ReadFile(p)
		if err != nil {
			return Base{}, nil, err
		}
		d, err := ParseDelta(p, data)
		if err != nil {
			return Base{}, nil, err
		}
		deltas = append(deltas, d)
	}
	return base, deltas, nil
}

// Load builds the registry a project runs with. An empty basePath selects the
// bundled table together with its bundled deltas; extra deltas are applied on
// top in either case.
func Load(basePath string, deltaPaths []string) (*Registry, error) {
	if basePath != "" {
		return LoadFiles(basePath, deltaPaths)
	}
	base, deltas, err := builtinTables()
	if err != nil {
		return nil, err
	}
	extra, err := loadDeltas(deltaPaths)
	if err != nil {
		return nil, err
	}
	return New(base, append(deltas, extra...)...)
}
