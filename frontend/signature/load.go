package signature

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/types"
	"github.com/goccy/go-yaml"
	"golang.org/x/mod/semver"
)

// Base is the version-independent signature table the deltas apply to.
type Base struct {
	Source    string
	Functions map[string]Shape
	// Pure lists callables without side effects: calling them never
	// invalidates memoized call results.
	Pure []string
}

// Change is the `changed` record of a delta.
type Change struct {
	Old Shape
	New Shape
}

// Delta is the set of signature changes introduced at Version.
type Delta struct {
	Source  string
	Version string
	Added   map[string]Shape
	Removed []string
	Changed map[string]Change
}

type baseDoc struct {
	Functions map[string][]any `yaml:"functions"`
	Pure      []string         `yaml:"pure"`
}

type deltaDoc struct {
	Version any                   `yaml:"version"`
	Added   map[string][]any      `yaml:"added"`
	Removed []string              `yaml:"removed"`
	Changed map[string]*changeDoc `yaml:"changed"`
}

type changeDoc struct {
	Old []any `yaml:"old"`
	New []any `yaml:"new"`
}

// CanonicalVersion turns a version such as "8.3", "v8.3.1" or the YAML
// number 8.3 into the canonical semver form used for ordering ("v8.3.0").
func CanonicalVersion(v any) (string, error) {
	var s string
	switch v := v.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case uint64:
		s = strconv.FormatUint(v, 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case int:
		s = strconv.Itoa(v)
	case nil:
		return "", fmt.Errorf("missing version")
	default:
		return "", fmt.Errorf("version must be a string, got %T", v)
	}
	s = "v" + strings.TrimPrefix(strings.TrimSpace(s), "v")
	if !semver.IsValid(s) {
		return "", fmt.Errorf("invalid version %q", strings.TrimPrefix(s, "v"))
	}
	return semver.Canonical(s), nil
}

// DisplayVersion renders a canonical version the way users write it ("8.3").
func DisplayVersion(canonical string) string {
	return strings.TrimSuffix(strings.TrimPrefix(canonical, "v"), ".0")
}

// ParseBase decodes a base signature table.
func ParseBase(source string, data []byte) (Base, error) {
	var doc baseDoc
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.DisallowUnknownField()); err != nil {
		return Base{}, issue.WrapConfig(err, source, "malformed signature table")
	}
	base := Base{Source: source, Functions: make(map[string]Shape, len(doc.Functions)), Pure: doc.Pure}
	for name, raw := range doc.Functions {
		shape, err := parseShape(raw)
		if err != nil {
			return Base{}, issue.WrapConfig(err, source, "function %s", name)
		}
		base.Functions[name] = shape
	}
	return base, nil
}

// ParseDelta decodes one version delta. Structural problems, such as a
// `changed` entry without `old` or `new`, are configuration errors.
func ParseDelta(source string, data []byte) (Delta, error) {
	var doc deltaDoc
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.DisallowUnknownField()); err != nil {
		return Delta{}, issue.WrapConfig(err, source, "malformed signature delta")
	}
	version, err := CanonicalVersion(doc.Version)
	if err != nil {
		return Delta{}, issue.WrapConfig(err, source, "malformed signature delta")
	}
	d := Delta{
		Source:  source,
		Version: version,
		Added:   make(map[string]Shape, len(doc.Added)),
		Removed: doc.Removed,
		Changed: make(map[string]Change, len(doc.Changed)),
	}
	for name, raw := range doc.Added {
		shape, err := parseShape(raw)
		if err != nil {
			return Delta{}, issue.WrapConfig(err, source, "added %s", name)
		}
		d.Added[name] = shape
	}
	for name, change := range doc.Changed {
		if change == nil || change.Old == nil {
			return Delta{}, issue.Configf(source, "changed %s: missing old signature", name)
		}
		if change.New == nil {
			return Delta{}, issue.Configf(source, "changed %s: missing new signature", name)
		}
		oldShape, err := parseShape(change.Old)
		if err != nil {
			return Delta{}, issue.WrapConfig(err, source, "changed %s (old)", name)
		}
		newShape, err := parseShape(change.New)
		if err != nil {
			return Delta{}, issue.WrapConfig(err, source, "changed %s (new)", name)
		}
		d.Changed[name] = Change{Old: oldShape, New: newShape}
	}
	return d, nil
}

// parseShape reads `[returnType, {param: type}, ...]`. A parameter name may
// be prefixed by `&` (by reference) and `...` (variadic), and suffixed by `=`
// (optional).
func parseShape(raw []any) (Shape, error) {
	if len(raw) == 0 {
		return Shape{}, fmt.Errorf("empty signature, expected [returnType, {param: type}...]")
	}
	ret, ok := raw[0].(string)
	if !ok {
		return Shape{}, fmt.Errorf("return type must be a string, got %T", raw[0])
	}
	var s Shape
	var err error
	if s.Return, err = types.Parse(ret); err != nil {
		return Shape{}, err
	}
	for i, p := range raw[1:] {
		m, ok := p.(map[string]any)
		if !ok || len(m) != 1 {
			return Shape{}, fmt.Errorf("parameter %d must be a single {name: type} mapping", i+1)
		}
		for name, t := range m {
			ts, ok := t.(string)
			if !ok {
				return Shape{}, fmt.Errorf("parameter %s: type must be a string, got %T", name, t)
			}
			param := Param{}
			name, param.ByRef = strings.CutPrefix(name, "&")
			name, param.Variadic = strings.CutPrefix(name, "...")
			name, param.Optional = strings.CutSuffix(name, "=")
			param.Name = name
			if param.Type, err = types.Parse(ts); err != nil {
				return Shape{}, fmt.Errorf("parameter %s: %w", name, err)
			}
			s.Params = append(s.Params, param)
		}
	}
	for i, p := range s.Params {
		if p.Variadic && i != len(s.Params)-1 {
			return Shape{}, fmt.Errorf("variadic parameter %s must be last", p.Name)
		}
	}
	return s, nil
}

// LoadFiles reads a base table and deltas from disk and builds a Registry.
func LoadFiles(basePath string, deltaPaths []string) (*Registry, error) {
	data, err := os.ReadFile(basePath)
	if err != nil {
		return nil, issue.WrapConfig(err, basePath, "reading signature table")
	}
	base, err := ParseBase(basePath, data)
	if err != nil {
		return nil, err
	}
	deltas, err := loadDeltas(deltaPaths)
	if err != nil {
		return nil, err
	}
	return New(base, deltas...)
}

func loadDeltas(paths []string) ([]Delta, error) {
	deltas := make([]Delta, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, issue.WrapConfig(err, path, "reading signature delta")
		}
		d, err := ParseDelta(path, data)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}
