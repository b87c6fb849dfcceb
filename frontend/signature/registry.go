package signature

import (
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/benbjohnson/immutable"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/internal/log"
	"github.com/hashicorp/go-set/v3"
	"golang.org/x/mod/semver"
)

var logger = log.DefaultLogger.With("section", "signature")

// Registry resolves callable shapes for any target version. It is immutable
// once built and safe for concurrent use.
type Registry struct {
	// versions are the delta boundaries in ascending canonical order
	versions []string
	// snapshots[i] is the table for versions below versions[i];
	// the last snapshot applies from the last boundary upwards
	snapshots []*immutable.Map[string, Shape]
	pure      *set.Set[string]
}

// Snapshot is the signature table in effect for one version.
type Snapshot struct {
	Version   string
	functions *immutable.Map[string, Shape]
	pure      *set.Set[string]
}

func normaliseName(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "\\"))
}

// New folds deltas over base in ascending version order. Deltas may be given
// in any order; two deltas for the same version are a configuration error, as
// is any record inconsistent with the table it applies to.
func New(base Base, deltas ...Delta) (*Registry, error) {
	current := immutable.NewMap[string, Shape](nil)
	for _, name := range slices.Sorted(maps.Keys(base.Functions)) {
		key := normaliseName(name)
		if _, dup := current.Get(key); dup {
			return nil, issue.Configf(base.Source, "function %s declared twice", name)
		}
		current = current.Set(key, base.Functions[name])
	}

	sorted := slices.Clone(deltas)
	slices.SortStableFunc(sorted, func(a, b Delta) int { return semver.Compare(a.Version, b.Version) })

	r := &Registry{
		snapshots: []*immutable.Map[string, Shape]{current},
		pure:      set.New[string](len(base.Pure)),
	}
	for _, name := range base.Pure {
		r.pure.Insert(normaliseName(name))
	}
	for i, d := range sorted {
		if i > 0 && sorted[i-1].Version == d.Version {
			return nil, issue.Configf(d.Source, "duplicate delta for version %s (also in %s)", DisplayVersion(d.Version), sorted[i-1].Source)
		}
		next, err := apply(current, d)
		if err != nil {
			return nil, err
		}
		logger.Debug("built signature snapshot", "version", d.Version, "functions", next.Len())
		r.versions = append(r.versions, d.Version)
		r.snapshots = append(r.snapshots, next)
		current = next
	}
	return r, nil
}

func apply(table *immutable.Map[string, Shape], d Delta) (*immutable.Map[string, Shape], error) {
	seen := set.New[string](len(d.Added) + len(d.Removed) + len(d.Changed))
	mark := func(section, name string) error {
		if !seen.Insert(normaliseName(name)) {
			return issue.Configf(d.Source, "%s %s: name appears in more than one entry of version %s", section, name, DisplayVersion(d.Version))
		}
		return nil
	}

	for _, name := range slices.Sorted(maps.Keys(d.Added)) {
		if err := mark("added", name); err != nil {
			return nil, err
		}
		key := normaliseName(name)
		if _, exists := table.Get(key); exists {
			return nil, issue.Configf(d.Source, "added %s: already present before version %s", name, DisplayVersion(d.Version))
		}
		table = table.Set(key, d.Added[name])
	}
	for _, name := range d.Removed {
		if err := mark("removed", name); err != nil {
			return nil, err
		}
		key := normaliseName(name)
		if _, exists := table.Get(key); !exists {
			return nil, issue.Configf(d.Source, "removed %s: not present before version %s", name, DisplayVersion(d.Version))
		}
		table = table.Delete(key)
	}
	for _, name := range slices.Sorted(maps.Keys(d.Changed)) {
		if err := mark("changed", name); err != nil {
			return nil, err
		}
		key := normaliseName(name)
		change := d.Changed[name]
		current, exists := table.Get(key)
		if !exists {
			return nil, issue.Configf(d.Source, "changed %s: not present before version %s", name, DisplayVersion(d.Version))
		}
		if !current.Equal(change.Old) {
			return nil, issue.Configf(d.Source, "changed %s: old signature %s does not match %s in effect before version %s",
				name, change.Old, current, DisplayVersion(d.Version))
		}
		table = table.Set(key, change.New)
	}
	return table, nil
}

// Versions lists the delta boundaries, ascending, in display form.
func (r *Registry) Versions() []string {
	out := make([]string, len(r.versions))
	for i, v := range r.versions {
		out[i] = DisplayVersion(v)
	}
	return out
}

// At returns the snapshot in effect for version.
func (r *Registry) At(version string) (*Snapshot, error) {
	canonical, err := CanonicalVersion(version)
	if err != nil {
		return nil, err
	}
	// number of boundaries at or below the requested version
	i := sort.Search(len(r.versions), func(i int) bool { return semver.Compare(r.versions[i], canonical) > 0 })
	return &Snapshot{Version: canonical, functions: r.snapshots[i], pure: r.pure}, nil
}

// Resolve looks name up at version. It reports false for unknown names and
// for malformed versions.
func (r *Registry) Resolve(name, version string) (Shape, bool) {
	s, err := r.At(version)
	if err != nil {
		return Shape{}, false
	}
	return s.Resolve(name)
}

// Resolve looks a callable up by name, case-insensitively.
func (s *Snapshot) Resolve(name string) (Shape, bool) {
	return s.functions.Get(normaliseName(name))
}

// IsPure reports whether name is declared free of side effects.
func (s *Snapshot) IsPure(name string) bool {
	return s.pure.Contains(normaliseName(name))
}

// Len is the number of callables known at this version.
func (s *Snapshot) Len() int { return s.functions.Len() }

// Names lists the known callables in sorted order.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, s.functions.Len())
	itr := s.functions.Iterator()
	for !itr.Done() {
		name, _, _ := itr.Next()
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Suggest finds the known callable closest to a misspelt name.
func (s *Snapshot) Suggest(name string) (string, bool) {
	return Closest(normaliseName(name), s.Names())
}

// Closest returns the candidate within editing distance of name, preferring
// the nearest and then the lexicographically first. Candidates are compared
// as given; callers normalise case.
func Closest(name string, candidates []string) (string, bool) {
	best, bestDist := "", len(name)/3+2
	for _, candidate := range candidates {
		d := levenshtein.ComputeDistance(name, candidate)
		if d < bestDist || d == bestDist && best != "" && candidate < best {
			best, bestDist = candidate, d
		}
	}
	return best, best != ""
}

func (s *Snapshot) LogValue() slog.Value {
	return slog.GroupValue(slog.String("version", DisplayVersion(s.Version)), slog.Int("functions", s.Len()))
}
