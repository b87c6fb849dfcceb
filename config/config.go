// Package config reads the project configuration: the target runtime
// version, analysis switches, where the project's files are, and the
// severity policy applied to every issue.
package config

import (
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/signature"
	"github.com/cottand/typeflow/internal/log"
	"github.com/goccy/go-yaml"
)

var logger = log.DefaultLogger.With("section", "config")

// FileName is the configuration file looked for in a project root.
const FileName = "typeflow.yaml"

var _ issue.SeverityResolver = (*Config)(nil)

// Config is a loaded and validated configuration. It implements
// issue.SeverityResolver.
type Config struct {
	// Source is the file the configuration was read from, if any.
	Source string
	// Root is the directory project paths are relative to.
	Root string

	// Version is the canonical target runtime version, empty for the latest
	// version the signature registry knows.
	Version               string
	Memoize               bool
	RequireVoidReturnType bool
	Workers               int
	MemoSize              int

	// SignatureBase and SignatureDeltas are paths to signature tables
	// replacing or extending the bundled ones.
	SignatureBase   string
	SignatureDeltas []string

	project  fileSet
	ignore   fileSet
	handlers map[issue.Kind]handler
}

type doc struct {
	PHPVersion               any                    `yaml:"phpVersion"`
	MemoizeMethodCallResults bool                   `yaml:"memoizeMethodCallResults"`
	RequireVoidReturnType    bool                   `yaml:"requireVoidReturnType"`
	Workers                  int                    `yaml:"workers"`
	MemoSize                 int                    `yaml:"memoSize"`
	Signatures               signaturesDoc          `yaml:"signatures"`
	ProjectFiles             projectFilesDoc        `yaml:"projectFiles"`
	IssueHandlers            map[string]*handlerDoc `yaml:"issueHandlers"`
}

type signaturesDoc struct {
	Base   string   `yaml:"base"`
	Deltas []string `yaml:"deltas"`
}

type projectFilesDoc struct {
	Directories []string `yaml:"directories"`
	Files       []string `yaml:"files"`
	Ignore      struct {
		Directories []string `yaml:"directories"`
		Files       []string `yaml:"files"`
	} `yaml:"ignore"`
}

type handlerDoc struct {
	ErrorLevel string         `yaml:"errorLevel"`
	Overrides  []*overrideDoc `yaml:"overrides"`
}

type overrideDoc struct {
	ErrorLevel           string   `yaml:"errorLevel"`
	Directories          []string `yaml:"directories"`
	Files                []string `yaml:"files"`
	ReferencedClasses    []string `yaml:"referencedClasses"`
	ReferencedMethods    []string `yaml:"referencedMethods"`
	ReferencedProperties []string `yaml:"referencedProperties"`
	ReferencedFunctions  []string `yaml:"referencedFunctions"`
	ReferencedVariables  []string `yaml:"referencedVariables"`
}

// Default is the configuration used without a configuration file: every
// file under root is part of the project and every issue is an error.
func Default(root string) *Config {
	return &Config{
		Root:     root,
		Workers:  runtime.GOMAXPROCS(0),
		project:  fileSet{dirs: []string{"."}},
		handlers: map[issue.Kind]handler{},
	}
}

// Load reads the configuration file at p. Project paths are relative to
// the directory holding it.
func Load(p string) (*Config, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, issue.WrapConfig(err, p, "reading configuration")
	}
	return Parse(p, filepath.Dir(p), data)
}

// Parse decodes and validates a configuration document. Unknown fields,
// unknown issue names, invalid error levels, versions and globs are all
// configuration errors.
func Parse(source, root string, data []byte) (*Config, error) {
	var d doc
	if err := yaml.UnmarshalWithOptions(data, &d, yaml.DisallowUnknownField()); err != nil {
		return nil, issue.WrapConfig(err, source, "malformed configuration")
	}
	c := Default(root)
	c.Source = source
	c.Memoize = d.MemoizeMethodCallResults
	c.RequireVoidReturnType = d.RequireVoidReturnType
	c.MemoSize = d.MemoSize

	if d.PHPVersion != nil {
		v, err := signature.CanonicalVersion(d.PHPVersion)
		if err != nil {
			return nil, issue.WrapConfig(err, source, "phpVersion")
		}
		c.Version = v
	}
	switch {
	case d.Workers < 0:
		return nil, issue.Configf(source, "workers must not be negative, got %d", d.Workers)
	case d.Workers > 0:
		c.Workers = d.Workers
	}
	if d.MemoSize < 0 {
		return nil, issue.Configf(source, "memoSize must not be negative, got %d", d.MemoSize)
	}

	if d.Signatures.Base != "" {
		c.SignatureBase = c.abs(d.Signatures.Base)
	}
	for _, delta := range d.Signatures.Deltas {
		c.SignatureDeltas = append(c.SignatureDeltas, c.abs(delta))
	}

	var err error
	if len(d.ProjectFiles.Directories) > 0 || len(d.ProjectFiles.Files) > 0 {
		if c.project, err = newFileSet(source, "projectFiles", d.ProjectFiles.Directories, d.ProjectFiles.Files); err != nil {
			return nil, err
		}
	}
	if c.ignore, err = newFileSet(source, "projectFiles.ignore", d.ProjectFiles.Ignore.Directories, d.ProjectFiles.Ignore.Files); err != nil {
		return nil, err
	}

	for name, hd := range d.IssueHandlers {
		kind, ok := issue.ParseKind(name)
		if !ok {
			return nil, issue.Configf(source, "issueHandlers: unknown issue %s", name)
		}
		h, err := newHandler(source, name, hd)
		if err != nil {
			return nil, err
		}
		c.handlers[kind] = h
	}
	logger.Debug("configuration loaded", "source", source, "root", root, "version", c.Version, "handlers", len(c.handlers))
	return c, nil
}

// Discover loads FileName from root when present, and falls back to Default.
func Discover(root string) (*Config, error) {
	p := filepath.Join(root, FileName)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			logger.Debug("no configuration file, using defaults", "root", root)
			return Default(root), nil
		}
		return nil, issue.WrapConfig(err, p, "reading configuration")
	}
	return Load(p)
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// rel turns a file path as reported by the analysis into the slash separated
// form, relative to Root, that project globs are written against.
func (c *Config) rel(file string) string {
	if filepath.IsAbs(file) && c.Root != "" {
		if r, err := filepath.Rel(c.Root, file); err == nil {
			file = r
		}
	}
	return path.Clean(filepath.ToSlash(file))
}

// IsProjectFile reports whether file belongs to the project: inside one of
// its directories or files and not ignored.
func (c *Config) IsProjectFile(file string) bool {
	rel := c.rel(file)
	return c.project.match(rel) && !c.ignore.match(rel)
}

// Resolve implements issue.SeverityResolver. The first override of the
// kind's handler matching the file or symbol decides; without one the
// handler's own level applies, and without a handler the issue is an error.
func (c *Config) Resolve(kind issue.Kind, file string, sym issue.Symbol) issue.Severity {
	h, ok := c.handlers[kind]
	if !ok {
		return issue.Error
	}
	rel := c.rel(file)
	for _, o := range h.overrides {
		if o.match(rel, sym) {
			return o.level
		}
	}
	return h.level
}

// Kinds lists the issue kinds with a configured handler.
func (c *Config) Kinds() []issue.Kind {
	kinds := make([]issue.Kind, 0, len(c.handlers))
	for k := range c.handlers {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// fileSet matches project relative paths against directory and file globs.
// A file is in a directory glob when any of its ancestors matches it.
type fileSet struct {
	dirs, files []string
}

func newFileSet(source, what string, dirs, files []string) (fileSet, error) {
	var fs fileSet
	for _, d := range dirs {
		d = path.Clean(filepath.ToSlash(d))
		if !doublestar.ValidatePattern(d) {
			return fileSet{}, issue.Configf(source, "%s: invalid directory pattern %q", what, d)
		}
		fs.dirs = append(fs.dirs, d)
	}
	for _, f := range files {
		f = path.Clean(filepath.ToSlash(f))
		if !doublestar.ValidatePattern(f) {
			return fileSet{}, issue.Configf(source, "%s: invalid file pattern %q", what, f)
		}
		fs.files = append(fs.files, f)
	}
	return fs, nil
}

func (fs fileSet) empty() bool {
	return len(fs.dirs) == 0 && len(fs.files) == 0
}

func (fs fileSet) match(rel string) bool {
	for _, pattern := range fs.files {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	for _, pattern := range fs.dirs {
		if pattern == "." {
			return !strings.HasPrefix(rel, "../")
		}
		for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if ok, _ := doublestar.Match(pattern, dir); ok {
				return true
			}
		}
	}
	return false
}

type handler struct {
	level     issue.Severity
	overrides []override
}

type override struct {
	level issue.Severity
	files fileSet
	// symbols by kind, lower-cased and without a leading namespace separator
	symbols map[issue.SymbolKind][]string
}

func newHandler(source, name string, hd *handlerDoc) (handler, error) {
	h := handler{level: issue.Error}
	if hd == nil {
		return h, nil
	}
	if hd.ErrorLevel != "" {
		level, err := issue.ParseSeverity(hd.ErrorLevel)
		if err != nil {
			return handler{}, issue.WrapConfig(err, source, "issueHandlers.%s", name)
		}
		h.level = level
	}
	for i, od := range hd.Overrides {
		if od == nil {
			return handler{}, issue.Configf(source, "issueHandlers.%s.overrides[%d]: empty override", name, i)
		}
		level, err := issue.ParseSeverity(od.ErrorLevel)
		if err != nil {
			return handler{}, issue.WrapConfig(err, source, "issueHandlers.%s.overrides[%d]", name, i)
		}
		files, err := newFileSet(source, "issueHandlers."+name, od.Directories, od.Files)
		if err != nil {
			return handler{}, err
		}
		o := override{level: level, files: files, symbols: map[issue.SymbolKind][]string{
			issue.Class:    normaliseSymbols(od.ReferencedClasses),
			issue.Method:   normaliseSymbols(od.ReferencedMethods),
			issue.Property: normaliseSymbols(od.ReferencedProperties),
			issue.Function: normaliseSymbols(od.ReferencedFunctions),
			issue.Variable: normaliseSymbols(od.ReferencedVariables),
		}}
		if o.files.empty() && o.noSymbols() {
			return handler{}, issue.Configf(source, "issueHandlers.%s.overrides[%d]: override matches nothing", name, i)
		}
		h.overrides = append(h.overrides, o)
	}
	return h, nil
}

func normaliseSymbols(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, normaliseSymbol(n))
	}
	return out
}

// normaliseSymbol brings "\Ns\Class::$prop" and "ns\class::prop" to the same
// form.
func normaliseSymbol(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, `\`))
	return strings.Replace(name, "::$", "::", 1)
}

func (o override) noSymbols() bool {
	for _, names := range o.symbols {
		if len(names) > 0 {
			return false
		}
	}
	return true
}

func (o override) match(rel string, sym issue.Symbol) bool {
	if rel != "" && rel != "." && o.files.match(rel) {
		return true
	}
	if sym.Kind == issue.NoSymbol {
		return false
	}
	return slices.Contains(o.symbols[sym.Kind], normaliseSymbol(sym.Name))
}
