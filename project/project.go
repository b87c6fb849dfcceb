// Package project drives the analysis of a whole source tree: it discovers
// the tree documents that belong to the project, fills the declaration
// index from all of them, and analyses the files in parallel.
package project

import (
	"cmp"
	"context"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cottand/typeflow/config"
	"github.com/cottand/typeflow/frontend/analyzer"
	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/codebase"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/signature"
	"github.com/cottand/typeflow/internal/log"
	"golang.org/x/sync/errgroup"
)

var logger = log.DefaultLogger.With("section", "project")

// Pattern selects the tree documents of a source directory.
const Pattern = "**/*.{yaml,yml,json}"

// Project is a set of parsed files sharing one declaration index and one
// signature snapshot.
type Project struct {
	Config    *config.Config
	Functions *signature.Snapshot
	Index     *codebase.Index

	files []*ast.File
	// early holds the issues found before analysis, per file: parse errors
	// and declaration problems
	early map[string]*issue.Issues
}

// Report is the outcome of analysing a project.
type Report struct {
	// Files are ordered by path.
	Files []analyzer.Result
	// Signatures holds every signature inferred across the project.
	Signatures map[string]signature.Shape
}

// Load discovers the project files of fsys, parses them and indexes their
// declarations. Files that fail to parse are kept out of the index and
// reported as ParseError when the project is analysed. Load fails only on
// configuration errors and when fsys cannot be read.
func Load(ctx context.Context, fsys fs.FS, cfg *config.Config) (*Project, error) {
	registry, err := signature.Load(cfg.SignatureBase, cfg.SignatureDeltas)
	if err != nil {
		return nil, err
	}
	version := cfg.Version
	if version == "" {
		version = latest(registry)
	}
	functions, err := registry.At(version)
	if err != nil {
		return nil, issue.WrapConfig(err, cfg.Source, "phpVersion")
	}
	logger.Info("signatures loaded", "version", version, "functions", functions)

	paths, err := discover(fsys, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("files discovered", "count", len(paths))

	p := &Project{
		Config:    cfg,
		Functions: functions,
		Index:     codebase.NewIndex(),
		early:     make(map[string]*issue.Issues, len(paths)),
	}
	parsed := make([]*ast.File, len(paths))
	failures := make([]*issue.Issues, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i, name := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := fs.ReadFile(fsys, name)
			if err != nil {
				return err
			}
			f, err := ast.DecodeFile(name, data)
			if err != nil {
				logger.Warn("could not parse file", "file", name, "error", err)
				parseErr := issue.New(issue.ParseError, ast.Range{}, err.Error(), issue.Symbol{})
				parseErr.File = name
				failures[i] = failures[i].With(parseErr)
				return nil
			}
			parsed[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// declarations are indexed in path order so that duplicates are
	// reported against the same file on every run
	for i, name := range paths {
		if failures[i] != nil {
			p.early[name] = failures[i]
			continue
		}
		p.files = append(p.files, parsed[i])
		p.early[parsed[i].Path] = p.Index.Scan(parsed[i])
	}
	return p, nil
}

func latest(r *signature.Registry) string {
	versions := r.Versions()
	if len(versions) == 0 {
		return "0.0"
	}
	return versions[len(versions)-1]
}

// discover lists the project's tree documents in path order.
func discover(fsys fs.FS, cfg *config.Config) ([]string, error) {
	matches, err := doublestar.Glob(fsys, Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, m := range matches {
		if path.Base(m) == config.FileName || !cfg.IsProjectFile(m) {
			continue
		}
		paths = append(paths, m)
	}
	slices.Sort(paths)
	return paths, nil
}

// Files returns the successfully parsed files of the project.
func (p *Project) Files() []*ast.File {
	return p.files
}

// Options are the analyzer options the project's configuration asks for.
func (p *Project) Options() analyzer.Options {
	return analyzer.Options{
		Memoize:               p.Config.Memoize,
		RequireVoidReturnType: p.Config.RequireVoidReturnType,
		Severity:              p.Config,
		MemoSize:              p.Config.MemoSize,
	}
}

// MaxInferenceRounds bounds the rounds Analyze runs before settling on the
// signatures inferred so far.
const MaxInferenceRounds = 4

// Analyze analyses every file of the project, at most Config.Workers at a
// time. Cancelling ctx stops files that have not started yet; Analyze then
// returns the context's error.
//
// Files are analysed in rounds. During a round, calls to functions of other
// files declared without a return type see the signatures inferred by the
// previous round, and the round's own signatures are published once it ends.
// Rounds repeat until no signature changes, so the outcome does not depend
// on the order workers pick files in; the results of the last round are
// reported.
func (p *Project) Analyze(ctx context.Context) (Report, error) {
	a := analyzer.New(p.Index, p.Functions, p.Options())
	var results []analyzer.Result
	for round := 1; ; round++ {
		p.Index.BeginRound()
		var err error
		results, err = p.analyzeFiles(ctx, a)
		changed := p.Index.EndRound()
		if err != nil {
			return Report{}, err
		}
		logger.Debug("inference round done", "round", round, "changed", changed)
		if !changed {
			break
		}
		if round == MaxInferenceRounds {
			logger.Warn("inferred signatures did not settle", "rounds", round)
			break
		}
	}

	byPath := make(map[string]analyzer.Result, len(results))
	for _, res := range results {
		byPath[res.File] = res
	}
	for name, early := range p.early {
		res, ok := byPath[name]
		if !ok {
			res = analyzer.Result{File: name}
		}
		res.Issues = append(res.Issues, p.resolve(early)...)
		slices.SortStableFunc(res.Issues, issue.Compare)
		byPath[name] = res
	}

	report := Report{Signatures: p.Index.InferredSignatures()}
	for _, res := range byPath {
		report.Files = append(report.Files, res)
	}
	slices.SortFunc(report.Files, func(a, b analyzer.Result) int { return cmp.Compare(a.File, b.File) })
	logger.Info("project analysed", "files", len(report.Files), "issues", len(report.Issues()))
	return report, nil
}

// analyzeFiles runs one analysis of every file and returns the results in
// file order.
func (p *Project) analyzeFiles(ctx context.Context, a *analyzer.Analyzer) ([]analyzer.Result, error) {
	results := make([]analyzer.Result, len(p.files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Config.Workers, 1))
	for i, f := range p.files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = a.AnalyzeFile(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// resolve applies the severity policy to issues found outside the analyzer.
func (p *Project) resolve(issues *issue.Issues) []issue.Issue {
	var out []issue.Issue
	for _, i := range issues.List() {
		i.Severity = p.Config.Resolve(i.Kind, i.File, i.Symbol)
		if i.Severity == issue.Suppress {
			continue
		}
		out = append(out, i)
	}
	return out
}

// Issues returns the issues of every file, in file and position order.
func (r Report) Issues() []issue.Issue {
	var out []issue.Issue
	for _, f := range r.Files {
		out = append(out, f.Issues...)
	}
	return out
}

// Count returns how many issues have severity s.
func (r Report) Count(s issue.Severity) int {
	n := 0
	for _, i := range r.Issues() {
		if i.Severity == s {
			n++
		}
	}
	return n
}

// HasErrors reports whether any issue has Error severity.
func (r Report) HasErrors() bool {
	return r.Count(issue.Error) > 0
}

// Result returns the result for the file at name.
func (r Report) Result(name string) (analyzer.Result, bool) {
	i, ok := slices.BinarySearchFunc(r.Files, name, func(res analyzer.Result, name string) int {
		return strings.Compare(res.File, name)
	})
	if !ok {
		return analyzer.Result{}, false
	}
	return r.Files[i], true
}
