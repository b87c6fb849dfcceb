package project_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/cottand/typeflow/config"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/project"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helper = `
stmts:
  - kind: function
    at: [0, 10]
    name: helper
    body:
      - {kind: return, value: {kind: int, value: 1}}
`

var tree = fstest.MapFS{
	"typeflow.yaml": {Data: []byte("projectFiles: {directories: [src]}")},
	"src/a.yaml":    {Data: []byte(helper)},
	"src/b.yaml": {Data: []byte(`
stmts:
  - kind: expr
    expr: {kind: assign, target: {kind: var, name: $v}, value: {kind: call, name: helper}}
  - {kind: trace, var: $v, at: [5, 6]}
`)},
	"src/broken.yaml": {Data: []byte(`stmts: [{kind: bogus}]`)},
	"src/c.yaml":      {Data: []byte(helper)},
	"src/notes.txt":   {Data: []byte("not a tree")},
	"vendor/v.yaml": {Data: []byte(`
stmts:
  - kind: echo
    exprs: [{kind: var, name: $undefined}]
`)},
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse("typeflow.yaml", "", []byte(`
projectFiles: {directories: [src]}
workers: 1
issueHandlers:
  MissingReturnType: {errorLevel: info}
`))
	require.NoError(t, err)
	return cfg
}

type found struct {
	File     string
	Kind     issue.Kind
	Detail   string
	Severity issue.Severity
}

func TestAnalyze(t *testing.T) {
	p, err := project.Load(context.Background(), tree, testConfig(t))
	require.NoError(t, err)
	assert.Len(t, p.Files(), 3)

	report, err := p.Analyze(context.Background())
	require.NoError(t, err)

	var got []found
	for _, i := range report.Issues() {
		got = append(got, found{File: i.File, Kind: i.Kind, Detail: i.Detail, Severity: i.Severity})
	}
	want := []found{
		{"src/a.yaml", issue.MissingReturnType, "helper does not have a return type, expecting int", issue.Info},
		{"src/b.yaml", issue.Trace, "$v: int", issue.Error},
		{"src/broken.yaml", issue.ParseError, `src/broken.yaml: malformed tree: unknown statement kind "bogus"`, issue.Error},
		{"src/c.yaml", issue.DuplicateDeclaration, "function helper is already declared", issue.Error},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("issues differ (-want +got):\n%s", diff)
	}

	assert.True(t, report.HasErrors())
	assert.Equal(t, 1, report.Count(issue.Info))
	assert.Equal(t, "int", report.Signatures["helper"].Return.String())

	res, ok := report.Result("src/b.yaml")
	require.True(t, ok)
	assert.Len(t, res.Issues, 1)
	_, ok = report.Result("vendor/v.yaml")
	assert.False(t, ok)
}

func TestSuppressedEarlyIssues(t *testing.T) {
	cfg, err := config.Parse("typeflow.yaml", "", []byte(`
projectFiles: {directories: [src]}
issueHandlers:
  ParseError: {errorLevel: suppress}
  DuplicateDeclaration: {errorLevel: suppress}
`))
	require.NoError(t, err)
	p, err := project.Load(context.Background(), tree, cfg)
	require.NoError(t, err)
	report, err := p.Analyze(context.Background())
	require.NoError(t, err)

	for _, i := range report.Issues() {
		assert.NotContains(t, []issue.Kind{issue.ParseError, issue.DuplicateDeclaration}, i.Kind)
	}
}

func TestCancelled(t *testing.T) {
	p, err := project.Load(context.Background(), tree, testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Analyze(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = project.Load(ctx, tree, testConfig(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSignatureConfigError(t *testing.T) {
	cfg := testConfig(t)
	cfg.SignatureBase = "does/not/exist.yaml"
	_, err := project.Load(context.Background(), tree, cfg)
	var cfgErr *issue.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestVersionedSignatures(t *testing.T) {
	fsys := fstest.MapFS{"src/a.yaml": {Data: []byte(`
stmts:
  - kind: expr
    expr: {kind: call, at: [0, 5], name: json_validate, args: [{kind: string, value: "{}"}]}
`)}}
	cfg := testConfig(t)

	cfg.Version = "v8.2.0"
	p, err := project.Load(context.Background(), fsys, cfg)
	require.NoError(t, err)
	report, err := p.Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Issues(), 1)
	assert.Equal(t, issue.UndefinedFunction, report.Issues()[0].Kind)

	cfg.Version = ""
	p, err = project.Load(context.Background(), fsys, cfg)
	require.NoError(t, err)
	report, err = p.Analyze(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Issues())
}

// chain calls across files in the order opposite to the file order, so its
// signatures only settle in a later round
var chain = fstest.MapFS{
	"src/a.yaml": {Data: []byte(`
stmts:
  - kind: function
    at: [0, 10]
    name: first
    body:
      - {kind: return, value: {kind: call, name: second}}
  - kind: expr
    expr: {kind: assign, target: {kind: var, name: $v}, value: {kind: call, name: first}}
  - {kind: trace, var: $v, at: [20, 21]}
`)},
	"src/z.yaml": {Data: []byte(`
stmts:
  - kind: function
    at: [0, 10]
    name: second
    body:
      - {kind: return, value: {kind: int, value: 1}}
`)},
}

func TestInferenceIndependentOfOrder(t *testing.T) {
	want := []found{
		{"src/a.yaml", issue.MissingReturnType, "first does not have a return type, expecting int", issue.Info},
		{"src/a.yaml", issue.Trace, "$v: int", issue.Error},
		{"src/z.yaml", issue.MissingReturnType, "second does not have a return type, expecting int", issue.Info},
	}
	for _, workers := range []int{1, 2, 8} {
		for range 5 {
			cfg := testConfig(t)
			cfg.Workers = workers
			p, err := project.Load(context.Background(), chain, cfg)
			require.NoError(t, err)
			report, err := p.Analyze(context.Background())
			require.NoError(t, err)

			var got []found
			for _, i := range report.Issues() {
				got = append(got, found{File: i.File, Kind: i.Kind, Detail: i.Detail, Severity: i.Severity})
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("issues with %d workers differ (-want +got):\n%s", workers, diff)
			}
			assert.Equal(t, "int", report.Signatures["first"].Return.String())
		}
	}
}
