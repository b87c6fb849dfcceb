package analyzer_test

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/cottand/typeflow/frontend/analyzer"
	"github.com/cottand/typeflow/frontend/ast"
	"github.com/cottand/typeflow/frontend/codebase"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/signature"
	"github.com/goccy/go-yaml"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is one testdata case: a tree, the options to analyse it with and
// the issues expected, one "RANGE Kind: detail" line each. The tree is the
// last top-level key so that its text can be handed to the decoder untouched.
type fixture struct {
	Options struct {
		Memoize               bool `yaml:"memoize"`
		RequireVoidReturnType bool `yaml:"requireVoidReturnType"`
	} `yaml:"options"`
	Expect string `yaml:"expect"`
}

const treeKey = "tree:\n"

func loadFixture(t *testing.T, path string) (fixture, *ast.File) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var fx fixture
	require.NoError(t, yaml.Unmarshal(data, &fx))

	text := string(data)
	at := strings.Index(text, "\n"+treeKey)
	require.GreaterOrEqual(t, at, 0, "%s has no top-level tree", path)
	f, err := decodeTree(text[at+1+len(treeKey):])
	require.NoError(t, err)
	return fx, f
}

// decodeTree decodes a tree nested one level under its key. Re-encoding a
// decoded tree would lose the quoting of kinds such as "null", so the text
// is only dedented.
func decodeTree(nested string) (*ast.File, error) {
	lines := strings.Split(nested, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, "  ")
	}
	return ast.DecodeFile("x.php", []byte(strings.Join(lines, "\n")))
}

func analyse(t *testing.T, f *ast.File, opts analyzer.Options) (analyzer.Result, *codebase.Index) {
	t.Helper()
	registry, err := signature.Builtin()
	require.NoError(t, err)
	snap, err := registry.At("8.3")
	require.NoError(t, err)
	ix := codebase.NewIndex()
	scanned := ix.Scan(f)
	require.Equal(t, 0, scanned.Len(), "%v", scanned.List())
	return analyzer.New(ix, snap, opts).AnalyzeFile(f), ix
}

func render(issues []issue.Issue) string {
	lines := make([]string, 0, len(issues))
	for _, i := range issues {
		lines = append(lines, fmt.Sprintf("%v %s: %s", i.Range, i.Kind, i.Detail))
	}
	slices.Sort(lines)
	return strings.Join(lines, "\n")
}

func TestFixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".yaml"), func(t *testing.T) {
			fx, f := loadFixture(t, path)
			res, _ := analyse(t, f, analyzer.Options{
				Memoize:               fx.Options.Memoize,
				RequireVoidReturnType: fx.Options.RequireVoidReturnType,
			})

			expected := strings.Split(strings.TrimSpace(fx.Expect), "\n")
			slices.Sort(expected)
			want := strings.Join(expected, "\n")
			got := render(res.Issues)
			if want != got {
				diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
					A:        difflib.SplitLines(want + "\n"),
					B:        difflib.SplitLines(got + "\n"),
					FromFile: "expected",
					ToFile:   "actual",
					Context:  2,
				})
				t.Errorf("issues of %s differ:\n%s", path, diff)
			}
		})
	}
}

func TestInferredSignatures(t *testing.T) {
	_, f := loadFixture(t, "testdata/statements.yaml")
	res, ix := analyse(t, f, analyzer.Options{})

	shape, ok := res.Signatures["notype"]
	require.True(t, ok, "signatures: %v", res.Signatures)
	assert.Equal(t, "int", shape.Return.String())

	exported, ok := ix.Inferred("noType")
	require.True(t, ok)
	assert.True(t, shape.Equal(exported))
}

type onlyErrors struct{}

func (onlyErrors) Resolve(k issue.Kind, _ string, _ issue.Symbol) issue.Severity {
	if k == issue.Trace {
		return issue.Suppress
	}
	return issue.Info
}

func TestSeverityResolver(t *testing.T) {
	_, f := loadFixture(t, "testdata/loop.yaml")
	res, _ := analyse(t, f, analyzer.Options{Severity: onlyErrors{}})

	require.NotEmpty(t, res.Issues)
	for _, i := range res.Issues {
		assert.NotEqual(t, issue.Trace, i.Kind)
		assert.Equal(t, issue.Info, i.Severity)
		assert.Equal(t, "x.php", i.File)
	}
}

func TestMemoStats(t *testing.T) {
	_, f := loadFixture(t, "testdata/memo_on.yaml")
	res, _ := analyse(t, f, analyzer.Options{Memoize: true})
	assert.Positive(t, res.Memo.Stores)
	assert.Positive(t, res.Memo.Hits, "the narrowed call is answered by the cache: %+v", res.Memo)

	res, _ = analyse(t, f, analyzer.Options{})
	assert.Zero(t, res.Memo.Stores)
	assert.Zero(t, res.Memo.Hits)
}

const reassigned = `
stmts:
  - kind: class
    name: A
    methods:
      - {name: get, returnType: int, body: [{kind: return, value: {kind: int, value: 1}}]}
  - kind: class
    name: B
    methods:
      - {name: get, returnType: string, body: [{kind: return, value: {kind: string, value: b}}]}
  - kind: function
    at: [0, 100]
    name: f
    params: [{name: $a, type: A}, {name: $b, type: B}]
    returnType: void
    body:
      - kind: expr
        expr: {kind: assign, target: {kind: var, name: $x}, value: {kind: methodCall, receiver: {kind: var, name: $a}, method: get}}
      - kind: expr
        expr: {kind: assign, target: {kind: var, name: $y}, value: {kind: methodCall, receiver: {kind: var, name: $a}, method: get}}
      - kind: expr
        expr: {kind: assign, target: {kind: var, name: $a}, value: {kind: var, name: $b}}
      - kind: expr
        expr: {kind: assign, target: {kind: var, name: $z}, value: {kind: methodCall, receiver: {kind: var, name: $a}, method: get}}
      - {kind: trace, var: $y, at: [10, 11]}
      - {kind: trace, var: $z, at: [20, 21]}
`

func TestMemoDivergesAfterReassignment(t *testing.T) {
	f, err := ast.DecodeFile("x.php", []byte(reassigned))
	require.NoError(t, err)
	res, _ := analyse(t, f, analyzer.Options{Memoize: true})

	assert.Equal(t, "10-11 Trace: $y: int\n20-21 Trace: $z: string", render(res.Issues))
	assert.Equal(t, 1, res.Memo.Hits, "%+v", res.Memo)
	assert.Equal(t, 2, res.Memo.Stores, "%+v", res.Memo)
}

func TestInternalErrorKeepsEarlierIssues(t *testing.T) {
	_, f := loadFixture(t, "testdata/internal.yaml")
	res, _ := analyse(t, f, analyzer.Options{})

	kinds := make([]issue.Kind, 0, len(res.Issues))
	for _, i := range res.Issues {
		kinds = append(kinds, i.Kind)
	}
	assert.Equal(t, []issue.Kind{issue.UndefinedVariable, issue.InternalError}, kinds)
}

func TestConcurrentFiles(t *testing.T) {
	_, f := loadFixture(t, "testdata/narrowing.yaml")
	registry, err := signature.Builtin()
	require.NoError(t, err)
	snap, err := registry.At("8.3")
	require.NoError(t, err)
	ix := codebase.NewIndex()
	ix.Scan(f)
	a := analyzer.New(ix, snap, analyzer.Options{Memoize: true})

	results := make(chan string, 8)
	for range 8 {
		go func() { results <- render(a.AnalyzeFile(f).Issues) }()
	}
	first := <-results
	for range 7 {
		assert.Equal(t, first, <-results)
	}
}
