package config_test

import (
	"path/filepath"
	"testing"

	"github.com/cottand/typeflow/config"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loaded(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Load("testdata/typeflow.yaml")
	require.NoError(t, err)
	return c
}

func TestLoad(t *testing.T) {
	c := loaded(t)
	assert.Equal(t, "v8.2.0", c.Version)
	assert.True(t, c.Memoize)
	assert.True(t, c.RequireVoidReturnType)
	assert.Equal(t, 3, c.Workers)
	assert.Empty(t, c.SignatureBase)
	assert.Equal(t, []string{filepath.Join("testdata", "deltas", "9.0.yaml")}, c.SignatureDeltas)
	assert.ElementsMatch(t, []issue.Kind{issue.UndefinedClass, issue.UndefinedMethod, issue.UndefinedPropertyFetch, issue.MissingReturnType, issue.Trace}, c.Kinds())
}

func TestProjectFiles(t *testing.T) {
	c := loaded(t)
	tests := []struct {
		file string
		in   bool
	}{
		{"src/Psalm/Type.yaml", true},
		{"tests/TypeTest.yaml", true},
		{"src/Psalm/Checker/FileChecker.yaml", false},
		{"src/Psalm/Checker/Statements/ReturnChecker.yaml", false},
		{"src/Legacy/Old.yaml", false},
		{"src/Legacy/Nested/Old.yaml", true},
		{"examples/StringChecker.yaml", false},
		{filepath.Join("testdata", "src", "Psalm", "Type.yaml"), false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.in, c.IsProjectFile(tt.file))
		})
	}

	abs, err := filepath.Abs("testdata")
	require.NoError(t, err)
	c.Root = abs
	assert.True(t, c.IsProjectFile(filepath.Join(abs, "src", "Psalm", "Type.yaml")))
}

func TestResolve(t *testing.T) {
	c := loaded(t)
	tests := []struct {
		name string
		kind issue.Kind
		file string
		sym  issue.Symbol
		want issue.Severity
	}{
		{"handler level", issue.MissingReturnType, "src/Psalm/Type.yaml", issue.Symbol{}, issue.Info},
		{"directory override", issue.MissingReturnType, "src/Psalm/Checker/FileChecker.yaml", issue.Symbol{}, issue.Error},
		{"first override wins", issue.MissingReturnType, "tests/Psalm/Checker/X.yaml", issue.Symbol{}, issue.Suppress},
		{"class override", issue.UndefinedClass, "src/a.yaml", issue.Symbol{Kind: issue.Class, Name: `\Psalm\Badger`}, issue.Suppress},
		{"other class", issue.UndefinedClass, "src/a.yaml", issue.Symbol{Kind: issue.Class, Name: `Psalm\Bodger`}, issue.Error},
		{"method override", issue.UndefinedMethod, "src/a.yaml", issue.Symbol{Kind: issue.Method, Name: `psalm\bodger::FIND1`}, issue.Suppress},
		{"property override", issue.UndefinedPropertyFetch, "src/a.yaml", issue.Symbol{Kind: issue.Property, Name: `Psalm\Bodger::find3`}, issue.Suppress},
		{"property of another kind", issue.UndefinedMethod, "src/a.yaml", issue.Symbol{Kind: issue.Property, Name: `Psalm\Bodger::find3`}, issue.Error},
		{"other property", issue.UndefinedPropertyFetch, "src/a.yaml", issue.Symbol{Kind: issue.Property, Name: `Psalm\Bodger::find4`}, issue.Error},
		{"suppressed kind", issue.Trace, "src/a.yaml", issue.Symbol{}, issue.Suppress},
		{"no handler", issue.InvalidArgument, "src/a.yaml", issue.Symbol{}, issue.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Resolve(tt.kind, tt.file, tt.sym))
		})
	}
}

func TestDefault(t *testing.T) {
	c := config.Default("")
	assert.True(t, c.IsProjectFile("a/b/c.yaml"))
	assert.False(t, c.IsProjectFile("../outside.yaml"))
	assert.Equal(t, issue.Error, c.Resolve(issue.Trace, "a.yaml", issue.Symbol{}))
	assert.Positive(t, c.Workers)
	assert.Empty(t, c.Version)
}

func TestDiscover(t *testing.T) {
	c, err := config.Discover("testdata")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", config.FileName), c.Source)

	c, err = config.Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, c.Source)
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"unknown field", "memoize: true", "malformed configuration"},
		{"unknown issue", "issueHandlers: {ImpossibleIssue: {errorLevel: suppress}}", "unknown issue ImpossibleIssue"},
		{"bad level", "issueHandlers: {Trace: {errorLevel: loud}}", `unknown error level "loud"`},
		{"bad override level", "issueHandlers: {Trace: {overrides: [{directories: [a]}]}}", "unknown error level"},
		{"empty override", "issueHandlers: {Trace: {overrides: [{errorLevel: info}]}}", "override matches nothing"},
		{"bad version", "phpVersion: eight", `invalid version "eight"`},
		{"bad glob", "projectFiles: {directories: ['src/[']}", "invalid directory pattern"},
		{"negative workers", "workers: -1", "workers must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse("bad.yaml", "", []byte(tt.doc))
			require.Error(t, err)
			var cfgErr *issue.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "bad.yaml", cfgErr.Source)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
