package issue

import (
	"testing"

	"github.com/cottand/typeflow/frontend/ast"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		t.Run(k.String(), func(t *testing.T) {
			parsed, ok := ParseKind(k.String())
			require.True(t, ok)
			assert.Equal(t, k, parsed)
		})
	}
	k, ok := ParseKind("possiblynullreference")
	assert.True(t, ok)
	assert.Equal(t, PossiblyNullReference, k)

	_, ok = ParseKind("NotAnIssue")
	assert.False(t, ok)
	_, ok = ParseKind("None")
	assert.False(t, ok)
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("INFO")
	require.NoError(t, err)
	assert.Equal(t, Info, s)

	_, err = ParseSeverity("loud")
	assert.Error(t, err)
}

func TestIssuesOrdering(t *testing.T) {
	var issues *Issues
	assert.Equal(t, 0, issues.Len())
	assert.False(t, issues.HasError())

	late := New(UndefinedVariable, ast.Range{PosStart: 30, PosEnd: 32}, "$b is not defined", Symbol{Kind: Variable, Name: "$b"})
	early := New(TooFewArguments, ast.Range{PosStart: 4, PosEnd: 10}, "f expects 1 argument", Symbol{Kind: Function, Name: "f"})
	early.Severity = Info

	issues = issues.With(late)
	issues = issues.Merge((&Issues{}).With(early))
	list := issues.List()
	require.Len(t, list, 2)
	assert.Equal(t, early, list[0])
	assert.Equal(t, late, list[1])
	assert.True(t, issues.HasError())
}

func TestFormatWithCode(t *testing.T) {
	i := New(UndefinedFunction, ast.Range{PosStart: 1, PosEnd: 5}, "function foo does not exist", Symbol{Kind: Function, Name: "foo"})
	i.File = "src/a.yaml"
	assert.Equal(t, "src/a.yaml:1-5: (E003) UndefinedFunction - function foo does not exist", FormatWithCode(i))
}

func TestSymbolString(t *testing.T) {
	assert.Equal(t, "Foo::$bar", Symbol{Kind: Property, Name: "Foo::bar"}.String())
	assert.Equal(t, "Foo::bar", Symbol{Kind: Method, Name: "Foo::bar"}.String())
}

func TestConfigError(t *testing.T) {
	err := WrapConfig(errors.New("boom"), "typeflow.yaml", "reading %s", "issueHandlers")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "typeflow.yaml", cfgErr.Source)
	assert.Contains(t, err.Error(), "reading issueHandlers: boom")
	assert.NoError(t, WrapConfig(nil, "x", "y"))
}
