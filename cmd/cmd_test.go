package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	root := map[string]*cobra.Command{
		"signature": SignatureCmd,
		"analyze":   AnalyzeCmd,
		"config":    ConfigCmd,
	}[args[0]]
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args[1:])
	err := root.Execute()
	return out.String(), err
}

func TestSignature(t *testing.T) {
	out, err := execute(t, "signature", "strlen")
	require.NoError(t, err)
	assert.Contains(t, out, "strlen(string $string): int")

	out, err = execute(t, "signature", "strln")
	assert.Error(t, err)
	assert.Contains(t, out, "did you mean strlen?")
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(`
stmts:
  - kind: echo
    at: [0, 10]
    exprs: [{kind: var, name: $nope, at: [5, 10]}]
`), 0o644))

	out, err := execute(t, "analyze", dir)
	assert.Error(t, err)
	assert.Contains(t, out, "UndefinedVariable")
	assert.Contains(t, out, "1 error(s)")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "typeflow.yaml"), []byte(`
issueHandlers:
  UndefinedVariable: {errorLevel: info}
`), 0o644))
	out, err = execute(t, "analyze", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0 error(s), 1 info")
}

func TestConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "typeflow.yaml"), []byte(`
phpVersion: 8.2
issueHandlers:
  Trace: {errorLevel: suppress}
`), 0o644))
	out, err := execute(t, "config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "8.2")
	assert.Contains(t, out, "Trace: suppress")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "typeflow.yaml"), []byte("bogus: 1\n"), 0o644))
	_, err = execute(t, "config", dir)
	assert.Error(t, err)
}
