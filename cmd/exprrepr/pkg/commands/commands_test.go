package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func dumpTo(t *testing.T, dir, example, format string) string {
	t.Helper()
	out, errOut, code := run(t, "dump", example, "-o", format)
	require.Equal(t, 0, code, errOut)
	path := filepath.Join(dir, example+"."+format)
	require.NoError(t, os.WriteFile(path, []byte(out), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(&App{})
	assert.Equal(t, "exprrepr", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)

	flag := cmd.PersistentFlags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "json", flag.DefValue)
	assert.Equal(t, flag, cmd.PersistentFlags().ShorthandLookup("o"))

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"version", "demo", "dump", "check", "eval", "serve", "watch"})
}

func TestVersion(t *testing.T) {
	out, _, code := run(t, "version", "--json")
	require.Equal(t, 0, code)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "exprrepr", v["tool"])
}

func TestDemo(t *testing.T) {
	out, errOut, code := run(t, "demo")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "output")
	assert.Contains(t, out, "NewOutput")
	assert.NotContains(t, out, "failed")

	out, _, code = run(t, "demo", "join")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "join")
	assert.NotContains(t, out, "arithmetic")
}

func TestDump(t *testing.T) {
	out, _, code := run(t, "dump", "join")
	require.Equal(t, 0, code)
	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, "1.0.0", env["format"])

	out, _, code = run(t, "dump", "join", "-o", "yaml")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "format: 1.0.0")

	_, errOut, code := run(t, "dump", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "nope")

	_, errOut, code = run(t, "--max-depth", "2", "dump", "arithmetic")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "RECURSION_LIMIT")
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := dumpTo(t, dir, "output", "json")
	goodYAML := dumpTo(t, dir, "tags", "yaml")

	out, errOut, code := run(t, "check", good, goodYAML)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, 2, strings.Count(out, "ok "))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"format": "9.0.0", "root": {}}`), 0o644))
	out, errOut, code = run(t, "check", good, bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "failed "+bad)
	assert.Contains(t, errOut, "1 of 2 file(s) failed")
}

func TestEvalLocal(t *testing.T) {
	dir := t.TempDir()
	path := dumpTo(t, dir, "output", "json")

	out, errOut, code := run(t, "eval", path, `"hello"`)
	require.Equal(t, 0, code, errOut)
	assert.JSONEq(t, `{"Input": "hello", "Extra": "open"}`, out)

	_, errOut, code = run(t, "eval", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "ARITY_MISMATCH")

	_, errOut, code = run(t, "eval", path, `{not json`)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not valid JSON")
}

func TestConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("limits:\n  max_depth: 2\n"), 0o644))
	_, errOut, code := run(t, "--config", cfg, "dump", "arithmetic")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "RECURSION_LIMIT")

	require.NoError(t, os.WriteFile(cfg, []byte("limits:\n  max_depth: -1\n"), 0o644))
	_, errOut, code = run(t, "--config", cfg, "demo")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "max_depth")
}
