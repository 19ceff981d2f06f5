package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const cliRules = `
laptop =>
  SYNONYM: notebook
  @_id: "laptop-syn"
  @_log: laptop synonyms

cheap =>
  DELETE
  DOWN(2): price:high
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	require.NoError(t, rootCmd.Execute(), "quill %s", strings.Join(args, " "))
	return out.String()
}

func TestCLI_Workflow(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.txt")
	require.NoError(t, os.WriteFile(rulesPath, []byte(cliRules), 0o600))
	dbURL := "sqlite://" + filepath.Join(dir, "quill.db")

	out := run(t, "rules", "validate", rulesPath)
	require.Contains(t, out, "ok, 2 rules")

	out = run(t, "migrate", "--database", dbURL)
	require.Contains(t, out, "001_rule_sets.sql")

	out = run(t, "rules", "import", "--database", dbURL, "--name", "shop", rulesPath)
	require.Contains(t, out, "imported shop v1")

	out = run(t, "rules", "import", "--database", dbURL, "--name", "shop", rulesPath)
	require.Contains(t, out, "shop v1 unchanged")

	out = run(t, "rules", "list", "--database", dbURL)
	require.Contains(t, out, "shop")

	out = run(t, "rewrite", "--database", dbURL, "--rule-set", "shop", "cheap laptop")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, "(laptop | notebook) DOWN(price:high^2)", lines[0])
	require.Contains(t, out, "applied laptop-syn: laptop synonyms")

	out = run(t, "rewrite", "--rules", rulesPath, "--actions", "cheap laptop")
	require.Equal(t, 2, strings.Count(out, "\n"))
	require.Contains(t, out, "[1,2) laptop-syn")

	out = run(t, "rewrite", "--rules", rulesPath, "--actions", "* laptop")
	require.Empty(t, out)
}

func TestCLI_KeysIssue(t *testing.T) {
	t.Setenv("QUILL_HMAC_SECRET", "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
	out := strings.TrimSpace(run(t, "keys", "issue"))
	require.True(t, strings.HasPrefix(out, "qk-v1-0123456789abcdef0123456789abcdef-"), out)
}
