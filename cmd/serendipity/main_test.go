package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const merrillHoldings = `"COB Date","Symbol","Account Nickname","Account #","Quantity","Value ($)","Cost Basis ($)","Acquisition Date","Short/Long"
"11/20/2020","VZ","Roth-Edge","22A-11B11","120","7,215.60","7,317.24","01/10/2019","Long"
"11/20/2020","T","CMA-Edge","22A-11B11","300","8,496.00","8,435.97","03/16/2020","Short"
`

type testEnv struct {
	root   string
	config string
	source string
}

func newTestEnv(t *testing.T, withCatalog bool) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		root:   filepath.Join(dir, "documents"),
		config: filepath.Join(dir, "config.json"),
		source: filepath.Join(dir, "holdings.csv"),
	}

	finance := map[string]any{"document_path": env.root}
	if withCatalog {
		finance["catalog_path"] = filepath.Join(dir, "catalog.bleve")
	}
	data, err := json.Marshal(map[string]any{
		"finance": finance,
		"logging": map[string]any{"level": "error"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.config, data, 0o600))
	require.NoError(t, os.WriteFile(env.source, []byte(merrillHoldings), 0o600))
	return env
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestRun_Usage(t *testing.T) {
	_, err := execute(t)
	assert.ErrorIs(t, err, flag.ErrHelp)

	out, err := execute(t, "help")
	require.NoError(t, err)
	for _, c := range commands {
		assert.Contains(t, out, c.name)
	}

	_, err = execute(t, "bogus")
	assert.ErrorContains(t, err, "unknown command")
}

func TestImportCommand(t *testing.T) {
	env := newTestEnv(t, true)
	key := "finance/statements/2020/Merrill Edge_XXXXX1B11_20201120_20201120.csv"

	t.Run("validation", func(t *testing.T) {
		_, err := execute(t, "import", "--config", env.config)
		assert.ErrorContains(t, err, "--file is required")

		_, err = execute(t, "import", "--config", env.config, "--file", env.source, "--type", "medical")
		assert.ErrorContains(t, err, "unsupported document type")

		_, err = execute(t, "import", "--config", env.config, "--file", env.source, "--delimiter", ";;")
		assert.ErrorContains(t, err, "single character")
	})

	t.Run("dry run", func(t *testing.T) {
		out, err := execute(t, "import", "--config", env.config, "--file", env.source, "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "Merrill Edge: 1 statement(s)")
		assert.Contains(t, out, "(dry run)")

		_, err = os.Stat(filepath.Join(env.root, filepath.FromSlash(key)))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("archives and indexes", func(t *testing.T) {
		out, err := execute(t, "import", "--config", env.config, "--file", env.source)
		require.NoError(t, err)
		assert.Contains(t, out, filepath.FromSlash(key))

		data, err := os.ReadFile(filepath.Join(env.root, filepath.FromSlash(key)))
		require.NoError(t, err)
		assert.Equal(t, merrillHoldings, string(data))

		found, err := execute(t, "find", "--config", env.config, "merrill")
		require.NoError(t, err)
		assert.Contains(t, found, "Merrill Edge")
		assert.Contains(t, found, "XXXXX1B11")

		byYear, err := execute(t, "find", "--config", env.config, "--year", "2020")
		require.NoError(t, err)
		assert.Contains(t, byYear, "2020-11-20")
	})

	t.Run("forced institution", func(t *testing.T) {
		out, err := execute(t, "import", "--config", env.config, "--file", env.source, "--institution", "Merril Edge", "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "Merrill Edge: 1 statement(s)")

		other := filepath.Join(t.TempDir(), "other.csv")
		require.NoError(t, os.WriteFile(other, []byte("a,b\n1,2\n"), 0o600))
		_, err = execute(t, "import", "--config", env.config, "--file", other, "--institution", "Merril Edge", "--dry-run")
		assert.ErrorContains(t, err, `did you mean "Merrill Edge"`)
	})
}

func TestFindWithoutCatalog(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := execute(t, "find", "--config", env.config, "chase")
	assert.ErrorContains(t, err, "catalog_path")
}

func TestExtractionCommands(t *testing.T) {
	env := newTestEnv(t, false)

	t.Run("consolidate holdings to stdout", func(t *testing.T) {
		out, err := execute(t, "consolidate-holdings", "--config", env.config, env.source)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "Symbol,"))
		assert.True(t, strings.HasPrefix(lines[1], "T,"))
		assert.True(t, strings.HasPrefix(lines[2], "VZ,"))
	})

	t.Run("tiller to file", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "tiller.csv")
		out, err := execute(t, "export-tiller", "--config", env.config, "--output", output, env.source)
		require.NoError(t, err)
		assert.Empty(t, out)

		data, err := os.ReadFile(output)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "Date,Description,Category,Amount"))
	})

	t.Run("missing files", func(t *testing.T) {
		_, err := execute(t, "realized-income", "--config", env.config)
		assert.ErrorContains(t, err, "usage")
	})
}

func TestUpdatePricesValidation(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := execute(t, "update-prices", "--config", env.config)
	assert.ErrorContains(t, err, "exactly one of")

	_, err = execute(t, "update-prices", "--config", env.config, "--xlsx", "a.xlsx", "--sheet-id", "abc")
	assert.ErrorContains(t, err, "exactly one of")

	_, err = execute(t, "update-prices", "--config", env.config, "--xlsx", "a.xlsx", "--watch")
	assert.ErrorContains(t, err, "market_data.schedule")
}

func TestFlexQueryValidation(t *testing.T) {
	t.Setenv("IB_FLEX_TOKEN", "")
	env := newTestEnv(t, false)

	_, err := execute(t, "run-ib-flex-query", "--config", env.config, "--query", "123")
	assert.ErrorContains(t, err, "--token and --query")

	_, err = execute(t, "run-ib-flex-query", "--config", env.config, "--token", "t", "--query", "123", "--import")
	assert.ErrorContains(t, err, "--import requires --output")
}
