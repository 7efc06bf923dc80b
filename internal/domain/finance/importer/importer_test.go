package importer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webclinic017/serendipity/internal/domain/finance/extractor"
	"github.com/webclinic017/serendipity/internal/domain/finance/organizer"
	"github.com/webclinic017/serendipity/pkg/storage"
)

const merrillHoldings = `"COB Date","Symbol","Account Nickname","Account #","Quantity","Value ($)","Cost Basis ($)","Acquisition Date","Short/Long"
"11/20/2020","T","CMA-Edge","11A-11B11","300","8,496.00","8,435.97","03/16/2020","Short"
"11/20/2020","VZ","Roth-Edge","22A-11B11","120","7,215.60","7,317.24","01/10/2019","Long"
`

func newService(t *testing.T) (*Service, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()
	store, err := storage.NewLocalStorage(root)
	require.NoError(t, err)
	return NewService(extractor.Default(), organizer.New(store, logger), logger), root
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImport(t *testing.T) {
	svc, root := newService(t)
	src := writeFile(t, "holdings.csv", merrillHoldings)

	result, err := svc.Import(context.Background(), src, Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "Merrill Edge", result.Institution)
	require.Len(t, result.Statements, 2)
	assert.Equal(t, "finance/statements/2020/Merrill Edge_XXXXX1B11_XXXXX1B11_20201120_20201120.csv", result.ArchivePath)
	require.NotNil(t, result.Record)
	assert.Equal(t, result.ArchivePath, result.Record.Key)

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(result.ArchivePath)))
	require.NoError(t, err)
	assert.Equal(t, merrillHoldings, string(data))
}

func TestImportDryRun(t *testing.T) {
	svc, root := newService(t)
	src := writeFile(t, "holdings.csv", merrillHoldings)

	result, err := svc.Import(context.Background(), src, Options{DryRun: true})
	require.NoError(t, err)
	assert.Nil(t, result.Record)

	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(result.ArchivePath)))
	assert.True(t, os.IsNotExist(err))
}

func TestImportErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	t.Run("unknown document", func(t *testing.T) {
		src := writeFile(t, "unknown.csv", "a,b\n1,2\n")
		_, err := svc.Import(ctx, src, Options{})
		assert.ErrorIs(t, err, extractor.ErrNoExtractor)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		src := writeFile(t, "statement.txt", "hello")
		_, err := svc.Import(ctx, src, Options{})
		assert.Error(t, err)
	})

	t.Run("unknown institution", func(t *testing.T) {
		src := writeFile(t, "other.csv", "a,b\n1,2\n")
		_, err := svc.Import(ctx, src, Options{Institution: "Vanguard"})
		assert.ErrorIs(t, err, extractor.ErrNoExtractor)
	})

	t.Run("unknown institution falls back to detection", func(t *testing.T) {
		src := writeFile(t, "holdings.csv", merrillHoldings)
		result, err := svc.Import(ctx, src, Options{Institution: "Vanguard", DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, "Merrill Edge", result.Institution)
	})

	t.Run("document without statements", func(t *testing.T) {
		src := writeFile(t, "empty.csv", `"COB Date","Symbol","Account #","Short/Long","Merrill Edge"`+"\n")
		_, err := svc.Import(ctx, src, Options{})
		assert.ErrorIs(t, err, extractor.ErrNoStatements)
	})
}

func TestExtractAll(t *testing.T) {
	svc, _ := newService(t)
	a := writeFile(t, "a.csv", merrillHoldings)
	b := writeFile(t, "b.csv", merrillHoldings)

	statements, err := svc.ExtractAll(context.Background(), []string{a, b}, Options{Institution: "Merrill Edge"})
	require.NoError(t, err)
	assert.Len(t, statements, 4)
}
