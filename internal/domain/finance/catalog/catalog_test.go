package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webclinic017/serendipity/internal/domain/finance"
)

func record(institution, key string, accounts []string, start, end civil.Date) finance.ArchiveRecord {
	return finance.ArchiveRecord{
		ID:          uuid.New(),
		Key:         key,
		URI:         "/archive/" + key,
		Source:      "/downloads/statement.pdf",
		Institution: institution,
		Accounts:    accounts,
		StartDate:   start,
		EndDate:     end,
		Statements:  len(accounts),
		ArchivedAt:  time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func seed(t *testing.T, c *Catalog) (finance.ArchiveRecord, finance.ArchiveRecord) {
	t.Helper()
	chase := record("Chase", "finance/statements/2020/Chase_XXXXXX7890_20201001_20201031.pdf",
		[]string{"XXXXXX7890"},
		civil.Date{Year: 2020, Month: 10, Day: 1}, civil.Date{Year: 2020, Month: 10, Day: 31})
	merrill := record("Merrill Edge", "finance/statements/2021/Merrill Edge_XXXXB11_XXXXB11_20210101_20210131.csv",
		[]string{"XXXXXXB11", "XXXXXXB12"},
		civil.Date{Year: 2021, Month: 1, Day: 1}, civil.Date{Year: 2021, Month: 1, Day: 31})
	require.NoError(t, c.Index(chase))
	require.NoError(t, c.Index(merrill))
	return chase, merrill
}

func TestCatalogSearch(t *testing.T) {
	c, err := Open("")
	require.NoError(t, err)
	defer c.Close()

	chase, _ := seed(t, c)

	count, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	t.Run("by institution", func(t *testing.T) {
		hits, err := c.Search("chase", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)

		got := hits[0].Record
		assert.Equal(t, chase.ID, got.ID)
		assert.Equal(t, chase.Key, got.Key)
		assert.Equal(t, chase.URI, got.URI)
		assert.Equal(t, "Chase", got.Institution)
		assert.Equal(t, []string{"XXXXXX7890"}, got.Accounts)
		assert.Equal(t, chase.StartDate, got.StartDate)
		assert.Equal(t, chase.EndDate, got.EndDate)
		assert.Equal(t, 1, got.Statements)
		assert.True(t, chase.ArchivedAt.Equal(got.ArchivedAt))
		assert.Greater(t, hits[0].Score, 0.0)
	})

	t.Run("typo tolerant", func(t *testing.T) {
		hits, err := c.Search("merril", 10)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "Merrill Edge", hits[0].Record.Institution)
	})

	t.Run("empty query matches all", func(t *testing.T) {
		hits, err := c.Search("", 0)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("by year", func(t *testing.T) {
		hits, err := c.ByYear(2021, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "Merrill Edge", hits[0].Record.Institution)
	})
}

func TestCatalogReindexReplaces(t *testing.T) {
	c, err := Open("")
	require.NoError(t, err)
	defer c.Close()

	chase, _ := seed(t, c)
	chase.ID = uuid.New()
	require.NoError(t, c.Index(chase))

	count, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	hits, err := c.Search("chase", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, chase.ID, hits[0].Record.ID)
}

func TestCatalogPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog", "statements.bleve")

	c, err := Open(path)
	require.NoError(t, err)
	seed(t, c)
	require.NoError(t, c.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}
