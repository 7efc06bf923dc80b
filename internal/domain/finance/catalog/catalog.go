// Package catalog keeps a full-text index of archived statements so they can
// be found again by institution, account or date.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/webclinic017/serendipity/internal/domain/finance"
)

// entry is the indexed form of an archive record.
type entry struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	URI         string `json:"uri"`
	Source      string `json:"source"`
	Institution string `json:"institution"`
	Accounts    string `json:"accounts"`    // space separated
	Description string `json:"description"` // full text for search
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Year        string `json:"year"`
	Statements  int    `json:"statements"`
	ArchivedAt  string `json:"archived_at"`
}

// Hit is a search result with its relevance score.
type Hit struct {
	Record finance.ArchiveRecord
	Score  float64
}

// Catalog provides full-text search over archive records using Bleve.
type Catalog struct {
	index   bleve.Index
	indexMu sync.RWMutex
	path    string // empty for in-memory
}

// Open creates or opens the catalog at path. An empty path creates an
// in-memory catalog.
func Open(path string) (*Catalog, error) {
	var (
		index bleve.Index
		err   error
	)
	indexMapping := buildIndexMapping()

	if path == "" {
		index, err = bleve.NewMemOnly(indexMapping)
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", mkdirErr)
		}
		index, err = bleve.New(path, indexMapping)
	} else {
		index, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open catalog: %w", err)
	}

	return &Catalog{index: index, path: path}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	numericFieldMapping := bleve.NewNumericFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("key", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("uri", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("source", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("institution", textFieldMapping)
	docMapping.AddFieldMappingsAt("accounts", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("start_date", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("end_date", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("year", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("statements", numericFieldMapping)
	docMapping.AddFieldMappingsAt("archived_at", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

func toEntry(r finance.ArchiveRecord) entry {
	accounts := strings.Join(r.Accounts, " ")
	return entry{
		ID:          r.ID.String(),
		Key:         r.Key,
		URI:         r.URI,
		Source:      r.Source,
		Institution: r.Institution,
		Accounts:    accounts,
		Description: fmt.Sprintf("%s %s %s %s", r.Institution, accounts, r.StartDate, r.EndDate),
		StartDate:   r.StartDate.String(),
		EndDate:     r.EndDate.String(),
		Year:        fmt.Sprint(r.EndDate.Year),
		Statements:  r.Statements,
		ArchivedAt:  r.ArchivedAt.UTC().Format(time.RFC3339),
	}
}

// Index adds or replaces the record. Records are keyed by archive key, so
// re-importing the same document updates its entry.
func (c *Catalog) Index(r finance.ArchiveRecord) error {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	if err := c.index.Index(r.Key, toEntry(r)); err != nil {
		return fmt.Errorf("failed to index %s: %w", r.Key, err)
	}
	return nil
}

// Search runs a match query with typo tolerance over institution, accounts
// and dates. An empty query matches every record.
func (c *Catalog) Search(query string, limit int) ([]Hit, error) {
	c.indexMu.RLock()
	defer c.indexMu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	var req *bleve.SearchRequest
	if strings.TrimSpace(query) == "" {
		req = bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	} else {
		matchQuery := bleve.NewMatchQuery(query)
		matchQuery.SetFuzziness(1)
		req = bleve.NewSearchRequest(matchQuery)
	}
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return convertHits(res), nil
}

// ByYear returns records whose statement period ends in year.
func (c *Catalog) ByYear(year int, limit int) ([]Hit, error) {
	c.indexMu.RLock()
	defer c.indexMu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	termQuery := bleve.NewTermQuery(fmt.Sprint(year))
	termQuery.SetField("year")

	req := bleve.NewSearchRequest(termQuery)
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("year search failed: %w", err)
	}
	return convertHits(res), nil
}

func convertHits(res *bleve.SearchResult) []Hit {
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		r := finance.ArchiveRecord{Key: h.ID}

		if v, ok := h.Fields["id"].(string); ok {
			if id, err := uuid.Parse(v); err == nil {
				r.ID = id
			}
		}
		if v, ok := h.Fields["uri"].(string); ok {
			r.URI = v
		}
		if v, ok := h.Fields["source"].(string); ok {
			r.Source = v
		}
		if v, ok := h.Fields["institution"].(string); ok {
			r.Institution = v
		}
		if v, ok := h.Fields["accounts"].(string); ok && v != "" {
			r.Accounts = strings.Fields(v)
		}
		if v, ok := h.Fields["start_date"].(string); ok {
			r.StartDate, _ = civil.ParseDate(v)
		}
		if v, ok := h.Fields["end_date"].(string); ok {
			r.EndDate, _ = civil.ParseDate(v)
		}
		if v, ok := h.Fields["statements"].(float64); ok {
			r.Statements = int(v)
		}
		if v, ok := h.Fields["archived_at"].(string); ok {
			r.ArchivedAt, _ = time.Parse(time.RFC3339, v)
		}

		hits = append(hits, Hit{Record: r, Score: h.Score})
	}
	return hits
}

// Count returns the number of indexed records.
func (c *Catalog) Count() (uint64, error) {
	c.indexMu.RLock()
	defer c.indexMu.RUnlock()

	return c.index.DocCount()
}

// Close closes the index.
func (c *Catalog) Close() error {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	if c.index != nil {
		return c.index.Close()
	}
	return nil
}
