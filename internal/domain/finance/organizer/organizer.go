// Package organizer files statement documents into the archive under a name
// derived from the statements they contain.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/webclinic017/serendipity/internal/domain/finance"
	"github.com/webclinic017/serendipity/pkg/storage"
)

// StatementsDir is the archive directory, relative to the storage root.
const StatementsDir = "finance/statements"

// ErrNoStatements is returned when there is nothing to name the archive after.
var ErrNoStatements = errors.New("no statements to organize")

// Indexer records archived documents in a searchable catalog.
type Indexer interface {
	Index(r finance.ArchiveRecord) error
}

// Organizer copies statement documents into storage.
type Organizer struct {
	storage storage.Storage
	catalog Indexer
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Organizer.
type Option func(*Organizer)

// WithCatalog indexes every archived document in c.
func WithCatalog(c Indexer) Option {
	return func(o *Organizer) { o.catalog = c }
}

// WithClock overrides the archive timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Organizer) { o.now = now }
}

func New(store storage.Storage, logger *slog.Logger, opts ...Option) *Organizer {
	o := &Organizer{storage: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NormalizedName is "<institution>_<accounts>_<start>_<end>": the institution
// of the first statement, every account redacted and sorted, and the overall
// period as YYYYMMDD.
func NormalizedName(statements []finance.Statement) (string, error) {
	if len(statements) == 0 {
		return "", ErrNoStatements
	}
	start, end := period(statements)

	parts := make([]string, 0, len(statements)+3)
	parts = append(parts, statements[0].InstitutionName)
	parts = append(parts, redactedAccounts(statements)...)
	parts = append(parts, compactDate(start), compactDate(end))
	return strings.Join(parts, "_"), nil
}

// ArchivePath is the storage key for srcPath:
// finance/statements/<end year>/<normalized name><extension>.
func ArchivePath(statements []finance.Statement, srcPath string) (string, error) {
	name, err := NormalizedName(statements)
	if err != nil {
		return "", err
	}
	_, end := period(statements)
	return path.Join(StatementsDir, strconv.Itoa(end.Year), name+filepath.Ext(srcPath)), nil
}

// Organize copies srcPath into the archive and returns the resulting record.
// A catalog failure is logged and does not undo the copy.
func (o *Organizer) Organize(ctx context.Context, srcPath string, statements []finance.Statement) (*finance.ArchiveRecord, error) {
	key, err := ArchivePath(statements, srcPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	defer f.Close()

	info, err := o.storage.Put(ctx, key, f)
	if err != nil {
		return nil, fmt.Errorf("failed to archive %s: %w", srcPath, err)
	}

	start, end := period(statements)
	record := &finance.ArchiveRecord{
		ID:          uuid.New(),
		Key:         key,
		URI:         info.URI,
		Source:      srcPath,
		Institution: statements[0].InstitutionName,
		Accounts:    redactedAccounts(statements),
		StartDate:   start,
		EndDate:     end,
		Statements:  len(statements),
		ArchivedAt:  o.now(),
	}

	o.logger.Info("statement archived",
		slog.String("record_id", record.ID.String()),
		slog.String("institution", record.Institution),
		slog.String("uri", record.URI),
		slog.Int64("bytes", info.Size),
	)

	if o.catalog != nil {
		if err := o.catalog.Index(*record); err != nil {
			o.logger.Warn("failed to index archived statement",
				slog.String("key", key),
				slog.Any("error", err),
			)
		}
	}
	return record, nil
}

func redactedAccounts(statements []finance.Statement) []string {
	accounts := make([]string, 0, len(statements))
	for _, s := range statements {
		accounts = append(accounts, finance.RedactAccount(s.AccountNumber))
	}
	sort.Strings(accounts)
	return accounts
}

// period spans every statement's dates.
func period(statements []finance.Statement) (civil.Date, civil.Date) {
	start, end := statements[0].StartDate, statements[0].EndDate
	for _, s := range statements[1:] {
		if s.StartDate.Before(start) {
			start = s.StartDate
		}
		if s.EndDate.After(end) {
			end = s.EndDate
		}
	}
	return start, end
}

func compactDate(d civil.Date) string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}
