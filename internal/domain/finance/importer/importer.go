// Package importer orchestrates a single statement import: open the document,
// pick an extractor, extract statements and file the document into the archive.
package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/webclinic017/serendipity/internal/domain/document"
	"github.com/webclinic017/serendipity/internal/domain/finance"
	"github.com/webclinic017/serendipity/internal/domain/finance/extractor"
	"github.com/webclinic017/serendipity/internal/domain/finance/organizer"
)

// Archiver files a document and its statements.
type Archiver interface {
	Organize(ctx context.Context, srcPath string, statements []finance.Statement) (*finance.ArchiveRecord, error)
}

// Options tune a single import.
type Options struct {
	// Institution forces an extractor by institution name
	Institution string
	// DryRun extracts and computes the archive path without copying anything
	DryRun bool
	// Document options, e.g. a forced CSV delimiter
	Document []document.Option
}

// Result is the outcome of an import.
type Result struct {
	RunID       uuid.UUID
	Institution string
	Statements  []finance.Statement
	ArchivePath string
	// Record is nil for dry runs
	Record *finance.ArchiveRecord
}

// Service imports statement documents.
type Service struct {
	registry *extractor.Registry
	archiver Archiver
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewService(registry *extractor.Registry, archiver Archiver, logger *slog.Logger) *Service {
	return &Service{
		registry: registry,
		archiver: archiver,
		logger:   logger,
		tracer:   otel.Tracer("serendipity/importer"),
	}
}

// Extract opens path and returns the institution name and the statements it
// holds, without archiving.
func (s *Service) Extract(ctx context.Context, path string, opts Options) (string, []finance.Statement, error) {
	ctx, span := s.tracer.Start(ctx, "importer.Extract",
		trace.WithAttributes(attribute.String("document.path", path)),
	)
	defer span.End()

	institution, statements, err := s.extract(ctx, path, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", nil, err
	}
	span.SetAttributes(
		attribute.String("institution", institution),
		attribute.Int("statements", len(statements)),
	)
	return institution, statements, nil
}

func (s *Service) extract(ctx context.Context, path string, opts Options) (string, []finance.Statement, error) {
	doc, err := document.Open(path, opts.Document...)
	if err != nil {
		return "", nil, err
	}

	_, span := s.tracer.Start(ctx, "importer.dispatch")
	e, err := s.registry.Find(doc, opts.Institution)
	span.End()
	if err != nil {
		return "", nil, err
	}
	s.logger.Debug("extractor selected",
		slog.String("path", path),
		slog.String("institution", e.Institution()),
		slog.String("format", string(doc.Format())),
	)

	statements, err := e.Statements(doc)
	if err != nil {
		return "", nil, fmt.Errorf("failed to extract %s statement from %s: %w", e.Institution(), path, err)
	}
	if len(statements) == 0 {
		return "", nil, fmt.Errorf("%s: %w", path, extractor.ErrNoStatements)
	}
	return e.Institution(), statements, nil
}

// Import extracts path and files it into the archive.
func (s *Service) Import(ctx context.Context, path string, opts Options) (*Result, error) {
	runID := uuid.New()
	ctx, span := s.tracer.Start(ctx, "importer.Import",
		trace.WithAttributes(
			attribute.String("run_id", runID.String()),
			attribute.String("document.path", path),
			attribute.Bool("dry_run", opts.DryRun),
		),
	)
	defer span.End()

	logger := s.logger.With(slog.String("run_id", runID.String()))
	logger.Info("starting import", slog.String("path", path))

	result, err := s.doImport(ctx, path, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("import failed", slog.String("path", path), slog.Any("error", err))
		return nil, err
	}
	result.RunID = runID

	logger.Info("import completed",
		slog.String("institution", result.Institution),
		slog.Int("statements", len(result.Statements)),
		slog.String("archive_path", result.ArchivePath),
		slog.Bool("dry_run", opts.DryRun),
	)
	return result, nil
}

func (s *Service) doImport(ctx context.Context, path string, opts Options) (*Result, error) {
	institution, statements, err := s.Extract(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	key, err := organizer.ArchivePath(statements, path)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Institution: institution,
		Statements:  statements,
		ArchivePath: key,
	}
	if opts.DryRun {
		return result, nil
	}

	ctx, span := s.tracer.Start(ctx, "importer.archive", trace.WithAttributes(attribute.String("archive.key", key)))
	defer span.End()

	record, err := s.archiver.Organize(ctx, path, statements)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result.Record = record
	return result, nil
}

// ExtractAll extracts every path in order and concatenates the statements.
func (s *Service) ExtractAll(ctx context.Context, paths []string, opts Options) ([]finance.Statement, error) {
	var all []finance.Statement
	for _, p := range paths {
		_, statements, err := s.Extract(ctx, p, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, statements...)
	}
	return all, nil
}
