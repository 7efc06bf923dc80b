package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/webclinic017/serendipity/internal/domain/finance/catalog"
	"github.com/webclinic017/serendipity/internal/domain/finance/extractor"
	"github.com/webclinic017/serendipity/internal/domain/finance/flexquery"
	"github.com/webclinic017/serendipity/internal/domain/finance/importer"
	"github.com/webclinic017/serendipity/internal/domain/finance/organizer"
	"github.com/webclinic017/serendipity/internal/domain/marketdata"
	"github.com/webclinic017/serendipity/pkg/config"
	"github.com/webclinic017/serendipity/pkg/storage"
)

// Dependencies holds everything the commands share
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	Storage  storage.Storage
	Catalog  *catalog.Catalog // nil unless finance.catalog_path is set
	Registry *extractor.Registry

	Organizer *organizer.Organizer
	Importer  *importer.Service
}

// InitDependencies initializes storage, the catalog and the import services
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	if err := deps.initCatalog(); err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("failed to init catalog: %w", err)
	}

	deps.initServices()

	logger.Debug("dependencies initialized",
		slog.String("archive_backend", cfg.Finance.Archive.Backend),
		slog.Bool("catalog", deps.Catalog != nil),
	)
	return deps, nil
}

func (d *Dependencies) initStorage(ctx context.Context) error {
	archive := d.Config.Finance.Archive
	store, err := storage.New(ctx, storage.Config{
		Type:      storage.StorageType(archive.Backend),
		LocalPath: d.Config.Finance.DocumentPath,
		GCSBucket: archive.GCSBucket,
		GCSPrefix: archive.GCSPrefix,
	})
	if err != nil {
		return err
	}
	d.Storage = store
	return nil
}

func (d *Dependencies) initCatalog() error {
	if d.Config.Finance.CatalogPath == "" {
		return nil
	}
	c, err := catalog.Open(d.Config.Finance.CatalogPath)
	if err != nil {
		return err
	}
	d.Catalog = c
	return nil
}

func (d *Dependencies) initServices() {
	d.Registry = extractor.Default()

	var opts []organizer.Option
	if d.Catalog != nil {
		opts = append(opts, organizer.WithCatalog(d.Catalog))
	}
	d.Organizer = organizer.New(d.Storage, d.Logger, opts...)
	d.Importer = importer.NewService(d.Registry, d.Organizer, d.Logger)
}

// Quoter builds the market data provider from config.
func (d *Dependencies) Quoter() marketdata.Quoter {
	md := d.Config.MarketData
	client := &http.Client{Timeout: md.Timeout()}
	return marketdata.NewYahooProvider(client, md.QuoteURL, md.RequestsPerSecond, md.Concurrency)
}

// FlexQuery builds the Interactive Brokers flex web service client.
func (d *Dependencies) FlexQuery() *flexquery.Client {
	return flexquery.NewClient(&http.Client{Timeout: d.Config.MarketData.Timeout()}, d.Logger)
}

// Close releases the catalog and storage clients.
func (d *Dependencies) Close() error {
	var errs []error
	if d.Catalog != nil {
		errs = append(errs, d.Catalog.Close())
	}
	if c, ok := d.Storage.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
