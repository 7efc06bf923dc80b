package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/webclinic017/serendipity/internal/domain/document"
	"github.com/webclinic017/serendipity/internal/domain/finance"
	"github.com/webclinic017/serendipity/internal/domain/finance/catalog"
	"github.com/webclinic017/serendipity/internal/domain/finance/export"
	"github.com/webclinic017/serendipity/internal/domain/finance/importer"
	"github.com/webclinic017/serendipity/internal/domain/marketdata"
	"github.com/webclinic017/serendipity/pkg/cron"
)

const documentTypeFinance = "finance"

func runImport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("import", stderr)
	docType := fs.String("type", documentTypeFinance, "Document type")
	file := fs.String("file", "", "Path to the document to import (required)")
	institution := fs.String("institution", "", "Use the extractor of this institution instead of detecting it")
	delimiter := fs.String("delimiter", "", "CSV delimiter, detected when empty")
	dryRun := fs.Bool("dry-run", false, "Extract and print the archive path without copying the file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *file == "" {
		return errors.New("--file is required")
	}
	if *docType != documentTypeFinance {
		return fmt.Errorf("unsupported document type %q", *docType)
	}
	var docOpts []document.Option
	if *delimiter != "" {
		r := []rune(*delimiter)
		if len(r) != 1 {
			return fmt.Errorf("--delimiter must be a single character, got %q", *delimiter)
		}
		docOpts = append(docOpts, document.WithDelimiter(r[0]))
	}

	deps, err := setup(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	result, err := deps.Importer.Import(ctx, *file, importer.Options{
		Institution: *institution,
		DryRun:      *dryRun,
		Document:    docOpts,
	})
	if err != nil {
		return err
	}

	destination := deps.Storage.URI(result.ArchivePath)
	if result.Record != nil {
		destination = result.Record.URI
	}
	suffix := ""
	if *dryRun {
		suffix = " (dry run)"
	}
	fmt.Fprintf(stdout, "%s: %d statement(s) -> %s%s\n", result.Institution, len(result.Statements), destination, suffix)
	return nil
}

// runExtraction extracts every positional file argument and hands the
// statements to write.
func runExtraction(ctx context.Context, name string, args []string, stdout, stderr io.Writer,
	write func(io.Writer, []finance.Statement) error,
) error {
	fs, configPath := newFlagSet(name, stderr)
	institution := fs.String("institution", "", "Use the extractor of this institution instead of detecting it")
	output := fs.String("output", "", "Output CSV path, stdout when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files := fs.Args()
	if len(files) == 0 {
		return fmt.Errorf("usage: serendipity %s [options] FILE...", name)
	}

	deps, err := setup(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	statements, err := deps.Importer.ExtractAll(ctx, files, importer.Options{Institution: *institution})
	if err != nil {
		return err
	}

	w, closeOutput, err := createOutput(*output, stdout)
	if err != nil {
		return err
	}
	if err := write(w, statements); err != nil {
		_ = closeOutput()
		return err
	}
	return closeOutput()
}

func runExportTiller(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	return runExtraction(ctx, "export-tiller", args, stdout, stderr, export.WriteTiller)
}

func runConsolidateHoldings(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	return runExtraction(ctx, "consolidate-holdings", args, stdout, stderr,
		func(w io.Writer, statements []finance.Statement) error {
			return export.WriteHoldings(w, export.ConsolidateHoldings(statements))
		})
}

func runRealizedIncome(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	return runExtraction(ctx, "realized-income", args, stdout, stderr,
		func(w io.Writer, statements []finance.Statement) error {
			rows, err := export.MonthlyRealizedIncome(statements)
			if err != nil {
				return err
			}
			return export.WriteMonthlyIncome(w, rows)
		})
}

func runFind(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("find", stderr)
	year := fs.Int("year", 0, "Only statements archived under this year")
	limit := fs.Int("limit", 20, "Maximum number of results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")

	deps, err := setup(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	if deps.Catalog == nil {
		return errors.New("finance.catalog_path is not configured")
	}

	var hits []catalog.Hit
	if *year > 0 {
		hits, err = deps.Catalog.ByYear(*year, *limit)
	} else {
		hits, err = deps.Catalog.Search(query, *limit)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTITUTION\tACCOUNTS\tSTART\tEND\tLOCATION")
	for _, h := range hits {
		r := h.Record
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Institution, strings.Join(r.Accounts, ","), r.StartDate, r.EndDate, r.URI)
	}
	return tw.Flush()
}

func runUpdatePrices(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("update-prices", stderr)
	xlsxPath := fs.String("xlsx", "", "Path to a local Excel workbook")
	sheetID := fs.String("sheet-id", "", "Google spreadsheet ID")
	sheetName := fs.String("sheet", "", "Worksheet name, the first worksheet of a workbook when empty")
	credentials := fs.String("credentials", "", "Google service account credentials file, google.credentials_file when empty")
	schedule := fs.String("schedule", "", "Cron spec to keep running on, e.g. \"0 18 * * 1-5\"")
	watch := fs.Bool("watch", false, "Keep running on market_data.schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*xlsxPath == "") == (*sheetID == "") {
		return errors.New("exactly one of --xlsx or --sheet-id is required")
	}

	deps, err := setup(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	if *credentials == "" {
		*credentials = deps.Config.Google.CredentialsFile
	}
	quoter := deps.Quoter()
	logger := deps.Logger.With(slog.String("job", "update-prices"))

	update := func(ctx context.Context) error {
		var (
			sheet marketdata.Sheet
			done  = func() error { return nil }
		)
		if *xlsxPath != "" {
			x, err := marketdata.OpenXLSXSheet(*xlsxPath, *sheetName)
			if err != nil {
				return err
			}
			sheet, done = x, x.Close
		} else {
			g, err := marketdata.NewGoogleSheet(ctx, *credentials, *sheetID, *sheetName)
			if err != nil {
				return err
			}
			sheet = g
		}
		defer func() { _ = done() }()

		result, err := marketdata.UpdatePrices(ctx, sheet, quoter, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "updated %d of %d rows\n", result.Updated, result.Rows)
		return nil
	}

	spec := *schedule
	if spec == "" && *watch {
		spec = deps.Config.MarketData.Schedule
		if spec == "" {
			return errors.New("--watch requires market_data.schedule")
		}
	}
	if spec == "" {
		return update(ctx)
	}

	scheduler := cron.NewScheduler(deps.Logger)
	if err := scheduler.Add("update-prices", spec, update); err != nil {
		return err
	}
	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

func runFlexQuery(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("run-ib-flex-query", stderr)
	token := fs.String("token", os.Getenv("IB_FLEX_TOKEN"), "Flex web service token, IB_FLEX_TOKEN when empty")
	query := fs.String("query", "", "Flex query ID (required)")
	output := fs.String("output", "", "Where to save the statement, stdout when empty")
	doImport := fs.Bool("import", false, "Import the downloaded statement; requires --output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" || *query == "" {
		return errors.New("--token and --query are required")
	}
	if *doImport && *output == "" {
		return errors.New("--import requires --output")
	}

	deps, err := setup(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	statement, err := deps.FlexQuery().Run(ctx, *token, *query)
	if err != nil {
		return err
	}

	w, closeOutput, err := createOutput(*output, stdout)
	if err != nil {
		return err
	}
	if _, err := w.Write(statement); err != nil {
		_ = closeOutput()
		return err
	}
	if err := closeOutput(); err != nil {
		return err
	}
	if !*doImport {
		return nil
	}

	result, err := deps.Importer.Import(ctx, *output, importer.Options{})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d statement(s) -> %s\n", result.Institution, len(result.Statements), result.Record.URI)
	return nil
}
