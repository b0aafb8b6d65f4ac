// Command casaledger imports bank statements into the shared expense
// ledger. Subcommands:
//
//	analyze  <file>   detect encoding, file type and header layout
//	preview  <file>   parse and process without writing anything
//	import   <file>   run the full pipeline against the database
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/casaledger/casaledger/internal/docstore"
	"github.com/casaledger/casaledger/internal/domain/categorization"
	"github.com/casaledger/casaledger/internal/domain/duplicates"
	"github.com/casaledger/casaledger/internal/domain/expense"
	"github.com/casaledger/casaledger/internal/domain/import/normalizer"
	"github.com/casaledger/casaledger/internal/domain/import/parser"
	importsvc "github.com/casaledger/casaledger/internal/domain/import/service"
	"github.com/casaledger/casaledger/internal/domain/import/sniffer"
	"github.com/casaledger/casaledger/internal/domain/import/validator"
	"github.com/casaledger/casaledger/pkg/config"
	"github.com/casaledger/casaledger/pkg/metrics"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "analyze":
		err = runAnalyze(os.Args[2:])
	case "preview":
		err = runPreview(ctx, os.Args[2:], logger)
	case "import":
		err = runImport(ctx, os.Args[2:], logger)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: casaledger <analyze|preview|import> [flags] <file>")
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("analyze takes exactly one file argument")
	}

	filename := fs.Arg(0)
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	fileType := sniffer.DetectFileType(filename, data)
	fmt.Printf("file type: %s\n", fileType)

	if fileType != sniffer.FileTypeCSV {
		return nil
	}

	fmt.Printf("encoding:  %s\n", sniffer.DetectEncoding(data))

	text, _, err := sniffer.DecodeAuto(data)
	if err != nil {
		return err
	}
	rows, delim, err := sniffer.TokenizeRows(text)
	if err != nil {
		return err
	}
	fmt.Printf("delimiter: %q\n", delim)

	header, err := sniffer.DetectHeader(rows)
	if err != nil {
		return err
	}
	fmt.Printf("header:    row %d, confidence %s\n", header.RowIndex, header.Confidence)
	if header.Warning != "" {
		fmt.Printf("warning:   %s\n", header.Warning)
	}
	return nil
}

func previewFlags(fs *flag.FlagSet) (hint, coupleID, paidBy, currency *string, checkDups *bool) {
	hint = fs.String("date-hint", "auto", "date format hint: auto, MM/DD/YYYY or DD/MM/YYYY")
	coupleID = fs.String("couple", "", "couple id owning the imported expenses")
	paidBy = fs.String("paid-by", "", "user id who paid")
	currency = fs.String("currency", "USD", "primary currency")
	checkDups = fs.Bool("check-duplicates", true, "run duplicate detection")
	return
}

func runPreview(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	hint, coupleID, paidBy, currency, checkDups := previewFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("preview takes exactly one file argument")
	}

	parsedHint, err := normalizer.ParseDateHint(*hint)
	if err != nil {
		return err
	}

	filename := fs.Arg(0)
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	// Preview runs entirely against an in-memory store.
	store := docstore.NewMemory(0)
	svc := newService(parsedHint, store, duplicates.Options{}, 0, logger)

	parsed, err := svc.Parse(ctx, filename, data)
	if err != nil {
		return err
	}

	processed, err := svc.ProcessTransactions(ctx, parsed.Transactions, importsvc.ProcessConfig{
		CheckDuplicates: *checkDups,
		Mapper: expense.MapperConfig{
			CoupleID:        *coupleID,
			PaidBy:          *paidBy,
			PrimaryCurrency: *currency,
		},
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tDESCRIPTION\tAMOUNT\tCATEGORY")
	for i, e := range processed.Expenses {
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\n",
			e.Date.Format("2006-01-02"),
			e.Description,
			e.Amount.StringFixed(2), e.Currency,
			processed.Suggestions[i].CategoryKey,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d parsed, %d row errors, %d invalid, %d mapped\n",
		parsed.ParsedRows, len(parsed.Errors), len(processed.Invalid), processed.Summary.Mapped)
	return nil
}

func runImport(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	hint, coupleID, paidBy, currency, checkDups := previewFlags(fs)
	user := fs.String("user", "", "user id running the import")
	rollback := fs.Bool("rollback-on-failure", true, "delete committed batches when a later batch fails")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("import takes exactly one file argument")
	}
	if *coupleID == "" || *paidBy == "" {
		return fmt.Errorf("import requires -couple and -paid-by")
	}

	parsedHint, err := normalizer.ParseDateHint(*hint)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	migrateDB, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		return err
	}
	if err := docstore.Migrate(migrateDB); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	if err := migrateDB.Close(); err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store := docstore.NewPostgres(pool, cfg.Import.MaxBatchOps)
	dupOpts := duplicates.Options{
		DateToleranceDays:  cfg.Duplicates.DateToleranceDays,
		AmountTolerancePct: cfg.Duplicates.AmountTolerancePct,
		LookbackDays:       cfg.Duplicates.LookbackDays,
		AutoSkipConfidence: cfg.Duplicates.AutoSkipConfidence,
	}
	svc := newService(parsedHint, store, dupOpts, cfg.Import.BatchesPerSecond, logger)

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	session, result, err := svc.RunImport(ctx, *user, fs.Arg(0), data,
		importsvc.ProcessConfig{
			MaxTransactions: cfg.Import.MaxTransactions,
			CheckDuplicates: *checkDups,
			Mapper: expense.MapperConfig{
				CoupleID:        *coupleID,
				PaidBy:          *paidBy,
				DefaultCategory: cfg.Import.DefaultCategory,
				PrimaryCurrency: *currency,
			},
		},
		importsvc.CommitOptions{
			RollbackOnFailure: *rollback,
			OnProgress: func(p importsvc.Progress) {
				fmt.Printf("\r%s: %3.0f%% (%d/%d)", p.Phase, p.Percentage, p.Current, p.Total)
			},
		},
	)
	fmt.Println()
	if err != nil {
		return err
	}

	logger.Info("import completed",
		slog.String("session_id", session.ID),
		slog.Int("imported", result.ImportedCount),
		slog.String("summary", result.Summary),
	)
	return nil
}

func newService(hint normalizer.DateHint, store docstore.Store, dupOpts duplicates.Options, batchesPerSecond float64, logger *slog.Logger) *importsvc.Service {
	corrections := categorization.NewCorrectionStore(store, logger)
	return importsvc.New(importsvc.Config{
		Router:           parser.NewRouter(hint, logger),
		Validator:        validator.New(),
		Categories:       categorization.NewService(categorization.NewKeywordEngine(nil), corrections, logger),
		Detector:         duplicates.NewDetector(dupOpts),
		Repository:       expense.NewRepository(store, logger),
		Store:            store,
		Metrics:          metrics.New(prometheus.DefaultRegisterer),
		BatchesPerSecond: batchesPerSecond,
		Logger:           logger,
	})
}
