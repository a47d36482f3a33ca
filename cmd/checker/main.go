package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/peterlang-checker/checker"
	"github.com/aluiziolira/peterlang-checker/config"
	"github.com/aluiziolira/peterlang-checker/models"
	"github.com/aluiziolira/peterlang-checker/pipeline"
	"github.com/aluiziolira/peterlang-checker/sheet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	envFile := ".env"
	if value, ok := config.EnvString("CHECKER_ENV_FILE"); ok {
		envFile = value
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	defaultCfg := config.DefaultConfig()
	applyEnv(defaultCfg)

	inputFile := flag.String("input", defaultCfg.InputFile, "Input table (.xlsx or .csv)")
	sheetName := flag.String("sheet", defaultCfg.SheetName, "Worksheet to read (default: first sheet)")
	authorCol := flag.String("author-col", defaultCfg.AuthorCol, "Column holding the author name")
	isbnCol := flag.String("isbn-col", defaultCfg.ISBNCol, "Column holding the ISBN")
	titleCol := flag.String("title-col", defaultCfg.TitleCol, "Column holding the book title")
	dateCol := flag.String("date-col", defaultCfg.DateCol, "Column holding the publication date (optional)")
	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Publisher site to check")
	searchTimeout := flag.Duration("search-timeout", defaultCfg.SearchTimeout, "Timeout for the catalog search request")
	documentTimeout := flag.Duration("document-timeout", defaultCfg.DocumentTimeout, "Timeout for the product page request")
	delay := flag.Duration("delay", defaultCfg.RowDelay, "Pause after each row (at least 1s)")
	outputFile := flag.String("output", defaultCfg.OutputFile, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, xlsx, json, or dual (csv+xlsx)")
	metricsAddr := flag.String("metrics-addr", defaultCfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.InputFile = *inputFile
	cfg.SheetName = *sheetName
	cfg.AuthorCol = *authorCol
	cfg.ISBNCol = *isbnCol
	cfg.TitleCol = *titleCol
	cfg.DateCol = *dateCol
	cfg.BaseURL = *baseURL
	cfg.SearchTimeout = *searchTimeout
	cfg.DocumentTimeout = *documentTimeout
	cfg.RowDelay = *delay
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if cfg.InputFile == "" {
		slog.Error("missing input file", slog.String("hint", "pass -input books.xlsx or set CHECKER_INPUT"))
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("availability check failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	table, err := sheet.ReadTable(cfg.InputFile, cfg.SheetName)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	records, err := table.Records(sheet.ColumnMap{
		Author:          cfg.AuthorCol,
		ISBN:            cfg.ISBNCol,
		Title:           cfg.TitleCol,
		PublicationDate: cfg.DateCol,
	})
	if err != nil {
		return fmt.Errorf("mapping columns: %w", err)
	}

	metrics := checker.NewMetrics()
	search, err := checker.NewCollyFetcher("search", cfg, cfg.SearchTimeout, metrics)
	if err != nil {
		return fmt.Errorf("initialising search fetcher: %w", err)
	}
	document, err := checker.NewCollyFetcher("document", cfg, cfg.DocumentTimeout, metrics)
	if err != nil {
		return fmt.Errorf("initialising document fetcher: %w", err)
	}
	resolver, err := checker.NewResolver(cfg, search, document, metrics)
	if err != nil {
		return fmt.Errorf("initialising resolver: %w", err)
	}

	writer, outputs, err := createWriter(cfg.OutputFormat, cfg.OutputFile, table.Header)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	p, err := pipeline.NewPipeline(writer, cfg)
	if err != nil {
		writer.Close()
		return fmt.Errorf("creating pipeline: %w", err)
	}
	if cfg.Verbose {
		p.StartMetricsReporting(30 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, metrics)

	slog.Info("input loaded",
		slog.String("input", cfg.InputFile),
		slog.Int("rows", len(records)),
		slog.String("base_url", cfg.BaseURL),
	)

	runner := checker.NewRunner(resolver, cfg.RowDelay, metrics)
	runner.OnProgress(func(ev checker.Progress) {
		slog.Info(fmt.Sprintf("Processed %d of %d books", ev.Row, ev.Total),
			slog.String("availability", string(ev.Result.Status)),
		)
	})

	result, runErr := runner.Run(ctx, records, p)

	if err := p.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("pipeline shutdown: %w", err)
	}
	if err := writer.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close writer: %w", err)
	}
	stopMetricsServer(metricsServer)
	if runErr != nil {
		return runErr
	}

	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation: %w", err)
	}

	printSummary(result, outputs, p.GetMetrics())
	return nil
}

func applyEnv(cfg *config.Config) {
	textVars := map[string]*string{
		"CHECKER_INPUT":        &cfg.InputFile,
		"CHECKER_SHEET":        &cfg.SheetName,
		"CHECKER_BASE_URL":     &cfg.BaseURL,
		"CHECKER_OUTPUT":       &cfg.OutputFile,
		"CHECKER_FORMAT":       &cfg.OutputFormat,
		"CHECKER_METRICS_ADDR": &cfg.MetricsAddr,
		"CHECKER_AUTHOR_COL":   &cfg.AuthorCol,
		"CHECKER_ISBN_COL":     &cfg.ISBNCol,
		"CHECKER_TITLE_COL":    &cfg.TitleCol,
		"CHECKER_DATE_COL":     &cfg.DateCol,
	}
	for key, target := range textVars {
		if value, ok := config.EnvString(key); ok {
			*target = value
		}
	}

	durations := map[string]*time.Duration{
		"CHECKER_DELAY":            &cfg.RowDelay,
		"CHECKER_SEARCH_TIMEOUT":   &cfg.SearchTimeout,
		"CHECKER_DOCUMENT_TIMEOUT": &cfg.DocumentTimeout,
	}
	for key, target := range durations {
		value, ok, err := config.EnvDuration(key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid %v\n", err)
			os.Exit(1)
		}
		if ok {
			*target = value
		}
	}

	if value, ok, err := config.EnvInt("CHECKER_BATCH_SIZE"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid %v\n", err)
		os.Exit(1)
	} else if ok {
		cfg.BatchSize = value
	}
}

func createWriter(format, filename string, header []string) (pipeline.OutputWriter, []string, error) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	switch format {
	case "csv":
		w, err := pipeline.NewCSVWriter(filename, header)
		return w, []string{filename}, err
	case "xlsx":
		w, err := pipeline.NewXLSXWriter(filename, header)
		return w, []string{filename}, err
	case "json":
		w, err := pipeline.NewJSONWriter(filename)
		return w, []string{filename}, err
	case "dual":
		csvFile, xlsxFile := base+".csv", base+".xlsx"
		w, err := pipeline.NewDualWriter(csvFile, xlsxFile, header)
		return w, []string{csvFile, xlsxFile}, err
	default:
		return nil, nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func startMetricsServer(addr string, metrics *checker.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func stopMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(result *models.BatchResult, outputs []string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	if result.Cancelled {
		fmt.Println("Availability check interrupted")
	} else {
		fmt.Println("Availability check complete")
	}

	fmt.Printf("  Run ID:         %s\n", result.RunID)
	fmt.Printf("  Rows:           %d of %d\n", result.Processed, result.Total)
	fmt.Printf("  Available:      %d\n", result.ByStatus[models.StatusAvailable])
	fmt.Printf("  Not available:  %d\n", result.ByStatus[models.StatusNotAvailable])
	fmt.Printf("  Errors:         %d\n", result.ByStatus[models.StatusError])
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:    %v\n", result.ErrorsByType)
	}
	if repeated, ok := metrics["repeated_queries"].(int64); ok && repeated > 0 {
		fmt.Printf("  Repeated rows:  %d\n", repeated)
	}
	fmt.Printf("  Duration:       %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	for _, output := range outputs {
		fmt.Printf("  Output file:    %s\n", output)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
