package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/easy-receipt/internal/export"
	"github.com/zombor/easy-receipt/internal/metrics"
	"github.com/zombor/easy-receipt/internal/receipt"
	"github.com/zombor/easy-receipt/internal/scanning"
	"github.com/zombor/easy-receipt/internal/server"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// rootConfig holds the flags shared by every subcommand
type rootConfig struct {
	dbPath          *string
	storagePath     *string
	logLevel        *string
	logFormat       *string
	timezone        *string
	defaultCategory *string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootFlags := ff.NewFlagSet("easy-receipt")
	cfg := rootConfig{
		dbPath:          rootFlags.StringLong("db", "easy-receipt.db", "Database file path"),
		storagePath:     rootFlags.StringLong("storage", "./receipts", "Storage directory path"),
		logLevel:        rootFlags.StringLong("log-level", "info", "Log level: debug, info, warn or error"),
		logFormat:       rootFlags.StringLong("log-format", "text", "Log format: text or json"),
		timezone:        rootFlags.StringLong("timezone", "Europe/Berlin", "Time zone for export dates"),
		defaultCategory: rootFlags.StringLong("default-category", receipt.DefaultCategory, "Category for receipts without one"),
	}
	_ = rootFlags.BoolLong("version", "Show version information")

	serveFlags := ff.NewFlagSet("serve").SetParent(rootFlags)
	serveCfg := serveConfig{
		port:            serveFlags.IntLong("port", 8080, "HTTP server port"),
		scannerType:     serveFlags.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'"),
		geminiKey:       serveFlags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:     serveFlags.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name"),
		ollamaURL:       serveFlags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:     serveFlags.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)"),
		scanTimeout:     serveFlags.DurationLong("scan-timeout", 60*time.Second, "Timeout for one recognition call"),
		reviewThreshold: serveFlags.IntLong("review-threshold", 80, "Overall confidence below which a receipt needs review"),
		fieldThreshold:  serveFlags.IntLong("field-threshold", 60, "Field confidence below which a receipt needs review"),
	}
	serveCmd := &ff.Command{
		Name:      "serve",
		Usage:     "easy-receipt serve [FLAGS]",
		ShortHelp: "run the HTTP server",
		Flags:     serveFlags,
		Exec: func(ctx context.Context, args []string) error {
			return runServe(ctx, cfg, serveCfg)
		},
	}

	exportFlags := ff.NewFlagSet("export").SetParent(rootFlags)
	exportCfg := exportConfig{
		format:   exportFlags.StringLong("format", "csv", "Export format: txt, csv, xlsx or pdf"),
		out:      exportFlags.StringLong("out", ".", "Directory the export file is written to"),
		status:   exportFlags.StringLong("status", "", "Only receipts with this status (PENDING, APPROVED or ALL)"),
		category: exportFlags.StringLong("category", "", "Only receipts in this category"),
	}
	exportCmd := &ff.Command{
		Name:      "export",
		Usage:     "easy-receipt export [FLAGS]",
		ShortHelp: "write approved receipts to a file",
		Flags:     exportFlags,
		Exec: func(ctx context.Context, args []string) error {
			return runExport(ctx, cfg, exportCfg, stdout)
		},
	}

	root := &ff.Command{
		Name:        "easy-receipt",
		Usage:       "easy-receipt <SUBCOMMAND> [FLAGS]",
		Flags:       rootFlags,
		Subcommands: []*ff.Command{serveCmd, exportCmd},
		Exec: func(ctx context.Context, args []string) error {
			return ff.ErrHelp
		},
	}

	if err := root.Parse(args, ff.WithEnvVarPrefix("EASY_RECEIPT")); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(selected(root)))
		if errors.Is(err, ff.ErrHelp) {
			return nil
		}
		return err
	}

	logger, err := newLogger(*cfg.logLevel, *cfg.logFormat, stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if err := root.Run(ctx); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(stderr, "%s\n", ffhelp.Command(selected(root)))
			return nil
		}
		return err
	}
	return nil
}

func selected(root *ff.Command) *ff.Command {
	if cmd := root.GetSelected(); cmd != nil {
		return cmd
	}
	return root
}

// newLogger builds the process logger from the --log-level and --log-format flags
func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q (text or json)", format)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c rootConfig) location() (*time.Location, error) {
	loc, err := time.LoadLocation(*c.timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", *c.timezone, err)
	}
	return loc, nil
}

func (c rootConfig) category() (string, error) {
	category, ok := receipt.CanonicalCategory(*c.defaultCategory)
	if !ok {
		return "", fmt.Errorf("default category %q is not in the catalogue", *c.defaultCategory)
	}
	return category, nil
}

type serveConfig struct {
	port            *int
	scannerType     *string
	geminiKey       *string
	geminiModel     *string
	ollamaURL       *string
	ollamaModel     *string
	scanTimeout     *time.Duration
	reviewThreshold *int
	fieldThreshold  *int
}

func runServe(ctx context.Context, cfg rootConfig, sc serveConfig) error {
	loc, err := cfg.location()
	if err != nil {
		return err
	}
	category, err := cfg.category()
	if err != nil {
		return err
	}

	slog.Info("Initializing database...", "path", *cfg.dbPath)
	db, err := receipt.NewBoltDB(*cfg.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	backend, err := newScanner(sc)
	if err != nil {
		return err
	}
	scanner := scanning.NewBreaker(*sc.scannerType, backend, scanning.DefaultBreakerConfig())
	defer scanner.Close()

	slog.Info("Initializing storage...", "path", *cfg.storagePath)
	store, err := receipt.NewLocalStorage(*cfg.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	policy := receipt.ReviewPolicy{
		OverallThreshold: *sc.reviewThreshold,
		FieldThreshold:   *sc.fieldThreshold,
	}
	service := receipt.NewService(db, scanner, store,
		receipt.WithReviewPolicy(policy),
		receipt.WithDefaultCategory(category),
	)
	engine := export.NewEngine(export.WithLocation(loc))

	srv := server.NewServer(service, engine, metrics.New())
	addr := fmt.Sprintf(":%d", *sc.port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "scanner", *sc.scannerType)
	return srv.Run(ctx, addr)
}

// newScanner builds the configured recognition backend
func newScanner(sc serveConfig) (scanning.Scanner, error) {
	switch *sc.scannerType {
	case "gemini":
		apiKey := *sc.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", *sc.geminiModel)
		scanner, err := scanning.NewGemini(apiKey, *sc.geminiModel, *sc.scanTimeout)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		return scanner, nil
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *sc.ollamaURL, "model", *sc.ollamaModel)
		scanner, err := scanning.NewOllama(*sc.ollamaURL, *sc.ollamaModel, *sc.scanTimeout)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		return scanner, nil
	}
	return nil, fmt.Errorf("invalid scanner type %q: gemini or ollama", *sc.scannerType)
}

type exportConfig struct {
	format   *string
	out      *string
	status   *string
	category *string
}

func runExport(ctx context.Context, cfg rootConfig, ec exportConfig, stdout io.Writer) error {
	format, err := export.ParseFormat(*ec.format)
	if err != nil {
		return err
	}
	filter, err := receipt.NewFilter(*ec.status, *ec.category)
	if err != nil {
		return err
	}
	loc, err := cfg.location()
	if err != nil {
		return err
	}

	db, err := receipt.NewBoltDB(*cfg.dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	store, err := receipt.NewLocalStorage(*cfg.storagePath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	service := receipt.NewService(db, nil, store)

	receipts, err := service.List(ctx, receipt.Filter{})
	if err != nil {
		return err
	}
	result, err := export.NewEngine(export.WithLocation(loc)).Export(ctx, receipts, format, filter)
	if err != nil {
		return err
	}
	if result.Empty() {
		fmt.Fprintln(stdout, "nothing to export")
		return nil
	}

	if err := os.MkdirAll(*ec.out, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(*ec.out, result.Filename)
	if err := os.WriteFile(path, result.Data, 0644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	if _, err := service.RecordExport(ctx, &receipt.ExportRun{
		Format:     string(result.Format),
		Filename:   result.Filename,
		ReceiptIDs: result.ReceiptIDs,
		Rows:       result.Rows,
		GrossTotal: result.GrossTotal,
	}); err != nil {
		slog.Warn("Could not record export run", "filename", result.Filename, "error", err)
	}
	fmt.Fprintf(stdout, "%s (%d receipts)\n", path, result.Rows)
	return nil
}
