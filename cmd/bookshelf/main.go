// Package main is the bookshelf CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/bookshelf/internal/catalog"
	"github.com/hyperjump/bookshelf/internal/cli"
	"github.com/hyperjump/bookshelf/internal/config"
	"github.com/hyperjump/bookshelf/internal/indexer"
	"github.com/hyperjump/bookshelf/internal/keyword"
	"github.com/hyperjump/bookshelf/internal/models"
	"github.com/hyperjump/bookshelf/internal/recommend"
	"github.com/hyperjump/bookshelf/internal/scoring"
	"github.com/hyperjump/bookshelf/internal/search"
	"github.com/hyperjump/bookshelf/internal/server"
	"github.com/hyperjump/bookshelf/internal/storage"
	"github.com/hyperjump/bookshelf/internal/watcher"
	"github.com/hyperjump/bookshelf/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/bookshelf/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "search":
		runSearch()
	case "import":
		runImport()
	case "reindex":
		runReindex()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("bookshelf version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fail("%v", err)
	}
	return format
}

// openDirect loads config and initializes components for commands that bypass the server.
func openDirect(configPath string, debug bool) (*Components, *config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewCLILogger(debugMode)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}
	return components, cfg, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (catalog imports, scorer calls, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchSvc := newCatalogWatcher(cfg, components.Importer, logger, debugMode)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Engine,
		components.Recommender,
		components.Indexer,
		components.Storage,
		cfg,
		logger,
		server.WithWatch(watchSvc, resolvedConfigPath),
		server.WithKeywordIndex(components.KeywordIndex),
		server.WithScorer(components.Scorer),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// newCatalogWatcher wires the configured catalog directories to the importer.
// Removing a catalog file leaves its books in place.
func newCatalogWatcher(cfg *config.Config, importer *catalog.Importer, logger *zap.Logger, debug bool) *watcher.Watcher {
	opts := []watcher.WatcherOption{
		watcher.WithRemoveHandler(func(path string) {
			logger.Info("catalog file removed; imported books are kept", zap.String("path", path))
		}),
	}
	if debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	return watcher.NewWatcher(
		cfg.Catalog.Directories,
		cfg.Catalog.Extensions,
		cfg.Catalog.RecursiveOrDefault(),
		func(ctx context.Context, path string) error {
			_, err := importer.ImportFile(ctx, path)
			return err
		},
		opts...,
	)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops
// at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: bookshelf search [flags] [query]\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces; no query lists the catalog by title.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Title and author words are matched first, then with typo tolerance, then as a substring.

Examples:
  bookshelf search jane austen
  bookshelf search --page 2 --limit 20 "science fiction"
  bookshelf search --output json dune
`)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage when server is not running)")
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 0, "books per page (0 = configured default)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format := parseFormat(*outputFormat)
	query := &models.BookQuery{Query: buildSearchQuery(fs.Args()), Page: *page, Limit: *limit}

	var (
		result *models.BookPage
		err    error
	)
	if *serverURL != "" {
		// Use HTTP API when server is running (avoids Bleve/SQLite lock conflict).
		params := url.Values{}
		params.Set("q", query.Query)
		params.Set("page", strconv.Itoa(query.Page))
		params.Set("limit", strconv.Itoa(query.Limit))
		result = &models.BookPage{}
		err = getJSON(*serverURL+"/api/v1/books?"+params.Encode(), result)
	} else {
		components, _, logger := openDirect(*configPath, false)
		defer func() { _ = logger.Sync() }()
		defer components.Close()
		result, err = components.Engine.Search(context.Background(), query)
	}
	if err != nil {
		fail("Search failed: %v", err)
	}
	if err := cli.WriteBookPage(os.Stdout, result, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 0, "books per page (0 = configured default)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	debug := fs.Bool("debug", false, "log encoder and scorer diagnostics (direct mode)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: bookshelf recommend [flags] <user-id>")
		os.Exit(1)
	}
	userID := fs.Arg(0)
	format := parseFormat(*outputFormat)

	var (
		rec *models.Recommendation
		err error
	)
	if *serverURL != "" {
		params := url.Values{}
		params.Set("page", strconv.Itoa(*page))
		params.Set("limit", strconv.Itoa(*limit))
		rec = &models.Recommendation{}
		err = getJSON(*serverURL+"/api/v1/users/"+url.PathEscape(userID)+"/recommendations?"+params.Encode(), rec)
	} else {
		components, _, logger := openDirect(*configPath, *debug)
		defer func() { _ = logger.Sync() }()
		defer components.Close()
		rec, err = components.Recommender.Recommend(context.Background(), userID, *page, *limit)
	}
	if err != nil {
		fail("Recommend failed: %v", err)
	}
	if err := cli.WriteRecommendation(os.Stdout, rec, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	assign := fs.Bool("assign", false, "assign dense indices to new books after importing")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: bookshelf import [flags] <catalog.json|.csv|.xlsx> ...")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	components, _, logger := openDirect(*configPath, false)
	defer func() { _ = logger.Sync() }()
	defer components.Close()

	ctx := context.Background()
	failed := false
	for _, path := range fs.Args() {
		summary, err := components.Importer.ImportFile(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Import %s failed: %v\n", path, err)
			failed = true
			continue
		}
		if err := cli.WriteImportSummary(os.Stdout, summary, format); err != nil {
			fail("Output failed: %v", err)
		}
	}
	if *assign {
		assigned, err := components.Indexer.AssignDenseIndexes(ctx)
		if err != nil {
			fail("Dense index assignment failed: %v", err)
		}
		if err := cli.WriteAssignments(os.Stdout, assigned, format); err != nil {
			fail("Output failed: %v", err)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	rebuildSearch := fs.Bool("search", false, "also rebuild the keyword search index (direct mode only)")
	batchSize := fs.Int("batch", 500, "books per keyword index batch")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	if *rebuildSearch && *serverURL != "" {
		fail(`--search needs exclusive index access; stop the server and pass --server ""`)
	}

	var assigned []storage.DenseAssignment
	if *serverURL != "" {
		var out struct {
			Assignments []storage.DenseAssignment `json:"assignments"`
		}
		if err := postJSON(*serverURL+"/api/v1/maintenance/dense-index", nil, http.StatusOK, &out); err != nil {
			fail("Reindex failed: %v", err)
		}
		assigned = out.Assignments
	} else {
		components, _, logger := openDirect(*configPath, false)
		defer func() { _ = logger.Sync() }()
		defer components.Close()
		ctx := context.Background()
		var err error
		if assigned, err = components.Indexer.AssignDenseIndexes(ctx); err != nil {
			fail("Reindex failed: %v", err)
		}
		if *rebuildSearch {
			n, err := components.Indexer.RebuildKeywordIndex(ctx, *batchSize)
			if err != nil {
				fail("Keyword index rebuild failed: %v", err)
			}
			fmt.Fprintf(os.Stderr, "Rebuilt keyword index with %d book(s)\n", n)
		}
	}
	if err := cli.WriteAssignments(os.Stdout, assigned, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	var (
		status *models.Status
		err    error
	)
	if *serverURL != "" {
		status = &models.Status{}
		err = getJSON(*serverURL+"/api/v1/status", status)
	} else {
		components, cfg, logger := openDirect(*configPath, false)
		defer func() { _ = logger.Sync() }()
		defer components.Close()
		status, err = server.CollectStatus(context.Background(), components.Storage, components.KeywordIndex, components.Scorer, cfg)
		if err == nil {
			status.Directories = cfg.Catalog.Directories
		}
	}
	if err != nil {
		fail("Status failed: %v", err)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: bookshelf watch <add|remove|list> [path]")
		fmt.Println("  bookshelf watch add <path>     Add catalog directory to watch")
		fmt.Println("  bookshelf watch remove <path>  Remove catalog directory from watch")
		fmt.Println("  bookshelf watch list           List watched catalog directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "do not import files already in the directory")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	endpoint := *serverURL + "/api/v1/catalog/directories"

	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fail("Usage: bookshelf watch add <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body := map[string]interface{}{"path": path, "sync": !*noSync}
		if err := postJSON(endpoint, body, http.StatusCreated, nil); err != nil {
			fail("Add failed: %v", err)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fail("Usage: bookshelf watch remove <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, endpoint+"?path="+url.QueryEscape(path), nil)
		if err := doJSON(req, http.StatusOK, nil); err != nil {
			fail("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := getJSON(endpoint, &out); err != nil {
			fail("List failed: %v", err)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fail("Unknown watch subcommand: %s", sub)
	}
}

func getJSON(target string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return doJSON(req, http.StatusOK, out)
}

func postJSON(target string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(http.MethodPost, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(req, wantStatus, out)
}

// doJSON sends req and decodes the response into out when out is non-nil.
func doJSON(req *http.Request, wantStatus int, out interface{}) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	KeywordIndex keyword.Index
	Scorer       scoring.Scorer
	Engine       *search.Engine
	Recommender  *recommend.Recommender
	Indexer      *indexer.Indexer
	Importer     *catalog.Importer
}

func (c *Components) Close() {
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Scorer != nil {
		_ = c.Scorer.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// newScorer loads the ONNX model and wraps it with a timeout and circuit breaker.
// Without a usable model it falls back to the mock scorer.
func newScorer(cfg config.ModelConfig, logger *zap.Logger) (scoring.Scorer, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	cooldown, err := cfg.Cooldown()
	if err != nil {
		return nil, err
	}

	var inner scoring.Scorer
	name := "onnx"
	if cfg.ModelPath == "" {
		logger.Warn("no scorer model configured, using mock scorer")
	} else if onnxScorer, onnxErr := scoring.NewONNXScorer(
		cfg.ModelPath, cfg.LibraryPath, cfg.InputName, cfg.OutputName, cfg.InputWidth, cfg.OutputWidth,
	); onnxErr != nil {
		logger.Warn("failed to load scorer model, using mock scorer",
			zap.String("model_path", cfg.ModelPath), zap.Error(onnxErr))
	} else {
		inner = onnxScorer
	}
	if inner == nil {
		inner = scoring.NewMockScorer(cfg.InputWidth, cfg.DirectIndexSlots)
		name = "mock"
	}

	return scoring.NewGuardedScorer(inner, scoring.GuardConfig{
		Name:             name,
		Timeout:          timeout,
		FailureThreshold: cfg.BreakerFailures,
		Cooldown:         cooldown,
	}, logger), nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	components := &Components{Storage: store}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	components.KeywordIndex = keywordIndex

	scorer, err := newScorer(cfg.Model, logger)
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to initialize scorer: %w", err)
	}
	components.Scorer = scorer

	encoder, err := recommend.NewEncoder(cfg.Model.InputWidth, cfg.Model.DirectIndexSlots, logger)
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to initialize encoder: %w", err)
	}

	components.Engine = search.NewEngine(store, keywordIndex, search.Config{
		DefaultLimit: cfg.Recommend.DefaultLimit,
		MaxLimit:     cfg.Recommend.MaxLimit,
	}, logger)
	components.Recommender = recommend.New(store, scorer, encoder, recommend.Config{
		TopK:         cfg.Model.TopK,
		DefaultLimit: cfg.Recommend.DefaultLimit,
		MaxLimit:     cfg.Recommend.MaxLimit,
	}, recommend.WithLogger(logger))

	idxOpts := []indexer.IndexerOption{}
	if debug && logger != nil {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	components.Indexer = indexer.NewIndexer(store, keywordIndex, idxOpts...)
	components.Importer = catalog.NewImporter(components.Indexer, logger)
	return components, nil
}

func printUsage() {
	fmt.Println(`bookshelf - Book catalog with personalized recommendations

Usage:
  bookshelf server [flags]              Start the HTTP server
  bookshelf recommend [flags] <user>    Recommend books for a user
  bookshelf search [flags] [query]      Search the catalog by title or author
  bookshelf import [flags] <file>...    Import a JSON, CSV, or XLSX catalog
  bookshelf reindex [flags]             Assign dense indices to new books
  bookshelf status [flags]              Show catalog, index, and model status
  bookshelf watch <add|remove|list>     Manage watched catalog directories
  bookshelf version                     Show version
  bookshelf help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/bookshelf/config.yaml)
  --debug            Enable debug logging

Search / Recommend Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --page int         Page number (default: 1)
  --limit int        Books per page (default from config)
  --output string    Output format: text, compact, or json (default: text)

Import Flags:
  --config string    Config file path
  --assign           Assign dense indices after importing
  --output string    Output format: text or json

Reindex Flags:
  --server string    Server URL; use --server "" for direct storage
  --search           Also rebuild the keyword search index (direct mode only)
  --batch int        Books per keyword index batch (default: 500)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)
  --no-sync          Do not import files already in an added directory

Examples:
  bookshelf server
  bookshelf import --assign books.csv
  bookshelf search jane austen
  bookshelf recommend --limit 12 alice
  bookshelf recommend --server "" --output json alice
  bookshelf reindex --server "" --search
  bookshelf watch add ~/catalogs`)
}
