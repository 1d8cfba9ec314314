// Package main is the ruiji CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/cli"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/search"
	"github.com/hyperjump/ruiji/internal/server"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/internal/tui"
	"github.com/hyperjump/ruiji/internal/watcher"
	"github.com/hyperjump/ruiji/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/ruiji/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development). A missing default config
// file is not an error: defaults and RUIJI_* variables are used instead.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
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
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			if err := config.ApplyEnv(cfg); err != nil {
				return nil, "", err
			}
			config.ApplyDefaults(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A .env in the working directory feeds RUIJI_* overrides.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "similar":
		runSimilar()
	case "lookup":
		runLookup()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "queries":
		runQueries()
	case "repl":
		runRepl()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("ruiji version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
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
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("format", cfg.Embedding.Format),
	)

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if path := components.Loader.WatchPath(); cfg.Watch.Enabled && path != "" {
		engine := components.Engine
		watchSvc = watcher.NewWatcher(
			[]string{path},
			func(changed string) {
				if err := engine.Reload(watchCtx); err != nil {
					logger.Warn("watch reload failed", zap.String("path", changed), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	} else if cfg.Watch.Enabled {
		logger.Info("watch enabled but the sqlite format has no source file; use POST /api/v1/reload")
	}

	srv := server.NewServer(components.Engine, &cfg.Server, logger)
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
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func printSimilarUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: ruiji similar [flags] <word> [word...]\n\n")
	fmt.Fprintf(fs.Output(), "Several words are averaged into one query vector. Flags may come before or after the words.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  ruiji similar king
  ruiji similar king woman --top 5
  ruiji similar --output json paris
  ruiji similar --server "" frog     # load the vectors locally instead of asking the server
`)
}

// buildWords splits all positional args into query words, so quoted and unquoted
// phrases behave the same.
func buildWords(args []string) []string {
	return utils.SplitWords(strings.Join(args, " "))
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v
		}
	}
	return defaultPath
}

// defaultTopNFromConfig returns query.default_top_n from the config at path, or
// models.DefaultTopN when the config cannot be loaded.
func defaultTopNFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil || cfg.Query.DefaultTopN < 1 {
		return models.DefaultTopN
	}
	return cfg.Query.DefaultTopN
}

// argsReorder moves any flags (and their values) that appear after the words to the
// front so that flag.Parse() sees them. Go's flag package stops at the first non-flag
// argument, so "ruiji similar king --top 5" would otherwise leave --top unparsed.
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

func runSimilar() {
	args := argsReorder(os.Args[2:])
	configPath := configPathFromArgs(args, defaultConfigPath)

	fs := flag.NewFlagSet("similar", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load vectors locally)")
	top := fs.Int("top", defaultTopNFromConfig(configPath), "number of neighbours")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printSimilarUsage(fs) }
	_ = fs.Parse(args)

	words := buildWords(fs.Args())
	if len(words) == 0 {
		printSimilarUsage(fs)
		os.Exit(1)
	}
	format := mustOutputFormat(*outputFormat)
	query := &models.SimilarityQuery{Words: words, TopN: *top}

	var (
		resp *models.SimilarityResponse
		err  error
	)
	if *serverURL != "" {
		client := newAPIClient(*serverURL)
		resp, err = client.Similar(context.Background(), query)
		var apiErr *apiError
		if errors.As(err, &apiErr) && len(apiErr.Body.Unknown) > 0 {
			cli.WriteUnknownWords(os.Stderr, apiErr.Body.Unknown, apiErr.Body.Suggestions)
			os.Exit(1)
		}
	} else {
		components := mustLocalComponents(*configPathFlag, *debug)
		defer components.Close()
		resp, err = components.Engine.Similar(context.Background(), query)
		var uw *embedding.UnknownWordError
		if errors.As(err, &uw) {
			cli.WriteUnknownWords(os.Stderr, uw.Words, components.Engine.Suggest(uw.Words))
			components.Close()
			os.Exit(1)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSimilarResults(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runLookup() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load vectors locally)")
	values := fs.Int("values", 10, "number of vector components to print in text output (0 = all)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	words := buildWords(fs.Args())
	if len(words) == 0 {
		fmt.Println("Usage: ruiji lookup [flags] <word> [word...]")
		os.Exit(1)
	}
	format := mustOutputFormat(*outputFormat)

	var (
		lookup  func(word string) (*models.WordVector, error)
		suggest = func([]string) map[string][]string { return nil }
	)
	if *serverURL != "" {
		client := newAPIClient(*serverURL)
		lookup = func(word string) (*models.WordVector, error) {
			return client.Lookup(context.Background(), word)
		}
	} else {
		components := mustLocalComponents(*configPath, *debug)
		defer components.Close()
		lookup = components.Engine.Lookup
		suggest = components.Engine.Suggest
	}

	failed := false
	for _, word := range words {
		wv, err := lookup(word)
		if err != nil {
			failed = true
			var apiErr *apiError
			var uw *embedding.UnknownWordError
			switch {
			case errors.As(err, &apiErr) && len(apiErr.Body.Unknown) > 0:
				cli.WriteUnknownWords(os.Stderr, apiErr.Body.Unknown, apiErr.Body.Suggestions)
			case errors.As(err, &uw):
				cli.WriteUnknownWords(os.Stderr, uw.Words, suggest(uw.Words))
			default:
				fmt.Fprintf(os.Stderr, "Lookup %q failed: %v\n", word, err)
			}
			continue
		}
		if err := cli.WriteWordVector(os.Stdout, wv, format, *values); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	toDB := fs.Bool("db", false, "import the text file into the SQLite database")
	toSnapshot := fs.Bool("snapshot", false, "write a binary snapshot of the text file")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if !*toDB && !*toSnapshot {
		fmt.Println("Usage: ruiji import [--config path] --db and/or --snapshot")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var store storage.Storage
	if *toDB {
		sqliteStore, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Printf("Failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer sqliteStore.Close()
		store = sqliteStore
	}

	start := time.Now()
	loader := search.NewLoader(cfg.Embedding, store, logger)
	idx, err := search.Import(context.Background(), loader, *toDB, *toSnapshot)
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d words (%d dimensions) from %s in %s\n",
		idx.Len(), idx.Dimensions(), cfg.Embedding.Path, time.Since(start).Round(time.Millisecond))
	if *toDB {
		fmt.Printf("  database: %s\n", cfg.Storage.DatabasePath)
	}
	if *toSnapshot {
		fmt.Printf("  snapshot: %s\n", cfg.Embedding.SnapshotPath)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load vectors locally)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])
	format := mustOutputFormat(*outputFormat)

	var (
		st  *models.Status
		err error
	)
	if *serverURL != "" {
		st, err = newAPIClient(*serverURL).Status(context.Background())
	} else {
		components := mustLocalComponents(*configPath, *debug)
		defer components.Close()
		st = components.Engine.Status(context.Background())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runQueries() {
	fs := flag.NewFlagSet("queries", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the database directly)")
	limit := fs.Int("limit", 20, "number of queries to show")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := mustOutputFormat(*outputFormat)

	var (
		entries []*models.QueryLogEntry
		err     error
	)
	if *serverURL != "" {
		entries, err = newAPIClient(*serverURL).RecentQueries(context.Background(), *limit)
	} else {
		cfg, _, cfgErr := loadConfig(*configPath)
		if cfgErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", cfgErr)
			os.Exit(1)
		}
		store, openErr := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if openErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", openErr)
			os.Exit(1)
		}
		defer store.Close()
		entries, err = store.RecentQueries(context.Background(), *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Queries failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteQueryLog(os.Stdout, entries, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runRepl() {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	top := fs.Int("top", 0, "number of neighbours (default from config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	components := mustComponents(cfg, *debug)
	defer components.Close()

	topN := *top
	if topN < 1 {
		topN = cfg.Query.DefaultTopN
	}
	idx := components.Engine.Index()
	summary := fmt.Sprintf("%d words, %d dimensions, from %s", idx.Len(), idx.Dimensions(), components.Loader.Source())
	p := tea.NewProgram(tui.New(components.Engine, topN, summary), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI failed: %v\n", err)
		os.Exit(1)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "config file to write")
	embeddingPath := fs.String("embedding", "", "GloVe text file to serve")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*path, *embeddingPath, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *path)
}

// writeDefaultConfig writes a config with every default spelled out.
func writeDefaultConfig(path, embeddingPath string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	cfg := &config.Config{}
	cfg.Embedding.Path = embeddingPath
	config.ApplyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return config.Save(path, cfg)
}

func mustOutputFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// mustLocalComponents loads config and vectors for a one-shot command, exiting on failure.
func mustLocalComponents(configPath string, debug bool) *Components {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return mustComponents(cfg, debug)
}

func mustComponents(cfg *config.Config, debug bool) *Components {
	logger, err := utils.NewCommandLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components
}

// Components holds initialized services.
type Components struct {
	Storage storage.Storage
	Loader  *search.Loader
	Engine  *search.Engine
	logger  *zap.Logger
}

// Close releases the engine and the database. It is safe to call twice.
func (c *Components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
		c.Engine = nil
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
		c.Storage = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// initializeComponents opens the database when the format or the query log needs it,
// loads the index and builds the engine.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{logger: logger}
	if cfg.Embedding.Format == config.FormatSQLite || cfg.Query.LogQueries {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		c.Storage = store
	}

	c.Loader = search.NewLoader(cfg.Embedding, c.Storage, logger)
	start := time.Now()
	idx, err := c.Loader.Load(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	logger.Info("embeddings loaded",
		zap.String("source", c.Loader.Source()),
		zap.Int("words", idx.Len()),
		zap.Int("dimensions", idx.Dimensions()),
		zap.Duration("took", time.Since(start)),
	)

	opts := []search.EngineOption{
		search.WithLoader(c.Loader),
		search.WithLogger(logger),
		search.WithQueryConfig(cfg.Query),
		search.WithSuggestConfig(cfg.Suggest),
		search.WithDiskPaths(diskPaths(cfg)...),
	}
	if c.Storage != nil {
		opts = append(opts, search.WithStorage(c.Storage))
	}
	engine, err := search.NewEngine(idx, opts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	c.Engine = engine
	return c, nil
}

// diskPaths lists the files whose size the status reports for the configured format.
func diskPaths(cfg *config.Config) []string {
	switch cfg.Embedding.Format {
	case config.FormatSnapshot:
		return []string{cfg.Embedding.SnapshotPath}
	case config.FormatSQLite:
		return []string{cfg.Storage.DatabasePath}
	default:
		return []string{cfg.Embedding.Path}
	}
}

func printUsage() {
	fmt.Println(`ruiji - word embedding lookup and similarity service

Usage:
  ruiji server [flags]                 Start the HTTP server
  ruiji similar [flags] <word...>      Show the nearest words (several words are averaged)
  ruiji lookup [flags] <word...>       Print stored vectors
  ruiji import [flags]                 Convert the text file to a snapshot and/or SQLite
  ruiji status [flags]                 Show the served vocabulary
  ruiji queries [flags]                Show recently logged queries
  ruiji repl [flags]                   Interactive nearest-word explorer
  ruiji init [flags]                   Write a config file with the defaults
  ruiji version                        Show version
  ruiji help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/ruiji/config.yaml, or ./config.yaml if present)
  --debug            Enable debug logging

Client Flags (similar, lookup, status, queries):
  --server string    Server URL (default: http://localhost:8080). Use --server "" to load locally.
  --output string    Output format: text or json (default: text)

Similar Flags:
  --top int          Number of neighbours (default: query.default_top_n from config)

Lookup Flags:
  --values int       Vector components to print in text output (default: 10, 0 = all)

Import Flags:
  --db               Write the vocabulary to the SQLite database (embedding.format: sqlite)
  --snapshot         Write a binary snapshot (embedding.format: snapshot)

Init Flags:
  --config string    File to write (default: config.yaml)
  --embedding string GloVe text file to serve
  --force            Overwrite an existing file

Examples:
  ruiji init --embedding ./glove.6B.100d.txt
  ruiji server
  ruiji similar king
  ruiji similar king woman --top 5
  ruiji similar --output json frog
  ruiji lookup --values 0 paris
  ruiji import --db --snapshot
  ruiji status --server ""
  ruiji repl`)
}
