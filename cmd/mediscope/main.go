// Package main is the Mediscope CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinivis/mediscope/internal/cli"
	"github.com/clinivis/mediscope/internal/config"
	"github.com/clinivis/mediscope/internal/embedding"
	"github.com/clinivis/mediscope/internal/imageid"
	"github.com/clinivis/mediscope/internal/indexer"
	"github.com/clinivis/mediscope/internal/keyword"
	"github.com/clinivis/mediscope/internal/models"
	"github.com/clinivis/mediscope/internal/provider"
	"github.com/clinivis/mediscope/internal/search"
	"github.com/clinivis/mediscope/internal/server"
	"github.com/clinivis/mediscope/internal/store"
	"github.com/clinivis/mediscope/internal/watcher"
	"github.com/clinivis/mediscope/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mediscope/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory, so "mediscope server" from the
// project dir uses the project's config.
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
	case "search":
		runSearch()
	case "index":
		runIndex()
	case "fetch":
		runFetch()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("mediscope version %s\n", version)
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
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var watchSvc *watcher.Watcher
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		idx := components.Indexer
		watchSvc = watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				if _, err := idx.IndexFile(context.Background(), path, cfg.Watch.Category); err != nil {
					logger.Warn("watch index failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				abs, _ := filepath.Abs(path)
				if err := idx.Delete(context.Background(), imageid.PathID(abs)); err != nil {
					logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Searcher,
		components.Indexer,
		components.Store,
		components.Keywords,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.Store.SaveIndex(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	if watchSvc != nil {
		watchSvc.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuery joins all positional args with spaces so multi-word queries work
// the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage access)")
	limit := fs.Int("limit", 0, "number of results (0 = configured default)")
	category := fs.String("category", "", "restrict results to a category")
	imagePath := fs.String("image", "", "search by image file instead of text")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "compact":
		format = cli.OutputCompact
	case "text":
	default:
		fmt.Printf("Unknown output format %q; use text, compact, or json\n", *outputFormat)
		os.Exit(1)
	}

	query := &models.SearchQuery{
		Category: *category,
		Limit:    *limit,
	}
	if *imagePath != "" {
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
			os.Exit(1)
		}
		query.Query = "data:image;base64," + base64.StdEncoding.EncodeToString(data)
		query.Type = models.QueryTypeImage
	} else {
		if fs.NArg() < 1 {
			fmt.Println("Usage: mediscope search [flags] <query>")
			os.Exit(1)
		}
		query.Query = buildQuery(fs.Args())
		query.Type = models.QueryTypeText
	}

	if *serverURL != "" {
		response, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct storage access (when server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	response, err := components.Searcher.Search(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	category := fs.String("category", "general", "category for indexed images")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mediscope index [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Indexer.IndexDirectory(ctx, path, *category)
		if err != nil {
			fmt.Printf("Indexing directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Indexed %d image(s) from %s\n", n, path)
		return
	}
	id, err := components.Indexer.IndexFile(ctx, path, *category)
	if err != nil {
		fmt.Printf("Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Image indexed successfully: %s\n", id)
}

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	category := fs.String("category", "", "category for fetched images (default from config)")
	limit := fs.Int("limit", 0, "number of images to fetch (0 = configured default)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mediscope fetch [flags] <query>")
		os.Exit(1)
	}
	query := buildQuery(fs.Args())

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if *category == "" {
		*category = cfg.Providers.DefaultCategory
	}
	if *limit <= 0 {
		*limit = cfg.Search.DefaultLimit
	}
	ids, err := components.Indexer.FetchAndIndex(context.Background(), query, *category, *limit)
	if err != nil {
		fmt.Printf("Fetch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fetched and indexed %d image(s)\n", len(ids))
	for _, id := range ids {
		fmt.Println(id)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mediscope delete [flags] <image-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Indexer.Delete(context.Background(), id); err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Image deleted: %s\n", id)
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Images          int64 `json:"images"`
	VectorIndexSize int   `json:"vector_index_size"`
	Config          struct {
		EmbeddingDimensions int     `json:"embedding_dimensions"`
		Threshold           float64 `json:"threshold"`
		DefaultLimit        int     `json:"default_limit"`
		DatabasePath        string  `json:"database_path"`
	} `json:"config"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		count, err := components.Store.Count(context.Background(), "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count failed: %v\n", err)
			os.Exit(1)
		}
		status.Images = count
		status.VectorIndexSize = components.Store.IndexSize()
		status.Config.EmbeddingDimensions = cfg.Embedding.Dimensions
		status.Config.Threshold = cfg.Search.Threshold
		status.Config.DefaultLimit = cfg.Search.DefaultLimit
		status.Config.DatabasePath = cfg.Storage.DatabasePath
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("images:             %d\n", status.Images)
		fmt.Printf("vector_index_size:  %d\n", status.VectorIndexSize)
		fmt.Println()
		fmt.Println("# configuration")
		fmt.Printf("embedding_dims:     %d\n", status.Config.EmbeddingDimensions)
		fmt.Printf("threshold:          %.2f\n", status.Config.Threshold)
		fmt.Printf("default_limit:      %d\n", status.Config.DefaultLimit)
		if status.Config.DatabasePath != "" {
			fmt.Printf("database_path:      %s\n", status.Config.DatabasePath)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Store    store.Store
	Embedder embedding.Embedder
	Keywords keyword.Index
	Searcher *search.Searcher
	Indexer  *indexer.Indexer
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Keywords != nil {
		_ = c.Keywords.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath, cfg.Embedding.Dimensions, cfg.Storage.VectorIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	var embedder embedding.Embedder
	clipEmbedder, err := embedding.NewCLIPEmbedder(
		cfg.Embedding.TextModelPath,
		cfg.Embedding.ImageModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		logger.Warn("CLIP models unavailable, using deterministic mock embedder", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = clipEmbedder
	}

	keywords, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	var providers []provider.Provider
	if cfg.Providers.PexelsAPIKey != "" {
		providers = append(providers, provider.NewPexelsClient(cfg.Providers.PexelsAPIKey, cfg.Providers.DefaultCategory))
	}
	if cfg.Providers.PixabayAPIKey != "" {
		providers = append(providers, provider.NewPixabayClient(cfg.Providers.PixabayAPIKey, cfg.Providers.DefaultCategory))
	}
	var aggregator *provider.Aggregator
	if len(providers) > 0 {
		aggregator = provider.NewAggregator(
			providers,
			cfg.Providers.Timeout(),
			cfg.Providers.DomainTerms,
			cfg.Providers.DomainSuffix,
			cfg.Providers.ImageFallbackKeywords,
			provider.WithLogger(logger),
			provider.WithRand(rand.New(rand.NewSource(time.Now().UnixNano()))),
		)
	} else {
		logger.Info("no provider API keys configured, fallback search disabled")
	}

	var fallback search.Fallback
	if aggregator != nil {
		fallback = aggregator
	}
	searcher := search.NewSearcher(embedder, st, fallback, cfg.Search, search.WithLogger(logger))

	var fetcher indexer.Fetcher
	if aggregator != nil {
		fetcher = aggregator
	}
	idx := indexer.NewIndexer(st, embedder, keywords, fetcher,
		indexer.WithLogger(logger),
		indexer.WithExtensions(cfg.Watch.Extensions),
	)

	return &Components{
		Store:    st,
		Embedder: embedder,
		Keywords: keywords,
		Searcher: searcher,
		Indexer:  idx,
	}, nil
}

func printUsage() {
	fmt.Println(`mediscope - Semantic medical image search

Usage:
  mediscope server [flags]           Start the HTTP server
  mediscope search [flags] <query>   Search images by text (or --image <file>)
  mediscope index [flags] <path>     Index an image file or directory
  mediscope fetch [flags] <query>    Fetch images from providers and index them
  mediscope delete [flags] <id>      Delete an image record
  mediscope status [flags]           Show store/index status
  mediscope version                  Show version
  mediscope help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mediscope/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --limit int        Number of results (default from config)
  --category string  Restrict results to a category
  --image string     Search by an image file instead of text
  --output string    Output format: text, compact, or json (default: text)

Index Flags:
  --config string    Config file path
  --category string  Category for indexed images (default: general)

Fetch Flags:
  --config string    Config file path
  --category string  Category for fetched images (default from config)
  --limit int        Number of images to fetch

Examples:
  mediscope server
  mediscope search "chest xray"
  mediscope search --image scan.png
  mediscope search --output json "brain mri"
  mediscope index --category healthcare ./images
  mediscope fetch "knee mri"
  mediscope delete img:4f2a...
  mediscope status`)
}
