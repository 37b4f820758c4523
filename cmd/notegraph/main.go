// Package main implements the notegraph CLI: indexing, searching and link
// analysis for a Markdown notes vault backed by an embedded vector store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/notegraph/internal/chunker"
	"github.com/fyrsmithlabs/notegraph/internal/config"
	"github.com/fyrsmithlabs/notegraph/internal/embeddings"
	"github.com/fyrsmithlabs/notegraph/internal/links"
	"github.com/fyrsmithlabs/notegraph/internal/logging"
	"github.com/fyrsmithlabs/notegraph/internal/notes"
	"github.com/fyrsmithlabs/notegraph/internal/vectorstore"
)

var (
	// configPath is the --config flag value; empty means the default
	// ~/.config/notegraph/config.yaml.
	configPath string
	// logLevel overrides the configured log level when set.
	logLevel string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "notegraph",
	Short: "Vector-indexed knowledge graph for Markdown notes",
	Long: `notegraph indexes a Markdown notes vault into an embedded vector store and
answers semantic queries over it: similarity search, wiki-link graphs,
backlinks, and suggested connections.

Configuration is read from ~/.config/notegraph/config.yaml, overridden by
NOTEGRAPH_* environment variables. A .env file in the working directory is
loaded if present.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/notegraph/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(watchCmd)
}

// app bundles the wired services behind every subcommand.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	embedder embeddings.Provider
	store    *vectorstore.Store
	chunker  *chunker.Service
}

// newApp loads configuration and connects the embedding provider and the
// vector store. Call close when done.
func newApp(ctx context.Context) (*app, error) {
	// Best effort; a missing .env file is the normal case.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewProvider(embeddings.Config{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BatchSize: cfg.Embeddings.BatchSize,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	store, err := vectorstore.NewStore(ctx, vectorstore.Config{
		Path:     cfg.VectorStore.Path,
		Compress: cfg.VectorStore.Compress,
		Model:    cfg.Embeddings.Model,
	}, embedder, logger)
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	chunkSvc := chunker.NewService(chunker.Config{
		MinChunkSize: cfg.VectorStore.ChunkSizeMin,
		MaxChunkSize: cfg.VectorStore.ChunkSizeMax,
	}, nil, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		embedder: embedder,
		store:    store,
		chunker:  chunkSvc,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing vector store", zap.Error(err))
	}
	if err := a.embedder.Close(); err != nil {
		a.logger.Warn("closing embedding provider", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// newScanner builds the vault scanner from config.
func (a *app) newScanner() (*notes.Scanner, error) {
	return notes.NewScanner(a.cfg.Notes.RootDir, a.cfg.Notes.ExcludePatterns, a.logger)
}

// newIndexer builds the index pipeline from config.
func (a *app) newIndexer(scanner *notes.Scanner) *notes.Indexer {
	return notes.NewIndexer(scanner, a.chunker, a.embedder, a.store, a.logger)
}

// newLinkService builds the relationship service from config.
func (a *app) newLinkService() (*links.Service, error) {
	return links.NewService(links.Config{
		NotesRoot:           a.cfg.Notes.RootDir,
		SemanticThreshold:   float32(a.cfg.VectorStore.SemanticLinkThreshold),
		SemanticLimit:       a.cfg.VectorStore.SemanticLinkLimit,
		SuggestionThreshold: float32(a.cfg.VectorStore.SuggestionThreshold),
		SuggestionLimit:     a.cfg.VectorStore.SuggestionLimit,
	}, a.store, a.chunker, a.embedder, a.logger)
}
