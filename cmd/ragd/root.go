package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/generate"
	"github.com/fyrsmithlabs/ragd/internal/index"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/rag"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "ragd",
		Short:         "Retrieval-augmented document question answering",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")

	cmd.AddCommand(
		newServeCmd(&configPath),
		newIngestCmd(&configPath),
		newSearchCmd(&configPath),
		newAskCmd(&configPath),
	)
	return cmd
}

// app bundles everything a command needs after startup.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	service *rag.Service
	store   index.Store
}

func (a *app) close() {
	_ = a.store.Close()
	_ = a.logger.Sync()
}

// buildApp loads configuration and wires the pipeline.
func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL:      cfg.Embedding.BaseURL,
		APIKey:       cfg.Embedding.APIKey.Value(),
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		BatchSize:    cfg.Embedding.BatchSize,
		MaxRetries:   cfg.Embedding.MaxRetries,
		RetryBackoff: cfg.Embedding.RetryBackoff.Duration(),
		Timeout:      cfg.Embedding.Timeout.Duration(),
	}, logger)
	if err != nil {
		return nil, err
	}

	ch, err := chunker.New(chunker.Config{
		MaxChunkSize: cfg.Chunking.MaxChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
		MinChunkSize: cfg.Chunking.MinChunkSize,
	})
	if err != nil {
		return nil, err
	}

	completion := generate.NewOpenAIClient(generate.ClientConfig{
		BaseURL: cfg.Generation.BaseURL,
		APIKey:  cfg.Generation.APIKey.Value(),
		Model:   cfg.Generation.Model,
		Timeout: cfg.Generation.Timeout.Duration(),
	})

	service, err := rag.NewService(rag.Deps{
		Chunker:   ch,
		Embedder:  embedder,
		Store:     store,
		Searcher:  retrieval.New(store, embedder, logger),
		Generator: generate.New(completion, generate.ConfidenceConfig{}, logger),
		Defaults:  cfg.Query,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		service: service,
		store:   store,
	}, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (index.Store, error) {
	switch cfg.Index.Backend {
	case "qdrant":
		return index.NewQdrantStore(ctx, index.QdrantConfig{
			Host:       cfg.Index.Qdrant.Host,
			Port:       cfg.Index.Qdrant.Port,
			APIKey:     cfg.Index.Qdrant.APIKey.Value(),
			UseTLS:     cfg.Index.Qdrant.UseTLS,
			Collection: cfg.Index.Collection,
			VectorSize: cfg.Index.VectorSize,
		})
	case "chromem":
		return index.NewChromemStore(index.ChromemConfig{
			Path:       cfg.Index.Chromem.Path,
			Compress:   cfg.Index.Chromem.Compress,
			Collection: cfg.Index.Collection,
		})
	case "memory":
		return index.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}
