// Package app builds the question answering pipeline from configuration.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"resume-rag/internal/chromemdb"
	"resume-rag/internal/config"
	"resume-rag/internal/embedding"
	"resume-rag/internal/fetcher"
	"resume-rag/internal/fetcher/gcs"
	"resume-rag/internal/llmservice"
	"resume-rag/internal/rag"
	"resume-rag/internal/retriever"
	"resume-rag/internal/server"
)

// StoreFactory opens the bucket the index is published to.
type StoreFactory func(ctx context.Context, cfg config.StorageConfig) (fetcher.ObjectStore, error)

// GCSStore opens Google Cloud Storage with the configured credentials.
func GCSStore(ctx context.Context, cfg config.StorageConfig) (fetcher.ObjectStore, error) {
	return gcs.New(ctx, cfg.CredentialsJSON)
}

// Options override the external clients; zero values use the real ones.
type Options struct {
	Store     StoreFactory
	Embedder  embeddings.Embedder
	LLM       llms.Model
	SkipFetch bool
}

// App is the running pipeline, shared read-only by every request.
type App struct {
	Config *config.Config
	Index  *chromemdb.VectorDBManager
	RAG    *rag.RAG
}

// Bootstrap validates cfg, mirrors the index locally, loads it and wires the
// pipeline. Any error here is fatal: nothing has been served yet.
func Bootstrap(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !opts.SkipFetch {
		if _, err := FetchIndex(ctx, cfg, opts.Store); err != nil {
			return nil, err
		}
	}

	embedder := opts.Embedder
	if embedder == nil {
		e, err := embedding.NewEmbedder(&cfg.EmbedLLM)
		if err != nil {
			return nil, err
		}
		embedder = e
	}

	index, err := chromemdb.Load(ctx, cfg.Storage.LocalDir,
		embedding.EmbeddingFunc(embedder, cfg.EmbedLLM.Timeout()),
		chromemdb.LoadOptions{
			EmbeddingModel: cfg.EmbedLLM.Model,
			Dimensions:     cfg.EmbedLLM.Dimensions,
			EncryptionKey:  cfg.RAG.EncryptionKey,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load index from %s: %w", cfg.Storage.LocalDir, err)
	}

	ret, err := retriever.New(index, retriever.Options{
		K:         cfg.RAG.K,
		FetchK:    cfg.RAG.FetchK,
		Diversity: cfg.RAG.Diversity,
	})
	if err != nil {
		return nil, err
	}

	llm := opts.LLM
	if llm == nil {
		l, err := llmservice.NewLLM(&cfg.LLM)
		if err != nil {
			return nil, err
		}
		llm = l
	}

	log.Info().
		Str("model", cfg.LLM.Model).
		Str("embedding_model", cfg.EmbedLLM.Model).
		Int("documents", index.Count()).
		Msg("Pipeline ready")

	return &App{
		Config: cfg,
		Index:  index,
		RAG:    rag.NewRAG(ret, llmservice.NewGenerator(llm, &cfg.LLM), source(cfg.Storage)),
	}, nil
}

// FetchIndex downloads the published index into the local index dir.
func FetchIndex(ctx context.Context, cfg *config.Config, newStore StoreFactory) (fetcher.Report, error) {
	if cfg.Storage.CredentialsJSON == "" {
		log.Error().Msg("GOOGLE_CREDENTIALS_JSON not found, falling back to application default credentials")
	}
	if newStore == nil {
		newStore = GCSStore
	}

	if cfg.Storage.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Storage.TimeoutSecs)*time.Second)
		defer cancel()
	}

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return fetcher.Report{}, err
	}
	return fetcher.Fetch(ctx, store, cfg.Storage.Bucket, prefix(cfg.Storage.IndexPath), cfg.Storage.LocalDir)
}

// Serve runs the chat server until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	srv, err := server.New(a.RAG, a.Config.Server, server.DefaultPage)
	if err != nil {
		return err
	}
	return srv.Run(ctx, a.Config.Addr())
}

// prefix makes the index path match only objects inside that "directory".
func prefix(indexPath string) string {
	p := strings.TrimPrefix(indexPath, "/")
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func source(cfg config.StorageConfig) string {
	return "gs://" + cfg.Bucket + "/" + prefix(cfg.IndexPath)
}
