package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caseflow-ai/caseflow/internal/config"
	"github.com/caseflow-ai/caseflow/internal/embed"
	"github.com/caseflow-ai/caseflow/internal/logging"
	"github.com/caseflow-ai/caseflow/internal/search"
	"github.com/caseflow-ai/caseflow/internal/store"
)

const (
	sparseIndexName = "keywords.bleve"
	denseIndexName  = "vectors.hnsw"
	metadataName    = "metadata.db"
)

// loadConfig loads configuration from the --config-dir and sets up
// logging. The returned cleanup flushes log buffers.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = filepath.Join(cfg.Paths.DataDir, "logs", "caseflow.log")
	}
	if debugMode {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logging: %w", err)
	}
	return cfg, cleanup, nil
}

// openStores opens the three storage backends under the data dir.
type stores struct {
	sparse    *store.BleveBM25Index
	dense     *store.HNSWStore
	meta      *store.SQLiteMetadataStore
	densePath string
}

func openStores(cfg *config.Config) (*stores, error) {
	if err := checkEmbeddingDimensions(cfg); err != nil {
		return nil, err
	}

	dataDir := cfg.Paths.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	sparse, err := store.NewBleveBM25Index(filepath.Join(dataDir, sparseIndexName), store.BM25Config{})
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	dense, err := store.NewHNSWStore(store.HNSWConfig{Dimensions: cfg.Embedding.Dimensions})
	if err != nil {
		sparse.Close()
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	densePath := filepath.Join(dataDir, denseIndexName)
	if _, statErr := os.Stat(densePath); statErr == nil {
		if err := dense.Load(densePath); err != nil {
			sparse.Close()
			dense.Close()
			return nil, fmt.Errorf("load vector index: %w", err)
		}
	}

	meta, err := store.NewSQLiteMetadataStore(filepath.Join(dataDir, metadataName))
	if err != nil {
		sparse.Close()
		dense.Close()
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	return &stores{sparse: sparse, dense: dense, meta: meta, densePath: densePath}, nil
}

// newEmbedder builds the embedding stack: the deterministic static
// embedder behind an LRU cache.
func newEmbedder(cfg *config.Config) embed.Embedder {
	return embed.NewCachedEmbedder(embed.NewStaticEmbedder(), cfg.Embedding.CacheSize)
}

// checkEmbeddingDimensions fails startup when the configured dimension
// disagrees with what the embedder produces.
func checkEmbeddingDimensions(cfg *config.Config) error {
	want := embed.NewStaticEmbedder().Dimensions()
	if cfg.Embedding.Dimensions != want {
		return fmt.Errorf("embedding.dimensions is %d but the embedder produces %d-dimensional vectors; set embedding.dimensions: %d",
			cfg.Embedding.Dimensions, want, want)
	}
	return nil
}

// openEngine wires the hybrid search engine over the stores. The query
// enhancer runs on the same generator as ask; the extractive one
// produces no reformulations, so enhancement becomes active once a
// model-backed generator is plugged in.
func openEngine(cfg *config.Config) (*search.Engine, *stores, error) {
	st, err := openStores(cfg)
	if err != nil {
		return nil, nil, err
	}

	embedder := newEmbedder(cfg)
	sourceDepth := cfg.Retrieval.SparseTopK
	if cfg.Retrieval.DenseTopK > sourceDepth {
		sourceDepth = cfg.Retrieval.DenseTopK
	}

	engine := search.NewEngine(st.sparse, st.dense, st.meta, embedder,
		search.WithTopK(cfg.Retrieval.RerankTopK),
		search.WithSourceDepth(sourceDepth),
		search.WithFusionConstant(cfg.Retrieval.RRFConstant),
		search.WithReranker(search.NewReranker(search.LexicalScorer{}, cfg.Retrieval.RerankTopK, nil)),
		search.WithEnhancer(search.NewEnhancer(extractiveGenerator{}, nil)),
	)
	return engine, st, nil
}
