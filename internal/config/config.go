// Package config loads and validates Caseflow configuration.
// Configuration comes from an optional YAML file with environment
// variable overrides on top; validation failures are fatal at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-deployment config file name.
const ConfigFileName = "caseflow.yaml"

// Config represents the complete Caseflow configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	Agent     AgentConfig     `yaml:"agent"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PathsConfig configures data locations.
type PathsConfig struct {
	// DataDir is where indexes and the metadata store live.
	DataDir string `yaml:"data_dir"`
	// KnowledgeBaseDir holds the source documents to index.
	KnowledgeBaseDir string `yaml:"knowledge_base_dir"`
}

// ChunkingConfig configures the hierarchical chunker.
type ChunkingConfig struct {
	// ChunkSize is the target child chunk size in characters.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the child chunk overlap in characters (~15% of size).
	ChunkOverlap int `yaml:"chunk_overlap"`
	// ParentMultiplier scales ChunkSize for parent windows.
	ParentMultiplier int `yaml:"parent_multiplier"`
}

// RetrievalConfig configures hybrid retrieval.
type RetrievalConfig struct {
	// SparseTopK is the number of BM25 candidates per query.
	SparseTopK int `yaml:"sparse_top_k"`
	// DenseTopK is the number of vector candidates per query.
	DenseTopK int `yaml:"dense_top_k"`
	// RerankTopK is the final result count after reranking.
	RerankTopK int `yaml:"rerank_top_k"`
	// RRFConstant is the RRF smoothing parameter k (default: 60).
	RRFConstant int `yaml:"rrf_constant"`
}

// CacheConfig configures the semantic response cache.
type CacheConfig struct {
	// SimilarityThreshold is the minimum cosine similarity for a hit.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// TTL is how long entries stay valid.
	TTL time.Duration `yaml:"ttl"`
	// MaxEntries caps the cache size.
	MaxEntries int `yaml:"max_entries"`
	// EvictBatch is how many oldest entries to drop per capacity eviction.
	EvictBatch int `yaml:"evict_batch"`
}

// AgentConfig configures the orchestrator thresholds.
type AgentConfig struct {
	// MaxRetries bounds the Respond retry loop.
	MaxRetries int `yaml:"max_retries"`
	// ConfidenceThreshold is the "good" confidence floor.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	// EscalationThreshold is the confidence below which requests escalate.
	EscalationThreshold float64 `yaml:"escalation_threshold"`
	// BlockThreshold is the injection-risk score that blocks a request.
	BlockThreshold float64 `yaml:"block_threshold"`
	// CollaboratorTimeout bounds each external call (generate, embed, classify).
	CollaboratorTimeout time.Duration `yaml:"collaborator_timeout"`
}

// EmbeddingConfig configures the embedding collaborator expectations.
type EmbeddingConfig struct {
	// Dimensions is the embedding vector dimension. Zero is a fatal
	// configuration error.
	Dimensions int `yaml:"dimensions"`
	// CacheSize is the LRU size for the cached embedder wrapper.
	CacheSize int `yaml:"cache_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	FilePath  string `yaml:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:          defaultDataDir(),
			KnowledgeBaseDir: "knowledge_base",
		},
		Chunking: ChunkingConfig{
			ChunkSize:        512,
			ChunkOverlap:     77,
			ParentMultiplier: 3,
		},
		Retrieval: RetrievalConfig{
			SparseTopK:  10,
			DenseTopK:   10,
			RerankTopK:  5,
			RRFConstant: 60,
		},
		Cache: CacheConfig{
			SimilarityThreshold: 0.90,
			TTL:                 time.Hour,
			MaxEntries:          10000,
			EvictBatch:          100,
		},
		Agent: AgentConfig{
			MaxRetries:          2,
			ConfidenceThreshold: 0.7,
			EscalationThreshold: 0.5,
			BlockThreshold:      0.7,
			CollaboratorTimeout: 30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Dimensions: 256,
			CacheSize:  1000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".caseflow")
	}
	return filepath.Join(home, ".caseflow")
}

// Load reads configuration from dir/caseflow.yaml (if present), applies
// environment overrides, and validates the result.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, ConfigFileName)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies CASEFLOW_* environment variables.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CASEFLOW_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("CASEFLOW_CACHE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Cache.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("CASEFLOW_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.TTL = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("CASEFLOW_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Agent.MaxRetries = n
		}
	}
	if v := os.Getenv("CASEFLOW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for fatal errors. Per-request
// failures never originate here; anything invalid aborts startup.
func (c *Config) Validate() error {
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ParentMultiplier < 1 {
		return fmt.Errorf("chunking.parent_multiplier must be at least 1, got %d", c.Chunking.ParentMultiplier)
	}
	if c.Retrieval.SparseTopK <= 0 || c.Retrieval.DenseTopK <= 0 || c.Retrieval.RerankTopK <= 0 {
		return fmt.Errorf("retrieval top-k values must be positive")
	}
	if c.Retrieval.RRFConstant <= 0 {
		return fmt.Errorf("retrieval.rrf_constant must be positive, got %d", c.Retrieval.RRFConstant)
	}
	if c.Cache.SimilarityThreshold < -1 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in [-1, 1], got %f", c.Cache.SimilarityThreshold)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Agent.MaxRetries < 0 {
		return fmt.Errorf("agent.max_retries must be non-negative, got %d", c.Agent.MaxRetries)
	}
	if c.Agent.ConfidenceThreshold < 0 || c.Agent.ConfidenceThreshold > 1 {
		return fmt.Errorf("agent.confidence_threshold must be in [0, 1], got %f", c.Agent.ConfidenceThreshold)
	}
	if c.Agent.EscalationThreshold < 0 || c.Agent.EscalationThreshold > c.Agent.ConfidenceThreshold {
		return fmt.Errorf("agent.escalation_threshold must be in [0, confidence_threshold], got %f", c.Agent.EscalationThreshold)
	}
	return nil
}

// Save writes the configuration to dir/caseflow.yaml.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0o644)
}
