package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/caseflow-ai/caseflow/internal/chunk"
	"github.com/caseflow-ai/caseflow/internal/config"
	"github.com/caseflow-ai/caseflow/internal/output"
	"github.com/caseflow-ai/caseflow/internal/store"
)

func newIndexCmd() *cobra.Command {
	var kbDir string
	var reindex bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the knowledge base",
		Long: `Index the knowledge base documents for retrieval.

Reads .md and .txt files from the knowledge base directory, chunks
them hierarchically, and indexes child chunks into the keyword and
vector indexes. The top-level subdirectory of each document becomes
its namespace.

Examples:
  caseflow index
  caseflow index --kb ./knowledge_base --reindex`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, kbDir, reindex)
		},
	}

	cmd.Flags().StringVar(&kbDir, "kb", "", "Knowledge base directory (default from config)")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Discard the existing index and rebuild")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, kbDir string, reindex bool) error {
	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	if kbDir == "" {
		kbDir = cfg.Paths.KnowledgeBaseDir
	}
	out := output.New(cmd.OutOrStdout())

	lock := store.NewIndexLock(cfg.Paths.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another indexing run is in progress (lock: %s)", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	if reindex {
		if err := clearIndex(cfg); err != nil {
			return fmt.Errorf("clear existing index: %w", err)
		}
		out.Status("🗑️ ", "Cleared existing index")
	}

	docs, err := loadKnowledgeBase(kbDir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		out.Warningf("No documents found under %s", kbDir)
		return nil
	}

	engine, st, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	chunker := chunk.New(chunk.Options{
		ChunkSize:        cfg.Chunking.ChunkSize,
		ChunkOverlap:     cfg.Chunking.ChunkOverlap,
		ParentMultiplier: cfg.Chunking.ParentMultiplier,
	})

	start := time.Now()
	totalChildren := 0
	for i, doc := range docs {
		parents, children := chunker.Chunk(doc.id, doc.content, map[string]string{
			"doc_id":    doc.id,
			"namespace": doc.namespace,
		})
		if err := engine.Index(ctx, parents, children); err != nil {
			return fmt.Errorf("indexing %s: %w", doc.id, err)
		}
		totalChildren += len(children)
		out.Progress(i+1, len(docs), doc.id)
	}

	if err := st.dense.Save(st.densePath); err != nil {
		return fmt.Errorf("persist vector index: %w", err)
	}

	out.Successf("Indexed %d document(s), %d chunk(s) in %s",
		len(docs), totalChildren, time.Since(start).Round(time.Millisecond))
	return nil
}

type kbDocument struct {
	id        string
	namespace string
	content   string
}

// loadKnowledgeBase reads .md and .txt files recursively. The document
// ID is the relative path without extension; the first path segment
// (if any) is the namespace.
func loadKnowledgeBase(dir string) ([]kbDocument, error) {
	var docs []kbDocument
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		id := strings.TrimSuffix(rel, filepath.Ext(rel))
		id = strings.ReplaceAll(id, "/", "-")

		namespace := ""
		if idx := strings.Index(rel, "/"); idx > 0 {
			namespace = rel[:idx]
		}

		docs = append(docs, kbDocument{id: id, namespace: namespace, content: string(content)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	return docs, nil
}

// clearIndex removes the on-disk index artifacts so the next open
// starts empty. The lock file is kept.
func clearIndex(cfg *config.Config) error {
	names := []string{
		sparseIndexName,
		denseIndexName, denseIndexName + ".meta",
		metadataName, metadataName + "-wal", metadataName + "-shm",
	}
	for _, name := range names {
		path := filepath.Join(cfg.Paths.DataDir, name)
		if err := os.RemoveAll(path); err != nil {
			return err
		}
	}
	return nil
}
