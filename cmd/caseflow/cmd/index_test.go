package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadKnowledgeBase_ReadsMarkdownAndText(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "billing", "refunds.md"), "Refunds take five business days.")
	writeFile(t, filepath.Join(dir, "faq.txt"), "Frequently asked questions.")
	writeFile(t, filepath.Join(dir, "ignore.json"), "{}")

	docs, err := loadKnowledgeBase(dir)

	require.NoError(t, err)
	require.Len(t, docs, 2)

	byID := make(map[string]kbDocument)
	for _, d := range docs {
		byID[d.id] = d
	}

	refunds, ok := byID["billing-refunds"]
	require.True(t, ok)
	assert.Equal(t, "billing", refunds.namespace)
	assert.Equal(t, "Refunds take five business days.", refunds.content)

	faq, ok := byID["faq"]
	require.True(t, ok)
	assert.Empty(t, faq.namespace)
}

func TestLoadKnowledgeBase_MissingDir(t *testing.T) {
	_, err := loadKnowledgeBase(filepath.Join(t.TempDir(), "absent"))

	assert.Error(t, err)
}
