package chunk

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caseflow-ai/caseflow/internal/store"
)

const (
	// DefaultChunkSize is the target child chunk size in characters.
	DefaultChunkSize = 512

	// DefaultChunkOverlap is the shared context between adjacent children,
	// about 15% of the chunk size.
	DefaultChunkOverlap = 77

	// DefaultParentMultiplier sizes parent windows relative to children.
	DefaultParentMultiplier = 3

	// parentPreviewChars caps the parent excerpt copied into each child's
	// metadata.
	parentPreviewChars = 500
)

// Options configures the chunker.
type Options struct {
	ChunkSize        int
	ChunkOverlap     int
	ParentMultiplier int
}

// Chunker splits documents into parent windows and overlapping child
// chunks. Only children get indexed; parents are persisted for context
// expansion at response time.
type Chunker struct {
	options Options
}

// New creates a chunker, filling in defaults for zero options.
func New(opts Options) *Chunker {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap == 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.ParentMultiplier == 0 {
		opts.ParentMultiplier = DefaultParentMultiplier
	}
	return &Chunker{options: opts}
}

// Chunk splits a document into parents and children.
//
// Parents are windows of ParentMultiplier times the chunk size, split on
// paragraph and line boundaries. Each parent is split again into children
// at the chunk size with overlap, degrading to sentence, word, and
// finally character boundaries. Children carry the document ID, parent
// ID, a truncated copy of the parent text, and a sequence index; the
// total child count is stamped on every child once splitting finishes.
//
// IDs follow the pattern docID_parent_i for parents and docID_chunk_i_j
// for the j-th child of the i-th parent.
func (c *Chunker) Chunk(docID, content string, metadata map[string]string) (parents, children []*store.Chunk) {
	now := time.Now()
	parentSize := c.options.ChunkSize * c.options.ParentMultiplier

	parentTexts := SplitText(content, parentSize, 0, ParentSeparators)

	for i, parentText := range parentTexts {
		parentID := fmt.Sprintf("%s_parent_%d", docID, i)
		parents = append(parents, &store.Chunk{
			ID:        parentID,
			DocID:     docID,
			Seq:       i,
			Content:   parentText,
			Metadata:  copyMetadata(metadata),
			CreatedAt: now,
		})

		childTexts := SplitText(parentText, c.options.ChunkSize, c.options.ChunkOverlap, ChildSeparators)
		for j, childText := range childTexts {
			childMeta := copyMetadata(metadata)
			childMeta["parent_content"] = Truncate(parentText, parentPreviewChars)

			children = append(children, &store.Chunk{
				ID:        fmt.Sprintf("%s_chunk_%d_%d", docID, i, j),
				DocID:     docID,
				ParentID:  parentID,
				Seq:       len(children),
				Content:   childText,
				Metadata:  childMeta,
				CreatedAt: now,
			})
		}
	}

	// Total count is only known after every parent has been split.
	total := strconv.Itoa(len(children))
	for _, child := range children {
		child.Metadata["total_chunks"] = total
	}

	return parents, children
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
