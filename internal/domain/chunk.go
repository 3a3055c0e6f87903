package domain

import (
	"fmt"
	"time"
)

// ChunkID returns the deterministic ID for a chunk of a document. Chunk IDs
// are assigned by ordinal position, so re-ingesting a document overwrites
// its existing chunks instead of duplicating them.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// ChunkMetadata carries free-form provenance attached to a chunk at ingest
// time. PageNumber is zero for chunks that did not come from a paged source.
type ChunkMetadata struct {
	DocumentTitle string
	Section       string
	PageNumber    int
	Category      string
	Tags          []string
}

// DocumentChunk is the atomic retrievable unit: a bounded text segment of a
// document. Chunks are written once at ingest time and never updated; the
// Embedding field is empty when no embedding model was available.
type DocumentChunk struct {
	ID         string
	DocumentID string
	CompanyID  string
	Content    string
	Metadata   ChunkMetadata
	Embedding  []float32
	CreatedAt  time.Time
}

// ValidateChunk validates a DocumentChunk instance
func ValidateChunk(c *DocumentChunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}

	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}

	if c.CompanyID == "" {
		return fmt.Errorf("chunk CompanyID is required")
	}

	return nil
}
