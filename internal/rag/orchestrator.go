// Package rag drives document ingestion into the chunk store and
// vector index, and serves tenant-scoped retrieval with a keyword
// fallback when embeddings are unavailable.
package rag

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/perkwise/perkdocs/internal/chunker"
	"github.com/perkwise/perkdocs/internal/domain"
	"github.com/perkwise/perkdocs/internal/embedding"
	"github.com/perkwise/perkdocs/internal/telemetry"
)

// DefaultSearchLimit is used when a caller passes a non-positive limit.
const DefaultSearchLimit = 5

// ChunkStore defines the persistence interface for document chunks
type ChunkStore interface {
	UpsertChunk(ctx context.Context, chunk *domain.DocumentChunk) error
	GetByIDs(ctx context.Context, companyID string, ids []string) ([]*domain.DocumentChunk, error)
	ListByCompany(ctx context.Context, companyID string) ([]*domain.DocumentChunk, error)
}

// VectorEntry is one (chunk id, embedding) pair for index upserts.
type VectorEntry struct {
	ID        string
	Embedding []float32
}

// Neighbor is one nearest-neighbor hit returned by the index,
// ordered by ascending distance.
type Neighbor struct {
	ID       string
	Distance float32
}

// VectorIndex defines the nearest-neighbor index interface
type VectorIndex interface {
	Upsert(ctx context.Context, entries []VectorEntry) error
	FindNearestNeighbors(ctx context.Context, vector []float32, k int, companyID string) ([]Neighbor, error)
}

// DocumentMarker records the outcome of ingestion on the parent document
type DocumentMarker interface {
	MarkProcessed(ctx context.Context, documentID string, chunkCount int) error
}

// IngestResult summarizes one document's ingestion.
type IngestResult struct {
	ChunksProcessed int
	VectorsStored   int
}

// Orchestrator coordinates chunking, embedding, persistence and indexing.
// Collaborators are injected so tests can substitute fakes.
type Orchestrator struct {
	chunks    ChunkStore
	index     VectorIndex
	documents DocumentMarker
	embedder  embedding.Provider
	chunkOpts chunker.Options
	logger    *log.Logger
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(
	chunks ChunkStore,
	index VectorIndex,
	documents DocumentMarker,
	embedder embedding.Provider,
	chunkOpts chunker.Options,
	logger *log.Logger,
) *Orchestrator {
	if embedder == nil {
		embedder = embedding.Unavailable()
	}
	if chunkOpts.MaxChunkSize <= 0 {
		chunkOpts = chunker.DefaultOptions()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		chunks:    chunks,
		index:     index,
		documents: documents,
		embedder:  embedder,
		chunkOpts: chunkOpts,
		logger:    logger,
	}
}

// ProcessDocument chunks already-extracted plain content, ingests the
// chunks and marks the document processed. Partial writes are not
// rolled back on error; re-running overwrites chunks by id.
func (o *Orchestrator) ProcessDocument(ctx context.Context, doc *domain.Document, content string) (*IngestResult, error) {
	pieces := make([]chunker.PageChunk, 0)
	for _, text := range chunker.ChunkText(content, o.chunkOpts) {
		pieces = append(pieces, chunker.PageChunk{Text: text})
	}
	return o.IngestChunks(ctx, doc, pieces)
}

// IngestChunks persists the given pre-chunked pieces for doc, embedding
// each one, batching non-empty vectors into a single index upsert, and
// finally marking the document processed with the chunk count.
func (o *Orchestrator) IngestChunks(ctx context.Context, doc *domain.Document, pieces []chunker.PageChunk) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.IngestChunks", telemetry.SpanAttributes{
		CompanyID:  doc.CompanyID,
		DocumentID: doc.ID,
		Operation:  "ingest",
	})
	defer span.End()

	now := time.Now().UTC()
	entries := make([]VectorEntry, 0, len(pieces))

	for i, piece := range pieces {
		chunk := &domain.DocumentChunk{
			ID:         domain.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			CompanyID:  doc.CompanyID,
			Content:    piece.Text,
			Metadata: domain.ChunkMetadata{
				DocumentTitle: doc.Title,
				Section:       fmt.Sprintf("Part %d", i+1),
				PageNumber:    piece.PageNumber,
				Category:      doc.Category,
				Tags:          doc.Tags,
			},
			CreatedAt: now,
		}

		// Empty vector means embeddings are unavailable or this call
		// failed; the chunk is still stored for keyword retrieval.
		chunk.Embedding = o.embedder.Embed(ctx, piece.Text)

		if err := o.chunks.UpsertChunk(ctx, chunk); err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("failed to store chunk %s: %w", chunk.ID, err)
		}

		if len(chunk.Embedding) > 0 {
			entries = append(entries, VectorEntry{ID: chunk.ID, Embedding: chunk.Embedding})
		}
	}

	if len(entries) > 0 {
		if err := o.index.Upsert(ctx, entries); err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("failed to upsert vectors for document %s: %w", doc.ID, err)
		}
	}

	if err := o.documents.MarkProcessed(ctx, doc.ID, len(pieces)); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to mark document %s processed: %w", doc.ID, err)
	}

	return &IngestResult{ChunksProcessed: len(pieces), VectorsStored: len(entries)}, nil
}

// Search returns up to limit chunks for companyID ranked against query.
// It uses nearest-neighbor retrieval when an embedding for the query can
// be produced, and substring-count keyword matching otherwise. Search is
// best-effort: any failure is logged and yields an empty result list.
func (o *Orchestrator) Search(ctx context.Context, query, companyID string, limit int) []*domain.SearchResult {
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Search", telemetry.SpanAttributes{
		CompanyID: companyID,
		Operation: "search",
	})
	defer span.End()

	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if o.embedder.Available() {
		if vector := o.embedder.Embed(ctx, query); len(vector) > 0 {
			return o.vectorSearch(ctx, vector, companyID, limit)
		}
		// Query embedding unavailable right now, degrade to keyword.
	}

	return o.keywordSearch(ctx, query, companyID, limit)
}

// vectorSearch preserves the index's neighbor order (ascending distance)
// and silently drops neighbors that cannot be hydrated or whose chunk
// belongs to a different tenant.
func (o *Orchestrator) vectorSearch(ctx context.Context, vector []float32, companyID string, limit int) []*domain.SearchResult {
	neighbors, err := o.index.FindNearestNeighbors(ctx, vector, limit, companyID)
	if err != nil {
		o.logger.Printf("vector search failed for company %s: %v", companyID, err)
		telemetry.CaptureError(ctx, err)
		return []*domain.SearchResult{}
	}
	if len(neighbors) == 0 {
		return []*domain.SearchResult{}
	}

	ids := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		ids = append(ids, n.ID)
	}

	chunks, err := o.chunks.GetByIDs(ctx, companyID, ids)
	if err != nil {
		o.logger.Printf("chunk hydration failed for company %s: %v", companyID, err)
		telemetry.CaptureError(ctx, err)
		return []*domain.SearchResult{}
	}

	byID := make(map[string]*domain.DocumentChunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]*domain.SearchResult, 0, len(neighbors))
	for _, n := range neighbors {
		chunk, ok := byID[n.ID]
		if !ok || chunk.CompanyID != companyID {
			continue
		}
		results = append(results, &domain.SearchResult{
			Chunk: chunk,
			Score: n.Distance,
			Mode:  domain.SearchModeVector,
		})
	}
	return results
}

// keywordSearch scores chunks by case-insensitive non-overlapping
// occurrence count of the query substring.
func (o *Orchestrator) keywordSearch(ctx context.Context, query, companyID string, limit int) []*domain.SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*domain.SearchResult{}
	}

	chunks, err := o.chunks.ListByCompany(ctx, companyID)
	if err != nil {
		o.logger.Printf("keyword search failed for company %s: %v", companyID, err)
		telemetry.CaptureError(ctx, err)
		return []*domain.SearchResult{}
	}

	results := make([]*domain.SearchResult, 0)
	for _, chunk := range chunks {
		count := strings.Count(strings.ToLower(chunk.Content), q)
		if count == 0 {
			continue
		}
		results = append(results, &domain.SearchResult{
			Chunk: chunk,
			Score: float32(count),
			Mode:  domain.SearchModeKeyword,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
