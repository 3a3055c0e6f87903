//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perkwise/perkdocs/internal/domain"
	"github.com/perkwise/perkdocs/internal/rag"
	"github.com/perkwise/perkdocs/internal/testutil"
)

func seedDocument(ctx context.Context, t *testing.T, repo *DocumentRepository, companyID string) *domain.Document {
	doc := newTestDocument(companyID)
	require.NoError(t, repo.Create(ctx, doc))
	return doc
}

func newTestChunk(doc *domain.Document, index int, content string) *domain.DocumentChunk {
	return &domain.DocumentChunk{
		ID:         domain.ChunkID(doc.ID, index),
		DocumentID: doc.ID,
		CompanyID:  doc.CompanyID,
		Content:    content,
		Metadata: domain.ChunkMetadata{
			DocumentTitle: doc.Title,
			Section:       "Part 1",
			PageNumber:    1,
			Category:      "benefits",
			Tags:          []string{"health"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestChunkRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docRepo, "comp1")
	chunk := newTestChunk(doc, 0, "Health coverage starts on day one.")
	require.NoError(t, chunkRepo.UpsertChunk(ctx, chunk))

	chunks, err := chunkRepo.GetByIDs(ctx, "comp1", []string{chunk.ID})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, chunk.ID, chunks[0].ID)
	assert.Equal(t, chunk.Content, chunks[0].Content)
	assert.Equal(t, "Part 1", chunks[0].Metadata.Section)
	assert.Equal(t, 1, chunks[0].Metadata.PageNumber)
	assert.Equal(t, []string{"health"}, chunks[0].Metadata.Tags)
}

func TestChunkRepository_UpsertOverwritesByID(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docRepo, "comp1")
	chunk := newTestChunk(doc, 0, "original content")
	require.NoError(t, chunkRepo.UpsertChunk(ctx, chunk))

	chunk.Content = "replacement content"
	require.NoError(t, chunkRepo.UpsertChunk(ctx, chunk))

	chunks, err := chunkRepo.ListByCompany(ctx, "comp1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "replacement content", chunks[0].Content)
}

func TestChunkRepository_GetByIDs_TenantScoped(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	docA := seedDocument(ctx, t, docRepo, "comp-a")
	docB := seedDocument(ctx, t, docRepo, "comp-b")

	chunkA := newTestChunk(docA, 0, "tenant a content")
	chunkB := newTestChunk(docB, 0, "tenant b content")
	require.NoError(t, chunkRepo.UpsertChunk(ctx, chunkA))
	require.NoError(t, chunkRepo.UpsertChunk(ctx, chunkB))

	chunks, err := chunkRepo.GetByIDs(ctx, "comp-a", []string{chunkA.ID, chunkB.ID})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, chunkA.ID, chunks[0].ID)
}

func TestChunkRepository_GetByIDs_Empty(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunkRepo := NewChunkRepository(pool)

	chunks, err := chunkRepo.GetByIDs(ctx, "comp1", nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestVectorRepository_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)
	vectorRepo := NewVectorRepository(pool)

	doc := seedDocument(ctx, t, docRepo, "comp1")

	near := newTestChunk(doc, 0, "near chunk")
	far := newTestChunk(doc, 1, "far chunk")
	require.NoError(t, chunkRepo.UpsertChunk(ctx, near))
	require.NoError(t, chunkRepo.UpsertChunk(ctx, far))

	require.NoError(t, vectorRepo.Upsert(ctx, []rag.VectorEntry{
		{ID: near.ID, Embedding: unitVector(0)},
		{ID: far.ID, Embedding: unitVector(1)},
	}))

	neighbors, err := vectorRepo.FindNearestNeighbors(ctx, unitVector(0), 2, "comp1")
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, near.ID, neighbors[0].ID)
	assert.Equal(t, far.ID, neighbors[1].ID)
	assert.Less(t, neighbors[0].Distance, neighbors[1].Distance)
}

func TestVectorRepository_SearchTenantScoped(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)
	vectorRepo := NewVectorRepository(pool)

	docA := seedDocument(ctx, t, docRepo, "comp-a")
	docB := seedDocument(ctx, t, docRepo, "comp-b")

	chunkA := newTestChunk(docA, 0, "tenant a")
	chunkB := newTestChunk(docB, 0, "tenant b")
	require.NoError(t, chunkRepo.UpsertChunk(ctx, chunkA))
	require.NoError(t, chunkRepo.UpsertChunk(ctx, chunkB))

	require.NoError(t, vectorRepo.Upsert(ctx, []rag.VectorEntry{
		{ID: chunkA.ID, Embedding: unitVector(0)},
		{ID: chunkB.ID, Embedding: unitVector(0)},
	}))

	neighbors, err := vectorRepo.FindNearestNeighbors(ctx, unitVector(0), 10, "comp-a")
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, chunkA.ID, neighbors[0].ID)
}

func TestNotificationRepository_Notify(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewNotificationRepository(pool)

	require.NoError(t, repo.Notify(ctx, "user-1", "Benefits Handbook", domain.DocumentStatusProcessed, ""))
	require.NoError(t, repo.Notify(ctx, "user-1", "Benefits Handbook", domain.DocumentStatusFailed, "corrupt PDF"))

	var count int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, "user-1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var message string
	err = pool.QueryRow(ctx,
		`SELECT message FROM notifications WHERE user_id = $1 AND status = $2`,
		"user-1", string(domain.DocumentStatusFailed),
	).Scan(&message)
	require.NoError(t, err)
	assert.Contains(t, message, "corrupt PDF")
}

// unitVector returns a 1536-dim basis-aligned vector for distance tests.
func unitVector(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis] = 1
	return v
}
