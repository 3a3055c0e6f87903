package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/perkwise/perkdocs/internal/rag"
)

// VectorRepository implements nearest-neighbor search over chunk
// embeddings using pgvector.
type VectorRepository struct {
	db dbtx
}

func NewVectorRepository(pool *pgxpool.Pool) *VectorRepository {
	return &VectorRepository{db: pool}
}

// Upsert writes (chunk id, embedding) pairs, replacing any existing
// vector for the same chunk.
func (r *VectorRepository) Upsert(ctx context.Context, entries []rag.VectorEntry) error {
	for _, e := range entries {
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunk_vectors (chunk_id, embedding)
			 VALUES ($1, $2)
			 ON CONFLICT (chunk_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
			e.ID, pgvector.NewVector(e.Embedding),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// FindNearestNeighbors returns up to k chunk ids ordered by ascending
// cosine distance to the query vector. The company filter is applied via
// the chunk table so vectors for other tenants never surface; passing an
// empty companyID searches the whole index.
func (r *VectorRepository) FindNearestNeighbors(ctx context.Context, vector []float32, k int, companyID string) ([]rag.Neighbor, error) {
	if k <= 0 {
		k = rag.DefaultSearchLimit
	}
	rows, err := r.db.Query(ctx,
		`SELECT v.chunk_id, v.embedding <=> $1 AS distance
		 FROM chunk_vectors v
		 JOIN document_chunks c ON c.id = v.chunk_id
		 WHERE $2 = '' OR c.company_id = $2
		 ORDER BY v.embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(vector), companyID, k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var neighbors []rag.Neighbor
	for rows.Next() {
		var n rag.Neighbor
		var distance float64
		if err := rows.Scan(&n.ID, &distance); err != nil {
			return nil, err
		}
		n.Distance = float32(distance)
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}
