package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/perkwise/perkdocs/internal/domain"
)

// ChunkRepository handles persistence of document chunks. Embeddings
// live in the chunk_vectors table managed by VectorRepository; chunk
// rows carry only content and provenance metadata.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

const chunkColumns = `id, document_id, company_id, content, title, section, page_number, category, tags, created_at`

// UpsertChunk writes a chunk keyed by its deterministic id. Re-ingesting
// a document overwrites its existing chunks instead of duplicating them.
func (r *ChunkRepository) UpsertChunk(ctx context.Context, c *domain.DocumentChunk) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO document_chunks (id, document_id, company_id, content, title, section, page_number, category, tags, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			company_id = EXCLUDED.company_id,
			content = EXCLUDED.content,
			title = EXCLUDED.title,
			section = EXCLUDED.section,
			page_number = EXCLUDED.page_number,
			category = EXCLUDED.category,
			tags = EXCLUDED.tags`,
		c.ID, c.DocumentID, c.CompanyID, c.Content,
		nullableString(c.Metadata.DocumentTitle), nullableString(c.Metadata.Section),
		c.Metadata.PageNumber, nullableString(c.Metadata.Category), c.Metadata.Tags,
		createdAt,
	)
	return err
}

// GetByIDs batch-fetches chunks by id, scoped to the company. IDs the
// store does not have are simply absent from the result.
func (r *ChunkRepository) GetByIDs(ctx context.Context, companyID string, ids []string) ([]*domain.DocumentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM document_chunks
		 WHERE company_id = $1 AND id = ANY($2)`,
		companyID, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListByCompany returns every chunk for a company. Used by the keyword
// search fallback.
func (r *ChunkRepository) ListByCompany(ctx context.Context, companyID string) ([]*domain.DocumentChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM document_chunks
		 WHERE company_id = $1
		 ORDER BY document_id, id`,
		companyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// DeleteByDocument removes a document's chunks. Cascades also remove
// their vectors.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}

func scanChunkRows(rows pgx.Rows) ([]*domain.DocumentChunk, error) {
	var chunks []*domain.DocumentChunk
	for rows.Next() {
		var c domain.DocumentChunk
		var title, section, category *string
		if err := rows.Scan(
			&c.ID, &c.DocumentID, &c.CompanyID, &c.Content,
			&title, &section, &c.Metadata.PageNumber, &category, &c.Metadata.Tags,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}
		if title != nil {
			c.Metadata.DocumentTitle = *title
		}
		if section != nil {
			c.Metadata.Section = *section
		}
		if category != nil {
			c.Metadata.Category = *category
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}
