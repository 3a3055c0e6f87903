package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/perkwise/perkdocs/internal/domain"
	"github.com/perkwise/perkdocs/internal/pagination"
)

// DocumentRepository handles persistence of document metadata and
// pipeline status transitions.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

const documentColumns = `id, company_id, title, file_url, file_type, status, content, chunk_count, error, category, tags, created_by, created_at, updated_at, processed_at`

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, company_id, title, file_url, file_type, status, content, chunk_count, error, category, tags, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.CompanyID, d.Title, d.FileURL, d.FileType, d.Status, d.Content, d.ChunkCount,
		d.Error, nullableString(d.Category), d.Tags, nullableString(d.CreatedBy), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// ListPending returns the company's documents waiting for ingestion,
// oldest first. Failed documents are included so re-runs retry them.
func (r *DocumentRepository) ListPending(ctx context.Context, companyID string) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE company_id = $1 AND status = ANY($2)
		 ORDER BY created_at ASC, id ASC`,
		companyID, statusStrings(domain.PendingStatuses),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListCompaniesWithPending returns the distinct companies that have at
// least one document waiting for ingestion.
func (r *DocumentRepository) ListCompaniesWithPending(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT company_id FROM documents WHERE status = ANY($1) ORDER BY company_id`,
		statusStrings(domain.PendingStatuses),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companyIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		companyIDs = append(companyIDs, id)
	}
	return companyIDs, rows.Err()
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// ListByCompanyWithCursor pages a company's documents newest first, keyed on
// (updated_at, id). An empty status matches every status.
func (r *DocumentRepository) ListByCompanyWithCursor(ctx context.Context, companyID, status string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE company_id = $1 AND ($2 = '' OR status = $2) AND (updated_at, id) < ($3, $4)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $5`,
			companyID, status, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE company_id = $1 AND ($2 = '' OR status = $2)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $3`,
			companyID, status, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.UpdatedAt)
	}

	return &DocumentPageResult{Items: items, NextCursor: nextCursor, HasMore: hasMore}, nil
}

func (r *DocumentRepository) SetProcessing(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id,
		`UPDATE documents SET status = $2, error = '', updated_at = $3 WHERE id = $1`,
		domain.DocumentStatusProcessing)
}

func (r *DocumentRepository) SetContent(ctx context.Context, id, content string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET content = $2, updated_at = $3 WHERE id = $1`,
		id, content, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) MarkProcessed(ctx context.Context, id string, chunkCount int) error {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $2, chunk_count = $3, error = '', processed_at = $4, updated_at = $4
		 WHERE id = $1`,
		id, domain.DocumentStatusProcessed, chunkCount, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id, message string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $2, error = $3, updated_at = $4 WHERE id = $1`,
		id, domain.DocumentStatusFailed, message, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) updateStatus(ctx context.Context, id, query string, status domain.DocumentStatus) error {
	tag, err := r.db.Exec(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func statusStrings(statuses []domain.DocumentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	var category, createdBy *string
	var processedAt *time.Time
	err := row.Scan(
		&d.ID, &d.CompanyID, &d.Title, &d.FileURL, &d.FileType, &d.Status, &d.Content,
		&d.ChunkCount, &d.Error, &category, &d.Tags, &createdBy, &d.CreatedAt, &d.UpdatedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}
	if category != nil {
		d.Category = *category
	}
	if createdBy != nil {
		d.CreatedBy = *createdBy
	}
	if processedAt != nil {
		d.ProcessedAt = *processedAt
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
