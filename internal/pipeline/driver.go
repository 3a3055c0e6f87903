// Package pipeline batch-processes pending documents for a company,
// sequencing per-document status transitions and creator notifications
// around the ingestion flow.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/perkwise/perkdocs/internal/chunker"
	"github.com/perkwise/perkdocs/internal/domain"
	"github.com/perkwise/perkdocs/internal/extract"
	"github.com/perkwise/perkdocs/internal/rag"
	"github.com/perkwise/perkdocs/internal/telemetry"
)

// DocumentStore defines the document metadata persistence interface
type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListPending(ctx context.Context, companyID string) ([]*domain.Document, error)
	SetProcessing(ctx context.Context, id string) error
	SetContent(ctx context.Context, id, content string) error
	MarkFailed(ctx context.Context, id, message string) error
}

// Fetcher downloads a document's raw bytes from its stored location
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor parses raw bytes into page-structured text and images
type Extractor interface {
	Extract(data []byte, mediaType string) (*extract.ParsedDocument, error)
}

// Ingestor persists chunks and vectors and marks the document processed
type Ingestor interface {
	IngestChunks(ctx context.Context, doc *domain.Document, pieces []chunker.PageChunk) (*rag.IngestResult, error)
}

// Notifier dispatches processing outcome notifications to users.
// Notification failures are logged, never propagated.
type Notifier interface {
	Notify(ctx context.Context, userID, documentName string, status domain.DocumentStatus, errorMessage string) error
}

// Result is the per-document outcome of a batch run.
type Result struct {
	DocumentID      string
	Title           string
	Success         bool
	ChunksProcessed int
	VectorsStored   int
	Error           string
}

// Driver runs documents through fetch, extraction, chunking and ingestion.
type Driver struct {
	documents DocumentStore
	blobs     Fetcher
	extractor Extractor
	ingestor  Ingestor
	notifier  Notifier
	chunkOpts chunker.Options
	logger    *log.Logger
}

// NewDriver creates a new Driver instance
func NewDriver(
	documents DocumentStore,
	blobs Fetcher,
	extractor Extractor,
	ingestor Ingestor,
	notifier Notifier,
	chunkOpts chunker.Options,
	logger *log.Logger,
) *Driver {
	if chunkOpts.MaxChunkSize <= 0 {
		chunkOpts = chunker.DefaultOptions()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{
		documents: documents,
		blobs:     blobs,
		extractor: extractor,
		ingestor:  ingestor,
		notifier:  notifier,
		chunkOpts: chunkOpts,
		logger:    logger,
	}
}

// ProcessDocument runs a single document through the full pipeline. On
// failure the document is marked failed with the error message and a
// failure notification is dispatched before the error is returned.
func (d *Driver) ProcessDocument(ctx context.Context, documentID string) (*rag.IngestResult, error) {
	doc, err := d.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", documentID, err)
	}

	result, err := d.process(ctx, doc)
	if err != nil {
		d.fail(ctx, doc, err)
		return nil, err
	}

	d.notify(ctx, doc, domain.DocumentStatusProcessed, "")
	return result, nil
}

// ProcessCompanyDocuments processes every pending document for the
// company sequentially, collecting per-document outcomes. An individual
// failure does not abort the batch.
func (d *Driver) ProcessCompanyDocuments(ctx context.Context, companyID string) ([]Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "Driver.ProcessCompanyDocuments", telemetry.SpanAttributes{
		CompanyID: companyID,
		Operation: "process_batch",
	})
	defer span.End()

	docs, err := d.documents.ListPending(ctx, companyID)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to list pending documents for company %s: %w", companyID, err)
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		outcome := Result{DocumentID: doc.ID, Title: doc.Title}

		ingested, err := d.process(ctx, doc)
		if err != nil {
			d.logger.Printf("document %s failed: %v", doc.ID, err)
			d.fail(ctx, doc, err)
			outcome.Error = err.Error()
		} else {
			outcome.Success = true
			outcome.ChunksProcessed = ingested.ChunksProcessed
			outcome.VectorsStored = ingested.VectorsStored
			d.notify(ctx, doc, domain.DocumentStatusProcessed, "")
		}

		results = append(results, outcome)
	}

	return results, nil
}

func (d *Driver) process(ctx context.Context, doc *domain.Document) (*rag.IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Driver.process", telemetry.SpanAttributes{
		CompanyID:  doc.CompanyID,
		DocumentID: doc.ID,
		Operation:  "process",
	})
	defer span.End()

	if doc.FileURL == "" {
		return nil, domain.ErrMissingFileURL
	}

	if err := d.documents.SetProcessing(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("failed to mark document %s processing: %w", doc.ID, err)
	}

	data, err := d.blobs.Fetch(ctx, doc.FileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", doc.ID, err)
	}

	parsed, err := d.extractor.Extract(data, doc.FileType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(parsed.Text) == "" {
		return nil, domain.ErrEmptyDocument
	}

	// Cache the extracted full text on the document record.
	if err := d.documents.SetContent(ctx, doc.ID, parsed.Text); err != nil {
		return nil, fmt.Errorf("failed to store content for document %s: %w", doc.ID, err)
	}

	pieces := chunker.ChunkDocument(parsed, d.chunkOpts)
	return d.ingestor.IngestChunks(ctx, doc, pieces)
}

// fail marks the document failed and dispatches a failure notification.
// Both are best-effort: the original processing error is what matters.
func (d *Driver) fail(ctx context.Context, doc *domain.Document, cause error) {
	if err := d.documents.MarkFailed(ctx, doc.ID, cause.Error()); err != nil {
		d.logger.Printf("failed to mark document %s failed: %v", doc.ID, err)
	}
	d.notify(ctx, doc, domain.DocumentStatusFailed, cause.Error())
}

func (d *Driver) notify(ctx context.Context, doc *domain.Document, status domain.DocumentStatus, errorMessage string) {
	if d.notifier == nil || doc.CreatedBy == "" {
		return
	}
	if err := d.notifier.Notify(ctx, doc.CreatedBy, doc.Title, status, errorMessage); err != nil {
		d.logger.Printf("failed to notify user %s about document %s: %v", doc.CreatedBy, doc.ID, err)
	}
}
