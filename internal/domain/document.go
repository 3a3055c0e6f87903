package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the lifecycle status of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// PendingStatuses are the statuses picked up by the ingestion pipeline.
// Failed documents are included so a re-run retries them.
var PendingStatuses = []DocumentStatus{
	DocumentStatusPending,
	DocumentStatusUploaded,
	DocumentStatusFailed,
}

// Document represents a company-owned source document. It is created on
// upload and mutated only by the ingestion pipeline: status transitions,
// cached extracted content, chunk count, and the last processing error.
type Document struct {
	ID          string
	CompanyID   string
	Title       string
	FileURL     string
	FileType    string
	Status      DocumentStatus
	Content     string
	ChunkCount  int
	Error       string
	Category    string
	Tags        []string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt time.Time
}

// NewDocument creates a new Document instance in the pending state
func NewDocument(id, companyID, title, fileURL, fileType string, createdAt time.Time) *Document {
	return &Document{
		ID:        id,
		CompanyID: companyID,
		Title:     title,
		FileURL:   fileURL,
		FileType:  fileType,
		Status:    DocumentStatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.CompanyID == "" {
		return fmt.Errorf("document CompanyID is required")
	}

	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}

	if !ValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	return nil
}

// ValidDocumentStatus reports whether s is one of the known statuses.
func ValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusUploaded, DocumentStatusProcessing,
		DocumentStatusProcessed, DocumentStatusFailed:
		return true
	}
	return false
}
