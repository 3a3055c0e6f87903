package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/perkwise/perkdocs/internal/api"
	"github.com/perkwise/perkdocs/internal/api/middleware"
	"github.com/perkwise/perkdocs/internal/domain"
	"github.com/perkwise/perkdocs/internal/extract"
	"github.com/perkwise/perkdocs/internal/pagination"
	"github.com/perkwise/perkdocs/internal/pipeline"
	"github.com/perkwise/perkdocs/internal/rag"
	"github.com/perkwise/perkdocs/internal/repository"
)

type DocumentStore interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByCompanyWithCursor(ctx context.Context, companyID, status string, cursor *pagination.Cursor, limit int) (*repository.DocumentPageResult, error)
}

// UploadURLSigner issues presigned PUT URLs for direct-to-storage uploads.
type UploadURLSigner interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
}

type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, documentID string) (*rag.IngestResult, error)
	ProcessCompanyDocuments(ctx context.Context, companyID string) ([]pipeline.Result, error)
}

type DocumentHandler struct {
	store     DocumentStore
	signer    UploadURLSigner
	processor DocumentProcessor
}

func NewDocumentHandler(store DocumentStore, signer UploadURLSigner, processor DocumentProcessor) *DocumentHandler {
	return &DocumentHandler{store: store, signer: signer, processor: processor}
}

type RegisterDocumentRequest struct {
	Title    string   `json:"title"`
	FileType string   `json:"file_type"`
	FileURL  string   `json:"file_url,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type RegisterDocumentResponse struct {
	Document  *DocumentResponse `json:"document"`
	UploadURL string            `json:"upload_url,omitempty"`
}

type DocumentResponse struct {
	ID          string   `json:"id"`
	CompanyID   string   `json:"company_id"`
	Title       string   `json:"title"`
	FileURL     string   `json:"file_url"`
	FileType    string   `json:"file_type"`
	Status      string   `json:"status"`
	ChunkCount  int      `json:"chunk_count"`
	Error       string   `json:"error,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	ProcessedAt string   `json:"processed_at,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:         d.ID,
		CompanyID:  d.CompanyID,
		Title:      d.Title,
		FileURL:    d.FileURL,
		FileType:   d.FileType,
		Status:     string(d.Status),
		ChunkCount: d.ChunkCount,
		Error:      d.Error,
		Category:   d.Category,
		Tags:       d.Tags,
		CreatedAt:  d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  d.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !d.ProcessedAt.IsZero() {
		resp.ProcessedAt = d.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Register creates a document record. When the request omits file_url, a
// presigned upload URL is issued and the document points at the storage key
// it covers; the pipeline picks the document up once the upload lands.
func (h *DocumentHandler) Register(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.GetCompanyID(r.Context())
	if companyID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RegisterDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.FileType == "" {
		api.Error(w, http.StatusBadRequest, "file_type is required")
		return
	}
	if !isSupportedFileType(req.FileType) {
		api.HandleError(w, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, req.FileType))
		return
	}

	docID := uuid.NewString()
	fileURL := req.FileURL
	uploadURL := ""

	if fileURL == "" {
		if h.signer == nil {
			api.Error(w, http.StatusBadRequest, "file_url is required when uploads are not configured")
			return
		}
		key := fmt.Sprintf("%s/%s", companyID, docID)
		signed, err := h.signer.GenerateUploadURL(r.Context(), key, req.FileType)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		uploadURL = signed
		fileURL = "s3://" + key
	}

	doc := domain.NewDocument(docID, companyID, req.Title, fileURL, req.FileType, time.Now().UTC())
	doc.Category = req.Category
	doc.Tags = req.Tags
	doc.CreatedBy = r.Header.Get("X-User-ID")

	if err := h.store.Create(r.Context(), doc); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, RegisterDocumentResponse{
		Document:  documentToResponse(doc),
		UploadURL: uploadURL,
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.GetCompanyID(r.Context())
	if companyID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if doc.CompanyID != companyID {
		api.HandleError(w, domain.ErrDocumentNotFound)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.GetCompanyID(r.Context())
	if companyID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !domain.ValidDocumentStatus(domain.DocumentStatus(status)) {
		api.Error(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	var cursor *pagination.Cursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		decoded, err := pagination.DecodeCursor(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = decoded
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.store.ListByCompanyWithCursor(r.Context(), companyID, status, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

type ProcessDocumentResponse struct {
	DocumentID      string `json:"document_id"`
	ChunksProcessed int    `json:"chunks_processed"`
	VectorsStored   int    `json:"vectors_stored"`
}

// Process runs the ingestion pipeline synchronously for one document.
func (h *DocumentHandler) Process(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.GetCompanyID(r.Context())
	if companyID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if doc.CompanyID != companyID {
		api.HandleError(w, domain.ErrDocumentNotFound)
		return
	}

	result, err := h.processor.ProcessDocument(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ProcessDocumentResponse{
		DocumentID:      id,
		ChunksProcessed: result.ChunksProcessed,
		VectorsStored:   result.VectorsStored,
	})
}

type BatchResultResponse struct {
	DocumentID      string `json:"document_id"`
	Title           string `json:"title"`
	Success         bool   `json:"success"`
	ChunksProcessed int    `json:"chunks_processed"`
	VectorsStored   int    `json:"vectors_stored"`
	Error           string `json:"error,omitempty"`
}

type BatchProcessResponse struct {
	CompanyID string                 `json:"company_id"`
	Results   []*BatchResultResponse `json:"results"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
}

// ProcessCompany runs the pipeline over every pending document of a company.
func (h *DocumentHandler) ProcessCompany(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.GetCompanyID(r.Context())
	if companyID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	requested := chi.URLParam(r, "id")
	if requested != "" && requested != companyID {
		api.Error(w, http.StatusForbidden, "company mismatch")
		return
	}

	results, err := h.processor.ProcessCompanyDocuments(r.Context(), companyID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := BatchProcessResponse{
		CompanyID: companyID,
		Results:   make([]*BatchResultResponse, len(results)),
	}
	for i, res := range results {
		resp.Results[i] = &BatchResultResponse{
			DocumentID:      res.DocumentID,
			Title:           res.Title,
			Success:         res.Success,
			ChunksProcessed: res.ChunksProcessed,
			VectorsStored:   res.VectorsStored,
			Error:           res.Error,
		}
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	api.Success(w, http.StatusOK, resp)
}

func isSupportedFileType(fileType string) bool {
	switch fileType {
	case extract.MediaTypePDF, extract.MediaTypeText:
		return true
	}
	return false
}
