package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/perkwise/perkdocs/internal/api"
	"github.com/perkwise/perkdocs/internal/api/middleware"
	"github.com/perkwise/perkdocs/internal/domain"
)

type Searcher interface {
	Search(ctx context.Context, query, companyID string, limit int) []*domain.SearchResult
}

type SearchHandler struct {
	searcher Searcher
}

func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type SearchResultResponse struct {
	ChunkID       string   `json:"chunk_id"`
	DocumentID    string   `json:"document_id"`
	Content       string   `json:"content"`
	Score         float32  `json:"score"`
	Mode          string   `json:"mode"`
	DocumentTitle string   `json:"document_title,omitempty"`
	Section       string   `json:"section,omitempty"`
	PageNumber    int      `json:"page_number,omitempty"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

type SearchResponse struct {
	Results []*SearchResultResponse `json:"results"`
	Count   int                     `json:"count"`
}

func searchResultToResponse(res *domain.SearchResult) *SearchResultResponse {
	return &SearchResultResponse{
		ChunkID:       res.Chunk.ID,
		DocumentID:    res.Chunk.DocumentID,
		Content:       res.Chunk.Content,
		Score:         res.Score,
		Mode:          string(res.Mode),
		DocumentTitle: res.Chunk.Metadata.DocumentTitle,
		Section:       res.Chunk.Metadata.Section,
		PageNumber:    res.Chunk.Metadata.PageNumber,
		Category:      res.Chunk.Metadata.Category,
		Tags:          res.Chunk.Metadata.Tags,
	}
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.GetCompanyID(r.Context())
	if companyID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	results := h.searcher.Search(r.Context(), req.Query, companyID, req.Limit)

	responses := make([]*SearchResultResponse, len(results))
	for i, res := range results {
		responses[i] = searchResultToResponse(res)
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results: responses,
		Count:   len(responses),
	})
}
