// Package extract turns raw document bytes into page-structured text and
// embedded images for the ingestion pipeline.
package extract

import (
	"fmt"
	"strings"

	"github.com/perkwise/perkdocs/internal/domain"
)

// Supported media types
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeText = "text/plain"
)

// ParsedPage is one page of extraction output. Images are self-contained
// data URIs for the raster images painted on the page.
type ParsedPage struct {
	PageNumber int
	Text       string
	Images     []string
}

// ImageRef associates an extracted image with the page that paints it.
type ImageRef struct {
	Page int
	Data string
}

// ParsedDocument is the transient output of extraction: ordered pages, a
// flat image list, and the full text with page texts joined by newlines.
type ParsedDocument struct {
	Text      string
	Pages     []ParsedPage
	Images    []ImageRef
	PageCount int
}

// Extractor parses raw document buffers by declared media type.
type Extractor struct{}

// New creates a new Extractor instance
func New() *Extractor {
	return &Extractor{}
}

// Extract parses a raw document buffer. Media types outside the supported
// set fail with domain.ErrUnsupportedFileType before any parsing is
// attempted; corrupt input fails with domain.ErrExtractionFailed.
func (e *Extractor) Extract(data []byte, mediaType string) (*ParsedDocument, error) {
	switch normalizeMediaType(mediaType) {
	case MediaTypePDF:
		return ParsePDF(data)
	case MediaTypeText:
		text := string(data)
		return &ParsedDocument{
			Text:      text,
			Pages:     []ParsedPage{{PageNumber: 1, Text: text}},
			PageCount: 1,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, mediaType)
	}
}

// normalizeMediaType strips parameters like "; charset=utf-8" and lowercases
// the remaining type.
func normalizeMediaType(mediaType string) string {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
