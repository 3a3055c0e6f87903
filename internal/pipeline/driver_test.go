package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/perkwise/perkdocs/internal/chunker"
	"github.com/perkwise/perkdocs/internal/domain"
	"github.com/perkwise/perkdocs/internal/extract"
	"github.com/perkwise/perkdocs/internal/rag"
)

// MockDocumentStore is a mock for DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) ListPending(ctx context.Context, companyID string) ([]*domain.Document, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) SetProcessing(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentStore) SetContent(ctx context.Context, id, content string) error {
	args := m.Called(ctx, id, content)
	return args.Error(0)
}

func (m *MockDocumentStore) MarkFailed(ctx context.Context, id, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

// MockFetcher is a mock for Fetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockExtractor is a mock for Extractor
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(data []byte, mediaType string) (*extract.ParsedDocument, error) {
	args := m.Called(data, mediaType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extract.ParsedDocument), args.Error(1)
}

// MockIngestor is a mock for Ingestor
type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) IngestChunks(ctx context.Context, doc *domain.Document, pieces []chunker.PageChunk) (*rag.IngestResult, error) {
	args := m.Called(ctx, doc, pieces)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rag.IngestResult), args.Error(1)
}

// MockNotifier is a mock for Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID, documentName string, status domain.DocumentStatus, errorMessage string) error {
	args := m.Called(ctx, userID, documentName, status, errorMessage)
	return args.Error(0)
}

type driverMocks struct {
	store     *MockDocumentStore
	fetcher   *MockFetcher
	extractor *MockExtractor
	ingestor  *MockIngestor
	notifier  *MockNotifier
}

func newTestDriver() (*Driver, *driverMocks) {
	m := &driverMocks{
		store:     new(MockDocumentStore),
		fetcher:   new(MockFetcher),
		extractor: new(MockExtractor),
		ingestor:  new(MockIngestor),
		notifier:  new(MockNotifier),
	}
	d := NewDriver(m.store, m.fetcher, m.extractor, m.ingestor, m.notifier,
		chunker.DefaultOptions(), log.New(io.Discard, "", 0))
	return d, m
}

func pendingDocument(id string) *domain.Document {
	return &domain.Document{
		ID:        id,
		CompanyID: "comp1",
		Title:     "Benefits Handbook",
		FileURL:   "https://blobs.example.com/" + id + ".pdf",
		FileType:  "application/pdf",
		Status:    domain.DocumentStatusPending,
		CreatedBy: "user-1",
	}
}

func TestProcessDocument_Success(t *testing.T) {
	driver, m := newTestDriver()
	ctx := context.Background()
	doc := pendingDocument("doc1")
	raw := []byte("%PDF-1.4 ...")
	parsed := &extract.ParsedDocument{
		Text:      "Health coverage starts on day one.",
		Pages:     []extract.ParsedPage{{PageNumber: 1, Text: "Health coverage starts on day one."}},
		PageCount: 1,
	}

	m.store.On("GetByID", ctx, "doc1").Return(doc, nil)
	m.store.On("SetProcessing", mock.Anything, "doc1").Return(nil)
	m.fetcher.On("Fetch", mock.Anything, doc.FileURL).Return(raw, nil)
	m.extractor.On("Extract", raw, "application/pdf").Return(parsed, nil)
	m.store.On("SetContent", mock.Anything, "doc1", parsed.Text).Return(nil)
	m.ingestor.On("IngestChunks", mock.Anything, doc, mock.AnythingOfType("[]chunker.PageChunk")).
		Return(&rag.IngestResult{ChunksProcessed: 1, VectorsStored: 1}, nil)
	m.notifier.On("Notify", mock.Anything, "user-1", "Benefits Handbook", domain.DocumentStatusProcessed, "").Return(nil)

	result, err := driver.ProcessDocument(ctx, "doc1")

	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksProcessed)
	assert.Equal(t, 1, result.VectorsStored)
	m.store.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
	m.store.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessDocument_ExtractionFailureMarksFailedAndNotifies(t *testing.T) {
	driver, m := newTestDriver()
	ctx := context.Background()
	doc := pendingDocument("doc1")

	m.store.On("GetByID", ctx, "doc1").Return(doc, nil)
	m.store.On("SetProcessing", mock.Anything, "doc1").Return(nil)
	m.fetcher.On("Fetch", mock.Anything, doc.FileURL).Return([]byte("not a pdf"), nil)
	m.extractor.On("Extract", mock.Anything, "application/pdf").Return(nil, domain.ErrExtractionFailed)
	m.store.On("MarkFailed", mock.Anything, "doc1", mock.AnythingOfType("string")).Return(nil)
	m.notifier.On("Notify", mock.Anything, "user-1", "Benefits Handbook", domain.DocumentStatusFailed, mock.AnythingOfType("string")).Return(nil)

	result, err := driver.ProcessDocument(ctx, "doc1")

	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	assert.Nil(t, result)
	m.store.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
	m.ingestor.AssertNotCalled(t, "IngestChunks", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessDocument_EmptyExtractedTextFails(t *testing.T) {
	driver, m := newTestDriver()
	ctx := context.Background()
	doc := pendingDocument("doc1")

	m.store.On("GetByID", ctx, "doc1").Return(doc, nil)
	m.store.On("SetProcessing", mock.Anything, "doc1").Return(nil)
	m.fetcher.On("Fetch", mock.Anything, doc.FileURL).Return([]byte("%PDF-"), nil)
	m.extractor.On("Extract", mock.Anything, "application/pdf").
		Return(&extract.ParsedDocument{Text: "   \n  ", PageCount: 1}, nil)
	m.store.On("MarkFailed", mock.Anything, "doc1", mock.AnythingOfType("string")).Return(nil)
	m.notifier.On("Notify", mock.Anything, "user-1", "Benefits Handbook", domain.DocumentStatusFailed, mock.AnythingOfType("string")).Return(nil)

	_, err := driver.ProcessDocument(ctx, "doc1")

	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
	m.store.AssertNotCalled(t, "SetContent", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessDocument_MissingFileURL(t *testing.T) {
	driver, m := newTestDriver()
	ctx := context.Background()
	doc := pendingDocument("doc1")
	doc.FileURL = ""

	m.store.On("GetByID", ctx, "doc1").Return(doc, nil)
	m.store.On("MarkFailed", mock.Anything, "doc1", mock.AnythingOfType("string")).Return(nil)
	m.notifier.On("Notify", mock.Anything, "user-1", "Benefits Handbook", domain.DocumentStatusFailed, mock.AnythingOfType("string")).Return(nil)

	_, err := driver.ProcessDocument(ctx, "doc1")

	assert.ErrorIs(t, err, domain.ErrMissingFileURL)
	m.store.AssertNotCalled(t, "SetProcessing", mock.Anything, mock.Anything)
}

func TestProcessDocument_FetchFailure(t *testing.T) {
	driver, m := newTestDriver()
	ctx := context.Background()
	doc := pendingDocument("doc1")

	m.store.On("GetByID", ctx, "doc1").Return(doc, nil)
	m.store.On("SetProcessing", mock.Anything, "doc1").Return(nil)
	m.fetcher.On("Fetch", mock.Anything, doc.FileURL).Return(nil, errors.New("status 404"))
	m.store.On("MarkFailed", mock.Anything, "doc1", mock.AnythingOfType("string")).Return(nil)
	m.notifier.On("Notify", mock.Anything, "user-1", "Benefits Handbook", domain.DocumentStatusFailed, mock.AnythingOfType("string")).Return(nil)

	_, err := driver.ProcessDocument(ctx, "doc1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch")
}

func TestProcessDocument_NoCreatorSkipsNotification(t *testing.T) {
	driver, m := newTestDriver()
	ctx := context.Background()
	doc := pendingDocument("doc1")
	doc.CreatedBy = ""
	parsed := &extract.ParsedDocument{
		Text:      "Some text.",
		Pages:     []extract.ParsedPage{{PageNumber: 1, Text: "Some text."}},
		PageCount: 1,
	}

	m.store.On("GetByID", ctx, "doc1").Return(doc, nil)
	m.store.On("SetProcessing", mock.Anything, "doc1").Return(nil)
	m.fetcher.On("Fetch", mock.Anything, doc.FileURL).Return([]byte("%PDF-"), nil)
	m.extractor.On("Extract", mock.Anything, "application/pdf").Return(parsed, nil)
	m.store.On("SetContent", mock.Anything, "doc1", "Some text.").Return(nil)
	m.ingestor.On("IngestChunks", mock.Anything, doc, mock.Anything).
		Return(&rag.IngestResult{ChunksProcessed: 1}, nil)

	_, err := driver.ProcessDocument(ctx, "doc1")

	require.NoError(t, err)
	m.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessDocument_NotificationFailureDoesNotFailPipeline(t *testing.T) {
	driver, m := newTestDriver()
	ctx := context.Background()
	doc := pendingDocument("doc1")
	parsed := &extract.ParsedDocument{
		Text:      "Some text.",
		Pages:     []extract.ParsedPage{{PageNumber: 1, Text: "Some text."}},
		PageCount: 1,
	}

	m.store.On("GetByID", ctx, "doc1").Return(doc, nil)
	m.store.On("SetProcessing", mock.Anything, "doc1").Return(nil)
	m.fetcher.On("Fetch", mock.Anything, doc.FileURL).Return([]byte("%PDF-"), nil)
	m.extractor.On("Extract", mock.Anything, "application/pdf").Return(parsed, nil)
	m.store.On("SetContent", mock.Anything, "doc1", "Some text.").Return(nil)
	m.ingestor.On("IngestChunks", mock.Anything, doc, mock.Anything).
		Return(&rag.IngestResult{ChunksProcessed: 1}, nil)
	m.notifier.On("Notify", mock.Anything, "user-1", "Benefits Handbook", domain.DocumentStatusProcessed, "").
		Return(errors.New("smtp unreachable"))

	_, err := driver.ProcessDocument(ctx, "doc1")

	require.NoError(t, err)
}

func TestProcessCompanyDocuments_ContinuesAfterFailure(t *testing.T) {
	driver, m := newTestDriver()
	ctx := context.Background()

	bad := pendingDocument("bad")
	good := pendingDocument("good")
	goodParsed := &extract.ParsedDocument{
		Text:      "Vision benefits.",
		Pages:     []extract.ParsedPage{{PageNumber: 1, Text: "Vision benefits."}},
		PageCount: 1,
	}

	m.store.On("ListPending", mock.Anything, "comp1").Return([]*domain.Document{bad, good}, nil)

	m.store.On("SetProcessing", mock.Anything, "bad").Return(nil)
	m.fetcher.On("Fetch", mock.Anything, bad.FileURL).Return([]byte("garbage"), nil)
	m.extractor.On("Extract", mock.Anything, "application/pdf").Return(nil, domain.ErrExtractionFailed).Once()
	m.store.On("MarkFailed", mock.Anything, "bad", mock.AnythingOfType("string")).Return(nil)
	m.notifier.On("Notify", mock.Anything, "user-1", "Benefits Handbook", domain.DocumentStatusFailed, mock.AnythingOfType("string")).Return(nil)

	m.store.On("SetProcessing", mock.Anything, "good").Return(nil)
	m.fetcher.On("Fetch", mock.Anything, good.FileURL).Return([]byte("%PDF-"), nil)
	m.extractor.On("Extract", mock.Anything, "application/pdf").Return(goodParsed, nil).Once()
	m.store.On("SetContent", mock.Anything, "good", "Vision benefits.").Return(nil)
	m.ingestor.On("IngestChunks", mock.Anything, good, mock.Anything).
		Return(&rag.IngestResult{ChunksProcessed: 1, VectorsStored: 1}, nil)
	m.notifier.On("Notify", mock.Anything, "user-1", "Benefits Handbook", domain.DocumentStatusProcessed, "").Return(nil)

	results, err := driver.ProcessCompanyDocuments(ctx, "comp1")

	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "bad", results[0].DocumentID)
	assert.False(t, results[0].Success)
	assert.NotEmpty(t, results[0].Error)

	assert.Equal(t, "good", results[1].DocumentID)
	assert.True(t, results[1].Success)
	assert.Equal(t, 1, results[1].ChunksProcessed)
	assert.Equal(t, 1, results[1].VectorsStored)
}

func TestProcessCompanyDocuments_ListFailure(t *testing.T) {
	driver, m := newTestDriver()
	ctx := context.Background()

	m.store.On("ListPending", mock.Anything, "comp1").Return(nil, errors.New("db down"))

	results, err := driver.ProcessCompanyDocuments(ctx, "comp1")

	assert.Error(t, err)
	assert.Nil(t, results)
}

func TestProcessCompanyDocuments_Empty(t *testing.T) {
	driver, m := newTestDriver()
	ctx := context.Background()

	m.store.On("ListPending", mock.Anything, "comp1").Return([]*domain.Document{}, nil)

	results, err := driver.ProcessCompanyDocuments(ctx, "comp1")

	require.NoError(t, err)
	assert.Empty(t, results)
}
