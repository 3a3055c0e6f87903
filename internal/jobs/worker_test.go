package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/perkwise/perkdocs/internal/pipeline"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockCompanyLister is a mock implementation of CompanyLister
type MockCompanyLister struct {
	mock.Mock
}

func (m *MockCompanyLister) ListCompaniesWithPending(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockBatchProcessor is a mock implementation of BatchProcessor
type MockBatchProcessor struct {
	mock.Mock
}

func (m *MockBatchProcessor) ProcessCompanyDocuments(ctx context.Context, companyID string) ([]pipeline.Result, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pipeline.Result), args.Error(1)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(250 * time.Millisecond)

	// Stop worker
	worker.Stop()
	wg.Wait()

	// Verify ProcessJobs was called at least once
	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	// Start worker in goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(150 * time.Millisecond)

	// Cancel context
	cancel()
	wg.Wait()

	// Verify ProcessJobs was called
	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestPipelineWorker_ProcessJobs_NoPendingCompanies tests when no company has a backlog
func TestPipelineWorker_ProcessJobs_NoPendingCompanies(t *testing.T) {
	mockLister := new(MockCompanyLister)
	mockDriver := new(MockBatchProcessor)

	mockLister.On("ListCompaniesWithPending", mock.Anything).Return([]string{}, nil)

	worker := NewPipelineWorker(mockLister, mockDriver)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockLister.AssertExpectations(t)
	mockDriver.AssertNotCalled(t, "ProcessCompanyDocuments", mock.Anything, mock.Anything)
}

// TestPipelineWorker_ProcessJobs_Success tests successful batch processing
func TestPipelineWorker_ProcessJobs_Success(t *testing.T) {
	mockLister := new(MockCompanyLister)
	mockDriver := new(MockBatchProcessor)

	mockLister.On("ListCompaniesWithPending", mock.Anything).Return([]string{"comp1"}, nil)
	mockDriver.On("ProcessCompanyDocuments", mock.Anything, "comp1").Return([]pipeline.Result{
		{DocumentID: "doc1", Success: true, ChunksProcessed: 3, VectorsStored: 3},
	}, nil)

	worker := NewPipelineWorker(mockLister, mockDriver)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockLister.AssertExpectations(t)
	mockDriver.AssertExpectations(t)
}

// TestPipelineWorker_ProcessJobs_CompanyFailureContinues tests that one company's
// failure does not stop the rest of the sweep
func TestPipelineWorker_ProcessJobs_CompanyFailureContinues(t *testing.T) {
	mockLister := new(MockCompanyLister)
	mockDriver := new(MockBatchProcessor)

	mockLister.On("ListCompaniesWithPending", mock.Anything).Return([]string{"comp1", "comp2"}, nil)
	mockDriver.On("ProcessCompanyDocuments", mock.Anything, "comp1").Return(nil, errors.New("database error"))
	mockDriver.On("ProcessCompanyDocuments", mock.Anything, "comp2").Return([]pipeline.Result{
		{DocumentID: "doc2", Success: true, ChunksProcessed: 1},
	}, nil)

	worker := NewPipelineWorker(mockLister, mockDriver)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockDriver.AssertExpectations(t)
}

// TestPipelineWorker_ProcessJobs_ListerError tests lister error handling
func TestPipelineWorker_ProcessJobs_ListerError(t *testing.T) {
	mockLister := new(MockCompanyLister)
	mockDriver := new(MockBatchProcessor)

	mockLister.On("ListCompaniesWithPending", mock.Anything).Return(nil, errors.New("database error"))

	worker := NewPipelineWorker(mockLister, mockDriver)
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list companies")
	mockLister.AssertExpectations(t)
}
