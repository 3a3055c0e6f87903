package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/perkwise/perkdocs/internal/pipeline"
)

// CompanyLister finds companies that have documents waiting for ingestion
type CompanyLister interface {
	ListCompaniesWithPending(ctx context.Context) ([]string, error)
}

// BatchProcessor runs the ingestion pipeline for one company's backlog
type BatchProcessor interface {
	ProcessCompanyDocuments(ctx context.Context, companyID string) ([]pipeline.Result, error)
}

// PipelineWorker processes pending documents company by company
type PipelineWorker struct {
	companies CompanyLister
	driver    BatchProcessor
}

// NewPipelineWorker creates a new PipelineWorker instance
func NewPipelineWorker(companies CompanyLister, driver BatchProcessor) *PipelineWorker {
	return &PipelineWorker{
		companies: companies,
		driver:    driver,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *PipelineWorker) ProcessJobs(ctx context.Context) error {
	companyIDs, err := w.companies.ListCompaniesWithPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list companies with pending documents: %w", err)
	}

	if len(companyIDs) == 0 {
		return nil
	}

	log.Printf("Processing pending documents for %d companies", len(companyIDs))

	for _, companyID := range companyIDs {
		results, err := w.driver.ProcessCompanyDocuments(ctx, companyID)
		if err != nil {
			log.Printf("Error processing documents for company %s: %v", companyID, err)
			continue
		}

		for _, r := range results {
			if r.Success {
				log.Printf("Document %s processed: %d chunks, %d vectors", r.DocumentID, r.ChunksProcessed, r.VectorsStored)
			} else {
				log.Printf("Document %s failed: %s", r.DocumentID, r.Error)
			}
		}
	}

	return nil
}
