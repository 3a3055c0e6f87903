package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/perkwise/perkdocs/internal/blob"
	"github.com/perkwise/perkdocs/internal/chunker"
	"github.com/perkwise/perkdocs/internal/config"
	"github.com/perkwise/perkdocs/internal/embedding"
	"github.com/perkwise/perkdocs/internal/extract"
	"github.com/perkwise/perkdocs/internal/openai"
	"github.com/perkwise/perkdocs/internal/pipeline"
	"github.com/perkwise/perkdocs/internal/rag"
	"github.com/perkwise/perkdocs/internal/repository"
	"github.com/perkwise/perkdocs/internal/storage"
)

// ProcessCmd returns the process command
func ProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the ingestion pipeline once",
		Long:  "Process pending documents for one company, or for every company with pending work",
		RunE:  runProcess,
	}

	cmd.Flags().String("company", "", "Only process documents for this company ID")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	vectorRepo := repository.NewVectorRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	var s3Client *storage.S3Client
	if cfg.HasS3() {
		s3Client, err = storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
	}

	embedder := embedding.Unavailable()
	if cfg.HasOpenAI() {
		embedder = embedding.NewProvider(openai.NewClient(cfg.OpenAIAPIKey), nil)
	}

	chunkOpts := chunker.Options{
		MaxChunkSize: cfg.MaxChunkSize,
		OverlapSize:  cfg.OverlapSize,
	}

	orchestrator := rag.NewOrchestrator(chunkRepo, vectorRepo, documentRepo, embedder, chunkOpts, nil)
	fetcher := &BlobFetcher{
		s3:   s3Client,
		http: blob.NewHTTPFetcher(cfg.FetchTimeout),
	}
	driver := pipeline.NewDriver(documentRepo, fetcher, extract.New(), orchestrator, notificationRepo, chunkOpts, nil)

	companyID, _ := cmd.Flags().GetString("company")

	companies := []string{companyID}
	if companyID == "" {
		companies, err = documentRepo.ListCompaniesWithPending(ctx)
		if err != nil {
			return fmt.Errorf("failed to list companies with pending documents: %w", err)
		}
		if len(companies) == 0 {
			log.Println("no pending documents")
			return nil
		}
	}

	failed := 0
	for _, company := range companies {
		results, err := driver.ProcessCompanyDocuments(ctx, company)
		if err != nil {
			return fmt.Errorf("failed to process company %s: %w", company, err)
		}
		for _, result := range results {
			if result.Success {
				log.Printf("processed %s (%s): %d chunks, %d vectors",
					result.DocumentID, result.Title, result.ChunksProcessed, result.VectorsStored)
			} else {
				failed++
				log.Printf("failed %s (%s): %s", result.DocumentID, result.Title, result.Error)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d document(s) failed to process", failed)
	}
	return nil
}
