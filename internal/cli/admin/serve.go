package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/perkwise/perkdocs/internal/api/handlers"
	"github.com/perkwise/perkdocs/internal/api/middleware"
	"github.com/perkwise/perkdocs/internal/blob"
	"github.com/perkwise/perkdocs/internal/chunker"
	"github.com/perkwise/perkdocs/internal/config"
	"github.com/perkwise/perkdocs/internal/embedding"
	"github.com/perkwise/perkdocs/internal/extract"
	"github.com/perkwise/perkdocs/internal/jobs"
	"github.com/perkwise/perkdocs/internal/openai"
	"github.com/perkwise/perkdocs/internal/pipeline"
	"github.com/perkwise/perkdocs/internal/rag"
	"github.com/perkwise/perkdocs/internal/repository"
	"github.com/perkwise/perkdocs/internal/server"
	"github.com/perkwise/perkdocs/internal/storage"
	"github.com/perkwise/perkdocs/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the perkdocs API server and the background ingestion worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the background ingestion worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	vectorRepo := repository.NewVectorRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	var s3Client *storage.S3Client
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err = storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	}

	var embedder embedding.Provider
	if cfg.HasOpenAI() {
		embedder = embedding.NewProvider(openai.NewClient(cfg.OpenAIAPIKey), nil)
		log.Println("embedding provider configured")
	} else {
		embedder = embedding.Unavailable()
		log.Println("no embedding provider configured, search falls back to keywords")
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

	var pipelineWorker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker {
		processor := jobs.NewPipelineWorker(documentRepo, driver)
		pipelineWorker = jobs.NewWorker(processor, cfg.PipelineInterval)
		go pipelineWorker.Start(ctx)
		log.Println("ingestion worker started")
	}

	var signer handlers.UploadURLSigner
	if s3Client != nil {
		signer = s3Client
	}

	routerCfg := server.RouterConfig{
		AuthValidator:   middleware.NewStaticKeyValidator(cfg.APIKeys),
		SearchHandler:   handlers.NewSearchHandler(orchestrator),
		DocumentHandler: handlers.NewDocumentHandler(documentRepo, signer, driver),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if pipelineWorker != nil {
		pipelineWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// BlobFetcher resolves document file URLs. Keys with the s3:// scheme are
// read from object storage; anything else is fetched over HTTP.
type BlobFetcher struct {
	s3   *storage.S3Client
	http *blob.HTTPFetcher
}

func (f *BlobFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if key, ok := strings.CutPrefix(url, "s3://"); ok {
		if f.s3 == nil {
			return nil, fmt.Errorf("cannot fetch %q: object storage not configured", url)
		}
		return f.s3.GetObject(ctx, key)
	}
	return f.http.Fetch(ctx, url)
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
