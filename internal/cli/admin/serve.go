package admin

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/kbrelay/internal/api/handlers"
	"github.com/cloo-solutions/kbrelay/internal/assistant"
	"github.com/cloo-solutions/kbrelay/internal/config"
	"github.com/cloo-solutions/kbrelay/internal/database"
	"github.com/cloo-solutions/kbrelay/internal/openai"
	"github.com/cloo-solutions/kbrelay/internal/partition"
	"github.com/cloo-solutions/kbrelay/internal/reader"
	"github.com/cloo-solutions/kbrelay/internal/registry"
	"github.com/cloo-solutions/kbrelay/internal/repository"
	"github.com/cloo-solutions/kbrelay/internal/server"
	"github.com/cloo-solutions/kbrelay/internal/service"
	"github.com/cloo-solutions/kbrelay/internal/storage"
	"github.com/cloo-solutions/kbrelay/internal/telemetry"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the kbrelay API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migrations source URL")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if closeLog := setupLogFile(cfg.LogFile); closeLog != nil {
		defer closeLog()
	}

	// Initialize Sentry with tracing if a DSN is configured
	if cfg.SentryDSN != "" {
		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		source, _ := cmd.Flags().GetString("migrations")
		if err := database.Migrate(cfg.DatabaseURL, source); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	builder, err := newBuilder(cfg, repository.NewKnowledgeChunkRepository(pool), repository.NewRunRepository(pool))
	if err != nil {
		return fmt.Errorf("failed to create assistant builder: %w", err)
	}
	defer builder.Release()

	var archive service.Archive
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
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
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archive = s3Client
	}

	partitions := partition.NewStore(cfg.UploadDir)
	if err := os.MkdirAll(partitions.Root(), 0o755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}

	kbSvc := service.NewKnowledgeBaseService(
		partitions,
		registry.NewInMemory(),
		reader.New(reader.Config{ChunkSize: cfg.ChunkSize}),
		builder,
		archive,
		service.KnowledgeBaseConfig{
			DefaultKBName:   cfg.DefaultKBName,
			LLMModel:        cfg.LLMModel,
			EmbeddingsModel: cfg.EmbeddingsModel,
			ChatTimeout:     cfg.ChatTimeout,
		},
	)

	router := server.NewRouter(server.RouterConfig{
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(kbSvc),
		AllowedOrigins:       cfg.AllowedOrigins,
		MaxBodyBytes:         cfg.MaxUploadBytes,
		MaxJSONBytes:         cfg.MaxJSONBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// newBuilder wires the model clients into the assistant factory. Without an
// OpenAI key assistants have no knowledge base; without any chat key they
// cannot answer.
func newBuilder(cfg *config.Config, chunks assistant.ChunkStore, runs assistant.RunStore) (*assistant.Builder, error) {
	client := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingsModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatAPIKey:          cfg.ChatAPIKey(),
		ChatBaseURL:         cfg.LLMBaseURL,
		ChatModel:           cfg.LLMModel,
	})

	var embedder assistant.Embedder
	if cfg.HasOpenAI() {
		embedder = client
	} else {
		log.Println("no OpenAI API key configured: uploads will not be indexed")
	}

	var chat assistant.ChatStreamer
	if cfg.ChatAPIKey() != "" {
		chat = client
	} else {
		log.Println("no chat API key configured: chat requests will fail")
	}

	return assistant.NewBuilder(chunks, runs, embedder, chat, assistant.BuilderConfig{
		LLMModel:        cfg.LLMModel,
		EmbeddingsModel: cfg.EmbeddingsModel,
		NumDocuments:    cfg.NumDocuments,
		HistoryMessages: cfg.HistoryMessages,
		EmbedWorkers:    cfg.EmbedWorkers,
	})
}

// setupLogFile mirrors the standard logger into a rotated file. It returns
// nil when no file is configured.
func setupLogFile(path string) func() {
	if path == "" {
		return nil
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 5,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return func() {
		log.SetOutput(os.Stderr)
		rotator.Close()
	}
}
