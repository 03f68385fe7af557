package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyjia/invoice-booking/internal/application/dispatcher"
	"github.com/garyjia/invoice-booking/internal/application/service"
	"github.com/garyjia/invoice-booking/internal/application/workflow"
	"github.com/garyjia/invoice-booking/internal/booking"
	"github.com/garyjia/invoice-booking/internal/config"
	"github.com/garyjia/invoice-booking/internal/infrastructure/export"
	"github.com/garyjia/invoice-booking/internal/infrastructure/external/openai"
	"github.com/garyjia/invoice-booking/internal/infrastructure/external/yuki"
	"github.com/garyjia/invoice-booking/internal/infrastructure/persistence/repository"
	"github.com/garyjia/invoice-booking/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-booking/internal/infrastructure/rasterizer"
	"github.com/garyjia/invoice-booking/internal/infrastructure/storage"
	"github.com/garyjia/invoice-booking/internal/infrastructure/worker"
	httpserver "github.com/garyjia/invoice-booking/internal/interfaces/http"
	"github.com/garyjia/invoice-booking/internal/recognition"
	"github.com/garyjia/invoice-booking/migrations"
	"github.com/garyjia/invoice-booking/pkg/database"
	"github.com/garyjia/invoice-booking/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting invoice booking service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	kv := utils.NewKVLogger(logger)

	// Database and schema
	db, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, migrations.FS, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Repositories
	documentRepo := repository.NewDocumentRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)
	validationRepo := repository.NewValidationRepository(db.DB, logger)
	txManager := sqlite.NewDB(db.DB, logger)

	// Events
	events := dispatcher.NewDispatcher(dispatcher.WithLogger(kv))
	events.SubscribeAll("logging", dispatcher.NewLoggingHandler(kv))
	defer events.Close()

	lifecycle := workflow.NewEngine(documentRepo, auditRepo, validationRepo, txManager,
		workflow.WithDispatcher(events),
		workflow.WithLogger(kv),
	)

	fileStorage, err := storage.NewLocalFileStorage(cfg.Storage.UploadDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize file storage: %w", err)
	}

	// Recognition
	var prompts *openai.PromptConfig
	if cfg.Recognition.PromptsPath != "" {
		prompts, err = openai.LoadPrompts(cfg.Recognition.PromptsPath)
		if err != nil {
			return fmt.Errorf("failed to load prompts: %w", err)
		}
	}
	recognizer := openai.NewRecognizer(openai.Config{
		APIKey:   cfg.Recognition.APIKey,
		Model:    cfg.Recognition.Model,
		BaseURL:  cfg.Recognition.BaseURL,
		Language: cfg.Recognition.Language,
	}, prompts, logger)
	pipeline := recognition.NewPipeline(recognizer, rasterizer.New(cfg.Recognition.RenderZoom, logger), recognition.PipelineConfig{
		Concurrency: cfg.Recognition.Concurrency,
		MaxPages:    cfg.Recognition.MaxPages,
		PageTimeout: cfg.Recognition.Timeout,
	}, logger)

	// Accounting system
	yukiClient, err := yuki.NewClient(yuki.Config{
		BaseURL:  cfg.Yuki.APIURL,
		Username: cfg.Yuki.Username,
		Password: cfg.Yuki.Password,
		Timeout:  cfg.Yuki.RequestTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Yuki client: %w", err)
	}
	booker := booking.NewAdapter(yukiClient, booking.Config{
		AdministrationID: cfg.Yuki.AdministrationID,
		GLAccount:        cfg.Yuki.GLAccount,
		VATGLAccount:     cfg.Yuki.VATGLAccount,
		VATCode:          cfg.Yuki.VATCode,
		MaxRetries:       cfg.Yuki.MaxRetries,
		RetryDelay:       cfg.Yuki.RetryDelay,
		RequestTimeout:   cfg.Yuki.RequestTimeout,
	}, logger)

	// Services
	documents := service.NewDocumentService(
		documentRepo,
		auditRepo,
		validationRepo,
		lifecycle,
		fileStorage,
		pipeline,
		booker,
		service.DocumentServiceConfig{MaxUploadSize: cfg.Server.MaxUploadSize},
		kv,
	)
	exports := service.NewExportService(documentRepo, export.NewXLSXExporter(logger), kv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services := httpserver.Services{
		Documents:  documents,
		Export:     exports,
		Accounting: booker,
	}

	// Background processing
	workers := worker.NewManager(logger)
	if cfg.Worker.AutoProcess {
		processWorker := worker.NewProcessWorker(worker.ProcessWorkerConfig{
			PollInterval:   cfg.Worker.PollInterval,
			BatchSize:      cfg.Worker.BatchSize,
			ProcessTimeout: cfg.Worker.ProcessTimeout,
		}, documentRepo, documents, logger)
		workers.Register(processWorker)
		services.Worker = processWorker
	}
	if err := workers.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer workers.StopAll()

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		MaxUploadSize: cfg.Server.MaxUploadSize,
	}, services, kv)

	// Blocks until SIGINT/SIGTERM or a listener failure
	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("Server exited")
	return nil
}
