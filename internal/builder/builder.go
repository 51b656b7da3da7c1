package builder

import (
	"fmt"
	"net/http"
	"time"

	"github.com/futig/interview-orchestrator/internal/api"
	sessionapi "github.com/futig/interview-orchestrator/internal/api/session"
	"github.com/futig/interview-orchestrator/internal/config"
	"github.com/futig/interview-orchestrator/internal/integration/callback"
	"github.com/futig/interview-orchestrator/internal/integration/interview"
	"github.com/futig/interview-orchestrator/internal/media"
	"github.com/futig/interview-orchestrator/internal/pkg/validator"
	"github.com/futig/interview-orchestrator/internal/submission"
	"github.com/futig/interview-orchestrator/internal/telegram"
	"github.com/futig/interview-orchestrator/internal/usecase/session"
	"go.uber.org/zap"
)

// interviewService is what both the real and the mock interview connectors provide
type interviewService interface {
	session.InterviewConnector
	submission.InterviewService
}

func Build() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	// Initialize external service connectors (with mock support)
	var interviewConn interviewService
	if cfg.EnableMocks {
		logger.Info("Using mock connector for the interview service")
		interviewConn = interview.NewMockConnector(cfg.SessionCfg.TotalQuestions, logger)
	} else {
		logger.Info("Using real connector for the interview service")
		interviewConn = interview.NewConnector(cfg.InterviewConnectorCfg, logger)
	}

	callbackConnector := callback.NewConnector(cfg.CallbackConnectorCfg, logger)

	notifiers := session.MultiNotifier{session.LogNotifier{}, callbackConnector}

	var telegramNotifier *telegram.Notifier
	if cfg.TelegramCfg.BotToken != "" {
		telegramNotifier, err = telegram.NewNotifier(cfg.TelegramCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize telegram notifier: %w", err)
		}
		notifiers = append(notifiers, telegramNotifier)
	}
	logger.Info("Connectors initialized", zap.Bool("telegram", telegramNotifier != nil))

	// Capture device
	var device media.Device
	switch cfg.MediaCfg.Device {
	case media.DeviceFFmpeg:
		device = media.NewFFmpegDevice(cfg.MediaCfg.FFmpegPath, logger)
	default:
		device = media.NewSyntheticDevice()
	}
	mediaManager := media.NewManager(device, logger)
	logger.Info("Media manager initialized", zap.String("device", device.Name()))

	// Initialize use cases
	registry := session.NewRegistry(cfg.SessionCfg.IdleTTL, logger)
	sessionUC := session.NewUsecase(
		cfg.SessionCfg,
		cfg.MediaCfg,
		cfg.RecordingCfg,
		registry,
		validator.New(cfg.RequireCallback),
		interviewConn,
		mediaManager,
		submission.NewPipeline(interviewConn, logger),
		notifiers,
		logger,
	)
	logger.Info("Use cases initialized")

	// Setup API handlers
	sessionHandler := sessionapi.NewHandler(sessionUC)

	// Setup router
	router := api.SetupRouter(sessionHandler, api.RouterConfig{
		RequestTimeout: cfg.ServerRequestTimeout,
		DocsSpecPath:   cfg.DocsSpecPath,
		CORS:           cfg.CORS,
	}, logger)
	logger.Info("HTTP router configured")

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ServerRequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	app := &App{
		server:          server,
		sessions:        sessionUC,
		media:           mediaManager,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
	app.closers = append(app.closers, callbackConnector.Close)
	if telegramNotifier != nil {
		app.closers = append(app.closers, telegramNotifier.Close)
	}

	return app, nil
}
