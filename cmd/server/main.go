package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/observer/chatwave/internal/api"
	"github.com/observer/chatwave/internal/auth"
	"github.com/observer/chatwave/internal/config"
	"github.com/observer/chatwave/internal/database"
	"github.com/observer/chatwave/internal/metrics"
	"github.com/observer/chatwave/internal/middleware"
	"github.com/observer/chatwave/internal/pubsub"
	"github.com/observer/chatwave/internal/realtime"
	"github.com/observer/chatwave/internal/server"
	"github.com/observer/chatwave/internal/storage"
	"github.com/observer/chatwave/internal/websocket"
	"github.com/observer/chatwave/migrations"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Structured logging from the start
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create context for initialization
	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect to database
	db, err := database.New(initCtx, cfg.DatabaseURL, database.PoolConfig{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database")

	var schema fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		schema = os.DirFS(cfg.MigrationsDir)
	}
	if err := database.EnsureSchema(initCtx, db, schema, logger); err != nil {
		return err
	}

	// Initialize repositories
	userRepo := database.NewUserRepository(db)
	messageRepo := database.NewMessageRepository(db)
	groupRepo := database.NewGroupRepository(db)
	attachmentRepo := database.NewAttachmentRepository(db)

	tokenService, err := auth.NewTokenService(cfg.JWTSigningKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}
	authService := auth.NewService(userRepo, tokenService)

	// Realtime core: one registry per process, shared by router and handler
	m := metrics.New()
	registry := realtime.NewRegistry(m, logger)
	router := realtime.NewRouter(registry, groupRepo, m, logger)
	relay := realtime.NewSignalRelay(router, logger)

	pubsubURL := cfg.RedisURL
	if cfg.PubSubType == pubsub.BackendNATS {
		pubsubURL = cfg.NATSURL
	}
	ps, err := pubsub.New(cfg.PubSubType, pubsubURL)
	if err != nil {
		return err
	}
	defer ps.Close()
	logger.Info("pubsub ready", "backend", cfg.PubSubType)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The bridge turns published events back into deliveries on this instance
	bridge := realtime.NewBridge(ps, router, logger)
	if err := bridge.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = bridge.Stop() }()
	notifier := realtime.NewPubSubNotifier(ps)

	// Rate limiting for HTTP requests and inbound socket frames
	requestLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMin)
	frameLimiter := middleware.NewRateLimiter(cfg.FramesPerMin)
	go requestLimiter.Run(ctx, 5*time.Minute)
	go frameLimiter.Run(ctx, 5*time.Minute)

	wsHandler := websocket.NewHandler(authService, registry, relay, m, websocket.Options{
		SendBuffer:     cfg.SendBufferSize,
		AllowedOrigins: allowedOrigins(cfg),
		Limiter:        frameLimiter,
	}, logger)

	// Object storage (optional - skip if not configured)
	var uploadHandler *api.UploadHandler
	if cfg.StorageEnabled() {
		blobs, err := storage.NewBlobStore(storage.Config{
			Endpoint:        cfg.StorageEndpoint,
			AccountID:       cfg.StorageAccountID,
			Region:          cfg.StorageRegion,
			AccessKeyID:     cfg.StorageAccessKeyID,
			SecretAccessKey: cfg.StorageSecretKey,
			Bucket:          cfg.StorageBucket,
			UsePathStyle:    cfg.StorageUsePathStyle,
		})
		if err != nil {
			return err
		}
		uploadHandler = api.NewUploadHandler(attachmentRepo, blobs, cfg.MaxUploadBytes, logger)
		logger.Info("object storage initialized", "bucket", cfg.StorageBucket)
	} else {
		logger.Warn("object storage not configured - file uploads disabled")
	}

	deps := &server.Dependencies{
		DB:             db,
		Authenticator:  authService,
		RateLimiter:    requestLimiter,
		AuthHandler:    api.NewAuthHandler(authService, !cfg.IsDevelopment(), logger),
		UserHandler:    api.NewUserHandler(userRepo, registry, logger),
		MessageHandler: api.NewMessageHandler(messageRepo, userRepo, attachmentRepo, notifier, logger),
		GroupHandler:   api.NewGroupHandler(groupRepo, userRepo, attachmentRepo, notifier, logger),
		UploadHandler:  uploadHandler,
		CallHandler: api.NewCallHandler(api.ICEConfig{
			STUNURLs:     cfg.ICESTUNURLs,
			TURNURLs:     cfg.ICETURNURLs,
			TURNUsername: cfg.TURNUsername,
			TURNPassword: cfg.TURNPassword,
		}),
		WSHandler: wsHandler,
		Metrics:   m.Handler(),
		StaticDir: cfg.StaticDir,
		Logger:    logger,
	}
	srv := server.New(cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt or a listener failure
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down gracefully...")

	// Sockets are hijacked, so srv.Shutdown does not wait for them
	wsHandler.Shutdown()

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer timeoutCancel()
	if err := srv.Shutdown(timeoutCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}

	logger.Info("server stopped", "connections", registry.Count())
	return nil
}

// allowedOrigins returns nil in development, which lets any origin connect
func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return nil
	}
	return cfg.AllowedOrigins
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
