package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/hirewise/api/internal/ai"
	"github.com/hirewise/api/internal/archive"
	"github.com/hirewise/api/internal/auth"
	"github.com/hirewise/api/internal/cache"
	"github.com/hirewise/api/internal/client"
	"github.com/hirewise/api/internal/config"
	"github.com/hirewise/api/internal/extract"
	"github.com/hirewise/api/internal/handler"
	"github.com/hirewise/api/internal/health"
	"github.com/hirewise/api/internal/intake"
	"github.com/hirewise/api/internal/janitor"
	"github.com/hirewise/api/internal/logger"
	"github.com/hirewise/api/internal/middleware"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/internal/notify"
	"github.com/hirewise/api/internal/queue"
	"github.com/hirewise/api/internal/server"
	"github.com/hirewise/api/internal/service"
	"github.com/hirewise/api/internal/store"
	ws "github.com/hirewise/api/internal/websocket"
	"github.com/hirewise/api/internal/worker"
)

// @title          HireWise API
// @version        1.0
// @description    AI processing backend for HireWise: uploads, resume parsing, bias detection and interview analysis.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	fs := pflag.NewFlagSet("hirewise-api", pflag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	// Load configuration
	cfg, err := config.Load(fs)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(logger.Config{Level: cfg.Server.LogLevel, Format: cfg.Server.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis not available")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	queueClient := queue.NewClient(asynqClient, inspector, cfg.Worker.TaskTimeout)

	validate := validator.New()

	// Caches
	jobCache := cache.New[string, *model.Job]("jobs", cfg.Cache.JobCapacity, cfg.Cache.JobTTL)
	tokenCache := cache.New[string, *auth.Principal]("tokens", cfg.Cache.TokenCapacity, cfg.Cache.TokenTTL)

	// External clients
	groqClient := client.NewGroqClient(&cfg.Groq)
	embeddingClient := client.NewEmbeddingClient(&cfg.Embedding)
	videoClient := client.NewVideoClient(&cfg.Video)

	// Object storage is optional; without it images and upload intents are unavailable
	// and payloads stay in Redis.
	var storage client.StorageClient
	var storageProbe health.StorageProber
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			logger.Warn().Err(err).Msg("R2 client not initialized")
		} else {
			storage = r2Client
			storageProbe = r2Client
		}
	} else {
		logger.Info().Msg("R2 storage not configured")
	}

	jobStore := store.NewJobStore(redisClient, store.DefaultJobTTL)
	var blobs store.BlobStore = store.NewRedisBlobStore(redisClient, store.DefaultJobTTL)
	if storage != nil {
		blobs = store.NewObjectBlobStore(storage, "tmp/")
	}

	// Postgres archive of finished jobs (optional)
	var archiver service.Archiver
	if cfg.Database.URL != "" {
		pool, err := archive.Connect(ctx, cfg.Database.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("job archive disabled")
		} else {
			defer pool.Close()
			repo := archive.NewRepository(pool)
			if err := repo.Migrate(ctx); err != nil {
				logger.Warn().Err(err).Msg("job archive disabled")
			} else {
				archiver = repo
			}
		}
	}

	// AI orchestrator
	pdfExtractor, err := extract.NewPDFExtractor(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("pdf extraction disabled")
	}
	orchestrator := ai.NewOrchestrator(groqClient, embeddingClient, videoClient, extract.NewDocuments(pdfExtractor), validate)

	// WebSocket hub and cross-instance notifications
	hub := ws.NewHub()
	go hub.Run(ctx)

	dispatcher := notify.NewDispatcher(redisClient, cfg.Notify.Channel, hub)
	if err := dispatcher.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("notification relay unavailable, delivering locally")
		dispatcher = notify.NewDispatcher(nil, cfg.Notify.Channel, hub)
	}

	// Services
	jobService := service.NewJobService(jobStore, blobs, queueClient, dispatcher, archiver, jobCache)
	rules := intake.NewRules(intake.Limits{
		Document:       cfg.Upload.MaxDocumentMB << 20,
		Image:          cfg.Upload.MaxImageMB << 20,
		VideoProfile:   cfg.Upload.MaxVideoProfileMB << 20,
		VideoIntro:     cfg.Upload.MaxVideoIntroMB << 20,
		VideoInterview: cfg.Upload.MaxVideoInterviewMB << 20,
	})
	intakeService := service.NewIntakeService(rules, jobService, orchestrator, storage, cfg.Upload.IntentURLExpiry)

	// Zitadel JWKS verifier (optional - falls back to legacy JWT)
	var tokenVerifier auth.TokenVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			logger.Warn().Err(err).Msg("JWKS verifier not initialized")
		} else {
			defer jwksVerifier.Close()
			tokenVerifier = jwksVerifier
		}
	}
	authenticator := auth.NewAuthenticator(tokenVerifier, cfg.JWT.Secret, tokenCache)

	var apiAuth, socketAuth fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		logger.Info().Msg("gateway mode enabled, using header-based auth")
		apiAuth = middleware.GatewayAuthMiddleware()
		socketAuth = apiAuth
	} else {
		authMiddleware := middleware.NewAuthMiddleware(authenticator)
		apiAuth = authMiddleware.Authenticate()
		socketAuth = authMiddleware.AuthenticateSocket()
	}

	checker := health.NewChecker(3*time.Second,
		health.Redis(health.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })),
		health.AI(groqClient),
		health.VideoAnalysis(videoClient),
		health.Caches(jobCache, tokenCache),
		health.Backlog(queueClient, cfg.Worker.BacklogThreshold),
		health.Storage(storageProbe),
	)

	app := server.New(cfg.MaxBodyBytes(), cfg.Server.LogLevel)
	server.Register(app, &server.Handlers{
		Auth:         handler.NewAuthHandler(authenticator),
		Health:       handler.NewHealthHandler(checker),
		Upload:       handler.NewUploadHandler(intakeService, validate),
		Processing:   handler.NewProcessingHandler(jobService),
		AI:           handler.NewAIHandler(intakeService, validate),
		Notification: handler.NewNotificationHandler(dispatcher, hub, jobService, validate),
		APIAuth:      apiAuth,
		SocketAuth:   socketAuth,
		RateLimiter:  middleware.NewRateLimiter(redisClient),
		Limits:       cfg.RateLimit,
	})

	// Asynq worker server
	workerServer := newWorkerServer(cfg, redisOpt)
	mux := asynq.NewServeMux()
	worker.NewProcessor(jobService, orchestrator).Register(mux)
	if err := workerServer.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("failed to start workers")
	}

	sweeper := janitor.New(jobService, cfg.Worker.SweepSpec, cfg.Worker.StuckAfter)
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start janitor")
	}

	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info().Str("addr", addr).Msg("server starting")
		if err := app.Listen(addr); err != nil {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	sweeper.Stop()
	workerServer.Shutdown()
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues:      queue.Weights(cfg.Worker.MediumWeight, cfg.Worker.LowWeight),
		Logger:      logger.NewAsynqLogger(),
		LogLevel:    asynqLogLevel,
	})
}
