package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/config"
	"github.com/JxWayne890/complyflow-financial/internal/database"
	"github.com/JxWayne890/complyflow-financial/internal/event"
	"github.com/JxWayne890/complyflow-financial/internal/generation"
	"github.com/JxWayne890/complyflow-financial/internal/handler"
	"github.com/JxWayne890/complyflow-financial/internal/middleware"
	"github.com/JxWayne890/complyflow-financial/internal/migration"
	"github.com/JxWayne890/complyflow-financial/internal/publisher"
	"github.com/JxWayne890/complyflow-financial/internal/repository"
	"github.com/JxWayne890/complyflow-financial/internal/routes"
	"github.com/JxWayne890/complyflow-financial/internal/scheduler"
	"github.com/JxWayne890/complyflow-financial/internal/service"
	"github.com/JxWayne890/complyflow-financial/internal/workflow"
	"github.com/JxWayne890/complyflow-financial/internal/ws"
	pkgcache "github.com/JxWayne890/complyflow-financial/pkg/cache"
	"github.com/JxWayne890/complyflow-financial/pkg/jwt"
	"github.com/JxWayne890/complyflow-financial/pkg/lock"
	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
	pkgredis "github.com/JxWayne890/complyflow-financial/pkg/redis"
	pkgstorage "github.com/JxWayne890/complyflow-financial/pkg/storage"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const devJWTSecret = "complyflow-dev-secret"

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	log := pkglogger.GetLogger()
	log.Info().Str("app_env", env).Strs("env_files", dotenvFiles).Msg("starting complyflow")

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	config.LogResolved(cfg)

	// Database
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := migration.Run(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	stopDBStats := sampleDBStats(db)
	defer stopDBStats()

	// Redis (optional)
	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, continuing with in-process cache and locks")
			redisClient = nil
		} else {
			log.Info().Msg("connected to redis")
		}
	}
	cacheService := pkgcache.NewService(redisClient)

	// Event bus + websocket fan-out
	bus := event.NewBus()
	hub := ws.NewHub(redisClient)
	go hub.Run()
	hub.Forward(bus)

	// Generation
	clientCfg := generation.ClientConfig{
		BaseURL:     cfg.Generation.BaseURL,
		APIKey:      cfg.Generation.APIKey,
		Model:       cfg.Generation.TextModel,
		Timeout:     cfg.Generation.Timeout,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	}
	imageCfg := clientCfg
	imageCfg.Model = cfg.Generation.ImageModel
	orchestrator := generation.NewOrchestrator(
		generation.NewChatClient(clientCfg, generation.KindText),
		generation.NewChatClient(imageCfg, generation.KindImage),
	)
	if cfg.Generation.APIKey == "" {
		log.Warn().Msg("generation api key not set; generate, extend and rewrite will fail")
	}

	// Publication target
	var pub publisher.Publisher = publisher.Noop{}
	if cfg.Storage.Enabled {
		s3, err := pkgstorage.NewS3Client(pkgstorage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			CDNURL:          cfg.Storage.CDNURL,
			BasePath:        cfg.Storage.BasePath,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init publication archive")
		}
		pub = publisher.NewS3Archive(s3)
	}

	// Services
	store := repository.NewStore(db)
	deps := service.Deps{
		Store:  store,
		Locker: lock.New(redisClient, cfg.Workflow.LockTTL),
		Bus:    bus,
		Cache:  cacheService,
		Policy: workflow.Policy{AllowSelfReview: cfg.Workflow.AllowSelfReview},
	}
	contentService := service.NewContentService(deps)
	versionService := service.NewVersionService(deps)
	workflowService := service.NewWorkflowService(deps, pub)
	generationService := service.NewGenerationService(deps, orchestrator)
	rewriteService := service.NewRewriteService(deps, orchestrator, service.RewriteOptions{
		MinSelectionChars: cfg.Rewrite.MinSelectionChars,
		HighlightDuration: cfg.Rewrite.HighlightDuration,
	})

	// Scheduled publication
	sched, err := scheduler.New(cfg.Workflow.ScheduleCron, workflowService)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid workflow.schedule_cron")
	}
	sched.Start()

	// HTTP
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	secret := cfg.JWT.Secret
	if secret == "" {
		log.Warn().Msg("jwt.secret not set, using development secret")
		secret = devJWTSecret
	}

	checks := map[string]routes.HealthCheck{"database": store.Ping}
	if redisClient != nil {
		checks["redis"] = cacheService.Ping
	}
	router := routes.NewEngine(cfg.Server.AllowOrigins, checks)
	routes.Setup(router, routes.Handlers{
		Content:    handler.NewContentHandler(contentService, versionService),
		Workflow:   handler.NewWorkflowHandler(workflowService),
		Generation: handler.NewGenerationHandler(generationService, rewriteService),
		WS:         handler.NewWSHandler(hub, contentService, cfg.Server.AllowOrigins),
	}, jwt.NewManager(secret), routes.Options{
		Redis:                   redisClient,
		GenerationRatePerMinute: cfg.Generation.RatePerMinute,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		// generation requests block for the length of the model call
		WriteTimeout: cfg.Generation.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	sched.Stop(ctx)
	hub.Stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}

// sampleDBStats feeds the connection gauge until the returned func is called
func sampleDBStats(db *gorm.DB) func() {
	sqlDB, err := db.DB()
	if err != nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				middleware.SetDBConnectionsInUse(sqlDB.Stats().InUse)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
