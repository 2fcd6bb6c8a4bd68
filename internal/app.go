package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"file-manager-api/config"
	"file-manager-api/internal/application/ports"
	"file-manager-api/internal/application/services"
	domain "file-manager-api/internal/domain/file_info"
	"file-manager-api/internal/infrastructure/cache"
	"file-manager-api/internal/infrastructure/db/postgres"
	"file-manager-api/internal/infrastructure/db/postgres/file_info"
	"file-manager-api/internal/infrastructure/disk"
	"file-manager-api/internal/infrastructure/jwt"
	"file-manager-api/internal/infrastructure/metrics"
	"file-manager-api/internal/infrastructure/mq"
	"file-manager-api/internal/interface/api/rest"
	"file-manager-api/internal/interface/api/rest/middleware"
	"file-manager-api/pkg/rmqconsumer"
)

type App struct {
	logger     *zap.Logger
	cfg        config.Config
	db         *pgxpool.Pool
	storage    *disk.Client
	fileRepo   domain.Repository
	httpSrv    *http.Server
	router     *gin.Engine
	mCounter   *prometheus.CounterVec
	publisher  ports.EventPublisher
	mq         ports.RabbitMQ
	mqConsumer ports.RMQConsumer
	sweeper    ports.SweepService
}

func NewApp(ctx context.Context) (*App, error) {
	// logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("cannot initialize zap logger: %v", err)
	}
	defer logger.Sync()

	// config: .env is optional, the environment always wins
	if err = godotenv.Load(".env"); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Fatal("error loading .env file", zap.Error(err))
		}
		logger.Info("no .env file, using process environment")
	}
	cfg := config.Load()
	if cfg.App.JWTSecret == "" {
		logger.Fatal("SERVICE_JWT_SECRET is required")
	}

	// metrics
	mCounter := metrics.NewCounter()

	// router
	switch cfg.App.Env {
	case gin.ReleaseMode, "prod", "production":
		gin.SetMode(gin.ReleaseMode)
	case gin.TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogGin(logger, mCounter))

	// httpServer
	httpSrv := &http.Server{
		Addr:              cfg.App.Host + ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// db
	dbDsn, err := cfg.DBDSN()
	if err != nil {
		logger.Fatal("DB config error", zap.Error(err))
	}
	if err = postgres.Migrate(logger, dbDsn); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	dbPool, err := postgres.New(ctx, logger, dbDsn)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	fileRepo := file_info.NewRepository(dbPool)
	if cfg.Cache.Size > 0 {
		fileRepo = cache.NewFileInfoRepository(fileRepo, cfg.Cache.Size, cfg.Cache.TTL, mCounter)
	}

	// disk
	storage, err := disk.New(logger, cfg.File)
	if err != nil {
		logger.Fatal("failed to prepare file storage", zap.Error(err))
	}

	app := &App{
		logger:    logger,
		cfg:       cfg,
		db:        dbPool,
		storage:   storage,
		fileRepo:  fileRepo,
		httpSrv:   httpSrv,
		router:    r,
		mCounter:  mCounter,
		publisher: mq.Discard{},
	}

	// rabbitMQ
	if !cfg.MQEnabled() {
		logger.Info("RABBITMQ_HOST is not set, file events are disabled")
		return app, nil
	}
	rabbitDsn, err := cfg.AMQPDSN()
	if err != nil {
		logger.Fatal("RabbitMQ config error", zap.Error(err))
	}
	rbMQ := mq.New(cfg.MQ, logger)
	if err = rbMQ.Connect(ctx, rabbitDsn); err != nil {
		logger.Fatal("failed to connect to rabbitMQ", zap.Error(err))
	}
	if err = rbMQ.Init(); err != nil {
		logger.Fatal("failed init rabbitMQ", zap.Error(err))
	}
	//rmqConsumer
	rmqConsumer := rmqconsumer.New(cfg.MQ, logger, map[string]rmqconsumer.HandlerFunc{
		mq.ActionDeleted: mq.PurgeThumbsOnDelete(storage),
	})
	if err = rmqConsumer.Connect(rabbitDsn); err != nil {
		logger.Fatal("failed to connect rabbitMQ consumer", zap.Error(err))
	}
	if err = rmqConsumer.Init(); err != nil {
		logger.Fatal("failed to init rabbitMQ consumer", zap.Error(err))
	}

	app.mq = rbMQ
	app.publisher = rbMQ
	app.mqConsumer = rmqConsumer

	return app, nil
}

func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.mq != nil && a.mq.GetConn() != nil {
		a.mq.GetConn().Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// Run - The central place to launch and manage our application and
// parallel processes through a single context.
func (a *App) Run(ctx context.Context) error {
	// context with os signals cancel chan
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting "+a.cfg.App.Name, zap.String("addr", a.httpSrv.Addr))
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server "+a.cfg.App.Name+" error: %w", err)
		}

		return nil
	})

	if a.mq != nil {
		g.Go(func() error {
			a.mq.PublisherWorker(ctx)
			return nil
		})
	}

	if a.mqConsumer != nil {
		g.Go(func() error {
			a.mqConsumer.DeliveryWorker(ctx)
			return nil
		})
	}

	if a.sweeper != nil && a.cfg.File.SweepInterval > 0 {
		g.Go(func() error {
			a.sweeper.Run(ctx, a.cfg.File.SweepInterval, a.cfg.File.SweepTTL)
			return nil
		})
	}

	<-ctx.Done()

	a.logger.Info("shutting down " + a.cfg.App.Name + " gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if a.httpSrv != nil {
		if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown "+a.cfg.App.Name+" error", zap.Error(err))
			return err
		}
	}

	if err := g.Wait(); err != nil {
		a.logger.Error(a.cfg.App.Name+" returning an error", zap.Error(err))
		return err
	}

	a.logger.Info(a.cfg.App.Name + " gracefully stopped")

	return nil
}

func (a *App) InitControllers() {
	// services
	jwtService := jwt.New(a.cfg.App.JWTSecret)
	deleteService := services.NewDeleteService(a.storage, a.fileRepo, a.publisher, a.logger, a.mCounter)
	doneService := services.NewDoneService(a.fileRepo, a.publisher, a.logger, a.mCounter)
	a.sweeper = services.NewSweepService(a.fileRepo, deleteService, a.logger, a.mCounter)

	fileServices := rest.FileServices{
		Upload:    services.NewUploadService(a.storage, a.fileRepo, deleteService, doneService, a.publisher, a.logger, a.mCounter),
		Delete:    deleteService,
		Done:      doneService,
		Info:      services.NewInfoService(a.storage, a.fileRepo),
		Download:  services.NewDownloadService(a.storage, a.fileRepo),
		Thumbnail: services.NewThumbnailService(a.storage, a.fileRepo, a.cfg.File, a.logger, a.mCounter),
		Sweep:     a.sweeper,
	}

	// controllers
	rest.NewFileController(a.router, fileServices, a.cfg.File, a.logger, jwtService)

	// ops
	a.router.GET(rest.RouteHealth, func(c *gin.Context) {
		if err := a.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		c.Status(http.StatusOK)
	})
	a.router.GET(rest.RouteMetrics, gin.WrapH(promhttp.Handler()))
}

func (a *App) Logger() *zap.Logger { return a.logger }
