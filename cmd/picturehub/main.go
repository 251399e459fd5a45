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

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"picturehub/internal/auth"
	"picturehub/internal/cache"
	"picturehub/internal/config"
	"picturehub/internal/fetcher"
	"picturehub/internal/handler"
	"picturehub/internal/lock"
	"picturehub/internal/preview"
	"picturehub/internal/repository"
	"picturehub/internal/repository/memstore"
	"picturehub/internal/service"
	"picturehub/internal/storage"
	"picturehub/internal/storage/local"
	"picturehub/internal/storage/s3"
	"picturehub/internal/upload"
	"picturehub/migrations"
)

func connectWithRetry(log *zap.Logger, dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Warn("failed to connect to database",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, err)
}

func runMigrations(log *zap.Logger, cfg *config.Config) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	var m *migrate.Migrate
	for i := 0; i < 5; i++ {
		m, err = migrate.NewWithSourceInstance("iofs", src, cfg.Database.MigrateURL())
		if err == nil {
			break
		}
		log.Warn("failed to create migrate instance", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Warn("found dirty database state, forcing version", zap.Uint("version", version))
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStore(log *zap.Logger, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.Database.Driver == config.DatabaseDriverMemory {
		log.Warn("using in-memory metadata store; data is lost on restart")
		return memstore.New(), func() {}, nil
	}

	db, err := connectWithRetry(log, cfg.Database.GetDSN(), 5, 5*time.Second)
	if err != nil {
		return nil, nil, err
	}
	if err := runMigrations(log, cfg); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database connection", zap.Error(err))
		}
	}
	return repository.NewPostgresStore(db), closeDB, nil
}

func openObjectStore(log *zap.Logger, cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage.Type == config.StorageTypeLocal {
		st, err := local.New(cfg.Storage.LocalPath, cfg.Upload.PublicHost)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	client, err := s3.NewClient(log.Named("s3"), &cfg.S3)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func main() {
	cfg, err := config.NewConfig(config.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Server.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(log, cfg)
	if err != nil {
		log.Fatal("failed to open metadata store", zap.Error(err))
	}
	defer closeStore()

	objects, err := openObjectStore(log, cfg)
	if err != nil {
		log.Fatal("failed to open object store", zap.Error(err))
	}

	var (
		locker    lock.Locker = lock.NewKeyedMutex()
		readCache *cache.ReadCache
		rdb       *redis.Client
	)
	if cfg.Redis.Enabled {
		rdb, err = cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		readCache = cache.New(log.Named("cache"), rdb, cfg.Redis.CachePrefix, cfg.Redis.CacheTTL, cfg.Redis.CacheJitter)
		locker = lock.NewRedisLocker(log.Named("lock"), rdb, cfg.Redis.LockPrefix, cfg.Redis.LockTTL, cfg.Redis.LockWaitTimeout)
	} else {
		log.Info("redis disabled; list cache off and provisioning locks are process-local")
	}

	transformer := preview.NewTransformer(log.Named("preview"))
	pipeline := upload.NewPipeline(log.Named("upload"), objects, transformer, cfg.Upload.TmpDir)
	searcher := fetcher.NewBingFetcher(log.Named("fetcher"), &http.Client{Timeout: cfg.Fetcher.Timeout}, cfg.Fetcher.Endpoint)

	ledger := service.NewQuotaLedger(log.Named("quota"))
	perms := service.NewPermissionService()
	pictureService := service.NewPictureService(log.Named("picture"), store, pipeline, ledger, perms, readCache, searcher)
	spaceService := service.NewSpaceService(log.Named("space"), store, locker, ledger, perms)

	verifier := auth.NewVerifier(cfg.Auth.Secret)
	var objectHandler *handler.ObjectHandler
	if cfg.Storage.Type == config.StorageTypeLocal {
		objectHandler = handler.NewObjectHandler(log.Named("objects"), objects)
	}

	router := handler.NewRouter(
		handler.RouterConfig{
			RequestTimeout: cfg.Server.RequestTimeout,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		},
		handler.NewPictureHandler(log.Named("http"), verifier, pictureService),
		handler.NewSpaceHandler(log.Named("http"), verifier, spaceService),
		objectHandler,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("starting HTTP server",
			zap.String("port", cfg.Server.Port),
			zap.String("storage", objects.Type()),
			zap.String("database", cfg.Database.Driver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited properly")
}
