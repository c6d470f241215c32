package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rafaelmq/docquery-back/internal/analysis"
	"github.com/rafaelmq/docquery-back/internal/cache"
	"github.com/rafaelmq/docquery-back/internal/config"
	"github.com/rafaelmq/docquery-back/internal/dispatch"
	httpserver "github.com/rafaelmq/docquery-back/internal/http"
	"github.com/rafaelmq/docquery-back/internal/http/handlers"
	"github.com/rafaelmq/docquery-back/internal/ingest"
	"github.com/rafaelmq/docquery-back/internal/repository"
	"github.com/rafaelmq/docquery-back/internal/retrieval"
	"github.com/rafaelmq/docquery-back/internal/service"
)

func main() {
	logger := log.New(os.Stdout, "[docquery] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, repoCloser := setupRepository(ctx, cfg, logger)
	defer repoCloser()

	cacheStore, cacheCloser := setupCacheStore(ctx, cfg, logger)
	defer cacheCloser()

	embedder := retrieval.NewHashingEmbedder(cfg.EmbeddingDimension)
	index := retrieval.NewMemoryIndex(embedder)

	asyncWriter := cache.NewAsyncWriter(
		cacheStore,
		nil,
		time.Duration(cfg.CacheWriteTimeoutMS)*time.Millisecond,
		logger,
	)
	sweeper := cache.NewSweeper(
		cacheStore,
		cfg.CacheTTLDays,
		time.Duration(cfg.CacheSweepIntervalMin)*time.Minute,
		logger,
	)
	go sweeper.Run(ctx)

	queryService := service.NewQueryService(service.QueryDependencies{
		Store:      cacheStore,
		Writer:     asyncWriter,
		Analyzer:   analysis.NewAnalyzer(),
		Retriever:  index,
		Threshold:  cfg.SimilarityThreshold,
		MaxResults: cfg.MaxSearchResults,
		Logger:     logger,
	})
	jobsService := service.NewJobsService(repo, service.JobsConfig{
		MaxAttempts: cfg.JobMaxAttempts,
		QueueName:   cfg.JobQueueName,
	})
	processor := ingest.NewProcessor(repo, index, ingest.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	}, logger)

	var invoker dispatch.Invoker
	if cfg.WorkerURL != "" {
		// The worker surface sits behind the same bearer check as the rest
		// of the API; without an explicit worker token the API token is it.
		workerToken := cfg.WorkerToken
		if workerToken == "" {
			workerToken = cfg.AuthToken
		}
		invoker = dispatch.NewHTTPInvoker(cfg.WorkerURL, workerToken, time.Duration(cfg.WorkerTimeoutMS)*time.Millisecond)
		logger.Printf("dispatching to external worker url=%s", cfg.WorkerURL)
	} else {
		invoker = dispatch.NewLocalInvoker(processor.Process, logger)
		logger.Printf("WORKER_URL not configured, processing jobs in-process")
	}
	dispatcher := dispatch.NewDispatcher(repo, invoker, cfg.JobQueueName, logger)
	if cfg.DispatchEnabled {
		go dispatcher.Run(ctx, time.Duration(cfg.DispatchIntervalSec)*time.Second)
		logger.Printf("dispatcher loop started interval_s=%d queue=%s", cfg.DispatchIntervalSec, cfg.JobQueueName)
	} else {
		logger.Printf("dispatcher loop disabled, dispatch via POST /v1/jobs/dispatch only")
	}

	api := handlers.NewAPI(handlers.Dependencies{
		JobsService:   jobsService,
		QueryService:  queryService,
		Dispatcher:    dispatcher,
		Processor:     processor,
		DispatchToken: cfg.DispatchToken,
	})
	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := asyncWriter.Close(shutdownCtx); err != nil {
		logger.Printf("abandoning in-flight cache writes: %v", err)
	}
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.JobsRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory job repository")
		return repository.NewMemoryJobsRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresJobsRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres repository, fallback to memory: %v", err)
		return repository.NewMemoryJobsRepository(), func() {}
	}
	logger.Printf("postgres job repository initialized")
	return pgRepo, func() {
		pgRepo.Close()
	}
}

func setupCacheStore(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (cache.Store, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using in-memory query cache")
		return cache.NewMemoryStore(nil), func() {}
	}

	redisStore, err := cache.NewRedisStore(ctx, cache.RedisConfig{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.CacheKeyPrefix,
	}, nil)
	if err != nil {
		logger.Printf("failed to initialize redis cache, fallback to memory: %v", err)
		return cache.NewMemoryStore(nil), func() {}
	}
	logger.Printf("redis query cache initialized prefix=%s", cfg.CacheKeyPrefix)
	return redisStore, func() {
		_ = redisStore.Close()
	}
}
