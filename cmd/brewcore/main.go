package main

import (
	"context"
	"errors"
	"expvar"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"brewcore/internal/adapters/httpapi"
	"brewcore/internal/blob"
	"brewcore/internal/config"
	"brewcore/internal/core"
	"brewcore/internal/infra/lock/redis"
	"brewcore/internal/infra/metrics"
	"brewcore/internal/scheduler"
	"brewcore/pkg/domain"
	"brewcore/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := core.OpenPersistentStore(ctx, core.StorageOptions{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}, core.NewDefaultRulesEngine())
	if err != nil {
		baseLogger.Fatal("failed to open store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				baseLogger.Error("failed to close store", zap.Error(err))
			}
		}()
	}

	archiveStore, err := blob.Open(ctx, blob.Options{
		Driver: blob.Driver(cfg.Blob.Driver),
		FSRoot: cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Region:          cfg.Blob.S3.Region,
			Bucket:          cfg.Blob.S3.Bucket,
			Endpoint:        cfg.Blob.S3.Endpoint,
			AccessKeyID:     cfg.Blob.S3.AccessKeyID,
			SecretAccessKey: cfg.Blob.S3.SecretAccessKey,
			SessionToken:    cfg.Blob.S3.SessionToken,
			PathStyle:       cfg.Blob.S3.PathStyle,
		},
	})
	if err != nil {
		baseLogger.Fatal("failed to open archive", zap.String("driver", cfg.Blob.Driver), zap.Error(err))
	}

	locker, closeLocker, err := newLocker(ctx, cfg.Lock, baseLogger.Named("lock"))
	if err != nil {
		baseLogger.Fatal("failed to init locker", zap.String("driver", cfg.Lock.Driver), zap.Error(err))
	}
	defer closeLocker()

	recorder, metricsHandler := newMetrics(cfg.Metrics)
	tracer, closeTracer, err := newTracer(cfg.Trace)
	if err != nil {
		baseLogger.Fatal("failed to open trace output", zap.String("output", cfg.Trace.Output), zap.Error(err))
	}
	defer closeTracer()

	opts := []core.Option{
		core.WithLogger(logger.NewKV(baseLogger.Named("svc.brewery"))),
		core.WithMetricsRecorder(recorder),
		core.WithTracer(tracer),
		core.WithLocker(locker),
		core.WithArchive(core.NewBlobArchive(archiveStore)),
	}
	if cfg.Trace.Audit {
		opts = append(opts, core.WithAuditRecorder(core.NewLogAuditRecorder(logger.NewKV(baseLogger.Named("audit")))))
	}
	svc := core.NewService(store, opts...)

	sched := scheduler.NewScheduler(cfg.Archive.CronSchedule, svc, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	handler := httpapi.NewHandler(svc, baseLogger.Named("handlers.brewery"))
	engine := httpapi.New(handler, metricsHandler, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newLocker selects the in-process or Redis locker. The returned func closes
// any connection it opened.
func newLocker(ctx context.Context, cfg config.LockConfig, log *zap.Logger) (domain.Locker, func(), error) {
	if cfg.Driver != "redis" {
		return core.NewLocalLocker(), func() {}, nil
	}
	client, err := redis.Connect(ctx, cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	locker := redis.NewLocker(client, redis.Options{
		TTL:           cfg.TTL,
		RetryInterval: cfg.RetryInterval,
		Logger:        log,
	})
	return locker, func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", zap.Error(err))
		}
	}, nil
}

// newMetrics returns the recorder handed to the service and the handler
// serving its export on /metrics.
func newMetrics(cfg config.MetricsConfig) (core.MetricsRecorder, http.Handler) {
	if cfg.Driver == "expvar" {
		return core.NewExpvarMetricsRecorder("brewcore_operations"), expvar.Handler()
	}
	recorder := metrics.NewRecorder()
	return recorder, recorder.Handler()
}

// newTracer opens the JSON span log. A nil tracer leaves the service's no-op
// tracer in place.
func newTracer(cfg config.TraceConfig) (core.Tracer, func(), error) {
	switch cfg.Output {
	case "":
		return nil, func() {}, nil
	case "stdout":
		return core.NewJSONTracer(os.Stdout), func() {}, nil
	case "stderr":
		return core.NewJSONTracer(os.Stderr), func() {}, nil
	}
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return core.NewJSONTracer(f), func() { _ = f.Close() }, nil
}
