package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/mediaforge/internal/delivery"
	"github.com/your-org/mediaforge/internal/img"
	"github.com/your-org/mediaforge/internal/ingest"
	"github.com/your-org/mediaforge/internal/jobs"
	"github.com/your-org/mediaforge/internal/metastore"
	"github.com/your-org/mediaforge/internal/profile"
	"github.com/your-org/mediaforge/pkg/config"
	"github.com/your-org/mediaforge/pkg/kafka"
	"github.com/your-org/mediaforge/pkg/logger"
	"github.com/your-org/mediaforge/pkg/storage/objectstore"
	"github.com/your-org/mediaforge/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     parseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	if err := os.MkdirAll(cfg.Upload.StagingDir, 0o755); err != nil {
		logr.Fatal("create staging dir", zap.Error(err))
	}

	// An unreachable metadata store at startup is fatal.
	store, err := metastore.New(ctx, cfg.Metastore.DSN)
	if err != nil {
		logr.Fatal("init metastore", zap.Error(err))
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		logr.Fatal("metastore schema", zap.Error(err))
	}

	objStore, err := objectstore.New(objectstore.Config{
		Provider:  cfg.Storage.Provider,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logr.Fatal("init object store", zap.Error(err))
	}
	defer objStore.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.EventsTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			MaxAttempts:  cfg.Kafka.Retries,
		})
		defer producer.Close() //nolint:errcheck
	}

	uploader := delivery.NewUploader(objStore, delivery.Config{
		PublicDomain:   cfg.Storage.PublicDomain,
		DefaultRegion:  cfg.Storage.DefaultRegion,
		DirectMaxBytes: cfg.Upload.DirectMaxBytes,
		PartSizeBytes:  cfg.Upload.PartSizeBytes,
	}, logr)

	worker := jobs.NewWorker(store, uploader, publisherOrNil(producer), cfg.Worker.Tick, logr)
	defer worker.Shutdown()

	janitor := jobs.NewJanitor(cfg.Upload.StagingDir, cfg.Janitor.MaxAge, cfg.Janitor.Interval, logr)
	if err := janitor.Start(); err != nil {
		logr.Fatal("start janitor", zap.Error(err))
	}
	defer janitor.Shutdown()

	// Resume any queue left over from a previous run.
	if n, err := store.CountByStatus(ctx, jobs.StatusPending); err == nil && n > 0 {
		logr.Info("pending jobs found at startup", zap.Int("count", n))
		worker.EnsureRunning()
	}

	service := ingest.NewService(ingest.Params{
		Resolver:   profile.NewResolver(store),
		Engine:     img.NewEngine(),
		Deliverer:  uploader,
		Jobs:       store,
		Waker:      worker,
		Publisher:  publisherOrNil(producer),
		Logger:     logr,
		AspectMaxW: cfg.Image.AspectMaxW,
		AspectMaxH: cfg.Image.AspectMaxH,
	})

	handler := ingest.NewHTTPHandler(service, logr, cfg.Upload.StagingDir, cfg.Upload.MaxSizeBytes, cfg.Upload.MultipartMemBytes)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("ingestor starting", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}

// publisherOrNil avoids handing a typed-nil *kafka.Producer to interface
// fields when eventing is disabled.
func publisherOrNil(p *kafka.Producer) ingest.Publisher {
	if p == nil {
		return nil
	}
	return p
}

func parseResourceAttributes(raw string) map[string]string {
	attrs := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" || !strings.Contains(pair, "=") {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return attrs
}
