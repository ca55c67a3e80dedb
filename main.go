package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/nischalstha-ns/e-commerce-sub001/common/logger"
	cmw "github.com/nischalstha-ns/e-commerce-sub001/common/middleware"
	"github.com/nischalstha-ns/e-commerce-sub001/config"
	"github.com/nischalstha-ns/e-commerce-sub001/controllers"
	"github.com/nischalstha-ns/e-commerce-sub001/events"
	awspkg "github.com/nischalstha-ns/e-commerce-sub001/pkg/aws"
	"github.com/nischalstha-ns/e-commerce-sub001/routes"
	"github.com/nischalstha-ns/e-commerce-sub001/services"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// AWS is optional unless a selected backend needs it
	var awsCfg *sdkaws.Config
	if loaded, err := awspkg.LoadAWSConfig(ctx); err == nil {
		awsCfg = &loaded
	}

	var sink io.Writer
	if cfg.CloudWatchEnable && awsCfg != nil {
		if cw, err := awspkg.NewCloudWatchLogsClient(ctx, *awsCfg, cfg.CloudWatchGroup, routes.ServiceName); err == nil {
			sink = cw
		} else {
			fmt.Fprintf(os.Stderr, "CloudWatch Logs disabled: %v\n", err)
		}
	}
	log, err := logger.New(cfg.AppEnv, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if config.UseSecrets() {
		if awsCfg == nil {
			log.Warn("AWS_USE_SECRETS set but AWS config unavailable")
		} else if err := cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(*awsCfg)); err != nil {
			log.Warn("Secrets Manager override failed, using environment", zap.Error(err))
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	b, err := openBackends(ctx, cfg, awsCfg, log)
	if err != nil {
		log.Fatal("Failed to open cart backends", zap.Error(err))
	}
	defer b.Close()

	publisher, err := newEventPublisher(cfg, awsCfg, log)
	if err != nil {
		log.Fatal("Failed to init event publisher", zap.Error(err))
	}
	defer publisher.Close() //nolint:errcheck

	var metrics awspkg.MetricsRecorder
	if awsCfg != nil {
		metrics = awspkg.NewMetricsClient(*awsCfg, cfg.MetricsNamespace, cfg.CloudWatchEnable)
	}

	var opts []services.Option
	if b.idem != nil {
		opts = append(opts, services.WithIdempotencyStore(b.idem))
	}
	cartService := services.NewCartService(b.store, b.notifier, publisher, metrics, log, opts...)

	authn, err := newAuthenticator(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to init authentication", zap.Error(err))
	}

	limiter := cmw.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 10*time.Minute)
	defer limiter.Stop()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	cartController := controllers.NewCartController(cartService, b.notifier, b.store, log)
	router := routes.NewRouter(cartController, routes.Options{
		Logger:         log,
		Metrics:        metrics,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Auth:           authn,
	})

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if cfg.OrderEventsQueue != "" && awsCfg != nil {
		sqsConsumer := awspkg.NewSQSConsumer(*awsCfg, cfg.OrderEventsQueue, log)
		go events.NewOrderEventsConsumer(sqsConsumer, cartService, metrics, log).Start(consumerCtx)
		log.Info("Order events consumer started", zap.String("queue", cfg.OrderEventsQueue))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Cart service started",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.CartStore),
			zap.String("notifier", cfg.Notifier()),
			zap.String("events", cfg.EventsBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down gracefully...")
	stopConsumer()
	// open change streams end with their subscriptions
	_ = b.notifier.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error", zap.Error(err))
	}
	log.Info("Server shutdown complete.")
}
