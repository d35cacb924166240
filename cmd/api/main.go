package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentescrow/internal/api"
	"rentescrow/internal/config"
	"rentescrow/internal/database"
	"rentescrow/internal/domain"
	"rentescrow/internal/events"
	"rentescrow/internal/export"
	"rentescrow/internal/gateway"
	"rentescrow/internal/listing"
	"rentescrow/internal/logging"
	"rentescrow/internal/metrics"
	"rentescrow/internal/notify"
	"rentescrow/internal/repository"
	"rentescrow/internal/service"
	"rentescrow/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	banks, err := config.LoadBankCodes(cfg.Gateway.BankCodesFile)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.Gateway.BankCodesFile).Msg("load bank codes")
		return err
	}

	cache, rateCounter := initCache(cfg, redisClient, &logger)
	listings := listing.NewDefaultRegistry(db, cache, &logger)
	squad := gateway.NewClient(cfg.Gateway, gateway.BankCodes(banks), &logger)

	eventBus := events.NewEventBus()
	eventBus.OnError(func(ev *events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})
	initNotifier(cfg, eventBus, &logger)

	// Задачи для таблицы складываются в очередь; разбирает их cmd/worker.
	ledger := worker.NewLedgerProducer(db, redisClient, &logger)

	bookingService := service.NewBookingService(db, listings, squad, eventBus, ledger, cfg.Escrow, &logger)
	reconciler := service.NewReconciler(bookingService, db, listings, &logger)
	userService := service.NewUserService(db, &logger)
	listingService := service.NewListingService(db, listings, &logger)
	exporter := export.NewExporter(bookingService, cfg.Exports.Path, &logger)

	grpcServer, err := api.NewGRPCServer(&cfg.API, db, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}

	httpServer := api.NewHTTPServer(&cfg.API, api.Dependencies{
		Bookings:    bookingService,
		Reconciler:  reconciler,
		Users:       userService,
		Listings:    listingService,
		Exporter:    exporter,
		Health:      db,
		RateCounter: rateCounter,
	}, api.WebhookConfig{
		Secret:           cfg.Gateway.SecretKey,
		RequireSignature: cfg.Gateway.RequireWebhookSignature,
	}, &logger)

	startMetrics(ctx, cfg, &logger)
	go grpcServer.WatchHealth(ctx, 15*time.Second)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initCache builds the listing cache: redis with a process-memory fallback, or
// memory alone. The rate counter is only returned when redis is up, since a
// per-process counter is what the local limiter already does.
func initCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (domain.CacheRepository, api.RateCounter) {
	ttl := cfg.Escrow.ListingCacheTTL
	memory := repository.NewMemoryCacheRepository(ttl)
	if redisClient == nil {
		return memory, nil
	}

	cache := repository.NewFailoverCacheRepository(
		repository.NewRedisCacheRepository(redisClient, ttl),
		memory,
		logger,
	)
	return cache, cache
}

func initNotifier(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.OperatorChatIDs) == 0 {
		logger.Info().Msg("operator notifications disabled")
		return
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram bot init failed, continuing without notifications")
		return
	}
	botAPI.Debug = cfg.Telegram.Debug

	notify.NewTelegramNotifier(notify.NewBotWrapper(botAPI), cfg.Telegram.OperatorChatIDs, logger).Subscribe(bus)
	logger.Info().Str("bot", botAPI.Self.UserName).Msg("operator notifications enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	go func() {
		if !cfg.API.GRPC.Enabled {
			return
		}
		if err := grpcServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Str("grpc_addr", grpcServer.Addr()).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
