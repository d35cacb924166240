package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"rentescrow/internal/config"
	"rentescrow/internal/database"
	"rentescrow/internal/domain"
	"rentescrow/internal/events"
	"rentescrow/internal/export"
	"rentescrow/internal/gateway"
	"rentescrow/internal/google"
	"rentescrow/internal/listing"
	"rentescrow/internal/logging"
	"rentescrow/internal/notify"
	"rentescrow/internal/repository"
	"rentescrow/internal/service"
	"rentescrow/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const cacheRefreshInterval = 10 * time.Minute

type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	closer   io.Closer
	db       *database.DB
	redis    *redis.Client
	bookings *service.BookingService
}

func bootstrap(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{
		cfg:    cfg,
		logger: baseLogger.With().Str("component", "worker-main").Logger(),
		closer: closer,
	}

	a.db, err = database.NewDB(cfg.Database.Path, &a.logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.Redis.Address != "" {
		client := repository.NewRedisClient(cfg.Redis)
		if err := repository.Ping(cmd.Context(), client); err != nil {
			a.logger.Warn().Err(err).Msg("Redis unavailable")
			_ = client.Close()
		} else {
			a.redis = client
		}
	}

	banks, err := config.LoadBankCodes(cfg.Gateway.BankCodesFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	memory := repository.NewMemoryCacheRepository(cfg.Escrow.ListingCacheTTL)
	var cache domain.CacheRepository = memory
	if a.redis != nil {
		cache = repository.NewFailoverCacheRepository(
			repository.NewRedisCacheRepository(a.redis, cfg.Escrow.ListingCacheTTL), memory, &a.logger)
	}
	listings := listing.NewDefaultRegistry(a.db, cache, &a.logger)

	bus := events.NewEventBus()
	bus.OnError(func(ev *events.Event, err error) {
		a.logger.Error().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})
	a.subscribeNotifier(bus)

	ledger := worker.NewLedgerProducer(a.db, a.redis, &a.logger)
	a.bookings = service.NewBookingService(
		a.db,
		listings,
		gateway.NewClient(cfg.Gateway, gateway.BankCodes(banks), &a.logger),
		bus,
		ledger,
		cfg.Escrow,
		&a.logger,
	)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

func (a *app) exporter() *export.Exporter {
	return export.NewExporter(a.bookings, a.cfg.Exports.Path, &a.logger)
}

// ledgerWorker returns nil when the ledger spreadsheet is not configured.
func (a *app) ledgerWorker(ctx context.Context) (*worker.LedgerWorker, error) {
	g := a.cfg.Google
	if g.CredentialsFile == "" || g.LedgerSpreadsheetID == "" {
		a.logger.Info().Msg("ledger spreadsheet not configured, sync disabled")
		return nil, nil
	}

	sheets, err := google.NewLedgerSheets(ctx, g.CredentialsFile, g.LedgerSpreadsheetID, g.LedgerSheetName)
	if err != nil {
		return nil, fmt.Errorf("init ledger sheets: %w", err)
	}
	if err := sheets.TestConnection(ctx); err != nil {
		email, _ := google.GetServiceAccountEmail(g.CredentialsFile)
		a.logger.Error().Err(err).Str("service_account", email).Msg("Нет доступа к таблице, выдайте доступ сервисному аккаунту")
		return nil, err
	}
	go sheets.StartCacheRefresh(ctx, cacheRefreshInterval)

	return worker.NewLedgerWorker(a.db, sheets, a.redis, worker.RetryPolicy{}, &a.logger), nil
}

func (a *app) subscribeNotifier(bus *events.EventBus) {
	tg := a.cfg.Telegram
	if tg.BotToken == "" || len(tg.OperatorChatIDs) == 0 {
		return
	}

	botAPI, err := tgbotapi.NewBotAPI(tg.BotToken)
	if err != nil {
		a.logger.Warn().Err(err).Msg("telegram bot init failed, continuing without notifications")
		return
	}
	botAPI.Debug = tg.Debug
	notify.NewTelegramNotifier(notify.NewBotWrapper(botAPI), tg.OperatorChatIDs, &a.logger).Subscribe(bus)
}
