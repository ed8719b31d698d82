package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cottage/internal/api"
	"cottage/internal/config"
	"cottage/internal/database"
	"cottage/internal/domain"
	"cottage/internal/events"
	"cottage/internal/google"
	"cottage/internal/logging"
	"cottage/internal/metrics"
	"cottage/internal/repository"
	"cottage/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
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

	location, err := time.LoadLocation(cfg.Google.TimeZone)
	if err != nil {
		return fmt.Errorf("load time zone: %w", err)
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"),
		database.Options{BusyTimeout: cfg.Database.BusyTimeout})
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, sessions := initSessionStore(ctx, cfg, logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	calendar := initCalendar(ctx, cfg, logger)

	eventBus := events.NewEventBus(logging.Component(logger, "events"))
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		metrics.Subscribe(eventBus)
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
	}
	initNotifier(ctx, cfg, eventBus, location, logger)

	services := api.Services{
		Auth: service.NewAuthService(db, sessions, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL,
			logging.Component(logger, "auth")),
		Bookings: service.NewBookingService(db, calendar, eventBus, location,
			logging.Component(logger, "bookings")),
		Issues: service.NewIssueService(db, db, eventBus, location,
			logging.Component(logger, "issues")),
		Users:  service.NewUserService(db, logging.Component(logger, "users")),
		Health: db,
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backupService.Start(ctx)
	}

	httpServer := api.NewHTTPServer(cfg, services, logger)
	return serve(ctx, httpServer, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "server-main"), closer, nil
}

// initSessionStore prefers Redis and falls back to process memory when Redis
// is unset or unreachable.
func initSessionStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.SessionStore) {
	fallback := repository.NewMemorySessionStore()
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("redis not configured, sessions are kept in memory")
		return nil, fallback
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, will retry through failover")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	primary := repository.NewRedisSessionStore(client)
	return client, repository.NewFailoverSessionStore(primary, fallback, logging.Component(logger, "sessions"))
}

func initCalendar(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.CalendarSyncer {
	calLogger := logging.Component(logger, "calendar")
	syncer, err := google.NewCalendarSyncer(ctx, cfg.Google, calLogger)
	if err != nil {
		// bookings keep working without the calendar
		logger.Warn().Err(err).Msg("google calendar init failed, continuing without calendar sync")
		return google.NoopCalendar{}
	}
	if !syncer.Enabled() {
		logger.Info().Msg("google calendar not configured")
		return syncer
	}

	if svc, ok := syncer.(*google.CalendarService); ok {
		if err := svc.TestConnection(ctx); err != nil {
			logger.Warn().Err(err).Msg("google calendar connection test failed")
		}
	}
	logger.Info().Str("calendar_id", cfg.Google.CalendarID).Msg("google calendar connected")
	return syncer
}

func initNotifier(ctx context.Context, cfg *config.Config, bus *events.EventBus, location *time.Location, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.AdminChatIDs) == 0 {
		return
	}

	client := &http.Client{Timeout: cfg.Telegram.RequestTimeout}
	botAPI, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram bot init failed, admin notifications disabled")
		return
	}

	notifier := service.NewTelegramService(botAPI, cfg.Telegram.AdminChatIDs, location, logging.Component(logger, "telegram"))
	notifier.Subscribe(bus)
	go notifier.Run(ctx)
	logger.Info().Str("bot", botAPI.Self.UserName).Int("chats", len(cfg.Telegram.AdminChatIDs)).Msg("telegram notifications enabled")
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
