package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"restaurant-storefront/internal/config"
	"restaurant-storefront/internal/domain/ports/adapter"
	"restaurant-storefront/internal/infra/adapters/notify"
	payAdapters "restaurant-storefront/internal/infra/adapters/payment"
	tele "restaurant-storefront/internal/infra/adapters/telegram"
	"restaurant-storefront/internal/infra/api"
	pg "restaurant-storefront/internal/infra/db/postgres"
	"restaurant-storefront/internal/infra/logging"
	"restaurant-storefront/internal/infra/metrics"
	red "restaurant-storefront/internal/infra/redis"
	"restaurant-storefront/internal/infra/security"
	"restaurant-storefront/internal/infra/sched"
	"restaurant-storefront/internal/infra/worker"
	"restaurant-storefront/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop gateway allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister(nil)
	metrics.SetBuildInfo(version, commit, cfg.Payment.Gateway)

	// ---- Postgres ----
	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("migrations")
		}
		logger.Info().Msg("database migrations applied")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	health := map[string]api.HealthFunc{"postgres": pool.Ping}

	// ---- Redis (optional) ----
	var (
		limiter adapter.RateLimiter = red.NewLocalRateLimiter()
		seen    adapter.SeenCache
		locker  adapter.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		limiter = red.NewFallbackRateLimiter(red.NewRateLimiter(redisClient), limiter, logger)
		seen = red.NewSeenCache(redisClient, red.CallbackSeenPrefix)
		locker = red.NewLocker(redisClient)
		health["redis"] = redisClient.Ping
	} else {
		logger.Warn().Msg("redis not configured: in-process rate limiting, no callback short-circuit, no dispatch lock")
	}

	// ---- Payment gateway ----
	creds := payAdapters.Credentials{
		MerchantID: cfg.Payment.PhonePe.MerchantID,
		SaltKey:    cfg.Payment.PhonePe.SaltKey,
		SaltIndex:  cfg.Payment.PhonePe.SaltIndex,
	}
	var gateway adapter.PaymentGateway
	switch cfg.Payment.Gateway {
	case "noop":
		gateway = payAdapters.NewNoopPaymentGateway()
		if creds.MerchantID == "" || creds.SaltKey == "" || creds.SaltIndex <= 0 {
			creds = payAdapters.DevCredentials()
			logger.Warn().Msg("noop gateway with built-in dev credentials (INSECURE)")
		}
	default:
		gateway, err = payAdapters.NewPhonePeGateway(creds, cfg.Payment.PhonePe.BaseURL, cfg.Payment.PhonePe.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("phonepe gateway")
		}
	}
	verifier, err := payAdapters.NewPhonePeVerifier(creds)
	if err != nil {
		logger.Fatal().Err(err).Msg("phonepe verifier")
	}
	logger.Info().
		Str("gateway", gateway.Name()).
		Str("merchant", logging.Redact(creds.MerchantID, cfg.Runtime.Dev)).
		Int("salt_index", creds.SaltIndex).
		Msg("payment gateway ready")

	// ---- Repositories ----
	var sealer pg.FieldSealer
	if cfg.Database.EncryptionKey != "" {
		fc, err := security.NewFieldCipher(cfg.Database.EncryptionKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("field cipher")
		}
		sealer = fc
		logger.Info().Msg("mobile numbers encrypted at rest")
	}
	orderRepo := pg.NewOrderRepo(pool, sealer)
	callbackRepo := pg.NewCallbackLogRepo(pool)
	outboxRepo := pg.NewOutboxRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Notifiers ----
	notifiers := []adapter.OrderNotifier{notify.NewLogNotifier(logger)}
	if len(cfg.Notify.Kafka.Brokers) > 0 {
		kn := notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic))
		defer kn.Close()
		notifiers = append(notifiers, kn)
		logger.Info().Strs("brokers", cfg.Notify.Kafka.Brokers).Str("topic", cfg.Notify.Kafka.Topic).Msg("kafka notifier enabled")
	}
	if cfg.Notify.Telegram.ChatID != 0 {
		var messenger adapter.StaffMessenger
		if cfg.Notify.Telegram.Token != "" {
			bot, err := tele.NewRealTelegramBotAdapter(&cfg.Notify.Telegram)
			if err != nil {
				logger.Fatal().Err(err).Msg("telegram")
			}
			messenger = bot
		} else {
			messenger = tele.NewNoopBotAdapter(logger)
		}
		notifiers = append(notifiers, notify.NewTelegramNotifier(messenger, cfg.Notify.Telegram.ChatID))
	}

	// ---- Use cases ----
	base := strings.TrimRight(cfg.Server.PublicBaseURL, "/")
	settings := usecase.CheckoutSettings{
		MerchantID: creds.MerchantID,
		RateLimit:  cfg.Payment.RateLimit.Limit,
		RateWindow: cfg.Payment.RateLimit.Window,
	}
	if base != "" {
		settings.DefaultRedirectURL = base + "/payment/success"
		settings.DefaultCallbackURL = base + "/api/payment/webhook"
	}
	checkoutUC := usecase.NewCheckoutUseCase(orderRepo, gateway, limiter, settings, logger)
	callbackUC := usecase.NewCallbackUseCase(verifier, orderRepo, callbackRepo, outboxRepo, txManager, seen, cfg.Redis.TTL, logger)
	orderUC := usecase.NewOrderUseCase(orderRepo, callbackRepo)
	notifUC := usecase.NewNotificationUseCase(outboxRepo, notifiers, cfg.Scheduler.OutboxMaxAttempts, logger)

	// ---- Background workers ----
	workers := worker.NewPool(cfg.Scheduler.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()

	dispatcher := sched.NewOutboxDispatcher(cfg.Scheduler.OutboxInterval, cfg.Scheduler.OutboxBatch, notifUC, workers, locker, red.OutboxDispatchKey, logger)
	watcher := sched.NewPendingWatcher(orderUC, pool, cfg.Scheduler.PendingInterval, cfg.Scheduler.PendingStaleAfter, logger)

	// ---- HTTP ----
	server := api.NewServer(cfg.Server, cfg.Admin, checkoutUC, callbackUC, orderUC, health, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(dispatcher.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(watcher.Run(gctx)) })
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("service stopped with error")
		return
	}
	logger.Info().Msg("service stopped")
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
