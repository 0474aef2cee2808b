package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"repcirAPI/internal/ai"
	"repcirAPI/internal/billing"
	"repcirAPI/internal/config"
	"repcirAPI/internal/logger"
	"repcirAPI/internal/notification"
	"repcirAPI/internal/queue"
	"repcirAPI/internal/repository"
	"repcirAPI/internal/repository/memory"
	"repcirAPI/internal/repository/postgres"
	"repcirAPI/internal/storage"
	"repcirAPI/middleware"
	"repcirAPI/services"
)

const memoryDatabaseURL = "memory://"

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.Pretty, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clerk.SetKey(cfg.Clerk.SecretKey)
	logger.Info().Msg("Clerk initialized successfully")

	store, dbPool, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open store")
	}
	if dbPool != nil {
		defer func() {
			logger.Info().Msg("Closing database connection pool...")
			dbPool.Close()
		}()
	}

	bus := openBus(cfg)

	application, err := newApp(ctx, cfg, store, bus)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}

	middleware.InitPrometheus(prometheus.DefaultRegisterer)

	rl := middleware.NewRateLimiter(5, 30)
	go rl.Cleanup(ctx)
	go application.hub.Run(ctx)

	handler, err := application.routes(cfg, rl, middleware.VerifyClerkToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build routes")
	}

	server := http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Error starting server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}
	application.dispatcher.Stop()
	if err := bus.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close message bus")
	}

	logger.Info().Msg("Server shutdown complete")
}

// openStore returns the in-memory store for memory:// and Postgres otherwise.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, *pgxpool.Pool, error) {
	if cfg.Database.URL == memoryDatabaseURL {
		logger.Warn().Msg("Using in-memory store, data will not survive a restart")
		s := memory.New()
		s.SeedDefaults()
		return s, nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(connectCtx, postgres.PoolOptions{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("Successfully connected to database")

	if cfg.Database.Migrate {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := postgres.Migrate(migrateCtx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return postgres.New(pool), pool, nil
}

func openBus(cfg *config.Config) queue.Bus {
	if cfg.QueueEnabled() {
		bus, err := queue.DialAMQP(cfg.Queue.URL, 10)
		if err == nil {
			logger.Info().Msg("Connected to AMQP broker")
			return bus
		}
		logger.Warn().Err(err).Msg("Could not connect to AMQP, falling back to in-process bus")
	}
	return queue.NewLocalBus(4, 256)
}

type app struct {
	store      repository.Store
	hub        *services.MessageHub
	dispatcher *services.NotificationDispatcher

	users         *services.UserService
	challenges    *services.ChallengeService
	circles       *services.CircleService
	messages      *services.MessageService
	badges        *services.BadgeService
	feed          *services.FeedService
	workouts      *services.WorkoutService
	billing       *services.BillingService
	notifications *services.NotificationService
	retention     *services.RetentionService
}

// newApp wires the services. Optional providers stay unset when their
// configuration is missing and the dependent endpoints answer 412.
func newApp(ctx context.Context, cfg *config.Config, store repository.Store, bus queue.Bus) (*app, error) {
	a := &app{
		store:      store,
		hub:        services.NewMessageHub(),
		dispatcher: services.NewNotificationDispatcher(0, 0),
	}

	if cfg.FCMEnabled() {
		fcm, err := notification.NewFCMService(ctx, cfg.FCM.CredentialsJSON, cfg.FCM.CredentialsFile)
		if err != nil {
			logger.Warn().Err(err).Msg("Could not initialize FCM")
		} else {
			a.dispatcher.SetPushProvider(fcm)
			logger.Info().Msg("FCM Push Provider initialized successfully")
		}
	}

	mailer := notification.NewMailer(notification.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromName:  cfg.SMTP.FromName,
		FromEmail: cfg.SMTP.FromEmail,
	})

	a.notifications = services.NewNotificationService(store, store, a.dispatcher)
	a.feed = services.NewFeedService(store, store)
	a.badges = services.NewBadgeService(store, store, bus, a.feed, a.notifications)
	a.users = services.NewUserService(store)
	a.challenges = services.NewChallengeService(store, store, a.badges, a.feed, a.notifications)
	a.circles = services.NewCircleService(store, store, a.badges, a.feed, a.notifications, mailer)
	a.messages = services.NewMessageService(store, store, store, a.hub, a.notifications)
	a.workouts = services.NewWorkoutService(store, store, store, bus, a.badges, a.feed, a.notifications, cfg.AI.FreeDailyGenerations)

	var objects services.ObjectStorage
	if cfg.StorageEnabled() {
		s3, err := storage.NewS3Storage(ctx, storage.Options{
			Endpoint:      cfg.Storage.Endpoint,
			Region:        cfg.Storage.Region,
			Bucket:        cfg.Storage.Bucket,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		objects = s3
		a.challenges.SetStorage(s3)
	}

	if cfg.AIEnabled() {
		gen, err := ai.NewGeminiGenerator(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			logger.Warn().Err(err).Msg("Could not initialize workout generator")
		} else {
			a.workouts.SetGenerator(gen)
		}
	}

	var payments services.PaymentProvider
	if cfg.StripeEnabled() {
		payments = billing.NewStripeClient(billing.Options{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			SuccessURL:    cfg.Stripe.SuccessURL,
			CancelURL:     cfg.Stripe.CancelURL,
			PortalReturn:  cfg.Stripe.PortalReturn,
		})
	}
	a.billing = services.NewBillingService(store, store, payments)

	interval, err := cfg.CronInterval()
	if err != nil {
		return nil, err
	}
	day := 24 * time.Hour
	a.retention = services.NewRetentionService(store, objects, services.RetentionPolicy{
		Interval:        interval,
		InvitationAge:   time.Duration(cfg.Retention.InvitationDays) * day,
		JobAge:          time.Duration(cfg.Retention.GenerationJobDays) * day,
		NotificationAge: time.Duration(cfg.Retention.NotificationDays) * day,
		ProofUploadAge:  time.Duration(cfg.Retention.ProofUploadDays) * day,
		ProofBatch:      cfg.Retention.ProofUploadBatch,
	})

	if err := a.badges.Subscribe(); err != nil {
		return nil, err
	}
	if err := a.workouts.Subscribe(); err != nil {
		return nil, err
	}
	return a, nil
}
