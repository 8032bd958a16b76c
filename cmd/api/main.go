package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chattersphere/internal/broadcast"
	"chattersphere/internal/config"
	"chattersphere/internal/db"
	"chattersphere/internal/email"
	apihttp "chattersphere/internal/http"
	"chattersphere/internal/repository"
	"chattersphere/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	checks := map[string]apihttp.HealthCheck{}

	var (
		userRepo    repository.UserRepository
		messageRepo repository.MessageRepository
		pool        *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		userRepo = repository.NewPgUserRepository(pool)
		messageRepo = repository.NewPgMessageRepository(pool)
		checks["postgres"] = func(ctx context.Context) error { return db.Ping(ctx, pool) }
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		userRepo = repository.NewMemoryUserRepository()
		messageRepo = repository.NewMemoryMessageRepository()
	}

	window := time.Duration(cfg.ResetRateWindowMinutes) * time.Minute
	var (
		resetLimiter = service.NewRateLimiter(window, cfg.ResetRateMax)
		tokenStore   service.RefreshTokenStore
		redisClient  *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			resetLimiter = service.NewRedisRateLimiter(redisClient, "chattersphere:reset:", window, cfg.ResetRateMax, logger)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var bus broadcast.Broadcaster
	switch cfg.BroadcastBackend {
	case config.BroadcastRedis:
		bus = broadcast.NewRedis(redisClient)
	case config.BroadcastNATS:
		natsBus, err := broadcast.NewNATS(cfg.NATSURL, "chattersphere-api")
		if err != nil {
			logger.Fatal("nats connect", zap.Error(err))
		}
		defer natsBus.Close()
		bus = natsBus
		checks["nats"] = natsBus.Ping
	case config.BroadcastKafka:
		kafkaBus, err := broadcast.NewKafka(cfg.KafkaBrokers, logger)
		if err != nil {
			logger.Fatal("kafka connect", zap.Error(err))
		}
		defer kafkaBus.Close()
		bus = kafkaBus
		checks["kafka"] = kafkaBus.Ping
	default:
		memBus := broadcast.NewMemory()
		defer memBus.Close()
		bus = memBus
	}

	secrets, err := service.NewSecretHasher(cfg.CredentialMode)
	if err != nil {
		logger.Fatal("credential mode", zap.Error(err))
	}

	emailSender := email.NewLogSender(logger)
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if !jwtSvc.Enabled() {
		logger.Info("jwt secret not configured, token routes disabled")
	}

	userSvc := service.NewUserService(logger, userRepo, secrets, emailSender, resetLimiter).
		WithPasswordEntropy(cfg.PasswordMinEntropy)
	messageSvc := service.NewMessageService(logger, messageRepo, userRepo, bus, cfg.BroadcastTopic)

	router := apihttp.NewRouter(
		logger,
		apihttp.NewUserHandler(logger, userSvc, jwtSvc),
		apihttp.NewChatHandler(logger, messageSvc),
		apihttp.NewStreamHandler(logger, bus, cfg.BroadcastTopic),
		apihttp.NewHealthHandler(checks),
		jwtSvc,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("broadcast", cfg.BroadcastBackend),
		zap.String("credentials", cfg.CredentialMode),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
