// Command server starts the framecast API HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"framecast/internal/api"
	"framecast/internal/auth"
	"framecast/internal/intent"
	"framecast/internal/lifecycle"
	"framecast/internal/livecomments"
	"framecast/internal/observability/logging"
	"framecast/internal/observability/metrics"
	"framecast/internal/server"
	"framecast/internal/serverutil"
	"framecast/internal/storage"
	"framecast/internal/videohost"
)

func main() {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	addr := flag.String("addr", "", "HTTP listen address")
	dataPath := flag.String("data", "", "path to JSON datastore")
	storageDriver := flag.String("storage-driver", "", "datastore driver (json or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	sessionStoreDriver := flag.String("session-store", "", "session store driver (memory or redis)")
	sessionRedisAddr := flag.String("session-redis-addr", "", "Redis address for the session store")
	sessionTTL := flag.Duration("session-ttl", 0, "absolute session lifetime")
	sessionIdleTimeout := flag.Duration("session-idle-timeout", 0, "idle timeout before a session expires early")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log output format (json or text)")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	loginLimit := flag.Int("rate-login-limit", 0, "maximum login attempts per window for a single IP")
	loginWindow := flag.Duration("rate-login-window", 0, "window for counting login attempts")
	rateRedisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	rateRedisPassword := flag.String("rate-redis-password", "", "Redis password for distributed login throttling")
	corsOrigins := flag.String("cors-origins", "", "comma separated browser origins allowed to call the API")
	webhookSecret := flag.String("webhook-secret", "", "shared secret for verifying lifecycle webhook signatures")
	hostBaseURL := flag.String("videohost-base-url", "", "base URL of the external video hosting API")
	hostTokenID := flag.String("videohost-token-id", "", "video host API token id")
	hostTokenSecret := flag.String("videohost-token-secret", "", "video host API token secret")
	hostSigningKeyID := flag.String("videohost-signing-key-id", "", "video host signing key id for playback tokens")
	hostSigningKey := flag.String("videohost-signing-key", "", "video host signing private key (PEM) for playback tokens")
	intentDriver := flag.String("intent-cache", "", "pending intent cache driver (memory or redis)")
	intentRedisAddr := flag.String("intent-redis-addr", "", "Redis address for the intent cache")
	queueDriver := flag.String("livecomment-queue-driver", "", "live comment queue driver (memory or redis)")
	queueRedisAddr := flag.String("livecomment-redis-addr", "", "Redis address for the live comment queue")
	queueRedisStream := flag.String("livecomment-redis-stream", "", "Redis stream key for live comment events")
	queueRedisGroup := flag.String("livecomment-redis-group", "", "Redis consumer group for live comment events")
	redisUsername := flag.String("redis-username", "", "Redis username shared by Redis-backed components")
	redisPassword := flag.String("redis-password", "", "Redis password shared by Redis-backed components")
	flag.Parse()

	logger := logging.New(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("FRAMECAST_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("FRAMECAST_LOG_FORMAT")),
	})
	slog.SetDefault(logger)
	auditLogger := logging.WithComponent(logger, "audit")
	recorder := metrics.Default()

	store, err := openStore(*storageDriver, *dataPath, *postgresDSN)
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	sessions, sessionCloser, err := openSessions(sessionConfigFromFlags(
		*sessionStoreDriver, *sessionRedisAddr, *redisUsername, *redisPassword, *sessionTTL, *sessionIdleTimeout,
	))
	if err != nil {
		logger.Error("failed to open session store", "error", err)
		os.Exit(1)
	}

	intents, err := openIntentCache(*intentDriver, *intentRedisAddr, *redisUsername, *redisPassword)
	if err != nil {
		logger.Error("failed to open intent cache", "error", err)
		os.Exit(1)
	}

	host := openVideoHost(videohost.Config{
		BaseURL:           firstNonEmpty(*hostBaseURL, os.Getenv("FRAMECAST_VIDEOHOST_BASE_URL")),
		TokenID:           firstNonEmpty(*hostTokenID, os.Getenv("FRAMECAST_VIDEOHOST_TOKEN_ID")),
		TokenSecret:       firstNonEmpty(*hostTokenSecret, os.Getenv("FRAMECAST_VIDEOHOST_TOKEN_SECRET")),
		SigningKeyID:      firstNonEmpty(*hostSigningKeyID, os.Getenv("FRAMECAST_VIDEOHOST_SIGNING_KEY_ID")),
		SigningPrivateKey: firstNonEmpty(*hostSigningKey, os.Getenv("FRAMECAST_VIDEOHOST_SIGNING_KEY")),
	}, logger)

	queue, err := openLiveCommentQueue(livecommentQueueSettings{
		Driver:   firstNonEmpty(*queueDriver, os.Getenv("FRAMECAST_LIVECOMMENT_QUEUE_DRIVER")),
		Addr:     firstNonEmpty(*queueRedisAddr, os.Getenv("FRAMECAST_LIVECOMMENT_REDIS_ADDR")),
		Stream:   firstNonEmpty(*queueRedisStream, os.Getenv("FRAMECAST_LIVECOMMENT_REDIS_STREAM")),
		Group:    firstNonEmpty(*queueRedisGroup, os.Getenv("FRAMECAST_LIVECOMMENT_REDIS_GROUP")),
		Username: firstNonEmpty(*redisUsername, os.Getenv("FRAMECAST_REDIS_USERNAME")),
		Password: firstNonEmpty(*redisPassword, os.Getenv("FRAMECAST_REDIS_PASSWORD")),
	}, logger)
	if err != nil {
		logger.Error("failed to configure live comment queue", "error", err)
		os.Exit(1)
	}

	gateway := livecomments.NewGateway(livecomments.GatewayConfig{
		Queue:             queue,
		Catalog:           store,
		Logger:            logging.WithComponent(logger, "livecomments"),
		HeartbeatInterval: 30 * time.Second,
	})

	handler := api.NewHandler(store, sessions)
	handler.Intents = intents
	handler.Correlator = lifecycle.NewCorrelator(store, intents, logging.WithComponent(logger, "lifecycle"))
	handler.VideoHost = host
	handler.LiveComments = gateway
	handler.WebhookSecret = firstNonEmpty(*webhookSecret, os.Getenv("FRAMECAST_WEBHOOK_SECRET"))
	handler.Logger = logger
	if handler.WebhookSecret == "" {
		logger.Warn("webhook secret is not configured; lifecycle deliveries will be rejected")
	}

	listenAddr := firstNonEmpty(*addr, os.Getenv("FRAMECAST_ADDR"), ":8080")
	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: serverutil.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("FRAMECAST_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("FRAMECAST_TLS_KEY")),
		},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:     resolveFloat(*globalRPS, "FRAMECAST_RATE_GLOBAL_RPS"),
			GlobalBurst:   resolveInt(*globalBurst, "FRAMECAST_RATE_GLOBAL_BURST"),
			LoginLimit:    resolveInt(*loginLimit, "FRAMECAST_RATE_LOGIN_LIMIT"),
			LoginWindow:   resolveDuration(*loginWindow, "FRAMECAST_RATE_LOGIN_WINDOW", time.Minute),
			RedisAddr:     firstNonEmpty(*rateRedisAddr, os.Getenv("FRAMECAST_RATE_REDIS_ADDR")),
			RedisPassword: firstNonEmpty(*rateRedisPassword, os.Getenv("FRAMECAST_RATE_REDIS_PASSWORD")),
		},
		CORS: server.CORSConfig{
			AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("FRAMECAST_CORS_ORIGINS"))),
		},
		Logger:      logger,
		AuditLogger: auditLogger,
		Metrics:     recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("framecast API listening", "addr", listenAddr)
		return srv.Run(groupCtx)
	})
	group.Go(func() error {
		gateway.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		return runSessionPurger(groupCtx, logging.WithComponent(logger, "session-purger"), sessions, 15*time.Minute)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if closer, ok := queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close live comment queue", "error", err)
		}
	}
	if closer, ok := intents.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close intent cache", "error", err)
		}
	}
	if sessionCloser != nil {
		if err := sessionCloser(); err != nil {
			logger.Warn("failed to close session store", "error", err)
		}
	}
	if closer, ok := store.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(shutdownCtx); err != nil {
			logger.Warn("failed to close datastore", "error", err)
		}
	}

	logger.Info("server stopped")
}

func openStore(flagDriver, flagData, flagDSN string) (storage.Repository, error) {
	driver := strings.ToLower(firstNonEmpty(flagDriver, os.Getenv("FRAMECAST_STORAGE_DRIVER")))
	dsn := firstNonEmpty(flagDSN, os.Getenv("FRAMECAST_POSTGRES_DSN"), os.Getenv("DATABASE_URL"))
	if driver == "" {
		if dsn != "" {
			driver = "postgres"
		} else {
			driver = "json"
		}
	}
	switch driver {
	case "json":
		path := firstNonEmpty(flagData, os.Getenv("FRAMECAST_DATA"), "data/store.json")
		return storage.NewStorage(path)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("postgres storage selected without DSN")
		}
		return storage.NewPostgresRepository(storage.PostgresConfig{DSN: dsn})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

type sessionSettings struct {
	Driver      string
	RedisAddr   string
	Username    string
	Password    string
	TTL         time.Duration
	IdleTimeout time.Duration
}

func sessionConfigFromFlags(driver, redisAddr, username, password string, ttl, idle time.Duration) sessionSettings {
	return sessionSettings{
		Driver:      strings.ToLower(firstNonEmpty(driver, os.Getenv("FRAMECAST_SESSION_STORE"))),
		RedisAddr:   firstNonEmpty(redisAddr, os.Getenv("FRAMECAST_SESSION_REDIS_ADDR")),
		Username:    firstNonEmpty(username, os.Getenv("FRAMECAST_REDIS_USERNAME")),
		Password:    firstNonEmpty(password, os.Getenv("FRAMECAST_REDIS_PASSWORD")),
		TTL:         resolveDuration(ttl, "FRAMECAST_SESSION_TTL", 7*24*time.Hour),
		IdleTimeout: resolveDuration(idle, "FRAMECAST_SESSION_IDLE_TIMEOUT", 0),
	}
}

func openSessions(cfg sessionSettings) (*auth.Manager, func() error, error) {
	driver := cfg.Driver
	if driver == "" {
		if cfg.RedisAddr != "" {
			driver = "redis"
		} else {
			driver = "memory"
		}
	}

	var opts []auth.ManagerOption
	if cfg.IdleTimeout > 0 {
		opts = append(opts, auth.WithIdleTimeout(cfg.IdleTimeout))
	}

	switch driver {
	case "memory":
		return auth.NewManager(cfg.TTL, opts...), nil, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, nil, fmt.Errorf("redis session store selected without address")
		}
		redisStore, err := auth.NewRedisSessionStore(auth.RedisSessionStoreConfig{
			Addr:     cfg.RedisAddr,
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, auth.WithStore(redisStore))
		return auth.NewManager(cfg.TTL, opts...), redisStore.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session store driver %q", driver)
	}
}

func openIntentCache(flagDriver, flagAddr, username, password string) (intent.Cache, error) {
	driver := strings.ToLower(firstNonEmpty(flagDriver, os.Getenv("FRAMECAST_INTENT_CACHE")))
	addr := firstNonEmpty(flagAddr, os.Getenv("FRAMECAST_INTENT_REDIS_ADDR"))
	if driver == "" {
		if addr != "" {
			driver = "redis"
		} else {
			driver = "memory"
		}
	}
	switch driver {
	case "memory":
		return intent.NewMemoryCache(), nil
	case "redis":
		if addr == "" {
			return nil, fmt.Errorf("redis intent cache selected without address")
		}
		return intent.NewRedisCache(intent.RedisCacheConfig{
			Addr:     addr,
			Username: firstNonEmpty(username, os.Getenv("FRAMECAST_REDIS_USERNAME")),
			Password: firstNonEmpty(password, os.Getenv("FRAMECAST_REDIS_PASSWORD")),
		})
	default:
		return nil, fmt.Errorf("unsupported intent cache driver %q", driver)
	}
}

func openVideoHost(cfg videohost.Config, logger *slog.Logger) videohost.Client {
	if cfg.TokenID == "" || cfg.TokenSecret == "" {
		logger.Warn("video host credentials missing; uploads and live streams are disabled")
		return videohost.Disabled{}
	}
	client, err := videohost.NewHTTPClient(cfg)
	if err != nil {
		logger.Warn("video host client unavailable", "error", err)
		return videohost.Disabled{}
	}
	return client
}

type livecommentQueueSettings struct {
	Driver   string
	Addr     string
	Stream   string
	Group    string
	Username string
	Password string
}

func openLiveCommentQueue(cfg livecommentQueueSettings, logger *slog.Logger) (livecomments.Queue, error) {
	switch strings.ToLower(cfg.Driver) {
	case "redis":
		if cfg.Addr == "" {
			return nil, fmt.Errorf("redis addr is required for the live comment queue")
		}
		return livecomments.NewRedisQueue(livecomments.RedisQueueConfig{
			Addr:     cfg.Addr,
			Username: cfg.Username,
			Password: cfg.Password,
			Stream:   cfg.Stream,
			Group:    cfg.Group,
			Logger:   logging.WithComponent(logger, "livecomment-queue"),
		})
	case "", "memory":
		return livecomments.NewMemoryQueue(128), nil
	default:
		return nil, fmt.Errorf("unsupported live comment queue driver %q", cfg.Driver)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	return fallback
}
