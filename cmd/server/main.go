package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-messaging/internal/api"
	"github.com/npezzotti/go-messaging/internal/cache"
	"github.com/npezzotti/go-messaging/internal/config"
	"github.com/npezzotti/go-messaging/internal/database"
	"github.com/npezzotti/go-messaging/internal/messaging"
	"github.com/npezzotti/go-messaging/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

var (
	addr           string
	databaseURL    string
	signingKey     string
	allowedOrigins stringSliceFlag
	redisURL       string
	cacheTTL       time.Duration
	maxThreadDepth int
)

func main() {
	flag.StringVar(&addr, "addr", envOr("MESSAGING_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&databaseURL, "database-url", envOr("DATABASE_URL", "sqlite3://messaging.db"), "database url (postgres:// or sqlite3://)")
	flag.StringVar(&signingKey, "signing-key", envOr("SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&redisURL, "redis-url", os.Getenv("REDIS_URL"), "redis url for the conversation cache (disabled when empty)")
	flag.DurationVar(&cacheTTL, "cache-ttl", 0, "conversation cache ttl")
	flag.IntVar(&maxThreadDepth, "max-thread-depth", envIntOr("MAX_THREAD_DEPTH", 0), "deepest reply level a thread may have")
	flag.Parse()

	logger := log.New(os.Stderr, "[go-messaging] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, databaseURL, signingKey, allowedOrigins, config.Options{
		RedisURL:       redisURL,
		CacheTTL:       cacheTTL,
		MaxThreadDepth: maxThreadDepth,
	})
	if err != nil {
		logger.Fatal("config:", err)
	}

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("migrate:", err)
	}

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 10*time.Second)
	repo, err := database.Open(openCtx, cfg.DatabaseURL)
	cancelOpen()
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	opts := []messaging.Option{messaging.WithMaxThreadDepth(cfg.MaxThreadDepth)}
	if cfg.RedisURL != "" {
		convCache, err := cache.NewRedisConversationCache(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			logger.Fatal("redis:", err)
		}
		defer convCache.Close()
		opts = append(opts, messaging.WithConversationCache(convCache))
		logger.Printf("conversation cache enabled (ttl %s)\n", cfg.CacheTTL)
	}

	engine := messaging.NewEngine(logger, repo, statsUpdater, opts...)

	srv := api.NewMessagingApp(mux, logger, engine, repo, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
