package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/pricewatch/internal/alerts"
	"github.com/maltedev/pricewatch/internal/api"
	"github.com/maltedev/pricewatch/internal/browser"
	"github.com/maltedev/pricewatch/internal/config"
	"github.com/maltedev/pricewatch/internal/database"
	"github.com/maltedev/pricewatch/internal/diag"
	"github.com/maltedev/pricewatch/internal/fx"
	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/notify"
	"github.com/maltedev/pricewatch/internal/ratelimit"
	"github.com/maltedev/pricewatch/internal/scheduler"
	"github.com/maltedev/pricewatch/internal/store"
	"github.com/maltedev/pricewatch/internal/urlguard"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)
	logger := slog.Default()
	logger.Info("starting pricewatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	st, err := store.Open(cfg.Data.Dir)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	// Telegram credentials from the environment seed settings once so
	// the UI can still edit them later.
	if cfg.Notify.TelegramToken != "" {
		err := st.UpdateSettings(func(set *models.Settings) error {
			if set.TelegramToken == "" {
				set.TelegramToken = cfg.Notify.TelegramToken
				set.TelegramChatID = cfg.Notify.TelegramChatID
			}
			return nil
		})
		if err != nil {
			logger.Warn("failed to seed telegram settings", "error", err)
		}
	}

	diagBuf := diag.New(filepath.Join(cfg.Data.Dir, "diagnostics.json"), diag.DefaultCapacity)

	guard := urlguard.New(cfg.Fetch.AllowedHosts)

	fxTable := fx.NewTable(cfg.FX.URL)
	go fxTable.Run(ctx, cfg.FX.RefreshInterval)

	var cooldowns alerts.CooldownStore = alerts.NewMemoryCooldowns()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, using in-memory cooldowns", "addr", cfg.Redis.Addr, "error", err)
		} else {
			logger.Info("using redis-backed alert cooldowns", "addr", cfg.Redis.Addr)
			cooldowns = alerts.NewRedisCooldowns(rdb)
		}
	}

	dispatcher := notify.NewDispatcher(st.Settings, cfg.Notify.WebhookProxyBase)
	engine := alerts.NewEngine(st.AlertRules, cooldowns, dispatcher)

	var archive scheduler.Archiver
	if cfg.Archive.DatabaseURL != "" {
		a, err := database.NewArchive(ctx, cfg.Archive.DatabaseURL)
		if err != nil {
			logger.Warn("check archive unavailable", "error", err)
		} else {
			defer a.Close()
			archive = a
		}
	}

	pool := browser.NewPool(&browser.Options{
		Headless:       cfg.Browser.Headless,
		ExecutablePath: cfg.Browser.ExecutablePath,
		NavTimeout:     cfg.Browser.NavTimeout,
		SettleDelay:    cfg.Browser.SettleDelay,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		MaxConcurrent:  cfg.Browser.MaxConcurrent,
	})
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Warn("browser close", "error", err)
		}
	}()

	limiter := ratelimit.NewSimpleLimiter(cfg.Sweep.ItemDelayMin, cfg.Sweep.ItemDelayMax)
	sched := scheduler.New(st, guard, pool, fxTable, engine, diagBuf, archive, limiter)
	go sched.Run(ctx, cfg.Sweep.Interval)

	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: api.NewServer(st, sched, guard, diagBuf).Router(cfg.Server.CORSOrigins),
	}
	go func() {
		logger.Info("api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", "error", err)
	}
	logger.Info("bye")
}

func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
