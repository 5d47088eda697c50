package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Fetch     FetchConfig
	Browser   BrowserConfig
	Sweep     SweepConfig
	FX        FXConfig
	Notify    NotifyConfig
	Archive   ArchiveConfig
	Redis     RedisConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

type DataConfig struct {
	Dir string
}

type FetchConfig struct {
	AllowedHosts []string
}

type BrowserConfig struct {
	Headless       bool
	ExecutablePath string
	NavTimeout     time.Duration
	SettleDelay    time.Duration
	MaxConcurrent  int
}

type SweepConfig struct {
	Interval     time.Duration
	ItemDelayMin time.Duration
	ItemDelayMax time.Duration
}

type FXConfig struct {
	URL             string
	RefreshInterval time.Duration
}

type NotifyConfig struct {
	WebhookProxyBase string
	TelegramToken    string
	TelegramChatID   string
}

type ArchiveConfig struct {
	DatabaseURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8090"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			CORSOrigins:     getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{}),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Data: DataConfig{
			Dir: getEnvOrDefault("DATA_DIR", "./data"),
		},
		Fetch: FetchConfig{
			AllowedHosts: getStringSliceOrDefault("FETCH_ALLOWED_HOSTS", []string{}),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			ExecutablePath: getEnvOrDefault("BROWSER_EXECUTABLE", ""),
			NavTimeout:     getDurationOrDefault("BROWSER_NAV_TIMEOUT", 45*time.Second),
			SettleDelay:    getDurationOrDefault("BROWSER_SETTLE_DELAY", 2*time.Second),
			MaxConcurrent:  getIntOrDefault("BROWSER_MAX_CONCURRENT", 1),
		},
		Sweep: SweepConfig{
			Interval:     getDurationOrDefault("SWEEP_INTERVAL", 60*time.Minute),
			ItemDelayMin: getDurationOrDefault("SWEEP_ITEM_DELAY_MIN", 2*time.Second),
			ItemDelayMax: getDurationOrDefault("SWEEP_ITEM_DELAY_MAX", 3*time.Second),
		},
		FX: FXConfig{
			URL:             getEnvOrDefault("FX_URL", ""),
			RefreshInterval: getDurationOrDefault("FX_REFRESH_INTERVAL", time.Hour),
		},
		Notify: NotifyConfig{
			WebhookProxyBase: getEnvOrDefault("WEBHOOK_PROXY_BASE", ""),
			TelegramToken:    getEnvOrDefault("TELEGRAM_TOKEN", ""),
			TelegramChatID:   getEnvOrDefault("TELEGRAM_CHAT_ID", ""),
		},
		Archive: ArchiveConfig{
			DatabaseURL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Sweep.Interval < time.Minute {
		return fmt.Errorf("SWEEP_INTERVAL must be at least 1m")
	}
	if c.Sweep.ItemDelayMin > c.Sweep.ItemDelayMax {
		return fmt.Errorf("SWEEP_ITEM_DELAY_MIN cannot be greater than SWEEP_ITEM_DELAY_MAX")
	}
	if c.Browser.MaxConcurrent < 1 {
		return fmt.Errorf("BROWSER_MAX_CONCURRENT must be at least 1")
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		return fmt.Errorf("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
