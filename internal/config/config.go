package config // package config loads application configuration from .env and environment variables

import (
    "errors"
    "fmt"
    "io/fs"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/spf13/viper"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; nested sections group the settings of one
// subsystem.
type Config struct {
    Env         string // application environment (e.g. "dev", "prod")
    Port        string // HTTP port to listen on
    LogLevel    string // zap level name
    JWTSecret   string // secret used to verify JWTs
    RabbitMQURL string // broker URL; empty disables event publishing

    DB        DBConfig
    Booking   BookingConfig
    RateLimit RateLimitConfig
    Cache     CacheConfig
    Redis     RedisConfig
}

// DBConfig holds the MySQL connection settings.
type DBConfig struct {
    User         string
    Pass         string // optional
    Host         string
    Port         string
    Name         string
    MaxOpenConns int
    AutoMigrate  bool // create missing tables on boot
}

// BookingConfig tunes the reservation coordinator and the completion
// sweep.
type BookingConfig struct {
    MaxClaimAttempts int
    TxRetries        int
    RetryBase        time.Duration
    SweepInterval    time.Duration // 0 disables the sweep
}

var required = []string{"APP_PORT", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME", "JWT_SECRET"}

// Load reads .env (when present) into the process environment and then
// resolves every setting through viper, which falls back to the
// defaults below.  Missing required variables are reported together.
func Load() (Config, error) {
    if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
        return Config{}, fmt.Errorf("load .env: %w", err)
    }

    v := viper.New()
    v.AutomaticEnv()
    setDefaults(v)

    var missing []string
    for _, k := range required {
        if strings.TrimSpace(v.GetString(k)) == "" {
            missing = append(missing, k)
        }
    }
    if len(missing) > 0 {
        return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
    }

    cfg := Config{
        Env:         v.GetString("APP_ENV"),
        Port:        v.GetString("APP_PORT"),
        LogLevel:    v.GetString("LOG_LEVEL"),
        JWTSecret:   v.GetString("JWT_SECRET"),
        RabbitMQURL: v.GetString("RABBITMQ_URL"),
        DB: DBConfig{
            User:         v.GetString("DB_USER"),
            Pass:         v.GetString("DB_PASS"),
            Host:         v.GetString("DB_HOST"),
            Port:         v.GetString("DB_PORT"),
            Name:         v.GetString("DB_NAME"),
            MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
            AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
        },
        Booking: BookingConfig{
            MaxClaimAttempts: v.GetInt("BOOKING_MAX_CLAIM_ATTEMPTS"),
            TxRetries:        v.GetInt("BOOKING_TX_RETRIES"),
            RetryBase:        v.GetDuration("BOOKING_RETRY_BASE"),
            SweepInterval:    v.GetDuration("COMPLETION_SWEEP_INTERVAL"),
        },
        RateLimit: loadRateLimitConfig(v),
        Cache:     loadCacheConfig(v),
        Redis:     loadRedisConfig(v),
    }
    if cfg.RabbitMQURL == "" {
        cfg.RabbitMQURL = v.GetString("AMQP_URL")
    }
    if cfg.Booking.MaxClaimAttempts < 1 {
        return Config{}, fmt.Errorf("BOOKING_MAX_CLAIM_ATTEMPTS must be at least 1")
    }
    if cfg.Booking.TxRetries < 1 {
        return Config{}, fmt.Errorf("BOOKING_TX_RETRIES must be at least 1")
    }
    return cfg, nil
}

func setDefaults(v *viper.Viper) {
    v.SetDefault("APP_ENV", "dev")
    v.SetDefault("LOG_LEVEL", "info")
    v.SetDefault("DB_MAX_OPEN_CONNS", 25)
    v.SetDefault("DB_AUTO_MIGRATE", false)
    v.SetDefault("BOOKING_MAX_CLAIM_ATTEMPTS", 3)
    v.SetDefault("BOOKING_TX_RETRIES", 3)
    v.SetDefault("BOOKING_RETRY_BASE", "20ms")
    v.SetDefault("COMPLETION_SWEEP_INTERVAL", "1m")

    v.SetDefault("RATE_LIMIT_ENABLED", true)
    v.SetDefault("RATE_LIMIT_CAPACITY", 60)
    v.SetDefault("RATE_LIMIT_REFILL_TOKENS", 1)
    v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", "1s")
    v.SetDefault("RATE_LIMIT_TTL", "10m")
    v.SetDefault("RATE_LIMIT_KEY_STRATEGY", "ip_user_route")
    v.SetDefault("RATE_LIMIT_PREFIX", "rl")
    v.SetDefault("RATE_LIMIT_DEBUG", false)

    v.SetDefault("CACHE_ENABLED", true)
    v.SetDefault("CACHE_METHODS", "GET")
    v.SetDefault("CACHE_TTL", "30s")
    v.SetDefault("CACHE_KEY_STRATEGY", "route_query")
    v.SetDefault("CACHE_PREFIX", "cache")
    v.SetDefault("CACHE_MAX_BODY_BYTES", 1048576)

    v.SetDefault("REDIS_DB", 0)
}
