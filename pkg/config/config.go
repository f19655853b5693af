package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Lock backends for ranking recompute serialization.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	CORS       CORSConfig
	Enrollment EnrollmentConfig
	Ranking    RankingConfig
	Reports    ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

// RedisConfig is only dialled when the ranking lock backend is redis.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// EnrollmentConfig tunes enrollment registration.
type EnrollmentConfig struct {
	CodeMaxAttempts int
}

// RankingConfig controls how ranking recomputes are serialized and dispatched.
type RankingConfig struct {
	LockBackend   string
	LockTTL       time.Duration
	LockWait      time.Duration
	AutoRecompute bool
	Workers       int
	Retries       int
}

// ReportsConfig toggles ranking report exports.
type ReportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	attempts := v.GetInt("ENROLLMENT_CODE_MAX_ATTEMPTS")
	if attempts <= 0 {
		attempts = 10
	}
	cfg.Enrollment = EnrollmentConfig{CodeMaxAttempts: attempts}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("RANKING_LOCK_BACKEND")))
	if backend != LockBackendRedis {
		backend = LockBackendLocal
	}
	cfg.Ranking = RankingConfig{
		LockBackend:   backend,
		LockTTL:       parseDuration(v.GetString("RANKING_LOCK_TTL"), 2*time.Minute),
		LockWait:      parseDuration(v.GetString("RANKING_LOCK_WAIT"), 10*time.Second),
		AutoRecompute: v.GetBool("RANKING_AUTO_RECOMPUTE"),
		Workers:       v.GetInt("RANKING_WORKERS"),
		Retries:       v.GetInt("RANKING_RETRIES"),
	}

	cfg.Reports = ReportsConfig{
		Enabled: v.GetBool("ENABLE_REPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "academic_records")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("ENROLLMENT_CODE_MAX_ATTEMPTS", 10)

	v.SetDefault("RANKING_LOCK_BACKEND", LockBackendLocal)
	v.SetDefault("RANKING_LOCK_TTL", "2m")
	v.SetDefault("RANKING_LOCK_WAIT", "10s")
	v.SetDefault("RANKING_AUTO_RECOMPUTE", false)
	v.SetDefault("RANKING_WORKERS", 1)
	v.SetDefault("RANKING_RETRIES", 2)

	v.SetDefault("ENABLE_REPORTS", true)
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

// isMissingFile covers viper returning a raw path error when SetConfigFile points at a missing .env.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
