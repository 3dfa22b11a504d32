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

// Maps provider identifiers.
const (
	MapsProviderGoogle    = "google"
	MapsProviderHaversine = "haversine"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Scheduling   SchedulingConfig
	Availability AvailabilityConfig
	Recurrence   RecurrenceConfig
	Maps         MapsConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig tunes the scheduling engine.
type SchedulingConfig struct {
	Timezone                 string
	WorkloadThreshold        int
	DefaultEventMinutes      int
	NextOccurrenceHorizonMon int
}

// AvailabilityConfig controls caching of resolved availability.
type AvailabilityConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// RecurrenceConfig configures the background regeneration worker.
type RecurrenceConfig struct {
	Workers           int
	WorkerRetries     int
	RegenerateHorizon time.Duration
}

// MapsConfig selects and configures the distance provider used for routing.
type MapsConfig struct {
	Provider     string
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	MaxWaypoints int
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Enabled:  v.GetBool("REDIS_ENABLED"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduling = SchedulingConfig{
		Timezone:                 v.GetString("SCHEDULING_TIMEZONE"),
		WorkloadThreshold:        positiveInt(v.GetInt("SCHEDULING_WORKLOAD_THRESHOLD"), 6),
		DefaultEventMinutes:      positiveInt(v.GetInt("SCHEDULING_DEFAULT_EVENT_MINUTES"), 60),
		NextOccurrenceHorizonMon: positiveInt(v.GetInt("SCHEDULING_NEXT_OCCURRENCE_HORIZON_MONTHS"), 12),
	}

	cfg.Availability = AvailabilityConfig{
		CacheEnabled: v.GetBool("AVAILABILITY_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("AVAILABILITY_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Recurrence = RecurrenceConfig{
		Workers:           positiveInt(v.GetInt("RECURRENCE_WORKERS"), 1),
		WorkerRetries:     positiveInt(v.GetInt("RECURRENCE_WORKER_RETRIES"), 3),
		RegenerateHorizon: parseDuration(v.GetString("RECURRENCE_REGENERATE_HORIZON"), 30*24*time.Hour),
	}

	provider := strings.ToLower(strings.TrimSpace(v.GetString("MAPS_PROVIDER")))
	if provider != MapsProviderGoogle {
		provider = MapsProviderHaversine
	}
	cfg.Maps = MapsConfig{
		Provider:     provider,
		APIKey:       v.GetString("MAPS_API_KEY"),
		BaseURL:      strings.TrimRight(v.GetString("MAPS_BASE_URL"), "/"),
		Timeout:      parseDuration(v.GetString("MAPS_TIMEOUT"), 5*time.Second),
		MaxWaypoints: positiveInt(v.GetInt("ROUTE_MAX_WAYPOINTS"), 25),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "fieldservice")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_ENABLED", true)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULING_TIMEZONE", "UTC")
	v.SetDefault("SCHEDULING_WORKLOAD_THRESHOLD", 6)
	v.SetDefault("SCHEDULING_DEFAULT_EVENT_MINUTES", 60)
	v.SetDefault("SCHEDULING_NEXT_OCCURRENCE_HORIZON_MONTHS", 12)

	v.SetDefault("AVAILABILITY_CACHE_ENABLED", true)
	v.SetDefault("AVAILABILITY_CACHE_TTL", "10m")

	v.SetDefault("RECURRENCE_WORKERS", 1)
	v.SetDefault("RECURRENCE_WORKER_RETRIES", 3)
	v.SetDefault("RECURRENCE_REGENERATE_HORIZON", "720h")

	v.SetDefault("MAPS_PROVIDER", MapsProviderHaversine)
	v.SetDefault("MAPS_API_KEY", "")
	v.SetDefault("MAPS_BASE_URL", "https://maps.googleapis.com/maps/api")
	v.SetDefault("MAPS_TIMEOUT", "5s")
	v.SetDefault("ROUTE_MAX_WAYPOINTS", 25)
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

// isMissingFile reports a missing .env; SetConfigFile surfaces it as a path error.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
