package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Entitlement EntitlementConfig
	Overview    OverviewConfig
	Attachments AttachmentsConfig
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
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EntitlementConfig carries the annual leave policy tiers. The values are
// policy data, not logic: changing an allotment must never require touching
// the validator or the aggregator.
type EntitlementConfig struct {
	FullTimeAnnual           int
	FullTimeMedical          int
	PermanentPartTimeAnnual  int
	PermanentPartTimeMedical int
	PartTimeAnnual           int
	// PartTimeMedical is overridable because the upstream policy table never
	// confirmed the part-time medical allotment.
	PartTimeMedical int

	// StudentSubmissionCap caps student letters, early-dismissal forms and
	// medical certificates combined, per calendar year.
	StudentSubmissionCap int
}

// OverviewConfig tunes the cached leave overview endpoint.
type OverviewConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// AttachmentsConfig configures signed download URLs for submission files.
type AttachmentsConfig struct {
	SignedURLSecret string
	SignedURLTTL    time.Duration
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
		if !errors.As(err, &notFound) {
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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Entitlement = EntitlementConfig{
		FullTimeAnnual:           v.GetInt("ENTITLEMENT_FULL_TIME_ANNUAL"),
		FullTimeMedical:          v.GetInt("ENTITLEMENT_FULL_TIME_MEDICAL"),
		PermanentPartTimeAnnual:  v.GetInt("ENTITLEMENT_PERMANENT_PART_TIME_ANNUAL"),
		PermanentPartTimeMedical: v.GetInt("ENTITLEMENT_PERMANENT_PART_TIME_MEDICAL"),
		PartTimeAnnual:           v.GetInt("ENTITLEMENT_PART_TIME_ANNUAL"),
		PartTimeMedical:          v.GetInt("ENTITLEMENT_PART_TIME_MEDICAL"),
		StudentSubmissionCap:     v.GetInt("STUDENT_SUBMISSION_CAP"),
	}

	cfg.Overview = OverviewConfig{
		Enabled:  v.GetBool("ENABLE_LEAVE_OVERVIEW"),
		CacheTTL: parseDuration(v.GetString("LEAVE_OVERVIEW_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Attachments = AttachmentsConfig{
		SignedURLSecret: v.GetString("ATTACHMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("ATTACHMENTS_SIGNED_URL_TTL"), 30*time.Minute),
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
	v.SetDefault("DB_NAME", "surm_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENTITLEMENT_FULL_TIME_ANNUAL", 14)
	v.SetDefault("ENTITLEMENT_FULL_TIME_MEDICAL", 14)
	v.SetDefault("ENTITLEMENT_PERMANENT_PART_TIME_ANNUAL", 10)
	v.SetDefault("ENTITLEMENT_PERMANENT_PART_TIME_MEDICAL", 14)
	v.SetDefault("ENTITLEMENT_PART_TIME_ANNUAL", 7)
	v.SetDefault("ENTITLEMENT_PART_TIME_MEDICAL", 7)
	v.SetDefault("STUDENT_SUBMISSION_CAP", 5)

	v.SetDefault("ENABLE_LEAVE_OVERVIEW", true)
	v.SetDefault("LEAVE_OVERVIEW_CACHE_TTL", "5m")

	v.SetDefault("ATTACHMENTS_SIGNED_URL_SECRET", "dev_attachments_secret")
	v.SetDefault("ATTACHMENTS_SIGNED_URL_TTL", "30m")
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
