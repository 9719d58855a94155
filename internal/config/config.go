/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables (and an
 * optional .env file), providing a centralized way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"math"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultServerPort       = "8080"
	defaultRateLimitPrefix  = "fuel:rate_limit"
	defaultRefillRatePerMin = 60
	defaultEventsExchange   = "fuel.events"
	defaultAnomalyThreshold = 8.12
	defaultReportSchedule   = "@every 15m"
	defaultLogLevel         = "info"
	reportScheduleDisabled  = "off"
)

// Config holds all the configuration variables for the fuel service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string  `mapstructure:"SERVER_PORT"`
	DatabaseURL              string  `mapstructure:"DATABASE_URL"`
	APIKey                   string  `mapstructure:"API_KEY"`
	ReviewerJWKSURL          string  `mapstructure:"REVIEWER_JWKS_URL"`
	RedisURL                 string  `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string  `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RefillRateLimitPerMinute int     `mapstructure:"REFILL_RATE_LIMIT_PER_MINUTE"`
	RabbitMQURL              string  `mapstructure:"RABBITMQ_URL"`
	EventsExchange           string  `mapstructure:"EVENTS_EXCHANGE"`
	AnomalyPriceThreshold    float64 `mapstructure:"ANOMALY_PRICE_THRESHOLD"`
	ReportSchedule           string  `mapstructure:"REPORT_SCHEDULE"`
	LogLevel                 string  `mapstructure:"LOG_LEVEL"`
	RunMigrations            bool    `mapstructure:"RUN_MIGRATIONS"`
}

// ReportEnabled reports whether the backlog report should be scheduled.
// REPORT_SCHEDULE=off disables it.
func (c Config) ReportEnabled() bool {
	return c.ReportSchedule != "" && !strings.EqualFold(c.ReportSchedule, reportScheduleDisabled)
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRateLimitPrefix)
	viper.SetDefault("REFILL_RATE_LIMIT_PER_MINUTE", defaultRefillRatePerMin)
	viper.SetDefault("EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("ANOMALY_PRICE_THRESHOLD", defaultAnomalyThreshold)
	viper.SetDefault("REPORT_SCHEDULE", defaultReportSchedule)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("RUN_MIGRATIONS", true)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("API_KEY", "API_KEY", "FUEL_API_KEY")
	_ = viper.BindEnv("REVIEWER_JWKS_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("REFILL_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("ANOMALY_PRICE_THRESHOLD")
	_ = viper.BindEnv("REPORT_SCHEDULE")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("RUN_MIGRATIONS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.APIKey = strings.TrimSpace(config.APIKey)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.ReviewerJWKSURL = strings.TrimSpace(config.ReviewerJWKSURL)
	config.ReportSchedule = strings.TrimSpace(config.ReportSchedule)
	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))

	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = defaultRateLimitPrefix
	}
	if strings.TrimSpace(config.EventsExchange) == "" {
		config.EventsExchange = defaultEventsExchange
	}
	if config.RefillRateLimitPerMinute <= 0 {
		config.RefillRateLimitPerMinute = defaultRefillRatePerMin
	}

	threshold := config.AnomalyPriceThreshold
	if threshold <= 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		log.Printf("level=warn component=config msg=\"invalid anomaly threshold; using default\" value=%v default=%v", threshold, defaultAnomalyThreshold)
		config.AnomalyPriceThreshold = defaultAnomalyThreshold
	}

	if config.APIKey == "" {
		log.Printf("level=warn component=config msg=\"API_KEY not set; api key authentication disabled\"")
	}

	return
}
