/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the pool-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                  string `mapstructure:"SERVER_PORT"`
	DatabaseURL                 string `mapstructure:"DATABASE_URL"`
	RedisURL                    string `mapstructure:"REDIS_URL"`
	RabbitMQURL                 string `mapstructure:"RABBITMQ_URL"`
	JWTSecret                   string `mapstructure:"JWT_SECRET"`
	PoolShareBaseURL            string `mapstructure:"POOL_SHARE_BASE_URL"`
	PayoutSweepSchedule         string `mapstructure:"PAYOUT_SWEEP_SCHEDULE"`
	ContributionRateLimitPerMin int    `mapstructure:"CONTRIBUTION_RATE_LIMIT_PER_MINUTE"`
	JoinRateLimitPerMin         int    `mapstructure:"JOIN_RATE_LIMIT_PER_MINUTE"`
	EarlyPayoutRateLimitPerMin  int    `mapstructure:"EARLY_PAYOUT_RATE_LIMIT_PER_MINUTE"`
	AllowedOrigins              string `mapstructure:"ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("POOL_SHARE_BASE_URL", "https://app.ajopool.com")
	viper.SetDefault("PAYOUT_SWEEP_SCHEDULE", "0 * * * *")
	viper.SetDefault("CONTRIBUTION_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("JOIN_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("EARLY_PAYOUT_RATE_LIMIT_PER_MINUTE", 5)
	viper.SetDefault("ALLOWED_ORIGINS", "*")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "POOL_REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("POOL_SHARE_BASE_URL")
	_ = viper.BindEnv("PAYOUT_SWEEP_SCHEDULE")
	_ = viper.BindEnv("CONTRIBUTION_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("JOIN_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("EARLY_PAYOUT_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("ALLOWED_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Platform-provided PORT wins over SERVER_PORT.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.PoolShareBaseURL = strings.TrimRight(strings.TrimSpace(config.PoolShareBaseURL), "/")
	if config.PoolShareBaseURL == "" {
		config.PoolShareBaseURL = "https://app.ajopool.com"
	}
	if strings.TrimSpace(config.PayoutSweepSchedule) == "" {
		config.PayoutSweepSchedule = "0 * * * *"
	}
	if config.ContributionRateLimitPerMin <= 0 {
		config.ContributionRateLimitPerMin = 30
	}
	if config.JoinRateLimitPerMin <= 0 {
		config.JoinRateLimitPerMin = 10
	}
	if config.EarlyPayoutRateLimitPerMin <= 0 {
		config.EarlyPayoutRateLimitPerMin = 5
	}

	return
}
