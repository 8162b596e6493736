package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "POOL_SHARE_BASE_URL")
	unsetEnvWithCleanup(t, "PAYOUT_SWEEP_SCHEDULE")
	unsetEnvWithCleanup(t, "CONTRIBUTION_RATE_LIMIT_PER_MINUTE")
	unsetEnvWithCleanup(t, "JOIN_RATE_LIMIT_PER_MINUTE")
	unsetEnvWithCleanup(t, "EARLY_PAYOUT_RATE_LIMIT_PER_MINUTE")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.PoolShareBaseURL != "https://app.ajopool.com" {
		t.Fatalf("unexpected default share base URL: %q", cfg.PoolShareBaseURL)
	}
	if cfg.PayoutSweepSchedule != "0 * * * *" {
		t.Fatalf("unexpected default sweep schedule: %q", cfg.PayoutSweepSchedule)
	}
	if cfg.ContributionRateLimitPerMin != 30 || cfg.JoinRateLimitPerMin != 10 || cfg.EarlyPayoutRateLimitPerMin != 5 {
		t.Fatalf("unexpected default rate limits: %d %d %d", cfg.ContributionRateLimitPerMin, cfg.JoinRateLimitPerMin, cfg.EarlyPayoutRateLimitPerMin)
	}
}

func TestLoadConfig_PlatformPortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9999")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9999" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_ShareBaseURLTrimsTrailingSlash(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "POOL_SHARE_BASE_URL", "https://pools.example.com/")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PoolShareBaseURL != "https://pools.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.PoolShareBaseURL)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
