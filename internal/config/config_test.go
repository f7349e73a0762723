package config

import (
	"testing"
	"time"

	"github.com/arc-invoice/backend/internal/chain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://app@db/arc")
	t.Setenv("POSTGRES_ADMIN_DSN", "")
	t.Setenv("CHAIN_ID", "")
	t.Setenv("ESCROW_POLL_INTERVAL_SECONDS", "")

	cfg := Load()
	if cfg.PostgresAdminDSN != "postgres://app@db/arc" {
		t.Errorf("admin DSN = %q, want fallback to POSTGRES_DSN", cfg.PostgresAdminDSN)
	}
	if cfg.ChainID != chain.NetworkArcTestnet {
		t.Errorf("chain id = %d", cfg.ChainID)
	}
	if cfg.EscrowPollInterval != 10*time.Second {
		t.Errorf("poll interval = %v", cfg.EscrowPollInterval)
	}
	if cfg.AuthRateLimitPerMinute >= cfg.RateLimitPerMinute {
		t.Errorf("auth limit %d should be tighter than %d", cfg.AuthRateLimitPerMinute, cfg.RateLimitPerMinute)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"30", 30 * time.Second},
		{"0", time.Minute},
		{"-5", time.Minute},
		{"abc", time.Minute},
		{"", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.value)
		if got := getEnvDuration("TEST_DURATION", time.Minute); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
