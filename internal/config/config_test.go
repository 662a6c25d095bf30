package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "absent")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "release" || cfg.Port != 3000 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.ReadLimit != 32768 || cfg.PingPeriod != 54*time.Second {
		t.Fatalf("pump defaults = %+v", cfg)
	}
}

func TestPortEnvOverride(t *testing.T) {
	t.Setenv("CONFIG_ENV", "absent")
	t.Setenv("PORT", "4123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 4123 {
		t.Fatalf("port = %d, want the PORT override", cfg.Port)
	}
}
