package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("INPUT_DIR", "/tmp/docs")
	t.Setenv("EXPORT_FORMATS", "JSON, xlsx,,prom")
	t.Setenv("FOOD_API_RATE_LIMIT_RPS", "not-a-number")
	t.Setenv("IMAP_SECURE", "off")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InputDir != "/tmp/docs" || cfg.MailInboxDir != "/tmp/docs" {
		t.Fatalf("dirs=%q %q", cfg.InputDir, cfg.MailInboxDir)
	}
	if want := []string{"json", "xlsx", "prom"}; !reflect.DeepEqual(cfg.ExportFormats, want) {
		t.Fatalf("formats=%v", cfg.ExportFormats)
	}
	if cfg.FoodAPIRateLimitRPS != 5 {
		t.Fatalf("rps=%d", cfg.FoodAPIRateLimitRPS)
	}
	if cfg.IMAPSecure {
		t.Fatal("expected IMAP_SECURE=off to disable TLS")
	}
	if cfg.MatchOKThreshold != 0.90 || cfg.EmbeddingDim != 256 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestRequire(t *testing.T) {
	var cfg Config
	if err := cfg.Require("FOOD_API_TOKEN", "  "); err == nil {
		t.Fatal("expected error for blank value")
	}
	if err := cfg.Require("FOOD_API_TOKEN", "x"); err != nil {
		t.Fatal(err)
	}
}
