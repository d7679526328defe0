package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LAYA_API_BASE", "")
	t.Setenv("LAYA_RESULT_WAIT_SECONDS", "")
	t.Setenv("LAYA_LOG_LEVEL", "")

	cfg := Load()
	if cfg.BaseURL != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected default base url %q", cfg.BaseURL)
	}
	if cfg.ResultWait != 120*time.Second {
		t.Fatalf("unexpected default result wait %s", cfg.ResultWait)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected default log level %q", cfg.LogLevel)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("LAYA_API_BASE", "https://claims.example.ie")
	t.Setenv("LAYA_MEMBER_ID", "MEM-1002")
	t.Setenv("LAYA_RESULT_WAIT_SECONDS", "15")

	cfg := Load()
	if cfg.BaseURL != "https://claims.example.ie" {
		t.Fatalf("base url not read, got %q", cfg.BaseURL)
	}
	if cfg.MemberID != "MEM-1002" {
		t.Fatalf("member id not read, got %q", cfg.MemberID)
	}
	if cfg.ResultWait != 15*time.Second {
		t.Fatalf("result wait not read, got %s", cfg.ResultWait)
	}
}

func TestEnvOrIntIgnoresGarbage(t *testing.T) {
	t.Setenv("LAYA_RESULT_WAIT_SECONDS", "soon")

	cfg := Load()
	if cfg.ResultWait != 120*time.Second {
		t.Fatalf("garbage env value should fall back, got %s", cfg.ResultWait)
	}
}
