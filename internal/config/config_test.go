package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ITP_LOG_LEVEL", "ITP_SERVER_CMD", "ITP_FLUSH_INTERVAL_MS", "ITP_SOFT_LIMIT", "ITP_HARD_CAP",
		"ITP_FEED_HOST", "ITP_FEED_PORT", "ITP_FEED_ENABLED", "ITP_DB_PATH", "ITP_TASK_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	if diff := cmp.Diff(Defaults(), LoadConfig()); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	cfg := LoadConfig()
	if cfg.SoftLimit != 3800 || cfg.HardCap != 4080 {
		t.Fatalf("unexpected batch limits: soft=%d hard=%d", cfg.SoftLimit, cfg.HardCap)
	}
	if cfg.FlushInterval != 300*time.Millisecond {
		t.Fatalf("unexpected flush interval: %s", cfg.FlushInterval)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ITP_LOG_LEVEL", "debug")
	t.Setenv("ITP_SERVER_CMD", "why3 itp_server --debug")
	t.Setenv("ITP_FLUSH_INTERVAL_MS", "50")
	t.Setenv("ITP_SOFT_LIMIT", "1000")
	t.Setenv("ITP_HARD_CAP", "2000")
	t.Setenv("ITP_FEED_HOST", "0.0.0.0")
	t.Setenv("ITP_FEED_PORT", "9100")
	t.Setenv("ITP_FEED_ENABLED", "0")
	t.Setenv("ITP_DB_PATH", "/tmp/h.db")
	t.Setenv("ITP_TASK_FILE", "/tmp/task.txt")

	cfg := LoadConfig()
	want := Config{
		LogLevel:      "debug",
		ServerCommand: "why3 itp_server --debug",
		FlushInterval: 50 * time.Millisecond,
		SoftLimit:     1000,
		HardCap:       2000,
		FeedHost:      "0.0.0.0",
		FeedPort:      9100,
		FeedEnabled:   false,
		DBPath:        "/tmp/h.db",
		TaskFile:      "/tmp/task.txt",
		HistoryLimit:  DefaultHistoryLimit,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"why3", "itp_server", "--debug"}, cfg.ServerArgv()); diff != "" {
		t.Fatalf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvWinsOverBase(t *testing.T) {
	clearEnv(t)
	base := Defaults()
	base.FeedPort = 5000
	base.ServerCommand = "my-server"

	if cfg := Load(base); cfg.FeedPort != 5000 || cfg.ServerCommand != "my-server" {
		t.Fatalf("base values should survive without env, got %+v", cfg)
	}
	t.Setenv("ITP_FEED_PORT", "6000")
	if cfg := Load(base); cfg.FeedPort != 6000 {
		t.Fatalf("env should win over base, got %d", cfg.FeedPort)
	}
}

func TestLoadConfig_MalformedValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("ITP_FEED_PORT", "80a")
	t.Setenv("ITP_SOFT_LIMIT", "-1")
	t.Setenv("ITP_FLUSH_INTERVAL_MS", "fast")
	t.Setenv("ITP_FEED_ENABLED", "yes")

	cfg := LoadConfig()
	if cfg.FeedPort != DefaultFeedPort {
		t.Fatalf("expected default feed port, got %d", cfg.FeedPort)
	}
	if cfg.SoftLimit != DefaultSoftLimit {
		t.Fatalf("expected default soft limit, got %d", cfg.SoftLimit)
	}
	if cfg.FlushInterval != DefaultFlushInterval {
		t.Fatalf("expected default flush interval, got %s", cfg.FlushInterval)
	}
	if !cfg.FeedEnabled {
		t.Fatal("unrecognized ITP_FEED_ENABLED should keep the default")
	}
}

func TestLoadConfig_OverflowingNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("ITP_HARD_CAP", "99999999999999999999999")
	t.Setenv("ITP_SOFT_LIMIT", "+3000")

	cfg := LoadConfig()
	if cfg.HardCap != DefaultHardCap {
		t.Fatalf("expected default hard cap, got %d", cfg.HardCap)
	}
	if cfg.SoftLimit != DefaultSoftLimit {
		t.Fatalf("expected default soft limit, got %d", cfg.SoftLimit)
	}
}

func TestLoadConfig_SoftLimitClampedToHardCap(t *testing.T) {
	clearEnv(t)
	t.Setenv("ITP_HARD_CAP", "1024")
	cfg := LoadConfig()
	if cfg.HardCap != 1024 || cfg.SoftLimit != 1024 {
		t.Fatalf("expected soft limit clamped to 1024, got soft=%d hard=%d", cfg.SoftLimit, cfg.HardCap)
	}
}
