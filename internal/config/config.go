package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultServerCommand = "why3 itp_server"
	DefaultFeedHost      = "127.0.0.1"
	DefaultFeedPort      = 4631
	DefaultSoftLimit     = 3800
	DefaultHardCap       = 4080
	DefaultFlushInterval = 300 * time.Millisecond
	DefaultHistoryLimit  = 20
)

type Config struct {
	LogLevel      string
	ServerCommand string
	FlushInterval time.Duration
	SoftLimit     int
	HardCap       int
	FeedHost      string
	FeedPort      int
	FeedEnabled   bool
	DBPath        string
	TaskFile      string
	HistoryLimit  int
}

func Defaults() Config {
	return Config{
		LogLevel:      "info",
		ServerCommand: DefaultServerCommand,
		FlushInterval: DefaultFlushInterval,
		SoftLimit:     DefaultSoftLimit,
		HardCap:       DefaultHardCap,
		FeedHost:      DefaultFeedHost,
		FeedPort:      DefaultFeedPort,
		FeedEnabled:   true,
		HistoryLimit:  DefaultHistoryLimit,
	}
}

func LoadConfig() Config {
	return Load(Defaults())
}

// Load overlays the environment on base. Unset or malformed variables
// keep the base value.
func Load(base Config) Config {
	cfg := base
	if v := strings.TrimSpace(os.Getenv("ITP_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("ITP_SERVER_CMD")); v != "" {
		cfg.ServerCommand = v
	}
	if ms := atoiOrDefault(os.Getenv("ITP_FLUSH_INTERVAL_MS"), 0); ms > 0 {
		cfg.FlushInterval = time.Duration(ms) * time.Millisecond
	}
	cfg.SoftLimit = atoiOrDefault(os.Getenv("ITP_SOFT_LIMIT"), cfg.SoftLimit)
	cfg.HardCap = atoiOrDefault(os.Getenv("ITP_HARD_CAP"), cfg.HardCap)
	if v := strings.TrimSpace(os.Getenv("ITP_FEED_HOST")); v != "" {
		cfg.FeedHost = v
	}
	cfg.FeedPort = atoiOrDefault(os.Getenv("ITP_FEED_PORT"), cfg.FeedPort)
	switch os.Getenv("ITP_FEED_ENABLED") {
	case "1":
		cfg.FeedEnabled = true
	case "0":
		cfg.FeedEnabled = false
	}
	if v := strings.TrimSpace(os.Getenv("ITP_DB_PATH")); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("ITP_TASK_FILE")); v != "" {
		cfg.TaskFile = v
	}
	if cfg.HardCap <= 0 {
		cfg.HardCap = DefaultHardCap
	}
	if cfg.SoftLimit <= 0 || cfg.SoftLimit > cfg.HardCap {
		cfg.SoftLimit = min(DefaultSoftLimit, cfg.HardCap)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return cfg
}

// ServerArgv splits the server command line on whitespace.
func (c Config) ServerArgv() []string {
	return strings.Fields(c.ServerCommand)
}

// atoiOrDefault accepts plain positive decimals only. Signs, junk and values
// that overflow int fall back.
func atoiOrDefault(v string, fallback int) int {
	if v == "" || strings.TrimLeft(v, "0123456789") != "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n == 0 {
		return fallback
	}
	return n
}
