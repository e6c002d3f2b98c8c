package global

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"itpsession/internal/config"
)

const (
	configTOMLFileName = "config.toml"
	historyDBFileName  = "history.db"
	taskFileName       = "task.txt"
)

type ServerConfig struct {
	Program string   `toml:"program"`
	Args    []string `toml:"args"`
}

type FeedConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

type HistoryConfig struct {
	Limit  int    `toml:"limit"`
	DBPath string `toml:"db_path,omitempty"`
}

type GlobalConfig struct {
	Server  ServerConfig  `toml:"server"`
	Feed    FeedConfig    `toml:"feed"`
	History HistoryConfig `toml:"history"`
}

type ConfigStore struct {
	dir string
}

func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{dir: dir}
}

func (s *ConfigStore) Dir() string {
	return s.dir
}

func (s *ConfigStore) LoadOrInit() (GlobalConfig, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return GlobalConfig{}, err
	}

	path := filepath.Join(s.dir, configTOMLFileName)
	if b, err := os.ReadFile(path); err == nil {
		cfg := defaultConfig()
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return GlobalConfig{}, err
		}
		return normalizeConfig(cfg), nil
	} else if !os.IsNotExist(err) {
		return GlobalConfig{}, err
	}

	cfg := defaultConfig()
	if err := writeTOMLAtomically(path, cfg); err != nil {
		return GlobalConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) Save(cfg GlobalConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeTOMLAtomically(filepath.Join(s.dir, configTOMLFileName), normalizeConfig(cfg))
}

// Resolve layers the file over the built-in defaults and the environment
// over both. Paths left empty fall back to files in the config dir.
func (s *ConfigStore) Resolve(file GlobalConfig) config.Config {
	base := config.Defaults()
	base.ServerCommand = strings.Join(append([]string{file.Server.Program}, file.Server.Args...), " ")
	base.FeedEnabled = file.Feed.Enabled
	base.FeedHost = file.Feed.Host
	base.FeedPort = file.Feed.Port
	base.HistoryLimit = file.History.Limit
	base.DBPath = file.History.DBPath

	cfg := config.Load(base)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(s.dir, historyDBFileName)
	}
	if cfg.TaskFile == "" {
		cfg.TaskFile = filepath.Join(s.dir, taskFileName)
	}
	return cfg
}

func defaultConfig() GlobalConfig {
	argv := strings.Fields(config.DefaultServerCommand)
	return GlobalConfig{
		Server:  ServerConfig{Program: argv[0], Args: argv[1:]},
		Feed:    FeedConfig{Enabled: true, Host: config.DefaultFeedHost, Port: config.DefaultFeedPort},
		History: HistoryConfig{Limit: config.DefaultHistoryLimit},
	}
}

func normalizeConfig(cfg GlobalConfig) GlobalConfig {
	def := defaultConfig()
	cfg.Server.Program = strings.TrimSpace(cfg.Server.Program)
	if cfg.Server.Program == "" {
		cfg.Server = def.Server
	}
	cfg.Feed.Host = strings.TrimSpace(cfg.Feed.Host)
	if cfg.Feed.Host == "" {
		cfg.Feed.Host = def.Feed.Host
	}
	if cfg.Feed.Port <= 0 || cfg.Feed.Port > 65535 {
		cfg.Feed.Port = def.Feed.Port
	}
	if cfg.History.Limit <= 0 {
		cfg.History.Limit = def.History.Limit
	}
	cfg.History.DBPath = strings.TrimSpace(cfg.History.DBPath)
	return cfg
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
