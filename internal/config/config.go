package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the full runtime configuration. Precedence is environment
// variables over the optional YAML file over built-in defaults, so a
// container deployment can run without any file at all.
type Config struct {
	DBPath        string `yaml:"dbPath" env:"DB_PATH"`
	Port          string `yaml:"port" env:"PORT"`
	PublicURL     string `yaml:"publicUrl" env:"PUBLIC_URL"`
	SessionSecret string `yaml:"sessionSecret" env:"SESSION_SECRET"`

	TelegramBotToken string `yaml:"telegramBotToken" env:"TELEGRAM_BOT_TOKEN"`

	CatalogPath   string `yaml:"catalogPath" env:"CATALOG_PATH"`
	LocalesDir    string `yaml:"localesDir" env:"LOCALES_DIR"`
	DefaultLocale string `yaml:"defaultLocale" env:"DEFAULT_LOCALE"`

	DisableSelfApproval bool `yaml:"disableSelfApproval" env:"DISABLE_SELF_APPROVAL"`
	GlobalGracePeriod   bool `yaml:"globalGracePeriod" env:"GLOBAL_GRACE_PERIOD"`
	HistoryCacheSize    int  `yaml:"historyCacheSize" env:"HISTORY_CACHE_SIZE"`

	RotationInterval time.Duration `yaml:"rotationInterval" env:"ROTATION_INTERVAL"`
	SetbackInterval  time.Duration `yaml:"setbackInterval" env:"SETBACK_INTERVAL"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DBPath:           "quests.db",
		Port:             "8080",
		PublicURL:        "http://localhost:8080",
		LocalesDir:       "locales",
		DefaultLocale:    "en",
		HistoryCacheSize: 4096,
		RotationInterval: 5 * time.Minute,
		SetbackInterval:  10 * time.Minute,
	}
}

// Load reads the configuration: built-in defaults, then the YAML file when
// path names one that exists, then environment variables on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
