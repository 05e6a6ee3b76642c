// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, falling back to system environment variables")
	}
}

type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands     bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	CommandCacheDir       string   `env:"COMMAND_CACHE_DIR" envDefault:"data/commands"`
	CommandPrefix         string   `env:"COMMAND_PREFIX" envDefault:"!"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"json"`
	StoragePath   string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	PhoneticDictPath string `env:"PHONETIC_DICT_PATH" envDefault:"dic.json"`
	TagsDir          string `env:"TAGS_DIR" envDefault:"data/tags"`

	OpenJTalkBin     string `env:"OPENJTALK_BIN" envDefault:"open_jtalk"`
	OpenJTalkDictDir string `env:"OPENJTALK_DICT_DIR" envDefault:"/var/lib/mecab/dic/open-jtalk/naist-jdic"`
	OpenJTalkVoice   string `env:"OPENJTALK_VOICE" envDefault:"/usr/share/hts-voice/nitech-jp-atr503-m001/nitech_jp_atr503_m001.htsvoice"`

	SynthWorkers   int           `env:"SYNTH_WORKERS" envDefault:"4"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"30s"`

	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields every entry point needs.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.StoragePath == "" {
		return errors.New("STORAGE_PATH is empty")
	}
	if c.SynthWorkers < 1 {
		return fmt.Errorf("SYNTH_WORKERS must be positive, got %d", c.SynthWorkers)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("CONNECT_TIMEOUT must be positive, got %s", c.ConnectTimeout)
	}
	return nil
}

// RequireDiscord reports an error when the bot token is missing.
func (c *Config) RequireDiscord() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is not set")
	}
	return nil
}
