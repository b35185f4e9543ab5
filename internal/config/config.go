package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all waterwatch configuration.
type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Stations  StationsConfig  `mapstructure:"stations"`
	Storage   StorageConfig   `mapstructure:"storage"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SourceConfig defines the upstream gauge table.
type SourceConfig struct {
	URL     string        `mapstructure:"url"`
	River   string        `mapstructure:"river"`
	Exclude []string      `mapstructure:"exclude"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig defines snapshot freshness.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// StationsConfig lists stations from the most downstream to the most upstream.
type StationsConfig struct {
	Order []string `mapstructure:"order"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// SMTPConfig defines the email transport.
type SMTPConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	From      string        `mapstructure:"from"`
	TLSPolicy string        `mapstructure:"tls_policy"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// AlertsConfig defines alert dispatch settings.
type AlertsConfig struct {
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

// SchedulerConfig defines the periodic refresh check.
type SchedulerConfig struct {
	Spec string `mapstructure:"spec"`
}

// TelegramConfig defines the optional chat front end.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultStationOrder is the Savinja gauge chain from the mouth upstream.
var DefaultStationOrder = []string{
	"Veliko Širje I",
	"Laško",
	"Celje",
	"Medlog",
	"Letuš I",
	"Nazarje",
	"Solčava I",
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".waterwatch"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	v.SetDefault("source.url", "https://www.arso.gov.si/vode/podatki/stanje_voda_samodejne.html")
	v.SetDefault("source.river", "Savinja")
	v.SetDefault("source.exclude", []string{"Veliko Širje II"})
	v.SetDefault("source.timeout", "20s")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("stations.order", append([]string(nil), DefaultStationOrder...))
	v.SetDefault("storage.path", filepath.Join("data", "waterwatch.db"))
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.tls_policy", "mandatory")
	v.SetDefault("smtp.timeout", "15s")
	v.SetDefault("alerts.dispatch_timeout", "30s")
	v.SetDefault("scheduler.spec", "*/5 * * * *")
	v.SetDefault("metrics.listen", ":2112")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("WATERWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default still need binding to be read from the environment
	for _, key := range []string{"smtp.host", "smtp.username", "smtp.password", "smtp.from", "telegram.token"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the application cannot run without.
func (c *Config) Validate() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if len(c.Stations.Order) == 0 {
		return fmt.Errorf("stations.order must list at least one station")
	}
	seen := make(map[string]bool, len(c.Stations.Order))
	for _, s := range c.Stations.Order {
		if seen[s] {
			return fmt.Errorf("stations.order lists %q twice", s)
		}
		seen[s] = true
	}
	return nil
}
