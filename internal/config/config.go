package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"CaseCollector/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "CASE_COLLECTOR_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	pubmedAPIKeyEnv   = "PUBMED_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	storageDriverEnv  = "CASE_COLLECTOR_STORAGE_DRIVER"
	dataDirEnv        = "CASE_COLLECTOR_DATA_DIR"
	redisAddrsEnv     = "REDIS_ADDRS"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Bounds on articles fetched per source in one run.
const (
	MinMaxArticles     = 1
	MaxMaxArticles     = 200
	DefaultMaxArticles = 50
)

// DefaultKeywords are searched when a run does not name its own.
var DefaultKeywords = []string{"치험례", "증례보고", "임상례", "한방치료", "한약치료"}

// Config holds high-level settings required across the application.
type Config struct {
	Collector     CollectorConfig    `yaml:"collector"`
	Storage       StorageConfig      `yaml:"storage"`
	HTTP          HTTPConfig         `yaml:"http"`
	Logging       LoggingConfig      `yaml:"logging"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sources       SourcesConfig      `yaml:"sources"`
}

// CollectorConfig controls collection runs and the periodic trigger.
type CollectorConfig struct {
	Enabled              bool          `yaml:"enabled"`
	Interval             time.Duration `yaml:"interval"`
	RequestDelay         time.Duration `yaml:"requestDelay"`
	AutoApproveThreshold float64       `yaml:"autoApproveThreshold"`
	MaxArticles          int           `yaml:"maxArticles"`
	Keywords             []string      `yaml:"keywords"`
	Sources              []string      `yaml:"sources"`
	Timezone             string        `yaml:"timezone"`
	location             *time.Location
}

// Location resolves the collector timezone used for run identifiers.
func (c CollectorConfig) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	return time.UTC
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	Driver  string      `yaml:"driver"`
	DataDir string      `yaml:"dataDir"`
	DSN     string      `yaml:"dsn"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig describes the Redis backend.
type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Prefix   string   `yaml:"prefix"`
}

// HTTPConfig configures the control API.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// Enabled reports whether run summaries should be published.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SourcesConfig holds per-source endpoints.
type SourcesConfig struct {
	PubMed SourceConfig `yaml:"pubmed"`
	KCI    SourceConfig `yaml:"kci"`
	OASIS  SourceConfig `yaml:"oasis"`
}

// SourceConfig describes one bibliographic source.
type SourceConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// Load reads YAML configuration from $CASE_COLLECTOR_CONFIG (if set) and applies
// environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom reads YAML configuration from path (if non-empty) over the defaults and
// applies environment overrides. Unreadable files fall back to defaults.
func LoadFrom(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Collector.Keywords) == 0 {
		cfg.Collector.Keywords = slices.Clone(DefaultKeywords)
	}
	if len(cfg.Collector.Sources) == 0 {
		cfg.Collector.Sources = defaultConfig().Collector.Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DSN = v
	}

	if v := os.Getenv(storageDriverEnv); v != "" {
		c.Storage.Driver = v
	}

	if v := os.Getenv(dataDirEnv); v != "" {
		c.Storage.DataDir = v
	}

	if v := os.Getenv(redisAddrsEnv); v != "" {
		c.Storage.Redis.Addrs = strings.Split(v, ",")
	}

	if v := os.Getenv(pubmedAPIKeyEnv); v != "" {
		c.Sources.PubMed.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Collector.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc = time.UTC
	}
	c.Collector.location = loc
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	col := c.Collector
	if col.Enabled && col.Interval <= 0 {
		errs = append(errs, fmt.Errorf("collector.interval must be positive, got %s", col.Interval))
	}
	if col.RequestDelay < 0 {
		errs = append(errs, fmt.Errorf("collector.requestDelay must not be negative"))
	}
	if col.AutoApproveThreshold <= 0 || col.AutoApproveThreshold > 1 {
		errs = append(errs, fmt.Errorf("collector.autoApproveThreshold must be in (0,1], got %v", col.AutoApproveThreshold))
	}
	if col.MaxArticles < MinMaxArticles || col.MaxArticles > MaxMaxArticles {
		errs = append(errs, fmt.Errorf("collector.maxArticles must be in [%d,%d], got %d", MinMaxArticles, MaxMaxArticles, col.MaxArticles))
	}
	if len(col.Sources) == 0 {
		errs = append(errs, errors.New("collector.sources must not be empty"))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage.dataDir is required for the file driver"))
		}
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for the %s driver", c.Storage.Driver))
		}
	case DriverRedis:
		if len(c.Storage.Redis.Addrs) == 0 {
			errs = append(errs, errors.New("storage.redis.addrs is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}

	return errors.Join(errs...)
}

func defaultConfig() Config {
	return Config{
		Collector: CollectorConfig{
			Enabled:              true,
			Interval:             6 * time.Hour,
			AutoApproveThreshold: 0.9,
			MaxArticles:          DefaultMaxArticles,
			Keywords:             slices.Clone(DefaultKeywords),
			Sources:              []string{domain.SourceOASIS, domain.SourceKCI, domain.SourcePubMed},
			Timezone:             defaultTimezone,
			location:             time.UTC,
		},
		Storage: StorageConfig{
			Driver:  DriverSQLite,
			DataDir: "data",
			DSN:     "data/cases.db",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
		},
		Sources: SourcesConfig{
			PubMed: SourceConfig{BaseURL: "https://eutils.ncbi.nlm.nih.gov/entrez/eutils", Timeout: 30 * time.Second},
			KCI:    SourceConfig{BaseURL: "https://www.kci.go.kr", Timeout: 30 * time.Second},
			OASIS:  SourceConfig{BaseURL: "https://oasis.kiom.re.kr", Timeout: 30 * time.Second},
		},
	}
}
