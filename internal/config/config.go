// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Scrape  ScrapeConfig  `yaml:"scrape" mapstructure:"scrape"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	SMTP    SMTPConfig    `yaml:"smtp" mapstructure:"smtp"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // file | sqlite | postgres
	Path        string `yaml:"path" mapstructure:"path"`     // file and sqlite drivers
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ScrapeConfig configures the static-document extraction stage and the
// redirect probe.
type ScrapeConfig struct {
	TimeoutSecs         int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RedirectTimeoutSecs int     `yaml:"redirect_timeout_secs" mapstructure:"redirect_timeout_secs"`
	UserAgent           string  `yaml:"user_agent" mapstructure:"user_agent"`
	SelectorFile        string  `yaml:"selector_file" mapstructure:"selector_file"`
	RatePerHost         float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	RateBurst           int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// Timeout returns the static fetch timeout as a duration.
func (c ScrapeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// RedirectTimeout returns the redirect probe timeout as a duration.
func (c ScrapeConfig) RedirectTimeout() time.Duration {
	return time.Duration(c.RedirectTimeoutSecs) * time.Second
}

// BrowserConfig configures the rendered-page extraction stage.
type BrowserConfig struct {
	Bin             string `yaml:"bin" mapstructure:"bin"` // explicit Chromium binary, empty = auto-detect
	PageLoadSecs    int    `yaml:"page_load_secs" mapstructure:"page_load_secs"`
	SelectorSecs    int    `yaml:"selector_secs" mapstructure:"selector_secs"`
	ScreenshotDir   string `yaml:"screenshot_dir" mapstructure:"screenshot_dir"`
	MaxScreenshots  int    `yaml:"max_screenshots" mapstructure:"max_screenshots"`
	DebugScreenshot bool   `yaml:"debug_screenshot" mapstructure:"debug_screenshot"`
}

// PageLoadTimeout returns the page load budget as a duration.
func (c BrowserConfig) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadSecs) * time.Second
}

// SelectorTimeout returns the per-selector wait budget as a duration.
func (c BrowserConfig) SelectorTimeout() time.Duration {
	return time.Duration(c.SelectorSecs) * time.Second
}

// SMTPConfig holds email notification settings. Notification is disabled
// when Username, Password or To is empty.
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
	To       string `yaml:"to" mapstructure:"to"`
}

// Enabled reports whether enough settings are present to send email.
func (c SMTPConfig) Enabled() bool {
	return c.Username != "" && c.Password != "" && c.To != ""
}

// WatchConfig configures the daemon mode schedule.
type WatchConfig struct {
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy variable names kept for operators migrating from the old
	// watcher script.
	_ = v.BindEnv("smtp.username", "PRICEWATCH_SMTP_USERNAME", "EMAIL_USER")
	_ = v.BindEnv("smtp.password", "PRICEWATCH_SMTP_PASSWORD", "EMAIL_PASS")
	_ = v.BindEnv("smtp.to", "PRICEWATCH_SMTP_TO", "ALERT_TO")

	// Defaults
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", "price_data.json")
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.redirect_timeout_secs", 10)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scrape.rate_per_host", 2.0)
	v.SetDefault("scrape.rate_burst", 4)
	v.SetDefault("browser.page_load_secs", 30)
	v.SetDefault("browser.selector_secs", 5)
	v.SetDefault("browser.screenshot_dir", ".")
	v.SetDefault("browser.max_screenshots", 5)
	v.SetDefault("browser.debug_screenshot", false)
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 465)
	v.SetDefault("watch.schedule", "*/30 * * * *")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
