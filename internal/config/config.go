package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cron       CronConfig       `mapstructure:"cron"`
	Fund       FundConfig       `mapstructure:"fund"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	ETL        ETLConfig        `mapstructure:"etl"`
	Sources    []SourceConfig   `mapstructure:"sources"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Valuation string `mapstructure:"valuation"`
	ETL       string `mapstructure:"etl"`
	Flows     string `mapstructure:"flows"`
}

type FundConfig struct {
	TaxRate      string `mapstructure:"tax_rate"`
	BaseCurrency string `mapstructure:"base_currency"`
}

type AggregatorConfig struct {
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

type ETLConfig struct {
	LookbackDays int `mapstructure:"lookback_days"`
}

// SourceConfig describes one configured brokerage source. Kind selects the
// client implementation; Path is the snapshot location for file sources.
type SourceConfig struct {
	Name string `mapstructure:"name"`
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FUNDCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "host=localhost port=5432 user=postgres password=postgres dbname=fundcore sslmode=disable")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.valuation", "0 18 * * MON-FRI")
	v.SetDefault("cron.etl", "30 18 * * MON-FRI")
	v.SetDefault("cron.flows", "0 19 * * MON-FRI")
	v.SetDefault("fund.tax_rate", "0.25")
	v.SetDefault("fund.base_currency", "USD")
	v.SetDefault("aggregator.retry_attempts", 3)
	v.SetDefault("aggregator.retry_backoff", "2s")
	v.SetDefault("etl.lookback_days", 30)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
