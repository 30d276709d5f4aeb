package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORS            bool          `yaml:"cors" default:"true"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"json"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled       bool          `yaml:"enabled"`
			Topic         string        `yaml:"topic" default:"aaverisk.logs"`
			FlushInterval time.Duration `yaml:"flush_interval" default:"1m"`
			MaxBatch      int           `yaml:"max_batch" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Backend struct {
		Type string `yaml:"type" default:"clickhouse"` // clickhouse or kafka
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		CandlesTopic string   `yaml:"candles_topic" default:"aaverisk.candles"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"aaverisk-candles"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"aaverisk.candles.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"aaverisk"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"ohlc_prices"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN             string        `yaml:"dsn"`
		Host            string        `yaml:"host" default:"localhost"`
		Port            int           `yaml:"port" default:"5432"`
		User            string        `yaml:"user" default:"postgres"`
		Password        string        `yaml:"password"`
		DBName          string        `yaml:"dbname" default:"aaverisk"`
		SSLMode         string        `yaml:"sslmode" default:"disable"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"25"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"5m"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled  bool   `yaml:"enabled" default:"true"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
	} `yaml:"redis"`
	Coingecko struct {
		BaseURL       string        `yaml:"base_url" default:"https://api.coingecko.com/api/v3"`
		APIKey        string        `yaml:"api_key"`
		Timeout       time.Duration `yaml:"timeout" default:"15s"`
		RatePerSec    float64       `yaml:"rate_per_sec" default:"0.5"`
		Burst         int           `yaml:"burst" default:"5"`
		RetryAttempts int           `yaml:"retry_attempts" default:"3"`
		CoinsListTTL  time.Duration `yaml:"coins_list_ttl" default:"24h"`
	} `yaml:"coingecko"`
	ReserveReader struct {
		BaseURL       string        `yaml:"base_url" default:"http://localhost:8545"`
		Timeout       time.Duration `yaml:"timeout" default:"10s"`
		RetryAttempts int           `yaml:"retry_attempts" default:"3"`
	} `yaml:"reserve_reader"`
	Scenario struct {
		BollingerWindow     int           `yaml:"bollinger_window" default:"20"`
		BollingerMultiplier float64       `yaml:"bollinger_multiplier" default:"2"`
		SafetyMultiplier    float64       `yaml:"safety_multiplier" default:"1.2"`
		Timeout             time.Duration `yaml:"timeout" default:"20s"`
		BandConcurrency     int           `yaml:"band_concurrency" default:"4"`
	} `yaml:"scenario"`
	Ingestion struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Schedule        string        `yaml:"schedule" default:"0 0 3 * * *"`
		InterAssetDelay time.Duration `yaml:"inter_asset_delay" default:"500ms"`
		MarketChartDays int           `yaml:"market_chart_days" default:"2"`
		VsCurrency      string        `yaml:"vs_currency" default:"usd"`
		LockTTL         time.Duration `yaml:"lock_ttl" default:"2h"`
		RunOnStart      bool          `yaml:"run_on_start"`
	} `yaml:"ingestion"`
	Queue struct {
		Name          string        `yaml:"name" default:"ingestion"`
		Workers       int           `yaml:"workers" default:"1"`
		PollInterval  time.Duration `yaml:"poll_interval" default:"1s"`
		MaxRetries    int           `yaml:"max_retries" default:"3"`
		RetryDelay    time.Duration `yaml:"retry_delay" default:"30s"`
		MaxRetryDelay time.Duration `yaml:"max_retry_delay" default:"10m"`
		DeadLetterMax int64         `yaml:"dead_letter_max" default:"1000"`
	} `yaml:"queue"`
	MarketsVersion int      `yaml:"markets_version" default:"1"`
	Markets        []Market `yaml:"markets"`
}

// Market is one entry of the static address book.
type Market struct {
	Chain             string `yaml:"chain"`
	ChainID           int64  `yaml:"chain_id"`
	RPCProvider       string `yaml:"rpc_provider"`
	CoingeckoPlatform string `yaml:"coingecko_platform"`
	Contracts         struct {
		PoolAddressesProvider string `yaml:"pool_addresses_provider"`
		UIPoolDataProvider    string `yaml:"ui_pool_data_provider"`
	} `yaml:"contracts"`
	Assets []Asset `yaml:"assets"`
}

type Asset struct {
	Name       string `yaml:"name"`
	Underlying string `yaml:"underlying"`
	Symbol     string `yaml:"symbol"`
	Decimals   int    `yaml:"decimals"`
}

// Load reads and parses a YAML configuration file. Defaults are applied first
// so the file only overrides what it sets.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment lookup.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("COINGECKO_API_KEY"); v != "" {
		c.Coingecko.APIKey = v
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when backend.type is kafka")
	}
	if c.Scenario.BollingerWindow < 1 {
		return fmt.Errorf("scenario.bollinger_window must be >= 1")
	}
	if c.Scenario.SafetyMultiplier <= 0 {
		return fmt.Errorf("scenario.safety_multiplier must be positive")
	}
	if c.Ingestion.MarketChartDays < 2 {
		return fmt.Errorf("ingestion.market_chart_days must be >= 2")
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("markets cannot be empty")
	}
	seen := make(map[string]struct{}, len(c.Markets))
	for i, m := range c.Markets {
		if m.Chain == "" {
			return fmt.Errorf("markets[%d].chain is required", i)
		}
		if m.ChainID <= 0 {
			return fmt.Errorf("markets[%d].chain_id must be positive", i)
		}
		if _, dup := seen[m.Chain]; dup {
			return fmt.Errorf("markets[%d]: duplicate chain %q", i, m.Chain)
		}
		seen[m.Chain] = struct{}{}
		for j, a := range m.Assets {
			if a.Name == "" || a.Underlying == "" {
				return fmt.Errorf("markets[%d].assets[%d]: name and underlying are required", i, j)
			}
		}
	}
	return nil
}

// PostgresDSN returns the configured DSN or builds one from the discrete fields.
func (c *Config) PostgresDSN() string {
	if c.Postgres.DSN != "" {
		return c.Postgres.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Password, c.Postgres.DBName, c.Postgres.SSLMode)
}
