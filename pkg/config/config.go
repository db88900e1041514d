package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps" default:"20"`
		RateLimitBurst  int           `yaml:"rate_limit_burst" default:"40"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Feed struct {
		// Source selects the market data feed: binance websocket or kafka ticks topic.
		Source         string        `yaml:"source" default:"binance" validate:"oneof=binance kafka"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://stream.binance.com:9443/stream"`
		Symbols        []string      `yaml:"symbols" validate:"required,min=1,dive,required"`
		DepthSymbols   []string      `yaml:"depth_symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		MaxRPS         int           `yaml:"max_rps" default:"50" validate:"gte=0"`
		BufferSize     int           `yaml:"buffer_size" default:"2000" validate:"gt=0"`
	} `yaml:"feed"`

	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		TicksTopic   string   `yaml:"ticks_topic" default:"market.ticks"`
		SignalsTopic string   `yaml:"signals_topic" default:"engine.signals"`
		ExitsTopic   string   `yaml:"exits_topic" default:"engine.exits"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"finedge-engine"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"1000"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finedge"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled   bool   `yaml:"enabled"`
		Addr      string `yaml:"addr" default:"localhost:6379"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix" default:"finedge"`
	} `yaml:"redis"`

	Persistence struct {
		QueueSize    int           `yaml:"queue_size" default:"1024" validate:"gt=0"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"3s"`
		CacheTTL     time.Duration `yaml:"cache_ttl" default:"30s"`
	} `yaml:"persistence"`

	Engine EngineConfig `yaml:"engine"`
}

type EngineConfig struct {
	AccountEquity       float64       `yaml:"account_equity" default:"10000" validate:"gt=0"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval" default:"1m"`
	PublishTimeout      time.Duration `yaml:"publish_timeout" default:"2s"`
	PublishQueueSize    int           `yaml:"publish_queue_size" default:"256" validate:"gt=0"`

	Features struct {
		MaxHistory int    `yaml:"max_history" default:"200" validate:"gte=20"`
		BaseSymbol string `yaml:"base_symbol" default:"BTCUSDT"`
	} `yaml:"features"`

	Strategy struct {
		ExplorationRate     float64       `yaml:"exploration_rate" default:"0.1" validate:"gte=0,lte=1"`
		MinConfidence       float64       `yaml:"min_confidence" default:"0.6" validate:"gte=0,lte=1"`
		MaxSignalsPerSymbol int           `yaml:"max_signals_per_symbol" default:"3" validate:"gt=0"`
		SignalCooldown      time.Duration `yaml:"signal_cooldown" default:"30s"`
		SignalWindow        time.Duration `yaml:"signal_window" default:"5m"`
		SaveTimeout         time.Duration `yaml:"save_timeout" default:"2s"`
		Seed                int64         `yaml:"seed"`
	} `yaml:"strategy"`

	Positions struct {
		MaxPositions          int           `yaml:"max_positions" default:"50" validate:"gt=0"`
		MaxPerSymbol          int           `yaml:"max_per_symbol" default:"3" validate:"gt=0"`
		RiskPerTrade          float64       `yaml:"risk_per_trade" default:"0.02" validate:"gt=0,lte=1"`
		StopLossPct           float64       `yaml:"stop_loss_pct" default:"0.02" validate:"gt=0,lt=1"`
		TakeProfitMultiplier  float64       `yaml:"take_profit_multiplier" default:"2" validate:"gt=0"`
		ATRPeriod             int           `yaml:"atr_period" default:"14" validate:"gt=0"`
		TrailingStopPct       float64       `yaml:"trailing_stop_pct" default:"0.02" validate:"gt=0,lt=1"`
		EdgeDecayRate         float64       `yaml:"edge_decay_rate" default:"0.1" validate:"gt=0"`
		MinPositionAge        time.Duration `yaml:"min_position_age" default:"30s"`
		EdgeDecayGrace        time.Duration `yaml:"edge_decay_grace" default:"5m"`
		UpdatePersistInterval time.Duration `yaml:"update_persist_interval" default:"10s"`
		ClosedHistory         int           `yaml:"closed_history" default:"500" validate:"gt=0"`
	} `yaml:"positions"`
}

var validate = validator.New()

// Load reads a YAML configuration file on top of the struct defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes raw YAML on top of the struct defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
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
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("SYMBOLS"); v != "" {
		c.Feed.Symbols = splitList(v)
	}
	if v := getenv("FEED_SOURCE"); v != "" {
		c.Feed.Source = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("ENGINE_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ENGINE_SEED: %w", err)
		}
		c.Engine.Strategy.Seed = seed
	}
	return nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Feed.Source == "kafka" && !c.Kafka.Enabled {
		return fmt.Errorf("feed.source is 'kafka' but kafka is disabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Engine.Positions.MaxPerSymbol > c.Engine.Positions.MaxPositions {
		return fmt.Errorf("engine.positions.max_per_symbol (%d) exceeds max_positions (%d)",
			c.Engine.Positions.MaxPerSymbol, c.Engine.Positions.MaxPositions)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
