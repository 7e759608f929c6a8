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
	Environment string            `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Server      ServerConfig      `yaml:"server"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
	Store       StoreConfig       `yaml:"store"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Cache       CacheConfig       `yaml:"cache"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Queue       QueueConfig       `yaml:"queue"`
	Hotel       HotelConfig       `yaml:"hotel"`
	RoomTypes   []RoomTypeConfig  `yaml:"room_types" validate:"dive"`
	Channels    []ChannelConfig   `yaml:"channels" validate:"dive"`
	Seasons     []SeasonConfig    `yaml:"seasons" validate:"dive"`
	Forecasting ForecastingConfig `yaml:"forecasting"`
	Pricing     PricingConfig     `yaml:"pricing"`
	Export      ExportConfig      `yaml:"export"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"5s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"2m"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// RateLimitBurst requests per client IP may start pipeline steps at once; 0 disables the limit.
	RateLimitBurst  int     `yaml:"rate_limit_burst" default:"10" validate:"gte=0"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" default:"0.5" validate:"gte=0"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output string `yaml:"output" default:"stdout"`
	// Collect ships aggregated error logs to kafka.topics.logs.
	Collect bool `yaml:"collect"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" default:"memory" validate:"oneof=memory clickhouse sqlite postgres mysql"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"revenue"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"dsn" default:"file:revenue.db?_busy_timeout=5000"`
	MaxOpenConns int    `yaml:"max_open_conns" default:"10"`
	MaxIdleConns int    `yaml:"max_idle_conns" default:"5"`
	AutoMigrate  bool   `yaml:"auto_migrate" default:"true"`
}

type RedisConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"revenue"`
}

type CacheConfig struct {
	Mode          string        `yaml:"mode" default:"memory" validate:"oneof=memory redis layered"`
	MemoryMaxSize int           `yaml:"memory_max_size" default:"1000"`
	KPITTL        time.Duration `yaml:"kpi_ttl" default:"5m"`
	RunLockTTL    time.Duration `yaml:"run_lock_ttl" default:"30m"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Topics       struct {
		Recommendations string `yaml:"recommendations" default:"revenue.recommendations"`
		Exports         string `yaml:"exports" default:"revenue.exports"`
		Status          string `yaml:"status" default:"revenue.status"`
		Logs            string `yaml:"logs" default:"revenue.logs"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"200ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"500"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"revenue-status"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"64"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

// QueueConfig enables background full runs on a Redis job queue.
type QueueConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Workers    int           `yaml:"workers" default:"1" validate:"gte=1"`
	RetryLimit int           `yaml:"retry_limit" default:"2" validate:"gte=0"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	KeyPrefix  string        `yaml:"key_prefix" default:"revenue:jobs"`
	StatusTTL  time.Duration `yaml:"status_ttl" default:"24h"`
}

type HotelConfig struct {
	Name     string `yaml:"name" default:"Hotel"`
	Currency string `yaml:"currency" default:"COP"`
}

type RoomTypeConfig struct {
	ID       int64   `yaml:"id" validate:"gt=0"`
	Code     string  `yaml:"code" validate:"required"`
	Name     string  `yaml:"name" validate:"required"`
	Capacity int     `yaml:"capacity" validate:"gte=1"`
	Units    int     `yaml:"units" validate:"gte=0"`
	BaseRate float64 `yaml:"base_rate" validate:"gte=0"`
}

type ChannelConfig struct {
	Name       string  `yaml:"name" validate:"required"`
	Commission float64 `yaml:"commission" validate:"gte=0,lt=1"`
	Priority   int     `yaml:"priority"`
	Active     *bool   `yaml:"active"`
}

// IsActive treats an omitted flag as active.
func (c ChannelConfig) IsActive() bool { return c.Active == nil || *c.Active }

type SeasonConfig struct {
	Name   string `yaml:"name" validate:"required"`
	Months []int  `yaml:"months" validate:"dive,gte=1,lte=12"`
}

type ForecastingConfig struct {
	ForecastDays          int           `yaml:"forecast_days" default:"90" validate:"gte=1,lte=730"`
	HistoryDays           int           `yaml:"history_days" default:"365" validate:"gte=1"`
	Model                 string        `yaml:"model" default:"native" validate:"oneof=native remote"`
	SeasonalityMode       string        `yaml:"seasonality_mode" default:"multiplicative" validate:"oneof=additive multiplicative"`
	ChangepointPriorScale float64       `yaml:"changepoint_prior_scale" default:"0.05" validate:"gt=0"`
	SeasonalityPriorScale float64       `yaml:"seasonality_prior_scale" default:"10" validate:"gt=0"`
	Changepoints          int           `yaml:"changepoints" default:"25" validate:"gte=0"`
	ChangepointRange      float64       `yaml:"changepoint_range" default:"0.8" validate:"gt=0,lte=1"`
	IntervalWidth         float64       `yaml:"interval_width" default:"0.8" validate:"gt=0,lt=1"`
	Weekly                Seasonality   `yaml:"weekly"`
	Yearly                Seasonality   `yaml:"yearly"`
	Workers               int           `yaml:"workers" default:"4" validate:"gte=1"`
	ProtectManual         bool          `yaml:"protect_manual_adjustments" default:"true"`
	RemoteURL             string        `yaml:"remote_url"`
	RemoteTimeout         time.Duration `yaml:"remote_timeout" default:"30s"`
}

type Seasonality struct {
	Enabled      bool    `yaml:"enabled" default:"true"`
	Period       float64 `yaml:"period"`
	FourierOrder int     `yaml:"fourier_order" validate:"gte=0"`
}

type PricingConfig struct {
	MinOccupancyThreshold float64            `yaml:"min_occupancy_threshold" default:"0.4" validate:"gte=0,lte=1"`
	MaxOccupancyThreshold float64            `yaml:"max_occupancy_threshold" default:"0.8" validate:"gte=0,lte=1"`
	LowOccupancyFactor    float64            `yaml:"low_occupancy_factor" default:"0.9" validate:"gt=0"`
	HighOccupancyFactor   float64            `yaml:"high_occupancy_factor" default:"1.15" validate:"gt=0"`
	MinPriceFactor        float64            `yaml:"min_price_factor" default:"0.7" validate:"gt=0"`
	MaxPriceFactor        float64            `yaml:"max_price_factor" default:"1.3" validate:"gt=0"`
	DirectChannel         string             `yaml:"direct_channel" default:"Directo"`
	DirectChannelDiscount float64            `yaml:"direct_channel_discount" default:"0.05" validate:"gte=0,lt=1"`
	DefaultBaseRate       float64            `yaml:"default_base_rate" default:"100" validate:"gt=0"`
	DefaultSeason         string             `yaml:"default_season" default:"Media"`
	SeasonFactors         map[string]float64 `yaml:"season_factors"`
	WeekdayFactors        map[int]float64    `yaml:"weekday_factors"`
}

type ExportConfig struct {
	Dir string `yaml:"dir" default:"data/exports"`
}

var validate = validator.New()

// Load reads a YAML configuration file on top of the tag defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes the same way Load does.
func Parse(b []byte) (*Config, error) {
	c, err := tagDefaults()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyFallbacks()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Default returns a configuration populated from struct tags plus the reference hotel data.
func Default() (*Config, error) {
	c, err := tagDefaults()
	if err != nil {
		return nil, err
	}
	c.applyFallbacks()
	return c, nil
}

// tagDefaults is applied before decoding so explicit false/zero values in YAML survive.
func tagDefaults() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if c.Forecasting.Weekly.Period == 0 {
		c.Forecasting.Weekly = Seasonality{Enabled: true, Period: 7, FourierOrder: 3}
	}
	if c.Forecasting.Yearly.Period == 0 {
		c.Forecasting.Yearly = Seasonality{Enabled: true, Period: 365.25, FourierOrder: 10}
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides deployment-specific values from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("REVENUE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return c.Validate()
}

// Validate checks tag constraints and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Pricing.MinPriceFactor > c.Pricing.MaxPriceFactor {
		return fmt.Errorf("pricing.min_price_factor (%v) must not exceed max_price_factor (%v)",
			c.Pricing.MinPriceFactor, c.Pricing.MaxPriceFactor)
	}
	if c.Pricing.MinOccupancyThreshold > c.Pricing.MaxOccupancyThreshold {
		return fmt.Errorf("pricing.min_occupancy_threshold must not exceed max_occupancy_threshold")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Forecasting.Model == "remote" && c.Forecasting.RemoteURL == "" {
		return fmt.Errorf("forecasting.remote_url is required for the remote model")
	}

	ids := make(map[int64]bool, len(c.RoomTypes))
	for _, rt := range c.RoomTypes {
		if ids[rt.ID] {
			return fmt.Errorf("room_types: duplicate id %d", rt.ID)
		}
		ids[rt.ID] = true
	}
	names := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if names[ch.Name] {
			return fmt.Errorf("channels: duplicate name %q", ch.Name)
		}
		names[ch.Name] = true
	}
	months := make(map[int]string, 12)
	for _, s := range c.Seasons {
		for _, m := range s.Months {
			if prev, ok := months[m]; ok {
				return fmt.Errorf("seasons: month %d mapped to both %q and %q", m, prev, s.Name)
			}
			months[m] = s.Name
		}
	}
	return nil
}
