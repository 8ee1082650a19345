package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Valuation ValuationConfig `mapstructure:"valuation"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host     string `mapstructure:"host"`
	GRPCPort int    `mapstructure:"grpc_port"`
	HTTPPort int    `mapstructure:"http_port"`
	APIToken string `mapstructure:"api_token"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory"
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Migrate  bool   `mapstructure:"migrate"`
}

// ConnString returns DSN when set, otherwise a key/value lib/pq connection string
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ValuationConfig struct {
	InitialValue    string `mapstructure:"initial_value"`
	WeightTolerance string `mapstructure:"weight_tolerance"`
	CashAssetSymbol string `mapstructure:"cash_asset_symbol"`
}

// InitialValueDecimal parses the default V0 of the value series
func (v ValuationConfig) InitialValueDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.InitialValue)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid valuation.initial_value %q: %w", v.InitialValue, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("valuation.initial_value must be positive, got %s", d)
	}
	return d, nil
}

// WeightToleranceDecimal parses the accepted |Σw - 1| distance
func (v ValuationConfig) WeightToleranceDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.WeightTolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid valuation.weight_tolerance %q: %w", v.WeightTolerance, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("valuation.weight_tolerance cannot be negative, got %s", d)
	}
	return d, nil
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func Load(configName string) (*Config, error) {
	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/portfolio/")

	v.SetEnvPrefix("PORTFOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.grpc_port", 8080)
	v.SetDefault("server.http_port", 8081)
	v.SetDefault("server.api_token", "dev-token")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "portfolio")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "portfolio.events")

	v.SetDefault("valuation.initial_value", "1000000000")
	v.SetDefault("valuation.weight_tolerance", "0.000001")
	v.SetDefault("valuation.cash_asset_symbol", "CASH")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
