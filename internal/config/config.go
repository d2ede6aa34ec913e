package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	PaymentModeCash = "cash"
	PaymentModeCard = "card"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	Vending VendingConfig `yaml:"vending"`
	Redis   RedisConfig   `yaml:"redis"`
	MySQL   MySQLConfig   `yaml:"mysql"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Workers WorkerConfig  `yaml:"workers"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	HTTPPort int    `yaml:"http_port"`
	GRPCPort int    `yaml:"grpc_port"`
}

type VendingConfig struct {
	Capacity           int        `yaml:"capacity"`
	PaymentMode        string     `yaml:"payment_mode"`
	CardAccount        string     `yaml:"card_account"`
	CardBalance        string     `yaml:"card_balance"` // seeded when the account is empty
	ReleaseTxOnSuccess bool       `yaml:"release_tx_on_success"`
	Items              []SeedItem `yaml:"items"`
}

type SeedItem struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Count    int    `yaml:"count"`
	Price    string `yaml:"price"`
	Position *int   `yaml:"position"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"` // empty disables the sales ledger
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // empty disables sale events
	Topic   string   `yaml:"topic"`
}

type WorkerConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

// Load reads config.yaml from dir (default ./config) and applies environment
// overrides.
func Load(configPath ...string) (*Config, error) {
	dir := "./config"
	if len(configPath) > 0 {
		dir = configPath[0]
	}
	fullPath := filepath.Join(dir, "config.yaml")

	cfg := Default()
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at %s: %w", fullPath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml at %s: %w", fullPath, err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "vending",
			Env:      "local",
			HTTPPort: 8080,
			GRPCPort: 50051,
		},
		Vending: VendingConfig{
			Capacity:    20,
			PaymentMode: PaymentModeCash,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Workers: WorkerConfig{
			Count:     2,
			QueueSize: 1000,
		},
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Vending.PaymentMode {
	case PaymentModeCash:
	case PaymentModeCard:
		if c.Vending.CardAccount == "" {
			errs = append(errs, errors.New("vending.card_account is required in card mode"))
		}
		if c.Vending.CardBalance != "" {
			if _, err := decimal.NewFromString(c.Vending.CardBalance); err != nil {
				errs = append(errs, fmt.Errorf("vending.card_balance: %w", err))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unknown payment mode %q", c.Vending.PaymentMode))
	}

	if c.App.HTTPPort <= 0 || c.App.GRPCPort <= 0 {
		errs = append(errs, errors.New("app ports must be positive"))
	}
	if c.Vending.Capacity <= 0 {
		errs = append(errs, errors.New("vending.capacity must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}

	for i, item := range c.Vending.Items {
		if item.Code == "" {
			errs = append(errs, fmt.Errorf("vending.items[%d]: code is required", i))
		}
		if _, err := decimal.NewFromString(item.Price); err != nil {
			errs = append(errs, fmt.Errorf("vending.items[%d]: price: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

func overrideWithEnv(cfg *Config) {
	if env := os.Getenv(EnvAppEnv); env != "" {
		cfg.App.Env = env
	}
	if val := os.Getenv(EnvHTTPPort); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.App.HTTPPort = p
		}
	}
	if val := os.Getenv(EnvGRPCPort); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.App.GRPCPort = p
		}
	}

	if val := os.Getenv(EnvPaymentMode); val != "" {
		cfg.Vending.PaymentMode = val
	}
	if val := os.Getenv(EnvCardAccount); val != "" {
		cfg.Vending.CardAccount = val
	}

	if val := os.Getenv(EnvRedisAddr); val != "" {
		cfg.Redis.Addr = val
	}
	if val := os.Getenv(EnvRedisPassword); val != "" {
		cfg.Redis.Password = val
	}

	if val := os.Getenv(EnvMySQLDSN); val != "" {
		cfg.MySQL.DSN = val
	}

	if val := os.Getenv(EnvKafkaBrokers); val != "" {
		cfg.Kafka.Brokers = strings.Split(val, ",")
	}
	if val := os.Getenv(EnvKafkaTopic); val != "" {
		cfg.Kafka.Topic = val
	}
}
