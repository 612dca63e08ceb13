package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/google/uuid"

	"github.com/lta97/junkpool/internal/core/domain"
)

type Config struct {
	ServerPort   string
	InstanceID   string
	MySQLDSN     string
	RedisAddr    string
	EventChannel string
	WorkerCount  int
	QueueSize    int

	Owner       domain.Address
	Controller  domain.Address
	FlatPrice   *big.Int
	MinPrice    *big.Int
	MaxPrice    *big.Int
	WindowSecs  int64
	BundleSize  int
	InitialFund *big.Int
}

func LoadConfig() (*Config, error) {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = uuid.New().String()
	}

	cfg := &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		InstanceID:   instanceID,
		MySQLDSN:     getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/junkpool?parseTime=true"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		EventChannel: getEnv("EVENT_CHANNEL", "junkpool:events"),
		Owner:        domain.Address(getEnv("OWNER_ADDR", "")),
		Controller:   domain.Address(getEnv("CONTROLLER_ADDR", "")),
	}

	var err error
	if cfg.WorkerCount, err = intEnv("WORKER_COUNT", 10); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = intEnv("QUEUE_SIZE", 10000); err != nil {
		return nil, err
	}
	if cfg.BundleSize, err = intEnv("BUNDLE_SIZE", 4); err != nil {
		return nil, err
	}
	secs, err := intEnv("WINDOW_SECONDS", 900)
	if err != nil {
		return nil, err
	}
	cfg.WindowSecs = int64(secs)
	if cfg.FlatPrice, err = bigEnv("FLAT_PRICE", "1000000000000000"); err != nil { // 0.001 ether
		return nil, err
	}
	if cfg.MinPrice, err = bigEnv("MIN_PRICE", "10000000000000000"); err != nil { // 0.01 ether
		return nil, err
	}
	if cfg.MaxPrice, err = bigEnv("MAX_PRICE", "100000000000000000"); err != nil { // 0.1 ether
		return nil, err
	}
	if cfg.InitialFund, err = bigEnv("INITIAL_FUND", "0"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.MySQLDSN == "" {
		return fmt.Errorf("MYSQL_DSN is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.Owner == domain.ZeroAddress {
		return fmt.Errorf("OWNER_ADDR is required")
	}
	if c.WorkerCount <= 0 || c.QueueSize <= 0 {
		return fmt.Errorf("WORKER_COUNT and QUEUE_SIZE must be positive")
	}
	return nil
}

// Auction assembles the market configuration carried by this process.
func (c *Config) Auction() domain.AuctionConfig {
	return domain.AuctionConfig{
		FlatPrice:      c.FlatPrice,
		MinPrice:       c.MinPrice,
		MaxPrice:       c.MaxPrice,
		WindowDuration: c.WindowSecs,
		BundleSize:     c.BundleSize,
		Controller:     c.Controller,
		Owner:          c.Owner,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func bigEnv(key, defaultValue string) (*big.Int, error) {
	v := os.Getenv(key)
	if v == "" {
		v = defaultValue
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a decimal integer, got %q", key, v)
	}
	return n, nil
}
