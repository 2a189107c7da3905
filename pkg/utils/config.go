package utils

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Lock      LockConfig
	Scheduler SchedulerConfig
	Pricing   PricingConfig
	Gateway   GatewayConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type QueueConfig struct {
	URL      string
	Exchange string
}

// LockConfig selects the seat lock backend. "memory" keeps locks in
// process and is the single-node default; "redis" shares them across
// nodes.
type LockConfig struct {
	Backend string
}

type SchedulerConfig struct {
	Interval time.Duration
}

type PricingConfig struct {
	PerSeat float64
}

// GatewayConfig tunes the payment result polling loop.
type GatewayConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	RepollFloor  time.Duration
	Lookback     time.Duration
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("QUEUE_EXCHANGE", "booking.events")
	viper.SetDefault("LOCK_BACKEND", "memory")
	viper.SetDefault("SCHEDULER_INTERVAL_SECONDS", 30)
	viper.SetDefault("PRICE_PER_SEAT", 150000)
	viper.SetDefault("GATEWAY_POLL_INTERVAL_SECONDS", 60)
	viper.SetDefault("GATEWAY_MAX_POLL_ATTEMPTS", 10)
	viper.SetDefault("GATEWAY_REPOLL_FLOOR_SECONDS", 90)
	viper.SetDefault("GATEWAY_LOOKBACK_HOURS", 24)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASS"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Queue: QueueConfig{
			URL:      viper.GetString("QUEUE_URL"),
			Exchange: viper.GetString("QUEUE_EXCHANGE"),
		},
		Lock: LockConfig{
			Backend: viper.GetString("LOCK_BACKEND"),
		},
		Scheduler: SchedulerConfig{
			Interval: time.Duration(viper.GetInt("SCHEDULER_INTERVAL_SECONDS")) * time.Second,
		},
		Pricing: PricingConfig{
			PerSeat: viper.GetFloat64("PRICE_PER_SEAT"),
		},
		Gateway: GatewayConfig{
			PollInterval: time.Duration(viper.GetInt("GATEWAY_POLL_INTERVAL_SECONDS")) * time.Second,
			MaxAttempts:  viper.GetInt("GATEWAY_MAX_POLL_ATTEMPTS"),
			RepollFloor:  time.Duration(viper.GetInt("GATEWAY_REPOLL_FLOOR_SECONDS")) * time.Second,
			Lookback:     time.Duration(viper.GetInt("GATEWAY_LOOKBACK_HOURS")) * time.Hour,
		},
	}

	return config, nil
}
