package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Pacing    PacingConfig    `mapstructure:"pacing"`
	Platforms PlatformConfig  `mapstructure:"platforms"`
	LogLevel  string          `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// RedisConfig holds the tenant-lease Redis connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SchedulerConfig holds the trigger cadences and sweep sizing
type SchedulerConfig struct {
	SweepBatchSize int           `mapstructure:"sweep_batch_size"`
	LeaseTimeout   time.Duration `mapstructure:"lease_timeout"`
}

// PacingConfig calibrates the drain loop against the GHL budget of roughly
// 10 requests per second, with each confirmation issuing 3-4 requests.
type PacingConfig struct {
	BatchSize          int           `mapstructure:"batch_size"`
	ItemDelay          time.Duration `mapstructure:"item_delay"`
	BatchDelay         time.Duration `mapstructure:"batch_delay"`
	PreProcessDelayMin time.Duration `mapstructure:"pre_process_delay_min"`
	PreProcessDelayMax time.Duration `mapstructure:"pre_process_delay_max"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
}

// PlatformConfig holds the external platform base URLs, overridable for
// staging environments and tests.
type PlatformConfig struct {
	DentalinkBaseURL   string `mapstructure:"dentalink_base_url"`
	MedilinkBaseURL    string `mapstructure:"medilink_base_url"`
	ReservoBaseURL     string `mapstructure:"reservo_base_url"`
	GoHighLevelBaseURL string `mapstructure:"gohighlevel_base_url"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("scheduler.sweep_batch_size", 10)
	viper.SetDefault("scheduler.lease_timeout", "15m")

	viper.SetDefault("pacing.batch_size", 10)
	viper.SetDefault("pacing.item_delay", "600ms")
	viper.SetDefault("pacing.batch_delay", "1s")
	viper.SetDefault("pacing.pre_process_delay_min", "20s")
	viper.SetDefault("pacing.pre_process_delay_max", "30s")
	viper.SetDefault("pacing.requests_per_second", 10)

	viper.SetDefault("platforms.dentalink_base_url", "https://api.dentalink.healthatom.com/api/v1/")
	viper.SetDefault("platforms.medilink_base_url", "https://api.medilink2.healthatom.com/api/v5/")
	viper.SetDefault("platforms.reservo_base_url", "https://reservo.cl/APIpublica/v2")
	viper.SetDefault("platforms.gohighlevel_base_url", "https://services.leadconnectorhq.com")

	viper.SetDefault("log_level", "info")
}

func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("scheduler.sweep_batch_size", "SCHEDULER_SWEEP_BATCH_SIZE")
	viper.BindEnv("scheduler.lease_timeout", "SCHEDULER_LEASE_TIMEOUT")

	viper.BindEnv("pacing.batch_size", "PACING_BATCH_SIZE")
	viper.BindEnv("pacing.item_delay", "PACING_ITEM_DELAY")
	viper.BindEnv("pacing.batch_delay", "PACING_BATCH_DELAY")
	viper.BindEnv("pacing.requests_per_second", "PACING_REQUESTS_PER_SECOND")

	viper.BindEnv("platforms.dentalink_base_url", "DENTALINK_BASE_URL")
	viper.BindEnv("platforms.medilink_base_url", "MEDILINK_BASE_URL")
	viper.BindEnv("platforms.reservo_base_url", "RESERVO_BASE_URL")
	viper.BindEnv("platforms.gohighlevel_base_url", "GHL_BASE_URL")

	viper.BindEnv("log_level", "LOG_LEVEL")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Scheduler.SweepBatchSize <= 0 {
		return fmt.Errorf("scheduler sweep batch size must be greater than 0")
	}
	if c.Scheduler.LeaseTimeout <= 0 {
		return fmt.Errorf("scheduler lease timeout must be greater than 0")
	}

	if c.Pacing.BatchSize <= 0 {
		return fmt.Errorf("pacing batch size must be greater than 0")
	}
	if c.Pacing.RequestsPerSecond <= 0 {
		return fmt.Errorf("pacing requests per second must be greater than 0")
	}
	if c.Pacing.PreProcessDelayMax < c.Pacing.PreProcessDelayMin {
		return fmt.Errorf("pacing pre-process delay max must not be below min")
	}

	return nil
}
