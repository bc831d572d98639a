package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

const (
	RemoverLocal = "local"
	RemoverHTTP  = "http"
)

type Config struct {
	Port             string  `toml:"port" validate:"required,numeric"`
	Env              string  `toml:"env" validate:"oneof=development production"`
	Remover          string  `toml:"remover" validate:"oneof=local http"`
	RemoverURL       string  `toml:"remover_url" validate:"omitempty,url"`
	RemoverDevice    string  `toml:"remover_device" validate:"oneof=gpu cpu"`
	LocalTolerance   float64 `toml:"local_tolerance" validate:"gt=0,lte=255"`
	LocalMaxDim      int     `toml:"local_max_dimension" validate:"gte=0"`
	KafkaBrokers     string  `toml:"kafka_brokers"`
	KafkaTopic       string  `toml:"kafka_topic" validate:"required_with=KafkaBrokers"`
	RedisAddr        string  `toml:"redis_addr"`
	MaxUploadSize    string  `toml:"max_upload_size" validate:"required"`
	CompressionLevel int     `toml:"compression_level" validate:"gte=1,lte=9"`
	SpoolDir         string  `toml:"spool_dir"`

	maxUploadBytes int64
}

// Load reads the optional TOML file named by BGR_CONFIG, then applies environment
// overrides on top of it and validates the result.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("BGR_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:             "8081",
		Env:              "development",
		Remover:          RemoverLocal,
		RemoverDevice:    "gpu",
		LocalTolerance:   40,
		LocalMaxDim:      4096,
		KafkaTopic:       "bgremover.items",
		MaxUploadSize:    "32MB",
		CompressionLevel: 6,
	}
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.Port = getEnv("SERVICE_PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	c.Remover = getEnv("REMOVER", c.Remover)
	c.RemoverURL = getEnv("REMOVER_URL", c.RemoverURL)
	c.RemoverDevice = getEnv("REMOVER_DEVICE", c.RemoverDevice)
	c.LocalTolerance = getEnvAsFloat("LOCAL_TOLERANCE", c.LocalTolerance)
	c.LocalMaxDim = getEnvAsInt("LOCAL_MAX_DIMENSION", c.LocalMaxDim)
	c.KafkaBrokers = getEnv("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.MaxUploadSize = getEnv("MAX_UPLOAD_SIZE", c.MaxUploadSize)
	c.CompressionLevel = getEnvAsInt("COMPRESSION_LEVEL", c.CompressionLevel)
	c.SpoolDir = getEnv("SPOOL_DIR", c.SpoolDir)
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Remover == RemoverHTTP && c.RemoverURL == "" {
		return fmt.Errorf("invalid config: remover_url required when remover is %q", RemoverHTTP)
	}

	size, err := units.FromHumanSize(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}
	c.maxUploadBytes = size
	return nil
}

func (c *Config) MaxUploadBytes() int64 {
	return c.maxUploadBytes
}

// Brokers splits the comma separated broker list.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
