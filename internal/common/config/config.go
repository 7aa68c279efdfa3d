package config

import (
	"fmt"

	"credit-risk/internal/scoring"
)

type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Model    ModelConfig             `mapstructure:"model"`
	Scoring  ScoringConfig           `mapstructure:"scoring"`
	Registry RegistryConfig          `mapstructure:"registry"`
	Metrics  MetricsConfig           `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ModelConfig locates the model bundle. An empty Version means the one named by state.json.
type ModelConfig struct {
	Dir             string `mapstructure:"dir"`
	Version         string `mapstructure:"version"`
	ONNXLibraryPath string `mapstructure:"onnx_library_path"`
}

// ScoringConfig tunes the scoring worker around the pipeline.
type ScoringConfig struct {
	CacheTTL           int  `mapstructure:"cache_ttl"` // seconds, 0 disables the result cache
	DecisionLogEnabled bool `mapstructure:"decision_log_enabled"`

	// Calibration replaces the bundle's calibration when set.
	Calibration *scoring.Calibration `mapstructure:"calibration"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
