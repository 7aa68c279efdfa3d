package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"credit-risk/internal/scoring"
)

// Load reads configs/config.yaml, overlays config.<APP_ENVIRONMENT>.yaml when present,
// expands ${VAR} placeholders, and applies defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return decode(v)
}

// LoadFromFile reads a single config file.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvFallbacks(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found walking from the working directory towards
// the module root. Missing files are not an error.
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// envFallbacks fill secrets left empty by the YAML from plain environment variables.
var envFallbacks = []struct {
	env    string
	target func(*Config) *string
}{
	{"DB_USER", func(c *Config) *string { return &c.Database.Postgres.User }},
	{"DB_PASSWORD", func(c *Config) *string { return &c.Database.Postgres.Password }},
	{"REDIS_PASSWORD", func(c *Config) *string { return &c.Database.Redis.Password }},
	{"ONNXRUNTIME_SHARED_LIBRARY_PATH", func(c *Config) *string { return &c.Model.ONNXLibraryPath }},
}

func applyEnvFallbacks(cfg *Config) {
	for _, f := range envFallbacks {
		target := f.target(cfg)
		if *target != "" {
			continue
		}
		if val := os.Getenv(f.env); val != "" {
			*target = val
		}
	}
}

const (
	defaultWorkerMaxJobs  = 5
	defaultWorkerTimeout  = 30000
	defaultWorkerRetries  = 3
	defaultRequestTimeout = 30000
)

func applyDefaults(cfg *Config) {
	setDefault(&cfg.App.Name, "credit-risk")

	setDefaultInt(&cfg.Camunda.MaxJobsActive, 10)
	setDefaultInt(&cfg.Camunda.Timeout, defaultWorkerTimeout)
	setDefaultInt(&cfg.Camunda.RequestTimeout, defaultRequestTimeout)

	pg := &cfg.Database.Postgres
	setDefaultInt(&pg.Port, 5432)
	setDefaultInt(&pg.MaxConnections, 25)
	setDefaultInt(&pg.MaxIdle, 5)
	setDefault(&pg.SSLMode, "disable")

	setDefault(&cfg.Logging.Level, "info")
	setDefault(&cfg.Logging.Format, "json")

	for key, w := range cfg.Workers {
		setDefaultInt(&w.MaxJobsActive, defaultWorkerMaxJobs)
		setDefaultInt(&w.Timeout, defaultWorkerTimeout)
		setDefaultInt(&w.MaxRetries, defaultWorkerRetries)
		cfg.Workers[key] = w
	}

	setDefault(&cfg.Model.Dir, "./models")
	setDefault(&cfg.Registry.Path, "configs/activity-registry.json")
	setDefault(&cfg.Metrics.Address, ":8080")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setDefaultInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}

// validateConfig returns every problem found, joined.
func validateConfig(cfg *Config) error {
	var errs []error
	if cfg.Camunda.BrokerAddress == "" {
		errs = append(errs, errors.New("camunda.broker_address is required"))
	}

	sc := cfg.Scoring
	if sc.CacheTTL < 0 {
		errs = append(errs, errors.New("scoring.cache_ttl must not be negative"))
	}
	if sc.CacheTTL > 0 && cfg.Database.Redis.Address == "" {
		errs = append(errs, errors.New("database.redis.address is required when scoring.cache_ttl is set"))
	}
	if sc.Calibration != nil && !sc.Calibration.IsZero() {
		if _, err := scoring.NewCalibrator(*sc.Calibration); err != nil {
			errs = append(errs, fmt.Errorf("scoring.calibration: %w", err))
		}
	}

	if sc.DecisionLogEnabled {
		pg := cfg.Database.Postgres
		for name, val := range map[string]string{
			"host":     pg.Host,
			"database": pg.Database,
			"user":     pg.User,
		} {
			if val == "" {
				errs = append(errs, fmt.Errorf("database.postgres.%s is required when the decision log is enabled", name))
			}
		}
	}

	return errors.Join(errs...)
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// CacheTTLDuration is the scoring result cache lifetime.
func (s ScoringConfig) CacheTTLDuration() time.Duration {
	return time.Duration(s.CacheTTL) * time.Second
}

// GetWorkerConfig returns the settings for taskType, or enabled defaults when the
// worker is not listed.
func GetWorkerConfig(cfg *Config, taskType string) WorkerConfig {
	if w, ok := cfg.Workers[taskType]; ok {
		return w
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: defaultWorkerMaxJobs,
		Timeout:       defaultWorkerTimeout,
		MaxRetries:    defaultWorkerRetries,
	}
}
