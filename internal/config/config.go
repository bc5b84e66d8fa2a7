package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const megabyte = 1 << 20

type Config struct {
	DatabaseURL  string `yaml:"database_url"`
	StoreAnonKey string `yaml:"store_anon_key"`
	APIPort      string `yaml:"api_port"`

	DBBatchSize          int   `yaml:"db_batch_size"`
	ParseBatchSize       int   `yaml:"parse_batch_size"`
	MaxLightUploadBytes  int64 `yaml:"max_light_upload_bytes"`
	MaxHeavyUploadBytes  int64 `yaml:"max_heavy_upload_bytes"`
	WorkerThresholdBytes int64 `yaml:"worker_threshold_bytes"`

	CachePath              string `yaml:"cache_path"`
	CacheDirectLimitBytes  int    `yaml:"cache_direct_limit_bytes"`
	CacheChunkedLimitBytes int    `yaml:"cache_chunked_limit_bytes"`
	CacheChunkRows         int    `yaml:"cache_chunk_rows"`
	CacheKVQuotaBytes      int    `yaml:"cache_kv_quota_bytes"`
	CacheProjectionBytes   int    `yaml:"cache_projection_bytes"`

	PageSize        int    `yaml:"page_size"`
	RefreshSchedule string `yaml:"refresh_schedule"`

	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SessionSecure bool          `yaml:"session_secure"`

	ColumnAliasesPath string `yaml:"column_aliases_path"`
	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
	MetricsBackend    string `yaml:"metrics_backend"`
}

func defaults() Config {
	return Config{
		APIPort:                "8080",
		DBBatchSize:            100,
		ParseBatchSize:         1000,
		MaxLightUploadBytes:    10 * megabyte,
		MaxHeavyUploadBytes:    50 * megabyte,
		WorkerThresholdBytes:   1 * megabyte,
		CachePath:              "./cache.db",
		CacheDirectLimitBytes:  2 * megabyte,
		CacheChunkedLimitBytes: 5 * megabyte,
		CacheChunkRows:         500,
		CacheKVQuotaBytes:      5 * megabyte,
		CacheProjectionBytes:   5 * megabyte,
		PageSize:               50,
		RefreshSchedule:        "@every 5m",
		SessionTTL:             12 * time.Hour,
		LogLevel:               "info",
		LogFormat:              "json",
		MetricsBackend:         "none",
	}
}

// New builds the configuration from an optional YAML file (CONFIG_PATH,
// default config.yaml) overridden by environment variables. The store URL and
// anonymous key are required.
func New() (*Config, error) {
	cfg := defaults()

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", configPath, err)
		}
	} else if os.Getenv("CONFIG_PATH") != "" {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	envOverride(&cfg.DatabaseURL, "DATABASE_URL")
	envOverride(&cfg.StoreAnonKey, "STORE_ANON_KEY")
	envOverride(&cfg.APIPort, "API_PORT")
	envOverride(&cfg.CachePath, "CACHE_PATH")
	envOverride(&cfg.RefreshSchedule, "REFRESH_SCHEDULE")
	envOverride(&cfg.SessionSecret, "SESSION_SECRET")
	envOverride(&cfg.ColumnAliasesPath, "COLUMN_ALIASES_PATH")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LogFormat, "LOG_FORMAT")
	envOverride(&cfg.MetricsBackend, "METRICS_BACKEND")

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.StoreAnonKey == "" {
		missing = append(missing, "STORE_ANON_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s environment variable(s) not set", strings.Join(missing, ", "))
	}

	var err error
	if cfg.DBBatchSize, err = getEnvAsInt("DB_BATCH_SIZE", cfg.DBBatchSize); err != nil {
		return nil, err
	}
	if cfg.ParseBatchSize, err = getEnvAsInt("PARSE_BATCH_SIZE", cfg.ParseBatchSize); err != nil {
		return nil, err
	}
	if cfg.MaxLightUploadBytes, err = getEnvAsInt64("MAX_LIGHT_UPLOAD_BYTES", cfg.MaxLightUploadBytes); err != nil {
		return nil, err
	}
	if cfg.MaxHeavyUploadBytes, err = getEnvAsInt64("MAX_HEAVY_UPLOAD_BYTES", cfg.MaxHeavyUploadBytes); err != nil {
		return nil, err
	}
	if cfg.WorkerThresholdBytes, err = getEnvAsInt64("WORKER_THRESHOLD_BYTES", cfg.WorkerThresholdBytes); err != nil {
		return nil, err
	}
	if cfg.CacheDirectLimitBytes, err = getEnvAsInt("CACHE_DIRECT_LIMIT_BYTES", cfg.CacheDirectLimitBytes); err != nil {
		return nil, err
	}
	if cfg.CacheChunkedLimitBytes, err = getEnvAsInt("CACHE_CHUNKED_LIMIT_BYTES", cfg.CacheChunkedLimitBytes); err != nil {
		return nil, err
	}
	if cfg.CacheChunkRows, err = getEnvAsInt("CACHE_CHUNK_ROWS", cfg.CacheChunkRows); err != nil {
		return nil, err
	}
	if cfg.CacheKVQuotaBytes, err = getEnvAsInt("CACHE_KV_QUOTA_BYTES", cfg.CacheKVQuotaBytes); err != nil {
		return nil, err
	}
	if cfg.CacheProjectionBytes, err = getEnvAsInt("CACHE_PROJECTION_BYTES", cfg.CacheProjectionBytes); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = getEnvAsInt("PAGE_SIZE", cfg.PageSize); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getEnvAsDuration("SESSION_TTL", cfg.SessionTTL); err != nil {
		return nil, err
	}
	if cfg.SessionSecure, err = getEnvAsBool("SESSION_SECURE", cfg.SessionSecure); err != nil {
		return nil, err
	}

	if cfg.DBBatchSize <= 0 || cfg.ParseBatchSize <= 0 || cfg.PageSize <= 0 || cfg.CacheChunkRows <= 0 {
		return nil, fmt.Errorf("batch sizes, chunk rows and page size must be positive")
	}

	return &cfg, nil
}

func envOverride(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}

func getEnvAsInt64(key string, defaultValue int64) (int64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: expected a boolean, got '%s'", key, valueStr)
	}

	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected a duration, got '%s'", key, valueStr)
	}

	return value, nil
}
