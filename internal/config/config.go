package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// QueryVarPrefix is the environment prefix for SQL template variables.
// CH_QUERY_VAR_FOO becomes template variable FOO, usable as {{FOO}}.
const QueryVarPrefix = "CH_QUERY_VAR_"

// Config holds the full runner configuration for one invocation.
type Config struct {
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`

	// Variables are SQL template variables collected from the
	// CH_QUERY_VAR_ environment prefix. Keys are case-sensitive.
	Variables map[string]string `mapstructure:"-"`
}

// ClickHouseConfig holds connection parameters for the destination store.
type ClickHouseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Secure   bool   `mapstructure:"secure"`
	Verify   bool   `mapstructure:"verify"`
}

// S3Settings holds object storage parameters derived from template variables.
type S3Settings struct {
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Backend   string
}

// Load builds the runner configuration from an optional config file and
// the environment.
// Parameters:
//   - configPath: explicit config file path or empty for the default lookup.
// Returns:
//   - *Config: populated configuration.
//   - error: non-nil if an existing config file cannot be read.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Defaults match the original runner's environment contract
	v.SetDefault("clickhouse.host", "localhost")
	v.SetDefault("clickhouse.port", 9440)
	v.SetDefault("clickhouse.user", "default")
	v.SetDefault("clickhouse.password", "")
	v.SetDefault("clickhouse.database", "default")
	v.SetDefault("clickhouse.secure", false)
	v.SetDefault("clickhouse.verify", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for connection parameters
	v.BindEnv("clickhouse.host", "CH_HOST")
	v.BindEnv("clickhouse.port", "CH_PORT")
	v.BindEnv("clickhouse.user", "CH_USER")
	v.BindEnv("clickhouse.password", "CH_PASSWORD")
	v.BindEnv("clickhouse.database", "CH_DB")
	v.BindEnv("clickhouse.secure", "CH_SECURE")
	v.BindEnv("clickhouse.verify", "CH_VERIFY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Variables = QueryVariables()

	return &cfg, nil
}

// QueryVariables extracts all CH_QUERY_VAR_ prefixed environment variables.
// The prefix is stripped from the returned keys.
func QueryVariables() map[string]string {
	vars := make(map[string]string)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, QueryVarPrefix) {
			continue
		}
		vars[strings.TrimPrefix(key, QueryVarPrefix)] = value
	}

	return vars
}

// IsSensitive reports whether a variable name looks like a credential and
// must not appear in logs.
func IsSensitive(name string) bool {
	upper := strings.ToUpper(name)
	for _, marker := range []string{"SECRET", "PASSWORD", "KEY", "TOKEN"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// RedactedValue returns the value for logging, replacing credentials with
// a placeholder.
func RedactedValue(name, value string) string {
	if IsSensitive(name) {
		return "***REDACTED***"
	}
	return value
}

// S3 derives object storage settings from the standard template variables
// (S3_BUCKET, S3_ACCESS_KEY, S3_SECRET_KEY, S3_REGION, S3_ENDPOINT,
// S3_BACKEND).
func (c *Config) S3() S3Settings {
	region := c.Variables["S3_REGION"]
	if region == "" {
		region = "us-east-1"
	}

	return S3Settings{
		Bucket:    c.Variables["S3_BUCKET"],
		AccessKey: c.Variables["S3_ACCESS_KEY"],
		SecretKey: c.Variables["S3_SECRET_KEY"],
		Region:    region,
		Endpoint:  c.Variables["S3_ENDPOINT"],
		Backend:   c.Variables["S3_BACKEND"],
	}
}

// Validate checks connection parameters before any network call.
func (c *Config) Validate() error {
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse host must not be empty")
	}
	if c.ClickHouse.Port <= 0 || c.ClickHouse.Port > 65535 {
		return fmt.Errorf("clickhouse port %d out of range", c.ClickHouse.Port)
	}
	return nil
}
