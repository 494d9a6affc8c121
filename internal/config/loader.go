// Package config loads runtime settings from defaults, an optional YAML file
// and TODOAPI_ environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix      = "TODOAPI"
	configFileName = "todoapi"
	configFileType = "yaml"

	keyHTTPPort        = "http_port"
	keySQLiteDSN       = "sqlite_dsn"
	keyMigrationDir    = "migration_dir"
	keySessionTTL      = "session_ttl"
	keyShutdownTimeout = "shutdown_timeout"
	keyLogLevel        = "log_level"
	keyLogFormat       = "log_format"
)

// Config captures the settings of the to-do API process.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	MigrationDir    string
	SessionTTL      time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

// Load reads configuration. When file is empty, todoapi.yaml in the working
// directory is used if present. Every invalid value is reported in one error.
func Load(file string) (Config, error) {
	v := viper.New()
	v.SetDefault(keyHTTPPort, 8080)
	v.SetDefault(keySQLiteDSN, "data/todo.db")
	v.SetDefault(keyMigrationDir, "")
	v.SetDefault(keySessionTTL, "24h")
	v.SetDefault(keyShutdownTimeout, "10s")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "json")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read %s: %w", describeFile(file), err)
		}
	}

	cfg := Config{
		SQLiteDSN:    strings.TrimSpace(v.GetString(keySQLiteDSN)),
		MigrationDir: strings.TrimSpace(v.GetString(keyMigrationDir)),
		LogLevel:     strings.ToLower(strings.TrimSpace(v.GetString(keyLogLevel))),
		LogFormat:    strings.ToLower(strings.TrimSpace(v.GetString(keyLogFormat))),
	}
	var invalid []string

	port, err := strconv.Atoi(strings.TrimSpace(v.GetString(keyHTTPPort)))
	if err != nil || port <= 0 || port > 65535 {
		invalid = append(invalid, keyHTTPPort)
	}
	cfg.HTTPPort = port

	if cfg.SQLiteDSN == "" {
		invalid = append(invalid, keySQLiteDSN)
	}
	if cfg.SessionTTL, err = positiveDuration(v.GetString(keySessionTTL)); err != nil {
		invalid = append(invalid, keySessionTTL)
	}
	if cfg.ShutdownTimeout, err = positiveDuration(v.GetString(keyShutdownTimeout)); err != nil {
		invalid = append(invalid, keyShutdownTimeout)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, keyLogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		invalid = append(invalid, keyLogFormat)
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("config: invalid values for %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func positiveDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}

func describeFile(file string) string {
	if file == "" {
		return configFileName + "." + configFileType
	}
	return file
}
