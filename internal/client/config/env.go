package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// Environment variable names.
const (
	EnvServerURL           = "SK_SERVER_URL"
	EnvRequestTimeout      = "SK_REQUEST_TIMEOUT"
	EnvOnlineCheckInterval = "SK_ONLINE_CHECK_INTERVAL"
	EnvDatabasePath        = "SK_DATABASE_PATH"
	EnvRedisAddr           = "SK_REDIS_ADDR"
	EnvRedisPassword       = "SK_REDIS_PASSWORD"
	EnvMaxRateLimitRetries = "SK_MAX_RATE_LIMIT_RETRIES"
	EnvRequestsPerSecond   = "SK_REQUESTS_PER_SECOND"
	EnvLogLevel            = "SK_LOG_LEVEL"
	EnvLogFormat           = "SK_LOG_FORMAT"
)

// parseEnv overlays Config with SK_* variables. Values come from a dotenv
// file (-e/-env-file, else ./.env when it exists) and from the process
// environment, which wins over the file.
//
// Durations accept Go syntax ("30s"). Panics on unreadable files and
// malformed values, like the other loaders.
func parseEnv(cfg *Config) {
	fileVars, err := readEnvFile(flagx.EnvFileFlags())
	if err != nil {
		panic(err)
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}

	if err := applyEnv(cfg, lookup); err != nil {
		panic(err)
	}
}

func readEnvFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return vars, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str(EnvServerURL, &cfg.ServerURL)
	str(EnvDatabasePath, &cfg.DatabasePath)
	str(EnvRedisAddr, &cfg.RedisAddr)
	str(EnvRedisPassword, &cfg.RedisPassword)
	str(EnvLogLevel, &cfg.LogLevel)
	str(EnvLogFormat, &cfg.LogFormat)

	if err := dur(EnvRequestTimeout, &cfg.RequestTimeout); err != nil {
		return err
	}
	if err := dur(EnvOnlineCheckInterval, &cfg.OnlineCheckInterval); err != nil {
		return err
	}

	if v, ok := lookup(EnvMaxRateLimitRetries); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxRateLimitRetries, err)
		}
		cfg.MaxRateLimitRetries = n
	}
	if v, ok := lookup(EnvRequestsPerSecond); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestsPerSecond, err)
		}
		cfg.RequestsPerSecond = f
	}
	return nil
}
