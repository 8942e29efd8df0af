// Package config loads runtime configuration for the sessionkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment: SK_* variables, read from a dotenv file (-e/-env-file,
//     or ./.env when present) and from the process environment.
//  3. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the API server
//	-i int      online status check interval (seconds)
//	-t int      request timeout (seconds)
//	-d string   local SQLite database path
//	-r string   Redis address for the response cache
//	-l string   log level
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_url": "https://api.example.com",
//	  "request_timeout": "30s",
//	  "online_check_interval": "3s",
//	  "database_path": "sessionkeeper.db",
//	  "redis_addr": "127.0.0.1:6379",
//	  "max_rate_limit_retries": 5,
//	  "requests_per_second": 10,
//	  "log_level": "debug",
//	  "log_format": "json"
//	}
package config
