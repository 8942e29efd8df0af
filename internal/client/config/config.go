package config

import (
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

// Config holds runtime settings for the sessionkeeper CLI.
//
// Fields:
//   - ServerURL: base URL of the HTTP API.
//   - RequestTimeout: upper bound for a single request, body included.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - DatabasePath: SQLite file holding the session and the response cache.
//   - RedisAddr, RedisPassword: optional Redis server for the response cache.
//   - MaxRateLimitRetries: resends allowed after 429 before giving up.
//   - RequestsPerSecond: client-side pacing of outbound requests, 0 disables.
//   - LogLevel, LogFormat: see logging.Options.
type Config struct {
	ServerURL           string
	RequestTimeout      time.Duration
	OnlineCheckInterval time.Duration
	DatabasePath        string
	RedisAddr           string
	RedisPassword       string
	MaxRateLimitRetries int
	RequestsPerSecond   float64
	LogLevel            string
	LogFormat           string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = common.DefaultRequestTimeout
	c.OnlineCheckInterval = 3 * time.Second
	c.DatabasePath = "sessionkeeper.db"
	c.RedisAddr = ""
	c.RedisPassword = ""
	c.MaxRateLimitRetries = common.DefaultMaxRateLimitRetries
	c.RequestsPerSecond = 0
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment, JSON (if present) and command-line flags (if present).
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
