package uptime_config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix     = "UPTIME"
	EnvConfigPath = "UPTIME_CONFIG_PATH"
	DefaultPath   = "uptime.json"
)

// PathFromEnv returns the config file location, UPTIME_CONFIG_PATH or
// uptime.json. A .env file in the working directory is loaded first.
func PathFromEnv() string {
	_ = godotenv.Load()
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the config file at path (JSON or YAML, by extension), applies
// defaults and UPTIME_* environment overrides, and validates the result.
// A missing file is not an error: everything can come from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	v.SetDefault("db_url", "uptime.db")
	v.SetDefault("merge_policy", "reference")
	v.SetDefault("bar_buckets", 100)

	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("db.max_conn_idle_time", "10m")
	v.SetDefault("db.health_check_period", "30s")
	v.SetDefault("db.query_timeout", "5s")

	v.SetDefault("probe.timeout", "10s")
	v.SetDefault("probe.user_agent", "uptime/dev")
	v.SetDefault("probe.follow_redirects", true)
	v.SetDefault("probe.verify_tls", true)
	v.SetDefault("probe.parallel", false)
	v.SetDefault("probe.max_parallel", 8)

	v.SetDefault("server.http_addr", ":3000")
	v.SetDefault("server.metrics_addr", ":9100")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "15s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("otel.enable", false)
	v.SetDefault("otel.service_name", "uptime")
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("otel.otlp_endpoint", "localhost:4317")

	v.SetDefault("events.enable", false)
	v.SetDefault("events.brokers", []string{"localhost:9094"})
	v.SetDefault("events.topic", "uptime.runs")
	v.SetDefault("events.partitions", 1)
	v.SetDefault("events.replication_factor", 1)
	v.SetDefault("events.queue_size", 1024)

	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "dev")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// no default, so AutomaticEnv alone would not see it
	_ = v.BindEnv("interval_seconds")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
