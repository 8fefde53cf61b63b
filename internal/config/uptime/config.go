package uptime_config

import (
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/NordCoder/Uptime/internal/compaction"
	"github.com/NordCoder/Uptime/internal/domain/website"
	"github.com/NordCoder/Uptime/internal/obs"
	"github.com/NordCoder/Uptime/internal/repository/kafka"
	pg "github.com/NordCoder/Uptime/internal/repository/postgres"
)

type App struct {
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Probe struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`
	VerifyTLS       bool          `mapstructure:"verify_tls"`
	Parallel        bool          `mapstructure:"parallel"`
	MaxParallel     int           `mapstructure:"max_parallel"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Events struct {
	Enable            bool     `mapstructure:"enable"`
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	Partitions        int      `mapstructure:"partitions"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
	QueueSize         int      `mapstructure:"queue_size"`
}

func (e Events) TopicSpec() kafka.TopicSpec {
	return kafka.TopicSpec{
		Name:              e.Topic,
		NumPartitions:     e.Partitions,
		ReplicationFactor: e.ReplicationFactor,
	}
}

type Config struct {
	IntervalSeconds int64             `mapstructure:"interval_seconds"`
	Websites        []website.Website `mapstructure:"websites"`
	DBURL           string            `mapstructure:"db_url"`
	MergePolicy     string            `mapstructure:"merge_policy"`
	BarBuckets      int               `mapstructure:"bar_buckets"`

	DB     pg.Config `mapstructure:"db"`
	Probe  Probe     `mapstructure:"probe"`
	Server Server    `mapstructure:"server"`
	Log    Log       `mapstructure:"log"`
	OTEL   OTEL      `mapstructure:"otel"`
	Events Events    `mapstructure:"events"`
	App    App       `mapstructure:"app"`
}

// Interval is the probe period. Only meaningful after Validate.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c *Config) Policy() compaction.MergePolicy {
	p, err := compaction.ParsePolicy(c.MergePolicy)
	if err != nil {
		return compaction.PolicyReference
	}
	return p
}

func (c *Config) AsLoggerConfig(app string) obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    app,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

func (c *Config) Validate() error {
	if c.IntervalSeconds <= 0 {
		return ErrConfig(fmt.Sprintf("interval_seconds must be positive, got %d", c.IntervalSeconds))
	}
	if c.IntervalSeconds > math.MaxInt64/int64(time.Second) {
		return ErrConfig(fmt.Sprintf("interval_seconds %d overflows", c.IntervalSeconds))
	}
	if _, err := compaction.Threshold(c.Interval()); err != nil {
		return ErrConfig(fmt.Sprintf("interval_seconds %d: %v", c.IntervalSeconds, err))
	}
	if c.DBURL == "" {
		return ErrConfig("db_url is empty")
	}
	if c.BarBuckets <= 0 {
		return ErrConfig(fmt.Sprintf("bar_buckets must be positive, got %d", c.BarBuckets))
	}
	if _, err := compaction.ParsePolicy(c.MergePolicy); err != nil {
		return ErrConfig(err.Error())
	}

	seen := make(map[string]struct{}, len(c.Websites))
	for i, w := range c.Websites {
		if w.Name == "" {
			return ErrConfig(fmt.Sprintf("websites[%d]: empty name", i))
		}
		if _, dup := seen[w.Name]; dup {
			return ErrConfig(fmt.Sprintf("websites[%d]: duplicate name %q", i, w.Name))
		}
		seen[w.Name] = struct{}{}

		u, err := url.Parse(w.URL)
		if err != nil {
			return ErrConfig(fmt.Sprintf("websites[%d] %s: bad url: %v", i, w.Name, err))
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrConfig(fmt.Sprintf("websites[%d] %s: url must be absolute http(s), got %q", i, w.Name, w.URL))
		}
	}

	if c.Probe.Parallel && c.Probe.MaxParallel <= 0 {
		return ErrConfig("probe.max_parallel must be positive when probe.parallel is set")
	}
	if c.Events.Enable && (len(c.Events.Brokers) == 0 || c.Events.Topic == "") {
		return ErrConfig("events.brokers and events.topic are required when events are enabled")
	}
	if c.Events.Enable && c.Events.QueueSize <= 0 {
		return ErrConfig("events.queue_size must be positive")
	}
	return nil
}
