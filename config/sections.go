package config

import (
	"time"

	"github.com/spf13/viper"
)

// Sentry config struct
type Sentry struct {
	Dsn         string `json:"dsn" yaml:"dsn"`
	Environment string `json:"environment" yaml:"environment"`
	Release     string `json:"release" yaml:"release"`
}

func getSentryConfig(v *viper.Viper) *Sentry {
	return &Sentry{
		Dsn:         v.GetString("sentry.dsn"),
		Environment: getStringOrDefault(v, "sentry.environment", v.GetString("run_mode")),
		Release:     v.GetString("sentry.release"),
	}
}

// Tracing holds the OpenTelemetry exporter settings. An empty endpoint
// disables export.
type Tracing struct {
	Endpoint     string        `json:"endpoint" yaml:"endpoint"`
	SamplingRate float64       `json:"sampling_rate" yaml:"sampling_rate"`
	BatchTimeout time.Duration `json:"batch_timeout" yaml:"batch_timeout"`
}

func getTracingConfig(v *viper.Viper) *Tracing {
	return &Tracing{
		Endpoint:     v.GetString("tracing.endpoint"),
		SamplingRate: getFloat64OrDefault(v, "tracing.sampling_rate", 1.0),
		BatchTimeout: getDurationOrDefault(v, "tracing.batch_timeout", 5*time.Second),
	}
}

// SQLite holds the job repository connection settings.
type SQLite struct {
	Source          string        `json:"source" yaml:"source"`
	MaxIdleConn     int           `json:"max_idle_conn" yaml:"max_idle_conn"`
	MaxOpenConn     int           `json:"max_open_conn" yaml:"max_open_conn"`
	ConnMaxLifeTime time.Duration `json:"conn_max_life_time" yaml:"conn_max_life_time"`
}

// Redis holds the optional status cache settings. An empty Addr disables it.
type Redis struct {
	Addr         string        `json:"addr" yaml:"addr"`
	Username     string        `json:"username" yaml:"username"`
	Password     string        `json:"password" yaml:"password"`
	Db           int           `json:"db" yaml:"db"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	StatusTTL    time.Duration `json:"status_ttl" yaml:"status_ttl"`
}

// Data represents the data configuration
type Data struct {
	SQLite *SQLite `json:"sqlite" yaml:"sqlite"`
	Redis  *Redis  `json:"redis" yaml:"redis"`
}

func getDataConfig(v *viper.Viper) *Data {
	return &Data{
		SQLite: &SQLite{
			Source:          getStringOrDefault(v, "data.sqlite.source", "file:jobpanel.db?_journal_mode=WAL&_busy_timeout=5000"),
			MaxIdleConn:     getIntOrDefault(v, "data.sqlite.max_idle_conn", 2),
			MaxOpenConn:     getIntOrDefault(v, "data.sqlite.max_open_conn", 1),
			ConnMaxLifeTime: getDurationOrDefault(v, "data.sqlite.conn_max_life_time", 0),
		},
		Redis: &Redis{
			Addr:         v.GetString("data.redis.addr"),
			Username:     v.GetString("data.redis.username"),
			Password:     v.GetString("data.redis.password"),
			Db:           v.GetInt("data.redis.db"),
			ReadTimeout:  getDurationOrDefault(v, "data.redis.read_timeout", 3*time.Second),
			WriteTimeout: getDurationOrDefault(v, "data.redis.write_timeout", 3*time.Second),
			DialTimeout:  getDurationOrDefault(v, "data.redis.dial_timeout", 5*time.Second),
			StatusTTL:    getDurationOrDefault(v, "data.redis.status_ttl", 24*time.Hour),
		},
	}
}

// Jobs holds the job service settings.
type Jobs struct {
	LogDir       string        `json:"log_dir" yaml:"log_dir"`
	Command      []string      `json:"command" yaml:"command"`
	Workdir      string        `json:"workdir" yaml:"workdir"`
	MaxWorkers   int           `json:"max_workers" yaml:"max_workers"`
	QueueSize    int           `json:"queue_size" yaml:"queue_size"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	TestDuration time.Duration `json:"test_duration" yaml:"test_duration"`
}

func getJobsConfig(v *viper.Viper) *Jobs {
	return &Jobs{
		LogDir:       getStringOrDefault(v, "jobs.log_dir", "logs"),
		Command:      v.GetStringSlice("jobs.command"),
		Workdir:      getStringOrDefault(v, "jobs.workdir", "."),
		MaxWorkers:   getIntOrDefault(v, "jobs.max_workers", 2),
		QueueSize:    getIntOrDefault(v, "jobs.queue_size", 16),
		Timeout:      getDurationOrDefault(v, "jobs.timeout", time.Hour),
		TestDuration: getDurationOrDefault(v, "jobs.test_duration", 5*time.Second),
	}
}

// Client holds the job client settings.
type Client struct {
	Endpoint         string        `json:"endpoint" yaml:"endpoint"`
	RequestTimeout   time.Duration `json:"request_timeout" yaml:"request_timeout"`
	BreakerInterval  time.Duration `json:"breaker_interval" yaml:"breaker_interval"`
	BreakerTimeout   time.Duration `json:"breaker_timeout" yaml:"breaker_timeout"`
	BreakerThreshold uint32        `json:"breaker_threshold" yaml:"breaker_threshold"`
}

func getClientConfig(v *viper.Viper) *Client {
	return &Client{
		Endpoint:         getStringOrDefault(v, "client.endpoint", "http://127.0.0.1:8080"),
		RequestTimeout:   getDurationOrDefault(v, "client.request_timeout", 10*time.Second),
		BreakerInterval:  getDurationOrDefault(v, "client.breaker_interval", 30*time.Second),
		BreakerTimeout:   getDurationOrDefault(v, "client.breaker_timeout", 5*time.Second),
		BreakerThreshold: getUint32OrDefault(v, "client.breaker_threshold", 5),
	}
}

// Panel holds the job runner panel settings.
type Panel struct {
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

func getPanelConfig(v *viper.Viper) *Panel {
	return &Panel{
		PollInterval: getDurationOrDefault(v, "panel.poll_interval", 1500*time.Millisecond),
	}
}
