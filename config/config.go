package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	logcfg "github.com/ncobase/jobpanel/logging/logger/config"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "JOBPANEL"

// Config represents the configuration implementation.
type Config struct {
	AppName     string
	RunMode     string
	Environment string
	Host        string
	Port        int
	Logger      *logcfg.Config
	Sentry      *Sentry
	Tracing     *Tracing
	Data        *Data
	Jobs        *Jobs
	Client      *Client
	Panel       *Panel
	Viper       *viper.Viper
}

// LoadConfig loads the configuration from the file. An empty path searches
// config.yaml in the working directory, $HOME/.jobpanel and next to the
// executable; when nothing is found the defaults and the environment are
// used.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.jobpanel")
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(ex))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppName:     v.GetString("app_name"),
		RunMode:     v.GetString("run_mode"),
		Environment: v.GetString("environment"),
		Host:        v.GetString("server.host"),
		Port:        v.GetInt("server.port"),
		Logger:      logcfg.GetConfig(v),
		Sentry:      getSentryConfig(v),
		Tracing:     getTracingConfig(v),
		Data:        getDataConfig(v),
		Jobs:        getJobsConfig(v),
		Client:      getClientConfig(v),
		Panel:       getPanelConfig(v),
		Viper:       v,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Port)
	}
	if c.Jobs.MaxWorkers < 1 {
		return errors.New("jobs.max_workers must be greater than 0")
	}
	if c.Jobs.QueueSize < 1 {
		return errors.New("jobs.queue_size must be greater than 0")
	}
	if c.Panel.PollInterval <= 0 {
		return errors.New("panel.poll_interval must be positive")
	}
	return nil
}

// Addr returns the listen address of the job service.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Watch watches the configuration file and calls callback with the reloaded
// configuration whenever it changes. Invalid reloads are passed to onError
// and the previous configuration stays in effect.
func (c *Config) Watch(callback func(*Config), onError func(error)) {
	c.Viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := fromViper(c.Viper)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to reload config: %w", err))
			}
			return
		}
		callback(next)
	})
	c.Viper.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "jobpanel")
	v.SetDefault("run_mode", "release")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logger.level", 4)
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.output", "stdout")
}
