package qdemo

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/theapemachine/qdemo/runtime"
)

/*
Config carries everything a run needs: pool sizing, where output goes, how
shots and backends are chosen, and the runtime account. It is loaded once
through viper so flags, environment and the qdemo.yaml file all land here.
*/
type Config struct {
	MinWorkers        int
	MaxWorkers        int
	SchedulingTimeout time.Duration
	JobTimeout        time.Duration
	Retries           int

	OutputDir   string
	HistoryPath string
	MetricsFile string

	Shots      int // overrides every demo's shot count when > 0
	Seed       uint64
	ForceLocal bool
	Fallback   bool
	Backend    string

	RateLimit    int
	RateInterval time.Duration

	Runtime runtime.Config
}

func NewConfig() *Config {
	return &Config{
		MinWorkers:        2,
		MaxWorkers:        4,
		SchedulingTimeout: 10 * time.Second,
		JobTimeout:        45 * time.Minute,
		Retries:           3,
		OutputDir:         "out",
		HistoryPath:       "out/history.db",
		Fallback:          true,
		RateLimit:         5,
		RateInterval:      200 * time.Millisecond,
	}
}

// SetDefaults registers the NewConfig values under their viper keys.
func SetDefaults(v *viper.Viper) {
	cfg := NewConfig()
	v.SetDefault("pool.min_workers", cfg.MinWorkers)
	v.SetDefault("pool.max_workers", cfg.MaxWorkers)
	v.SetDefault("pool.scheduling_timeout", cfg.SchedulingTimeout)
	v.SetDefault("pool.job_timeout", cfg.JobTimeout)
	v.SetDefault("pool.retries", cfg.Retries)
	v.SetDefault("output.dir", cfg.OutputDir)
	v.SetDefault("output.history", cfg.HistoryPath)
	v.SetDefault("output.metrics_file", "")
	v.SetDefault("run.shots", 0)
	v.SetDefault("run.seed", 0)
	v.SetDefault("run.local", false)
	v.SetDefault("run.fallback", cfg.Fallback)
	v.SetDefault("run.backend", "")
	v.SetDefault("ibm.url", runtime.DefaultBaseURL)
	v.SetDefault("ibm.api_version", runtime.DefaultAPIVersion)
	v.SetDefault("ibm.token", "")
	v.SetDefault("ibm.instance", "")
	v.SetDefault("ibm.poll_interval", 5*time.Second)
	v.SetDefault("ibm.job_timeout", 30*time.Minute)
	v.SetDefault("ibm.rate_limit", cfg.RateLimit)
	v.SetDefault("ibm.rate_interval", cfg.RateInterval)
}

/*
NewViper returns a viper instance with defaults, the QDEMO_ environment
prefix and the qdemo.yaml search path set up. The IBM token is also taken
from QISKIT_IBM_TOKEN so an existing Qiskit setup works unchanged.
*/
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("qdemo")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.qdemo")

	v.SetEnvPrefix("QDEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ibm.token", "QDEMO_IBM_TOKEN", "QISKIT_IBM_TOKEN")

	return v
}

// LoadConfig reads the optional config file and decodes v into a Config.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{
		MinWorkers:        v.GetInt("pool.min_workers"),
		MaxWorkers:        v.GetInt("pool.max_workers"),
		SchedulingTimeout: v.GetDuration("pool.scheduling_timeout"),
		JobTimeout:        v.GetDuration("pool.job_timeout"),
		Retries:           v.GetInt("pool.retries"),
		OutputDir:         v.GetString("output.dir"),
		HistoryPath:       v.GetString("output.history"),
		MetricsFile:       v.GetString("output.metrics_file"),
		Shots:             v.GetInt("run.shots"),
		Seed:              v.GetUint64("run.seed"),
		ForceLocal:        v.GetBool("run.local"),
		Fallback:          v.GetBool("run.fallback"),
		Backend:           v.GetString("run.backend"),
		RateLimit:         v.GetInt("ibm.rate_limit"),
		RateInterval:      v.GetDuration("ibm.rate_interval"),
		Runtime: runtime.Config{
			BaseURL:      v.GetString("ibm.url"),
			Token:        v.GetString("ibm.token"),
			Instance:     v.GetString("ibm.instance"),
			APIVersion:   v.GetString("ibm.api_version"),
			PollInterval: v.GetDuration("ibm.poll_interval"),
			JobTimeout:   v.GetDuration("ibm.job_timeout"),
		},
	}
	return cfg, cfg.Validate()
}

func (cfg *Config) Validate() error {
	switch {
	case cfg.MinWorkers < 1:
		return errors.Errorf("pool.min_workers must be at least 1, got %d", cfg.MinWorkers)
	case cfg.MaxWorkers < cfg.MinWorkers:
		return errors.Errorf("pool.max_workers (%d) below pool.min_workers (%d)", cfg.MaxWorkers, cfg.MinWorkers)
	case cfg.Shots < 0:
		return errors.Errorf("run.shots must not be negative, got %d", cfg.Shots)
	case cfg.Retries < 1:
		return errors.Errorf("pool.retries must be at least 1, got %d", cfg.Retries)
	}
	return nil
}
