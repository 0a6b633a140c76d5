// Package config holds the ppsched server configuration and loads it from
// YAML files.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/ppsched/internal/hw"
	"github.com/me/ppsched/internal/logging"
	"github.com/me/ppsched/internal/scheduler"
)

// Config holds all configuration for a ppsched server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Sessions  SessionConfig   `yaml:"sessions"`
}

// ServerConfig holds process level settings.
type ServerConfig struct {
	Addr          string        `yaml:"addr"`           // Listen address (default ":8080")
	LogLevel      string        `yaml:"log_level"`      // debug, info, warn, error
	LogFormat     string        `yaml:"log_format"`     // text, json
	DBPath        string        `yaml:"db_path"`        // SQLite result store; ":memory:" for testing
	StatsInterval time.Duration `yaml:"stats_interval"` // 0 disables the stats reporter
}

// SchedulerConfig selects the dispatch policies.
type SchedulerConfig struct {
	NoOverlap     bool `yaml:"no_overlap"`
	AlignedStarts bool `yaml:"aligned_starts"`
	MaxQueuedJobs int  `yaml:"max_queued_jobs"`
}

// HardwareConfig describes the simulated execution units.
type HardwareConfig struct {
	Clusters []hw.ClusterSpec `yaml:"clusters"`
}

// SessionConfig configures session mailboxes.
type SessionConfig struct {
	MailboxDepth int `yaml:"mailbox_depth"`
}

// Default returns sensible defaults: one cluster of four units.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:          ":8080",
			LogLevel:      "info",
			LogFormat:     "text",
			DBPath:        "ppsched.db",
			StatsInterval: scheduler.DefaultReporterConfig().Interval,
		},
		Hardware: HardwareConfig{
			Clusters: []hw.ClusterSpec{
				{Units: 4, Version: 0xCD07, Duration: 5 * time.Millisecond},
			},
		},
		Sessions: SessionConfig{MailboxDepth: 256},
	}
}

// Load reads a YAML config file from path on top of Default and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all config values are usable.
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errs = append(errs, fmt.Errorf("invalid server.addr %q: %w", c.Server.Addr, err))
	}
	if !logging.ValidFormat(c.Server.LogFormat) {
		errs = append(errs, fmt.Errorf("invalid server.log_format %q: want text or json", c.Server.LogFormat))
	}
	if c.Server.StatsInterval < 0 {
		errs = append(errs, fmt.Errorf("server.stats_interval must not be negative"))
	}
	if c.Scheduler.MaxQueuedJobs < 0 {
		errs = append(errs, fmt.Errorf("scheduler.max_queued_jobs must not be negative"))
	}
	if c.Sessions.MailboxDepth < 0 {
		errs = append(errs, fmt.Errorf("sessions.mailbox_depth must not be negative"))
	}

	if len(c.Hardware.Clusters) == 0 {
		errs = append(errs, errors.New("hardware.clusters: at least one cluster required"))
	}
	units := 0
	for i, cl := range c.Hardware.Clusters {
		if cl.Units <= 0 {
			errs = append(errs, fmt.Errorf("hardware.clusters[%d].units must be positive", i))
		}
		if cl.Duration < 0 {
			errs = append(errs, fmt.Errorf("hardware.clusters[%d].sub_job_duration must not be negative", i))
		}
		if cl.FailureRate < 0 || cl.FailureRate > 1 {
			errs = append(errs, fmt.Errorf("hardware.clusters[%d].failure_rate %v outside [0,1]", i, cl.FailureRate))
		}
		units += cl.Units
	}
	if units > hw.MaxUnits {
		errs = append(errs, fmt.Errorf("hardware: %d units configured, at most %d supported", units, hw.MaxUnits))
	}

	return errors.Join(errs...)
}

// SchedulerPolicy converts the scheduler section to scheduler.Config.
func (c *Config) SchedulerPolicy() scheduler.Config {
	return scheduler.Config{
		NoOverlap:     c.Scheduler.NoOverlap,
		AlignedStarts: c.Scheduler.AlignedStarts,
		MaxQueuedJobs: c.Scheduler.MaxQueuedJobs,
	}
}
