package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Centaurus99/Spearmint/internal/params"
	"github.com/Centaurus99/Spearmint/internal/perf"
)

type Config struct {
	Location      string       `yaml:"location"`
	Schemes       []string     `yaml:"schemes"`
	RunTimes      int          `yaml:"run_times"`
	ReplicateLogs string       `yaml:"replicate_logs"`
	BandwidthBnd  params.Bound `yaml:"bandwidth_bounds"`
	DelayBnd      params.Bound `yaml:"delay_bounds"`
	QueueBnd      params.Bound `yaml:"uplink_queue_bounds"`
	LossBnd       params.Bound `yaml:"uplink_loss_bounds"`
	Workers       Workers      `yaml:"workers"`
	TrialTimeout  int          `yaml:"trial_timeout_minutes"`
	ReportFormat  string       `yaml:"report_format"`
	SearchLog     string       `yaml:"search_log"`
	LogLevel      string       `yaml:"log_level"`
	Results       Results      `yaml:"results"`
	Notify        Notify       `yaml:"notify"`
}

type Workers struct {
	Executor     string   `yaml:"executor"`
	Username     string   `yaml:"username"`
	Table        string   `yaml:"table"`
	Addresses    []string `yaml:"addresses"`
	SSHPort      int      `yaml:"ssh_port"`
	Binary       string   `yaml:"binary"`
	PantheonDir  string   `yaml:"pantheon_dir"`
	RemoteOutput string   `yaml:"remote_output"`
	Image        string   `yaml:"image"`
	EnvFile      string   `yaml:"env_file"`
	CPULimit     float64  `yaml:"cpu_limit"`
	MemoryLimit  int64    `yaml:"memory_limit"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

type Notify struct {
	MQTT MQTT `yaml:"mqtt"`
}

type MQTT struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

const (
	ExecutorSSH    = "ssh"
	ExecutorDocker = "docker"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.Schemes) == 0 {
		return fmt.Errorf("no schemes defined")
	}
	seen := map[string]bool{}
	for i, s := range cfg.Schemes {
		if s == "" {
			return fmt.Errorf("scheme %d: name is required", i)
		}
		if seen[s] {
			return fmt.Errorf("scheme %q listed twice", s)
		}
		seen[s] = true
	}
	if cfg.RunTimes < 1 {
		return fmt.Errorf("run_times must be at least 1")
	}

	bounds := cfg.Bounds()
	for d := params.Dim(0); d < params.NumDims; d++ {
		b := bounds[d]
		if b.Min < 0 {
			return fmt.Errorf("%s_bounds: min must be non-negative", d)
		}
		if b.Max <= b.Min {
			return fmt.Errorf("%s_bounds: max must exceed min", d)
		}
	}
	if cfg.LossBnd.Max > 1 {
		return fmt.Errorf("uplink_loss_bounds: max is a probability and must be at most 1")
	}

	w := &cfg.Workers
	if w.Executor == "" {
		w.Executor = ExecutorSSH
	}
	switch w.Executor {
	case ExecutorSSH:
		if len(w.Addresses) == 0 && w.Table == "" {
			return fmt.Errorf("workers: addresses or table is required for the ssh executor")
		}
	case ExecutorDocker:
		if w.Image == "" {
			return fmt.Errorf("workers: image is required for the docker executor")
		}
	default:
		return fmt.Errorf("workers: unknown executor %q", w.Executor)
	}
	if w.SSHPort == 0 {
		w.SSHPort = 22
	}
	if w.Binary == "" {
		w.Binary = "~/replicate"
	}
	if w.PantheonDir == "" {
		w.PantheonDir = "~/pantheon"
	}
	if w.RemoteOutput == "" {
		w.RemoteOutput = w.PantheonDir + "/test/data/perf_data"
	}

	if cfg.ReportFormat == "" {
		cfg.ReportFormat = perf.FormatText
	}
	if !slices.Contains(perf.Formats, cfg.ReportFormat) {
		return fmt.Errorf("report_format %q is not one of %v", cfg.ReportFormat, perf.Formats)
	}
	if cfg.TrialTimeout < 0 {
		return fmt.Errorf("trial_timeout_minutes must not be negative")
	}
	if cfg.Location == "" && cfg.SearchLog == "" {
		return fmt.Errorf("location or search_log is required")
	}
	if cfg.ReplicateLogs == "" {
		return fmt.Errorf("replicate_logs is required")
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if m := &cfg.Notify.MQTT; m.Broker != "" {
		if m.Topic == "" {
			m.Topic = "replicate/evaluations"
		}
		if m.ClientID == "" {
			m.ClientID = "replicate-master"
		}
	}
	return nil
}

// Bounds returns the search-space bounds in dimension order.
func (c *Config) Bounds() params.Bounds {
	return params.Bounds{
		params.Bandwidth:   c.BandwidthBnd,
		params.Delay:       c.DelayBnd,
		params.UplinkQueue: c.QueueBnd,
		params.UplinkLoss:  c.LossBnd,
	}
}

// RequiredWorkers is the number of workers one evaluation occupies.
func (c *Config) RequiredWorkers() int {
	return len(c.Schemes) * c.RunTimes
}

func (c *Config) SearchLogPath() string {
	if c.SearchLog != "" {
		return c.SearchLog
	}
	return c.Location + "_search_log"
}

// TrialTimeoutDuration is zero when trials may run indefinitely.
func (c *Config) TrialTimeoutDuration() time.Duration {
	return time.Duration(c.TrialTimeout) * time.Minute
}
