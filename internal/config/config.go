// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sszokoly/sipcounter/internal/core"
)

// Config is the top-level configuration of a counting run.
type Config struct {
	// Name labels the session, e.g. the host the messages are captured on.
	Name string `mapstructure:"name"`

	// SIPFilter restricts which message types are counted: method names,
	// full status codes, or single status-class digits.
	SIPFilter []string `mapstructure:"sip_filter"`

	// HostFilter / HostExclude restrict counting by endpoint IP.
	HostFilter  []string `mapstructure:"host_filter"`
	HostExclude []string `mapstructure:"host_exclude"`

	// KnownServers / KnownPorts are role hints for direction resolution.
	// 5060 and 5061 are always known.
	KnownServers []string `mapstructure:"known_servers"`
	KnownPorts   []int    `mapstructure:"known_ports"`

	// DefaultProto applies when the message and its Via header name no
	// transport. Set to "" to reject such messages instead.
	DefaultProto string `mapstructure:"default_proto"`

	// CountClasses additionally counts the status-class bucket per response.
	CountClasses bool `mapstructure:"count_classes"`

	// TrackDialogs enables CSeq-based re-INVITE detection per Call-ID.
	TrackDialogs bool `mapstructure:"track_dialogs"`

	Source  SourceConfig  `mapstructure:"source"`
	Report  ReportConfig  `mapstructure:"report"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// SourceConfig selects and configures the message producer.
type SourceConfig struct {
	// Type is one of "pipe", "pcap" or "gen".
	Type string `mapstructure:"type"`
	// Options are producer-specific and decoded by the producer itself.
	Options map[string]any `mapstructure:"options"`
}

// ReportConfig controls the periodic report output.
type ReportConfig struct {
	// Depth is the link grouping depth, 0..5 (see link.Key.Truncate).
	Depth int `mapstructure:"depth"`
	// Top limits the report to the n busiest links; 0 shows all.
	Top int `mapstructure:"top"`
	// Interval between report renderings, e.g. "60s".
	Interval string `mapstructure:"interval"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string        `mapstructure:"level"`   // trace / debug / info / warn / error
	Pattern string        `mapstructure:"pattern"` // see log.Formatter
	Time    string        `mapstructure:"time"`    // timestamp layout
	File    LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures rotated file output.
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads the configuration file and applies defaults, environment
// overrides (SIPCOUNTER_ prefix, e.g. SIPCOUNTER_LOG_LEVEL) and validation.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("sipcounter")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_proto", "UDP")

	v.SetDefault("source.type", "pipe")

	v.SetDefault("report.depth", 4)
	v.SetDefault("report.top", 0)
	v.SetDefault("report.interval", "60s")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9091")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pattern", "%time [%level] %msg %field\n")
	v.SetDefault("log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "/var/log/sipcounter/sipcounter.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.compress", true)
}

// Validate checks field values and normalizes the protocol token.
func (cfg *Config) Validate() error {
	cfg.DefaultProto = strings.ToUpper(cfg.DefaultProto)
	switch cfg.DefaultProto {
	case "", "UDP", "TCP", "TLS":
	default:
		return fmt.Errorf("%w: default_proto %q (must be UDP/TCP/TLS or empty)",
			core.ErrConfigInvalid, cfg.DefaultProto)
	}

	if cfg.Report.Depth < 0 || cfg.Report.Depth > 5 {
		return fmt.Errorf("%w: report.depth %d (must be 0..5)", core.ErrConfigInvalid, cfg.Report.Depth)
	}
	if cfg.Report.Top < 0 {
		return fmt.Errorf("%w: report.top %d (must be >= 0)", core.ErrConfigInvalid, cfg.Report.Top)
	}
	if _, err := time.ParseDuration(cfg.Report.Interval); err != nil {
		return fmt.Errorf("%w: report.interval %q: %v", core.ErrConfigInvalid, cfg.Report.Interval, err)
	}

	switch cfg.Source.Type {
	case "pipe", "pcap", "gen":
	default:
		return fmt.Errorf("%w: source.type %q (must be pipe/pcap/gen)", core.ErrConfigInvalid, cfg.Source.Type)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("%w: log.level %q", core.ErrConfigInvalid, cfg.Log.Level)
	}

	for _, port := range cfg.KnownPorts {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%w: known_ports entry %d", core.ErrConfigInvalid, port)
		}
	}
	return nil
}

// IntervalDuration returns the parsed report interval. Validate must have passed.
func (r ReportConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(r.Interval)
	return d
}
