package config

import (
	"os"

	"github.com/mcp2everything/PID-agent/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultPort           = "VIRTUAL"
	defaultBaudRate       = 115200
	defaultChannels       = 16
	defaultPollIntervalMS = 100
	defaultAdvisorTimeout = 60
	defaultTelemetryDB    = "data/pidagent.db"
)

type Config struct {
	// Device connection. Port "VIRTUAL" selects the simulated device.
	Port     string `mapstructure:"port"`
	BaudRate int    `mapstructure:"baudrate"`
	Channels int    `mapstructure:"channels"`

	// Ingestion loop poll interval in milliseconds.
	PollInterval int `mapstructure:"poll_interval"`

	// Simulation tuning. NoiseAmplitude is the std dev of the additive
	// sample noise; IntegralLimit caps the PID accumulator magnitude
	// when non-zero (default 0 keeps the stock unbounded accumulator).
	NoiseAmplitude float64 `mapstructure:"noise_amplitude"`
	IntegralLimit  float64 `mapstructure:"integral_limit"`

	// SQLite telemetry sink.
	Telemetry   bool   `mapstructure:"telemetry"`
	TelemetryDB string `mapstructure:"database"`

	// Advisor endpoint (OpenAI-compatible chat completions). The API
	// key is only read from PIDAGENT_ADVISOR_KEY.
	AdvisorURL     string `mapstructure:"advisor_url"`
	AdvisorModel   string `mapstructure:"advisor_model"`
	AdvisorTimeout int    `mapstructure:"advisor_timeout"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`
}

func Load() (*Config, error) {
	errFactory := errors.New()
	v := viper.New()

	v.SetDefault("port", defaultPort)
	v.SetDefault("baudrate", defaultBaudRate)
	v.SetDefault("channels", defaultChannels)
	v.SetDefault("poll_interval", defaultPollIntervalMS)
	v.SetDefault("noise_amplitude", 0.1)
	v.SetDefault("integral_limit", 0.0)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", defaultTelemetryDB)
	v.SetDefault("advisor_timeout", defaultAdvisorTimeout)
	v.SetDefault("log_level", DefaultLogLevel)

	flags := pflag.NewFlagSet("pidagentd", pflag.ContinueOnError)
	flags.String("port", defaultPort, "Serial port of the device, or VIRTUAL for the built-in simulator")
	flags.Int("baudrate", defaultBaudRate, "Serial baud rate")
	flags.Int("channels", defaultChannels, "Number of thermal channels")
	flags.Int("poll-interval", defaultPollIntervalMS, "Telemetry poll interval in milliseconds")
	flags.Bool("telemetry", false, "Enable SQLite telemetry recording")
	flags.String("database", defaultTelemetryDB, "Path to the telemetry database")
	flags.String("advisor-url", "", "Advisor endpoint URL")
	flags.String("advisor-model", "", "Advisor model name")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.String("log-file", "", "Optional rotating log file")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	bindings := map[string]string{
		"port":            "port",
		"baudrate":        "baudrate",
		"channels":        "channels",
		"poll_interval":   "poll-interval",
		"telemetry":       "telemetry",
		"database":        "database",
		"advisor_url":     "advisor-url",
		"advisor_model":   "advisor-model",
		"log_level":       "log-level",
		"log_file":        "log-file",
		"debug":           "debug",
		"verbose":         "verbose",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	// An explicit config path via PIDAGENT_CONFIG wins over the search
	// path; an empty value just skips the file.
	if path, ok := os.LookupEnv("PIDAGENT_CONFIG"); ok {
		if path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
			}
		}
	} else {
		v.SetConfigName("pidagent")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Channels <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.Channels)
	}
	if c.PollInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.PollInterval)
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Telemetry && c.TelemetryDB == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "telemetry enabled without a database path")
	}

	return nil
}

// AdvisorKey returns the advisor API key from the environment.
func (c *Config) AdvisorKey() string {
	return os.Getenv("PIDAGENT_ADVISOR_KEY")
}
