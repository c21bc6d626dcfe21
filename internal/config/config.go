// Package config loads the application configuration from defaults, an
// optional config file, a .env file, environment variables and flags.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/naka-gawa/repo-insights/internal/gateway"
)

// EnvPrefix is prepended to every environment variable read by viper.
const EnvPrefix = "REPO_INSIGHTS"

type GitHub struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
	// SecondaryRateLimitWait enables waiting out GitHub's secondary rate limit
	// for at most this long per request. Zero leaves it disabled.
	SecondaryRateLimitWait time.Duration `mapstructure:"secondary_rate_limit_wait"`
}

type Trends struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Window   time.Duration `mapstructure:"window"`
	Geo      string        `mapstructure:"geo"`
	Language string        `mapstructure:"language"`
}

type Server struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the validated, final configuration.
type Config struct {
	GitHub GitHub `mapstructure:"github"`
	Trends Trends `mapstructure:"trends"`
	Server Server `mapstructure:"server"`
	Log    Log    `mapstructure:"log"`
}

// Addr is the address the HTTP server listens on.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.token", "")
	v.SetDefault("github.base_url", "")
	v.SetDefault("github.secondary_rate_limit_wait", time.Duration(0))
	v.SetDefault("trends.base_url", gateway.DefaultTrendsBaseURL)
	v.SetDefault("trends.timeout", gateway.DefaultTrendsTimeout)
	v.SetDefault("trends.window", 30*24*time.Hour)
	v.SetDefault("trends.geo", "")
	v.SetDefault("trends.language", "en-US")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load resolves the configuration. configFile may be empty, in which case
// repo-insights.{yaml,json,toml} is looked up in the working directory and
// $HOME/.config/repo-insights. A missing config file is not an error.
// Flags in fs that were explicitly set take precedence over everything else.
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	// Only fills variables that are not already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("repo-insights")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/repo-insights")
	}
	if err := v.ReadInConfig(); err != nil {
		// An explicitly requested file has to exist.
		if configFile != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Bare names kept for compatibility with common deployments.
	if err := v.BindEnv("github.token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN", "TOKEN"); err != nil {
		return nil, errors.Wrap(err, "failed to bind token environment")
	}
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, errors.Wrap(err, "failed to bind port environment")
	}

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"token":      "github.token",
	"github-url": "github.base_url",
	"host":       "server.host",
	"port":       "server.port",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "failed to bind flag --%s", name)
		}
	}
	return nil
}

// Validate checks the values that cannot be corrected at runtime.
// A missing GitHub token is deliberately allowed: requests are rejected instead.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Trends.Timeout <= 0 {
		return errors.Errorf("trends.timeout must be positive, got %s", c.Trends.Timeout)
	}
	durations := map[string]time.Duration{
		"github.secondary_rate_limit_wait": c.GitHub.SecondaryRateLimitWait,
		"trends.timeout":                   c.Trends.Timeout,
		"trends.window":                    c.Trends.Window,
		"server.read_header_timeout":       c.Server.ReadHeaderTimeout,
		"server.shutdown_timeout":          c.Server.ShutdownTimeout,
	}
	for key, d := range durations {
		if d < 0 {
			return errors.Errorf("%s must not be negative, got %s", key, d)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
