package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	viper "github.com/spf13/viper"
)

// ErrInvalid is wrapped by every configuration validation failure.
var ErrInvalid = errors.New("invalid configuration")

// RateLimitRule bounds concurrent and queued requests for matching paths.
// Exactly one of Paths or Suffixes may be set; a rule with neither is
// ignored when the admission chain is built.
type RateLimitRule struct {
	Name          string   `mapstructure:"name"`
	Paths         []string `mapstructure:"paths"`
	Suffixes      []string `mapstructure:"suffixes"`
	MaxConcurrent int      `mapstructure:"max_concurrent"`
	MaxQueued     int      `mapstructure:"max_queued"`
}

type Config struct {
	ListenHost string `mapstructure:"listen_host"`
	ListenPort int    `mapstructure:"listen_port"`

	// RootPath is the URL prefix the deployed bundle is served under.
	// Requests outside of it are redirected to it.
	RootPath  string `mapstructure:"root_path"`
	AppDriver string `mapstructure:"app_driver"`

	ArchivePath  string   `mapstructure:"archive_path"`
	StagingRoot  string   `mapstructure:"staging_root"`
	ExtraLibDirs []string `mapstructure:"extra_lib_dirs"`

	AdminHost     string        `mapstructure:"admin_host"`
	AdminPort     int           `mapstructure:"admin_port"`
	AdminPassword string        `mapstructure:"admin_password"`
	GracefulDelay time.Duration `mapstructure:"graceful_delay"`

	// Connection budgets for the two listeners. Zero means derive from
	// the processor count.
	IOConns     int `mapstructure:"io_conns"`
	WorkerConns int `mapstructure:"worker_conns"`

	LogLevel   string          `mapstructure:"log_level"`
	RateLimits []RateLimitRule `mapstructure:"rate_limits"`
}

func loadEnv() error {
	err := viper.BindEnv("archive_path", "BUNDLESERVE_ARCHIVE")
	if err != nil {
		return err
	}
	err = viper.BindEnv("staging_root", "BUNDLESERVE_STAGING")
	if err != nil {
		return err
	}
	err = viper.BindEnv("admin_password", "BUNDLESERVE_ADMIN_PASSWORD")
	if err != nil {
		return err
	}

	viper.SetDefault("listen_host", "127.0.0.1")
	viper.SetDefault("listen_port", 8080)
	viper.SetDefault("root_path", "/app/")
	viper.SetDefault("app_driver", "web")
	viper.SetDefault("staging_root", "$HOME/.bundleserve/staging")
	viper.SetDefault("admin_host", "127.0.0.1")
	viper.SetDefault("admin_port", 8081)
	viper.SetDefault("graceful_delay", 30*time.Second)
	viper.SetDefault("log_level", "info")
	return nil
}

// NewConfig loads bundleserve.yml from the config search path, applies
// environment overrides and returns the validated configuration.
func NewConfig(configPath string) (*Config, error) {
	if err := loadEnv(); err != nil {
		return nil, err
	}

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.bundleserve")
		viper.SetConfigType("yml")
		viper.SetConfigName("bundleserve")
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.Debug().Msgf("Loaded config: %+v", config)

	return &config, nil
}

// Validate enforces the invariants downstream components assume. It is
// called by NewConfig but exported so tests can construct configs directly.
func (c *Config) Validate() error {
	if c.ArchivePath == "" {
		return fmt.Errorf("%w: archive_path is required", ErrInvalid)
	}
	if c.StagingRoot == "" {
		return fmt.Errorf("%w: staging_root is required", ErrInvalid)
	}
	// Port 0 asks the kernel for an ephemeral port.
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("%w: listen_port %d out of range", ErrInvalid, c.ListenPort)
	}
	if c.AdminPort < 0 || c.AdminPort > 65535 {
		return fmt.Errorf("%w: admin_port %d out of range", ErrInvalid, c.AdminPort)
	}
	if c.ListenHost == c.AdminHost && c.ListenPort == c.AdminPort && c.ListenPort != 0 {
		return fmt.Errorf("%w: admin listener must not share the primary address", ErrInvalid)
	}
	if c.GracefulDelay < 0 {
		return fmt.Errorf("%w: graceful_delay must not be negative", ErrInvalid)
	}
	if c.IOConns < 0 || c.WorkerConns < 0 {
		return fmt.Errorf("%w: connection budgets must not be negative", ErrInvalid)
	}
	if !strings.HasPrefix(c.NormalizedRootPath(), "/") {
		return fmt.Errorf("%w: root_path must start with /", ErrInvalid)
	}
	for _, rule := range c.RateLimits {
		if len(rule.Paths) > 0 && len(rule.Suffixes) > 0 {
			return fmt.Errorf("%w: rate limit rule %q sets both paths and suffixes", ErrInvalid, rule.Name)
		}
		if rule.MaxConcurrent < 1 {
			return fmt.Errorf("%w: rate limit rule %q needs max_concurrent >= 1", ErrInvalid, rule.Name)
		}
		if rule.MaxQueued < 0 {
			return fmt.Errorf("%w: rate limit rule %q needs max_queued >= 0", ErrInvalid, rule.Name)
		}
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

func (c *Config) AdminAddr() string {
	return fmt.Sprintf("%s:%d", c.AdminHost, c.AdminPort)
}

// NormalizedRootPath always carries a trailing slash so redirects and
// prefix matching agree on the boundary.
func (c *Config) NormalizedRootPath() string {
	p := c.RootPath
	if p == "" {
		p = "/"
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// HasAdminPassword reports whether administrative shutdown is enabled.
// A blank password is treated the same as an absent one: disabled.
func (c *Config) HasAdminPassword() bool {
	return strings.TrimSpace(c.AdminPassword) != ""
}
