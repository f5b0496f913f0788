// Package config consolidates the settings of the locator engine and its
// command line tool from defaults, a YAML file, the environment and flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/xk6-locator/common"
	"github.com/liuxd6825/xk6-locator/log"
)

// DefaultFilename is the configuration file looked up when none is given.
const DefaultFilename = "xk6-locator.yaml"

// Config holds every setting. Unset fields are not Valid and leave lower
// precedence values alone when applied.
type Config struct {
	Timeout           NullDuration    `json:"timeout" envconfig:"XK6_LOCATOR_TIMEOUT"`
	NavigationTimeout NullDuration    `json:"navigationTimeout" envconfig:"XK6_LOCATOR_NAVIGATION_TIMEOUT"`
	PollInterval      NullDuration    `json:"pollInterval" envconfig:"XK6_LOCATOR_POLL_INTERVAL"`
	PollSchedule      []time.Duration `json:"pollSchedule" envconfig:"XK6_LOCATOR_POLL_SCHEDULE"`
	TestIDAttribute   null.String     `json:"testIdAttribute" envconfig:"XK6_LOCATOR_TEST_ID_ATTRIBUTE"`

	LogLevel          null.String `json:"logLevel" envconfig:"XK6_LOCATOR_LOG_LEVEL"`
	LogCategoryFilter null.String `json:"logCategoryFilter" envconfig:"XK6_LOCATOR_LOG_CATEGORY_FILTER"`
	Debug             null.Bool   `json:"debug" envconfig:"XK6_LOCATOR_DEBUG"`

	WSURL    null.String `json:"wsURL" envconfig:"XK6_LOCATOR_WS_URL"`
	Headless null.Bool   `json:"headless" envconfig:"XK6_LOCATOR_HEADLESS"`
}

// NewConfig returns the defaults. None of them is Valid, so any other
// source overrides them.
func NewConfig() Config {
	return Config{
		Timeout:           NewNullDuration(common.DefaultTimeout, false),
		NavigationTimeout: NewNullDuration(common.DefaultNavigationTimeout, false),
		PollInterval:      NewNullDuration(common.DefaultPollInterval, false),
		PollSchedule:      append([]time.Duration(nil), common.DefaultPollSchedule...),
		TestIDAttribute:   null.NewString(common.DefaultTestIDAttribute, false),
		LogLevel:          null.NewString(logrus.InfoLevel.String(), false),
		Headless:          null.NewBool(true, false),
	}
}

// Apply returns c with every Valid field of cfg applied on top.
func (c Config) Apply(cfg Config) Config {
	if cfg.Timeout.Valid {
		c.Timeout = cfg.Timeout
	}
	if cfg.NavigationTimeout.Valid {
		c.NavigationTimeout = cfg.NavigationTimeout
	}
	if cfg.PollInterval.Valid {
		c.PollInterval = cfg.PollInterval
	}
	if len(cfg.PollSchedule) > 0 {
		c.PollSchedule = cfg.PollSchedule
	}
	if cfg.TestIDAttribute.Valid {
		c.TestIDAttribute = cfg.TestIDAttribute
	}
	if cfg.LogLevel.Valid {
		c.LogLevel = cfg.LogLevel
	}
	if cfg.LogCategoryFilter.Valid {
		c.LogCategoryFilter = cfg.LogCategoryFilter
	}
	if cfg.Debug.Valid {
		c.Debug = cfg.Debug
	}
	if cfg.WSURL.Valid {
		c.WSURL = cfg.WSURL
	}
	if cfg.Headless.Valid {
		c.Headless = cfg.Headless
	}
	return c
}

// Validate reports settings the engine cannot work with.
func (c Config) Validate() error {
	if err := c.Options().Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.LogLevel.Valid {
		if _, err := logrus.ParseLevel(c.LogLevel.String); err != nil {
			return fmt.Errorf("invalid configuration: log level: %w", err)
		}
	}
	return nil
}

// Options builds the engine options. The result is not shared with c.
func (c Config) Options() *common.Options {
	return &common.Options{
		TestIDAttribute:   c.TestIDAttribute.String,
		Timeout:           c.Timeout.Duration,
		NavigationTimeout: c.NavigationTimeout.Duration,
		PollInterval:      c.PollInterval.Duration,
		PollSchedule:      append([]time.Duration(nil), c.PollSchedule...),
	}
}

// Logger returns a logger writing to out at the configured level.
func (c Config) Logger(out io.Writer) (*log.Logger, error) {
	return log.NewFromConfig(out, c.LogLevel.String, c.LogCategoryFilter.String, c.Debug.Bool)
}

// WrapLogger returns a category logger writing through lg at the
// configured level.
func (c Config) WrapLogger(lg *logrus.Logger) (*log.Logger, error) {
	return log.Wrap(lg, c.LogLevel.String, c.LogCategoryFilter.String, c.Debug.Bool)
}

// fileConfig is the YAML shape of Config.
type fileConfig struct {
	Timeout           *time.Duration  `yaml:"timeout"`
	NavigationTimeout *time.Duration  `yaml:"navigationTimeout"`
	PollInterval      *time.Duration  `yaml:"pollInterval"`
	PollSchedule      []time.Duration `yaml:"pollSchedule"`
	TestIDAttribute   *string         `yaml:"testIdAttribute"`
	LogLevel          *string         `yaml:"logLevel"`
	LogCategoryFilter *string         `yaml:"logCategoryFilter"`
	Debug             *bool           `yaml:"debug"`
	WSURL             *string         `yaml:"wsURL"`
	Headless          *bool           `yaml:"headless"`
}

func (fc fileConfig) config() Config {
	var c Config
	if fc.Timeout != nil {
		c.Timeout = NullDurationFrom(*fc.Timeout)
	}
	if fc.NavigationTimeout != nil {
		c.NavigationTimeout = NullDurationFrom(*fc.NavigationTimeout)
	}
	if fc.PollInterval != nil {
		c.PollInterval = NullDurationFrom(*fc.PollInterval)
	}
	c.PollSchedule = fc.PollSchedule
	c.TestIDAttribute = null.StringFromPtr(fc.TestIDAttribute)
	c.LogLevel = null.StringFromPtr(fc.LogLevel)
	c.LogCategoryFilter = null.StringFromPtr(fc.LogCategoryFilter)
	c.Debug = null.BoolFromPtr(fc.Debug)
	c.WSURL = null.StringFromPtr(fc.WSURL)
	c.Headless = null.BoolFromPtr(fc.Headless)
	return c
}

// ReadFile reads the YAML configuration at path from fs. A missing file at
// the default path is not an error.
func ReadFile(fs afero.Fs, path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFilename
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file %q: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return fc.config(), nil
}

// ReadEnv reads the XK6_LOCATOR_* variables through lookup.
func ReadEnv(lookup func(string) (string, bool)) (Config, error) {
	var c Config
	if err := envconfig.Process("", &c, lookup); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}
	return c, nil
}

// Load consolidates the configuration. Sources are applied from the lowest
// precedence: defaults, the file at path, the environment and flags. A nil
// flag set is skipped.
func Load(fs afero.Fs, path string, lookup func(string) (string, bool), flags *pflag.FlagSet) (Config, error) {
	c := NewConfig()

	fileConf, err := ReadFile(fs, path)
	if err != nil {
		return Config{}, err
	}
	c = c.Apply(fileConf)

	envConf, err := ReadEnv(lookup)
	if err != nil {
		return Config{}, err
	}
	c = c.Apply(envConf)

	if flags != nil {
		flagConf, err := FromFlags(flags)
		if err != nil {
			return Config{}, err
		}
		c = c.Apply(flagConf)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
