package config

import (
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"
)

// FlagSet returns the flags that override the configuration.
func FlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringP("config", "c", "", "`path` of the YAML configuration file (default "+DefaultFilename+")")
	flags.Duration("timeout", 0, "default timeout of element operations")
	flags.Duration("navigation-timeout", 0, "default timeout of navigation waits")
	flags.Duration("poll-interval", 0, "pause between selector polls")
	flags.DurationSlice("poll-schedule", nil, "pauses between actionability checks, the last one repeats")
	flags.String("test-id-attribute", "", "attribute matched by get-by-test-id selectors")
	flags.StringP("log-level", "l", "", "log level: trace, debug, info, warning or error")
	flags.String("log-category-filter", "", "regular expression of the log categories to print")
	flags.BoolP("debug", "d", false, "print debug output")
	flags.String("ws-url", "", "DevTools websocket `url` of a running browser")
	flags.Bool("headless", true, "run a launched browser without a window")
	return flags
}

// FromFlags reads the flags that were set on the command line.
func FromFlags(flags *pflag.FlagSet) (Config, error) {
	var (
		c   Config
		err error
	)
	if c.Timeout, err = getNullDuration(flags, "timeout"); err != nil {
		return c, err
	}
	if c.NavigationTimeout, err = getNullDuration(flags, "navigation-timeout"); err != nil {
		return c, err
	}
	if c.PollInterval, err = getNullDuration(flags, "poll-interval"); err != nil {
		return c, err
	}
	if flags.Changed("poll-schedule") {
		if c.PollSchedule, err = flags.GetDurationSlice("poll-schedule"); err != nil {
			return c, err
		}
	}
	if c.TestIDAttribute, err = getNullString(flags, "test-id-attribute"); err != nil {
		return c, err
	}
	if c.LogLevel, err = getNullString(flags, "log-level"); err != nil {
		return c, err
	}
	if c.LogCategoryFilter, err = getNullString(flags, "log-category-filter"); err != nil {
		return c, err
	}
	if c.Debug, err = getNullBool(flags, "debug"); err != nil {
		return c, err
	}
	if c.WSURL, err = getNullString(flags, "ws-url"); err != nil {
		return c, err
	}
	if c.Headless, err = getNullBool(flags, "headless"); err != nil {
		return c, err
	}
	return c, nil
}

// ConfigPath returns the value of the config flag, or "" when unset.
func ConfigPath(flags *pflag.FlagSet) string {
	path, err := flags.GetString("config")
	if err != nil {
		return ""
	}
	return path
}

func getNullBool(flags *pflag.FlagSet, key string) (null.Bool, error) {
	if flags.Lookup(key) == nil {
		return null.Bool{}, nil
	}
	v, err := flags.GetBool(key)
	if err != nil {
		return null.Bool{}, err
	}
	return null.NewBool(v, flags.Changed(key)), nil
}

func getNullDuration(flags *pflag.FlagSet, key string) (NullDuration, error) {
	if flags.Lookup(key) == nil {
		return NullDuration{}, nil
	}
	v, err := flags.GetDuration(key)
	if err != nil {
		return NullDuration{}, err
	}
	return NewNullDuration(v, flags.Changed(key)), nil
}

func getNullString(flags *pflag.FlagSet, key string) (null.String, error) {
	if flags.Lookup(key) == nil {
		return null.String{}, nil
	}
	v, err := flags.GetString(key)
	if err != nil {
		return null.String{}, err
	}
	return null.NewString(v, flags.Changed(key)), nil
}
