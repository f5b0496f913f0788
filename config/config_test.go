package config

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/xk6-locator/common"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestNewConfigDefaults(t *testing.T) {
	t.Parallel()

	c := NewConfig()
	require.NoError(t, c.Validate())

	opts := c.Options()
	assert.Equal(t, common.NewOptions(), opts)
	assert.False(t, c.Timeout.Valid)
	assert.True(t, c.Headless.Bool)
}

func TestConfigApply(t *testing.T) {
	t.Parallel()

	base := NewConfig()
	c := base.Apply(Config{
		Timeout:         NullDurationFrom(5 * time.Second),
		PollSchedule:    []time.Duration{time.Millisecond},
		TestIDAttribute: null.StringFrom("data-qa"),
		Headless:        null.BoolFrom(false),
	})

	assert.Equal(t, 5*time.Second, c.Timeout.Duration)
	assert.Equal(t, []time.Duration{time.Millisecond}, c.PollSchedule)
	assert.Equal(t, "data-qa", c.TestIDAttribute.String)
	assert.False(t, c.Headless.Bool)
	assert.Equal(t, base.NavigationTimeout, c.NavigationTimeout)
	assert.Equal(t, base.LogLevel, c.LogLevel)

	// invalid fields are ignored
	assert.Equal(t, c, c.Apply(Config{}))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"negative timeout", Config{Timeout: NullDurationFrom(-time.Second)}, "timeout must not be negative"},
		{"zero poll interval", Config{PollInterval: NullDurationFrom(0)}, "poll interval must be positive"},
		{"empty test id attribute", Config{TestIDAttribute: null.StringFrom("")}, "test id attribute"},
		{"log level", Config{LogLevel: null.StringFrom("loud")}, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewConfig().Apply(tt.cfg).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	t.Run("default path missing", func(t *testing.T) {
		t.Parallel()

		c, err := ReadFile(afero.NewMemMapFs(), "")
		require.NoError(t, err)
		assert.Equal(t, Config{}, c)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		t.Parallel()

		_, err := ReadFile(afero.NewMemMapFs(), "nope.yaml")
		assert.ErrorContains(t, err, `reading config file "nope.yaml"`)
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, DefaultFilename, []byte(`
timeout: 10s
pollSchedule: [0s, 20ms, 100ms]
testIdAttribute: data-qa
debug: true
wsURL: ws://127.0.0.1:9222/devtools/browser/abc
`), 0o644))

		c, err := ReadFile(fs, "")
		require.NoError(t, err)
		assert.Equal(t, NullDurationFrom(10*time.Second), c.Timeout)
		assert.False(t, c.NavigationTimeout.Valid)
		assert.Equal(t, []time.Duration{0, 20 * time.Millisecond, 100 * time.Millisecond}, c.PollSchedule)
		assert.Equal(t, null.StringFrom("data-qa"), c.TestIDAttribute)
		assert.Equal(t, null.BoolFrom(true), c.Debug)
		assert.False(t, c.Headless.Valid)
		assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", c.WSURL.String)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "bad.yaml", []byte("timeout: [\n"), 0o644))

		_, err := ReadFile(fs, "bad.yaml")
		assert.ErrorContains(t, err, "parsing config file")
	})
}

func TestReadEnv(t *testing.T) {
	t.Parallel()

	c, err := ReadEnv(env(map[string]string{
		"XK6_LOCATOR_TIMEOUT":           "3s",
		"XK6_LOCATOR_POLL_INTERVAL":     "250",
		"XK6_LOCATOR_POLL_SCHEDULE":     "0s,50ms",
		"XK6_LOCATOR_TEST_ID_ATTRIBUTE": "data-test",
		"XK6_LOCATOR_HEADLESS":          "false",
		"UNRELATED":                     "x",
	}))
	require.NoError(t, err)
	assert.Equal(t, NullDurationFrom(3*time.Second), c.Timeout)
	assert.Equal(t, NullDurationFrom(250*time.Millisecond), c.PollInterval)
	assert.Equal(t, []time.Duration{0, 50 * time.Millisecond}, c.PollSchedule)
	assert.Equal(t, "data-test", c.TestIDAttribute.String)
	assert.Equal(t, null.BoolFrom(false), c.Headless)
	assert.False(t, c.Debug.Valid)

	_, err = ReadEnv(env(map[string]string{"XK6_LOCATOR_TIMEOUT": "soon"}))
	assert.ErrorContains(t, err, "reading environment")
}

func TestFromFlags(t *testing.T) {
	t.Parallel()

	flags := FlagSet()
	require.NoError(t, flags.Parse([]string{
		"--timeout", "7s", "--poll-schedule", "0s,1ms", "-l", "debug", "--headless=false",
	}))

	c, err := FromFlags(flags)
	require.NoError(t, err)
	assert.Equal(t, NullDurationFrom(7*time.Second), c.Timeout)
	assert.Equal(t, []time.Duration{0, time.Millisecond}, c.PollSchedule)
	assert.Equal(t, null.StringFrom("debug"), c.LogLevel)
	assert.Equal(t, null.BoolFrom(false), c.Headless)
	assert.False(t, c.NavigationTimeout.Valid)
	assert.False(t, c.TestIDAttribute.Valid)
	assert.Empty(t, ConfigPath(flags))
}

func TestLoadPrecedence(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "locator.yaml", []byte(`
timeout: 10s
navigationTimeout: 20s
pollInterval: 50ms
testIdAttribute: from-file
`), 0o644))

	flags := FlagSet()
	require.NoError(t, flags.Parse([]string{"--config", "locator.yaml", "--timeout", "1s"}))

	c, err := Load(fs, ConfigPath(flags), env(map[string]string{
		"XK6_LOCATOR_TIMEOUT":           "2s",
		"XK6_LOCATOR_NAVIGATION_TIMEOUT": "4s",
	}), flags)
	require.NoError(t, err)

	assert.Equal(t, time.Second, c.Timeout.Duration, "flag over env")
	assert.Equal(t, 4*time.Second, c.NavigationTimeout.Duration, "env over file")
	assert.Equal(t, 50*time.Millisecond, c.PollInterval.Duration, "file over default")
	assert.Equal(t, "from-file", c.TestIDAttribute.String)
	assert.Equal(t, common.DefaultPollSchedule, c.PollSchedule, "default")

	_, err = Load(fs, "", env(map[string]string{"XK6_LOCATOR_POLL_INTERVAL": "0s"}), nil)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestConfigLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := NewConfig().Apply(Config{LogLevel: null.StringFrom("warning")})
	l, err := c.Logger(&buf)
	require.NoError(t, err)

	l.Infof("Config", "hidden")
	l.Warnf("Config", "shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNullDuration(t *testing.T) {
	t.Parallel()

	var d NullDuration
	require.NoError(t, d.UnmarshalText([]byte("1.5s")))
	assert.Equal(t, NullDurationFrom(1500*time.Millisecond), d)

	require.NoError(t, d.UnmarshalText([]byte("")))
	assert.False(t, d.Valid)

	require.NoError(t, json.Unmarshal([]byte(`"2m"`), &d))
	assert.Equal(t, 2*time.Minute, d.ValueOrZero())

	require.NoError(t, json.Unmarshal([]byte(`100`), &d))
	assert.Equal(t, 100*time.Millisecond, d.ValueOrZero())

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Zero(t, d.ValueOrZero())

	b, err := json.Marshal(NullDurationFrom(time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1s"`, string(b))

	b, err = json.Marshal(NullDuration{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(b))

	assert.Error(t, d.UnmarshalText([]byte("later")))
}
