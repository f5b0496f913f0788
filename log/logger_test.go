package log

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(t *testing.T, level logrus.Level, filter *regexp.Regexp) (*Logger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	lg := logrus.New()
	lg.SetOutput(&buf)
	lg.SetLevel(level)
	lg.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	return New(lg, false, filter), &buf
}

func TestLoggerCategoryFilter(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedLogger(t, logrus.DebugLevel, regexp.MustCompile(`^Locator:`))
	l.Debugf("Locator:Click", "sel:%q", "button")
	l.Debugf("Frame:waitForSelector", "sel:%q", "ignored")

	out := buf.String()
	assert.Contains(t, out, `category="Locator:Click"`)
	assert.Contains(t, out, `sel:\"button\"`)
	assert.NotContains(t, out, "ignored")
}

func TestLoggerLevel(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedLogger(t, logrus.InfoLevel, nil)
	l.Debugf("Progress", "hidden")
	l.Warnf("Progress", "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.False(t, l.DebugMode())

	require.NoError(t, l.SetLevel("debug"))
	assert.True(t, l.DebugMode())
	require.Error(t, l.SetLevel("loud"))
}

func TestLoggerNil(t *testing.T) {
	t.Parallel()

	var l *Logger
	assert.NotPanics(t, func() { l.Debugf("any", "msg %d", 1) })
	assert.NotPanics(t, func() { NewNullLogger().Errorf("any", "msg") })
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		l, err := NewFromConfig(&buf, "warn", "^Frame", false)
		require.NoError(t, err)
		l.Warnf("Frame:Navigated", "doc changed")
		l.Warnf("Locator:Click", "filtered")
		assert.Contains(t, buf.String(), "doc changed")
		assert.NotContains(t, buf.String(), "filtered")
	})
	t.Run("debug_raises_level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		l, err := NewFromConfig(&buf, "error", "", true)
		require.NoError(t, err)
		assert.True(t, l.DebugMode())
	})
	t.Run("err/filter", func(t *testing.T) {
		t.Parallel()

		_, err := NewFromConfig(&bytes.Buffer{}, "info", "(", false)
		require.Error(t, err)
	})
	t.Run("err/level", func(t *testing.T) {
		t.Parallel()

		_, err := NewFromConfig(&bytes.Buffer{}, "noisy", "", false)
		require.Error(t, err)
	})
}

func TestLoggerDebugOverride(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	lg := logrus.New()
	lg.SetOutput(&buf)
	lg.SetLevel(logrus.WarnLevel)
	lg.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	l := New(lg, true, nil)
	l.Debugf("Frame:waitForSelector", "first")
	l.Debugf("Frame:waitForSelector", "second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "level=info")
	assert.Contains(t, lines[0], `elapsed="0 ms"`)
	assert.Contains(t, lines[1], "msg=second")
}
