/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package log provides the category logger used across the locator engine
// and the logrus hooks the command line tool installs.
package log

import (
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger writes log lines tagged with a category, such as "Locator:Click",
// through logrus. Each line carries the time elapsed since the previous one.
type Logger struct {
	Log *logrus.Logger

	// debug logs every level as if the logger was at debug level
	debug  bool
	filter *regexp.Regexp

	mu   sync.Mutex
	last time.Time
}

// NewNullLogger returns a logger that discards everything.
func NewNullLogger() *Logger {
	lg := logrus.New()
	lg.SetOutput(io.Discard)

	return New(lg, false, nil)
}

// New returns a logger writing through lg. A nil filter logs every
// category.
func New(lg *logrus.Logger, debug bool, filter *regexp.Regexp) *Logger {
	return &Logger{Log: lg, debug: debug, filter: filter}
}

// NewFromConfig creates a logger writing to out at the given level. An empty
// filter logs every category.
func NewFromConfig(out io.Writer, level, filter string, debug bool) (*Logger, error) {
	lg := logrus.New()
	lg.SetOutput(out)

	return Wrap(lg, level, filter, debug)
}

// Wrap returns a category logger writing through lg. A non-empty level is
// applied to lg itself.
func Wrap(lg *logrus.Logger, level, filter string, debug bool) (*Logger, error) {
	var re *regexp.Regexp
	if filter != "" {
		var err error
		if re, err = regexp.Compile(filter); err != nil {
			return nil, fmt.Errorf("compiling log category filter %q: %w", filter, err)
		}
	}
	l := New(lg, debug, re)
	if level != "" {
		if err := l.SetLevel(level); err != nil {
			return nil, err
		}
	}
	if debug && !l.DebugMode() {
		lg.SetLevel(logrus.DebugLevel)
	}

	return l, nil
}

func (l *Logger) Tracef(category string, msg string, args ...any) {
	l.Logf(logrus.TraceLevel, category, msg, args...)
}

func (l *Logger) Debugf(category string, msg string, args ...any) {
	l.Logf(logrus.DebugLevel, category, msg, args...)
}

func (l *Logger) Infof(category string, msg string, args ...any) {
	l.Logf(logrus.InfoLevel, category, msg, args...)
}

func (l *Logger) Warnf(category string, msg string, args ...any) {
	l.Logf(logrus.WarnLevel, category, msg, args...)
}

func (l *Logger) Errorf(category string, msg string, args ...any) {
	l.Logf(logrus.ErrorLevel, category, msg, args...)
}

// Logf logs msg under category when level is enabled and the category
// passes the filter. Calls on a nil logger do nothing.
func (l *Logger) Logf(level logrus.Level, category string, msg string, args ...any) {
	if l == nil || l.Log == nil {
		return
	}
	enabled := l.Log.IsLevelEnabled(level)
	if !enabled && !l.debug {
		return
	}
	if l.filter != nil && !l.filter.MatchString(category) {
		return
	}

	l.mu.Lock()
	now := time.Now()
	var elapsed time.Duration
	if !l.last.IsZero() {
		elapsed = now.Sub(l.last)
	}
	l.last = now
	l.mu.Unlock()

	entry := l.Log.WithFields(logrus.Fields{
		"category": category,
		"elapsed":  fmt.Sprintf("%d ms", elapsed.Milliseconds()),
	})
	if !enabled {
		// only reachable in debug mode
		entry.Printf(msg, args...)
		return
	}
	entry.Logf(level, msg, args...)
}

// SetLevel sets the level of the underlying logrus logger by name.
func (l *Logger) SetLevel(level string) error {
	pl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("setting log level: %w", err)
	}
	l.Log.SetLevel(pl)
	return nil
}

// DebugMode reports whether debug lines are written.
func (l *Logger) DebugMode() bool {
	return l.Log.IsLevelEnabled(logrus.DebugLevel)
}
