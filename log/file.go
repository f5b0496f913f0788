/*
 *
 * k6 - a next-generation load testing tool
 * Copyright (C) 2016 Load Impact
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

package log

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// fileHookBufferSize is how many lines may be queued before Fire blocks.
const fileHookBufferSize = 100

// fileHook writes log entries to a local file from a single goroutine.
type fileHook struct {
	path   string
	levels []logrus.Level

	fallback logrus.FieldLogger
	lines    chan []byte
	w        io.WriteCloser
	bw       *bufio.Writer
}

// FileHookFromConfigLine returns a hook writing to the file named by a
// `file=path[,level=lvl]` line. A relative path is resolved against getCwd.
// Once ctx is done the hook writes what is queued, closes the file and
// closes done. Write failures are reported to fallback.
func FileHookFromConfigLine(
	ctx context.Context, fs afero.Fs, getCwd func() (string, error),
	fallback logrus.FieldLogger, line string, done chan struct{},
) (logrus.Hook, error) {
	if key, _, _ := strings.Cut(line, "="); key != "file" {
		return nil, fmt.Errorf("logfile configuration should be in the form `file=path-to-local-file` but is `%s`", line)
	}
	h := &fileHook{levels: logrus.AllLevels, fallback: fallback}
	if err := h.configure(line); err != nil {
		return nil, err
	}
	if err := h.open(fs, getCwd); err != nil {
		return nil, err
	}

	h.lines = make(chan []byte, fileHookBufferSize)
	go h.run(ctx, done)

	return h, nil
}

func (h *fileHook) configure(line string) error {
	tokens, err := tokenize(line)
	if err != nil {
		return fmt.Errorf("error while parsing logfile configuration %w", err)
	}
	for _, t := range tokens {
		switch t.key {
		case "file":
			if t.value == "" {
				return errors.New("filepath must not be empty")
			}
			h.path = t.value
		case "level":
			if h.levels, err = parseLevels(t.value); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown logfile config key %s", t.key)
		}
	}
	return nil
}

func (h *fileHook) open(fs afero.Fs, getCwd func() (string, error)) error {
	path := h.path
	if !filepath.IsAbs(path) {
		cwd, err := getCwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}
	dir := filepath.Dir(path)
	if _, err := fs.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("provided directory '%s' does not exist", dir)
	}

	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open logfile %s: %w", path, err)
	}
	h.w, h.bw = f, bufio.NewWriter(f)
	return nil
}

func (h *fileHook) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case line := <-h.lines:
			h.write(line)
		case <-ctx.Done():
			h.close()
			return
		}
	}
}

func (h *fileHook) write(line []byte) {
	if _, err := h.bw.Write(line); err != nil {
		h.fallback.Errorf("failed to write a log message to a logfile: %v", err)
	}
}

// close writes the queued lines and closes the file.
func (h *fileHook) close() {
	for drained := false; !drained; {
		select {
		case line := <-h.lines:
			h.write(line)
		default:
			drained = true
		}
	}
	if err := h.bw.Flush(); err != nil {
		h.fallback.Errorf("failed to flush buffer: %v", err)
	}
	if err := h.w.Close(); err != nil {
		h.fallback.Errorf("failed to close logfile: %v", err)
	}
}

// Fire queues the formatted entry.
func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Bytes()
	if err != nil {
		return fmt.Errorf("failed to get a log entry bytes: %w", err)
	}
	h.lines <- line
	return nil
}

// Levels returns the levels written to the file.
func (h *fileHook) Levels() []logrus.Level {
	return h.levels
}

// parseLevels returns every level up to and including level.
func parseLevels(level string) ([]logrus.Level, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level %s", level)
	}
	n := sort.Search(len(logrus.AllLevels), func(i int) bool {
		return logrus.AllLevels[i] > lvl
	})
	return logrus.AllLevels[:n], nil
}
