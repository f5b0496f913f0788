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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dop251/goja"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/liuxd6825/xk6-locator/browser"
	"github.com/liuxd6825/xk6-locator/cmd/state"
	"github.com/liuxd6825/xk6-locator/errext"
	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
	"github.com/liuxd6825/xk6-locator/log"
)

// scriptException is a JS exception thrown by a script.
type scriptException struct {
	inner *goja.Exception
}

var (
	_ errext.Exception   = &scriptException{}
	_ errext.HasExitCode = &scriptException{}
	_ errext.HasHint     = &scriptException{}
)

func (s *scriptException) Error() string {
	// this calls String instead of error so that by default if it's printed to print the stacktrace
	return s.inner.String()
}

func (s *scriptException) StackTrace() string {
	return s.inner.String()
}

func (s *scriptException) Unwrap() error {
	return s.inner
}

func (s *scriptException) Hint() string {
	return "script exception"
}

func (s *scriptException) ExitCode() exitcodes.ExitCode {
	return exitcodes.ScriptException
}

// scriptError converts the errors goja returns into errors carrying an
// exit code.
func scriptError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if v, ok := interrupted.Value().(error); ok {
			return errext.WithExitCodeIfNone(v, exitcodes.ScriptAborted)
		}
		return errext.WithExitCodeIfNone(err, exitcodes.ScriptAborted)
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &scriptException{inner: exception}
	}
	return err
}

type cmdRun struct {
	gs *state.GlobalState
}

// readScript reads a script from the filesystem, or from stdin for "-".
func (c *cmdRun) readScript(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(c.gs.Console.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading script from stdin: %w", err)
		}
		return data, nil
	}
	data, err := afero.ReadFile(c.gs.FS, path)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("reading script: %w", err), exitcodes.InvalidConfig)
	}
	return data, nil
}

func (c *cmdRun) run(cmd *cobra.Command, args []string) (err error) {
	path := args[0]
	data, err := c.readScript(path)
	if err != nil {
		return err
	}
	isJS := strings.EqualFold(filepath.Ext(path), ".js") || path == "-"
	var sc *stepScript
	if !isJS {
		if sc, err = parseStepScript(data); err != nil {
			return err
		}
	}

	conf, err := loadConfig(c.gs, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := conf.WrapLogger(c.gs.Logger)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	ctx, cancel := context.WithCancelCause(c.gs.Ctx)
	defer cancel(nil)
	stopSignals := c.handleSignals(cancel)
	defer stopSignals()

	b, err := openBrowser(ctx, c.gs, conf, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	tab, err := b.NewTab()
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.BrowserConnect)
	}

	if isJS {
		return c.runJS(ctx, tab, path, string(data), logger)
	}
	r := &stepRunner{ctx: ctx, page: tab, console: c.gs.Console, quiet: c.gs.Flags.Quiet}
	if err := r.run(sc); err != nil {
		if cause := context.Cause(ctx); errext.IsInterruptError(cause) {
			return cause
		}
		return err
	}
	return nil
}

// runJS runs a script with the module registered as the global "locator".
// The script is interrupted when ctx is done.
func (c *cmdRun) runJS(ctx context.Context, page browser.Page, name, src string, logger *log.Logger) error {
	rt := goja.New()
	if err := browser.New(ctx, rt, page, logger).Register("locator"); err != nil {
		return err //nolint:wrapcheck
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			rt.Interrupt(context.Cause(ctx))
		case <-done:
		}
	}()

	if _, err := rt.RunScript(name, src); err != nil {
		return scriptError(err)
	}
	return nil
}

// handleSignals cancels the run with an interrupt error on the first
// SIGINT or SIGTERM and exits on the second.
func (c *cmdRun) handleSignals(cancel context.CancelCauseFunc) func() {
	sigC := make(chan os.Signal, 2)
	done := make(chan struct{})
	c.gs.SignalNotify(sigC, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigC:
			c.gs.Logger.WithField("sig", sig).Debug("Stopping run in response to signal...")
			cancel(&errext.InterruptError{Reason: errext.AbortSignal})
		case <-done:
			return
		}
		select {
		case sig := <-sigC:
			c.gs.Logger.WithField("sig", sig).Error("Aborting run in response to signal")
			c.gs.OSExit(int(exitcodes.ExternalAbort))
		case <-done:
		}
	}()

	return func() {
		close(done)
		c.gs.SignalStop(sigC)
	}
}

func getCmdRun(gs *state.GlobalState) *cobra.Command {
	c := &cmdRun{gs: gs}

	return &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script against a browser page",
		Long: `Run a script against a new tab of a launched or connected browser.

A .js file is run as JavaScript with the page available as locator.page. Any
other file is read as a YAML step script. Use "-" to read JavaScript from
stdin.`,
		Example: `
  # Run a step script in a new headless browser.
  xk6-locator run login.yaml

  # Run a JavaScript file in a browser that is already running.
  xk6-locator run --ws-url ws://127.0.0.1:9222/devtools/browser/<id> login.js`[1:],
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}
}
