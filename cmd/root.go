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

// Package cmd implements the locator command line tool.
package cmd

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/xk6-locator/cmd/state"
	"github.com/liuxd6825/xk6-locator/config"
	"github.com/liuxd6825/xk6-locator/errext"
	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
	"github.com/liuxd6825/xk6-locator/log"
	"github.com/liuxd6825/xk6-locator/version"
)

// This is to keep all fields needed for the main/root command
type rootCommand struct {
	globalState *state.GlobalState
	cmd         *cobra.Command

	loggerStopped <-chan struct{}
}

func newRootCommand(gs *state.GlobalState) *rootCommand {
	c := &rootCommand{globalState: gs, loggerStopped: closedChan()}
	// the base command when called without any subcommands.
	rootCmd := &cobra.Command{
		Use:               "xk6-locator",
		Short:             "find and act on page elements through locators",
		Long:              "\n" + gs.Console.Banner(),
		Version:           version.Full(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}
	rootCmd.SetVersionTemplate("xk6-locator v{{.Version}}\n")
	rootCmd.PersistentFlags().AddFlagSet(rootCmdPersistentFlagSet(gs))
	rootCmd.SetArgs(gs.CmdArgs[1:])
	rootCmd.SetOut(gs.Console.Stdout)
	rootCmd.SetErr(gs.Console.Stderr)
	rootCmd.SetIn(gs.Console.Stdin)

	rootCmd.AddCommand(
		getCmdSelector(gs),
		getCmdRun(gs),
		getCmdBack(gs),
		getCmdForward(gs),
		getCmdVersion(gs),
	)

	c.cmd = rootCmd
	return c
}

func (c *rootCommand) persistentPreRunE(_ *cobra.Command, _ []string) error {
	if c.globalState.Flags.NoColor {
		c.globalState.Console.DisableColors()
	}
	if err := c.setupLoggers(); err != nil {
		return err
	}
	stdlog.SetOutput(c.globalState.Logger.Writer())
	c.globalState.Logger.Debugf("xk6-locator version: v%s", version.Full())
	return nil
}

func (c *rootCommand) execute() {
	ctx, cancel := context.WithCancel(c.globalState.Ctx)
	defer cancel()
	c.globalState.Ctx = ctx

	err := c.cmd.Execute()
	if err != nil {
		errText, fields := errext.Format(err)
		c.globalState.Logger.WithFields(fields).Error(errText)
	}

	// the file hook flushes once the context is done
	cancel()
	<-c.loggerStopped

	if err != nil {
		c.globalState.OSExit(int(errext.ExitCodeOf(err, exitcodes.GenericEngine)))
	}
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	gs := state.NewGlobalState(context.Background())

	newRootCommand(gs).execute()
}

func rootCmdPersistentFlagSet(gs *state.GlobalState) *pflag.FlagSet {
	flags := config.FlagSet()
	flags.BoolVarP(&gs.Flags.Quiet, "quiet", "q", gs.Flags.Quiet, "print only results and errors")
	flags.BoolVar(&gs.Flags.NoColor, "no-color", gs.Flags.NoColor, "disable colored output")
	flags.StringVar(&gs.Flags.LogOutput, "log-output", gs.Flags.LogOutput,
		"output of the logs: stderr, stdout, none or file=path[,level=lvl]")
	flags.StringVar(&gs.Flags.LogFormat, "log-format", gs.Flags.LogFormat, "log output format: text, json or raw")
	flags.Lookup("no-color").DefValue = "false"
	return flags
}

// RawFormatter it does nothing with the message just prints it
type RawFormatter struct{}

// Format renders a single log entry
func (f RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

func (c *rootCommand) setupLoggers() error {
	gs := c.globalState
	logger := gs.Logger
	if gs.Flags.Quiet {
		logger.SetLevel(logrus.WarnLevel)
	}

	switch line := gs.Flags.LogOutput; {
	case line == "" || line == "stderr":
		logger.SetOutput(gs.Console.Stderr)
	case line == "stdout":
		logger.SetOutput(gs.Console.Stdout)
	case line == "none":
		logger.SetOutput(io.Discard)
	case strings.HasPrefix(line, "file"):
		fallback := logrus.New()
		fallback.SetOutput(gs.Console.Stderr)
		done := make(chan struct{})
		hook, err := log.FileHookFromConfigLine(gs.Ctx, gs.FS, gs.Getwd, fallback, line, done)
		if err != nil {
			return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
		}
		logger.AddHook(hook)
		logger.SetOutput(io.Discard)
		c.loggerStopped = done
	default:
		return errext.WithExitCodeIfNone(
			fmt.Errorf("unsupported log output %q", line), exitcodes.InvalidConfig)
	}

	switch gs.Flags.LogFormat {
	case "raw":
		logger.SetFormatter(&RawFormatter{})
		logger.Debug("Logger format: RAW")
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.Debug("Logger format: JSON")
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   gs.Console.IsTTY && !gs.Flags.NoColor,
			DisableColors: gs.Flags.NoColor,
		})
		logger.Debug("Logger format: TEXT")
	default:
		return errext.WithExitCodeIfNone(
			fmt.Errorf("unsupported log format %q", gs.Flags.LogFormat), exitcodes.InvalidConfig)
	}
	return nil
}

// loadConfig consolidates the configuration for a command run with flags.
func loadConfig(gs *state.GlobalState, flags *pflag.FlagSet) (config.Config, error) {
	path := config.ConfigPath(flags)
	if path == "" {
		path = gs.Flags.ConfigFilePath
	}
	conf, err := config.Load(gs.FS, path, gs.LookupEnv, flags)
	if err != nil {
		return conf, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	if c := conf.Debug; c.Valid && c.Bool {
		gs.Logger.SetLevel(logrus.DebugLevel)
	}
	return conf, nil
}
