// Package state holds what the commands share: the process environment,
// the file system and the console.
package state

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liuxd6825/xk6-locator/ui/console"
)

// GlobalState contains the GlobalOptions and accessors to the OS
// environment. Tests build it by hand with an in-memory file system and
// buffers for the output.
type GlobalState struct {
	Ctx context.Context

	FS         afero.Fs
	Getwd      func() (string, error)
	BinaryName string
	CmdArgs    []string
	Env        map[string]string

	DefaultFlags, Flags GlobalOptions

	Console *console.Console
	Logger  *logrus.Logger

	OSExit       func(int)
	SignalNotify func(chan<- os.Signal, ...os.Signal)
	SignalStop   func(chan<- os.Signal)
}

// NewGlobalState returns the state of the running process.
func NewGlobalState(ctx context.Context) *GlobalState {
	env := BuildEnvMap(os.Environ())
	defaultFlags := GetDefaultGlobalOptions()
	flags := consolidateGlobalFlags(defaultFlags, env)

	binary, err := os.Executable()
	if err != nil {
		binary = "xk6-locator"
	}
	c := console.New(os.Stdout, os.Stderr, os.Stdin, !flags.NoColor, env["TERM"])

	return &GlobalState{
		Ctx:          ctx,
		FS:           afero.NewOsFs(),
		Getwd:        os.Getwd,
		BinaryName:   binary,
		CmdArgs:      os.Args,
		Env:          env,
		DefaultFlags: defaultFlags,
		Flags:        flags,
		Console:      c,
		Logger:       c.GetLogger(),
		OSExit:       os.Exit,
		SignalNotify: signal.Notify,
		SignalStop:   signal.Stop,
	}
}

// LookupEnv reads the environment the state was built with.
func (gs *GlobalState) LookupEnv(key string) (string, bool) {
	v, ok := gs.Env[key]
	return v, ok
}

// BuildEnvMap returns a map from raw environment variable strings.
func BuildEnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	return env
}
