// Package console writes the command line tool's output to the terminal.
package console

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// OSFileW is a writer backed by a file descriptor, such as os.Stdout.
type OSFileW interface {
	io.Writer
	Fd() uintptr
}

type role int

const (
	roleHighlight role = iota
	roleSuccess
	roleFailure
	roleFaint
)

// Console serializes writes to stdout and stderr and colors output when
// both are terminals.
type Console struct {
	IsTTY  bool
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	colors map[role]*color.Color // nil when colors are off
	logger *logrus.Logger
}

// New returns a console over the given streams. Without colorize, ANSI
// escape sequences are stripped from everything written.
func New(stdout, stderr OSFileW, stdin io.Reader, colorize bool, termType string) *Console {
	mu := &sync.Mutex{}
	out := newTermWriter(stdout, mu, termType, colorize)
	errOut := newTermWriter(stderr, mu, termType, colorize)

	c := &Console{
		IsTTY:  out.tty && errOut.tty,
		Stdout: out,
		Stderr: errOut,
		Stdin:  stdin,
		logger: &logrus.Logger{
			Out:       errOut,
			Formatter: &logrus.TextFormatter{DisableColors: true},
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.InfoLevel,
		},
	}
	if c.IsTTY && colorize {
		c.colors = map[role]*color.Color{
			roleHighlight: forced(color.FgCyan),
			roleSuccess:   forced(color.FgGreen),
			roleFailure:   forced(color.FgRed),
			roleFaint:     forced(color.Faint),
		}
		c.logger.Formatter = &logrus.TextFormatter{ForceColors: true}
	}
	return c
}

func forced(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

func (c *Console) paint(r role, s string) string {
	if col := c.colors[r]; col != nil {
		return col.Sprint(s)
	}
	return s
}

// Highlight renders s in the accent color.
func (c *Console) Highlight(s string) string { return c.paint(roleHighlight, s) }

// Success renders s in the success color.
func (c *Console) Success(s string) string { return c.paint(roleSuccess, s) }

// Failure renders s in the failure color.
func (c *Console) Failure(s string) string { return c.paint(roleFailure, s) }

// Faint renders s dimmed.
func (c *Console) Faint(s string) string { return c.paint(roleFaint, s) }

// Banner returns the tool's banner.
func (c *Console) Banner() string {
	return c.Highlight(strings.Join([]string{
		` _            _            `,
		`| | ___   ___| |_ ___  _ __ `,
		`| |/ _ \ / __| __/ _ \| '__|`,
		`| | (_) | (__| || (_) | |   `,
		`|_|\___/ \___|\__\___/|_|   `,
	}, "\n"))
}

// DisableColors turns colors off and strips ANSI escape sequences from
// everything written afterwards.
func (c *Console) DisableColors() {
	c.colors = nil
	for _, w := range []io.Writer{c.Stdout, c.Stderr} {
		if tw, ok := w.(*termWriter); ok {
			tw.strip()
		}
	}
	c.logger.SetFormatter(&logrus.TextFormatter{DisableColors: true})
}

// GetLogger returns the logger writing to stderr.
func (c *Console) GetLogger() *logrus.Logger {
	return c.logger
}

// SetLogger replaces the logger used to report failed writes.
func (c *Console) SetLogger(l *logrus.Logger) {
	c.logger = l
}

// Print writes s to stdout.
func (c *Console) Print(s string) {
	c.Printf("%s", s)
}

// Printf writes the formatted string to stdout.
func (c *Console) Printf(format string, a ...any) {
	if _, err := fmt.Fprintf(c.Stdout, format, a...); err != nil {
		c.logger.WithError(err).Error("writing to stdout")
	}
}

// PrintYAML writes v as YAML to stdout.
func (c *Console) PrintYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not marshal YAML: %w", err)
	}
	c.Print(string(data))
	return nil
}

// termWriter serializes writes with the other stream of the console. On a
// terminal every newline also clears the rest of the line.
type termWriter struct {
	mu  *sync.Mutex
	w   io.Writer
	tty bool
}

func newTermWriter(out OSFileW, mu *sync.Mutex, termType string, colorize bool) *termWriter {
	fd := out.Fd()
	tw := &termWriter{
		mu:  mu,
		w:   out,
		tty: termType != "dumb" && (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)),
	}
	if !colorize {
		tw.w = colorable.NewNonColorable(out)
	}
	return tw
}

func (tw *termWriter) strip() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.w = colorable.NewNonColorable(tw.w)
}

var clearLine = []byte("\x1b[0K\n")

func (tw *termWriter) Write(p []byte) (int, error) {
	buf := p
	if tw.tty {
		buf = bytes.ReplaceAll(p, []byte{'\n'}, clearLine)
	}

	tw.mu.Lock()
	n, err := tw.w.Write(buf)
	tw.mu.Unlock()

	if err != nil {
		return min(n, len(p)), err
	}
	return len(p), nil
}
