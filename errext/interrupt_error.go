package errext

import (
	"errors"

	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
)

// AbortSignal is the reason of a run stopped by SIGINT or SIGTERM.
const AbortSignal = "interrupted by signal"

// InterruptError stops a running script from outside, for example on a
// signal. Its exit code is ExternalAbort.
type InterruptError struct {
	Reason string
}

var _ HasExitCode = &InterruptError{}

func (i *InterruptError) Error() string { return i.Reason }

// ExitCode implements HasExitCode.
func (i *InterruptError) ExitCode() exitcodes.ExitCode { return exitcodes.ExternalAbort }

// IsInterruptError reports whether err wraps an *InterruptError.
func IsInterruptError(err error) bool {
	var ie *InterruptError
	return err != nil && errors.As(err, &ie)
}
