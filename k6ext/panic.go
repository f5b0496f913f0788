// Package k6ext holds the helpers shared by the scripting surface and the
// command line tool for turning engine errors into user facing ones.
package k6ext

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// Throw raises a JS exception in rt with the formatted message. A trailing
// error argument is reworded by UserFriendlyError first. Throw must only be
// called from Go code invoked by rt.
func Throw(rt *goja.Runtime, format string, a ...any) {
	if rt == nil {
		panic("k6ext: Throw called without a JS runtime")
	}
	if n := len(a); n > 0 {
		if err, ok := a[n-1].(error); ok {
			a[n-1] = UserFriendlyError(err)
		}
	}
	panic(rt.NewGoError(fmt.Errorf(format, a...)))
}

// UserFriendlyError rewords context errors in the chain of err: a passed
// deadline reads "timed out" and a cancellation reads "canceled". The
// original chain stays reachable through errors.Is. A nil err stays nil.
func UserFriendlyError(err error) error {
	if err == nil {
		return nil
	}
	return friendly{err}
}

type friendly struct{ error }

func (f friendly) Unwrap() error { return f.error }

func (f friendly) Error() string {
	msg := f.error.Error()
	if errors.Is(f.error, context.Canceled) {
		return "canceled"
	}
	if errors.Is(f.error, context.DeadlineExceeded) {
		return strings.ReplaceAll(msg, context.DeadlineExceeded.Error(), "timed out")
	}
	return msg
}
