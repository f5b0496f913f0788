package browser

import (
	"errors"

	"github.com/dop251/goja"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/xk6-locator/common"
)

// nativeSymbol keys the Go value behind a mapped object.
var nativeSymbol = goja.NewSymbol("locator.native")

// errNotLocator is returned when a script passes something other than a
// locator where one is expected.
var errNotLocator = errors.New("argument is not a locator")

// exportArg exports the value and returns it.
// It returns nil if the value is undefined or null.
func exportArg(gv goja.Value) any {
	if !gojaValueExists(gv) {
		return nil
	}
	return gv.Export()
}

// exportMap exports an event init object. Anything that is not an
// object exports as nil.
func exportMap(gv goja.Value) map[string]any {
	m, _ := exportArg(gv).(map[string]any)
	return m
}

// gojaValueExists returns true if a given value is not nil and exists
// (defined and not null) in the goja runtime.
func gojaValueExists(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

// unwrapLocator returns the locator a mapped locator object was built
// from.
func unwrapLocator(rt *goja.Runtime, v goja.Value) (*common.Locator, error) {
	if !gojaValueExists(v) {
		return nil, errNotLocator
	}
	native := v.ToObject(rt).GetSymbol(nativeSymbol)
	if native == nil {
		return nil, errNotLocator
	}
	l, ok := native.Export().(*common.Locator)
	if !ok {
		return nil, errNotLocator
	}
	return l, nil
}

func nullString(s string) null.String { return null.StringFrom(s) }

func nullInt(i int64) null.Int { return null.IntFrom(i) }
