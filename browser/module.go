// Package browser exposes the locator engine to JS scripts run by goja.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/liuxd6825/xk6-locator/common"
	"github.com/liuxd6825/xk6-locator/log"
	"github.com/liuxd6825/xk6-locator/version"
)

// Page is the tab a script drives.
type Page interface {
	MainFrame() *common.Frame
	GoBack(ctx context.Context) bool
	GoForward(ctx context.Context) bool
}

// ModuleInstance represents an instance of the JS module bound to one
// runtime and one page.
type ModuleInstance struct {
	vu     moduleVU
	page   Page
	logger *log.Logger
}

// New returns a module instance for the page. Blocking calls made from the
// script are bound to ctx.
func New(ctx context.Context, rt *goja.Runtime, page Page, logger *log.Logger) *ModuleInstance {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	rt.SetFieldNameMapper(goja.TagFieldNameMapper("js", true))

	return &ModuleInstance{
		vu:     moduleVU{rt: rt, ctx: ctx},
		page:   page,
		logger: logger,
	}
}

// Exports returns the object scripts see under the registered name.
func (mi *ModuleInstance) Exports() *goja.Object {
	return mapping{
		"page":    mapPage(mi.vu, mi.page),
		"version": version.Full(),
	}.object(mi.vu.rt, nil)
}

// Register makes the module exports available as a global and installs a
// console writing to the logger.
func (mi *ModuleInstance) Register(name string) error {
	rt := mi.vu.rt
	if err := rt.Set(name, mi.Exports()); err != nil {
		return fmt.Errorf("registering %s: %w", name, err)
	}
	console := mapping{
		"debug": mi.console(mi.logger.Debugf),
		"error": mi.console(mi.logger.Errorf),
		"info":  mi.console(mi.logger.Infof),
		"log":   mi.console(mi.logger.Infof),
		"warn":  mi.console(mi.logger.Warnf),
	}.object(rt, nil)
	if err := rt.Set("console", console); err != nil {
		return fmt.Errorf("registering console: %w", err)
	}
	return nil
}

func (mi *ModuleInstance) console(logf func(category, msg string, args ...any)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			parts = append(parts, a.String())
		}
		logf("console", "%s", strings.Join(parts, " "))
		return goja.Undefined()
	}
}
