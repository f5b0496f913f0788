package cmd

import (
	"context"

	"github.com/liuxd6825/xk6-locator/chromium"
	"github.com/liuxd6825/xk6-locator/cmd/state"
	"github.com/liuxd6825/xk6-locator/config"
	"github.com/liuxd6825/xk6-locator/errext"
	"github.com/liuxd6825/xk6-locator/log"
	"github.com/liuxd6825/xk6-locator/trace"
)

// openBrowser connects to the browser at the configured websocket URL, or
// launches one when none is set.
func openBrowser(ctx context.Context, gs *state.GlobalState, conf config.Config, logger *log.Logger) (*chromium.Browser, error) {
	tracer := trace.NewNoopTracer()
	if conf.WSURL.Valid && conf.WSURL.String != "" {
		b, err := chromium.Connect(ctx, conf.WSURL.String, conf.Options(), tracer, logger)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		return b, nil
	}

	lopts := chromium.NewLaunchOptions()
	lopts.Headless = conf.Headless.Bool
	if path, ok := gs.LookupEnv("XK6_LOCATOR_BROWSER_PATH"); ok {
		lopts.ExecutablePath = path
	}
	b, err := chromium.Launch(ctx, lopts, conf.Options(), tracer, logger)
	if err != nil {
		return nil, errext.WithHint(err, "set --ws-url to use a running browser")
	}
	return b, nil
}
