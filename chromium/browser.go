// Package chromium drives a Chromium browser over the DevTools protocol and
// serves the locator engine's queries, actions and history navigation from
// its tabs.
package chromium

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/liuxd6825/xk6-locator/common"
	"github.com/liuxd6825/xk6-locator/errext"
	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
	"github.com/liuxd6825/xk6-locator/log"
	"github.com/liuxd6825/xk6-locator/trace"
)

// DefaultLaunchTimeout bounds how long a launched browser may take to
// report its DevTools endpoint.
const DefaultLaunchTimeout = 30 * time.Second

// ErrBrowserClosed is returned by operations on a closed browser.
var ErrBrowserClosed = errors.New("browser is closed")

// LaunchOptions configure how a browser is started or connected to.
type LaunchOptions struct {
	Headless          bool
	Devtools          bool
	ExecutablePath    string
	Args              []string
	IgnoreDefaultArgs []string
	Env               []string
	Timeout           time.Duration
}

// NewLaunchOptions returns the defaults: a headless browser found on the
// PATH.
func NewLaunchOptions() *LaunchOptions {
	return &LaunchOptions{
		Headless: true,
		Timeout:  DefaultLaunchTimeout,
	}
}

// Browser is a launched or connected browser whose tabs the locator engine
// works on.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	remote      bool

	opts   *common.Options
	tracer *trace.Tracer
	logger *log.Logger

	mu     sync.Mutex
	tabs   []*Tab
	closed bool
}

// Launch starts a new browser process. Its lifetime is bound to ctx.
func Launch(
	ctx context.Context, lopts *LaunchOptions, opts *common.Options, tracer *trace.Tracer, logger *log.Logger,
) (*Browser, error) {
	if lopts == nil {
		lopts = NewLaunchOptions()
	}
	allocOpts, err := allocatorOptions(prepareFlags(lopts))
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	// chromedp looks the browser up on its own without an explicit path
	path := lopts.ExecutablePath
	if path != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(path))
	}
	if len(lopts.Env) > 0 {
		allocOpts = append(allocOpts, chromedp.Env(lopts.Env...))
	}
	timeout := lopts.Timeout
	if timeout <= 0 {
		timeout = DefaultLaunchTimeout
	}
	allocOpts = append(allocOpts, chromedp.WSURLReadTimeout(timeout))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	b, err := newBrowser(allocCtx, allocCancel, opts, tracer, logger)
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	b.logger.Debugf("Browser:Launch", "path:%q headless:%t", path, lopts.Headless)

	return b, nil
}

// Connect attaches to a running browser listening on the DevTools
// websocket wsURL.
func Connect(
	ctx context.Context, wsURL string, opts *common.Options, tracer *trace.Tracer, logger *log.Logger,
) (*Browser, error) {
	if wsURL == "" {
		return nil, errors.New("connecting to browser: websocket URL is required")
	}
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, wsURL)
	b, err := newBrowser(allocCtx, allocCancel, opts, tracer, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to browser at %q: %w", wsURL, err)
	}
	b.remote = true
	b.logger.Debugf("Browser:Connect", "wsURL:%q", wsURL)

	return b, nil
}

func newBrowser(
	allocCtx context.Context, allocCancel context.CancelFunc,
	opts *common.Options, tracer *trace.Tracer, logger *log.Logger,
) (*Browser, error) {
	if opts == nil {
		opts = common.NewOptions()
	}
	if tracer == nil {
		tracer = trace.NewNoopTracer()
	}
	if logger == nil {
		logger = log.NewNullLogger()
	}

	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Infof("chromedp", format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Errorf("chromedp", format, args...)
		}),
		chromedp.WithDebugf(func(format string, args ...any) {
			logger.Tracef("chromedp", format, args...)
		}),
	)
	// The first run starts the browser and attaches its initial tab.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, errext.WithExitCodeIfNone(err, exitcodes.BrowserConnect)
	}

	return &Browser{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        opts,
		tracer:      tracer,
		logger:      logger,
	}, nil
}

// NewTab opens a blank tab and waits until its main frame is known.
func (b *Browser) NewTab() (*Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrowserClosed
	}
	t, err := newTab(b.ctx, b.opts, b.tracer, b.logger)
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	b.tabs = append(b.tabs, t)

	return t, nil
}

// History returns a navigation delegate over the page the browser was
// attached to when it was launched or connected to. For a connected
// browser that is one of the tabs already open in it.
func (b *Browser) History() *common.NavigationDelegate {
	exec := &targetExecutor{ctx: b.ctx}
	return common.NewNavigationDelegate(&historyChannel{executor: exec}, &scriptChannel{executor: exec}, b.logger)
}

// Tabs returns the tabs opened with NewTab that are still open.
func (b *Browser) Tabs() []*Tab {
	b.mu.Lock()
	defer b.mu.Unlock()

	tabs := make([]*Tab, 0, len(b.tabs))
	for _, t := range b.tabs {
		if !t.IsClosed() {
			tabs = append(tabs, t)
		}
	}
	return tabs
}

// Close closes every tab and the browser. A launched browser process is
// stopped; a connected one is only disconnected from.
func (b *Browser) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	tabs := b.tabs
	b.tabs = nil
	b.mu.Unlock()

	var errs []error
	for _, t := range tabs {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	// Cancel on the initial tab closes the whole browser, which only a
	// launched browser should do.
	if !b.remote {
		if err := chromedp.Cancel(b.ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("closing browser: %w", err))
		}
	}
	b.cancel()
	b.allocCancel()
	b.logger.Debugf("Browser:Close", "tabs:%d", len(tabs))

	return errors.Join(errs...)
}
