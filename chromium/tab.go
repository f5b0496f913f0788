package chromium

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/liuxd6825/xk6-locator/common"
	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/errext"
	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
	"github.com/liuxd6825/xk6-locator/log"
	"github.com/liuxd6825/xk6-locator/trace"
)

// ErrTabClosed is returned for commands sent to a closed tab.
var ErrTabClosed = errors.New("tab is closed")

var errSameDocument = errors.New("navigated within the document")

// NavigationError is a navigation the browser refused or failed to load.
type NavigationError struct {
	URL    string
	Reason string
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigating to %q: %s", e.URL, e.Reason)
}

// ExitCode implements the errext.HasExitCode interface.
func (e *NavigationError) ExitCode() exitcodes.ExitCode { return exitcodes.NavigationFailed }

// targetExecutor sends commands to the target of a chromedp tab context.
// The target is looked up on every call since it only exists once the tab
// is attached.
type targetExecutor struct {
	ctx context.Context
}

func (e *targetExecutor) Execute(ctx context.Context, method string, params, res any) error {
	if e.ctx.Err() != nil {
		return ErrTabClosed
	}
	c := chromedp.FromContext(e.ctx)
	if c == nil || c.Target == nil {
		return ErrTabClosed
	}
	return c.Target.Execute(ctx, method, params, res) //nolint:wrapcheck
}

// frameTreeSync asks the event loop to register an already loaded frame
// tree. done is closed once it is.
type frameTreeSync struct {
	tree *page.FrameTree
	done chan struct{}
}

// Tab is a browser tab. Its frames are tracked from the tab's protocol
// events; queries and actions on them go through the tab's Provider.
type Tab struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	exec   *targetExecutor

	provider   *Provider
	frames     *common.FrameManager
	navigation *common.NavigationDelegate
	logger     *log.Logger

	queueMu sync.Mutex
	queue   []any
	wake    chan struct{}

	// loading holds the frames that started loading and did not commit a
	// document yet. It is only touched by the event loop.
	loading map[cdp.FrameID]bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newTab(browserCtx context.Context, opts *common.Options, tracer *trace.Tracer, logger *log.Logger) (*Tab, error) {
	ctx, cancel := chromedp.NewContext(browserCtx)
	t := &Tab{
		ctx:     ctx,
		cancel:  cancel,
		exec:    &targetExecutor{ctx: ctx},
		logger:  logger,
		wake:    make(chan struct{}, 1),
		loading: make(map[cdp.FrameID]bool),
		closed:  make(chan struct{}),
	}
	// Listeners must be in place before the first run attaches the target.
	chromedp.ListenTarget(ctx, t.enqueue)

	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("attaching tab: %w", err)
	}
	t.id = string(chromedp.FromContext(ctx).Target.TargetID)

	t.provider = NewProvider(t.exec, logger)
	fm, err := common.NewFrameManager(ctx, t.id, t.provider, opts, tracer, logger)
	if err != nil {
		cancel()
		return nil, err //nolint:wrapcheck
	}
	t.frames = fm
	t.navigation = common.NewNavigationDelegate(
		&historyChannel{executor: t.exec}, &scriptChannel{executor: t.exec}, logger)

	go t.loop()

	tree, err := page.GetFrameTree().Do(cdp.WithExecutor(ctx, t.exec))
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("getting frame tree: %w", err)
	}
	done := make(chan struct{})
	t.enqueue(&frameTreeSync{tree: tree, done: done})
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ErrTabClosed
	}
	logger.Debugf("Tab:new", "tid:%s", t.id)

	return t, nil
}

// enqueue is the target listener. chromedp calls it synchronously, so it
// only queues ev for the event loop.
func (t *Tab) enqueue(ev any) {
	t.queueMu.Lock()
	t.queue = append(t.queue, ev)
	t.queueMu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Tab) loop() {
	for {
		select {
		case <-t.ctx.Done():
			t.shutdown()
			return
		case <-t.wake:
		}

		t.queueMu.Lock()
		evs := t.queue
		t.queue = nil
		t.queueMu.Unlock()

		for _, ev := range evs {
			t.handle(ev)
		}
	}
}

// handle applies a protocol event. Documents are reported to the provider
// before the frame manager so that no locator sees a document the provider
// does not know.
func (t *Tab) handle(ev any) {
	switch ev := ev.(type) {
	case *frameTreeSync:
		t.syncFrameTree(ev.tree, "")
		close(ev.done)

	case *page.EventFrameAttached:
		if _, err := t.frames.FrameAttached(string(ev.FrameID), string(ev.ParentFrameID)); err != nil {
			t.logger.Debugf("Tab:handle", "tid:%s attaching frame: %v", t.id, err)
		}
	case *page.EventFrameNavigated:
		if ev.Type == page.NavigationTypeBackForwardCacheRestore {
			t.logger.Debugf("Tab:handle", "tid:%s fid:%s restored from bfcache", t.id, ev.Frame.ID)
		}
		t.frameNavigated(ev.Frame)
	case *page.EventNavigatedWithinDocument:
		if err := t.frames.FrameNavigatedWithinDocument(string(ev.FrameID), ev.URL); err != nil {
			t.logger.Debugf("Tab:handle", "tid:%s %v", t.id, err)
		}
	case *page.EventFrameStartedLoading:
		t.loading[ev.FrameID] = true
		t.frames.FrameStartedLoading(string(ev.FrameID))
	case *page.EventFrameStoppedLoading:
		if t.loading[ev.FrameID] {
			delete(t.loading, ev.FrameID)
			t.frames.FrameAbortedNavigation(string(ev.FrameID), "navigation did not commit")
		}
		t.frames.FrameStoppedLoading(string(ev.FrameID))
	case *page.EventFrameDetached:
		if ev.Reason == page.FrameDetachedReasonSwap {
			// The frame moves to another process and keeps its id.
			return
		}
		delete(t.loading, ev.FrameID)
		t.provider.frameDetached(ev.FrameID)
		if err := t.frames.FrameDetached(string(ev.FrameID)); err != nil {
			t.logger.Debugf("Tab:handle", "tid:%s %v", t.id, err)
		}

	case *cdpruntime.EventExecutionContextCreated:
		t.provider.contextCreated(ev.Context)
	case *cdpruntime.EventExecutionContextDestroyed:
		t.provider.contextDestroyed(ev.ExecutionContextID)
	case *cdpruntime.EventExecutionContextsCleared:
		t.provider.contextsCleared()
	}
}

func (t *Tab) frameNavigated(f *cdp.Frame) {
	delete(t.loading, f.ID)

	if f.ParentID == "" {
		if mf := t.frames.MainFrame(); mf != nil && mf.ID() != string(f.ID) {
			t.provider.frameDetached(cdp.FrameID(mf.ID()))
		}
	}
	doc := dom.DocumentID(f.LoaderID)
	t.provider.frameNavigated(f.ID, doc)
	if _, err := t.frames.FrameNavigated(string(f.ID), string(f.ParentID), doc, f.URL+f.URLFragment); err != nil {
		t.logger.Debugf("Tab:frameNavigated", "tid:%s %v", t.id, err)
	}
}

func (t *Tab) syncFrameTree(tree *page.FrameTree, parentID cdp.FrameID) {
	if tree == nil || tree.Frame == nil {
		return
	}
	if parentID != "" {
		if _, err := t.frames.FrameAttached(string(tree.Frame.ID), string(parentID)); err != nil {
			t.logger.Debugf("Tab:syncFrameTree", "tid:%s %v", t.id, err)
			return
		}
	}
	t.frameNavigated(tree.Frame)
	for _, child := range tree.ChildFrames {
		t.syncFrameTree(child, tree.Frame.ID)
	}
}

func (t *Tab) shutdown() {
	t.closeOnce.Do(func() {
		if t.frames != nil {
			t.frames.Close()
		}
		close(t.closed)
	})
}

// ID returns the target id of the tab.
func (t *Tab) ID() string { return t.id }

// FrameManager returns the frame manager tracking the frames of the tab.
func (t *Tab) FrameManager() *common.FrameManager { return t.frames }

// MainFrame returns the top level frame of the tab.
func (t *Tab) MainFrame() *common.Frame { return t.frames.MainFrame() }

// Locator returns a locator for sel in the main frame.
func (t *Tab) Locator(sel string, opts *common.LocatorOptions) *common.Locator {
	return t.MainFrame().Locator(sel, opts)
}

// Navigate loads url in the main frame and waits for the new document to
// commit. A non-positive timeout uses the default navigation timeout. A
// navigation within the current document returns a nil event.
func (t *Tab) Navigate(ctx context.Context, url string, timeout time.Duration) (*common.FrameEvent, error) {
	mf := t.MainFrame()
	if mf == nil {
		return nil, ErrTabClosed
	}
	t.logger.Debugf("Tab:Navigate", "tid:%s url:%q", t.id, url)

	ev, err := mf.ExpectNavigation(ctx, timeout, func() error {
		_, loaderID, errorText, _, err := page.Navigate(url).Do(cdp.WithExecutor(ctx, t.exec))
		switch {
		case err != nil:
			return errext.WithExitCodeIfNone(&NavigationError{URL: url, Reason: err.Error()}, exitcodes.NavigationFailed)
		case errorText != "":
			return &NavigationError{URL: url, Reason: errorText}
		case loaderID == "":
			return errSameDocument
		}
		return nil
	})
	if errors.Is(err, errSameDocument) {
		return nil, nil
	}
	return ev, err //nolint:wrapcheck
}

// GoBack navigates to the previous history entry and reports whether it
// was attempted successfully.
func (t *Tab) GoBack(ctx context.Context) bool {
	return t.navigation.GoBack(ctx)
}

// GoForward navigates to the next history entry and reports whether it was
// attempted successfully.
func (t *Tab) GoForward(ctx context.Context) bool {
	return t.navigation.GoForward(ctx)
}

// IsClosed reports whether the tab is closed.
func (t *Tab) IsClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return t.ctx.Err() != nil
	}
}

// Close closes the tab and detaches its frames.
func (t *Tab) Close() error {
	if t.IsClosed() {
		return nil
	}
	err := chromedp.Cancel(t.ctx)
	t.cancel()
	t.shutdown()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing tab %s: %w", t.id, err)
	}
	return nil
}
