package chromium

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"

	"github.com/liuxd6825/xk6-locator/common"
)

var (
	_ common.HistoryChannel = &historyChannel{}
	_ common.ScriptChannel  = &scriptChannel{}
)

// historyChannel moves a tab through its session history with the Page
// domain.
type historyChannel struct {
	executor cdp.Executor
}

func (h *historyChannel) GoBack(ctx context.Context) error {
	return h.goTo(ctx, -1)
}

func (h *historyChannel) GoForward(ctx context.Context) error {
	return h.goTo(ctx, 1)
}

func (h *historyChannel) goTo(ctx context.Context, delta int) error {
	ctx = cdp.WithExecutor(ctx, h.executor)

	current, entries, err := page.GetNavigationHistory().Do(ctx)
	if err != nil {
		return fmt.Errorf("getting navigation history: %w", err)
	}
	i := int(current) + delta
	if i < 0 || i >= len(entries) {
		return fmt.Errorf("no history entry at offset %d of %d", delta, len(entries))
	}
	if err := page.NavigateToHistoryEntry(entries[i].ID).Do(ctx); err != nil {
		return fmt.Errorf("navigating to history entry %q: %w", entries[i].URL, err)
	}
	return nil
}

// scriptChannel evaluates scripts in the main world of the main frame.
type scriptChannel struct {
	executor cdp.Executor
}

func (s *scriptChannel) EvaluateScript(ctx context.Context, script string) error {
	_, exc, err := cdpruntime.Evaluate(script).
		WithUserGesture(true).
		Do(cdp.WithExecutor(ctx, s.executor))
	if err != nil {
		return fmt.Errorf("evaluating %q: %w", script, err)
	}
	if exc != nil {
		return fmt.Errorf("evaluating %q: %w", script, exceptionError(exc))
	}
	return nil
}
