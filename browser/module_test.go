package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/xk6-locator/common"
	"github.com/liuxd6825/xk6-locator/dom/memdom"
	"github.com/liuxd6825/xk6-locator/version"
)

const testURL = "https://example.com/"

// testPage is a page over a memdom document.
type testPage struct {
	dom *memdom.Page
	fm  *common.FrameManager
	nav *common.NavigationDelegate
}

func (p *testPage) MainFrame() *common.Frame           { return p.fm.MainFrame() }
func (p *testPage) GoBack(ctx context.Context) bool    { return p.nav.GoBack(ctx) }
func (p *testPage) GoForward(ctx context.Context) bool { return p.nav.GoForward(ctx) }

// testHistory can only go back.
type testHistory struct{ back bool }

func (h testHistory) GoBack(context.Context) error {
	if !h.back {
		return errors.New("no entry")
	}
	return nil
}

func (testHistory) GoForward(context.Context) error { return errors.New("no entry") }

type failingScript struct{}

func (failingScript) EvaluateScript(context.Context, string) error { return errors.New("detached") }

func newTestPage(t *testing.T, root *memdom.Node) *testPage {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	opts := common.NewOptions()
	opts.Timeout = time.Second
	opts.PollInterval = 5 * time.Millisecond
	opts.PollSchedule = []time.Duration{0, 5 * time.Millisecond}

	page := memdom.NewPage()
	fm, err := common.NewFrameManager(ctx, "tab-1", page, opts, nil, nil)
	require.NoError(t, err)
	t.Cleanup(fm.Close)

	doc := page.Load("main", testURL, root)
	_, err = fm.FrameNavigated("main", "", doc.ID, testURL)
	require.NoError(t, err)

	return &testPage{
		dom: page,
		fm:  fm,
		nav: common.NewNavigationDelegate(testHistory{back: true}, failingScript{}, nil),
	}
}

// newTestRuntime registers the module as "locator" over p.
func newTestRuntime(t *testing.T, p Page) *goja.Runtime {
	t.Helper()

	rt := goja.New()
	require.NoError(t, New(context.Background(), rt, p, nil).Register("locator"))
	return rt
}

func TestModuleRegister(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t, newTestPage(t, memdom.E("html", memdom.E("body"))))

	v, err := rt.RunString(`locator.version`)
	require.NoError(t, err)
	assert.Equal(t, version.Full(), v.String())

	for _, fn := range []string{"locator", "getByRole", "getByTestId", "$", "$$", "goBack", "goForward", "waitForSelector"} {
		v, err := rt.RunString(`typeof locator.page["` + fn + `"]`)
		require.NoError(t, err)
		assert.Equal(t, "function", v.String(), fn)
	}

	// console writes to the logger and returns undefined
	v, err = rt.RunString(`console.log("hello", 1)`)
	require.NoError(t, err)
	assert.True(t, goja.IsUndefined(v))
}

func TestModuleHistory(t *testing.T) {
	t.Parallel()

	p := newTestPage(t, memdom.E("html", memdom.E("body")))
	rt := newTestRuntime(t, p)

	v, err := rt.RunString(`locator.page.goBack()`)
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())

	// both channels fail: false, never an exception
	v, err = rt.RunString(`locator.page.goForward()`)
	require.NoError(t, err)
	assert.False(t, v.ToBoolean())
}

func TestModulePageWithoutNavigator(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t, newTestPage(t, memdom.E("html", memdom.E("body"))))

	v, err := rt.RunString(`typeof locator.page.goto`)
	require.NoError(t, err)
	assert.Equal(t, "undefined", v.String())

	v, err = rt.RunString(`locator.page.url()`)
	require.NoError(t, err)
	assert.Equal(t, testURL, v.String())
}
