package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/xk6-locator/common"
	"github.com/liuxd6825/xk6-locator/dom/memdom"
	"github.com/liuxd6825/xk6-locator/errext"
	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
	"github.com/liuxd6825/xk6-locator/ui/console"
)

// testPage serves memdom documents by URL and keeps a plain history list.
type testPage struct {
	t     *testing.T
	dom   *memdom.Page
	fm    *common.FrameManager
	sites map[string]*memdom.Node

	history []string
	current int
}

func newTestPage(t *testing.T, sites map[string]*memdom.Node) *testPage {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	opts := common.NewOptions()
	opts.Timeout = 500 * time.Millisecond
	opts.PollInterval = 5 * time.Millisecond
	opts.PollSchedule = []time.Duration{0, 5 * time.Millisecond}

	page := memdom.NewPage()
	fm, err := common.NewFrameManager(ctx, "tab-1", page, opts, nil, nil)
	require.NoError(t, err)
	t.Cleanup(fm.Close)

	p := &testPage{t: t, dom: page, fm: fm, sites: sites, current: -1}
	p.load("about:blank")
	return p
}

func (p *testPage) load(url string) {
	root, ok := p.sites[url]
	if !ok {
		root = memdom.E("html", memdom.E("body"))
	}
	doc := p.dom.Load("main", url, root)
	_, err := p.fm.FrameNavigated("main", "", doc.ID, url)
	require.NoError(p.t, err)
}

func (p *testPage) MainFrame() *common.Frame { return p.fm.MainFrame() }

func (p *testPage) Navigate(_ context.Context, url string, _ time.Duration) (*common.FrameEvent, error) {
	if _, ok := p.sites[url]; !ok {
		return nil, errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	p.history = append(p.history[:p.current+1], url)
	p.current++
	p.load(url)
	return nil, nil
}

func (p *testPage) GoBack(context.Context) bool {
	if p.current < 1 {
		return false
	}
	p.current--
	p.load(p.history[p.current])
	return true
}

func (p *testPage) GoForward(context.Context) bool {
	if p.current+1 >= len(p.history) {
		return false
	}
	p.current++
	p.load(p.history[p.current])
	return true
}

func newTestRunner(t *testing.T, p *testPage) (*stepRunner, *safeBuffer) {
	t.Helper()

	out := &safeBuffer{}
	return &stepRunner{
		ctx:     context.Background(),
		page:    p,
		console: console.New(out, &safeBuffer{}, nil, false, ""),
	}, out
}

const loginURL = "https://example.com/login"

func loginSite() (root, user, remember, submit *memdom.Node) {
	user = memdom.E("input").Set("id", "user")
	remember = memdom.E("input").Set("type", "checkbox").Set("id", "remember")
	submit = memdom.E("button").WithText("Sign in")
	root = memdom.E("html", memdom.E("body",
		memdom.E("h1").WithText(" Welcome "),
		user,
		remember,
		memdom.E("select",
			memdom.E("option").Set("value", "en").WithText("English"),
			memdom.E("option").Set("value", "de").WithText("Deutsch"),
		).Set("id", "lang"),
		submit,
		memdom.E("p").WithText("Loading").Hide(),
	))
	return root, user, remember, submit
}

func TestParseStepScript(t *testing.T) {
	t.Parallel()

	sc, err := parseStepScript([]byte(`
url: https://example.com/login
steps:
  - { action: fill, selector: "#user", value: ada }
  - action: click
    selector: role=button
    timeout: 2s
  - { action: expect, selector: h1, text: Welcome }
`))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/login", sc.URL)
	require.Len(t, sc.Steps, 3)
	assert.Equal(t, 2*time.Second, sc.Steps[1].Timeout)
	require.NotNil(t, sc.Steps[2].Text)
	assert.Equal(t, "Welcome", *sc.Steps[2].Text)

	invalid := map[string]string{
		"unknown_action": `steps: [{ action: drag, selector: li }]`,
		"no_action":      `steps: [{ selector: li }]`,
		"no_selector":    `steps: [{ action: click }]`,
		"goto_no_url":    `steps: [{ action: goto }]`,
		"press_no_key":   `steps: [{ action: press, selector: input }]`,
		"empty_expect":   `steps: [{ action: expect, selector: h1 }]`,
		"bad_state":      `steps: [{ action: wait, selector: h1, state: gone }]`,
		"unknown_field":  `steps: [{ action: click, selector: li, button: left }]`,
		"bad_yaml":       `steps: [`,
	}
	for name, src := range invalid {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := parseStepScript([]byte(src))
			require.Error(t, err)
			assert.Equal(t, exitcodes.InvalidConfig, errext.ExitCodeOf(err, exitcodes.GenericEngine))
		})
	}
}

func TestStepRunner(t *testing.T) {
	t.Parallel()

	root, user, remember, submit := loginSite()
	p := newTestPage(t, map[string]*memdom.Node{loginURL: root})
	r, out := newTestRunner(t, p)

	sc, err := parseStepScript([]byte(`
url: https://example.com/login
steps:
  - { action: fill, selector: "#user", value: ada }
  - { action: press, selector: "#user", key: "!" }
  - { action: check, selector: "#remember" }
  - { action: select, selector: "#lang", value: de }
  - { action: wait, selector: p, state: hidden }
  - { action: expect, selector: h1, text: Welcome, visible: true }
  - { action: expect, selector: option, count: 2 }
  - name: sign in
    action: click
    selector: text=Sign in
`))
	require.NoError(t, err)
	require.NoError(t, r.run(sc))

	assert.Equal(t, "ada!", p.dom.Value(user))
	assert.True(t, p.dom.Checked(remember))
	assert.Equal(t, []string{"click"}, p.dom.Events(submit))

	assert.Contains(t, out.String(), "✓ goto "+loginURL)
	assert.Contains(t, out.String(), "✓ fill #user")
	assert.Contains(t, out.String(), "✓ sign in")
}

func TestStepRunnerFailures(t *testing.T) {
	t.Parallel()

	t.Run("expectation", func(t *testing.T) {
		t.Parallel()

		root, _, _, _ := loginSite()
		p := newTestPage(t, map[string]*memdom.Node{loginURL: root})
		r, out := newTestRunner(t, p)

		err := r.run(&stepScript{URL: loginURL, Steps: []step{
			{Action: "expect", Selector: "option", Count: intPtr(3)},
			{Action: "click", Selector: "button"},
		}})
		require.ErrorIs(t, err, errStepFailed)
		assert.Contains(t, err.Error(), "expected 3 elements, got 2")
		assert.Contains(t, out.String(), "✗ expect option")
		assert.NotContains(t, out.String(), "click button")
	})
	t.Run("strict", func(t *testing.T) {
		t.Parallel()

		root, _, _, _ := loginSite()
		p := newTestPage(t, map[string]*memdom.Node{loginURL: root})
		r, _ := newTestRunner(t, p)

		err := r.run(&stepScript{URL: loginURL, Steps: []step{{Action: "click", Selector: "option"}}})
		require.Error(t, err)
		var amb *common.AmbiguousMatchError
		assert.ErrorAs(t, err, &amb)
	})
	t.Run("navigation", func(t *testing.T) {
		t.Parallel()

		r, _ := newTestRunner(t, newTestPage(t, nil))
		err := r.run(&stepScript{URL: "https://nowhere.invalid/"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
	})
	t.Run("quiet", func(t *testing.T) {
		t.Parallel()

		root, _, _, _ := loginSite()
		r, out := newTestRunner(t, newTestPage(t, map[string]*memdom.Node{loginURL: root}))
		r.quiet = true
		require.NoError(t, r.run(&stepScript{URL: loginURL}))
		assert.Empty(t, out.String())
	})
}

func TestStepRunnerHistory(t *testing.T) {
	t.Parallel()

	first := memdom.E("html", memdom.E("body", memdom.E("h1").WithText("First")))
	second := memdom.E("html", memdom.E("body", memdom.E("h1").WithText("Second")))
	p := newTestPage(t, map[string]*memdom.Node{
		"https://example.com/1": first,
		"https://example.com/2": second,
	})
	r, _ := newTestRunner(t, p)

	require.NoError(t, r.run(&stepScript{Steps: []step{
		{Action: "goto", Value: "https://example.com/1"},
		{Action: "goto", Value: "https://example.com/2"},
		{Action: "back"},
		{Action: "expect", Selector: "h1", Text: strPtr("First")},
		{Action: "forward"},
		{Action: "expect", Selector: "h1", Text: strPtr("Second")},
	}}))

	err := r.run(&stepScript{Steps: []step{{Action: "forward"}}})
	require.ErrorIs(t, err, errNoHistoryEntry)
	assert.Equal(t, exitcodes.NavigationFailed, errext.ExitCodeOf(err, exitcodes.GenericEngine))
}

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }
