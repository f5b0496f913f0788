/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/dom/memdom"
	"github.com/liuxd6825/xk6-locator/errext"
)

func listPage() *memdom.Node {
	return memdom.E("html", memdom.E("body",
		memdom.E("div", memdom.E("span").WithText("one").Set("class", "item")).Set("class", "list"),
		memdom.E("div", memdom.E("span").WithText("two").Set("class", "item")).Set("class", "list"),
		memdom.E("ul",
			memdom.E("li").WithText("apple"),
			memdom.E("li").WithText("banana"),
			memdom.E("li").WithText("cherry"),
		),
	))
}

func refsOf(t *testing.T, l *Locator) []dom.ElementRef {
	t.Helper()

	hs, err := l.ElementHandles()
	require.NoError(t, err)

	refs := make([]dom.ElementRef, 0, len(hs))
	for _, h := range hs {
		refs = append(refs, h.Ref())
		require.NoError(t, h.Dispose())
	}
	return refs
}

func TestLocatorSelectorAlgebra(t *testing.T) {
	t.Parallel()

	tab := newTestTab(t, listPage())
	f := tab.main

	t.Run("chain", func(t *testing.T) {
		t.Parallel()

		l := f.Locator("div.list", nil).Locator(".item", nil)
		assert.Equal(t, "div.list >> .item", l.Selector())
	})

	t.Run("nth", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "li >> nth=-1", f.Locator("li", nil).Nth(-1).Selector())
		assert.Equal(t, "li >> nth=2", f.Locator("li", nil).Nth(2).Selector())
	})

	t.Run("first and last", func(t *testing.T) {
		t.Parallel()

		l := f.Locator("li", nil)
		assert.Equal(t, l.Nth(0).Selector(), l.First().Selector())
		assert.Equal(t, l.Nth(-1).Selector(), l.Last().Selector())

		text, ok, err := l.Last().TextContent(nil)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "cherry", text)
	})

	t.Run("and is ordered as text only", func(t *testing.T) {
		t.Parallel()

		a, b := f.Locator("li", nil), f.GetByText("an", nil)
		ab, err := a.And(b)
		require.NoError(t, err)
		ba, err := b.And(a)
		require.NoError(t, err)

		assert.NotEqual(t, ab.Selector(), ba.Selector())
		assert.Equal(t, refsOf(t, ab), refsOf(t, ba))
		assert.Len(t, refsOf(t, ab), 1)
	})

	t.Run("or", func(t *testing.T) {
		t.Parallel()

		l, err := f.Locator("ul", nil).Or(f.Locator("li", nil))
		require.NoError(t, err)
		n, err := l.Count()
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("chain locator", func(t *testing.T) {
		t.Parallel()

		l, err := f.Locator("div.list", nil).Chain(f.Locator("span", nil))
		require.NoError(t, err)
		assert.Equal(t, `div.list >> internal:chain="span"`, l.Selector())
		n, err := l.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("has and has text", func(t *testing.T) {
		t.Parallel()

		l, err := f.Locator("div.list", nil).Has(f.Locator("span", &LocatorOptions{HasText: "two"}))
		require.NoError(t, err)
		text, err := l.InnerText(nil)
		require.NoError(t, err)
		assert.Equal(t, "two", text)

		n, err := f.Locator("li", nil).HasNotText("an").Count()
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("filter", func(t *testing.T) {
		t.Parallel()

		l, err := f.Locator("div", nil).Filter(&LocatorFilterOptions{
			HasNot:  f.Locator("span", &LocatorOptions{HasText: "one"}),
			Visible: boolPtr(true),
		})
		require.NoError(t, err)
		text, err := l.InnerText(nil)
		require.NoError(t, err)
		assert.Equal(t, "two", text)
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()

		all, err := f.Locator("li", nil).All()
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, l := range all {
			assert.True(t, l.Equal(f.Locator("li", nil).Nth(i)))
		}
	})

	t.Run("describe", func(t *testing.T) {
		t.Parallel()

		l := f.Locator("li", nil)
		assert.Equal(t, `locator("li")`, l.String())

		d := l.Describe("fruit")
		assert.Equal(t, "fruit", d.String())
		assert.Equal(t, "fruit", d.Description())
		assert.Empty(t, l.Description())
		assert.True(t, d.Equal(l))
	})
}

func TestLocatorEqual(t *testing.T) {
	t.Parallel()

	tab := newTestTab(t, listPage())
	other := newTestTab(t, listPage())

	a := tab.main.Locator("li", nil)
	assert.True(t, a.Equal(tab.main.Locator("li", nil)))
	assert.False(t, a.Equal(tab.main.Locator("ul > li", nil)))
	assert.False(t, a.Equal(other.main.Locator("li", nil)))
	assert.False(t, a.Equal(nil))
}

func TestLocatorCrossFrameComposition(t *testing.T) {
	t.Parallel()

	tab := newTestTab(t, listPage())
	other := newTestTab(t, listPage())

	a, b := tab.main.Locator("div", nil), other.main.Locator("span", nil)
	before, otherBefore := tab.spy.calls(), other.spy.calls()

	ops := map[string]func() (*Locator, error){
		"has":    func() (*Locator, error) { return a.Has(b) },
		"hasNot": func() (*Locator, error) { return a.HasNot(b) },
		"and":    func() (*Locator, error) { return a.And(b) },
		"or":     func() (*Locator, error) { return a.Or(b) },
		"chain":  func() (*Locator, error) { return a.Chain(b) },
		"filter": func() (*Locator, error) { return a.Filter(&LocatorFilterOptions{Has: b}) },
	}
	for name, op := range ops {
		l, err := op()
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, name)
		assert.Nil(t, l, name)
	}

	assert.Equal(t, before, tab.spy.calls())
	assert.Equal(t, otherBefore, other.spy.calls())
}

func TestLocatorStrictness(t *testing.T) {
	t.Parallel()

	page := func() *memdom.Node {
		return memdom.E("html", memdom.E("body",
			memdom.E("button").WithText("one").Set("id", "single"),
			memdom.E("a").Set("class", "twin"),
			memdom.E("a").Set("class", "twin"),
		))
	}
	opts := &ClickOptions{ActionOptions: ActionOptions{Timeout: 100 * time.Millisecond}}

	t.Run("no match", func(t *testing.T) {
		t.Parallel()

		tab := newTestTab(t, page())
		err := tab.main.Locator("#missing", nil).Click(opts)

		var (
			nf *ElementNotFoundError
			ae *ActionError
		)
		require.ErrorAs(t, err, &nf)
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "#missing", nf.Selector)
		assert.Equal(t, "clicking on", ae.Op)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("single match", func(t *testing.T) {
		t.Parallel()

		tab := newTestTab(t, page())
		require.NoError(t, tab.main.Locator("#single", nil).Click(opts))
	})

	t.Run("two matches", func(t *testing.T) {
		t.Parallel()

		tab := newTestTab(t, page())
		start := time.Now()
		err := tab.main.Locator(".twin", nil).Click(&ClickOptions{ActionOptions: ActionOptions{Timeout: time.Minute}})

		var amb *AmbiguousMatchError
		require.ErrorAs(t, err, &amb)
		assert.Equal(t, 2, amb.Count)
		assert.Less(t, time.Since(start), 10*time.Second)
		assert.Zero(t, tab.spy.perform.Load())

		var hint errext.HasHint
		require.ErrorAs(t, err, &hint)
		assert.Contains(t, hint.Hint(), "Locator.Nth()")
	})

	t.Run("count is not strict", func(t *testing.T) {
		t.Parallel()

		tab := newTestTab(t, page())
		n, err := tab.main.Locator(".twin", nil).Count()
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.NoError(t, tab.main.Locator(".twin", nil).First().Click(opts))
	})
}

func TestLocatorActions(t *testing.T) {
	t.Parallel()

	var (
		button   = memdom.E("button").WithText("Save").Set("data-testid", "save")
		input    = memdom.E("input").Set("id", "name").Set("placeholder", "Your name")
		label    = memdom.E("label").WithText("Name").Set("for", "name")
		checkbox = memdom.E("input").Set("type", "checkbox").Set("title", "Agree")
		sel      = memdom.E("select",
			memdom.E("option").WithText("Red").Set("value", "r"),
			memdom.E("option").WithText("Green").Set("value", "g"),
		)
		img = memdom.E("img").Set("alt", "Logo")
	)
	tab := newTestTab(t, memdom.E("html", memdom.E("body", button, label, input, checkbox, sel, img)))
	f := tab.main

	require.NoError(t, f.GetByTestID("save").Click(nil))
	assert.Equal(t, []string{"click"}, tab.page.Events(button))

	require.NoError(t, f.GetByRole("button", &GetByRoleOptions{Name: strPtr("Save")}).Dblclick(nil))
	require.NoError(t, f.GetByText("Save", &GetByBaseOptions{Exact: boolPtr(true)}).Hover(nil))
	assert.Equal(t, []string{"click", "click", "click", "dblclick", "hover"}, tab.page.Events(button))

	require.NoError(t, f.GetByLabel("Name", nil).Fill("Jane", nil))
	assert.Equal(t, "Jane", tab.page.Value(input))
	require.NoError(t, f.GetByPlaceholder("your", nil).Type("!", nil))
	v, err := f.GetByPlaceholder("your", nil).InputValue(nil)
	require.NoError(t, err)
	assert.Equal(t, "Jane!", v)
	require.NoError(t, f.GetByLabel("Name", nil).Clear(nil))
	assert.Empty(t, tab.page.Value(input))

	require.NoError(t, f.GetByTitle("Agree", nil).Check(nil))
	assert.True(t, tab.page.Checked(checkbox))
	checked, err := f.GetByTitle("Agree", nil).IsChecked(nil)
	require.NoError(t, err)
	assert.True(t, checked)
	require.NoError(t, f.GetByTitle("Agree", nil).Uncheck(nil))
	assert.False(t, tab.page.Checked(checkbox))

	selected, err := f.Locator("select", nil).SelectOption(SelectValues("g"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"g"}, selected)

	alt, ok, err := f.GetByAltText("logo", nil).GetAttribute("alt", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Logo", alt)
	_, ok, err = f.GetByAltText("logo", nil).GetAttribute("title", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Locator("input#name", nil).Focus(nil))
	assert.Same(t, input, tab.page.Focused())
	require.NoError(t, f.Locator("input#name", nil).Blur(nil))
	assert.Nil(t, tab.page.Focused())

	require.NoError(t, f.Locator("button", nil).DispatchEvent("mouseover", nil, nil))
	require.NoError(t, f.Locator("button", nil).ScrollIntoViewIfNeeded(nil))
	require.NoError(t, f.Locator("button", nil).Press("Enter", nil))
	require.NoError(t, f.Locator("button", nil).Tap(nil))

	html, err := f.Locator("button", nil).InnerHTML(nil)
	require.NoError(t, err)
	assert.Equal(t, "Save", html)

	box, err := f.Locator("button", nil).BoundingBox(nil)
	require.NoError(t, err)
	require.NotNil(t, box)

	enabled, err := f.Locator("button", nil).IsEnabled(nil)
	require.NoError(t, err)
	assert.True(t, enabled)
	editable, err := f.Locator("input#name", nil).IsEditable(nil)
	require.NoError(t, err)
	assert.True(t, editable)

	err = f.Locator("button", nil).Fill("x", &ActionOptions{Force: true})
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "filling", ae.Op)
}

func TestLocatorActionValidation(t *testing.T) {
	t.Parallel()

	tab := newTestTab(t, listPage())
	l := tab.main.Locator("li", nil).First()

	tests := map[string]func() error{
		"negative timeout": func() error { return l.Click(&ClickOptions{ActionOptions: ActionOptions{Timeout: -1}}) },
		"bad button":       func() error { return l.Click(&ClickOptions{Button: "thumb"}) },
		"bad modifier":     func() error { return l.Hover(&HoverOptions{Modifiers: []string{"Hyper"}}) },
		"empty key":        func() error { return l.Press("", nil) },
		"empty event":      func() error { return l.DispatchEvent("", nil, nil) },
		"bad option":       func() error { _, err := l.SelectOption([]dom.SelectOptionValue{{}}, nil); return err },
		"wait for":         func() error { return l.WaitFor(&LocatorWaitForOptions{Timeout: -time.Second}) },
	}
	before := tab.spy.calls()
	for name, fn := range tests {
		var ve *ValidationError
		assert.ErrorAs(t, fn(), &ve, name)
	}
	assert.Equal(t, before, tab.spy.calls())

	err := tab.main.Locator("li >> nth=x", nil).Click(nil)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestLocatorWaitsForActionability(t *testing.T) {
	t.Parallel()

	t.Run("visible", func(t *testing.T) {
		t.Parallel()

		button := memdom.E("button").Hide()
		tab := newTestTab(t, memdom.E("html", memdom.E("body", button)))

		go func() {
			time.Sleep(30 * time.Millisecond)
			tab.page.SetHidden(button, false)
		}()
		require.NoError(t, tab.main.Locator("button", nil).Click(nil))
		assert.Equal(t, []string{"click"}, tab.page.Events(button))
	})

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()

		button := memdom.E("button").Disable()
		tab := newTestTab(t, memdom.E("html", memdom.E("body", button)))

		go func() {
			time.Sleep(30 * time.Millisecond)
			tab.page.SetDisabled(button, false)
		}()
		require.NoError(t, tab.main.Locator("button", nil).Click(nil))
		assert.Equal(t, []string{"click"}, tab.page.Events(button))
	})

	t.Run("stable", func(t *testing.T) {
		t.Parallel()

		button := memdom.E("button").Unstable(3)
		tab := newTestTab(t, memdom.E("html", memdom.E("body", button)))

		require.NoError(t, tab.main.Locator("button", nil).Click(nil))
		assert.Equal(t, []string{"click"}, tab.page.Events(button))
	})

	t.Run("disabled times out", func(t *testing.T) {
		t.Parallel()

		button := memdom.E("button").Disable()
		tab := newTestTab(t, memdom.E("html", memdom.E("body", button)))

		err := tab.main.Locator("button", nil).Click(&ClickOptions{ActionOptions: ActionOptions{Timeout: 50 * time.Millisecond}})
		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Contains(t, te.Waiting, "enabled")
		assert.Empty(t, tab.page.Events(button))
	})

	t.Run("force skips checks", func(t *testing.T) {
		t.Parallel()

		button := memdom.E("button").Hide()
		tab := newTestTab(t, memdom.E("html", memdom.E("body", button)))

		require.NoError(t, tab.main.Locator("button", nil).Click(&ClickOptions{ActionOptions: ActionOptions{Force: true}}))
		assert.Equal(t, []string{"click"}, tab.page.Events(button))
	})

	t.Run("trial performs nothing", func(t *testing.T) {
		t.Parallel()

		button := memdom.E("button")
		tab := newTestTab(t, memdom.E("html", memdom.E("body", button)))

		require.NoError(t, tab.main.Locator("button", nil).Click(&ClickOptions{Trial: true}))
		assert.Empty(t, tab.page.Events(button))
	})
}

func TestLocatorElementDetachedRetry(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) (*testTab, *memdom.Node, *memdom.Node) {
		t.Helper()

		var (
			tab         *testTab
			once        sync.Once
			replacement = memdom.E("button").WithText("new")
			original    = memdom.E("button").WithText("old")
			body        = memdom.E("body", original)
		)
		original.OnPerform(func(context.Context, dom.Action) error {
			once.Do(func() {
				tab.page.Remove(original)
				tab.page.Append(body, replacement)
			})
			return nil
		})
		tab = newTestTab(t, memdom.E("html", body))

		return tab, original, replacement
	}

	t.Run("retries once", func(t *testing.T) {
		t.Parallel()

		tab, original, replacement := setup(t)
		require.NoError(t, tab.main.Locator("button", nil).Click(nil))
		assert.Empty(t, tab.page.Events(original))
		assert.Equal(t, []string{"click"}, tab.page.Events(replacement))
	})

	t.Run("no retry", func(t *testing.T) {
		t.Parallel()

		tab, _, replacement := setup(t)
		err := tab.main.Locator("button", nil).Click(&ClickOptions{ActionOptions: ActionOptions{NoRetry: true}})

		var de *DisconnectedError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, ReasonElementDetached, de.Reason)
		assert.Empty(t, tab.page.Events(replacement))
	})
}

func TestLocatorStaleDocument(t *testing.T) {
	t.Parallel()

	var (
		tab  *testTab
		next = memdom.E("button").WithText("next")
	)
	button := memdom.E("button").WithText("first").OnPerform(func(context.Context, dom.Action) error {
		doc := tab.page.Load(testMainFrameID, "https://example.com/next", memdom.E("html", memdom.E("body", next)))
		_, err := tab.fm.FrameNavigated(testMainFrameID, "", doc.ID, doc.URL)
		return err
	})
	tab = newTestTab(t, memdom.E("html", memdom.E("body", button)))

	err := tab.main.Locator("button", nil).Click(nil)

	var de *DisconnectedError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ReasonDocumentNavigated, de.Reason)
	assert.Empty(t, tab.page.Events(next))
	assert.Equal(t, "https://example.com/next", tab.main.URL())
}

func TestLocatorStateChecks(t *testing.T) {
	t.Parallel()

	hidden := memdom.E("p").WithText("hidden").Hide()
	tab := newTestTab(t, memdom.E("html", memdom.E("body",
		memdom.E("p").WithText("shown"),
		hidden,
		memdom.E("a"), memdom.E("a"),
	)))
	f := tab.main

	visible, err := f.GetByText("shown", nil).IsVisible()
	require.NoError(t, err)
	assert.True(t, visible)

	visible, err = f.Locator("p", &LocatorOptions{HasText: "hidden"}).IsVisible()
	require.NoError(t, err)
	assert.False(t, visible)

	hiddenNow, err := f.Locator("#missing", nil).IsHidden()
	require.NoError(t, err)
	assert.True(t, hiddenNow)

	visible, err = f.Locator("#missing", nil).IsVisible()
	require.NoError(t, err)
	assert.False(t, visible)

	_, err = f.Locator("a", nil).IsVisible()
	var amb *AmbiguousMatchError
	assert.ErrorAs(t, err, &amb)

	disabled, err := f.Locator("p", nil).First().IsDisabled(nil)
	require.NoError(t, err)
	assert.False(t, disabled)
}

func TestLocatorWaitFor(t *testing.T) {
	t.Parallel()

	toast := memdom.E("div").Set("class", "toast")
	body := memdom.E("body", toast)
	tab := newTestTab(t, memdom.E("html", body))
	l := tab.main.Locator(".toast", nil)

	require.NoError(t, l.WaitFor(nil))

	go func() {
		time.Sleep(30 * time.Millisecond)
		tab.page.Remove(toast)
	}()
	require.NoError(t, l.WaitFor(&LocatorWaitForOptions{State: DOMElementStateDetached}))

	err := l.WaitFor(&LocatorWaitForOptions{State: DOMElementStateVisible, Timeout: 30 * time.Millisecond})
	var nf *ElementNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestLocatorTestIDAttributeOption(t *testing.T) {
	t.Parallel()

	opts := newTestOptions()
	opts.TestIDAttribute = "data-qa"
	button := memdom.E("button").Set("data-qa", "go").Set("data-testid", "other")
	tab := newTestTabWithOptions(t, memdom.E("html", memdom.E("body", button)), opts)

	l := tab.main.GetByTestID("go")
	assert.Equal(t, `internal:testid=[data-qa="go"s]`, l.Selector())
	require.NoError(t, l.Click(nil))
	assert.Equal(t, []string{"click"}, tab.page.Events(button))

	n, err := tab.main.GetByTestID("other").Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLocatorContextCancelled(t *testing.T) {
	t.Parallel()

	tab := newTestTab(t, listPage())
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLocator(ctx, nil, "#never", tab.main, tab.main.log)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := l.Click(&ClickOptions{ActionOptions: ActionOptions{Timeout: time.Minute}})

	var (
		ab *AbortError
		te *TimeoutError
	)
	require.ErrorAs(t, err, &ab)
	assert.False(t, errors.As(err, &te))
	assert.ErrorIs(t, err, context.Canceled)
}

func strPtr(s string) *string { return &s }
