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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/dom/memdom"
)

func TestElementHandleDispose(t *testing.T) {
	t.Parallel()

	button := memdom.E("button").WithText("go")
	tab := newTestTab(t, memdom.E("html", memdom.E("body", button)))

	h, err := tab.main.Query("button")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, tab.main.DocumentID(), h.DocumentID())
	assert.Same(t, tab.main, h.Frame())
	assert.False(t, h.Disposed())

	require.NoError(t, h.Dispose())
	assert.True(t, h.Disposed())
	assert.ErrorIs(t, h.Dispose(), ErrHandleDisposed)
	assert.Equal(t, 1, tab.page.Releases(h.Ref()))

	calls := map[string]func() error{
		"click":        func() error { return h.Click(nil) },
		"fill":         func() error { return h.Fill("x", nil) },
		"text content": func() error { _, _, err := h.TextContent(); return err },
		"is visible":   func() error { _, err := h.IsVisible(); return err },
		"query":        func() error { _, err := h.Query("span"); return err },
		"wait for":     func() error { _, err := h.WaitForSelector("span", nil); return err },
		"state":        func() error { return h.WaitForElementState(dom.StateVisible, nil) },
	}
	for name, call := range calls {
		assert.ErrorIs(t, call(), ErrHandleDisposed, name)
	}
	assert.Equal(t, 1, tab.page.Releases(h.Ref()))
	assert.Empty(t, tab.page.Events(button))
}

func TestActionReleasesHandleOnce(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		button := memdom.E("button")
		tab := newTestTab(t, memdom.E("html", memdom.E("body", button)))

		require.NoError(t, tab.main.Locator("button", nil).Click(nil))
		ref := tab.page.Ref(button)
		require.NotEmpty(t, ref)
		assert.Equal(t, 1, tab.page.Releases(ref))
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		button := memdom.E("button").OnPerform(func(context.Context, dom.Action) error {
			return boom
		})
		tab := newTestTab(t, memdom.E("html", memdom.E("body", button)))

		err := tab.main.Locator("button", nil).Click(nil)
		require.ErrorIs(t, err, boom)
		ref := tab.page.Ref(button)
		assert.Equal(t, 1, tab.page.Releases(ref))
	})

	t.Run("ambiguous releases every match", func(t *testing.T) {
		t.Parallel()

		a, b := memdom.E("a"), memdom.E("a")
		tab := newTestTab(t, memdom.E("html", memdom.E("body", a, b)))

		err := tab.main.Locator("a", nil).Click(nil)
		var amb *AmbiguousMatchError
		require.ErrorAs(t, err, &amb)
		assert.Equal(t, 1, tab.page.Releases(tab.page.Ref(a)))
		assert.Equal(t, 1, tab.page.Releases(tab.page.Ref(b)))
	})
}

func TestElementHandleActions(t *testing.T) {
	t.Parallel()

	input := memdom.E("input").Set("name", "q").Set("aria-label", "Search")
	tab := newTestTab(t, memdom.E("html", memdom.E("body",
		memdom.E("form", input, memdom.E("span").WithText("hint")),
	)))

	form, err := tab.main.Query("form")
	require.NoError(t, err)
	defer form.dispose()

	h, err := form.Query("input")
	require.NoError(t, err)
	require.NotNil(t, h)
	defer h.dispose()

	require.NoError(t, h.Fill("go", nil))
	require.NoError(t, h.Type("pher", nil))
	v, err := h.InputValue()
	require.NoError(t, err)
	assert.Equal(t, "gopher", v)

	name, ok, err := h.GetAttribute("name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "q", name)

	editable, err := h.IsEditable()
	require.NoError(t, err)
	assert.True(t, editable)

	hs, err := form.QueryAll("*")
	require.NoError(t, err)
	assert.Len(t, hs, 2)
	for _, c := range hs {
		require.NoError(t, c.Dispose())
	}

	missing, err := form.Query("button")
	require.NoError(t, err)
	assert.Nil(t, missing)

	span, err := form.WaitForSelector("span", &FrameWaitForSelectorOptions{State: DOMElementStateVisible})
	require.NoError(t, err)
	require.NotNil(t, span)
	text, err := span.InnerText()
	require.NoError(t, err)
	assert.Equal(t, "hint", text)
	require.NoError(t, span.Dispose())

	snapshot, err := h.AriaSnapshot()
	require.NoError(t, err)
	assert.Contains(t, snapshot, "textbox")
}

func TestElementHandleStaleDocument(t *testing.T) {
	t.Parallel()

	tab := newTestTab(t, memdom.E("html", memdom.E("body", memdom.E("button"))))

	h, err := tab.main.Query("button")
	require.NoError(t, err)
	defer h.dispose()
	assert.False(t, h.IsStale())

	tab.navigate(t, "https://example.com/other", memdom.E("html", memdom.E("body", memdom.E("button"))))
	assert.True(t, h.IsStale())

	err = h.Click(nil)
	var de *DisconnectedError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ReasonDocumentNavigated, de.Reason)

	_, err = h.Query("span")
	require.ErrorAs(t, err, &de)

	_, err = tab.main.WaitForSelector("button", &FrameWaitForSelectorOptions{Root: h})
	require.ErrorAs(t, err, &de)
}

func TestElementHandleWaitForElementState(t *testing.T) {
	t.Parallel()

	button := memdom.E("button").Disable()
	tab := newTestTab(t, memdom.E("html", memdom.E("body", button)))

	h, err := tab.main.Query("button")
	require.NoError(t, err)
	defer h.dispose()

	go func() {
		time.Sleep(30 * time.Millisecond)
		tab.page.SetDisabled(button, false)
	}()
	require.NoError(t, h.WaitForElementState(dom.StateEnabled, nil))

	err = h.WaitForElementState(dom.StateDisabled, &ElementHandleWaitForElementStateOptions{Timeout: 30 * time.Millisecond})
	var te *TimeoutError
	assert.ErrorAs(t, err, &te)

	err = h.WaitForElementState(dom.StateDisabled, &ElementHandleWaitForElementStateOptions{Timeout: -time.Second})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestElementHandleDetached(t *testing.T) {
	t.Parallel()

	button := memdom.E("button")
	tab := newTestTab(t, memdom.E("html", memdom.E("body", button)))

	h, err := tab.main.Query("button")
	require.NoError(t, err)
	defer h.dispose()

	tab.page.Remove(button)

	err = h.Click(&ClickOptions{Trial: true})
	assert.True(t, isNotConnected(err))
	visible, err := h.IsVisible()
	assert.True(t, isNotConnected(err))
	assert.False(t, visible)
}
