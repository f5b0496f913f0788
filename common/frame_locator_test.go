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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/xk6-locator/dom/memdom"
	"github.com/liuxd6825/xk6-locator/selector"
)

func TestFrameLocator(t *testing.T) {
	t.Parallel()

	var (
		outer  = memdom.E("button").WithText("Outside")
		inner  = memdom.E("button").WithText("Inside")
		nested = memdom.E("button").WithText("Nested")
		second = memdom.E("button").WithText("Second")
	)
	tab := newTestTab(t, memdom.E("html", memdom.E("body",
		outer,
		memdom.E("iframe").Set("id", "child").WithContent(memdom.E("html", memdom.E("body",
			inner,
			memdom.E("iframe").Set("id", "nested").WithContent(memdom.E("html", memdom.E("body", nested))),
		))),
		memdom.E("iframe").Set("id", "second").WithContent(memdom.E("html", memdom.E("body", second))),
	)))

	t.Run("selector", func(t *testing.T) {
		t.Parallel()

		fl := tab.main.FrameLocator("#child")
		assert.Equal(t, "#child", fl.Selector())
		assert.Equal(t, "#child >> internal:control=enter-frame >> button", fl.Locator("button", nil).Selector())
		assert.Equal(t,
			"#child >> internal:control=enter-frame >> #nested >> internal:control=enter-frame >> button",
			fl.FrameLocator("#nested").Locator("button", nil).Selector(),
		)
	})

	t.Run("locator", func(t *testing.T) {
		t.Parallel()

		text, err := tab.main.FrameLocator("#child").Locator("button", nil).InnerText(nil)
		require.NoError(t, err)
		assert.Equal(t, "Inside", text)
	})

	t.Run("get by", func(t *testing.T) {
		t.Parallel()

		n, err := tab.main.FrameLocator("#child").GetByText("Inside", nil).Count()
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = tab.main.FrameLocator("#child").GetByText("Outside", nil).Count()
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("nested", func(t *testing.T) {
		t.Parallel()

		text, err := tab.main.FrameLocator("#child").FrameLocator("#nested").Locator("button", nil).InnerText(nil)
		require.NoError(t, err)
		assert.Equal(t, "Nested", text)
	})

	t.Run("owner", func(t *testing.T) {
		t.Parallel()

		id, ok, err := tab.main.FrameLocator("#second").Owner().GetAttribute("id", nil)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "second", id)
	})

	t.Run("first last nth", func(t *testing.T) {
		t.Parallel()

		fl := tab.main.FrameLocator("iframe")

		text, err := fl.First().Locator("button", nil).InnerText(nil)
		require.NoError(t, err)
		assert.Equal(t, "Inside", text)

		text, err = fl.Last().Locator("button", nil).InnerText(nil)
		require.NoError(t, err)
		assert.Equal(t, "Second", text)

		text, err = fl.Nth(1).Locator("button", nil).InnerText(nil)
		require.NoError(t, err)
		assert.Equal(t, "Second", text)
	})

	t.Run("content frame", func(t *testing.T) {
		t.Parallel()

		fl := tab.main.Locator("#second", nil).ContentFrame()
		text, err := fl.Locator("button", nil).InnerText(nil)
		require.NoError(t, err)
		assert.Equal(t, "Second", text)
	})
}

func TestFrameLocatorChildFrame(t *testing.T) {
	t.Parallel()

	newChildTab := func(t *testing.T) (*testTab, *memdom.Node, *Frame) {
		t.Helper()

		host := memdom.E("iframe").Set("id", "pay")
		tab := newTestTab(t, memdom.E("html", memdom.E("body", memdom.E("button").WithText("Outside"), host)))
		child := tab.loadChildFrame(t, "pay-frame", host, testURL+"pay",
			memdom.E("html", memdom.E("body", memdom.E("button").WithText("Pay"))))
		return tab, host, child
	}

	t.Run("resolves in the child frame", func(t *testing.T) {
		t.Parallel()

		tab, _, child := newChildTab(t)

		text, err := tab.main.FrameLocator("#pay").Locator("button", nil).InnerText(nil)
		require.NoError(t, err)
		assert.Equal(t, "Pay", text)

		h, err := tab.main.Query(selector.EnterFrame("#pay", "button"))
		require.NoError(t, err)
		require.NotNil(t, h)
		assert.Same(t, child, h.Frame())
		assert.Equal(t, child.DocumentID(), h.doc.id)
		require.NoError(t, h.Dispose())

		n, err := tab.main.FrameLocator("#pay").GetByText("Outside", nil).Count()
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("missing iframe", func(t *testing.T) {
		t.Parallel()

		tab, _, _ := newChildTab(t)

		n, err := tab.main.FrameLocator("#missing").Locator("button", nil).Count()
		require.NoError(t, err)
		assert.Zero(t, n)

		h, err := tab.main.WaitForSelector(selector.EnterFrame("#missing", "button"), &FrameWaitForSelectorOptions{
			State: DOMElementStateDetached,
		})
		require.NoError(t, err)
		assert.Nil(t, h)
	})

	t.Run("not an iframe", func(t *testing.T) {
		t.Parallel()

		tab, _, _ := newChildTab(t)

		_, err := tab.main.Count(selector.EnterFrame("button", "span"))
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, err.Error(), "does not match an iframe")
	})

	t.Run("handle goes stale with the child document", func(t *testing.T) {
		t.Parallel()

		tab, host, _ := newChildTab(t)

		h, err := tab.main.Query(selector.EnterFrame("#pay", "button"))
		require.NoError(t, err)
		require.NotNil(t, h)
		assert.False(t, h.IsStale())

		tab.loadChildFrame(t, "pay-frame", host, testURL+"next", memdom.E("html", memdom.E("body")))
		assert.True(t, h.IsStale())
		require.NoError(t, h.Dispose())
	})

	t.Run("iframe navigates while waiting", func(t *testing.T) {
		t.Parallel()

		tab, host, child := newChildTab(t)
		oldDoc := child.DocumentID()

		before := tab.spy.queryAll.Load()
		done := make(chan error, 1)
		go func() {
			_, err := tab.main.WaitForSelector(selector.EnterFrame("#pay", "span"), &FrameWaitForSelectorOptions{
				Timeout: 2 * time.Second,
			})
			done <- err
		}()

		// one query for the iframe, at least one in the child document
		require.Eventually(t, func() bool {
			return tab.spy.queryAll.Load() >= before+2
		}, time.Second, time.Millisecond)

		doc := tab.page.LoadFrame("pay-frame", host, testURL+"next", memdom.E("html", memdom.E("body", memdom.E("span"))))
		_, err := tab.fm.FrameNavigated("pay-frame", testMainFrameID, doc.ID, testURL+"next")
		require.NoError(t, err)

		select {
		case err := <-done:
			var de *DisconnectedError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, ReasonDocumentNavigated, de.Reason)
			assert.Equal(t, oldDoc, de.DocumentID)
		case <-time.After(3 * time.Second):
			t.Fatal("wait did not end after the iframe navigated")
		}
	})
}
