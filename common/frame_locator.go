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

	"github.com/liuxd6825/xk6-locator/log"
	"github.com/liuxd6825/xk6-locator/selector"
)

// FrameLocator represent a way to find elements in an iframe.
type FrameLocator struct {
	selector string

	frame *Frame

	ctx context.Context
	log *log.Logger
}

// NewFrameLocator creates and returns a new frame locator for the iframes
// matching sel in f.
func NewFrameLocator(ctx context.Context, sel string, f *Frame, l *log.Logger) *FrameLocator {
	l.Debugf("FrameLocator:New", "fid:%s furl:%q sel:%q", f.ID(), f.URL(), sel)

	return &FrameLocator{
		selector: sel,
		frame:    f,
		ctx:      ctx,
		log:      l,
	}
}

// Selector returns the selector of the iframe element.
func (fl *FrameLocator) Selector() string { return fl.selector }

// Locator creates and returns a new locator for sel inside the content
// document of the iframe.
func (fl *FrameLocator) Locator(sel string, opts *LocatorOptions) *Locator {
	return NewLocator(fl.ctx, opts, selector.EnterFrame(fl.selector, sel), fl.frame, fl.log)
}

// FrameLocator returns a frame locator for an iframe nested inside this one.
func (fl *FrameLocator) FrameLocator(sel string) *FrameLocator {
	return NewFrameLocator(fl.ctx, selector.EnterFrame(fl.selector, sel), fl.frame, fl.log)
}

// Owner returns a locator for the iframe element itself.
func (fl *FrameLocator) Owner() *Locator {
	return NewLocator(fl.ctx, nil, fl.selector, fl.frame, fl.log)
}

// First returns a frame locator for the first matching iframe.
func (fl *FrameLocator) First() *FrameLocator {
	return NewFrameLocator(fl.ctx, selector.First(fl.selector), fl.frame, fl.log)
}

// Last returns a frame locator for the last matching iframe.
func (fl *FrameLocator) Last() *FrameLocator {
	return NewFrameLocator(fl.ctx, selector.Last(fl.selector), fl.frame, fl.log)
}

// Nth returns a frame locator for the nth matching iframe.
func (fl *FrameLocator) Nth(nth int) *FrameLocator {
	return NewFrameLocator(fl.ctx, selector.Nth(fl.selector, nth), fl.frame, fl.log)
}

// GetByAltText returns a locator for elements with the given alt text
// inside the iframe.
func (fl *FrameLocator) GetByAltText(alt string, opts *GetByBaseOptions) *Locator {
	return fl.Locator(fl.frame.buildAttributeSelector("alt", alt, opts), nil)
}

// GetByLabel returns a locator for form controls with the given label
// inside the iframe.
func (fl *FrameLocator) GetByLabel(label string, opts *GetByBaseOptions) *Locator {
	return fl.Locator(fl.frame.buildLabelSelector(label, opts), nil)
}

// GetByPlaceholder returns a locator for inputs with the given placeholder
// inside the iframe.
func (fl *FrameLocator) GetByPlaceholder(placeholder string, opts *GetByBaseOptions) *Locator {
	return fl.Locator(fl.frame.buildAttributeSelector("placeholder", placeholder, opts), nil)
}

// GetByRole returns a locator for elements with the given ARIA role inside
// the iframe.
func (fl *FrameLocator) GetByRole(role string, opts *GetByRoleOptions) *Locator {
	return fl.Locator(fl.frame.buildRoleSelector(role, opts), nil)
}

// GetByTestID returns a locator for elements with the given test id inside
// the iframe.
func (fl *FrameLocator) GetByTestID(testID string) *Locator {
	return fl.Locator(fl.frame.buildTestIDSelector(testID), nil)
}

// GetByText returns a locator for elements containing the given text inside
// the iframe.
func (fl *FrameLocator) GetByText(text string, opts *GetByBaseOptions) *Locator {
	return fl.Locator(fl.frame.buildTextSelector(text, opts), nil)
}

// GetByTitle returns a locator for elements with the given title inside
// the iframe.
func (fl *FrameLocator) GetByTitle(title string, opts *GetByBaseOptions) *Locator {
	return fl.Locator(fl.frame.buildAttributeSelector("title", title, opts), nil)
}
