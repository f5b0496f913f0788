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
	"strings"

	"github.com/liuxd6825/xk6-locator/selector"
)

// GetByBaseOptions are the options of the text based get-by builders.
type GetByBaseOptions struct {
	// Exact matches the whole text, case sensitive. By default the match is
	// a case insensitive substring one.
	Exact *bool
}

// GetByRoleOptions are the options of GetByRole.
type GetByRoleOptions struct {
	Checked       *bool
	Disabled      *bool
	Exact         *bool
	Expanded      *bool
	IncludeHidden *bool
	Level         *int64
	Name          *string
	Pressed       *bool
	Selected      *bool
}

func (f *Frame) buildTestIDSelector(testID string) string {
	return selector.TestID(f.manager.opts.TestIDAttribute, testID)
}

func (f *Frame) buildTextSelector(text string, opts *GetByBaseOptions) string {
	return selector.Text(textMatchOf(text, opts))
}

func (f *Frame) buildLabelSelector(label string, opts *GetByBaseOptions) string {
	return selector.Label(textMatchOf(label, opts))
}

func (f *Frame) buildAttributeSelector(attrName, attrValue string, opts *GetByBaseOptions) string {
	return selector.Attr(attrName, textMatchOf(attrValue, opts))
}

func (f *Frame) buildRoleSelector(role string, opts *GetByRoleOptions) string {
	if opts == nil {
		return selector.Role(role, nil)
	}
	ro := &selector.RoleOptions{
		Checked:  opts.Checked,
		Disabled: opts.Disabled,
		Expanded: opts.Expanded,
		Pressed:  opts.Pressed,
		Selected: opts.Selected,
	}
	if opts.IncludeHidden != nil {
		ro.IncludeHidden = *opts.IncludeHidden
	}
	if opts.Level != nil {
		ro.Level = int(*opts.Level)
	}
	if opts.Name != nil {
		m := textMatchOf(*opts.Name, &GetByBaseOptions{Exact: opts.Exact})
		ro.Name = &m
	}
	return selector.Role(role, ro)
}

// textMatchOf reads text as a regular expression literal (/re/flags) or as
// plain text matched exactly or as a substring.
func textMatchOf(text string, opts *GetByBaseOptions) selector.TextMatch {
	if pattern, flags, ok := regexpLiteral(text); ok {
		return selector.Regexp(pattern, flags)
	}
	exact := opts != nil && opts.Exact != nil && *opts.Exact
	return selector.TextOf(text, exact)
}

func regexpLiteral(s string) (pattern, flags string, ok bool) {
	if len(s) < 3 || s[0] != '/' {
		return "", "", false
	}
	end := strings.LastIndexByte(s, '/')
	if end <= 1 {
		return "", "", false
	}
	flags = s[end+1:]
	if strings.Trim(flags, "ims") != "" {
		return "", "", false
	}
	return s[1:end], flags, true
}
