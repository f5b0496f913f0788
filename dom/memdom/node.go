// Package memdom is an in-memory document tree implementing
// dom.QueryProvider. Documents are assembled from nodes in code and can be
// mutated while waits are in flight, which makes it a deterministic stand-in
// for a browser tab in tests and demos.
package memdom

import (
	"context"
	"sort"
	"strings"

	"github.com/liuxd6825/xk6-locator/dom"
)

// Node is an element of a memdom document. Build trees with E and the
// chaining setters before loading them into a Page; afterwards mutate them
// through the Page so that concurrent queries observe consistent state.
type Node struct {
	Tag   string
	attrs map[string]string
	text  string

	children []*Node
	parent   *Node
	doc      *Document

	hidden   bool
	disabled bool
	checked  bool
	value    string
	unstable int
	box      *dom.Rect

	content   *Node
	onPerform func(ctx context.Context, a dom.Action) error

	ref    dom.ElementRef
	events []string
}

// E creates an element with the given children.
func E(tag string, children ...*Node) *Node {
	n := &Node{Tag: strings.ToLower(tag), attrs: make(map[string]string)}
	for _, c := range children {
		n.appendChild(c)
	}
	return n
}

// Set sets an attribute.
func (n *Node) Set(key, value string) *Node {
	n.attrs[key] = value
	if key == "value" {
		n.value = value
	}
	return n
}

// WithText sets the text the element holds before its children.
func (n *Node) WithText(s string) *Node {
	n.text = s
	return n
}

// WithValue sets the value of a form control.
func (n *Node) WithValue(v string) *Node {
	n.value = v
	return n
}

// Hide makes the element and its subtree invisible.
func (n *Node) Hide() *Node {
	n.hidden = true
	return n
}

// Disable disables the element.
func (n *Node) Disable() *Node {
	n.disabled = true
	return n
}

// Check checks a checkbox or radio button.
func (n *Node) Check() *Node {
	n.checked = true
	return n
}

// Unstable makes the next checks for the stable state fail.
func (n *Node) Unstable(checks int) *Node {
	n.unstable = checks
	return n
}

// WithBox sets the bounding box reported for the element.
func (n *Node) WithBox(r dom.Rect) *Node {
	n.box = &r
	return n
}

// WithContent sets the content document root of an iframe element.
func (n *Node) WithContent(root *Node) *Node {
	n.content = root
	return n
}

// OnPerform installs a hook called before every action on the element. A
// non-nil error is returned to the caller instead of performing the action.
// The hook runs without the page lock held and may mutate the page.
func (n *Node) OnPerform(fn func(ctx context.Context, a dom.Action) error) *Node {
	n.onPerform = fn
	return n
}

func (n *Node) appendChild(c *Node) {
	c.parent = n
	n.children = append(n.children, c)
}

func (n *Node) attr(key string) (string, bool) {
	v, ok := n.attrs[key]
	return v, ok
}

func (n *Node) id() string {
	return n.attrs["id"]
}

func (n *Node) classes() []string {
	return strings.Fields(n.attrs["class"])
}

// textContent concatenates the text of the element and its descendants.
func (n *Node) textContent() string {
	var b strings.Builder
	var walk func(*Node)
	walk = func(x *Node) {
		b.WriteString(x.text)
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// innerText is like textContent but skips hidden subtrees and separates
// elements with spaces.
func (n *Node) innerText() string {
	var parts []string
	var walk func(*Node)
	walk = func(x *Node) {
		if x.hiddenSelf() {
			return
		}
		if t := strings.TrimSpace(x.text); t != "" {
			parts = append(parts, t)
		}
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func (n *Node) innerHTML() string {
	var b strings.Builder
	b.WriteString(escapeText(n.text))
	for _, c := range n.children {
		c.writeHTML(&b)
	}
	return b.String()
}

func (n *Node) writeHTML(b *strings.Builder) {
	b.WriteString("<" + n.Tag)
	keys := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" " + k + `="` + escapeAttr(n.attrs[k]) + `"`)
	}
	b.WriteString(">")
	b.WriteString(n.innerHTML())
	b.WriteString("</" + n.Tag + ">")
}

func (n *Node) hiddenSelf() bool {
	if n.hidden {
		return true
	}
	_, ok := n.attrs["hidden"]
	return ok
}

func (n *Node) disabledSelf() bool {
	if n.disabled {
		return true
	}
	_, ok := n.attrs["disabled"]
	return ok
}

func (n *Node) isCheckable() bool {
	if n.Tag == "input" {
		t := n.attrs["type"]
		return t == "checkbox" || t == "radio"
	}
	r := n.attrs["role"]
	return r == "checkbox" || r == "radio" || r == "switch"
}

func (n *Node) isFormControl() bool {
	switch n.Tag {
	case "input", "textarea", "select":
		return true
	}
	return false
}

func (n *Node) isEditableControl() bool {
	if n.Tag == "input" {
		switch n.attrs["type"] {
		case "checkbox", "radio", "button", "submit", "reset", "image", "file", "hidden":
			return false
		}
		return true
	}
	if n.Tag == "textarea" {
		return true
	}
	v, ok := n.attrs["contenteditable"]
	return ok && v != "false"
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", `"`, "&quot;")
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }
