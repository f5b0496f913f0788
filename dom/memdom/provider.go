package memdom

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/xk6-locator/dom"
)

// QueryAll implements dom.QueryProvider.
func (p *Page) QueryAll(ctx context.Context, q dom.Query) ([]dom.ElementRef, error) {
	p.stats.QueryAll.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.lookupDocument(q.Document)
	if err != nil {
		return nil, err
	}
	sc := scope{roots: []*Node{doc.root}, include: true}
	if q.Root != "" {
		root, err := p.lookupNode(q.Document, q.Root)
		if err != nil {
			return nil, err
		}
		sc = scope{roots: []*Node{root}}
	}

	nodes, err := newEvaluator(p, doc).evaluate(q.Selector, sc)
	if err != nil {
		return nil, err
	}
	refs := make([]dom.ElementRef, 0, len(nodes))
	for _, n := range nodes {
		refs = append(refs, p.refFor(n))
	}

	return refs, nil
}

// State implements dom.QueryProvider.
func (p *Page) State(ctx context.Context, doc dom.DocumentID, ref dom.ElementRef, s dom.ElementState) (bool, error) {
	p.stats.State.Add(1)
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if s == dom.StateConnected {
		if _, err := p.lookupDocument(doc); err != nil {
			return false, err
		}
		n := p.refs[ref]
		return n != nil && p.connected(n), nil
	}

	n, err := p.lookupNode(doc, ref)
	if err != nil {
		return false, err
	}
	switch s {
	case dom.StateVisible:
		return p.visible(n), nil
	case dom.StateHidden:
		return !p.visible(n), nil
	case dom.StateEnabled:
		return !n.disabledSelf(), nil
	case dom.StateDisabled:
		return n.disabledSelf(), nil
	case dom.StateEditable:
		if !n.isEditableControl() && n.Tag != "select" {
			return false, errors.New("element is not an <input>, <textarea>, <select> or [contenteditable]")
		}
		_, readonly := n.attr("readonly")
		return !n.disabledSelf() && !readonly, nil
	case dom.StateChecked:
		if !n.isCheckable() {
			return false, errors.New("not a checkbox or radio button")
		}
		return n.checked, nil
	case dom.StateStable:
		if n.unstable > 0 {
			n.unstable--
			return false, nil
		}
		return true, nil
	}
	return false, fmt.Errorf("unsupported element state %v", s)
}

// ContentFrame implements dom.FrameOwner. Iframes given their content with
// Node.WithContent belong to the frame of the document holding them.
func (p *Page) ContentFrame(ctx context.Context, doc dom.DocumentID, ref dom.ElementRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	n, err := p.lookupNode(doc, ref)
	if err != nil {
		return "", err
	}
	if n.content == nil || n.content.doc == nil || n.content.doc.superseded {
		return "", dom.ErrNotFrameOwner
	}
	return n.content.doc.FrameID, nil
}

// Release implements dom.QueryProvider.
func (p *Page) Release(ctx context.Context, doc dom.DocumentID, ref dom.ElementRef) error {
	p.stats.Release.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.releases[ref]++
	return nil
}

// Perform implements dom.QueryProvider.
func (p *Page) Perform(ctx context.Context, doc dom.DocumentID, ref dom.ElementRef, a dom.Action) (any, error) {
	p.stats.Perform.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	n, err := p.lookupNode(doc, ref)
	p.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if n.onPerform != nil {
		if err := n.onPerform(ctx, a); err != nil {
			return nil, err
		}
	}
	if d := actionDelay(a); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// the hook or the delay may have changed the document
	if n, err = p.lookupNode(doc, ref); err != nil {
		return nil, err
	}
	return p.perform(n, a)
}

func actionDelay(a dom.Action) time.Duration {
	switch a := a.(type) {
	case dom.Click:
		return a.Delay
	case dom.Dblclick:
		return a.Delay
	case dom.Press:
		return a.Delay
	case dom.Type:
		return a.Delay * time.Duration(len([]rune(a.Text)))
	}
	return 0
}

func (p *Page) record(n *Node, event string) {
	n.events = append(n.events, event)
}

func (p *Page) perform(n *Node, a dom.Action) (any, error) {
	switch a := a.(type) {
	case dom.Click:
		if !a.Trial {
			count := a.ClickCount
			if count < 1 {
				count = 1
			}
			for i := 0; i < count; i++ {
				p.activate(n, "click")
			}
		}
		return nil, nil
	case dom.Dblclick:
		if !a.Trial {
			p.activate(n, "click")
			p.activate(n, "click")
			p.record(n, "dblclick")
		}
		return nil, nil
	case dom.Tap:
		if !a.Trial {
			p.activate(n, "tap")
		}
		return nil, nil
	case dom.Hover:
		if !a.Trial {
			p.record(n, "hover")
		}
		return nil, nil
	case dom.Fill:
		if !n.isEditableControl() {
			return nil, errors.New("element is not an <input>, <textarea> or [contenteditable] element")
		}
		p.focused = n
		n.value = a.Value
		p.record(n, "fill:"+a.Value)
		return nil, nil
	case dom.Press:
		p.focused = n
		p.record(n, "press:"+a.Key)
		if len([]rune(a.Key)) == 1 && n.isEditableControl() {
			n.value += a.Key
		}
		return nil, nil
	case dom.Type:
		p.focused = n
		if n.isEditableControl() {
			n.value += a.Text
		}
		p.record(n, "type:"+a.Text)
		return nil, nil
	case dom.SetChecked:
		if !n.isCheckable() {
			return nil, errors.New("not a checkbox or radio button")
		}
		if n.attrs["type"] == "radio" && !a.Checked && n.checked {
			return nil, errors.New("cannot uncheck a radio button")
		}
		if !a.Trial && n.checked != a.Checked {
			p.activate(n, "click")
		}
		return nil, nil
	case dom.SelectOption:
		return p.selectOption(n, a)
	case dom.Focus:
		p.focused = n
		p.record(n, "focus")
		return nil, nil
	case dom.Blur:
		if p.focused == n {
			p.focused = nil
		}
		p.record(n, "blur")
		return nil, nil
	case dom.ScrollIntoView:
		p.record(n, "scroll")
		return nil, nil
	case dom.DispatchEvent:
		p.record(n, "event:"+a.Type)
		if a.Type == "click" {
			p.activate(n, "")
		}
		return nil, nil
	case dom.AriaSnapshot:
		var b strings.Builder
		p.ariaSnapshot(&b, n, 0)
		return strings.TrimSuffix(b.String(), "\n"), nil
	case dom.TextContent:
		return null.StringFrom(n.textContent()), nil
	case dom.InnerText:
		return n.innerText(), nil
	case dom.InnerHTML:
		return n.innerHTML(), nil
	case dom.InputValue:
		if !n.isFormControl() {
			return nil, errors.New("node is not an <input>, <textarea> or <select> element")
		}
		return n.value, nil
	case dom.GetAttribute:
		v, ok := n.attr(a.Attr)
		return null.NewString(v, ok), nil
	case dom.BoundingBox:
		if !p.visible(n) {
			return (*dom.Rect)(nil), nil
		}
		if n.box != nil {
			r := *n.box
			return &r, nil
		}
		return &dom.Rect{Width: 100, Height: 20}, nil
	case dom.SelectText:
		p.focused = n
		p.record(n, "selectText")
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported action %T", a)
}

// activate records event and applies the default behavior of clicking n.
func (p *Page) activate(n *Node, event string) {
	if event != "" {
		p.record(n, event)
	}
	if !n.isCheckable() {
		return
	}
	if n.attrs["type"] == "radio" {
		p.uncheckRadioGroup(n)
		n.checked = true
		return
	}
	n.checked = !n.checked
}

func (p *Page) uncheckRadioGroup(n *Node) {
	name := n.attrs["name"]
	if name == "" || n.doc == nil {
		return
	}
	walk(n.doc.root, func(x *Node) {
		if x != n && x.Tag == "input" && x.attrs["type"] == "radio" && x.attrs["name"] == name {
			x.checked = false
		}
	})
}

func (p *Page) selectOption(n *Node, a dom.SelectOption) (any, error) {
	if n.Tag != "select" {
		return nil, errors.New("element is not a <select> element")
	}
	var options []*Node
	walk(n, func(x *Node) {
		if x.Tag == "option" {
			options = append(options, x)
		}
	})
	_, multiple := n.attr("multiple")

	var selected []string
	for i, o := range options {
		value, ok := o.attr("value")
		if !ok {
			value = o.textContent()
		}
		for _, want := range a.Values {
			if want.Value.Valid && want.Value.String == value ||
				want.Label.Valid && want.Label.String == strings.TrimSpace(o.textContent()) ||
				want.Index.Valid && want.Index.Int64 == int64(i) {
				selected = append(selected, value)
				break
			}
		}
		if len(selected) > 0 && !multiple {
			break
		}
	}
	if len(a.Values) > 0 && len(selected) == 0 {
		return nil, errors.New("no options matched")
	}

	n.value = strings.Join(selected, ",")
	p.record(n, "select:"+n.value)

	return selected, nil
}

func (p *Page) ariaSnapshot(b *strings.Builder, n *Node, depth int) {
	if !p.visible(n) {
		return
	}
	r := role(n)
	if r != "" {
		b.WriteString(strings.Repeat("  ", depth) + "- " + r)
		if name := accessibleName(n.doc.root, n); name != "" {
			b.WriteString(" " + strconv.Quote(name))
		}
		if n.isCheckable() && n.checked {
			b.WriteString(" [checked]")
		}
		if l := headingLevel(n); r == "heading" && l > 0 {
			b.WriteString(" [level=" + strconv.Itoa(l) + "]")
		}
		b.WriteString("\n")
		depth++
	}
	for _, c := range n.children {
		p.ariaSnapshot(b, c, depth)
	}
}
