package memdom

import (
	"fmt"
	"strings"
)

// cssSelector is the CSS subset memdom understands: type, universal, id,
// class and attribute selectors, a few pseudo classes, the descendant and
// child combinators and selector lists.
type cssSelector struct {
	complexes []complexSelector
}

type complexSelector struct {
	compounds   []compound
	combinators []byte
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrCond
	pseudos []string
}

type attrCond struct {
	name, op, value string
}

var supportedPseudos = map[string]bool{
	"checked":     true,
	"disabled":    true,
	"enabled":     true,
	"first-child": true,
	"last-child":  true,
}

type cssParser struct {
	src string
	pos int
}

func parseCSS(src string) (*cssSelector, error) {
	p := &cssParser{src: src}
	sel := &cssSelector{}
	for {
		cx, err := p.complex()
		if err != nil {
			return nil, err
		}
		sel.complexes = append(sel.complexes, cx)
		p.skipSpace()
		if p.eof() {
			return sel, nil
		}
		if p.src[p.pos] != ',' {
			return nil, p.errorf("unexpected %q", p.src[p.pos])
		}
		p.pos++
	}
}

func (p *cssParser) errorf(format string, args ...any) error {
	return fmt.Errorf("unsupported css selector %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *cssParser) eof() bool { return p.pos >= len(p.src) }

func (p *cssParser) skipSpace() bool {
	start := p.pos
	for !p.eof() && strings.IndexByte(" \t\n\r", p.src[p.pos]) >= 0 {
		p.pos++
	}
	return p.pos > start
}

func (p *cssParser) complex() (complexSelector, error) {
	var cx complexSelector
	p.skipSpace()
	for {
		c, err := p.compound()
		if err != nil {
			return cx, err
		}
		cx.compounds = append(cx.compounds, c)

		spaced := p.skipSpace()
		if p.eof() || p.src[p.pos] == ',' {
			return cx, nil
		}
		switch {
		case p.src[p.pos] == '>':
			p.pos++
			p.skipSpace()
			cx.combinators = append(cx.combinators, '>')
		case spaced:
			cx.combinators = append(cx.combinators, ' ')
		default:
			return cx, p.errorf("unexpected %q", p.src[p.pos])
		}
	}
}

func (p *cssParser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *cssParser) compound() (compound, error) {
	var c compound
	start := p.pos
	if !p.eof() && p.src[p.pos] == '*' {
		p.pos++
	} else {
		c.tag = strings.ToLower(p.ident())
	}
	for !p.eof() {
		switch p.src[p.pos] {
		case '#':
			p.pos++
			if c.id = p.ident(); c.id == "" {
				return c, p.errorf("empty id")
			}
		case '.':
			p.pos++
			cls := p.ident()
			if cls == "" {
				return c, p.errorf("empty class")
			}
			c.classes = append(c.classes, cls)
		case '[':
			a, err := p.attribute()
			if err != nil {
				return c, err
			}
			c.attrs = append(c.attrs, a)
		case ':':
			p.pos++
			name := p.ident()
			if !supportedPseudos[name] {
				return c, p.errorf("pseudo class :%s", name)
			}
			c.pseudos = append(c.pseudos, name)
		default:
			if p.pos == start {
				return c, p.errorf("expected a selector")
			}
			return c, nil
		}
	}
	if p.pos == start {
		return c, p.errorf("expected a selector")
	}
	return c, nil
}

func (p *cssParser) attribute() (attrCond, error) {
	var a attrCond
	p.pos++ // [
	p.skipSpace()
	if a.name = p.ident(); a.name == "" {
		return a, p.errorf("empty attribute name")
	}
	p.skipSpace()
	if p.eof() {
		return a, p.errorf("unterminated attribute selector")
	}
	if p.src[p.pos] == ']' {
		p.pos++
		return a, nil
	}
	for _, op := range []string{"=", "^=", "$=", "*=", "~="} {
		if strings.HasPrefix(p.src[p.pos:], op) {
			a.op = op
		}
	}
	if a.op == "" {
		return a, p.errorf("unknown attribute operator")
	}
	p.pos += len(a.op)
	p.skipSpace()
	if p.eof() {
		return a, p.errorf("unterminated attribute selector")
	}
	if q := p.src[p.pos]; q == '"' || q == '\'' {
		end := strings.IndexByte(p.src[p.pos+1:], q)
		if end == -1 {
			return a, p.errorf("unterminated string")
		}
		a.value = p.src[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
	} else {
		a.value = p.ident()
	}
	p.skipSpace()
	if p.eof() || p.src[p.pos] != ']' {
		return a, p.errorf("expected ]")
	}
	p.pos++
	return a, nil
}

func (s *cssSelector) matches(n *Node) bool {
	for _, cx := range s.complexes {
		if cx.matchFrom(len(cx.compounds)-1, n) {
			return true
		}
	}
	return false
}

func (cx complexSelector) matchFrom(i int, n *Node) bool {
	if !cx.compounds[i].matches(n) {
		return false
	}
	if i == 0 {
		return true
	}
	if cx.combinators[i-1] == '>' {
		return n.parent != nil && cx.matchFrom(i-1, n.parent)
	}
	for a := n.parent; a != nil; a = a.parent {
		if cx.matchFrom(i-1, a) {
			return true
		}
	}
	return false
}

func (c compound) matches(n *Node) bool {
	if c.tag != "" && c.tag != n.Tag {
		return false
	}
	if c.id != "" && n.id() != c.id {
		return false
	}
	for _, cls := range c.classes {
		if !containsString(n.classes(), cls) {
			return false
		}
	}
	for _, a := range c.attrs {
		if !a.matches(n) {
			return false
		}
	}
	for _, ps := range c.pseudos {
		if !pseudoMatches(ps, n) {
			return false
		}
	}
	return true
}

func (a attrCond) matches(n *Node) bool {
	v, ok := n.attr(a.name)
	if !ok {
		return false
	}
	switch a.op {
	case "":
		return true
	case "=":
		return v == a.value
	case "^=":
		return a.value != "" && strings.HasPrefix(v, a.value)
	case "$=":
		return a.value != "" && strings.HasSuffix(v, a.value)
	case "*=":
		return a.value != "" && strings.Contains(v, a.value)
	case "~=":
		return containsString(strings.Fields(v), a.value)
	}
	return false
}

func pseudoMatches(name string, n *Node) bool {
	switch name {
	case "checked":
		return n.checked
	case "disabled":
		return n.disabledSelf()
	case "enabled":
		return !n.disabledSelf()
	case "first-child":
		return n.parent != nil && n.parent.children[0] == n
	case "last-child":
		return n.parent != nil && n.parent.children[len(n.parent.children)-1] == n
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
