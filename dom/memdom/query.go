package memdom

import (
	"errors"
	"fmt"
	"sort"

	"github.com/liuxd6825/xk6-locator/selector"
)

// scope is where a query part looks for elements: the descendants of roots,
// and the roots themselves when include is set.
type scope struct {
	roots   []*Node
	include bool
}

type evaluator struct {
	p     *Page
	doc   *Document
	order map[*Node]int
	css   map[string]*cssSelector
}

func newEvaluator(p *Page, doc *Document) *evaluator {
	e := &evaluator{
		p:     p,
		doc:   doc,
		order: make(map[*Node]int),
		css:   make(map[string]*cssSelector),
	}
	var index func(*Node)
	index = func(n *Node) {
		e.order[n] = len(e.order)
		for _, c := range n.children {
			index(c)
		}
		if n.content != nil {
			index(n.content)
		}
	}
	index(doc.root)

	return e
}

func (e *evaluator) evaluate(sel *selector.Selector, sc scope) ([]*Node, error) {
	if sel == nil || len(sel.Parts) == 0 {
		return nil, errors.New("empty selector")
	}
	if sel.Capture == nil || *sel.Capture == len(sel.Parts)-1 {
		return e.evalParts(sel.Parts, sc)
	}

	c := *sel.Capture
	head, err := e.evalParts(sel.Parts[:c+1], sc)
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, n := range head {
		rest, err := e.evalParts(sel.Parts[c+1:], scope{roots: []*Node{n}})
		if err != nil {
			return nil, err
		}
		if len(rest) > 0 {
			out = append(out, n)
		}
	}
	return out, nil
}

func (e *evaluator) evalParts(parts []*selector.Part, sc scope) ([]*Node, error) {
	var (
		set     []*Node
		haveSet bool
		last    = sc
		err     error
	)
	for _, part := range parts {
		switch {
		case part.IsEnterFrame():
			if !haveSet {
				return nil, errors.New("enter-frame must follow a selector matching an iframe")
			}
			var roots []*Node
			for _, n := range set {
				if n.content != nil && n.content.doc != nil && !n.content.doc.superseded {
					roots = append(roots, n.content)
				}
			}
			sc = scope{roots: roots, include: true}
			set, haveSet = nil, false
		case isFilter(part.Name):
			if !haveSet {
				set, haveSet, last = e.candidates(sc), true, sc
			}
			if set, err = e.filter(set, part, last); err != nil {
				return nil, err
			}
		default:
			base := sc
			if haveSet {
				base = scope{roots: set}
			}
			if set, err = e.query(part, base); err != nil {
				return nil, err
			}
			haveSet, last = true, base
		}
	}
	return set, nil
}

func isFilter(engine string) bool {
	switch engine {
	case selector.EngineNth, selector.EngineVisible,
		selector.EngineHas, selector.EngineHasNot,
		selector.EngineHasText, selector.EngineHasNotText,
		selector.EngineAnd, selector.EngineOr:
		return true
	}
	return false
}

// candidates returns every element in sc in document order.
func (e *evaluator) candidates(sc scope) []*Node {
	seen := make(map[*Node]bool)
	var out []*Node
	var add func(*Node)
	add = func(n *Node) {
		for _, c := range n.children {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
			add(c)
		}
	}
	for _, r := range sc.roots {
		if sc.include && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
		add(r)
	}
	e.sort(out)
	return out
}

func (e *evaluator) sort(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return e.order[nodes[i]] < e.order[nodes[j]]
	})
}

func (e *evaluator) query(part *selector.Part, base scope) ([]*Node, error) {
	if part.Name == selector.EngineChain {
		var out []*Node
		for _, r := range base.roots {
			found, err := e.evaluate(part.Nested, scope{roots: []*Node{r}, include: base.include})
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
		}
		return e.dedupe(out), nil
	}

	match, err := e.predicate(part)
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, n := range e.candidates(base) {
		if match(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (e *evaluator) dedupe(nodes []*Node) []*Node {
	seen := make(map[*Node]bool, len(nodes))
	out := nodes[:0]
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	e.sort(out)
	return out
}

// predicate returns the element test of a query engine.
func (e *evaluator) predicate(part *selector.Part) (func(*Node) bool, error) {
	switch part.Name {
	case selector.EngineCSS:
		sel, ok := e.css[part.Body]
		if !ok {
			var err error
			if sel, err = parseCSS(part.Body); err != nil {
				return nil, err
			}
			e.css[part.Body] = sel
		}
		return sel.matches, nil
	case selector.EngineID:
		return func(n *Node) bool { return n.id() == part.Body }, nil
	case selector.EngineText, selector.EngineInternalText:
		m, err := textMatcher(part.Body)
		if err != nil {
			return nil, err
		}
		return func(n *Node) bool {
			if !m(n.textContent()) {
				return false
			}
			for _, c := range n.children {
				if m(c.textContent()) {
					return false
				}
			}
			return true
		}, nil
	case selector.EngineLabel:
		m, err := textMatcher(part.Body)
		if err != nil {
			return nil, err
		}
		return func(n *Node) bool {
			if v, ok := n.attr("aria-label"); ok && m(v) {
				return true
			}
			for _, l := range labelsFor(e.docRoot(n), n) {
				if m(l) {
					return true
				}
			}
			return false
		}, nil
	case selector.EngineAttr, selector.EngineTestID:
		name, tm, err := selector.ParseAttr(part.Body)
		if err != nil {
			return nil, err
		}
		m, err := tm.Matcher()
		if err != nil {
			return nil, err
		}
		return func(n *Node) bool {
			v, ok := n.attr(name)
			return ok && m(v)
		}, nil
	case selector.EngineRole:
		return e.rolePredicate(part.Body)
	}
	return nil, fmt.Errorf("selector engine %q is not supported", part.Name)
}

func (e *evaluator) rolePredicate(body string) (func(*Node) bool, error) {
	want, opts, err := selector.ParseRole(body)
	if err != nil {
		return nil, err
	}
	var nameMatch func(string) bool
	if opts.Name != nil {
		if nameMatch, err = opts.Name.Matcher(); err != nil {
			return nil, err
		}
	}
	boolMatches := func(want *bool, got bool) bool { return want == nil || *want == got }

	return func(n *Node) bool {
		if role(n) != want {
			return false
		}
		if !opts.IncludeHidden && !e.p.visible(n) {
			return false
		}
		if !boolMatches(opts.Checked, n.checked) || !boolMatches(opts.Disabled, n.disabledSelf()) {
			return false
		}
		if !boolMatches(opts.Selected, n.attrs["aria-selected"] == "true") ||
			!boolMatches(opts.Expanded, n.attrs["aria-expanded"] == "true") ||
			!boolMatches(opts.Pressed, n.attrs["aria-pressed"] == "true") {
			return false
		}
		if opts.Level > 0 && headingLevel(n) != opts.Level {
			return false
		}
		return nameMatch == nil || nameMatch(accessibleName(e.docRoot(n), n))
	}, nil
}

func (e *evaluator) docRoot(n *Node) *Node {
	if n.doc != nil {
		return n.doc.root
	}
	return e.doc.root
}

func (e *evaluator) filter(set []*Node, part *selector.Part, last scope) ([]*Node, error) {
	switch part.Name {
	case selector.EngineNth:
		i := part.Nth()
		if i < 0 {
			i += len(set)
		}
		if i < 0 || i >= len(set) {
			return nil, nil
		}
		return []*Node{set[i]}, nil
	case selector.EngineVisible:
		want := part.Body == "true"
		return keep(set, func(n *Node) bool { return e.p.visible(n) == want }), nil
	case selector.EngineHasText, selector.EngineHasNotText:
		m, err := textMatcher(part.Body)
		if err != nil {
			return nil, err
		}
		want := part.Name == selector.EngineHasText
		return keep(set, func(n *Node) bool { return m(n.textContent()) == want }), nil
	case selector.EngineHas, selector.EngineHasNot:
		want := part.Name == selector.EngineHas
		var ferr error
		out := keep(set, func(n *Node) bool {
			found, err := e.evaluate(part.Nested, scope{roots: []*Node{n}})
			if err != nil {
				ferr = err
			}
			return (len(found) > 0) == want
		})
		return out, ferr
	case selector.EngineAnd:
		other, err := e.evaluate(part.Nested, last)
		if err != nil {
			return nil, err
		}
		in := make(map[*Node]bool, len(other))
		for _, n := range other {
			in[n] = true
		}
		return keep(set, func(n *Node) bool { return in[n] }), nil
	case selector.EngineOr:
		other, err := e.evaluate(part.Nested, last)
		if err != nil {
			return nil, err
		}
		return e.dedupe(append(append([]*Node(nil), set...), other...)), nil
	}
	return nil, fmt.Errorf("selector engine %q is not a filter", part.Name)
}

func keep(set []*Node, fn func(*Node) bool) []*Node {
	var out []*Node
	for _, n := range set {
		if fn(n) {
			out = append(out, n)
		}
	}
	return out
}

func textMatcher(body string) (func(string) bool, error) {
	tm, err := selector.ParseTextMatch(body)
	if err != nil {
		return nil, err
	}
	return tm.Matcher()
}
