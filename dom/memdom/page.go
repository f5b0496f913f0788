package memdom

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/liuxd6825/xk6-locator/dom"
)

// Document is one loaded document. Iframe content documents are children of
// the document holding the iframe element.
type Document struct {
	ID      dom.DocumentID
	URL     string
	FrameID string

	root       *Node
	host       *Node
	superseded bool
}

// Stats counts provider calls.
type Stats struct {
	QueryAll atomic.Int64
	State    atomic.Int64
	Perform  atomic.Int64
	Release  atomic.Int64
}

// Page holds the documents of a tab and implements dom.QueryProvider.
type Page struct {
	mu sync.RWMutex

	docs    map[dom.DocumentID]*Document
	current map[string]*Document
	refs    map[dom.ElementRef]*Node
	focused *Node

	releases map[dom.ElementRef]int
	nextRef  int
	nextDoc  int

	stats Stats
}

var (
	_ dom.QueryProvider = &Page{}
	_ dom.FrameOwner    = &Page{}
)

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{
		docs:     make(map[dom.DocumentID]*Document),
		current:  make(map[string]*Document),
		refs:     make(map[dom.ElementRef]*Node),
		releases: make(map[dom.ElementRef]int),
	}
}

// Load replaces the document of frameID with a new one rooted at root and
// returns it. The previous document, if any, becomes stale. root must not
// be part of another loaded document.
func (p *Page) Load(frameID, url string, root *Node) *Document {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old := p.current[frameID]; old != nil {
		p.supersede(old)
	}
	doc := p.newDocument(frameID, url, root, nil)
	p.current[frameID] = doc

	return doc
}

// LoadFrame replaces the content document of the iframe element host with
// a new one rooted at root, owned by the child frame frameID, and returns
// it. The previous content document becomes stale.
func (p *Page) LoadFrame(frameID string, host *Node, url string, root *Node) *Document {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old := p.current[frameID]; old != nil {
		p.supersede(old)
	}
	if host.content != nil && host.content.doc != nil {
		p.supersede(host.content.doc)
	}
	host.content = root
	doc := p.newDocument(frameID, url, root, host)
	p.current[frameID] = doc

	return doc
}

// Unload marks the current document of frameID stale without replacing it,
// as happens when the frame is detached.
func (p *Page) Unload(frameID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old := p.current[frameID]; old != nil {
		p.supersede(old)
		delete(p.current, frameID)
	}
}

// Current returns the current document of frameID, or nil.
func (p *Page) Current(frameID string) *Document {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.current[frameID]
}

// Stats returns the provider call counters.
func (p *Page) Stats() *Stats {
	return &p.stats
}

// Releases returns how many times ref was released.
func (p *Page) Releases(ref dom.ElementRef) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.releases[ref]
}

// Ref returns the reference handed out for n, or "" if n was never returned
// by a query.
func (p *Page) Ref(n *Node) dom.ElementRef {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return n.ref
}

// Mutate runs fn with the page locked for writing. Use it for changes the
// dedicated helpers do not cover.
func (p *Page) Mutate(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn()
}

// SetHidden changes the visibility of n.
func (p *Page) SetHidden(n *Node, hidden bool) {
	p.Mutate(func() { n.hidden = hidden })
}

// SetDisabled changes whether n is disabled.
func (p *Page) SetDisabled(n *Node, disabled bool) {
	p.Mutate(func() { n.disabled = disabled })
}

// SetText changes the own text of n.
func (p *Page) SetText(n *Node, text string) {
	p.Mutate(func() { n.text = text })
}

// SetAttr sets an attribute of n.
func (p *Page) SetAttr(n *Node, key, value string) {
	p.Mutate(func() { n.Set(key, value) })
}

// Append adds child as the last child of parent.
func (p *Page) Append(parent, child *Node) {
	p.Mutate(func() {
		parent.appendChild(child)
		p.adopt(child, parent.doc)
	})
}

// Remove detaches n from its parent. References to n and its subtree stop
// being connected.
func (p *Page) Remove(n *Node) {
	p.Mutate(func() {
		if n.parent == nil {
			return
		}
		siblings := n.parent.children
		for i, c := range siblings {
			if c == n {
				n.parent.children = append(siblings[:i:i], siblings[i+1:]...)
				break
			}
		}
		n.parent = nil
	})
}

// Value returns the value of a form control.
func (p *Page) Value(n *Node) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return n.value
}

// Checked reports whether n is checked.
func (p *Page) Checked(n *Node) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return n.checked
}

// Focused returns the focused element, or nil.
func (p *Page) Focused() *Node {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.focused
}

// Events returns the actions performed on n, oldest first.
func (p *Page) Events(n *Node) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]string(nil), n.events...)
}

func (p *Page) newDocument(frameID, url string, root *Node, host *Node) *Document {
	p.nextDoc++
	doc := &Document{
		ID:      dom.DocumentID(fmt.Sprintf("doc-%d", p.nextDoc)),
		URL:     url,
		FrameID: frameID,
		root:    root,
		host:    host,
	}
	p.docs[doc.ID] = doc
	p.adopt(root, doc)

	return doc
}

// adopt assigns doc to the subtree of n and creates the content documents
// of the iframes in it.
func (p *Page) adopt(n *Node, doc *Document) {
	if doc == nil {
		return
	}
	n.doc = doc
	if n.content != nil && (n.content.doc == nil || n.content.doc.superseded) {
		p.newDocument(doc.FrameID, doc.URL, n.content, n)
	}
	for _, c := range n.children {
		p.adopt(c, doc)
	}
}

func (p *Page) supersede(doc *Document) {
	doc.superseded = true
	var walk func(*Node)
	walk = func(n *Node) {
		if n.content != nil && n.content.doc != nil {
			p.supersede(n.content.doc)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(doc.root)
}

// lookupDocument returns the live document id refers to.
func (p *Page) lookupDocument(id dom.DocumentID) (*Document, error) {
	doc := p.docs[id]
	if doc == nil || doc.superseded {
		return nil, dom.ErrStaleDocument
	}
	return doc, nil
}

// lookupNode returns the connected node ref refers to within doc.
func (p *Page) lookupNode(id dom.DocumentID, ref dom.ElementRef) (*Node, error) {
	if _, err := p.lookupDocument(id); err != nil {
		return nil, err
	}
	n := p.refs[ref]
	if n == nil {
		return nil, fmt.Errorf("unknown element reference %q", ref)
	}
	if n.doc == nil || n.doc.superseded {
		return nil, dom.ErrStaleDocument
	}
	if !p.connected(n) {
		return nil, dom.ErrNotConnected
	}
	return n, nil
}

// connected reports whether n can be reached from the root of its top level
// document.
func (p *Page) connected(n *Node) bool {
	for {
		for n.parent != nil {
			n = n.parent
		}
		doc := n.doc
		if doc == nil || doc.superseded || doc.root != n {
			return false
		}
		if doc.host == nil {
			return true
		}
		n = doc.host
	}
}

// visible reports whether n and all its ancestors, across iframe
// boundaries, are rendered.
func (p *Page) visible(n *Node) bool {
	if !p.connected(n) {
		return false
	}
	for x := n; x != nil; {
		if x.hiddenSelf() {
			return false
		}
		if x.parent == nil && x.doc != nil && x.doc.host != nil {
			x = x.doc.host
			continue
		}
		x = x.parent
	}
	return true
}

func (p *Page) refFor(n *Node) dom.ElementRef {
	if n.ref == "" {
		p.nextRef++
		n.ref = dom.ElementRef(fmt.Sprintf("e%d", p.nextRef))
		p.refs[n.ref] = n
	}
	return n.ref
}
