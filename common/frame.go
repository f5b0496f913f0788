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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/log"
	"github.com/liuxd6825/xk6-locator/selector"
)

// documentInfo is one document a frame has shown. Its context is cancelled
// with a *DisconnectedError once the document is superseded.
type documentInfo struct {
	id     dom.DocumentID
	url    string
	ctx    context.Context
	cancel context.CancelCauseFunc
}

func newDocumentInfo(id dom.DocumentID, url string) *documentInfo {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &documentInfo{id: id, url: url, ctx: ctx, cancel: cancel}
}

func (d *documentInfo) supersede(reason string) {
	d.cancel(&DisconnectedError{Reason: reason, DocumentID: d.id})
}

func (d *documentInfo) err() error {
	if d.ctx.Err() == nil {
		return nil
	}
	return context.Cause(d.ctx)
}

// bind returns a context that is also cancelled once d is superseded.
func (d *documentInfo) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	bctx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(d.ctx, func() {
		cancel(context.Cause(d.ctx))
	})
	return bctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// Frame is a single browsing context of a tab. It tracks the document it
// currently shows and resolves selectors against it.
type Frame struct {
	ctx     context.Context
	manager *FrameManager
	parent  *Frame
	id      string
	log     *log.Logger

	mu        sync.RWMutex
	state     FrameState
	doc       *documentInfo
	children  map[string]*Frame
	docReady  chan struct{}
	readyOnce sync.Once
}

// NewFrame creates a new frame in the loading state.
func NewFrame(ctx context.Context, m *FrameManager, parentFrame *Frame, frameID string, l *log.Logger) *Frame {
	if l.DebugMode() {
		var pfid string
		if parentFrame != nil {
			pfid = parentFrame.ID()
		}
		l.Debugf("NewFrame", "fid:%s pfid:%s", frameID, pfid)
	}

	return &Frame{
		ctx:      ctx,
		manager:  m,
		parent:   parentFrame,
		id:       frameID,
		log:      l,
		state:    FrameStateLoading,
		children: make(map[string]*Frame),
		docReady: make(chan struct{}),
	}
}

// ID returns the frame id.
func (f *Frame) ID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.id
}

func (f *Frame) setID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.id = id
}

// TabID returns the id of the tab the frame belongs to.
func (f *Frame) TabID() string { return f.manager.tabID }

// Manager returns the frame manager of the frame's tab.
func (f *Frame) Manager() *FrameManager { return f.manager }

// ParentFrame returns the parent frame, or nil for the main frame.
func (f *Frame) ParentFrame() *Frame { return f.parent }

// ChildFrames returns the attached child frames.
func (f *Frame) ChildFrames() []*Frame {
	f.mu.RLock()
	defer f.mu.RUnlock()

	l := make([]*Frame, 0, len(f.children))
	for _, child := range f.children {
		l = append(l, child)
	}
	return l
}

func (f *Frame) addChildFrame(child *Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.children[child.ID()] = child
}

func (f *Frame) removeChildFrame(child *Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.children, child.ID())
}

// URL returns the URL of the current document.
func (f *Frame) URL() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.doc == nil {
		return ""
	}
	return f.doc.url
}

// DocumentID returns the id of the current document, or "" while loading.
func (f *Frame) DocumentID() dom.DocumentID {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.doc == nil {
		return ""
	}
	return f.doc.id
}

// State returns the lifecycle state of the frame.
func (f *Frame) State() FrameState {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.state
}

// IsDetached reports whether the frame was removed from its tab.
func (f *Frame) IsDetached() bool {
	return f.State() == FrameStateDetached
}

func (f *Frame) event(newDoc bool) *FrameEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ev := &FrameEvent{Frame: f, State: f.state, NewDocument: newDoc}
	if f.doc != nil {
		ev.DocumentID = string(f.doc.id)
		ev.URL = f.doc.url
	}
	return ev
}

// startNavigation moves an active frame to navigating. The current document
// stays usable until the new one commits.
func (f *Frame) startNavigation() {
	f.mu.Lock()
	if f.state != FrameStateActive {
		f.mu.Unlock()
		return
	}
	f.state = FrameStateNavigating
	f.mu.Unlock()

	f.log.Debugf("Frame:startNavigation", "fid:%s furl:%q", f.ID(), f.URL())
	f.manager.emit(EventFrameStateChanged, f.event(false))
}

// abortNavigation returns a navigating frame to its current document.
func (f *Frame) abortNavigation() {
	f.mu.Lock()
	if f.state != FrameStateNavigating {
		f.mu.Unlock()
		return
	}
	f.state = FrameStateActive
	f.mu.Unlock()

	f.log.Debugf("Frame:abortNavigation", "fid:%s furl:%q", f.ID(), f.URL())
	f.manager.emit(EventFrameStateChanged, f.event(false))
}

// navigated commits docID as the current document. A different id
// supersedes the previous document; the same id only updates the URL.
// It reports whether a new document was committed.
func (f *Frame) navigated(docID dom.DocumentID, url string) bool {
	f.mu.Lock()
	if f.state == FrameStateDetached {
		f.mu.Unlock()
		return false
	}
	var (
		old    *documentInfo
		newDoc = f.doc == nil || f.doc.id != docID
	)
	if newDoc {
		old = f.doc
		f.doc = newDocumentInfo(docID, url)
	} else {
		f.doc.url = url
	}
	f.state = FrameStateActive
	f.mu.Unlock()

	if old != nil {
		old.supersede(ReasonDocumentNavigated)
	}
	f.readyOnce.Do(func() { close(f.docReady) })

	f.log.Debugf("Frame:navigated", "fid:%s furl:%q doc:%s new:%t", f.ID(), url, docID, newDoc)
	f.manager.emit(EventFrameNavigated, f.event(newDoc))

	return newDoc
}

// detach supersedes the current document for good.
func (f *Frame) detach() {
	f.mu.Lock()
	if f.state == FrameStateDetached {
		f.mu.Unlock()
		return
	}
	f.state = FrameStateDetached
	doc := f.doc
	f.mu.Unlock()

	if doc != nil {
		doc.supersede(ReasonFrameDetached)
	}
	f.readyOnce.Do(func() { close(f.docReady) })
	if f.parent != nil {
		f.parent.removeChildFrame(f)
	}

	f.log.Debugf("Frame:detach", "fid:%s", f.ID())
	f.manager.emit(EventFrameDetached, f.event(false))
}

// awaitDocument returns the current document, waiting for the first one
// while the frame is loading.
func (f *Frame) awaitDocument(p *Progress) (*documentInfo, error) {
	for {
		f.mu.RLock()
		state, doc := f.state, f.doc
		f.mu.RUnlock()

		switch {
		case state == FrameStateDetached:
			return nil, &DisconnectedError{Reason: ReasonFrameDetached}
		case doc != nil:
			return doc, nil
		}

		_, err := Race(p, func(ctx context.Context) (struct{}, error) {
			select {
			case <-f.docReady:
				return struct{}{}, nil
			case <-ctx.Done():
				return struct{}{}, ctx.Err()
			}
		})
		if err != nil {
			return nil, err
		}
	}
}

func (f *Frame) provider() dom.QueryProvider { return f.manager.provider }

func (f *Frame) defaultTimeout() time.Duration {
	return f.manager.timeoutSettings.timeout()
}

func (f *Frame) navigationTimeout() time.Duration {
	return f.manager.timeoutSettings.navigationTimeout()
}

func (f *Frame) timeoutOr(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return f.defaultTimeout()
}

// providerError turns a provider failure into the engine's error kinds.
func (f *Frame) providerError(doc *documentInfo, err error) error {
	if derr := doc.err(); derr != nil {
		return derr
	}
	switch {
	case errors.Is(err, dom.ErrStaleDocument):
		return &DisconnectedError{Reason: ReasonDocumentNavigated, DocumentID: doc.id}
	case errors.Is(err, dom.ErrNotConnected):
		return errNotConnected
	}
	return err
}

// release hands ref back to the provider. Failures are only logged.
func (f *Frame) release(doc *documentInfo, refs ...dom.ElementRef) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := f.provider().Release(context.WithoutCancel(f.ctx), doc.id, ref); err != nil {
			f.log.Debugf("Frame:release", "fid:%s doc:%s ref:%s err:%v", f.ID(), doc.id, ref, err)
		}
	}
}

func (f *Frame) rootRef(doc *documentInfo, root *ElementHandle) (dom.ElementRef, error) {
	if root == nil {
		return "", nil
	}
	if root.Disposed() {
		return "", ErrHandleDisposed
	}
	if root.doc != doc {
		return "", &DisconnectedError{Reason: ReasonDocumentNavigated, DocumentID: root.doc.id}
	}
	if err := doc.err(); err != nil {
		return "", err
	}
	return root.ref, nil
}

func parseSelector(sel string) (*selector.Selector, error) {
	parsed, err := selector.Parse(sel)
	if err != nil {
		return nil, &ValidationError{Op: "parsing selector", Err: err}
	}
	return parsed, nil
}

// waitForSelector resolves sel against the current document until opts.State
// holds. It is bound to the document current when it starts: if that
// document is superseded the wait fails with a *DisconnectedError. In strict
// mode more than one match fails right away with an *AmbiguousMatchError.
//
// Parts following an iframe are resolved in the child frame it hosts, bound
// to the child's document.
func (f *Frame) waitForSelector(
	p *Progress, sel string, shouldLog bool, opts *FrameWaitForSelectorOptions,
) (*ElementHandle, error) {
	if opts == nil {
		opts = &FrameWaitForSelectorOptions{}
	}
	parsed, err := parseSelector(sel)
	if err != nil {
		return nil, err
	}
	if shouldLog {
		p.Log("waiting for %s to be %s", describeSelector(sel), opts.State)
	}

	waitFrame := opts.State == DOMElementStateAttached || opts.State == DOMElementStateVisible
	frame, parsed, root, err := f.enterFrames(p, parsed, opts.Root, opts.Strict, waitFrame)
	if err != nil {
		var nf *ElementNotFoundError
		if errors.As(err, &nf) {
			return nil, &ElementNotFoundError{Selector: sel, Timeout: nf.Timeout}
		}
		return nil, err
	}
	if frame == nil {
		return nil, nil
	}
	o := *opts
	o.Root = root

	return frame.waitForParsed(p, sel, parsed, shouldLog, &o)
}

func (f *Frame) waitForParsed(
	p *Progress, sel string, parsed *selector.Selector, shouldLog bool, opts *FrameWaitForSelectorOptions,
) (*ElementHandle, error) {
	doc, err := f.awaitDocument(p)
	if err != nil {
		return nil, err
	}
	root, err := f.rootRef(doc, opts.Root)
	if err != nil {
		return nil, err
	}

	var (
		q = dom.Query{
			Selector: parsed,
			Root:     root,
			World:    dom.WorldUtility,
			Document: doc.id,
		}
		what      = fmt.Sprintf("%s to be %s", describeSelector(sel), opts.State)
		matched   atomic.Bool
		lastCount = -1
	)
	release := func(h *ElementHandle) {
		if h != nil {
			h.dispose()
		}
	}
	h, err := PollRelease(p, what, f.manager.opts.pollOptions(), release, func(ctx context.Context) (*ElementHandle, bool, error) {
		ctx, unbind := doc.bind(ctx)
		defer unbind()

		if err := doc.err(); err != nil {
			return nil, false, err
		}
		refs, err := f.provider().QueryAll(ctx, q)
		if err != nil {
			return nil, false, f.providerError(doc, err)
		}
		if shouldLog && len(refs) != lastCount {
			p.Log("  locator resolved to %d element(s)", len(refs))
		}
		lastCount = len(refs)
		if len(refs) > 0 {
			matched.Store(true)
		}
		if opts.Strict && len(refs) > 1 {
			f.release(doc, refs...)
			return nil, false, &AmbiguousMatchError{Selector: sel, Count: len(refs)}
		}

		var ref dom.ElementRef
		if len(refs) > 0 {
			ref = refs[0]
			f.release(doc, refs[1:]...)
		}
		done, err := f.elementStateReached(ctx, doc, ref, opts.State)
		if err != nil {
			f.release(doc, ref)
			return nil, false, err
		}
		if !done || ref == "" || opts.OmitReturnValue {
			f.release(doc, ref)
			return nil, done, nil
		}
		if err := ctx.Err(); err != nil {
			f.release(doc, ref)
			return nil, false, err
		}
		return newElementHandle(f, doc, ref), true, nil
	})
	if err != nil {
		var te *TimeoutError
		if errors.As(err, &te) && !matched.Load() &&
			(opts.State == DOMElementStateAttached || opts.State == DOMElementStateVisible) {
			return nil, &ElementNotFoundError{Selector: sel, Timeout: te}
		}
		return nil, err
	}

	return h, nil
}

func (f *Frame) elementStateReached(
	ctx context.Context, doc *documentInfo, ref dom.ElementRef, state DOMElementState,
) (bool, error) {
	switch state {
	case DOMElementStateAttached:
		return ref != "", nil
	case DOMElementStateDetached:
		return ref == "", nil
	case DOMElementStateVisible:
		if ref == "" {
			return false, nil
		}
		ok, err := f.provider().State(ctx, doc.id, ref, dom.StateVisible)
		if errors.Is(err, dom.ErrNotConnected) {
			return false, nil
		}
		if err != nil {
			return false, f.providerError(doc, err)
		}
		return ok, nil
	case DOMElementStateHidden:
		if ref == "" {
			return true, nil
		}
		ok, err := f.provider().State(ctx, doc.id, ref, dom.StateHidden)
		if errors.Is(err, dom.ErrNotConnected) {
			return true, nil
		}
		if err != nil {
			return false, f.providerError(doc, err)
		}
		return ok, nil
	}
	return false, fmt.Errorf("unknown element state %d", state)
}

// enterFrames resolves the iframes named by the enter-frame parts of parsed
// to the child frames they host. It returns the frame the remaining parts
// resolve in, with the root to resolve them from. Iframes whose frame the
// manager does not know are left to the provider together with the rest of
// the selector. Without wait, a nil frame means no iframe matched.
func (f *Frame) enterFrames(
	p *Progress, parsed *selector.Selector, root *ElementHandle, strict, wait bool,
) (*Frame, *selector.Selector, *ElementHandle, error) {
	owner, ok := f.provider().(dom.FrameOwner)
	if !ok {
		return f, parsed, root, nil
	}

	frame := f
	for {
		outer, inner, err := parsed.SplitFrame()
		if err != nil {
			return nil, nil, nil, &ValidationError{Op: "parsing selector", Err: err}
		}
		if outer == nil {
			return frame, parsed, root, nil
		}
		child, found, err := frame.contentFrame(p, owner, outer, root, strict, wait)
		switch {
		case err != nil:
			return nil, nil, nil, err
		case !found:
			return nil, nil, nil, nil
		case child == nil:
			return frame, parsed, root, nil
		}
		p.Log("  entering frame %s", child.ID())
		frame, parsed, root = child, inner, nil
	}
}

// contentFrame returns the child frame hosted by the iframe sel matches. The
// frame is nil when the manager does not know it as a child of f.
func (f *Frame) contentFrame(
	p *Progress, owner dom.FrameOwner, sel *selector.Selector, root *ElementHandle, strict, wait bool,
) (*Frame, bool, error) {
	var h *ElementHandle
	if wait {
		var err error
		h, err = f.waitForParsed(p, sel.String(), sel, false, &FrameWaitForSelectorOptions{
			State:  DOMElementStateAttached,
			Strict: strict,
			Root:   root,
		})
		if err != nil {
			return nil, false, err
		}
	} else {
		doc, refs, err := f.queryParsed(p, sel, root)
		if err != nil {
			return nil, false, err
		}
		if len(refs) == 0 {
			return nil, false, nil
		}
		if strict && len(refs) > 1 {
			f.release(doc, refs...)
			return nil, false, &AmbiguousMatchError{Selector: sel.String(), Count: len(refs)}
		}
		f.release(doc, refs[1:]...)
		h = newElementHandle(f, doc, refs[0])
	}
	defer h.dispose()

	id, err := Race(p, func(ctx context.Context) (string, error) {
		ctx, unbind := h.doc.bind(ctx)
		defer unbind()

		id, err := owner.ContentFrame(ctx, h.doc.id, h.ref)
		if err != nil {
			return "", f.providerError(h.doc, err)
		}
		return id, nil
	})
	if errors.Is(err, dom.ErrNotFrameOwner) {
		return nil, false, &ValidationError{
			Op:  "entering frame",
			Msg: fmt.Sprintf("%s does not match an iframe", describeSelector(sel.String())),
		}
	}
	if err != nil {
		return nil, false, err
	}

	child, ok := f.manager.Frame(id)
	if !ok || child == f || child.ParentFrame() != f {
		return nil, true, nil
	}
	return child, true, nil
}

// queryAll resolves sel once, without waiting for matches. The elements
// belong to the returned frame, which differs from f when sel enters a
// child frame.
func (f *Frame) queryAll(p *Progress, sel string, root *ElementHandle) (*Frame, *documentInfo, []dom.ElementRef, error) {
	parsed, err := parseSelector(sel)
	if err != nil {
		return nil, nil, nil, err
	}
	frame, parsed, root, err := f.enterFrames(p, parsed, root, false, false)
	if err != nil {
		return nil, nil, nil, err
	}
	if frame == nil {
		return f, nil, nil, nil
	}
	doc, refs, err := frame.queryParsed(p, parsed, root)
	if err != nil {
		return nil, nil, nil, err
	}
	return frame, doc, refs, nil
}

func (f *Frame) queryParsed(p *Progress, parsed *selector.Selector, root *ElementHandle) (*documentInfo, []dom.ElementRef, error) {
	doc, err := f.awaitDocument(p)
	if err != nil {
		return nil, nil, err
	}
	rootRef, err := f.rootRef(doc, root)
	if err != nil {
		return nil, nil, err
	}
	q := dom.Query{Selector: parsed, Root: rootRef, World: dom.WorldMain, Document: doc.id}
	release := func(refs []dom.ElementRef) { f.release(doc, refs...) }
	refs, err := RaceRelease(p, release, func(ctx context.Context) ([]dom.ElementRef, error) {
		ctx, unbind := doc.bind(ctx)
		defer unbind()

		refs, err := f.provider().QueryAll(ctx, q)
		if err != nil {
			return nil, f.providerError(doc, err)
		}
		return refs, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return doc, refs, nil
}

func (f *Frame) count(p *Progress, sel string) (int, error) {
	frame, doc, refs, err := f.queryAll(p, sel, nil)
	if err != nil {
		return 0, err
	}
	frame.release(doc, refs...)
	return len(refs), nil
}

func (f *Frame) handles(p *Progress, sel string, root *ElementHandle) ([]*ElementHandle, error) {
	frame, doc, refs, err := f.queryAll(p, sel, root)
	if err != nil {
		return nil, err
	}
	hs := make([]*ElementHandle, 0, len(refs))
	for _, ref := range refs {
		hs = append(hs, newElementHandle(frame, doc, ref))
	}
	return hs, nil
}

// WaitForSelector waits for sel to reach opts.State and returns a handle to
// the matched element. The handle is nil for the detached and hidden states
// when no element matches, or when opts.OmitReturnValue is set.
func (f *Frame) WaitForSelector(sel string, opts *FrameWaitForSelectorOptions) (*ElementHandle, error) {
	f.log.Debugf("Frame:WaitForSelector", "fid:%s furl:%q sel:%q opts:%+v", f.ID(), f.URL(), sel, opts)

	if opts == nil {
		opts = &FrameWaitForSelectorOptions{}
	}
	if opts.Timeout < 0 {
		return nil, &ValidationError{Op: "waiting for selector", Msg: fmt.Sprintf("timeout must not be negative, got %s", opts.Timeout)}
	}
	p := NewProgress(f.ctx, f.timeoutOr(opts.Timeout), f.log)
	defer p.Done()

	h, err := f.waitForSelector(p, sel, true, opts)
	if err != nil {
		return nil, newActionError("waiting for selector", sel, err)
	}
	return h, nil
}

// Query returns a handle to the first element matching sel, or nil.
func (f *Frame) Query(sel string) (*ElementHandle, error) {
	f.log.Debugf("Frame:Query", "fid:%s furl:%q sel:%q", f.ID(), f.URL(), sel)

	p := NewProgress(f.ctx, f.defaultTimeout(), f.log)
	defer p.Done()

	frame, doc, refs, err := f.queryAll(p, sel, nil)
	if err != nil {
		return nil, newActionError("querying", sel, err)
	}
	if len(refs) == 0 {
		return nil, nil
	}
	frame.release(doc, refs[1:]...)
	return newElementHandle(frame, doc, refs[0]), nil
}

// QueryAll returns handles to every element matching sel.
func (f *Frame) QueryAll(sel string) ([]*ElementHandle, error) {
	f.log.Debugf("Frame:QueryAll", "fid:%s furl:%q sel:%q", f.ID(), f.URL(), sel)

	p := NewProgress(f.ctx, f.defaultTimeout(), f.log)
	defer p.Done()

	hs, err := f.handles(p, sel, nil)
	if err != nil {
		return nil, newActionError("querying all", sel, err)
	}
	return hs, nil
}

// Count returns the number of elements matching sel without waiting.
func (f *Frame) Count(sel string) (int, error) {
	f.log.Debugf("Frame:Count", "fid:%s furl:%q sel:%q", f.ID(), f.URL(), sel)

	p := NewProgress(f.ctx, f.defaultTimeout(), f.log)
	defer p.Done()

	n, err := f.count(p, sel)
	if err != nil {
		return 0, newActionError("counting", sel, err)
	}
	return n, nil
}

// Locator creates and returns a new locator for this frame.
func (f *Frame) Locator(sel string, opts *LocatorOptions) *Locator {
	f.log.Debugf("Frame:Locator", "fid:%s furl:%q sel:%q opts:%+v", f.ID(), f.URL(), sel, opts)

	return NewLocator(f.ctx, opts, sel, f, f.log)
}

// FrameLocator returns a frame locator for the iframe matching sel.
func (f *Frame) FrameLocator(sel string) *FrameLocator {
	f.log.Debugf("Frame:FrameLocator", "fid:%s furl:%q sel:%q", f.ID(), f.URL(), sel)

	return NewFrameLocator(f.ctx, sel, f, f.log)
}

// GetByAltText returns a locator for elements with the given alt text.
func (f *Frame) GetByAltText(alt string, opts *GetByBaseOptions) *Locator {
	return f.Locator(f.buildAttributeSelector("alt", alt, opts), nil)
}

// GetByLabel returns a locator for form controls with the given label.
func (f *Frame) GetByLabel(label string, opts *GetByBaseOptions) *Locator {
	return f.Locator(f.buildLabelSelector(label, opts), nil)
}

// GetByPlaceholder returns a locator for inputs with the given placeholder.
func (f *Frame) GetByPlaceholder(placeholder string, opts *GetByBaseOptions) *Locator {
	return f.Locator(f.buildAttributeSelector("placeholder", placeholder, opts), nil)
}

// GetByRole returns a locator for elements with the given ARIA role.
func (f *Frame) GetByRole(role string, opts *GetByRoleOptions) *Locator {
	return f.Locator(f.buildRoleSelector(role, opts), nil)
}

// GetByTestID returns a locator for elements with the given test id.
func (f *Frame) GetByTestID(testID string) *Locator {
	return f.Locator(f.buildTestIDSelector(testID), nil)
}

// GetByText returns a locator for elements containing the given text.
func (f *Frame) GetByText(text string, opts *GetByBaseOptions) *Locator {
	return f.Locator(f.buildTextSelector(text, opts), nil)
}

// GetByTitle returns a locator for elements with the given title.
func (f *Frame) GetByTitle(title string, opts *GetByBaseOptions) *Locator {
	return f.Locator(f.buildAttributeSelector("title", title, opts), nil)
}

// WaitForNavigation waits for the frame to commit a new document.
func (f *Frame) WaitForNavigation(ctx context.Context, timeout time.Duration) (*FrameEvent, error) {
	return f.ExpectNavigation(ctx, timeout, nil)
}

// ExpectNavigation runs trigger and waits for the new document it causes
// the frame to commit. A non-positive timeout uses the default navigation
// timeout.
func (f *Frame) ExpectNavigation(ctx context.Context, timeout time.Duration, trigger func() error) (*FrameEvent, error) {
	f.log.Debugf("Frame:ExpectNavigation", "fid:%s furl:%q timeout:%s", f.ID(), f.URL(), timeout)

	if f.IsDetached() {
		return nil, ErrFrameDetached
	}
	if timeout <= 0 {
		timeout = f.navigationTimeout()
	}
	p := NewProgress(ctx, timeout, f.log)
	defer p.Done()

	ch, cancel := waitForEvent(
		p.Context(), f.manager, []string{EventFrameNavigated, EventFrameDetached},
		func(data any) bool {
			ev, ok := data.(*FrameEvent)
			return ok && ev.Frame == f && (ev.NewDocument || ev.State == FrameStateDetached)
		},
	)
	defer cancel()

	p.Log("waiting for navigation of frame %s", f.ID())
	if trigger != nil {
		if err := trigger(); err != nil {
			return nil, fmt.Errorf("triggering navigation: %w", err)
		}
	}
	p.setWaiting("navigation")
	ev, err := Race(p, func(ctx context.Context) (*FrameEvent, error) {
		select {
		case data := <-ch:
			ev, _ := data.(*FrameEvent)
			return ev, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	if err != nil {
		return nil, err
	}
	if ev.State == FrameStateDetached {
		return nil, &DisconnectedError{Reason: ReasonFrameDetached}
	}
	return ev, nil
}

func describeSelector(sel string) string {
	return fmt.Sprintf("locator(%q)", sel)
}
