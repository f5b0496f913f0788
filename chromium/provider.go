package chromium

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/tidwall/gjson"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/log"
)

//go:embed js/injected.js
var injectedScript string

const (
	// utilityWorldName names the isolated world queries run in.
	utilityWorldName = "__xk6_locator_utility__"
	injectedGlobal   = "__xk6_locator"
)

var (
	_ dom.QueryProvider = &Provider{}
	_ dom.FrameOwner    = &Provider{}

	errContextGone = errors.New("execution context is gone")
)

type execContext struct {
	id        cdpruntime.ExecutionContextID
	installed bool
}

// frameDocument is what the provider knows about the current document of a
// frame.
type frameDocument struct {
	doc      dom.DocumentID
	main     *execContext
	utility  *execContext
	creating bool
}

// Provider implements dom.QueryProvider against a Chromium tab over the
// DevTools protocol. Selectors are evaluated by a script injected in each
// execution context; element refs are only valid in the world that
// produced them.
//
// The provider learns about documents and execution contexts from the tab
// events it is fed by Tab.
type Provider struct {
	executor cdp.Executor
	logger   *log.Logger

	mu      sync.Mutex
	frames  map[cdp.FrameID]*frameDocument
	docs    map[dom.DocumentID]cdp.FrameID
	changed chan struct{}
}

// NewProvider returns a provider sending its commands through executor.
func NewProvider(executor cdp.Executor, logger *log.Logger) *Provider {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &Provider{
		executor: executor,
		logger:   logger,
		frames:   make(map[cdp.FrameID]*frameDocument),
		docs:     make(map[dom.DocumentID]cdp.FrameID),
		changed:  make(chan struct{}),
	}
}

// broadcast wakes up every call waiting for an execution context. It must
// be called with mu held.
func (p *Provider) broadcast() {
	close(p.changed)
	p.changed = make(chan struct{})
}

func (p *Provider) frame(id cdp.FrameID) *frameDocument {
	fd, ok := p.frames[id]
	if !ok {
		fd = &frameDocument{}
		p.frames[id] = fd
	}
	return fd
}

// frameNavigated records doc as the current document of frame id.
func (p *Provider) frameNavigated(id cdp.FrameID, doc dom.DocumentID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fd := p.frame(id)
	if fd.doc == doc {
		return
	}
	p.logger.Debugf("Provider:frameNavigated", "fid:%s doc:%s prev:%s", id, doc, fd.doc)
	// Contexts reported before the first document of a frame belong to it.
	if fd.doc != "" {
		delete(p.docs, fd.doc)
		fd.main, fd.utility, fd.creating = nil, nil, false
	}
	fd.doc = doc
	p.docs[doc] = id
	p.broadcast()
}

func (p *Provider) frameDetached(id cdp.FrameID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fd, ok := p.frames[id]; ok {
		delete(p.docs, fd.doc)
		delete(p.frames, id)
	}
	p.broadcast()
}

func (p *Provider) contextCreated(desc *cdpruntime.ExecutionContextDescription) {
	aux := gjson.ParseBytes(desc.AuxData)
	frameID := cdp.FrameID(aux.Get("frameId").String())
	if frameID == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fd := p.frame(frameID)
	switch {
	case aux.Get("isDefault").Bool():
		fd.main = &execContext{id: desc.ID}
	case desc.Name == utilityWorldName:
		fd.utility = &execContext{id: desc.ID}
	default:
		return
	}
	p.logger.Debugf("Provider:contextCreated", "fid:%s ctxid:%d name:%q", frameID, desc.ID, desc.Name)
	p.broadcast()
}

func (p *Provider) contextDestroyed(id cdpruntime.ExecutionContextID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, fd := range p.frames {
		if fd.main != nil && fd.main.id == id {
			fd.main = nil
		}
		if fd.utility != nil && fd.utility.id == id {
			fd.utility = nil
		}
	}
}

func (p *Provider) contextsCleared() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, fd := range p.frames {
		fd.main, fd.utility, fd.creating = nil, nil, false
	}
}

// lookup returns the frame document of doc, or dom.ErrStaleDocument once
// doc was replaced. Tab reports documents to the provider before the frame
// manager hears of them, so an unknown document is a replaced one. It must
// be called with mu held.
func (p *Provider) lookup(doc dom.DocumentID) (cdp.FrameID, *frameDocument, error) {
	id, ok := p.docs[doc]
	if !ok {
		return "", nil, dom.ErrStaleDocument
	}
	fd, ok := p.frames[id]
	if !ok || fd.doc != doc {
		return "", nil, dom.ErrStaleDocument
	}
	return id, fd, nil
}

// awaitContext returns the execution context of world in doc, waiting for
// it to be created.
func (p *Provider) awaitContext(ctx context.Context, doc dom.DocumentID, world dom.ExecutionWorld) (*execContext, error) {
	for {
		p.mu.Lock()
		frameID, fd, err := p.lookup(doc)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		ec := fd.main
		if world == dom.WorldUtility {
			ec = fd.utility
		}
		if ec != nil {
			p.mu.Unlock()
			return ec, nil
		}
		create := world == dom.WorldUtility && fd.main != nil && !fd.creating
		if create {
			fd.creating = true
		}
		changed := p.changed
		p.mu.Unlock()

		if create {
			if err := p.createUtilityWorld(ctx, frameID, doc); err != nil {
				return nil, err
			}
			continue
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Provider) createUtilityWorld(ctx context.Context, frameID cdp.FrameID, doc dom.DocumentID) error {
	action := page.CreateIsolatedWorld(frameID).
		WithWorldName(utilityWorldName).
		WithGrantUniveralAccess(true)
	id, err := action.Do(cdp.WithExecutor(ctx, p.executor))

	p.mu.Lock()
	defer p.mu.Unlock()

	fd, ok := p.frames[frameID]
	if !ok || fd.doc != doc {
		return dom.ErrStaleDocument
	}
	fd.creating = false
	if err != nil {
		return fmt.Errorf("creating utility world in frame %s: %w", frameID, err)
	}
	if fd.utility == nil {
		fd.utility = &execContext{id: id}
	}
	p.broadcast()

	return nil
}

// forget drops ec after it was found to be gone.
func (p *Provider) forget(doc dom.DocumentID, ec *execContext) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, fd, err := p.lookup(doc)
	if err != nil {
		return
	}
	if fd.main == ec {
		fd.main = nil
	}
	if fd.utility == ec {
		fd.utility = nil
	}
}

// call invokes method of the injected script in world of doc and returns
// the value it produced.
func (p *Provider) call(
	ctx context.Context, doc dom.DocumentID, world dom.ExecutionWorld, method string, args ...any,
) (gjson.Result, error) {
	ec, err := p.awaitContext(ctx, doc, world)
	if err != nil {
		return gjson.Result{}, err
	}
	expr, err := callExpression(method, args...)
	if err != nil {
		return gjson.Result{}, err
	}

	p.mu.Lock()
	install := !ec.installed
	p.mu.Unlock()
	if install {
		expr = "globalThis." + injectedGlobal + " ??= " + injectedScript + ";\n" + expr
	}

	res, exc, err := cdpruntime.Evaluate(expr).
		WithContextID(ec.id).
		WithReturnByValue(true).
		WithAwaitPromise(true).
		Do(cdp.WithExecutor(ctx, p.executor))
	if err != nil {
		if isContextGone(err) {
			p.forget(doc, ec)
			return gjson.Result{}, errContextGone
		}
		return gjson.Result{}, fmt.Errorf("evaluating %s: %w", method, err)
	}
	if exc != nil {
		return gjson.Result{}, fmt.Errorf("evaluating %s: %w", method, exceptionError(exc))
	}
	if install {
		p.mu.Lock()
		ec.installed = true
		p.mu.Unlock()
	}

	var v gjson.Result
	if res != nil {
		v = gjson.ParseBytes(res.Value)
	}
	return scriptResult(v)
}

// callExpr is callExpression for the integer arguments of element lookups.
func callExpr(method string, id int64) string {
	return "globalThis." + injectedGlobal + "." + method + "(" + strconv.FormatInt(id, 10) + ")"
}

func callExpression(method string, args ...any) (string, error) {
	var b strings.Builder
	b.WriteString("globalThis." + injectedGlobal + "." + method + "(")
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		js, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encoding %s argument: %w", method, err)
		}
		b.Write(js)
	}
	b.WriteString(")")
	return b.String(), nil
}

// scriptResult unwraps the {value} or {error, message} object every method
// of the injected script returns.
func scriptResult(v gjson.Result) (gjson.Result, error) {
	switch v.Get("error").String() {
	case "":
		return v.Get("value"), nil
	case "notconnected":
		return gjson.Result{}, dom.ErrNotConnected
	default:
		return gjson.Result{}, errors.New(v.Get("message").String())
	}
}

func exceptionError(exc *cdpruntime.ExceptionDetails) error {
	if exc.Exception != nil && exc.Exception.Description != "" {
		return errors.New(exc.Exception.Description)
	}
	return errors.New(exc.Text)
}

func isContextGone(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Cannot find context with specified id") ||
		strings.Contains(msg, "Execution context was destroyed") ||
		strings.Contains(msg, "Inspected target navigated or closed")
}

// staleOr returns dom.ErrStaleDocument when doc was replaced, and err
// otherwise.
func (p *Provider) staleOr(doc dom.DocumentID, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, _, lerr := p.lookup(doc); errors.Is(lerr, dom.ErrStaleDocument) {
		return dom.ErrStaleDocument
	}
	return err
}

// element refs carry the world they belong to: "<world>:<id>".
func encodeRef(world dom.ExecutionWorld, id int64) dom.ElementRef {
	return dom.ElementRef(world.String() + ":" + strconv.FormatInt(id, 10))
}

func decodeRef(ref dom.ElementRef) (dom.ExecutionWorld, int64, error) {
	w, id, ok := strings.Cut(string(ref), ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed element ref %q", ref)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed element ref %q", ref)
	}
	switch w {
	case dom.WorldMain.String():
		return dom.WorldMain, n, nil
	case dom.WorldUtility.String():
		return dom.WorldUtility, n, nil
	}
	return 0, 0, fmt.Errorf("malformed element ref %q", ref)
}

// QueryAll implements dom.QueryProvider.
func (p *Provider) QueryAll(ctx context.Context, q dom.Query) ([]dom.ElementRef, error) {
	pl, err := compilePlan(q.Selector)
	if err != nil {
		return nil, err
	}

	world, root := q.World, int64(0)
	if q.Root != "" {
		if world, root, err = decodeRef(q.Root); err != nil {
			return nil, err
		}
	}

	// A query without a root survives the loss of its execution context:
	// it runs again in the new one.
	for attempt := 0; ; attempt++ {
		v, err := p.call(ctx, q.Document, world, "queryAll", pl, root)
		if errors.Is(err, errContextGone) {
			if q.Root == "" && attempt == 0 {
				continue
			}
			return nil, p.staleOr(q.Document, dom.ErrNotConnected)
		}
		if err != nil {
			return nil, err
		}
		ids := v.Array()
		refs := make([]dom.ElementRef, 0, len(ids))
		for _, id := range ids {
			refs = append(refs, encodeRef(world, id.Int()))
		}
		return refs, nil
	}
}

// callRef invokes method on the element ref refers to.
func (p *Provider) callRef(
	ctx context.Context, doc dom.DocumentID, ref dom.ElementRef, method string, args ...any,
) (gjson.Result, error) {
	world, id, err := decodeRef(ref)
	if err != nil {
		return gjson.Result{}, err
	}
	v, err := p.call(ctx, doc, world, method, append([]any{id}, args...)...)
	if errors.Is(err, errContextGone) {
		return gjson.Result{}, p.staleOr(doc, dom.ErrNotConnected)
	}
	return v, err
}

// State implements dom.QueryProvider.
func (p *Provider) State(ctx context.Context, doc dom.DocumentID, ref dom.ElementRef, s dom.ElementState) (bool, error) {
	v, err := p.callRef(ctx, doc, ref, "state", s.String())
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

// Release implements dom.QueryProvider.
func (p *Provider) Release(ctx context.Context, doc dom.DocumentID, ref dom.ElementRef) error {
	_, err := p.callRef(ctx, doc, ref, "release")
	if errors.Is(err, dom.ErrNotConnected) || errors.Is(err, dom.ErrStaleDocument) {
		return nil
	}
	return err
}

// ContentFrame implements dom.FrameOwner. The element is resolved to a
// remote object and described to read the id of the frame it owns.
func (p *Provider) ContentFrame(ctx context.Context, doc dom.DocumentID, ref dom.ElementRef) (string, error) {
	world, id, err := decodeRef(ref)
	if err != nil {
		return "", err
	}
	ec, err := p.awaitContext(ctx, doc, world)
	if err != nil {
		return "", err
	}

	cctx := cdp.WithExecutor(ctx, p.executor)
	res, exc, err := cdpruntime.Evaluate(callExpr("element", id)).
		WithContextID(ec.id).
		Do(cctx)
	if err != nil {
		if isContextGone(err) {
			p.forget(doc, ec)
			return "", p.staleOr(doc, dom.ErrNotConnected)
		}
		return "", fmt.Errorf("resolving element %s: %w", ref, err)
	}
	if exc != nil {
		return "", fmt.Errorf("resolving element %s: %w", ref, exceptionError(exc))
	}
	if res == nil || res.ObjectID == "" {
		return "", dom.ErrNotConnected
	}
	defer func() {
		if err := cdpruntime.ReleaseObject(res.ObjectID).Do(cctx); err != nil {
			p.logger.Debugf("Provider:ContentFrame", "releasing %s: %v", res.ObjectID, err)
		}
	}()

	node, err := cdpdom.DescribeNode().WithObjectID(res.ObjectID).Do(cctx)
	if err != nil {
		return "", fmt.Errorf("describing element %s: %w", ref, err)
	}
	if node.FrameID == "" {
		return "", dom.ErrNotFrameOwner
	}
	return string(node.FrameID), nil
}

// Perform implements dom.QueryProvider. Pointer and keyboard actions are
// dispatched as input events; the others run in the page.
func (p *Provider) Perform(ctx context.Context, doc dom.DocumentID, ref dom.ElementRef, a dom.Action) (any, error) {
	in := &inputDispatcher{executor: p.executor}

	switch a := a.(type) {
	case dom.Click:
		return nil, p.pointer(ctx, doc, ref, a.Position, a.Trial, func(ctx context.Context, x, y float64) error {
			return in.click(ctx, x, y, a.Button, a.ClickCount, a.Delay, a.Modifiers)
		})
	case dom.Dblclick:
		return nil, p.pointer(ctx, doc, ref, a.Position, a.Trial, func(ctx context.Context, x, y float64) error {
			return in.dblclick(ctx, x, y, a.Button, a.Delay, a.Modifiers)
		})
	case dom.Hover:
		return nil, p.pointer(ctx, doc, ref, a.Position, a.Trial, func(ctx context.Context, x, y float64) error {
			return in.move(ctx, x, y, a.Modifiers)
		})
	case dom.Tap:
		return nil, p.pointer(ctx, doc, ref, a.Position, a.Trial, func(ctx context.Context, x, y float64) error {
			return in.tap(ctx, x, y, a.Modifiers)
		})
	case dom.SetChecked:
		return nil, p.setChecked(ctx, doc, ref, a, in)
	case dom.Press:
		if _, err := p.callRef(ctx, doc, ref, "focus"); err != nil {
			return nil, err
		}
		return nil, in.press(ctx, a.Key, a.Delay)
	case dom.Type:
		if _, err := p.callRef(ctx, doc, ref, "focus"); err != nil {
			return nil, err
		}
		return nil, in.typeText(ctx, a.Text, a.Delay)
	}

	v, err := p.callRef(ctx, doc, ref, "perform", a.Name(), a)
	if err != nil {
		return nil, err
	}
	return actionResult(a, v), nil
}

func (p *Provider) pointer(
	ctx context.Context, doc dom.DocumentID, ref dom.ElementRef, pos *dom.Position, trial bool,
	dispatch func(ctx context.Context, x, y float64) error,
) error {
	pt, err := p.callRef(ctx, doc, ref, "point", pos)
	if err != nil {
		return err
	}
	if trial {
		return nil
	}
	return dispatch(ctx, pt.Get("x").Float(), pt.Get("y").Float())
}

func (p *Provider) setChecked(ctx context.Context, doc dom.DocumentID, ref dom.ElementRef, a dom.SetChecked, in *inputDispatcher) error {
	checked, err := p.State(ctx, doc, ref, dom.StateChecked)
	if err != nil {
		return err
	}
	if checked == a.Checked {
		return nil
	}
	err = p.pointer(ctx, doc, ref, a.Position, a.Trial, func(ctx context.Context, x, y float64) error {
		return in.click(ctx, x, y, "left", 1, 0, nil)
	})
	if err != nil || a.Trial {
		return err
	}
	if checked, err = p.State(ctx, doc, ref, dom.StateChecked); err != nil {
		return err
	}
	if checked != a.Checked {
		return errors.New("clicking the element did not change its checked state")
	}
	return nil
}

// actionResult converts the value an action returned in the page to the
// Go type the action produces.
func actionResult(a dom.Action, v gjson.Result) any {
	switch a.(type) {
	case dom.TextContent, dom.GetAttribute:
		if v.Type == gjson.Null || !v.Exists() {
			return null.String{}
		}
		return null.StringFrom(v.String())
	case dom.AriaSnapshot, dom.InnerText, dom.InnerHTML, dom.InputValue:
		return v.String()
	case dom.SelectOption:
		values := []string{}
		for _, s := range v.Array() {
			values = append(values, s.String())
		}
		return values
	case dom.BoundingBox:
		if v.Type == gjson.Null || !v.Exists() {
			return (*dom.Rect)(nil)
		}
		return &dom.Rect{
			X:      v.Get("x").Float(),
			Y:      v.Get("y").Float(),
			Width:  v.Get("width").Float(),
			Height: v.Get("height").Float(),
		}
	}
	return nil
}
