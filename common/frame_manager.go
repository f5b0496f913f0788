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
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/log"
	"github.com/liuxd6825/xk6-locator/trace"
)

// ErrUnknownFrame is returned for lifecycle events naming a frame the tab
// does not own.
var ErrUnknownFrame = errors.New("unknown frame")

// FrameManager manages all frames of a tab and their life-cycles.
type FrameManager struct {
	*BaseEventEmitter

	ctx             context.Context
	tabID           string
	provider        dom.QueryProvider
	opts            *Options
	timeoutSettings *TimeoutSettings
	tracer          *trace.Tracer
	logger          *log.Logger

	mainFrameMu sync.RWMutex
	mainFrame   *Frame

	framesMu sync.RWMutex
	frames   map[string]*Frame
}

// NewFrameManager creates the frame manager of tab tabID. Selectors are
// resolved through provider. A nil opts uses NewOptions, a nil tracer
// records nothing and a nil logger discards its output.
func NewFrameManager(
	ctx context.Context,
	tabID string,
	provider dom.QueryProvider,
	opts *Options,
	tracer *trace.Tracer,
	l *log.Logger,
) (*FrameManager, error) {
	if provider == nil {
		return nil, errors.New("creating frame manager: query provider is required")
	}
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("creating frame manager: %w", err)
	}
	if tracer == nil {
		tracer = trace.NewNoopTracer()
	}
	if l == nil {
		l = log.NewNullLogger()
	}

	// scripts override the configured timeouts on a child level
	ts := NewTimeoutSettings(timeoutSettingsFrom(opts))

	m := &FrameManager{
		BaseEventEmitter: NewBaseEventEmitter(ctx),
		ctx:              ctx,
		tabID:            tabID,
		provider:         provider,
		opts:             opts,
		timeoutSettings:  ts,
		tracer:           tracer,
		logger:           l,
		frames:           make(map[string]*Frame),
	}

	m.logger.Debugf("FrameManager:New", "tid:%s", tabID)

	return m, nil
}

// FrameAttached registers frameID as a child of parentFrameID.
func (m *FrameManager) FrameAttached(frameID, parentFrameID string) (*Frame, error) {
	m.logger.Debugf("FrameManager:FrameAttached", "tid:%s fid:%s pfid:%s", m.tabID, frameID, parentFrameID)

	m.framesMu.Lock()
	if frame, ok := m.frames[frameID]; ok {
		m.framesMu.Unlock()
		return frame, nil
	}
	parentFrame, ok := m.frames[parentFrameID]
	if !ok {
		m.framesMu.Unlock()
		return nil, fmt.Errorf("attaching frame %q: %w: parent %q in tab %q",
			frameID, ErrUnknownFrame, parentFrameID, m.tabID)
	}
	frame := NewFrame(m.ctx, m, parentFrame, frameID, m.logger)
	m.frames[frameID] = frame
	m.framesMu.Unlock()

	parentFrame.addChildFrame(frame)
	m.emit(EventFrameAttached, frame.event(false))

	return frame, nil
}

// FrameNavigated commits docID in frameID. The first navigation without a
// parent creates the main frame; a main frame navigation with a new id keeps
// the main frame's identity. A new document detaches the child frames of
// the previous one.
func (m *FrameManager) FrameNavigated(frameID, parentFrameID string, docID dom.DocumentID, url string) (*Frame, error) {
	m.logger.Debugf("FrameManager:FrameNavigated",
		"tid:%s fid:%s pfid:%s docid:%s furl:%s", m.tabID, frameID, parentFrameID, docID, url)

	if docID == "" {
		return nil, &ValidationError{Op: "navigating frame " + frameID, Msg: "document id must not be empty"}
	}

	isMainFrame := parentFrameID == ""
	frame, ok := m.Frame(frameID)
	switch {
	case ok:
	case !isMainFrame:
		return nil, fmt.Errorf("navigating frame %q: %w in tab %q", frameID, ErrUnknownFrame, m.tabID)
	case m.MainFrame() == nil:
		frame = NewFrame(m.ctx, m, nil, frameID, m.logger)
		m.framesMu.Lock()
		m.frames[frameID] = frame
		m.framesMu.Unlock()
		m.setMainFrame(frame)
	default:
		frame = m.MainFrame()
		m.logger.Debugf("FrameManager:FrameNavigated:MainFrame:rename",
			"tid:%s fid:%s oldfid:%s", m.tabID, frameID, frame.ID())

		// Update frame ID to retain frame identity on cross-process navigation.
		m.framesMu.Lock()
		delete(m.frames, frame.ID())
		frame.setID(frameID)
		m.frames[frameID] = frame
		m.framesMu.Unlock()
	}

	if frame.DocumentID() != docID {
		m.removeChildFramesRecursively(frame)
	}
	if frame.navigated(docID, url) && frame == m.MainFrame() {
		_, span := m.tracer.TraceNavigation(m.ctx, m.tabID,
			oteltrace.WithAttributes(attribute.String("navigation.url", url)))
		span.SetAttributes(attribute.String("navigation.document", string(docID)))
	}

	return frame, nil
}

// FrameNavigatedWithinDocument updates the URL of frameID after a same
// document navigation.
func (m *FrameManager) FrameNavigatedWithinDocument(frameID, url string) error {
	m.logger.Debugf("FrameManager:FrameNavigatedWithinDocument", "tid:%s fid:%s furl:%s", m.tabID, frameID, url)

	frame, ok := m.Frame(frameID)
	if !ok {
		return fmt.Errorf("navigating frame %q within document: %w in tab %q", frameID, ErrUnknownFrame, m.tabID)
	}
	docID := frame.DocumentID()
	if docID == "" {
		return fmt.Errorf("navigating frame %q within document: frame has no document", frameID)
	}
	frame.navigated(docID, url)

	return nil
}

// FrameStartedLoading marks frameID as navigating.
func (m *FrameManager) FrameStartedLoading(frameID string) {
	m.logger.Debugf("FrameManager:FrameStartedLoading", "tid:%s fid:%s", m.tabID, frameID)

	if frame, ok := m.Frame(frameID); ok {
		frame.startNavigation()
	}
}

// FrameAbortedNavigation returns frameID to its current document.
func (m *FrameManager) FrameAbortedNavigation(frameID, errorText string) {
	m.logger.Debugf("FrameManager:FrameAbortedNavigation", "tid:%s fid:%s err:%s", m.tabID, frameID, errorText)

	if frame, ok := m.Frame(frameID); ok {
		frame.abortNavigation()
	}
}

// FrameStoppedLoading emits the load event of frameID.
func (m *FrameManager) FrameStoppedLoading(frameID string) {
	m.logger.Debugf("FrameManager:FrameStoppedLoading", "tid:%s fid:%s", m.tabID, frameID)

	if frame, ok := m.Frame(frameID); ok {
		m.emit(EventFrameLoad, frame.event(false))
	}
}

// FrameDetached removes frameID and its descendants.
func (m *FrameManager) FrameDetached(frameID string) error {
	m.logger.Debugf("FrameManager:FrameDetached", "tid:%s fid:%s", m.tabID, frameID)

	frame, ok := m.Frame(frameID)
	if !ok {
		return fmt.Errorf("detaching frame %q: %w in tab %q", frameID, ErrUnknownFrame, m.tabID)
	}
	m.removeFramesRecursively(frame)

	return nil
}

// Close detaches every frame of the tab.
func (m *FrameManager) Close() {
	m.logger.Debugf("FrameManager:Close", "tid:%s", m.tabID)

	if mf := m.MainFrame(); mf != nil {
		m.removeFramesRecursively(mf)
	}
	m.tracer.EndNavigation(m.tabID)
}

func (m *FrameManager) removeChildFramesRecursively(frame *Frame) {
	for _, child := range frame.ChildFrames() {
		m.removeFramesRecursively(child)
	}
}

func (m *FrameManager) removeFramesRecursively(frame *Frame) {
	for _, child := range frame.ChildFrames() {
		m.logger.Debugf("FrameManager:removeFramesRecursively",
			"tid:%s cfid:%s pfid:%s cfurl:%s", m.tabID, child.ID(), frame.ID(), child.URL())

		m.removeFramesRecursively(child)
	}

	frame.detach()

	m.framesMu.Lock()
	delete(m.frames, frame.ID())
	m.framesMu.Unlock()

	if frame == m.MainFrame() {
		m.tracer.EndNavigation(m.tabID)
	}
}

// Frame returns the attached frame with the given id.
func (m *FrameManager) Frame(id string) (*Frame, bool) {
	m.framesMu.RLock()
	defer m.framesMu.RUnlock()

	frame, ok := m.frames[id]

	return frame, ok
}

// Frames returns all attached frames.
func (m *FrameManager) Frames() []*Frame {
	m.framesMu.RLock()
	defer m.framesMu.RUnlock()

	frames := make([]*Frame, 0, len(m.frames))
	for _, frame := range m.frames {
		frames = append(frames, frame)
	}

	return frames
}

// MainFrame returns the main frame, or nil before the first navigation.
func (m *FrameManager) MainFrame() *Frame {
	m.mainFrameMu.RLock()
	defer m.mainFrameMu.RUnlock()

	return m.mainFrame
}

func (m *FrameManager) setMainFrame(f *Frame) {
	m.mainFrameMu.Lock()
	defer m.mainFrameMu.Unlock()

	m.mainFrame = f
}

// TabID returns the id of the tab the manager belongs to.
func (m *FrameManager) TabID() string { return m.tabID }

// Options returns the options the manager was created with.
func (m *FrameManager) Options() *Options { return m.opts }

// Tracer returns the tracer API calls are recorded with.
func (m *FrameManager) Tracer() *trace.Tracer { return m.tracer }

// DefaultTimeout returns the timeout used by operations without one.
func (m *FrameManager) DefaultTimeout() time.Duration { return m.timeoutSettings.timeout() }

// SetDefaultTimeout changes the timeout used by operations without one.
func (m *FrameManager) SetDefaultTimeout(timeout time.Duration) {
	m.timeoutSettings.setDefaultTimeout(timeout)
}

// SetDefaultNavigationTimeout changes the timeout used by navigation waits
// without one.
func (m *FrameManager) SetDefaultNavigationTimeout(timeout time.Duration) {
	m.timeoutSettings.setDefaultNavigationTimeout(timeout)
}

// Subscribe delivers the given events, or every event when none is given,
// to ch until ctx is done.
func (m *FrameManager) Subscribe(ctx context.Context, ch chan Event, events ...string) {
	if len(events) == 0 {
		m.onAll(ctx, ch)
		return
	}
	m.on(ctx, events, ch)
}
