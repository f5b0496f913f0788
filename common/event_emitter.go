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
	"sync"
)

// Frame events.
const (
	EventFrameAttached     string = "frameattached"
	EventFrameNavigated    string = "framenavigated"
	EventFrameDetached     string = "framedetached"
	EventFrameStateChanged string = "framestatechanged"
	EventFrameLoad         string = "load"
)

// Event as emitted by an EventEmitter.
type Event struct {
	Type string
	Data any
}

// FrameEvent is the data of every frame event.
type FrameEvent struct {
	Frame       *Frame
	DocumentID  string
	URL         string
	State       FrameState
	NewDocument bool
}

// subscriber receives events on ch until ctx is done.
type subscriber struct {
	ctx context.Context
	ch  chan Event
}

func (s subscriber) done() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// EventEmitter is implemented by everything frame events are read from.
type EventEmitter interface {
	emit(event string, data any)
	on(ctx context.Context, events []string, ch chan Event)
	onAll(ctx context.Context, ch chan Event)
}

var _ EventEmitter = &BaseEventEmitter{}

// BaseEventEmitter fans events out to subscribers. Delivery does not block
// the emitter: a subscriber that is not reading gets the event once it does,
// or never if its context ends first.
type BaseEventEmitter struct {
	ctx context.Context

	mu      sync.Mutex
	byEvent map[string][]subscriber
	all     []subscriber
}

// NewBaseEventEmitter returns an emitter that stops delivering once ctx is
// done.
func NewBaseEventEmitter(ctx context.Context) *BaseEventEmitter {
	return &BaseEventEmitter{
		ctx:     ctx,
		byEvent: make(map[string][]subscriber),
	}
}

func (e *BaseEventEmitter) emit(event string, data any) {
	if e.ctx.Err() != nil {
		return
	}
	ev := Event{Type: event, Data: data}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.byEvent[event] = e.send(e.byEvent[event], ev)
	e.all = e.send(e.all, ev)
}

// send delivers ev to the live subscribers in subs and returns them.
func (e *BaseEventEmitter) send(subs []subscriber, ev Event) []subscriber {
	live := subs[:0]
	for _, s := range subs {
		if s.done() {
			continue
		}
		live = append(live, s)
		go func(s subscriber) {
			select {
			case s.ch <- ev:
			case <-s.ctx.Done():
			case <-e.ctx.Done():
			}
		}(s)
	}
	return live
}

// on subscribes ch to events.
func (e *BaseEventEmitter) on(ctx context.Context, events []string, ch chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, event := range events {
		e.byEvent[event] = append(e.byEvent[event], subscriber{ctx: ctx, ch: ch})
	}
}

// onAll subscribes ch to every event.
func (e *BaseEventEmitter) onAll(ctx context.Context, ch chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.all = append(e.all, subscriber{ctx: ctx, ch: ch})
}

// subscribers returns how many subscribers of event, or of every event when
// event is empty, are registered.
func (e *BaseEventEmitter) subscribers(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if event == "" {
		return len(e.all)
	}
	return len(e.byEvent[event])
}
