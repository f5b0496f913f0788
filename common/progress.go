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
	"fmt"
	"sync"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/liuxd6825/xk6-locator/log"
)

// Progress tracks a single operation: its deadline, the reason it was
// aborted, the cleanups to run on abort and the call log reported on
// timeout.
type Progress struct {
	ctx        context.Context
	cancel     context.CancelFunc
	stopParent func() bool
	timer      *time.Timer
	timeout    time.Duration
	deadline   time.Time
	logger     *log.Logger

	mu       sync.Mutex
	err      error
	aborted  chan struct{}
	cleanups []cleanup
	nextID   uint64
	callLog  []string
	waiting  string
}

type cleanup struct {
	id uint64
	fn func()
}

// NewProgress returns a progress that times out after timeout and is
// aborted when ctx is done. A non-positive timeout means no deadline.
// Callers must call Done when the operation finishes.
//
// The progress context carries the values of ctx. It is cancelled only
// after the abort reason is set.
func NewProgress(ctx context.Context, timeout time.Duration, logger *log.Logger) *Progress {
	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &Progress{
		ctx:     pctx,
		cancel:  cancel,
		timeout: timeout,
		logger:  logger,
		aborted: make(chan struct{}),
	}
	if err := ctx.Err(); err != nil {
		p.Abort(&AbortError{Cause: context.Cause(ctx)})
		p.stopParent = func() bool { return false }
		return p
	}
	if timeout > 0 {
		p.deadline = time.Now().Add(timeout)
		p.timer = time.AfterFunc(timeout, p.timedOut)
	}
	p.stopParent = context.AfterFunc(ctx, func() {
		p.Abort(&AbortError{Cause: context.Cause(ctx)})
	})
	return p
}

func (p *Progress) timedOut() {
	p.mu.Lock()
	err := &TimeoutError{
		Timeout: p.timeout,
		Waiting: p.waiting,
		CallLog: append([]string(nil), p.callLog...),
	}
	p.mu.Unlock()
	p.Abort(err)
}

// Abort terminates the progress with err. Errors other than *TimeoutError
// and *AbortError are wrapped in an *AbortError. Only the first call has an
// effect: it runs the registered cleanups in order.
func (p *Progress) Abort(err error) {
	switch err.(type) {
	case *TimeoutError, *AbortError:
	default:
		err = &AbortError{Cause: err}
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	cleanups := p.cleanups
	p.cleanups = nil
	close(p.aborted)
	p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	p.cancel()
	p.logger.Debugf("Progress", "aborted: %v", err)

	for _, c := range cleanups {
		c.fn()
	}
}

// CleanupWhenAborted registers fn to run once if the progress is aborted.
// If it already is, fn runs right away. The returned function unregisters
// fn; it is a no-op once the cleanups have run.
func (p *Progress) CleanupWhenAborted(fn func()) (unregister func()) {
	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		fn()
		return func() {}
	}
	p.nextID++
	id := p.nextID
	p.cleanups = append(p.cleanups, cleanup{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, c := range p.cleanups {
			if c.id == id {
				p.cleanups = append(p.cleanups[:i], p.cleanups[i+1:]...)
				return
			}
		}
	}
}

func (p *Progress) pendingCleanups() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cleanups)
}

// Race runs fns concurrently and returns the first one to settle. It fails
// with the abort reason as soon as the progress is aborted, even when a
// result settled at the same time, and right away if it already was. The
// context given to fns is cancelled when Race returns.
func Race[T any](p *Progress, fns ...func(context.Context) (T, error)) (T, error) {
	return RaceRelease(p, nil, fns...)
}

// RaceRelease is Race for results that hold resources. Successful results
// that lose the race or settle after the progress is aborted are passed to
// release.
func RaceRelease[T any](p *Progress, release func(T), fns ...func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Err(); err != nil {
		return zero, err
	}

	ctx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, len(fns))
	for _, fn := range fns {
		go func() {
			v, err := fn(ctx)
			ch <- result{v, err}
		}()
	}

	pending := len(fns)
	defer func() {
		if release == nil || pending == 0 {
			return
		}
		go func(n int) {
			for range n {
				if r := <-ch; r.err == nil {
					release(r.v)
				}
			}
		}(pending)
	}()

	select {
	case r := <-ch:
		pending--
		if err := p.Err(); err != nil {
			if r.err == nil && release != nil {
				release(r.v)
			}
			return zero, err
		}
		return r.v, r.err
	case <-p.aborted:
		return zero, p.Err()
	}
}

// Wait pauses for d unless the progress is aborted first.
func (p *Progress) Wait(d time.Duration) error {
	if err := p.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	defer p.CleanupWhenAborted(func() { t.Stop() })()

	select {
	case <-t.C:
		return nil
	case <-p.aborted:
		return p.Err()
	}
}

// Log appends a line to the call log.
func (p *Progress) Log(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	p.mu.Lock()
	p.callLog = append(p.callLog, msg)
	p.mu.Unlock()

	p.logger.Debugf("Progress", "%s", msg)
	oteltrace.SpanFromContext(p.ctx).AddEvent(msg)
}

func (p *Progress) setWaiting(what string) {
	p.mu.Lock()
	p.waiting = what
	p.mu.Unlock()
}

// Err returns nil while the progress runs, then the *TimeoutError or
// *AbortError it ended with.
func (p *Progress) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Aborted is closed once the progress is aborted.
func (p *Progress) Aborted() <-chan struct{} { return p.aborted }

// Context is cancelled once the progress is aborted or done.
func (p *Progress) Context() context.Context { return p.ctx }

// Deadline is the zero time when the progress has no timeout.
func (p *Progress) Deadline() time.Time { return p.deadline }

// Timeout returns the timeout the progress was created with.
func (p *Progress) Timeout() time.Duration { return p.timeout }

// CallLog returns a copy of the lines logged so far.
func (p *Progress) CallLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.callLog...)
}

// Done releases the timer and the derived context. It does not run the
// cleanups.
func (p *Progress) Done() {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.stopParent()
	p.cancel()
}
