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
	"time"
)

// PollOptions control the pause between two evaluations of a wait.
type PollOptions struct {
	// Interval is the pause used when no schedule is set.
	Interval time.Duration
	// Schedule holds the successive pauses. Its last entry repeats.
	Schedule []time.Duration
}

func (o PollOptions) pause(i int) time.Duration {
	if n := len(o.Schedule); n > 0 {
		if i >= n {
			i = n - 1
		}
		return o.Schedule[i]
	}
	if o.Interval <= 0 {
		return DefaultPollInterval
	}
	return o.Interval
}

// Poll evaluates fn until it reports done, fails, or p ends. Evaluations
// never overlap. A timeout is reported as a *TimeoutError waiting for what.
func Poll[T any](p *Progress, what string, opts PollOptions, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	return PollRelease(p, what, opts, nil, fn)
}

// PollRelease is Poll for values that hold resources. A value reported done
// after p ended is passed to release.
func PollRelease[T any](p *Progress, what string, opts PollOptions, release func(T), fn func(ctx context.Context) (T, bool, error)) (T, error) {
	var zero T

	type outcome struct {
		v  T
		ok bool
	}
	var drop func(outcome)
	if release != nil {
		drop = func(out outcome) {
			if out.ok {
				release(out.v)
			}
		}
	}
	p.setWaiting(what)
	for i := 0; ; i++ {
		out, err := RaceRelease(p, drop, func(ctx context.Context) (outcome, error) {
			v, ok, err := fn(ctx)
			return outcome{v, ok}, err
		})
		if err != nil {
			return zero, err
		}
		if out.ok {
			return out.v, nil
		}
		if err := p.Wait(opts.pause(i)); err != nil {
			return zero, err
		}
	}
}

// WaitFor polls pred until it holds.
func WaitFor(p *Progress, what string, opts PollOptions, pred func(ctx context.Context) (bool, error)) error {
	_, err := Poll(p, what, opts, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := pred(ctx)
		return struct{}{}, ok, err
	})
	return err
}
