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
	"slices"
)

// waitForEvent returns a channel receiving the data of the first of events
// accepted by match. A nil match accepts any event. The subscription ends
// after the first match or once the returned cancel function is called.
func waitForEvent(
	ctx context.Context, emitter EventEmitter, events []string, match func(data any) bool,
) (<-chan any, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	evCh := make(chan Event)
	out := make(chan any, 1)

	go func() {
		defer cancel()
		for {
			var ev Event
			select {
			case <-ctx.Done():
				return
			case ev = <-evCh:
			}
			if !slices.Contains(events, ev.Type) || (match != nil && !match(ev.Data)) {
				continue
			}
			out <- ev.Data
			return
		}
	}()

	emitter.on(ctx, events, evCh)
	return out, cancel
}
