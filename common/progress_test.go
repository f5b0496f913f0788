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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/xk6-locator/log"
)

func TestProgressTimeout(t *testing.T) {
	t.Parallel()

	p := NewProgress(context.Background(), 30*time.Millisecond, log.NewNullLogger())
	defer p.Done()

	p.Log("waiting for %s", "something")
	p.setWaiting("something")

	select {
	case <-p.Aborted():
	case <-time.After(time.Second):
		t.Fatal("progress did not time out")
	}

	var te *TimeoutError
	require.ErrorAs(t, p.Err(), &te)
	assert.Equal(t, 30*time.Millisecond, te.Timeout)
	assert.Equal(t, "something", te.Waiting)
	assert.Equal(t, []string{"waiting for something"}, te.CallLog)
	assert.ErrorIs(t, p.Err(), context.DeadlineExceeded)
	assert.Contains(t, p.Err().Error(), "timeout 30ms exceeded while waiting for something")
	assert.Contains(t, p.Err().Error(), "  - waiting for something")
}

func TestProgressNoTimeout(t *testing.T) {
	t.Parallel()

	p := NewProgress(context.Background(), 0, log.NewNullLogger())
	defer p.Done()

	assert.True(t, p.Deadline().IsZero())
	require.NoError(t, p.Wait(20*time.Millisecond))
	assert.NoError(t, p.Err())
}

func TestProgressAbort(t *testing.T) {
	t.Parallel()

	t.Run("runs cleanups once in order", func(t *testing.T) {
		t.Parallel()

		p := NewProgress(context.Background(), time.Minute, log.NewNullLogger())
		defer p.Done()

		var (
			mu    sync.Mutex
			order []int
		)
		for i := range 3 {
			p.CleanupWhenAborted(func() {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, i)
			})
		}

		cause := errors.New("stop")
		p.Abort(cause)
		p.Abort(errors.New("again"))

		mu.Lock()
		assert.Equal(t, []int{0, 1, 2}, order)
		mu.Unlock()

		var ae *AbortError
		require.ErrorAs(t, p.Err(), &ae)
		assert.ErrorIs(t, p.Err(), cause)
		assert.Error(t, p.Context().Err())
	})

	t.Run("unregistered cleanup does not run", func(t *testing.T) {
		t.Parallel()

		p := NewProgress(context.Background(), time.Minute, log.NewNullLogger())
		defer p.Done()

		var ran []string
		p.CleanupWhenAborted(func() { ran = append(ran, "kept") })
		unregister := p.CleanupWhenAborted(func() { ran = append(ran, "dropped") })
		unregister()
		unregister()
		assert.Equal(t, 1, p.pendingCleanups())

		p.Abort(errors.New("stop"))
		assert.Equal(t, []string{"kept"}, ran)
	})

	t.Run("late cleanup runs right away", func(t *testing.T) {
		t.Parallel()

		p := NewProgress(context.Background(), time.Minute, log.NewNullLogger())
		defer p.Done()

		p.Abort(errors.New("stop"))

		ran := false
		p.CleanupWhenAborted(func() { ran = true })
		assert.True(t, ran)
	})

	t.Run("parent context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		p := NewProgress(ctx, time.Minute, log.NewNullLogger())
		defer p.Done()

		cancel()
		select {
		case <-p.Aborted():
		case <-time.After(time.Second):
			t.Fatal("progress not aborted")
		}

		var ae *AbortError
		require.ErrorAs(t, p.Err(), &ae)
		assert.ErrorIs(t, p.Err(), context.Canceled)
	})

	t.Run("parent already done", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := NewProgress(ctx, time.Minute, log.NewNullLogger())
		defer p.Done()

		var ae *AbortError
		require.ErrorAs(t, p.Err(), &ae)

		_, err := Race(p, func(context.Context) (int, error) {
			t.Error("function must not run")
			return 0, nil
		})
		assert.ErrorAs(t, err, &ae)
	})

	t.Run("timeout error kept as is", func(t *testing.T) {
		t.Parallel()

		p := NewProgress(context.Background(), time.Minute, log.NewNullLogger())
		defer p.Done()

		te := &TimeoutError{Timeout: time.Second}
		p.Abort(te)
		assert.Same(t, te, p.Err())
	})
}

func TestRace(t *testing.T) {
	t.Parallel()

	t.Run("first to settle wins", func(t *testing.T) {
		t.Parallel()

		p := NewProgress(context.Background(), time.Second, log.NewNullLogger())
		defer p.Done()

		v, err := Race(p,
			func(ctx context.Context) (string, error) {
				<-ctx.Done()
				return "slow", ctx.Err()
			},
			func(context.Context) (string, error) {
				return "fast", nil
			},
		)
		require.NoError(t, err)
		assert.Equal(t, "fast", v)
	})

	t.Run("function error", func(t *testing.T) {
		t.Parallel()

		p := NewProgress(context.Background(), time.Second, log.NewNullLogger())
		defer p.Done()

		boom := errors.New("boom")
		_, err := Race(p, func(context.Context) (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, p.Err())
	})

	t.Run("abort rejects in-flight race", func(t *testing.T) {
		t.Parallel()

		p := NewProgress(context.Background(), time.Minute, log.NewNullLogger())
		defer p.Done()

		started := make(chan struct{})
		go func() {
			<-started
			p.Abort(errors.New("user abort"))
		}()

		_, err := Race(p, func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			return 0, ctx.Err()
		})

		var (
			ae *AbortError
			te *TimeoutError
		)
		assert.ErrorAs(t, err, &ae)
		assert.False(t, errors.As(err, &te))
	})

	t.Run("timeout rejects in-flight race", func(t *testing.T) {
		t.Parallel()

		p := NewProgress(context.Background(), 20*time.Millisecond, log.NewNullLogger())
		defer p.Done()

		_, err := Race(p, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})

		var te *TimeoutError
		assert.ErrorAs(t, err, &te)
	})
}

func TestProgressWait(t *testing.T) {
	t.Parallel()

	p := NewProgress(context.Background(), time.Minute, log.NewNullLogger())
	defer p.Done()

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Abort(errors.New("stop"))
	}()

	start := time.Now()
	err := p.Wait(time.Minute)

	var ae *AbortError
	require.ErrorAs(t, err, &ae)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestProgressWaitReleasesCleanups(t *testing.T) {
	t.Parallel()

	p := NewProgress(context.Background(), time.Minute, log.NewNullLogger())
	defer p.Done()

	p.CleanupWhenAborted(func() {})
	for range 1000 {
		require.NoError(t, p.Wait(time.Microsecond))
	}
	assert.Equal(t, 1, p.pendingCleanups())
}

func TestRaceRelease(t *testing.T) {
	t.Parallel()

	t.Run("late result after abort", func(t *testing.T) {
		t.Parallel()

		p := NewProgress(context.Background(), time.Minute, log.NewNullLogger())
		defer p.Done()

		var (
			started  = make(chan struct{})
			proceed  = make(chan struct{})
			released = make(chan int, 1)
		)
		go func() {
			<-started
			p.Abort(errors.New("stop"))
			close(proceed)
		}()

		_, err := RaceRelease(p, func(v int) { released <- v }, func(context.Context) (int, error) {
			close(started)
			<-proceed
			return 42, nil
		})
		var ae *AbortError
		require.ErrorAs(t, err, &ae)

		select {
		case v := <-released:
			assert.Equal(t, 42, v)
		case <-time.After(time.Second):
			t.Fatal("late result was not released")
		}
	})

	t.Run("losing result", func(t *testing.T) {
		t.Parallel()

		p := NewProgress(context.Background(), time.Minute, log.NewNullLogger())
		defer p.Done()

		var (
			slow     = make(chan struct{})
			released = make(chan string, 1)
		)
		v, err := RaceRelease(p, func(v string) { released <- v },
			func(context.Context) (string, error) {
				<-slow
				return "slow", nil
			},
			func(context.Context) (string, error) {
				return "fast", nil
			},
		)
		require.NoError(t, err)
		assert.Equal(t, "fast", v)
		close(slow)

		select {
		case v := <-released:
			assert.Equal(t, "slow", v)
		case <-time.After(time.Second):
			t.Fatal("losing result was not released")
		}
	})

	t.Run("failed result is not released", func(t *testing.T) {
		t.Parallel()

		p := NewProgress(context.Background(), time.Minute, log.NewNullLogger())
		defer p.Done()

		var (
			started  = make(chan struct{})
			proceed  = make(chan struct{})
			released atomic.Int32
		)
		go func() {
			<-started
			p.Abort(errors.New("stop"))
			close(proceed)
		}()

		_, err := RaceRelease(p, func(int) { released.Add(1) }, func(context.Context) (int, error) {
			close(started)
			<-proceed
			return 0, errors.New("late failure")
		})
		require.Error(t, err)
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, released.Load())
	})
}
