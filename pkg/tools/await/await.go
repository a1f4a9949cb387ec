package await

import (
	"context"
	"sync"
	"time"
)

// Awaiter blocks until its event or ctx cancellation,
// reporting whether the event happened.
type Awaiter interface {
	Await(ctx context.Context) bool
}

type ready struct{}

func (ready) Await(ctx context.Context) bool {
	return ctx.Err() == nil
}

var timers = sync.Pool{
	New: func() any {
		t := time.NewTimer(time.Hour)
		t.Stop()
		return t
	},
}

type timer struct {
	*time.Timer
}

// After fires once d has passed, right away when d is not positive.
// The awaiter is single use.
func After(d time.Duration) Awaiter {
	if d <= 0 {
		return ready{}
	}

	t := timers.Get().(*time.Timer)
	t.Reset(d)
	return &timer{t}
}

func (t *timer) Await(ctx context.Context) bool {
	defer func() {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		timers.Put(t.Timer)
	}()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type Ticker struct {
	*time.Ticker
}

// Tick fires every interval until stopped.
func Tick(interval time.Duration) *Ticker {
	return &Ticker{time.NewTicker(interval)}
}

func (t *Ticker) Await(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return ctx.Err() == nil
	}
}
