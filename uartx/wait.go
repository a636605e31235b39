package uartx

import (
	"context"
	"fmt"
	"time"
)

// Notify returns a Callback that posts its Event on the returned channel,
// for callers that want to select on completion instead of handling it on
// the event context. The channel holds one event; use one pair per transfer
// or drain the channel before re-arming.
func Notify() (Callback, <-chan Event) {
	ch := make(chan Event, 1)
	return func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	}, ch
}

// Wait blocks until done delivers an Event or ctx is done.
func Wait(ctx context.Context, done <-chan Event) (Event, error) {
	select {
	case ev := <-done:
		return ev, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}

// WaitTimeout is Wait with a deadline d from now.
func WaitTimeout(done <-chan Event, d time.Duration) (Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return Wait(ctx, done)
}
