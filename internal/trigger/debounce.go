package trigger

import (
	"context"
	"time"
)

// DefaultDebounce is the quiescence window applied to viewport resize bursts.
const DefaultDebounce = 250 * time.Millisecond

// Debounce collapses bursts on in into a single emission once window has
// passed without a new event. A burst still pending when in is closed is
// flushed before the output closes. The output closes when ctx is done or
// in is closed.
func Debounce(ctx context.Context, in <-chan struct{}, window time.Duration) <-chan struct{} {
	if window <= 0 {
		window = DefaultDebounce
	}
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)

		timer := time.NewTimer(window)
		timer.Stop()
		defer timer.Stop()

		pending := false
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-in:
				if !ok {
					if pending {
						notify(out)
					}
					return
				}
				pending = true
				timer.Reset(window)
			case <-timer.C:
				if pending {
					pending = false
					notify(out)
				}
			}
		}
	}()
	return out
}

func notify(out chan<- struct{}) {
	select {
	case out <- struct{}{}:
	default:
	}
}
