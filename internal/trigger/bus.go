// internal/trigger/bus.go
package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Source tags where a Signal came from. It is diagnostic only; consumers
// treat every signal the same way.
type Source string

const (
	SourceResize Source = "resize"
	SourceTimer  Source = "timer"
	SourceManual Source = "manual"
)

// DefaultPollInterval is the period of the timer source when none is configured.
const DefaultPollInterval = 250 * time.Millisecond

// Signal is the unit "recompute now" event.
type Signal struct {
	ID        string
	Seq       uint64
	Source    Source
	Timestamp time.Time
}

// Options configures a Bus.
type Options struct {
	// PollInterval is the timer source period. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Buffer is the per-subscriber channel capacity. Defaults to 1.
	Buffer int
	// Resize is the already-debounced resize source. May be nil.
	Resize <-chan struct{}
}

// Bus merges the resize, timer, and manual sources into one broadcast stream.
// Every subscriber observes every signal; a subscriber that still has a
// signal pending does not get a second one queued behind it, since a single
// pending signal already guarantees a recompute.
type Bus struct {
	logger *zap.Logger
	opts   Options

	mu          sync.RWMutex
	subscribers []chan Signal
	seq         uint64

	startOnce    sync.Once
	shutdownOnce sync.Once
	isShutdown   bool
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewBus initializes a Bus. Call Start to begin the timer and resize sources.
func NewBus(logger *zap.Logger, opts Options) *Bus {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1
	}
	return &Bus{
		logger: logger.Named("trigger_bus"),
		opts:   opts,
	}
}

// Start launches the fan-in loop for the timer and resize sources. The loop
// stops when ctx is cancelled or Shutdown is called. Calling Start more than
// once has no effect.
func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.mu.Lock()
		if b.isShutdown {
			b.mu.Unlock()
			return
		}
		loopCtx, cancel := context.WithCancel(ctx)
		b.cancel = cancel
		b.done = make(chan struct{})
		b.mu.Unlock()

		go b.loop(loopCtx)
		b.logger.Debug("Trigger bus started.", zap.Duration("poll_interval", b.opts.PollInterval))
	})
}

func (b *Bus) loop(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	resize := b.opts.Resize
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.emit(SourceTimer)
		case _, ok := <-resize:
			if !ok {
				// A closed source must not spin the loop.
				resize = nil
				continue
			}
			b.emit(SourceResize)
		}
	}
}

// Fire emits a manual signal immediately from the caller's goroutine.
func (b *Bus) Fire() {
	b.emit(SourceManual)
}

func (b *Bus) emit(src Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		return
	}

	b.seq++
	sig := Signal{
		ID:        uuid.NewString(),
		Seq:       b.seq,
		Source:    src,
		Timestamp: time.Now().UTC(),
	}

	coalesced := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- sig:
		default:
			coalesced++
		}
	}
	if coalesced > 0 {
		b.logger.Debug("Signal coalesced into pending ones.",
			zap.String("source", string(src)), zap.Uint64("seq", sig.Seq), zap.Int("subscribers", coalesced))
	}
}

// Subscribe returns a channel of signals and an idempotent unsubscribe func.
// Subscribing to a shut down bus returns a closed channel.
func (b *Bus) Subscribe() (<-chan Signal, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Signal, b.opts.Buffer)
	if b.isShutdown {
		close(ch)
		return ch, func() {}
	}
	b.subscribers = append(b.subscribers, ch)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.isShutdown {
				// Shutdown already closed the channel.
				return
			}
			for i, sub := range b.subscribers {
				if sub == ch {
					b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, unsubscribe
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Shutdown stops the sources, closes every subscriber channel, and waits for
// the fan-in loop to exit.
func (b *Bus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.mu.Lock()
		b.isShutdown = true
		cancel, done := b.cancel, b.done
		for _, ch := range b.subscribers {
			close(ch)
		}
		b.subscribers = nil
		b.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
		b.logger.Debug("Trigger bus shut down.")
	})
}
