// internal/tracker/registry.go
package tracker

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/spacewatch/api/schemas"
	"github.com/xkilldash9x/spacewatch/internal/measure"
	"github.com/xkilldash9x/spacewatch/internal/stream"
	"github.com/xkilldash9x/spacewatch/internal/trigger"
)

// Signals is the trigger source a Registry subscribes its containers to.
// *trigger.Bus satisfies it.
type Signals interface {
	Subscribe() (<-chan trigger.Signal, func())
	Fire()
}

var _ Signals = (*trigger.Bus)(nil)

// Options tunes a Registry.
type Options struct {
	// StreamBuffer is the per-subscriber buffer of every container stream.
	StreamBuffer int
}

// Registry creates and looks up named containers. Each container gets its
// own trigger subscription and recompute goroutine.
type Registry struct {
	ctx      context.Context
	cancel   context.CancelFunc
	provider measure.Provider
	signals  Signals
	logger   *zap.Logger
	opts     Options

	mu           sync.RWMutex
	containers   map[string]*Container
	unsubscribes []func()
	closed       bool
	wg           sync.WaitGroup
}

// NewRegistry wires a registry to its measurement provider and trigger
// source. Container loops stop when ctx is cancelled or Close is called.
func NewRegistry(ctx context.Context, provider measure.Provider, signals Signals, logger *zap.Logger, opts Options) *Registry {
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = stream.DefaultBuffer
	}
	rctx, cancel := context.WithCancel(ctx)
	return &Registry{
		ctx:        rctx,
		cancel:     cancel,
		provider:   provider,
		signals:    signals,
		logger:     logger.Named("tracker"),
		opts:       opts,
		containers: make(map[string]*Container),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AddContainer registers a container, or returns the one already registered
// under the same normalized name. A nil element binds the container to the
// viewport and forces the name "viewport"; the viewport name ignores any
// element passed with it.
func (r *Registry) AddContainer(name string, element *schemas.Element) (*Container, error) {
	normalized := normalizeName(name)
	if normalized == "" {
		return nil, &InvalidNameError{Name: name}
	}
	if element == nil {
		normalized = ViewportName
	}
	if normalized == ViewportName {
		element = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.containers[normalized]; ok {
		return c, nil
	}
	if r.closed {
		return nil, ErrRegistryClosed
	}

	c := newContainer(normalized, element, r.provider, r.logger, r.opts.StreamBuffer)
	signals, unsubscribe := r.signals.Subscribe()
	r.containers[normalized] = c
	r.unsubscribes = append(r.unsubscribes, unsubscribe)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		c.run(r.ctx, signals)
	}()

	r.logger.Debug("Container registered.", zap.String("container", normalized), zap.Stringer("element", element))
	return c, nil
}

// Viewport returns the viewport container, creating it on first use.
func (r *Registry) Viewport() (*Container, error) {
	return r.AddContainer(ViewportName, nil)
}

// GetContainer returns the container registered under name, or nil.
func (r *Registry) GetContainer(name string) *Container {
	normalized := normalizeName(name)
	if normalized == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.containers[normalized]
}

// TriggerEvent forces an immediate recompute of every container.
func (r *Registry) TriggerEvent() {
	r.signals.Fire()
}

// ElementSize measures el through the registry's provider.
func (r *Registry) ElementSize(ctx context.Context, el *schemas.Element) schemas.Size {
	return r.provider.ElementSize(ctx, el)
}

// ViewportSize measures the viewport through the registry's provider.
func (r *Registry) ViewportSize(ctx context.Context) (schemas.Size, error) {
	return r.provider.ViewportSize(ctx)
}

// ContainersCount returns the number of distinct registered containers.
func (r *Registry) ContainersCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.containers)
}

// Names returns the registered container names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.containers))
	for name := range r.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close stops every container loop, unsubscribes from the trigger source,
// and closes all container streams. Registered containers stay queryable.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsubscribes := r.unsubscribes
	r.unsubscribes = nil
	r.mu.Unlock()

	r.cancel()
	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
	r.wg.Wait()

	r.mu.RLock()
	for _, c := range r.containers {
		c.close()
	}
	r.mu.RUnlock()
	r.logger.Debug("Container registry closed.")
}
