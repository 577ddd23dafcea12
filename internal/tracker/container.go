// internal/tracker/container.go
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/spacewatch/api/schemas"
	"github.com/xkilldash9x/spacewatch/internal/measure"
	"github.com/xkilldash9x/spacewatch/internal/stream"
	"github.com/xkilldash9x/spacewatch/internal/trigger"
)

// ViewportName is the reserved name of the container bound to the viewport.
const ViewportName = "viewport"

// failureLogInterval throttles repeated measurement failure logs per container.
const failureLogInterval = 5 * time.Second

type trackedContent struct {
	element *schemas.Element
	id      string
	// gen distinguishes successive tracking periods of the same element.
	gen uint64
}

type tallestContent struct {
	id     string
	height float64
}

// Container tracks the space left in a viewport or element once its
// tracked contents are subtracted. It recomputes on every trigger signal and
// publishes on three independent streams, each only when its value changed.
type Container struct {
	name     string
	element  *schemas.Element
	provider measure.Provider
	logger   *zap.Logger

	// mu guards contents and nextGen.
	mu       sync.Mutex
	contents []trackedContent
	nextGen  uint64

	// cycleMu serializes recompute cycles and guards the last-known values.
	cycleMu       sync.Mutex
	lastContainer *schemas.Size
	lastAvailable *schemas.Size
	lastTallest   *tallestContent

	containerSize  *stream.Value[schemas.AvailableSize]
	availableSize  *stream.Value[schemas.AvailableSize]
	tallestContent *stream.Value[schemas.AvailableSize]

	failureLog rate.Sometimes
}

func newContainer(name string, element *schemas.Element, provider measure.Provider, logger *zap.Logger, buffer int) *Container {
	return &Container{
		name:           name,
		element:        element,
		provider:       provider,
		logger:         logger.With(zap.String("container", name)),
		containerSize:  stream.New[schemas.AvailableSize](buffer),
		availableSize:  stream.New[schemas.AvailableSize](buffer),
		tallestContent: stream.New[schemas.AvailableSize](buffer),
		failureLog:     rate.Sometimes{Interval: failureLogInterval},
	}
}

// Name returns the normalized container name.
func (c *Container) Name() string { return c.name }

// Element returns the bound element, nil for the viewport container.
func (c *Container) Element() *schemas.Element { return c.element }

// IsViewport reports whether the container tracks the viewport.
func (c *Container) IsViewport() bool { return c.element == nil }

// ContainerSize emits the container's own size whenever it changes.
func (c *Container) ContainerSize() *stream.Value[schemas.AvailableSize] { return c.containerSize }

// AvailableSize emits the remaining space whenever it changes.
func (c *Container) AvailableSize() *stream.Value[schemas.AvailableSize] { return c.availableSize }

// TallestContent emits when the tallest tracked element, or its height, changes.
func (c *Container) TallestContent() *stream.Value[schemas.AvailableSize] { return c.tallestContent }

// AddContent starts tracking el and returns an action that stops tracking
// it. Adding an element whose identifier is already tracked keeps a single
// entry. The action only ever removes the entry el was tracked under: when el
// was deduplicated against a different element, or the entry has since been
// removed and re-added, it does nothing. It is safe to call any number of times.
func (c *Container) AddContent(el *schemas.Element) func() {
	if el == nil {
		return func() {}
	}
	id := c.provider.AssignIdentifier(el)

	c.mu.Lock()
	var (
		entry trackedContent
		found bool
	)
	for _, tc := range c.contents {
		if tc.id == id {
			entry, found = tc, true
			break
		}
	}
	if !found {
		c.nextGen++
		entry = trackedContent{element: el, id: id, gen: c.nextGen}
		c.contents = append(c.contents, entry)
	}
	c.mu.Unlock()

	if !found {
		c.logger.Debug("Content tracked.", zap.Stringer("element", el), zap.String("id", id))
	}
	if entry.element != el {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.removeContent(el, entry.gen) })
	}
}

func (c *Container) removeContent(el *schemas.Element, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, tc := range c.contents {
		if tc.element == el && tc.gen == gen {
			c.contents = append(c.contents[:i], c.contents[i+1:]...)
			c.logger.Debug("Content untracked.", zap.Stringer("element", tc.element), zap.String("id", tc.id))
			return
		}
	}
}

// Contains reports whether this exact element reference is tracked.
func (c *Container) Contains(el *schemas.Element) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tc := range c.contents {
		if tc.element == el {
			return true
		}
	}
	return false
}

func (c *Container) snapshotContents() []*schemas.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	els := make([]*schemas.Element, len(c.contents))
	for i, tc := range c.contents {
		els[i] = tc.element
	}
	return els
}

// run consumes trigger signals until ctx is done or the subscription closes.
func (c *Container) run(ctx context.Context, signals <-chan trigger.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			c.recompute(ctx, sig)
		}
	}
}

// recompute runs one full cycle: container size, then available size, then
// tallest content. A panic or measurement failure ends only this cycle.
func (c *Container) recompute(ctx context.Context, sig trigger.Signal) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recompute cycle panicked.",
				zap.Any("panic", r), zap.String("source", string(sig.Source)), zap.Uint64("seq", sig.Seq))
		}
	}()

	size, err := c.measureContainer(ctx)
	if err != nil {
		c.failureLog.Do(func() {
			c.logger.Warn("Container measurement failed; skipping cycle.",
				zap.String("source", string(sig.Source)), zap.Error(err))
		})
		return
	}

	if c.lastContainer == nil || *c.lastContainer != size {
		c.lastContainer = &size
		c.containerSize.Publish(schemas.AvailableSize{
			ContainerSize: size,
			Contents:      []schemas.ContentSize{},
			Width:         size.Width,
			Height:        size.Height,
		})
	}

	contents := c.provider.ElementsSizes(ctx, c.snapshotContents())
	if contents == nil {
		contents = []schemas.ContentSize{}
	}

	available := size
	for _, cs := range contents {
		available.Width -= cs.ContentSize.Width
		available.Height -= cs.ContentSize.Height
	}

	if c.lastAvailable == nil || *c.lastAvailable != available {
		c.lastAvailable = &available
		c.availableSize.Publish(schemas.AvailableSize{
			ContainerSize: size,
			Contents:      cloneContents(contents),
			Width:         available.Width,
			Height:        available.Height,
		})
	}

	if len(contents) == 0 {
		return
	}

	// Strictly greater only: the first of several equally tall contents wins.
	best := contents[0]
	for _, cs := range contents[1:] {
		if cs.ContentSize.Height > best.ContentSize.Height {
			best = cs
		}
	}

	id := c.provider.AssignIdentifier(best.Content)
	if c.lastTallest != nil && c.lastTallest.id == id && c.lastTallest.height == best.ContentSize.Height {
		return
	}
	c.lastTallest = &tallestContent{id: id, height: best.ContentSize.Height}
	c.tallestContent.Publish(schemas.AvailableSize{
		ContainerSize:   size,
		Contents:        cloneContents(contents),
		SelectedContent: &best,
		Width:           available.Width,
		Height:          available.Height,
	})
}

// cloneContents gives each published payload its own slice so subscribers
// never share a backing array.
func cloneContents(contents []schemas.ContentSize) []schemas.ContentSize {
	out := make([]schemas.ContentSize, len(contents))
	copy(out, contents)
	return out
}

func (c *Container) measureContainer(ctx context.Context) (schemas.Size, error) {
	if c.IsViewport() {
		size, err := c.provider.ViewportSize(ctx)
		if err != nil {
			return schemas.Size{}, fmt.Errorf("viewport size: %w", err)
		}
		return size, nil
	}
	return c.provider.ElementSize(ctx, c.element), nil
}

func (c *Container) close() {
	c.containerSize.Close()
	c.availableSize.Close()
	c.tallestContent.Close()
}
