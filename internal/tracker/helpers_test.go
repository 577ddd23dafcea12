package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/spacewatch/api/schemas"
	"github.com/xkilldash9x/spacewatch/internal/measure"
	"github.com/xkilldash9x/spacewatch/internal/trigger"
)

// fakeProvider is a mutable in-memory page. Elements missing from sizes are
// treated as detached.
type fakeProvider struct {
	mu            sync.Mutex
	viewport      schemas.Size
	viewportErr   error
	sizes         map[*schemas.Element]schemas.Size
	panicOn       *schemas.Element
	ids           *measure.Identifiers
	viewportCalls int
	elementCalls  map[*schemas.Element]int
}

var _ measure.Provider = (*fakeProvider)(nil)

func newFakeProvider(viewport schemas.Size) *fakeProvider {
	return &fakeProvider{
		viewport:     viewport,
		sizes:        make(map[*schemas.Element]schemas.Size),
		ids:          measure.NewIdentifiers(),
		elementCalls: make(map[*schemas.Element]int),
	}
}

func (f *fakeProvider) setViewport(s schemas.Size) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewport = s
}

func (f *fakeProvider) setViewportErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewportErr = err
}

// place adds el to the fake page with the given size.
func (f *fakeProvider) place(w, h float64) *schemas.Element {
	el := &schemas.Element{Selector: "#el"}
	f.resize(el, w, h)
	return el
}

func (f *fakeProvider) resize(el *schemas.Element, w, h float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes[el] = schemas.Size{Width: w, Height: h}
}

func (f *fakeProvider) detach(el *schemas.Element) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sizes, el)
}

func (f *fakeProvider) ViewportSize(ctx context.Context) (schemas.Size, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewportCalls++
	return f.viewport, f.viewportErr
}

func (f *fakeProvider) ElementSize(ctx context.Context, el *schemas.Element) schemas.Size {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elementCalls[el]++
	return f.sizes[el]
}

func (f *fakeProvider) ElementsSizes(ctx context.Context, els []*schemas.Element) []schemas.ContentSize {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []schemas.ContentSize{}
	for _, el := range els {
		if el == nil {
			continue
		}
		if el == f.panicOn {
			panic("measurement exploded")
		}
		if s, ok := f.sizes[el]; ok {
			out = append(out, schemas.ContentSize{Content: el, ContentSize: s})
		}
	}
	return out
}

func (f *fakeProvider) AssignIdentifier(el *schemas.Element) string {
	return f.ids.Assign(el)
}

func (f *fakeProvider) ResizeSignal() <-chan struct{} { return nil }

func (f *fakeProvider) cycles(el *schemas.Element) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if el == nil {
		return f.viewportCalls
	}
	return f.elementCalls[el]
}

// newTestRegistry builds a registry on a real bus whose timer never fires
// during a test, so only manual triggers drive recomputes.
func newTestRegistry(t *testing.T, provider measure.Provider) (*Registry, *trigger.Bus) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	bus := trigger.NewBus(logger, trigger.Options{PollInterval: time.Hour, Buffer: 4})
	reg := NewRegistry(context.Background(), provider, bus, logger, Options{StreamBuffer: 16})
	t.Cleanup(func() {
		reg.Close()
		bus.Shutdown()
	})
	return reg, bus
}

// newTestContainer builds a detached container driven by direct recompute calls.
func newTestContainer(t *testing.T, provider measure.Provider, element *schemas.Element) *Container {
	t.Helper()
	name := ViewportName
	if element != nil {
		name = "panel"
	}
	return newContainer(name, element, provider, zaptest.NewLogger(t), 16)
}

func cycle(c *Container) {
	c.recompute(context.Background(), trigger.Signal{Source: trigger.SourceManual})
}

// collect returns everything currently buffered on ch without blocking.
func collect(ch <-chan schemas.AvailableSize) []schemas.AvailableSize {
	var out []schemas.AvailableSize
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		default:
			return out
		}
	}
}

func await(t *testing.T, ch <-chan schemas.AvailableSize) schemas.AvailableSize {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "stream closed unexpectedly")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for stream emission")
	}
	return schemas.AvailableSize{}
}
