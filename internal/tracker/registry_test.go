package tracker

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/spacewatch/api/schemas"
	"github.com/xkilldash9x/spacewatch/internal/mocks"
	"github.com/xkilldash9x/spacewatch/internal/trigger"
)

// -- Naming --

func TestRegistry_AddAndGetNormalizeNames(t *testing.T) {
	p := newFakeProvider(viewport)
	reg, _ := newTestRegistry(t, p)
	panel := p.place(200, 200)

	added, err := reg.AddContainer("  Side Panel ", panel)
	require.NoError(t, err)
	assert.Equal(t, "side panel", added.Name())
	assert.Same(t, panel, added.Element())

	for _, lookup := range []string{"side panel", "SIDE PANEL", "\tSide Panel\n"} {
		assert.Same(t, added, reg.GetContainer(lookup), lookup)
	}
}

func TestRegistry_AddContainerIsIdempotent(t *testing.T) {
	p := newFakeProvider(viewport)
	reg, _ := newTestRegistry(t, p)
	first := p.place(200, 200)
	second := p.place(300, 300)

	a, err := reg.AddContainer("main", first)
	require.NoError(t, err)
	b, err := reg.AddContainer("MAIN", second)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Same(t, first, b.Element(), "the new element argument is ignored")
	assert.Equal(t, 1, reg.ContainersCount())
}

func TestRegistry_InvalidNames(t *testing.T) {
	reg, _ := newTestRegistry(t, newFakeProvider(viewport))

	for _, name := range []string{"", "   ", "\t\n"} {
		c, err := reg.AddContainer(name, nil)
		require.Error(t, err)
		assert.Nil(t, c)

		var invalid *InvalidNameError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, name, invalid.Name)
		assert.Contains(t, err.Error(), strconv.Quote(name), "message echoes the literal value")
	}
	assert.Zero(t, reg.ContainersCount())
}

func TestRegistry_GetContainerMisses(t *testing.T) {
	reg, _ := newTestRegistry(t, newFakeProvider(viewport))
	assert.Nil(t, reg.GetContainer("unknown"))
	assert.Nil(t, reg.GetContainer(""))
	assert.Nil(t, reg.GetContainer("   "))
}

// -- Viewport Singleton --

func TestRegistry_ViewportSingleton(t *testing.T) {
	p := newFakeProvider(viewport)
	reg, _ := newTestRegistry(t, p)

	a, err := reg.Viewport()
	require.NoError(t, err)
	b, err := reg.AddContainer("sidebar", nil)
	require.NoError(t, err)
	c, err := reg.AddContainer(" ViewPort ", p.place(10, 10))
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Same(t, a, c)
	assert.Equal(t, ViewportName, a.Name())
	assert.True(t, a.IsViewport())
	assert.Nil(t, a.Element(), "the viewport never binds to an element")
	assert.Equal(t, 1, reg.ContainersCount())
	assert.Nil(t, reg.GetContainer("sidebar"))
	assert.Equal(t, []string{ViewportName}, reg.Names())
}

// -- Triggering --

func TestRegistry_ManualTriggerRunsOneCyclePerContainer(t *testing.T) {
	p := newFakeProvider(viewport)
	reg, _ := newTestRegistry(t, p)

	vp, err := reg.Viewport()
	require.NoError(t, err)
	panel := p.place(200, 200)
	pc, err := reg.AddContainer("panel", panel)
	require.NoError(t, err)
	pc.AddContent(p.place(50, 50))

	vpAvail, unsubVp := vp.AvailableSize().Subscribe()
	defer unsubVp()
	pcAvail, unsubPc := pc.AvailableSize().Subscribe()
	defer unsubPc()

	reg.TriggerEvent()

	assert.Equal(t, viewport.Width, await(t, vpAvail).Width)
	assert.Equal(t, 150.0, await(t, pcAvail).Width)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, p.cycles(nil))
	assert.Equal(t, 1, p.cycles(panel))
}

func TestRegistry_RepeatedTriggerWithoutChangeIsSilent(t *testing.T) {
	p := newFakeProvider(viewport)
	reg, _ := newTestRegistry(t, p)
	vp, err := reg.Viewport()
	require.NoError(t, err)

	avail, unsubscribe := vp.AvailableSize().Subscribe()
	defer unsubscribe()

	reg.TriggerEvent()
	await(t, avail)

	for i := 2; i <= 3; i++ {
		reg.TriggerEvent()
		want := i
		require.Eventually(t, func() bool { return p.cycles(nil) == want }, time.Second, 5*time.Millisecond)
	}
	assert.Empty(t, collect(avail))

	p.setViewport(schemas.Size{Width: 640, Height: 480})
	reg.TriggerEvent()
	assert.Equal(t, 640.0, await(t, avail).Width)
}

func TestRegistry_FailingContainerDoesNotStallOthers(t *testing.T) {
	p := newFakeProvider(viewport)
	p.setViewportErr(errors.New("viewport unavailable"))
	reg, _ := newTestRegistry(t, p)

	vp, err := reg.Viewport()
	require.NoError(t, err)
	pc, err := reg.AddContainer("panel", p.place(300, 100))
	require.NoError(t, err)

	pcAvail, unsubscribe := pc.AvailableSize().Subscribe()
	defer unsubscribe()

	reg.TriggerEvent()
	assert.Equal(t, 300.0, await(t, pcAvail).Width)

	_, ok := vp.AvailableSize().Last()
	assert.False(t, ok)
}

func TestRegistry_TimerDrivesRecompute(t *testing.T) {
	p := newFakeProvider(viewport)
	logger := zaptest.NewLogger(t)
	bus := trigger.NewBus(logger, trigger.Options{PollInterval: 10 * time.Millisecond})
	reg := NewRegistry(context.Background(), p, bus, logger, Options{})
	t.Cleanup(func() {
		reg.Close()
		bus.Shutdown()
	})

	vp, err := reg.Viewport()
	require.NoError(t, err)
	avail, unsubscribe := vp.AvailableSize().Subscribe()
	defer unsubscribe()

	bus.Start(context.Background())
	await(t, avail)

	p.setViewport(schemas.Size{Width: 1024, Height: 768})
	assert.Equal(t, 1024.0, await(t, avail).Width, "polling catches changes without explicit events")
}

// -- Passthroughs --

func TestRegistry_Passthroughs(t *testing.T) {
	provider := new(mocks.MockProvider)
	signals := trigger.NewBus(zaptest.NewLogger(t), trigger.Options{PollInterval: time.Hour})
	reg := NewRegistry(context.Background(), provider, signals, zaptest.NewLogger(t), Options{})
	t.Cleanup(func() {
		reg.Close()
		signals.Shutdown()
	})

	el := &schemas.Element{Selector: "#hero"}
	provider.On("ElementSize", mock.Anything, el).Return(schemas.Size{Width: 640, Height: 360}).Once()
	provider.On("ViewportSize", mock.Anything).Return(schemas.Size{Width: 1920, Height: 1080}, nil).Once()

	assert.Equal(t, schemas.Size{Width: 640, Height: 360}, reg.ElementSize(context.Background(), el))
	size, err := reg.ViewportSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schemas.Size{Width: 1920, Height: 1080}, size)
	provider.AssertExpectations(t)
}

// -- Lifecycle --

func TestRegistry_CloseStopsEverything(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newFakeProvider(viewport)
	logger := zaptest.NewLogger(t)
	bus := trigger.NewBus(logger, trigger.Options{PollInterval: 5 * time.Millisecond})
	reg := NewRegistry(context.Background(), p, bus, logger, Options{})
	bus.Start(context.Background())

	vp, err := reg.Viewport()
	require.NoError(t, err)
	_, err = reg.AddContainer("panel", p.place(10, 10))
	require.NoError(t, err)

	avail, _ := vp.AvailableSize().Subscribe()
	await(t, avail)

	reg.Close()
	reg.Close()
	bus.Shutdown()

	for range avail {
	}
	assert.Zero(t, bus.SubscriberCount())

	_, err = reg.AddContainer("late", p.place(1, 1))
	assert.ErrorIs(t, err, ErrRegistryClosed)
	assert.NotNil(t, reg.GetContainer("panel"), "registered containers stay queryable")
}
