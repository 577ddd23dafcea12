// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/spacewatch/api/schemas"
	"github.com/xkilldash9x/spacewatch/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Tracker() config.TrackerConfig {
	args := m.Called()
	return args.Get(0).(config.TrackerConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetBrowserViewport(width, height int) {
	m.Called(width, height)
}

func (m *MockConfig) SetTrackerPollInterval(d time.Duration) {
	m.Called(d)
}

// -- Measurement Provider Mock --

// MockProvider mocks measure.Provider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ViewportSize(ctx context.Context) (schemas.Size, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.Size), args.Error(1)
}

func (m *MockProvider) ElementSize(ctx context.Context, el *schemas.Element) schemas.Size {
	args := m.Called(ctx, el)
	return args.Get(0).(schemas.Size)
}

func (m *MockProvider) ElementsSizes(ctx context.Context, els []*schemas.Element) []schemas.ContentSize {
	args := m.Called(ctx, els)
	if sizes := args.Get(0); sizes != nil {
		return sizes.([]schemas.ContentSize)
	}
	return nil
}

func (m *MockProvider) AssignIdentifier(el *schemas.Element) string {
	args := m.Called(el)
	return args.String(0)
}

func (m *MockProvider) ResizeSignal() <-chan struct{} {
	args := m.Called()
	if ch := args.Get(0); ch != nil {
		return ch.(<-chan struct{})
	}
	return nil
}

// -- CDP Executor Mock --

// MockExecutor mocks measure.Executor.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) GetLayoutMetrics(ctx context.Context) (*page.VisualViewport, error) {
	args := m.Called(ctx)
	if vp := args.Get(0); vp != nil {
		return vp.(*page.VisualViewport), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExecutor) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	args := m.Called(ctx, script)
	if raw := args.Get(0); raw != nil {
		return raw.(json.RawMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExecutor) Run(ctx context.Context, actions ...chromedp.Action) error {
	args := m.Called(ctx, actions)
	return args.Error(0)
}

func (m *MockExecutor) ListenTarget(ctx context.Context, fn func(ev interface{})) {
	m.Called(ctx, fn)
}
