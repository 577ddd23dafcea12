// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/spacewatch/internal/config"
)

// shutdownTimeout bounds how long Close waits for the browser process to exit.
const shutdownTimeout = 10 * time.Second

// Session owns one Chromium process and a single tab in it.
type Session struct {
	id     string
	cfg    config.BrowserConfig
	logger *zap.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewSession launches a browser configured by cfg and opens a blank tab.
// The tab lives until Close is called or ctx is cancelled.
func NewSession(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Session, error) {
	browserCfg := cfg.Browser()
	id := uuid.NewString()
	log := logger.Named("browser").With(zap.String("session_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(browserCfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Errorf),
	)

	// Run with no actions starts the browser and attaches to the first target.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Info("Browser session started.",
		zap.Bool("headless", browserCfg.Headless),
		zap.Int("width", browserCfg.Viewport.Width),
		zap.Int("height", browserCfg.Viewport.Height))

	return &Session{
		id:          id,
		cfg:         browserCfg,
		logger:      log,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
	}, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Context returns the chromedp tab context. Actions run against it target
// this session's page.
func (s *Session) Context() context.Context { return s.ctx }

// Navigate loads url and waits for the document body, bounded by the
// configured navigation timeout.
func (s *Session) Navigate(url string) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("navigation url is required")
	}

	ctx := s.ctx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}

	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Close shuts the tab and the browser process. It is safe to call more
// than once; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.closeErr = fmt.Errorf("failed to close browser: %w", err)
			}
		case <-time.After(shutdownTimeout):
			s.logger.Warn("Browser shutdown timed out; forcing.", zap.Duration("timeout", shutdownTimeout))
		}

		s.cancel()
		s.allocCancel()
		s.logger.Info("Browser session closed.")
	})
	return s.closeErr
}
