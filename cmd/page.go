// cmd/page.go
package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/spacewatch/api/schemas"
	"github.com/xkilldash9x/spacewatch/internal/browser"
	"github.com/xkilldash9x/spacewatch/internal/config"
	"github.com/xkilldash9x/spacewatch/internal/measure"
)

// selectorPair is a parsed name=selector flag value.
type selectorPair struct {
	Name     string
	Selector string
}

// parseSelectorPairs parses repeated name=selector flag values. Both halves
// must be non-blank; the selector may itself contain '='.
func parseSelectorPairs(flag string, values []string) ([]selectorPair, error) {
	pairs := make([]selectorPair, 0, len(values))
	for _, raw := range values {
		name, selector, found := strings.Cut(raw, "=")
		name, selector = strings.TrimSpace(name), strings.TrimSpace(selector)
		if !found || name == "" || selector == "" {
			return nil, fmt.Errorf("invalid --%s value %q: expected name=selector", flag, raw)
		}
		pairs = append(pairs, selectorPair{Name: name, Selector: selector})
	}
	return pairs, nil
}

func elementFor(selector string) *schemas.Element {
	return &schemas.Element{Selector: selector}
}

// page is a navigated browser tab with a measurement provider attached.
type page struct {
	session  *browser.Session
	provider *measure.CDPProvider
}

// openPage launches the browser, loads url, and installs the CDP provider.
func openPage(ctx context.Context, cfg *config.Config, url string, logger *zap.Logger) (*page, error) {
	session, err := browser.NewSession(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := session.Navigate(url); err != nil {
		_ = session.Close()
		return nil, err
	}

	provider, err := measure.NewCDPProvider(session.Context(), measure.NewCDPExecutor(), logger, measure.CDPOptions{
		MeasureTimeout: cfg.Browser().MeasureTimeout,
		ResizeDebounce: cfg.Tracker().ResizeDebounce,
	})
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	return &page{session: session, provider: provider}, nil
}

func (p *page) Close(logger *zap.Logger) {
	if err := p.session.Close(); err != nil {
		logger.Warn("Browser did not shut down cleanly.", zap.Error(err))
	}
}
