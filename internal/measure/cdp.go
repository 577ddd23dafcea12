// internal/measure/cdp.go
package measure

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/spacewatch/api/schemas"
	"github.com/xkilldash9x/spacewatch/internal/trigger"
)

// resizeBinding is the page-side function the resize listener calls.
const resizeBinding = "__spacewatchResize"

// resizeListenerScript forwards window resize events to the CDP binding.
// The guard keeps a second injection on the same document from doubling events.
const resizeListenerScript = `(function() {
	if (window.__spacewatchResizeInstalled) return;
	window.__spacewatchResizeInstalled = true;
	window.addEventListener('resize', function() {
		if (typeof window.` + resizeBinding + ` === 'function') {
			window.` + resizeBinding + `(JSON.stringify({width: window.innerWidth, height: window.innerHeight}));
		}
	});
})();`

// measureScript returns [{width, height} | null, ...] for a list of selectors.
// Missing or detached elements map to null.
const measureScript = `(function(selectors) {
	return selectors.map(function(sel) {
		var el;
		try { el = document.querySelector(sel); } catch (e) { return null; }
		if (!el || !el.isConnected) return null;
		var r = el.getBoundingClientRect();
		return {width: r.width, height: r.height};
	});
})(%s)`

// CDPOptions tunes a CDPProvider.
type CDPOptions struct {
	// MeasureTimeout bounds each CDP round trip. Zero means no extra bound.
	MeasureTimeout time.Duration
	// ResizeDebounce is the quiescence window for resize bursts.
	ResizeDebounce time.Duration
}

// CDPProvider measures a live page over the Chrome DevTools Protocol.
type CDPProvider struct {
	exec   Executor
	ids    *Identifiers
	logger *zap.Logger
	opts   CDPOptions

	rawResize chan struct{}
	resize    <-chan struct{}
}

var _ Provider = (*CDPProvider)(nil)

// NewCDPProvider installs the resize listener in the page behind ctx and
// returns a provider bound to it. ctx must be a chromedp tab context and
// bounds the lifetime of the resize signal.
func NewCDPProvider(ctx context.Context, exec Executor, logger *zap.Logger, opts CDPOptions) (*CDPProvider, error) {
	if opts.ResizeDebounce <= 0 {
		opts.ResizeDebounce = trigger.DefaultDebounce
	}
	p := &CDPProvider{
		exec:      exec,
		ids:       NewIdentifiers(),
		logger:    logger.Named("cdp_provider"),
		opts:      opts,
		rawResize: make(chan struct{}, 1),
	}

	exec.ListenTarget(ctx, p.handleEvent)

	err := exec.Run(ctx,
		runtime.AddBinding(resizeBinding),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(resizeListenerScript).Do(ctx)
			return err
		}),
		chromedp.Evaluate(resizeListenerScript, nil),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to install resize listener: %w", err)
	}

	p.resize = trigger.Debounce(ctx, p.rawResize, opts.ResizeDebounce)
	return p, nil
}

// handleEvent runs on the chromedp event goroutine and must not block.
func (p *CDPProvider) handleEvent(ev interface{}) {
	called, ok := ev.(*runtime.EventBindingCalled)
	if !ok || called.Name != resizeBinding {
		return
	}

	if ce := p.logger.Check(zap.DebugLevel, "Viewport resize observed."); ce != nil {
		var size schemas.Size
		if err := json.UnmarshalFromString(called.Payload, &size); err != nil {
			ce.Write(zap.String("payload", called.Payload), zap.Error(err))
		} else {
			ce.Write(zap.Stringer("size", size))
		}
	}

	select {
	case p.rawResize <- struct{}{}:
	default:
	}
}

func (p *CDPProvider) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.MeasureTimeout > 0 {
		return context.WithTimeout(ctx, p.opts.MeasureTimeout)
	}
	return context.WithCancel(ctx)
}

// ViewportSize returns the CSS visual viewport client size.
func (p *CDPProvider) ViewportSize(ctx context.Context) (schemas.Size, error) {
	opCtx, cancel := p.opContext(ctx)
	defer cancel()

	viewport, err := p.exec.GetLayoutMetrics(opCtx)
	if err != nil {
		return schemas.Size{}, fmt.Errorf("failed to get layout metrics: %w", err)
	}
	if viewport == nil {
		return schemas.Size{}, fmt.Errorf("layout metrics returned no visual viewport")
	}
	return schemas.Size{Width: viewport.ClientWidth, Height: viewport.ClientHeight}, nil
}

// ElementSize returns the element's bounding size, or zero when unmeasurable.
func (p *CDPProvider) ElementSize(ctx context.Context, el *schemas.Element) schemas.Size {
	sizes := p.ElementsSizes(ctx, []*schemas.Element{el})
	if len(sizes) == 0 {
		return schemas.Size{}
	}
	return sizes[0].ContentSize
}

// ElementsSizes measures all valid elements in one round trip.
func (p *CDPProvider) ElementsSizes(ctx context.Context, els []*schemas.Element) []schemas.ContentSize {
	valid := make([]*schemas.Element, 0, len(els))
	selectors := make([]string, 0, len(els))
	for _, el := range els {
		if el == nil || el.Selector == "" {
			continue
		}
		valid = append(valid, el)
		selectors = append(selectors, el.Selector)
	}
	if len(valid) == 0 {
		return []schemas.ContentSize{}
	}

	encoded, err := json.MarshalToString(selectors)
	if err != nil {
		p.logger.Warn("Failed to encode selectors.", zap.Error(err))
		return []schemas.ContentSize{}
	}

	opCtx, cancel := p.opContext(ctx)
	defer cancel()

	raw, err := p.exec.Evaluate(opCtx, fmt.Sprintf(measureScript, encoded))
	if err != nil {
		p.logger.Debug("Element measurement failed.", zap.Strings("selectors", selectors), zap.Error(err))
		return []schemas.ContentSize{}
	}

	var measured []*schemas.Size
	if err := json.Unmarshal(raw, &measured); err != nil {
		p.logger.Warn("Unexpected measurement payload.", zap.ByteString("payload", raw), zap.Error(err))
		return []schemas.ContentSize{}
	}

	out := make([]schemas.ContentSize, 0, len(valid))
	for i, el := range valid {
		if i >= len(measured) || measured[i] == nil {
			continue
		}
		out = append(out, schemas.ContentSize{Content: el, ContentSize: *measured[i]})
	}
	return out
}

// AssignIdentifier delegates to the provider's identifier registry.
func (p *CDPProvider) AssignIdentifier(el *schemas.Element) string {
	return p.ids.Assign(el)
}

// ResizeSignal returns the debounced resize stream.
func (p *CDPProvider) ResizeSignal() <-chan struct{} {
	return p.resize
}
