// Filename: internal/measure/executor.go
package measure

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Executor is the slice of the DevTools protocol the CDP provider needs.
// It exists so the provider can be exercised without a browser.
type Executor interface {
	// GetLayoutMetrics retrieves the CSS visual viewport.
	GetLayoutMetrics(ctx context.Context) (*page.VisualViewport, error)

	// Evaluate runs script in the page and returns its JSON result.
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)

	// Run executes arbitrary chromedp actions.
	Run(ctx context.Context, actions ...chromedp.Action) error

	// ListenTarget registers fn for every event of the page target.
	ListenTarget(ctx context.Context, fn func(ev interface{}))
}

// CDPExecutor is the production Executor. Every ctx it receives must descend
// from a chromedp tab context.
type CDPExecutor struct{}

var _ Executor = (*CDPExecutor)(nil)

// NewCDPExecutor creates a new production executor.
func NewCDPExecutor() *CDPExecutor {
	return &CDPExecutor{}
}

func (e *CDPExecutor) GetLayoutMetrics(ctx context.Context) (*page.VisualViewport, error) {
	var viewport *page.VisualViewport
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		_, _, _, _, viewport, _, err = page.GetLayoutMetrics().Do(ctx)
		return err
	}))
	return viewport, err
}

func (e *CDPExecutor) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	var res json.RawMessage
	err := chromedp.Run(ctx, chromedp.Evaluate(script, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithSilent(true)
	}))
	return res, err
}

func (e *CDPExecutor) Run(ctx context.Context, actions ...chromedp.Action) error {
	return chromedp.Run(ctx, actions...)
}

func (e *CDPExecutor) ListenTarget(ctx context.Context, fn func(ev interface{})) {
	chromedp.ListenTarget(ctx, fn)
}
