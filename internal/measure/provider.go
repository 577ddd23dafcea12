// Package measure defines the measurement capability the tracker consumes
// and provides a Chrome DevTools Protocol implementation of it.
package measure

import (
	"context"

	"github.com/xkilldash9x/spacewatch/api/schemas"
)

// Provider answers geometry queries about a page.
type Provider interface {
	// ViewportSize returns the size of the visible display area.
	ViewportSize(ctx context.Context) (schemas.Size, error)

	// ElementSize returns the bounding size of el, or a zero Size when el is
	// nil or cannot be measured.
	ElementSize(ctx context.Context, el *schemas.Element) schemas.Size

	// ElementsSizes measures each element, silently skipping nil or
	// unmeasurable entries and preserving the order of the rest.
	ElementsSizes(ctx context.Context, els []*schemas.Element) []schemas.ContentSize

	// AssignIdentifier returns the stable identifier for el, assigning one
	// on first use. It returns "" for a nil element.
	AssignIdentifier(el *schemas.Element) string

	// ResizeSignal is a debounced stream of viewport resize notifications.
	ResizeSignal() <-chan struct{}
}
