package schemas

import "fmt"

// -- Geometry Schemas --

// Size is a width/height pair measured in CSS pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%gx%g", s.Width, s.Height)
}

// Element is a caller-owned handle to a page element. Identity is the pointer,
// never the field values: two Elements with the same Selector are distinct.
type Element struct {
	// Selector locates the element in the page (CSS query syntax).
	Selector string `json:"selector"`
	// ID is an optional pre-assigned stable identifier. When blank, the
	// measurement provider assigns one on first use.
	ID string `json:"id,omitempty"`
}

func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	return e.Selector
}

// ContentSize pairs a tracked element with its measured bounding size.
type ContentSize struct {
	Content     *Element `json:"content"`
	ContentSize Size     `json:"contentSize"`
}

// AvailableSize is the payload emitted by every container stream.
// Width and Height hold the space remaining in the container after the
// tracked contents are subtracted, not the container's own size.
type AvailableSize struct {
	ContainerSize   Size          `json:"containerSize"`
	Contents        []ContentSize `json:"contents"`
	SelectedContent *ContentSize  `json:"selectedContent,omitempty"`
	Width           float64       `json:"width"`
	Height          float64       `json:"height"`
}
