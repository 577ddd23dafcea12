package measure

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/xkilldash9x/spacewatch/api/schemas"
)

// Identifiers maps element references to stable identifiers without
// mutating the caller's elements.
type Identifiers struct {
	mu  sync.Mutex
	ids map[*schemas.Element]string
}

// NewIdentifiers returns an empty registry.
func NewIdentifiers() *Identifiers {
	return &Identifiers{ids: make(map[*schemas.Element]string)}
}

// Assign returns the identifier for el. A non-blank Element.ID is used as is;
// otherwise a UUID is generated once and remembered. Returns "" for nil.
func (r *Identifiers) Assign(el *schemas.Element) string {
	if el == nil {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[el]; ok {
		return id
	}
	id := strings.TrimSpace(el.ID)
	if id == "" {
		id = uuid.NewString()
	}
	r.ids[el] = id
	return id
}
