package tracker

import (
	"errors"
	"fmt"
)

// ErrRegistryClosed is returned when a container is added after Close.
var ErrRegistryClosed = errors.New("container registry is closed")

// InvalidNameError reports a blank container name. Name holds the value
// exactly as the caller passed it.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid container name: %q", e.Name)
}
