package router

import (
	"errors"
	"fmt"

	"github.com/voxmux/voxmux/types"
)

// ErrAllBackendsExhausted is returned when one full pass over a
// capability's backends produced no result. The condition is transient:
// quotas reset at midnight UTC and cooldowns expire.
var ErrAllBackendsExhausted = errors.New("all backends exhausted")

// ErrUnknownCapability is returned for a capability the router does not
// serve.
var ErrUnknownCapability = errors.New("unknown capability")

// ExhaustedError carries the details of a failed backend walk.
type ExhaustedError struct {
	// Capability is the capability that could not be served.
	Capability types.Capability

	// Attempts is how many backends were considered.
	Attempts int

	// LastErr is the final provider failure, nil when every backend
	// was skipped without being invoked.
	LastErr error
}

func (e *ExhaustedError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("%s: all backends exhausted after %d attempts: %v", e.Capability, e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("%s: all backends exhausted after %d attempts", e.Capability, e.Attempts)
}

// Unwrap exposes both the sentinel and the last provider failure.
func (e *ExhaustedError) Unwrap() []error {
	if e.LastErr != nil {
		return []error{ErrAllBackendsExhausted, e.LastErr}
	}
	return []error{ErrAllBackendsExhausted}
}
