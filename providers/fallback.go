package providers

import (
	"context"
	"strings"

	"github.com/voxmux/voxmux/types"
)

// defaultFallbackReply is returned when no reply is configured.
const defaultFallbackReply = "Sorry, I can't reach my language backends right now. Please try again in a moment."

// Fallback is a terminal local chat backend that returns a canned
// reply. Registered at the lowest priority it guarantees the chat
// capability degrades gracefully instead of failing outright when every
// real engine is exhausted or unreachable.
type Fallback struct {
	name  string
	reply string
}

// NewFallback creates a fallback chat provider with the given reply.
func NewFallback(name, reply string) *Fallback {
	if strings.TrimSpace(reply) == "" {
		reply = defaultFallbackReply
	}
	return &Fallback{name: name, reply: reply}
}

func newFallbackFromSpec(spec Spec) *Fallback {
	return NewFallback(spec.Descriptor.Name, spec.Reply)
}

// Name returns the backend identifier.
func (f *Fallback) Name() string {
	return f.name
}

// Capability returns chat; a canned reply makes no sense elsewhere.
func (f *Fallback) Capability() types.Capability {
	return types.CapabilityChat
}

// Invoke returns the canned reply.
func (f *Fallback) Invoke(_ context.Context, _ types.Request) (types.Result, error) {
	return types.Result{Text: f.reply}, nil
}

// Close is a no-op.
func (f *Fallback) Close() error {
	return nil
}

var _ Provider = (*Fallback)(nil)
