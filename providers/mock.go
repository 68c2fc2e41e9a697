package providers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/voxmux/voxmux/types"
)

// Mock is a scripted provider for tests and development. It records
// invocations and can be configured to fail, delay, or echo a fixed
// result without touching any real engine.
type Mock struct {
	name       string
	capability types.Capability

	// Result is returned on success. Zero value returns a result whose
	// Text echoes the request text.
	Result types.Result

	// Err, when set, makes every invocation fail.
	Err error

	// Delay simulates provider latency; the invocation still honors
	// context cancellation while waiting.
	Delay time.Duration

	invocations atomic.Int64
}

// NewMock creates a mock provider for the given capability.
func NewMock(name string, capability types.Capability) *Mock {
	return &Mock{name: name, capability: capability}
}

// Name returns the backend identifier.
func (m *Mock) Name() string {
	return m.name
}

// Capability returns the capability this mock serves.
func (m *Mock) Capability() types.Capability {
	return m.capability
}

// Invoke returns the scripted result or error.
func (m *Mock) Invoke(ctx context.Context, req types.Request) (types.Result, error) {
	m.invocations.Add(1)

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return types.Result{}, ctx.Err()
		}
	}

	if m.Err != nil {
		return types.Result{}, m.Err
	}

	if m.Result.Text == "" && len(m.Result.Audio) == 0 {
		return types.Result{Text: "mock:" + req.Text}, nil
	}
	return m.Result, nil
}

// Invocations returns how many times Invoke was called.
func (m *Mock) Invocations() int {
	return int(m.invocations.Load())
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

var _ Provider = (*Mock)(nil)
