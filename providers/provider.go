// Package providers defines the uniform backend contract and the
// registry that orders backends for the router.
//
// Each backend binds one capability (speech-to-text, text-to-speech, or
// chat) to an actual engine, local or cloud, behind a single Invoke
// method. The routing core is agnostic to what is inside a provider;
// the adapters in this package (OpenAI, Ollama, ElevenLabs, Cartesia,
// Google Cloud Speech) are thin bindings over the respective APIs.
package providers

import (
	"context"

	"github.com/voxmux/voxmux/credentials"
	"github.com/voxmux/voxmux/types"
)

// Provider is the uniform invocation contract for all backends.
type Provider interface {
	// Name returns the backend identifier (for logging and quota keys).
	Name() string

	// Capability returns the one capability this provider fulfills.
	Capability() types.Capability

	// Invoke performs the provider call. The context carries the
	// per-call timeout; implementations must honor cancellation.
	Invoke(ctx context.Context, req types.Request) (types.Result, error)

	// Close releases provider resources (HTTP connections, RPC clients).
	Close() error
}

// Descriptor is the immutable registration record for a backend.
type Descriptor struct {
	// Name uniquely identifies the backend.
	Name string

	// Capability is the kind of request the backend serves.
	Capability types.Capability

	// Locality records whether the engine is offline/local or cloud.
	Locality types.Locality

	// Priority orders backends within a capability; lower is tried
	// first. Ties break by registration order.
	Priority int

	// DailyLimit caps successful invocations per UTC day. 0 = unlimited.
	DailyLimit int

	// RPS throttles invocation attempts per second. 0 = unthrottled.
	RPS float64

	// Burst is the throttle burst size; defaults to 1 when RPS is set.
	Burst int
}

// Spec holds the configuration needed to construct a provider instance.
type Spec struct {
	// Type selects the provider implementation ("openai", "ollama",
	// "elevenlabs", "cartesia", "azure", "polly", "google", "fallback",
	// "mock").
	Type string

	// Descriptor is the registration record for the backend.
	Descriptor Descriptor

	// BaseURL overrides the implementation's default endpoint.
	BaseURL string

	// Model is the default model for this backend.
	Model string

	// Voice is the default synthesis voice (TTS backends).
	Voice string

	// Credential authenticates requests to cloud engines.
	Credential credentials.Credential

	// Reply is the canned response for the fallback chat provider.
	Reply string
}

// CreateFromSpec constructs a provider implementation from a spec.
func CreateFromSpec(ctx context.Context, spec Spec) (Provider, error) {
	switch spec.Type {
	case "openai":
		return newOpenAIFromSpec(spec)
	case "ollama":
		return newOllamaFromSpec(spec), nil
	case "elevenlabs":
		return newElevenLabsFromSpec(spec), nil
	case "cartesia":
		return newCartesiaFromSpec(spec), nil
	case "azure":
		return newAzureTTSFromSpec(spec)
	case "polly":
		return newPollyFromSpec(spec)
	case "google":
		return newGoogleSTTFromSpec(ctx, spec)
	case "fallback":
		return newFallbackFromSpec(spec), nil
	case "mock":
		return NewMock(spec.Descriptor.Name, spec.Descriptor.Capability), nil
	}
	return nil, &UnsupportedTypeError{Type: spec.Type}
}

// UnsupportedTypeError is returned when a provider type is not recognized.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return "unsupported provider type: " + e.Type
}
