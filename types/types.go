// Package types defines the shared data model for the voxmux routing core:
// capabilities, requests, results, and conversation messages.
package types

import (
	"time"
)

// Capability identifies a category of request the routing core can fulfill
// via interchangeable backends.
type Capability string

const (
	// CapabilitySpeechToText transcribes audio to text.
	CapabilitySpeechToText Capability = "stt"

	// CapabilityTextToSpeech synthesizes audio from text.
	CapabilityTextToSpeech Capability = "tts"

	// CapabilityChat generates a conversational reply.
	CapabilityChat Capability = "chat"
)

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	switch c {
	case CapabilitySpeechToText, CapabilityTextToSpeech, CapabilityChat:
		return true
	}
	return false
}

// Locality describes where a backend runs.
type Locality string

const (
	// LocalityLocal marks an offline engine running on the same host.
	LocalityLocal Locality = "local"

	// LocalityCloud marks a hosted engine reached over the network.
	LocalityCloud Locality = "cloud"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single turn in a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Request carries the capability-specific inputs for a single call.
// Fields that don't apply to the requested capability are left zero:
// Audio for STT, Text for TTS and chat, SessionID/Messages for chat.
type Request struct {
	// Text is the input text for TTS synthesis or the user's chat turn.
	Text string `json:"text,omitempty"`

	// Audio is the raw input audio for transcription.
	Audio []byte `json:"audio,omitempty"`

	// Format is the audio container/encoding hint ("pcm", "wav", "mp3").
	Format string `json:"format,omitempty"`

	// SampleRate is the audio sample rate in Hz (STT input audio).
	SampleRate int `json:"sample_rate,omitempty"`

	// Language is a BCP-47-ish language hint (e.g. "en", "en-US").
	Language string `json:"language,omitempty"`

	// Voice selects the synthesis voice (provider-specific ID).
	Voice string `json:"voice,omitempty"`

	// Model overrides the backend's default model.
	Model string `json:"model,omitempty"`

	// SessionID ties a chat request to its conversation history.
	SessionID string `json:"session_id,omitempty"`

	// Messages is the bounded conversation context supplied to chat
	// backends. Populated by the router, not by callers.
	Messages []Message `json:"messages,omitempty"`

	// NoCache disables response caching for this request, e.g. for
	// live audio where identical bytes don't imply identical intent.
	NoCache bool `json:"no_cache,omitempty"`
}

// Result is the uniform output of a backend invocation.
type Result struct {
	// Text is the transcript (STT) or the generated reply (chat).
	Text string `json:"text,omitempty"`

	// Audio is the synthesized audio payload (TTS).
	Audio []byte `json:"audio,omitempty"`

	// Format names the audio encoding of Audio, when set.
	Format string `json:"format,omitempty"`

	// Backend is the name of the backend that produced this result.
	// Set by the router; empty on cache replays until restored from
	// the cached envelope.
	Backend string `json:"backend,omitempty"`

	// Latency is how long the provider call took.
	Latency time.Duration `json:"latency,omitempty"`
}
