package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voxmux/voxmux/types"
)

func TestFingerprint_Deterministic(t *testing.T) {
	req := types.Request{Text: "hello", Voice: "nova", Language: "en"}

	a := Fingerprint(types.CapabilityTextToSpeech, req)
	b := Fingerprint(types.CapabilityTextToSpeech, req)
	assert.Equal(t, a, b)
}

func TestFingerprint_CapabilityChangesDigest(t *testing.T) {
	req := types.Request{Text: "hello"}

	chat := Fingerprint(types.CapabilityChat, req)
	tts := Fingerprint(types.CapabilityTextToSpeech, req)
	assert.NotEqual(t, chat, tts)
}

func TestFingerprint_NormalizesWhitespaceAndLanguageCase(t *testing.T) {
	a := Fingerprint(types.CapabilityChat, types.Request{Text: "  hello ", Language: "EN"})
	b := Fingerprint(types.CapabilityChat, types.Request{Text: "hello", Language: "en"})
	assert.Equal(t, a, b)
}

func TestFingerprint_TextCaseIsSignificant(t *testing.T) {
	// Conservative normalization: text casing is semantically relevant.
	a := Fingerprint(types.CapabilityChat, types.Request{Text: "Hello"})
	b := Fingerprint(types.CapabilityChat, types.Request{Text: "hello"})
	assert.NotEqual(t, a, b)
}

func TestFingerprint_SessionScopesChatRequests(t *testing.T) {
	a := Fingerprint(types.CapabilityChat, types.Request{Text: "hello", SessionID: "s1"})
	b := Fingerprint(types.CapabilityChat, types.Request{Text: "hello", SessionID: "s2"})
	assert.NotEqual(t, a, b)
}

func TestFingerprint_AudioContributes(t *testing.T) {
	a := Fingerprint(types.CapabilitySpeechToText, types.Request{Audio: []byte{1, 2, 3}})
	b := Fingerprint(types.CapabilitySpeechToText, types.Request{Audio: []byte{1, 2, 4}})
	assert.NotEqual(t, a, b)
}

func TestFingerprint_FieldBoundariesDoNotCollide(t *testing.T) {
	// "ab" in voice vs "a" in voice + "b" prefix of model must differ.
	a := Fingerprint(types.CapabilityTextToSpeech, types.Request{Voice: "ab"})
	b := Fingerprint(types.CapabilityTextToSpeech, types.Request{Voice: "a", Model: "b"})
	assert.NotEqual(t, a, b)
}
