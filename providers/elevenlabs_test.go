package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxmux/voxmux/credentials"
	"github.com/voxmux/voxmux/types"
)

func elevenLabsTestKey() credentials.Credential {
	return credentials.NewAPIKeyCredential("el-key",
		credentials.WithHeaderName("xi-api-key"),
		credentials.WithPrefix(""),
	)
}

func TestNewElevenLabs_Defaults(t *testing.T) {
	p := NewElevenLabs("elevenlabs", elevenLabsTestKey())
	if p.baseURL != elevenLabsBaseURL {
		t.Errorf("baseURL = %v, want %v", p.baseURL, elevenLabsBaseURL)
	}
	if p.model != ElevenLabsModelMultilingual {
		t.Errorf("model = %v, want %v", p.model, ElevenLabsModelMultilingual)
	}
	if p.voice != elevenLabsDefaultVoice {
		t.Errorf("voice = %v, want %v", p.voice, elevenLabsDefaultVoice)
	}
	if p.Capability() != types.CapabilityTextToSpeech {
		t.Errorf("Capability() = %v, want tts", p.Capability())
	}
}

func TestElevenLabs_Invoke_Success(t *testing.T) {
	audio := []byte("mp3-payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/text-to-speech/voice-123") {
			t.Errorf("Path = %v, should contain /text-to-speech/voice-123", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "el-key" {
			t.Errorf("xi-api-key = %v, want el-key", got)
		}
		if got := r.URL.Query().Get("output_format"); got != elevenLabsFormatMP3 {
			t.Errorf("output_format = %v, want %v", got, elevenLabsFormatMP3)
		}
		_, _ = w.Write(audio)
	}))
	defer server.Close()

	p := NewElevenLabs("elevenlabs", elevenLabsTestKey(), WithElevenLabsBaseURL(server.URL))
	result, err := p.Invoke(context.Background(), types.Request{Text: "hello", Voice: "voice-123"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if string(result.Audio) != string(audio) {
		t.Error("audio payload mismatch")
	}
	if result.Format != "mp3" {
		t.Errorf("Format = %v, want mp3", result.Format)
	}
}

func TestElevenLabs_Invoke_PCMFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("output_format"); got != elevenLabsFormatPCM {
			t.Errorf("output_format = %v, want %v", got, elevenLabsFormatPCM)
		}
		_, _ = w.Write([]byte{0x00, 0x01})
	}))
	defer server.Close()

	p := NewElevenLabs("elevenlabs", elevenLabsTestKey(), WithElevenLabsBaseURL(server.URL))
	result, err := p.Invoke(context.Background(), types.Request{Text: "hello", Format: "pcm"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result.Format != "pcm" {
		t.Errorf("Format = %v, want pcm", result.Format)
	}
}

func TestElevenLabs_Invoke_EmptyText(t *testing.T) {
	p := NewElevenLabs("elevenlabs", elevenLabsTestKey())
	_, err := p.Invoke(context.Background(), types.Request{})
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("Invoke() error = %v, want ErrEmptyText", err)
	}
}

func TestElevenLabs_Invoke_RateLimited_Retryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":{"status":"too_many_requests"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewElevenLabs("elevenlabs", elevenLabsTestKey(), WithElevenLabsBaseURL(server.URL))
	_, err := p.Invoke(context.Background(), types.Request{Text: "hello"})

	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("error type = %T, want *BackendError", err)
	}
	if !be.Retryable {
		t.Error("429 should be retryable")
	}
}
