package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxmux/voxmux/credentials"
	"github.com/voxmux/voxmux/types"
)

func testKey() credentials.Credential {
	return credentials.NewAPIKeyCredential("test-key")
}

func TestNewOpenAI_Defaults(t *testing.T) {
	p, err := NewOpenAI("openai-chat", types.CapabilityChat, testKey())
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	if p.Name() != "openai-chat" {
		t.Errorf("Name() = %v, want openai-chat", p.Name())
	}
	if p.Capability() != types.CapabilityChat {
		t.Errorf("Capability() = %v, want chat", p.Capability())
	}
	if p.model != ModelGPT4oMini {
		t.Errorf("model = %v, want %v", p.model, ModelGPT4oMini)
	}

	stt, err := NewOpenAI("openai-stt", types.CapabilitySpeechToText, testKey())
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	if stt.model != ModelWhisper1 {
		t.Errorf("stt model = %v, want %v", stt.model, ModelWhisper1)
	}

	tts, err := NewOpenAI("openai-tts", types.CapabilityTextToSpeech, testKey())
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	if tts.model != ModelTTS1 {
		t.Errorf("tts model = %v, want %v", tts.model, ModelTTS1)
	}
	if tts.voice != VoiceAlloy {
		t.Errorf("tts voice = %v, want %v", tts.voice, VoiceAlloy)
	}
}

func TestNewOpenAI_InvalidCapability(t *testing.T) {
	_, err := NewOpenAI("bad", types.Capability("translate"), testKey())
	if err == nil {
		t.Fatal("NewOpenAI() expected error for invalid capability")
	}
}

func TestOpenAI_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Path = %v, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %v, want Bearer test-key", got)
		}

		var req openAIChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 3 {
			t.Errorf("got %d messages, want 3 (history + current turn)", len(req.Messages))
		}
		if req.Messages[len(req.Messages)-1].Content != "how about tomorrow?" {
			t.Errorf("last message = %v, want current turn", req.Messages[len(req.Messages)-1].Content)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Sunny again."}},
			},
		})
	}))
	defer server.Close()

	p, err := NewOpenAI("openai-chat", types.CapabilityChat, testKey(), WithOpenAIBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	result, err := p.Invoke(context.Background(), types.Request{
		Text: "how about tomorrow?",
		Messages: []types.Message{
			{Role: types.RoleUser, Content: "what's the weather?"},
			{Role: types.RoleAssistant, Content: "Sunny."},
		},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result.Text != "Sunny again." {
		t.Errorf("Text = %v, want Sunny again.", result.Text)
	}
}

func TestOpenAI_Chat_EmptyInput(t *testing.T) {
	p, _ := NewOpenAI("openai-chat", types.CapabilityChat, testKey())
	_, err := p.Invoke(context.Background(), types.Request{})
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("Invoke() error = %v, want ErrEmptyText", err)
	}
}

func TestOpenAI_Chat_ServerError_Retryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	p, _ := NewOpenAI("openai-chat", types.CapabilityChat, testKey(), WithOpenAIBaseURL(server.URL))
	_, err := p.Invoke(context.Background(), types.Request{Text: "hi"})
	if err == nil {
		t.Fatal("Invoke() expected error")
	}

	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("error type = %T, want *BackendError", err)
	}
	if !be.Retryable {
		t.Error("5xx should be retryable")
	}
}

func TestOpenAI_Transcribe_WrapsPCM(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("Path = %v, want /audio/transcriptions", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != ModelWhisper1 {
			t.Errorf("model = %v, want %v", got, ModelWhisper1)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %v, want en", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "audio.wav" {
			t.Errorf("filename = %v, want audio.wav (PCM wrapped)", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" {
			t.Error("uploaded audio is not WAV wrapped")
		}

		_ = json.NewEncoder(w).Encode(map[string]string{"text": "hello world"})
	}))
	defer server.Close()

	p, _ := NewOpenAI("openai-stt", types.CapabilitySpeechToText, testKey(), WithOpenAIBaseURL(server.URL))
	result, err := p.Invoke(context.Background(), types.Request{
		Audio:      []byte{0x01, 0x02, 0x03, 0x04},
		SampleRate: 16000,
		Language:   "en",
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result.Text != "hello world" {
		t.Errorf("Text = %v, want hello world", result.Text)
	}
}

func TestOpenAI_Transcribe_EmptyAudio(t *testing.T) {
	p, _ := NewOpenAI("openai-stt", types.CapabilitySpeechToText, testKey())
	_, err := p.Invoke(context.Background(), types.Request{})
	if !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Invoke() error = %v, want ErrEmptyAudio", err)
	}
}

func TestOpenAI_Synthesize_Success(t *testing.T) {
	audio := []byte("fake-mp3-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("Path = %v, want /audio/speech", r.URL.Path)
		}
		var req openAISpeechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Voice != "nova" {
			t.Errorf("voice = %v, want nova", req.Voice)
		}
		if req.Input != "read this aloud" {
			t.Errorf("input = %v, want read this aloud", req.Input)
		}
		_, _ = w.Write(audio)
	}))
	defer server.Close()

	p, _ := NewOpenAI("openai-tts", types.CapabilityTextToSpeech, testKey(), WithOpenAIBaseURL(server.URL))
	result, err := p.Invoke(context.Background(), types.Request{Text: "read this aloud", Voice: "nova"})
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

func TestOpenAI_Synthesize_EmptyText(t *testing.T) {
	p, _ := NewOpenAI("openai-tts", types.CapabilityTextToSpeech, testKey())
	_, err := p.Invoke(context.Background(), types.Request{})
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("Invoke() error = %v, want ErrEmptyText", err)
	}
}

func TestCreateFromSpec_OpenAI(t *testing.T) {
	p, err := CreateFromSpec(context.Background(), Spec{
		Type: "openai",
		Descriptor: Descriptor{
			Name:       "openai-chat",
			Capability: types.CapabilityChat,
		},
		Model:      "gpt-4o",
		Credential: testKey(),
	})
	if err != nil {
		t.Fatalf("CreateFromSpec() error = %v", err)
	}
	oa, ok := p.(*OpenAI)
	if !ok {
		t.Fatalf("provider type = %T, want *OpenAI", p)
	}
	if oa.model != "gpt-4o" {
		t.Errorf("model = %v, want gpt-4o", oa.model)
	}
}

func TestCreateFromSpec_Unsupported(t *testing.T) {
	_, err := CreateFromSpec(context.Background(), Spec{Type: "vosk"})
	if err == nil {
		t.Fatal("CreateFromSpec() expected error")
	}
	var ute *UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("error type = %T, want *UnsupportedTypeError", err)
	}
	if !strings.Contains(ute.Error(), "vosk") {
		t.Errorf("error should name the type, got %v", ute.Error())
	}
}
