package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/voxmux/voxmux/types"
)

// cartesiaTestServer runs a WebSocket endpoint that streams the given
// audio in two chunks after validating the synthesis request.
func cartesiaTestServer(t *testing.T, audio []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("api_key"); got != "car-key" {
			t.Errorf("api_key = %v, want car-key", got)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var req cartesiaWSRequest
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read request: %v", err)
			return
		}
		if req.Transcript != "stream me" {
			t.Errorf("transcript = %v, want stream me", req.Transcript)
		}
		if req.Voice.Mode != "id" {
			t.Errorf("voice mode = %v, want id", req.Voice.Mode)
		}

		half := len(audio) / 2
		_ = conn.WriteJSON(cartesiaWSResponse{
			Type: "chunk",
			Data: base64.StdEncoding.EncodeToString(audio[:half]),
		})
		_ = conn.WriteJSON(cartesiaWSResponse{
			Type: "chunk",
			Data: base64.StdEncoding.EncodeToString(audio[half:]),
			Done: true,
		})
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestCartesia_Invoke_AssemblesChunks(t *testing.T) {
	audio := []byte("pcm-audio-data-here")
	server := cartesiaTestServer(t, audio)
	defer server.Close()

	p := NewCartesia("cartesia", "car-key", WithCartesiaWSURL(wsURL(server.URL)))
	result, err := p.Invoke(context.Background(), types.Request{Text: "stream me"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if string(result.Audio) != string(audio) {
		t.Errorf("assembled audio = %q, want %q", result.Audio, audio)
	}
	if result.Format != "pcm" {
		t.Errorf("Format = %v, want pcm", result.Format)
	}
}

func TestCartesia_Invoke_EmptyText(t *testing.T) {
	p := NewCartesia("cartesia", "car-key")
	_, err := p.Invoke(context.Background(), types.Request{})
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("Invoke() error = %v, want ErrEmptyText", err)
	}
}

func TestCartesia_Invoke_StreamError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req cartesiaWSRequest
		_ = conn.ReadJSON(&req)
		_ = conn.WriteJSON(cartesiaWSResponse{Error: "voice not found"})
	}))
	defer server.Close()

	p := NewCartesia("cartesia", "car-key", WithCartesiaWSURL(wsURL(server.URL)))
	_, err := p.Invoke(context.Background(), types.Request{Text: "stream me"})
	if err == nil {
		t.Fatal("Invoke() expected error")
	}

	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("error type = %T, want *BackendError", err)
	}
	if be.Retryable {
		t.Error("provider-reported error should not be retryable")
	}
}

func TestCartesia_Invoke_DialFailure_Retryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	p := NewCartesia("cartesia", "car-key", WithCartesiaWSURL(wsURL(server.URL)))
	_, err := p.Invoke(context.Background(), types.Request{Text: "stream me"})

	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("error type = %T, want *BackendError", err)
	}
	if !be.Retryable {
		t.Error("dial failure should be retryable")
	}
}
