package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxmux/voxmux/credentials"
	"github.com/voxmux/voxmux/types"
)

func azureTestKey() credentials.Credential {
	return credentials.NewAPIKeyCredential("az-key",
		credentials.WithHeaderName("Ocp-Apim-Subscription-Key"),
		credentials.WithPrefix(""),
	)
}

func TestNewAzureTTS_Defaults(t *testing.T) {
	p, err := NewAzureTTS("azure", AzureSpeechEndpoint("westus"), azureTestKey())
	if err != nil {
		t.Fatalf("NewAzureTTS() error = %v", err)
	}
	if p.voice != azureDefaultVoice {
		t.Errorf("voice = %v, want %v", p.voice, azureDefaultVoice)
	}
	if !strings.Contains(p.endpoint, "westus.tts.speech.microsoft.com") {
		t.Errorf("endpoint = %v, should contain the regional host", p.endpoint)
	}
	if p.Capability() != types.CapabilityTextToSpeech {
		t.Errorf("Capability() = %v, want tts", p.Capability())
	}
}

func TestNewAzureTTS_MissingEndpoint(t *testing.T) {
	if _, err := NewAzureTTS("azure", "", azureTestKey()); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestAzureTTS_Invoke_Success(t *testing.T) {
	audio := []byte("mp3-payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "az-key" {
			t.Errorf("subscription key header = %v, want az-key", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/ssml+xml" {
			t.Errorf("Content-Type = %v, want application/ssml+xml", got)
		}
		if got := r.Header.Get("X-Microsoft-OutputFormat"); got != azureFormatMP3 {
			t.Errorf("output format = %v, want %v", got, azureFormatMP3)
		}
		body, _ := io.ReadAll(r.Body)
		ssml := string(body)
		if !strings.Contains(ssml, "<voice name='en-GB-SoniaNeural'>") {
			t.Errorf("SSML missing voice element: %v", ssml)
		}
		if !strings.Contains(ssml, "xml:lang='en-GB'") {
			t.Errorf("SSML language not derived from voice: %v", ssml)
		}
		if !strings.Contains(ssml, "tea &amp; biscuits") {
			t.Errorf("SSML text not escaped: %v", ssml)
		}
		_, _ = w.Write(audio)
	}))
	defer server.Close()

	p, err := NewAzureTTS("azure", server.URL, azureTestKey(), WithAzureVoice("en-GB-SoniaNeural"))
	if err != nil {
		t.Fatalf("NewAzureTTS() error = %v", err)
	}
	result, err := p.Invoke(context.Background(), types.Request{Text: "tea & biscuits"})
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

func TestAzureTTS_Invoke_EmptyText(t *testing.T) {
	p, err := NewAzureTTS("azure", AzureSpeechEndpoint("westus"), azureTestKey())
	if err != nil {
		t.Fatalf("NewAzureTTS() error = %v", err)
	}
	if _, err := p.Invoke(context.Background(), types.Request{}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("error = %v, want ErrEmptyText", err)
	}
}

func TestAzureTTS_Invoke_RateLimitedIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p, err := NewAzureTTS("azure", server.URL, azureTestKey())
	if err != nil {
		t.Fatalf("NewAzureTTS() error = %v", err)
	}
	_, err = p.Invoke(context.Background(), types.Request{Text: "hello"})
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("error = %v, want BackendError", err)
	}
	if !backendErr.Retryable {
		t.Error("429 should be retryable")
	}
}

func TestCreateFromSpec_AzureWithoutEndpoint(t *testing.T) {
	_, err := CreateFromSpec(context.Background(), Spec{
		Type:       "azure",
		Descriptor: Descriptor{Name: "azure-tts", Capability: types.CapabilityTextToSpeech},
		Credential: azureTestKey(),
	})
	if err == nil {
		t.Fatal("expected error when neither base_url nor cloud endpoint is set")
	}
}
