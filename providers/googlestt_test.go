package providers

import (
	"context"
	"net/http"
	"testing"

	"github.com/voxmux/voxmux/credentials"
)

// signingStub stands in for a request-signing credential that the
// speech RPC client has no way to consume.
type signingStub struct{}

func (signingStub) Apply(context.Context, *http.Request) error { return nil }
func (signingStub) Type() string                               { return "sigv4" }

func TestGoogleClientOptions_NoCredential(t *testing.T) {
	for _, cred := range []credentials.Credential{nil, &credentials.NoOpCredential{}} {
		opts, err := googleClientOptions(cred)
		if err != nil {
			t.Fatalf("googleClientOptions(%v) error = %v", cred, err)
		}
		if len(opts) != 0 {
			t.Errorf("expected ADC fallback with no options, got %d", len(opts))
		}
	}
}

func TestGoogleClientOptions_APIKey(t *testing.T) {
	opts, err := googleClientOptions(credentials.NewAPIKeyCredential("g-key"))
	if err != nil {
		t.Fatalf("googleClientOptions() error = %v", err)
	}
	if len(opts) != 1 {
		t.Fatalf("expected the configured key to become a client option, got %d", len(opts))
	}

	// An empty key resolves to default auth rather than a bad option.
	opts, err = googleClientOptions(credentials.NewAPIKeyCredential(""))
	if err != nil {
		t.Fatalf("googleClientOptions() error = %v", err)
	}
	if len(opts) != 0 {
		t.Errorf("empty key should yield no options, got %d", len(opts))
	}
}

func TestGoogleClientOptions_UnusableCredentialRejected(t *testing.T) {
	if _, err := googleClientOptions(signingStub{}); err == nil {
		t.Fatal("expected a configured-but-unusable credential to be rejected")
	}
}

func TestMapGoogleEncoding(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"mp3", "MP3"},
		{"ogg", "OGG_OPUS"},
		{"opus", "OGG_OPUS"},
		{"flac", "FLAC"},
		{"pcm", "LINEAR16"},
		{"wav", "LINEAR16"},
		{"", "LINEAR16"},
	}
	for _, tt := range tests {
		if got := mapGoogleEncoding(tt.format).String(); got != tt.want {
			t.Errorf("mapGoogleEncoding(%q) = %v, want %v", tt.format, got, tt.want)
		}
	}
}
