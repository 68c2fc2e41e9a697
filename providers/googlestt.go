package providers

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"github.com/voxmux/voxmux/credentials"
	"github.com/voxmux/voxmux/logger"
	"github.com/voxmux/voxmux/types"
)

const googleDefaultLanguage = "en-US"

// GoogleSTT is a cloud STT backend over the Google Cloud Speech-to-Text
// API. Authentication goes through Application Default Credentials;
// set GOOGLE_APPLICATION_CREDENTIALS or run under Workload Identity.
type GoogleSTT struct {
	name     string
	language string
	client   *speech.Client
}

// NewGoogleSTT creates a Google Cloud Speech provider. Client options
// override the default ADC authentication.
func NewGoogleSTT(ctx context.Context, name, language string, opts ...option.ClientOption) (*GoogleSTT, error) {
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	if language == "" {
		language = googleDefaultLanguage
	}
	return &GoogleSTT{
		name:     name,
		language: language,
		client:   client,
	}, nil
}

func newGoogleSTTFromSpec(ctx context.Context, spec Spec) (*GoogleSTT, error) {
	opts, err := googleClientOptions(spec.Credential)
	if err != nil {
		return nil, fmt.Errorf("backend %q: %w", spec.Descriptor.Name, err)
	}
	// Model carries the language code for this backend type; there is
	// no per-request model selection in the v1 API surface we use.
	return NewGoogleSTT(ctx, spec.Descriptor.Name, spec.Model, opts...)
}

// googleClientOptions maps a resolved credential onto the RPC client's
// native auth. A configured credential must be consumable; anything
// else is a config error, not something to drop on the floor.
func googleClientOptions(cred credentials.Credential) ([]option.ClientOption, error) {
	switch c := cred.(type) {
	case nil, *credentials.NoOpCredential:
		// Application Default Credentials.
		return nil, nil
	case *credentials.GCPCredential:
		return []option.ClientOption{option.WithTokenSource(c.TokenSource())}, nil
	case *credentials.APIKeyCredential:
		if c.APIKey() == "" {
			return nil, nil
		}
		return []option.ClientOption{option.WithAPIKey(c.APIKey())}, nil
	default:
		return nil, fmt.Errorf("credential type %q is not usable with the speech API", cred.Type())
	}
}

// Name returns the backend identifier.
func (p *GoogleSTT) Name() string {
	return p.name
}

// Capability returns stt.
func (p *GoogleSTT) Capability() types.Capability {
	return types.CapabilitySpeechToText
}

// Close shuts down the underlying RPC client.
func (p *GoogleSTT) Close() error {
	return p.client.Close()
}

// Invoke transcribes the request audio.
func (p *GoogleSTT) Invoke(ctx context.Context, req types.Request) (types.Result, error) {
	if len(req.Audio) == 0 {
		return types.Result{}, ErrEmptyAudio
	}

	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}
	language := req.Language
	if language == "" {
		language = p.language
	}

	logger.BackendCall(p.name, string(types.CapabilitySpeechToText),
		"bytes", len(req.Audio), "language", language)

	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        mapGoogleEncoding(req.Format),
			SampleRateHertz: int32(sampleRate),
			LanguageCode:    language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: req.Audio},
		},
	})
	if err != nil {
		return types.Result{}, NewBackendError(p.name, "", "recognize failed", err, true)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, result.Alternatives[0].Transcript)
		}
	}

	return types.Result{Text: strings.Join(parts, " ")}, nil
}

// mapGoogleEncoding translates a generic format name to the API enum.
func mapGoogleEncoding(format string) speechpb.RecognitionConfig_AudioEncoding {
	switch format {
	case "mp3":
		return speechpb.RecognitionConfig_MP3
	case "ogg", "opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "flac":
		return speechpb.RecognitionConfig_FLAC
	default:
		// pcm and wav payloads are both 16-bit linear samples.
		return speechpb.RecognitionConfig_LINEAR16
	}
}

var _ Provider = (*GoogleSTT)(nil)
