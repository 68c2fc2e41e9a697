package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxmux/voxmux/credentials"
	"github.com/voxmux/voxmux/logger"
	"github.com/voxmux/voxmux/types"
)

const (
	pollySpeechPath = "/v1/speech"

	// pollyDefaultVoice is the default synthesis voice.
	pollyDefaultVoice = "Joanna"

	// PollyEngineNeural selects the neural synthesis engine.
	PollyEngineNeural = "neural"
	// PollyEngineStandard selects the standard synthesis engine.
	PollyEngineStandard = "standard"

	defaultPollyTimeout = 60 * time.Second
)

// Polly is a cloud TTS backend over the Amazon Polly REST API. Requests
// are SigV4-signed by the credential.
type Polly struct {
	name    string
	baseURL string
	voice   string
	engine  string
	cred    credentials.Credential
	client  *http.Client
}

// PollyOption configures a Polly provider.
type PollyOption func(*Polly)

// WithPollyVoice sets the default voice ID.
func WithPollyVoice(voice string) PollyOption {
	return func(p *Polly) {
		if voice != "" {
			p.voice = voice
		}
	}
}

// WithPollyEngine selects the synthesis engine.
func WithPollyEngine(engine string) PollyOption {
	return func(p *Polly) {
		if engine != "" {
			p.engine = engine
		}
	}
}

// WithPollyClient sets a custom HTTP client.
func WithPollyClient(client *http.Client) PollyOption {
	return func(p *Polly) {
		p.client = client
	}
}

// NewPolly creates an Amazon Polly TTS provider for the given endpoint.
func NewPolly(name, baseURL string, cred credentials.Credential, opts ...PollyOption) (*Polly, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("polly backend %q needs an endpoint", name)
	}
	if cred == nil {
		cred = &credentials.NoOpCredential{}
	}
	p := &Polly{
		name:    name,
		baseURL: baseURL,
		voice:   pollyDefaultVoice,
		engine:  PollyEngineNeural,
		cred:    cred,
		client:  &http.Client{Timeout: defaultPollyTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func newPollyFromSpec(spec Spec) (*Polly, error) {
	baseURL := spec.BaseURL
	if baseURL == "" {
		// The signing credential knows its region; derive the endpoint
		// from it.
		if aws, ok := spec.Credential.(*credentials.AWSCredential); ok {
			baseURL = credentials.PollyEndpoint(aws.Region())
		}
	}
	// Model selects the synthesis engine for this backend type.
	return NewPolly(spec.Descriptor.Name, baseURL, spec.Credential,
		WithPollyVoice(spec.Voice),
		WithPollyEngine(spec.Model),
	)
}

// Name returns the backend identifier.
func (p *Polly) Name() string {
	return p.name
}

// Capability returns tts.
func (p *Polly) Capability() types.Capability {
	return types.CapabilityTextToSpeech
}

// Close drops idle HTTP connections.
func (p *Polly) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

type pollyRequest struct {
	Text         string `json:"Text"`
	VoiceId      string `json:"VoiceId"`
	OutputFormat string `json:"OutputFormat"`
	Engine       string `json:"Engine,omitempty"`
	SampleRate   string `json:"SampleRate,omitempty"`
}

// Invoke synthesizes the request text and returns the audio payload.
func (p *Polly) Invoke(ctx context.Context, req types.Request) (types.Result, error) {
	if req.Text == "" {
		return types.Result{}, ErrEmptyText
	}

	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}
	format, outputFormat := p.mapFormat(req.Format)

	body, err := json.Marshal(pollyRequest{
		Text:         req.Text,
		VoiceId:      voice,
		OutputFormat: outputFormat,
		Engine:       p.engine,
	})
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+pollySpeechPath, bytes.NewReader(body))
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := p.cred.Apply(ctx, httpReq); err != nil {
		return types.Result{}, fmt.Errorf("failed to apply credentials: %w", err)
	}

	logger.BackendCall(p.name, string(types.CapabilityTextToSpeech), "voice", voice)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return types.Result{}, NewBackendError(p.name, "", "request failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return types.Result{}, httpError(p.name, resp.StatusCode, respBody)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to read audio: %w", err)
	}

	return types.Result{Audio: audio, Format: format}, nil
}

// mapFormat translates a generic format name to the API's format string.
func (p *Polly) mapFormat(format string) (name, apiFormat string) {
	switch format {
	case "pcm":
		return "pcm", "pcm"
	case "ogg":
		return "ogg", "ogg_vorbis"
	default:
		return "mp3", "mp3"
	}
}

var _ Provider = (*Polly)(nil)
